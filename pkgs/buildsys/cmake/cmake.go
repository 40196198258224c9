// Package cmake drives the cmake configure/build/install workflow for a
// resolved build plan.
package cmake

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/qiniu/x/log"

	"github.com/goplus/llarcfg/pkgs/buildsys"
)

// CMake runs cmake steps in a dedicated build directory.
type CMake struct {
	sourceDir  string
	buildDir   string
	installDir string
	generator  string
	jobs       int
	cmakeBin   string
	env        map[string]string

	// Stdout, if set, receives tool output as it is produced. Output is
	// captured for diagnostics either way.
	Stdout io.Writer
}

var _ buildsys.BuildSystem = (*CMake)(nil)

// New returns a CMake building sourceDir in buildDir and installing into
// installDir.
func New(sourceDir, buildDir, installDir string) *CMake {
	return &CMake{
		sourceDir:  sourceDir,
		buildDir:   buildDir,
		installDir: installDir,
		cmakeBin:   "cmake",
		env:        make(map[string]string),
	}
}

// Generator sets the CMake generator (e.g. "Ninja", "Unix Makefiles").
func (c *CMake) Generator(name string) *CMake {
	c.generator = name
	return c
}

// Jobs sets the parallelism of the build step; 0 leaves it to the tool.
func (c *CMake) Jobs(n int) *CMake {
	c.jobs = n
	return c
}

// Binary overrides the cmake executable.
func (c *CMake) Binary(path string) *CMake {
	c.cmakeBin = path
	return c
}

// Env sets a variable for cmake processes only.
func (c *CMake) Env(key, value string) {
	c.env[key] = value
}

// Use makes headers, libraries and pkg-config files of a dependency
// installed at root visible to cmake and the compilers it drives.
func (c *CMake) Use(root string) {
	includeDir := filepath.Join(root, "include")
	libDir := filepath.Join(root, "lib")
	pkgconfigDir := filepath.Join(libDir, "pkgconfig")

	if isDir(pkgconfigDir) {
		c.prependPath("PKG_CONFIG_PATH", pkgconfigDir)
	}
	c.prependPath("CMAKE_PREFIX_PATH", root)
	if isDir(includeDir) {
		c.prependPath("CMAKE_INCLUDE_PATH", includeDir)
	}
	if isDir(libDir) {
		c.prependPath("CMAKE_LIBRARY_PATH", libDir)
	}

	if runtime.GOOS == "windows" {
		if isDir(includeDir) {
			c.prependPath("INCLUDE", includeDir)
		}
		if isDir(libDir) {
			c.prependPath("LIB", libDir)
		}
	} else {
		if isDir(includeDir) {
			c.appendFlag("CPPFLAGS", "-I"+includeDir)
		}
		if isDir(libDir) {
			c.appendFlag("LDFLAGS", "-L"+libDir)
		}
	}
}

// Configure runs "cmake -S <source> -B <build>" followed by args.
func (c *CMake) Configure(ctx context.Context, args ...string) error {
	if err := os.MkdirAll(c.buildDir, 0o755); err != nil {
		return &buildsys.ToolError{Step: buildsys.Configure, Command: []string{c.cmakeBin}, ExitCode: -1, Err: err}
	}
	cmakeArgs := []string{"-S", c.sourceDir, "-B", c.buildDir}
	if c.generator != "" {
		cmakeArgs = append(cmakeArgs, "-G", c.generator)
	}
	cmakeArgs = append(cmakeArgs, args...)
	return c.run(ctx, buildsys.Configure, cmakeArgs)
}

// Build runs "cmake --build <build>".
func (c *CMake) Build(ctx context.Context, args ...string) error {
	cmakeArgs := []string{"--build", c.buildDir}
	if c.jobs > 0 {
		cmakeArgs = append(cmakeArgs, "--parallel", strconv.Itoa(c.jobs))
	}
	cmakeArgs = append(cmakeArgs, args...)
	return c.run(ctx, buildsys.Compile, cmakeArgs)
}

// Install runs "cmake --install <build>".
func (c *CMake) Install(ctx context.Context, args ...string) error {
	cmakeArgs := []string{"--install", c.buildDir}
	if c.installDir != "" {
		cmakeArgs = append(cmakeArgs, "--prefix", c.installDir)
	}
	cmakeArgs = append(cmakeArgs, args...)
	return c.run(ctx, buildsys.Install, cmakeArgs)
}

// OutputDir returns installDir if set, otherwise buildDir.
func (c *CMake) OutputDir() string {
	if c.installDir != "" {
		return c.installDir
	}
	return c.buildDir
}

// InstalledFiles returns the absolute paths cmake recorded in
// install_manifest.txt during the last install.
func (c *CMake) InstalledFiles() ([]string, error) {
	data, err := os.ReadFile(filepath.Join(c.buildDir, "install_manifest.txt"))
	if err != nil {
		return nil, err
	}
	var files []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			files = append(files, line)
		}
	}
	return files, nil
}

func (c *CMake) run(ctx context.Context, step buildsys.Step, args []string) error {
	command := append([]string{c.cmakeBin}, args...)
	log.Debugf("%s: %s", step, strings.Join(command, " "))

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, c.cmakeBin, args...)
	cmd.Dir = c.buildDir
	if c.Stdout != nil {
		cmd.Stdout = io.MultiWriter(&out, c.Stdout)
	} else {
		cmd.Stdout = &out
	}
	cmd.Stderr = cmd.Stdout
	if len(c.env) > 0 {
		cmd.Env = mergeEnv(os.Environ(), c.env)
	}
	err := cmd.Run()
	if err == nil {
		return nil
	}
	code := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.Exited() {
		code = exitErr.ExitCode()
	}
	if ctx.Err() != nil {
		code, err = -1, ctx.Err()
	}
	return &buildsys.ToolError{Step: step, Command: command, ExitCode: code, Output: out.String(), Err: err}
}

func mergeEnv(base []string, override map[string]string) []string {
	envMap := make(map[string]string, len(base))
	for _, kv := range base {
		if k, v, ok := strings.Cut(kv, "="); ok {
			envMap[k] = v
		}
	}
	for k, v := range override {
		envMap[k] = v
	}
	keys := make([]string, 0, len(envMap))
	for k := range envMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+envMap[k])
	}
	return out
}

// prependPath prepends value to a PATH-style variable, seeded from the
// process environment the first time.
func (c *CMake) prependPath(key, value string) {
	sep := string(os.PathListSeparator)
	cur, ok := c.env[key]
	if !ok {
		cur = os.Getenv(key)
	}
	if cur != "" {
		value += sep + cur
	}
	c.env[key] = value
}

// appendFlag appends a space-separated flag to a variable.
func (c *CMake) appendFlag(key, flag string) {
	cur, ok := c.env[key]
	if !ok {
		cur = os.Getenv(key)
	}
	if cur != "" {
		flag = cur + " " + flag
	}
	c.env[key] = flag
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}
