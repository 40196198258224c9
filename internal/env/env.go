// Package env holds the immutable per-invocation configuration and the
// on-disk locations used by llarcfg.
package env

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// WorkDir returns <UserCacheDir>/.llarcfg, creating it with 0700 permissions.
// Scoped build directories are created below it.
func WorkDir() (string, error) {
	userCacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(userCacheDir, ".llarcfg")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", err
	}
	return dir, nil
}

// Config is the explicit replacement for environment toggles that affect
// compiler selection and install layout. It is built once per invocation and
// passed by value; nothing in llarcfg writes back to the process environment.
type Config struct {
	CC        string // C compiler used for identity probing
	CXX       string
	Python    string // interpreter; "<Python>-config" must sit next to it
	Bottle    bool   // producing a redistributable binary artifact
	Prefix    string // install prefix
	BuildType string
	Jobs      int // parallel jobs passed to the compile step, 0 = tool default
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		CC:        "cc",
		CXX:       "c++",
		Python:    "python3",
		Prefix:    "/usr/local",
		BuildType: "Release",
	}
}

// Load builds a Config from Default and the variables visible through
// lookup (usually os.LookupEnv):
//
//	CC, CXX, LLARCFG_PYTHON, LLARCFG_BOTTLE, LLARCFG_PREFIX, LLARCFG_JOBS
func Load(lookup func(string) (string, bool)) (Config, error) {
	c := Default()
	if v, ok := lookup("CC"); ok && v != "" {
		c.CC = v
	}
	if v, ok := lookup("CXX"); ok && v != "" {
		c.CXX = v
	}
	if v, ok := lookup("LLARCFG_PYTHON"); ok && v != "" {
		c.Python = v
	}
	if v, ok := lookup("LLARCFG_PREFIX"); ok && v != "" {
		c.Prefix = v
	}
	if v, ok := lookup("LLARCFG_BOTTLE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("env: LLARCFG_BOTTLE: %w", err)
		}
		c.Bottle = b
	}
	if v, ok := lookup("LLARCFG_JOBS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return Config{}, fmt.Errorf("env: LLARCFG_JOBS: invalid job count %q", v)
		}
		c.Jobs = n
	}
	return c, nil
}
