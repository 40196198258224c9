package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/goplus/llarcfg/formula"
	"github.com/goplus/llarcfg/internal/build"
	"github.com/goplus/llarcfg/internal/config"
	"github.com/goplus/llarcfg/internal/deps"
	"github.com/goplus/llarcfg/internal/env"
	"github.com/goplus/llarcfg/internal/probe"
	"github.com/goplus/llarcfg/pkgs/buildsys"
	"github.com/goplus/llarcfg/pkgs/buildsys/cmake"
	"github.com/goplus/llarcfg/recipe/opencv"
)

// selectionFlags are shared by every command that resolves a plan.
type selectionFlags struct {
	with    []string
	without []string
	options []string
	config  string
	prefix  string
	bottle  bool
	jobs    int
	depRoot string
}

func (f *selectionFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringArrayVar(&f.with, "with", nil, "Enable a boolean option, e.g. qt or with-qt (repeatable)")
	fs.StringArrayVar(&f.without, "without", nil, "Disable a boolean option, e.g. qt or with-qt (repeatable)")
	fs.StringArrayVar(&f.options, "option", nil, "Select an option value as name=value (repeatable)")
	fs.StringVarP(&f.config, "config", "c", "", "YAML file with options and dependency prefixes")
	fs.StringVar(&f.prefix, "prefix", "", "Install prefix")
	fs.BoolVar(&f.bottle, "bottle", false, "Build a redistributable artifact (no host-specific ISA extensions)")
	fs.IntVarP(&f.jobs, "jobs", "j", 0, "Parallel jobs for the build step")
	fs.StringVar(&f.depRoot, "dep-root", "/usr/local", "Root holding opt/<name> dependency links")
}

// optionName maps a command line name onto a declared option: "qt" and
// "without-qt" both name "with-qt". Names that match nothing are returned
// unchanged so the registry can report them.
func optionName(declared map[string]bool, name string) string {
	if declared[name] {
		return name
	}
	if rest, ok := strings.CutPrefix(name, "without-"); ok && declared["with-"+rest] {
		return "with-" + rest
	}
	if declared["with-"+name] {
		return "with-" + name
	}
	return name
}

// parseSelections merges file selections with command line ones. The command
// line wins; naming an option twice on the command line is an error.
func parseSelections(declared map[string]bool, file map[string]string, with, without, options []string) (map[string]string, error) {
	sel := make(map[string]string, len(file))
	for k, v := range file {
		sel[k] = v
	}
	seen := make(map[string]bool)
	set := func(name, value string) error {
		if name == "" {
			return fmt.Errorf("empty option name")
		}
		name = optionName(declared, name)
		if seen[name] {
			return fmt.Errorf("option %q selected more than once", name)
		}
		seen[name] = true
		sel[name] = value
		return nil
	}
	for _, name := range with {
		if err := set(name, "true"); err != nil {
			return nil, err
		}
	}
	for _, name := range without {
		if err := set(name, "false"); err != nil {
			return nil, err
		}
	}
	for _, kv := range options {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --option %q, want name=value", kv)
		}
		if err := set(name, value); err != nil {
			return nil, err
		}
	}
	return sel, nil
}

// setup builds the builder and option selections from environment, config
// file and flags, in that order of precedence.
func (f *selectionFlags) setup(cmd *cobra.Command) (*build.Builder, map[string]string, error) {
	cfg, err := env.Load(os.LookupEnv)
	if err != nil {
		return nil, nil, err
	}
	var fileSel map[string]string
	var fileDeps deps.Static
	if f.config != "" {
		file, err := config.Load(f.config)
		if err != nil {
			return nil, nil, err
		}
		cfg = file.Apply(cfg)
		fileSel = file.Selections()
		fileDeps = deps.Static(file.Deps)
	}
	fs := cmd.Flags()
	if fs.Changed("prefix") {
		abs, err := filepath.Abs(f.prefix)
		if err != nil {
			return nil, nil, err
		}
		cfg.Prefix = abs
	}
	if fs.Changed("bottle") {
		cfg.Bottle = f.bottle
	}
	if fs.Changed("jobs") {
		cfg.Jobs = f.jobs
	}
	sel, err := parseSelections(declaredOptions(), fileSel, f.with, f.without, f.options)
	if err != nil {
		return nil, nil, err
	}

	resolver := deps.Chain{fileDeps, deps.Opt{Root: f.depRoot}, deps.Tools{}}
	jobs := cfg.Jobs
	b := &build.Builder{
		Recipe: opencv.New(),
		Config: cfg,
		Prober: probe.New(cfg),
		Deps:   resolver,
		NewSystem: func(sourceDir, workDir, prefix string) buildsys.BuildSystem {
			c := cmake.New(sourceDir, workDir, prefix).Jobs(jobs)
			c.Env("CC", cfg.CC)
			c.Env("CXX", cfg.CXX)
			if rootVerbose {
				c.Stdout = os.Stderr
			}
			return c
		},
	}
	return b, sel, nil
}

func declaredOptions() map[string]bool {
	reg := formula.NewRegistry()
	if err := opencv.New().Declare(reg); err != nil {
		return nil
	}
	ret := make(map[string]bool)
	for _, opt := range reg.Options() {
		ret[opt.Name] = true
	}
	return ret
}

func sourceDir(dir string) (string, error) {
	if dir == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", abs)
	}
	return abs, nil
}
