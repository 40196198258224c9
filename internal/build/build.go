// Package build runs the resolution pipeline and hands the resulting plan to
// an external build system.
//
// The pipeline is: declare and select options, validate, probe the host,
// resolve dependencies, synthesize flags, patch the source, then configure,
// build and install. The first failure stops the pipeline and is reported as
// a *StageError naming the component that failed.
package build

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/qiniu/x/log"

	"github.com/goplus/llarcfg/formula"
	"github.com/goplus/llarcfg/internal/deps"
	"github.com/goplus/llarcfg/internal/env"
	"github.com/goplus/llarcfg/internal/patch"
	"github.com/goplus/llarcfg/internal/probe"
	"github.com/goplus/llarcfg/internal/synth"
	"github.com/goplus/llarcfg/pkgs/buildsys"
)

// Recipe is a declarative description of one package's build.
type Recipe interface {
	Name() string
	Declare(r *formula.Registry) error
	Dependencies() []formula.Dependency
	Rules() synth.Table
	Patch() (*patch.Set, error)
	Edits(in *synth.Input) ([]patch.Substitution, error)
}

// Prober gathers host facts.
type Prober interface {
	Probe(ctx context.Context) *probe.Facts
}

// StageError is the first failure of a pipeline run.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// stageError attributes err to stage, unless it was caused by a host query
// that failed, in which case the probe is named.
func stageError(stage string, err error) *StageError {
	var pf *probe.ProbeFailure
	if errors.As(err, &pf) {
		stage = "probe"
	}
	return &StageError{Stage: stage, Err: err}
}

// installLister is implemented by build systems that record what their
// install step wrote.
type installLister interface {
	InstalledFiles() ([]string, error)
}

// Builder resolves and builds a recipe.
type Builder struct {
	Recipe Recipe
	Config env.Config
	Prober Prober
	Deps   deps.Resolver

	// NewSystem returns the build system for one run.
	NewSystem func(sourceDir, workDir, prefix string) buildsys.BuildSystem

	// WorkRoot is where scratch build dirs are created; "" uses os.TempDir.
	WorkRoot string

	// Force rebuilds even if the prefix holds a receipt for the same plan.
	Force bool
}

// Resolution is everything Resolve learned on the way to the plan.
type Resolution struct {
	Plan       *synth.Plan
	Selections *formula.Selections
	Facts      *probe.Facts
	Deps       map[string]formula.Dependency
	Needed     []formula.Dependency
}

// Resolve runs the pipeline up to the build plan without touching sourceDir.
// Options are validated before the host is probed.
func (b *Builder) Resolve(ctx context.Context, sourceDir, workDir string, sel map[string]string) (*Resolution, error) {
	reg := formula.NewRegistry()
	if err := b.Recipe.Declare(reg); err != nil {
		return nil, &StageError{Stage: "options", Err: err}
	}
	names := make([]string, 0, len(sel))
	for name := range sel {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := reg.Select(name, sel[name]); err != nil {
			return nil, &StageError{Stage: "options", Err: err}
		}
	}
	if err := reg.Validate(); err != nil {
		return nil, &StageError{Stage: "options", Err: err}
	}
	snap, err := reg.Snapshot()
	if err != nil {
		return nil, &StageError{Stage: "options", Err: err}
	}
	log.Debugf("%s: options %s", b.Recipe.Name(), snap)

	facts := b.Prober.Probe(ctx)
	if err := ctx.Err(); err != nil {
		return nil, &StageError{Stage: "probe", Err: err}
	}

	declared := b.Recipe.Dependencies()
	resolved, err := deps.ResolveAll(b.Deps, declared)
	if err != nil {
		return nil, &StageError{Stage: "deps", Err: err}
	}
	needed := snap.Requirements(declared)
	if err := deps.CheckPresent(needed, resolved); err != nil {
		return nil, &StageError{Stage: "deps", Err: err}
	}

	in := &synth.Input{Options: snap, Facts: facts, Config: b.Config, Deps: resolved}
	flags, err := synth.Synthesize(b.Recipe.Rules(), in)
	if err != nil {
		return nil, stageError("synth", err)
	}
	set, err := b.Recipe.Patch()
	if err != nil {
		return nil, &StageError{Stage: "patch", Err: err}
	}
	edits, err := b.Recipe.Edits(in)
	if err != nil {
		return nil, stageError("patch", err)
	}
	plan, err := synth.NewPlan(sourceDir, workDir, flags, set, edits)
	if err != nil {
		return nil, &StageError{Stage: "synth", Err: err}
	}
	return &Resolution{
		Plan:       plan,
		Selections: snap,
		Facts:      facts,
		Deps:       resolved,
		Needed:     needed,
	}, nil
}

// Build resolves a plan, patches sourceDir and runs the build system in a
// scratch dir that is removed afterwards. If the install prefix already holds
// a receipt for the same plan and Force is unset, nothing is run.
func (b *Builder) Build(ctx context.Context, sourceDir string, sel map[string]string) (*Result, error) {
	workDir, err := os.MkdirTemp(b.WorkRoot, b.Recipe.Name()+"-build-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(workDir)

	res, err := b.Resolve(ctx, sourceDir, workDir, sel)
	if err != nil {
		return nil, err
	}
	plan := res.Plan
	digest := plan.Digest()

	if !b.Force {
		if r, err := loadReceipt(b.Config.Prefix); err == nil && r.Digest == digest {
			log.Infof("%s is up to date in %s", b.Recipe.Name(), b.Config.Prefix)
			return &Result{Digest: digest, OutputDir: b.Config.Prefix, Files: r.Files, Cached: true}, nil
		}
	}

	// The tree may carry the patch from an earlier run that failed later
	// on, or from "llarcfg patch".
	if err := patch.Ensure(sourceDir, plan.Patch, plan.Edits...); err != nil {
		return nil, &StageError{Stage: "patch", Err: err}
	}

	bs := b.NewSystem(sourceDir, workDir, b.Config.Prefix)
	for _, dep := range res.Needed {
		if dep.Requirement == formula.BuildTime {
			continue
		}
		if d := res.Deps[dep.Name]; d.Present() {
			bs.Use(d.Path)
		}
	}
	iv := &Invoker{System: bs}
	result, err := iv.Run(ctx, plan)
	if err != nil {
		return result, err
	}
	if l, ok := bs.(installLister); ok {
		files, err := l.InstalledFiles()
		if err != nil {
			log.Warnf("list installed files: %v", err)
		}
		result.Files = relativeTo(result.OutputDir, files)
	}

	rcpt := &receipt{
		Recipe:     b.Recipe.Name(),
		Digest:     digest,
		Selections: res.Selections.String(),
		Args:       plan.Args(),
		Files:      result.Files,
		BuildTime:  time.Now(),
	}
	if err := saveReceipt(result.OutputDir, rcpt); err != nil {
		log.Warnf("write receipt: %v", err)
	}
	return result, nil
}

// relativeTo returns the files below dir as slash-separated paths relative
// to it. Files outside dir are dropped.
func relativeTo(dir string, files []string) []string {
	var ret []string
	for _, f := range files {
		rel, err := filepath.Rel(dir, f)
		if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		ret = append(ret, filepath.ToSlash(rel))
	}
	return ret
}

// WritePlan prints plan's configure arguments one per line.
func WritePlan(w io.Writer, plan *synth.Plan) error {
	for _, arg := range plan.Args() {
		if _, err := fmt.Fprintln(w, arg); err != nil {
			return err
		}
	}
	return nil
}
