package build

import (
	"context"
	"errors"

	"github.com/qiniu/x/log"

	"github.com/goplus/llarcfg/internal/synth"
	"github.com/goplus/llarcfg/pkgs/buildsys"
)

// Result describes a finished invocation.
type Result struct {
	Digest    string
	OutputDir string
	Steps     []buildsys.Step // steps that completed
	Files     []string        // installed files relative to OutputDir, if known
	Cached    bool            // receipt matched, nothing was run
}

// Invoker drives one build system through configure, build and install.
type Invoker struct {
	System buildsys.BuildSystem
}

// Run configures with plan's flags, then builds, then installs. The first
// failing step ends the run and later steps are never started. Failures are
// *StageError wrapping *buildsys.ToolError.
func (iv *Invoker) Run(ctx context.Context, plan *synth.Plan) (*Result, error) {
	bs := iv.System
	res := &Result{Digest: plan.Digest(), OutputDir: bs.OutputDir()}
	steps := []struct {
		step buildsys.Step
		run  func() error
	}{
		{buildsys.Configure, func() error { return bs.Configure(ctx, plan.Args()...) }},
		{buildsys.Compile, func() error { return bs.Build(ctx) }},
		{buildsys.Install, func() error { return bs.Install(ctx) }},
	}
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return res, &StageError{Stage: s.step.String(), Err: err}
		}
		log.Infof("%s ...", s.step)
		if err := s.run(); err != nil {
			var te *buildsys.ToolError
			if !errors.As(err, &te) {
				err = &buildsys.ToolError{Step: s.step, ExitCode: -1, Err: err}
			}
			return res, &StageError{Stage: s.step.String(), Err: err}
		}
		res.Steps = append(res.Steps, s.step)
	}
	return res, nil
}
