package synth

import (
	"encoding/hex"
	"fmt"

	"lukechampine.com/blake3"

	"github.com/goplus/llarcfg/internal/patch"
)

// Plan is the complete output of resolution: where to build, what to pass to
// the configure step and which source modifications to make first. It is
// consumed once by the build invoker.
type Plan struct {
	SourceDir string
	WorkDir   string
	Flags     []Flag
	Patch     *patch.Set
	Edits     []patch.Substitution
}

// NewPlan returns a plan after checking that flag keys are unique.
func NewPlan(sourceDir, workDir string, flags []Flag, set *patch.Set, edits []patch.Substitution) (*Plan, error) {
	if _, err := Keys(flags); err != nil {
		return nil, err
	}
	return &Plan{
		SourceDir: sourceDir,
		WorkDir:   workDir,
		Flags:     flags,
		Patch:     set,
		Edits:     edits,
	}, nil
}

// Args renders the flags as configure arguments, in order.
func (p *Plan) Args() []string {
	args := make([]string, len(p.Flags))
	for i, f := range p.Flags {
		args[i] = f.Arg()
	}
	return args
}

// Digest identifies the resolved configuration: flags, patch content and
// source edits. Directories are not part of it, so two builds of the same
// configuration in different scratch dirs share a digest.
func (p *Plan) Digest() string {
	h := blake3.New(32, nil)
	for _, arg := range p.Args() {
		fmt.Fprintf(h, "flag %d:%s\n", len(arg), arg)
	}
	if p.Patch != nil {
		fmt.Fprintf(h, "patch %s %d:", p.Patch.Name, len(p.Patch.Diff))
		h.Write(p.Patch.Diff)
	}
	for _, e := range p.Edits {
		fmt.Fprintf(h, "edit %q %q %q\n", e.Path, e.Old, e.New)
	}
	return hex.EncodeToString(h.Sum(nil))
}
