// Package synth turns resolved options and probed host facts into the ordered
// flag list of a BuildPlan.
//
// Flags come from an ordered table of rules. Each rule belongs to a stage and
// stages never decrease along the table. A key may be assigned once; a later
// rule marked Override may replace an assignment made in an earlier stage.
// Any other second assignment of a key is a *formula.ConflictError, so the
// output never depends on a silent last-writer-wins.
package synth

import (
	"fmt"

	"github.com/goplus/llarcfg/formula"
	"github.com/goplus/llarcfg/internal/env"
	"github.com/goplus/llarcfg/internal/probe"
)

// Input is the immutable snapshot a table is evaluated against.
type Input struct {
	Options *formula.Selections
	Facts   *probe.Facts
	Config  env.Config
	Deps    map[string]formula.Dependency // resolved dependencies by name
}

// Enabled reports whether option name is on.
func (in *Input) Enabled(name string) (bool, error) {
	return in.Options.Enabled(name)
}

// Value returns the resolved value of option name.
func (in *Input) Value(name string) (string, error) {
	return in.Options.Value(name)
}

// Dep returns the resolved dependency name. It fails with
// *MissingDependencyError if the collaborator reported it not present.
func (in *Input) Dep(name string) (formula.Dependency, error) {
	dep, ok := in.Deps[name]
	if !ok || !dep.Present() {
		return formula.Dependency{}, &MissingDependencyError{Name: name}
	}
	return dep, nil
}

// MissingDependencyError is returned by a rule that needs the prefix of a
// dependency that is not present.
type MissingDependencyError struct {
	Name string
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("dependency %q is not present", e.Name)
}

// Rule maps a predicate over the input to zero or more flags.
type Rule struct {
	Name     string
	Stage    int
	Override bool
	Eval     func(in *Input) ([]Flag, error)
}

// Table is an ordered rule list.
type Table []Rule

// RuleError wraps a failure raised while evaluating a rule.
type RuleError struct {
	Rule string
	Err  error
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("synth: rule %q: %v", e.Rule, e.Err)
}

func (e *RuleError) Unwrap() error { return e.Err }

type slot struct {
	index int
	rule  string
	stage int
}

// Synthesize evaluates t against in and returns the flags in the order their
// keys were first assigned. An override keeps the position of the
// assignment it replaces.
func Synthesize(t Table, in *Input) ([]Flag, error) {
	var out []Flag
	keys := make(map[string]slot)
	for i, r := range t {
		if i > 0 && r.Stage < t[i-1].Stage {
			return nil, fmt.Errorf("synth: rule %q (stage %d) listed after stage %d", r.Name, r.Stage, t[i-1].Stage)
		}
		flags, err := r.Eval(in)
		if err != nil {
			return nil, &RuleError{Rule: r.Name, Err: err}
		}
		for _, f := range flags {
			s, ok := keys[f.Key]
			if !ok {
				keys[f.Key] = slot{index: len(out), rule: r.Name, stage: r.Stage}
				out = append(out, f)
				continue
			}
			if !r.Override || s.stage == r.Stage {
				return nil, &formula.ConflictError{Component: "synth", A: s.rule, B: r.Name, Key: f.Key}
			}
			out[s.index] = f
			keys[f.Key] = slot{index: s.index, rule: r.Name, stage: r.Stage}
		}
	}
	return out, nil
}
