// Package formula declares the option and dependency model of a build recipe
// and the registry that resolves user selections against it.
package formula

import (
	"slices"
	"strconv"
)

// Kind is the value domain of an option.
type Kind int

const (
	// Bool options take "true" or "false".
	Bool Kind = iota
	// Choice options take one value out of a declared set.
	Choice
)

func (k Kind) String() string {
	switch k {
	case Bool:
		return "bool"
	case Choice:
		return "choice"
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Option is a named, user-selectable build-time toggle.
type Option struct {
	Name    string
	Kind    Kind
	Default string
	Choices []string // Choice only
	Implies string   // dependency required when the option is enabled
	Desc    string
}

// BoolOption returns a boolean option.
func BoolOption(name, desc string, def bool) Option {
	return Option{Name: name, Kind: Bool, Default: strconv.FormatBool(def), Desc: desc}
}

// ChoiceOption returns an option whose value is one of choices. def must be
// one of them.
func ChoiceOption(name, desc, def string, choices ...string) Option {
	return Option{Name: name, Kind: Choice, Default: def, Choices: slices.Clone(choices), Desc: desc}
}

// WithImplies returns a copy of o that requires dependency dep when enabled.
func (o Option) WithImplies(dep string) Option {
	o.Implies = dep
	return o
}

// check normalizes value for o, reporting whether it is acceptable.
func (o *Option) check(value string) (string, bool) {
	switch o.Kind {
	case Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return "", false
		}
		return strconv.FormatBool(b), true
	case Choice:
		if slices.Contains(o.Choices, value) {
			return value, true
		}
	}
	return "", false
}

// enabled reports whether value turns o on. A choice is on when it differs
// from the declared default.
func (o *Option) enabled(value string) bool {
	if o.Kind == Bool {
		return value == "true"
	}
	return value != o.Default
}

func (o *Option) allowed() []string {
	if o.Kind == Bool {
		return []string{"true", "false"}
	}
	return o.Choices
}
