package formula

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotValidated is returned by Snapshot when Validate has not succeeded
// since the last change to the registry.
var ErrNotValidated = errors.New("options: selections not validated")

// Registry holds the declared option set of a recipe and the selections made
// for one invocation. A Registry is not safe for concurrent use.
type Registry struct {
	opts       map[string]*Option
	order      []string
	sel        map[string]string
	exclusions [][2]string
	validated  bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		opts: make(map[string]*Option),
		sel:  make(map[string]string),
	}
}

// Declare registers opt. Options are immutable once declared.
func (r *Registry) Declare(opt Option) error {
	if _, ok := r.opts[opt.Name]; ok {
		return &DuplicateOptionError{Name: opt.Name}
	}
	def, ok := opt.check(opt.Default)
	if !ok {
		return &InvalidValueError{Name: opt.Name, Value: opt.Default, Allowed: opt.allowed()}
	}
	opt.Default = def
	r.opts[opt.Name] = &opt
	r.order = append(r.order, opt.Name)
	r.validated = false
	return nil
}

// Exclude declares that options a and b must not both be enabled.
func (r *Registry) Exclude(a, b string) {
	r.exclusions = append(r.exclusions, [2]string{a, b})
	r.validated = false
}

// Select records the user's choice for name. Each option may be selected at
// most once.
func (r *Registry) Select(name, value string) error {
	opt, ok := r.opts[name]
	if !ok {
		return &UnknownOptionError{Name: name}
	}
	v, ok := opt.check(value)
	if !ok {
		return &InvalidValueError{Name: name, Value: value, Allowed: opt.allowed()}
	}
	if prev, ok := r.sel[name]; ok && prev != v {
		return fmt.Errorf("options: %q already selected as %q", name, prev)
	}
	r.sel[name] = v
	r.validated = false
	return nil
}

// ValueOf returns the selected value of name, or its default.
func (r *Registry) ValueOf(name string) (string, error) {
	opt, ok := r.opts[name]
	if !ok {
		return "", &UnknownOptionError{Name: name}
	}
	if v, ok := r.sel[name]; ok {
		return v, nil
	}
	return opt.Default, nil
}

// IsEnabled reports whether name is on.
func (r *Registry) IsEnabled(name string) (bool, error) {
	v, err := r.ValueOf(name)
	if err != nil {
		return false, err
	}
	return r.opts[name].enabled(v), nil
}

// Options returns the declared options in declaration order.
func (r *Registry) Options() []Option {
	ret := make([]Option, 0, len(r.order))
	for _, name := range r.order {
		ret = append(ret, *r.opts[name])
	}
	return ret
}

// Validate checks every exclusion constraint against the current selections.
// It must succeed before Snapshot.
func (r *Registry) Validate() error {
	for _, ex := range r.exclusions {
		a, err := r.IsEnabled(ex[0])
		if err != nil {
			return err
		}
		b, err := r.IsEnabled(ex[1])
		if err != nil {
			return err
		}
		if a && b {
			return &ConflictError{Component: "options", A: ex[0], B: ex[1]}
		}
	}
	r.validated = true
	return nil
}

// Snapshot freezes the resolved value of every option.
func (r *Registry) Snapshot() (*Selections, error) {
	if !r.validated {
		return nil, ErrNotValidated
	}
	s := &Selections{
		opts:   make(map[string]Option, len(r.opts)),
		values: make(map[string]string, len(r.opts)),
		order:  append([]string(nil), r.order...),
	}
	for _, name := range r.order {
		opt := r.opts[name]
		s.opts[name] = *opt
		s.values[name], _ = r.ValueOf(name)
	}
	return s, nil
}

// Selections is an immutable view of resolved option values.
type Selections struct {
	opts   map[string]Option
	values map[string]string
	order  []string
}

// Value returns the resolved value of name.
func (s *Selections) Value(name string) (string, error) {
	v, ok := s.values[name]
	if !ok {
		return "", &UnknownOptionError{Name: name}
	}
	return v, nil
}

// Enabled reports whether name is on.
func (s *Selections) Enabled(name string) (bool, error) {
	v, err := s.Value(name)
	if err != nil {
		return false, err
	}
	opt := s.opts[name]
	return opt.enabled(v), nil
}

// Requirements returns the dependencies needed by these selections, in
// declaration order: unconditional ones, ones gated by an enabled option,
// and ones implied by an enabled option.
func (s *Selections) Requirements(deps []Dependency) []Dependency {
	implied := make(map[string]bool)
	for _, name := range s.order {
		opt := s.opts[name]
		if opt.Implies != "" && opt.enabled(s.values[name]) {
			implied[opt.Implies] = true
		}
	}
	var ret []Dependency
	for _, dep := range deps {
		need := dep.When == "" || implied[dep.Name]
		if !need {
			need, _ = s.Enabled(dep.When)
		}
		if need {
			ret = append(ret, dep)
		}
	}
	return ret
}

// String renders the selections as "name=value" pairs in declaration order.
func (s *Selections) String() string {
	var sb strings.Builder
	for i, name := range s.order {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(name)
		sb.WriteByte('=')
		sb.WriteString(s.values[name])
	}
	return sb.String()
}
