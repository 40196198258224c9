package formula

import (
	"fmt"
	"strings"
)

// DuplicateOptionError is returned when an option is declared twice.
type DuplicateOptionError struct {
	Name string
}

func (e *DuplicateOptionError) Error() string {
	return fmt.Sprintf("options: option %q already declared", e.Name)
}

// UnknownOptionError is returned when an undeclared option is referenced.
type UnknownOptionError struct {
	Name string
}

func (e *UnknownOptionError) Error() string {
	return fmt.Sprintf("options: unknown option %q", e.Name)
}

// InvalidValueError is returned when a selection is outside an option's domain.
type InvalidValueError struct {
	Name    string
	Value   string
	Allowed []string
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("options: invalid value %q for %q (want one of %s)",
		e.Value, e.Name, strings.Join(e.Allowed, ", "))
}

// ConflictError reports two parties that cannot both hold. Component is
// "options" for mutually exclusive selections and "synth" for rules assigning
// the same flag key without a defined precedence.
type ConflictError struct {
	Component string
	A, B      string
	Key       string // flag key, synth conflicts only
}

func (e *ConflictError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s: rules %q and %q both assign %s", e.Component, e.A, e.B, e.Key)
	}
	return fmt.Sprintf("%s: %q conflicts with %q", e.Component, e.A, e.B)
}
