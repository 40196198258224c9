// Package buildsys defines the contract between llarcfg and an external
// native build tool.
package buildsys

import (
	"context"
	"fmt"
	"strings"
)

// Step identifies one external invocation.
type Step int

const (
	Configure Step = iota
	Compile
	Install
)

func (s Step) String() string {
	switch s {
	case Configure:
		return "configure"
	case Compile:
		return "build"
	case Install:
		return "install"
	}
	return fmt.Sprintf("step(%d)", int(s))
}

// BuildSystem captures the lifecycle shared by build tool backends. Each
// lifecycle call blocks until the external process exits; a non-zero exit is
// reported as *ToolError.
type BuildSystem interface {
	// Use makes a dependency installed at prefix visible to the tool.
	Use(prefix string)

	// Env sets a variable for the tool processes only.
	Env(key, val string)

	// Lifecycle.
	Configure(ctx context.Context, args ...string) error
	Build(ctx context.Context, args ...string) error
	Install(ctx context.Context, args ...string) error

	// Where artifacts land.
	OutputDir() string
}

// ToolError reports an external step that could not be started or exited
// non-zero. Output holds the combined stdout/stderr of the step verbatim.
type ToolError struct {
	Step     Step
	Command  []string
	ExitCode int // -1 if the process did not exit normally
	Output   string
	Err      error
}

func (e *ToolError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s", e.Step, strings.Join(e.Command, " "))
	if e.ExitCode >= 0 {
		fmt.Fprintf(&sb, ": exit status %d", e.ExitCode)
	} else {
		fmt.Fprintf(&sb, ": %v", e.Err)
	}
	return sb.String()
}

func (e *ToolError) Unwrap() error { return e.Err }
