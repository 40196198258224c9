// Package patch applies bundled source patches to an extracted source tree.
//
// Application is all-or-nothing: every hunk and substitution is computed in
// memory against the original files before anything is written, and a write
// failure restores the files already replaced.
package patch

import (
	"bytes"
	"errors"
	"fmt"
	"path"
	"slices"
	"sort"
	"strings"

	"github.com/bluekeyes/go-gitdiff/gitdiff"
)

// ErrTargetMissing is wrapped by the PatchFailure for a target path that is
// absent from the source tree.
var ErrTargetMissing = errors.New("target not present in source tree")

// PatchFailure reports the first hunk, substitution or file that could not be
// applied. When it is returned the source tree is unchanged.
type PatchFailure struct {
	Patch  string
	Path   string
	Hunk   int    // 1-based hunk number within Path, 0 if not hunk related
	Header string // hunk header, e.g. "@@ -1528,17 +1528,17 @@"
	Err    error
}

func (e *PatchFailure) Error() string {
	var sb strings.Builder
	sb.WriteString("patch")
	if e.Patch != "" {
		sb.WriteString(" " + e.Patch)
	}
	if e.Path != "" {
		sb.WriteString(": " + e.Path)
	}
	if e.Hunk > 0 {
		fmt.Fprintf(&sb, ": hunk #%d", e.Hunk)
		if e.Header != "" {
			sb.WriteString(" (" + e.Header + ")")
		}
	}
	sb.WriteString(": ")
	sb.WriteString(e.Err.Error())
	return sb.String()
}

func (e *PatchFailure) Unwrap() error { return e.Err }

// Set is an immutable unified diff together with the paths it may touch.
type Set struct {
	Name    string
	Diff    []byte
	Targets []string // slash-separated, relative to the source root, sorted

	files []*gitdiff.File
}

// Parse parses diff. When targets are given they must list exactly the files
// the diff touches; otherwise they are derived from the diff.
func Parse(name string, diff []byte, targets ...string) (*Set, error) {
	files, _, err := gitdiff.Parse(bytes.NewReader(diff))
	if err != nil {
		return nil, fmt.Errorf("patch %s: %w", name, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("patch %s: no file changes", name)
	}
	touched := make([]string, 0, len(files))
	for _, f := range files {
		if f.IsRename || f.IsCopy {
			return nil, fmt.Errorf("patch %s: %s: renames and copies are not supported", name, f.OldName)
		}
		if f.IsBinary {
			return nil, fmt.Errorf("patch %s: %s: binary patches are not supported", name, f.NewName)
		}
		p, err := cleanPath(fileName(f))
		if err != nil {
			return nil, fmt.Errorf("patch %s: %w", name, err)
		}
		touched = append(touched, p)
	}
	sort.Strings(touched)
	touched = slices.Compact(touched)

	if len(targets) > 0 {
		declared := make([]string, 0, len(targets))
		for _, t := range targets {
			p, err := cleanPath(t)
			if err != nil {
				return nil, fmt.Errorf("patch %s: %w", name, err)
			}
			declared = append(declared, p)
		}
		sort.Strings(declared)
		declared = slices.Compact(declared)
		if !slices.Equal(declared, touched) {
			return nil, fmt.Errorf("patch %s: declared targets %v do not match files in diff %v", name, declared, touched)
		}
	}
	return &Set{
		Name:    name,
		Diff:    slices.Clone(diff),
		Targets: touched,
		files:   files,
	}, nil
}

// Substitution replaces every occurrence of Old with New in Path. It models
// in-place source edits that are computed at build time rather than bundled.
type Substitution struct {
	Path string
	Old  string
	New  string
}

func fileName(f *gitdiff.File) string {
	if f.IsDelete {
		return f.OldName
	}
	return f.NewName
}

// cleanPath normalizes a diff or target path to a slash-separated path
// relative to the source root. A leading "a/" or "b/" is dropped as with
// patch -p1.
func cleanPath(p string) (string, error) {
	if strings.HasPrefix(p, "a/") || strings.HasPrefix(p, "b/") {
		p = p[2:]
	}
	c := path.Clean(p)
	if c == "." || path.IsAbs(c) || c == ".." || strings.HasPrefix(c, "../") {
		return "", fmt.Errorf("invalid target path %q", p)
	}
	return c, nil
}
