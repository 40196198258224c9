// Package deps is the dependency collaborator: it reports, for each declared
// dependency, the install prefix it was installed to or that it is absent.
// Installing dependencies is somebody else's job.
package deps

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/goplus/llarcfg/formula"
)

// Resolver looks up the install prefix of dep. It returns "" with a nil
// error when dep is not present.
type Resolver interface {
	Resolve(dep formula.Dependency) (string, error)
}

// Static resolves from a fixed table, typically loaded from a config file.
// A name mapped to "" is explicitly absent.
type Static map[string]string

func (s Static) Resolve(dep formula.Dependency) (string, error) {
	return s[dep.Name], nil
}

// Opt resolves Homebrew style keg links: <Root>/opt/<name>.
type Opt struct {
	Root string
}

func (o Opt) Resolve(dep formula.Dependency) (string, error) {
	prefix := filepath.Join(o.Root, "opt", dep.Name)
	info, err := os.Stat(prefix)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	if !info.IsDir() {
		return "", nil
	}
	return prefix, nil
}

// Tools resolves build-time tools found on PATH to the prefix above their
// bin directory. Other requirements are never resolved.
type Tools struct{}

func (Tools) Resolve(dep formula.Dependency) (string, error) {
	if dep.Requirement != formula.BuildTime {
		return "", nil
	}
	bin, err := exec.LookPath(dep.Name)
	if err != nil {
		return "", nil
	}
	return filepath.Dir(filepath.Dir(bin)), nil
}

// Chain tries resolvers in order. A Static entry that is explicitly empty
// stops the chain, so a config file can mask a dependency found elsewhere.
type Chain []Resolver

func (c Chain) Resolve(dep formula.Dependency) (string, error) {
	for _, r := range c {
		if s, ok := r.(Static); ok {
			if prefix, ok := s[dep.Name]; ok {
				return prefix, nil
			}
			continue
		}
		prefix, err := r.Resolve(dep)
		if err != nil || prefix != "" {
			return prefix, err
		}
	}
	return "", nil
}

// ResolveAll resolves every dependency, filling in Path.
func ResolveAll(r Resolver, deps []formula.Dependency) (map[string]formula.Dependency, error) {
	ret := make(map[string]formula.Dependency, len(deps))
	for _, dep := range deps {
		prefix, err := r.Resolve(dep)
		if err != nil {
			return nil, fmt.Errorf("deps: resolve %s: %w", dep.Name, err)
		}
		dep.Path = prefix
		ret[dep.Name] = dep
	}
	return ret, nil
}

// MissingError lists needed dependencies that are not present.
type MissingError struct {
	Names []string
}

func (e *MissingError) Error() string {
	return "deps: not present: " + strings.Join(e.Names, ", ")
}

// CheckPresent fails with *MissingError if any of needed is absent from
// resolved.
func CheckPresent(needed []formula.Dependency, resolved map[string]formula.Dependency) error {
	var missing []string
	for _, dep := range needed {
		if !resolved[dep.Name].Present() {
			missing = append(missing, dep.Name)
		}
	}
	if len(missing) > 0 {
		return &MissingError{Names: missing}
	}
	return nil
}
