// Package probe collects read-only facts about the build host: OS version,
// CPU instruction-set support, compiler family and the Python installation.
package probe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"runtime"
	"strconv"
	"strings"

	"github.com/qiniu/x/log"
	"golang.org/x/sys/cpu"

	"github.com/goplus/llarcfg/internal/env"
)

// Runner executes a host command and returns its combined output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	return out.Bytes(), err
}

// Host is what a query may consult.
type Host struct {
	Runner    Runner
	Config    env.Config
	GOOS      string
	GOARCH    string
	OSVersion func() (string, error)
	CPU       CPUFeatures
}

// CPUFeatures are the x86 extensions the recipe cares about.
type CPUFeatures struct {
	SSSE3, SSE41, SSE42, AVX bool
}

// Query is one read-only host lookup producing the facts named by Keys.
type Query struct {
	Name string
	Keys []string
	Run  func(ctx context.Context, h *Host) ([]Fact, error)
}

// Prober runs a fixed list of queries against a host.
type Prober struct {
	Host    Host
	Queries []Query
}

// New returns a Prober for the running host.
func New(cfg env.Config) *Prober {
	return &Prober{
		Host: Host{
			Runner:    ExecRunner{},
			Config:    cfg,
			GOOS:      runtime.GOOS,
			GOARCH:    runtime.GOARCH,
			OSVersion: hostOSVersion,
			CPU: CPUFeatures{
				SSSE3: cpu.X86.HasSSSE3,
				SSE41: cpu.X86.HasSSE41,
				SSE42: cpu.X86.HasSSE42,
				AVX:   cpu.X86.HasAVX,
			},
		},
		Queries: DefaultQueries(),
	}
}

// Probe runs every query in order. A failing query is recorded against each
// of its keys and does not stop the remaining queries.
func (p *Prober) Probe(ctx context.Context) *Facts {
	facts := NewFacts()
	for _, q := range p.Queries {
		got, err := q.Run(ctx, &p.Host)
		if err != nil {
			var pf *ProbeFailure
			if !errors.As(err, &pf) {
				pf = &ProbeFailure{Query: q.Name, Err: err}
			}
			log.Warnf("probe %s failed: %v", q.Name, pf.Err)
			for _, key := range q.Keys {
				facts.failures[key] = pf
			}
			continue
		}
		for _, fact := range got {
			log.Debugf("probe %s: %s=%s", q.Name, fact.Key, fact.Value)
			facts.values[fact.Key] = fact.Value
		}
	}
	return facts
}

// DefaultQueries returns the queries run for every build, in order.
func DefaultQueries() []Query {
	return []Query{
		{Name: "os", Keys: []string{OSName, OSVersion}, Run: queryOS},
		{Name: "cpu", Keys: []string{CPUArch, CPUSSSE3, CPUSSE41, CPUSSE42, CPUAVX}, Run: queryCPU},
		{Name: "compiler", Keys: []string{CompilerFamily, CompilerIsClang}, Run: queryCompiler},
		{Name: "python.prefix", Keys: []string{PythonPrefix}, Run: queryPythonPrefix},
		{Name: "python.version", Keys: []string{PythonVersion}, Run: queryPythonVersion},
	}
}

var leadingVersion = regexp.MustCompile(`^\d+(\.\d+){0,2}`)

func queryOS(ctx context.Context, h *Host) ([]Fact, error) {
	raw, err := h.OSVersion()
	if err != nil {
		return nil, &ProbeFailure{Query: "os", Err: err}
	}
	ver := leadingVersion.FindString(strings.TrimSpace(raw))
	if ver == "" {
		return nil, &ProbeFailure{Query: "os", Output: raw, Err: errors.New("unparsable OS version")}
	}
	return []Fact{
		{Key: OSName, Value: h.GOOS},
		{Key: OSVersion, Value: ver},
	}, nil
}

func queryCPU(ctx context.Context, h *Host) ([]Fact, error) {
	return []Fact{
		{Key: CPUArch, Value: h.GOARCH},
		{Key: CPUSSSE3, Value: strconv.FormatBool(h.CPU.SSSE3)},
		{Key: CPUSSE41, Value: strconv.FormatBool(h.CPU.SSE41)},
		{Key: CPUSSE42, Value: strconv.FormatBool(h.CPU.SSE42)},
		{Key: CPUAVX, Value: strconv.FormatBool(h.CPU.AVX)},
	}, nil
}

func queryCompiler(ctx context.Context, h *Host) ([]Fact, error) {
	out, err := h.Runner.Run(ctx, h.Config.CC, "--version")
	if err != nil {
		return nil, &ProbeFailure{Query: "compiler", Output: string(out), Err: err}
	}
	family := CompilerFamilyOf(string(out))
	if family == "" {
		return nil, &ProbeFailure{Query: "compiler", Output: string(out),
			Err: fmt.Errorf("cannot identify compiler %q", h.Config.CC)}
	}
	return []Fact{
		{Key: CompilerFamily, Value: family},
		{Key: CompilerIsClang, Value: strconv.FormatBool(family == "clang")},
	}, nil
}

// CompilerFamilyOf classifies the output of "cc --version" as "clang" or
// "gcc". It returns "" when neither matches.
func CompilerFamilyOf(versionOutput string) string {
	s := strings.ToLower(versionOutput)
	switch {
	case strings.Contains(s, "clang"):
		return "clang"
	case strings.Contains(s, "gcc"), strings.Contains(s, "free software foundation"):
		return "gcc"
	}
	return ""
}

func queryPythonPrefix(ctx context.Context, h *Host) ([]Fact, error) {
	out, err := h.Runner.Run(ctx, h.Config.Python+"-config", "--prefix")
	if err != nil {
		return nil, &ProbeFailure{Query: "python.prefix", Output: string(out), Err: err}
	}
	prefix := strings.TrimSpace(string(out))
	if !strings.HasPrefix(prefix, "/") && !strings.Contains(prefix, `:\`) {
		return nil, &ProbeFailure{Query: "python.prefix", Output: string(out), Err: errors.New("prefix is not an absolute path")}
	}
	return []Fact{{Key: PythonPrefix, Value: prefix}}, nil
}

var majorMinor = regexp.MustCompile(`^\d+\.\d+$`)

func queryPythonVersion(ctx context.Context, h *Host) ([]Fact, error) {
	out, err := h.Runner.Run(ctx, h.Config.Python, "-c", "import sys; print('%d.%d' % sys.version_info[:2])")
	if err != nil {
		return nil, &ProbeFailure{Query: "python.version", Output: string(out), Err: err}
	}
	ver := strings.TrimSpace(string(out))
	if !majorMinor.MatchString(ver) {
		return nil, &ProbeFailure{Query: "python.version", Output: string(out), Err: errors.New("unparsable version")}
	}
	return []Fact{{Key: PythonVersion, Value: ver}}, nil
}
