package probe

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/mod/semver"
)

// Well-known fact keys.
const (
	OSName          = "os.name"
	OSVersion       = "os.version"
	CPUArch         = "cpu.arch"
	CPUSSSE3        = "cpu.ssse3"
	CPUSSE41        = "cpu.sse41"
	CPUSSE42        = "cpu.sse42"
	CPUAVX          = "cpu.avx"
	CompilerFamily  = "compiler.family"
	CompilerIsClang = "compiler.isClangFamily"
	PythonPrefix    = "python.prefix"
	PythonVersion   = "python.version"
)

// ErrFactMissing is wrapped by the ProbeFailure returned for a fact that no
// query produced.
var ErrFactMissing = errors.New("fact not probed")

// Fact is one observed host value.
type Fact struct {
	Key   string
	Value string
}

// ProbeFailure reports a host query that could not run or whose output could
// not be parsed.
type ProbeFailure struct {
	Query  string
	Key    string // fact being read, if the failure surfaced through a lookup
	Output string // verbatim output of the failing command, if any
	Err    error
}

func (e *ProbeFailure) Error() string {
	var sb strings.Builder
	sb.WriteString("probe: ")
	sb.WriteString(e.Query)
	if e.Key != "" && e.Key != e.Query {
		sb.WriteString(" (")
		sb.WriteString(e.Key)
		sb.WriteByte(')')
	}
	sb.WriteString(": ")
	sb.WriteString(e.Err.Error())
	if out := strings.TrimSpace(e.Output); out != "" {
		sb.WriteString("\n")
		sb.WriteString(out)
	}
	return sb.String()
}

func (e *ProbeFailure) Unwrap() error { return e.Err }

// Facts is the immutable result of one probe run. Lookups of a fact whose
// query failed return that query's failure.
type Facts struct {
	values   map[string]string
	failures map[string]*ProbeFailure
}

// NewFacts returns a fact set holding facts. It is used to replay a recorded
// host or to build fixtures.
func NewFacts(facts ...Fact) *Facts {
	f := &Facts{
		values:   make(map[string]string, len(facts)),
		failures: make(map[string]*ProbeFailure),
	}
	for _, fact := range facts {
		f.values[fact.Key] = fact.Value
	}
	return f
}

// FromMap is NewFacts for a key/value map.
func FromMap(m map[string]string) *Facts {
	f := NewFacts()
	for k, v := range m {
		f.values[k] = v
	}
	return f
}

// String returns the raw value of key.
func (f *Facts) String(key string) (string, error) {
	if v, ok := f.values[key]; ok {
		return v, nil
	}
	if pf, ok := f.failures[key]; ok {
		ret := *pf
		ret.Key = key
		return "", &ret
	}
	return "", &ProbeFailure{Query: key, Key: key, Err: ErrFactMissing}
}

// Bool returns key parsed as a boolean.
func (f *Facts) Bool(key string) (bool, error) {
	v, err := f.String(key)
	if err != nil {
		return false, err
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, &ProbeFailure{Query: key, Key: key, Err: fmt.Errorf("not a boolean: %q", v)}
	}
	return b, nil
}

// VersionLess reports whether the dotted version stored under key is lower
// than min (e.g. "10.7").
func (f *Facts) VersionLess(key, min string) (bool, error) {
	v, err := f.String(key)
	if err != nil {
		return false, err
	}
	sv, ok := canonicalVersion(v)
	if !ok {
		return false, &ProbeFailure{Query: key, Key: key, Err: fmt.Errorf("unparsable version %q", v)}
	}
	smin, ok := canonicalVersion(min)
	if !ok {
		return false, fmt.Errorf("probe: invalid minimum version %q", min)
	}
	return semver.Compare(sv, smin) < 0, nil
}

// All returns every successfully probed fact sorted by key.
func (f *Facts) All() []Fact {
	ret := make([]Fact, 0, len(f.values))
	for k, v := range f.values {
		ret = append(ret, Fact{Key: k, Value: v})
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].Key < ret[j].Key })
	return ret
}

// Failures returns the failed queries, one entry per query, sorted by name.
func (f *Facts) Failures() []*ProbeFailure {
	seen := make(map[*ProbeFailure]bool)
	var ret []*ProbeFailure
	for _, pf := range f.failures {
		if !seen[pf] {
			seen[pf] = true
			ret = append(ret, pf)
		}
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].Query < ret[j].Query })
	return ret
}

// canonicalVersion turns "10.15.7" or "6.1.0-rc2" into a semver string.
func canonicalVersion(v string) (string, bool) {
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return "", false
	}
	return semver.Canonical(v), true
}
