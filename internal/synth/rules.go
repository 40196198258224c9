package synth

import (
	"fmt"
	"sort"

	"github.com/goplus/llarcfg/internal/probe"
)

// Static emits flags unconditionally.
func Static(name string, stage int, flags ...Flag) Rule {
	return Rule{
		Name:  name,
		Stage: stage,
		Eval: func(*Input) ([]Flag, error) {
			return flags, nil
		},
	}
}

// Toggle maps option to ON/OFF on every key, 1:1 with the option state.
func Toggle(option string, stage int, keys ...string) Rule {
	return Rule{
		Name:  option,
		Stage: stage,
		Eval: func(in *Input) ([]Flag, error) {
			on, err := in.Enabled(option)
			if err != nil {
				return nil, err
			}
			flags := make([]Flag, len(keys))
			for i, k := range keys {
				flags[i] = Switch(k, on)
			}
			return flags, nil
		},
	}
}

// When emits flags only while option is on.
func When(option string, stage int, flags ...Flag) Rule {
	return Rule{
		Name:  option,
		Stage: stage,
		Eval: func(in *Input) ([]Flag, error) {
			on, err := in.Enabled(option)
			if err != nil || !on {
				return nil, err
			}
			return flags, nil
		},
	}
}

// Variant emits the flags listed for the selected value of a choice option.
// Values are mutually exclusive by construction, so at most one variant's
// flags are produced. A selected value without an entry emits nothing.
func Variant(option string, stage int, variants map[string][]Flag) Rule {
	return Rule{
		Name:  option,
		Stage: stage,
		Eval: func(in *Input) ([]Flag, error) {
			v, err := in.Value(option)
			if err != nil {
				return nil, err
			}
			return variants[v], nil
		},
	}
}

// MinOSVersion forces key OFF on osName releases older than min, whatever
// earlier rules assigned. The gate always wins over user selection.
func MinOSVersion(name string, stage int, key, osName, min string) Rule {
	return Rule{
		Name:     name,
		Stage:    stage,
		Override: true,
		Eval: func(in *Input) ([]Flag, error) {
			goos, err := in.Facts.String(probe.OSName)
			if err != nil || goos != osName {
				return nil, err
			}
			old, err := in.Facts.VersionLess(probe.OSVersion, min)
			if err != nil || !old {
				return nil, err
			}
			return []Flag{Switch(key, false)}, nil
		},
	}
}

// Keys returns the sorted keys assigned by flags. It fails if a key repeats.
func Keys(flags []Flag) ([]string, error) {
	seen := make(map[string]bool, len(flags))
	keys := make([]string, 0, len(flags))
	for _, f := range flags {
		if seen[f.Key] {
			return nil, fmt.Errorf("synth: key %s assigned twice", f.Key)
		}
		seen[f.Key] = true
		keys = append(keys, f.Key)
	}
	sort.Strings(keys)
	return keys, nil
}
