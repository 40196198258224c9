package synth

import "strings"

// Value is a typed CMake cache value.
type Value struct {
	Text string
	Type string // BOOL, STRING, PATH or FILEPATH
}

// Bool renders b as ON/OFF.
func Bool(b bool) Value {
	if b {
		return Value{Text: "ON", Type: "BOOL"}
	}
	return Value{Text: "OFF", Type: "BOOL"}
}

// String is a verbatim string value.
func String(s string) Value { return Value{Text: s, Type: "STRING"} }

// Path is a directory value.
func Path(s string) Value { return Value{Text: s, Type: "PATH"} }

// File is a file path value.
func File(s string) Value { return Value{Text: s, Type: "FILEPATH"} }

// Flag is one key/value assignment handed to the configure step.
type Flag struct {
	Key   string
	Value Value
}

// Set returns a string flag.
func Set(key, value string) Flag { return Flag{Key: key, Value: String(value)} }

// Switch returns an ON/OFF flag.
func Switch(key string, on bool) Flag { return Flag{Key: key, Value: Bool(on)} }

// String returns "KEY=VALUE".
func (f Flag) String() string {
	return f.Key + "=" + f.Value.Text
}

// Arg renders f as a cmake command line definition, -DKEY:TYPE=VALUE.
func (f Flag) Arg() string {
	var sb strings.Builder
	sb.WriteString("-D")
	sb.WriteString(f.Key)
	if f.Value.Type != "" {
		sb.WriteByte(':')
		sb.WriteString(f.Value.Type)
	}
	sb.WriteByte('=')
	sb.WriteString(f.Value.Text)
	return sb.String()
}
