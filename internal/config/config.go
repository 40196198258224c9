// Package config loads option selections and dependency locations from a
// YAML file:
//
//	options:
//	  with-qt: true
//	  video-io: quicktime
//	deps:
//	  jpeg: /usr/local/opt/jpeg
//	  tbb: ""          # explicitly not present
//	prefix: /usr/local/Cellar/opencv/2.4.9
//	bottle: false
package config

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/goplus/llarcfg/internal/env"
)

// File is the decoded configuration file.
type File struct {
	Options map[string]any    `yaml:"options"`
	Deps    map[string]string `yaml:"deps"`
	Prefix  string            `yaml:"prefix"`
	Bottle  *bool             `yaml:"bottle"`
	Jobs    int               `yaml:"jobs"`
}

// Load reads and decodes path. Unknown fields are rejected.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes a configuration document.
func Parse(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	for name, v := range f.Options {
		switch v.(type) {
		case bool, string, int:
		default:
			return nil, fmt.Errorf("config: option %q: unsupported value %v", name, v)
		}
	}
	return &f, nil
}

// Selections returns the option values as strings.
func (f *File) Selections() map[string]string {
	ret := make(map[string]string, len(f.Options))
	for name, v := range f.Options {
		switch v := v.(type) {
		case bool:
			ret[name] = strconv.FormatBool(v)
		case int:
			ret[name] = strconv.Itoa(v)
		case string:
			ret[name] = v
		}
	}
	return ret
}

// Apply overlays the file's settings on c.
func (f *File) Apply(c env.Config) env.Config {
	if f.Prefix != "" {
		c.Prefix = f.Prefix
	}
	if f.Bottle != nil {
		c.Bottle = *f.Bottle
	}
	if f.Jobs > 0 {
		c.Jobs = f.Jobs
	}
	return c
}

// Names returns the selected option names, sorted.
func (f *File) Names() []string {
	names := make([]string, 0, len(f.Options))
	for name := range f.Options {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
