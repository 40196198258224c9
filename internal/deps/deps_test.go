package deps

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/goplus/llarcfg/formula"
)

func TestOpt(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "opt", "jpeg"), 0o755); err != nil {
		t.Fatal(err)
	}
	o := Opt{Root: root}

	got, err := o.Resolve(formula.Dependency{Name: "jpeg"})
	if err != nil || got != filepath.Join(root, "opt", "jpeg") {
		t.Fatalf("Resolve(jpeg) = %q, %v", got, err)
	}
	got, err = o.Resolve(formula.Dependency{Name: "tbb"})
	if err != nil || got != "" {
		t.Fatalf("Resolve(tbb) = %q, %v", got, err)
	}
}

func TestChainStaticMasks(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"jpeg", "tbb"} {
		if err := os.MkdirAll(filepath.Join(root, "opt", name), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	c := Chain{Static{"tbb": "", "qt": "/opt/qt4"}, Opt{Root: root}}

	tests := []struct {
		name, want string
	}{
		{"jpeg", filepath.Join(root, "opt", "jpeg")},
		{"tbb", ""},
		{"qt", "/opt/qt4"},
		{"ffmpeg", ""},
	}
	for _, tt := range tests {
		got, err := c.Resolve(formula.Dependency{Name: tt.name})
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Errorf("Resolve(%s) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestToolsOnlyBuildTime(t *testing.T) {
	got, err := Tools{}.Resolve(formula.Dependency{Name: "sh", Requirement: formula.Required})
	if err != nil || got != "" {
		t.Fatalf("Resolve(required sh) = %q, %v", got, err)
	}
}

func TestCheckPresent(t *testing.T) {
	declared := []formula.Dependency{
		{Name: "jpeg", Requirement: formula.Required},
		{Name: "tbb", Requirement: formula.Optional, When: "with-tbb"},
		{Name: "cmake", Requirement: formula.BuildTime},
	}
	resolved, err := ResolveAll(Static{"jpeg": "/opt/jpeg", "cmake": "/usr"}, declared)
	if err != nil {
		t.Fatal(err)
	}
	if resolved["jpeg"].Path != "/opt/jpeg" {
		t.Fatalf("jpeg path = %q", resolved["jpeg"].Path)
	}
	if err := CheckPresent(declared[:1], resolved); err != nil {
		t.Fatalf("CheckPresent(jpeg) = %v", err)
	}
	err = CheckPresent(declared, resolved)
	var missing *MissingError
	if !errors.As(err, &missing) || len(missing.Names) != 1 || missing.Names[0] != "tbb" {
		t.Fatalf("CheckPresent = %v, want tbb missing", err)
	}
}
