package build

import (
	"context"
	"os"
	"path/filepath"

	"github.com/goplus/llarcfg/formula"
	"github.com/goplus/llarcfg/internal/patch"
	"github.com/goplus/llarcfg/internal/probe"
	"github.com/goplus/llarcfg/internal/synth"
	"github.com/goplus/llarcfg/pkgs/buildsys"
)

const mockDiff = `diff --git a/src/main.c b/src/main.c
--- a/src/main.c
+++ b/src/main.c
@@ -1,3 +1,3 @@
 int main(void) {
-	return 1;
+	return 0;
 }
`

const mockSource = "int main(void) {\n\treturn 1;\n}\n"

// mockRecipe has two boolean options that exclude each other, one optional
// dependency gated by "with-zlib" and a three rule table.
type mockRecipe struct {
	diff  string
	extra synth.Table // appended to the rule table
}

func (*mockRecipe) Name() string { return "mock" }

func (*mockRecipe) Declare(r *formula.Registry) error {
	for _, opt := range []formula.Option{
		formula.BoolOption("with-tests", "build tests", false),
		formula.BoolOption("with-zlib", "link zlib", false),
		formula.BoolOption("static", "static libs", false),
	} {
		if err := r.Declare(opt); err != nil {
			return err
		}
	}
	r.Exclude("with-zlib", "static")
	return nil
}

func (*mockRecipe) Dependencies() []formula.Dependency {
	return []formula.Dependency{
		{Name: "cmake", Requirement: formula.BuildTime},
		{Name: "zlib", Requirement: formula.Optional, When: "with-zlib"},
	}
}

func (m *mockRecipe) Rules() synth.Table {
	t := synth.Table{
		synth.Static("std", 0, synth.Set("CMAKE_BUILD_TYPE", "Release")),
		synth.Toggle("with-tests", 0, "BUILD_TESTS"),
		synth.Toggle("with-zlib", 0, "WITH_ZLIB"),
	}
	return append(t, m.extra...)
}

func (m *mockRecipe) Patch() (*patch.Set, error) {
	diff := m.diff
	if diff == "" {
		diff = mockDiff
	}
	return patch.Parse("mock", []byte(diff), "src/main.c")
}

func (*mockRecipe) Edits(*synth.Input) ([]patch.Substitution, error) { return nil, nil }

// mockProber counts calls and returns fixed facts.
type mockProber struct {
	calls int
}

func (p *mockProber) Probe(context.Context) *probe.Facts {
	p.calls++
	return probe.FromMap(map[string]string{
		probe.OSName:    "linux",
		probe.OSVersion: "6.1",
	})
}

// mockSystem records lifecycle calls and fails the step named in fail.
// Install reports installed as written below out, plus a file outside it.
type mockSystem struct {
	out       string
	fail      buildsys.Step
	fails     bool
	calls     []string
	args      []string
	used      []string
	installed []string
}

func (m *mockSystem) InstalledFiles() ([]string, error) {
	files := []string{"/elsewhere/share/stray.txt"}
	for _, name := range m.installed {
		files = append(files, filepath.Join(m.out, filepath.FromSlash(name)))
	}
	return files, nil
}

func (m *mockSystem) Use(prefix string)   { m.used = append(m.used, prefix) }
func (m *mockSystem) Env(key, val string) {}
func (m *mockSystem) OutputDir() string   { return m.out }

func (m *mockSystem) step(s buildsys.Step) error {
	m.calls = append(m.calls, s.String())
	if m.fails && m.fail == s {
		return &buildsys.ToolError{Step: s, Command: []string{"tool"}, ExitCode: 2, Output: "boom\n"}
	}
	if s == buildsys.Install {
		return os.MkdirAll(m.out, 0o755)
	}
	return nil
}

func (m *mockSystem) Configure(_ context.Context, args ...string) error {
	m.args = args
	return m.step(buildsys.Configure)
}

func (m *mockSystem) Build(context.Context, ...string) error {
	return m.step(buildsys.Compile)
}

func (m *mockSystem) Install(context.Context, ...string) error {
	return m.step(buildsys.Install)
}

// writeSource creates a source tree holding src/main.c.
func writeSource(dir string) error {
	p := filepath.Join(dir, "src", "main.c")
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	return os.WriteFile(p, []byte(mockSource), 0o644)
}
