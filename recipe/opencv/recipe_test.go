package opencv

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/goplus/llarcfg/formula"
	"github.com/goplus/llarcfg/internal/env"
	"github.com/goplus/llarcfg/internal/probe"
	"github.com/goplus/llarcfg/internal/synth"
)

func hostFacts(overrides map[string]string) map[string]string {
	m := map[string]string{
		probe.OSName:          "darwin",
		probe.OSVersion:       "10.13.6",
		probe.CPUArch:         "amd64",
		probe.CPUSSSE3:        "true",
		probe.CPUSSE41:        "true",
		probe.CPUSSE42:        "true",
		probe.CPUAVX:          "false",
		probe.CompilerFamily:  "clang",
		probe.CompilerIsClang: "true",
		probe.PythonPrefix:    "/py",
		probe.PythonVersion:   "2.7",
	}
	for k, v := range overrides {
		if v == "" {
			delete(m, k)
			continue
		}
		m[k] = v
	}
	return m
}

func allDeps() map[string]formula.Dependency {
	ret := make(map[string]formula.Dependency)
	for _, d := range dependencies {
		d.Path = "/opt/" + d.Name
		ret[d.Name] = d
	}
	return ret
}

func selections(t *testing.T, sel map[string]string) *formula.Selections {
	t.Helper()
	reg := formula.NewRegistry()
	if err := New().Declare(reg); err != nil {
		t.Fatalf("Declare: %v", err)
	}
	for name, v := range sel {
		if err := reg.Select(name, v); err != nil {
			t.Fatalf("Select(%s, %s): %v", name, v, err)
		}
	}
	if err := reg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	snap, err := reg.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	return snap
}

func input(t *testing.T, sel, facts map[string]string, bottle bool) *synth.Input {
	t.Helper()
	cfg := env.Default()
	cfg.Bottle = bottle
	return &synth.Input{
		Options: selections(t, sel),
		Facts:   probe.FromMap(hostFacts(facts)),
		Config:  cfg,
		Deps:    allDeps(),
	}
}

func synthesize(t *testing.T, in *synth.Input) map[string]string {
	t.Helper()
	flags, err := synth.Synthesize(New().Rules(), in)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	m := make(map[string]string, len(flags))
	for _, f := range flags {
		m[f.Key] = f.Value.Text
	}
	return m
}

func TestDefaultPlan(t *testing.T) {
	flags, err := synth.Synthesize(New().Rules(), input(t, nil, nil, false))
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, f := range flags {
		got = append(got, f.Arg())
	}
	want := []string{
		"-DCMAKE_INSTALL_PREFIX:PATH=/usr/local",
		"-DCMAKE_BUILD_TYPE:STRING=Release",
		"-DCMAKE_FIND_FRAMEWORK:STRING=LAST",
		"-DCMAKE_VERBOSE_MAKEFILE:BOOL=ON",
		"-DCMAKE_OSX_DEPLOYMENT_TARGET:STRING=",
		"-DBUILD_ZLIB:BOOL=OFF",
		"-DBUILD_TIFF:BOOL=OFF",
		"-DBUILD_PNG:BOOL=OFF",
		"-DBUILD_OPENEXR:BOOL=OFF",
		"-DBUILD_JASPER:BOOL=OFF",
		"-DBUILD_JPEG:BOOL=OFF",
		"-DJPEG_INCLUDE_DIR:PATH=/opt/jpeg/include",
		"-DJPEG_LIBRARY:FILEPATH=/opt/jpeg/lib/libjpeg.dylib",
		"-DPYTHON_LIBRARY:FILEPATH=/py/lib/libpython2.7.dylib",
		"-DPYTHON_INCLUDE_DIR:PATH=/py/include/python2.7",
		"-DCMAKE_PREFIX_PATH:STRING=/opt/jpeg;/opt/libpng;/opt/libtiff;/opt/openexr",
		"-DBUILD_TESTS:BOOL=OFF",
		"-DBUILD_PERF_TESTS:BOOL=OFF",
		"-DBUILD_opencv_java:BOOL=OFF",
		"-DWITH_OPENEXR:BOOL=ON",
		"-DWITH_QT:BOOL=OFF",
		"-DWITH_TBB:BOOL=OFF",
		"-DWITH_FFMPEG:BOOL=OFF",
		"-DWITH_GSTREAMER:BOOL=OFF",
		"-DWITH_QUICKTIME:BOOL=OFF",
		"-DWITH_1394:BOOL=OFF",
		"-DWITH_CUDA:BOOL=OFF",
		"-DWITH_OPENCL:BOOL=ON",
		"-DWITH_OPENNI:BOOL=OFF",
		"-DENABLE_SSSE3:BOOL=ON",
		"-DENABLE_SSE41:BOOL=ON",
		"-DENABLE_SSE42:BOOL=ON",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("plan mismatch\ngot:\n%s\nwant:\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}
}

func TestScenarios(t *testing.T) {
	tests := []struct {
		name   string
		sel    map[string]string
		facts  map[string]string
		bottle bool
		want   map[string]string
		absent []string
	}{
		{
			name:  "opencl gated on old darwin",
			sel:   map[string]string{"opencl": "true"},
			facts: map[string]string{probe.OSVersion: "10.5"},
			want:  map[string]string{"WITH_OPENCL": "OFF"},
		},
		{
			name:  "opencl kept on 10.7",
			facts: map[string]string{probe.OSVersion: "10.7"},
			want:  map[string]string{"WITH_OPENCL": "ON"},
		},
		{
			name:  "opencl not gated on linux",
			facts: map[string]string{probe.OSName: "linux", probe.OSVersion: "2.6.32"},
			want:  map[string]string{"WITH_OPENCL": "ON", "JPEG_LIBRARY": "/opt/jpeg/lib/libjpeg.so"},
		},
		{
			name: "32-bit on darwin",
			sel:  map[string]string{"32-bit": "true"},
			want: map[string]string{
				"CMAKE_OSX_ARCHITECTURES": "i386",
				"OPENCV_EXTRA_C_FLAGS":    "-arch i386 -m32",
				"OPENCV_EXTRA_CXX_FLAGS":  "-arch i386 -m32",
			},
			absent: []string{"ENABLE_SSSE3", "ENABLE_SSE41", "ENABLE_SSE42", "ENABLE_AVX"},
		},
		{
			name:  "32-bit on linux",
			sel:   map[string]string{"32-bit": "true"},
			facts: map[string]string{probe.OSName: "linux"},
			want: map[string]string{
				"CMAKE_SYSTEM_PROCESSOR": "i686",
				"OPENCV_EXTRA_C_FLAGS":   "-m32",
				"OPENCV_EXTRA_CXX_FLAGS": "-m32",
			},
			absent: []string{"CMAKE_OSX_ARCHITECTURES", "ENABLE_SSSE3"},
		},
		{
			name:   "bottle skips isa extensions",
			bottle: true,
			absent: []string{"ENABLE_SSSE3", "ENABLE_SSE41", "ENABLE_SSE42", "ENABLE_AVX"},
		},
		{
			name:   "gcc skips isa extensions",
			facts:  map[string]string{probe.CompilerFamily: "gcc", probe.CompilerIsClang: "false"},
			absent: []string{"ENABLE_SSSE3"},
		},
		{
			name:  "avx host",
			facts: map[string]string{probe.CPUAVX: "true"},
			want:  map[string]string{"ENABLE_AVX": "ON"},
		},
		{
			name: "tests toggle both flags",
			sel:  map[string]string{"with-tests": "true"},
			want: map[string]string{"BUILD_TESTS": "ON", "BUILD_PERF_TESTS": "ON"},
		},
		{
			name: "quicktime backend",
			sel:  map[string]string{"video-io": "quicktime"},
			want: map[string]string{"WITH_QUICKTIME": "ON"},
		},
		{
			name: "cuda",
			sel:  map[string]string{"with-cuda": "true"},
			want: map[string]string{"WITH_CUDA": "ON", "CMAKE_CXX_FLAGS": "-stdlib=libstdc++"},
		},
		{
			name: "cxx11",
			sel:  map[string]string{"cxx11": "true"},
			want: map[string]string{"CMAKE_CXX_FLAGS": "-std=c++11 -stdlib=libc++"},
		},
		{
			name: "build tools stay out of prefix path",
			sel:  map[string]string{"with-java": "true"},
			want: map[string]string{
				"BUILD_opencv_java": "ON",
				"CMAKE_PREFIX_PATH": "/opt/jpeg;/opt/libpng;/opt/libtiff;/opt/openexr",
			},
		},
		{
			name: "enabled optional library joins prefix path",
			sel:  map[string]string{"with-tbb": "true"},
			want: map[string]string{
				"CMAKE_PREFIX_PATH": "/opt/jpeg;/opt/libpng;/opt/libtiff;/opt/openexr;/opt/tbb",
			},
		},
		{
			name: "openexr off",
			sel:  map[string]string{"with-openexr": "false"},
			want: map[string]string{"WITH_OPENEXR": "OFF"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := synthesize(t, input(t, tt.sel, tt.facts, tt.bottle))
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("%s = %q, want %q", k, got[k], v)
				}
			}
			for _, k := range tt.absent {
				if v, ok := got[k]; ok {
					t.Errorf("%s = %q, want absent", k, v)
				}
			}
		})
	}
}

func TestDeterministic(t *testing.T) {
	sel := map[string]string{"with-tests": "true", "with-qt": "true", "video-io": "quicktime"}
	in := input(t, sel, nil, false)
	a, err := synth.Synthesize(New().Rules(), in)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		b, err := synth.Synthesize(New().Rules(), input(t, sel, nil, false))
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(a, b) {
			t.Fatalf("run %d differs", i)
		}
	}
}

func TestExclusions(t *testing.T) {
	tests := [][2]string{
		{"32-bit", "with-cuda"},
		{"with-cuda", "cxx11"},
	}
	for _, tt := range tests {
		reg := formula.NewRegistry()
		if err := New().Declare(reg); err != nil {
			t.Fatal(err)
		}
		for _, name := range tt {
			if err := reg.Select(name, "true"); err != nil {
				t.Fatal(err)
			}
		}
		var ce *formula.ConflictError
		if err := reg.Validate(); !errors.As(err, &ce) {
			t.Fatalf("%v: Validate = %v, want *ConflictError", tt, err)
		}
	}
}

func TestMissingFactFailsLoudly(t *testing.T) {
	in := input(t, nil, map[string]string{probe.PythonPrefix: ""}, false)
	_, err := synth.Synthesize(New().Rules(), in)
	var re *synth.RuleError
	if !errors.As(err, &re) || re.Rule != "python" {
		t.Fatalf("got %v, want python rule failure", err)
	}
	if !errors.Is(err, probe.ErrFactMissing) {
		t.Fatalf("got %v, want ErrFactMissing", err)
	}
}

func TestMissingJPEG(t *testing.T) {
	in := input(t, nil, nil, false)
	delete(in.Deps, "jpeg")
	_, err := synth.Synthesize(New().Rules(), in)
	var me *synth.MissingDependencyError
	if !errors.As(err, &me) || me.Name != "jpeg" {
		t.Fatalf("got %v", err)
	}
}

func TestPatch(t *testing.T) {
	set, err := New().Patch()
	if err != nil {
		t.Fatalf("Patch: %v", err)
	}
	if set.Name != "bow" || !reflect.DeepEqual(set.Targets, bowTargets) {
		t.Fatalf("set = %s %v", set.Name, set.Targets)
	}
}

func TestEdits(t *testing.T) {
	edits, err := New().Edits(input(t, nil, nil, false))
	if err != nil || len(edits) != 0 {
		t.Fatalf("Edits without openni = %v, %v", edits, err)
	}

	edits, err = New().Edits(input(t, map[string]string{"with-openni": "true"}, nil, false))
	if err != nil {
		t.Fatal(err)
	}
	if len(edits) != 2 {
		t.Fatalf("edits = %v", edits)
	}
	for _, e := range edits {
		if e.Path != openNIFinder || !strings.HasPrefix(e.New, "/opt/openni/") {
			t.Errorf("edit = %+v", e)
		}
	}
}
