package opencv

import (
	"path"
	"strings"

	"github.com/goplus/llarcfg/formula"
	"github.com/goplus/llarcfg/internal/probe"
	"github.com/goplus/llarcfg/internal/synth"
)

const (
	stageBase = iota
	stagePlatform
)

// OpenCL 1.1 is required; Snow Leopard and older ship 1.0.
const openCLMinDarwin = "10.7"

var rules = synth.Table{
	{Name: "std", Stage: stageBase, Eval: stdArgs},
	synth.Static("bundled-libs", stageBase,
		synth.Set("CMAKE_OSX_DEPLOYMENT_TARGET", ""),
		synth.Switch("BUILD_ZLIB", false),
		synth.Switch("BUILD_TIFF", false),
		synth.Switch("BUILD_PNG", false),
		synth.Switch("BUILD_OPENEXR", false),
		synth.Switch("BUILD_JASPER", false),
		synth.Switch("BUILD_JPEG", false),
	),
	{Name: "jpeg", Stage: stageBase, Eval: jpegPaths},
	{Name: "python", Stage: stageBase, Eval: pythonPaths},
	{Name: "prefix-path", Stage: stageBase, Eval: prefixPath},
	synth.Toggle("with-tests", stageBase, "BUILD_TESTS", "BUILD_PERF_TESTS"),
	synth.Toggle("with-java", stageBase, "BUILD_opencv_java"),
	synth.Toggle("with-openexr", stageBase, "WITH_OPENEXR"),
	synth.Toggle("with-qt", stageBase, "WITH_QT"),
	synth.Toggle("with-tbb", stageBase, "WITH_TBB"),
	synth.Toggle("with-ffmpeg", stageBase, "WITH_FFMPEG"),
	synth.Toggle("with-gstreamer", stageBase, "WITH_GSTREAMER"),
	synth.Variant("video-io", stageBase, map[string][]synth.Flag{
		"qtkit":     {synth.Switch("WITH_QUICKTIME", false)},
		"quicktime": {synth.Switch("WITH_QUICKTIME", true)},
	}),
	synth.Toggle("with-libdc1394", stageBase, "WITH_1394"),
	synth.Toggle("with-cuda", stageBase, "WITH_CUDA"),
	synth.When("with-cuda", stageBase, synth.Set("CMAKE_CXX_FLAGS", "-stdlib=libstdc++")),
	synth.When("cxx11", stageBase, synth.Set("CMAKE_CXX_FLAGS", "-std=c++11 -stdlib=libc++")),
	synth.Toggle("opencl", stageBase, "WITH_OPENCL"),
	synth.Toggle("with-openni", stageBase, "WITH_OPENNI"),
	{Name: "32-bit", Stage: stageBase, Eval: arch32},
	{Name: "isa-extensions", Stage: stageBase, Eval: isaExtensions},

	synth.MinOSVersion("opencl-min-os", stagePlatform, "WITH_OPENCL", "darwin", openCLMinDarwin),
}

func stdArgs(in *synth.Input) ([]synth.Flag, error) {
	return []synth.Flag{
		{Key: "CMAKE_INSTALL_PREFIX", Value: synth.Path(in.Config.Prefix)},
		synth.Set("CMAKE_BUILD_TYPE", in.Config.BuildType),
		synth.Set("CMAKE_FIND_FRAMEWORK", "LAST"),
		synth.Switch("CMAKE_VERBOSE_MAKEFILE", true),
	}, nil
}

// sharedLibExt returns the shared library suffix of the probed OS.
func sharedLibExt(in *synth.Input) (string, error) {
	goos, err := in.Facts.String(probe.OSName)
	if err != nil {
		return "", err
	}
	if goos == "darwin" {
		return ".dylib", nil
	}
	return ".so", nil
}

func jpegPaths(in *synth.Input) ([]synth.Flag, error) {
	jpeg, err := in.Dep("jpeg")
	if err != nil {
		return nil, err
	}
	ext, err := sharedLibExt(in)
	if err != nil {
		return nil, err
	}
	return []synth.Flag{
		{Key: "JPEG_INCLUDE_DIR", Value: synth.Path(path.Join(jpeg.Path, "include"))},
		{Key: "JPEG_LIBRARY", Value: synth.File(path.Join(jpeg.Path, "lib", "libjpeg"+ext))},
	}, nil
}

func pythonPaths(in *synth.Input) ([]synth.Flag, error) {
	prefix, err := in.Facts.String(probe.PythonPrefix)
	if err != nil {
		return nil, err
	}
	ver, err := in.Facts.String(probe.PythonVersion)
	if err != nil {
		return nil, err
	}
	ext, err := sharedLibExt(in)
	if err != nil {
		return nil, err
	}
	return []synth.Flag{
		{Key: "PYTHON_LIBRARY", Value: synth.File(path.Join(prefix, "lib", "libpython"+ver+ext))},
		{Key: "PYTHON_INCLUDE_DIR", Value: synth.Path(path.Join(prefix, "include", "python"+ver))},
	}, nil
}

// prefixPath lists the prefixes of the needed libraries that are present,
// in declaration order, as a cmake list. Build tools are left out: they
// usually live in system prefixes.
func prefixPath(in *synth.Input) ([]synth.Flag, error) {
	var prefixes []string
	for _, dep := range in.Options.Requirements(dependencies) {
		if dep.Requirement == formula.BuildTime {
			continue
		}
		if resolved, ok := in.Deps[dep.Name]; ok && resolved.Present() {
			prefixes = append(prefixes, resolved.Path)
		}
	}
	if len(prefixes) == 0 {
		return nil, nil
	}
	return []synth.Flag{synth.Set("CMAKE_PREFIX_PATH", strings.Join(prefixes, ";"))}, nil
}

// arch32 restricts the build to 32-bit x86. It sets the target architecture
// and the extra compiler flags for both C and C++.
func arch32(in *synth.Input) ([]synth.Flag, error) {
	on, err := in.Enabled("32-bit")
	if err != nil || !on {
		return nil, err
	}
	goos, err := in.Facts.String(probe.OSName)
	if err != nil {
		return nil, err
	}
	if goos == "darwin" {
		return []synth.Flag{
			synth.Set("CMAKE_OSX_ARCHITECTURES", "i386"),
			synth.Set("OPENCV_EXTRA_C_FLAGS", "-arch i386 -m32"),
			synth.Set("OPENCV_EXTRA_CXX_FLAGS", "-arch i386 -m32"),
		}, nil
	}
	return []synth.Flag{
		synth.Set("CMAKE_SYSTEM_PROCESSOR", "i686"),
		synth.Set("OPENCV_EXTRA_C_FLAGS", "-m32"),
		synth.Set("OPENCV_EXTRA_CXX_FLAGS", "-m32"),
	}, nil
}

var isaFlags = []struct {
	fact, key string
}{
	{probe.CPUSSSE3, "ENABLE_SSSE3"},
	{probe.CPUSSE41, "ENABLE_SSE41"},
	{probe.CPUSSE42, "ENABLE_SSE42"},
	{probe.CPUAVX, "ENABLE_AVX"},
}

// isaExtensions enables host instruction-set extensions when building with
// clang for this machine only. Redistributable artifacts and 32-bit builds
// never get them.
func isaExtensions(in *synth.Input) ([]synth.Flag, error) {
	arch32, err := in.Enabled("32-bit")
	if err != nil || arch32 || in.Config.Bottle {
		return nil, err
	}
	clang, err := in.Facts.Bool(probe.CompilerIsClang)
	if err != nil || !clang {
		return nil, err
	}
	var flags []synth.Flag
	for _, isa := range isaFlags {
		has, err := in.Facts.Bool(isa.fact)
		if err != nil {
			return nil, err
		}
		if has {
			flags = append(flags, synth.Switch(isa.key, true))
		}
	}
	return flags, nil
}
