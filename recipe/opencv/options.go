package opencv

import "github.com/goplus/llarcfg/formula"

var options = []formula.Option{
	formula.BoolOption("32-bit", "Build 32-bit only", false),
	formula.BoolOption("with-java", "Build with Java support", false).WithImplies("ant"),
	formula.BoolOption("with-qt", "Build the Qt4 backend to HighGUI", false),
	formula.BoolOption("with-tbb", "Enable parallel code in OpenCV using Intel TBB", false),
	formula.BoolOption("with-tests", "Build with accuracy & performance tests", false),
	formula.BoolOption("opencl", "Build GPU code in OpenCV using OpenCL", true),
	formula.BoolOption("with-cuda", "Build with CUDA support", false),
	formula.ChoiceOption("video-io", "Video I/O backend", "qtkit", "qtkit", "quicktime"),
	formula.BoolOption("cxx11", "Build using C++11 mode", false),

	formula.BoolOption("with-eigen", "Build with eigen support", false),
	formula.BoolOption("with-gstreamer", "Build with gstreamer support", false),
	formula.BoolOption("with-jasper", "Build with jasper support", false),
	formula.BoolOption("with-libdc1394", "Build with libdc1394 support", false),
	formula.BoolOption("with-openexr", "Build with openexr support", true),
	formula.BoolOption("with-openni", "Build with openni support", false),
	formula.BoolOption("with-ffmpeg", "Build with ffmpeg support", false),
}

// CUDA's nvcc on macOS links against libstdc++, while C++11 mode needs
// libc++. CUDA toolkits also ship 64-bit only.
var exclusions = [][2]string{
	{"32-bit", "with-cuda"},
	{"with-cuda", "cxx11"},
}

var dependencies = []formula.Dependency{
	{Name: "ant", Requirement: formula.BuildTime, When: "with-java"},
	{Name: "cmake", Requirement: formula.BuildTime},
	{Name: "eigen", Requirement: formula.Optional, When: "with-eigen"},
	{Name: "gstreamer", Requirement: formula.Optional, When: "with-gstreamer"},
	{Name: "jasper", Requirement: formula.Optional, When: "with-jasper"},
	{Name: "jpeg", Requirement: formula.Required},
	{Name: "libpng", Requirement: formula.Required},
	{Name: "libtiff", Requirement: formula.Required},
	{Name: "libdc1394", Requirement: formula.Optional, When: "with-libdc1394"},
	{Name: "openexr", Requirement: formula.Recommended, When: "with-openexr"},
	{Name: "openni", Requirement: formula.Optional, When: "with-openni"},
	{Name: "pkg-config", Requirement: formula.BuildTime},
	{Name: "qt", Requirement: formula.Optional, When: "with-qt"},
	{Name: "tbb", Requirement: formula.Optional, When: "with-tbb"},
	{Name: "ffmpeg", Requirement: formula.Optional, When: "with-ffmpeg"},
}
