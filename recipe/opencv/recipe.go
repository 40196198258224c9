// Package opencv is the build recipe for OpenCV 2.4 with the bag-of-words
// classes exported to the language bindings.
package opencv

import (
	_ "embed"

	"github.com/goplus/llarcfg/formula"
	"github.com/goplus/llarcfg/internal/patch"
	"github.com/goplus/llarcfg/internal/synth"
)

//go:embed bow.patch
var bowPatch []byte

// bowTargets are the files bow.patch touches.
var bowTargets = []string{
	"modules/features2d/include/opencv2/features2d/features2d.hpp",
}

const openNIFinder = "cmake/OpenCVFindOpenNI.cmake"

// Recipe is the OpenCV recipe. The zero value is ready to use.
type Recipe struct{}

// New returns the recipe.
func New() *Recipe { return &Recipe{} }

func (*Recipe) Name() string { return "opencv" }

// Declare registers the recipe's options and their exclusions.
func (*Recipe) Declare(r *formula.Registry) error {
	for _, opt := range options {
		if err := r.Declare(opt); err != nil {
			return err
		}
	}
	for _, ex := range exclusions {
		r.Exclude(ex[0], ex[1])
	}
	return nil
}

// Dependencies returns the declared dependencies.
func (*Recipe) Dependencies() []formula.Dependency {
	return append([]formula.Dependency(nil), dependencies...)
}

// Rules returns the flag rule table.
func (*Recipe) Rules() synth.Table {
	return rules
}

// Patch returns the bundled bag-of-words export patch.
func (*Recipe) Patch() (*patch.Set, error) {
	return patch.Parse("bow", bowPatch, bowTargets...)
}

// Edits points the OpenNI finder at the resolved openni prefix.
func (*Recipe) Edits(in *synth.Input) ([]patch.Substitution, error) {
	on, err := in.Enabled("with-openni")
	if err != nil || !on {
		return nil, err
	}
	openni, err := in.Dep("openni")
	if err != nil {
		return nil, err
	}
	return []patch.Substitution{
		{Path: openNIFinder, Old: "/usr/include/ni", New: openni.Path + "/include/ni"},
		{Path: openNIFinder, Old: "/usr/lib", New: openni.Path + "/lib"},
	}, nil
}
