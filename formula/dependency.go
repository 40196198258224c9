package formula

// Requirement classifies how a recipe depends on another package.
type Requirement int

const (
	Required Requirement = iota
	Recommended
	Optional
	BuildTime
)

func (r Requirement) String() string {
	switch r {
	case Required:
		return "required"
	case Recommended:
		return "recommended"
	case Optional:
		return "optional"
	case BuildTime:
		return "build"
	}
	return "unknown"
}

// Dependency is a package the recipe consumes.
type Dependency struct {
	Name        string
	Requirement Requirement

	// When names the option gating this dependency. Empty means the
	// dependency is needed unconditionally.
	When string

	// Path is the install prefix, filled in by the dependency collaborator.
	// Empty means not present.
	Path string
}

// Present reports whether the dependency was resolved to a prefix.
func (d Dependency) Present() bool {
	return d.Path != ""
}
