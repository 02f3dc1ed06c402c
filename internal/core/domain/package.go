package domain

import "slices"

// =============================================================================
// Declared Version
// =============================================================================

// DeclaredVersion is the version a package manifest states for itself: either
// an explicit semantic version or a marker that the version is inherited from
// the workspace root.
type DeclaredVersion struct {
	Explicit  string `json:"explicit,omitempty" yaml:"explicit,omitempty"`
	Inherited bool   `json:"inherited,omitempty" yaml:"inherited,omitempty"`
}

// ExplicitVersion declares version v.
func ExplicitVersion(v string) DeclaredVersion {
	return DeclaredVersion{Explicit: v}
}

// InheritedVersion declares that the version comes from the workspace root.
func InheritedVersion() DeclaredVersion {
	return DeclaredVersion{Inherited: true}
}

func (d DeclaredVersion) String() string {
	if d.Inherited {
		return "workspace"
	}
	return d.Explicit
}

// =============================================================================
// Package
// =============================================================================

// Metadata holds the registry metadata a package must carry to be published.
type Metadata struct {
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	License     string `json:"license,omitempty" yaml:"license,omitempty"`
	LicenseFile string `json:"license_file,omitempty" yaml:"license_file,omitempty"`
	Repository  string `json:"repository,omitempty" yaml:"repository,omitempty"`
}

// Missing lists the registry fields that are absent, in a stable order.
// A license file stands in for a license expression.
func (m Metadata) Missing() []string {
	var missing []string
	if m.Description == "" {
		missing = append(missing, "description")
	}
	if m.License == "" && m.LicenseFile == "" {
		missing = append(missing, "license")
	}
	return missing
}

// Package is one workspace member as declared in its manifest.
type Package struct {
	Name    string          `json:"name" yaml:"name"`
	Path    string          `json:"path" yaml:"path"`
	Version DeclaredVersion `json:"version" yaml:"version"`

	// Dependencies are the workspace members this package needs at build or
	// run time. They constrain publish order.
	Dependencies []string `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`

	// DevDependencies are workspace members needed only by tests and examples.
	// They never constrain publish order.
	DevDependencies []string `json:"dev_dependencies,omitempty" yaml:"dev_dependencies,omitempty"`

	Metadata Metadata `json:"metadata" yaml:"metadata"`

	// PublishDisabled is set by an explicit publish = false opt-out.
	PublishDisabled bool `json:"publish_disabled,omitempty" yaml:"publish_disabled,omitempty"`
}

// DependsOn reports whether name is one of the package's ordering dependencies.
func (p Package) DependsOn(name string) bool {
	return slices.Contains(p.Dependencies, name)
}

// Workspace is the set of packages managed together, plus the version the
// root manifest offers for inheritance. RootVersion is empty when the root
// declares none.
type Workspace struct {
	Root        string    `json:"root" yaml:"root"`
	RootVersion string    `json:"root_version,omitempty" yaml:"root_version,omitempty"`
	Members     []Package `json:"members" yaml:"members"`
}

// Names returns the member names in manifest order.
func (w Workspace) Names() []string {
	names := make([]string, len(w.Members))
	for i, p := range w.Members {
		names[i] = p.Name
	}
	return names
}

// ResolvedPackage is a package whose effective version is known.
type ResolvedPackage struct {
	Package

	// EffectiveVersion is the explicit version, or the root version when inherited.
	EffectiveVersion string `json:"effective_version" yaml:"effective_version"`

	// Publishable is false for publish = false opt-outs and for packages
	// missing registry metadata.
	Publishable bool `json:"publishable" yaml:"publishable"`

	// MissingMetadata names absent registry fields (see Metadata.Missing).
	MissingMetadata []string `json:"missing_metadata,omitempty" yaml:"missing_metadata,omitempty"`
}

// ID returns "name@version".
func (r ResolvedPackage) ID() string {
	return r.Name + "@" + r.EffectiveVersion
}
