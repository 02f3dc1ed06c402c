package domain

// PublishGap is a publishable package that has no tag at its effective version.
type PublishGap struct {
	Package string `json:"package" yaml:"package"`
	Version string `json:"version" yaml:"version"`
	Path    string `json:"path" yaml:"path"`
}

// ID returns "package@version".
func (g PublishGap) ID() string {
	return g.Package + "@" + g.Version
}

// ReleaseScope distinguishes workspace-wide releases from per-package ones.
type ReleaseScope string

const (
	ScopeGlobal ReleaseScope = "global"
	ScopeScoped ReleaseScope = "scoped"
)

// WorkspaceReleaseName is the package name carried by a Global descriptor.
const WorkspaceReleaseName = "workspace"

// ReleaseDescriptor is one tag to create and one release to announce.
type ReleaseDescriptor struct {
	Scope   ReleaseScope `json:"scope" yaml:"scope"`
	Package string       `json:"package" yaml:"package"`

	// Packages lists the gap packages the release covers, in publish order.
	Packages []string `json:"packages" yaml:"packages"`

	Version string `json:"version" yaml:"version"`
	Tag     string `json:"tag" yaml:"tag"`
	Notes   string `json:"notes" yaml:"notes"`
}

// ChangelogTopology describes which changelog documents the gap packages use.
type ChangelogTopology string

const (
	// TopologyNone: no gap package has an applicable changelog.
	TopologyNone ChangelogTopology = "none"
	// TopologyWorkspace: every gap package with a changelog uses the workspace document.
	TopologyWorkspace ChangelogTopology = "workspace"
	// TopologyPerPackage: every gap package with a changelog uses its own document.
	TopologyPerPackage ChangelogTopology = "per-package"
	// TopologyMixed: both kinds are in use.
	TopologyMixed ChangelogTopology = "mixed"
)

// IsSingleDocument reports whether at most the workspace document is in use.
func (t ChangelogTopology) IsSingleDocument() bool {
	return t == TopologyNone || t == TopologyWorkspace
}

// Plan is the complete output of release planning: what to publish, in which
// order, and which tags and release notes to create afterwards.
type Plan struct {
	Publish    []PublishGap        `json:"publish" yaml:"publish"`
	Releases   []ReleaseDescriptor `json:"releases" yaml:"releases"`
	Changelogs ChangelogTopology   `json:"changelogs" yaml:"changelogs"`
}

// IsEmpty reports whether nothing needs publishing.
func (p Plan) IsEmpty() bool {
	return len(p.Publish) == 0
}

// Tags returns the tag names in descriptor order.
func (p Plan) Tags() []string {
	tags := make([]string, len(p.Releases))
	for i, r := range p.Releases {
		tags[i] = r.Tag
	}
	return tags
}
