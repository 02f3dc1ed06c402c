package changelog

import (
	"slices"
	"strings"

	"github.com/artpar/autorelease/internal/core/domain"
)

// Scope says which packages a document covers.
type Scope string

const (
	ScopeWorkspace Scope = "workspace"
	ScopePackage   Scope = "package"
)

// Document is one changelog file. Package is set for ScopePackage only.
// Path is used in error messages.
type Document struct {
	Scope   Scope
	Package string
	Path    string
	Text    string
}

// Set is the collection of changelog documents in a workspace.
type Set struct {
	workspace *Document
	packages  map[string]Document
}

// NewSet indexes docs. A later document with the same scope and package
// replaces an earlier one.
func NewSet(docs []Document) Set {
	s := Set{packages: make(map[string]Document)}
	for _, d := range docs {
		switch d.Scope {
		case ScopeWorkspace:
			s.workspace = &d
		case ScopePackage:
			s.packages[d.Package] = d
		}
	}
	return s
}

// Workspace returns the workspace document, if any.
func (s Set) Workspace() (Document, bool) {
	if s.workspace == nil {
		return Document{}, false
	}
	return *s.workspace, true
}

// Applicable returns the document that governs pkg: its own document when
// present, otherwise the workspace document.
func (s Set) Applicable(pkg string) (Document, bool) {
	if d, ok := s.packages[pkg]; ok {
		return d, true
	}
	return s.Workspace()
}

// Validate checks that every gap package's applicable document has an entry
// for the package's target version. Packages with no applicable document
// need none. All missing entries are reported in one
// *ChangelogIncompleteError.
func (s Set) Validate(gaps []domain.PublishGap) error {
	var missing []MissingEntry
	for _, g := range gaps {
		doc, ok := s.Applicable(g.Package)
		if !ok {
			continue
		}
		if !HasEntry(doc.Text, g.Version) {
			missing = append(missing, MissingEntry{Package: g.Package, Version: g.Version, Path: doc.Path})
		}
	}
	if len(missing) == 0 {
		return nil
	}

	slices.SortFunc(missing, func(a, b MissingEntry) int {
		if c := strings.Compare(a.Package, b.Package); c != 0 {
			return c
		}
		return domain.CompareVersions(a.Version, b.Version)
	})
	return &ChangelogIncompleteError{Missing: missing}
}

// Notes returns the release notes for pkg at version from its applicable
// document, or "" when there is no document or entry.
func (s Set) Notes(pkg, version string) string {
	doc, ok := s.Applicable(pkg)
	if !ok {
		return ""
	}
	notes, _ := Extract(doc.Text, version)
	return notes
}

// WorkspaceNotes returns the workspace document's section for version.
func (s Set) WorkspaceNotes(version string) string {
	doc, ok := s.Workspace()
	if !ok {
		return ""
	}
	notes, _ := Extract(doc.Text, version)
	return notes
}

// Topology classifies the documents the gap packages use.
func (s Set) Topology(gaps []domain.PublishGap) domain.ChangelogTopology {
	var usesWorkspace, usesPackage bool
	for _, g := range gaps {
		if _, ok := s.packages[g.Package]; ok {
			usesPackage = true
		} else if s.workspace != nil {
			usesWorkspace = true
		}
	}
	if len(gaps) == 0 {
		usesWorkspace = s.workspace != nil
		usesPackage = len(s.packages) > 0
	}

	switch {
	case usesWorkspace && usesPackage:
		return domain.TopologyMixed
	case usesPackage:
		return domain.TopologyPerPackage
	case usesWorkspace:
		return domain.TopologyWorkspace
	default:
		return domain.TopologyNone
	}
}
