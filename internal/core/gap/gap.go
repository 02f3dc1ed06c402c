// Package gap decides which packages still need publishing.
// This is part of the Functional Core - all functions are pure with no I/O.
//
// A package is published at version V when a Global tag vV or a Scoped tag
// <name>-vV exists. The publish gap is every publishable package whose
// effective version is not published.
package gap

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/artpar/autorelease/internal/core/domain"
	"github.com/artpar/autorelease/internal/core/tags"
)

// =============================================================================
// Error Types
// =============================================================================

var ErrAmbiguousTag = errors.New("tag can be read as a release of more than one package")

// AmbiguousTagError reports a tag that could mark the current version of a
// package other than the one the longest-prefix rule attributed it to.
type AmbiguousTagError struct {
	Tag         string
	Package     string // package the tag was attributed to
	Interpreted string // version under the chosen reading
	Alternative string // other package the tag could mark
	Version     string // version under the alternative reading
}

func (e *AmbiguousTagError) Error() string {
	return fmt.Sprintf("tag %q is ambiguous: read as %s@%s, but also marks the current version of %s@%s",
		e.Tag, e.Package, e.Interpreted, e.Alternative, e.Version)
}

func (e *AmbiguousTagError) Unwrap() error {
	return ErrAmbiguousTag
}

// =============================================================================
// Published State
// =============================================================================

// Published indexes which versions are marked as released.
type Published struct {
	global map[string]bool
	scoped map[string]map[string]bool
}

// NewPublished builds the index from parsed tags. Unrecognized tags are ignored.
func NewPublished(parsed []tags.Tag) Published {
	p := Published{
		global: make(map[string]bool),
		scoped: make(map[string]map[string]bool),
	}
	for _, t := range parsed {
		key, ok := domain.CanonicalVersion(t.Version)
		if !ok {
			continue
		}
		switch t.Kind {
		case tags.KindGlobal:
			p.global[key] = true
		case tags.KindScoped:
			if p.scoped[t.Package] == nil {
				p.scoped[t.Package] = make(map[string]bool)
			}
			p.scoped[t.Package][key] = true
		}
	}
	return p
}

// IsPublished reports whether name has been released at version.
func (p Published) IsPublished(name, version string) bool {
	key, ok := domain.CanonicalVersion(version)
	if !ok {
		return false
	}
	return p.global[key] || p.scoped[name][key]
}

// =============================================================================
// Gap Computation
// =============================================================================

// Compute returns the publish gap sorted by package name.
//
// Example:
//
//	// a@0.2.0, b@0.1.0, tags: v0.1.0
//	Compute(pkgs, tags)  // [a@0.2.0]
func Compute(pkgs []domain.ResolvedPackage, parsed []tags.Tag) ([]domain.PublishGap, error) {
	if err := CheckAmbiguity(pkgs, parsed); err != nil {
		return nil, err
	}

	published := NewPublished(parsed)
	var gaps []domain.PublishGap
	for _, pkg := range pkgs {
		if !pkg.Publishable {
			continue
		}
		if published.IsPublished(pkg.Name, pkg.EffectiveVersion) {
			continue
		}
		gaps = append(gaps, domain.PublishGap{
			Package: pkg.Name,
			Version: pkg.EffectiveVersion,
			Path:    pkg.Path,
		})
	}

	slices.SortFunc(gaps, func(a, b domain.PublishGap) int {
		return strings.Compare(a.Package, b.Package)
	})
	return gaps, nil
}

// CheckAmbiguity fails when a tag's alternative reading would mark the
// current version of a publishable package. Attributing such a tag to the
// longest matching name would silently misstate that package's state.
func CheckAmbiguity(pkgs []domain.ResolvedPackage, parsed []tags.Tag) error {
	current := make(map[string]string, len(pkgs))
	for _, p := range pkgs {
		if p.Publishable {
			current[p.Name] = p.EffectiveVersion
		}
	}

	for _, t := range parsed {
		for _, alt := range t.Alternatives {
			v, ok := current[alt.Package]
			if !ok || !domain.VersionsEqual(v, alt.Version) {
				continue
			}
			return &AmbiguousTagError{
				Tag:         t.Raw,
				Package:     t.Package,
				Interpreted: t.Version,
				Alternative: alt.Package,
				Version:     alt.Version,
			}
		}
	}
	return nil
}
