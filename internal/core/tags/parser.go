// Package tags parses version-control tag names into release markers.
// This is part of the Functional Core - all functions are pure with no I/O.
//
// Two forms are recognized:
//
//	v<semver>          Global: every package at that version is published
//	<name>-v<semver>   Scoped: package <name> at that version is published
//
// Any other tag is Unrecognized and ignored by release planning.
package tags

import (
	"slices"
	"strings"

	"github.com/artpar/autorelease/internal/core/domain"
)

// Kind is the tag variant.
type Kind string

const (
	KindUnrecognized Kind = "unrecognized"
	KindGlobal       Kind = "global"
	KindScoped       Kind = "scoped"
)

// Interpretation is one way to read a scoped tag.
type Interpretation struct {
	Package string
	Version string
}

// Tag is a parsed tag name.
type Tag struct {
	Raw     string
	Kind    Kind
	Package string // empty unless Kind is KindScoped
	Version string // empty when Kind is KindUnrecognized

	// Member is true when Package is a known workspace package.
	Member bool

	// Alternatives are other valid scoped readings whose package names are
	// also known, longest name first. Tag names that contain "-v" more than
	// once can split at several points.
	Alternatives []Interpretation
}

// IsRelease reports whether the tag marks a published version.
func (t Tag) IsRelease() bool {
	return t.Kind == KindGlobal || t.Kind == KindScoped
}

// Parser parses tags against a set of known package names.
type Parser struct {
	names map[string]bool
}

// NewParser returns a parser that prefers splits at known package names.
func NewParser(packageNames []string) *Parser {
	names := make(map[string]bool, len(packageNames))
	for _, n := range packageNames {
		names[n] = true
	}
	return &Parser{names: names}
}

// Parse parses a tag with no package knowledge. Scoped tags take the longest
// syntactic name and carry Member=false.
func Parse(raw string) Tag {
	return (&Parser{}).Parse(raw)
}

// Parse classifies raw. It never fails: input that matches neither form is
// returned as KindUnrecognized.
//
// Example:
//
//	p := NewParser([]string{"foo", "foo-bar"})
//	p.Parse("foo-bar-v1.0.0")  // Scoped{foo-bar, 1.0.0}
//	p.Parse("v0.3.0")          // Global{0.3.0}
//	p.Parse("release-1")       // Unrecognized
func (p *Parser) Parse(raw string) Tag {
	tag := Tag{Raw: raw, Kind: KindUnrecognized}
	if raw == "" {
		return tag
	}

	if strings.HasPrefix(raw, "v") && domain.IsValidVersion(raw[1:]) {
		tag.Kind = KindGlobal
		tag.Version = raw[1:]
		return tag
	}

	candidates := splitScoped(raw)
	if len(candidates) == 0 {
		return tag
	}

	var members []Interpretation
	for _, c := range candidates {
		if p.names[c.Package] {
			members = append(members, c)
		}
	}

	tag.Kind = KindScoped
	if len(members) == 0 {
		tag.Package = candidates[0].Package
		tag.Version = candidates[0].Version
		return tag
	}

	tag.Package = members[0].Package
	tag.Version = members[0].Version
	tag.Member = true
	if len(members) > 1 {
		tag.Alternatives = slices.Clone(members[1:])
	}
	return tag
}

// ParseAll parses every tag and keeps the release markers, in input order.
func (p *Parser) ParseAll(raws []string) []Tag {
	var out []Tag
	for _, raw := range raws {
		if t := p.Parse(raw); t.IsRelease() {
			out = append(out, t)
		}
	}
	return out
}

// splitScoped returns every valid <name>-v<semver> reading of raw, longest
// name first.
func splitScoped(raw string) []Interpretation {
	var out []Interpretation
	for i := len(raw) - 2; i > 0; i-- {
		if raw[i] != '-' || raw[i+1] != 'v' {
			continue
		}
		version := raw[i+2:]
		if !domain.IsValidVersion(version) {
			continue
		}
		out = append(out, Interpretation{Package: raw[:i], Version: version})
	}
	return out
}
