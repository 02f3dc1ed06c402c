// Package planner turns a workspace, its tags and its changelogs into a
// release plan.
// This is part of the Functional Core - all functions are pure with no I/O.
//
// The pipeline runs four stages, each terminal on failure:
//
//	Resolve   effective versions, publishability, publish gap
//	Order     dependency graph and topological sort
//	Validate  changelog completeness
//	Plan      tag policy and release descriptors
package planner

import (
	"github.com/artpar/autorelease/internal/core/changelog"
	"github.com/artpar/autorelease/internal/core/domain"
	"github.com/artpar/autorelease/internal/core/gap"
	"github.com/artpar/autorelease/internal/core/manifest"
	"github.com/artpar/autorelease/internal/core/ordering"
	"github.com/artpar/autorelease/internal/core/tags"
)

// Input is everything the planner reads.
type Input struct {
	Workspace  domain.Workspace
	Tags       []string
	Changelogs []changelog.Document
	Options    manifest.Options
}

// Result carries the plan along with the intermediate state that produced it.
type Result struct {
	Plan     domain.Plan
	Packages []domain.ResolvedPackage
	Tags     []tags.Tag
}

// Run executes the pipeline. Errors are *StageError values wrapping a
// *manifest.ManifestError, *gap.AmbiguousTagError, *ordering.DependencyError,
// *ordering.CycleError or *changelog.ChangelogIncompleteError.
//
// A workspace with nothing to publish yields an empty plan, not an error.
func Run(in Input) (*Result, error) {
	pkgs, err := manifest.Resolve(in.Workspace, in.Options)
	if err != nil {
		return nil, stageError(StageResolve, err)
	}

	parsed := tags.NewParser(in.Workspace.Names()).ParseAll(in.Tags)
	gaps, err := gap.Compute(pkgs, parsed)
	if err != nil {
		return nil, stageError(StageResolve, err)
	}

	ordered, err := ordering.Order(gaps, pkgs)
	if err != nil {
		return nil, stageError(StageOrder, err)
	}

	docs := changelog.NewSet(in.Changelogs)
	if err := docs.Validate(ordered); err != nil {
		return nil, stageError(StageValidate, err)
	}

	return &Result{
		Plan:     Decide(ordered, parsed, docs),
		Packages: pkgs,
		Tags:     parsed,
	}, nil
}

// Decide applies the tag policy to an ordered gap.
//
// One Global tag vV and one combined descriptor are produced when every gap
// package targets the same V, no existing tag already carries V, and at most
// the workspace changelog is in use. Otherwise each package gets a Scoped
// tag <name>-vV and its own descriptor, in publish order.
func Decide(ordered []domain.PublishGap, parsed []tags.Tag, docs changelog.Set) domain.Plan {
	plan := domain.Plan{
		Publish:    ordered,
		Releases:   []domain.ReleaseDescriptor{},
		Changelogs: docs.Topology(ordered),
	}
	if len(ordered) == 0 {
		plan.Publish = []domain.PublishGap{}
		return plan
	}

	if v, ok := sharedVersion(ordered); ok && !versionTagged(parsed, v) && plan.Changelogs.IsSingleDocument() {
		names := make([]string, len(ordered))
		for i, g := range ordered {
			names[i] = g.Package
		}
		plan.Releases = append(plan.Releases, domain.ReleaseDescriptor{
			Scope:    domain.ScopeGlobal,
			Package:  domain.WorkspaceReleaseName,
			Packages: names,
			Version:  v,
			Tag:      domain.GlobalTagName(v),
			Notes:    docs.WorkspaceNotes(v),
		})
		return plan
	}

	for _, g := range ordered {
		plan.Releases = append(plan.Releases, domain.ReleaseDescriptor{
			Scope:    domain.ScopeScoped,
			Package:  g.Package,
			Packages: []string{g.Package},
			Version:  g.Version,
			Tag:      domain.ScopedTagName(g.Package, g.Version),
			Notes:    docs.Notes(g.Package, g.Version),
		})
	}
	return plan
}

// sharedVersion returns the version every gap package targets.
func sharedVersion(gaps []domain.PublishGap) (string, bool) {
	v := gaps[0].Version
	for _, g := range gaps[1:] {
		if !domain.VersionsEqual(g.Version, v) {
			return "", false
		}
	}
	return v, true
}

// versionTagged reports whether any release tag, for any package or none,
// already carries version v.
func versionTagged(parsed []tags.Tag, v string) bool {
	for _, t := range parsed {
		if t.IsRelease() && domain.VersionsEqual(t.Version, v) {
			return true
		}
	}
	return false
}
