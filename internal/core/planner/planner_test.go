package planner

import (
	"errors"
	"testing"

	"github.com/artpar/autorelease/internal/core/changelog"
	"github.com/artpar/autorelease/internal/core/domain"
	"github.com/artpar/autorelease/internal/core/gap"
	"github.com/artpar/autorelease/internal/core/manifest"
	"github.com/artpar/autorelease/internal/core/ordering"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var meta = domain.Metadata{Description: "crate", License: "MIT OR Apache-2.0"}

func member(name, version string, deps ...string) domain.Package {
	return domain.Package{
		Name:         name,
		Path:         "crates/" + name,
		Version:      domain.ExplicitVersion(version),
		Dependencies: deps,
		Metadata:     meta,
	}
}

func workspaceDoc(text string) changelog.Document {
	return changelog.Document{Scope: changelog.ScopeWorkspace, Path: "CHANGELOG.md", Text: text}
}

func packageDoc(pkg, text string) changelog.Document {
	return changelog.Document{Scope: changelog.ScopePackage, Package: pkg, Path: "crates/" + pkg + "/CHANGELOG.md", Text: text}
}

func TestRun_GlobalTagMeansNothingToDo(t *testing.T) {
	in := Input{
		Workspace: domain.Workspace{Members: []domain.Package{member("a", "1.0.0"), member("b", "1.0.0")}},
		Tags:      []string{"v1.0.0"},
	}

	res, err := Run(in)
	require.NoError(t, err)
	assert.True(t, res.Plan.IsEmpty())
	assert.Empty(t, res.Plan.Releases)

	in.Tags = nil
	res, err = Run(in)
	require.NoError(t, err)
	require.Len(t, res.Plan.Publish, 2)
	assert.Equal(t, "a", res.Plan.Publish[0].Package)
	assert.Equal(t, "b", res.Plan.Publish[1].Package)
}

func TestRun_TopologicalOrder(t *testing.T) {
	in := Input{Workspace: domain.Workspace{Members: []domain.Package{
		member("a", "1.0.0", "b"),
		member("b", "1.0.0", "c"),
		member("c", "1.0.0"),
	}}}

	res, err := Run(in)
	require.NoError(t, err)
	require.Len(t, res.Plan.Publish, 3)
	assert.Equal(t, "c", res.Plan.Publish[0].Package)
	assert.Equal(t, "b", res.Plan.Publish[1].Package)
	assert.Equal(t, "a", res.Plan.Publish[2].Package)

	require.Len(t, res.Plan.Releases, 1)
	assert.Equal(t, []string{"c", "b", "a"}, res.Plan.Releases[0].Packages)
}

func TestRun_CycleFailsOrderStage(t *testing.T) {
	in := Input{Workspace: domain.Workspace{Members: []domain.Package{
		member("a", "1.0.0", "b"),
		member("b", "1.0.0", "c"),
		member("c", "1.0.0", "a"),
	}}}

	_, err := Run(in)
	require.Error(t, err)

	var se *StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, StageOrder, se.Stage)

	var ce *ordering.CycleError
	require.True(t, errors.As(err, &ce))
	assert.ElementsMatch(t, []string{"a", "b", "c"}, ce.Cycle)
}

func TestRun_SharedVersionShortcut(t *testing.T) {
	in := Input{
		Workspace:  domain.Workspace{Members: []domain.Package{member("a", "1.0.0"), member("b", "1.0.0")}},
		Changelogs: []changelog.Document{workspaceDoc("## v1.0.0\n- first\n")},
	}

	res, err := Run(in)
	require.NoError(t, err)
	require.Len(t, res.Plan.Releases, 1)

	r := res.Plan.Releases[0]
	assert.Equal(t, domain.ScopeGlobal, r.Scope)
	assert.Equal(t, "v1.0.0", r.Tag)
	assert.Equal(t, domain.WorkspaceReleaseName, r.Package)
	assert.Equal(t, "- first", r.Notes)
	assert.Equal(t, domain.TopologyWorkspace, res.Plan.Changelogs)
}

func TestRun_DifferingVersionsNeedSeparateHeadings(t *testing.T) {
	in := Input{
		Workspace:  domain.Workspace{Members: []domain.Package{member("a", "1.0.0"), member("b", "1.1.0")}},
		Changelogs: []changelog.Document{workspaceDoc("## v1.0.0\n- first\n")},
	}

	_, err := Run(in)
	require.Error(t, err)

	var se *StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, StageValidate, se.Stage)
	assert.ErrorIs(t, err, changelog.ErrChangelogIncomplete)

	in.Changelogs = []changelog.Document{workspaceDoc("## 1.1.0\n- b\n\n## v1.0.0\n- first\n")}
	res, err := Run(in)
	require.NoError(t, err)
	require.Len(t, res.Plan.Releases, 2)
	assert.Equal(t, "a-v1.0.0", res.Plan.Releases[0].Tag)
	assert.Equal(t, "- first", res.Plan.Releases[0].Notes)
	assert.Equal(t, "b-v1.1.0", res.Plan.Releases[1].Tag)
	assert.Equal(t, "- b", res.Plan.Releases[1].Notes)
}

func TestRun_ExistingScopedTagBlocksGlobalTag(t *testing.T) {
	// mylib was released on its own at 0.1.2; its derive crate catches up.
	in := Input{
		Workspace: domain.Workspace{Members: []domain.Package{
			member("mylib", "0.1.2", "mylib-derive"),
			member("mylib-derive", "0.1.2"),
		}},
		Tags: []string{"mylib-v0.1.2"},
	}

	res, err := Run(in)
	require.NoError(t, err)
	require.Len(t, res.Plan.Releases, 1)
	assert.Equal(t, domain.ScopeScoped, res.Plan.Releases[0].Scope)
	assert.Equal(t, "mylib-derive-v0.1.2", res.Plan.Releases[0].Tag)
}

func TestRun_TagOfUnknownPackageBlocksGlobalTag(t *testing.T) {
	in := Input{
		Workspace: domain.Workspace{Members: []domain.Package{member("derive", "0.1.0")}},
		Tags:      []string{"shared-v0.1.0"},
	}

	res, err := Run(in)
	require.NoError(t, err)
	assert.Equal(t, []string{"derive-v0.1.0"}, res.Plan.Tags())
}

func TestRun_SyncedWorkspaceCollapses(t *testing.T) {
	in := Input{
		Workspace: domain.Workspace{
			RootVersion: "0.1.2",
			Members: []domain.Package{
				{Name: "mylib", Path: ".", Version: domain.InheritedVersion(), Dependencies: []string{"mylib-derive"}, Metadata: meta},
				{Name: "mylib-derive", Path: "derive", Version: domain.InheritedVersion(), Metadata: meta},
			},
		},
		Tags: []string{"v0.1.1"},
	}

	res, err := Run(in)
	require.NoError(t, err)
	assert.Equal(t, []string{"v0.1.2"}, res.Plan.Tags())
	assert.Equal(t, domain.TopologyNone, res.Plan.Changelogs)
	assert.Equal(t, "", res.Plan.Releases[0].Notes)
}

func TestRun_PerPackageChangelogsPreventCollapse(t *testing.T) {
	in := Input{
		Workspace: domain.Workspace{Members: []domain.Package{member("a", "0.1.0"), member("b", "0.1.0")}},
		Changelogs: []changelog.Document{
			packageDoc("a", "# 0.1.0\na notes\n"),
			packageDoc("b", "# 0.1.0\nb notes\n"),
		},
	}

	res, err := Run(in)
	require.NoError(t, err)
	assert.Equal(t, []string{"a-v0.1.0", "b-v0.1.0"}, res.Plan.Tags())
	assert.Equal(t, "a notes", res.Plan.Releases[0].Notes)
	assert.Equal(t, "b notes", res.Plan.Releases[1].Notes)
	assert.Equal(t, domain.TopologyPerPackage, res.Plan.Changelogs)
}

func TestRun_ManifestErrorFailsResolveStage(t *testing.T) {
	in := Input{Workspace: domain.Workspace{Members: []domain.Package{
		{Name: "a", Version: domain.InheritedVersion(), Metadata: meta},
	}}}

	_, err := Run(in)

	var se *StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, StageResolve, se.Stage)

	var me *manifest.ManifestError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, "a", me.Package)
}

func TestRun_AmbiguousTagFailsResolveStage(t *testing.T) {
	in := Input{
		Workspace: domain.Workspace{Members: []domain.Package{
			member("foo", "1.0.0-v2.0.0"),
			member("foo-v1.0.0", "2.0.0"),
		}},
		Tags: []string{"foo-v1.0.0-v2.0.0"},
	}

	_, err := Run(in)
	assert.ErrorIs(t, err, gap.ErrAmbiguousTag)
}

func TestRun_UnpublishableDependencyFailsOrderStage(t *testing.T) {
	internal := member("internal", "0.1.0")
	internal.PublishDisabled = true
	in := Input{Workspace: domain.Workspace{Members: []domain.Package{member("a", "0.1.0", "internal"), internal}}}

	_, err := Run(in)

	var se *StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, StageOrder, se.Stage)
	assert.ErrorIs(t, err, ordering.ErrUnpublishedDependency)
}

func TestRun_Idempotent(t *testing.T) {
	in := Input{
		Workspace: domain.Workspace{Members: []domain.Package{
			member("z", "0.3.0", "a"),
			member("a", "0.2.0"),
			member("m", "0.2.0", "a"),
		}},
		Tags:       []string{"a-v0.1.0", "m-v0.1.0"},
		Changelogs: []changelog.Document{workspaceDoc("## 0.3.0\nz\n## 0.2.0\nboth\n")},
	}

	first, err := Run(in)
	require.NoError(t, err)
	second, err := Run(in)
	require.NoError(t, err)

	for _, f := range ValidFormats {
		a, err := Render(first.Plan, f)
		require.NoError(t, err)
		b, err := Render(second.Plan, f)
		require.NoError(t, err)
		assert.Equal(t, a, b, string(f))
	}
}

func TestDecide_EmptyGap(t *testing.T) {
	plan := Decide(nil, nil, changelog.NewSet(nil))
	assert.True(t, plan.IsEmpty())
	assert.NotNil(t, plan.Publish)
	assert.NotNil(t, plan.Releases)
}
