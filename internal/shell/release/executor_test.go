package release

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/autorelease/internal/core/domain"
	"github.com/artpar/autorelease/internal/shell/cargo"
	"github.com/artpar/autorelease/internal/shell/command"
	"github.com/artpar/autorelease/internal/shell/git"
	"github.com/artpar/autorelease/internal/shell/github"
	"github.com/artpar/autorelease/internal/shell/store"
)

// =============================================================================
// Test Helpers
// =============================================================================

type fakeReleases struct {
	created []github.Release
	err     error
}

func (f *fakeReleases) CreateRelease(_ context.Context, r github.Release) (*github.ReleaseInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.created = append(f.created, r)
	return &github.ReleaseInfo{ID: int64(len(f.created)), TagName: r.TagName}, nil
}

func setupHistory(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestExecutor(rec *command.Recorder, releases github.Client, history store.Store, dryRun bool) *Executor {
	return NewExecutor(
		cargo.NewRunner(rec, "/ws", cargo.Options{Token: "secret"}, nil),
		git.NewClient(rec, "/ws"),
		releases,
		history,
		dryRun,
		nil,
	)
}

func scopedPlan() domain.Plan {
	return domain.Plan{
		Publish: []domain.PublishGap{
			{Package: "core", Version: "0.2.0", Path: "crates/core"},
			{Package: "cli", Version: "1.0.0-rc.1", Path: "crates/cli"},
		},
		Releases: []domain.ReleaseDescriptor{
			{Scope: domain.ScopeScoped, Package: "core", Packages: []string{"core"}, Version: "0.2.0", Tag: "core-v0.2.0", Notes: "- core notes"},
			{Scope: domain.ScopeScoped, Package: "cli", Packages: []string{"cli"}, Version: "1.0.0-rc.1", Tag: "cli-v1.0.0-rc.1", Notes: "- cli notes"},
		},
		Changelogs: domain.TopologyPerPackage,
	}
}

var meta = RunMeta{Commit: "abc123", Branch: "main"}

// =============================================================================
// Tests
// =============================================================================

func TestExecutor_Execute_StepOrder(t *testing.T) {
	rec := command.NewRecorder()
	releases := &fakeReleases{}
	history := setupHistory(t)

	run, err := newTestExecutor(rec, releases, history, false).Execute(context.Background(), scopedPlan(), meta)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"cargo publish --no-verify -p core",
		"cargo publish --no-verify -p cli",
		"git tag core-v0.2.0",
		"git tag cli-v1.0.0-rc.1",
		"git push origin --tags",
	}, rec.Lines())

	require.Len(t, releases.created, 2)
	assert.Equal(t, "core-v0.2.0", releases.created[0].TagName)
	assert.Equal(t, "- core notes", releases.created[0].Body)
	assert.False(t, releases.created[0].Prerelease)
	assert.Equal(t, "cli-v1.0.0-rc.1", releases.created[1].TagName)
	assert.True(t, releases.created[1].Prerelease)

	assert.Equal(t, domain.RunSucceeded, run.Status)
	assert.NotNil(t, run.FinishedAt)

	stored, err := history.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunSucceeded, stored.Status)
	assert.Equal(t, "abc123", stored.Commit)

	steps, err := history.ListSteps(context.Background(), run.ID)
	require.NoError(t, err)
	require.Len(t, steps, 7)

	var kinds []domain.StepKind
	for i, s := range steps {
		assert.Equal(t, i+1, s.Seq)
		assert.Equal(t, domain.StepSucceeded, s.Status)
		kinds = append(kinds, s.Kind)
	}
	assert.Equal(t, []domain.StepKind{
		domain.StepPublish, domain.StepPublish,
		domain.StepTag, domain.StepTag,
		domain.StepPush,
		domain.StepRelease, domain.StepRelease,
	}, kinds)
	assert.Equal(t, "core@0.2.0", steps[0].Target)
}

func TestExecutor_Execute_PassesRegistryToken(t *testing.T) {
	rec := command.NewRecorder()

	_, err := newTestExecutor(rec, nil, nil, false).Execute(context.Background(), scopedPlan(), meta)
	require.NoError(t, err)

	calls := rec.Calls()
	require.NotEmpty(t, calls)
	assert.Contains(t, calls[0].Env, "CARGO_REGISTRY_TOKEN=secret")
	assert.Equal(t, "/ws", calls[0].Dir)
}

func TestExecutor_Execute_FailStop(t *testing.T) {
	boom := errors.New("boom")
	rec := command.NewRecorder().Fail("cargo publish --no-verify -p cli", boom)
	releases := &fakeReleases{}
	history := setupHistory(t)

	run, err := newTestExecutor(rec, releases, history, false).Execute(context.Background(), scopedPlan(), meta)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "publish cli@1.0.0-rc.1")

	assert.Equal(t, []string{
		"cargo publish --no-verify -p core",
		"cargo publish --no-verify -p cli",
	}, rec.Lines())
	assert.Empty(t, releases.created)

	require.NotNil(t, run)
	assert.Equal(t, domain.RunFailed, run.Status)

	stored, err := history.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunFailed, stored.Status)
	assert.Equal(t, "publish cli@1.0.0-rc.1 failed", stored.Message)

	steps, err := history.ListSteps(context.Background(), run.ID)
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, domain.StepSucceeded, steps[0].Status)
	assert.Equal(t, domain.StepFailed, steps[1].Status)
	assert.Contains(t, steps[1].Message, "boom")
}

func TestExecutor_Execute_ReleaseFailureAfterPush(t *testing.T) {
	rec := command.NewRecorder()
	releases := &fakeReleases{err: github.ErrReleaseExists}

	run, err := newTestExecutor(rec, releases, nil, false).Execute(context.Background(), scopedPlan(), meta)
	assert.ErrorIs(t, err, github.ErrReleaseExists)
	assert.Equal(t, domain.RunFailed, run.Status)
	assert.Contains(t, rec.Lines(), "git push origin --tags")
}

func TestExecutor_Execute_DryRun(t *testing.T) {
	rec := command.NewRecorder()
	releases := &fakeReleases{}
	history := setupHistory(t)

	run, err := newTestExecutor(rec, releases, history, true).Execute(context.Background(), scopedPlan(), meta)
	require.NoError(t, err)

	assert.Empty(t, rec.Lines())
	assert.Empty(t, releases.created)
	assert.True(t, run.DryRun)
	assert.Equal(t, domain.RunSucceeded, run.Status)

	steps, err := history.ListSteps(context.Background(), run.ID)
	require.NoError(t, err)
	require.Len(t, steps, 7)
	for _, s := range steps {
		assert.Equal(t, domain.StepSkipped, s.Status)
	}
}

func TestExecutor_Execute_EmptyPlan(t *testing.T) {
	rec := command.NewRecorder()
	history := setupHistory(t)

	run, err := newTestExecutor(rec, nil, history, false).Execute(context.Background(), domain.Plan{}, meta)
	require.NoError(t, err)

	assert.Empty(t, rec.Lines())
	assert.Equal(t, domain.RunNoop, run.Status)

	steps, err := history.ListSteps(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Empty(t, steps)
}

func TestExecutor_Execute_WithoutReleaseClient(t *testing.T) {
	rec := command.NewRecorder()

	run, err := newTestExecutor(rec, nil, nil, false).Execute(context.Background(), scopedPlan(), meta)
	require.NoError(t, err)
	assert.Equal(t, domain.RunSucceeded, run.Status)
	assert.Len(t, rec.Lines(), 5)
}
