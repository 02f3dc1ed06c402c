package release

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/autorelease/internal/core/changelog"
	"github.com/artpar/autorelease/internal/core/domain"
	"github.com/artpar/autorelease/internal/shell/cargo"
	"github.com/artpar/autorelease/internal/shell/command"
)

// =============================================================================
// Test Helpers
// =============================================================================

const workspaceChangelog = "# Changelog\n\n## 0.2.0\n\n- first release\n"

func writeWorkspace(t *testing.T, changelogText string) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"Cargo.toml": `
[workspace]
members = ["crates/*"]
`,
		"crates/core/Cargo.toml": `
[package]
name = "core"
version = "0.2.0"
`,
		"crates/cli/Cargo.toml": `
[package]
name = "cli"
version = "0.2.0"

[dependencies]
core = { path = "../core", version = "0.2.0" }
`,
	}
	if changelogText != "" {
		files["CHANGELOG.md"] = changelogText
	}
	for rel, content := range files {
		path := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func onMain() *command.Recorder {
	return command.NewRecorder().
		On("git tag --list", "").
		On("git rev-parse --abbrev-ref HEAD", "main").
		On("git rev-parse HEAD", "abc123").
		On("git status --porcelain", "")
}

func newTestPipeline(cfg Config, rec *command.Recorder, out *bytes.Buffer) *Pipeline {
	p := NewPipeline(cfg, rec, nil, nil, out, nil)
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixed }
	return p
}

// =============================================================================
// Tests
// =============================================================================

func TestPipeline_Run_Publishes(t *testing.T) {
	dir := writeWorkspace(t, workspaceChangelog)
	rec := onMain()
	var out bytes.Buffer

	outcome, err := newTestPipeline(Config{Dir: dir, Cargo: cargo.Options{Token: "secret"}}, rec, &out).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"git tag --list",
		"cargo test --workspace --no-run",
		"cargo doc --workspace --no-deps",
		"cargo test --workspace",
		"git rev-parse --abbrev-ref HEAD",
		"git status --porcelain",
		"git rev-parse HEAD",
		"cargo publish --no-verify -p core",
		"cargo publish --no-verify -p cli",
		"git tag v0.2.0",
		"git push origin --tags",
	}, rec.Lines())

	assert.Empty(t, outcome.Skipped)
	require.NotNil(t, outcome.Run)
	assert.Equal(t, domain.RunSucceeded, outcome.Run.Status)
	assert.Equal(t, "abc123", outcome.Run.Commit)
	assert.Equal(t, []string{"v0.2.0"}, outcome.Plan.Tags())

	text := out.String()
	assert.Contains(t, text, "::group::PLAN\n")
	assert.Contains(t, text, "BUILD: 0.00s\n::endgroup::\n")
	assert.Contains(t, text, "::group::PUBLISH\n")
	assert.Contains(t, text, "packages in workspace: cli, core\n")
	assert.Contains(t, text, "publishing core 0.2.0\n")
}

func TestPipeline_Run_CheckOnly(t *testing.T) {
	dir := writeWorkspace(t, workspaceChangelog)
	rec := onMain()
	var out bytes.Buffer

	_, err := newTestPipeline(Config{Dir: dir, CheckOnly: true, SkipDocs: true}, rec, &out).Run(context.Background())
	require.NoError(t, err)

	lines := rec.Lines()
	assert.Contains(t, lines, "cargo check --workspace --all-targets")
	assert.NotContains(t, lines, "cargo test --workspace")
	assert.NotContains(t, lines, "cargo doc --workspace --no-deps")
	assert.NotContains(t, out.String(), "::group::TEST")
}

func TestPipeline_Run_SkipsOffReleaseBranch(t *testing.T) {
	dir := writeWorkspace(t, workspaceChangelog)
	rec := command.NewRecorder().On("git rev-parse --abbrev-ref HEAD", "feature/x")
	var out bytes.Buffer

	outcome, err := newTestPipeline(Config{Dir: dir, Cargo: cargo.Options{Token: "secret"}}, rec, &out).Run(context.Background())
	require.NoError(t, err)

	assert.Nil(t, outcome.Run)
	assert.Contains(t, outcome.Skipped, "skipping autopublish step")
	assert.NotContains(t, rec.Lines(), "cargo publish --no-verify -p core")
	assert.NotContains(t, out.String(), "::group::PUBLISH")
}

func TestPipeline_Run_SkipsWithoutToken(t *testing.T) {
	dir := writeWorkspace(t, workspaceChangelog)
	rec := onMain()
	var out bytes.Buffer

	outcome, err := newTestPipeline(Config{Dir: dir}, rec, &out).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "no `CRATES_IO_TOKEN` set, skipping autopublish step", outcome.Skipped)
	assert.Contains(t, out.String(), "no `CRATES_IO_TOKEN` set, skipping autopublish step\n")
}

func TestPipeline_Run_DryRunWithoutToken(t *testing.T) {
	dir := writeWorkspace(t, workspaceChangelog)
	rec := onMain()
	var out bytes.Buffer

	outcome, err := newTestPipeline(Config{Dir: dir, DryRun: true}, rec, &out).Run(context.Background())
	require.NoError(t, err)

	require.NotNil(t, outcome.Run)
	assert.True(t, outcome.Run.DryRun)
	assert.NotContains(t, rec.Lines(), "git tag v0.2.0")
}

func TestPipeline_Run_PlanFailsBeforeBuild(t *testing.T) {
	dir := writeWorkspace(t, "## 0.1.0\n- old\n")
	rec := onMain()
	var out bytes.Buffer

	_, err := newTestPipeline(Config{Dir: dir, Cargo: cargo.Options{Token: "secret"}}, rec, &out).Run(context.Background())
	require.Error(t, err)

	var incomplete *changelog.ChangelogIncompleteError
	require.True(t, errors.As(err, &incomplete))
	assert.Len(t, incomplete.Missing, 2)
	assert.Equal(t, []string{"git tag --list"}, rec.Lines())
	assert.Contains(t, out.String(), "PLAN: 0.00s\n::endgroup::\n")
}

func TestPipeline_Run_BuildFailureStops(t *testing.T) {
	dir := writeWorkspace(t, workspaceChangelog)
	boom := errors.New("compile error")
	rec := command.NewRecorder().Fail("cargo test --workspace --no-run", boom)
	var out bytes.Buffer

	_, err := newTestPipeline(Config{Dir: dir, Cargo: cargo.Options{Token: "secret"}}, rec, &out).Run(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.NotContains(t, rec.Lines(), "cargo doc --workspace --no-deps")
}

func TestPipeline_Run_DirtyWorktree(t *testing.T) {
	dir := writeWorkspace(t, workspaceChangelog)
	rec := command.NewRecorder().
		On("git rev-parse --abbrev-ref HEAD", "main").
		On("git status --porcelain", " M crates/core/src/lib.rs")
	var out bytes.Buffer

	_, err := newTestPipeline(Config{Dir: dir, Cargo: cargo.Options{Token: "secret"}}, rec, &out).Run(context.Background())
	require.ErrorIs(t, err, ErrDirtyWorktree)
	assert.Contains(t, err.Error(), "M crates/core/src/lib.rs")
	assert.NotContains(t, rec.Lines(), "cargo publish --no-verify -p core")
}

func TestPipeline_Run_IgnorePathsExcludedFromStatus(t *testing.T) {
	dir := writeWorkspace(t, workspaceChangelog)
	rec := onMain()
	var out bytes.Buffer

	cfg := Config{Dir: dir, Cargo: cargo.Options{Token: "secret"}, IgnorePaths: []string{".autorelease"}}
	_, err := newTestPipeline(cfg, rec, &out).Run(context.Background())
	require.NoError(t, err)
	assert.Contains(t, rec.Lines(), "git status --porcelain -- :/ :(exclude).autorelease")
}

func TestPipeline_Run_NothingToPublish(t *testing.T) {
	dir := writeWorkspace(t, workspaceChangelog)
	rec := command.NewRecorder().
		On("git tag --list", "core-v0.2.0\ncli-v0.2.0").
		On("git rev-parse --abbrev-ref HEAD", "main")
	var out bytes.Buffer

	outcome, err := newTestPipeline(Config{Dir: dir, Cargo: cargo.Options{Token: "secret"}}, rec, &out).Run(context.Background())
	require.NoError(t, err)

	assert.True(t, outcome.Plan.IsEmpty())
	require.NotNil(t, outcome.Run)
	assert.Equal(t, domain.RunNoop, outcome.Run.Status)
	assert.Contains(t, out.String(), "no packages need publishing\n")
	assert.NotContains(t, rec.Lines(), "git status --porcelain")
}

func TestSection_PrintsMarkers(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ticks := []time.Time{start, start.Add(1500 * time.Millisecond)}
	now := func() time.Time {
		next := ticks[0]
		ticks = ticks[1:]
		return next
	}

	var out bytes.Buffer
	StartSection(&out, "BUILD", now).End()
	assert.Equal(t, "::group::BUILD\nBUILD: 1.50s\n::endgroup::\n", out.String())
}
