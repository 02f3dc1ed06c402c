package release

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/artpar/autorelease/internal/core/domain"
	"github.com/artpar/autorelease/internal/core/manifest"
	"github.com/artpar/autorelease/internal/core/planner"
	"github.com/artpar/autorelease/internal/shell/cargo"
	"github.com/artpar/autorelease/internal/shell/command"
	"github.com/artpar/autorelease/internal/shell/git"
	"github.com/artpar/autorelease/internal/shell/github"
	"github.com/artpar/autorelease/internal/shell/store"
)

// ErrDirtyWorktree is returned when publishing from a tree with local changes.
var ErrDirtyWorktree = errors.New("working tree has uncommitted changes")

// DefaultBranch is the branch releases are published from.
const DefaultBranch = "main"

// Config controls one CI run.
type Config struct {
	Dir            string
	ReleaseBranch  string
	CheckOnly      bool
	SkipDocs       bool
	DryRun         bool
	StrictMetadata bool
	Cargo          cargo.Options

	// IgnorePaths, relative to Dir, do not make the worktree dirty.
	IgnorePaths []string
}

// Outcome summarizes what a CI run did.
type Outcome struct {
	Plan domain.Plan `json:"plan" yaml:"plan"`
	// Run is nil when publishing was skipped.
	Run *domain.Run `json:"run,omitempty" yaml:"run,omitempty"`
	// Skipped explains why publishing did not happen.
	Skipped string `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

// Pipeline is the CI flow: plan, build, test, then publish from the
// release branch.
type Pipeline struct {
	cfg      Config
	cargo    *cargo.Runner
	git      *git.Client
	executor *Executor
	out      io.Writer
	logger   *slog.Logger
	now      func() time.Time
}

// NewPipeline wires a pipeline over runner. releases and history may be nil.
func NewPipeline(cfg Config, runner command.Runner, releases github.Client, history store.Store, out io.Writer, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ReleaseBranch == "" {
		cfg.ReleaseBranch = DefaultBranch
	}
	cr := cargo.NewRunner(runner, cfg.Dir, cfg.Cargo, logger)
	gc := git.NewClient(runner, cfg.Dir)
	return &Pipeline{
		cfg:      cfg,
		cargo:    cr,
		git:      gc,
		executor: NewExecutor(cr, gc, releases, history, cfg.DryRun, logger),
		out:      out,
		logger:   logger.With("component", "pipeline"),
		now:      time.Now,
	}
}

// Run executes the pipeline. The plan is computed first so a broken
// workspace fails before anything is built.
func (p *Pipeline) Run(ctx context.Context) (*Outcome, error) {
	var result *planner.Result
	if err := p.section("PLAN", func() error {
		var err error
		result, err = LoadPlan(ctx, p.cfg.Dir, p.git, manifest.Options{StrictMetadata: p.cfg.StrictMetadata})
		if err != nil {
			return err
		}
		fmt.Fprint(p.out, planner.Text(result.Plan))
		return nil
	}); err != nil {
		return nil, err
	}
	outcome := &Outcome{Plan: result.Plan}

	if p.cfg.CheckOnly {
		if err := p.section("CHECK", func() error { return p.cargo.Check(ctx) }); err != nil {
			return outcome, err
		}
	} else {
		if err := p.section("BUILD", func() error { return p.cargo.Build(ctx) }); err != nil {
			return outcome, err
		}
	}

	if !p.cfg.SkipDocs {
		if err := p.section("BUILD_DOCS", func() error { return p.cargo.Doc(ctx) }); err != nil {
			return outcome, err
		}
	}

	if !p.cfg.CheckOnly {
		if err := p.section("TEST", func() error { return p.cargo.Test(ctx) }); err != nil {
			return outcome, err
		}
	}

	branch, err := p.git.CurrentBranch(ctx)
	if err != nil {
		return outcome, err
	}
	if branch != p.cfg.ReleaseBranch {
		return p.skip(outcome, fmt.Sprintf("not on `%s` (on `%s`), skipping autopublish step", p.cfg.ReleaseBranch, branch))
	}
	if p.cfg.Cargo.Token == "" && !p.cfg.DryRun {
		return p.skip(outcome, "no `CRATES_IO_TOKEN` set, skipping autopublish step")
	}

	err = p.section("PUBLISH", func() error {
		if !result.Plan.IsEmpty() {
			clean, changed, err := p.git.IsClean(ctx, p.cfg.IgnorePaths...)
			if err != nil {
				return err
			}
			if !clean {
				return fmt.Errorf("%w: %s", ErrDirtyWorktree, strings.Join(changed, ", "))
			}
		}

		head, err := p.git.Head(ctx)
		if err != nil {
			return err
		}

		names := make([]string, len(result.Packages))
		for i, pkg := range result.Packages {
			names[i] = pkg.Name
		}
		fmt.Fprintf(p.out, "packages in workspace: %s\n", strings.Join(names, ", "))
		for _, g := range result.Plan.Publish {
			fmt.Fprintf(p.out, "publishing %s %s\n", g.Package, g.Version)
		}

		run, err := p.executor.Execute(ctx, result.Plan, RunMeta{Commit: head, Branch: branch})
		outcome.Run = run
		return err
	})
	return outcome, err
}

func (p *Pipeline) skip(outcome *Outcome, reason string) (*Outcome, error) {
	fmt.Fprintln(p.out, reason)
	p.logger.Info("publish skipped", "reason", reason)
	outcome.Skipped = reason
	return outcome, nil
}

func (p *Pipeline) section(name string, fn func() error) error {
	s := StartSection(p.out, name, p.now)
	defer s.End()
	return fn()
}
