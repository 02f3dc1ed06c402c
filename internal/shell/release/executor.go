// Package release executes release plans and runs the CI pipeline around them.
package release

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/artpar/autorelease/internal/core/domain"
	"github.com/artpar/autorelease/internal/shell/github"
	"github.com/artpar/autorelease/internal/shell/store"
)

// =============================================================================
// Collaborators
// =============================================================================

// Publisher uploads one package to the registry.
type Publisher interface {
	Publish(ctx context.Context, pkg string) error
}

// Tagger creates and pushes VCS tags.
type Tagger interface {
	CreateTag(ctx context.Context, name string) error
	PushTags(ctx context.Context) error
}

// RunMeta describes where a plan is being executed.
type RunMeta struct {
	Commit string
	Branch string
}

// =============================================================================
// Executor
// =============================================================================

// Executor performs a plan's side effects strictly in sequence: publish every
// package in plan order, create every tag, push tags once, then create the
// hosted releases. The first failure stops the run. Nothing is retried or
// rolled back.
type Executor struct {
	publisher Publisher
	tagger    Tagger
	releases  github.Client // nil disables hosted releases
	history   store.Store   // nil disables history
	dryRun    bool
	logger    *slog.Logger
	now       func() time.Time
}

// NewExecutor creates an executor. releases and history may be nil.
func NewExecutor(publisher Publisher, tagger Tagger, releases github.Client, history store.Store, dryRun bool, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		publisher: publisher,
		tagger:    tagger,
		releases:  releases,
		history:   history,
		dryRun:    dryRun,
		logger:    logger.With("component", "executor"),
		now:       time.Now,
	}
}

// Execute runs plan and returns the recorded run. On failure the run is
// returned alongside the error, with status failed.
func (e *Executor) Execute(ctx context.Context, plan domain.Plan, meta RunMeta) (*domain.Run, error) {
	run := domain.NewRun(uuid.NewString(), meta.Commit, meta.Branch, plan, e.dryRun, e.now())
	if e.history != nil {
		if err := e.history.CreateRun(ctx, &run); err != nil {
			return nil, fmt.Errorf("record run: %w", err)
		}
	}

	if plan.IsEmpty() {
		e.logger.Info("no packages need publishing")
		return &run, e.finish(ctx, &run, nil, domain.RunNoop, "")
	}

	seq := 0
	step := func(kind domain.StepKind, target string, fn func() error) error {
		seq++
		s := domain.Step{RunID: run.ID, Seq: seq, Kind: kind, Target: target, Status: domain.StepSucceeded}

		if e.dryRun {
			e.logger.Info("dry run: skipping", "step", kind, "target", target)
			s.Status = domain.StepSkipped
		} else {
			e.logger.Info("executing", "step", kind, "target", target)
			if err := fn(); err != nil {
				s.Status = domain.StepFailed
				s.Message = err.Error()
				s.At = e.now()
				msg := fmt.Sprintf("%s %s failed", kind, target)
				if ferr := e.finish(ctx, &run, &s, domain.RunFailed, msg); ferr != nil {
					e.logger.Error("failed to record failure", "error", ferr)
				}
				return fmt.Errorf("%s %s: %w", kind, target, err)
			}
		}

		s.At = e.now()
		return e.record(ctx, &s)
	}

	for _, g := range plan.Publish {
		if err := step(domain.StepPublish, g.ID(), func() error {
			return e.publisher.Publish(ctx, g.Package)
		}); err != nil {
			return &run, err
		}
	}

	for _, r := range plan.Releases {
		if err := step(domain.StepTag, r.Tag, func() error {
			return e.tagger.CreateTag(ctx, r.Tag)
		}); err != nil {
			return &run, err
		}
	}

	if err := step(domain.StepPush, "tags", func() error {
		return e.tagger.PushTags(ctx)
	}); err != nil {
		return &run, err
	}

	if e.releases != nil {
		for _, r := range plan.Releases {
			if err := step(domain.StepRelease, r.Tag, func() error {
				_, err := e.releases.CreateRelease(ctx, github.Release{
					TagName:    r.Tag,
					Name:       r.Tag,
					Body:       r.Notes,
					Prerelease: strings.Contains(r.Version, "-"),
				})
				return err
			}); err != nil {
				return &run, err
			}
		}
	}

	return &run, e.finish(ctx, &run, nil, domain.RunSucceeded, "")
}

func (e *Executor) record(ctx context.Context, s *domain.Step) error {
	if e.history == nil {
		return nil
	}
	if err := e.history.AppendStep(ctx, s); err != nil {
		return fmt.Errorf("record step: %w", err)
	}
	return nil
}

// finish records the final step (if any) and the run's terminal status in
// one transaction.
func (e *Executor) finish(ctx context.Context, run *domain.Run, last *domain.Step, status domain.RunStatus, msg string) error {
	if err := run.Finish(status, msg, e.now()); err != nil {
		return err
	}
	if e.history == nil {
		return nil
	}
	return e.history.WithTx(ctx, func(tx store.Store) error {
		if last != nil {
			if err := tx.AppendStep(ctx, last); err != nil {
				return err
			}
		}
		return tx.UpdateRun(ctx, run)
	})
}
