package store

import (
	"context"

	"github.com/artpar/autorelease/internal/core/domain"
)

// Store records release runs and the steps each one performed.
type Store interface {
	CreateRun(ctx context.Context, run *domain.Run) error
	UpdateRun(ctx context.Context, run *domain.Run) error
	GetRun(ctx context.Context, id string) (*domain.Run, error)
	ListRuns(ctx context.Context, opts ListOptions) ([]domain.Run, error)

	// AppendStep assigns step.ID.
	AppendStep(ctx context.Context, step *domain.Step) error
	ListSteps(ctx context.Context, runID string) ([]domain.Step, error)

	// WithTx runs fn against a Store bound to one transaction.
	WithTx(ctx context.Context, fn func(Store) error) error

	Close() error
}

const (
	defaultRunLimit = 20
	maxRunLimit     = 1000
)

// ListOptions pages and filters ListRuns.
type ListOptions struct {
	Limit  int
	Offset int
	Status domain.RunStatus // empty matches every status
}

// DefaultListOptions returns the latest page of runs.
func DefaultListOptions() ListOptions {
	return ListOptions{Limit: defaultRunLimit}
}

// Normalize clamps Limit to [1, 1000], using the default for zero, and
// Offset to non-negative.
func (o ListOptions) Normalize() ListOptions {
	switch {
	case o.Limit <= 0:
		o.Limit = defaultRunLimit
	case o.Limit > maxRunLimit:
		o.Limit = maxRunLimit
	}
	o.Offset = max(o.Offset, 0)
	return o
}
