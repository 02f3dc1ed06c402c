package domain

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// Release History
// =============================================================================

var (
	ErrRunFinished      = errors.New("release run is already finished")
	ErrInvalidRunStatus = errors.New("invalid release run status")
)

// RunStatus is the state of a release run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
	// RunNoop: the plan was empty.
	RunNoop RunStatus = "noop"
)

// IsTerminal reports whether no further transition is allowed.
func (s RunStatus) IsTerminal() bool {
	return s == RunSucceeded || s == RunFailed || s == RunNoop
}

// StepKind is the kind of side effect a step performed.
type StepKind string

const (
	StepPublish StepKind = "publish"
	StepTag     StepKind = "tag"
	StepPush    StepKind = "push"
	StepRelease StepKind = "release"
)

// StepStatus is the outcome of a step.
type StepStatus string

const (
	StepSucceeded StepStatus = "succeeded"
	StepFailed    StepStatus = "failed"
	StepSkipped   StepStatus = "skipped"
)

// Run is one execution of a release plan.
type Run struct {
	ID         string     `json:"id" yaml:"id"`
	Commit     string     `json:"commit" yaml:"commit"`
	Branch     string     `json:"branch" yaml:"branch"`
	Status     RunStatus  `json:"status" yaml:"status"`
	DryRun     bool       `json:"dry_run" yaml:"dry_run"`
	Message    string     `json:"message,omitempty" yaml:"message,omitempty"`
	Plan       Plan       `json:"plan" yaml:"plan"`
	StartedAt  time.Time  `json:"started_at" yaml:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
}

// NewRun starts a run for plan at the given commit.
func NewRun(id, commit, branch string, plan Plan, dryRun bool, now time.Time) Run {
	return Run{
		ID:        id,
		Commit:    commit,
		Branch:    branch,
		Status:    RunRunning,
		DryRun:    dryRun,
		Plan:      plan,
		StartedAt: now.UTC(),
	}
}

// Finish moves the run to a terminal status.
func (r *Run) Finish(status RunStatus, message string, now time.Time) error {
	if r.Status.IsTerminal() {
		return fmt.Errorf("%w: %s", ErrRunFinished, r.Status)
	}
	if !status.IsTerminal() {
		return fmt.Errorf("%w: %s", ErrInvalidRunStatus, status)
	}
	finished := now.UTC()
	r.Status = status
	r.Message = message
	r.FinishedAt = &finished
	return nil
}

// Step is one side effect performed during a run, numbered from 1.
type Step struct {
	ID      int64      `json:"id" yaml:"id"`
	RunID   string     `json:"run_id" yaml:"run_id"`
	Seq     int        `json:"seq" yaml:"seq"`
	Kind    StepKind   `json:"kind" yaml:"kind"`
	Target  string     `json:"target" yaml:"target"`
	Status  StepStatus `json:"status" yaml:"status"`
	Message string     `json:"message,omitempty" yaml:"message,omitempty"`
	At      time.Time  `json:"at" yaml:"at"`
}
