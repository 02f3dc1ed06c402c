package planner

import (
	"fmt"
)

// Stage names a step of the planning pipeline.
type Stage string

const (
	StageResolve  Stage = "resolve"
	StageOrder    Stage = "order"
	StageValidate Stage = "validate"
	StagePlan     Stage = "plan"
)

// StageError wraps the error that stopped the pipeline with the stage it
// happened in. The underlying error stays reachable via errors.As/Is.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageError(stage Stage, err error) error {
	return &StageError{Stage: stage, Err: err}
}
