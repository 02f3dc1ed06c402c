// Package store persists the release history: one row per run, one per step.
package store

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	ErrNotFound         = errors.New("not found")
	ErrDuplicateID      = errors.New("id already recorded")
	ErrForeignKey       = errors.New("step refers to an unknown run")
	ErrConnectionFailed = errors.New("cannot open release history")
	ErrMigrationFailed  = errors.New("cannot migrate release history schema")
	// ErrInvalidData: a stored plan or timestamp could not be encoded or decoded.
	ErrInvalidData = errors.New("invalid stored data")
	ErrTxFailed    = errors.New("transaction failed")
)

// StoreError records which history operation failed and on what.
type StoreError struct {
	Op      string // e.g. "AppendStep"
	Entity  string // "run" or "step"
	ID      string
	Message string
	Err     error
}

func (e *StoreError) Error() string {
	parts := []string{e.Op}
	if e.Entity != "" {
		parts = append(parts, e.Entity)
	}
	if e.ID != "" {
		parts = append(parts, e.ID)
	}
	return fmt.Sprintf("%s: %s", strings.Join(parts, " "), e.Message)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a StoreError.
func NewStoreError(op, entity, id, message string, err error) *StoreError {
	return &StoreError{Op: op, Entity: entity, ID: id, Message: message, Err: err}
}
