// Package ordering computes the order in which gap packages are published.
// This is part of the Functional Core - all functions are pure with no I/O.
package ordering

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	ErrCycle                 = errors.New("circular dependency detected")
	ErrUnpublishedDependency = errors.New("package depends on a workspace member that cannot be published")
	ErrUnknownPackage        = errors.New("gap names a package that is not in the workspace")
)

// CycleError names a shortest dependency cycle among gap packages. Cycle
// starts at its lexicographically smallest member; each package depends on
// the next, and the last depends on the first.
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	if len(e.Cycle) == 0 {
		return ErrCycle.Error()
	}
	path := append(append([]string{}, e.Cycle...), e.Cycle[0])
	return fmt.Sprintf("%s: %s", ErrCycle.Error(), strings.Join(path, " -> "))
}

func (e *CycleError) Unwrap() error {
	return ErrCycle
}

// IsCycleError checks if an error is a CycleError.
func IsCycleError(err error) bool {
	var ce *CycleError
	return errors.As(err, &ce)
}

// Edge is one "From depends on To" relation.
type Edge struct {
	From string
	To   string
}

func (e Edge) String() string {
	return e.From + " -> " + e.To
}

// DependencyError lists gap packages that depend on workspace members which
// will never be published. The registry would reject them.
type DependencyError struct {
	Edges []Edge
}

func (e *DependencyError) Error() string {
	parts := make([]string, len(e.Edges))
	for i, edge := range e.Edges {
		parts[i] = fmt.Sprintf("`%s` depends on unpublishable `%s`", edge.From, edge.To)
	}
	return fmt.Sprintf("%s: %s", ErrUnpublishedDependency.Error(), strings.Join(parts, "; "))
}

func (e *DependencyError) Unwrap() error {
	return ErrUnpublishedDependency
}
