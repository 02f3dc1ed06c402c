// Package manifest resolves declared package versions and decides which
// packages may be published.
// This is part of the Functional Core - all functions are pure with no I/O.
package manifest

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// Version errors
	ErrInheritedWithoutRoot = errors.New("version is inherited but the workspace root declares none")
	ErrInvalidVersion       = errors.New("version is not a valid semantic version")
	ErrMissingVersion       = errors.New("version is not declared")

	// Package errors
	ErrEmptyName        = errors.New("package name is empty")
	ErrDuplicatePackage = errors.New("package name is declared more than once")
	ErrMissingMetadata  = errors.New("package is missing registry metadata")
)

// ManifestError reports a malformed or unresolvable package declaration.
type ManifestError struct {
	Package string // package name, or "workspace" for the root manifest
	Field   string // e.g. "version", "license"
	Message string
	Err     error
}

func (e *ManifestError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("package `%s`: %s: %s", e.Package, e.Field, e.Message)
	}
	return fmt.Sprintf("package `%s`: %s", e.Package, e.Message)
}

func (e *ManifestError) Unwrap() error {
	return e.Err
}

// NewManifestError creates a new ManifestError.
func NewManifestError(pkg, field, message string, err error) *ManifestError {
	return &ManifestError{
		Package: pkg,
		Field:   field,
		Message: message,
		Err:     err,
	}
}
