package changelog

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// Error Types
// =============================================================================

var ErrChangelogIncomplete = errors.New("changelog is missing entries for packages being published")

// MissingEntry is one (package, version) pair with no heading in the document
// that applies to the package.
type MissingEntry struct {
	Package string
	Version string
	Path    string
}

func (m MissingEntry) String() string {
	return fmt.Sprintf("changelog at '%s' does not contain an entry for %s@%s", m.Path, m.Package, m.Version)
}

// ChangelogIncompleteError lists every missing entry, sorted by package then version.
type ChangelogIncompleteError struct {
	Missing []MissingEntry
}

func (e *ChangelogIncompleteError) Error() string {
	if len(e.Missing) == 1 {
		return e.Missing[0].String()
	}
	lines := make([]string, len(e.Missing))
	for i, m := range e.Missing {
		lines[i] = "  " + m.String()
	}
	return fmt.Sprintf("%s:\n%s", ErrChangelogIncomplete.Error(), strings.Join(lines, "\n"))
}

func (e *ChangelogIncompleteError) Unwrap() error {
	return ErrChangelogIncomplete
}
