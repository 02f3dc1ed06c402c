// Package changelog loads CHANGELOG.md files from a workspace on disk.
package changelog

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	core "github.com/artpar/autorelease/internal/core/changelog"
	"github.com/artpar/autorelease/internal/core/domain"
)

// FileName is the changelog file looked for in the workspace root and in
// every member directory.
const FileName = "CHANGELOG.md"

// ReadDocuments returns the workspace changelog at the root, if present,
// followed by one package changelog for each member directory other than
// the root that has one. Paths are relative to the workspace root.
func ReadDocuments(ws domain.Workspace) ([]core.Document, error) {
	var docs []core.Document

	text, ok, err := readOptional(filepath.Join(ws.Root, FileName))
	if err != nil {
		return nil, err
	}
	if ok {
		docs = append(docs, core.Document{Scope: core.ScopeWorkspace, Path: FileName, Text: text})
	}

	for _, pkg := range ws.Members {
		if pkg.Path == "." || pkg.Path == "" {
			continue
		}
		rel := filepath.ToSlash(filepath.Join(pkg.Path, FileName))
		text, ok, err := readOptional(filepath.Join(ws.Root, pkg.Path, FileName))
		if err != nil {
			return nil, err
		}
		if ok {
			docs = append(docs, core.Document{Scope: core.ScopePackage, Package: pkg.Name, Path: rel, Text: text})
		}
	}
	return docs, nil
}

func readOptional(path string) (string, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read changelog: %w", err)
	}
	return string(data), true, nil
}
