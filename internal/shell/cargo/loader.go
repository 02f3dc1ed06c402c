// Package cargo reads Cargo workspaces from disk and drives the cargo CLI.
package cargo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/artpar/autorelease/internal/core/domain"
)

// ManifestName is the file name of a package manifest.
const ManifestName = "Cargo.toml"

var (
	ErrNoManifest      = errors.New("`Cargo.toml` does not exist in the project directory")
	ErrNoPackage       = errors.New("manifest declares neither [package] nor [workspace]")
	ErrInvalidManifest = errors.New("invalid manifest")
)

// =============================================================================
// TOML Model
// =============================================================================

// manifestFile mirrors the parts of Cargo.toml release planning reads. The
// package's own fields and the dependency tables are decoded separately, so
// a dependency's version requirement can never be taken for the package's
// version.
type manifestFile struct {
	Package           *packageTable          `toml:"package"`
	Workspace         *workspaceTable        `toml:"workspace"`
	Dependencies      map[string]any         `toml:"dependencies"`
	BuildDependencies map[string]any         `toml:"build-dependencies"`
	DevDependencies   map[string]any         `toml:"dev-dependencies"`
	Target            map[string]targetTable `toml:"target"`
}

// packageTable fields are `any` because each may be a plain value or an
// inheritance table such as { workspace = true }.
type packageTable struct {
	Name        string `toml:"name"`
	Version     any    `toml:"version"`
	Description any    `toml:"description"`
	License     any    `toml:"license"`
	LicenseFile any    `toml:"license-file"`
	Repository  any    `toml:"repository"`
	Publish     any    `toml:"publish"`
}

type workspaceTable struct {
	Members      []string        `toml:"members"`
	Exclude      []string        `toml:"exclude"`
	Package      inheritedFields `toml:"package"`
	Dependencies map[string]any  `toml:"dependencies"`
}

type inheritedFields struct {
	Version     string `toml:"version"`
	Description string `toml:"description"`
	License     string `toml:"license"`
	LicenseFile string `toml:"license-file"`
	Repository  string `toml:"repository"`
	Publish     any    `toml:"publish"`
}

type targetTable struct {
	Dependencies      map[string]any `toml:"dependencies"`
	BuildDependencies map[string]any `toml:"build-dependencies"`
	DevDependencies   map[string]any `toml:"dev-dependencies"`
}

// =============================================================================
// Loading
// =============================================================================

// LoadWorkspace reads the workspace rooted at dir. Members come from the root
// [workspace] members globs minus exclude, plus the root [package] when the
// root is not virtual. A manifest without [workspace] is a single-package
// workspace. Members are sorted by name.
func LoadWorkspace(dir string) (domain.Workspace, error) {
	rootPath := filepath.Join(dir, ManifestName)
	root, err := readManifest(rootPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.Workspace{}, ErrNoManifest
		}
		return domain.Workspace{}, err
	}
	if root.Package == nil && root.Workspace == nil {
		return domain.Workspace{}, fmt.Errorf("%s: %w", rootPath, ErrNoPackage)
	}

	var inherited inheritedFields
	var wsDeps map[string]any
	if root.Workspace != nil {
		inherited = root.Workspace.Package
		wsDeps = root.Workspace.Dependencies
	}

	ws := domain.Workspace{Root: dir, RootVersion: inherited.Version}

	type loaded struct {
		pkg  domain.Package
		deps map[string][]string
	}
	var members []loaded

	add := func(rel string, mf *manifestFile) error {
		pkg, deps, err := toPackage(rel, mf, inherited, wsDeps)
		if err != nil {
			return fmt.Errorf("%s: %w", filepath.Join(rel, ManifestName), err)
		}
		members = append(members, loaded{pkg: pkg, deps: deps})
		return nil
	}

	if root.Package != nil {
		if err := add(".", root); err != nil {
			return domain.Workspace{}, err
		}
	}

	if root.Workspace != nil {
		dirs, err := memberDirs(dir, root.Workspace.Members, root.Workspace.Exclude)
		if err != nil {
			return domain.Workspace{}, err
		}
		for _, rel := range dirs {
			mf, err := readManifest(filepath.Join(dir, rel, ManifestName))
			if err != nil {
				return domain.Workspace{}, err
			}
			if mf.Package == nil {
				return domain.Workspace{}, fmt.Errorf("%s: %w", filepath.Join(rel, ManifestName), ErrNoPackage)
			}
			if err := add(rel, mf); err != nil {
				return domain.Workspace{}, err
			}
		}
	}

	names := make(map[string]bool, len(members))
	for _, m := range members {
		names[m.pkg.Name] = true
	}
	for _, m := range members {
		m.pkg.Dependencies = memberNames(names, m.deps["normal"], m.deps["build"])
		m.pkg.DevDependencies = memberNames(names, m.deps["dev"])
		ws.Members = append(ws.Members, m.pkg)
	}

	slices.SortStableFunc(ws.Members, func(a, b domain.Package) int {
		return strings.Compare(a.Name, b.Name)
	})
	return ws, nil
}

func readManifest(path string) (*manifestFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var mf manifestFile
	if err := toml.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", path, ErrInvalidManifest, err)
	}
	return &mf, nil
}

// memberDirs expands member globs relative to root. Only directories holding
// a Cargo.toml count. The result is sorted and free of duplicates.
func memberDirs(root string, patterns, exclude []string) ([]string, error) {
	excluded := make(map[string]bool, len(exclude))
	for _, e := range exclude {
		excluded[filepath.Clean(e)] = true
	}

	seen := make(map[string]bool)
	var dirs []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(filepath.Join(root, pattern))
		if err != nil {
			return nil, fmt.Errorf("workspace member pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			rel, err := filepath.Rel(root, m)
			if err != nil {
				return nil, err
			}
			if rel == "." || excluded[rel] || seen[rel] {
				continue
			}
			if _, err := os.Stat(filepath.Join(m, ManifestName)); err != nil {
				continue
			}
			seen[rel] = true
			dirs = append(dirs, rel)
		}
	}
	slices.Sort(dirs)
	return dirs, nil
}

// =============================================================================
// Conversion
// =============================================================================

func toPackage(rel string, mf *manifestFile, inherited inheritedFields, wsDeps map[string]any) (domain.Package, map[string][]string, error) {
	p := mf.Package
	pkg := domain.Package{Name: p.Name, Path: filepath.ToSlash(rel)}

	switch v := p.Version.(type) {
	case nil:
		// cargo treats an absent version as 0.0.0 with publish = false
		pkg.Version = domain.ExplicitVersion("0.0.0")
	case string:
		pkg.Version = domain.ExplicitVersion(v)
	default:
		if !isWorkspaceRef(v) {
			return pkg, nil, fmt.Errorf("%w: version must be a string or { workspace = true }", ErrInvalidManifest)
		}
		pkg.Version = domain.InheritedVersion()
	}

	var err error
	if pkg.Metadata.Description, err = field("description", p.Description, inherited.Description); err != nil {
		return pkg, nil, err
	}
	if pkg.Metadata.License, err = field("license", p.License, inherited.License); err != nil {
		return pkg, nil, err
	}
	if pkg.Metadata.LicenseFile, err = field("license-file", p.LicenseFile, inherited.LicenseFile); err != nil {
		return pkg, nil, err
	}
	if pkg.Metadata.Repository, err = field("repository", p.Repository, inherited.Repository); err != nil {
		return pkg, nil, err
	}

	publish := p.Publish
	if isWorkspaceRef(publish) {
		publish = inherited.Publish
	}
	pkg.PublishDisabled = publishDisabled(publish) || p.Version == nil

	deps := map[string][]string{
		"normal": pathDeps(mf.Dependencies, wsDeps),
		"build":  pathDeps(mf.BuildDependencies, wsDeps),
		"dev":    pathDeps(mf.DevDependencies, wsDeps),
	}
	for _, target := range sortedKeys(mf.Target) {
		t := mf.Target[target]
		deps["normal"] = append(deps["normal"], pathDeps(t.Dependencies, wsDeps)...)
		deps["build"] = append(deps["build"], pathDeps(t.BuildDependencies, wsDeps)...)
		deps["dev"] = append(deps["dev"], pathDeps(t.DevDependencies, wsDeps)...)
	}
	return pkg, deps, nil
}

// field reads a string field that may instead be { workspace = true }.
func field(name string, v any, inherited string) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	default:
		if isWorkspaceRef(val) {
			return inherited, nil
		}
		return "", fmt.Errorf("%w: %s must be a string or { workspace = true }", ErrInvalidManifest, name)
	}
}

func isWorkspaceRef(v any) bool {
	table, ok := v.(map[string]any)
	if !ok {
		return false
	}
	ws, _ := table["workspace"].(bool)
	return ws
}

// publishDisabled interprets publish = false and publish = [].
func publishDisabled(v any) bool {
	switch val := v.(type) {
	case bool:
		return !val
	case []any:
		return len(val) == 0
	default:
		return false
	}
}

// pathDeps returns the package names of local dependencies: tables with a
// path, or { workspace = true } entries whose workspace declaration has one.
// Registry dependencies given as plain version strings are skipped.
func pathDeps(table map[string]any, wsDeps map[string]any) []string {
	var names []string
	for _, key := range sortedKeys(table) {
		spec, ok := table[key].(map[string]any)
		if !ok {
			continue
		}
		name := key
		if renamed, ok := spec["package"].(string); ok && renamed != "" {
			name = renamed
		}

		if _, hasPath := spec["path"]; hasPath {
			names = append(names, name)
			continue
		}
		if isWorkspaceRef(spec) {
			wsSpec, ok := wsDeps[key].(map[string]any)
			if !ok {
				continue
			}
			if _, hasPath := wsSpec["path"]; !hasPath {
				continue
			}
			if renamed, ok := wsSpec["package"].(string); ok && renamed != "" {
				name = renamed
			}
			names = append(names, name)
		}
	}
	return names
}

// memberNames keeps the workspace members among the given name lists, sorted
// and deduplicated.
func memberNames(members map[string]bool, lists ...[]string) []string {
	var out []string
	for _, list := range lists {
		for _, n := range list {
			if members[n] && !slices.Contains(out, n) {
				out = append(out, n)
			}
		}
	}
	slices.Sort(out)
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
