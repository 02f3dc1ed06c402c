package manifest

import (
	"fmt"
	"slices"
	"strings"

	"github.com/artpar/autorelease/internal/core/domain"
)

// RootPackageName names the root manifest in errors about its version.
const RootPackageName = "workspace"

// Options tunes resolution.
type Options struct {
	// StrictMetadata turns missing registry metadata into a ManifestError for
	// every package that has not opted out with publish = false.
	StrictMetadata bool
}

// EffectiveVersion returns the version a package is released at: the explicit
// declaration if there is one, otherwise the workspace root version.
func EffectiveVersion(pkg domain.Package, rootVersion string) (string, error) {
	if !pkg.Version.Inherited {
		v := pkg.Version.Explicit
		if v == "" {
			return "", NewManifestError(pkg.Name, "version", "no version declared", ErrMissingVersion)
		}
		if !domain.IsValidVersion(v) {
			return "", NewManifestError(pkg.Name, "version",
				fmt.Sprintf("%q is not a valid semantic version", v), ErrInvalidVersion)
		}
		return v, nil
	}
	if rootVersion == "" {
		return "", NewManifestError(pkg.Name, "version",
			"inherits the workspace version but the workspace root declares none", ErrInheritedWithoutRoot)
	}
	return rootVersion, nil
}

// IsPublishable reports whether pkg may be sent to the registry: it has not
// opted out and carries a description plus a license or license file.
func IsPublishable(pkg domain.Package) bool {
	return !pkg.PublishDisabled && len(pkg.Metadata.Missing()) == 0
}

// Resolve computes the effective version and publishability of every member.
// The result is sorted by package name.
//
// The first problem found, in name order, is returned as a *ManifestError:
// an invalid root version, a duplicate or empty name, an inherited version
// with no root version, a non-semver version, or (with StrictMetadata)
// missing registry metadata.
func Resolve(ws domain.Workspace, opts Options) ([]domain.ResolvedPackage, error) {
	if ws.RootVersion != "" && !domain.IsValidVersion(ws.RootVersion) {
		return nil, NewManifestError(RootPackageName, "version",
			fmt.Sprintf("%q is not a valid semantic version", ws.RootVersion), ErrInvalidVersion)
	}

	members := slices.Clone(ws.Members)
	slices.SortStableFunc(members, func(a, b domain.Package) int {
		return strings.Compare(a.Name, b.Name)
	})

	resolved := make([]domain.ResolvedPackage, 0, len(members))
	for i, pkg := range members {
		if pkg.Name == "" {
			return nil, NewManifestError("", "name", fmt.Sprintf("manifest at %q has no package name", pkg.Path), ErrEmptyName)
		}
		if i > 0 && members[i-1].Name == pkg.Name {
			return nil, NewManifestError(pkg.Name, "name",
				fmt.Sprintf("declared at both %q and %q", members[i-1].Path, pkg.Path), ErrDuplicatePackage)
		}

		version, err := EffectiveVersion(pkg, ws.RootVersion)
		if err != nil {
			return nil, err
		}

		missing := pkg.Metadata.Missing()
		if opts.StrictMetadata && !pkg.PublishDisabled && len(missing) > 0 {
			return nil, NewManifestError(pkg.Name, missing[0],
				fmt.Sprintf("is missing a %s field", missing[0]), ErrMissingMetadata)
		}

		resolved = append(resolved, domain.ResolvedPackage{
			Package:          pkg,
			EffectiveVersion: version,
			Publishable:      IsPublishable(pkg),
			MissingMetadata:  missing,
		})
	}
	return resolved, nil
}

// Index maps package names to resolved packages.
func Index(pkgs []domain.ResolvedPackage) map[string]domain.ResolvedPackage {
	idx := make(map[string]domain.ResolvedPackage, len(pkgs))
	for _, p := range pkgs {
		idx[p.Name] = p
	}
	return idx
}

// Publishable filters pkgs down to the publishable ones, preserving order.
func Publishable(pkgs []domain.ResolvedPackage) []domain.ResolvedPackage {
	var out []domain.ResolvedPackage
	for _, p := range pkgs {
		if p.Publishable {
			out = append(out, p)
		}
	}
	return out
}
