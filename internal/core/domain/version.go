package domain

import (
	"strings"

	"golang.org/x/mod/semver"
)

// IsValidVersion reports whether s is a MAJOR.MINOR.PATCH semantic version
// with optional pre-release and build metadata, written without a leading "v".
//
// Examples:
//
//	IsValidVersion("1.2.3")       // true
//	IsValidVersion("1.2.3-rc.1")  // true
//	IsValidVersion("1.2")         // false
//	IsValidVersion("v1.2.3")      // false
//	IsValidVersion("01.2.3")      // false
func IsValidVersion(s string) bool {
	if s == "" || s[0] == 'v' {
		return false
	}
	if !semver.IsValid("v" + s) {
		return false
	}
	// x/mod/semver accepts the "v1" and "v1.2" shorthands.
	core := s
	if i := strings.IndexAny(core, "-+"); i >= 0 {
		core = core[:i]
	}
	return strings.Count(core, ".") == 2
}

// CompareVersions orders two valid versions by semantic-version precedence.
// Build metadata is ignored. Invalid versions sort before valid ones.
func CompareVersions(a, b string) int {
	return semver.Compare("v"+a, "v"+b)
}

// VersionsEqual reports semantic-version equality.
func VersionsEqual(a, b string) bool {
	if !IsValidVersion(a) || !IsValidVersion(b) {
		return false
	}
	return CompareVersions(a, b) == 0
}

// CanonicalVersion returns a key under which semantically equal versions
// collide. The second return is false for invalid input.
func CanonicalVersion(v string) (string, bool) {
	if !IsValidVersion(v) {
		return "", false
	}
	return strings.TrimPrefix(semver.Canonical("v"+v), "v"), true
}

// GlobalTagName returns the workspace-wide tag for version v ("v1.2.3").
func GlobalTagName(v string) string {
	return "v" + v
}

// ScopedTagName returns the per-package tag for name at version v ("name-v1.2.3").
func ScopedTagName(name, v string) string {
	return name + "-v" + v
}
