// Package domain defines the value types shared by the release planning core.
//
// Everything here is a plain value: packages as declared in their manifests,
// the packages' resolved state, publish gaps, release descriptors and the final
// plan. No function in this package performs I/O.
//
// # Types
//
//   - Package, Workspace: manifest records handed in by the shell
//   - ResolvedPackage: a package with its effective version and publishability
//   - PublishGap: a package not yet tagged at its effective version
//   - ReleaseDescriptor, Plan: what the executor tags, publishes and announces
//
// Versions are semantic versions without a leading "v"; see IsValidVersion.
package domain
