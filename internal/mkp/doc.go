// Package mkp holds the package model shared by every layer of the package
// engine: validated identifiers, the version ordering, package parts and
// their install directories, the manifest and its encodings, and the single
// error type the engine reports.
//
// Identifiers:
//   - [PackageName]: starts with a letter or underscore, then alphanumerics,
//     dashes and underscores
//   - [PackageVersion]: any string without a path separator; ordered by
//     [PackageVersion.SortKey]
//   - [PackageID]: (name, version) pair used as map key for the enabled and
//     installed sets
//
// Every [Part] has exactly one directory (resolved by [PathConfig]), one
// default file mode and one title.
package mkp
