package mkp

import (
	"cmp"
	"os"
	"slices"
	"strings"
	"sync"
)

// PackageVersion is the version string of a package. Two versions are the
// same version only if the strings are equal; ordering is a separate, looser
// relation given by SortKey.
type PackageVersion string

// NewPackageVersion validates raw and returns it as a PackageVersion.
func NewPackageVersion(raw string) (PackageVersion, error) {
	v := PackageVersion(raw)
	if err := v.Validate(); err != nil {
		return "", err
	}
	return v, nil
}

// Validate returns nil if the version is non-empty and free of path separators.
func (v PackageVersion) Validate() error {
	if v == "" {
		return Errorf(ErrInvalid, "package version must not be empty")
	}
	if strings.ContainsRune(string(v), '/') || strings.ContainsRune(string(v), os.PathSeparator) {
		return Errorf(ErrInvalid, "invalid package version %q: must not contain a path separator", string(v))
	}
	return nil
}

// String returns the string representation of the PackageVersion.
func (v PackageVersion) String() string { return string(v) }

// sortKeys caches parsed keys per version string for the process lifetime.
var sortKeys sync.Map

// SortKey returns the ordering key of the version. Keys are parsed once per
// distinct version string and cached.
func (v PackageVersion) SortKey() SortKey {
	if k, ok := sortKeys.Load(v); ok {
		return k.(SortKey)
	}
	k, _ := sortKeys.LoadOrStore(v, parseSortKey(string(v)))
	return k.(SortKey)
}

// Compare orders two versions by their sort keys.
func (v PackageVersion) Compare(other PackageVersion) int {
	return v.SortKey().Compare(other.SortKey())
}

// Less reports whether v sorts before other.
func (v PackageVersion) Less(other PackageVersion) bool { return v.Compare(other) < 0 }

// identifier is one dot-separated element of a version.
// Numeric identifiers always sort before non-numeric ones at the same
// position; numerics compare by value, everything else byte-wise.
type identifier struct {
	numeric bool
	value   string
}

func (a identifier) compare(b identifier) int {
	switch {
	case a.numeric && !b.numeric:
		return -1
	case !a.numeric && b.numeric:
		return 1
	case a.numeric:
		if c := cmp.Compare(len(a.value), len(b.value)); c != 0 {
			return c
		}
	}
	return strings.Compare(a.value, b.value)
}

// SortKey is the derived ordering key of a PackageVersion. Build metadata
// (after "+") is ignored, the remainder splits at the first "-" into release
// and prerelease. A key without prerelease carries a trailing sentinel that
// outranks any prerelease of the same release.
type SortKey struct {
	release    []identifier
	prerelease []identifier
	final      bool
}

func parseSortKey(raw string) SortKey {
	if i := strings.IndexByte(raw, '+'); i >= 0 {
		raw = raw[:i]
	}
	release, pre, hasPre := strings.Cut(raw, "-")
	key := SortKey{release: parseIdentifiers(release), final: !hasPre}
	if hasPre {
		key.prerelease = parseIdentifiers(pre)
	}
	return key
}

func parseIdentifiers(s string) []identifier {
	parts := strings.Split(s, ".")
	ids := make([]identifier, len(parts))
	for i, p := range parts {
		if isDigits(p) {
			trimmed := strings.TrimLeft(p, "0")
			if trimmed == "" {
				trimmed = "0"
			}
			ids[i] = identifier{numeric: true, value: trimmed}
		} else {
			ids[i] = identifier{value: p}
		}
	}
	return ids
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func compareIdentifiers(a, b []identifier) int {
	return slices.CompareFunc(a, b, identifier.compare)
}

// Compare returns -1, 0 or +1.
func (k SortKey) Compare(o SortKey) int {
	if c := compareIdentifiers(k.release, o.release); c != 0 {
		return c
	}
	switch {
	case k.final && !o.final:
		return 1
	case !k.final && o.final:
		return -1
	}
	return compareIdentifiers(k.prerelease, o.prerelease)
}

// SortVersionsDescending orders versions newest first.
func SortVersionsDescending(versions []PackageVersion) {
	slices.SortStableFunc(versions, func(a, b PackageVersion) int {
		return b.Compare(a)
	})
}
