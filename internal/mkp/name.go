package mkp

import (
	"fmt"
	"regexp"
	"strings"
)

// Extension is the file extension of package archives.
const Extension = ".mkp"

var namePattern = regexp.MustCompile(`^[a-zA-Z_][-a-zA-Z0-9_]*$`)

// PackageName is the validated name of a package.
type PackageName string

// NewPackageName validates raw and returns it as a PackageName.
func NewPackageName(raw string) (PackageName, error) {
	n := PackageName(raw)
	if err := n.Validate(); err != nil {
		return "", err
	}
	return n, nil
}

// Validate returns nil if the name is well formed.
func (n PackageName) Validate() error {
	if !namePattern.MatchString(string(n)) {
		return Errorf(ErrInvalid, "invalid package name %q: must start with a letter or underscore "+
			"and contain only letters, digits, dashes and underscores", string(n))
	}
	return nil
}

// String returns the string representation of the PackageName.
func (n PackageName) String() string { return string(n) }

// PackageID identifies one version of a package.
type PackageID struct {
	Name    PackageName
	Version PackageVersion
}

// NewPackageID validates both parts of the identifier.
func NewPackageID(name, version string) (PackageID, error) {
	n, err := NewPackageName(name)
	if err != nil {
		return PackageID{}, err
	}
	v, err := NewPackageVersion(version)
	if err != nil {
		return PackageID{}, err
	}
	return PackageID{Name: n, Version: v}, nil
}

// String returns "name version".
func (id PackageID) String() string {
	return fmt.Sprintf("%s %s", id.Name, id.Version)
}

// FileName returns the archive file name "<name>-<version>.mkp".
func (id PackageID) FileName() (string, error) {
	if strings.Contains(string(id.Name), "/") || strings.Contains(string(id.Version), "/") {
		return "", Errorf(ErrInvalid, "package name and version must not contain slashes")
	}
	return fmt.Sprintf("%s-%s%s", id.Name, id.Version, Extension), nil
}
