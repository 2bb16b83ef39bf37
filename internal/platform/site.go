package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// editions are the suffixes of version directory names, e.g. "2.3.0p1.cre".
var editions = map[string]bool{
	"cre": true, "cee": true, "cce": true, "cme": true, "cse": true, "demo": true,
}

// FromSite reads the platform version of a site from its "version" symlink,
// which points at the versions directory, e.g. "../../versions/2.3.0p1.cee".
func FromSite(siteRoot string) (string, error) {
	target, err := os.Readlink(filepath.Join(siteRoot, "version"))
	if err != nil {
		return "", fmt.Errorf("failed to read site version: %w", err)
	}
	name := filepath.Base(target)
	if i := strings.LastIndexByte(name, '.'); i > 0 && editions[name[i+1:]] {
		name = name[:i]
	}
	if name == "" || name == "." {
		return "", fmt.Errorf("invalid site version link %q", target)
	}
	return name, nil
}
