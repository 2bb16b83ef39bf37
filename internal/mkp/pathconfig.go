package mkp

import (
	"cmp"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// PathConfig resolves every part and auxiliary directory of one site.
type PathConfig struct {
	SiteRoot string

	parts map[Part]string

	// InstalledDir holds one manifest per installed package.
	InstalledDir string
	// ShippedDir holds archives bundled with the platform (read-only).
	ShippedDir string
	// LocalDir holds archives uploaded or built on this site.
	LocalDir string
	// EnabledDir holds a copy of every archive that should be active.
	EnabledDir string
	// DisabledDir is the pre-enabled-tier location of disabled archives.
	DisabledDir string
	// LocalRoot is the root of the local hierarchy.
	LocalRoot string
	TmpDir    string
	// RulePackRegistry lists the rule packs known to the event console.
	RulePackRegistry string
}

// NewPathConfig lays out the default directories below siteRoot.
func NewPathConfig(siteRoot string) *PathConfig {
	root := filepath.Clean(siteRoot)
	pc := &PathConfig{
		SiteRoot:         root,
		parts:            make(map[Part]string, len(partSpecs)),
		InstalledDir:     filepath.Join(root, "var/check_mk/packages"),
		ShippedDir:       filepath.Join(root, "share/check_mk/optional_packages"),
		LocalDir:         filepath.Join(root, "var/check_mk/packages_local"),
		EnabledDir:       filepath.Join(root, "local/share/check_mk/enabled_packages"),
		DisabledDir:      filepath.Join(root, "var/check_mk/disabled_packages"),
		LocalRoot:        filepath.Join(root, "local"),
		TmpDir:           filepath.Join(root, "tmp/check_mk"),
		RulePackRegistry: filepath.Join(root, "etc/check_mk/mkeventd.d/rule_packs.yaml"),
	}
	for part, spec := range partSpecs {
		pc.parts[part] = filepath.Join(root, filepath.FromSlash(spec.dir))
	}
	return pc
}

// SetPath overrides the directory of one part.
func (pc *PathConfig) SetPath(part Part, dir string) {
	pc.parts[part] = filepath.Clean(dir)
}

// Path returns the install directory of part.
func (pc *PathConfig) Path(part Part) string {
	return pc.parts[part]
}

// Part returns the part whose directory is the deepest ancestor of path,
// after resolving symlinks on both sides.
func (pc *PathConfig) Part(path string) (Part, bool) {
	resolved := resolve(path)

	type candidate struct {
		part Part
		dir  string
	}
	candidates := make([]candidate, 0, len(pc.parts))
	for part, dir := range pc.parts {
		candidates = append(candidates, candidate{part, resolve(dir)})
	}
	slices.SortFunc(candidates, func(a, b candidate) int {
		if c := cmp.Compare(len(b.dir), len(a.dir)); c != 0 {
			return c
		}
		return strings.Compare(string(a.part), string(b.part))
	})

	for _, c := range candidates {
		if isWithin(c.dir, resolved) {
			return c.part, true
		}
	}
	return "", false
}

func resolve(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = filepath.Clean(path)
	}
	if target, err := filepath.EvalSymlinks(abs); err == nil {
		return target
	}
	return abs
}

func isWithin(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(os.PathSeparator))
}
