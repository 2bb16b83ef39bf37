package packaging

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/Checkmk/checkmk-sub074/internal/mkp"
)

// ownerIndex maps part -> relative path -> owning package.
type ownerIndex map[mkp.Part]map[string]mkp.PackageID

func (m *Manager) ownerIndex() (ownerIndex, error) {
	index, err := m.installer.PackagedFiles()
	if err != nil {
		return nil, err
	}
	return ownerIndex(index), nil
}

func (m *Manager) checkVersion(man *mkp.Manifest, check VersionCheck) error {
	if check >= CheckMinimum {
		if err := m.checkTooOld(man); err != nil {
			return err
		}
	}
	if check >= CheckFull {
		return m.checkTooNew(man)
	}
	return nil
}

// checkTooOld fails if the platform is older than version.min_required.
func (m *Manager) checkTooOld(man *mkp.Manifest) error {
	c, err := m.compare(man.VersionMinRequired, m.platformVersion)
	if err != nil {
		m.logger.Debug("skipping minimum version check",
			zap.String("package", man.ID().String()), zap.Error(err))
		return nil
	}
	if c > 0 {
		return mkp.Errorf(mkp.ErrIncompatible,
			"The package requires platform version %s, but you have %s installed.",
			man.VersionMinRequired, m.platformVersion)
	}
	return nil
}

// checkTooNew fails if the platform reached version.usable_until.
func (m *Manager) checkTooNew(man *mkp.Manifest) error {
	until := man.UsableUntil()
	if until == "" {
		return nil
	}
	c, err := m.compare(m.platformVersion, until)
	if err != nil {
		m.logger.Debug("skipping usable-until check",
			zap.String("package", man.ID().String()), zap.Error(err))
		return nil
	}
	if c >= 0 {
		return mkp.Errorf(mkp.ErrIncompatible, "Package is outdated: %s >= %s", m.platformVersion, until)
	}
	return nil
}

// checkConflicts fails if man lists a file owned by another package, or,
// with checkExisting, a file that exists on disk without an owner. Files
// listed in allowed are never conflicts.
func (m *Manager) checkConflicts(man *mkp.Manifest, allowed map[mkp.Part]map[string]bool, index ownerIndex, checkExisting bool) error {
	for _, part := range mkp.AllParts() {
		for _, f := range man.PartFiles(part) {
			if allowed[part][f] {
				continue
			}
			path := filepath.Join(m.pc.Path(part), filepath.FromSlash(f))
			if owner, ok := index[part][f]; ok && owner.Name != man.Name {
				return mkp.Errorf(mkp.ErrConflict, "File conflict: %s (part of another package: %s)", path, owner)
			}
			if checkExisting && exists(path) {
				return mkp.Errorf(mkp.ErrConflict, "File conflict: %s (already existing)", path)
			}
		}
	}
	return nil
}

// checkSourceFiles verifies that every file of man exists and is not owned
// by a package outside names.
func (m *Manager) checkSourceFiles(man *mkp.Manifest, index ownerIndex, names ...mkp.PackageName) error {
	own := make(map[mkp.PackageName]bool, len(names))
	for _, n := range names {
		own[n] = true
	}
	for _, part := range mkp.AllParts() {
		for _, f := range man.PartFiles(part) {
			path := filepath.Join(m.pc.Path(part), filepath.FromSlash(f))
			if !exists(path) {
				return mkp.Errorf(mkp.ErrMissingFile, "File %s does not exist.", path)
			}
			if owner, ok := index[part][f]; ok && !own[owner.Name] {
				return mkp.Errorf(mkp.ErrConflict, "File %s does already belong to package %s", path, owner)
			}
		}
	}
	return nil
}

// fileSet turns the files of manifests into part -> path lookups.
func fileSet(manifests ...*mkp.Manifest) map[mkp.Part]map[string]bool {
	set := make(map[mkp.Part]map[string]bool)
	for _, man := range manifests {
		if man == nil {
			continue
		}
		for part, files := range man.Files {
			if set[part] == nil {
				set[part] = make(map[string]bool, len(files))
			}
			for _, f := range files {
				set[part][f] = true
			}
		}
	}
	return set
}

// difference returns the files of a not listed in b.
func difference(a, b *mkp.Manifest) map[mkp.Part][]string {
	out := make(map[mkp.Part][]string)
	if a == nil {
		return out
	}
	keep := fileSet(b)
	for _, part := range mkp.AllParts() {
		for _, f := range a.PartFiles(part) {
			if !keep[part][f] {
				out[part] = append(out[part], f)
			}
		}
	}
	return out
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}
