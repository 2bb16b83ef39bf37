package packaging

import (
	"context"

	"go.uber.org/zap"

	"github.com/Checkmk/checkmk-sub074/internal/archive"
	"github.com/Checkmk/checkmk-sub074/internal/mkp"
)

// Package builds the archive of man from the files on disk without storing
// or installing it.
func (m *Manager) Package(man *mkp.Manifest) ([]byte, error) {
	return archive.Create(man, m.pc, m.platformVersion)
}

// Create turns existing unpackaged files into a new installed and enabled
// package. Nothing is written if a listed file is missing or owned by
// another package.
func (m *Manager) Create(ctx context.Context, man *mkp.Manifest) (*mkp.Manifest, error) {
	if err := man.Validate(); err != nil {
		return nil, err
	}
	if m.installer.IsInstalled(man.Name) {
		return nil, mkp.Errorf(mkp.ErrExists, "Package %s already exists.", man.Name)
	}

	installed, err := m.build(man, nil, man.Name)
	if err != nil {
		return nil, err
	}
	m.record(ActionCreate, installed.ID(), "")
	m.notify(ctx)
	return installed, nil
}

// Edit replaces the manifest of the installed package name with man. If
// man carries a different name the package is renamed. Files dropped from
// the manifest are left on disk as unpackaged files.
func (m *Manager) Edit(ctx context.Context, name mkp.PackageName, man *mkp.Manifest) (*mkp.Manifest, error) {
	if err := man.Validate(); err != nil {
		return nil, err
	}
	old, err := m.installer.Get(name)
	if err != nil {
		return nil, err
	}
	if old == nil {
		return nil, mkp.Errorf(mkp.ErrNotInstalled, "No such package: %s", name)
	}
	renamed := man.Name != name
	if renamed && m.installer.IsInstalled(man.Name) {
		return nil, mkp.Errorf(mkp.ErrExists, "Cannot rename package: a package with the name %s already exists.", man.Name)
	}

	installed, err := m.build(man, old, name, man.Name)
	if err != nil {
		return nil, err
	}
	if renamed {
		if err := m.installer.Remove(name); err != nil {
			return nil, err
		}
	}

	detail := ""
	if old.ID() != installed.ID() {
		detail = "from " + old.ID().String()
	}
	m.record(ActionEdit, installed.ID(), detail)
	m.notify(ctx)
	return installed, nil
}

// build validates the source files of man, packs them, stores and enables
// the archive and runs the install sequence on it. owners are the package
// names whose files man may take over.
func (m *Manager) build(man *mkp.Manifest, previous *mkp.Manifest, owners ...mkp.PackageName) (*mkp.Manifest, error) {
	index, err := m.ownerIndex()
	if err != nil {
		return nil, err
	}
	if err := m.checkSourceFiles(man, index, owners...); err != nil {
		return nil, err
	}

	data, err := archive.Create(man, m.pc, m.platformVersion)
	if err != nil {
		return nil, err
	}
	stored, err := m.store.Store(data, true)
	if err != nil {
		return nil, err
	}
	if err := m.store.MarkAsEnabled(stored.ID()); err != nil {
		return nil, err
	}
	return m.install(installRequest{data: data, check: CheckNone, adopt: true, previous: previous})
}

// Add stores an uploaded archive in the local tier without installing it.
func (m *Manager) Add(data []byte) (*mkp.Manifest, error) {
	man, err := m.store.Store(data, false)
	if err != nil {
		return nil, err
	}
	m.record(ActionStore, man.ID(), "")
	return man, nil
}

// Enable installs a stored version of name with the minimum version check.
// Without a version the package must be stored in exactly one version.
func (m *Manager) Enable(ctx context.Context, name mkp.PackageName, version mkp.PackageVersion) (*mkp.Manifest, error) {
	id := mkp.PackageID{Name: name, Version: version}
	if version == "" {
		stored, err := m.storedVersions(name)
		if err != nil {
			return nil, err
		}
		switch len(stored) {
		case 0:
			return nil, mkp.Errorf(mkp.ErrNotFound, "Package %s does not exist", name)
		case 1:
			id = stored[0]
		default:
			return nil, mkp.Errorf(mkp.ErrInvalid, "Package not unique: %s (please specify a version)", name)
		}
	}
	return m.Install(ctx, id, CheckMinimum)
}

// storedVersions lists the ids of name found in the local and shipped tiers.
func (m *Manager) storedVersions(name mkp.PackageName) ([]mkp.PackageID, error) {
	local, err := m.store.ListLocal()
	if err != nil {
		return nil, err
	}
	shipped, err := m.store.ListShipped()
	if err != nil {
		return nil, err
	}

	seen := make(map[mkp.PackageID]bool)
	var ids []mkp.PackageID
	for _, man := range append(local, shipped...) {
		if man.Name == name && !seen[man.ID()] {
			seen[man.ID()] = true
			ids = append(ids, man.ID())
		}
	}
	return ids, nil
}

// Disable removes the enabled mark of name (and version, if given) and
// uninstalls the package if that version is installed.
func (m *Manager) Disable(ctx context.Context, name mkp.PackageName, version mkp.PackageVersion) error {
	enabled, err := m.store.ListEnabled()
	if err != nil {
		return err
	}

	var matches []*mkp.Manifest
	for _, man := range enabled {
		if man.Name == name && (version == "" || man.Version == version) {
			matches = append(matches, man)
		}
	}
	label := string(name)
	if version != "" {
		label += " " + string(version)
	}
	switch {
	case len(matches) == 0:
		return mkp.Errorf(mkp.ErrNotEnabled, "Package %s is not enabled", label)
	case len(matches) > 1:
		return mkp.Errorf(mkp.ErrInvalid, "Package not unique: %s", label)
	}
	target := matches[0]

	installed, err := m.installer.Get(name)
	if err != nil {
		return err
	}
	changed := false
	if installed != nil && installed.Version == target.Version {
		if err := m.uninstall(installed, nil); err != nil {
			return err
		}
		changed = true
	}
	if err := m.store.RemoveEnabledMark(target.ID()); err != nil {
		return err
	}

	m.logger.Info("package disabled", zap.String("package", target.ID().String()))
	m.record(ActionDisable, target.ID(), "")
	if changed {
		m.notify(ctx)
	}
	return nil
}

// Remove deletes a local archive that is not enabled.
func (m *Manager) Remove(id mkp.PackageID) error {
	if m.store.IsEnabled(id) {
		return mkp.Errorf(mkp.ErrInvalid, "Package %s is enabled. Disable it before removing it.", id)
	}
	if err := m.store.Remove(id); err != nil {
		return err
	}
	m.record(ActionRemove, id, "")
	return nil
}
