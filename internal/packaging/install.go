package packaging

import (
	"context"

	"go.uber.org/zap"

	"github.com/Checkmk/checkmk-sub074/internal/archive"
	"github.com/Checkmk/checkmk-sub074/internal/mkp"
)

// installRequest describes one run of the install sequence.
type installRequest struct {
	data  []byte
	check VersionCheck
	// adopt is set by create and edit: the listed files already exist on
	// disk as the package source, and files dropped from the previous
	// manifest stay behind as unpackaged files.
	adopt bool
	// previous overrides the manifest being replaced. Without it the
	// installed manifest of the same name is used.
	previous *mkp.Manifest
}

// Install installs the stored archive id. The archive is marked enabled
// even if the installation fails, so that reconciliation can retry it.
func (m *Manager) Install(ctx context.Context, id mkp.PackageID, check VersionCheck) (*mkp.Manifest, error) {
	defer func() {
		if err := m.store.MarkAsEnabled(id); err != nil {
			m.logger.Error("failed to mark package as enabled", zap.String("package", id.String()), zap.Error(err))
		}
	}()

	data, err := m.store.Read(id)
	if err != nil {
		return nil, err
	}
	man, err := m.install(installRequest{data: data, check: check})
	if err != nil {
		return nil, err
	}
	m.notify(ctx)
	return man, nil
}

// install runs the install sequence: checks, extraction, permission repair,
// hooks, removal of files the previous version no longer lists and finally
// the registry entry.
func (m *Manager) install(req installRequest) (*mkp.Manifest, error) {
	man, err := archive.ExtractManifest(req.data)
	if err != nil {
		return nil, err
	}

	prev := req.previous
	if prev == nil {
		if prev, err = m.installer.Get(man.Name); err != nil {
			m.logger.Warn("ignoring unreadable installed manifest", zap.String("package", string(man.Name)), zap.Error(err))
			prev = nil
		}
	}

	log := m.logger.With(zap.String("package", man.ID().String()))
	if prev != nil {
		log.Info("updating package", zap.String("from", prev.ID().String()))
	} else {
		log.Info("installing package")
	}

	if err := m.checkVersion(man, req.check); err != nil {
		return nil, err
	}
	index, err := m.ownerIndex()
	if err != nil {
		return nil, err
	}
	if err := m.checkConflicts(man, fileSet(prev), index, !req.adopt); err != nil {
		return nil, err
	}

	if err := archive.Extract(man, req.data, m.pc); err != nil {
		return nil, err
	}
	for _, part := range mkp.AllParts() {
		for _, f := range man.PartFiles(part) {
			log.Debug("installed file", zap.String("part", string(part)), zap.String("file", f))
		}
	}
	if err := m.fixPermissions(man); err != nil {
		return nil, err
	}
	if err := m.hooks.Install(man.Files); err != nil {
		log.Warn("install hooks failed", zap.Error(err))
	}

	if prev != nil {
		dropped := difference(prev, man)
		if req.adopt {
			if err := m.hooks.Release(dropped); err != nil {
				log.Warn("release hooks failed", zap.Error(err))
			}
		} else {
			if err := m.removeFiles(dropped); err != nil {
				log.Error("failed to remove outdated files", zap.Error(err))
			}
			if err := m.hooks.Uninstall(dropped); err != nil {
				log.Warn("uninstall hooks failed", zap.Error(err))
			}
		}
		if prev.ID() != man.ID() {
			if err := m.store.RemoveEnabledMark(prev.ID()); err != nil {
				log.Warn("failed to disable previous version", zap.Error(err))
			}
		}
	}

	if err := m.installer.Add(man); err != nil {
		return nil, err
	}

	action := ActionInstall
	detail := ""
	if prev != nil {
		action = ActionUpdate
		detail = "from " + string(prev.Version)
	}
	m.record(action, man.ID(), detail)
	return man, nil
}

// Uninstall removes the files and the registry entry of an installed
// package. Files listed in keep stay on disk.
func (m *Manager) Uninstall(ctx context.Context, name mkp.PackageName, keep map[mkp.Part][]string) error {
	man, err := m.installer.Get(name)
	if err != nil {
		return err
	}
	if man == nil {
		return mkp.Errorf(mkp.ErrNotInstalled, "Package %s is not installed", name)
	}
	if err := m.uninstall(man, fileSet(&mkp.Manifest{Files: keep})); err != nil {
		return err
	}
	m.notify(ctx)
	return nil
}

// uninstall deletes the files of man except those in keep, runs the
// uninstall hooks and drops the registry entry.
func (m *Manager) uninstall(man *mkp.Manifest, keep map[mkp.Part]map[string]bool) error {
	m.logger.Info("uninstalling package", zap.String("package", man.ID().String()))

	remove := make(map[mkp.Part][]string)
	for _, part := range mkp.AllParts() {
		for _, f := range man.PartFiles(part) {
			if !keep[part][f] {
				remove[part] = append(remove[part], f)
			}
		}
	}

	if err := m.removeFiles(remove); err != nil {
		return mkp.Wrapf(mkp.ErrInvalid, err, "Cannot uninstall package %s", man.Name)
	}
	if err := m.hooks.Uninstall(remove); err != nil {
		m.logger.Warn("uninstall hooks failed", zap.String("package", man.ID().String()), zap.Error(err))
	}
	if err := m.installer.Remove(man.Name); err != nil {
		return err
	}
	m.record(ActionUninstall, man.ID(), "")
	return nil
}

// Release drops the registry entry of name and leaves its files on disk as
// unpackaged files.
func (m *Manager) Release(name mkp.PackageName) error {
	man, err := m.installer.Get(name)
	if err != nil || man == nil {
		return mkp.Errorf(mkp.ErrNotInstalled, "Package %s not installed or corrupt.", name)
	}

	m.logger.Info("releasing package files", zap.String("package", man.ID().String()), zap.Int("files", man.NumFiles()))
	if err := m.hooks.Release(man.Files); err != nil {
		m.logger.Warn("release hooks failed", zap.String("package", man.ID().String()), zap.Error(err))
	}
	if err := m.installer.Remove(name); err != nil {
		return err
	}
	m.record(ActionRelease, man.ID(), "")
	return nil
}
