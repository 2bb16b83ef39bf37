package packaging

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/Checkmk/checkmk-sub074/internal/mkp"
)

// SkippedPackage is a candidate reconciliation could not install.
type SkippedPackage struct {
	ID  mkp.PackageID
	Err error
}

// UpdateResult summarises one reconciliation run.
type UpdateResult struct {
	Uninstalled []mkp.PackageID
	Installed   []mkp.PackageID
	Kept        []mkp.PackageID
	Skipped     []SkippedPackage
}

// Changed reports whether the run installed or removed anything.
func (r *UpdateResult) Changed() bool {
	return len(r.Uninstalled) > 0 || len(r.Installed) > 0
}

// UpdateActivePackages brings the installed packages in line with the
// enabled ones under the current platform version. Installed packages that
// no longer pass the checks are uninstalled first; then, per name, the
// newest enabled version that passes is installed. Older versions are only
// tried after a newer one failed.
//
// Package errors are logged and the candidate is skipped, unless Debug is
// set.
func (m *Manager) UpdateActivePackages(ctx context.Context) (*UpdateResult, error) {
	result := &UpdateResult{}
	if err := m.deinstallInapplicable(result); err != nil {
		return result, err
	}
	if err := m.installApplicable(result); err != nil {
		return result, err
	}
	if result.Changed() {
		m.notify(ctx)
	}
	return result, nil
}

func (m *Manager) deinstallInapplicable(result *UpdateResult) error {
	installed, err := m.installer.List()
	if err != nil {
		return err
	}

	index, err := m.ownerIndex()
	if err != nil {
		return err
	}
	for _, man := range installed {
		log := m.logger.With(zap.String("package", man.ID().String()))
		err := m.checkVersion(man, CheckFull)
		if err == nil {
			err = m.checkConflicts(man, fileSet(man), index, false)
		}
		if err == nil {
			log.Debug("kept")
			continue
		}

		log.Info("uninstalling", zap.Error(err))
		if err := m.uninstall(man, nil); err != nil {
			if m.Debug || !mkp.IsPackageError(err) {
				return err
			}
			log.Warn("failed to uninstall", zap.Error(err))
			result.Skipped = append(result.Skipped, SkippedPackage{ID: man.ID(), Err: err})
			continue
		}
		result.Uninstalled = append(result.Uninstalled, man.ID())
	}
	return nil
}

func (m *Manager) installApplicable(result *UpdateResult) error {
	enabled, err := m.store.GetEnabledManifests()
	if err != nil {
		return err
	}

	for _, group := range groupByName(enabled) {
		installed, err := m.installer.Get(group.name)
		if err != nil {
			m.logger.Warn("ignoring unreadable installed manifest", zap.String("package", string(group.name)), zap.Error(err))
			installed = nil
		}

		for _, version := range group.versions {
			id := mkp.PackageID{Name: group.name, Version: version}
			log := m.logger.With(zap.String("package", id.String()))

			if installed != nil && installed.Version == version {
				log.Debug("already installed")
				result.Kept = append(result.Kept, id)
				break
			}

			data, err := m.store.ReadEnabled(id)
			if err == nil {
				_, err = m.install(installRequest{data: data, check: CheckFull})
			}
			if err != nil {
				if m.Debug || !mkp.IsPackageError(err) {
					return err
				}
				log.Warn("version not installed", zap.Error(err))
				result.Skipped = append(result.Skipped, SkippedPackage{ID: id, Err: err})
				continue
			}
			log.Info("version installed")
			result.Installed = append(result.Installed, id)
			break
		}
	}
	return nil
}

type versionGroup struct {
	name     mkp.PackageName
	versions []mkp.PackageVersion
}

// groupByName groups ids by name, names ascending, versions newest first.
func groupByName(enabled map[mkp.PackageID]*mkp.Manifest) []versionGroup {
	byName := make(map[mkp.PackageName][]mkp.PackageVersion)
	for id := range enabled {
		byName[id.Name] = append(byName[id.Name], id.Version)
	}

	groups := make([]versionGroup, 0, len(byName))
	for name, versions := range byName {
		mkp.SortVersionsDescending(versions)
		groups = append(groups, versionGroup{name: name, versions: versions})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].name < groups[j].name })
	return groups
}

// DisableOutdated uninstalls and disables every installed package whose
// version.usable_until the platform has reached.
func (m *Manager) DisableOutdated(ctx context.Context) ([]mkp.PackageID, error) {
	installed, err := m.installer.List()
	if err != nil {
		return nil, err
	}

	var disabled []mkp.PackageID
	for _, man := range installed {
		log := m.logger.With(zap.String("package", man.ID().String()))
		reason := m.checkTooNew(man)
		if reason == nil {
			log.Debug("not outdated")
			continue
		}
		log.Info("disabling outdated package", zap.Error(reason))

		if err := m.uninstall(man, nil); err != nil {
			if m.Debug || !mkp.IsPackageError(err) {
				return disabled, err
			}
			log.Warn("failed to uninstall", zap.Error(err))
			continue
		}
		if err := m.store.RemoveEnabledMark(man.ID()); err != nil {
			return disabled, err
		}
		m.record(ActionDisable, man.ID(), "outdated")
		disabled = append(disabled, man.ID())
	}

	if len(disabled) > 0 {
		m.notify(ctx)
	}
	return disabled, nil
}
