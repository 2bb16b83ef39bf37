package packaging

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/Checkmk/checkmk-sub074/internal/archive"
	"github.com/Checkmk/checkmk-sub074/internal/mkp"
)

// PreUpdateConfigActions prepares the packages of a site for a platform
// update: every installed package is made available as an enabled archive,
// archives in the legacy disabled directory are moved into the store, and
// then the active packages are reconciled.
func (m *Manager) PreUpdateConfigActions(ctx context.Context) (*UpdateResult, error) {
	if err := m.ensureInstalledArchives(); err != nil {
		return nil, err
	}
	if err := m.migrateLegacyDisabled(); err != nil {
		return nil, err
	}
	return m.UpdateActivePackages(ctx)
}

// ensureInstalledArchives enables the archive of every installed package,
// building it from the installed files if no archive exists.
func (m *Manager) ensureInstalledArchives() error {
	if err := os.MkdirAll(m.pc.EnabledDir, 0o755); err != nil {
		return fmt.Errorf("failed to create enabled directory: %w", err)
	}
	installed, err := m.installer.List()
	if err != nil {
		return err
	}

	for _, man := range installed {
		id := man.ID()
		if _, err := m.store.Path(id); err != nil {
			if err := m.archiveInstalled(man); err != nil {
				if m.Debug {
					return err
				}
				m.logger.Error("failed to create enabled archive", zap.String("package", id.String()), zap.Error(err))
				continue
			}
		}
		if err := m.store.MarkAsEnabled(id); err != nil {
			if m.Debug {
				return err
			}
			m.logger.Error("failed to enable package", zap.String("package", id.String()), zap.Error(err))
		}
	}
	return nil
}

func (m *Manager) archiveInstalled(man *mkp.Manifest) error {
	packaged := man.VersionPackaged
	if packaged == "" {
		packaged = m.platformVersion
	}
	data, err := archive.Create(man, m.pc, packaged)
	if err != nil {
		return err
	}
	if _, err := m.store.Store(data, true); err != nil {
		return err
	}
	m.logger.Info("archived installed package", zap.String("package", man.ID().String()))
	return nil
}

// migrateLegacyDisabled moves archives of the old disabled directory into
// the local tier, dropping those that are shipped anyway.
func (m *Manager) migrateLegacyDisabled() error {
	entries, err := os.ReadDir(m.pc.DisabledDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", m.pc.DisabledDir, err)
	}

	for _, e := range entries {
		src := filepath.Join(m.pc.DisabledDir, e.Name())
		if _, err := os.Stat(filepath.Join(m.pc.ShippedDir, e.Name())); err == nil {
			if err := os.Remove(src); err != nil {
				return fmt.Errorf("failed to remove %s: %w", src, err)
			}
			continue
		}
		if err := os.MkdirAll(m.pc.LocalDir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", m.pc.LocalDir, err)
		}
		if err := os.Rename(src, filepath.Join(m.pc.LocalDir, e.Name())); err != nil {
			return fmt.Errorf("failed to migrate %s: %w", src, err)
		}
		m.logger.Info("migrated disabled package", zap.String("file", e.Name()))
	}
	return os.Remove(m.pc.DisabledDir)
}
