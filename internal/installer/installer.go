// Package installer keeps the registry of installed packages: one manifest
// per package name, the only record of what is active on this site.
package installer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/Checkmk/checkmk-sub074/internal/mkp"
)

// Installer manages the installed-registry directory.
type Installer struct {
	dir    string
	logger *zap.Logger
}

// New creates an Installer for the registry at dir.
func New(dir string, logger *zap.Logger) *Installer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Installer{dir: dir, logger: logger}
}

// Dir returns the registry directory.
func (i *Installer) Dir() string {
	return i.dir
}

func (i *Installer) path(name mkp.PackageName) string {
	return filepath.Join(i.dir, string(name))
}

// IsInstalled reports whether a registry entry exists for name.
func (i *Installer) IsInstalled(name mkp.PackageName) bool {
	_, err := os.Stat(i.path(name))
	return err == nil
}

// Get returns the installed manifest of name, or nil if name is not
// installed. The name is taken from the entry's file name, not its content.
func (i *Installer) Get(name mkp.PackageName) (*mkp.Manifest, error) {
	data, err := os.ReadFile(i.path(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read installed manifest %s: %w", name, err)
	}

	m, err := mkp.ParseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("installed manifest %s: %w", name, err)
	}
	m.Name = name
	return m, nil
}

// Names returns the names of all registry entries, sorted.
func (i *Installer) Names() ([]mkp.PackageName, error) {
	entries, err := os.ReadDir(i.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read registry directory: %w", err)
	}

	var names []mkp.PackageName
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		name, err := mkp.NewPackageName(e.Name())
		if err != nil {
			i.logger.Warn("ignoring registry entry with invalid name", zap.String("file", e.Name()))
			continue
		}
		names = append(names, name)
	}
	sort.Slice(names, func(a, b int) bool { return names[a] < names[b] })
	return names, nil
}

// List returns all installed manifests sorted by name. Unreadable entries
// are logged and left out.
func (i *Installer) List() ([]*mkp.Manifest, error) {
	names, err := i.Names()
	if err != nil {
		return nil, err
	}

	manifests := make([]*mkp.Manifest, 0, len(names))
	for _, name := range names {
		m, err := i.Get(name)
		if err != nil {
			i.logger.Error("skipping corrupt installed package", zap.String("package", string(name)), zap.Error(err))
			continue
		}
		if m != nil {
			manifests = append(manifests, m)
		}
	}
	return manifests, nil
}

// Add writes m as the installed entry of its name, replacing any previous
// entry. The file is written next to its destination and renamed into place.
func (i *Installer) Add(m *mkp.Manifest) error {
	if err := m.Validate(); err != nil {
		return err
	}
	data, err := m.MarshalJSONIndent()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(i.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create registry directory: %w", err)
	}

	tmp, err := os.CreateTemp(i.dir, "."+string(m.Name)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temporary manifest: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("failed to set manifest permissions: %w", err)
	}
	if err := os.Rename(tmp.Name(), i.path(m.Name)); err != nil {
		return fmt.Errorf("failed to install manifest %s: %w", m.Name, err)
	}

	i.logger.Debug("registry entry written", zap.String("package", m.ID().String()))
	return nil
}

// Remove deletes the entry of name. Removing an absent entry is not an error.
func (i *Installer) Remove(name mkp.PackageName) error {
	if err := os.Remove(i.path(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove registry entry %s: %w", name, err)
	}
	return nil
}

// PackagedFiles indexes every file declared by an installed package:
// part -> relative path -> owner.
func (i *Installer) PackagedFiles() (map[mkp.Part]map[string]mkp.PackageID, error) {
	manifests, err := i.List()
	if err != nil {
		return nil, err
	}

	index := make(map[mkp.Part]map[string]mkp.PackageID)
	for _, m := range manifests {
		for part, files := range m.Files {
			owners, ok := index[part]
			if !ok {
				owners = make(map[string]mkp.PackageID)
				index[part] = owners
			}
			for _, f := range files {
				owners[f] = m.ID()
			}
		}
	}
	return index, nil
}
