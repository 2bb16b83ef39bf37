package packaging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/Checkmk/checkmk-sub074/internal/mkp"
)

// fixPermissions sets every installed file to the mode its part demands.
func (m *Manager) fixPermissions(man *mkp.Manifest) error {
	for _, part := range mkp.AllParts() {
		for _, f := range man.PartFiles(part) {
			path := filepath.Join(m.pc.Path(part), filepath.FromSlash(f))
			info, err := os.Stat(path)
			if err != nil {
				return fmt.Errorf("failed to stat %s: %w", path, err)
			}
			want := part.Mode(f)
			if have := info.Mode().Perm(); have != want {
				m.logger.Debug("fixing permissions",
					zap.String("path", path), zap.Stringer("have", have), zap.Stringer("want", want))
				if err := os.Chmod(path, want); err != nil {
					return fmt.Errorf("failed to set permissions of %s: %w", path, err)
				}
			}
		}
	}
	return nil
}

// removeFiles deletes files and prunes the directories left empty below
// each part directory. Missing files are ignored.
func (m *Manager) removeFiles(files map[mkp.Part][]string) error {
	var errs []error
	for _, part := range mkp.AllParts() {
		dir := m.pc.Path(part)
		for _, f := range files[part] {
			path := filepath.Join(dir, filepath.FromSlash(f))
			m.logger.Debug("removing file", zap.String("path", path))
			if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
				errs = append(errs, fmt.Errorf("cannot uninstall %s: %w", path, err))
				continue
			}
			pruneEmptyDirs(filepath.Dir(path), dir)
		}
	}
	return errors.Join(errs...)
}

// pruneEmptyDirs removes dir and its parents while they are empty, never
// touching stop or anything above it.
func pruneEmptyDirs(dir, stop string) {
	for {
		rel, err := filepath.Rel(stop, dir)
		if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}
