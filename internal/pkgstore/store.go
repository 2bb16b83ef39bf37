// Package pkgstore keeps package archives in three directories:
//
//   - shipped: archives bundled with the platform, read-only
//   - local: archives added or built on this site
//   - enabled: copies of the archives that should be active
//
// The enabled directory holds copies rather than links so that an external
// synchronisation mechanism can treat it as one flat directory.
package pkgstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/Checkmk/checkmk-sub074/internal/archive"
	"github.com/Checkmk/checkmk-sub074/internal/mkp"
)

// ManifestCache remembers the manifest of an archive file as long as its
// size and modification time do not change.
type ManifestCache interface {
	CachedManifest(path string, size, mtimeNS int64) ([]byte, bool, error)
	CacheManifest(path string, size, mtimeNS int64, manifestJSON []byte) error
}

// PackageStore manages the shipped, local and enabled archive directories.
type PackageStore struct {
	shippedDir string
	localDir   string
	enabledDir string
	cache      ManifestCache
	logger     *zap.Logger
}

// New creates a PackageStore for the directories of pc. cache may be nil.
func New(pc *mkp.PathConfig, cache ManifestCache, logger *zap.Logger) *PackageStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PackageStore{
		shippedDir: pc.ShippedDir,
		localDir:   pc.LocalDir,
		enabledDir: pc.EnabledDir,
		cache:      cache,
		logger:     logger,
	}
}

// Store validates an archive and writes it to the local directory. It fails
// if the same version is shipped, or already stored locally and overwrite is
// false.
func (s *PackageStore) Store(data []byte, overwrite bool) (*mkp.Manifest, error) {
	m, err := archive.ExtractManifest(data)
	if err != nil {
		return nil, err
	}
	fileName, err := m.ID().FileName()
	if err != nil {
		return nil, err
	}

	if exists(filepath.Join(s.shippedDir, fileName)) {
		return nil, mkp.Errorf(mkp.ErrExists, "Version %s of package %s is already shipped", m.Version, m.Name)
	}
	dest := filepath.Join(s.localDir, fileName)
	if !overwrite && exists(dest) {
		return nil, mkp.Errorf(mkp.ErrExists, "Version %s of package %s already exists", m.Version, m.Name)
	}

	if err := writeFileAtomic(dest, data); err != nil {
		return nil, err
	}
	s.logger.Info("package stored", zap.String("package", m.ID().String()), zap.String("path", dest))
	return m, nil
}

// Path returns the location of an archive, looking in the local, shipped
// and enabled directories in that order.
func (s *PackageStore) Path(id mkp.PackageID) (string, error) {
	fileName, err := id.FileName()
	if err != nil {
		return "", err
	}
	for _, dir := range []string{s.localDir, s.shippedDir, s.enabledDir} {
		p := filepath.Join(dir, fileName)
		if exists(p) {
			return p, nil
		}
	}
	return "", mkp.Errorf(mkp.ErrNotFound, "Package %s does not exist", id)
}

// Read returns the archive bytes of id.
func (s *PackageStore) Read(id mkp.PackageID) ([]byte, error) {
	p, err := s.Path(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("failed to read package %s: %w", id, err)
	}
	return data, nil
}

// ReadEnabled returns the bytes of the enabled copy of id, even when the
// local or shipped tier holds a different archive under the same file name.
func (s *PackageStore) ReadEnabled(id mkp.PackageID) ([]byte, error) {
	fileName, err := id.FileName()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.enabledDir, fileName))
	if errors.Is(err, os.ErrNotExist) {
		return nil, mkp.Errorf(mkp.ErrNotEnabled, "Package %s is not enabled", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read enabled package %s: %w", id, err)
	}
	return data, nil
}

// Manifest returns the manifest of a stored archive.
func (s *PackageStore) Manifest(id mkp.PackageID) (*mkp.Manifest, error) {
	p, err := s.Path(id)
	if err != nil {
		return nil, err
	}
	return s.readManifest(p)
}

// IsShipped reports whether id is bundled with the platform.
func (s *PackageStore) IsShipped(id mkp.PackageID) bool {
	fileName, err := id.FileName()
	return err == nil && exists(filepath.Join(s.shippedDir, fileName))
}

// IsEnabled reports whether id is in the enabled directory.
func (s *PackageStore) IsEnabled(id mkp.PackageID) bool {
	fileName, err := id.FileName()
	return err == nil && exists(filepath.Join(s.enabledDir, fileName))
}

// MarkAsEnabled copies the archive of id into the enabled directory.
func (s *PackageStore) MarkAsEnabled(id mkp.PackageID) error {
	fileName, err := id.FileName()
	if err != nil {
		return err
	}
	dest := filepath.Join(s.enabledDir, fileName)
	src, err := s.Path(id)
	if err != nil {
		return err
	}
	if src == dest {
		return nil
	}
	if err := copyFileAtomic(src, dest); err != nil {
		return fmt.Errorf("failed to enable %s: %w", id, err)
	}
	s.logger.Debug("package marked as enabled", zap.String("package", id.String()))
	return nil
}

// RemoveEnabledMark deletes id from the enabled directory.
func (s *PackageStore) RemoveEnabledMark(id mkp.PackageID) error {
	fileName, err := id.FileName()
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.enabledDir, fileName)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to disable %s: %w", id, err)
	}
	s.logger.Debug("enabled mark removed", zap.String("package", id.String()))
	return nil
}

// Remove deletes a local archive. Enabled and shipped archives are refused.
func (s *PackageStore) Remove(id mkp.PackageID) error {
	fileName, err := id.FileName()
	if err != nil {
		return err
	}
	if s.IsEnabled(id) {
		return mkp.Errorf(mkp.ErrInvalid, "Refusing to remove enabled package %s", id)
	}
	p := filepath.Join(s.localDir, fileName)
	if err := os.Remove(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if s.IsShipped(id) {
				return mkp.Errorf(mkp.ErrInvalid, "Package %s is shipped and can not be removed", id)
			}
			return mkp.Errorf(mkp.ErrNotFound, "Package %s does not exist", id)
		}
		return fmt.Errorf("failed to remove package %s: %w", id, err)
	}
	s.logger.Info("package removed", zap.String("package", id.String()))
	return nil
}

// GetEnabledManifests returns the manifests of all enabled archives.
func (s *PackageStore) GetEnabledManifests() (map[mkp.PackageID]*mkp.Manifest, error) {
	manifests, err := s.list(s.enabledDir)
	if err != nil {
		return nil, err
	}
	enabled := make(map[mkp.PackageID]*mkp.Manifest, len(manifests))
	for _, m := range manifests {
		enabled[m.ID()] = m
	}
	return enabled, nil
}

// ListLocal returns the manifests of all local archives.
func (s *PackageStore) ListLocal() ([]*mkp.Manifest, error) {
	return s.list(s.localDir)
}

// ListShipped returns the manifests of all shipped archives.
func (s *PackageStore) ListShipped() ([]*mkp.Manifest, error) {
	return s.list(s.shippedDir)
}

// ListEnabled returns the enabled manifests sorted by id.
func (s *PackageStore) ListEnabled() ([]*mkp.Manifest, error) {
	return s.list(s.enabledDir)
}

// list reads every archive of dir. Unreadable archives are logged and
// skipped. The result is sorted by name and then by version.
func (s *PackageStore) list(dir string) ([]*mkp.Manifest, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	var manifests []*mkp.Manifest
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), mkp.Extension) {
			continue
		}
		p := filepath.Join(dir, e.Name())
		m, err := s.readManifest(p)
		if err != nil {
			s.logger.Error("skipping unreadable package", zap.String("path", p), zap.Error(err))
			continue
		}
		manifests = append(manifests, m)
	}
	SortManifests(manifests)
	return manifests, nil
}

func (s *PackageStore) readManifest(p string) (*mkp.Manifest, error) {
	if s.cache == nil {
		return archive.ReadManifestFile(p)
	}

	info, err := os.Stat(p)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", p, err)
	}
	size, mtime := info.Size(), info.ModTime().UnixNano()

	data, ok, err := s.cache.CachedManifest(p, size, mtime)
	if err != nil {
		s.logger.Debug("manifest cache lookup failed", zap.String("path", p), zap.Error(err))
	}
	if ok {
		if m, err := mkp.ParseManifest(data); err == nil {
			return m, nil
		}
	}

	m, err := archive.ReadManifestFile(p)
	if err != nil {
		return nil, err
	}
	if data, err := m.MarshalJSONIndent(); err == nil {
		if err := s.cache.CacheManifest(p, size, mtime, data); err != nil {
			s.logger.Debug("failed to cache manifest", zap.String("path", p), zap.Error(err))
		}
	}
	return m, nil
}

// SortManifests orders manifests by name, then by ascending version.
func SortManifests(manifests []*mkp.Manifest) {
	sort.SliceStable(manifests, func(i, j int) bool {
		if manifests[i].Name != manifests[j].Name {
			return manifests[i].Name < manifests[j].Name
		}
		return manifests[i].Version.Less(manifests[j].Version)
	})
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func writeFileAtomic(dest string, data []byte) error {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", dest, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", dest, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dest)
}

func copyFileAtomic(src, dest string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return writeFileAtomic(dest, data)
}
