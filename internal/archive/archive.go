// Package archive reads and writes package archives.
//
// An archive is a gzip-compressed tar holding:
//   - info: the manifest as YAML
//   - info.json: the same manifest as JSON (authoritative when reading)
//   - <part>.tar: one tar per non-empty part, paths relative to the part directory
package archive

import (
	"archive/tar"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/Checkmk/checkmk-sub074/internal/mkp"
)

const (
	infoEntry     = "info"
	infoJSONEntry = "info.json"
)

// Create packs the files listed in m, read from their part directories, into
// a new archive. Symlinks are dereferenced. The manifest written into the
// archive carries versionPackaged.
func Create(m *mkp.Manifest, pc *mkp.PathConfig, versionPackaged string) ([]byte, error) {
	manifest := m.Clone()
	manifest.VersionPackaged = versionPackaged
	if err := manifest.Validate(); err != nil {
		return nil, err
	}

	info, err := manifest.MarshalInfo()
	if err != nil {
		return nil, err
	}
	infoJSON, err := manifest.MarshalJSONIndent()
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gw)
	now := time.Now()

	if err := addEntry(tw, infoEntry, info, now); err != nil {
		return nil, err
	}
	if err := addEntry(tw, infoJSONEntry, infoJSON, now); err != nil {
		return nil, err
	}

	for _, part := range mkp.AllParts() {
		files := manifest.PartFiles(part)
		if len(files) == 0 {
			continue
		}
		sub, err := packPart(pc.Path(part), files)
		if err != nil {
			return nil, fmt.Errorf("failed to pack part %s: %w", part, err)
		}
		if err := addEntry(tw, part.ArchiveEntry(), sub, now); err != nil {
			return nil, err
		}
	}

	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish archive: %w", err)
	}
	if err := gw.Close(); err != nil {
		return nil, fmt.Errorf("failed to compress archive: %w", err)
	}
	return buf.Bytes(), nil
}

func addEntry(tw *tar.Writer, name string, data []byte, mtime time.Time) error {
	header := &tar.Header{
		Name:     name,
		Size:     int64(len(data)),
		Mode:     0o644,
		ModTime:  mtime,
		Typeflag: tar.TypeReg,
	}
	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("failed to write header for %s: %w", name, err)
	}
	if _, err := tw.Write(data); err != nil {
		return fmt.Errorf("failed to write content for %s: %w", name, err)
	}
	return nil
}

// packPart builds the sub-archive of one part.
func packPart(dir string, files []string) ([]byte, error) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	for _, rel := range files {
		src := filepath.Join(dir, filepath.FromSlash(rel))
		info, err := os.Stat(src)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, mkp.Errorf(mkp.ErrMissingFile, "File %s does not exist.", src)
			}
			return nil, fmt.Errorf("failed to stat %s: %w", src, err)
		}
		if !info.Mode().IsRegular() {
			return nil, mkp.Errorf(mkp.ErrInvalid, "%s is not a regular file", src)
		}

		header := &tar.Header{
			Name:     rel,
			Size:     info.Size(),
			Mode:     int64(info.Mode().Perm()),
			ModTime:  info.ModTime(),
			Typeflag: tar.TypeReg,
		}
		if err := tw.WriteHeader(header); err != nil {
			return nil, fmt.Errorf("failed to write header for %s: %w", rel, err)
		}
		if err := copyFile(tw, src); err != nil {
			return nil, err
		}
	}

	if err := tw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func copyFile(w io.Writer, src string) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read %s: %w", src, err)
	}
	return nil
}

// ExtractManifest reads only the metadata of an archive. info.json is
// preferred; the YAML info entry is the fallback for older archives.
func ExtractManifest(data []byte) (*mkp.Manifest, error) {
	return ReadManifest(bytes.NewReader(data))
}

// ReadManifest is ExtractManifest for a stream.
func ReadManifest(r io.Reader) (*mkp.Manifest, error) {
	var info, infoJSON []byte
	err := walk(r, func(h *tar.Header, tr *tar.Reader) (bool, error) {
		switch h.Name {
		case infoEntry, infoJSONEntry:
			data, err := io.ReadAll(tr)
			if err != nil {
				return false, err
			}
			if h.Name == infoEntry {
				info = data
			} else {
				infoJSON = data
			}
		}
		return info != nil && infoJSON != nil, nil
	})
	if err != nil {
		return nil, mkp.Wrapf(mkp.ErrCorrupt, err, "failed to read package")
	}

	switch {
	case infoJSON != nil:
		m, err := mkp.ParseManifest(infoJSON)
		if err == nil || info == nil {
			return m, err
		}
		return mkp.ParseManifest(info)
	case info != nil:
		return mkp.ParseManifest(info)
	}
	return nil, mkp.Errorf(mkp.ErrCorrupt, "Failed to open package info file")
}

// ReadManifestFile reads the metadata of the archive at path.
func ReadManifestFile(path string) (*mkp.Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	m, err := ReadManifest(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return m, nil
}

// walk visits every entry of the gzip-compressed outer tar until fn returns
// done or an error.
func walk(r io.Reader, fn func(*tar.Header, *tar.Reader) (done bool, err error)) error {
	gr, err := gzip.NewReader(r)
	if err != nil {
		return err
	}
	defer gr.Close()

	tr := tar.NewReader(gr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		done, err := fn(header, tr)
		if err != nil || done {
			return err
		}
	}
}

// Extract writes the files m lists from the archive into their part
// directories. Original timestamps are not restored so installed files carry
// the local installation time.
func Extract(m *mkp.Manifest, data []byte, pc *mkp.PathConfig) error {
	pending := make(map[mkp.Part]bool)
	for _, part := range mkp.AllParts() {
		if len(m.PartFiles(part)) > 0 {
			pending[part] = true
		}
	}

	err := walk(bytes.NewReader(data), func(h *tar.Header, tr *tar.Reader) (bool, error) {
		part, ok := strings.CutSuffix(h.Name, ".tar")
		if !ok || !pending[mkp.Part(part)] {
			return false, nil
		}
		p := mkp.Part(part)
		if err := extractPart(tr, pc.Path(p), m.PartFiles(p)); err != nil {
			return false, fmt.Errorf("failed to extract part %s: %w", p, err)
		}
		delete(pending, p)
		return len(pending) == 0, nil
	})
	if err != nil {
		if mkp.IsPackageError(err) {
			return err
		}
		return mkp.Wrapf(mkp.ErrCorrupt, err, "failed to extract package %s", m.Name)
	}

	for _, part := range mkp.AllParts() {
		if pending[part] {
			return mkp.Errorf(mkp.ErrCorrupt, "Failed to open %s", part.ArchiveEntry())
		}
	}
	return nil
}

func extractPart(r io.Reader, dir string, files []string) error {
	wanted := make(map[string]bool, len(files))
	for _, f := range files {
		wanted[f] = true
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tr := tar.NewReader(r)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		name := path.Clean(strings.TrimPrefix(header.Name, "./"))
		if header.Typeflag != tar.TypeReg || !wanted[name] {
			continue
		}

		dest := filepath.Join(dir, filepath.FromSlash(name))
		rel, err := filepath.Rel(dir, dest)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
			return mkp.Errorf(mkp.ErrCorrupt, "invalid path in archive: %s", header.Name)
		}
		if err := writeFile(dest, tr, os.FileMode(header.Mode).Perm()); err != nil {
			return err
		}
		delete(wanted, name)
	}

	for name := range wanted {
		return mkp.Errorf(mkp.ErrCorrupt, "file %s is missing from the archive", name)
	}
	return nil
}

func writeFile(dest string, r io.Reader, mode os.FileMode) (err error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}
	if err := os.Remove(dest); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to replace %s: %w", dest, err)
	}

	f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dest, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("failed to write %s: %w", dest, err)
	}
	return nil
}
