package packaging

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"

	"github.com/Checkmk/checkmk-sub074/internal/hooks"
	"github.com/Checkmk/checkmk-sub074/internal/mkp"
)

// InventoryEntry is one file found below a part directory.
type InventoryEntry struct {
	// Path is the path as found, possibly through a symlink.
	Path  string
	Part  mkp.Part
	Rel   string
	Owner *mkp.PackageID
	Size  int64
	Mode  fs.FileMode
}

// PartInfo describes the directory of one part.
type PartInfo struct {
	Part  mkp.Part
	Title string
	Path  string
	// Files are the top level entries of the directory with the
	// permissions files there should have.
	Files []string
	Modes []fs.FileMode
}

// foundFile is a file seen while walking a part directory.
type foundFile struct {
	path     string
	rel      string
	resolved string
	info     fs.FileInfo
}

// walkPart lists the files of part, skipping hidden entries, backup and
// compiled files, and the directories of other parts nested inside it.
func (m *Manager) walkPart(part mkp.Part) ([]foundFile, error) {
	root := m.pc.Path(part)
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return nil, nil
	}

	taboo := make(map[string]bool)
	for _, other := range mkp.AllParts() {
		if other != part {
			taboo[m.pc.Path(other)] = true
		}
	}
	if taboo[root] {
		return nil, nil
	}

	var (
		mu    sync.Mutex
		found []foundFile
	)
	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil || p == root {
			return nil
		}
		name := d.Name()
		if strings.HasPrefix(name, ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if taboo[p] {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(name, "~") || strings.HasSuffix(name, ".pyc") {
			return nil
		}

		info, err := os.Stat(p)
		if err != nil || info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil
		}
		resolved, err := filepath.EvalSymlinks(p)
		if err != nil {
			resolved = p
		}

		mu.Lock()
		found = append(found, foundFile{path: p, rel: filepath.ToSlash(rel), resolved: resolved, info: info})
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	sort.Slice(found, func(i, j int) bool { return found[i].rel < found[j].rel })
	return found, nil
}

func (m *Manager) ignored(part mkp.Part, rel string) bool {
	target := string(part) + "/" + rel
	for _, pattern := range m.ignore {
		if ok, _ := doublestar.Match(pattern, target); ok {
			return true
		}
	}
	return false
}

// UnpackagedFiles lists, per part, the files no installed package owns.
func (m *Manager) UnpackagedFiles() (map[mkp.Part][]string, error) {
	index, err := m.ownerIndex()
	if err != nil {
		return nil, err
	}

	unpackaged := make(map[mkp.Part][]string)
	for _, part := range mkp.AllParts() {
		found, err := m.walkPart(part)
		if err != nil {
			return nil, err
		}
		for _, f := range found {
			if _, owned := index[part][f.rel]; owned || m.ignored(part, f.rel) {
				continue
			}
			unpackaged[part] = append(unpackaged[part], f.rel)
		}
	}
	return unpackaged, nil
}

// Inventory lists every file below the part directories with its part and
// owner. A file reachable through several paths is listed once, under the
// lexically first path. Unpackaged files come first, then by path.
func (m *Manager) Inventory() ([]InventoryEntry, error) {
	index, err := m.ownerIndex()
	if err != nil {
		return nil, err
	}

	var entries []InventoryEntry
	resolvedTo := make(map[string]int)
	for _, part := range mkp.AllParts() {
		found, err := m.walkPart(part)
		if err != nil {
			return nil, err
		}
		for _, f := range found {
			entry := InventoryEntry{
				Path: f.path,
				Part: part,
				Rel:  f.rel,
				Size: f.info.Size(),
				Mode: f.info.Mode().Perm(),
			}
			if owner, ok := index[part][f.rel]; ok {
				entry.Owner = &owner
			}

			if i, seen := resolvedTo[f.resolved]; seen {
				if f.path < entries[i].Path {
					entries[i] = entry
				}
				continue
			}
			resolvedTo[f.resolved] = len(entries)
			entries = append(entries, entry)
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if (a.Owner == nil) != (b.Owner == nil) {
			return a.Owner == nil
		}
		return a.Path < b.Path
	})
	return entries, nil
}

// PartInfo describes every part directory.
func (m *Manager) PartInfo() ([]PartInfo, error) {
	var infos []PartInfo
	for _, part := range mkp.AllParts() {
		info := PartInfo{Part: part, Title: part.Title(), Path: m.pc.Path(part)}
		entries, err := os.ReadDir(info.Path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read %s: %w", info.Path, err)
		}
		for _, e := range entries {
			info.Files = append(info.Files, e.Name())
			info.Modes = append(info.Modes, part.Mode(e.Name()))
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// RulePackOwners maps every exported rule pack id to the package that
// ships it, or nil for rule packs exported by hand.
func (m *Manager) RulePackOwners() (map[string]*mkp.PackageID, error) {
	index, err := m.ownerIndex()
	if err != nil {
		return nil, err
	}
	found, err := m.walkPart(mkp.PartECRulePacks)
	if err != nil {
		return nil, err
	}

	owners := make(map[string]*mkp.PackageID, len(found))
	for _, f := range found {
		var owner *mkp.PackageID
		if id, ok := index[mkp.PartECRulePacks][f.rel]; ok {
			owner = &id
		}
		owners[hooks.RulePackID(f.rel)] = owner
	}
	return owners, nil
}
