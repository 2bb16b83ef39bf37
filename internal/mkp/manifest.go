package mkp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	yaml "gopkg.in/yaml.v2"
)

// Manifest is the metadata of a package plus the files it owns, grouped by
// part. Paths are relative to the part directory.
type Manifest struct {
	Title              string            `json:"title" yaml:"title"`
	Name               PackageName       `json:"name" yaml:"name"`
	Description        string            `json:"description" yaml:"description"`
	Version            PackageVersion    `json:"version" yaml:"version"`
	VersionPackaged    string            `json:"version.packaged" yaml:"version.packaged"`
	VersionMinRequired string            `json:"version.min_required" yaml:"version.min_required"`
	VersionUsableUntil *string           `json:"version.usable_until" yaml:"version.usable_until"`
	Author             string            `json:"author" yaml:"author"`
	DownloadURL        string            `json:"download_url" yaml:"download_url"`
	Files              map[Part][]string `json:"files" yaml:"files"`
}

// rawManifest accepts every encoding the engine has ever written, including
// the legacy literal form, before validation.
type rawManifest struct {
	Title              string              `json:"title" yaml:"title"`
	Name               string              `json:"name" yaml:"name"`
	Description        string              `json:"description" yaml:"description"`
	Version            string              `json:"version" yaml:"version"`
	VersionPackaged    string              `json:"version.packaged" yaml:"version.packaged"`
	VersionMinRequired string              `json:"version.min_required" yaml:"version.min_required"`
	VersionUsableUntil any                 `json:"version.usable_until" yaml:"version.usable_until"`
	Author             string              `json:"author" yaml:"author"`
	DownloadURL        string              `json:"download_url" yaml:"download_url"`
	Files              map[string][]string `json:"files" yaml:"files"`
}

// Template returns the initial manifest for a new package.
func Template(name PackageName, platformVersion string) *Manifest {
	return &Manifest{
		Title:              "Title of " + string(name),
		Name:               name,
		Description:        "Please add a description here",
		Version:            "1.0",
		VersionPackaged:    platformVersion,
		VersionMinRequired: platformVersion,
		Author:             "Add your name here",
		DownloadURL:        fmt.Sprintf("http://example.com/%s/", name),
		Files:              map[Part][]string{},
	}
}

// ID returns the (name, version) identity of the manifest.
func (m *Manifest) ID() PackageID {
	return PackageID{Name: m.Name, Version: m.Version}
}

// UsableUntil returns the upper platform bound, or "" if there is none.
func (m *Manifest) UsableUntil() string {
	if m.VersionUsableUntil == nil {
		return ""
	}
	return *m.VersionUsableUntil
}

// PartFiles returns the files listed for part.
func (m *Manifest) PartFiles(part Part) []string {
	return m.Files[part]
}

// NumFiles returns the total number of files over all parts.
func (m *Manifest) NumFiles() int {
	n := 0
	for _, files := range m.Files {
		n += len(files)
	}
	return n
}

// Clone returns a deep copy.
func (m *Manifest) Clone() *Manifest {
	c := *m
	if m.VersionUsableUntil != nil {
		u := *m.VersionUsableUntil
		c.VersionUsableUntil = &u
	}
	c.Files = make(map[Part][]string, len(m.Files))
	for part, files := range m.Files {
		c.Files[part] = append([]string(nil), files...)
	}
	return &c
}

// Validate checks identifiers, parts and file paths.
func (m *Manifest) Validate() error {
	if err := m.Name.Validate(); err != nil {
		return err
	}
	if err := m.Version.Validate(); err != nil {
		return err
	}
	for part, files := range m.Files {
		if _, err := ParsePart(string(part)); err != nil {
			return err
		}
		seen := make(map[string]bool, len(files))
		for _, f := range files {
			if err := validateRelPath(f); err != nil {
				return Errorf(ErrInvalid, "package %s, part %s: %v", m.Name, part, err)
			}
			if seen[f] {
				return Errorf(ErrInvalid, "package %s, part %s: file %s is listed twice", m.Name, part, f)
			}
			seen[f] = true
		}
	}
	return nil
}

func validateRelPath(p string) error {
	if p == "" {
		return fmt.Errorf("empty file name")
	}
	if path.IsAbs(p) || strings.HasPrefix(p, "\\") {
		return fmt.Errorf("file %s is not relative", p)
	}
	clean := path.Clean(p)
	if clean != p || clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("file %s is not a clean relative path", p)
	}
	return nil
}

// MarshalInfo renders the manifest for the "info" archive entry and the
// installed registry.
func (m *Manifest) MarshalInfo() ([]byte, error) {
	data, err := yaml.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode manifest %s: %w", m.Name, err)
	}
	return data, nil
}

// MarshalJSONIndent renders the manifest for the "info.json" archive entry.
func (m *Manifest) MarshalJSONIndent() ([]byte, error) {
	type plain Manifest
	data, err := json.MarshalIndent((*plain)(m), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode manifest %s: %w", m.Name, err)
	}
	return data, nil
}

// ParseManifest decodes and validates a manifest. JSON is tried first; the
// YAML decoder handles the "info" entry as well as legacy literal manifests
// (single-quoted strings, None). Nothing in the input is ever evaluated.
func ParseManifest(data []byte) (*Manifest, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, Errorf(ErrCorrupt, "empty manifest")
	}

	var raw rawManifest
	jsonErr := json.Unmarshal(trimmed, &raw)
	if jsonErr != nil {
		raw = rawManifest{}
		if err := yaml.Unmarshal(trimmed, &raw); err != nil {
			return nil, Wrapf(ErrCorrupt, err, "failed to parse manifest")
		}
	}
	return raw.toManifest()
}

func (r *rawManifest) toManifest() (*Manifest, error) {
	m := &Manifest{
		Title:              r.Title,
		Name:               PackageName(r.Name),
		Description:        r.Description,
		Version:            PackageVersion(r.Version),
		VersionPackaged:    r.VersionPackaged,
		VersionMinRequired: r.VersionMinRequired,
		Author:             r.Author,
		DownloadURL:        r.DownloadURL,
		Files:              make(map[Part][]string, len(r.Files)),
	}
	switch u := r.VersionUsableUntil.(type) {
	case nil:
	case string:
		if u != "" && u != "None" {
			m.VersionUsableUntil = &u
		}
	default:
		s := fmt.Sprint(u)
		m.VersionUsableUntil = &s
	}
	for part, files := range r.Files {
		if len(files) > 0 {
			m.Files[Part(part)] = files
		}
	}
	if err := m.Validate(); err != nil {
		return nil, Wrapf(ErrCorrupt, err, "invalid manifest")
	}
	return m, nil
}
