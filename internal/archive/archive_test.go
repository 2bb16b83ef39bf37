package archive

import (
	"archive/tar"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"

	"github.com/Checkmk/checkmk-sub074/internal/mkp"
)

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func testManifest() *mkp.Manifest {
	m := mkp.Template("foo", "2.3.0")
	m.Version = "1.0.0"
	m.Files = map[mkp.Part][]string{
		mkp.PartAgentBased: {"foo.py", "sub/bar.py"},
		mkp.PartDoc:        {"foo.txt"},
	}
	return m
}

func populate(t *testing.T, pc *mkp.PathConfig) {
	t.Helper()
	writeTestFile(t, filepath.Join(pc.Path(mkp.PartAgentBased), "foo.py"), "print('foo')\n")
	writeTestFile(t, filepath.Join(pc.Path(mkp.PartAgentBased), "sub", "bar.py"), "print('bar')\n")
	writeTestFile(t, filepath.Join(pc.Path(mkp.PartDoc), "foo.txt"), "docs\n")
}

func TestCreateExtractRoundTrip(t *testing.T) {
	src := mkp.NewPathConfig(t.TempDir())
	populate(t, src)

	data, err := Create(testManifest(), src, "2.3.0p1")
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	m, err := ExtractManifest(data)
	if err != nil {
		t.Fatalf("ExtractManifest() failed: %v", err)
	}
	if m.VersionPackaged != "2.3.0p1" {
		t.Errorf("VersionPackaged = %q, want 2.3.0p1", m.VersionPackaged)
	}
	if m.ID() != testManifest().ID() {
		t.Errorf("ID() = %v, want %v", m.ID(), testManifest().ID())
	}

	dst := mkp.NewPathConfig(t.TempDir())
	if err := Extract(m, data, dst); err != nil {
		t.Fatalf("Extract() failed: %v", err)
	}

	tests := []struct {
		part mkp.Part
		rel  string
		want string
	}{
		{mkp.PartAgentBased, "foo.py", "print('foo')\n"},
		{mkp.PartAgentBased, "sub/bar.py", "print('bar')\n"},
		{mkp.PartDoc, "foo.txt", "docs\n"},
	}
	for _, tt := range tests {
		got, err := os.ReadFile(filepath.Join(dst.Path(tt.part), filepath.FromSlash(tt.rel)))
		if err != nil {
			t.Errorf("failed to read extracted %s/%s: %v", tt.part, tt.rel, err)
			continue
		}
		if string(got) != tt.want {
			t.Errorf("%s/%s = %q, want %q", tt.part, tt.rel, got, tt.want)
		}
	}
}

func TestCreateDoesNotModifyManifest(t *testing.T) {
	pc := mkp.NewPathConfig(t.TempDir())
	populate(t, pc)

	m := testManifest()
	if _, err := Create(m, pc, "9.9.9"); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if m.VersionPackaged != "2.3.0" {
		t.Errorf("input manifest was modified: VersionPackaged = %q", m.VersionPackaged)
	}
}

func TestCreateDereferencesSymlinks(t *testing.T) {
	pc := mkp.NewPathConfig(t.TempDir())
	target := filepath.Join(t.TempDir(), "real.txt")
	writeTestFile(t, target, "real content")
	dir := pc.Path(mkp.PartDoc)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(target, filepath.Join(dir, "link.txt")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	m := mkp.Template("linked", "2.3.0")
	m.Files = map[mkp.Part][]string{mkp.PartDoc: {"link.txt"}}
	data, err := Create(m, pc, "2.3.0")
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	dst := mkp.NewPathConfig(t.TempDir())
	if err := Extract(m, data, dst); err != nil {
		t.Fatalf("Extract() failed: %v", err)
	}
	extracted := filepath.Join(dst.Path(mkp.PartDoc), "link.txt")
	info, err := os.Lstat(extracted)
	if err != nil {
		t.Fatalf("Lstat() failed: %v", err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		t.Error("extracted file is a symlink, want regular file")
	}
	got, _ := os.ReadFile(extracted)
	if string(got) != "real content" {
		t.Errorf("content = %q, want %q", got, "real content")
	}
}

func TestCreateMissingFile(t *testing.T) {
	pc := mkp.NewPathConfig(t.TempDir())
	m := testManifest()

	_, err := Create(m, pc, "2.3.0")
	if !errors.Is(err, mkp.ErrMissingFile) {
		t.Errorf("Create() error = %v, want ErrMissingFile", err)
	}
}

func TestExtractOnlyListedFiles(t *testing.T) {
	src := mkp.NewPathConfig(t.TempDir())
	populate(t, src)
	data, err := Create(testManifest(), src, "2.3.0")
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	m := testManifest()
	m.Files = map[mkp.Part][]string{mkp.PartAgentBased: {"foo.py"}}

	dst := mkp.NewPathConfig(t.TempDir())
	if err := Extract(m, data, dst); err != nil {
		t.Fatalf("Extract() failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dst.Path(mkp.PartAgentBased), "sub", "bar.py")); !os.IsNotExist(err) {
		t.Errorf("unlisted file was extracted (stat err = %v)", err)
	}
	if _, err := os.Stat(filepath.Join(dst.Path(mkp.PartDoc), "foo.txt")); !os.IsNotExist(err) {
		t.Errorf("unlisted part was extracted (stat err = %v)", err)
	}
}

func TestExtractMissingPartArchive(t *testing.T) {
	src := mkp.NewPathConfig(t.TempDir())
	populate(t, src)
	data, err := Create(testManifest(), src, "2.3.0")
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	m := testManifest()
	m.Files[mkp.PartWeb] = []string{"plugins/wato/foo.py"}

	err = Extract(m, data, mkp.NewPathConfig(t.TempDir()))
	if !errors.Is(err, mkp.ErrCorrupt) {
		t.Errorf("Extract() error = %v, want ErrCorrupt", err)
	}
}

// buildArchive writes a raw outer archive with the given entries.
func buildArchive(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gw)
	for name, content := range entries {
		hdr := &tar.Header{Name: name, Size: int64(len(content)), Mode: 0o644, Typeflag: tar.TypeReg}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestExtractManifest(t *testing.T) {
	tests := []struct {
		name    string
		entries map[string]string
		want    mkp.PackageVersion
		wantErr error
	}{
		{
			name: "prefers info.json",
			entries: map[string]string{
				"info":      "{'name': 'foo', 'version': '1.0', 'files': {}}",
				"info.json": `{"name": "foo", "version": "2.0", "files": {}}`,
			},
			want: "2.0",
		},
		{
			name: "legacy info only",
			entries: map[string]string{
				"info": "{'name': 'foo', 'version': '1.0', 'version.usable_until': None, 'files': {'checks': ['foo']}}",
			},
			want: "1.0",
		},
		{
			name:    "no metadata",
			entries: map[string]string{"checks.tar": ""},
			wantErr: mkp.ErrCorrupt,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := ExtractManifest(buildArchive(t, tt.entries))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("ExtractManifest() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ExtractManifest() failed: %v", err)
			}
			if m.Version != tt.want {
				t.Errorf("Version = %q, want %q", m.Version, tt.want)
			}
		})
	}
}

func TestExtractManifestNotGzip(t *testing.T) {
	_, err := ExtractManifest([]byte("definitely not an archive"))
	if !errors.Is(err, mkp.ErrCorrupt) {
		t.Errorf("ExtractManifest() error = %v, want ErrCorrupt", err)
	}
}
