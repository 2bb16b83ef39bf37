package packaging

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/Checkmk/checkmk-sub074/internal/archive"
	"github.com/Checkmk/checkmk-sub074/internal/hooks"
	"github.com/Checkmk/checkmk-sub074/internal/installer"
	"github.com/Checkmk/checkmk-sub074/internal/mkp"
	"github.com/Checkmk/checkmk-sub074/internal/pkgstore"
	"github.com/Checkmk/checkmk-sub074/internal/platform"
)

const testPlatformVersion = "2.3.0"

type recordingHooks struct {
	installed   []string
	uninstalled []string
	released    []string
}

func (h *recordingHooks) Install(files []string) error {
	h.installed = append(h.installed, files...)
	return nil
}

func (h *recordingHooks) Uninstall(files []string) error {
	h.uninstalled = append(h.uninstalled, files...)
	return nil
}

func (h *recordingHooks) Release(files []string) error {
	h.released = append(h.released, files...)
	return nil
}

type countingNotifier struct {
	calls int
}

func (n *countingNotifier) Notify(ctx context.Context) error {
	n.calls++
	return nil
}

type memRecorder struct {
	events []string
}

func (r *memRecorder) Record(action string, id mkp.PackageID, detail string) error {
	r.events = append(r.events, action+" "+id.String())
	return nil
}

type testSite struct {
	t        *testing.T
	pc       *mkp.PathConfig
	mgr      *Manager
	checks   *recordingHooks
	notifier *countingNotifier
	recorder *memRecorder
}

func newTestSite(t *testing.T) *testSite {
	t.Helper()
	pc := mkp.NewPathConfig(t.TempDir())
	logger := zap.NewNop()
	s := &testSite{
		t:        t,
		pc:       pc,
		checks:   &recordingHooks{},
		notifier: &countingNotifier{},
		recorder: &memRecorder{},
	}
	s.mgr = New(pc, installer.New(pc.InstalledDir, logger), pkgstore.New(pc, nil, logger), Options{
		Hooks: hooks.Registry{
			mkp.PartChecks:      s.checks,
			mkp.PartECRulePacks: hooks.NewRulePacks(pc.RulePackRegistry, logger),
		},
		Compare:         platform.Compare,
		PlatformVersion: testPlatformVersion,
		Recorder:        s.recorder,
		Notifier:        s.notifier,
		Logger:          logger,
		IgnoreGlobs:     []string{"doc/**/*.bak"},
	})
	return s
}

func (s *testSite) path(part mkp.Part, rel string) string {
	return filepath.Join(s.pc.Path(part), filepath.FromSlash(rel))
}

func (s *testSite) writeFile(part mkp.Part, rel, content string) {
	s.t.Helper()
	p := s.path(part, rel)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		s.t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		s.t.Fatal(err)
	}
}

func (s *testSite) exists(part mkp.Part, rel string) bool {
	_, err := os.Stat(s.path(part, rel))
	return err == nil
}

func (s *testSite) read(part mkp.Part, rel string) string {
	s.t.Helper()
	data, err := os.ReadFile(s.path(part, rel))
	if err != nil {
		s.t.Fatalf("failed to read %s/%s: %v", part, rel, err)
	}
	return string(data)
}

func (s *testSite) installedVersion(name mkp.PackageName) mkp.PackageVersion {
	s.t.Helper()
	man, err := s.mgr.Installer().Get(name)
	if err != nil {
		s.t.Fatalf("Get(%s) failed: %v", name, err)
	}
	if man == nil {
		return ""
	}
	return man.Version
}

func newManifest(name, version string, files map[mkp.Part][]string) *mkp.Manifest {
	m := mkp.Template(mkp.PackageName(name), testPlatformVersion)
	m.Version = mkp.PackageVersion(version)
	m.Files = files
	return m
}

// fileContent is what packaged test files contain.
func fileContent(man *mkp.Manifest, rel string) string {
	return man.ID().String() + ":" + rel
}

// archiveOf packs man from a scratch directory tree.
func archiveOf(t *testing.T, man *mkp.Manifest) []byte {
	t.Helper()
	src := mkp.NewPathConfig(t.TempDir())
	for part, files := range man.Files {
		for _, rel := range files {
			p := filepath.Join(src.Path(part), filepath.FromSlash(rel))
			if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
				t.Fatal(err)
			}
			if err := os.WriteFile(p, []byte(fileContent(man, rel)), 0o644); err != nil {
				t.Fatal(err)
			}
		}
	}
	data, err := archive.Create(man, src, testPlatformVersion)
	if err != nil {
		t.Fatalf("archive.Create() failed: %v", err)
	}
	return data
}

// addPackage stores the archive of man in the local tier.
func (s *testSite) addPackage(man *mkp.Manifest) mkp.PackageID {
	s.t.Helper()
	if _, err := s.mgr.Add(archiveOf(s.t, man)); err != nil {
		s.t.Fatalf("Add(%s) failed: %v", man.ID(), err)
	}
	return man.ID()
}

// installPackage stores and installs man.
func (s *testSite) installPackage(man *mkp.Manifest) {
	s.t.Helper()
	id := s.addPackage(man)
	if _, err := s.mgr.Install(context.Background(), id, CheckMinimum); err != nil {
		s.t.Fatalf("Install(%s) failed: %v", id, err)
	}
}
