package packaging

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/Checkmk/checkmk-sub074/internal/mkp"
)

// enablePackage stores man and marks it enabled without installing it.
func (s *testSite) enablePackage(man *mkp.Manifest) mkp.PackageID {
	s.t.Helper()
	id := s.addPackage(man)
	if err := s.mgr.Store().MarkAsEnabled(id); err != nil {
		s.t.Fatalf("MarkAsEnabled(%s) failed: %v", id, err)
	}
	return id
}

func TestUpdateActivePackagesInstallsNewest(t *testing.T) {
	s := newTestSite(t)
	s.enablePackage(newManifest("foo", "1.0.0", map[mkp.Part][]string{mkp.PartChecks: {"foo", "foo_old"}}))
	s.enablePackage(newManifest("foo", "1.2.0", map[mkp.Part][]string{mkp.PartChecks: {"foo"}}))

	result, err := s.mgr.UpdateActivePackages(context.Background())
	if err != nil {
		t.Fatalf("UpdateActivePackages() failed: %v", err)
	}
	if got := s.installedVersion("foo"); got != "1.2.0" {
		t.Errorf("installed version = %q, want 1.2.0", got)
	}
	if len(result.Installed) != 1 || result.Installed[0].Version != "1.2.0" {
		t.Errorf("Installed = %v, want [foo 1.2.0]", result.Installed)
	}
	if s.exists(mkp.PartChecks, "foo_old") {
		t.Error("file of the older version was installed")
	}
	if s.notifier.calls != 1 {
		t.Errorf("notifier called %d times, want 1", s.notifier.calls)
	}

	names, err := s.mgr.Installer().Names()
	if err != nil || len(names) != 1 {
		t.Errorf("registry names = %v, %v; want one entry", names, err)
	}

	again, err := s.mgr.UpdateActivePackages(context.Background())
	if err != nil {
		t.Fatalf("second UpdateActivePackages() failed: %v", err)
	}
	if again.Changed() {
		t.Errorf("second run changed state: %+v", again)
	}
	if s.notifier.calls != 1 {
		t.Errorf("second run notified")
	}
}

func TestUpdateActivePackagesFallsBack(t *testing.T) {
	s := newTestSite(t)
	s.enablePackage(newManifest("foo", "1.0.0", map[mkp.Part][]string{mkp.PartChecks: {"foo"}}))
	tooNew := newManifest("foo", "1.2.0", map[mkp.Part][]string{mkp.PartChecks: {"foo"}})
	tooNew.VersionMinRequired = "9.9.9"
	s.enablePackage(tooNew)

	result, err := s.mgr.UpdateActivePackages(context.Background())
	if err != nil {
		t.Fatalf("UpdateActivePackages() failed: %v", err)
	}
	if got := s.installedVersion("foo"); got != "1.0.0" {
		t.Errorf("installed version = %q, want 1.0.0", got)
	}
	if len(result.Skipped) != 1 || result.Skipped[0].ID != tooNew.ID() {
		t.Fatalf("Skipped = %v, want [foo 1.2.0]", result.Skipped)
	}
	if !errors.Is(result.Skipped[0].Err, mkp.ErrIncompatible) {
		t.Errorf("skip reason = %v, want ErrIncompatible", result.Skipped[0].Err)
	}

	again, err := s.mgr.UpdateActivePackages(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if again.Changed() {
		t.Errorf("second run changed state: %+v", again)
	}
	if len(again.Kept) != 1 {
		t.Errorf("Kept = %v, want [foo 1.0.0]", again.Kept)
	}
}

func TestUpdateActivePackagesUninstallsOutdated(t *testing.T) {
	s := newTestSite(t)
	until := "2.3.0"
	outdated := newManifest("foo", "1.0", map[mkp.Part][]string{mkp.PartChecks: {"foo"}})
	outdated.VersionUsableUntil = &until
	s.installPackage(outdated)
	s.installPackage(newManifest("bar", "1.0", map[mkp.Part][]string{mkp.PartChecks: {"bar"}}))

	result, err := s.mgr.UpdateActivePackages(context.Background())
	if err != nil {
		t.Fatalf("UpdateActivePackages() failed: %v", err)
	}
	if len(result.Uninstalled) != 1 || result.Uninstalled[0] != outdated.ID() {
		t.Errorf("Uninstalled = %v, want [foo 1.0]", result.Uninstalled)
	}
	if s.mgr.Installer().IsInstalled("foo") {
		t.Error("outdated package is still installed")
	}
	if s.exists(mkp.PartChecks, "foo") {
		t.Error("files of the outdated package remain")
	}
	if got := s.installedVersion("bar"); got != "1.0" {
		t.Errorf("bar version = %q, want 1.0", got)
	}
	if !s.mgr.Store().IsEnabled(outdated.ID()) {
		t.Error("outdated package lost its enabled mark")
	}
}

func TestUpdateActivePackagesConflictSkipped(t *testing.T) {
	s := newTestSite(t)
	s.installPackage(newManifest("bar", "1.0.0", map[mkp.Part][]string{mkp.PartChecks: {"x"}}))
	s.enablePackage(newManifest("baz", "1.0.0", map[mkp.Part][]string{mkp.PartChecks: {"x"}}))
	s.enablePackage(newManifest("zap", "1.0.0", map[mkp.Part][]string{mkp.PartChecks: {"zap"}}))

	result, err := s.mgr.UpdateActivePackages(context.Background())
	if err != nil {
		t.Fatalf("UpdateActivePackages() failed: %v", err)
	}
	if s.mgr.Installer().IsInstalled("baz") {
		t.Error("conflicting package was installed")
	}
	if got := s.installedVersion("zap"); got != "1.0.0" {
		t.Errorf("zap version = %q; reconciliation stopped at the conflict", got)
	}
	if len(result.Skipped) != 1 || !errors.Is(result.Skipped[0].Err, mkp.ErrConflict) {
		t.Errorf("Skipped = %v, want the baz conflict", result.Skipped)
	}
}

func TestUpdateActivePackagesInstallsEnabledCopy(t *testing.T) {
	s := newTestSite(t)
	s.addPackage(newManifest("foo", "1.0", map[mkp.Part][]string{mkp.PartChecks: {"a"}}))

	// An external sync replaced the enabled copy; the local one is stale.
	enabled := newManifest("foo", "1.0", map[mkp.Part][]string{mkp.PartChecks: {"b"}})
	fileName, err := enabled.ID().FileName()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(s.pc.EnabledDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(s.pc.EnabledDir, fileName), archiveOf(t, enabled), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := s.mgr.UpdateActivePackages(context.Background()); err != nil {
		t.Fatalf("UpdateActivePackages() failed: %v", err)
	}
	if !s.exists(mkp.PartChecks, "b") {
		t.Error("file of the enabled archive was not installed")
	}
	if s.exists(mkp.PartChecks, "a") {
		t.Error("file of the local archive was installed")
	}
	installed, err := s.mgr.Installer().Get("foo")
	if err != nil || installed == nil {
		t.Fatalf("Get(foo) = %v, %v", installed, err)
	}
	if got := installed.PartFiles(mkp.PartChecks); !slices.Equal(got, []string{"b"}) {
		t.Errorf("installed files = %v, want [b]", got)
	}
}

func TestUpdateActivePackagesAfterInterruption(t *testing.T) {
	t.Run("update of owned files recovers", func(t *testing.T) {
		s := newTestSite(t)
		s.installPackage(newManifest("foo", "1.0", map[mkp.Part][]string{mkp.PartChecks: {"a"}}))
		next := newManifest("foo", "2.0", map[mkp.Part][]string{mkp.PartChecks: {"a", "b"}})
		s.enablePackage(next)
		s.writeFile(mkp.PartChecks, "a", "half written")

		if _, err := s.mgr.UpdateActivePackages(context.Background()); err != nil {
			t.Fatalf("UpdateActivePackages() failed: %v", err)
		}
		if got := s.installedVersion("foo"); got != "2.0" {
			t.Errorf("installed version = %q, want 2.0", got)
		}
		if got := s.read(mkp.PartChecks, "a"); got != fileContent(next, "a") {
			t.Errorf("checks/a = %q, want the 2.0 content", got)
		}
	})

	t.Run("fresh install leaves unowned files", func(t *testing.T) {
		s := newTestSite(t)
		s.enablePackage(newManifest("foo", "1.0", map[mkp.Part][]string{mkp.PartChecks: {"a"}}))
		s.writeFile(mkp.PartChecks, "a", "half written")

		result, err := s.mgr.UpdateActivePackages(context.Background())
		if err != nil {
			t.Fatalf("UpdateActivePackages() failed: %v", err)
		}
		if s.mgr.Installer().IsInstalled("foo") {
			t.Error("package installed over unowned files")
		}
		if len(result.Skipped) != 1 || !errors.Is(result.Skipped[0].Err, mkp.ErrConflict) {
			t.Errorf("Skipped = %v, want an already-existing conflict", result.Skipped)
		}
	})
}

func TestUpdateActivePackagesDebug(t *testing.T) {
	s := newTestSite(t)
	s.installPackage(newManifest("bar", "1.0.0", map[mkp.Part][]string{mkp.PartChecks: {"x"}}))
	s.enablePackage(newManifest("baz", "1.0.0", map[mkp.Part][]string{mkp.PartChecks: {"x"}}))
	s.mgr.Debug = true

	_, err := s.mgr.UpdateActivePackages(context.Background())
	if !errors.Is(err, mkp.ErrConflict) {
		t.Errorf("UpdateActivePackages() error = %v, want ErrConflict", err)
	}
}

func TestDisableOutdated(t *testing.T) {
	s := newTestSite(t)
	until := "2.2.0"
	outdated := newManifest("foo", "1.0", map[mkp.Part][]string{mkp.PartChecks: {"foo"}})
	outdated.VersionUsableUntil = &until
	s.installPackage(outdated)
	current := newManifest("bar", "1.0", map[mkp.Part][]string{mkp.PartChecks: {"bar"}})
	s.installPackage(current)

	disabled, err := s.mgr.DisableOutdated(context.Background())
	if err != nil {
		t.Fatalf("DisableOutdated() failed: %v", err)
	}
	if len(disabled) != 1 || disabled[0] != outdated.ID() {
		t.Errorf("DisableOutdated() = %v, want [foo 1.0]", disabled)
	}
	if s.mgr.Installer().IsInstalled("foo") || s.mgr.Store().IsEnabled(outdated.ID()) {
		t.Error("outdated package is still installed or enabled")
	}
	if !s.mgr.Installer().IsInstalled("bar") || !s.mgr.Store().IsEnabled(current.ID()) {
		t.Error("current package was disabled")
	}
}

func TestGroupByName(t *testing.T) {
	enabled := map[mkp.PackageID]*mkp.Manifest{}
	for _, raw := range [][2]string{{"b", "1.2"}, {"a", "1.10"}, {"a", "1.9"}, {"a", "1.10-beta"}} {
		id := mkp.PackageID{Name: mkp.PackageName(raw[0]), Version: mkp.PackageVersion(raw[1])}
		enabled[id] = nil
	}

	groups := groupByName(enabled)
	if len(groups) != 2 || groups[0].name != "a" || groups[1].name != "b" {
		t.Fatalf("groups = %v", groups)
	}
	want := []mkp.PackageVersion{"1.10", "1.10-beta", "1.9"}
	for i, v := range want {
		if groups[0].versions[i] != v {
			t.Errorf("versions[%d] = %q, want %q", i, groups[0].versions[i], v)
		}
	}
}
