package packaging

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/Checkmk/checkmk-sub074/internal/hooks"
	"github.com/Checkmk/checkmk-sub074/internal/mkp"
)

func TestUnpackagedFiles(t *testing.T) {
	s := newTestSite(t)
	s.installPackage(newManifest("foo", "1.0", map[mkp.Part][]string{mkp.PartChecks: {"foo"}}))
	s.writeFile(mkp.PartChecks, "extra", "")
	s.writeFile(mkp.PartChecks, ".hidden", "")
	s.writeFile(mkp.PartChecks, "backup~", "")
	s.writeFile(mkp.PartChecks, "compiled.pyc", "")
	s.writeFile(mkp.PartChecks, ".git/config", "")
	s.writeFile(mkp.PartLib, "other/lib.py", "")
	s.writeFile(mkp.PartAgentBased, "plugin.py", "")
	s.writeFile(mkp.PartDoc, "readme", "")
	s.writeFile(mkp.PartDoc, "notes/old.bak", "")

	unpackaged, err := s.mgr.UnpackagedFiles()
	if err != nil {
		t.Fatalf("UnpackagedFiles() failed: %v", err)
	}

	want := map[mkp.Part][]string{
		mkp.PartChecks:     {"extra"},
		mkp.PartLib:        {"other/lib.py"},
		mkp.PartAgentBased: {"plugin.py"},
		mkp.PartDoc:        {"readme"},
	}
	if len(unpackaged) != len(want) {
		t.Errorf("UnpackagedFiles() = %v, want %v", unpackaged, want)
	}
	for part, files := range want {
		got := unpackaged[part]
		if len(got) != len(files) {
			t.Errorf("%s: got %v, want %v", part, got, files)
			continue
		}
		for i := range files {
			if got[i] != files[i] {
				t.Errorf("%s[%d] = %q, want %q", part, i, got[i], files[i])
			}
		}
	}
}

func TestInventory(t *testing.T) {
	s := newTestSite(t)
	s.installPackage(newManifest("foo", "1.0", map[mkp.Part][]string{mkp.PartChecks: {"foo"}}))
	s.writeFile(mkp.PartChecks, "extra", "12345")
	if err := os.Symlink(s.path(mkp.PartChecks, "extra"), s.path(mkp.PartChecks, "link")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	entries, err := s.mgr.Inventory()
	if err != nil {
		t.Fatalf("Inventory() failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Inventory() returned %d entries, want 2: %+v", len(entries), entries)
	}

	if entries[0].Owner != nil || entries[0].Rel != "extra" {
		t.Errorf("entries[0] = %+v, want unpackaged extra", entries[0])
	}
	if entries[0].Path != s.path(mkp.PartChecks, "extra") {
		t.Errorf("entries[0].Path = %q, want the lexically first path", entries[0].Path)
	}
	if entries[0].Size != 5 {
		t.Errorf("entries[0].Size = %d, want 5", entries[0].Size)
	}
	if entries[1].Owner == nil || entries[1].Owner.Name != "foo" || entries[1].Part != mkp.PartChecks {
		t.Errorf("entries[1] = %+v, want foo's check", entries[1])
	}
}

func TestPartInfo(t *testing.T) {
	s := newTestSite(t)
	s.writeFile(mkp.PartBin, "tool", "")

	infos, err := s.mgr.PartInfo()
	if err != nil {
		t.Fatalf("PartInfo() failed: %v", err)
	}
	if len(infos) != len(mkp.AllParts()) {
		t.Fatalf("PartInfo() returned %d parts", len(infos))
	}
	for _, info := range infos {
		if info.Part != mkp.PartBin {
			continue
		}
		if len(info.Files) != 1 || info.Files[0] != "tool" || info.Modes[0] != 0o755 {
			t.Errorf("bin info = %+v", info)
		}
		if info.Path != filepath.Join(s.pc.SiteRoot, "local/bin") {
			t.Errorf("bin path = %q", info.Path)
		}
	}
}

func TestRulePackOwners(t *testing.T) {
	s := newTestSite(t)
	s.installPackage(newManifest("packs", "1.0", map[mkp.Part][]string{mkp.PartECRulePacks: {"pack_a.mk"}}))
	s.writeFile(mkp.PartECRulePacks, "pack_b.mk", "")

	owners, err := s.mgr.RulePackOwners()
	if err != nil {
		t.Fatalf("RulePackOwners() failed: %v", err)
	}
	if len(owners) != 2 {
		t.Fatalf("RulePackOwners() = %v", owners)
	}
	if owner := owners["pack_a"]; owner == nil || owner.Name != "packs" {
		t.Errorf("owner of pack_a = %v, want packs", owner)
	}
	if owner, ok := owners["pack_b"]; !ok || owner != nil {
		t.Errorf("owner of pack_b = %v, %v; want nil, true", owner, ok)
	}

	registry, err := hooks.NewRulePacks(s.pc.RulePackRegistry, nil).Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(registry) != 1 || registry[0].ID != "pack_a" || registry[0].Source != hooks.SourceMKP {
		t.Errorf("rule pack registry = %v", registry)
	}

	if err := s.mgr.Uninstall(context.Background(), "packs", nil); err != nil {
		t.Fatal(err)
	}
	registry, _ = hooks.NewRulePacks(s.pc.RulePackRegistry, nil).Load()
	if len(registry) != 0 {
		t.Errorf("rule pack registry after uninstall = %v", registry)
	}
}

func TestPreUpdateConfigActions(t *testing.T) {
	s := newTestSite(t)
	foo := newManifest("foo", "1.0", map[mkp.Part][]string{mkp.PartChecks: {"foo"}})
	s.installPackage(foo)
	for _, dir := range []string{s.pc.LocalDir, s.pc.EnabledDir} {
		if err := os.Remove(filepath.Join(dir, "foo-1.0.mkp")); err != nil {
			t.Fatal(err)
		}
	}

	legacy := newManifest("legacy", "0.1", map[mkp.Part][]string{mkp.PartChecks: {"legacy"}})
	if err := os.MkdirAll(s.pc.DisabledDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(s.pc.DisabledDir, "legacy-0.1.mkp"), archiveOf(t, legacy), 0o644); err != nil {
		t.Fatal(err)
	}

	result, err := s.mgr.PreUpdateConfigActions(context.Background())
	if err != nil {
		t.Fatalf("PreUpdateConfigActions() failed: %v", err)
	}
	if result.Changed() {
		t.Errorf("reconciliation changed state: %+v", result)
	}
	if !s.mgr.Store().IsEnabled(foo.ID()) {
		t.Error("installed package was not made available as enabled archive")
	}
	if _, err := os.Stat(filepath.Join(s.pc.LocalDir, "foo-1.0.mkp")); err != nil {
		t.Errorf("archive of installed package was not rebuilt: %v", err)
	}
	if _, err := os.Stat(filepath.Join(s.pc.LocalDir, "legacy-0.1.mkp")); err != nil {
		t.Errorf("legacy disabled package was not migrated: %v", err)
	}
	if _, err := os.Stat(s.pc.DisabledDir); !os.IsNotExist(err) {
		t.Errorf("legacy disabled directory still exists (stat err = %v)", err)
	}
	if s.mgr.Installer().IsInstalled("legacy") {
		t.Error("migrated disabled package was installed")
	}
}
