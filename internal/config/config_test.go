package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Checkmk/checkmk-sub074/internal/mkp"
)

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestLoad_DefaultsFromOMDRoot(t *testing.T) {
	site := t.TempDir()
	t.Setenv("OMD_ROOT", site)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.SiteRoot != site {
		t.Errorf("SiteRoot = %q, want %q", cfg.SiteRoot, site)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want warn", cfg.LogLevel)
	}
	if cfg.Debounce() != 2*time.Second {
		t.Errorf("Debounce() = %v, want 2s", cfg.Debounce())
	}
	want := filepath.Join(site, "var", "check_mk", "mkp", "history.db")
	if got := cfg.Database(); got != want {
		t.Errorf("Database() = %q, want %q", got, want)
	}
}

func TestLoad_NoSiteRoot(t *testing.T) {
	t.Setenv("OMD_ROOT", "")

	_, err := Load("")
	if err == nil {
		t.Fatal("Load() should fail without a site root")
	}
	if !strings.Contains(err.Error(), "site root") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoad_SiteFile(t *testing.T) {
	site := t.TempDir()
	t.Setenv("OMD_ROOT", site)
	writeConfig(t, filepath.Join(site, "etc", FileName), `
platform_version = "2.3.0p1"
log_level = "debug"
notify_command = "omd reload apache"
ignore_globs = ["doc/**/*.bak", "web/tmp/*"]
watch_debounce = "500ms"

[paths]
doc = "local/share/doc/custom"
`)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"platform", cfg.PlatformVersion, "2.3.0p1"},
		{"log level", cfg.LogLevel, "debug"},
		{"notify", cfg.NotifyCommand, "omd reload apache"},
		{"globs", strings.Join(cfg.IgnoreGlobs, ","), "doc/**/*.bak,web/tmp/*"},
		{"doc path", cfg.PathConfig().Path(mkp.PartDoc), filepath.Join(site, "local/share/doc/custom")},
		{"checks path", cfg.PathConfig().Path(mkp.PartChecks), filepath.Join(site, "local/share/check_mk/checks")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
	if cfg.Debounce() != 500*time.Millisecond {
		t.Errorf("Debounce() = %v, want 500ms", cfg.Debounce())
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	site := t.TempDir()
	t.Setenv("OMD_ROOT", site)
	writeConfig(t, filepath.Join(site, "etc", FileName), `
platform_version = "2.3.0"
log_level = "debug"
`)
	t.Setenv("MKP_PLATFORM_VERSION", "2.4.0")
	t.Setenv("MKP_DB_PATH", "/tmp/other.db")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.PlatformVersion != "2.4.0" {
		t.Errorf("PlatformVersion = %q, want env override 2.4.0", cfg.PlatformVersion)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want file value debug", cfg.LogLevel)
	}
	if cfg.Database() != "/tmp/other.db" {
		t.Errorf("Database() = %q, want /tmp/other.db", cfg.Database())
	}
}

func TestLoad_SiteRootFromEnvSelectsFile(t *testing.T) {
	site := t.TempDir()
	t.Setenv("OMD_ROOT", "")
	t.Setenv("MKP_SITE_ROOT", site)
	writeConfig(t, filepath.Join(site, "etc", FileName), `log_level = "info"`)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.SiteRoot != site || cfg.LogLevel != "info" {
		t.Errorf("got site %q level %q", cfg.SiteRoot, cfg.LogLevel)
	}
}

func TestLoad_ExplicitFile(t *testing.T) {
	site := t.TempDir()
	t.Setenv("OMD_ROOT", "")
	path := filepath.Join(t.TempDir(), "custom.toml")
	writeConfig(t, path, `site_root = "`+filepath.ToSlash(site)+`"`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if filepath.Clean(cfg.SiteRoot) != site {
		t.Errorf("SiteRoot = %q, want %q", cfg.SiteRoot, site)
	}
}

func TestLoad_Errors(t *testing.T) {
	site := t.TempDir()
	t.Setenv("OMD_ROOT", site)

	tests := []struct {
		name    string
		content string
		missing bool
	}{
		{"missing explicit file", "", true},
		{"broken toml", "log_level = ", false},
		{"bad debounce", `watch_debounce = "soon"`, false},
		{"unknown part", "[paths]\nnope = \"x\"", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "mkp.toml")
			if !tt.missing {
				writeConfig(t, path, tt.content)
			}
			if _, err := Load(path); err == nil {
				t.Error("Load() should fail")
			}
		})
	}
}

func TestLoadSite_FlagWins(t *testing.T) {
	envSite := t.TempDir()
	flagSite := t.TempDir()
	t.Setenv("OMD_ROOT", envSite)
	t.Setenv("MKP_SITE_ROOT", envSite)
	writeConfig(t, filepath.Join(flagSite, "etc", FileName), `log_level = "error"`)

	cfg, err := LoadSite("", flagSite)
	if err != nil {
		t.Fatalf("LoadSite() error: %v", err)
	}
	if cfg.SiteRoot != flagSite {
		t.Errorf("SiteRoot = %q, want %q", cfg.SiteRoot, flagSite)
	}
	if cfg.LogLevel != "error" {
		t.Errorf("LogLevel = %q, want the flag site's file value", cfg.LogLevel)
	}
}
