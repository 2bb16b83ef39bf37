// Package config loads the mkp configuration: built-in defaults, an optional
// TOML file and MKP_* environment overrides, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"

	"github.com/Checkmk/checkmk-sub074/internal/mkp"
)

// EnvPrefix is the prefix of all environment overrides.
const EnvPrefix = "MKP"

// FileName is the name of the config file below <site>/etc.
const FileName = "mkp.toml"

const defaultDebounce = 2 * time.Second

// Config holds the mkp configuration.
type Config struct {
	SiteRoot        string `toml:"site_root" envconfig:"SITE_ROOT"`
	PlatformVersion string `toml:"platform_version" envconfig:"PLATFORM_VERSION"`
	LogLevel        string `toml:"log_level" envconfig:"LOG_LEVEL"`
	DBPath          string `toml:"db_path" envconfig:"DB_PATH"`
	NotifyCommand   string `toml:"notify_command" envconfig:"NOTIFY_COMMAND"`
	// IgnoreGlobs are doublestar patterns matched against "<part>/<path>"
	// when looking for unpackaged files.
	IgnoreGlobs []string `toml:"ignore_globs" envconfig:"IGNORE_GLOBS"`
	// WatchDebounce is a time.ParseDuration string, e.g. "2s".
	WatchDebounce string `toml:"watch_debounce" envconfig:"WATCH_DEBOUNCE"`
	// Paths overrides part directories, keyed by part ID.
	Paths map[string]string `toml:"paths" ignored:"true"`
}

// Default returns the configuration for the site in $OMD_ROOT.
func Default() *Config {
	return &Config{
		SiteRoot:      os.Getenv("OMD_ROOT"),
		LogLevel:      "warn",
		WatchDebounce: defaultDebounce.String(),
	}
}

// Load builds the configuration. An empty path selects <site>/etc/mkp.toml,
// which may be missing; an explicit path must exist.
func Load(path string) (*Config, error) {
	return LoadSite(path, "")
}

// LoadSite is Load with a site root that takes precedence over all other
// sources, as given by the --site flag.
func LoadSite(path, siteRoot string) (*Config, error) {
	cfg := Default()

	// The site root may come from the environment before any file is read.
	if root := os.Getenv(EnvPrefix + "_SITE_ROOT"); root != "" {
		cfg.SiteRoot = root
	}
	if siteRoot != "" {
		cfg.SiteRoot = siteRoot
	}

	explicit := path != ""
	if !explicit && cfg.SiteRoot != "" {
		path = filepath.Join(cfg.SiteRoot, "etc", FileName)
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			if explicit || !errors.Is(err, os.ErrNotExist) {
				return nil, err
			}
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}
	if siteRoot != "" {
		cfg.SiteRoot = siteRoot
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := toml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks the combination of all sources.
func (c *Config) Validate() error {
	if c.SiteRoot == "" {
		return errors.New("no site root configured (set OMD_ROOT, MKP_SITE_ROOT or site_root)")
	}
	if _, err := time.ParseDuration(c.WatchDebounce); err != nil {
		return fmt.Errorf("invalid watch_debounce %q: %w", c.WatchDebounce, err)
	}
	for id := range c.Paths {
		if _, err := mkp.ParsePart(id); err != nil {
			return fmt.Errorf("invalid [paths] entry: %w", err)
		}
	}
	return nil
}

// PathConfig lays out the site directories including [paths] overrides.
func (c *Config) PathConfig() *mkp.PathConfig {
	pc := mkp.NewPathConfig(c.SiteRoot)
	for id, dir := range c.Paths {
		part, err := mkp.ParsePart(id)
		if err != nil {
			continue
		}
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(c.SiteRoot, dir)
		}
		pc.SetPath(part, dir)
	}
	return pc
}

// Database returns the path of the history database.
func (c *Config) Database() string {
	if c.DBPath != "" {
		return c.DBPath
	}
	return filepath.Join(c.SiteRoot, "var", "check_mk", "mkp", "history.db")
}

// Debounce returns the parsed watch debounce interval.
func (c *Config) Debounce() time.Duration {
	d, err := time.ParseDuration(c.WatchDebounce)
	if err != nil {
		return defaultDebounce
	}
	return d
}
