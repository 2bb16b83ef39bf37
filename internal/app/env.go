package app

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/Checkmk/checkmk-sub074/internal/config"
	"github.com/Checkmk/checkmk-sub074/internal/hooks"
	"github.com/Checkmk/checkmk-sub074/internal/installer"
	"github.com/Checkmk/checkmk-sub074/internal/logging"
	"github.com/Checkmk/checkmk-sub074/internal/mkp"
	"github.com/Checkmk/checkmk-sub074/internal/notify"
	"github.com/Checkmk/checkmk-sub074/internal/packaging"
	"github.com/Checkmk/checkmk-sub074/internal/pkgstore"
	"github.com/Checkmk/checkmk-sub074/internal/platform"
	"github.com/Checkmk/checkmk-sub074/internal/store"
)

// environment bundles everything a command needs for one site.
type environment struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *store.Store // nil when the history database is unavailable
	mgr    *packaging.Manager
}

// openEnv loads the configuration and wires the package manager.
func openEnv() (*environment, error) {
	return openEnvWith(logging.CLIConfig)
}

func openEnvWith(logConfig func(level string) logging.Config) (*environment, error) {
	cfg, err := config.LoadSite(cfgFile, siteRoot)
	if err != nil {
		return nil, err
	}

	level := logging.Verbosity(cfg.LogLevel, verbose)
	if debug {
		level = "debug"
	}
	logger, err := logging.New(logConfig(level))
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	env := &environment{cfg: cfg, logger: logger}
	pc := cfg.PathConfig()

	// History and the manifest cache are optional; a read-only site still
	// works without them.
	var recorder packaging.Recorder
	var cache pkgstore.ManifestCache
	if db, err := store.Open(cfg.Database()); err != nil {
		logger.Warn("history database unavailable", zap.String("path", cfg.Database()), zap.Error(err))
	} else {
		env.db = db
		recorder = db
		cache = db
	}

	platformVersion := cfg.PlatformVersion
	if platformVersion == "" {
		platformVersion, err = platform.FromSite(pc.SiteRoot)
		if err != nil {
			env.Close()
			return nil, fmt.Errorf("platform version unknown, set platform_version or MKP_PLATFORM_VERSION: %w", err)
		}
	}

	var notifier packaging.Notifier = notify.Nop{}
	if cfg.NotifyCommand != "" {
		cmd, err := notify.NewCommand(cfg.NotifyCommand, pc.SiteRoot, []string{"MKP_SITE_ROOT=" + pc.SiteRoot}, logger)
		if err != nil {
			env.Close()
			return nil, err
		}
		notifier = cmd
	}

	env.mgr = packaging.New(
		pc,
		installer.New(pc.InstalledDir, logger),
		pkgstore.New(pc, cache, logger),
		packaging.Options{
			Hooks: hooks.Registry{
				mkp.PartECRulePacks: hooks.NewRulePacks(pc.RulePackRegistry, logger),
			},
			PlatformVersion: platformVersion,
			Recorder:        recorder,
			Notifier:        notifier,
			Logger:          logger,
			IgnoreGlobs:     cfg.IgnoreGlobs,
			Debug:           debug,
		},
	)
	return env, nil
}

// Close flushes the logger and closes the database.
func (e *environment) Close() {
	_ = e.logger.Sync()
	if e.db != nil {
		e.db.Close()
	}
}

// readManifestFile parses a manifest written by "mkp template" or by hand.
func readManifestFile(path string) (*mkp.Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return mkp.ParseManifest(data)
}

// optionalVersion returns args[i] as a version, or "" if absent.
func optionalVersion(args []string, i int) (mkp.PackageVersion, error) {
	if len(args) <= i {
		return "", nil
	}
	return mkp.NewPackageVersion(args[i])
}
