// Package packaging implements the package workflows on top of the archive
// codec, the installed registry and the package store: create, edit,
// install, uninstall, release, enable and disable, the reconciliation of
// enabled and installed packages, and the file reports.
//
// The Manager does not lock. Callers running several processes against one
// site must serialise them. Re-running UpdateActivePackages repairs a stale
// registry entry and an interrupted update whose files the previous version
// owned. An interrupted fresh install leaves unowned files behind; they
// conflict until they are removed or packaged.
package packaging

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Checkmk/checkmk-sub074/internal/hooks"
	"github.com/Checkmk/checkmk-sub074/internal/installer"
	"github.com/Checkmk/checkmk-sub074/internal/mkp"
	"github.com/Checkmk/checkmk-sub074/internal/pkgstore"
	"github.com/Checkmk/checkmk-sub074/internal/platform"
)

// Event actions passed to the Recorder.
const (
	ActionInstall   = "install"
	ActionUpdate    = "update"
	ActionUninstall = "uninstall"
	ActionRelease   = "release"
	ActionCreate    = "create"
	ActionEdit      = "edit"
	ActionDisable   = "disable"
	ActionRemove    = "remove"
	ActionStore     = "store"
)

// Recorder keeps a history of package operations.
type Recorder interface {
	Record(action string, id mkp.PackageID, detail string) error
}

// Notifier is told when installed files changed so dependent services can
// reload.
type Notifier interface {
	Notify(ctx context.Context) error
}

// CompareFunc compares two host platform versions. An error means the
// versions cannot be compared; the check is then skipped.
type CompareFunc func(a, b string) (int, error)

// VersionCheck selects which platform version bounds are enforced.
type VersionCheck int

const (
	// CheckNone skips the platform version bounds.
	CheckNone VersionCheck = iota
	// CheckMinimum enforces version.min_required only.
	CheckMinimum
	// CheckFull enforces version.min_required and version.usable_until.
	CheckFull
)

// Options carries the optional collaborators of a Manager.
type Options struct {
	Hooks           hooks.Registry
	Compare         CompareFunc
	PlatformVersion string
	Recorder        Recorder
	Notifier        Notifier
	Logger          *zap.Logger
	// IgnoreGlobs are doublestar patterns, matched against "<part>/<path>",
	// of files never reported as unpackaged.
	IgnoreGlobs []string
	Debug       bool
}

// Manager runs the package workflows of one site.
type Manager struct {
	pc              *mkp.PathConfig
	installer       *installer.Installer
	store           *pkgstore.PackageStore
	hooks           hooks.Registry
	compare         CompareFunc
	platformVersion string
	recorder        Recorder
	notifier        Notifier
	logger          *zap.Logger
	ignore          []string

	// Debug makes reconciliation return package errors instead of logging
	// and skipping them.
	Debug bool
}

// New creates a Manager.
func New(pc *mkp.PathConfig, inst *installer.Installer, store *pkgstore.PackageStore, opts Options) *Manager {
	m := &Manager{
		pc:              pc,
		installer:       inst,
		store:           store,
		hooks:           opts.Hooks,
		compare:         opts.Compare,
		platformVersion: opts.PlatformVersion,
		recorder:        opts.Recorder,
		notifier:        opts.Notifier,
		logger:          opts.Logger,
		ignore:          opts.IgnoreGlobs,
		Debug:           opts.Debug,
	}
	if m.hooks == nil {
		m.hooks = hooks.Registry{}
	}
	if m.compare == nil {
		m.compare = platform.Compare
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	return m
}

// PathConfig returns the site layout.
func (m *Manager) PathConfig() *mkp.PathConfig { return m.pc }

// Installer returns the installed registry.
func (m *Manager) Installer() *installer.Installer { return m.installer }

// Store returns the package store.
func (m *Manager) Store() *pkgstore.PackageStore { return m.store }

// PlatformVersion returns the host platform version checks run against.
func (m *Manager) PlatformVersion() string { return m.platformVersion }

func (m *Manager) record(action string, id mkp.PackageID, detail string) {
	if m.recorder == nil {
		return
	}
	if err := m.recorder.Record(action, id, detail); err != nil {
		m.logger.Warn("failed to record event", zap.String("action", action), zap.String("package", id.String()), zap.Error(err))
	}
}

func (m *Manager) notify(ctx context.Context) {
	if m.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	if err := m.notifier.Notify(ctx); err != nil {
		m.logger.Warn("reload notification failed", zap.Error(err))
	}
}
