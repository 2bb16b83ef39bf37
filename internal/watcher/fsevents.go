package watcher

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/Checkmk/checkmk-sub074/internal/packaging"
)

// ReconcileFunc brings the installed packages in line with the enabled tier.
type ReconcileFunc func(ctx context.Context) (*packaging.UpdateResult, error)

// Watcher triggers reconciliation runs on changes to the enabled tier.
type Watcher struct {
	dir       string
	reconcile ReconcileFunc
	debounce  time.Duration
	logger    *zap.Logger

	fsw    *fsnotify.Watcher
	ctx    context.Context
	cancel context.CancelFunc
	stopCh chan struct{}
	wg     sync.WaitGroup

	runMu sync.Mutex // serialises reconciliation runs
	runs  int
}

// New creates a new Watcher instance for dir.
func New(dir string, reconcile ReconcileFunc, debounce time.Duration, logger *zap.Logger) (*Watcher, error) {
	if reconcile == nil {
		return nil, fmt.Errorf("reconcile function cannot be nil")
	}
	if dir == "" {
		return nil, fmt.Errorf("watch directory cannot be empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		dir:       dir,
		reconcile: reconcile,
		debounce:  debounce,
		logger:    logger,
		stopCh:    make(chan struct{}),
	}, nil
}

// Start subscribes to the enabled directory and reconciles once right away,
// so changes made while nobody was watching are picked up.
func (w *Watcher) Start() error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", w.dir, err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := fsw.Add(w.dir); err != nil {
		fsw.Close()
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	w.fsw = fsw
	w.ctx, w.cancel = context.WithCancel(context.Background())

	w.run("startup")

	w.wg.Add(1)
	go w.loop()

	w.logger.Info("watching enabled packages", zap.String("dir", w.dir), zap.Duration("debounce", w.debounce))
	return nil
}

// loop collects events until the debounce timer fires.
func (w *Watcher) loop() {
	defer w.wg.Done()

	var timer *time.Timer
	var fire <-chan time.Time
	pending := ""

	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !isArchiveEvent(ev) {
				continue
			}
			w.logger.Debug("enabled tier changed", zap.String("event", ev.String()))
			pending = ev.Name
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("fsnotify error", zap.Error(err))

		case <-fire:
			fire = nil
			w.run(pending)

		case <-w.stopCh:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

// run reconciles once. Failures are logged; the watcher keeps going.
func (w *Watcher) run(trigger string) {
	w.runMu.Lock()
	defer w.runMu.Unlock()

	w.runs++
	start := time.Now()
	result, err := w.reconcile(w.ctx)
	if err != nil {
		w.logger.Error("reconciliation failed", zap.String("trigger", trigger), zap.Error(err))
		return
	}

	fields := []zap.Field{
		zap.String("trigger", trigger),
		zap.Duration("took", time.Since(start)),
	}
	if result != nil {
		fields = append(fields,
			zap.Stringers("installed", result.Installed),
			zap.Stringers("uninstalled", result.Uninstalled),
			zap.Int("skipped", len(result.Skipped)))
		for _, s := range result.Skipped {
			w.logger.Warn("package skipped", zap.Stringer("package", s.ID), zap.Error(s.Err))
		}
	}
	w.logger.Info("reconciled", fields...)
}

// Runs returns the number of reconciliation runs so far.
func (w *Watcher) Runs() int {
	w.runMu.Lock()
	defer w.runMu.Unlock()
	return w.runs
}

// Stop halts the watcher and waits for a running reconciliation to finish.
func (w *Watcher) Stop() error {
	close(w.stopCh)
	w.wg.Wait()

	w.runMu.Lock()
	defer w.runMu.Unlock()
	if w.cancel != nil {
		w.cancel()
	}
	if w.fsw != nil {
		return w.fsw.Close()
	}
	return nil
}
