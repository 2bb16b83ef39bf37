// Package watcher reconciles the installed packages whenever the enabled
// tier changes.
//
// The Watcher subscribes to fsnotify events on the enabled-packages
// directory. Archive events (*.mkp) are debounced so that a burst of copies
// triggers a single reconciliation run, and runs never overlap.
//
// Example usage:
//
//	w, err := watcher.New(pc.EnabledDir, mgr.UpdateActivePackages, 2*time.Second, logger)
//	if err != nil {
//		return err
//	}
//
//	// Start watching in foreground
//	if err := w.Start(); err != nil {
//		return err
//	}
//	defer w.Stop()
//
//	// Or start as daemon
//	if err := w.StartDaemon(pidFile, logFile, "--site", site); err != nil {
//		return err
//	}
package watcher
