package app

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Checkmk/checkmk-sub074/internal/config"
	"github.com/Checkmk/checkmk-sub074/internal/logging"
	"github.com/Checkmk/checkmk-sub074/internal/watcher"
)

var (
	watchDaemon      bool
	watchDaemonChild bool
	watchPIDFile     string
	watchLogFile     string
	watchStop        bool

	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Reconcile installed packages whenever the enabled tier changes",
		Long: `Watch the enabled-packages directory and run 'update-active' whenever an
archive is added to or removed from it. Bursts of changes are collapsed into a
single run (watch_debounce, default 2s).

Watch modes:
  • Foreground (default): Run in current terminal with Ctrl+C to stop
  • Daemon: Run as background process, logging JSON to the log file
  • Stop: Stop a running daemon`,
		Example: `  # Run in foreground (Ctrl+C to stop)
  mkp watch

  # Run as background daemon
  mkp watch --daemon

  # Stop running daemon
  mkp watch --stop`,
		Args: cobra.NoArgs,
		RunE: runWatch,
	}
)

func init() {
	watchCmd.Flags().BoolVar(&watchDaemon, "daemon", false, "run as background daemon")
	watchCmd.Flags().BoolVar(&watchDaemonChild, "daemon-child", false, "internal flag for daemon child process")
	watchCmd.Flags().StringVar(&watchPIDFile, "pid-file", "", "PID file path (default: <site>/tmp/run/mkp-watch.pid)")
	watchCmd.Flags().StringVar(&watchLogFile, "log-file", "", "log file path (default: <site>/var/log/mkp-watch.log)")
	watchCmd.Flags().BoolVar(&watchStop, "stop", false, "stop running daemon")

	// Hide the internal daemon-child flag from help
	watchCmd.Flags().MarkHidden("daemon-child")
}

// watchFiles fills in the default PID and log file locations of the site.
func watchFiles(cfg *config.Config) error {
	if watchPIDFile == "" {
		watchPIDFile = filepath.Join(cfg.SiteRoot, "tmp", "run", "mkp-watch.pid")
	}
	if watchLogFile == "" {
		watchLogFile = filepath.Join(cfg.SiteRoot, "var", "log", "mkp-watch.log")
	}
	for _, p := range []string{watchPIDFile, watchLogFile} {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", p, err)
		}
	}
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadSite(cfgFile, siteRoot)
	if err != nil {
		return err
	}
	if err := watchFiles(cfg); err != nil {
		return err
	}

	if watchStop {
		return stopWatchDaemon(cmd)
	}

	// The daemon child logs JSON to its redirected stdout.
	logConfig := logging.CLIConfig
	if watchDaemonChild {
		logConfig = func(level string) logging.Config {
			return logging.FileConfig(level, "stdout")
		}
	}
	env, err := openEnvWith(logConfig)
	if err != nil {
		return err
	}
	defer env.Close()

	w, err := watcher.New(env.mgr.PathConfig().EnabledDir, env.mgr.UpdateActivePackages, cfg.Debounce(), env.logger)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	switch {
	case watchDaemon:
		return startWatchDaemon(cmd, w, cfg)
	case watchDaemonChild:
		return w.RunDaemon(watchPIDFile)
	default:
		return runWatchForeground(cmd, w)
	}
}

func stopWatchDaemon(cmd *cobra.Command) error {
	running, err := watcher.IsDaemonRunning(watchPIDFile)
	if err != nil {
		return fmt.Errorf("failed to check daemon status: %w", err)
	}
	if !running {
		fmt.Fprintln(cmd.OutOrStdout(), "Daemon is not running")
		return nil
	}

	if err := watcher.StopDaemon(watchPIDFile); err != nil {
		return fmt.Errorf("failed to stop daemon: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "✓ Daemon stopped")
	return nil
}

func startWatchDaemon(cmd *cobra.Command, w *watcher.Watcher, cfg *config.Config) error {
	// The child must see the same site and files as this process.
	childArgs := []string{"--site", cfg.SiteRoot, "--pid-file", watchPIDFile, "--log-file", watchLogFile}
	if cfgFile != "" {
		childArgs = append(childArgs, "--config", cfgFile)
	}
	if debug {
		childArgs = append(childArgs, "--debug")
	}

	if err := w.StartDaemon(watchPIDFile, watchLogFile, childArgs...); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "✓ Daemon started")
	fmt.Fprintf(out, "  PID file: %s\n", watchPIDFile)
	fmt.Fprintf(out, "  Log file: %s\n", watchLogFile)
	fmt.Fprintf(out, "\nTo stop: mkp watch --stop\n")
	return nil
}

func runWatchForeground(cmd *cobra.Command, w *watcher.Watcher) error {
	out := cmd.OutOrStdout()

	if err := w.Start(); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	fmt.Fprintln(out, "Watching enabled packages (press Ctrl+C to stop)...")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	sig := <-sigCh
	fmt.Fprintf(out, "\nReceived signal %v, shutting down...\n", sig)

	if err := w.Stop(); err != nil {
		return fmt.Errorf("failed to stop watcher: %w", err)
	}
	fmt.Fprintf(out, "Stopped after %d reconciliation runs\n", w.Runs())
	return nil
}
