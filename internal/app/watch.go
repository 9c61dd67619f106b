package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/blackwell-systems/pinscan/internal/output"
	"github.com/blackwell-systems/pinscan/internal/scanner"
	"github.com/blackwell-systems/pinscan/internal/specifier"
	"github.com/blackwell-systems/pinscan/internal/watcher"
	"github.com/spf13/cobra"
)

var (
	watchDaemon      bool
	watchDaemonChild bool
	watchPIDFile     string
	watchLogFile     string
	watchStop        bool
	watchDebounce    time.Duration

	watchCmd = &cobra.Command{
		Use:   "watch <package>...",
		Short: "Rescan packages whenever the corpus changes",
		Long: `Watch the corpus directory and rescan the given packages after files
change.

Bursts of changes (a git checkout, a rebase) are collapsed: the rescan
runs once the corpus has been quiet for the debounce interval. The
packages are scanned once at startup. The watcher never searches GitHub;
run 'pinscan search' to refresh search results.

Watch modes:
  • Foreground (default): Run in current terminal with Ctrl+C to stop
  • Daemon: Run as a background process tracked by a PID file
  • Stop: Stop a running daemon`,
		Example: `  # Run in foreground (Ctrl+C to stop)
  pinscan watch hatchling setuptools

  # Run as background daemon
  pinscan watch hatchling --daemon

  # Stop running daemon
  pinscan watch --stop

  # Use custom PID and log files
  pinscan watch hatchling --daemon --pid-file /tmp/watch.pid --log-file /tmp/watch.log`,
		RunE: runWatch,
	}
)

func init() {
	watchCmd.Flags().BoolVar(&watchDaemon, "daemon", false, "run as background daemon")
	watchCmd.Flags().BoolVar(&watchDaemonChild, "daemon-child", false, "internal flag for daemon child process")
	watchCmd.Flags().StringVar(&watchPIDFile, "pid-file", "", "PID file path (default: ~/.pinscan/watch.pid)")
	watchCmd.Flags().StringVar(&watchLogFile, "log-file", "", "log file path (default: ~/.pinscan/watch.log)")
	watchCmd.Flags().BoolVar(&watchStop, "stop", false, "stop running daemon")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 0, "quiet period before rescanning (default: watch.debounce)")

	// Hide the internal daemon-child flag from help
	watchCmd.Flags().MarkHidden("daemon-child")
}

func runWatch(cmd *cobra.Command, args []string) error {
	// Get default paths if not specified
	if watchPIDFile == "" {
		defaultPID, err := getDefaultPIDFile()
		if err != nil {
			return fmt.Errorf("failed to get default PID file path: %w", err)
		}
		watchPIDFile = defaultPID
	}

	if watchLogFile == "" {
		defaultLog, err := getDefaultLogFile()
		if err != nil {
			return fmt.Errorf("failed to get default log file path: %w", err)
		}
		watchLogFile = defaultLog
	}

	// Handle stop command
	if watchStop {
		return stopWatchDaemon(cmd)
	}

	if len(args) == 0 {
		return errors.New("watch requires at least one package")
	}
	specs, err := specifier.ParseAll(args)
	if err != nil {
		return err
	}

	// The parent only forks; the child opens the database itself.
	if watchDaemon && !watchDaemonChild {
		return startWatchDaemon(cmd)
	}

	env, err := openEnvironment()
	if err != nil {
		return err
	}
	defer env.Close()

	sc, err := env.newScanner(nil)
	if err != nil {
		return err
	}

	debounce := env.cfg.Watch.Debounce
	if watchDebounce > 0 {
		debounce = watchDebounce
	}

	rescan := rescanFunc(sc, env.cfg.Corpus.Path, specs)
	w, err := watcher.New(watcher.Options{
		Root:     env.cfg.Corpus.Path,
		Include:  env.cfg.Scan.Include,
		Exclude:  env.cfg.Scan.Exclude,
		Debounce: debounce,
	}, rescan, env.log)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	if err := rescan(cmd.Context()); err != nil {
		env.log.Warnw("initial scan failed", "error", err)
	}

	// Handle daemon child process
	if watchDaemonChild {
		return watcher.RunDaemon(cmd.Context(), w, watchPIDFile)
	}

	// Run in foreground
	return runWatchForeground(cmd, w, specs)
}

// rescanFunc scans every spec in order. Failures are joined so one broken
// package does not hide the others.
func rescanFunc(sc *scanner.Scanner, root string, specs []specifier.Specifier) watcher.RescanFunc {
	return func(ctx context.Context) error {
		var errs []error
		for _, spec := range specs {
			if _, err := sc.Scan(ctx, spec.Name, root); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				errs = append(errs, fmt.Errorf("%s: %w", spec.Name, err))
			}
		}
		return errors.Join(errs...)
	}
}

func stopWatchDaemon(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()

	// Check if daemon is running
	running, err := watcher.IsDaemonRunning(watchPIDFile)
	if err != nil {
		return fmt.Errorf("failed to check daemon status: %w", err)
	}

	if !running {
		fmt.Fprintln(out, "Daemon is not running")
		return nil
	}

	spinner := output.NewSpinner("Stopping daemon...")
	spinner.SetWriter(out)
	if err := watcher.StopDaemon(watchPIDFile); err != nil {
		spinner.Stop()
		return fmt.Errorf("failed to stop daemon: %w", err)
	}
	spinner.StopWithMessage("✓ Daemon stopped")

	return nil
}

func startWatchDaemon(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()

	spinner := output.NewSpinner("Starting daemon...")
	spinner.SetWriter(out)
	pid, err := watcher.StartDaemon(daemonArgs(os.Args[1:]), watchPIDFile, watchLogFile)
	if err != nil {
		spinner.Stop()
		return fmt.Errorf("failed to start daemon: %w", err)
	}
	spinner.StopWithMessage("✓ Daemon started")

	fmt.Fprintf(out, "\nCorpus watcher started (PID %d)\n", pid)
	fmt.Fprintf(out, "  PID file: %s\n", watchPIDFile)
	fmt.Fprintf(out, "  Log file: %s\n", watchLogFile)
	fmt.Fprintf(out, "\nTo stop: pinscan watch --stop\n")

	return nil
}

// daemonArgs returns the command line for the child process: the parent's
// arguments without --daemon. The flag is removed so the child does not
// fork again.
func daemonArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		if a == "--daemon" || strings.HasPrefix(a, "--daemon=") {
			continue
		}
		out = append(out, a)
	}
	return out
}

func runWatchForeground(cmd *cobra.Command, w *watcher.Watcher, specs []specifier.Specifier) error {
	out := cmd.OutOrStdout()

	names := make([]string, len(specs))
	for i, s := range specs {
		names[i] = s.Name
	}
	fmt.Fprintf(out, "Watching corpus for %s (press Ctrl+C to stop)...\n", strings.Join(names, ", "))

	// Set up signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := w.Run(ctx); err != nil {
		return fmt.Errorf("watcher failed: %w", err)
	}

	fmt.Fprintf(out, "Watcher stopped after %d %s\n", w.Rescans(), plural(int(w.Rescans()), "rescan", "rescans"))
	return nil
}
