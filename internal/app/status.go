package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/blackwell-systems/pinscan/internal/output"
	"github.com/blackwell-systems/pinscan/internal/watcher"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show tracked packages and watcher status",
	Long: `Display every package with a stored snapshot.

Shows, per package:
  • Number of repositories in the snapshot
  • When the package was last scanned
  • Number of recorded search runs
  • When the package was last searched

The state of the background watcher is shown below the table.`,
	Example: `  # Check status
  pinscan status

  # Check a JSON document store
  pinscan status --engine json --db ~/.pinscan/pinscan.json`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	env, err := openEnvironment()
	if err != nil {
		return err
	}
	defer env.Close()

	packages, err := env.backend.ListPackages()
	if err != nil {
		return fmt.Errorf("failed to list packages: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprint(out, output.RenderStatusTable(packages))
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Database: %s (%s)\n", env.cfg.Database.Path, env.cfg.Database.Engine)
	fmt.Fprintf(out, "Corpus:   %s\n", env.cfg.Corpus.Path)
	fmt.Fprintf(out, "Watcher:  %s\n", watcherState())
	return nil
}

// watcherState describes the background watcher using the default PID file.
func watcherState() string {
	pidFile, err := getDefaultPIDFile()
	if err != nil {
		return "unknown"
	}
	running, err := watcher.IsDaemonRunning(pidFile)
	if err != nil || !running {
		return "not running"
	}
	data, err := os.ReadFile(pidFile)
	if err != nil {
		return "running"
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return "running"
	}
	return fmt.Sprintf("running (PID %d)", pid)
}
