package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	configPath string
	dbPath     string
	corpusPath string
	engine     string
	logLevel   string
	logFormat  string
	verbose    bool
	quiet      bool

	// RootCmd is the root command for pinscan
	RootCmd = &cobra.Command{
		Use:   "pinscan",
		Short: "Find GitHub repositories that pin a Python package",
		Long: `pinscan correlates the GitHub repositories referenced by a nixpkgs
checkout with GitHub code search, to find which of them still pin a given
Python package in their pyproject.toml.

Workflow:
  1. pinscan scan hatchling       # record repositories from the corpus
  2. pinscan search hatchling     # query GitHub code search
  3. pinscan report hatchling     # print matches grouped by file

A bare package name searches for pinned versions ("hatchling==").
Specifiers such as "hatchling==1.27.0" or "hatchling>=1.2" narrow the search.

GitHub search requires GITHUB_TOKEN, read from the environment or a .env
file in the working directory.

Examples:
  # Scan, search and report in one go
  pinscan all hatchling setuptools

  # Show tracked packages
  pinscan status

  # Rescan automatically when the corpus changes
  pinscan watch hatchling --daemon

  # Forget everything
  pinscan reset '*'`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "pinscan: find GitHub repositories that pin a Python package")
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Run 'pinscan all <package>' to scan, search and report.")
			fmt.Fprintln(out, "Run 'pinscan --help' for the full reference.")
			return nil
		},
	}
)

func init() {
	// Global flags
	RootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: $XDG_CONFIG_HOME/pinscan/config.yaml)")
	RootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (default: ~/.pinscan/pinscan.db)")
	RootCmd.PersistentFlags().StringVar(&corpusPath, "corpus", "", "corpus directory to scan (default: ../nixpkgs)")
	RootCmd.PersistentFlags().StringVar(&engine, "engine", "", "storage engine: sqlite or json")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	RootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text or json")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	RootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "suppress progress and scan summaries")

	// Enable cobra's built-in suggestion feature for unknown subcommands
	RootCmd.SuggestionsMinimumDistance = 2

	// Register subcommands
	RootCmd.AddCommand(scanCmd)
	RootCmd.AddCommand(searchCmd)
	RootCmd.AddCommand(reportCmd)
	RootCmd.AddCommand(allCmd)
	RootCmd.AddCommand(resetCmd)
	RootCmd.AddCommand(statusCmd)
	RootCmd.AddCommand(watchCmd)
}

// Execute runs the root command
func Execute() error {
	return RootCmd.Execute()
}

// ExecuteContext runs the root command with ctx, which is cancelled on
// interrupt by the caller.
func ExecuteContext(ctx context.Context) error {
	return RootCmd.ExecuteContext(ctx)
}

// getStateDir returns ~/.pinscan, creating it if needed.
func getStateDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	dir := filepath.Join(home, ".pinscan")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create pinscan directory: %w", err)
	}
	return dir, nil
}

// getDefaultPIDFile returns the default PID file path
func getDefaultPIDFile() (string, error) {
	dir, err := getStateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "watch.pid"), nil
}

// getDefaultLogFile returns the default log file path
func getDefaultLogFile() (string, error) {
	dir, err := getStateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "watch.log"), nil
}
