package app

import (
	"context"
	"fmt"
	"io"

	"github.com/blackwell-systems/pinscan/internal/output"
	"github.com/blackwell-systems/pinscan/internal/scanner"
	"github.com/blackwell-systems/pinscan/internal/specifier"
	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan <package>...",
	Short: "Record the GitHub repositories a package's corpus files reference",
	Long: `Search the corpus for files mentioning each package and record the
fetchFromGitHub owner/repo pairs they contain.

Each scan replaces the package's previous snapshot in full. Files that
cannot be read or decoded are skipped with a warning. Previous search runs
are kept; they are joined against the new snapshot by 'pinscan report'.

Candidate files are found with ripgrep by default. Set scan.finder to
"native" in the config file to walk the corpus without an external tool.`,
	Example: `  # Scan one package
  pinscan scan hatchling

  # Scan several packages against a specific checkout
  pinscan scan hatchling setuptools --corpus ~/src/nixpkgs`,
	Args: cobra.MinimumNArgs(1),
	RunE: runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	specs, err := specifier.ParseAll(args)
	if err != nil {
		return err
	}

	env, err := openEnvironment()
	if err != nil {
		return err
	}
	defer env.Close()

	sc, err := env.newScanner(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	return forEachSpec(cmd.ErrOrStderr(), env.log, specs, func(spec specifier.Specifier) error {
		return scanOne(cmd.Context(), cmd.OutOrStdout(), sc, env.cfg.Corpus.Path, spec)
	})
}

// scanOne scans spec's package and prints a one-line summary.
func scanOne(ctx context.Context, out io.Writer, sc *scanner.Scanner, root string, spec specifier.Specifier) error {
	res, err := sc.Scan(ctx, spec.Name, root)
	if err != nil {
		return describeError(err)
	}
	if !quiet {
		fmt.Fprint(out, output.RenderScanSummary(res.Package, res.Files, res.Stored, res.Changed))
	}
	return nil
}
