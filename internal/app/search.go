package app

import (
	"context"
	"fmt"
	"io"

	"github.com/blackwell-systems/pinscan/internal/correlate"
	"github.com/blackwell-systems/pinscan/internal/output"
	"github.com/blackwell-systems/pinscan/internal/specifier"
	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search <specifier>...",
	Short: "Search GitHub for repositories pinning a package",
	Long: `Query GitHub code search for each specifier in pyproject.toml files and
record which of the package's scanned repositories matched.

Both the compact ("hatchling==1.27.0") and spaced ("hatchling == 1.27.0")
forms are searched and their results combined. The package must have been
scanned first. A run is recorded even when nothing matched, so 'pinscan
report' can tell "no matches" from "never searched".

Results are paged at 100 per request with a 6 second pause between pages.
Rate-limited requests are retried after a 60 second cooldown, so a search
for a popular package can take several minutes.

Requires GITHUB_TOKEN in the environment or a .env file.`,
	Example: `  # Search for pinned hatchling versions
  pinscan search hatchling

  # Search for an exact version
  pinscan search 'hatchling==1.27.0'`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	specs, err := specifier.ParseAll(args)
	if err != nil {
		return err
	}

	env, err := openEnvironment()
	if err != nil {
		return err
	}
	defer env.Close()

	return forEachSpec(cmd.ErrOrStderr(), env.log, specs, func(spec specifier.Specifier) error {
		return searchOne(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), env, spec)
	})
}

// searchOne correlates spec against GitHub and prints the recorded run.
func searchOne(ctx context.Context, out, progress io.Writer, env *environment, spec specifier.Specifier) error {
	client, err := env.githubClient()
	if err != nil {
		return err
	}
	corr := correlate.New(env.backend, client, env.cfg.GitHub.Filename, env.log)

	var spinner *output.Spinner
	if !quiet {
		spinner = output.NewSpinner(fmt.Sprintf("Searching GitHub for '%s'", spec.Canonical()))
		spinner.SetWriter(progress)
		spinner.Start()
	}

	run, err := corr.Correlate(ctx, spec.Name, spec.Variants())
	if spinner != nil {
		spinner.Stop()
	}
	if err != nil {
		return err
	}

	stats := client.Stats()
	env.log.WithQuery(run.Query).Debugw("search finished",
		"pages", stats.Pages, "rate_limit_hits", stats.RateLimitHits)

	fmt.Fprintf(out, "Recorded search run #%d for '%s': %d matching %s\n",
		run.ID, run.Query, len(run.Matched), plural(len(run.Matched), "repository", "repositories"))
	return nil
}
