package app

import (
	"io"

	"github.com/blackwell-systems/pinscan/internal/report"
	"github.com/blackwell-systems/pinscan/internal/specifier"
	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report <specifier>...",
	Short: "Print the latest search results grouped by corpus file",
	Long: `Print the repositories matched by the most recent search for each
specifier, grouped by the corpus file that references them.

The report is built from stored data only; it never contacts GitHub.
Matches are joined against the current snapshot, so a rescan after the
search is reflected immediately.`,
	Example: `  # Report pinned hatchling versions
  pinscan report hatchling

  # Report an exact version
  pinscan report 'hatchling==1.27.0'`,
	Args: cobra.MinimumNArgs(1),
	RunE: runReport,
}

func runReport(cmd *cobra.Command, args []string) error {
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
		return reportOne(cmd.OutOrStdout(), env, spec)
	})
}

// reportOne renders the report for spec's canonical query.
func reportOne(out io.Writer, env *environment, spec specifier.Specifier) error {
	rep, err := report.New(env.backend).Report(spec.Name, spec.Canonical())
	if err != nil {
		return err
	}
	return rep.Render(out)
}
