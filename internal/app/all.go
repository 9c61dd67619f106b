package app

import (
	"github.com/blackwell-systems/pinscan/internal/specifier"
	"github.com/spf13/cobra"
)

var allCmd = &cobra.Command{
	Use:   "all <specifier>...",
	Short: "Scan, search and report each specifier in turn",
	Long: `Run scan, search and report for each specifier, one specifier at a time.

If a step fails the remaining steps for that specifier are skipped and the
next specifier is processed. The command fails if any specifier failed.`,
	Example: `  # Full pipeline for two packages
  pinscan all hatchling setuptools`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAll,
}

func runAll(cmd *cobra.Command, args []string) error {
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

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	return forEachSpec(cmd.ErrOrStderr(), env.log, specs, func(spec specifier.Specifier) error {
		if err := scanOne(ctx, out, sc, env.cfg.Corpus.Path, spec); err != nil {
			return err
		}
		if err := searchOne(ctx, out, cmd.ErrOrStderr(), env, spec); err != nil {
			return err
		}
		return reportOne(out, env, spec)
	})
}
