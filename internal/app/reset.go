package app

import (
	"fmt"

	"github.com/blackwell-systems/pinscan/internal/specifier"
	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset <package>... | '*'",
	Short: "Delete stored snapshots and search runs",
	Long: `Delete the snapshot and every search run of each named package.

A '*' anywhere in the arguments deletes all stored data instead. Quote it
so the shell does not expand it. Resetting a package that was never
scanned is not an error.`,
	Example: `  # Forget one package
  pinscan reset hatchling

  # Forget everything
  pinscan reset '*'`,
	Args: cobra.MinimumNArgs(1),
	RunE: runReset,
}

func runReset(cmd *cobra.Command, args []string) error {
	wildcard := specifier.IsWildcard(args)

	var specs []specifier.Specifier
	if !wildcard {
		var err error
		if specs, err = specifier.ParseAll(args); err != nil {
			return err
		}
	}

	env, err := openEnvironment()
	if err != nil {
		return err
	}
	defer env.Close()

	out := cmd.OutOrStdout()
	if wildcard {
		if err := env.backend.DeleteAll(); err != nil {
			return fmt.Errorf("failed to reset database: %w", err)
		}
		env.log.Infow("reset all packages")
		fmt.Fprintln(out, "Cleared all stored data.")
		return nil
	}

	return forEachSpec(cmd.ErrOrStderr(), env.log, specs, func(spec specifier.Specifier) error {
		if err := env.backend.DeletePackage(spec.Name); err != nil {
			return fmt.Errorf("failed to reset package: %w", err)
		}
		env.log.WithPackage(spec.Name).Infow("reset package")
		fmt.Fprintf(out, "Cleared data for '%s'.\n", spec.Name)
		return nil
	})
}
