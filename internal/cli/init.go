package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the offer database",
		Long: `Initialize the offer database.

Creates the sqlite database at the configured path and applies the
schema and any pending migrations. Safe to run against an existing
database.

Example:
  remand init --store remand.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer rt.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "initialized store at %s\n", rt.cfg.Store)
			return nil
		},
	}
	return cmd
}
