package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/0xthrpw/remand/internal/asset"
)

// CreateOptions holds flags for the create command.
type CreateOptions struct {
	*RootOptions
	As string
}

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CreateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create <offer.yaml>",
		Short: "Create an offer, escrowing its collateral and fee",
		Long: `Create an offer, escrowing its collateral and fee.

The offer payload is read from a YAML file. The caller must be the
offer's owner and must have approved the protocol to move the collateral
and fee bundles.

Example:
  remand create offer.yaml --as 0xaaaa...`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.As, "as", "", "caller address (required)")
	cmd.MarkFlagRequired("as")

	return cmd
}

func runCreate(cmd *cobra.Command, opts *CreateOptions, path string) error {
	caller, err := asset.ParseAddress(opts.As)
	if err != nil {
		return fmt.Errorf("--as: %w", err)
	}

	o, err := LoadOfferFile(path)
	if err != nil {
		return err
	}

	rt, err := openRuntime(cmd.Context(), opts.RootOptions)
	if err != nil {
		return err
	}
	defer rt.Close()

	key, err := rt.engine.Create(cmd.Context(), caller, o)
	if err != nil {
		return err
	}

	if opts.Format == "json" {
		return printJSON(cmd.OutOrStdout(), map[string]string{"key": key})
	}
	fmt.Fprintln(cmd.OutOrStdout(), key)
	return nil
}
