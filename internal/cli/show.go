package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <key>",
		Short: "Show an offer and its asset bundles",
		Long: `Show an offer and its asset bundles.

Example:
  remand show <key>
  remand show <key> --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer rt.Close()

			o, err := rt.engine.GetOffer(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printOffer(cmd.OutOrStdout(), rootOpts.Format, o)
		},
	}
	return cmd
}

// NewAssetsCommand creates the assets command.
func NewAssetsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assets <key>",
		Short: "Show an offer's asset bundles",
		Long: `Show an offer's asset bundles.

Example:
  remand assets <key>`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer rt.Close()

			ask, collateral, fee, err := rt.engine.GetOfferAssets(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if rootOpts.Format == "json" {
				return printJSON(out, map[string][]refView{
					"ask":        viewBundle(ask),
					"collateral": viewBundle(collateral),
					"fee":        viewBundle(fee),
				})
			}
			printBundle(out, "Ask", ask)
			printBundle(out, "Collateral", collateral)
			printBundle(out, "Fee", fee)
			return nil
		},
	}
	return cmd
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all offers and their states",
		Long: `List all offers and their states.

Example:
  remand list`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer rt.Close()

			offers, err := rt.store.ListOffers(cmd.Context())
			if err != nil {
				return err
			}

			if rootOpts.Format == "json" {
				out := make(map[string]string, len(offers))
				for key, state := range offers {
					out[key] = string(state)
				}
				return printJSON(cmd.OutOrStdout(), out)
			}

			keys := make([]string, 0, len(offers))
			for key := range offers {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			for _, key := range keys {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", key, offers[key])
			}
			return nil
		},
	}
	return cmd
}

// EventsOptions holds flags for the events command.
type EventsOptions struct {
	*RootOptions
	Offer string
}

// NewEventsCommand creates the events command.
func NewEventsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EventsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show the lifecycle event log",
		Long: `Show the lifecycle event log.

Events are ordered by sequence number. Filter to a single offer with
--offer.

Example:
  remand events
  remand events --offer <key>`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer rt.Close()

			events, err := rt.store.ListEvents(cmd.Context(), opts.Offer)
			if err != nil {
				return err
			}
			return printEvents(cmd.OutOrStdout(), rootOpts.Format, events)
		},
	}

	cmd.Flags().StringVar(&opts.Offer, "offer", "", "filter to one offer key")

	return cmd
}
