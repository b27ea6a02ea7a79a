package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/0xthrpw/remand/internal/asset"
	"github.com/0xthrpw/remand/internal/engine"
)

// LifecycleOptions holds flags shared by the transition commands.
type LifecycleOptions struct {
	*RootOptions
	As string
}

// transitionFunc is one engine lifecycle operation keyed by offer.
type transitionFunc func(ctx context.Context, eng *engine.Engine, caller asset.Address, key string) error

// newTransitionCommand builds a command that runs one lifecycle
// transition against an offer key. All four transitions share the same
// shape: a key argument, a required --as caller, and a state confirmation
// on success.
func newTransitionCommand(rootOpts *RootOptions, use, short, long string, fn transitionFunc) *cobra.Command {
	opts := &LifecycleOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           use + " <key>",
		Short:         short,
		Long:          long,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := asset.ParseAddress(opts.As)
			if err != nil {
				return fmt.Errorf("--as: %w", err)
			}

			rt, err := openRuntime(cmd.Context(), opts.RootOptions)
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := fn(cmd.Context(), rt.engine, caller, args[0]); err != nil {
				return err
			}

			o, err := rt.engine.GetOffer(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if opts.Format == "json" {
				return printJSON(cmd.OutOrStdout(), map[string]string{
					"key":   o.Key,
					"state": string(o.State),
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", o.Key, o.State)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.As, "as", "", "caller address (required)")
	cmd.MarkFlagRequired("as")

	return cmd
}

// NewAcceptCommand creates the accept command.
func NewAcceptCommand(rootOpts *RootOptions) *cobra.Command {
	return newTransitionCommand(rootOpts, "accept",
		"Accept an offer, paying the ask to the owner",
		`Accept an offer, paying the ask to the owner.

The ask bundle moves from the caller directly to the offer's owner; it
is never escrowed. The caller must be the offer's target, or anyone for
an open offer, and must have approved the protocol to move the ask.

Example:
  remand accept <key> --as 0xbbbb...`,
		func(ctx context.Context, eng *engine.Engine, caller asset.Address, key string) error {
			return eng.Accept(ctx, caller, key)
		})
}

// NewRescindCommand creates the rescind command.
func NewRescindCommand(rootOpts *RootOptions) *cobra.Command {
	return newTransitionCommand(rootOpts, "rescind",
		"Withdraw an un-accepted offer",
		`Withdraw an un-accepted offer.

Collateral and fee return from escrow to the owner. Only the owner may
rescind, and only while the offer is still open. Expired offers are
rescinded the same way.

Example:
  remand rescind <key> --as 0xaaaa...`,
		func(ctx context.Context, eng *engine.Engine, caller asset.Address, key string) error {
			return eng.Rescind(ctx, caller, key)
		})
}

// NewRepayCommand creates the repay command.
func NewRepayCommand(rootOpts *RootOptions) *cobra.Command {
	return newTransitionCommand(rootOpts, "repay",
		"Repay an accepted offer, recovering the collateral",
		`Repay an accepted offer, recovering the collateral.

The ask returns from the owner to the counterparty together with the
fee from escrow; the collateral releases back to the owner. Only the
owner may repay, any time after acceptance.

Example:
  remand repay <key> --as 0xaaaa...`,
		func(ctx context.Context, eng *engine.Engine, caller asset.Address, key string) error {
			return eng.Repay(ctx, caller, key)
		})
}

// NewRemandCommand creates the remand command.
func NewRemandCommand(rootOpts *RootOptions) *cobra.Command {
	return newTransitionCommand(rootOpts, "remand",
		"Seize the collateral of a defaulted offer",
		`Seize the collateral of a defaulted offer.

Available to the counterparty once the full term has elapsed since
acceptance without repayment. The collateral moves from escrow to the
counterparty; the fee follows the configured remand policy.

Example:
  remand remand <key> --as 0xbbbb...`,
		func(ctx context.Context, eng *engine.Engine, caller asset.Address, key string) error {
			return eng.Remand(ctx, caller, key)
		})
}
