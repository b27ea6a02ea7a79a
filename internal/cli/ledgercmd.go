package cli

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/spf13/cobra"

	"github.com/0xthrpw/remand/internal/asset"
)

// AssetFlags are the flags identifying one asset across the ledger
// commands.
type AssetFlags struct {
	Kind     string
	Contract string
	ID       uint64
}

func (f *AssetFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.Kind, "kind", "fungible", "asset kind (fungible|unique|semifungible)")
	cmd.Flags().StringVar(&f.Contract, "contract", "", "asset contract address (required)")
	cmd.Flags().Uint64Var(&f.ID, "id", 0, "item id (unique and semifungible)")
	cmd.MarkFlagRequired("contract")
}

func (f *AssetFlags) parse() (asset.Kind, asset.Address, error) {
	kind, err := asset.ParseKind(f.Kind)
	if err != nil {
		return 0, "", err
	}
	contract, err := asset.ParseAddress(f.Contract)
	if err != nil {
		return 0, "", fmt.Errorf("--contract: %w", err)
	}
	return kind, contract, nil
}

// MintOptions holds flags for the mint command.
type MintOptions struct {
	*RootOptions
	Asset  AssetFlags
	To     string
	Amount string
}

// NewMintCommand creates the mint command.
func NewMintCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MintOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Credit an address with an asset",
		Long: `Credit an address with an asset.

Intended for local development and demos; production custody tracks
balances settled elsewhere.

Example:
  remand mint --contract 0x1000... --to 0xaaaa... --amount 100
  remand mint --kind unique --contract 0x2000... --id 7 --to 0xaaaa...`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, contract, err := opts.Asset.parse()
			if err != nil {
				return err
			}
			to, err := asset.ParseAddress(opts.To)
			if err != nil {
				return fmt.Errorf("--to: %w", err)
			}

			rt, err := openRuntime(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx := cmd.Context()
			switch kind {
			case asset.Unique:
				err = rt.ledger.MintID(ctx, contract, opts.Asset.ID, to)
			default:
				amount, aerr := uint256.FromDecimal(opts.Amount)
				if aerr != nil {
					return fmt.Errorf("--amount: %w", aerr)
				}
				if kind == asset.Fungible {
					err = rt.ledger.Mint(ctx, contract, to, amount)
				} else {
					err = rt.ledger.MintBalance(ctx, contract, opts.Asset.ID, to, amount)
				}
			}
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}

	opts.Asset.register(cmd)
	cmd.Flags().StringVar(&opts.To, "to", "", "recipient address (required)")
	cmd.Flags().StringVar(&opts.Amount, "amount", "", "amount (fungible and semifungible)")
	cmd.MarkFlagRequired("to")

	return cmd
}

// ApproveOptions holds flags for the approve command.
type ApproveOptions struct {
	*RootOptions
	Asset  AssetFlags
	Owner  string
	Amount string
}

// NewApproveCommand creates the approve command.
func NewApproveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ApproveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "approve",
		Short: "Authorize the protocol to move an asset",
		Long: `Authorize the protocol to move an asset.

Fungible approvals carry an amount and are consumed as transfers
execute. Unique approvals name one item and clear when it moves.
Semifungible approvals are blanket per owner.

Example:
  remand approve --contract 0x1000... --owner 0xaaaa... --amount 100
  remand approve --kind unique --contract 0x2000... --id 7
  remand approve --kind semifungible --contract 0x3000... --owner 0xaaaa...`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, contract, err := opts.Asset.parse()
			if err != nil {
				return err
			}

			rt, err := openRuntime(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx := cmd.Context()
			switch kind {
			case asset.Unique:
				err = rt.ledger.ApproveID(ctx, contract, opts.Asset.ID)
			case asset.Fungible:
				owner, oerr := asset.ParseAddress(opts.Owner)
				if oerr != nil {
					return fmt.Errorf("--owner: %w", oerr)
				}
				amount, aerr := uint256.FromDecimal(opts.Amount)
				if aerr != nil {
					return fmt.Errorf("--amount: %w", aerr)
				}
				err = rt.ledger.Approve(ctx, contract, owner, amount)
			default:
				owner, oerr := asset.ParseAddress(opts.Owner)
				if oerr != nil {
					return fmt.Errorf("--owner: %w", oerr)
				}
				err = rt.ledger.ApproveAll(ctx, contract, owner, true)
			}
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}

	opts.Asset.register(cmd)
	cmd.Flags().StringVar(&opts.Owner, "owner", "", "asset owner (fungible and semifungible)")
	cmd.Flags().StringVar(&opts.Amount, "amount", "", "allowance amount (fungible)")

	return cmd
}

// BalanceOptions holds flags for the balance command.
type BalanceOptions struct {
	*RootOptions
	Asset  AssetFlags
	Holder string
}

// NewBalanceCommand creates the balance command.
func NewBalanceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BalanceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Show an address's balance of an asset",
		Long: `Show an address's balance of an asset.

For unique assets, prints the current holder of the item instead.

Example:
  remand balance --contract 0x1000... --holder 0xaaaa...`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, contract, err := opts.Asset.parse()
			if err != nil {
				return err
			}

			rt, err := openRuntime(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			switch kind {
			case asset.Unique:
				holder, ok, herr := rt.ledger.HolderOf(ctx, contract, opts.Asset.ID)
				if herr != nil {
					return herr
				}
				if !ok {
					return fmt.Errorf("item %s #%d does not exist", contract, opts.Asset.ID)
				}
				if rootOpts.Format == "json" {
					return printJSON(out, map[string]string{"holder": string(holder)})
				}
				fmt.Fprintln(out, holder)
			default:
				holder, herr := asset.ParseAddress(opts.Holder)
				if herr != nil {
					return fmt.Errorf("--holder: %w", herr)
				}
				var amount *uint256.Int
				if kind == asset.Fungible {
					amount, err = rt.ledger.BalanceOf(ctx, contract, holder)
				} else {
					amount, err = rt.ledger.BalanceOfID(ctx, contract, opts.Asset.ID, holder)
				}
				if err != nil {
					return err
				}
				if rootOpts.Format == "json" {
					return printJSON(out, map[string]string{"balance": amount.Dec()})
				}
				fmt.Fprintln(out, formatAmount(amount))
			}
			return nil
		},
	}

	opts.Asset.register(cmd)
	cmd.Flags().StringVar(&opts.Holder, "holder", "", "holder address (fungible and semifungible)")

	return cmd
}
