package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/0xthrpw/remand/internal/asset"
	"github.com/0xthrpw/remand/internal/ledger"
)

// Ledger is the sqlite-backed custody ledger, the persistent counterpart
// of ledger.Memory. Balances and approvals live in the same database as
// the offers so a CLI session survives restarts.
//
// Each transfer runs in its own transaction and re-reads balance and
// approval rows at call time.
type Ledger struct {
	store    *Store
	operator asset.Address
}

// NewLedger wraps a store as a custody ledger moving value as operator.
func NewLedger(s *Store, operator asset.Address) *Ledger {
	return &Ledger{store: s, operator: operator}
}

var (
	_ ledger.Ledger   = (*Ledger)(nil)
	_ ledger.Reverser = (*Ledger)(nil)
)

// Transfer moves ref between holders with full balance and approval checks.
func (l *Ledger) Transfer(ctx context.Context, ref asset.Ref, from, to asset.Address) error {
	return l.move(ctx, ref, from, to, true)
}

// Revert undoes a transfer this process just performed; balances are
// checked, approvals are not. The authorization the forward move consumed
// is restored in the same transaction.
func (l *Ledger) Revert(ctx context.Context, ref asset.Ref, from, to asset.Address) error {
	return l.move(ctx, ref, from, to, false)
}

func (l *Ledger) move(ctx context.Context, ref asset.Ref, from, to asset.Address, checkAuth bool) error {
	tx, err := l.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ledger transfer: %w", err)
	}
	defer tx.Rollback()

	switch ref.Kind {
	case asset.Fungible:
		err = l.moveFungible(ctx, tx, ref, from, to, checkAuth)
	case asset.Unique:
		err = l.moveUnique(ctx, tx, ref, from, to, checkAuth)
	case asset.SemiFungible:
		err = l.moveSemiFungible(ctx, tx, ref, from, to, checkAuth)
	default:
		err = fmt.Errorf("ledger transfer: invalid asset kind %d", uint8(ref.Kind))
	}
	if err != nil {
		return err
	}

	// A move with approvals unchecked is a compensation: put back the
	// authorization the forward move out of `to` consumed.
	if !checkAuth {
		if err := l.restoreAuth(ctx, tx, ref, to); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ledger transfer: %w", err)
	}
	return nil
}

func (l *Ledger) moveFungible(ctx context.Context, tx *sql.Tx, ref asset.Ref, from, to asset.Address, checkAuth bool) error {
	amount := ref.Amount()

	bal, err := readAmount(ctx, tx,
		`SELECT amount FROM balances WHERE contract = ? AND holder = ?`,
		string(ref.Contract), string(from))
	if err != nil {
		return err
	}
	if bal.Lt(amount) {
		return fmt.Errorf("fungible %s from %s: %w", ref.Contract, from, ledger.ErrInsufficientBalance)
	}

	if checkAuth && from != l.operator {
		approvedAll, err := l.operatorApproved(ctx, tx, ref.Contract, from)
		if err != nil {
			return err
		}
		if !approvedAll {
			allowance, err := readAmount(ctx, tx,
				`SELECT amount FROM allowances WHERE contract = ? AND owner = ?`,
				string(ref.Contract), string(from))
			if err != nil {
				return err
			}
			if allowance.Lt(amount) {
				return fmt.Errorf("fungible %s from %s: %w", ref.Contract, from, ledger.ErrInsufficientBalance)
			}
			allowance.Sub(allowance, amount)
			if err := writeAmount(ctx, tx, "allowances", "owner", ref.Contract, from, allowance); err != nil {
				return err
			}
		}
	}

	bal.Sub(bal, amount)
	if err := writeAmount(ctx, tx, "balances", "holder", ref.Contract, from, bal); err != nil {
		return err
	}
	toBal, err := readAmount(ctx, tx,
		`SELECT amount FROM balances WHERE contract = ? AND holder = ?`,
		string(ref.Contract), string(to))
	if err != nil {
		return err
	}
	toBal.Add(toBal, amount)
	return writeAmount(ctx, tx, "balances", "holder", ref.Contract, to, toBal)
}

func (l *Ledger) moveUnique(ctx context.Context, tx *sql.Tx, ref asset.Ref, from, to asset.Address, checkAuth bool) error {
	var holder string
	err := tx.QueryRowContext(ctx,
		`SELECT holder FROM holdings WHERE contract = ? AND item_id = ?`,
		string(ref.Contract), ref.ID).Scan(&holder)
	if err == sql.ErrNoRows || (err == nil && asset.Address(holder) != from) {
		return fmt.Errorf("unique %s #%d from %s: %w", ref.Contract, ref.ID, from, ledger.ErrNotOwner)
	}
	if err != nil {
		return fmt.Errorf("ledger holding: %w", err)
	}

	if checkAuth && from != l.operator {
		approvedAll, err := l.operatorApproved(ctx, tx, ref.Contract, from)
		if err != nil {
			return err
		}
		if !approvedAll {
			var one int
			err := tx.QueryRowContext(ctx,
				`SELECT 1 FROM item_approvals WHERE contract = ? AND item_id = ?`,
				string(ref.Contract), ref.ID).Scan(&one)
			if err == sql.ErrNoRows {
				return fmt.Errorf("unique %s #%d from %s: %w", ref.Contract, ref.ID, from, ledger.ErrNotOwner)
			}
			if err != nil {
				return fmt.Errorf("ledger item approval: %w", err)
			}

			// Per-item approval does not survive the move it authorized.
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM item_approvals WHERE contract = ? AND item_id = ?`,
				string(ref.Contract), ref.ID); err != nil {
				return fmt.Errorf("ledger item approval: %w", err)
			}
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE holdings SET holder = ? WHERE contract = ? AND item_id = ?`,
		string(to), string(ref.Contract), ref.ID); err != nil {
		return fmt.Errorf("ledger holding: %w", err)
	}
	return nil
}

func (l *Ledger) moveSemiFungible(ctx context.Context, tx *sql.Tx, ref asset.Ref, from, to asset.Address, checkAuth bool) error {
	amount := ref.Amount()

	bal, err := readAmount(ctx, tx,
		`SELECT amount FROM item_balances WHERE contract = ? AND item_id = ? AND holder = ?`,
		string(ref.Contract), ref.ID, string(from))
	if err != nil {
		return err
	}
	if bal.Lt(amount) {
		return fmt.Errorf("semifungible %s #%d from %s: %w", ref.Contract, ref.ID, from, ledger.ErrInsufficientBalance)
	}

	if checkAuth && from != l.operator {
		approvedAll, err := l.operatorApproved(ctx, tx, ref.Contract, from)
		if err != nil {
			return err
		}
		if !approvedAll {
			return fmt.Errorf("semifungible %s #%d from %s: %w", ref.Contract, ref.ID, from, ledger.ErrInsufficientBalance)
		}
	}

	bal.Sub(bal, amount)
	if err := writeItemAmount(ctx, tx, ref.Contract, ref.ID, from, bal); err != nil {
		return err
	}
	toBal, err := readAmount(ctx, tx,
		`SELECT amount FROM item_balances WHERE contract = ? AND item_id = ? AND holder = ?`,
		string(ref.Contract), ref.ID, string(to))
	if err != nil {
		return err
	}
	toBal.Add(toBal, amount)
	return writeItemAmount(ctx, tx, ref.Contract, ref.ID, to, toBal)
}

// restoreAuth re-grants what a checked move out of owner consumed: the
// fungible allowance amount, or the per-item approval. Blanket operator
// approvals are never consumed, so owners covered by one need nothing back.
func (l *Ledger) restoreAuth(ctx context.Context, tx *sql.Tx, ref asset.Ref, owner asset.Address) error {
	if owner == l.operator {
		return nil
	}
	approvedAll, err := l.operatorApproved(ctx, tx, ref.Contract, owner)
	if err != nil || approvedAll {
		return err
	}

	switch ref.Kind {
	case asset.Fungible:
		allowance, err := readAmount(ctx, tx,
			`SELECT amount FROM allowances WHERE contract = ? AND owner = ?`,
			string(ref.Contract), string(owner))
		if err != nil {
			return err
		}
		allowance.Add(allowance, ref.Amount())
		return writeAmount(ctx, tx, "allowances", "owner", ref.Contract, owner, allowance)
	case asset.Unique:
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO item_approvals (contract, item_id) VALUES (?, ?)
			ON CONFLICT(contract, item_id) DO NOTHING
		`, string(ref.Contract), ref.ID); err != nil {
			return fmt.Errorf("ledger item approval: %w", err)
		}
	}
	return nil
}

func (l *Ledger) operatorApproved(ctx context.Context, tx *sql.Tx, contract, owner asset.Address) (bool, error) {
	var approved int
	err := tx.QueryRowContext(ctx,
		`SELECT approved FROM operator_approvals WHERE contract = ? AND owner = ?`,
		string(contract), string(owner)).Scan(&approved)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ledger operator approval: %w", err)
	}
	return approved != 0, nil
}

// Mint credits a fungible balance.
func (l *Ledger) Mint(ctx context.Context, contract, to asset.Address, amount *uint256.Int) error {
	tx, err := l.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("mint: %w", err)
	}
	defer tx.Rollback()

	bal, err := readAmount(ctx, tx,
		`SELECT amount FROM balances WHERE contract = ? AND holder = ?`,
		string(contract), string(to))
	if err != nil {
		return err
	}
	bal.Add(bal, amount)
	if err := writeAmount(ctx, tx, "balances", "holder", contract, to, bal); err != nil {
		return err
	}
	return tx.Commit()
}

// MintID assigns a unique item to a holder, replacing any prior holder.
func (l *Ledger) MintID(ctx context.Context, contract asset.Address, id uint64, to asset.Address) error {
	_, err := l.store.db.ExecContext(ctx, `
		INSERT INTO holdings (contract, item_id, holder) VALUES (?, ?, ?)
		ON CONFLICT(contract, item_id) DO UPDATE SET holder = excluded.holder
	`, string(contract), id, string(to))
	if err != nil {
		return fmt.Errorf("mint item: %w", err)
	}
	return nil
}

// MintBalance credits a semi-fungible item balance.
func (l *Ledger) MintBalance(ctx context.Context, contract asset.Address, id uint64, to asset.Address, amount *uint256.Int) error {
	tx, err := l.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("mint item balance: %w", err)
	}
	defer tx.Rollback()

	bal, err := readAmount(ctx, tx,
		`SELECT amount FROM item_balances WHERE contract = ? AND item_id = ? AND holder = ?`,
		string(contract), id, string(to))
	if err != nil {
		return err
	}
	bal.Add(bal, amount)
	if err := writeItemAmount(ctx, tx, contract, id, to, bal); err != nil {
		return err
	}
	return tx.Commit()
}

// Approve grants the operator a fungible allowance, replacing any prior one.
func (l *Ledger) Approve(ctx context.Context, contract, owner asset.Address, amount *uint256.Int) error {
	_, err := l.store.db.ExecContext(ctx, `
		INSERT INTO allowances (contract, owner, amount) VALUES (?, ?, ?)
		ON CONFLICT(contract, owner) DO UPDATE SET amount = excluded.amount
	`, string(contract), string(owner), amount.Dec())
	if err != nil {
		return fmt.Errorf("approve: %w", err)
	}
	return nil
}

// ApproveID authorizes the operator to move one specific unique item.
func (l *Ledger) ApproveID(ctx context.Context, contract asset.Address, id uint64) error {
	_, err := l.store.db.ExecContext(ctx, `
		INSERT INTO item_approvals (contract, item_id) VALUES (?, ?)
		ON CONFLICT(contract, item_id) DO NOTHING
	`, string(contract), id)
	if err != nil {
		return fmt.Errorf("approve item: %w", err)
	}
	return nil
}

// ApproveAll grants or revokes blanket operator approval for an owner.
func (l *Ledger) ApproveAll(ctx context.Context, contract, owner asset.Address, approved bool) error {
	v := 0
	if approved {
		v = 1
	}
	_, err := l.store.db.ExecContext(ctx, `
		INSERT INTO operator_approvals (contract, owner, approved) VALUES (?, ?, ?)
		ON CONFLICT(contract, owner) DO UPDATE SET approved = excluded.approved
	`, string(contract), string(owner), v)
	if err != nil {
		return fmt.Errorf("approve all: %w", err)
	}
	return nil
}

// BalanceOf returns the fungible balance of holder on contract.
func (l *Ledger) BalanceOf(ctx context.Context, contract, holder asset.Address) (*uint256.Int, error) {
	return readAmountDB(ctx, l.store.db,
		`SELECT amount FROM balances WHERE contract = ? AND holder = ?`,
		string(contract), string(holder))
}

// HolderOf returns the holder of a unique item, if it exists.
func (l *Ledger) HolderOf(ctx context.Context, contract asset.Address, id uint64) (asset.Address, bool, error) {
	var holder string
	err := l.store.db.QueryRowContext(ctx,
		`SELECT holder FROM holdings WHERE contract = ? AND item_id = ?`,
		string(contract), id).Scan(&holder)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("holder of: %w", err)
	}
	return asset.Address(holder), true, nil
}

// BalanceOfID returns the semi-fungible balance of holder for item id.
func (l *Ledger) BalanceOfID(ctx context.Context, contract asset.Address, id uint64, holder asset.Address) (*uint256.Int, error) {
	return readAmountDB(ctx, l.store.db,
		`SELECT amount FROM item_balances WHERE contract = ? AND item_id = ? AND holder = ?`,
		string(contract), id, string(holder))
}

func readAmount(ctx context.Context, tx *sql.Tx, query string, args ...any) (*uint256.Int, error) {
	var amount string
	err := tx.QueryRowContext(ctx, query, args...).Scan(&amount)
	if err == sql.ErrNoRows {
		return uint256.NewInt(0), nil
	}
	if err != nil {
		return nil, fmt.Errorf("ledger read: %w", err)
	}
	v, err := uint256.FromDecimal(amount)
	if err != nil {
		return nil, fmt.Errorf("ledger read: bad amount %q: %w", amount, err)
	}
	return v, nil
}

func readAmountDB(ctx context.Context, db *sql.DB, query string, args ...any) (*uint256.Int, error) {
	var amount string
	err := db.QueryRowContext(ctx, query, args...).Scan(&amount)
	if err == sql.ErrNoRows {
		return uint256.NewInt(0), nil
	}
	if err != nil {
		return nil, fmt.Errorf("ledger read: %w", err)
	}
	v, err := uint256.FromDecimal(amount)
	if err != nil {
		return nil, fmt.Errorf("ledger read: bad amount %q: %w", amount, err)
	}
	return v, nil
}

func writeAmount(ctx context.Context, tx *sql.Tx, table, holderCol string, contract asset.Address, holder asset.Address, amount *uint256.Int) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (contract, %s, amount) VALUES (?, ?, ?)
		ON CONFLICT(contract, %s) DO UPDATE SET amount = excluded.amount
	`, table, holderCol, holderCol)
	if _, err := tx.ExecContext(ctx, query, string(contract), string(holder), amount.Dec()); err != nil {
		return fmt.Errorf("ledger write: %w", err)
	}
	return nil
}

func writeItemAmount(ctx context.Context, tx *sql.Tx, contract asset.Address, id uint64, holder asset.Address, amount *uint256.Int) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO item_balances (contract, item_id, holder, amount) VALUES (?, ?, ?, ?)
		ON CONFLICT(contract, item_id, holder) DO UPDATE SET amount = excluded.amount
	`, string(contract), id, string(holder), amount.Dec())
	if err != nil {
		return fmt.Errorf("ledger write: %w", err)
	}
	return nil
}
