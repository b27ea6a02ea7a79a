package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/holiman/uint256"

	"github.com/0xthrpw/remand/internal/asset"
	"github.com/0xthrpw/remand/internal/offer"
)

// Bundle role discriminators in the offer_assets table.
const (
	roleAsk        = "ask"
	roleCollateral = "collateral"
	roleFee        = "fee"
)

// InsertOffer writes a new offer and its three asset bundles in a single
// transaction. Fails with ErrDuplicateKey if the key is already present.
func (s *Store) InsertOffer(ctx context.Context, o *offer.Offer) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("insert offer: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO offers
		(key, seq, owner, target, term, deadline, accepted_at, accepted_by, state)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		o.Key,
		o.Seq,
		string(o.Owner),
		o.Target.String(),
		o.Term,
		o.Deadline,
		o.AcceptedAt,
		string(o.AcceptedBy),
		string(o.State),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("insert offer %s: %w", o.Key, ErrDuplicateKey)
		}
		return fmt.Errorf("insert offer %s: %w", o.Key, err)
	}

	for role, bundle := range map[string]asset.Bundle{
		roleAsk:        o.Ask,
		roleCollateral: o.Collateral,
		roleFee:        o.Fee,
	} {
		if err := insertBundle(ctx, tx, o.Key, role, bundle); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("insert offer %s: %w", o.Key, err)
	}
	return nil
}

func insertBundle(ctx context.Context, tx *sql.Tx, key, role string, b asset.Bundle) error {
	for i, r := range b {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO offer_assets
			(offer_key, role, position, kind, contract, item_id, quantity)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`,
			key, role, i, uint8(r.Kind), string(r.Contract), r.ID, r.Amount().Dec(),
		)
		if err != nil {
			return fmt.Errorf("insert %s asset %d for offer %s: %w", role, i, key, err)
		}
	}
	return nil
}

// GetOffer reads an offer and its bundles by key.
// Returns ErrOfferNotFound if the key is absent.
func (s *Store) GetOffer(ctx context.Context, key string) (*offer.Offer, error) {
	o := &offer.Offer{Key: key}
	var targetStr, stateStr, ownerStr, acceptedByStr string

	err := s.db.QueryRowContext(ctx, `
		SELECT seq, owner, target, term, deadline, accepted_at, accepted_by, state
		FROM offers WHERE key = ?
	`, key).Scan(
		&o.Seq, &ownerStr, &targetStr, &o.Term, &o.Deadline,
		&o.AcceptedAt, &acceptedByStr, &stateStr,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("offer %s: %w", key, ErrOfferNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get offer %s: %w", key, err)
	}

	o.Owner = asset.Address(ownerStr)
	o.AcceptedBy = asset.Address(acceptedByStr)
	if o.Target, err = asset.ParseTarget(targetStr); err != nil {
		return nil, fmt.Errorf("get offer %s: %w", key, err)
	}
	if o.State, err = offer.ParseState(stateStr); err != nil {
		return nil, fmt.Errorf("get offer %s: %w", key, err)
	}

	if o.Ask, err = s.readBundle(ctx, key, roleAsk); err != nil {
		return nil, err
	}
	if o.Collateral, err = s.readBundle(ctx, key, roleCollateral); err != nil {
		return nil, err
	}
	if o.Fee, err = s.readBundle(ctx, key, roleFee); err != nil {
		return nil, err
	}

	return o, nil
}

func (s *Store) readBundle(ctx context.Context, key, role string) (asset.Bundle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, contract, item_id, quantity
		FROM offer_assets
		WHERE offer_key = ? AND role = ?
		ORDER BY position
	`, key, role)
	if err != nil {
		return nil, fmt.Errorf("read %s bundle for offer %s: %w", role, key, err)
	}
	defer rows.Close()

	var b asset.Bundle
	for rows.Next() {
		var (
			kind     uint8
			contract string
			itemID   uint64
			quantity string
		)
		if err := rows.Scan(&kind, &contract, &itemID, &quantity); err != nil {
			return nil, fmt.Errorf("read %s bundle for offer %s: %w", role, key, err)
		}
		qty, err := uint256.FromDecimal(quantity)
		if err != nil {
			return nil, fmt.Errorf("read %s bundle for offer %s: bad quantity %q: %w", role, key, quantity, err)
		}
		b = append(b, asset.Ref{
			Kind:     asset.Kind(kind),
			Contract: asset.Address(contract),
			ID:       itemID,
			Quantity: qty,
		})
	}
	return b, rows.Err()
}

// MarkAccepted records acceptance: timestamp, accepting address and the
// transition to Accepted. AcceptedAt is written exactly once; the WHERE
// clause refuses to touch anything but an open offer.
func (s *Store) MarkAccepted(ctx context.Context, key string, at int64, by asset.Address) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE offers
		SET accepted_at = ?, accepted_by = ?, state = ?
		WHERE key = ? AND state = ? AND accepted_at = 0
	`, at, string(by), string(offer.StateAccepted), key, string(offer.StateOpen))
	if err != nil {
		return fmt.Errorf("mark accepted %s: %w", key, err)
	}
	return s.requireOneRow(ctx, res, key)
}

// SetState records a transition into a terminal state. The WHERE clause
// only matches the legal source state, so terminal states stay final even
// if a caller bypasses the engine.
func (s *Store) SetState(ctx context.Context, key string, from, to offer.State) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE offers SET state = ? WHERE key = ? AND state = ?
	`, string(to), key, string(from))
	if err != nil {
		return fmt.Errorf("set state %s -> %s for %s: %w", from, to, key, err)
	}
	return s.requireOneRow(ctx, res, key)
}

// requireOneRow interprets a guarded UPDATE that touched no rows: either
// the key is missing entirely, or it exists in a state the guard refused.
func (s *Store) requireOneRow(ctx context.Context, res sql.Result, key string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("offer %s: %w", key, err)
	}
	if n == 1 {
		return nil
	}

	var one int
	err = s.db.QueryRowContext(ctx, `SELECT 1 FROM offers WHERE key = ?`, key).Scan(&one)
	if err == sql.ErrNoRows {
		return fmt.Errorf("offer %s: %w", key, ErrOfferNotFound)
	}
	if err != nil {
		return fmt.Errorf("offer %s: %w", key, err)
	}
	return fmt.Errorf("offer %s: %w", key, ErrStateConflict)
}

// ListOffers returns all offer keys with their states, ordered by creation
// sequence. Used by the CLI and the HTTP surface.
func (s *Store) ListOffers(ctx context.Context) (map[string]offer.State, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, state FROM offers ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list offers: %w", err)
	}
	defer rows.Close()

	out := make(map[string]offer.State)
	for rows.Next() {
		var key, state string
		if err := rows.Scan(&key, &state); err != nil {
			return nil, fmt.Errorf("list offers: %w", err)
		}
		st, err := offer.ParseState(state)
		if err != nil {
			return nil, fmt.Errorf("list offers: %w", err)
		}
		out[key] = st
	}
	return out, rows.Err()
}
