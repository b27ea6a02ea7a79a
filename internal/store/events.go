package store

import (
	"context"
	"fmt"

	"github.com/0xthrpw/remand/internal/asset"
)

// EventRecord is one row of the lifecycle event log.
type EventRecord struct {
	Seq      int64
	Kind     string
	OfferKey string
	Actor    asset.Address
	At       int64
}

// AppendEvent writes one lifecycle event. Seq values come from the engine
// clock and are unique; a duplicate seq is a programming error and the
// primary key rejects it.
func (s *Store) AppendEvent(ctx context.Context, ev EventRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (seq, kind, offer_key, actor, at)
		VALUES (?, ?, ?, ?, ?)
	`, ev.Seq, ev.Kind, ev.OfferKey, string(ev.Actor), ev.At)
	if err != nil {
		return fmt.Errorf("append event seq %d: %w", ev.Seq, err)
	}
	return nil
}

// ListEvents returns events in sequence order. A non-empty key filters to
// one offer's history.
func (s *Store) ListEvents(ctx context.Context, key string) ([]EventRecord, error) {
	query := `SELECT seq, kind, offer_key, actor, at FROM events ORDER BY seq`
	args := []any{}
	if key != "" {
		query = `SELECT seq, kind, offer_key, actor, at FROM events WHERE offer_key = ? ORDER BY seq`
		args = append(args, key)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []EventRecord
	for rows.Next() {
		var ev EventRecord
		var actor string
		if err := rows.Scan(&ev.Seq, &ev.Kind, &ev.OfferKey, &actor, &ev.At); err != nil {
			return nil, fmt.Errorf("list events: %w", err)
		}
		ev.Actor = asset.Address(actor)
		out = append(out, ev)
	}
	return out, rows.Err()
}
