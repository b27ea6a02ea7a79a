package engine

import "github.com/google/uuid"

// TokenGenerator produces correlation tokens stamped onto each operation's
// log lines and notifications. Implemented by UUIDv7Generator (production)
// and testutil.SequenceTokens (tests).
type TokenGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 tokens, which keeps
// operation traces sortable by wall-clock order.
//
// Stateless and safe for concurrent use.
type UUIDv7Generator struct{}

func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
