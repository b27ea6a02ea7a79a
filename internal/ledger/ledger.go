// Package ledger is the custody collaborator: it moves value between
// holders on behalf of the engine, one asset ref at a time, with the
// balance and authorization checks appropriate to the ref's kind.
package ledger

import (
	"context"
	"errors"

	"github.com/0xthrpw/remand/internal/asset"
)

var (
	// ErrInsufficientBalance means the source lacks balance, or has not
	// authorized the operator for the requested quantity.
	ErrInsufficientBalance = errors.New("insufficient balance or allowance")

	// ErrNotOwner means the source does not hold the identified item, or
	// has not authorized the operator to move it.
	ErrNotOwner = errors.New("not owner or unauthorized")
)

// Ledger performs the kind-appropriate custody move for a single ref.
//
// Implementations must re-validate balance and authorization at call time,
// never from a cached earlier check: approvals can change between calls.
type Ledger interface {
	Transfer(ctx context.Context, ref asset.Ref, from, to asset.Address) error
}

// Reverser is implemented by ledgers that support compensating moves.
// Revert undoes a transfer that this process performed moments ago, so it
// checks balances but not authorization.
type Reverser interface {
	Revert(ctx context.Context, ref asset.Ref, from, to asset.Address) error
}

// MoveBundle moves every entry of b from -> to in order. If any entry
// fails, entries already moved within this call are reverted and the
// first error is returned: bundle transfer is all-or-nothing.
func MoveBundle(ctx context.Context, l Ledger, b asset.Bundle, from, to asset.Address) error {
	for i, ref := range b {
		if err := l.Transfer(ctx, ref, from, to); err != nil {
			Unwind(ctx, l, b[:i], from, to)
			return err
		}
	}
	return nil
}

// Unwind reverses prior moves of b made from -> to, in reverse order.
// Used for compensation after a partial bundle failure; errors are
// ignored because the assets being returned are held by this process.
func Unwind(ctx context.Context, l Ledger, b asset.Bundle, from, to asset.Address) {
	for i := len(b) - 1; i >= 0; i-- {
		if r, ok := l.(Reverser); ok {
			_ = r.Revert(ctx, b[i], to, from)
			continue
		}
		_ = l.Transfer(ctx, b[i], to, from)
	}
}
