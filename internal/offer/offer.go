// Package offer defines the central protocol entity and its lifecycle
// states, plus the content-addressed key generator that names each offer.
package offer

import (
	"fmt"

	"github.com/0xthrpw/remand/internal/asset"
)

// State is the lifecycle position of an offer.
//
// Transitions: Open -> Accepted -> Repaid | Remanded, and Open -> Rescinded.
// The three closed states are terminal; nothing transitions out of them.
type State string

const (
	StateOpen      State = "Open"
	StateAccepted  State = "Accepted"
	StateRescinded State = "Rescinded"
	StateRepaid    State = "Repaid"
	StateRemanded  State = "Remanded"
)

// Terminal reports whether s admits no further transitions.
func (s State) Terminal() bool {
	switch s {
	case StateRescinded, StateRepaid, StateRemanded:
		return true
	}
	return false
}

// Valid reports whether s is a member of the state set.
func (s State) Valid() bool {
	switch s {
	case StateOpen, StateAccepted, StateRescinded, StateRepaid, StateRemanded:
		return true
	}
	return false
}

// ParseState parses the stored string form of a state.
func ParseState(s string) (State, error) {
	st := State(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown offer state %q", s)
	}
	return st, nil
}

// Offer is a single proposed collateralized exchange.
//
// The three bundles are fixed at creation and never mutate; only custody
// of their contents changes over the lifecycle. AcceptedAt is zero exactly
// while the offer is open and is set once, at acceptance, never reset.
type Offer struct {
	// Key uniquely names the offer across the store's entire history.
	Key string
	// Seq is the creation sequence number folded into the key.
	Seq int64

	Owner  asset.Address
	Target asset.Target

	// Term is the minimum lock duration in seconds after acceptance
	// before remand is permitted.
	Term int64
	// Deadline is the latest unix timestamp at which acceptance succeeds.
	Deadline int64

	// AcceptedAt is the unix timestamp of acceptance, zero while open.
	AcceptedAt int64
	// AcceptedBy records who accepted. For open-target offers this is how
	// "anyone" resolves to the one party allowed to remand.
	AcceptedBy asset.Address

	Ask        asset.Bundle
	Collateral asset.Bundle
	Fee        asset.Bundle

	State State
}

// Counterparty returns the party on the accepting side: the specific
// target, or whoever accepted an open offer. ok is false for an open
// offer that nobody has accepted yet.
func (o *Offer) Counterparty() (asset.Address, bool) {
	if addr, ok := o.Target.Addr(); ok {
		return addr, true
	}
	if !o.AcceptedBy.IsZero() {
		return o.AcceptedBy, true
	}
	return "", false
}

// Clone returns a deep copy of o.
func (o *Offer) Clone() *Offer {
	c := *o
	c.Ask = o.Ask.Clone()
	c.Collateral = o.Collateral.Clone()
	c.Fee = o.Fee.Clone()
	return &c
}
