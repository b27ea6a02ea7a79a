// Package engine implements the offer lifecycle state machine and its
// escrow orchestration: which transitions are legal, when, by whom, and
// which bundles move between custody and the two parties.
package engine

import (
	"context"
	"log/slog"
	"sync"

	"github.com/0xthrpw/remand/internal/asset"
	"github.com/0xthrpw/remand/internal/ledger"
	"github.com/0xthrpw/remand/internal/offer"
	"github.com/0xthrpw/remand/internal/store"
)

// DefaultMinimumTerm is the shortest term an offer may carry, in seconds.
const DefaultMinimumTerm int64 = 86400

// Params are the protocol-wide policy knobs.
type Params struct {
	// MinimumTerm is the floor on Offer.Term, in seconds.
	MinimumTerm int64

	// ReturnFeeOnRemand returns the fee bundle to the owner on remand
	// instead of forfeiting it to the target. The default forfeits: the
	// fee paid for extending credit either way.
	ReturnFeeOnRemand bool
}

// DefaultParams returns the production policy.
func DefaultParams() Params {
	return Params{MinimumTerm: DefaultMinimumTerm}
}

// Engine drives the offer lifecycle.
//
// Execution is strictly serial: every operation runs to completion under
// one mutex with no interleaving, mirroring the ledger-runtime execution
// model the protocol assumes. Custody balances are external shared state
// and are re-validated by the ledger at each transfer, never cached.
//
// Check order is fixed in every operation: existence, then caller
// authorization, then state, then timing, then payload, then custody.
// Error precedence is therefore deterministic; in particular a wrong
// caller probing a closed offer learns only the authorization error.
type Engine struct {
	mu sync.Mutex

	store    *store.Store
	ledger   ledger.Ledger
	custody  asset.Address
	clock    *Clock
	now      TimeSource
	params   Params
	notifier Notifier
	tokens   TokenGenerator
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithParams overrides the protocol policy.
func WithParams(p Params) Option {
	return func(e *Engine) { e.params = p }
}

// WithTimeSource overrides the wall-clock source. Tests use a manual
// clock to pin deadline and term boundaries exactly.
func WithTimeSource(ts TimeSource) Option {
	return func(e *Engine) { e.now = ts }
}

// WithClock overrides the sequence clock, typically to resume from a
// persisted event log position.
func WithClock(c *Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithNotifier sets the event sink for successful transitions.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithTokens overrides the correlation token generator.
func WithTokens(g TokenGenerator) Option {
	return func(e *Engine) { e.tokens = g }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an engine over a store and a custody ledger. custody is the
// address the protocol escrows into; the ledger must treat it as the
// authorized operator.
func New(st *store.Store, l ledger.Ledger, custody asset.Address, opts ...Option) *Engine {
	e := &Engine{
		store:   st,
		ledger:  l,
		custody: custody,
		clock:   NewClock(),
		now:     SystemTime{},
		params:  DefaultParams(),
		tokens:  UUIDv7Generator{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Create locks the offer's collateral and fee bundles into custody and
// records the offer as Open under a freshly generated key.
//
// The deadline is deliberately not checked here; an offer created already
// expired is harmless because Accept rejects it, and Rescind recovers it.
func (e *Engine) Create(ctx context.Context, caller asset.Address, o *offer.Offer) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	token := e.tokens.Generate()

	if caller != o.Owner {
		return "", protoErr(CodeOwnerMismatch, "", caller, "caller %s is not offer owner %s", caller, o.Owner)
	}
	if o.AcceptedAt != 0 {
		return "", protoErr(CodeNonZeroAcceptedAt, "", caller, "new offers must not pre-seed acceptance")
	}
	if o.Term < e.params.MinimumTerm {
		return "", protoErr(CodeTermTooShort, "", caller, "term %ds below minimum %ds", o.Term, e.params.MinimumTerm)
	}
	for _, r := range o.Ask {
		if o.Collateral.ContainsIdentity(r) {
			return "", protoErr(CodeAskIsCollateral, "", caller, "ask entry %s also appears as collateral", r)
		}
	}
	for _, b := range []asset.Bundle{o.Ask, o.Collateral, o.Fee} {
		if err := b.Validate(); err != nil {
			return "", protoErr(CodeInvalidAsset, "", caller, "%v", err)
		}
	}

	work := o.Clone()
	work.State = offer.StateOpen
	work.AcceptedBy = ""
	work.Seq = e.clock.Next()
	work.Key = offer.Key(work, work.Seq)

	// Collateral and fee escrow together: both or neither.
	escrow := append(asset.Bundle{}, work.Collateral...)
	escrow = append(escrow, work.Fee...)
	if err := ledger.MoveBundle(ctx, e.ledger, escrow, work.Owner, e.custody); err != nil {
		return "", custodyErr(err, work.Key, caller)
	}

	if err := e.store.InsertOffer(ctx, work); err != nil {
		ledger.Unwind(ctx, e.ledger, escrow, work.Owner, e.custody)
		return "", err
	}

	e.emit(ctx, Event{
		Kind:   EventCreated,
		Key:    work.Key,
		Seq:    work.Seq,
		Token:  token,
		Owner:  work.Owner,
		Target: work.Target,
	}, caller)

	return work.Key, nil
}

// Accept pays the ask bundle from the caller directly to the owner and
// marks the offer accepted. The ask is never escrowed: it is the
// consideration the owner needed up front.
func (e *Engine) Accept(ctx context.Context, caller asset.Address, key string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	token := e.tokens.Generate()

	o, err := e.store.GetOffer(ctx, key)
	if err != nil {
		return notFoundErr(err, key, caller)
	}

	if addr, ok := o.Target.Addr(); ok && caller != addr {
		return protoErr(CodeNotOfferTarget, key, caller, "offer is reserved for %s", addr)
	}
	if o.State != offer.StateOpen {
		return protoErr(CodeOfferAlreadyAccepted, key, caller, "offer is %s", o.State)
	}
	now := e.now.Now().Unix()
	if now > o.Deadline {
		return protoErr(CodeOfferExpired, key, caller, "deadline %d passed at %d", o.Deadline, now)
	}

	if err := ledger.MoveBundle(ctx, e.ledger, o.Ask, caller, o.Owner); err != nil {
		return custodyErr(err, key, caller)
	}

	if err := e.store.MarkAccepted(ctx, key, now, caller); err != nil {
		ledger.Unwind(ctx, e.ledger, o.Ask, caller, o.Owner)
		return err
	}

	e.emit(ctx, Event{
		Kind:       EventAccepted,
		Key:        key,
		Seq:        e.clock.Next(),
		Token:      token,
		Owner:      o.Owner,
		Target:     o.Target,
		Acceptor:   caller,
		AcceptedAt: now,
	}, caller)

	return nil
}

// Rescind withdraws an un-accepted offer, returning collateral and fee
// from custody to the owner.
//
// There is no deadline check: rescinding an expired offer is the intended
// recovery path, since the protocol performs no automatic expiry sweep.
func (e *Engine) Rescind(ctx context.Context, caller asset.Address, key string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	token := e.tokens.Generate()

	o, err := e.store.GetOffer(ctx, key)
	if err != nil {
		return notFoundErr(err, key, caller)
	}

	if caller != o.Owner {
		return protoErr(CodeNotOfferOwner, key, caller, "only owner %s may rescind", o.Owner)
	}
	if o.State != offer.StateOpen {
		return protoErr(CodeCantRescindAcceptedOffer, key, caller, "offer is %s", o.State)
	}

	escrow := append(asset.Bundle{}, o.Collateral...)
	escrow = append(escrow, o.Fee...)
	if err := ledger.MoveBundle(ctx, e.ledger, escrow, e.custody, o.Owner); err != nil {
		return custodyErr(err, key, caller)
	}

	if err := e.store.SetState(ctx, key, offer.StateOpen, offer.StateRescinded); err != nil {
		ledger.Unwind(ctx, e.ledger, escrow, e.custody, o.Owner)
		return err
	}

	e.emit(ctx, Event{
		Kind:   EventRescinded,
		Key:    key,
		Seq:    e.clock.Next(),
		Token:  token,
		Owner:  o.Owner,
		Target: o.Target,
	}, caller)

	return nil
}

// Repay returns the ask bundle from the owner to the counterparty, pays
// the fee bundle to the counterparty, and releases collateral back to the
// owner. Permitted at any point after acceptance, including before term
// end.
func (e *Engine) Repay(ctx context.Context, caller asset.Address, key string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	token := e.tokens.Generate()

	o, err := e.store.GetOffer(ctx, key)
	if err != nil {
		return notFoundErr(err, key, caller)
	}

	if caller != o.Owner {
		return protoErr(CodeNotOfferOwner, key, caller, "only owner %s may repay", o.Owner)
	}
	if o.State != offer.StateAccepted {
		return protoErr(CodeOfferNotAccepted, key, caller, "offer is %s", o.State)
	}

	counterparty, ok := o.Counterparty()
	if !ok {
		// Accepted offers always have a counterparty; a miss here is a
		// store integrity failure, not a caller error.
		return protoErr(CodeOfferNotAccepted, key, caller, "accepted offer has no counterparty")
	}

	moves := []move{
		{o.Ask, o.Owner, counterparty},
		{o.Fee, e.custody, counterparty},
		{o.Collateral, e.custody, o.Owner},
	}
	if err := e.applyMoves(ctx, moves); err != nil {
		return custodyErr(err, key, caller)
	}

	if err := e.store.SetState(ctx, key, offer.StateAccepted, offer.StateRepaid); err != nil {
		e.unwindMoves(ctx, moves)
		return err
	}

	e.emit(ctx, Event{
		Kind:   EventRepaid,
		Key:    key,
		Seq:    e.clock.Next(),
		Token:  token,
		Owner:  o.Owner,
		Target: o.Target,
	}, caller)

	return nil
}

// Remand seizes the collateral bundle for the counterparty after the term
// has elapsed without repayment. The fee bundle follows the configured
// policy: forfeit to the counterparty by default, returned to the owner
// under ReturnFeeOnRemand.
//
// For open-target offers only the address that actually accepted may
// remand; "anyone" at creation became a specific party at acceptance.
func (e *Engine) Remand(ctx context.Context, caller asset.Address, key string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	token := e.tokens.Generate()

	o, err := e.store.GetOffer(ctx, key)
	if err != nil {
		return notFoundErr(err, key, caller)
	}

	counterparty, ok := o.Counterparty()
	if !ok || caller != counterparty {
		return protoErr(CodeNotOfferTarget, key, caller, "caller may not remand this offer")
	}
	if o.State != offer.StateAccepted {
		return protoErr(CodeOfferNotAccepted, key, caller, "offer is %s", o.State)
	}
	now := e.now.Now().Unix()
	if now < o.AcceptedAt+o.Term {
		return protoErr(CodeIncompleteTerm, key, caller, "term ends at %d, now %d", o.AcceptedAt+o.Term, now)
	}

	feeRecipient := counterparty
	if e.params.ReturnFeeOnRemand {
		feeRecipient = o.Owner
	}
	moves := []move{
		{o.Collateral, e.custody, counterparty},
		{o.Fee, e.custody, feeRecipient},
	}
	if err := e.applyMoves(ctx, moves); err != nil {
		return custodyErr(err, key, caller)
	}

	if err := e.store.SetState(ctx, key, offer.StateAccepted, offer.StateRemanded); err != nil {
		e.unwindMoves(ctx, moves)
		return err
	}

	e.emit(ctx, Event{
		Kind:   EventRemanded,
		Key:    key,
		Seq:    e.clock.Next(),
		Token:  token,
		Owner:  o.Owner,
		Target: o.Target,
	}, caller)

	return nil
}

// GetOffer returns the stored offer under key.
func (e *Engine) GetOffer(ctx context.Context, key string) (*offer.Offer, error) {
	o, err := e.store.GetOffer(ctx, key)
	if err != nil {
		return nil, notFoundErr(err, key, "")
	}
	return o, nil
}

// GetOfferAssets returns the three bundles fixed at creation.
func (e *Engine) GetOfferAssets(ctx context.Context, key string) (ask, collateral, fee asset.Bundle, err error) {
	o, err := e.GetOffer(ctx, key)
	if err != nil {
		return nil, nil, nil, err
	}
	return o.Ask, o.Collateral, o.Fee, nil
}

// Clock returns the engine's sequence clock.
func (e *Engine) Clock() *Clock {
	return e.clock
}

// Custody returns the protocol's escrow address.
func (e *Engine) Custody() asset.Address {
	return e.custody
}

// move is one bundle transfer within an operation.
type move struct {
	bundle asset.Bundle
	from   asset.Address
	to     asset.Address
}

// applyMoves performs each bundle move in order; if any fails, every
// completed move is unwound so the whole operation is all-or-nothing.
func (e *Engine) applyMoves(ctx context.Context, moves []move) error {
	for i, m := range moves {
		if err := ledger.MoveBundle(ctx, e.ledger, m.bundle, m.from, m.to); err != nil {
			for j := i - 1; j >= 0; j-- {
				ledger.Unwind(ctx, e.ledger, moves[j].bundle, moves[j].from, moves[j].to)
			}
			return err
		}
	}
	return nil
}

func (e *Engine) unwindMoves(ctx context.Context, moves []move) {
	for j := len(moves) - 1; j >= 0; j-- {
		ledger.Unwind(ctx, e.ledger, moves[j].bundle, moves[j].from, moves[j].to)
	}
}

// emit records the event in the durable log and notifies sinks. Log
// append failures are logged and do not fail the already-committed
// transition; retrying would break the serial execution model.
func (e *Engine) emit(ctx context.Context, ev Event, actor asset.Address) {
	err := e.store.AppendEvent(ctx, store.EventRecord{
		Seq:      ev.Seq,
		Kind:     string(ev.Kind),
		OfferKey: ev.Key,
		Actor:    actor,
		At:       e.now.Now().Unix(),
	})
	if err != nil {
		e.logger.Error("event append failed",
			"error", err,
			"kind", ev.Kind,
			"key", ev.Key,
			"seq", ev.Seq,
		)
	}

	if e.notifier != nil {
		e.notifier.Notify(ev)
	}

	e.logger.Info("offer "+string(ev.Kind),
		"key", ev.Key,
		"seq", ev.Seq,
		"token", ev.Token,
		"actor", actor,
	)
}
