// Package harness executes YAML lifecycle scenarios against a real
// engine over a fresh in-memory store, with a manual clock and sequenced
// correlation tokens so every run produces the same trace.
package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/holiman/uint256"

	"github.com/0xthrpw/remand/internal/asset"
	"github.com/0xthrpw/remand/internal/engine"
	"github.com/0xthrpw/remand/internal/ledger"
	"github.com/0xthrpw/remand/internal/offer"
	"github.com/0xthrpw/remand/internal/store"
	"github.com/0xthrpw/remand/internal/testutil"
)

// scenarioEpoch is the fixed start time of every run.
const scenarioEpoch int64 = 1_700_000_000

// custodyAddr is the escrow address scenarios run against.
var custodyAddr = asset.MustAddress("0x00000000000000000000000000000000000ec401")

// TraceEvent is one executed step in the run's trace.
type TraceEvent struct {
	Step  int    `json:"step"`
	Op    string `json:"op"`
	Actor string `json:"actor,omitempty"`
	Offer string `json:"offer,omitempty"`
	Error string `json:"error,omitempty"`
	At    int64  `json:"at"`
}

// Result is the outcome of a scenario run.
type Result struct {
	Trace  []TraceEvent
	Errors []string
}

// Passed reports whether every step met its expectation and every
// assertion held.
func (r *Result) Passed() bool {
	return len(r.Errors) == 0
}

// AddError records a failure without stopping the run.
func (r *Result) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
}

// Harness wires one scenario run.
type Harness struct {
	store  *store.Store
	ledger *ledger.Memory
	engine *engine.Engine
	clock  *testutil.ManualClock
	logger *slog.Logger

	actors map[string]asset.Address
	// offers maps aliases ("offer-1") to real keys, bound in create order.
	offers  map[string]string
	created int
}

// Run executes a scenario in a fresh in-memory database and returns the
// trace plus any expectation or assertion failures.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("open in-memory store: %w", err)
	}
	defer st.Close()

	led := ledger.NewMemory(custodyAddr)
	clock := testutil.NewManualClock(time.Unix(scenarioEpoch, 0))

	eng := engine.New(st, led, custodyAddr,
		engine.WithTimeSource(clock),
		engine.WithTokens(testutil.NewSequenceTokens("trace")),
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)

	h := &Harness{
		store:  st,
		ledger: led,
		engine: eng,
		clock:  clock,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		actors: make(map[string]asset.Address),
		offers: make(map[string]string),
	}
	for name, addr := range scenario.Actors {
		h.actors[name] = asset.MustAddress(addr)
	}

	if err := h.setup(scenario); err != nil {
		return nil, fmt.Errorf("setup: %w", err)
	}

	ctx := context.Background()
	result := &Result{}
	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, step.Op, err)
		}
	}

	h.evaluateAssertions(ctx, scenario.Assertions, result)
	return result, nil
}

// setup applies mints and approvals before the first step.
func (h *Harness) setup(scenario *Scenario) error {
	for i, m := range scenario.Mints {
		kind, _ := asset.ParseKind(m.Kind)
		contract := asset.MustAddress(m.Contract)
		to := h.actors[m.To]
		switch kind {
		case asset.Fungible:
			amount, err := uint256.FromDecimal(m.Amount)
			if err != nil {
				return fmt.Errorf("mints[%d]: %w", i, err)
			}
			h.ledger.Mint(contract, to, amount)
		case asset.Unique:
			h.ledger.MintID(contract, m.ID, to)
		case asset.SemiFungible:
			amount, err := uint256.FromDecimal(m.Amount)
			if err != nil {
				return fmt.Errorf("mints[%d]: %w", i, err)
			}
			h.ledger.MintBalance(contract, m.ID, to, amount)
		}
	}

	for i, a := range scenario.Approvals {
		kind, _ := asset.ParseKind(a.Kind)
		contract := asset.MustAddress(a.Contract)
		switch kind {
		case asset.Fungible:
			amount, err := uint256.FromDecimal(a.Amount)
			if err != nil {
				return fmt.Errorf("approvals[%d]: %w", i, err)
			}
			h.ledger.Approve(contract, h.actors[a.Owner], amount)
		case asset.Unique:
			h.ledger.ApproveID(contract, a.ID)
		case asset.SemiFungible:
			h.ledger.ApproveAll(contract, h.actors[a.Owner], true)
		}
	}
	return nil
}

// executeStep runs one step, records its trace event, and checks the
// outcome against the step's expectation. Expectation mismatches are
// recorded on the result; only infrastructure failures return an error.
func (h *Harness) executeStep(ctx context.Context, i int, step Step, result *Result) error {
	if step.Op == "advance" {
		h.clock.Advance(time.Duration(step.Seconds) * time.Second)
		result.Trace = append(result.Trace, TraceEvent{
			Step: i,
			Op:   "advance",
			At:   h.clock.Now().Unix(),
		})
		return nil
	}

	actor := h.actors[step.Actor]
	var (
		alias string
		opErr error
	)

	switch step.Op {
	case "create":
		o, err := h.buildOffer(actor, step.Spec)
		if err != nil {
			return err
		}
		key, err := h.engine.Create(ctx, actor, o)
		opErr = err
		h.created++
		alias = fmt.Sprintf("offer-%d", h.created)
		if err == nil {
			h.offers[alias] = key
		}
	case "accept", "rescind", "repay", "remand":
		alias = step.Offer
		key, ok := h.offers[alias]
		if !ok {
			return fmt.Errorf("unknown offer alias %q", alias)
		}
		switch step.Op {
		case "accept":
			opErr = h.engine.Accept(ctx, actor, key)
		case "rescind":
			opErr = h.engine.Rescind(ctx, actor, key)
		case "repay":
			opErr = h.engine.Repay(ctx, actor, key)
		case "remand":
			opErr = h.engine.Remand(ctx, actor, key)
		}
	}

	code := ""
	if opErr != nil {
		c, ok := engine.CodeOf(opErr)
		if !ok {
			return fmt.Errorf("non-protocol error: %w", opErr)
		}
		code = string(c)
	}

	result.Trace = append(result.Trace, TraceEvent{
		Step:  i,
		Op:    step.Op,
		Actor: step.Actor,
		Offer: alias,
		Error: code,
		At:    h.clock.Now().Unix(),
	})

	if code != step.ExpectError {
		want := step.ExpectError
		if want == "" {
			want = "success"
		}
		got := code
		if got == "" {
			got = "success"
		}
		result.AddError(fmt.Sprintf("step %d (%s): expected %s, got %s", i, step.Op, want, got))
	}
	return nil
}

func (h *Harness) buildOffer(owner asset.Address, spec *OfferSpec) (*offer.Offer, error) {
	target := asset.OpenTarget()
	if spec.Target != "open" {
		target = asset.TargetOf(h.actors[spec.Target])
	}

	ask, err := h.buildBundle(spec.Ask)
	if err != nil {
		return nil, fmt.Errorf("ask: %w", err)
	}
	collateral, err := h.buildBundle(spec.Collateral)
	if err != nil {
		return nil, fmt.Errorf("collateral: %w", err)
	}
	fee, err := h.buildBundle(spec.Fee)
	if err != nil {
		return nil, fmt.Errorf("fee: %w", err)
	}

	return &offer.Offer{
		Owner:      owner,
		Target:     target,
		Term:       spec.Term,
		Deadline:   h.clock.Now().Unix() + spec.DeadlineOffset,
		Ask:        ask,
		Collateral: collateral,
		Fee:        fee,
	}, nil
}

func (h *Harness) buildBundle(specs []AssetSpec) (asset.Bundle, error) {
	b := make(asset.Bundle, 0, len(specs))
	for i, s := range specs {
		kind, err := asset.ParseKind(s.Kind)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		contract, err := asset.ParseAddress(s.Contract)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		ref := asset.Ref{Kind: kind, Contract: contract, ID: s.ID}
		if kind != asset.Unique {
			amount, err := uint256.FromDecimal(s.Amount)
			if err != nil {
				return nil, fmt.Errorf("entry %d: %w", i, err)
			}
			ref.Quantity = amount
		}
		b = append(b, ref)
	}
	return b, nil
}

// evaluateAssertions checks final balances and offer states.
func (h *Harness) evaluateAssertions(ctx context.Context, assertions []Assertion, result *Result) {
	for i, a := range assertions {
		holder := custodyAddr
		if a.Holder != "" && a.Holder != "custody" {
			holder = h.actors[a.Holder]
		}

		switch a.Type {
		case AssertBalance:
			want, err := uint256.FromDecimal(a.Amount)
			if err != nil {
				result.AddError(fmt.Sprintf("assertions[%d]: %v", i, err))
				continue
			}
			got := h.ledger.BalanceOf(asset.MustAddress(a.Contract), holder)
			if !got.Eq(want) {
				result.AddError(fmt.Sprintf("assertions[%d]: balance of %s on %s: want %s, got %s",
					i, a.Holder, a.Contract, want.Dec(), got.Dec()))
			}
		case AssertHolder:
			got, ok := h.ledger.HolderOf(asset.MustAddress(a.Contract), a.ID)
			if !ok || got != holder {
				result.AddError(fmt.Sprintf("assertions[%d]: item %s #%d: want holder %s, got %s",
					i, a.Contract, a.ID, holder, got))
			}
		case AssertItemBalance:
			want, err := uint256.FromDecimal(a.Amount)
			if err != nil {
				result.AddError(fmt.Sprintf("assertions[%d]: %v", i, err))
				continue
			}
			got := h.ledger.BalanceOfID(asset.MustAddress(a.Contract), a.ID, holder)
			if !got.Eq(want) {
				result.AddError(fmt.Sprintf("assertions[%d]: item balance of %s on %s #%d: want %s, got %s",
					i, a.Holder, a.Contract, a.ID, want.Dec(), got.Dec()))
			}
		case AssertOfferState:
			key, ok := h.offers[a.Offer]
			if !ok {
				result.AddError(fmt.Sprintf("assertions[%d]: unknown offer alias %q", i, a.Offer))
				continue
			}
			o, err := h.engine.GetOffer(ctx, key)
			if err != nil {
				result.AddError(fmt.Sprintf("assertions[%d]: %v", i, err))
				continue
			}
			if string(o.State) != a.State {
				result.AddError(fmt.Sprintf("assertions[%d]: offer %s: want state %s, got %s",
					i, a.Offer, a.State, o.State))
			}
		}
	}
}
