package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/0xthrpw/remand/internal/asset"
	"github.com/0xthrpw/remand/internal/offer"
)

// Scenario defines a lifecycle test: a cast of actors, their starting
// holdings and approvals, a sequence of protocol operations, and
// assertions over the final balances and offer states.
//
// Offers created during the run are referred to by position: the first
// create step binds "offer-1", the second "offer-2", and so on. Aliases
// keep scenarios and golden traces stable across runs even though real
// offer keys are content hashes over a fresh sequence number.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Actors maps short names to addresses. Steps and assertions refer
	// to actors by name.
	Actors map[string]string `yaml:"actors"`

	// Mints establish starting holdings before any step runs.
	Mints []MintStep `yaml:"mints,omitempty"`

	// Approvals grant the protocol's custody address transfer rights.
	Approvals []ApprovalStep `yaml:"approvals,omitempty"`

	// Steps is the operation sequence.
	Steps []Step `yaml:"steps"`

	// Assertions validate final balances and offer states.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// MintStep credits an actor with an asset before the run.
type MintStep struct {
	Kind     string `yaml:"kind"`
	Contract string `yaml:"contract"`
	ID       uint64 `yaml:"id,omitempty"`
	To       string `yaml:"to"`
	Amount   string `yaml:"amount,omitempty"`
}

// ApprovalStep authorizes custody to move an actor's assets.
// Fungible approvals carry an amount; unique approvals name an item id;
// semi-fungible approvals are blanket per owner.
type ApprovalStep struct {
	Kind     string `yaml:"kind"`
	Contract string `yaml:"contract"`
	ID       uint64 `yaml:"id,omitempty"`
	Owner    string `yaml:"owner,omitempty"`
	Amount   string `yaml:"amount,omitempty"`
}

// Step is one protocol operation, or a clock advance.
type Step struct {
	// Op is one of: create, accept, rescind, repay, remand, advance.
	Op string `yaml:"op"`

	// Actor is the caller, by actor name. Unused for advance.
	Actor string `yaml:"actor,omitempty"`

	// Offer is the alias of the target offer (accept, rescind, repay,
	// remand).
	Offer string `yaml:"offer,omitempty"`

	// Spec describes the offer payload for create steps.
	Spec *OfferSpec `yaml:"spec,omitempty"`

	// Seconds moves the clock forward for advance steps.
	Seconds int64 `yaml:"seconds,omitempty"`

	// ExpectError names the protocol error code this step must fail
	// with. Empty means the step must succeed.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// OfferSpec is the offer payload of a create step.
type OfferSpec struct {
	// Target is an actor name, or "open" for an unrestricted offer.
	Target string `yaml:"target"`

	// Term is the repayment window in seconds.
	Term int64 `yaml:"term"`

	// DeadlineOffset sets the acceptance deadline relative to the clock
	// at the moment the create step runs, in seconds.
	DeadlineOffset int64 `yaml:"deadline_offset"`

	Ask        []AssetSpec `yaml:"ask"`
	Collateral []AssetSpec `yaml:"collateral"`
	Fee        []AssetSpec `yaml:"fee"`
}

// AssetSpec is one bundle entry.
type AssetSpec struct {
	Kind     string `yaml:"kind"`
	Contract string `yaml:"contract"`
	ID       uint64 `yaml:"id,omitempty"`
	Amount   string `yaml:"amount,omitempty"`
}

// Assertion validates final state after all steps ran.
type Assertion struct {
	// Type is one of: balance, holder, item_balance, offer_state.
	Type string `yaml:"type"`

	Contract string `yaml:"contract,omitempty"`
	ID       uint64 `yaml:"id,omitempty"`

	// Holder is an actor name, or "custody".
	Holder string `yaml:"holder,omitempty"`
	Amount string `yaml:"amount,omitempty"`

	// Offer and State apply to offer_state assertions.
	Offer string `yaml:"offer,omitempty"`
	State string `yaml:"state,omitempty"`
}

// Assertion type constants.
const (
	AssertBalance     = "balance"
	AssertHolder      = "holder"
	AssertItemBalance = "item_balance"
	AssertOfferState  = "offer_state"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected so typos fail loudly instead of silently dropping a step.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}

	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}

	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Actors) == 0 {
		return fmt.Errorf("actors is required and must be non-empty")
	}
	for name, addr := range s.Actors {
		if _, err := asset.ParseAddress(addr); err != nil {
			return fmt.Errorf("actor %q: %w", name, err)
		}
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, m := range s.Mints {
		if _, err := asset.ParseKind(m.Kind); err != nil {
			return fmt.Errorf("mints[%d]: %w", i, err)
		}
		if _, ok := s.Actors[m.To]; !ok {
			return fmt.Errorf("mints[%d]: unknown actor %q", i, m.To)
		}
	}
	for i, a := range s.Approvals {
		kind, err := asset.ParseKind(a.Kind)
		if err != nil {
			return fmt.Errorf("approvals[%d]: %w", i, err)
		}
		if kind != asset.Unique {
			if _, ok := s.Actors[a.Owner]; !ok {
				return fmt.Errorf("approvals[%d]: unknown actor %q", i, a.Owner)
			}
		}
	}

	for i, step := range s.Steps {
		switch step.Op {
		case "create":
			if step.Spec == nil {
				return fmt.Errorf("steps[%d]: create requires spec", i)
			}
			if _, ok := s.Actors[step.Actor]; !ok {
				return fmt.Errorf("steps[%d]: unknown actor %q", i, step.Actor)
			}
			if step.Spec.Target != "open" {
				if _, ok := s.Actors[step.Spec.Target]; !ok {
					return fmt.Errorf("steps[%d]: unknown target %q", i, step.Spec.Target)
				}
			}
		case "accept", "rescind", "repay", "remand":
			if step.Offer == "" {
				return fmt.Errorf("steps[%d]: %s requires offer", i, step.Op)
			}
			if _, ok := s.Actors[step.Actor]; !ok {
				return fmt.Errorf("steps[%d]: unknown actor %q", i, step.Actor)
			}
		case "advance":
			if step.Seconds <= 0 {
				return fmt.Errorf("steps[%d]: advance requires positive seconds", i)
			}
		default:
			return fmt.Errorf("steps[%d]: unknown op %q", i, step.Op)
		}
	}

	for i, a := range s.Assertions {
		switch a.Type {
		case AssertBalance, AssertItemBalance:
			if a.Contract == "" || a.Holder == "" || a.Amount == "" {
				return fmt.Errorf("assertions[%d]: %s requires contract, holder, amount", i, a.Type)
			}
		case AssertHolder:
			if a.Contract == "" || a.Holder == "" {
				return fmt.Errorf("assertions[%d]: holder requires contract and holder", i)
			}
		case AssertOfferState:
			if a.Offer == "" {
				return fmt.Errorf("assertions[%d]: offer_state requires offer", i)
			}
			if _, err := offer.ParseState(a.State); err != nil {
				return fmt.Errorf("assertions[%d]: %w", i, err)
			}
		default:
			return fmt.Errorf("assertions[%d]: unknown assertion type %q", i, a.Type)
		}
		if a.Holder != "" && a.Holder != "custody" {
			if _, ok := s.Actors[a.Holder]; !ok {
				return fmt.Errorf("assertions[%d]: unknown holder %q", i, a.Holder)
			}
		}
	}

	return nil
}
