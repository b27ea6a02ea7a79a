package cli

import (
	"bytes"
	"fmt"
	"os"

	"github.com/holiman/uint256"
	"gopkg.in/yaml.v3"

	"github.com/0xthrpw/remand/internal/asset"
	"github.com/0xthrpw/remand/internal/offer"
)

// OfferFile is the YAML payload of a create command.
type OfferFile struct {
	Owner string `yaml:"owner"`

	// Target is a 0x address, or "open" for an unrestricted offer.
	Target string `yaml:"target"`

	// Term is the repayment window in seconds.
	Term int64 `yaml:"term"`

	// Deadline is the unix timestamp after which the offer cannot be
	// accepted.
	Deadline int64 `yaml:"deadline"`

	Ask        []AssetEntry `yaml:"ask"`
	Collateral []AssetEntry `yaml:"collateral"`
	Fee        []AssetEntry `yaml:"fee"`
}

// AssetEntry is one bundle entry in an offer file.
type AssetEntry struct {
	Kind     string `yaml:"kind"`
	Contract string `yaml:"contract"`
	ID       uint64 `yaml:"id,omitempty"`
	Amount   string `yaml:"amount,omitempty"`
}

// LoadOfferFile reads and parses an offer YAML file into the protocol's
// offer payload. Unknown fields are rejected.
func LoadOfferFile(path string) (*offer.Offer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read offer file: %w", err)
	}

	var f OfferFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse offer file: %w", err)
	}

	owner, err := asset.ParseAddress(f.Owner)
	if err != nil {
		return nil, fmt.Errorf("owner: %w", err)
	}
	target, err := asset.ParseTarget(f.Target)
	if err != nil {
		return nil, fmt.Errorf("target: %w", err)
	}

	ask, err := buildBundle(f.Ask)
	if err != nil {
		return nil, fmt.Errorf("ask: %w", err)
	}
	collateral, err := buildBundle(f.Collateral)
	if err != nil {
		return nil, fmt.Errorf("collateral: %w", err)
	}
	fee, err := buildBundle(f.Fee)
	if err != nil {
		return nil, fmt.Errorf("fee: %w", err)
	}

	return &offer.Offer{
		Owner:      owner,
		Target:     target,
		Term:       f.Term,
		Deadline:   f.Deadline,
		Ask:        ask,
		Collateral: collateral,
		Fee:        fee,
	}, nil
}

func buildBundle(entries []AssetEntry) (asset.Bundle, error) {
	b := make(asset.Bundle, 0, len(entries))
	for i, e := range entries {
		ref, err := buildRef(e)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		b = append(b, ref)
	}
	return b, nil
}

func buildRef(e AssetEntry) (asset.Ref, error) {
	kind, err := asset.ParseKind(e.Kind)
	if err != nil {
		return asset.Ref{}, err
	}
	contract, err := asset.ParseAddress(e.Contract)
	if err != nil {
		return asset.Ref{}, fmt.Errorf("contract: %w", err)
	}
	ref := asset.Ref{Kind: kind, Contract: contract, ID: e.ID}
	if kind != asset.Unique {
		if e.Amount == "" {
			return asset.Ref{}, fmt.Errorf("%s entries require an amount", kind)
		}
		amount, err := uint256.FromDecimal(e.Amount)
		if err != nil {
			return asset.Ref{}, fmt.Errorf("amount: %w", err)
		}
		ref.Quantity = amount
	}
	return ref, nil
}
