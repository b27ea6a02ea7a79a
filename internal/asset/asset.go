// Package asset defines the value units the protocol escrows: asset kinds,
// typed references, ordered bundles, and the addresses that hold them.
package asset

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

// Kind classifies a value unit by how custody of it is denominated.
//
// Wire numbers are stable and match the on-chain enum the protocol
// originated with: 0 fungible, 1 unique, 2 semi-fungible.
type Kind uint8

const (
	// Fungible is quantity-denominated with no per-item identity (ERC-20 shaped).
	Fungible Kind = iota
	// Unique is identity-denominated; quantity is always one and implicit (ERC-721 shaped).
	Unique
	// SemiFungible carries both an item identity and a quantity (ERC-1155 shaped).
	SemiFungible
)

// Valid reports whether k is a member of the closed kind set.
func (k Kind) Valid() bool {
	return k <= SemiFungible
}

func (k Kind) String() string {
	switch k {
	case Fungible:
		return "fungible"
	case Unique:
		return "unique"
	case SemiFungible:
		return "semifungible"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ParseKind parses the string form produced by Kind.String.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fungible":
		return Fungible, nil
	case "unique":
		return Unique, nil
	case "semifungible", "semi-fungible":
		return SemiFungible, nil
	default:
		return 0, fmt.Errorf("unknown asset kind %q", s)
	}
}

// Address is an opaque 20-byte holder or contract address in 0x-hex form.
// Addresses are normalized to lowercase so comparisons are plain equality.
type Address string

// ZeroAddress is the all-zero address. It never authorizes anything;
// open offers use Target, not a zero sentinel.
const ZeroAddress Address = "0x0000000000000000000000000000000000000000"

// ParseAddress validates and normalizes a 0x-prefixed 40-digit hex address.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if len(s) != 42 || s[0] != '0' || (s[1] != 'x' && s[1] != 'X') {
		return "", fmt.Errorf("invalid address %q: want 0x followed by 40 hex digits", s)
	}
	for _, c := range s[2:] {
		if !isHexDigit(c) {
			return "", fmt.Errorf("invalid address %q: non-hex digit %q", s, c)
		}
	}
	return Address(strings.ToLower(s)), nil
}

// MustAddress is ParseAddress that panics. Use only in tests and fixtures.
func MustAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// IsZero reports whether a is the zero address or empty.
func (a Address) IsZero() bool {
	return a == "" || a == ZeroAddress
}

func isHexDigit(c rune) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// Target identifies who may accept an offer: a specific address, or open
// (anyone). Modeled as an explicit sum so the open branch can never be
// produced by a forgotten zero value.
type Target struct {
	addr Address
	open bool
}

// OpenTarget returns the target that permits any caller to accept.
func OpenTarget() Target {
	return Target{open: true}
}

// TargetOf returns the target that permits only addr to accept.
func TargetOf(addr Address) Target {
	return Target{addr: addr}
}

// IsOpen reports whether any caller may accept.
func (t Target) IsOpen() bool {
	return t.open
}

// Addr returns the specific target address. ok is false for open targets.
func (t Target) Addr() (addr Address, ok bool) {
	if t.open {
		return "", false
	}
	return t.addr, true
}

func (t Target) String() string {
	if t.open {
		return "open"
	}
	return string(t.addr)
}

// ParseTarget parses the string form produced by Target.String.
func ParseTarget(s string) (Target, error) {
	if strings.EqualFold(strings.TrimSpace(s), "open") {
		return OpenTarget(), nil
	}
	addr, err := ParseAddress(s)
	if err != nil {
		return Target{}, fmt.Errorf("invalid target: %w", err)
	}
	return TargetOf(addr), nil
}

// Ref identifies a concrete slice of value: a kind, the contract that
// manages it, and the identity/quantity coordinates that kind requires.
// ID is meaningful iff kind != Fungible; Quantity iff kind != Unique.
// Refs are immutable once part of an offer.
type Ref struct {
	Kind     Kind
	Contract Address
	ID       uint64
	Quantity *uint256.Int
}

// Amount returns the quantity moved by one transfer of r. Unique refs
// always move exactly one item.
func (r Ref) Amount() *uint256.Int {
	if r.Kind == Unique {
		return uint256.NewInt(1)
	}
	if r.Quantity == nil {
		return uint256.NewInt(0)
	}
	return r.Quantity.Clone()
}

// SameIdentity reports whether two refs name the same underlying asset.
// Fungible identity is the contract alone; otherwise contract plus item id.
func (r Ref) SameIdentity(o Ref) bool {
	if r.Kind != o.Kind || r.Contract != o.Contract {
		return false
	}
	return r.Kind == Fungible || r.ID == o.ID
}

// Clone returns a deep copy of r.
func (r Ref) Clone() Ref {
	c := r
	if r.Quantity != nil {
		c.Quantity = r.Quantity.Clone()
	}
	return c
}

func (r Ref) String() string {
	switch r.Kind {
	case Fungible:
		return fmt.Sprintf("%s{%s x%s}", r.Kind, r.Contract, r.Amount().Dec())
	case Unique:
		return fmt.Sprintf("%s{%s #%d}", r.Kind, r.Contract, r.ID)
	default:
		return fmt.Sprintf("%s{%s #%d x%s}", r.Kind, r.Contract, r.ID, r.Amount().Dec())
	}
}

// Validate checks that r is well formed for inclusion in an offer.
func (r Ref) Validate() error {
	if !r.Kind.Valid() {
		return fmt.Errorf("invalid asset kind %d", uint8(r.Kind))
	}
	if r.Contract.IsZero() {
		return fmt.Errorf("asset contract address is zero")
	}
	if r.Kind != Unique && (r.Quantity == nil || r.Quantity.IsZero()) {
		return fmt.Errorf("%s asset requires a non-zero quantity", r.Kind)
	}
	return nil
}

// Bundle is an ordered sequence of refs. Order is insertion order and not
// semantically load-bearing; duplicates are permitted and each entry is
// moved independently.
type Bundle []Ref

// Clone returns a deep copy of b.
func (b Bundle) Clone() Bundle {
	if b == nil {
		return nil
	}
	c := make(Bundle, len(b))
	for i, r := range b {
		c[i] = r.Clone()
	}
	return c
}

// ContainsIdentity reports whether any entry of b names the same asset as r.
func (b Bundle) ContainsIdentity(r Ref) bool {
	for _, e := range b {
		if e.SameIdentity(r) {
			return true
		}
	}
	return false
}

// Validate checks every entry of b.
func (b Bundle) Validate() error {
	for i, r := range b {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("bundle[%d]: %w", i, err)
		}
	}
	return nil
}
