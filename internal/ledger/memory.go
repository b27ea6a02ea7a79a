package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/holiman/uint256"

	"github.com/0xthrpw/remand/internal/asset"
)

// Memory is an in-process ledger covering all three asset kinds, with the
// same approval semantics as the token standards the protocol settles
// against: per-operator allowances for fungibles, per-item or blanket
// approvals for uniques, blanket operator approval for semi-fungibles.
//
// The operator is the address the protocol moves value as (its custody
// address). Transfers out of the operator's own holdings need no approval.
//
// Thread-safety: all methods are safe for concurrent use via an internal
// mutex, though the engine serializes calls anyway.
type Memory struct {
	operator asset.Address

	mu sync.Mutex
	// fungible balances: contract -> holder -> amount
	balances map[asset.Address]map[asset.Address]*uint256.Int
	// unique holders: contract -> item id -> holder
	holders map[asset.Address]map[uint64]asset.Address
	// semi-fungible balances: contract -> item id -> holder -> amount
	itemBalances map[asset.Address]map[uint64]map[asset.Address]*uint256.Int
	// fungible allowances: contract -> owner -> remaining amount for operator
	allowances map[asset.Address]map[asset.Address]*uint256.Int
	// per-item approvals for the operator: contract -> item id
	itemApprovals map[asset.Address]map[uint64]bool
	// blanket operator approvals: contract -> owner
	operatorApprovals map[asset.Address]map[asset.Address]bool
}

// NewMemory creates an empty ledger that authorizes moves performed by
// operator against the approvals recorded here.
func NewMemory(operator asset.Address) *Memory {
	return &Memory{
		operator:          operator,
		balances:          make(map[asset.Address]map[asset.Address]*uint256.Int),
		holders:           make(map[asset.Address]map[uint64]asset.Address),
		itemBalances:      make(map[asset.Address]map[uint64]map[asset.Address]*uint256.Int),
		allowances:        make(map[asset.Address]map[asset.Address]*uint256.Int),
		itemApprovals:     make(map[asset.Address]map[uint64]bool),
		operatorApprovals: make(map[asset.Address]map[asset.Address]bool),
	}
}

// Mint credits a fungible balance.
func (m *Memory) Mint(contract, to asset.Address, amount *uint256.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credit(contract, to, amount)
}

// MintID assigns a unique item to a holder.
func (m *Memory) MintID(contract asset.Address, id uint64, to asset.Address) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.holders[contract] == nil {
		m.holders[contract] = make(map[uint64]asset.Address)
	}
	m.holders[contract][id] = to
}

// MintBalance credits a semi-fungible item balance.
func (m *Memory) MintBalance(contract asset.Address, id uint64, to asset.Address, amount *uint256.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creditItem(contract, id, to, amount)
}

// Approve grants the operator a fungible allowance, replacing any prior
// allowance for the owner on that contract.
func (m *Memory) Approve(contract, owner asset.Address, amount *uint256.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.allowances[contract] == nil {
		m.allowances[contract] = make(map[asset.Address]*uint256.Int)
	}
	m.allowances[contract][owner] = amount.Clone()
}

// ApproveID authorizes the operator to move one specific unique item.
// The approval clears when the item moves.
func (m *Memory) ApproveID(contract asset.Address, id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.itemApprovals[contract] == nil {
		m.itemApprovals[contract] = make(map[uint64]bool)
	}
	m.itemApprovals[contract][id] = true
}

// ApproveAll grants or revokes blanket operator approval over every item
// and balance the owner holds on the contract.
func (m *Memory) ApproveAll(contract, owner asset.Address, approved bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.operatorApprovals[contract] == nil {
		m.operatorApprovals[contract] = make(map[asset.Address]bool)
	}
	m.operatorApprovals[contract][owner] = approved
}

// BalanceOf returns the fungible balance of holder on contract.
func (m *Memory) BalanceOf(contract, holder asset.Address) *uint256.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b := m.balances[contract][holder]; b != nil {
		return b.Clone()
	}
	return uint256.NewInt(0)
}

// HolderOf returns the holder of a unique item, if it exists.
func (m *Memory) HolderOf(contract asset.Address, id uint64) (asset.Address, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.holders[contract][id]
	return h, ok
}

// BalanceOfID returns the semi-fungible balance of holder for item id.
func (m *Memory) BalanceOfID(contract asset.Address, id uint64, holder asset.Address) *uint256.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b := m.itemBalances[contract][id][holder]; b != nil {
		return b.Clone()
	}
	return uint256.NewInt(0)
}

// Transfer moves ref from one holder to another, enforcing balance and
// approval at call time.
func (m *Memory) Transfer(ctx context.Context, ref asset.Ref, from, to asset.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.move(ref, from, to, true)
}

// Revert undoes a transfer this process just performed. Balances are still
// checked; approvals are not. The authorization the forward move consumed
// is restored, so a compensated transfer leaves approvals as they were.
func (m *Memory) Revert(ctx context.Context, ref asset.Ref, from, to asset.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.move(ref, from, to, false); err != nil {
		return err
	}
	m.restoreAuth(ref, to)
	return nil
}

// restoreAuth re-grants what a checked move out of owner consumed: the
// fungible allowance amount, or the per-item approval. Blanket operator
// approvals are never consumed, so owners covered by one need nothing back.
func (m *Memory) restoreAuth(ref asset.Ref, owner asset.Address) {
	if owner == m.operator || m.operatorApprovals[ref.Contract][owner] {
		return
	}
	switch ref.Kind {
	case asset.Fungible:
		if m.allowances[ref.Contract] == nil {
			m.allowances[ref.Contract] = make(map[asset.Address]*uint256.Int)
		}
		allowance := m.allowances[ref.Contract][owner]
		if allowance == nil {
			allowance = uint256.NewInt(0)
			m.allowances[ref.Contract][owner] = allowance
		}
		allowance.Add(allowance, ref.Amount())
	case asset.Unique:
		if m.itemApprovals[ref.Contract] == nil {
			m.itemApprovals[ref.Contract] = make(map[uint64]bool)
		}
		m.itemApprovals[ref.Contract][ref.ID] = true
	}
}

func (m *Memory) move(ref asset.Ref, from, to asset.Address, checkAuth bool) error {
	switch ref.Kind {
	case asset.Fungible:
		return m.moveFungible(ref, from, to, checkAuth)
	case asset.Unique:
		return m.moveUnique(ref, from, to, checkAuth)
	case asset.SemiFungible:
		return m.moveSemiFungible(ref, from, to, checkAuth)
	default:
		return fmt.Errorf("transfer: invalid asset kind %d", uint8(ref.Kind))
	}
}

func (m *Memory) moveFungible(ref asset.Ref, from, to asset.Address, checkAuth bool) error {
	amount := ref.Amount()
	bal := m.balances[ref.Contract][from]
	if bal == nil || bal.Lt(amount) {
		return fmt.Errorf("fungible %s from %s: %w", ref.Contract, from, ErrInsufficientBalance)
	}
	if checkAuth && from != m.operator && !m.operatorApprovals[ref.Contract][from] {
		allowance := m.allowances[ref.Contract][from]
		if allowance == nil || allowance.Lt(amount) {
			return fmt.Errorf("fungible %s from %s: %w", ref.Contract, from, ErrInsufficientBalance)
		}
		allowance.Sub(allowance, amount)
	}
	bal.Sub(bal, amount)
	m.credit(ref.Contract, to, amount)
	return nil
}

func (m *Memory) moveUnique(ref asset.Ref, from, to asset.Address, checkAuth bool) error {
	holder, ok := m.holders[ref.Contract][ref.ID]
	if !ok || holder != from {
		return fmt.Errorf("unique %s #%d from %s: %w", ref.Contract, ref.ID, from, ErrNotOwner)
	}
	if checkAuth && from != m.operator && !m.operatorApprovals[ref.Contract][from] {
		if !m.itemApprovals[ref.Contract][ref.ID] {
			return fmt.Errorf("unique %s #%d from %s: %w", ref.Contract, ref.ID, from, ErrNotOwner)
		}
		// Per-item approval does not survive the move it authorized.
		delete(m.itemApprovals[ref.Contract], ref.ID)
	}
	m.holders[ref.Contract][ref.ID] = to
	return nil
}

func (m *Memory) moveSemiFungible(ref asset.Ref, from, to asset.Address, checkAuth bool) error {
	amount := ref.Amount()
	bal := m.itemBalances[ref.Contract][ref.ID][from]
	if bal == nil || bal.Lt(amount) {
		return fmt.Errorf("semifungible %s #%d from %s: %w", ref.Contract, ref.ID, from, ErrInsufficientBalance)
	}
	if checkAuth && from != m.operator && !m.operatorApprovals[ref.Contract][from] {
		return fmt.Errorf("semifungible %s #%d from %s: %w", ref.Contract, ref.ID, from, ErrInsufficientBalance)
	}
	bal.Sub(bal, amount)
	m.creditItem(ref.Contract, ref.ID, to, amount)
	return nil
}

func (m *Memory) credit(contract, to asset.Address, amount *uint256.Int) {
	if m.balances[contract] == nil {
		m.balances[contract] = make(map[asset.Address]*uint256.Int)
	}
	if m.balances[contract][to] == nil {
		m.balances[contract][to] = uint256.NewInt(0)
	}
	m.balances[contract][to].Add(m.balances[contract][to], amount)
}

func (m *Memory) creditItem(contract asset.Address, id uint64, to asset.Address, amount *uint256.Int) {
	if m.itemBalances[contract] == nil {
		m.itemBalances[contract] = make(map[uint64]map[asset.Address]*uint256.Int)
	}
	if m.itemBalances[contract][id] == nil {
		m.itemBalances[contract][id] = make(map[asset.Address]*uint256.Int)
	}
	if m.itemBalances[contract][id][to] == nil {
		m.itemBalances[contract][id][to] = uint256.NewInt(0)
	}
	m.itemBalances[contract][id][to].Add(m.itemBalances[contract][id][to], amount)
}
