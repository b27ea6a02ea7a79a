package engine

import (
	"context"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xthrpw/remand/internal/asset"
	"github.com/0xthrpw/remand/internal/ledger"
	"github.com/0xthrpw/remand/internal/offer"
	"github.com/0xthrpw/remand/internal/store"
	"github.com/0xthrpw/remand/internal/testutil"
)

var (
	custody = asset.MustAddress("0x00000000000000000000000000000000000ec401")
	alice   = asset.MustAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	bob     = asset.MustAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	carol   = asset.MustAddress("0xcccccccccccccccccccccccccccccccccccccccc")

	tokenX = asset.MustAddress("0x1000000000000000000000000000000000000001")
	tokenY = asset.MustAddress("0x1000000000000000000000000000000000000002")
	tokenZ = asset.MustAddress("0x1000000000000000000000000000000000000003")
	nftC   = asset.MustAddress("0x2000000000000000000000000000000000000001")
	multiC = asset.MustAddress("0x3000000000000000000000000000000000000001")
)

var epoch = time.Unix(1_700_000_000, 0)

type fixture struct {
	eng    *Engine
	led    *ledger.Memory
	clk    *testutil.ManualClock
	rec    *Recorder
	ctx    context.Context
	cancel func()
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	led := ledger.NewMemory(custody)
	clk := testutil.NewManualClock(epoch)
	rec := &Recorder{}

	all := append([]Option{
		WithTimeSource(clk),
		WithNotifier(rec),
		WithTokens(testutil.NewSequenceTokens("op")),
	}, opts...)

	eng := New(st, led, custody, all...)
	return &fixture{eng: eng, led: led, clk: clk, rec: rec, ctx: context.Background()}
}

// fundStandard mints and approves the balances used by the standard offer:
// alice holds collateral X and fee Y, bob holds ask Z.
func (f *fixture) fundStandard(t *testing.T) {
	t.Helper()
	f.led.Mint(tokenX, alice, uint256.NewInt(100))
	f.led.Mint(tokenY, alice, uint256.NewInt(10))
	f.led.Mint(tokenZ, bob, uint256.NewInt(1000))
	f.led.Approve(tokenX, alice, uint256.NewInt(100))
	f.led.Approve(tokenY, alice, uint256.NewInt(10))
	f.led.Approve(tokenZ, bob, uint256.NewInt(1000))
}

func fungible(contract asset.Address, amount uint64) asset.Ref {
	return asset.Ref{Kind: asset.Fungible, Contract: contract, Quantity: uint256.NewInt(amount)}
}

// standardOffer is the baseline bilateral offer: collateral 100 X,
// fee 10 Y, ask 1000 Z, specific target, term 100000s, deadline +1000s.
func (f *fixture) standardOffer() *offer.Offer {
	return &offer.Offer{
		Owner:      alice,
		Target:     asset.TargetOf(bob),
		Term:       100000,
		Deadline:   f.clk.Now().Unix() + 1000,
		Ask:        asset.Bundle{fungible(tokenZ, 1000)},
		Collateral: asset.Bundle{fungible(tokenX, 100)},
		Fee:        asset.Bundle{fungible(tokenY, 10)},
	}
}

func (f *fixture) create(t *testing.T, o *offer.Offer) string {
	t.Helper()
	key, err := f.eng.Create(f.ctx, o.Owner, o)
	require.NoError(t, err)
	return key
}

func TestCreate_EscrowsCollateralAndFee(t *testing.T) {
	f := newFixture(t)
	f.fundStandard(t)

	key := f.create(t, f.standardOffer())

	assert.True(t, f.led.BalanceOf(tokenX, custody).Eq(uint256.NewInt(100)))
	assert.True(t, f.led.BalanceOf(tokenY, custody).Eq(uint256.NewInt(10)))
	assert.True(t, f.led.BalanceOf(tokenX, alice).IsZero())

	o, err := f.eng.GetOffer(f.ctx, key)
	require.NoError(t, err)
	assert.Equal(t, offer.StateOpen, o.State)
	assert.Zero(t, o.AcceptedAt)

	events := f.rec.Events()
	require.Len(t, events, 1)
	assert.Equal(t, EventCreated, events[0].Kind)
	assert.Equal(t, key, events[0].Key)
}

func TestCreate_OwnerMismatch(t *testing.T) {
	f := newFixture(t)
	f.fundStandard(t)

	o := f.standardOffer()
	_, err := f.eng.Create(f.ctx, bob, o)
	assert.True(t, IsCode(err, CodeOwnerMismatch))

	// Nothing moved.
	assert.True(t, f.led.BalanceOf(tokenX, custody).IsZero())
}

func TestCreate_NonZeroAcceptedAt(t *testing.T) {
	f := newFixture(t)
	f.fundStandard(t)

	o := f.standardOffer()
	o.AcceptedAt = epoch.Unix()
	_, err := f.eng.Create(f.ctx, alice, o)
	assert.True(t, IsCode(err, CodeNonZeroAcceptedAt))
}

func TestCreate_TermTooShort(t *testing.T) {
	f := newFixture(t)
	f.fundStandard(t)

	o := f.standardOffer()
	o.Term = 43000
	_, err := f.eng.Create(f.ctx, alice, o)
	assert.True(t, IsCode(err, CodeTermTooShort))
}

func TestCreate_AskIsCollateral(t *testing.T) {
	f := newFixture(t)
	f.fundStandard(t)

	o := f.standardOffer()
	o.Ask = asset.Bundle{fungible(tokenX, 1000)}
	_, err := f.eng.Create(f.ctx, alice, o)
	assert.True(t, IsCode(err, CodeAskIsCollateral))
}

func TestCreate_ExpiredDeadlinePermitted(t *testing.T) {
	// Creation never checks the deadline; Accept rejects and Rescind
	// recovers such offers.
	f := newFixture(t)
	f.fundStandard(t)

	o := f.standardOffer()
	o.Deadline = f.clk.Now().Unix() - 10
	key := f.create(t, o)

	err := f.eng.Accept(f.ctx, bob, key)
	assert.True(t, IsCode(err, CodeOfferExpired))

	require.NoError(t, f.eng.Rescind(f.ctx, alice, key))
}

func TestCreate_IdenticalPayloadsGetDistinctKeys(t *testing.T) {
	f := newFixture(t)
	f.led.Mint(tokenX, alice, uint256.NewInt(200))
	f.led.Mint(tokenY, alice, uint256.NewInt(20))
	f.led.Approve(tokenX, alice, uint256.NewInt(200))
	f.led.Approve(tokenY, alice, uint256.NewInt(20))

	o := f.standardOffer()
	key1, err := f.eng.Create(f.ctx, alice, o)
	require.NoError(t, err)
	key2, err := f.eng.Create(f.ctx, alice, o)
	require.NoError(t, err)

	assert.NotEqual(t, key1, key2)

	// Both coexist independently in the store.
	o1, err := f.eng.GetOffer(f.ctx, key1)
	require.NoError(t, err)
	o2, err := f.eng.GetOffer(f.ctx, key2)
	require.NoError(t, err)
	assert.Equal(t, offer.StateOpen, o1.State)
	assert.Equal(t, offer.StateOpen, o2.State)

	// The key is recomputable from the stored record and sequence.
	assert.Equal(t, key1, offer.Key(o1, o1.Seq))
	assert.Equal(t, key2, offer.Key(o2, o2.Seq))
}

func TestCreate_InsufficientCollateral(t *testing.T) {
	f := newFixture(t)
	// No mints at all: the collateral move must fail and bubble the
	// custody error.
	_, err := f.eng.Create(f.ctx, alice, f.standardOffer())
	assert.True(t, IsCode(err, CodeInsufficientBalanceOrAllowance))
}

func TestAccept_PaysOwnerDirectly(t *testing.T) {
	f := newFixture(t)
	f.fundStandard(t)
	key := f.create(t, f.standardOffer())

	require.NoError(t, f.eng.Accept(f.ctx, bob, key))

	// The ask went straight to the owner, not into escrow.
	assert.True(t, f.led.BalanceOf(tokenZ, alice).Eq(uint256.NewInt(1000)))
	assert.True(t, f.led.BalanceOf(tokenZ, custody).IsZero())

	o, err := f.eng.GetOffer(f.ctx, key)
	require.NoError(t, err)
	assert.Equal(t, offer.StateAccepted, o.State)
	assert.Equal(t, f.clk.Now().Unix(), o.AcceptedAt)
	assert.Equal(t, bob, o.AcceptedBy)
}

func TestAccept_SecondCallFails(t *testing.T) {
	f := newFixture(t)
	f.fundStandard(t)
	key := f.create(t, f.standardOffer())

	require.NoError(t, f.eng.Accept(f.ctx, bob, key))
	aliceZ := f.led.BalanceOf(tokenZ, alice)

	err := f.eng.Accept(f.ctx, bob, key)
	assert.True(t, IsCode(err, CodeOfferAlreadyAccepted))

	// Custody unchanged by the failed call.
	assert.True(t, f.led.BalanceOf(tokenZ, alice).Eq(aliceZ))
}

func TestAccept_DeadlineBoundary(t *testing.T) {
	f := newFixture(t)
	f.fundStandard(t)
	o := f.standardOffer()
	key := f.create(t, o)

	// now == deadline: still acceptable.
	f.clk.Set(time.Unix(o.Deadline, 0))
	require.NoError(t, f.eng.Accept(f.ctx, bob, key))
}

func TestAccept_DeadlinePlusOneExpired(t *testing.T) {
	f := newFixture(t)
	f.fundStandard(t)
	o := f.standardOffer()
	key := f.create(t, o)

	f.clk.Set(time.Unix(o.Deadline+1, 0))
	err := f.eng.Accept(f.ctx, bob, key)
	assert.True(t, IsCode(err, CodeOfferExpired))
}

func TestAccept_WrongTarget(t *testing.T) {
	f := newFixture(t)
	f.fundStandard(t)
	key := f.create(t, f.standardOffer())

	err := f.eng.Accept(f.ctx, carol, key)
	assert.True(t, IsCode(err, CodeNotOfferTarget))
}

func TestAccept_UnknownKey(t *testing.T) {
	f := newFixture(t)
	err := f.eng.Accept(f.ctx, bob, "deadbeef")
	assert.True(t, IsCode(err, CodeOfferNotFound))
}

func TestAccept_WithoutAllowance(t *testing.T) {
	f := newFixture(t)
	f.fundStandard(t)
	key := f.create(t, f.standardOffer())

	// Bob revokes before accepting; balance checks must run at transfer
	// time, not from any earlier snapshot.
	f.led.Approve(tokenZ, bob, uint256.NewInt(0))
	err := f.eng.Accept(f.ctx, bob, key)
	assert.True(t, IsCode(err, CodeInsufficientBalanceOrAllowance))

	o, err2 := f.eng.GetOffer(f.ctx, key)
	require.NoError(t, err2)
	assert.Equal(t, offer.StateOpen, o.State)
}

// TestLifecycle_Repay walks the happy path end to end: create, accept,
// repay, collateral home again.
func TestLifecycle_Repay(t *testing.T) {
	f := newFixture(t)
	f.fundStandard(t)
	key := f.create(t, f.standardOffer())

	require.NoError(t, f.eng.Accept(f.ctx, bob, key))
	assert.True(t, f.led.BalanceOf(tokenZ, alice).Eq(uint256.NewInt(1000)))

	// Owner needs the ask back plus approval to return it.
	f.led.Approve(tokenZ, alice, uint256.NewInt(1000))
	require.NoError(t, f.eng.Repay(f.ctx, alice, key))

	assert.True(t, f.led.BalanceOf(tokenZ, bob).Eq(uint256.NewInt(1000)), "principal returned")
	assert.True(t, f.led.BalanceOf(tokenY, bob).Eq(uint256.NewInt(10)), "fee paid to target")
	assert.True(t, f.led.BalanceOf(tokenX, alice).Eq(uint256.NewInt(100)), "collateral released")
	assert.True(t, f.led.BalanceOf(tokenX, custody).IsZero())
	assert.True(t, f.led.BalanceOf(tokenY, custody).IsZero())

	o, err := f.eng.GetOffer(f.ctx, key)
	require.NoError(t, err)
	assert.Equal(t, offer.StateRepaid, o.State)

	kinds := []EventKind{}
	for _, ev := range f.rec.Events() {
		kinds = append(kinds, ev.Kind)
	}
	assert.Equal(t, []EventKind{EventCreated, EventAccepted, EventRepaid}, kinds)
}

// TestLifecycle_RescindExpired rescinds an offer that nobody accepted
// before its deadline passed.
func TestLifecycle_RescindExpired(t *testing.T) {
	f := newFixture(t)
	f.fundStandard(t)
	o := f.standardOffer()
	key := f.create(t, o)

	f.clk.Set(time.Unix(o.Deadline+100, 0))

	err := f.eng.Accept(f.ctx, bob, key)
	assert.True(t, IsCode(err, CodeOfferExpired))

	// Rescind still works past the deadline: the recovery path.
	require.NoError(t, f.eng.Rescind(f.ctx, alice, key))
	assert.True(t, f.led.BalanceOf(tokenX, alice).Eq(uint256.NewInt(100)))
	assert.True(t, f.led.BalanceOf(tokenY, alice).Eq(uint256.NewInt(10)))

	got, err := f.eng.GetOffer(f.ctx, key)
	require.NoError(t, err)
	assert.Equal(t, offer.StateRescinded, got.State)
}

func TestRescind_NotOwner(t *testing.T) {
	f := newFixture(t)
	f.fundStandard(t)
	key := f.create(t, f.standardOffer())

	err := f.eng.Rescind(f.ctx, bob, key)
	assert.True(t, IsCode(err, CodeNotOfferOwner))
}

func TestRescind_AcceptedOffer(t *testing.T) {
	f := newFixture(t)
	f.fundStandard(t)
	key := f.create(t, f.standardOffer())
	require.NoError(t, f.eng.Accept(f.ctx, bob, key))

	err := f.eng.Rescind(f.ctx, alice, key)
	assert.True(t, IsCode(err, CodeCantRescindAcceptedOffer))
}

func TestRepay_BeforeAcceptance(t *testing.T) {
	f := newFixture(t)
	f.fundStandard(t)
	key := f.create(t, f.standardOffer())

	err := f.eng.Repay(f.ctx, alice, key)
	assert.True(t, IsCode(err, CodeOfferNotAccepted))
}

func TestRepay_NotOwner(t *testing.T) {
	f := newFixture(t)
	f.fundStandard(t)
	key := f.create(t, f.standardOffer())
	require.NoError(t, f.eng.Accept(f.ctx, bob, key))

	err := f.eng.Repay(f.ctx, carol, key)
	assert.True(t, IsCode(err, CodeNotOfferOwner))
}

// TestLifecycle_Remand covers default and seizure: remand after term end,
// then a late repay hits the terminal state.
func TestLifecycle_Remand(t *testing.T) {
	f := newFixture(t)
	f.fundStandard(t)
	o := f.standardOffer()
	key := f.create(t, o)
	require.NoError(t, f.eng.Accept(f.ctx, bob, key))

	acceptedAt := f.clk.Now().Unix()

	// One second short of term end: incomplete.
	f.clk.Set(time.Unix(acceptedAt+o.Term-1, 0))
	err := f.eng.Remand(f.ctx, bob, key)
	assert.True(t, IsCode(err, CodeIncompleteTerm))

	// Exactly at term end: permitted.
	f.clk.Set(time.Unix(acceptedAt+o.Term, 0))
	require.NoError(t, f.eng.Remand(f.ctx, bob, key))

	assert.True(t, f.led.BalanceOf(tokenX, bob).Eq(uint256.NewInt(100)), "collateral seized")
	assert.True(t, f.led.BalanceOf(tokenY, bob).Eq(uint256.NewInt(10)), "fee forfeit")

	got, err := f.eng.GetOffer(f.ctx, key)
	require.NoError(t, err)
	assert.Equal(t, offer.StateRemanded, got.State)

	// Late repay is rejected against the terminal state.
	f.led.Approve(tokenZ, alice, uint256.NewInt(1000))
	err = f.eng.Repay(f.ctx, alice, key)
	assert.True(t, IsCode(err, CodeOfferNotAccepted))
}

func TestRemand_FeeReturnedUnderPolicy(t *testing.T) {
	f := newFixture(t, WithParams(Params{
		MinimumTerm:       DefaultMinimumTerm,
		ReturnFeeOnRemand: true,
	}))
	f.fundStandard(t)
	o := f.standardOffer()
	key := f.create(t, o)
	require.NoError(t, f.eng.Accept(f.ctx, bob, key))

	f.clk.Advance(time.Duration(o.Term) * time.Second)
	require.NoError(t, f.eng.Remand(f.ctx, bob, key))

	assert.True(t, f.led.BalanceOf(tokenX, bob).Eq(uint256.NewInt(100)), "collateral still seized")
	assert.True(t, f.led.BalanceOf(tokenY, alice).Eq(uint256.NewInt(10)), "fee returned to owner")
	assert.True(t, f.led.BalanceOf(tokenY, bob).IsZero())
}

// TestRemand_OpenOfferOnlyAcceptor checks that once an open
// offer resolves to a specific acceptor, only that address may remand.
func TestRemand_OpenOfferOnlyAcceptor(t *testing.T) {
	f := newFixture(t)
	f.fundStandard(t)
	f.led.Mint(tokenZ, carol, uint256.NewInt(1000))
	f.led.Approve(tokenZ, carol, uint256.NewInt(1000))

	o := f.standardOffer()
	o.Target = asset.OpenTarget()
	key := f.create(t, o)

	// Open offer: anyone may accept. Carol does.
	require.NoError(t, f.eng.Accept(f.ctx, carol, key))

	f.clk.Advance(time.Duration(o.Term) * time.Second)

	// Bob was never party to this offer.
	err := f.eng.Remand(f.ctx, bob, key)
	assert.True(t, IsCode(err, CodeNotOfferTarget))

	require.NoError(t, f.eng.Remand(f.ctx, carol, key))
	assert.True(t, f.led.BalanceOf(tokenX, carol).Eq(uint256.NewInt(100)))
}

func TestRemand_OpenOfferUnaccepted(t *testing.T) {
	f := newFixture(t)
	f.fundStandard(t)
	o := f.standardOffer()
	o.Target = asset.OpenTarget()
	key := f.create(t, o)

	// Nobody has accepted, so nobody is authorized to remand.
	err := f.eng.Remand(f.ctx, carol, key)
	assert.True(t, IsCode(err, CodeNotOfferTarget))
}

func TestRemand_BeforeAcceptance(t *testing.T) {
	f := newFixture(t)
	f.fundStandard(t)
	key := f.create(t, f.standardOffer())

	err := f.eng.Remand(f.ctx, bob, key)
	assert.True(t, IsCode(err, CodeOfferNotAccepted))
}

// TestCreate_BundleAtomicity checks the all-or-nothing escrow: if the second
// collateral item fails its authorization check, nothing moves at all.
func TestCreate_BundleAtomicity(t *testing.T) {
	f := newFixture(t)

	f.led.MintID(nftC, 1, alice)
	f.led.MintID(nftC, 2, alice)
	f.led.MintBalance(multiC, 7, alice, uint256.NewInt(50))
	// Only the first item is approved; the second move must fail.
	f.led.ApproveID(nftC, 1)
	f.led.ApproveAll(multiC, alice, true)

	o := &offer.Offer{
		Owner:    alice,
		Target:   asset.TargetOf(bob),
		Term:     100000,
		Deadline: f.clk.Now().Unix() + 1000,
		Ask:      asset.Bundle{fungible(tokenZ, 1000)},
		Collateral: asset.Bundle{
			{Kind: asset.Unique, Contract: nftC, ID: 1},
			{Kind: asset.Unique, Contract: nftC, ID: 2},
		},
		Fee: asset.Bundle{
			{Kind: asset.SemiFungible, Contract: multiC, ID: 7, Quantity: uint256.NewInt(50)},
		},
	}

	_, err := f.eng.Create(f.ctx, alice, o)
	assert.True(t, IsCode(err, CodeNotOwnerOrUnauthorized))

	// The first item came back even though its own move succeeded.
	holder, ok := f.led.HolderOf(nftC, 1)
	require.True(t, ok)
	assert.Equal(t, alice, holder)
	holder, ok = f.led.HolderOf(nftC, 2)
	require.True(t, ok)
	assert.Equal(t, alice, holder)
	assert.True(t, f.led.BalanceOfID(multiC, 7, alice).Eq(uint256.NewInt(50)))
}

// TestCreate_RetryAfterFailedEscrow checks that a failed escrow leaves the
// owner's authorizations intact: fixing only the missing approval must be
// enough for the next attempt.
func TestCreate_RetryAfterFailedEscrow(t *testing.T) {
	f := newFixture(t)

	f.led.Mint(tokenX, alice, uint256.NewInt(100))
	f.led.Approve(tokenX, alice, uint256.NewInt(100))
	f.led.MintID(nftC, 1, alice)
	f.led.ApproveID(nftC, 1)
	f.led.MintID(nftC, 2, alice)
	// Item 2 not yet approved.

	o := &offer.Offer{
		Owner:    alice,
		Target:   asset.TargetOf(bob),
		Term:     100000,
		Deadline: f.clk.Now().Unix() + 1000,
		Ask:      asset.Bundle{fungible(tokenZ, 1000)},
		Collateral: asset.Bundle{
			fungible(tokenX, 100),
			{Kind: asset.Unique, Contract: nftC, ID: 1},
			{Kind: asset.Unique, Contract: nftC, ID: 2},
		},
	}

	_, err := f.eng.Create(f.ctx, alice, o)
	assert.True(t, IsCode(err, CodeNotOwnerOrUnauthorized))

	f.led.ApproveID(nftC, 2)
	key, err := f.eng.Create(f.ctx, alice, o)
	require.NoError(t, err)

	assert.True(t, f.led.BalanceOf(tokenX, custody).Eq(uint256.NewInt(100)))
	holder, ok := f.led.HolderOf(nftC, 1)
	require.True(t, ok)
	assert.Equal(t, custody, holder)

	got, err := f.eng.GetOffer(f.ctx, key)
	require.NoError(t, err)
	assert.Equal(t, offer.StateOpen, got.State)
}

func TestCreate_InvalidAssetRef(t *testing.T) {
	f := newFixture(t)
	f.fundStandard(t)

	o := f.standardOffer()
	o.Collateral = asset.Bundle{fungible(tokenX, 0)}
	_, err := f.eng.Create(f.ctx, alice, o)
	assert.True(t, IsCode(err, CodeInvalidAsset))

	// Nothing moved.
	assert.True(t, f.led.BalanceOf(tokenX, custody).IsZero())
}

func TestCheckOrder_AuthorizationBeforeState(t *testing.T) {
	// A wrong caller probing a closed offer must learn the authorization
	// error, never the offer's state.
	f := newFixture(t)
	f.fundStandard(t)
	key := f.create(t, f.standardOffer())
	require.NoError(t, f.eng.Rescind(f.ctx, alice, key))

	err := f.eng.Rescind(f.ctx, carol, key)
	assert.True(t, IsCode(err, CodeNotOfferOwner))

	err = f.eng.Repay(f.ctx, carol, key)
	assert.True(t, IsCode(err, CodeNotOfferOwner))

	err = f.eng.Remand(f.ctx, carol, key)
	assert.True(t, IsCode(err, CodeNotOfferTarget))
}

func TestAcceptedAt_SetOnceNeverReset(t *testing.T) {
	f := newFixture(t)
	f.fundStandard(t)
	key := f.create(t, f.standardOffer())

	require.NoError(t, f.eng.Accept(f.ctx, bob, key))
	accepted, err := f.eng.GetOffer(f.ctx, key)
	require.NoError(t, err)
	require.Positive(t, accepted.AcceptedAt)

	f.led.Approve(tokenZ, alice, uint256.NewInt(1000))
	require.NoError(t, f.eng.Repay(f.ctx, alice, key))

	final, err := f.eng.GetOffer(f.ctx, key)
	require.NoError(t, err)
	assert.Equal(t, accepted.AcceptedAt, final.AcceptedAt)
}

func TestGetOfferAssets(t *testing.T) {
	f := newFixture(t)
	f.fundStandard(t)
	key := f.create(t, f.standardOffer())

	ask, collateral, fee, err := f.eng.GetOfferAssets(f.ctx, key)
	require.NoError(t, err)
	require.Len(t, ask, 1)
	require.Len(t, collateral, 1)
	require.Len(t, fee, 1)
	assert.Equal(t, tokenZ, ask[0].Contract)
	assert.Equal(t, tokenX, collateral[0].Contract)
	assert.Equal(t, tokenY, fee[0].Contract)

	_, _, _, err = f.eng.GetOfferAssets(f.ctx, "missing")
	assert.True(t, IsCode(err, CodeOfferNotFound))
}
