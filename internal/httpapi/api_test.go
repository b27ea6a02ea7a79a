package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xthrpw/remand/internal/asset"
	"github.com/0xthrpw/remand/internal/engine"
	"github.com/0xthrpw/remand/internal/ledger"
	"github.com/0xthrpw/remand/internal/store"
	"github.com/0xthrpw/remand/internal/testutil"
)

const (
	custodyAddr = asset.Address("0x00000000000000000000000000000000000ec401")
	alice       = asset.Address("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	bob         = asset.Address("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	tokenX      = asset.Address("0x1000000000000000000000000000000000000001")
	tokenY      = asset.Address("0x1000000000000000000000000000000000000002")
	tokenZ      = asset.Address("0x1000000000000000000000000000000000000003")
)

type apiFixture struct {
	handler http.Handler
	led     *ledger.Memory
	clk     *testutil.ManualClock
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	led := ledger.NewMemory(custodyAddr)
	clk := testutil.NewManualClock(time.Unix(1_700_000_000, 0))
	eng := engine.New(st, led, custodyAddr,
		engine.WithTimeSource(clk),
		engine.WithTokens(testutil.NewSequenceTokens("api")),
	)
	srv := New(eng, st, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return &apiFixture{handler: srv.Router(), led: led, clk: clk}
}

func (f *apiFixture) fund() {
	f.led.Mint(tokenX, alice, uint256.NewInt(100))
	f.led.Mint(tokenY, alice, uint256.NewInt(10))
	f.led.Mint(tokenZ, bob, uint256.NewInt(1000))
	f.led.Approve(tokenX, alice, uint256.NewInt(100))
	f.led.Approve(tokenY, alice, uint256.NewInt(10))
	f.led.Approve(tokenZ, bob, uint256.NewInt(1000))
}

func (f *apiFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (f *apiFixture) createStandard(t *testing.T) string {
	t.Helper()
	req := createRequest{
		Caller:   string(alice),
		Owner:    string(alice),
		Target:   string(bob),
		Term:     100000,
		Deadline: f.clk.Now().Unix() + 1000,
		Ask: []assetBody{
			{Kind: "fungible", Contract: string(tokenZ), Amount: "1000"},
		},
		Collateral: []assetBody{
			{Kind: "fungible", Contract: string(tokenX), Amount: "100"},
		},
		Fee: []assetBody{
			{Kind: "fungible", Contract: string(tokenY), Amount: "10"},
		},
	}
	rec := f.do(t, http.MethodPost, "/offers", req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decodeBody[map[string]string](t, rec)
	require.Len(t, resp["key"], 64)
	return resp["key"]
}

func TestHealth(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, map[string]string{"status": "ok"}, decodeBody[map[string]string](t, rec))
}

func TestCreateAndGetOffer(t *testing.T) {
	f := newAPIFixture(t)
	f.fund()
	key := f.createStandard(t)

	rec := f.do(t, http.MethodGet, "/offers/"+key, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[offerResponse](t, rec)
	assert.Equal(t, key, resp.Key)
	assert.Equal(t, string(alice), resp.Owner)
	assert.Equal(t, string(bob), resp.Target)
	assert.Equal(t, "Open", resp.State)
	require.Len(t, resp.Collateral, 1)
	assert.Equal(t, "100", resp.Collateral[0].Amount)

	// Escrow holds collateral and fee.
	assert.True(t, f.led.BalanceOf(tokenX, custodyAddr).Eq(uint256.NewInt(100)))
	assert.True(t, f.led.BalanceOf(tokenY, custodyAddr).Eq(uint256.NewInt(10)))
}

func TestGetOfferAssets(t *testing.T) {
	f := newAPIFixture(t)
	f.fund()
	key := f.createStandard(t)

	rec := f.do(t, http.MethodGet, "/offers/"+key+"/assets", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[map[string][]assetBody](t, rec)
	require.Len(t, resp["ask"], 1)
	assert.Equal(t, "1000", resp["ask"][0].Amount)
	require.Len(t, resp["collateral"], 1)
	require.Len(t, resp["fee"], 1)
}

func TestGetOffer_NotFound(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(t, http.MethodGet, "/offers/"+strings.Repeat("ab", 32), nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeBody[errorResponse](t, rec)
	assert.Equal(t, "OfferNotFound", resp.Code)
}

func TestCreate_BadJSON(t *testing.T) {
	f := newAPIFixture(t)
	req := httptest.NewRequest(http.MethodPost, "/offers", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "BadRequest", decodeBody[errorResponse](t, rec).Code)
}

func TestCreate_WithoutCustodyFunds(t *testing.T) {
	f := newAPIFixture(t)
	// No minting at all.
	req := createRequest{
		Caller:   string(alice),
		Owner:    string(alice),
		Target:   "open",
		Term:     100000,
		Deadline: f.clk.Now().Unix() + 1000,
		Ask: []assetBody{
			{Kind: "fungible", Contract: string(tokenZ), Amount: "1000"},
		},
		Collateral: []assetBody{
			{Kind: "fungible", Contract: string(tokenX), Amount: "100"},
		},
	}
	rec := f.do(t, http.MethodPost, "/offers", req)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "InsufficientBalanceOrAllowance", decodeBody[errorResponse](t, rec).Code)
}

func TestTransitions(t *testing.T) {
	f := newAPIFixture(t)
	f.fund()
	key := f.createStandard(t)

	// Wrong caller is rejected before state is considered.
	rec := f.do(t, http.MethodPost, "/offers/"+key+"/accept", callerRequest{Caller: string(alice)})
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "NotOfferTarget", decodeBody[errorResponse](t, rec).Code)

	rec = f.do(t, http.MethodPost, "/offers/"+key+"/accept", callerRequest{Caller: string(bob)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Accepted", decodeBody[map[string]string](t, rec)["state"])

	// Double accept conflicts.
	rec = f.do(t, http.MethodPost, "/offers/"+key+"/accept", callerRequest{Caller: string(bob)})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "OfferAlreadyAccepted", decodeBody[errorResponse](t, rec).Code)

	// Accepted offers cannot be rescinded.
	rec = f.do(t, http.MethodPost, "/offers/"+key+"/rescind", callerRequest{Caller: string(alice)})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CantRescindAcceptedOffer", decodeBody[errorResponse](t, rec).Code)

	// Remand before term end conflicts.
	rec = f.do(t, http.MethodPost, "/offers/"+key+"/remand", callerRequest{Caller: string(bob)})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "IncompleteTerm", decodeBody[errorResponse](t, rec).Code)

	// Owner repays within the term.
	f.led.Approve(tokenZ, alice, uint256.NewInt(1000))
	rec = f.do(t, http.MethodPost, "/offers/"+key+"/repay", callerRequest{Caller: string(alice)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Repaid", decodeBody[map[string]string](t, rec)["state"])

	assert.True(t, f.led.BalanceOf(tokenX, alice).Eq(uint256.NewInt(100)))
	assert.True(t, f.led.BalanceOf(tokenZ, bob).Eq(uint256.NewInt(1000)))
}

func TestRemandAfterTerm(t *testing.T) {
	f := newAPIFixture(t)
	f.fund()
	key := f.createStandard(t)

	rec := f.do(t, http.MethodPost, "/offers/"+key+"/accept", callerRequest{Caller: string(bob)})
	require.Equal(t, http.StatusOK, rec.Code)

	f.clk.Advance(100000 * time.Second)
	rec = f.do(t, http.MethodPost, "/offers/"+key+"/remand", callerRequest{Caller: string(bob)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Remanded", decodeBody[map[string]string](t, rec)["state"])

	// Collateral seized by the target.
	assert.True(t, f.led.BalanceOf(tokenX, bob).Eq(uint256.NewInt(100)))
}

func TestCreate_ZeroAmountRejected(t *testing.T) {
	f := newAPIFixture(t)
	f.fund()
	req := createRequest{
		Caller:   string(alice),
		Owner:    string(alice),
		Target:   string(bob),
		Term:     100000,
		Deadline: f.clk.Now().Unix() + 1000,
		Ask: []assetBody{
			{Kind: "fungible", Contract: string(tokenZ), Amount: "0"},
		},
		Collateral: []assetBody{
			{Kind: "fungible", Contract: string(tokenX), Amount: "100"},
		},
	}
	rec := f.do(t, http.MethodPost, "/offers", req)
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Equal(t, "InvalidAsset", decodeBody[errorResponse](t, rec).Code)
}

// brokenWriter fails every body write, standing in for a client that
// hung up mid-response.
type brokenWriter struct {
	header http.Header
	status int
}

func (b *brokenWriter) Header() http.Header {
	if b.header == nil {
		b.header = make(http.Header)
	}
	return b.header
}

func (b *brokenWriter) WriteHeader(status int) { b.status = status }

func (b *brokenWriter) Write([]byte) (int, error) {
	return 0, errors.New("connection reset")
}

func TestWriteJSON_LogsEncodeFailure(t *testing.T) {
	var logs bytes.Buffer
	srv := New(nil, nil, slog.New(slog.NewTextHandler(&logs, nil)))

	w := &brokenWriter{}
	srv.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})

	assert.Equal(t, http.StatusOK, w.status)
	assert.Contains(t, logs.String(), "write response")
	assert.Contains(t, logs.String(), "connection reset")
}

func TestTransition_MissingCaller(t *testing.T) {
	f := newAPIFixture(t)
	f.fund()
	key := f.createStandard(t)

	rec := f.do(t, http.MethodPost, "/offers/"+key+"/accept", callerRequest{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "BadRequest", decodeBody[errorResponse](t, rec).Code)
}

func TestListOffersAndEvents(t *testing.T) {
	f := newAPIFixture(t)
	f.fund()
	key := f.createStandard(t)
	rec := f.do(t, http.MethodPost, "/offers/"+key+"/accept", callerRequest{Caller: string(bob)})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/offers", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	offers := decodeBody[map[string]string](t, rec)
	assert.Equal(t, "Accepted", offers[key])

	rec = f.do(t, http.MethodGet, "/events?offer="+key, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	events := decodeBody[[]eventResponse](t, rec)
	require.Len(t, events, 2)
	assert.Equal(t, "created", events[0].Kind)
	assert.Equal(t, "accepted", events[1].Kind)
	assert.Equal(t, key, events[1].OfferKey)
	assert.Equal(t, string(bob), events[1].Actor)
}
