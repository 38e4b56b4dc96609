package server

import (
	"bytes"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"pegvault/core/events"
	"pegvault/core/pricing"
	"pegvault/core/state"
	"pegvault/crypto"
	nativecommon "pegvault/native/common"
	"pegvault/native/lending"
	"pegvault/native/yield"
	"pegvault/storage"
	"pegvault/storage/eventlog"
)

const (
	testSecret = "0123456789abcdef0123456789abcdef"
	day        = uint64(24 * 60 * 60)
	epoch      = uint64(1_700_000_000)
	unit       = int64(1_000_000)
)

var (
	admin  = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	alice  = common.HexToAddress("0x00000000000000000000000000000000000000c3")
	bob    = common.HexToAddress("0x00000000000000000000000000000000000000d4")
	lender = common.HexToAddress("0x00000000000000000000000000000000000000e5")
	module = common.HexToAddress("0x00000000000000000000000000000000000000f6")
)

type testEnv struct {
	t       *testing.T
	state   *state.Manager
	handler http.Handler
}

func newTestEnv(t *testing.T, limit RateLimit) *testEnv {
	t.Helper()
	ledger := state.NewManager(storage.NewMemDB())
	journal, err := eventlog.Open(filepath.Join(t.TempDir(), "events.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = journal.Close() })
	ledger.SetEmitter(journal)
	require.NoError(t, ledger.SetRole(nativecommon.RoleAdmin, admin))

	clock := func() uint64 { return epoch }
	feed := pricing.NewManualFeed()
	require.NoError(t, feed.RecordPrice("USDX", new(big.Int).Set(nativecommon.Wad()), epoch))

	yieldEngine := yield.NewEngine(ledger, feed)
	yieldEngine.SetNowFunc(clock)
	yieldParams := &yield.Params{MinStake: big.NewInt(10 * unit), HistoryCapacity: 8, ChainID: 1}
	require.NoError(t, yieldEngine.Initialize(yieldParams, 1000, []yield.LockTier{{Duration: 90 * day, Multiplier: 10_000}}, nil))

	lendingEngine := lending.NewEngine(module, ledger, feed, yieldEngine)
	lendingEngine.SetNowFunc(clock)
	params := &lending.Params{
		LiquidationRatioBps:      12_500,
		TargetCollateralRatioBps: 13_000,
		LiquidationBonusBps:      300,
		PenaltyRatePerDayBps:     50,
		LoanGracePeriod:          7 * day,
		PenaltyGracePeriod:       3 * day,
		MaxPriceAge:              3600,
	}
	tiers := []lending.LoanTier{{Duration: 30 * day, RateBps: 110}}
	assets := []lending.DebtAsset{{Symbol: "USDX", Decimals: 6, Allowed: true}}
	require.NoError(t, lendingEngine.Initialize(params, tiers, assets))

	require.NoError(t, ledger.Credit(lender, "USDX", big.NewInt(10_000*unit)))
	require.NoError(t, ledger.DepositFor(lender, "USDX", big.NewInt(10_000*unit)))
	require.NoError(t, ledger.MintPegged(alice, big.NewInt(2_000*unit)))

	srv, err := New(Config{
		Ledger:    ledger,
		Yield:     yieldEngine,
		Lending:   lendingEngine,
		Prices:    feed,
		Events:    journal,
		Auth:      AuthConfig{HMACSecret: testSecret},
		RateLimit: limit,
		Now:       func() time.Time { return time.Unix(int64(epoch), 0) },
	})
	require.NoError(t, err)
	return &testEnv{t: t, state: ledger, handler: srv.Routes()}
}

func token(t *testing.T, subject string) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func (e *testEnv) do(method, path string, caller *common.Address, body interface{}) *httptest.ResponseRecorder {
	e.t.Helper()
	var payload bytes.Buffer
	if body != nil {
		require.NoError(e.t, json.NewEncoder(&payload).Encode(body))
	}
	req := httptest.NewRequest(method, path, &payload)
	req.Header.Set("Content-Type", "application/json")
	if caller != nil {
		req.Header.Set("Authorization", "Bearer "+token(e.t, caller.Hex()))
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
}

func (e *testEnv) stake(amount int64) uint64 {
	e.t.Helper()
	rec := e.do(http.MethodPost, "/v1/stake", &alice, stakeRequest{Amount: strconv.FormatInt(amount, 10), LockDuration: 90 * day})
	require.Equal(e.t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp stakeResponse
	decode(e.t, rec, &resp)
	return resp.PositionID
}

func TestHealthzAssignsRequestID(t *testing.T) {
	env := newTestEnv(t, RateLimit{})
	rec := env.do(http.MethodGet, "/healthz", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "trace-123")
	echoed := httptest.NewRecorder()
	env.handler.ServeHTTP(echoed, req)
	require.Equal(t, "trace-123", echoed.Header().Get("X-Request-ID"))
}

func TestMutationsRequireToken(t *testing.T) {
	env := newTestEnv(t, RateLimit{})
	rec := env.do(http.MethodPost, "/v1/stake", nil, stakeRequest{Amount: "100000000", LockDuration: 90 * day})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	var body problem
	decode(t, rec, &body)
	require.Equal(t, "authorization", body.Kind)
	require.NotEmpty(t, body.RequestID)

	req := httptest.NewRequest(http.MethodPost, "/v1/stake", bytes.NewBufferString(`{}`))
	req.Header.Set("Authorization", "Bearer not-a-token")
	bad := httptest.NewRecorder()
	env.handler.ServeHTTP(bad, req)
	require.Equal(t, http.StatusUnauthorized, bad.Code)
}

func TestStakeThenReadPosition(t *testing.T) {
	env := newTestEnv(t, RateLimit{})
	id := env.stake(100 * unit)

	rec := env.do(http.MethodGet, "/v1/positions/"+strconv.FormatUint(id, 10), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var pos positionResponse
	decode(t, rec, &pos)
	require.Equal(t, id, pos.ID)
	require.Equal(t, crypto.String(alice), pos.Owner)
	require.Empty(t, pos.Custodian)
	require.Equal(t, "100000000", pos.Principal)
	require.Equal(t, epoch+90*day, pos.UnlockTime)
	require.True(t, pos.Active)

	slots, err := env.state.PositionSlots(id)
	require.NoError(t, err)
	require.Equal(t, hexutil.Encode(slots), pos.Slots)

	missing := env.do(http.MethodGet, "/v1/positions/999", nil, nil)
	require.Equal(t, http.StatusNotFound, missing.Code)
}

func TestStakeRejectsMalformedAmount(t *testing.T) {
	env := newTestEnv(t, RateLimit{})
	rec := env.do(http.MethodPost, "/v1/stake", &alice, stakeRequest{Amount: "ten", LockDuration: 90 * day})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body problem
	decode(t, rec, &body)
	require.Equal(t, "validation", body.Kind)
}

func TestPricesRequireOracleOrAdmin(t *testing.T) {
	env := newTestEnv(t, RateLimit{})
	rec := env.do(http.MethodPost, "/v1/prices", &alice, priceRequest{Asset: "USDX", Rate: "1.02"})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(http.MethodPost, "/v1/prices", &admin, priceRequest{Asset: "USDX", Rate: "1.02"})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = env.do(http.MethodPost, "/v1/prices", &admin, priceRequest{Asset: "USDX", Rate: "1", Price: "1"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBorrowThenReadLoan(t *testing.T) {
	env := newTestEnv(t, RateLimit{})
	id := env.stake(1_000 * unit)

	rec := env.do(http.MethodPost, "/v1/loans/borrow", &alice, borrowRequest{
		PositionID:   id,
		Asset:        "USDX",
		Amount:       "500000000",
		LoanDuration: 30 * day,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var opened loanResponse
	decode(t, rec, &opened)
	require.True(t, opened.Active)
	require.Equal(t, "USDX", opened.DebtAsset)
	require.Equal(t, "500000000", opened.Principal)

	rec = env.do(http.MethodGet, "/v1/loans/"+strconv.FormatUint(id, 10), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var loan loanResponse
	decode(t, rec, &loan)
	require.Equal(t, crypto.String(alice), loan.Borrower)
	require.Equal(t, epoch+30*day, loan.EndTime)
	require.NotEmpty(t, loan.Slots)

	rec = env.do(http.MethodGet, "/v1/borrowers/"+alice.Hex()+"/loans", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var loans []loanResponse
	decode(t, rec, &loans)
	require.Len(t, loans, 1)

	rec = env.do(http.MethodPost, "/v1/loans/borrow", &alice, borrowRequest{
		PositionID:   id,
		Asset:        "USDX",
		Amount:       "1000000",
		LoanDuration: 30 * day,
	})
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestRepayWithoutFundsIsUnprocessable(t *testing.T) {
	env := newTestEnv(t, RateLimit{})
	id := env.stake(1_000 * unit)
	rec := env.do(http.MethodPost, "/v1/loans/borrow", &alice, borrowRequest{PositionID: id, Asset: "USDX", Amount: "500000000", LoanDuration: 30 * day})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.do(http.MethodPost, "/v1/loans/repay", &bob, repayRequest{PositionID: id, Amount: "1000000"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())

	rec = env.do(http.MethodPost, "/v1/loans/repay", &alice, repayRequest{PositionID: id, Amount: "1000000"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var applied amountResponse
	decode(t, rec, &applied)
	require.Equal(t, "1000000", applied.Amount)
}

func TestEventsListing(t *testing.T) {
	env := newTestEnv(t, RateLimit{})
	env.stake(100 * unit)
	env.stake(200 * unit)

	rec := env.do(http.MethodGet, "/v1/events?type="+events.TypeYieldStaked, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var records []events.Record
	decode(t, rec, &records)
	require.Len(t, records, 2)
	require.Less(t, records[0].Sequence, records[1].Sequence)

	rec = env.do(http.MethodGet, "/v1/events?limit=1", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &records)
	require.Len(t, records, 1)

	rec = env.do(http.MethodGet, "/v1/events?after=x", nil, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRateLimitRejectsBurst(t *testing.T) {
	env := newTestEnv(t, RateLimit{RequestsPerMinute: 1, Burst: 2})
	for i := 0; i < 2; i++ {
		rec := env.do(http.MethodGet, "/v1/yield/stats", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := env.do(http.MethodGet, "/v1/yield/stats", nil, nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	// Health checks sit outside the limited group.
	require.Equal(t, http.StatusOK, env.do(http.MethodGet, "/healthz", nil, nil).Code)
}
