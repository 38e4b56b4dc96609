package lending_test

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"pegvault/core/events"
	"pegvault/core/pricing"
	"pegvault/core/state"
	nativecommon "pegvault/native/common"
	"pegvault/native/lending"
	"pegvault/native/yield"
	"pegvault/storage"
)

const (
	day   = uint64(24 * 60 * 60)
	epoch = uint64(1_700_000_000)
	unit  = int64(1_000_000)
)

var (
	admin  = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	alice  = common.HexToAddress("0x00000000000000000000000000000000000000c3")
	bob    = common.HexToAddress("0x00000000000000000000000000000000000000d4")
	lender = common.HexToAddress("0x00000000000000000000000000000000000000e5")
	module = common.HexToAddress("0x00000000000000000000000000000000000000f6")
)

type fixture struct {
	t        *testing.T
	now      uint64
	state    *state.Manager
	feed     *pricing.ManualFeed
	yield    *yield.Engine
	engine   *lending.Engine
	recorder *events.Recorder
	position uint64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		t:        t,
		now:      epoch,
		state:    state.NewManager(storage.NewMemDB()),
		feed:     pricing.NewManualFeed(),
		recorder: &events.Recorder{},
	}
	f.state.SetEmitter(f.recorder)
	require.NoError(t, f.state.SetRole(nativecommon.RoleAdmin, admin))

	f.yield = yield.NewEngine(f.state, f.feed)
	f.yield.SetNowFunc(func() uint64 { return f.now })
	yieldParams := &yield.Params{MinStake: big.NewInt(10 * unit), HistoryCapacity: 8, ChainID: 1}
	require.NoError(t, f.yield.Initialize(yieldParams, 1000, []yield.LockTier{{Duration: 90 * day, Multiplier: 10_000}}, nil))

	f.engine = lending.NewEngine(module, f.state, f.feed, f.yield)
	f.engine.SetNowFunc(func() uint64 { return f.now })
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
	assets := []lending.DebtAsset{{Symbol: "usdx", Decimals: 6, Allowed: true}}
	require.NoError(t, f.engine.Initialize(params, tiers, assets))

	f.setPrice(1, 0)
	require.NoError(t, f.state.Credit(lender, "USDX", big.NewInt(10_000*unit)))
	require.NoError(t, f.state.DepositFor(lender, "USDX", big.NewInt(10_000*unit)))

	require.NoError(t, f.state.MintPegged(alice, big.NewInt(2_000*unit)))
	id, err := f.yield.Stake(alice, big.NewInt(1_000*unit), 90*day)
	require.NoError(t, err)
	f.position = id
	return f
}

// setPrice records whole.cents PUSD per USDX at the current time.
func (f *fixture) setPrice(whole, cents int64) {
	f.t.Helper()
	price := new(big.Int).Mul(big.NewInt(whole*100+cents), big.NewInt(10_000_000_000_000_000))
	require.NoError(f.t, f.feed.RecordPrice("USDX", price, f.now))
}

func (f *fixture) advance(seconds uint64) {
	f.now += seconds
	f.setPrice(1, 0)
}

func (f *fixture) wallet(addr common.Address, asset string) *big.Int {
	f.t.Helper()
	balance, err := f.state.WalletBalance(addr, asset)
	require.NoError(f.t, err)
	return balance
}

func (f *fixture) borrow(amount int64) {
	f.t.Helper()
	require.NoError(f.t, f.engine.BorrowWithNFT(alice, f.position, "USDX", big.NewInt(amount), 30*day))
}

func TestMaxBorrowable(t *testing.T) {
	f := newFixture(t)
	limit, err := f.engine.MaxBorrowable(f.position, "usdx")
	require.NoError(t, err)
	require.Equal(t, "800000000", limit.String())

	if _, err := f.engine.MaxBorrowable(f.position, "DAI"); !errors.Is(err, lending.ErrAssetNotAllowed) {
		t.Fatalf("expected ErrAssetNotAllowed, got %v", err)
	}
	f.now += 2 * 3600
	if _, err := f.engine.MaxBorrowable(f.position, "USDX"); !errors.Is(err, pricing.ErrStalePrice) {
		t.Fatalf("expected ErrStalePrice, got %v", err)
	}
}

func TestBorrowValidation(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		name     string
		caller   common.Address
		asset    string
		amount   int64
		duration uint64
		want     error
	}{
		{"zero amount", alice, "USDX", 0, 30 * day, lending.ErrInvalidAmount},
		{"not owner", bob, "USDX", 100 * unit, 30 * day, lending.ErrNotOwner},
		{"unsupported duration", alice, "USDX", 100 * unit, 60 * day, lending.ErrUnsupportedDuration},
		{"unknown asset", alice, "DAI", 100 * unit, 30 * day, lending.ErrAssetNotAllowed},
		{"above limit", alice, "USDX", 800*unit + 1, 30 * day, lending.ErrBorrowLimit},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := f.engine.BorrowWithNFT(tc.caller, f.position, tc.asset, big.NewInt(tc.amount), tc.duration)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
	if err := f.engine.BorrowWithNFT(alice, 99, "USDX", big.NewInt(unit), 30*day); !errors.Is(err, lending.ErrPositionNotFound) {
		t.Fatalf("expected ErrPositionNotFound, got %v", err)
	}
	require.Empty(t, f.recorder.OfType(events.TypeLoanOpened))
}

func TestBorrowTakesCustody(t *testing.T) {
	f := newFixture(t)
	f.borrow(500 * unit)

	holder, err := f.state.CustodianOf(f.position)
	require.NoError(t, err)
	require.Equal(t, module, holder)
	require.Equal(t, "500000000", f.wallet(alice, "USDX").String())

	loan, err := f.engine.Loan(f.position)
	require.NoError(t, err)
	require.True(t, loan.Active)
	require.Equal(t, alice, loan.Borrower)
	require.Equal(t, uint64(110), loan.InterestRateBps)
	require.Equal(t, epoch+30*day, loan.EndTime)
	require.Equal(t, "1000000000", loan.RemainingCollateral.String())
	require.Len(t, f.recorder.OfType(events.TypeLoanOpened), 1)

	if _, err := f.yield.ClaimStakeRewards(alice, f.position); !errors.Is(err, yield.ErrPositionInCustody) {
		t.Fatalf("expected ErrPositionInCustody, got %v", err)
	}
	if err := f.engine.BorrowWithNFT(alice, f.position, "USDX", big.NewInt(unit), 30*day); !errors.Is(err, lending.ErrLoanActive) {
		t.Fatalf("expected ErrLoanActive, got %v", err)
	}
	loans, err := f.engine.BorrowerLoans(alice)
	require.NoError(t, err)
	require.Len(t, loans, 1)
	require.Equal(t, "800000000", loans[0].MaxBorrowable.String())
	require.False(t, loans[0].Liquidatable)
}

func TestRepayFullReleasesPosition(t *testing.T) {
	f := newFixture(t)
	f.borrow(500 * unit)
	f.advance(15 * day)

	debt, err := f.engine.TotalDebt(f.position, f.now)
	require.NoError(t, err)
	require.Equal(t, "502750000", debt.String())

	require.NoError(t, f.state.Credit(alice, "USDX", big.NewInt(10*unit)))
	applied, err := f.engine.RepayFull(alice, f.position)
	require.NoError(t, err)
	require.Equal(t, "502750000", applied.String())

	loan, err := f.engine.Loan(f.position)
	require.NoError(t, err)
	require.False(t, loan.Active)
	require.Equal(t, 0, loan.RemainingCollateral.Sign())

	holder, err := f.state.CustodianOf(f.position)
	require.NoError(t, err)
	require.Equal(t, common.Address{}, holder)
	owner, err := f.state.OwnerOf(f.position)
	require.NoError(t, err)
	require.Equal(t, alice, owner)

	fees, err := f.state.FeeBalance("USDX")
	require.NoError(t, err)
	require.Equal(t, "2750000", fees.String())
	require.Equal(t, "7250000", f.wallet(alice, "USDX").String())

	if _, err := f.engine.Repay(alice, f.position, big.NewInt(unit)); !errors.Is(err, lending.ErrLoanInactive) {
		t.Fatalf("expected ErrLoanInactive, got %v", err)
	}
}

func TestPartialRepaySettlesInterestFirst(t *testing.T) {
	f := newFixture(t)
	f.borrow(500 * unit)
	f.advance(15 * day)

	applied, err := f.engine.Repay(bob, f.position, big.NewInt(unit))
	if !errors.Is(err, state.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v (applied %v)", err, applied)
	}
	applied, err = f.engine.Repay(alice, f.position, big.NewInt(3*unit))
	require.NoError(t, err)
	require.Equal(t, "3000000", applied.String())

	loan, err := f.engine.Loan(f.position)
	require.NoError(t, err)
	require.True(t, loan.Active)
	require.Equal(t, 0, loan.AccruedInterest.Sign())
	require.Equal(t, "499750000", loan.Principal.String())
}

func TestRepayWindowCloses(t *testing.T) {
	f := newFixture(t)
	f.borrow(500 * unit)
	f.advance(37 * day)

	if _, err := f.engine.RepayFull(alice, f.position); !errors.Is(err, lending.ErrRepayWindowClosed) {
		t.Fatalf("expected ErrRepayWindowClosed, got %v", err)
	}
}

func TestOverduePenalty(t *testing.T) {
	f := newFixture(t)
	f.borrow(500 * unit)
	f.advance(38 * day)

	summary, err := f.engine.Summary(f.position)
	require.NoError(t, err)
	require.Equal(t, "6966666", summary.Interest.String())
	require.Equal(t, "20000000", summary.Penalty.String())
	require.Equal(t, "526966666", summary.TotalDebt.String())
	require.True(t, summary.Overdue)
	require.Equal(t, epoch+37*day, summary.RepayDeadline)

	// Views never persist accrual.
	loan, err := f.engine.Loan(f.position)
	require.NoError(t, err)
	require.Equal(t, 0, loan.AccruedPenalty.Sign())

	accrued, err := f.engine.Accrue(f.position)
	require.NoError(t, err)
	require.Equal(t, "20000000", accrued.AccruedPenalty.String())
	require.Equal(t, epoch+38*day, accrued.LastPenaltyAccrual)
}

func TestSeizeOverdue(t *testing.T) {
	f := newFixture(t)
	f.borrow(500 * unit)
	f.advance(37 * day)

	if err := f.engine.SeizeOverdueNFT(bob, f.position); !errors.Is(err, nativecommon.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := f.engine.SeizeOverdueNFT(admin, f.position); !errors.Is(err, lending.ErrNotOverdue) {
		t.Fatalf("expected ErrNotOverdue, got %v", err)
	}
	f.advance(1)
	require.NoError(t, f.engine.SeizeOverdueNFT(admin, f.position))

	owner, err := f.state.OwnerOf(f.position)
	require.NoError(t, err)
	require.Equal(t, admin, owner)
	holder, err := f.state.CustodianOf(f.position)
	require.NoError(t, err)
	require.Equal(t, common.Address{}, holder)
	require.Len(t, f.recorder.OfType(events.TypeLoanSeized), 1)

	loan, err := f.engine.Loan(f.position)
	require.NoError(t, err)
	require.False(t, loan.Active)
	require.Equal(t, 0, loan.RemainingCollateral.Sign())

	if _, err := f.engine.ReclaimCollateral(alice, f.position); !errors.Is(err, lending.ErrNothingToReclaim) {
		t.Fatalf("expected ErrNothingToReclaim, got %v", err)
	}
	require.Equal(t, "1000000000", f.wallet(alice, "PUSD").String())
}

func TestLiquidationRestoresTargetRatio(t *testing.T) {
	f := newFixture(t)
	f.borrow(780 * unit)

	ok, err := f.engine.IsLiquidatable(f.position)
	require.NoError(t, err)
	require.False(t, ok)

	f.setPrice(1, 5)
	ok, err = f.engine.IsLiquidatable(f.position)
	require.NoError(t, err)
	require.True(t, ok)
	health, err := f.engine.HealthFactor(f.position)
	require.NoError(t, err)
	require.True(t, health.Cmp(nativecommon.Wad()) < 0)

	quote, err := f.engine.LiquidationQuote(f.position)
	require.NoError(t, err)
	require.Equal(t, "228218694", quote.Repay.String())
	require.Equal(t, "246818517", quote.Seized.String())

	require.NoError(t, f.state.Credit(bob, "USDX", big.NewInt(1_000*unit)))
	repaid, seized, err := f.engine.Liquidate(bob, f.position)
	require.NoError(t, err)
	require.Equal(t, quote.Repay.String(), repaid.String())
	require.Equal(t, quote.Seized.String(), seized.String())
	require.Equal(t, "246818517", f.wallet(bob, "PUSD").String())
	require.Equal(t, "771781306", f.wallet(bob, "USDX").String())

	loan, err := f.engine.Loan(f.position)
	require.NoError(t, err)
	require.True(t, loan.Active)
	require.Equal(t, "753181483", loan.RemainingCollateral.String())
	require.Equal(t, "551781306", loan.Principal.String())

	view, err := f.yield.Position(f.position)
	require.NoError(t, err)
	require.Equal(t, "753181483", view.Position.Principal.String())

	health, err = f.engine.HealthFactor(f.position)
	require.NoError(t, err)
	require.True(t, health.Cmp(nativecommon.Wad()) > 0)
	require.Len(t, f.recorder.OfType(events.TypeLoanLiquidated), 1)
	require.Len(t, f.recorder.OfType(events.TypeYieldCollateralAdjusted), 1)
}

func TestLiquidationToZeroDebtClosesLoan(t *testing.T) {
	f := newFixture(t)
	f.borrow(780 * unit)
	f.setPrice(2, 0)

	require.NoError(t, f.state.Credit(bob, "USDX", big.NewInt(1_000*unit)))
	repaid, seized, err := f.engine.Liquidate(bob, f.position)
	require.NoError(t, err)
	require.Equal(t, "780000000", repaid.String())
	require.Equal(t, "1000000000", seized.String())
	require.Equal(t, "1000000000", f.wallet(bob, "PUSD").String())
	require.Equal(t, "220000000", f.wallet(bob, "USDX").String())

	loan, err := f.engine.Loan(f.position)
	require.NoError(t, err)
	require.False(t, loan.Active)
	require.Equal(t, 0, loan.TotalDebt().Sign())
	require.Equal(t, 0, loan.RemainingCollateral.Sign())

	view, err := f.yield.Position(f.position)
	require.NoError(t, err)
	require.Equal(t, 0, view.Position.Principal.Sign())

	if _, err := f.engine.ReclaimCollateral(alice, f.position); !errors.Is(err, lending.ErrNothingToReclaim) {
		t.Fatalf("expected ErrNothingToReclaim, got %v", err)
	}
	if _, err := f.engine.Repay(alice, f.position, big.NewInt(unit)); !errors.Is(err, lending.ErrLoanInactive) {
		t.Fatalf("expected ErrLoanInactive, got %v", err)
	}
	if _, _, err := f.engine.Liquidate(bob, f.position); !errors.Is(err, lending.ErrLoanInactive) {
		t.Fatalf("expected ErrLoanInactive on second liquidation, got %v", err)
	}
	require.Len(t, f.recorder.OfType(events.TypeLoanLiquidated), 1)
}

func TestLiquidateHealthyLoanRejected(t *testing.T) {
	f := newFixture(t)
	f.borrow(500 * unit)
	require.NoError(t, f.state.Credit(bob, "USDX", big.NewInt(1_000*unit)))

	if _, _, err := f.engine.Liquidate(bob, f.position); !errors.Is(err, lending.ErrNotLiquidatable) {
		t.Fatalf("expected ErrNotLiquidatable, got %v", err)
	}
	require.Equal(t, "1000000000", f.wallet(bob, "USDX").String())
}

func TestReclaimCollateralOnce(t *testing.T) {
	f := newFixture(t)
	f.borrow(500 * unit)

	// Leave a settled loan behind with the collateral still in custody.
	loan, err := f.state.Loan(f.position)
	require.NoError(t, err)
	loan.Active = false
	loan.Principal = big.NewInt(0)
	require.NoError(t, f.state.PutLoan(loan))

	if _, err := f.engine.ReclaimCollateral(bob, f.position); !errors.Is(err, lending.ErrNotBorrower) {
		t.Fatalf("expected ErrNotBorrower, got %v", err)
	}
	amount, err := f.engine.ReclaimCollateral(alice, f.position)
	require.NoError(t, err)
	require.Equal(t, "1000000000", amount.String())
	require.Equal(t, "2000000000", f.wallet(alice, "PUSD").String())

	if _, err := f.engine.ReclaimCollateral(alice, f.position); !errors.Is(err, lending.ErrAlreadyReclaimed) {
		t.Fatalf("expected ErrAlreadyReclaimed, got %v", err)
	}
	view, err := f.yield.Position(f.position)
	require.NoError(t, err)
	require.False(t, view.Position.Active)
	require.Len(t, f.recorder.OfType(events.TypeCollateralReclaimed), 1)
}

func TestAdminControls(t *testing.T) {
	f := newFixture(t)
	if err := f.engine.SetLoanTier(bob, 60*day, 200); !errors.Is(err, nativecommon.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	require.NoError(t, f.engine.SetLoanTier(admin, 60*day, 200))
	tiers, err := f.engine.LoanTiers()
	require.NoError(t, err)
	require.Equal(t, []lending.LoanTier{{Duration: 30 * day, RateBps: 110}, {Duration: 60 * day, RateBps: 200}}, tiers)

	require.NoError(t, f.engine.DenyDebtAsset(admin, "USDX"))
	if err := f.engine.BorrowWithNFT(alice, f.position, "USDX", big.NewInt(unit), 60*day); !errors.Is(err, lending.ErrAssetNotAllowed) {
		t.Fatalf("expected ErrAssetNotAllowed, got %v", err)
	}
	require.NoError(t, f.engine.AllowDebtAsset(admin, "USDX", 6))

	params, err := f.engine.Params()
	require.NoError(t, err)
	next := *params
	next.LiquidationBonusBps = 5_000
	if err := f.engine.SetParams(admin, next); !errors.Is(err, lending.ErrInvalidParams) {
		t.Fatalf("expected ErrInvalidParams, got %v", err)
	}

	require.NoError(t, f.engine.SetPaused(admin, true))
	if err := f.engine.BorrowWithNFT(alice, f.position, "USDX", big.NewInt(unit), 60*day); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
	require.NoError(t, f.engine.SetPaused(admin, false))
	require.NoError(t, f.engine.BorrowWithNFT(alice, f.position, "USDX", big.NewInt(unit), 60*day))
	loan, err := f.engine.Loan(f.position)
	require.NoError(t, err)
	require.Equal(t, uint64(200), loan.InterestRateBps)
}

func TestSetParamsRejectsZeroPriceAge(t *testing.T) {
	f := newFixture(t)
	params, err := f.engine.Params()
	require.NoError(t, err)
	next := *params
	next.MaxPriceAge = 0
	if err := f.engine.SetParams(admin, next); !errors.Is(err, lending.ErrInvalidParams) {
		t.Fatalf("expected ErrInvalidParams, got %v", err)
	}

	current, err := f.engine.Params()
	require.NoError(t, err)
	require.Equal(t, uint64(3600), current.MaxPriceAge)

	f.now += 365 * day
	if _, err := f.engine.MaxBorrowable(f.position, "USDX"); !errors.Is(err, pricing.ErrStalePrice) {
		t.Fatalf("expected ErrStalePrice, got %v", err)
	}
	if err := f.engine.BorrowWithNFT(alice, f.position, "USDX", big.NewInt(unit), 30*day); !errors.Is(err, pricing.ErrStalePrice) {
		t.Fatalf("expected ErrStalePrice on borrow, got %v", err)
	}
}

// failingState rejects the final loan write of a borrow.
type failingState struct {
	*state.Manager
}

var errLoanWrite = errors.New("loan write failed")

func (s *failingState) PutLoan(*lending.Loan) error { return errLoanWrite }

func TestBorrowIsAtomic(t *testing.T) {
	f := newFixture(t)
	f.engine.SetState(&failingState{Manager: f.state})

	if err := f.engine.BorrowWithNFT(alice, f.position, "USDX", big.NewInt(500*unit), 30*day); !errors.Is(err, errLoanWrite) {
		t.Fatalf("expected errLoanWrite, got %v", err)
	}
	holder, err := f.state.CustodianOf(f.position)
	require.NoError(t, err)
	require.Equal(t, common.Address{}, holder)
	require.Equal(t, 0, f.wallet(alice, "USDX").Sign())
	vault, err := f.state.VaultBalance("USDX")
	require.NoError(t, err)
	require.Equal(t, "10000000000", vault.String())
	require.Empty(t, f.recorder.OfType(events.TypeLoanOpened))
}

// reentrantState calls back into the engine from inside a custody transfer.
type reentrantState struct {
	*state.Manager
	engine *lending.Engine
	inner  error
}

func (s *reentrantState) WithdrawTo(user common.Address, asset string, amount *big.Int) error {
	if s.engine != nil && s.inner == nil {
		_, s.inner = s.engine.RepayFull(user, 1)
	}
	return s.Manager.WithdrawTo(user, asset, amount)
}

func TestNestedEntryRejected(t *testing.T) {
	f := newFixture(t)
	wrapped := &reentrantState{Manager: f.state}
	f.engine.SetState(wrapped)
	wrapped.engine = f.engine

	f.borrow(500 * unit)
	if !errors.Is(wrapped.inner, nativecommon.ErrReentrant) {
		t.Fatalf("expected ErrReentrant from nested call, got %v", wrapped.inner)
	}
	loan, err := f.engine.Loan(f.position)
	require.NoError(t, err)
	require.True(t, loan.Active)
}
