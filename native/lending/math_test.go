package lending

import (
	"errors"
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

const day = uint64(secondsPerDay)

func wadOf(whole, frac int64) *big.Int {
	out := new(big.Int).Mul(big.NewInt(whole), big.NewInt(1_000_000_000_000_000_000))
	return out.Add(out, new(big.Int).Mul(big.NewInt(frac), big.NewInt(10_000_000_000_000_000)))
}

func testParams() *Params {
	return &Params{
		LiquidationRatioBps:      12_500,
		TargetCollateralRatioBps: 13_000,
		LiquidationBonusBps:      300,
		PenaltyRatePerDayBps:     50,
		LoanGracePeriod:          7 * day,
		PenaltyGracePeriod:       3 * day,
		MaxPriceAge:              3600,
	}
}

func testLoan() *Loan {
	const start = uint64(1_000_000)
	return &Loan{
		PositionID:          1,
		Active:              true,
		RemainingCollateral: big.NewInt(1_000_000_000),
		DebtAsset:           "USDX",
		Principal:           big.NewInt(500_000_000),
		LoanDuration:        30 * day,
		InterestRateBps:     110,
		StartTime:           start,
		EndTime:             start + 30*day,
		LastInterestAccrual: start,
		AccruedInterest:     big.NewInt(0),
		LastPenaltyAccrual:  start,
		AccruedPenalty:      big.NewInt(0),
	}
}

func TestBorrowLimitExample(t *testing.T) {
	limit, err := borrowLimit(big.NewInt(1_000_000_000), wadOf(1, 0), 12_500, 6)
	require.NoError(t, err)
	require.Equal(t, "800000000", limit.String())

	limit, err = borrowLimit(big.NewInt(1_000_000_000), wadOf(1, 0), 12_500, 18)
	require.NoError(t, err)
	require.Equal(t, "800000000000000000000", limit.String())

	if _, err := borrowLimit(big.NewInt(1), big.NewInt(0), 12_500, 6); err == nil {
		t.Fatalf("expected error for zero price")
	}
}

func TestInterestAccrualExample(t *testing.T) {
	loan := testLoan()
	accrue(loan, testParams(), loan.StartTime+15*day)
	require.Equal(t, "2750000", loan.AccruedInterest.String())
	require.Equal(t, 0, loan.AccruedPenalty.Sign())
	require.Equal(t, loan.StartTime+15*day, loan.LastInterestAccrual)
}

// Interest is amortised over the loan duration and keeps running at the
// same linear rate after the due date; only the penalty is gated on it.
func TestInterestKeepsAccruingPastEndTime(t *testing.T) {
	loan := testLoan()
	accrue(loan, testParams(), loan.EndTime+15*day)
	require.Equal(t, "8250000", loan.AccruedInterest.String())

	split := testLoan()
	accrue(split, testParams(), split.EndTime)
	require.Equal(t, "5500000", split.AccruedInterest.String())
	accrue(split, testParams(), split.EndTime+15*day)
	require.Equal(t, loan.AccruedInterest.String(), split.AccruedInterest.String())
}

func TestPenaltyExample(t *testing.T) {
	params := testParams()

	loan := testLoan()
	accrue(loan, params, loan.EndTime+3*day)
	require.Equal(t, 0, loan.AccruedPenalty.Sign(), "no penalty inside the penalty grace period")

	loan = testLoan()
	accrue(loan, params, loan.EndTime+8*day)
	require.Equal(t, "20000000", loan.AccruedPenalty.String())
	require.Equal(t, loan.EndTime+8*day, loan.LastPenaltyAccrual)
}

func TestPenaltyChargesWholeDaysOnce(t *testing.T) {
	params := testParams()
	loan := testLoan()

	accrue(loan, params, loan.EndTime+3*day+1)
	require.Equal(t, "10000000", loan.AccruedPenalty.String(), "a started day counts in full")

	accrue(loan, params, loan.EndTime+3*day+3600)
	require.Equal(t, "10000000", loan.AccruedPenalty.String(), "the same day must not be charged twice")

	accrue(loan, params, loan.EndTime+5*day)
	require.Equal(t, "12500000", loan.AccruedPenalty.String())
}

func TestOverdueDays(t *testing.T) {
	require.Equal(t, uint64(0), overdueDays(10, 10))
	require.Equal(t, uint64(0), overdueDays(10, 5))
	require.Equal(t, uint64(1), overdueDays(0, 1))
	require.Equal(t, uint64(1), overdueDays(0, day))
	require.Equal(t, uint64(2), overdueDays(0, day+1))
}

func TestLiquidationAmountsExample(t *testing.T) {
	remaining := big.NewInt(1_000_000_000)
	debt := big.NewInt(780_000_000)
	price := wadOf(1, 5)

	repay, seized, err := liquidationAmounts(remaining, debt, 6, price, 13_000, 300)
	require.NoError(t, err)
	require.Equal(t, "228218694", repay.String())
	require.Equal(t, "246818517", seized.String())
	require.True(t, repay.Sign() > 0 && repay.Cmp(debt) <= 0)
	require.True(t, seized.Cmp(remaining) <= 0)

	// The post-liquidation ratio lands on the 130% target.
	collateralAfter := new(big.Int).Sub(remaining, seized)
	debtAfter := new(big.Int).Sub(debt, repay)
	lhs := new(big.Int).Mul(collateralAfter, big.NewInt(10_000))
	rhs := new(big.Int).Mul(debtAfter, big.NewInt(13_000))
	rhs.Mul(rhs, big.NewInt(105))
	rhs.Quo(rhs, big.NewInt(100))
	diff := new(big.Int).Sub(lhs, rhs)
	tolerance := new(big.Int).Quo(lhs, big.NewInt(100_000))
	require.True(t, diff.CmpAbs(tolerance) <= 0, "ratio off target: %s vs %s", lhs, rhs)
}

func TestLiquidationCapsAtDebtAndCollateral(t *testing.T) {
	remaining := big.NewInt(1_000_000_000)
	debt := big.NewInt(780_000_000)

	repay, seized, err := liquidationAmounts(remaining, debt, 6, wadOf(1, 25), 13_000, 300)
	require.NoError(t, err)
	require.Equal(t, debt.String(), repay.String())
	require.Equal(t, remaining.String(), seized.String())
}

func TestLiquidationPreconditions(t *testing.T) {
	remaining := big.NewInt(1_000_000_000)
	debt := big.NewInt(500_000_000)

	_, _, err := liquidationAmounts(remaining, debt, 6, wadOf(1, 0), 10_300, 300)
	if !errors.Is(err, ErrLiquidationDenom) {
		t.Fatalf("expected ErrLiquidationDenom, got %v", err)
	}
	_, _, err = liquidationAmounts(remaining, debt, 6, wadOf(1, 0), 13_000, 300)
	if !errors.Is(err, ErrNotLiquidatable) {
		t.Fatalf("expected ErrNotLiquidatable, got %v", err)
	}
}

func TestApplyPaymentOrder(t *testing.T) {
	loan := testLoan()
	loan.AccruedPenalty = big.NewInt(20)
	loan.AccruedInterest = big.NewInt(30)

	penalty, interest, principal := applyPayment(loan, big.NewInt(40))
	require.Equal(t, "20", penalty.String())
	require.Equal(t, "20", interest.String())
	require.Equal(t, "0", principal.String())
	require.Equal(t, "10", loan.AccruedInterest.String())

	_, interest, principal = applyPayment(loan, big.NewInt(110))
	require.Equal(t, "10", interest.String())
	require.Equal(t, "100", principal.String())
	require.Equal(t, "499999900", loan.Principal.String())
}

func TestHealthFactor(t *testing.T) {
	require.Equal(t, new(uint256.Int).SetAllOne().ToBig().String(), healthFactor(big.NewInt(800), big.NewInt(0)).String())
	require.Equal(t, wadOf(1, 60).String(), healthFactor(big.NewInt(800), big.NewInt(500)).String())
}

func TestParamsValidate(t *testing.T) {
	require.NoError(t, testParams().Validate())

	bad := []func(p *Params){
		func(p *Params) { p.LiquidationRatioBps = 9_000 },
		func(p *Params) { p.TargetCollateralRatioBps = p.LiquidationRatioBps },
		func(p *Params) { p.LiquidationBonusBps = 1_001 },
		func(p *Params) { p.TargetCollateralRatioBps = 10_300; p.LiquidationRatioBps = 10_100 },
		func(p *Params) { p.PenaltyGracePeriod = p.LoanGracePeriod + 1 },
		func(p *Params) { p.MaxPriceAge = 0 },
	}
	for i, mutate := range bad {
		params := testParams()
		mutate(params)
		if err := params.Validate(); !errors.Is(err, ErrInvalidParams) {
			t.Fatalf("case %d: expected ErrInvalidParams, got %v", i, err)
		}
	}
}
