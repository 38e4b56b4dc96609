package lending

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	nativecommon "pegvault/native/common"
)

// Loan is the debt opened against a custodied yield position. It is keyed
// by the position id.
type Loan struct {
	PositionID uint64
	Active     bool
	Borrower   common.Address
	// RemainingCollateral is the PUSD principal still backing the loan. It
	// starts at the position principal and never increases.
	RemainingCollateral *big.Int
	DebtAsset           string
	Principal           *big.Int
	LoanDuration        uint64
	// InterestRateBps is the tier rate captured when the loan was opened.
	InterestRateBps     uint64
	StartTime           uint64
	EndTime             uint64
	LastInterestAccrual uint64
	AccruedInterest     *big.Int
	LastPenaltyAccrual  uint64
	AccruedPenalty      *big.Int
	CollateralReclaimed bool
}

// TotalDebt returns principal plus accrued interest and penalty.
func (l *Loan) TotalDebt() *big.Int {
	if l == nil {
		return big.NewInt(0)
	}
	total := nativecommon.Amount(l.Principal)
	total.Add(total, nativecommon.Amount(l.AccruedInterest))
	return total.Add(total, nativecommon.Amount(l.AccruedPenalty))
}

// Clone returns a deep copy of the loan.
func (l *Loan) Clone() *Loan {
	if l == nil {
		return nil
	}
	clone := *l
	clone.RemainingCollateral = nativecommon.Amount(l.RemainingCollateral)
	clone.Principal = nativecommon.Amount(l.Principal)
	clone.AccruedInterest = nativecommon.Amount(l.AccruedInterest)
	clone.AccruedPenalty = nativecommon.Amount(l.AccruedPenalty)
	return &clone
}

func (l *Loan) normalize() {
	l.RemainingCollateral = nativecommon.Amount(l.RemainingCollateral)
	l.Principal = nativecommon.Amount(l.Principal)
	l.AccruedInterest = nativecommon.Amount(l.AccruedInterest)
	l.AccruedPenalty = nativecommon.Amount(l.AccruedPenalty)
}

// LoanTier prices a loan duration: RateBps is charged over the full
// duration.
type LoanTier struct {
	Duration uint64
	RateBps  uint64
}

// DebtAsset is an asset that may be borrowed.
type DebtAsset struct {
	Symbol   string
	Decimals uint8
	Allowed  bool
}

// Params groups the risk parameters. Every update bumps Version.
type Params struct {
	Version                  uint64
	LiquidationRatioBps      uint64
	TargetCollateralRatioBps uint64
	LiquidationBonusBps      uint64
	PenaltyRatePerDayBps     uint64
	LoanGracePeriod          uint64
	PenaltyGracePeriod       uint64
	MaxPriceAge              uint64
}

// Validate checks the ratio ordering and bounds.
func (p *Params) Validate() error {
	if p == nil {
		return ErrInvalidParams
	}
	if p.LiquidationRatioBps < nativecommon.BasisPoints || p.TargetCollateralRatioBps < nativecommon.BasisPoints {
		return ErrInvalidParams
	}
	if p.LiquidationRatioBps >= p.TargetCollateralRatioBps {
		return ErrInvalidParams
	}
	if p.LiquidationBonusBps > maxLiquidationBonusBps {
		return ErrInvalidParams
	}
	if p.TargetCollateralRatioBps <= nativecommon.BasisPoints+p.LiquidationBonusBps {
		return ErrInvalidParams
	}
	if p.PenaltyGracePeriod > p.LoanGracePeriod {
		return ErrInvalidParams
	}
	if p.MaxPriceAge == 0 {
		return ErrInvalidParams
	}
	return nil
}

// Summary is the borrower-facing view of a loan as of a point in time.
type Summary struct {
	PositionID          uint64
	Borrower            common.Address
	Active              bool
	DebtAsset           string
	Principal           *big.Int
	Interest            *big.Int
	Penalty             *big.Int
	TotalDebt           *big.Int
	RemainingCollateral *big.Int
	MaxBorrowable       *big.Int
	HealthFactor        *big.Int
	Liquidatable        bool
	EndTime             uint64
	RepayDeadline       uint64
	Overdue             bool
}

// Quote is the outcome a liquidation would have right now.
type Quote struct {
	Repay  *big.Int
	Seized *big.Int
}

const maxLiquidationBonusBps = 1_000

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
