package events

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// TypeLoanOpened is emitted when a position is pledged for a borrow.
	TypeLoanOpened = "lending.loanOpened"
	// TypeLoanRepaid is emitted for every repayment, partial or full.
	TypeLoanRepaid = "lending.loanRepaid"
	// TypeLoanLiquidated is emitted when a third party restores a loan's ratio.
	TypeLoanLiquidated = "lending.loanLiquidated"
	// TypeLoanSeized is emitted when an overdue position is taken by an admin.
	TypeLoanSeized = "lending.loanSeized"
	// TypeCollateralReclaimed is emitted when a borrower withdraws leftover collateral.
	TypeCollateralReclaimed = "lending.collateralReclaimed"
	// TypeLoanTierUpdated is emitted when a loan duration tier changes.
	TypeLoanTierUpdated = "lending.loanTierUpdated"
	// TypeDebtAssetUpdated is emitted when a debt asset is allowed or denied.
	TypeDebtAssetUpdated = "lending.debtAssetUpdated"
)

// LoanOpened captures a new borrow against a position.
type LoanOpened struct {
	Borrower     common.Address
	PositionID   uint64
	Asset        string
	Amount       *big.Int
	LoanDuration uint64
	EndTime      uint64
}

// EventType satisfies the Event interface.
func (LoanOpened) EventType() string { return TypeLoanOpened }

// Attributes satisfies the Event interface.
func (e LoanOpened) Attributes() map[string]string {
	return map[string]string{
		"borrower":     formatAddr(e.Borrower),
		"positionId":   formatUint(e.PositionID),
		"asset":        normalizeAsset(e.Asset),
		"amount":       formatAmount(e.Amount),
		"loanDuration": formatUint(e.LoanDuration),
		"endTime":      formatUint(e.EndTime),
	}
}

// LoanRepaid captures how a repayment was split across the debt buckets.
type LoanRepaid struct {
	Payer      common.Address
	PositionID uint64
	Penalty    *big.Int
	Interest   *big.Int
	Principal  *big.Int
	Closed     bool
}

// EventType satisfies the Event interface.
func (LoanRepaid) EventType() string { return TypeLoanRepaid }

// Attributes satisfies the Event interface.
func (e LoanRepaid) Attributes() map[string]string {
	return map[string]string{
		"payer":      formatAddr(e.Payer),
		"positionId": formatUint(e.PositionID),
		"penalty":    formatAmount(e.Penalty),
		"interest":   formatAmount(e.Interest),
		"principal":  formatAmount(e.Principal),
		"closed":     strconv.FormatBool(e.Closed),
	}
}

// LoanLiquidated captures a liquidation settlement.
type LoanLiquidated struct {
	Liquidator          common.Address
	Borrower            common.Address
	PositionID          uint64
	Repaid              *big.Int
	Seized              *big.Int
	RemainingCollateral *big.Int
	RemainingDebt       *big.Int
}

// EventType satisfies the Event interface.
func (LoanLiquidated) EventType() string { return TypeLoanLiquidated }

// Attributes satisfies the Event interface.
func (e LoanLiquidated) Attributes() map[string]string {
	return map[string]string{
		"liquidator":          formatAddr(e.Liquidator),
		"borrower":            formatAddr(e.Borrower),
		"positionId":          formatUint(e.PositionID),
		"repaid":              formatAmount(e.Repaid),
		"seized":              formatAmount(e.Seized),
		"remainingCollateral": formatAmount(e.RemainingCollateral),
		"remainingDebt":       formatAmount(e.RemainingDebt),
	}
}

// LoanSeized captures an administrative seizure.
type LoanSeized struct {
	Admin      common.Address
	Borrower   common.Address
	PositionID uint64
}

// EventType satisfies the Event interface.
func (LoanSeized) EventType() string { return TypeLoanSeized }

// Attributes satisfies the Event interface.
func (e LoanSeized) Attributes() map[string]string {
	return map[string]string{
		"admin":      formatAddr(e.Admin),
		"borrower":   formatAddr(e.Borrower),
		"positionId": formatUint(e.PositionID),
	}
}

// CollateralReclaimed captures a leftover collateral withdrawal.
type CollateralReclaimed struct {
	Borrower   common.Address
	PositionID uint64
	Amount     *big.Int
}

// EventType satisfies the Event interface.
func (CollateralReclaimed) EventType() string { return TypeCollateralReclaimed }

// Attributes satisfies the Event interface.
func (e CollateralReclaimed) Attributes() map[string]string {
	return map[string]string{
		"borrower":   formatAddr(e.Borrower),
		"positionId": formatUint(e.PositionID),
		"amount":     formatAmount(e.Amount),
	}
}

// LoanTierUpdated captures a loan duration tier change. A zero rate with
// Removed set means the tier no longer accepts new loans.
type LoanTierUpdated struct {
	Duration uint64
	RateBps  uint64
	Removed  bool
}

// EventType satisfies the Event interface.
func (LoanTierUpdated) EventType() string { return TypeLoanTierUpdated }

// Attributes satisfies the Event interface.
func (e LoanTierUpdated) Attributes() map[string]string {
	return map[string]string{
		"duration": formatUint(e.Duration),
		"rateBps":  formatUint(e.RateBps),
		"removed":  strconv.FormatBool(e.Removed),
	}
}

// DebtAssetUpdated captures an allow/deny decision for a borrowable asset.
type DebtAssetUpdated struct {
	Asset    string
	Decimals uint8
	Allowed  bool
}

// EventType satisfies the Event interface.
func (DebtAssetUpdated) EventType() string { return TypeDebtAssetUpdated }

// Attributes satisfies the Event interface.
func (e DebtAssetUpdated) Attributes() map[string]string {
	return map[string]string{
		"asset":    normalizeAsset(e.Asset),
		"decimals": strconv.FormatUint(uint64(e.Decimals), 10),
		"allowed":  strconv.FormatBool(e.Allowed),
	}
}
