package lending

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	return nil
}

// Loan returns a copy of the stored loan record.
func (e *Engine) Loan(id uint64) (*Loan, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.loadLoan(id)
}

// projected returns the loan with interest and penalty accrued to asOf
// without persisting anything.
func (e *Engine) projected(id, asOf uint64) (*Loan, *Params, error) {
	if err := e.ready(); err != nil {
		return nil, nil, err
	}
	params, err := e.params()
	if err != nil {
		return nil, nil, err
	}
	loan, err := e.loadLoan(id)
	if err != nil {
		return nil, nil, err
	}
	if loan.Active {
		accrue(loan, params, asOf)
	}
	return loan, params, nil
}

// TotalDebt projects principal, interest and penalty of loan id to asOf.
func (e *Engine) TotalDebt(id, asOf uint64) (*big.Int, error) {
	loan, _, err := e.projected(id, asOf)
	if err != nil {
		return nil, err
	}
	return loan.TotalDebt(), nil
}

// HealthFactor is the borrow limit over the current debt in 18 decimals.
// Values at or below 1e18 mark a liquidatable loan; a loan without debt
// reports the maximum 256-bit value.
func (e *Engine) HealthFactor(id uint64) (*big.Int, error) {
	now := e.now()
	loan, params, err := e.projected(id, now)
	if err != nil {
		return nil, err
	}
	if !loan.Active {
		return nil, ErrLoanInactive
	}
	asset, err := e.state.DebtAsset(loan.DebtAsset)
	if err != nil {
		return nil, err
	}
	if asset == nil {
		return nil, ErrInvalidAsset
	}
	limit, err := e.maxBorrowable(params, loan.RemainingCollateral, asset, now)
	if err != nil {
		return nil, err
	}
	return healthFactor(limit, loan.TotalDebt()), nil
}

// IsLiquidatable reports whether Liquidate would currently accept loan id.
func (e *Engine) IsLiquidatable(id uint64) (bool, error) {
	_, err := e.LiquidationQuote(id)
	if errors.Is(err, ErrNotLiquidatable) || errors.Is(err, ErrLoanInactive) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// LiquidationQuote returns the repayment and seizure a liquidation would
// perform now.
func (e *Engine) LiquidationQuote(id uint64) (*Quote, error) {
	now := e.now()
	loan, params, err := e.projected(id, now)
	if err != nil {
		return nil, err
	}
	if !loan.Active {
		return nil, ErrLoanInactive
	}
	plan, err := e.plan(loan, params, now)
	if err != nil {
		return nil, err
	}
	return &Quote{Repay: plan.repay, Seized: plan.seized}, nil
}

// Summary reports the borrower view of loan id as of now.
func (e *Engine) Summary(id uint64) (*Summary, error) {
	now := e.now()
	loan, params, err := e.projected(id, now)
	if err != nil {
		return nil, err
	}
	summary := &Summary{
		PositionID:          id,
		Borrower:            loan.Borrower,
		Active:              loan.Active,
		DebtAsset:           loan.DebtAsset,
		Principal:           new(big.Int).Set(loan.Principal),
		Interest:            new(big.Int).Set(loan.AccruedInterest),
		Penalty:             new(big.Int).Set(loan.AccruedPenalty),
		TotalDebt:           loan.TotalDebt(),
		RemainingCollateral: new(big.Int).Set(loan.RemainingCollateral),
		EndTime:             loan.EndTime,
		RepayDeadline:       loan.EndTime + params.LoanGracePeriod,
		Overdue:             loan.Active && now > loan.EndTime,
	}
	if !loan.Active {
		return summary, nil
	}
	asset, err := e.state.DebtAsset(loan.DebtAsset)
	if err != nil {
		return nil, err
	}
	if asset == nil {
		return nil, ErrInvalidAsset
	}
	limit, err := e.maxBorrowable(params, loan.RemainingCollateral, asset, now)
	if err != nil {
		return nil, err
	}
	summary.MaxBorrowable = limit
	summary.HealthFactor = healthFactor(limit, summary.TotalDebt)
	summary.Liquidatable = summary.TotalDebt.Sign() > 0 && limit.Cmp(summary.TotalDebt) <= 0
	return summary, nil
}

// BorrowerLoans summarises every loan opened by borrower, oldest first.
func (e *Engine) BorrowerLoans(borrower common.Address) ([]*Summary, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	ids, err := e.state.BorrowerLoans(borrower)
	if err != nil {
		return nil, err
	}
	out := make([]*Summary, 0, len(ids))
	for _, id := range ids {
		summary, err := e.Summary(id)
		if err != nil {
			return nil, err
		}
		out = append(out, summary)
	}
	return out, nil
}

// Params returns a copy of the risk parameters.
func (e *Engine) Params() (*Params, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	params, err := e.params()
	if err != nil {
		return nil, err
	}
	clone := *params
	return &clone, nil
}

// LoanTiers lists the configured loan durations in ascending order.
func (e *Engine) LoanTiers() ([]LoanTier, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.state.LoanTiers()
}

// DebtAssets lists every known debt asset, allowed or not.
func (e *Engine) DebtAssets() ([]*DebtAsset, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.state.DebtAssets()
}
