package lending

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"pegvault/core/events"
	"pegvault/core/pricing"
	nativecommon "pegvault/native/common"
)

type liquidationPlan struct {
	asset  *DebtAsset
	limit  *big.Int
	debt   *big.Int
	repay  *big.Int
	seized *big.Int
}

// plan prices an accrued loan. It fails with ErrNotLiquidatable while the
// loan is still within its borrow limit.
func (e *Engine) plan(loan *Loan, params *Params, now uint64) (*liquidationPlan, error) {
	asset, err := e.state.DebtAsset(loan.DebtAsset)
	if err != nil {
		return nil, err
	}
	if asset == nil {
		return nil, ErrInvalidAsset
	}
	quote, err := pricing.Fetch(e.feed, asset.Symbol, now, params.MaxPriceAge)
	if err != nil {
		return nil, err
	}
	limit, err := borrowLimit(loan.RemainingCollateral, quote.Price, params.LiquidationRatioBps, asset.Decimals)
	if err != nil {
		return nil, err
	}
	debt := loan.TotalDebt()
	if debt.Sign() == 0 || limit.Cmp(debt) > 0 {
		return nil, ErrNotLiquidatable
	}
	repay, seized, err := liquidationAmounts(loan.RemainingCollateral, debt, asset.Decimals, quote.Price, params.TargetCollateralRatioBps, params.LiquidationBonusBps)
	if err != nil {
		return nil, err
	}
	return &liquidationPlan{asset: asset, limit: limit, debt: debt, repay: repay, seized: seized}, nil
}

// Liquidate repays part of an undercollateralised loan on behalf of the
// caller and pays them the matching collateral plus the bonus.
func (e *Engine) Liquidate(caller common.Address, id uint64) (repaid, seized *big.Int, err error) {
	done, err := e.enter(true)
	if err != nil {
		return nil, nil, err
	}
	defer done(&err)

	params, err := e.params()
	if err != nil {
		return nil, nil, err
	}
	loan, err := e.loadActiveLoan(id)
	if err != nil {
		return nil, nil, err
	}
	now := e.now()
	accrue(loan, params, now)
	plan, err := e.plan(loan, params, now)
	if err != nil {
		return nil, nil, err
	}

	if err := e.state.DepositFor(caller, plan.asset.Symbol, plan.repay); err != nil {
		return nil, nil, err
	}
	penalty, interest, _ := applyPayment(loan, plan.repay)
	if err := e.state.AddFee(plan.asset.Symbol, new(big.Int).Add(penalty, interest)); err != nil {
		return nil, nil, err
	}
	loan.RemainingCollateral = new(big.Int).Sub(loan.RemainingCollateral, plan.seized)
	if plan.seized.Sign() > 0 {
		if err := e.state.WithdrawTo(caller, nativecommon.PeggedSymbol, plan.seized); err != nil {
			return nil, nil, err
		}
	}
	if e.hooks != nil {
		if err := e.hooks.UpdateCollateral(e.moduleAddress, id, loan.RemainingCollateral); err != nil {
			return nil, nil, err
		}
	}
	remaining := loan.TotalDebt()
	if remaining.Sign() == 0 {
		loan.Active = false
	}
	if err := e.state.PutLoan(loan); err != nil {
		return nil, nil, err
	}
	e.logger.Info("loan liquidated",
		"positionId", id,
		"repaid", plan.repay.String(),
		"seized", plan.seized.String(),
		"remainingDebt", remaining.String())
	e.emit(events.LoanLiquidated{
		Liquidator:          caller,
		Borrower:            loan.Borrower,
		PositionID:          id,
		Repaid:              new(big.Int).Set(plan.repay),
		Seized:              new(big.Int).Set(plan.seized),
		RemainingCollateral: new(big.Int).Set(loan.RemainingCollateral),
		RemainingDebt:       remaining,
	})
	return plan.repay, plan.seized, nil
}
