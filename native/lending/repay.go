package lending

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"pegvault/core/events"
	nativecommon "pegvault/native/common"
)

// Repay applies up to amount of the debt asset to loan id, settling penalty
// first, then interest, then principal. It returns the amount actually
// taken. Anyone may repay; released collateral always goes to the borrower.
func (e *Engine) Repay(caller common.Address, id uint64, amount *big.Int) (applied *big.Int, err error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	return e.repay(caller, id, amount)
}

// RepayFull settles the whole outstanding debt of loan id.
func (e *Engine) RepayFull(caller common.Address, id uint64) (applied *big.Int, err error) {
	return e.repay(caller, id, nil)
}

func (e *Engine) repay(caller common.Address, id uint64, amount *big.Int) (applied *big.Int, err error) {
	done, err := e.enter(true)
	if err != nil {
		return nil, err
	}
	defer done(&err)

	params, err := e.params()
	if err != nil {
		return nil, err
	}
	loan, err := e.loadActiveLoan(id)
	if err != nil {
		return nil, err
	}
	now := e.now()
	accrue(loan, params, now)
	if now >= loan.EndTime+params.LoanGracePeriod {
		return nil, ErrRepayWindowClosed
	}

	total := loan.TotalDebt()
	applied = total
	if amount != nil {
		applied = nativecommon.MinBig(amount, total)
	}
	if applied.Sign() == 0 {
		return nil, ErrInvalidAmount
	}
	if err := e.state.DepositFor(caller, loan.DebtAsset, applied); err != nil {
		return nil, err
	}
	penalty, interest, principal := applyPayment(loan, applied)
	if err := e.state.AddFee(loan.DebtAsset, new(big.Int).Add(penalty, interest)); err != nil {
		return nil, err
	}

	closed := loan.Principal.Sign() == 0
	if closed {
		if err := e.state.ReleasePosition(id, loan.Borrower); err != nil {
			return nil, err
		}
		loan.Active = false
		loan.RemainingCollateral = big.NewInt(0)
	}
	if err := e.state.PutLoan(loan); err != nil {
		return nil, err
	}
	e.emit(events.LoanRepaid{
		Payer:      caller,
		PositionID: id,
		Penalty:    penalty,
		Interest:   interest,
		Principal:  principal,
		Closed:     closed,
	})
	return applied, nil
}
