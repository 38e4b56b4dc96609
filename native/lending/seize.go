package lending

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"pegvault/core/events"
	nativecommon "pegvault/native/common"
)

// SeizeOverdueNFT hands an overdue position to the calling admin and closes
// the loan without further accounting. The collateral leaves with the
// position, so nothing remains for the borrower to reclaim.
func (e *Engine) SeizeOverdueNFT(caller common.Address, id uint64) (err error) {
	done, err := e.enter(false)
	if err != nil {
		return err
	}
	defer done(&err)

	if err := nativecommon.RequireRole(e.state, nativecommon.RoleAdmin, caller); err != nil {
		return err
	}
	params, err := e.params()
	if err != nil {
		return err
	}
	loan, err := e.loadActiveLoan(id)
	if err != nil {
		return err
	}
	if e.now() <= loan.EndTime+params.LoanGracePeriod {
		return ErrNotOverdue
	}
	if err := e.state.ReleasePosition(id, caller); err != nil {
		return err
	}
	loan.Active = false
	loan.RemainingCollateral = big.NewInt(0)
	if err := e.state.PutLoan(loan); err != nil {
		return err
	}
	e.logger.Warn("overdue loan seized", "positionId", id, "borrower", loan.Borrower.Hex())
	e.emit(events.LoanSeized{Admin: caller, Borrower: loan.Borrower, PositionID: id})
	return nil
}

// ReclaimCollateral returns the collateral left behind by a fully
// liquidated loan to its borrower and closes the position. It succeeds once.
func (e *Engine) ReclaimCollateral(caller common.Address, id uint64) (amount *big.Int, err error) {
	done, err := e.enter(true)
	if err != nil {
		return nil, err
	}
	defer done(&err)

	loan, err := e.loadLoan(id)
	if err != nil {
		return nil, err
	}
	if loan.Borrower != caller {
		return nil, ErrNotBorrower
	}
	if loan.Active {
		return nil, ErrLoanActive
	}
	if loan.CollateralReclaimed {
		return nil, ErrAlreadyReclaimed
	}
	if loan.RemainingCollateral.Sign() == 0 {
		return nil, ErrNothingToReclaim
	}
	holder, err := e.state.CustodianOf(id)
	if err != nil {
		return nil, err
	}
	if holder != e.moduleAddress {
		return nil, ErrNotInCustody
	}
	if e.hooks == nil {
		return nil, ErrNilState
	}
	amount, _, err = e.hooks.CloseCollateral(e.moduleAddress, id, loan.Borrower)
	if err != nil {
		return nil, err
	}
	loan.RemainingCollateral = big.NewInt(0)
	loan.CollateralReclaimed = true
	if err := e.state.PutLoan(loan); err != nil {
		return nil, err
	}
	e.emit(events.CollateralReclaimed{Borrower: caller, PositionID: id, Amount: new(big.Int).Set(amount)})
	return amount, nil
}
