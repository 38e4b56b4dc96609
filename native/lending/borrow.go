package lending

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"pegvault/core/events"
	nativecommon "pegvault/native/common"
)

// MaxBorrowable returns how much of debtAsset the active position id can
// back, in the asset's native units.
func (e *Engine) MaxBorrowable(id uint64, debtAsset string) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	params, err := e.params()
	if err != nil {
		return nil, err
	}
	pos, err := e.activePosition(id)
	if err != nil {
		return nil, err
	}
	asset, err := e.debtAsset(debtAsset)
	if err != nil {
		return nil, err
	}
	return e.maxBorrowable(params, pos.Principal, asset, e.now())
}

// BorrowWithNFT opens a loan against position id. The borrowed amount is paid
// from custody and the position moves into the custody of the engine.
func (e *Engine) BorrowWithNFT(caller common.Address, id uint64, debtAsset string, amount *big.Int, loanDuration uint64) (err error) {
	done, err := e.enter(true)
	if err != nil {
		return err
	}
	defer done(&err)

	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	params, err := e.params()
	if err != nil {
		return err
	}
	pos, err := e.activePosition(id)
	if err != nil {
		return err
	}
	owner, err := e.state.OwnerOf(id)
	if err != nil {
		return err
	}
	if owner != caller {
		return ErrNotOwner
	}
	existing, err := e.state.Loan(id)
	if err != nil {
		return err
	}
	if existing != nil && existing.Active {
		return ErrLoanActive
	}
	holder, err := e.state.CustodianOf(id)
	if err != nil {
		return err
	}
	if holder != (common.Address{}) {
		return ErrPositionInCustody
	}
	rate, err := e.tierRate(loanDuration)
	if err != nil {
		return err
	}
	asset, err := e.debtAsset(debtAsset)
	if err != nil {
		return err
	}
	now := e.now()
	limit, err := e.maxBorrowable(params, pos.Principal, asset, now)
	if err != nil {
		return err
	}
	if amount.Cmp(limit) > 0 {
		return ErrBorrowLimit
	}

	if err := e.state.WithdrawTo(caller, asset.Symbol, amount); err != nil {
		return err
	}
	if err := e.state.SetCustody(id, e.moduleAddress); err != nil {
		return err
	}
	loan := &Loan{
		PositionID:          id,
		Active:              true,
		Borrower:            caller,
		RemainingCollateral: nativecommon.Amount(pos.Principal),
		DebtAsset:           asset.Symbol,
		Principal:           new(big.Int).Set(amount),
		LoanDuration:        loanDuration,
		InterestRateBps:     rate,
		StartTime:           now,
		EndTime:             now + loanDuration,
		LastInterestAccrual: now,
		AccruedInterest:     big.NewInt(0),
		LastPenaltyAccrual:  now,
		AccruedPenalty:      big.NewInt(0),
	}
	if err := e.state.PutLoan(loan); err != nil {
		return err
	}
	e.emit(events.LoanOpened{
		Borrower:     caller,
		PositionID:   id,
		Asset:        asset.Symbol,
		Amount:       new(big.Int).Set(amount),
		LoanDuration: loanDuration,
		EndTime:      loan.EndTime,
	})
	return nil
}
