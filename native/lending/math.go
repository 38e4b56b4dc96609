package lending

import (
	"math/big"

	"github.com/holiman/uint256"

	"pegvault/core/pricing"
	nativecommon "pegvault/native/common"
)

const secondsPerDay = 86_400

// maxHealthFactor is reported for loans without debt.
var maxHealthFactor = new(uint256.Int).SetAllOne()

// borrowLimit returns the largest debt, in native units of the debt asset,
// that principal PUSD can back at price while staying at the liquidation
// ratio. Every conversion is exact except the final rescale.
func borrowLimit(principal, price *big.Int, liquidationRatioBps uint64, decimals uint8) (*big.Int, error) {
	if price == nil || price.Sign() <= 0 {
		return nil, pricing.ErrInvalidPrice
	}
	if liquidationRatioBps == 0 {
		return nil, nativecommon.ErrDivisionByZero
	}
	collateral, err := nativecommon.ToWad(principal, nativecommon.PeggedDecimals)
	if err != nil {
		return nil, err
	}
	debtValue, err := nativecommon.MulDiv(collateral, nativecommon.Wad(), price)
	if err != nil {
		return nil, err
	}
	limit, err := nativecommon.MulDiv(debtValue, nativecommon.BPS(), new(big.Int).SetUint64(liquidationRatioBps))
	if err != nil {
		return nil, err
	}
	return nativecommon.FromWad(limit, decimals)
}

// interestDelta amortises rateBps linearly over loanDuration. The rate
// applies to every elapsed second, including those past the due date.
func interestDelta(principal *big.Int, rateBps, elapsed, loanDuration uint64) *big.Int {
	if loanDuration == 0 || elapsed == 0 || rateBps == 0 {
		return big.NewInt(0)
	}
	num := new(big.Int).Mul(nativecommon.Amount(principal), new(big.Int).SetUint64(rateBps))
	num.Mul(num, new(big.Int).SetUint64(elapsed))
	den := new(big.Int).Mul(nativecommon.BPS(), new(big.Int).SetUint64(loanDuration))
	return num.Quo(num, den)
}

// overdueDays counts started days between from and now.
func overdueDays(from, now uint64) uint64 {
	if now <= from {
		return 0
	}
	elapsed := now - from
	return (elapsed + secondsPerDay - 1) / secondsPerDay
}

func penaltyDelta(principal *big.Int, rateBps, days uint64) *big.Int {
	out := new(big.Int).Mul(nativecommon.Amount(principal), new(big.Int).SetUint64(rateBps))
	out.Mul(out, new(big.Int).SetUint64(days))
	return out.Quo(out, nativecommon.BPS())
}

// liquidationAmounts solves for the repayment x that restores the target
// collateral ratio after the bonus is paid out:
//
//	x = (t*B - C/P) / (t - 1 - bonus)
//
// where C is the remaining PUSD collateral, B the total debt and P the debt
// asset price, all in 18 decimals. repay is in debt asset units, seized in
// PUSD and never exceeds remaining.
func liquidationAmounts(remaining, debt *big.Int, decimals uint8, price *big.Int, targetBps, bonusBps uint64) (repay, seized *big.Int, err error) {
	if price == nil || price.Sign() <= 0 {
		return nil, nil, pricing.ErrInvalidPrice
	}
	wad := nativecommon.Wad()
	bps := nativecommon.BPS()
	collateral, err := nativecommon.ToWad(remaining, nativecommon.PeggedDecimals)
	if err != nil {
		return nil, nil, err
	}
	debtValue, err := nativecommon.ToWad(debt, decimals)
	if err != nil {
		return nil, nil, err
	}
	target := new(big.Int).Mul(new(big.Int).SetUint64(targetBps), wad)
	target.Quo(target, bps)
	bonus := new(big.Int).Mul(new(big.Int).SetUint64(bonusBps), wad)
	bonus.Quo(bonus, bps)

	den := new(big.Int).Sub(target, wad)
	den.Sub(den, bonus)
	if den.Sign() <= 0 {
		return nil, nil, ErrLiquidationDenom
	}
	scaledDebt, err := nativecommon.MulDiv(target, debtValue, wad)
	if err != nil {
		return nil, nil, err
	}
	collateralInDebt, err := nativecommon.MulDiv(collateral, wad, price)
	if err != nil {
		return nil, nil, err
	}
	num := new(big.Int).Sub(scaledDebt, collateralInDebt)
	if num.Sign() <= 0 {
		return nil, nil, ErrNotLiquidatable
	}
	x, err := nativecommon.MulDiv(num, wad, den)
	if err != nil {
		return nil, nil, err
	}
	if x.Cmp(debtValue) > 0 {
		x = debtValue
	}
	repay, err = nativecommon.FromWad(x, decimals)
	if err != nil {
		return nil, nil, err
	}
	if repay.Sign() == 0 {
		return nil, nil, ErrNothingToLiquidate
	}

	// Seize against the amount actually paid, after truncation to native
	// units.
	paid, err := nativecommon.ToWad(repay, decimals)
	if err != nil {
		return nil, nil, err
	}
	withBonus, err := nativecommon.MulDiv(new(big.Int).Add(wad, bonus), paid, wad)
	if err != nil {
		return nil, nil, err
	}
	value, err := nativecommon.MulDiv(withBonus, price, wad)
	if err != nil {
		return nil, nil, err
	}
	seized, err = nativecommon.FromWad(value, nativecommon.PeggedDecimals)
	if err != nil {
		return nil, nil, err
	}
	if seized.Cmp(nativecommon.Amount(remaining)) > 0 {
		seized = nativecommon.Amount(remaining)
	}
	return repay, seized, nil
}

// healthFactor is maxBorrowable/totalDebt in 18 decimals.
func healthFactor(limit, totalDebt *big.Int) *big.Int {
	if totalDebt == nil || totalDebt.Sign() == 0 {
		return maxHealthFactor.ToBig()
	}
	out := new(big.Int).Mul(nativecommon.Amount(limit), nativecommon.Wad())
	return out.Quo(out, totalDebt)
}

// applyPayment splits amount across penalty, interest and principal in that
// order. It returns the portion of each that was settled.
func applyPayment(loan *Loan, amount *big.Int) (penalty, interest, principal *big.Int) {
	left := new(big.Int).Set(amount)
	penalty = nativecommon.MinBig(left, loan.AccruedPenalty)
	left.Sub(left, penalty)
	interest = nativecommon.MinBig(left, loan.AccruedInterest)
	left.Sub(left, interest)
	principal = nativecommon.MinBig(left, loan.Principal)

	loan.AccruedPenalty = new(big.Int).Sub(loan.AccruedPenalty, penalty)
	loan.AccruedInterest = new(big.Int).Sub(loan.AccruedInterest, interest)
	loan.Principal = new(big.Int).Sub(loan.Principal, principal)
	return penalty, interest, principal
}
