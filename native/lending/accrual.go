package lending

import "math/big"

// accrue brings interest and penalty up to now. It only mutates loan.
func accrue(loan *Loan, params *Params, now uint64) {
	from := loan.LastInterestAccrual
	if from == 0 {
		from = loan.StartTime
	}
	if now > from {
		delta := interestDelta(loan.Principal, loan.InterestRateBps, now-from, loan.LoanDuration)
		loan.AccruedInterest = new(big.Int).Add(loan.AccruedInterest, delta)
		loan.LastInterestAccrual = now
	}
	if now <= loan.EndTime+params.PenaltyGracePeriod {
		return
	}
	start := loan.LastPenaltyAccrual
	if start < loan.EndTime {
		start = loan.EndTime
	}
	days := overdueDays(start, now)
	if days == 0 {
		return
	}
	delta := penaltyDelta(loan.Principal, params.PenaltyRatePerDayBps, days)
	loan.AccruedPenalty = new(big.Int).Add(loan.AccruedPenalty, delta)
	// Days are charged whole, so the next window opens where this one ends.
	loan.LastPenaltyAccrual = start + days*secondsPerDay
}

// Accrue brings the loan's interest and penalty up to date and persists it.
func (e *Engine) Accrue(id uint64) (loan *Loan, err error) {
	done, err := e.enter(false)
	if err != nil {
		return nil, err
	}
	defer done(&err)

	params, err := e.params()
	if err != nil {
		return nil, err
	}
	loan, err = e.loadActiveLoan(id)
	if err != nil {
		return nil, err
	}
	accrue(loan, params, e.now())
	if err := e.state.PutLoan(loan); err != nil {
		return nil, err
	}
	return loan.Clone(), nil
}
