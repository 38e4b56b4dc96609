package yield

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"pegvault/core/events"
)

// loadCustodied returns an active position held in custody by caller.
func (e *Engine) loadCustodied(caller common.Address, id uint64) (*Position, error) {
	pos, err := e.state.Position(id)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		return nil, ErrPositionNotFound
	}
	if !pos.Active {
		return nil, ErrPositionInactive
	}
	holder, err := e.state.CustodianOf(id)
	if err != nil {
		return nil, err
	}
	if holder == (common.Address{}) || holder != caller {
		return nil, ErrNotCustodian
	}
	pos.normalize()
	return pos, nil
}

// UpdateCollateral lowers the principal of a custodied position. Reward
// accrued at the old principal is settled into PendingReward first so the
// position keeps what it earned before the change.
func (e *Engine) UpdateCollateral(caller common.Address, id uint64, principal *big.Int) (err error) {
	done, err := e.enter(false)
	if err != nil {
		return err
	}
	defer done(&err)

	if principal == nil || principal.Sign() < 0 {
		return ErrInvalidAmount
	}
	pos, err := e.loadCustodied(caller, id)
	if err != nil {
		return err
	}
	if principal.Cmp(pos.Principal) > 0 {
		return ErrCollateralIncrease
	}
	now := e.now()
	reward, err := e.rewardOf(pos, now)
	if err != nil {
		return err
	}
	totals, err := e.totals()
	if err != nil {
		return err
	}
	totals.TotalPendingRewards.Add(totals.TotalPendingRewards, new(big.Int).Sub(reward, pos.PendingReward))
	delta := new(big.Int).Sub(pos.Principal, principal)
	totals.TotalStaked = subFloor(totals.TotalStaked, delta)

	pos.PendingReward = reward
	if now > pos.LastClaimTime {
		pos.LastClaimTime = now
	}
	pos.Principal = new(big.Int).Set(principal)
	if err := e.state.PutPosition(pos); err != nil {
		return err
	}
	if err := e.state.PutYieldTotals(totals); err != nil {
		return err
	}
	if err := e.adjustPool(pos.LockDuration, new(big.Int).Neg(delta)); err != nil {
		return err
	}
	e.emit(events.YieldCollateralAdjusted{
		PositionID:    id,
		Principal:     new(big.Int).Set(pos.Principal),
		PendingReward: new(big.Int).Set(pos.PendingReward),
	})
	return nil
}

// CloseCollateral pays the remaining principal of a custodied position to
// `to`, attempts the reward payout and deactivates the position.
func (e *Engine) CloseCollateral(caller common.Address, id uint64, to common.Address) (principal *big.Int, rewardPaid bool, err error) {
	done, err := e.enter(false)
	if err != nil {
		return nil, false, err
	}
	defer done(&err)

	pos, err := e.loadCustodied(caller, id)
	if err != nil {
		return nil, false, err
	}
	now := e.now()
	reward, err := e.rewardOf(pos, now)
	if err != nil {
		return nil, false, err
	}
	principal = new(big.Int).Set(pos.Principal)
	rewardPaid, err = e.closePosition(pos, to, reward, "reclaim", now)
	if err != nil {
		return nil, false, err
	}
	e.emit(events.YieldCollateralAdjusted{
		PositionID:    id,
		Principal:     big.NewInt(0),
		PendingReward: big.NewInt(0),
		Closed:        true,
	})
	return principal, rewardPaid, nil
}
