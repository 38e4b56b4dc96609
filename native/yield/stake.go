package yield

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"pegvault/core/events"
	nativecommon "pegvault/native/common"
)

// Stake locks amount of PUSD from the caller's wallet for lockDuration and
// returns the new position id.
func (e *Engine) Stake(caller common.Address, amount *big.Int, lockDuration uint64) (id uint64, err error) {
	done, err := e.enter(true)
	if err != nil {
		return 0, err
	}
	defer done(&err)

	if amount == nil || amount.Sign() <= 0 {
		return 0, ErrInvalidAmount
	}
	params, err := e.params()
	if err != nil {
		return 0, err
	}
	if amount.Cmp(nativecommon.Amount(params.MinStake)) < 0 {
		return 0, ErrBelowMinimum
	}
	multiplier, err := e.multiplier(lockDuration)
	if err != nil {
		return 0, err
	}

	if err := e.state.DepositFor(caller, nativecommon.PeggedSymbol, amount); err != nil {
		return 0, err
	}
	now := e.now()
	pos := &Position{
		Principal:        new(big.Int).Set(amount),
		StartTime:        now,
		LockDuration:     lockDuration,
		LastClaimTime:    now,
		RewardMultiplier: multiplier,
		Active:           true,
		PendingReward:    big.NewInt(0),
	}
	id, err = e.state.CreatePosition(caller, pos)
	if err != nil {
		return 0, err
	}

	totals, err := e.totals()
	if err != nil {
		return 0, err
	}
	totals.TotalStaked.Add(totals.TotalStaked, amount)
	if err := e.state.PutYieldTotals(totals); err != nil {
		return 0, err
	}
	if err := e.adjustPool(lockDuration, amount); err != nil {
		return 0, err
	}

	e.emit(events.YieldStaked{
		Account:      caller,
		PositionID:   id,
		Amount:       new(big.Int).Set(amount),
		LockDuration: lockDuration,
		Multiplier:   multiplier,
	})
	return id, nil
}

// ClaimStakeRewards pays the accrued reward of a position from the reserve.
// The whole call fails when the reserve cannot fund it.
func (e *Engine) ClaimStakeRewards(caller common.Address, id uint64) (reward *big.Int, err error) {
	done, err := e.enter(true)
	if err != nil {
		return nil, err
	}
	defer done(&err)

	pos, err := e.loadOwnedPosition(caller, id)
	if err != nil {
		return nil, err
	}
	now := e.now()
	reward, err = e.rewardOf(pos, now)
	if err != nil {
		return nil, err
	}
	if reward.Sign() == 0 {
		return nil, ErrNoRewards
	}
	if err := e.settleClaim(pos, now); err != nil {
		return nil, err
	}
	if !e.state.DistributeFromReserve(caller, reward) {
		return nil, ErrReserveInsufficient
	}
	e.emit(events.YieldRewards{Account: caller, PositionID: id, Reward: new(big.Int).Set(reward), Operation: "claim", Paid: true})
	return reward, nil
}

// RenewStake rolls an expired position into a new lock. The reward is drawn
// from the reserve either way, and a shortfall fails the renewal. When
// compound is set the drawn reward goes back into custody as principal;
// otherwise it stays in the caller's wallet.
func (e *Engine) RenewStake(caller common.Address, id uint64, compound bool, newLockDuration uint64) (reward *big.Int, err error) {
	done, err := e.enter(true)
	if err != nil {
		return nil, err
	}
	defer done(&err)

	pos, err := e.loadOwnedPosition(caller, id)
	if err != nil {
		return nil, err
	}
	now := e.now()
	if now < pos.UnlockTime() {
		return nil, ErrStillLocked
	}
	multiplier, err := e.multiplier(newLockDuration)
	if err != nil {
		return nil, err
	}
	reward, err = e.rewardOf(pos, now)
	if err != nil {
		return nil, err
	}

	oldDuration := pos.LockDuration
	oldPrincipal := new(big.Int).Set(pos.Principal)
	totals, err := e.totals()
	if err != nil {
		return nil, err
	}
	totals.TotalPendingRewards = subFloor(totals.TotalPendingRewards, pos.PendingReward)

	if reward.Sign() > 0 {
		if !e.state.DistributeFromReserve(caller, reward) {
			return nil, ErrReserveInsufficient
		}
		if compound {
			// Route the funded reward back into custody as principal.
			if err := e.state.DepositFor(caller, nativecommon.PeggedSymbol, reward); err != nil {
				return nil, err
			}
			pos.Principal = new(big.Int).Add(pos.Principal, reward)
			totals.TotalStaked.Add(totals.TotalStaked, reward)
		}
	}

	pos.StartTime = now
	pos.LastClaimTime = now
	pos.LockDuration = newLockDuration
	pos.RewardMultiplier = multiplier
	pos.PendingReward = big.NewInt(0)
	if err := e.state.PutPosition(pos); err != nil {
		return nil, err
	}
	if err := e.state.PutYieldTotals(totals); err != nil {
		return nil, err
	}
	if err := e.adjustPool(oldDuration, new(big.Int).Neg(oldPrincipal)); err != nil {
		return nil, err
	}
	if err := e.adjustPool(newLockDuration, pos.Principal); err != nil {
		return nil, err
	}

	e.emit(events.YieldRenewed{
		Account:      caller,
		PositionID:   id,
		Reward:       new(big.Int).Set(reward),
		Compounded:   compound,
		Principal:    new(big.Int).Set(pos.Principal),
		LockDuration: newLockDuration,
	})
	return reward, nil
}

// UnstakePUSD returns the principal of an expired position and attempts to
// pay its reward. A reserve shortfall does not block the exit: the principal
// is still returned and paid reports false.
func (e *Engine) UnstakePUSD(caller common.Address, id uint64) (principal, reward *big.Int, paid bool, err error) {
	done, err := e.enter(true)
	if err != nil {
		return nil, nil, false, err
	}
	defer done(&err)

	pos, err := e.loadOwnedPosition(caller, id)
	if err != nil {
		return nil, nil, false, err
	}
	now := e.now()
	if now < pos.UnlockTime() {
		return nil, nil, false, ErrStillLocked
	}
	reward, err = e.rewardOf(pos, now)
	if err != nil {
		return nil, nil, false, err
	}
	principal = new(big.Int).Set(pos.Principal)
	paid, err = e.closePosition(pos, caller, reward, "unstake", now)
	if err != nil {
		return nil, nil, false, err
	}
	e.emit(events.YieldUnstaked{
		Account:    caller,
		PositionID: id,
		Principal:  new(big.Int).Set(principal),
		Reward:     new(big.Int).Set(reward),
		RewardPaid: paid,
	})
	return principal, reward, paid, nil
}

// settleClaim marks the position as claimed through now.
func (e *Engine) settleClaim(pos *Position, now uint64) error {
	totals, err := e.totals()
	if err != nil {
		return err
	}
	totals.TotalPendingRewards = subFloor(totals.TotalPendingRewards, pos.PendingReward)
	if now > pos.LastClaimTime {
		pos.LastClaimTime = now
	}
	pos.PendingReward = big.NewInt(0)
	if err := e.state.PutPosition(pos); err != nil {
		return err
	}
	return e.state.PutYieldTotals(totals)
}

// closePosition pays out principal and, best effort, the reward, then
// deactivates and burns the position.
func (e *Engine) closePosition(pos *Position, to common.Address, reward *big.Int, operation string, now uint64) (bool, error) {
	principal := new(big.Int).Set(pos.Principal)
	if principal.Sign() > 0 {
		if err := e.state.WithdrawTo(to, nativecommon.PeggedSymbol, principal); err != nil {
			return false, err
		}
	}
	paid := true
	if reward != nil && reward.Sign() > 0 {
		paid = e.state.DistributeFromReserve(to, reward)
		if !paid {
			e.logger.Warn("yield reward payout failed",
				"positionId", pos.ID,
				"reward", reward.String(),
				"operation", operation)
		}
		e.emit(events.YieldRewards{Account: to, PositionID: pos.ID, Reward: new(big.Int).Set(reward), Operation: operation, Paid: paid})
	}

	totals, err := e.totals()
	if err != nil {
		return false, err
	}
	totals.TotalStaked = subFloor(totals.TotalStaked, principal)
	totals.TotalPendingRewards = subFloor(totals.TotalPendingRewards, pos.PendingReward)
	if err := e.state.PutYieldTotals(totals); err != nil {
		return false, err
	}
	if err := e.adjustPool(pos.LockDuration, new(big.Int).Neg(principal)); err != nil {
		return false, err
	}

	pos.Principal = big.NewInt(0)
	pos.PendingReward = big.NewInt(0)
	pos.Active = false
	if now > pos.LastClaimTime {
		pos.LastClaimTime = now
	}
	if err := e.state.PutPosition(pos); err != nil {
		return false, err
	}
	if err := e.state.BurnPosition(pos.ID); err != nil {
		return false, err
	}
	return paid, nil
}

func subFloor(a, b *big.Int) *big.Int {
	out := new(big.Int).Sub(nativecommon.Amount(a), nativecommon.Amount(b))
	if out.Sign() < 0 {
		out.SetInt64(0)
	}
	return out
}
