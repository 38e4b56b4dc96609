package yield

import (
	"math/big"

	nativecommon "pegvault/native/common"
)

const secondsPerYear = 365 * 24 * 60 * 60

var rewardDenominator = new(big.Int).SetUint64(nativecommon.BasisPoints * nativecommon.BasisPoints * secondsPerYear)

// Reward returns what the position has earned as of asOf: accrual since the
// last claim, split at every APY change and cut off at the unlock time, plus
// any reward settled into PendingReward earlier. The result depends only on
// its inputs, so repeated evaluation is stable.
func Reward(pos *Position, history []APYRecord, currentAPY uint64, asOf uint64) *big.Int {
	if pos == nil || !pos.Active || pos.Principal == nil || pos.Principal.Sign() <= 0 {
		return big.NewInt(0)
	}
	pending := nativecommon.Amount(pos.PendingReward)
	unlock := pos.UnlockTime()
	if pos.LastClaimTime >= unlock {
		return pending
	}
	end := asOf
	if end > unlock {
		end = unlock
	}
	if end <= pos.LastClaimTime {
		return pending
	}
	accrued := accrue(pos.Principal, pos.RewardMultiplier, history, currentAPY, pos.LastClaimTime, end)
	return accrued.Add(accrued, pending)
}

// accrue integrates the piecewise-constant base rate over [start, end).
func accrue(principal *big.Int, multiplier uint64, history []APYRecord, currentAPY uint64, start, end uint64) *big.Int {
	total := big.NewInt(0)
	idx, rate := rateAt(history, start, currentAPY)
	cursor := start
	for i := idx; i < len(history); i++ {
		rec := history[i]
		if rec.Timestamp <= cursor {
			continue
		}
		if rec.Timestamp >= end {
			break
		}
		total.Add(total, segmentReward(principal, rate, multiplier, rec.Timestamp-cursor))
		cursor = rec.Timestamp
		rate = rec.APY
		if i == len(history)-1 {
			rate = currentAPY
		}
	}
	total.Add(total, segmentReward(principal, rate, multiplier, end-cursor))
	return total
}

// rateAt returns the index to resume scanning from and the base APY in force
// at ts. Timestamps before the oldest retained record use the oldest rate;
// timestamps at or after the newest record use the current rate.
func rateAt(history []APYRecord, ts uint64, currentAPY uint64) (int, uint64) {
	if len(history) == 0 {
		return 0, currentAPY
	}
	if ts < history[0].Timestamp {
		return 0, history[0].APY
	}
	idx := 0
	for idx+1 < len(history) && history[idx+1].Timestamp <= ts {
		idx++
	}
	if idx == len(history)-1 {
		return idx + 1, currentAPY
	}
	return idx + 1, history[idx].APY
}

// segmentReward computes principal*apy*multiplier*dt/(10000*10000*secondsPerYear)
// with a single division.
func segmentReward(principal *big.Int, apy, multiplier, dt uint64) *big.Int {
	if dt == 0 || apy == 0 || multiplier == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(principal, new(big.Int).SetUint64(apy))
	out.Mul(out, new(big.Int).SetUint64(multiplier))
	out.Mul(out, new(big.Int).SetUint64(dt))
	return out.Quo(out, rewardDenominator)
}
