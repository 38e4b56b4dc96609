package yield

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	nativecommon "pegvault/native/common"
)

// PositionView joins a position with its ledger metadata.
type PositionView struct {
	Position   *Position
	Owner      common.Address
	Custodian  common.Address
	UnlockTime uint64
	Reward     *big.Int
}

// Stats summarises the global staking aggregates.
type Stats struct {
	CurrentAPY          uint64
	TotalStaked         *big.Int
	TotalPendingRewards *big.Int
	ReserveBalance      *big.Int
	Pools               map[uint64]*big.Int
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	return nil
}

// PendingReward evaluates the reward of a position as of asOf without
// mutating anything.
func (e *Engine) PendingReward(id uint64, asOf uint64) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	pos, err := e.state.Position(id)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		return nil, ErrPositionNotFound
	}
	return e.rewardOf(pos, asOf)
}

// Position returns a position with its owner, custody holder and the reward
// accrued as of now.
func (e *Engine) Position(id uint64) (*PositionView, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	pos, err := e.state.Position(id)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		return nil, ErrPositionNotFound
	}
	pos.normalize()
	owner, err := e.state.OwnerOf(id)
	if err != nil {
		return nil, err
	}
	holder, err := e.state.CustodianOf(id)
	if err != nil {
		return nil, err
	}
	reward, err := e.rewardOf(pos, e.now())
	if err != nil {
		return nil, err
	}
	return &PositionView{Position: pos, Owner: owner, Custodian: holder, UnlockTime: pos.UnlockTime(), Reward: reward}, nil
}

// PositionsOf lists the ids currently owned by owner.
func (e *Engine) PositionsOf(owner common.Address) ([]uint64, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.state.PositionsOf(owner)
}

// SupportedLockDurations returns the configured durations in ascending order.
func (e *Engine) SupportedLockDurations() ([]uint64, error) {
	tiers, err := e.LockTiers()
	if err != nil {
		return nil, err
	}
	out := make([]uint64, 0, len(tiers))
	for _, tier := range tiers {
		out = append(out, tier.Duration)
	}
	return out, nil
}

// LockTiers returns the configured lock multipliers.
func (e *Engine) LockTiers() ([]LockTier, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	tiers, err := e.state.LockTiers()
	if err != nil {
		return nil, err
	}
	return sortTiers(tiers), nil
}

// APYHistory returns the retained APY records oldest first.
func (e *Engine) APYHistory() ([]APYRecord, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.state.APYHistory()
}

// Params returns the active versioned parameters.
func (e *Engine) Params() (*Params, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.params()
}

// Assets lists the approved conversion assets.
func (e *Engine) Assets() ([]*Asset, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.state.YieldAssets()
}

// Stats reports the global aggregates and per-duration pool totals.
func (e *Engine) Stats() (*Stats, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	totals, err := e.totals()
	if err != nil {
		return nil, err
	}
	reserve, err := e.state.ReserveBalance()
	if err != nil {
		return nil, err
	}
	tiers, err := e.state.LockTiers()
	if err != nil {
		return nil, err
	}
	pools := make(map[uint64]*big.Int, len(tiers))
	for _, tier := range tiers {
		total, err := e.state.PoolTotal(tier.Duration)
		if err != nil {
			return nil, err
		}
		pools[tier.Duration] = nativecommon.Amount(total)
	}
	return &Stats{
		CurrentAPY:          totals.CurrentAPY,
		TotalStaked:         totals.TotalStaked,
		TotalPendingRewards: totals.TotalPendingRewards,
		ReserveBalance:      nativecommon.Amount(reserve),
		Pools:               pools,
	}, nil
}

// PoolTotal returns the principal staked under a lock duration.
func (e *Engine) PoolTotal(duration uint64) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	total, err := e.state.PoolTotal(duration)
	if err != nil {
		return nil, err
	}
	return nativecommon.Amount(total), nil
}
