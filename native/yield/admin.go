package yield

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"pegvault/core/events"
	nativecommon "pegvault/native/common"
)

// Initialize writes the genesis configuration. It fails once parameters
// exist so a restart never resets the APY history.
func (e *Engine) Initialize(params *Params, initialAPY uint64, tiers []LockTier, assets []Asset) (err error) {
	done, err := e.enter(false)
	if err != nil {
		return err
	}
	defer done(&err)

	existing, err := e.state.YieldParams()
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrAlreadyConfigured
	}
	if err := params.Validate(); err != nil {
		return err
	}
	for _, tier := range tiers {
		if tier.Duration == 0 || tier.Multiplier == 0 {
			return ErrInvalidMultiplier
		}
	}
	for i := range assets {
		if err := assets[i].Validate(); err != nil {
			return err
		}
	}

	next := params.Clone()
	next.Version = 1
	if err := e.state.PutYieldParams(next); err != nil {
		return err
	}
	if err := e.state.PutLockTiers(sortTiers(tiers)); err != nil {
		return err
	}
	for i := range assets {
		asset := assets[i]
		asset.Symbol = normalizeSymbol(asset.Symbol)
		if err := e.state.PutYieldAsset(&asset); err != nil {
			return err
		}
	}
	now := e.now()
	if err := e.state.PutAPYHistory([]APYRecord{{APY: initialAPY, Timestamp: now}}); err != nil {
		return err
	}
	totals, err := e.totals()
	if err != nil {
		return err
	}
	totals.CurrentAPY = initialAPY
	if err := e.state.PutYieldTotals(totals); err != nil {
		return err
	}
	e.emit(events.ParamsUpdated{Module: moduleName, Version: next.Version})
	return nil
}

func (e *Engine) requireAdmin(caller common.Address) error {
	return nativecommon.RequireRole(e.state, nativecommon.RoleAdmin, caller)
}

// SetAPY appends a new base rate to the history, evicting the oldest record
// when the history is full.
func (e *Engine) SetAPY(caller common.Address, apy uint64) (err error) {
	done, err := e.enter(false)
	if err != nil {
		return err
	}
	defer done(&err)

	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	params, err := e.params()
	if err != nil {
		return err
	}
	totals, err := e.totals()
	if err != nil {
		return err
	}
	if apy == totals.CurrentAPY {
		return ErrAPYUnchanged
	}
	records, err := e.state.APYHistory()
	if err != nil {
		return err
	}
	now := e.now()
	history := NewHistory(params.HistoryCapacity, records)
	if err := history.Append(APYRecord{APY: apy, Timestamp: now}); err != nil {
		return err
	}
	if err := e.state.PutAPYHistory(history.Records()); err != nil {
		return err
	}
	previous := totals.CurrentAPY
	totals.CurrentAPY = apy
	if err := e.state.PutYieldTotals(totals); err != nil {
		return err
	}
	e.emit(events.YieldAPYUpdated{Previous: previous, Current: apy, Timestamp: now})
	return nil
}

// SetLockDuration adds or updates a lock tier.
func (e *Engine) SetLockDuration(caller common.Address, duration, multiplier uint64) (err error) {
	done, err := e.enter(false)
	if err != nil {
		return err
	}
	defer done(&err)

	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if duration == 0 {
		return ErrUnsupportedDuration
	}
	if multiplier == 0 {
		return ErrInvalidMultiplier
	}
	tiers, err := e.state.LockTiers()
	if err != nil {
		return err
	}
	updated := false
	for i := range tiers {
		if tiers[i].Duration == duration {
			tiers[i].Multiplier = multiplier
			updated = true
		}
	}
	if !updated {
		tiers = append(tiers, LockTier{Duration: duration, Multiplier: multiplier})
	}
	if err := e.state.PutLockTiers(sortTiers(tiers)); err != nil {
		return err
	}
	e.emit(events.YieldLockTierUpdated{Duration: duration, Multiplier: multiplier})
	return nil
}

// RemoveLockDuration drops a tier from both the multiplier table and the
// supported duration list. Existing positions keep their multiplier.
func (e *Engine) RemoveLockDuration(caller common.Address, duration uint64) (err error) {
	done, err := e.enter(false)
	if err != nil {
		return err
	}
	defer done(&err)

	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	tiers, err := e.state.LockTiers()
	if err != nil {
		return err
	}
	kept := tiers[:0]
	found := false
	for _, tier := range tiers {
		if tier.Duration == duration {
			found = true
			continue
		}
		kept = append(kept, tier)
	}
	if !found {
		return ErrUnsupportedDuration
	}
	if err := e.state.PutLockTiers(sortTiers(kept)); err != nil {
		return err
	}
	e.emit(events.YieldLockTierUpdated{Duration: duration})
	return nil
}

// SetParams replaces the versioned parameters. Shrinking the history
// capacity drops the oldest records.
func (e *Engine) SetParams(caller common.Address, params *Params) (err error) {
	done, err := e.enter(false)
	if err != nil {
		return err
	}
	defer done(&err)

	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if err := params.Validate(); err != nil {
		return err
	}
	current, err := e.params()
	if err != nil {
		return err
	}
	next := params.Clone()
	next.Version = current.Version + 1
	if next.HistoryCapacity != current.HistoryCapacity {
		records, err := e.state.APYHistory()
		if err != nil {
			return err
		}
		if err := e.state.PutAPYHistory(NewHistory(next.HistoryCapacity, records).Records()); err != nil {
			return err
		}
	}
	if err := e.state.PutYieldParams(next); err != nil {
		return err
	}
	e.emit(events.ParamsUpdated{Module: moduleName, Version: next.Version})
	return nil
}

// SetAsset approves an asset for conversion or updates its fee rates.
func (e *Engine) SetAsset(caller common.Address, asset Asset) (err error) {
	done, err := e.enter(false)
	if err != nil {
		return err
	}
	defer done(&err)

	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if err := asset.Validate(); err != nil {
		return err
	}
	asset.Symbol = normalizeSymbol(asset.Symbol)
	return e.state.PutYieldAsset(&asset)
}

// RemoveAsset withdraws approval for an asset.
func (e *Engine) RemoveAsset(caller common.Address, symbol string) (err error) {
	done, err := e.enter(false)
	if err != nil {
		return err
	}
	defer done(&err)

	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if _, err := e.approvedAsset(symbol); err != nil {
		return err
	}
	return e.state.DeleteYieldAsset(normalizeSymbol(symbol))
}

// FundReserve moves PUSD from the caller's wallet into the reward reserve.
func (e *Engine) FundReserve(caller common.Address, amount *big.Int) (err error) {
	done, err := e.enter(false)
	if err != nil {
		return err
	}
	defer done(&err)

	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if err := e.state.FundReserve(caller, amount); err != nil {
		return err
	}
	balance, err := e.state.ReserveBalance()
	if err != nil {
		return err
	}
	e.emit(events.YieldReserveFunded{Account: caller, Amount: new(big.Int).Set(amount), Balance: balance})
	return nil
}

// SetPaused toggles user-facing yield flows.
func (e *Engine) SetPaused(caller common.Address, paused bool) (err error) {
	done, err := e.enter(false)
	if err != nil {
		return err
	}
	defer done(&err)

	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	return e.state.SetPaused(moduleName, paused)
}
