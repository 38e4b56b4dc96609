package lending

import (
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"pegvault/core/events"
	nativecommon "pegvault/native/common"
)

// Initialize writes the genesis risk parameters, loan tiers and debt
// assets. It fails once parameters exist.
func (e *Engine) Initialize(params *Params, tiers []LoanTier, assets []DebtAsset) (err error) {
	done, err := e.enter(false)
	if err != nil {
		return err
	}
	defer done(&err)

	existing, err := e.state.LendingParams()
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
		if tier.Duration == 0 {
			return ErrInvalidTier
		}
	}
	for _, asset := range assets {
		if normalizeSymbol(asset.Symbol) == "" || asset.Decimals > nativecommon.WadDecimals {
			return ErrInvalidAsset
		}
	}
	next := *params
	next.Version = 1
	if err := e.state.PutLendingParams(&next); err != nil {
		return err
	}
	sorted := append([]LoanTier(nil), tiers...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Duration < sorted[j].Duration })
	if err := e.state.PutLoanTiers(sorted); err != nil {
		return err
	}
	for _, asset := range assets {
		asset.Symbol = normalizeSymbol(asset.Symbol)
		if err := e.state.PutDebtAsset(&asset); err != nil {
			return err
		}
	}
	e.emit(events.ParamsUpdated{Module: moduleName, Version: next.Version})
	return nil
}

func (e *Engine) requireAdmin(caller common.Address) error {
	return nativecommon.RequireRole(e.state, nativecommon.RoleAdmin, caller)
}

// SetParams replaces the risk parameters and bumps their version.
func (e *Engine) SetParams(caller common.Address, params Params) (err error) {
	done, err := e.enter(false)
	if err != nil {
		return err
	}
	defer done(&err)

	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	current, err := e.params()
	if err != nil {
		return err
	}
	if err := params.Validate(); err != nil {
		return err
	}
	params.Version = current.Version + 1
	if err := e.state.PutLendingParams(&params); err != nil {
		return err
	}
	e.emit(events.ParamsUpdated{Module: moduleName, Version: params.Version})
	return nil
}

// SetLoanTier adds or reprices a loan duration. Existing loans keep the
// rate they were opened with.
func (e *Engine) SetLoanTier(caller common.Address, duration, rateBps uint64) (err error) {
	done, err := e.enter(false)
	if err != nil {
		return err
	}
	defer done(&err)

	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if duration == 0 {
		return ErrInvalidTier
	}
	tiers, err := e.state.LoanTiers()
	if err != nil {
		return err
	}
	replaced := false
	for i := range tiers {
		if tiers[i].Duration == duration {
			tiers[i].RateBps = rateBps
			replaced = true
		}
	}
	if !replaced {
		tiers = append(tiers, LoanTier{Duration: duration, RateBps: rateBps})
		sort.Slice(tiers, func(i, j int) bool { return tiers[i].Duration < tiers[j].Duration })
	}
	if err := e.state.PutLoanTiers(tiers); err != nil {
		return err
	}
	e.emit(events.LoanTierUpdated{Duration: duration, RateBps: rateBps})
	return nil
}

// RemoveLoanTier forbids new loans of duration.
func (e *Engine) RemoveLoanTier(caller common.Address, duration uint64) (err error) {
	done, err := e.enter(false)
	if err != nil {
		return err
	}
	defer done(&err)

	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	tiers, err := e.state.LoanTiers()
	if err != nil {
		return err
	}
	kept := tiers[:0]
	for _, tier := range tiers {
		if tier.Duration != duration {
			kept = append(kept, tier)
		}
	}
	if len(kept) == len(tiers) {
		return ErrUnsupportedDuration
	}
	if err := e.state.PutLoanTiers(kept); err != nil {
		return err
	}
	e.emit(events.LoanTierUpdated{Duration: duration, Removed: true})
	return nil
}

// AllowDebtAsset permits borrowing symbol with the given precision.
func (e *Engine) AllowDebtAsset(caller common.Address, symbol string, decimals uint8) (err error) {
	return e.setDebtAsset(caller, symbol, decimals, true)
}

// DenyDebtAsset stops new borrows of symbol. Open loans in the asset are
// unaffected.
func (e *Engine) DenyDebtAsset(caller common.Address, symbol string) (err error) {
	return e.setDebtAsset(caller, symbol, 0, false)
}

func (e *Engine) setDebtAsset(caller common.Address, symbol string, decimals uint8, allowed bool) (err error) {
	done, err := e.enter(false)
	if err != nil {
		return err
	}
	defer done(&err)

	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	symbol = normalizeSymbol(symbol)
	if symbol == "" {
		return ErrInvalidAsset
	}
	asset, err := e.state.DebtAsset(symbol)
	if err != nil {
		return err
	}
	if asset == nil {
		if !allowed {
			return ErrAssetNotAllowed
		}
		asset = &DebtAsset{Symbol: symbol}
	}
	if allowed {
		if decimals > nativecommon.WadDecimals {
			return ErrInvalidAsset
		}
		asset.Decimals = decimals
	}
	asset.Allowed = allowed
	if err := e.state.PutDebtAsset(asset); err != nil {
		return err
	}
	e.emit(events.DebtAssetUpdated{Asset: symbol, Decimals: asset.Decimals, Allowed: allowed})
	return nil
}

// SetPaused toggles the lending pause switch.
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
