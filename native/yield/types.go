package yield

import (
	"math/big"
	"sort"
	"strings"

	nativecommon "pegvault/native/common"
)

// Position is a single time-locked stake. The same record backs a loan when
// the lending engine holds custody of it.
type Position struct {
	ID               uint64
	Principal        *big.Int
	StartTime        uint64
	LockDuration     uint64
	LastClaimTime    uint64
	RewardMultiplier uint64
	Active           bool
	PendingReward    *big.Int
}

// UnlockTime returns the end of the lock; no reward accrues from it onwards.
func (p *Position) UnlockTime() uint64 {
	if p == nil {
		return 0
	}
	return p.StartTime + p.LockDuration
}

// Clone returns a deep copy of the position.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	clone := *p
	clone.Principal = nativecommon.Amount(p.Principal)
	clone.PendingReward = nativecommon.Amount(p.PendingReward)
	return &clone
}

func (p *Position) normalize() {
	if p.Principal == nil {
		p.Principal = big.NewInt(0)
	}
	if p.PendingReward == nil {
		p.PendingReward = big.NewInt(0)
	}
}

// APYRecord is the base rate in force from Timestamp until the next record.
type APYRecord struct {
	APY       uint64
	Timestamp uint64
}

// LockTier maps a lock duration onto its reward multiplier.
type LockTier struct {
	Duration   uint64
	Multiplier uint64
}

// Asset is an approved deposit asset.
type Asset struct {
	Symbol         string
	Decimals       uint8
	DepositFeeBps  uint64
	WithdrawFeeBps uint64
}

// Totals holds the global staking aggregates.
type Totals struct {
	CurrentAPY          uint64
	TotalStaked         *big.Int
	TotalPendingRewards *big.Int
}

// Clone returns a deep copy of the totals.
func (t *Totals) Clone() *Totals {
	if t == nil {
		return nil
	}
	return &Totals{
		CurrentAPY:          t.CurrentAPY,
		TotalStaked:         nativecommon.Amount(t.TotalStaked),
		TotalPendingRewards: nativecommon.Amount(t.TotalPendingRewards),
	}
}

// Params is the versioned yield configuration. Every administrative change
// bumps Version.
type Params struct {
	Version         uint64
	MinStake        *big.Int
	HistoryCapacity uint64
	BridgeFeeBps    uint64
	ChainID         uint64
}

// Clone returns a deep copy of the params.
func (p *Params) Clone() *Params {
	if p == nil {
		return nil
	}
	clone := *p
	clone.MinStake = nativecommon.Amount(p.MinStake)
	return &clone
}

// Validate checks the parameter bounds.
func (p *Params) Validate() error {
	if p == nil {
		return ErrInvalidParams
	}
	if p.MinStake == nil || p.MinStake.Sign() < 0 {
		return ErrInvalidParams
	}
	if p.HistoryCapacity == 0 {
		return ErrInvalidParams
	}
	if p.BridgeFeeBps >= nativecommon.BasisPoints {
		return ErrInvalidParams
	}
	if p.ChainID == 0 {
		return ErrInvalidParams
	}
	return nil
}

// Validate checks the asset metadata.
func (a *Asset) Validate() error {
	if a == nil || normalizeSymbol(a.Symbol) == "" {
		return ErrInvalidAsset
	}
	if a.Decimals > nativecommon.WadDecimals {
		return ErrInvalidAsset
	}
	if a.DepositFeeBps >= nativecommon.BasisPoints || a.WithdrawFeeBps >= nativecommon.BasisPoints {
		return ErrInvalidAsset
	}
	if normalizeSymbol(a.Symbol) == nativecommon.PeggedSymbol {
		return ErrInvalidAsset
	}
	return nil
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// sortTiers orders tiers by duration and drops unsupported entries.
func sortTiers(tiers []LockTier) []LockTier {
	out := make([]LockTier, 0, len(tiers))
	for _, tier := range tiers {
		if tier.Multiplier == 0 {
			continue
		}
		out = append(out, tier)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Duration < out[j].Duration })
	return out
}
