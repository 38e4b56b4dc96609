package yield

import "math/big"

// Config captures the genesis configuration for the yield module.
type Config struct {
	ChainID            uint64         `toml:"ChainID"`
	MinStake           *big.Int       `toml:"MinStake"`
	HistoryCapacity    uint64         `toml:"HistoryCapacity"`
	InitialAPYBps      uint64         `toml:"InitialAPYBps"`
	BridgeFeeBps       uint64         `toml:"BridgeFeeBps"`
	MaxPriceAgeSeconds uint64         `toml:"MaxPriceAgeSeconds"`
	LockTiers          []LockTierSpec `toml:"lock_tier"`
	Assets             []AssetSpec    `toml:"asset"`
}

// LockTierSpec is the TOML form of a lock tier.
type LockTierSpec struct {
	DurationSeconds uint64 `toml:"DurationSeconds"`
	MultiplierBps   uint64 `toml:"MultiplierBps"`
}

// AssetSpec is the TOML form of an approved asset.
type AssetSpec struct {
	Symbol         string `toml:"Symbol"`
	Decimals       uint8  `toml:"Decimals"`
	DepositFeeBps  uint64 `toml:"DepositFeeBps"`
	WithdrawFeeBps uint64 `toml:"WithdrawFeeBps"`
}

// DefaultConfig returns the parameters used when no file overrides them.
func DefaultConfig() Config {
	return Config{
		ChainID:            1,
		MinStake:           big.NewInt(10_000_000), // 10 PUSD
		HistoryCapacity:    64,
		InitialAPYBps:      500,
		BridgeFeeBps:       10,
		MaxPriceAgeSeconds: 3600,
		LockTiers: []LockTierSpec{
			{DurationSeconds: 30 * 24 * 60 * 60, MultiplierBps: 10_000},
			{DurationSeconds: 90 * 24 * 60 * 60, MultiplierBps: 12_500},
			{DurationSeconds: 180 * 24 * 60 * 60, MultiplierBps: 15_000},
		},
	}
}

// Params converts the file form into the versioned parameter struct.
func (c Config) Params() *Params {
	return &Params{
		MinStake:        c.MinStake,
		HistoryCapacity: c.HistoryCapacity,
		BridgeFeeBps:    c.BridgeFeeBps,
		ChainID:         c.ChainID,
	}
}

// Tiers converts the configured lock tiers.
func (c Config) Tiers() []LockTier {
	out := make([]LockTier, 0, len(c.LockTiers))
	for _, spec := range c.LockTiers {
		out = append(out, LockTier{Duration: spec.DurationSeconds, Multiplier: spec.MultiplierBps})
	}
	return out
}

// ApprovedAssets converts the configured assets.
func (c Config) ApprovedAssets() []Asset {
	out := make([]Asset, 0, len(c.Assets))
	for _, spec := range c.Assets {
		out = append(out, Asset{
			Symbol:         spec.Symbol,
			Decimals:       spec.Decimals,
			DepositFeeBps:  spec.DepositFeeBps,
			WithdrawFeeBps: spec.WithdrawFeeBps,
		})
	}
	return out
}

// Validate checks the file form before it reaches state.
func (c Config) Validate() error {
	if err := c.Params().Validate(); err != nil {
		return err
	}
	if c.MaxPriceAgeSeconds == 0 {
		return ErrInvalidParams
	}
	for _, tier := range c.LockTiers {
		if tier.DurationSeconds == 0 || tier.MultiplierBps == 0 {
			return ErrInvalidMultiplier
		}
	}
	for _, asset := range c.ApprovedAssets() {
		asset := asset
		if err := asset.Validate(); err != nil {
			return err
		}
	}
	return nil
}
