package lending

// Config captures the genesis configuration for the lending module.
type Config struct {
	LiquidationRatioBps      uint64          `toml:"LiquidationRatioBps"`
	TargetCollateralRatioBps uint64          `toml:"TargetCollateralRatioBps"`
	LiquidationBonusBps      uint64          `toml:"LiquidationBonusBps"`
	PenaltyRatePerDayBps     uint64          `toml:"PenaltyRatePerDayBps"`
	LoanGracePeriodSeconds   uint64          `toml:"LoanGracePeriodSeconds"`
	PenaltyGraceSeconds      uint64          `toml:"PenaltyGracePeriodSeconds"`
	MaxPriceAgeSeconds       uint64          `toml:"MaxPriceAgeSeconds"`
	LoanTiers                []LoanTierSpec  `toml:"loan_tier"`
	DebtAssets               []DebtAssetSpec `toml:"debt_asset"`
}

// LoanTierSpec is the TOML form of a loan tier.
type LoanTierSpec struct {
	DurationSeconds uint64 `toml:"DurationSeconds"`
	RateBps         uint64 `toml:"RateBps"`
}

// DebtAssetSpec is the TOML form of a debt asset.
type DebtAssetSpec struct {
	Symbol   string `toml:"Symbol"`
	Decimals uint8  `toml:"Decimals"`
}

// DefaultConfig returns the parameters used when no file overrides them.
func DefaultConfig() Config {
	const day = 24 * 60 * 60
	return Config{
		LiquidationRatioBps:      12_500,
		TargetCollateralRatioBps: 13_000,
		LiquidationBonusBps:      300,
		PenaltyRatePerDayBps:     50,
		LoanGracePeriodSeconds:   7 * day,
		PenaltyGraceSeconds:      3 * day,
		MaxPriceAgeSeconds:       3600,
		LoanTiers: []LoanTierSpec{
			{DurationSeconds: 30 * day, RateBps: 110},
			{DurationSeconds: 90 * day, RateBps: 400},
		},
	}
}

// Params converts the file form into the risk parameter struct.
func (c Config) Params() *Params {
	return &Params{
		LiquidationRatioBps:      c.LiquidationRatioBps,
		TargetCollateralRatioBps: c.TargetCollateralRatioBps,
		LiquidationBonusBps:      c.LiquidationBonusBps,
		PenaltyRatePerDayBps:     c.PenaltyRatePerDayBps,
		LoanGracePeriod:          c.LoanGracePeriodSeconds,
		PenaltyGracePeriod:       c.PenaltyGraceSeconds,
		MaxPriceAge:              c.MaxPriceAgeSeconds,
	}
}

// Tiers converts the configured loan tiers.
func (c Config) Tiers() []LoanTier {
	out := make([]LoanTier, 0, len(c.LoanTiers))
	for _, spec := range c.LoanTiers {
		out = append(out, LoanTier{Duration: spec.DurationSeconds, RateBps: spec.RateBps})
	}
	return out
}

// Assets converts the configured debt assets; all start allowed.
func (c Config) Assets() []DebtAsset {
	out := make([]DebtAsset, 0, len(c.DebtAssets))
	for _, spec := range c.DebtAssets {
		out = append(out, DebtAsset{Symbol: spec.Symbol, Decimals: spec.Decimals, Allowed: true})
	}
	return out
}

// Validate checks the file before it is applied.
func (c Config) Validate() error {
	if err := c.Params().Validate(); err != nil {
		return err
	}
	for _, tier := range c.LoanTiers {
		if tier.DurationSeconds == 0 {
			return ErrInvalidTier
		}
	}
	for _, asset := range c.DebtAssets {
		if normalizeSymbol(asset.Symbol) == "" || asset.Decimals > 18 {
			return ErrInvalidAsset
		}
	}
	return nil
}
