package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"pegvault/native/lending"
	"pegvault/native/yield"
)

func writeParams(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "params.toml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write params: %v", err)
	}
	return path
}

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "params.toml")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, uint64(12_500), cfg.Lending.LiquidationRatioBps)

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected default file to be written: %v", err)
	}
	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.Yield.MinStake.String(), reloaded.Yield.MinStake.String())
	require.Equal(t, cfg.Yield.LockTiers, reloaded.Yield.LockTiers)
	require.Equal(t, cfg.Lending.LoanTiers, reloaded.Lending.LoanTiers)
}

func TestLoadOverridesSections(t *testing.T) {
	path := writeParams(t, `
[yield]
ChainID = 7
MinStake = "5000000"
HistoryCapacity = 16
InitialAPYBps = 800

[[yield.lock_tier]]
DurationSeconds = 2592000
MultiplierBps = 10000

[[yield.asset]]
Symbol = "usdc"
Decimals = 6

[lending]
LiquidationRatioBps = 12000
TargetCollateralRatioBps = 12600
LiquidationBonusBps = 200
PenaltyRatePerDayBps = 25
LoanGracePeriodSeconds = 604800
PenaltyGracePeriodSeconds = 86400
MaxPriceAgeSeconds = 600

[[lending.loan_tier]]
DurationSeconds = 2592000
RateBps = 150

[[lending.debt_asset]]
Symbol = "USDX"
Decimals = 6
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, uint64(7), cfg.Yield.ChainID)
	require.Equal(t, "5000000", cfg.Yield.MinStake.String())
	require.Len(t, cfg.Yield.LockTiers, 1)
	require.Len(t, cfg.Yield.ApprovedAssets(), 1)
	require.Equal(t, uint64(86400), cfg.Lending.Params().PenaltyGracePeriod)
	require.Equal(t, []lending.LoanTier{{Duration: 2592000, RateBps: 150}}, cfg.Lending.Tiers())
	require.True(t, cfg.Lending.Assets()[0].Allowed)
}

func TestLoadRejectsInvalidParams(t *testing.T) {
	path := writeParams(t, `
[lending]
LiquidationRatioBps = 13000
TargetCollateralRatioBps = 12000
`)
	if _, err := Load(path); !errors.Is(err, lending.ErrInvalidParams) {
		t.Fatalf("expected ErrInvalidParams, got %v", err)
	}
}

func TestLoadRejectsZeroPriceAge(t *testing.T) {
	path := writeParams(t, `
[yield]
MaxPriceAgeSeconds = 0
`)
	if _, err := Load(path); !errors.Is(err, yield.ErrInvalidParams) {
		t.Fatalf("expected yield ErrInvalidParams, got %v", err)
	}

	path = writeParams(t, `
[lending]
MaxPriceAgeSeconds = 0
`)
	if _, err := Load(path); !errors.Is(err, lending.ErrInvalidParams) {
		t.Fatalf("expected lending ErrInvalidParams, got %v", err)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeParams(t, `
[lending]
LiquidationRatio = 12500
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected unknown key to be rejected")
	}
}

func TestEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
}
