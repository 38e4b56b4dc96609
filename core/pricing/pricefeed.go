package pricing

import (
	"math/big"
	"strings"
	"sync"

	nativecommon "pegvault/native/common"
)

var (
	ErrPriceUnavailable = nativecommon.NewError(nativecommon.KindOracle, "pricing: price unavailable")
	ErrInvalidPrice     = nativecommon.NewError(nativecommon.KindOracle, "pricing: price must be positive")
	ErrStalePrice       = nativecommon.NewError(nativecommon.KindOracle, "pricing: price is stale")
)

// Quote is an observation of an asset's value in pegged units. Price is an
// 18-decimal fixed-point number of PUSD per whole asset unit.
type Quote struct {
	Price     *big.Int
	Timestamp uint64
}

// Feed resolves the latest quote for an asset. Freshness is enforced by the
// caller against its own maximum age.
type Feed interface {
	Price(asset string) (Quote, error)
}

// CheckQuote rejects non-positive prices and quotes older than maxAge seconds
// relative to now. A zero maxAge only accepts quotes from the current second.
func CheckQuote(q Quote, now, maxAge uint64) error {
	if q.Price == nil || q.Price.Sign() <= 0 {
		return ErrInvalidPrice
	}
	if q.Timestamp == 0 {
		return ErrStalePrice
	}
	if q.Timestamp > now {
		return nil
	}
	if now-q.Timestamp > maxAge {
		return ErrStalePrice
	}
	return nil
}

// Fetch resolves and validates a quote in one step.
func Fetch(feed Feed, asset string, now, maxAge uint64) (Quote, error) {
	if feed == nil {
		return Quote{}, ErrPriceUnavailable
	}
	q, err := feed.Price(asset)
	if err != nil {
		return Quote{}, err
	}
	if err := CheckQuote(q, now, maxAge); err != nil {
		return Quote{}, err
	}
	return Quote{Price: new(big.Int).Set(q.Price), Timestamp: q.Timestamp}, nil
}

// ManualFeed stores prices pushed by an operator or attester.
type ManualFeed struct {
	mu     sync.RWMutex
	quotes map[string]Quote
}

// NewManualFeed constructs an empty feed.
func NewManualFeed() *ManualFeed {
	return &ManualFeed{quotes: make(map[string]Quote)}
}

// RecordPrice stores a wad-denominated price observed at ts.
func (f *ManualFeed) RecordPrice(asset string, price *big.Int, ts uint64) error {
	asset = normalizeAsset(asset)
	if asset == "" {
		return ErrPriceUnavailable
	}
	if price == nil || price.Sign() <= 0 {
		return ErrInvalidPrice
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quotes[asset] = Quote{Price: new(big.Int).Set(price), Timestamp: ts}
	return nil
}

// RecordRate stores a rational price, converting it to 18-decimal fixed point.
func (f *ManualFeed) RecordRate(asset string, rate *big.Rat, ts uint64) error {
	price := ratToWad(rate)
	if price == nil {
		return ErrInvalidPrice
	}
	return f.RecordPrice(asset, price, ts)
}

// Price implements Feed.
func (f *ManualFeed) Price(asset string) (Quote, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	q, ok := f.quotes[normalizeAsset(asset)]
	if !ok {
		return Quote{}, ErrPriceUnavailable
	}
	return Quote{Price: new(big.Int).Set(q.Price), Timestamp: q.Timestamp}, nil
}

func normalizeAsset(asset string) string {
	return strings.ToUpper(strings.TrimSpace(asset))
}

func ratToWad(rate *big.Rat) *big.Int {
	if rate == nil || rate.Sign() <= 0 {
		return nil
	}
	numerator := new(big.Int).Set(rate.Num())
	numerator.Mul(numerator, nativecommon.Wad())
	denominator := rate.Denom()
	if denominator.Sign() == 0 {
		return nil
	}
	return numerator.Quo(numerator, denominator)
}
