package common

import "math/big"

const (
	// BasisPoints is the denominator for every rate expressed in bps.
	BasisPoints = 10_000
	// WadDecimals is the precision of normalised fixed-point values.
	WadDecimals = 18
	// PeggedDecimals is the precision of the PUSD unit.
	PeggedDecimals = 6
	// PeggedSymbol identifies the pegged unit in custody books.
	PeggedSymbol = "PUSD"
)

var (
	ErrDivisionByZero = NewError(KindArithmetic, "division by zero")
	ErrDecimals       = NewError(KindValidation, "unsupported decimal precision")

	wad       = new(big.Int).Exp(big.NewInt(10), big.NewInt(WadDecimals), nil)
	bpsDenom  = big.NewInt(BasisPoints)
	pow10Memo = func() []*big.Int {
		out := make([]*big.Int, WadDecimals+1)
		for i := range out {
			out[i] = new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(i)), nil)
		}
		return out
	}()
)

// Wad returns a fresh copy of 1e18.
func Wad() *big.Int { return new(big.Int).Set(wad) }

// BPS returns a fresh copy of the basis point denominator.
func BPS() *big.Int { return new(big.Int).Set(bpsDenom) }

// Pow10 returns 10^n for 0 <= n <= 18.
func Pow10(n uint8) (*big.Int, error) {
	if int(n) >= len(pow10Memo) {
		return nil, ErrDecimals
	}
	return new(big.Int).Set(pow10Memo[n]), nil
}

// ToWad scales an amount with the given precision up to 18 decimals. The
// conversion is exact.
func ToWad(amount *big.Int, decimals uint8) (*big.Int, error) {
	if decimals > WadDecimals {
		return nil, ErrDecimals
	}
	return new(big.Int).Mul(Amount(amount), pow10Memo[WadDecimals-decimals]), nil
}

// FromWad rescales an 18-decimal value to the given precision, truncating.
func FromWad(value *big.Int, decimals uint8) (*big.Int, error) {
	if decimals > WadDecimals {
		return nil, ErrDecimals
	}
	out := new(big.Int).Mul(Amount(value), pow10Memo[decimals])
	return out.Quo(out, wad), nil
}

// MulDiv computes a*b/denominator, truncating toward zero.
func MulDiv(a, b, denominator *big.Int) (*big.Int, error) {
	if denominator == nil || denominator.Sign() == 0 {
		return nil, ErrDivisionByZero
	}
	out := new(big.Int).Mul(Amount(a), Amount(b))
	return out.Quo(out, denominator), nil
}

// ApplyBps returns amount*bps/10000.
func ApplyBps(amount *big.Int, bps uint64) *big.Int {
	out := new(big.Int).Mul(Amount(amount), new(big.Int).SetUint64(bps))
	return out.Quo(out, bpsDenom)
}

// Amount normalises nil to zero and returns a copy.
func Amount(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// MinBig returns the smaller of a and b.
func MinBig(a, b *big.Int) *big.Int {
	if Amount(a).Cmp(Amount(b)) <= 0 {
		return Amount(a)
	}
	return Amount(b)
}
