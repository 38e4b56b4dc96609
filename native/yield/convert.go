package yield

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"pegvault/core/events"
	"pegvault/core/pricing"
	nativecommon "pegvault/native/common"
)

func (e *Engine) approvedAsset(symbol string) (*Asset, error) {
	symbol = normalizeSymbol(symbol)
	if symbol == "" || symbol == nativecommon.PeggedSymbol {
		return nil, ErrUnsupportedAsset
	}
	asset, err := e.state.YieldAsset(symbol)
	if err != nil {
		return nil, err
	}
	if asset == nil {
		return nil, ErrUnsupportedAsset
	}
	return asset, nil
}

// Deposit converts amount of an approved asset into PUSD at the feed price
// after deducting the deposit fee. The minted PUSD lands in the caller's
// wallet. Only the part of amount that converts exactly is taken into
// custody; sub-unit dust stays with the caller.
func (e *Engine) Deposit(caller common.Address, symbol string, amount *big.Int) (minted *big.Int, err error) {
	done, err := e.enter(true)
	if err != nil {
		return nil, err
	}
	defer done(&err)

	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	asset, err := e.approvedAsset(symbol)
	if err != nil {
		return nil, err
	}
	quote, err := pricing.Fetch(e.feed, asset.Symbol, e.now(), e.maxPriceAge)
	if err != nil {
		return nil, err
	}
	fee := nativecommon.ApplyBps(amount, asset.DepositFeeBps)
	net := new(big.Int).Sub(amount, fee)
	minted, err = assetToPegged(net, asset.Decimals, quote.Price)
	if err != nil {
		return nil, err
	}
	if minted.Sign() == 0 {
		return nil, ErrInvalidAmount
	}
	backing, err := peggedToAsset(minted, asset.Decimals, quote.Price)
	if err != nil {
		return nil, err
	}
	taken := new(big.Int).Add(fee, backing)

	if err := e.state.DepositFor(caller, asset.Symbol, taken); err != nil {
		return nil, err
	}
	if fee.Sign() > 0 {
		if err := e.state.AddFee(asset.Symbol, fee); err != nil {
			return nil, err
		}
	}
	if err := e.state.MintPegged(caller, minted); err != nil {
		return nil, err
	}
	e.emit(events.YieldDeposited{Account: caller, Asset: asset.Symbol, Amount: taken, Fee: fee, Minted: new(big.Int).Set(minted)})
	return minted, nil
}

// Withdraw burns pegged PUSD from the caller and pays out the equivalent
// amount of an approved asset minus the withdrawal fee.
func (e *Engine) Withdraw(caller common.Address, symbol string, pegged *big.Int) (paid *big.Int, err error) {
	done, err := e.enter(true)
	if err != nil {
		return nil, err
	}
	defer done(&err)

	if pegged == nil || pegged.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	asset, err := e.approvedAsset(symbol)
	if err != nil {
		return nil, err
	}
	quote, err := pricing.Fetch(e.feed, asset.Symbol, e.now(), e.maxPriceAge)
	if err != nil {
		return nil, err
	}
	gross, err := peggedToAsset(pegged, asset.Decimals, quote.Price)
	if err != nil {
		return nil, err
	}
	if gross.Sign() == 0 {
		return nil, ErrInvalidAmount
	}
	fee := nativecommon.ApplyBps(gross, asset.WithdrawFeeBps)
	paid = new(big.Int).Sub(gross, fee)

	if err := e.state.BurnPegged(caller, pegged); err != nil {
		return nil, err
	}
	if err := e.state.WithdrawTo(caller, asset.Symbol, paid); err != nil {
		return nil, err
	}
	if fee.Sign() > 0 {
		if err := e.state.AddFee(asset.Symbol, fee); err != nil {
			return nil, err
		}
	}
	e.emit(events.YieldWithdrawn{Account: caller, Asset: asset.Symbol, Burned: new(big.Int).Set(pegged), Fee: fee, Paid: new(big.Int).Set(paid)})
	return paid, nil
}

// TotalLockedValue sums the custodied balances of every approved asset and of
// PUSD itself, valued in 18-decimal pegged units.
func (e *Engine) TotalLockedValue() (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	balances, err := e.state.AssetValueTotals()
	if err != nil {
		return nil, err
	}
	total := big.NewInt(0)
	if pegged, ok := balances[nativecommon.PeggedSymbol]; ok {
		value, err := nativecommon.ToWad(pegged, nativecommon.PeggedDecimals)
		if err != nil {
			return nil, err
		}
		total.Add(total, value)
	}
	assets, err := e.state.YieldAssets()
	if err != nil {
		return nil, err
	}
	for _, asset := range assets {
		balance, ok := balances[asset.Symbol]
		if !ok || balance.Sign() == 0 {
			continue
		}
		quote, err := pricing.Fetch(e.feed, asset.Symbol, e.now(), e.maxPriceAge)
		if err != nil {
			return nil, err
		}
		scaled, err := nativecommon.ToWad(balance, asset.Decimals)
		if err != nil {
			return nil, err
		}
		value, err := nativecommon.MulDiv(scaled, quote.Price, nativecommon.Wad())
		if err != nil {
			return nil, err
		}
		total.Add(total, value)
	}
	return total, nil
}

// assetToPegged values amount (asset decimals) in PUSD (6 decimals).
func assetToPegged(amount *big.Int, decimals uint8, price *big.Int) (*big.Int, error) {
	scaled, err := nativecommon.ToWad(amount, decimals)
	if err != nil {
		return nil, err
	}
	value, err := nativecommon.MulDiv(scaled, price, nativecommon.Wad())
	if err != nil {
		return nil, err
	}
	return nativecommon.FromWad(value, nativecommon.PeggedDecimals)
}

// peggedToAsset converts PUSD (6 decimals) into asset units at price.
func peggedToAsset(pegged *big.Int, decimals uint8, price *big.Int) (*big.Int, error) {
	scaled, err := nativecommon.ToWad(pegged, nativecommon.PeggedDecimals)
	if err != nil {
		return nil, err
	}
	value, err := nativecommon.MulDiv(scaled, nativecommon.Wad(), price)
	if err != nil {
		return nil, err
	}
	return nativecommon.FromWad(value, decimals)
}
