package state

import (
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"pegvault/native/yield"
)

// YieldParams returns the stored yield parameters or nil before genesis.
func (m *Manager) YieldParams() (*yield.Params, error) {
	params := new(yield.Params)
	ok, err := m.KVGet(yieldParamsKey, params)
	if err != nil || !ok {
		return nil, err
	}
	return params, nil
}

func (m *Manager) PutYieldParams(params *yield.Params) error {
	return m.KVPut(yieldParamsKey, params)
}

func (m *Manager) YieldTotals() (*yield.Totals, error) {
	totals := new(yield.Totals)
	ok, err := m.KVGet(yieldTotalsKey, totals)
	if err != nil || !ok {
		return nil, err
	}
	return totals, nil
}

func (m *Manager) PutYieldTotals(totals *yield.Totals) error {
	return m.KVPut(yieldTotalsKey, totals)
}

// APYHistory returns the stored history, oldest first.
func (m *Manager) APYHistory() ([]yield.APYRecord, error) {
	var records []yield.APYRecord
	if _, err := m.KVGet(apyHistoryKey, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (m *Manager) PutAPYHistory(records []yield.APYRecord) error {
	return m.KVPut(apyHistoryKey, records)
}

func (m *Manager) LockTiers() ([]yield.LockTier, error) {
	var tiers []yield.LockTier
	if _, err := m.KVGet(lockTiersKey, &tiers); err != nil {
		return nil, err
	}
	return tiers, nil
}

func (m *Manager) PutLockTiers(tiers []yield.LockTier) error {
	return m.KVPut(lockTiersKey, tiers)
}

// PoolTotal returns the principal staked under the given lock duration.
func (m *Manager) PoolTotal(duration uint64) (*big.Int, error) {
	return m.balance(poolKey(duration))
}

func (m *Manager) PutPoolTotal(duration uint64, amount *big.Int) error {
	return m.putBalance(poolKey(duration), amount)
}

// YieldAsset returns the approved asset or nil.
func (m *Manager) YieldAsset(symbol string) (*yield.Asset, error) {
	asset := new(yield.Asset)
	ok, err := m.KVGet(yieldAssetKey(symbol), asset)
	if err != nil || !ok {
		return nil, err
	}
	return asset, nil
}

func (m *Manager) PutYieldAsset(asset *yield.Asset) error {
	if err := m.KVPut(yieldAssetKey(asset.Symbol), asset); err != nil {
		return err
	}
	return m.updateSymbolList(yieldAssetListKey, string(symbolBytes(asset.Symbol)), true)
}

func (m *Manager) DeleteYieldAsset(symbol string) error {
	if err := m.KVDelete(yieldAssetKey(symbol)); err != nil {
		return err
	}
	return m.updateSymbolList(yieldAssetListKey, string(symbolBytes(symbol)), false)
}

// YieldAssets returns every approved asset sorted by symbol.
func (m *Manager) YieldAssets() ([]*yield.Asset, error) {
	var symbols []string
	if _, err := m.KVGet(yieldAssetListKey, &symbols); err != nil {
		return nil, err
	}
	assets := make([]*yield.Asset, 0, len(symbols))
	for _, symbol := range symbols {
		asset, err := m.YieldAsset(symbol)
		if err != nil {
			return nil, err
		}
		if asset != nil {
			assets = append(assets, asset)
		}
	}
	return assets, nil
}

// NextBridgeNonce returns the next outbound nonce for destChain, starting at
// one, and advances the counter.
func (m *Manager) NextBridgeNonce(destChain uint64) (uint64, error) {
	var last uint64
	if _, err := m.KVGet(bridgeNonceKey(destChain), &last); err != nil {
		return 0, err
	}
	next := last + 1
	if err := m.KVPut(bridgeNonceKey(destChain), next); err != nil {
		return 0, err
	}
	return next, nil
}

func (m *Manager) BridgeCompleted(key common.Hash) (bool, error) {
	return m.KVGet(bridgeDoneKey(key), nil)
}

func (m *Manager) MarkBridgeCompleted(key common.Hash) error {
	return m.KVPut(bridgeDoneKey(key), true)
}

func (m *Manager) updateSymbolList(listKey []byte, symbol string, add bool) error {
	var symbols []string
	if _, err := m.KVGet(listKey, &symbols); err != nil {
		return err
	}
	idx := sort.SearchStrings(symbols, symbol)
	present := idx < len(symbols) && symbols[idx] == symbol
	switch {
	case add && !present:
		symbols = append(symbols, "")
		copy(symbols[idx+1:], symbols[idx:])
		symbols[idx] = symbol
	case !add && present:
		symbols = append(symbols[:idx], symbols[idx+1:]...)
	default:
		return nil
	}
	return m.KVPut(listKey, symbols)
}
