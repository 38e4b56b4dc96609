package state

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	nativecommon "pegvault/native/common"
)

var (
	// ErrInsufficientBalance is returned when a wallet, vault or reserve
	// balance cannot cover a debit.
	ErrInsufficientBalance = nativecommon.NewError(nativecommon.KindResource, "state: insufficient balance")
	errInvalidAmount       = nativecommon.NewError(nativecommon.KindValidation, "state: amount must be positive")
)

func (m *Manager) balance(key []byte) (*big.Int, error) {
	value := new(big.Int)
	ok, err := m.KVGet(key, value)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return value, nil
}

func (m *Manager) putBalance(key []byte, value *big.Int) error {
	if value == nil || value.Sign() == 0 {
		return m.KVDelete(key)
	}
	if value.Sign() < 0 {
		return fmt.Errorf("state: negative balance")
	}
	return m.KVPut(key, value)
}

func (m *Manager) credit(key []byte, amount *big.Int) error {
	current, err := m.balance(key)
	if err != nil {
		return err
	}
	return m.putBalance(key, current.Add(current, amount))
}

func (m *Manager) debit(key []byte, amount *big.Int) error {
	current, err := m.balance(key)
	if err != nil {
		return err
	}
	if current.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	return m.putBalance(key, current.Sub(current, amount))
}

func checkAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	return nil
}

// WalletBalance returns the free balance of user in asset.
func (m *Manager) WalletBalance(user common.Address, asset string) (*big.Int, error) {
	return m.balance(walletKey(user, asset))
}

// VaultBalance returns the amount of asset held in custody.
func (m *Manager) VaultBalance(asset string) (*big.Int, error) {
	return m.balance(vaultKey(asset))
}

// FeeBalance returns the fees booked for asset.
func (m *Manager) FeeBalance(asset string) (*big.Int, error) {
	return m.balance(feeKey(asset))
}

// ReserveBalance returns the PUSD available for reward payouts.
func (m *Manager) ReserveBalance() (*big.Int, error) {
	return m.balance(reserveKey)
}

// PeggedSupply returns the outstanding PUSD minted by the ledger.
func (m *Manager) PeggedSupply() (*big.Int, error) {
	return m.balance(peggedSupplyKey)
}

// Credit records an external inflow into the user's wallet, such as an
// asset transfer observed on another system.
func (m *Manager) Credit(user common.Address, asset string, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	return m.credit(walletKey(user, asset), amount)
}

// DepositFor moves amount from the user's wallet into custody.
func (m *Manager) DepositFor(user common.Address, asset string, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if err := m.debit(walletKey(user, asset), amount); err != nil {
		return err
	}
	if err := m.trackVaultAsset(asset); err != nil {
		return err
	}
	return m.credit(vaultKey(asset), amount)
}

// WithdrawTo pays amount out of custody into the user's wallet.
func (m *Manager) WithdrawTo(user common.Address, asset string, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if err := m.debit(vaultKey(asset), amount); err != nil {
		return fmt.Errorf("withdraw %s: %w", string(symbolBytes(asset)), err)
	}
	return m.credit(walletKey(user, asset), amount)
}

// AddFee books amount of asset as protocol fees. The funds themselves stay in
// custody.
func (m *Manager) AddFee(asset string, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return errInvalidAmount
	}
	return m.credit(feeKey(asset), amount)
}

// FundReserve moves PUSD from a wallet into the reward reserve.
func (m *Manager) FundReserve(from common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if err := m.debit(walletKey(from, nativecommon.PeggedSymbol), amount); err != nil {
		return err
	}
	return m.credit(reserveKey, amount)
}

// DistributeFromReserve pays amount of PUSD from the reserve. It reports
// false, leaving state untouched, when the reserve cannot cover it.
func (m *Manager) DistributeFromReserve(to common.Address, amount *big.Int) bool {
	if amount == nil || amount.Sign() <= 0 {
		return amount != nil && amount.Sign() == 0
	}
	reserve, err := m.ReserveBalance()
	if err != nil || reserve.Cmp(amount) < 0 {
		return false
	}
	if err := m.putBalance(reserveKey, reserve.Sub(reserve, amount)); err != nil {
		return false
	}
	if err := m.credit(walletKey(to, nativecommon.PeggedSymbol), amount); err != nil {
		return false
	}
	return true
}

// MintPegged creates new PUSD in the recipient's wallet.
func (m *Manager) MintPegged(to common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if err := m.credit(walletKey(to, nativecommon.PeggedSymbol), amount); err != nil {
		return err
	}
	return m.credit(peggedSupplyKey, amount)
}

// BurnPegged destroys PUSD held in the wallet of from.
func (m *Manager) BurnPegged(from common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if err := m.debit(walletKey(from, nativecommon.PeggedSymbol), amount); err != nil {
		return err
	}
	return m.debit(peggedSupplyKey, amount)
}

// AssetValueTotals returns the custodied balance of every asset that has
// ever been deposited, keyed by symbol.
func (m *Manager) AssetValueTotals() (map[string]*big.Int, error) {
	var symbols []string
	if _, err := m.KVGet(vaultAssetsKey, &symbols); err != nil {
		return nil, err
	}
	totals := make(map[string]*big.Int, len(symbols))
	for _, symbol := range symbols {
		balance, err := m.VaultBalance(symbol)
		if err != nil {
			return nil, err
		}
		totals[symbol] = balance
	}
	return totals, nil
}

func (m *Manager) trackVaultAsset(asset string) error {
	return m.updateSymbolList(vaultAssetsKey, string(symbolBytes(asset)), true)
}
