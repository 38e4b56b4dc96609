package state

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"pegvault/native/lending"
)

// LendingParams returns the stored risk parameters or nil before genesis.
func (m *Manager) LendingParams() (*lending.Params, error) {
	params := new(lending.Params)
	ok, err := m.KVGet(lendingParamsKey, params)
	if err != nil || !ok {
		return nil, err
	}
	return params, nil
}

func (m *Manager) PutLendingParams(params *lending.Params) error {
	return m.KVPut(lendingParamsKey, params)
}

// Loan returns the loan opened against position id, or nil.
func (m *Manager) Loan(id uint64) (*lending.Loan, error) {
	loan := new(lending.Loan)
	ok, err := m.KVGet(loanKey(id), loan)
	if err != nil || !ok {
		return nil, err
	}
	loan.PositionID = id
	return loan, nil
}

// PutLoan stores loan and indexes it under its borrower.
func (m *Manager) PutLoan(loan *lending.Loan) error {
	if loan == nil || loan.PositionID == 0 {
		return fmt.Errorf("state: loan position id must be set")
	}
	if err := m.KVPut(loanKey(loan.PositionID), loan); err != nil {
		return err
	}
	ids, err := m.BorrowerLoans(loan.Borrower)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if id == loan.PositionID {
			return nil
		}
	}
	return m.KVPut(borrowerLoansKey(loan.Borrower), append(ids, loan.PositionID))
}

// BorrowerLoans lists every position id borrower has borrowed against.
func (m *Manager) BorrowerLoans(borrower common.Address) ([]uint64, error) {
	var ids []uint64
	if _, err := m.KVGet(borrowerLoansKey(borrower), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (m *Manager) LoanTiers() ([]lending.LoanTier, error) {
	var tiers []lending.LoanTier
	if _, err := m.KVGet(loanTiersKey, &tiers); err != nil {
		return nil, err
	}
	return tiers, nil
}

func (m *Manager) PutLoanTiers(tiers []lending.LoanTier) error {
	return m.KVPut(loanTiersKey, tiers)
}

// DebtAsset returns the debt asset record, allowed or not, or nil.
func (m *Manager) DebtAsset(symbol string) (*lending.DebtAsset, error) {
	asset := new(lending.DebtAsset)
	ok, err := m.KVGet(debtAssetKey(symbol), asset)
	if err != nil || !ok {
		return nil, err
	}
	return asset, nil
}

func (m *Manager) PutDebtAsset(asset *lending.DebtAsset) error {
	if err := m.KVPut(debtAssetKey(asset.Symbol), asset); err != nil {
		return err
	}
	return m.updateSymbolList(debtAssetListKey, string(symbolBytes(asset.Symbol)), true)
}

// DebtAssets returns every known debt asset sorted by symbol.
func (m *Manager) DebtAssets() ([]*lending.DebtAsset, error) {
	var symbols []string
	if _, err := m.KVGet(debtAssetListKey, &symbols); err != nil {
		return nil, err
	}
	out := make([]*lending.DebtAsset, 0, len(symbols))
	for _, symbol := range symbols {
		asset, err := m.DebtAsset(symbol)
		if err != nil {
			return nil, err
		}
		if asset != nil {
			out = append(out, asset)
		}
	}
	return out, nil
}
