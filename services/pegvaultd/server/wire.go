package server

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"pegvault/crypto"
	"pegvault/native/lending"
	"pegvault/native/yield"
)

const maxRequestBody = 1 << 20

type priceRequest struct {
	Asset string `json:"asset"`
	// Price is PUSD per whole asset unit in 18 decimals; Rate is the same
	// value as a decimal string. Exactly one must be set.
	Price string `json:"price,omitempty"`
	Rate  string `json:"rate,omitempty"`
}

type convertRequest struct {
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
}

type stakeRequest struct {
	Amount       string `json:"amount"`
	LockDuration uint64 `json:"lockDuration"`
}

type positionRequest struct {
	PositionID uint64 `json:"positionId"`
}

type renewRequest struct {
	PositionID      uint64 `json:"positionId"`
	Compound        bool   `json:"compound"`
	NewLockDuration uint64 `json:"newLockDuration"`
}

type bridgeOutRequest struct {
	Amount    string `json:"amount"`
	DestChain uint64 `json:"destChain"`
}

type bridgeCompleteRequest struct {
	SourceChain uint64 `json:"sourceChain"`
	Nonce       uint64 `json:"nonce"`
	Recipient   string `json:"recipient"`
	Amount      string `json:"amount"`
}

type borrowRequest struct {
	PositionID   uint64 `json:"positionId"`
	Asset        string `json:"asset"`
	Amount       string `json:"amount"`
	LoanDuration uint64 `json:"loanDuration"`
}

type repayRequest struct {
	PositionID uint64 `json:"positionId"`
	// Amount empty repays the whole debt.
	Amount string `json:"amount,omitempty"`
}

type apyRequest struct {
	APY uint64 `json:"apy"`
}

type amountResponse struct {
	Amount string `json:"amount"`
}

type stakeResponse struct {
	PositionID uint64 `json:"positionId"`
}

type unstakeResponse struct {
	Principal  string `json:"principal"`
	Reward     string `json:"reward"`
	RewardPaid bool   `json:"rewardPaid"`
}

type bridgeOutResponse struct {
	Nonce uint64 `json:"nonce"`
}

type liquidateResponse struct {
	Repaid string `json:"repaid"`
	Seized string `json:"seized"`
}

type positionResponse struct {
	ID               uint64 `json:"id"`
	Owner            string `json:"owner"`
	Custodian        string `json:"custodian,omitempty"`
	Principal        string `json:"principal"`
	StartTime        uint64 `json:"startTime"`
	LockDuration     uint64 `json:"lockDuration"`
	UnlockTime       uint64 `json:"unlockTime"`
	LastClaimTime    uint64 `json:"lastClaimTime"`
	RewardMultiplier uint64 `json:"rewardMultiplier"`
	Active           bool   `json:"active"`
	PendingReward    string `json:"pendingReward"`
	Reward           string `json:"reward"`
	Slots            string `json:"slots"`
}

type loanResponse struct {
	PositionID          uint64 `json:"positionId"`
	Borrower            string `json:"borrower"`
	Active              bool   `json:"active"`
	DebtAsset           string `json:"debtAsset"`
	Principal           string `json:"principal"`
	Interest            string `json:"interest"`
	Penalty             string `json:"penalty"`
	TotalDebt           string `json:"totalDebt"`
	RemainingCollateral string `json:"remainingCollateral"`
	MaxBorrowable       string `json:"maxBorrowable,omitempty"`
	HealthFactor        string `json:"healthFactor,omitempty"`
	Liquidatable        bool   `json:"liquidatable"`
	EndTime             uint64 `json:"endTime"`
	RepayDeadline       uint64 `json:"repayDeadline"`
	Overdue             bool   `json:"overdue"`
	Slots               string `json:"slots,omitempty"`
}

type statsResponse struct {
	CurrentAPY          uint64            `json:"currentApy"`
	TotalStaked         string            `json:"totalStaked"`
	TotalPendingRewards string            `json:"totalPendingRewards"`
	ReserveBalance      string            `json:"reserveBalance"`
	Pools               map[uint64]string `json:"pools"`
}

type problem struct {
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

func parseAmount(raw string) (*big.Int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: amount required", errBadRequest)
	}
	amount, ok := new(big.Int).SetString(raw, 10)
	if !ok || amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amount must be a positive integer", errBadRequest)
	}
	return amount, nil
}

func parseRate(raw string) (*big.Rat, error) {
	rate, ok := new(big.Rat).SetString(strings.TrimSpace(raw))
	if !ok || rate.Sign() <= 0 {
		return nil, fmt.Errorf("%w: rate must be a positive decimal", errBadRequest)
	}
	return rate, nil
}

func parseAccount(raw string) (common.Address, error) {
	addr, err := crypto.ParseAddress(raw)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return addr, nil
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxRequestBody))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeProblem(w http.ResponseWriter, r *http.Request, status int, message, kind string) {
	writeJSON(w, status, problem{Error: message, Kind: kind, RequestID: RequestIDFrom(r.Context())})
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func addressString(addr common.Address) string {
	if addr == (common.Address{}) {
		return ""
	}
	return crypto.String(addr)
}

func toPositionResponse(view *yield.PositionView, slots []byte) positionResponse {
	pos := view.Position
	return positionResponse{
		ID:               pos.ID,
		Owner:            addressString(view.Owner),
		Custodian:        addressString(view.Custodian),
		Principal:        amountString(pos.Principal),
		StartTime:        pos.StartTime,
		LockDuration:     pos.LockDuration,
		UnlockTime:       view.UnlockTime,
		LastClaimTime:    pos.LastClaimTime,
		RewardMultiplier: pos.RewardMultiplier,
		Active:           pos.Active,
		PendingReward:    amountString(pos.PendingReward),
		Reward:           amountString(view.Reward),
		Slots:            hexutil.Encode(slots),
	}
}

func toLoanResponse(summary *lending.Summary, slots []byte) loanResponse {
	out := loanResponse{
		PositionID:          summary.PositionID,
		Borrower:            addressString(summary.Borrower),
		Active:              summary.Active,
		DebtAsset:           summary.DebtAsset,
		Principal:           amountString(summary.Principal),
		Interest:            amountString(summary.Interest),
		Penalty:             amountString(summary.Penalty),
		TotalDebt:           amountString(summary.TotalDebt),
		RemainingCollateral: amountString(summary.RemainingCollateral),
		Liquidatable:        summary.Liquidatable,
		EndTime:             summary.EndTime,
		RepayDeadline:       summary.RepayDeadline,
		Overdue:             summary.Overdue,
	}
	if summary.MaxBorrowable != nil {
		out.MaxBorrowable = summary.MaxBorrowable.String()
	}
	if summary.HealthFactor != nil {
		out.HealthFactor = summary.HealthFactor.String()
	}
	if len(slots) > 0 {
		out.Slots = hexutil.Encode(slots)
	}
	return out
}

func toStatsResponse(stats *yield.Stats) statsResponse {
	pools := make(map[uint64]string, len(stats.Pools))
	for duration, total := range stats.Pools {
		pools[duration] = amountString(total)
	}
	return statsResponse{
		CurrentAPY:          stats.CurrentAPY,
		TotalStaked:         amountString(stats.TotalStaked),
		TotalPendingRewards: amountString(stats.TotalPendingRewards),
		ReserveBalance:      amountString(stats.ReserveBalance),
		Pools:               pools,
	}
}
