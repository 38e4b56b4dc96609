package events

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// TypeYieldDeposited is emitted when an approved asset is converted into PUSD.
	TypeYieldDeposited = "yield.deposited"
	// TypeYieldWithdrawn is emitted when PUSD is converted back into an asset.
	TypeYieldWithdrawn = "yield.withdrawn"
	// TypeYieldStaked is emitted when a lock position is opened.
	TypeYieldStaked = "yield.staked"
	// TypeYieldRewardsClaimed is emitted when a reward payout succeeds.
	TypeYieldRewardsClaimed = "yield.rewardsClaimed"
	// TypeYieldRewardPayoutFailed records a reward the reserve could not fund
	// during an unstake.
	TypeYieldRewardPayoutFailed = "yield.rewardPayoutFailed"
	// TypeYieldRenewed is emitted when an expired lock is rolled over.
	TypeYieldRenewed = "yield.renewed"
	// TypeYieldUnstaked is emitted when principal leaves a position.
	TypeYieldUnstaked = "yield.unstaked"
	// TypeYieldCollateralAdjusted is emitted when the lending engine changes a position's principal.
	TypeYieldCollateralAdjusted = "yield.collateralAdjusted"
	// TypeYieldAPYUpdated is emitted when the base APY changes.
	TypeYieldAPYUpdated = "yield.apyUpdated"
	// TypeYieldLockTierUpdated is emitted when a lock multiplier is set or removed.
	TypeYieldLockTierUpdated = "yield.lockTierUpdated"
	// TypeYieldReserveFunded is emitted when the reward reserve is topped up.
	TypeYieldReserveFunded = "yield.reserveFunded"
	// TypeBridgeOut is emitted when PUSD is burned for another chain.
	TypeBridgeOut = "bridge.out"
	// TypeBridgeIn is emitted when an inbound transfer is minted.
	TypeBridgeIn = "bridge.in"
	// TypeParamsUpdated is emitted when a module's versioned configuration changes.
	TypeParamsUpdated = "params.updated"
)

// YieldDeposited captures an asset-to-PUSD conversion.
type YieldDeposited struct {
	Account common.Address
	Asset   string
	Amount  *big.Int
	Fee     *big.Int
	Minted  *big.Int
}

// EventType satisfies the Event interface.
func (YieldDeposited) EventType() string { return TypeYieldDeposited }

// Attributes satisfies the Event interface.
func (e YieldDeposited) Attributes() map[string]string {
	return map[string]string{
		"account": formatAddr(e.Account),
		"asset":   normalizeAsset(e.Asset),
		"amount":  formatAmount(e.Amount),
		"fee":     formatAmount(e.Fee),
		"minted":  formatAmount(e.Minted),
	}
}

// YieldWithdrawn captures a PUSD-to-asset conversion.
type YieldWithdrawn struct {
	Account common.Address
	Asset   string
	Burned  *big.Int
	Fee     *big.Int
	Paid    *big.Int
}

// EventType satisfies the Event interface.
func (YieldWithdrawn) EventType() string { return TypeYieldWithdrawn }

// Attributes satisfies the Event interface.
func (e YieldWithdrawn) Attributes() map[string]string {
	return map[string]string{
		"account": formatAddr(e.Account),
		"asset":   normalizeAsset(e.Asset),
		"burned":  formatAmount(e.Burned),
		"fee":     formatAmount(e.Fee),
		"paid":    formatAmount(e.Paid),
	}
}

// YieldStaked captures a new lock position.
type YieldStaked struct {
	Account      common.Address
	PositionID   uint64
	Amount       *big.Int
	LockDuration uint64
	Multiplier   uint64
}

// EventType satisfies the Event interface.
func (YieldStaked) EventType() string { return TypeYieldStaked }

// Attributes satisfies the Event interface.
func (e YieldStaked) Attributes() map[string]string {
	return map[string]string{
		"account":      formatAddr(e.Account),
		"positionId":   formatUint(e.PositionID),
		"amount":       formatAmount(e.Amount),
		"lockDuration": formatUint(e.LockDuration),
		"multiplier":   formatUint(e.Multiplier),
	}
}

// YieldRewards captures a reward settlement. Paid reports whether the reserve
// funded it; unfunded rewards are only possible on unstake.
type YieldRewards struct {
	Account    common.Address
	PositionID uint64
	Reward     *big.Int
	Operation  string
	Paid       bool
}

// EventType satisfies the Event interface.
func (e YieldRewards) EventType() string {
	if e.Paid {
		return TypeYieldRewardsClaimed
	}
	return TypeYieldRewardPayoutFailed
}

// Attributes satisfies the Event interface.
func (e YieldRewards) Attributes() map[string]string {
	attrs := map[string]string{
		"account":    formatAddr(e.Account),
		"positionId": formatUint(e.PositionID),
		"reward":     formatAmount(e.Reward),
		"paid":       strconv.FormatBool(e.Paid),
	}
	if e.Operation != "" {
		attrs["operation"] = e.Operation
	}
	return attrs
}

// YieldRenewed captures a lock rollover.
type YieldRenewed struct {
	Account      common.Address
	PositionID   uint64
	Reward       *big.Int
	Compounded   bool
	Principal    *big.Int
	LockDuration uint64
}

// EventType satisfies the Event interface.
func (YieldRenewed) EventType() string { return TypeYieldRenewed }

// Attributes satisfies the Event interface.
func (e YieldRenewed) Attributes() map[string]string {
	return map[string]string{
		"account":      formatAddr(e.Account),
		"positionId":   formatUint(e.PositionID),
		"reward":       formatAmount(e.Reward),
		"compounded":   strconv.FormatBool(e.Compounded),
		"principal":    formatAmount(e.Principal),
		"lockDuration": formatUint(e.LockDuration),
	}
}

// YieldUnstaked captures a position exit.
type YieldUnstaked struct {
	Account    common.Address
	PositionID uint64
	Principal  *big.Int
	Reward     *big.Int
	RewardPaid bool
}

// EventType satisfies the Event interface.
func (YieldUnstaked) EventType() string { return TypeYieldUnstaked }

// Attributes satisfies the Event interface.
func (e YieldUnstaked) Attributes() map[string]string {
	return map[string]string{
		"account":    formatAddr(e.Account),
		"positionId": formatUint(e.PositionID),
		"principal":  formatAmount(e.Principal),
		"reward":     formatAmount(e.Reward),
		"rewardPaid": strconv.FormatBool(e.RewardPaid),
	}
}

// YieldCollateralAdjusted captures a principal change driven by the lending engine.
type YieldCollateralAdjusted struct {
	PositionID    uint64
	Principal     *big.Int
	PendingReward *big.Int
	Closed        bool
}

// EventType satisfies the Event interface.
func (YieldCollateralAdjusted) EventType() string { return TypeYieldCollateralAdjusted }

// Attributes satisfies the Event interface.
func (e YieldCollateralAdjusted) Attributes() map[string]string {
	return map[string]string{
		"positionId":    formatUint(e.PositionID),
		"principal":     formatAmount(e.Principal),
		"pendingReward": formatAmount(e.PendingReward),
		"closed":        strconv.FormatBool(e.Closed),
	}
}

// YieldAPYUpdated captures a base rate change.
type YieldAPYUpdated struct {
	Previous  uint64
	Current   uint64
	Timestamp uint64
}

// EventType satisfies the Event interface.
func (YieldAPYUpdated) EventType() string { return TypeYieldAPYUpdated }

// Attributes satisfies the Event interface.
func (e YieldAPYUpdated) Attributes() map[string]string {
	return map[string]string{
		"previousBps": formatUint(e.Previous),
		"currentBps":  formatUint(e.Current),
		"timestamp":   formatUint(e.Timestamp),
	}
}

// YieldLockTierUpdated captures a lock multiplier change. A zero multiplier
// means the tier was removed.
type YieldLockTierUpdated struct {
	Duration   uint64
	Multiplier uint64
}

// EventType satisfies the Event interface.
func (YieldLockTierUpdated) EventType() string { return TypeYieldLockTierUpdated }

// Attributes satisfies the Event interface.
func (e YieldLockTierUpdated) Attributes() map[string]string {
	return map[string]string{
		"duration":   formatUint(e.Duration),
		"multiplier": formatUint(e.Multiplier),
	}
}

// YieldReserveFunded captures a reward reserve top-up.
type YieldReserveFunded struct {
	Account common.Address
	Amount  *big.Int
	Balance *big.Int
}

// EventType satisfies the Event interface.
func (YieldReserveFunded) EventType() string { return TypeYieldReserveFunded }

// Attributes satisfies the Event interface.
func (e YieldReserveFunded) Attributes() map[string]string {
	return map[string]string{
		"account": formatAddr(e.Account),
		"amount":  formatAmount(e.Amount),
		"balance": formatAmount(e.Balance),
	}
}

// BridgeTransfer captures either leg of a cross-chain move.
type BridgeTransfer struct {
	Inbound     bool
	Account     common.Address
	Amount      *big.Int
	Fee         *big.Int
	SourceChain uint64
	DestChain   uint64
	Nonce       uint64
}

// EventType satisfies the Event interface.
func (e BridgeTransfer) EventType() string {
	if e.Inbound {
		return TypeBridgeIn
	}
	return TypeBridgeOut
}

// Attributes satisfies the Event interface.
func (e BridgeTransfer) Attributes() map[string]string {
	attrs := map[string]string{
		"amount":      formatAmount(e.Amount),
		"sourceChain": formatUint(e.SourceChain),
		"destChain":   formatUint(e.DestChain),
		"nonce":       formatUint(e.Nonce),
	}
	if !zeroAddress(e.Account) {
		attrs["account"] = formatAddr(e.Account)
	}
	if e.Fee != nil {
		attrs["fee"] = formatAmount(e.Fee)
	}
	return attrs
}

// ParamsUpdated captures a configuration version bump.
type ParamsUpdated struct {
	Module  string
	Version uint64
}

// EventType satisfies the Event interface.
func (ParamsUpdated) EventType() string { return TypeParamsUpdated }

// Attributes satisfies the Event interface.
func (e ParamsUpdated) Attributes() map[string]string {
	return map[string]string{
		"module":  e.Module,
		"version": formatUint(e.Version),
	}
}
