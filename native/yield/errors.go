package yield

import nativecommon "pegvault/native/common"

var (
	ErrNilState            = nativecommon.NewError(nativecommon.KindPrecondition, "yield: state not configured")
	ErrAlreadyConfigured   = nativecommon.NewError(nativecommon.KindPrecondition, "yield: parameters already initialised")
	ErrNotConfigured       = nativecommon.NewError(nativecommon.KindPrecondition, "yield: parameters not initialised")
	ErrInvalidAmount       = nativecommon.NewError(nativecommon.KindValidation, "yield: amount must be positive")
	ErrBelowMinimum        = nativecommon.NewError(nativecommon.KindValidation, "yield: amount below minimum stake")
	ErrUnsupportedDuration = nativecommon.NewError(nativecommon.KindValidation, "yield: lock duration not supported")
	ErrInvalidMultiplier   = nativecommon.NewError(nativecommon.KindValidation, "yield: multiplier must be positive")
	ErrUnsupportedAsset    = nativecommon.NewError(nativecommon.KindValidation, "yield: asset not approved")
	ErrInvalidAsset        = nativecommon.NewError(nativecommon.KindValidation, "yield: invalid asset definition")
	ErrInvalidParams       = nativecommon.NewError(nativecommon.KindValidation, "yield: invalid parameters")
	ErrAPYUnchanged        = nativecommon.NewError(nativecommon.KindValidation, "yield: apy must differ from current")
	ErrInvalidRecipient    = nativecommon.NewError(nativecommon.KindValidation, "yield: recipient required")
	ErrInvalidChain        = nativecommon.NewError(nativecommon.KindValidation, "yield: invalid chain identifier")
	ErrCollateralIncrease  = nativecommon.NewError(nativecommon.KindValidation, "yield: collateral can only decrease")
	ErrNotOwner            = nativecommon.NewError(nativecommon.KindAuthorization, "yield: caller does not own position")
	ErrNotCustodian        = nativecommon.NewError(nativecommon.KindAuthorization, "yield: caller does not hold custody")
	ErrPositionNotFound    = nativecommon.NewError(nativecommon.KindPrecondition, "yield: position not found")
	ErrPositionInactive    = nativecommon.NewError(nativecommon.KindPrecondition, "yield: position inactive")
	ErrPositionInCustody   = nativecommon.NewError(nativecommon.KindPrecondition, "yield: position held in custody")
	ErrStillLocked         = nativecommon.NewError(nativecommon.KindPrecondition, "yield: position still locked")
	ErrNoRewards           = nativecommon.NewError(nativecommon.KindPrecondition, "yield: no rewards accrued")
	ErrBridgeReplay        = nativecommon.NewError(nativecommon.KindPrecondition, "yield: bridge transfer already completed")
	ErrReserveInsufficient = nativecommon.NewError(nativecommon.KindResource, "yield: reward reserve insufficient")
	ErrHistoryOrder        = nativecommon.NewError(nativecommon.KindArithmetic, "yield: apy history out of order")
)
