package lending

import nativecommon "pegvault/native/common"

var (
	ErrNilState            = nativecommon.NewError(nativecommon.KindPrecondition, "lending engine: state not configured")
	ErrNotConfigured       = nativecommon.NewError(nativecommon.KindPrecondition, "lending engine: parameters not initialised")
	ErrAlreadyConfigured   = nativecommon.NewError(nativecommon.KindPrecondition, "lending engine: parameters already initialised")
	ErrInvalidAmount       = nativecommon.NewError(nativecommon.KindValidation, "lending engine: amount must be positive")
	ErrInvalidParams       = nativecommon.NewError(nativecommon.KindValidation, "lending engine: invalid risk parameters")
	ErrInvalidTier         = nativecommon.NewError(nativecommon.KindValidation, "lending engine: invalid loan tier")
	ErrUnsupportedDuration = nativecommon.NewError(nativecommon.KindValidation, "lending engine: loan duration not supported")
	ErrAssetNotAllowed     = nativecommon.NewError(nativecommon.KindValidation, "lending engine: debt asset not allowed")
	ErrInvalidAsset        = nativecommon.NewError(nativecommon.KindValidation, "lending engine: invalid debt asset")
	ErrBorrowLimit         = nativecommon.NewError(nativecommon.KindValidation, "lending engine: amount exceeds borrow limit")
	ErrNotOwner            = nativecommon.NewError(nativecommon.KindAuthorization, "lending engine: caller does not own position")
	ErrNotBorrower         = nativecommon.NewError(nativecommon.KindAuthorization, "lending engine: caller is not the borrower")
	ErrPositionNotFound    = nativecommon.NewError(nativecommon.KindPrecondition, "lending engine: position not found")
	ErrPositionInactive    = nativecommon.NewError(nativecommon.KindPrecondition, "lending engine: position inactive")
	ErrPositionInCustody   = nativecommon.NewError(nativecommon.KindPrecondition, "lending engine: position held in custody")
	ErrLoanActive          = nativecommon.NewError(nativecommon.KindPrecondition, "lending engine: loan already active")
	ErrLoanNotFound        = nativecommon.NewError(nativecommon.KindPrecondition, "lending engine: loan not found")
	ErrLoanInactive        = nativecommon.NewError(nativecommon.KindPrecondition, "lending engine: loan inactive")
	ErrRepayWindowClosed   = nativecommon.NewError(nativecommon.KindPrecondition, "lending engine: grace period expired")
	ErrNotOverdue          = nativecommon.NewError(nativecommon.KindPrecondition, "lending engine: loan not past grace period")
	ErrNotLiquidatable     = nativecommon.NewError(nativecommon.KindPrecondition, "lending engine: loan not eligible for liquidation")
	ErrNothingToLiquidate  = nativecommon.NewError(nativecommon.KindPrecondition, "lending engine: liquidation amount rounds to zero")
	ErrNotInCustody        = nativecommon.NewError(nativecommon.KindPrecondition, "lending engine: collateral no longer held by lending")
	ErrNothingToReclaim    = nativecommon.NewError(nativecommon.KindPrecondition, "lending engine: no collateral to reclaim")
	ErrAlreadyReclaimed    = nativecommon.NewError(nativecommon.KindPrecondition, "lending engine: collateral already reclaimed")
	ErrLiquidationDenom    = nativecommon.NewError(nativecommon.KindArithmetic, "lending engine: target ratio must exceed one plus bonus")
)
