package server

import (
	"errors"
	"net/http"

	"pegvault/core/state"
	nativecommon "pegvault/native/common"
	"pegvault/native/lending"
	"pegvault/native/yield"
)

var (
	errBadRequest = nativecommon.NewError(nativecommon.KindValidation, "malformed request")
	errNotFound   = nativecommon.NewError(nativecommon.KindPrecondition, "resource not found")
)

// statusFor maps a ledger error onto an HTTP status. Specific sentinels are
// matched first, then the error kind.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, errNotFound),
		errors.Is(err, yield.ErrPositionNotFound),
		errors.Is(err, lending.ErrPositionNotFound),
		errors.Is(err, lending.ErrLoanNotFound):
		return http.StatusNotFound
	case errors.Is(err, nativecommon.ErrModulePaused):
		return http.StatusServiceUnavailable
	case errors.Is(err, state.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity
	}
	switch nativecommon.Classify(err) {
	case nativecommon.KindValidation:
		return http.StatusBadRequest
	case nativecommon.KindAuthorization:
		return http.StatusForbidden
	case nativecommon.KindPrecondition:
		return http.StatusConflict
	case nativecommon.KindOracle:
		return http.StatusServiceUnavailable
	case nativecommon.KindResource, nativecommon.KindArithmetic:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
