package common

import "errors"

// Kind classifies a ledger failure so callers can map it onto a response
// without matching individual sentinels.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindValidation
	KindAuthorization
	KindPrecondition
	KindOracle
	KindResource
	KindArithmetic
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthorization:
		return "authorization"
	case KindPrecondition:
		return "precondition"
	case KindOracle:
		return "oracle"
	case KindResource:
		return "resource"
	case KindArithmetic:
		return "arithmetic"
	default:
		return "unknown"
	}
}

// Error is a sentinel error tagged with its Kind.
type Error struct {
	kind Kind
	msg  string
}

// NewError creates a classified sentinel.
func NewError(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

func (e *Error) Error() string { return e.msg }

// Kind returns the classification.
func (e *Error) Kind() Kind { return e.kind }

// Classify walks the wrap chain and returns the kind of the first classified
// error, or KindUnknown.
func Classify(err error) Kind {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.kind
	}
	return KindUnknown
}
