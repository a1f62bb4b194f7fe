package domain

import (
	"errors"
	"fmt"
)

// Kind classifies a wallet error for the caller. Handlers map kinds to
// HTTP statuses; the message is safe to surface to a user.
type Kind string

const (
	KindNotFound                Kind = "NOT_FOUND"
	KindInsufficientFunds       Kind = "INSUFFICIENT_FUNDS"
	KindCurrencyMismatch        Kind = "CURRENCY_MISMATCH"
	KindAccountFrozen           Kind = "ACCOUNT_FROZEN"
	KindDuplicateAccount        Kind = "DUPLICATE_ACCOUNT"
	KindDuplicateReference      Kind = "DUPLICATE_REFERENCE"
	KindDuplicateIdempotencyKey Kind = "DUPLICATE_IDEMPOTENCY_KEY"
	KindInvalidState            Kind = "INVALID_STATE"
	KindInvalidAmount           Kind = "INVALID_AMOUNT"
	KindAlreadyReversed         Kind = "ALREADY_REVERSED"
	KindOverCapture             Kind = "OVER_CAPTURE"
	KindAuthorizationExpired    Kind = "AUTHORIZATION_EXPIRED"
	KindTimeout                 Kind = "TIMEOUT"
)

// Error carries a kind and a human-readable message. It may wrap an
// underlying cause which is never shown to callers.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E builds a domain error.
func E(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds a domain error around a cause.
func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the kind from an error chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
