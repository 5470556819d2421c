package services

import (
	"errors"
	"fmt"
)

var (
	ErrValidation          = errors.New("validation error")
	ErrInvalidServer       = errors.New("invalid server")
	ErrAccountNotFound     = errors.New("account not found")
	ErrDuplicateAccount    = errors.New("account already exists for this uid and server")
	ErrServerHasNoAccounts = errors.New("no accounts configured for this server")
	ErrLimitReached        = errors.New("daily like limit reached")
	ErrCredentialRejected  = errors.New("credential rejected by game platform")
	ErrUpstreamUnavailable = errors.New("game platform unavailable")
	ErrTargetNotFound      = errors.New("target player not found")
)

func validationErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// LimitReachedError is returned when the target has no quota left today.
type LimitReachedError struct {
	Usage Usage
}

func (e *LimitReachedError) Error() string {
	return fmt.Sprintf("%s: used %d today, resets at %s", ErrLimitReached, e.Usage.UsedToday, e.Usage.ResetTimeString())
}

func (e *LimitReachedError) Unwrap() error { return ErrLimitReached }

// DispatchError is an upstream failure after quota was reserved. The
// reservation is not refunded; Usage reflects the consumed attempt.
type DispatchError struct {
	Err     error
	Granted int
	Usage   Usage
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch of %d likes failed: %v", e.Granted, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// AccountError ties a platform failure to the account that caused it.
type AccountError struct {
	AccountID uint
	Err       error
}

func (e *AccountError) Error() string {
	return fmt.Sprintf("account %d: %v", e.AccountID, e.Err)
}

func (e *AccountError) Unwrap() error { return e.Err }

// ErrorKind is a short machine-readable tag for engine errors.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrInvalidServer):
		return "invalid_server"
	case errors.Is(err, ErrAccountNotFound), errors.Is(err, ErrUnknownSetting):
		return "not_found"
	case errors.Is(err, ErrDuplicateAccount):
		return "duplicate_account"
	case errors.Is(err, ErrServerHasNoAccounts):
		return "server_has_no_accounts"
	case errors.Is(err, ErrLimitReached):
		return "limit_reached"
	case errors.Is(err, ErrCredentialRejected):
		return "credential_rejected"
	case errors.Is(err, ErrTargetNotFound):
		return "target_not_found"
	case errors.Is(err, ErrUpstreamUnavailable):
		return "upstream_unavailable"
	default:
		return "internal_error"
	}
}
