// Package apperr defines the error taxonomy surfaced by the asset lifecycle
// engine. Every error carries a Kind that drives retry and reporting policy,
// plus a stable code that callers can match on.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for retry and reporting purposes.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindUnavailable
	KindBusinessRule
	KindExhaustedRetries
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUnavailable:
		return "unavailable"
	case KindBusinessRule:
		return "business_rule"
	case KindExhaustedRetries:
		return "exhausted_retries"
	default:
		return "internal"
	}
}

// Stable error codes.
const (
	CodeValidation             = "validation_failed"
	CodeDuplicateSerial        = "duplicate_serial"
	CodeDuplicateSerialInBatch = "duplicate_serial_in_batch"
	CodeDuplicateIdentity      = "duplicate_identity"
	CodeInvalidLocation        = "invalid_location"
	CodeMissingBrandModel      = "missing_brand_model"
	CodeInvalidTenant          = "invalid_tenant"
	CodeNotFound               = "not_found"
	CodeAssetNotFound          = "asset_not_found"
	CodeMemberNotFound         = "member_not_found"
	CodeConflict               = "conflict"
	CodeStoreUnavailable       = "store_unavailable"
	CodeRecoverableAssigned    = "recoverable_asset_assigned"
	CodeMemberHasRecoverable   = "member_has_recoverable_assets"
	CodeExhaustedRetries       = "exhausted_retries"
	CodeInternal               = "internal_error"
)

// Sentinels usable with errors.Is to match on kind alone.
var (
	ErrValidation       = &Error{Kind: KindValidation}
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrConflict         = &Error{Kind: KindConflict}
	ErrUnavailable      = &Error{Kind: KindUnavailable}
	ErrBusinessRule     = &Error{Kind: KindBusinessRule}
	ErrExhaustedRetries = &Error{Kind: KindExhaustedRetries}
)

// Error is a classified failure with a stable code and a human readable message.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, msg, e.Err)
	}
	if e.Code == "" {
		return msg
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on kind, and on code when the target carries one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

func newError(kind Kind, code string, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// Validation reports a malformed payload or a uniqueness failure.
func Validation(code, format string, args ...any) *Error {
	return newError(KindValidation, code, nil, format, args...)
}

// NotFound reports an unknown or soft-deleted entity.
func NotFound(code, format string, args ...any) *Error {
	return newError(KindNotFound, code, nil, format, args...)
}

// Conflict reports a concurrent write that lost at commit time.
func Conflict(err error, format string, args ...any) *Error {
	return newError(KindConflict, CodeConflict, err, format, args...)
}

// Unavailable reports an unreachable tenant store.
func Unavailable(err error, format string, args ...any) *Error {
	return newError(KindUnavailable, CodeStoreUnavailable, err, format, args...)
}

// BusinessRule reports an operation forbidden by a domain rule.
func BusinessRule(code, format string, args ...any) *Error {
	return newError(KindBusinessRule, code, nil, format, args...)
}

// ExhaustedRetries reports a transient failure that persisted across every attempt.
func ExhaustedRetries(err error, attempts int) *Error {
	return newError(KindExhaustedRetries, CodeExhaustedRetries, err, "gave up after %d attempts", attempts)
}

// Internal wraps an unexpected failure.
func Internal(err error, format string, args ...any) *Error {
	return newError(KindInternal, CodeInternal, err, format, args...)
}

// KindOf returns the kind of err, or KindInternal when err is unclassified.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// CodeOf returns the stable code of err, or CodeInternal when err is unclassified.
func CodeOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Code != "" {
		return appErr.Code
	}
	return CodeInternal
}

// Public returns the code and message that may be shown to a caller.
// Internal and unclassified errors are reduced to a generic failure.
func Public(err error) (code string, message string) {
	var appErr *Error
	if !errors.As(err, &appErr) || appErr.Kind == KindInternal {
		return CodeInternal, "internal server error"
	}
	message = appErr.Message
	if message == "" {
		message = appErr.Kind.String()
	}
	return appErr.Code, message
}
