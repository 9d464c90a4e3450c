// Package coreerr defines the single error taxonomy used across every
// component boundary in the tourism conversational core. Every operation
// returns either a value or a *coreerr.Error — there is no second, legacy
// error shape.
package coreerr

import (
	"errors"
	"fmt"
)

// Kind enumerates the taxonomy of error kinds a component boundary may
// return, per the response envelope's error_kind field.
type Kind string

const (
	KindBadInput          Kind = "bad_input"
	KindNotFound          Kind = "not_found"
	KindSessionExpired    Kind = "session_expired"
	KindServiceUnavailable Kind = "service_unavailable"
	KindTimeout           Kind = "timeout"
	KindInternal          Kind = "internal"
)

// Error is the single error shape returned across component boundaries.
type Error struct {
	Kind          Kind
	Message       string
	CorrelationID string
	Cause         error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.CorrelationID != "" {
		return fmt.Sprintf("[%s] %s (correlation_id=%s)", e.Kind, e.Message, e.CorrelationID)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the wrapped cause, enabling errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New builds a new Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds a new Error of the given kind around a cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// WithCorrelationID attaches a correlation id and returns the same error.
func (e *Error) WithCorrelationID(id string) *Error {
	e.CorrelationID = id
	return e
}

// KindOf extracts the Kind of err, defaulting to KindInternal if err is not
// a *Error (or wrapped Error).
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindInternal
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// IsRetryable reports whether an error kind is worth retrying: transient
// service/timeout failures, never input or state errors.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindServiceUnavailable, KindTimeout:
		return true
	default:
		return false
	}
}

// BadInput, NotFound, SessionExpired, ServiceUnavailable, Timeout, Internal
// are convenience constructors for the six taxonomy kinds.

func BadInput(format string, args ...interface{}) *Error {
	return New(KindBadInput, fmt.Sprintf(format, args...))
}

func NotFound(format string, args ...interface{}) *Error {
	return New(KindNotFound, fmt.Sprintf(format, args...))
}

func SessionExpired(format string, args ...interface{}) *Error {
	return New(KindSessionExpired, fmt.Sprintf(format, args...))
}

func ServiceUnavailable(cause error, format string, args ...interface{}) *Error {
	return Wrap(KindServiceUnavailable, fmt.Sprintf(format, args...), cause)
}

func Timeout(cause error, format string, args ...interface{}) *Error {
	return Wrap(KindTimeout, fmt.Sprintf(format, args...), cause)
}

func Internal(cause error, format string, args ...interface{}) *Error {
	return Wrap(KindInternal, fmt.Sprintf(format, args...), cause)
}
