// Package capstriperr defines the error taxonomy shared by every engine
// component: a fixed set of kinds callers can switch on, rather than
// string-matching error messages.
package capstriperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error without requiring callers to inspect its message.
type Kind int

const (
	// Unknown is the zero value and should not be returned by any component.
	Unknown Kind = iota
	// InvalidArgument marks a caller error, e.g. a negative size_bytes. Never retried.
	InvalidArgument
	// NotFound marks missing upstream data for a (year, facility) pair.
	NotFound
	// Timeout marks a request that exceeded request_timeout_ms.
	Timeout
	// TransientUpstream marks a retryable upstream failure.
	TransientUpstream
	// PermanentUpstream marks a non-retryable upstream failure.
	PermanentUpstream
	// CircuitOpen marks rejection by an open circuit breaker.
	CircuitOpen
	// Cancelled marks a request rejected by queue.clear() or navigator cancellation.
	Cancelled
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "InvalidArgument"
	case NotFound:
		return "NotFound"
	case Timeout:
		return "Timeout"
	case TransientUpstream:
		return "TransientUpstream"
	case PermanentUpstream:
		return "PermanentUpstream"
	case CircuitOpen:
		return "CircuitOpen"
	case Cancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type returned by engine components.
type Error struct {
	Kind  Kind
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error of the given kind wrapping cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf extracts the Kind of err, walking wrapped errors. Returns Unknown
// if err is nil or carries no *Error in its chain.
func KindOf(err error) Kind {
	if err == nil {
		return Unknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// Is reports whether err's Kind (walking wrapped errors) equals kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Retryable reports whether a failure of this kind should be retried by
// RequestQueue per spec: Timeout and TransientUpstream are retried;
// everything else is surfaced immediately.
func (k Kind) Retryable() bool {
	return k == Timeout || k == TransientUpstream
}
