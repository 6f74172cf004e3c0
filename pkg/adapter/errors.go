package adapter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"babel-hq/rosetta/pkg/ir"
)

// ErrorCode classifies adapter and fabric failures. Codes, not Go types,
// are the stable contract: they appear in error chunks, event payloads, and
// stats breakdowns.
type ErrorCode string

const (
	// ErrorCodeValidation means the request or its parameters are invalid.
	ErrorCodeValidation ErrorCode = "validation"

	// ErrorCodeNetwork means the transport failed. Retryable.
	ErrorCodeNetwork ErrorCode = "network"

	// ErrorCodeRateLimit means the provider signalled a 429 equivalent.
	// Retryable; honor RetryAfter when set.
	ErrorCodeRateLimit ErrorCode = "rate_limit"

	// ErrorCodeProvider means the provider failed server-side. Retryable
	// only when the adapter marked the error retryable.
	ErrorCodeProvider ErrorCode = "provider"

	// ErrorCodeTimeout means a request or inter-chunk deadline passed.
	ErrorCodeTimeout ErrorCode = "timeout"

	// ErrorCodeCancelled means the caller cancelled cooperatively.
	ErrorCodeCancelled ErrorCode = "cancelled"

	// ErrorCodeCircuitOpen means the router refused the call because the
	// backend's circuit breaker is open. Not retryable on the same backend.
	ErrorCodeCircuitOpen ErrorCode = "circuit_open"

	// ErrorCodeNoBackend means routing produced no candidate.
	ErrorCodeNoBackend ErrorCode = "no_backend"

	// ErrorCodeMiddleware wraps a non-taxonomy error thrown inside
	// middleware.
	ErrorCodeMiddleware ErrorCode = "middleware"

	// ErrorCodeUnsupported means the chosen backend does not support a
	// capability, content type, or parameter the request needs.
	ErrorCodeUnsupported ErrorCode = "unsupported"
)

// retryableByDefault returns whether errors with this code may be retried
// absent an adapter's explicit say-so.
func retryableByDefault(code ErrorCode) bool {
	switch code {
	case ErrorCodeNetwork, ErrorCodeRateLimit:
		return true
	default:
		return false
	}
}

// Error is the typed failure every adapter operation returns.
type Error struct {
	// Code classifies the failure.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Backend names the backend that failed, when known.
	Backend string

	// Retryable reports whether the same call may be retried.
	Retryable bool

	// RetryAfter is the provider-suggested wait before retrying, when the
	// provider supplied one.
	RetryAfter time.Duration

	// Provenance records where in the fabric the failure occurred.
	Provenance ir.Provenance

	// Details carries additional structured context.
	Details map[string]any

	// Cause is the underlying error, when one exists.
	Cause error
}

func (e *Error) Error() string {
	if e.Backend != "" {
		return fmt.Sprintf("backend %q %s error: %s", e.Backend, e.Code, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an adapter error with the default retryability of its code.
func New(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message, Retryable: retryableByDefault(code)}
}

// Newf creates an adapter error with a formatted message.
func Newf(code ErrorCode, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap creates an adapter error around a cause. If the cause already is an
// adapter error its code and retryability are preserved and only the
// message is layered.
func Wrap(code ErrorCode, message string, cause error) *Error {
	var ae *Error
	if errors.As(cause, &ae) {
		return &Error{
			Code:       ae.Code,
			Message:    message + ": " + ae.Message,
			Backend:    ae.Backend,
			Retryable:  ae.Retryable,
			RetryAfter: ae.RetryAfter,
			Provenance: ae.Provenance,
			Details:    ae.Details,
			Cause:      cause,
		}
	}
	return &Error{Code: code, Message: message, Retryable: retryableByDefault(code), Cause: cause}
}

// WithBackend returns a copy of the error attributed to the named backend.
func (e *Error) WithBackend(name string) *Error {
	out := *e
	out.Backend = name
	out.Provenance.Backend = name
	return &out
}

// WithRetryable returns a copy of the error with retryability overridden.
func (e *Error) WithRetryable(retryable bool) *Error {
	out := *e
	out.Retryable = retryable
	return &out
}

// AsError extracts an adapter error from err's chain.
func AsError(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// CodeOf returns the taxonomy code of err. Context cancellation maps to
// cancelled, deadline expiry to timeout, anything else untyped to provider.
// A nil error has no code.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	if ae, ok := AsError(err); ok {
		return ae.Code
	}
	if errors.Is(err, context.Canceled) {
		return ErrorCodeCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorCodeTimeout
	}
	return ErrorCodeProvider
}

// IsRetryable reports whether err may be retried: an adapter error's own
// flag, or the default retryability of its mapped code.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if ae, ok := AsError(err); ok {
		return ae.Retryable
	}
	return retryableByDefault(CodeOf(err))
}

// FromContext converts a context error into the matching adapter error.
// It returns nil when the context is still live.
func FromContext(ctx context.Context) *Error {
	switch ctx.Err() {
	case context.Canceled:
		return New(ErrorCodeCancelled, "request cancelled")
	case context.DeadlineExceeded:
		return New(ErrorCodeTimeout, "request deadline exceeded")
	default:
		return nil
	}
}

// Normalize coerces any error into an adapter error: taxonomy errors pass
// through, context errors map to cancelled or timeout, and everything else
// becomes a provider error.
func Normalize(err error) *Error {
	if err == nil {
		return nil
	}
	if ae, ok := AsError(err); ok {
		return ae
	}
	code := CodeOf(err)
	out := New(code, err.Error())
	out.Cause = err
	return out
}
