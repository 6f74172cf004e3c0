package adapter

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestErrorFormatting(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "with backend",
			err:  &Error{Code: ErrorCodeRateLimit, Message: "quota exhausted", Backend: "openai-primary"},
			want: `backend "openai-primary" rate_limit error: quota exhausted`,
		},
		{
			name: "without backend",
			err:  &Error{Code: ErrorCodeNoBackend, Message: "no candidates"},
			want: "no_backend error: no candidates",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDefaultRetryability(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want bool
	}{
		{ErrorCodeNetwork, true},
		{ErrorCodeRateLimit, true},
		{ErrorCodeValidation, false},
		{ErrorCodeProvider, false},
		{ErrorCodeTimeout, false},
		{ErrorCodeCancelled, false},
		{ErrorCodeCircuitOpen, false},
		{ErrorCodeNoBackend, false},
		{ErrorCodeMiddleware, false},
		{ErrorCodeUnsupported, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := New(tt.code, "x").Retryable; got != tt.want {
				t.Errorf("New(%s).Retryable = %v, want %v", tt.code, got, tt.want)
			}
		})
	}
}

func TestWrapPreservesTaxonomy(t *testing.T) {
	inner := New(ErrorCodeRateLimit, "too many requests").WithBackend("b1")
	wrapped := Wrap(ErrorCodeMiddleware, "validation middleware", inner)

	if wrapped.Code != ErrorCodeRateLimit {
		t.Errorf("wrapped code = %s, want rate_limit", wrapped.Code)
	}
	if !wrapped.Retryable {
		t.Error("wrapped error lost retryability")
	}
	if wrapped.Backend != "b1" {
		t.Errorf("wrapped backend = %q, want b1", wrapped.Backend)
	}
	if !errors.Is(wrapped, inner) {
		t.Error("errors.Is cannot find the cause")
	}
}

func TestWrapUntypedError(t *testing.T) {
	cause := fmt.Errorf("socket closed")
	wrapped := Wrap(ErrorCodeNetwork, "transport failed", cause)

	if wrapped.Code != ErrorCodeNetwork {
		t.Errorf("code = %s, want network", wrapped.Code)
	}
	if !wrapped.Retryable {
		t.Error("network wrap should be retryable")
	}
	if !errors.Is(wrapped, cause) {
		t.Error("cause not reachable through Unwrap")
	}
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{name: "nil", err: nil, want: ""},
		{name: "adapter error", err: New(ErrorCodeCircuitOpen, "open"), want: ErrorCodeCircuitOpen},
		{name: "wrapped adapter error", err: fmt.Errorf("outer: %w", New(ErrorCodeTimeout, "late")), want: ErrorCodeTimeout},
		{name: "context canceled", err: context.Canceled, want: ErrorCodeCancelled},
		{name: "deadline exceeded", err: context.DeadlineExceeded, want: ErrorCodeTimeout},
		{name: "untyped", err: fmt.Errorf("boom"), want: ErrorCodeProvider},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeOf(tt.err); got != tt.want {
				t.Errorf("CodeOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(New(ErrorCodeProvider, "x").WithRetryable(true)) {
		t.Error("explicit retryable flag not honored")
	}
	if IsRetryable(New(ErrorCodeProvider, "x")) {
		t.Error("provider default should be non-retryable")
	}
	if IsRetryable(context.Canceled) {
		t.Error("cancellation must not be retryable")
	}
	if IsRetryable(nil) {
		t.Error("nil error must not be retryable")
	}
}

func TestFromContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	if FromContext(ctx) != nil {
		t.Error("live context should produce nil")
	}
	cancel()
	if got := FromContext(ctx); got == nil || got.Code != ErrorCodeCancelled {
		t.Errorf("cancelled context = %v, want cancelled error", got)
	}

	expired, cancel2 := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel2()
	<-expired.Done()
	if got := FromContext(expired); got == nil || got.Code != ErrorCodeTimeout {
		t.Errorf("expired context = %v, want timeout error", got)
	}
}
