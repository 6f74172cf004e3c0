package bridge

import (
	"log/slog"
	"time"

	"babel-hq/rosetta/pkg/middleware"
)

// DefaultEventBuffer sizes the channel returned by Bus.Chan.
const DefaultEventBuffer = 100

// Option configures a Bridge at construction.
type Option func(*settings)

type pendingLayer struct {
	name   string
	unary  middleware.UnaryFunc
	stream middleware.StreamFunc
}

type settings struct {
	stack         *middleware.Stack
	layers        []pendingLayer
	autoRequestID bool
	timeout       time.Duration
	retries       int
	logger        *slog.Logger
	eventBuffer   int
}

// WithStack supplies a pre-built middleware stack. The bridge takes
// ownership of it; layers added through WithMiddleware are appended to it
// regardless of option order.
func WithStack(stack *middleware.Stack) Option {
	return func(s *settings) {
		if stack != nil {
			s.stack = stack
		}
	}
}

// WithMiddleware appends a unary middleware layer to the bridge's stack.
func WithMiddleware(name string, fn middleware.UnaryFunc) Option {
	return func(s *settings) {
		s.layers = append(s.layers, pendingLayer{name: name, unary: fn})
	}
}

// WithStreamMiddleware appends a streaming middleware layer to the
// bridge's stack.
func WithStreamMiddleware(name string, fn middleware.StreamFunc) Option {
	return func(s *settings) {
		s.layers = append(s.layers, pendingLayer{name: name, stream: fn})
	}
}

// WithAutoRequestID controls whether the bridge generates a request id
// when the frontend did not. On by default.
func WithAutoRequestID(enabled bool) Option {
	return func(s *settings) {
		s.autoRequestID = enabled
	}
}

// WithTimeout sets the default per-request deadline. Zero means no
// bridge-imposed deadline.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) {
		s.timeout = d
	}
}

// WithRetries sets how many times the bridge re-runs a failed unary call
// on top of any backend or middleware retry. Zero, the default, disables
// bridge-level retry. Streams are never retried at this layer.
func WithRetries(n int) Option {
	return func(s *settings) {
		if n >= 0 {
			s.retries = n
		}
	}
}

// WithLogger replaces the bridge's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithEventBuffer sizes the buffered channels handed out by Bus.Chan.
func WithEventBuffer(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.eventBuffer = n
		}
	}
}

// RequestOption overrides bridge behavior for a single call.
type RequestOption func(*requestSettings)

type requestSettings struct {
	timeout        time.Duration
	backend        string
	skipMiddleware bool
	retries        int
	retriesSet     bool
}

// WithRequestTimeout overrides the bridge's default deadline for one call.
func WithRequestTimeout(d time.Duration) RequestOption {
	return func(s *requestSettings) {
		s.timeout = d
	}
}

// WithBackend forces the named backend for one call. The name is passed
// through to the router; for a bridge bound directly to a single backend
// it must match that backend's name.
func WithBackend(name string) RequestOption {
	return func(s *requestSettings) {
		s.backend = name
	}
}

// WithSkipMiddleware bypasses the middleware stack for one call.
func WithSkipMiddleware() RequestOption {
	return func(s *requestSettings) {
		s.skipMiddleware = true
	}
}

// WithRequestRetries overrides the bridge's retry count for one call.
// Zero disables bridge-level retry for the call.
func WithRequestRetries(n int) RequestOption {
	return func(s *requestSettings) {
		if n >= 0 {
			s.retries = n
			s.retriesSet = true
		}
	}
}
