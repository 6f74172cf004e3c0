package bridge

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"babel-hq/rosetta/pkg/adapter"
	"babel-hq/rosetta/pkg/ir"
	"babel-hq/rosetta/pkg/middleware"
	"babel-hq/rosetta/pkg/router"
)

// routedBackend is the surface a backend must offer for per-call backend
// overrides to reach it. The in-tree router satisfies it.
type routedBackend interface {
	ExecuteWithOptions(ctx context.Context, req *ir.ChatRequest, opts router.Options) (*ir.ChatResponse, error)
	ExecuteStreamWithOptions(ctx context.Context, req *ir.ChatRequest, opts router.Options) (<-chan *ir.StreamChunk, error)
}

// observable is the surface a backend must offer for its events to be
// re-published onto the bridge's bus.
type observable interface {
	Observe(fn func(router.Event)) func()
}

// Bridge binds one frontend to a backend with an owned middleware stack.
// The backend may be a single adapter or a router; both satisfy the same
// contract. The bridge attaches request metadata, runs middleware, emits
// lifecycle events, and aggregates statistics.
type Bridge struct {
	frontend adapter.Frontend
	backend  adapter.Backend
	stack    *middleware.Stack
	bus      *Bus
	stats    *collector
	logger   *slog.Logger

	autoRequestID bool
	timeout       time.Duration
	retries       int

	routerOff func()
	closed    atomic.Bool
}

// New creates a bridge between frontend and backend. A nil frontend makes
// an IR-only bridge: ChatIR and ChatStreamIR work, Chat and ChatStream
// report validation errors. The bridge owns the backend and closes it.
func New(frontend adapter.Frontend, backend adapter.Backend, opts ...Option) (*Bridge, error) {
	if backend == nil {
		return nil, adapter.New(adapter.ErrorCodeValidation, "bridge requires a backend")
	}

	s := settings{
		stack:         middleware.NewStack(),
		autoRequestID: true,
		logger:        slog.Default().With("component", "bridge"),
		eventBuffer:   DefaultEventBuffer,
	}
	for _, opt := range opts {
		opt(&s)
	}
	for _, layer := range s.layers {
		if layer.unary != nil {
			s.stack.Use(layer.name, layer.unary)
		}
		if layer.stream != nil {
			s.stack.UseStream(layer.name, layer.stream)
		}
	}

	b := &Bridge{
		frontend:      frontend,
		backend:       backend,
		stack:         s.stack,
		stats:         newCollector(),
		logger:        s.logger,
		autoRequestID: s.autoRequestID,
		timeout:       s.timeout,
		retries:       s.retries,
	}
	b.bus = newBus(b.logger, s.eventBuffer)

	if ob, ok := backend.(observable); ok {
		b.routerOff = ob.Observe(b.republish)
	}
	return b, nil
}

// republish forwards a router event onto the bus under the router's own
// type string.
func (b *Bridge) republish(ev router.Event) {
	b.bus.Emit(Event{
		Type:      EventType(ev.Type),
		RequestID: ev.RequestID,
		Backend:   ev.Backend,
		Err:       ev.Err,
		Details:   ev.Details,
	})
}

// Frontend returns the bridge's frontend, nil for an IR-only bridge.
func (b *Bridge) Frontend() adapter.Frontend { return b.frontend }

// Backend returns the backend the bridge delegates to.
func (b *Bridge) Backend() adapter.Backend { return b.backend }

// Stack returns the bridge's middleware stack. It locks on first use.
func (b *Bridge) Stack() *middleware.Stack { return b.stack }

// Bus returns the bridge's event bus.
func (b *Bridge) Bus() *Bus { return b.bus }

// Stats returns a snapshot of the bridge's accounting.
func (b *Bridge) Stats() Stats { return b.stats.snapshot() }

// ResetStats snapshots the accounting, then clears it.
func (b *Bridge) ResetStats() Stats { return b.stats.reset() }

// Close detaches the bridge from its backend's events, drops every bus
// listener, and closes the backend. Idempotent.
func (b *Bridge) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	if b.routerOff != nil {
		b.routerOff()
	}
	b.bus.close()
	return b.backend.Close()
}

// attachMetadata stamps the correlation id, entry timestamp, and frontend
// provenance onto the request. The request id stays stable across retries
// and fallbacks from here on.
func (b *Bridge) attachMetadata(req *ir.ChatRequest) {
	md := &req.Metadata
	if md.RequestID == "" && b.autoRequestID {
		md.RequestID = uuid.NewString()
	}
	if md.Timestamp.IsZero() {
		md.Timestamp = time.Now()
	}
	if md.Provenance.Frontend == "" && b.frontend != nil {
		md.Provenance.Frontend = b.frontend.Name()
	}
}

// callSettings folds the per-request options over the bridge defaults.
func (b *Bridge) callSettings(opts []RequestOption) requestSettings {
	rs := requestSettings{timeout: b.timeout, retries: b.retries}
	for _, opt := range opts {
		opt(&rs)
	}
	return rs
}

// callContext applies the effective timeout. The returned cancel must be
// called when the call, or its stream, finishes.
func (b *Bridge) callContext(ctx context.Context, rs requestSettings) (context.Context, context.CancelFunc) {
	if rs.timeout > 0 {
		return context.WithTimeout(ctx, rs.timeout)
	}
	return context.WithCancel(ctx)
}

// frontendError maps a frontend conversion failure into the taxonomy with
// frontend provenance attached.
func (b *Bridge) frontendError(err error) error {
	if aerr, ok := adapter.AsError(err); ok {
		if aerr.Provenance.Frontend == "" && b.frontend != nil {
			aerr.Provenance.Frontend = b.frontend.Name()
		}
		return aerr
	}
	aerr := adapter.Wrap(adapter.ErrorCodeValidation, "frontend conversion failed", err)
	if b.frontend != nil {
		aerr.Provenance.Frontend = b.frontend.Name()
	}
	return aerr
}

// errClosed is the failure every call on a closed bridge returns.
func errClosed() error {
	return adapter.New(adapter.ErrorCodeValidation, "bridge is closed")
}
