package middleware

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"babel-hq/rosetta/pkg/adapter"
	"babel-hq/rosetta/pkg/ir"
)

// ErrStackLocked is the panic value raised when a stack is mutated after
// its first execution. Mutating a running stack is a fatal configuration
// error, not a runtime condition.
var ErrStackLocked = errors.New("middleware: stack locked after first execution")

type unaryEntry struct {
	name string
	fn   UnaryFunc
}

type streamEntry struct {
	name string
	fn   StreamFunc
}

// Stack composes middleware in onion order: the first layer added runs
// outermost. It holds separate unary and streaming registries that lock
// together on first execution.
type Stack struct {
	mu      sync.RWMutex
	unary   []unaryEntry
	streams []streamEntry
	locked  atomic.Bool
}

// NewStack creates an empty middleware stack.
func NewStack() *Stack {
	return &Stack{}
}

// Use appends a unary layer. An empty name gets a generated identifier.
// Panics with ErrStackLocked after the stack has executed.
func (s *Stack) Use(name string, fn UnaryFunc) *Stack {
	if name == "" {
		name = ID()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locked.Load() {
		panic(ErrStackLocked)
	}
	s.unary = append(s.unary, unaryEntry{name: name, fn: fn})
	return s
}

// UseStream appends a streaming layer. An empty name gets a generated
// identifier. Panics with ErrStackLocked after the stack has executed.
func (s *Stack) UseStream(name string, fn StreamFunc) *Stack {
	if name == "" {
		name = ID()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locked.Load() {
		panic(ErrStackLocked)
	}
	s.streams = append(s.streams, streamEntry{name: name, fn: fn})
	return s
}

// Remove deletes every layer with the given name from both registries.
// Panics with ErrStackLocked after the stack has executed.
func (s *Stack) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locked.Load() {
		panic(ErrStackLocked)
	}
	removed := false
	unary := s.unary[:0]
	for _, e := range s.unary {
		if e.name == name {
			removed = true
			continue
		}
		unary = append(unary, e)
	}
	s.unary = unary

	streams := s.streams[:0]
	for _, e := range s.streams {
		if e.name == name {
			removed = true
			continue
		}
		streams = append(streams, e)
	}
	s.streams = streams
	return removed
}

// Clear removes every layer from both registries. Panics with
// ErrStackLocked after the stack has executed.
func (s *Stack) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locked.Load() {
		panic(ErrStackLocked)
	}
	s.unary = nil
	s.streams = nil
}

// Names returns the unary layer names in registration order.
func (s *Stack) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.unary))
	for i, e := range s.unary {
		out[i] = e.name
	}
	return out
}

// StreamNames returns the streaming layer names in registration order.
func (s *Stack) StreamNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.streams))
	for i, e := range s.streams {
		out[i] = e.name
	}
	return out
}

// Len returns the total number of registered layers across both
// registries.
func (s *Stack) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.unary) + len(s.streams)
}

// Locked reports whether the stack has executed and is now immutable.
func (s *Stack) Locked() bool {
	return s.locked.Load()
}

// Execute runs the unary layers around handler. The first execution locks
// the stack.
func (s *Stack) Execute(ctx context.Context, mctx *Context, handler Next) (*ir.ChatResponse, error) {
	s.locked.Store(true)

	s.mu.RLock()
	layers := make([]unaryEntry, len(s.unary))
	copy(layers, s.unary)
	s.mu.RUnlock()

	// Handler errors keep their own taxonomy; only errors produced by a
	// middleware layer itself are attributed below.
	next := func(c context.Context) (*ir.ChatResponse, error) {
		resp, err := handler(c)
		if err != nil {
			return nil, adapter.Normalize(err)
		}
		return resp, nil
	}

	for i := len(layers) - 1; i >= 0; i-- {
		layer := layers[i]
		inner := next
		next = func(c context.Context) (*ir.ChatResponse, error) {
			recordMiddleware(mctx, layer.name)
			resp, err := layer.fn(c, mctx, inner)
			if err != nil {
				return nil, attributeError(err, layer.name)
			}
			return resp, nil
		}
	}
	return next(ctx)
}

// ExecuteStream runs the streaming layers around handler. The first
// execution locks the stack.
func (s *Stack) ExecuteStream(ctx context.Context, mctx *Context, handler StreamNext) (<-chan *ir.StreamChunk, error) {
	s.locked.Store(true)

	s.mu.RLock()
	layers := make([]streamEntry, len(s.streams))
	copy(layers, s.streams)
	s.mu.RUnlock()

	next := func(c context.Context) (<-chan *ir.StreamChunk, error) {
		out, err := handler(c)
		if err != nil {
			return nil, adapter.Normalize(err)
		}
		return out, nil
	}

	for i := len(layers) - 1; i >= 0; i-- {
		layer := layers[i]
		inner := next
		next = func(c context.Context) (<-chan *ir.StreamChunk, error) {
			recordMiddleware(mctx, layer.name)
			out, err := layer.fn(c, mctx, inner)
			if err != nil {
				return nil, attributeError(err, layer.name)
			}
			return out, nil
		}
	}
	return next(ctx)
}

// recordMiddleware appends the layer name to the request's provenance in
// execution order.
func recordMiddleware(mctx *Context, name string) {
	if mctx == nil || mctx.Request == nil {
		return
	}
	prov := &mctx.Request.Metadata.Provenance
	prov.Middleware = append(prov.Middleware, name)
}

// attributeError wraps untyped middleware failures with the middleware
// code and the offending layer's name. Typed errors pass through.
func attributeError(err error, name string) error {
	if _, ok := adapter.AsError(err); ok {
		return err
	}
	wrapped := adapter.Wrap(adapter.ErrorCodeMiddleware, fmt.Sprintf("middleware %q failed", name), err)
	wrapped.Provenance.Middleware = []string{name}
	return wrapped
}
