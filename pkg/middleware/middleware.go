package middleware

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"

	"babel-hq/rosetta/pkg/ir"
)

// Context carries the request and per-call scratch state through the
// stack. One Context serves one call; middleware share it by pointer.
type Context struct {
	// Request is the in-flight request. Middleware may rewrite it or
	// replace it outright before calling next.
	Request *ir.ChatRequest

	// Config holds per-call configuration values for middleware to read.
	Config map[string]any

	// State is a scratch area middleware use to pass values inward and
	// back out.
	State map[string]any

	// IsStreaming reports which execution path the call takes.
	IsStreaming bool

	// Backend names the backend chosen for the call, when already known.
	Backend string

	// ChunksProcessed counts stream chunks observed by middleware.
	ChunksProcessed atomic.Int64

	// StreamComplete reports whether the stream ran to completion.
	StreamComplete bool
}

// NewContext builds a call context for req, deriving the streaming flag
// from the request.
func NewContext(req *ir.ChatRequest) *Context {
	return &Context{
		Request:     req,
		Config:      make(map[string]any),
		State:       make(map[string]any),
		IsStreaming: req != nil && req.Stream,
	}
}

// NewStreamContext builds a call context for the streaming path regardless
// of the request's own flag.
func NewStreamContext(req *ir.ChatRequest) *Context {
	mctx := NewContext(req)
	mctx.IsStreaming = true
	return mctx
}

// Next resolves the downstream rest of a unary call: the inner middleware
// layers and finally the handler.
type Next func(ctx context.Context) (*ir.ChatResponse, error)

// StreamNext resolves the downstream rest of a streaming call.
type StreamNext func(ctx context.Context) (<-chan *ir.StreamChunk, error)

// UnaryFunc is one unary middleware layer.
type UnaryFunc func(ctx context.Context, mctx *Context, next Next) (*ir.ChatResponse, error)

// StreamFunc is one streaming middleware layer.
type StreamFunc func(ctx context.Context, mctx *Context, next StreamNext) (<-chan *ir.StreamChunk, error)

// ID returns a fresh identifier for anonymous middleware registrations.
func ID() string {
	return uuid.NewString()
}
