package fabrictest

import (
	"context"
	"sync"

	"babel-hq/rosetta/pkg/adapter"
	"babel-hq/rosetta/pkg/ir"
)

// Backend is a scripted in-memory backend for tests. The zero behaviors
// answer every request with a short text response and a three-chunk
// stream; OnExecute and OnStream override them.
type Backend struct {
	BackendName string
	Caps        adapter.Capabilities

	// OnExecute overrides the unary behavior.
	OnExecute func(ctx context.Context, req *ir.ChatRequest) (*ir.ChatResponse, error)

	// OnStream overrides the streaming behavior.
	OnStream func(ctx context.Context, req *ir.ChatRequest) (<-chan *ir.StreamChunk, error)

	mu       sync.Mutex
	calls    int
	requests []*ir.ChatRequest
	closed   bool
}

// NewBackend creates a backend named name with unrestricted capabilities.
func NewBackend(name string) *Backend {
	return &Backend{
		BackendName: name,
		Caps:        adapter.Capabilities{Streaming: true},
	}
}

func (b *Backend) Name() string { return b.BackendName }

func (b *Backend) Capabilities() adapter.Capabilities { return b.Caps }

func (b *Backend) Execute(ctx context.Context, req *ir.ChatRequest) (*ir.ChatResponse, error) {
	b.record(req)
	if b.OnExecute != nil {
		return b.OnExecute(ctx, req)
	}
	return &ir.ChatResponse{
		Message:      ir.TextMessage(ir.RoleAssistant, "from "+b.BackendName),
		FinishReason: ir.FinishReasonStop,
	}, nil
}

func (b *Backend) ExecuteStream(ctx context.Context, req *ir.ChatRequest) (<-chan *ir.StreamChunk, error) {
	b.record(req)
	if b.OnStream != nil {
		return b.OnStream(ctx, req)
	}
	return Chunks(
		ir.StartChunk(0, nil),
		ir.ContentChunk(1, "from "+b.BackendName),
		ir.DoneChunk(2, ir.FinishReasonStop, nil),
	), nil
}

func (b *Backend) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return nil
}

func (b *Backend) record(req *ir.ChatRequest) {
	b.mu.Lock()
	b.calls++
	b.requests = append(b.requests, req)
	b.mu.Unlock()
}

// Calls reports how many requests the backend received, both paths
// combined.
func (b *Backend) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

// LastRequest returns the most recent request, or nil.
func (b *Backend) LastRequest() *ir.ChatRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.requests) == 0 {
		return nil
	}
	return b.requests[len(b.requests)-1]
}

// Closed reports whether Close has been called.
func (b *Backend) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// ProbedBackend adds a scriptable health probe to a Backend.
type ProbedBackend struct {
	*Backend

	// OnHealth answers health probes. Nil means healthy.
	OnHealth func(ctx context.Context) error
}

// NewProbedBackend creates a backend whose health probe is scriptable.
func NewProbedBackend(name string) *ProbedBackend {
	return &ProbedBackend{Backend: NewBackend(name)}
}

func (b *ProbedBackend) HealthCheck(ctx context.Context) error {
	if b.OnHealth != nil {
		return b.OnHealth(ctx)
	}
	return nil
}

// Chunks returns a closed, buffered channel delivering the given chunks in
// order, the way a backend that already finished would.
func Chunks(chunks ...*ir.StreamChunk) <-chan *ir.StreamChunk {
	ch := make(chan *ir.StreamChunk, len(chunks))
	for _, c := range chunks {
		ch <- c
	}
	close(ch)
	return ch
}

// FailingBackend returns a backend whose both paths fail with err.
func FailingBackend(name string, err error) *Backend {
	b := NewBackend(name)
	b.OnExecute = func(context.Context, *ir.ChatRequest) (*ir.ChatResponse, error) {
		return nil, err
	}
	b.OnStream = func(context.Context, *ir.ChatRequest) (<-chan *ir.StreamChunk, error) {
		return nil, err
	}
	return b
}
