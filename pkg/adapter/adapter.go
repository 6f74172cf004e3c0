package adapter

import (
	"context"

	"babel-hq/rosetta/pkg/ir"
)

// Frontend converts between a caller-shaped payload and the IR.
//
// Implementations are stateless with respect to individual requests and
// safe for concurrent use.
type Frontend interface {
	// Name identifies the frontend in provenance and routing tables.
	Name() string

	// Capabilities describes the shape of payloads the frontend accepts.
	Capabilities() Capabilities

	// ToIR converts a caller payload into an IR request and stamps the
	// frontend into provenance.
	ToIR(payload any) (*ir.ChatRequest, error)

	// FromIR converts an IR response back into the caller's shape.
	FromIR(resp *ir.ChatResponse) (any, error)

	// FromIRStream converts a chunk stream into the caller's streaming
	// shape. The returned channel closes when the source closes.
	FromIRStream(ctx context.Context, chunks <-chan *ir.StreamChunk) <-chan any
}

// RequestValidator is an optional frontend extension that validates a
// caller payload before conversion.
type RequestValidator interface {
	ValidateRequest(payload any) error
}

// Backend executes IR requests against one provider.
//
// Every failure is an *Error with a taxonomy code. Implementations must
// honor context cancellation on both execution paths.
type Backend interface {
	// Name identifies the backend in routing tables, stats, and provenance.
	Name() string

	// Capabilities describes what the backend supports.
	Capabilities() Capabilities

	// Execute performs a unary chat call.
	Execute(ctx context.Context, req *ir.ChatRequest) (*ir.ChatResponse, error)

	// ExecuteStream performs a streaming chat call. The returned channel is
	// one-shot and forward-only: it delivers chunks in emission order,
	// carries failures in-band as a terminal error chunk, and closes when
	// the stream ends.
	ExecuteStream(ctx context.Context, req *ir.ChatRequest) (<-chan *ir.StreamChunk, error)

	// Close releases the backend's resources.
	Close() error
}

// HealthChecker is an optional backend extension probed by the router's
// health loop.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// CostEstimator is an optional backend extension used by cost-aware
// routing.
type CostEstimator interface {
	EstimateCost(req *ir.ChatRequest) (*CostEstimate, error)
}

// CostEstimate is a backend's predicted cost for one request.
type CostEstimate struct {
	// InputCost is the predicted prompt cost in USD.
	InputCost float64 `json:"inputCost"`

	// OutputCost is the predicted completion cost in USD, based on the
	// requested max tokens.
	OutputCost float64 `json:"outputCost"`

	// TotalCost is the sum of input and output cost.
	TotalCost float64 `json:"totalCost"`

	// Currency is the ISO currency code, normally USD.
	Currency string `json:"currency"`
}

// ModelLister is an optional backend extension that enumerates the models
// the backend can serve.
type ModelLister interface {
	// ListModels returns the models the backend serves. Implementations
	// may serve from a cache unless opts.ForceRefresh is set.
	ListModels(ctx context.Context, opts *ListModelsOptions) (*ListModelsResult, error)

	// InvalidateModelCache drops any cached model list.
	InvalidateModelCache()
}

// WireTranslator is an optional backend extension exposing the raw wire
// codec, for callers that need the provider-shaped payloads.
type WireTranslator interface {
	// FromIR converts an IR request into the provider's wire request.
	FromIR(req *ir.ChatRequest) (any, error)

	// ToIR converts a provider wire response into an IR response.
	ToIR(wire any) (*ir.ChatResponse, error)
}
