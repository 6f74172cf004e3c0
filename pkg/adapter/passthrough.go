package adapter

import (
	"context"

	"babel-hq/rosetta/pkg/ir"
)

// Passthrough is the zero-translation frontend: callers speak IR directly.
// ToIR validates the request and stamps provenance; the response paths
// return their arguments unchanged.
type Passthrough struct {
	name string
}

// NewPassthrough creates a passthrough frontend. An empty name defaults to
// "passthrough".
func NewPassthrough(name string) *Passthrough {
	if name == "" {
		name = "passthrough"
	}
	return &Passthrough{name: name}
}

// Name implements Frontend.
func (p *Passthrough) Name() string { return p.name }

// Capabilities implements Frontend. The passthrough accepts everything the
// IR can express.
func (p *Passthrough) Capabilities() Capabilities {
	return DefaultCapabilities()
}

// ToIR implements Frontend. The payload must be a *ir.ChatRequest; it is
// validated against the IR invariants and returned with provenance stamped.
func (p *Passthrough) ToIR(payload any) (*ir.ChatRequest, error) {
	req, ok := payload.(*ir.ChatRequest)
	if !ok {
		return nil, Newf(ErrorCodeValidation, "passthrough frontend expects *ir.ChatRequest, got %T", payload)
	}
	if err := req.Validate(); err != nil {
		return nil, Wrap(ErrorCodeValidation, "invalid request", err)
	}
	out := req.Clone()
	out.Metadata.Provenance.Frontend = p.name
	return out, nil
}

// FromIR implements Frontend, returning the response unchanged.
func (p *Passthrough) FromIR(resp *ir.ChatResponse) (any, error) {
	return resp, nil
}

// FromIRStream implements Frontend, forwarding each chunk unchanged.
func (p *Passthrough) FromIRStream(ctx context.Context, chunks <-chan *ir.StreamChunk) <-chan any {
	out := make(chan any)
	go func() {
		defer close(out)
		for chunk := range chunks {
			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// ValidateRequest implements RequestValidator against the IR invariants.
func (p *Passthrough) ValidateRequest(payload any) error {
	req, ok := payload.(*ir.ChatRequest)
	if !ok {
		return Newf(ErrorCodeValidation, "passthrough frontend expects *ir.ChatRequest, got %T", payload)
	}
	if err := req.Validate(); err != nil {
		return Wrap(ErrorCodeValidation, "invalid request", err)
	}
	return nil
}
