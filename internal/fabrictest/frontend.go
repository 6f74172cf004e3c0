package fabrictest

import (
	"context"

	"babel-hq/rosetta/pkg/adapter"
	"babel-hq/rosetta/pkg/ir"
)

// Frontend is a scripted frontend for tests. By default it accepts string
// payloads as single user messages and IR requests as-is, returns the
// assistant text for unary responses, and forwards chunks unchanged on
// the streaming path. The On hooks override each conversion.
type Frontend struct {
	FrontendName string

	// OnValidate overrides payload validation. Nil accepts everything.
	OnValidate func(payload any) error

	// OnToIR overrides payload conversion.
	OnToIR func(payload any) (*ir.ChatRequest, error)

	// OnFromIR overrides response conversion.
	OnFromIR func(resp *ir.ChatResponse) (any, error)

	// OnChunk overrides per-chunk conversion on the streaming path.
	OnChunk func(c *ir.StreamChunk) any
}

// NewFrontend creates a frontend named name.
func NewFrontend(name string) *Frontend {
	return &Frontend{FrontendName: name}
}

func (f *Frontend) Name() string { return f.FrontendName }

func (f *Frontend) Capabilities() adapter.Capabilities {
	return adapter.Capabilities{Streaming: true}
}

func (f *Frontend) ValidateRequest(payload any) error {
	if f.OnValidate != nil {
		return f.OnValidate(payload)
	}
	return nil
}

func (f *Frontend) ToIR(payload any) (*ir.ChatRequest, error) {
	if f.OnToIR != nil {
		return f.OnToIR(payload)
	}
	switch p := payload.(type) {
	case *ir.ChatRequest:
		return p, nil
	case string:
		return &ir.ChatRequest{
			Messages: []ir.Message{ir.TextMessage(ir.RoleUser, p)},
		}, nil
	default:
		return nil, adapter.Newf(adapter.ErrorCodeValidation, "unsupported payload type %T", payload)
	}
}

func (f *Frontend) FromIR(resp *ir.ChatResponse) (any, error) {
	if f.OnFromIR != nil {
		return f.OnFromIR(resp)
	}
	return resp.Message.ContentText(), nil
}

func (f *Frontend) FromIRStream(ctx context.Context, chunks <-chan *ir.StreamChunk) <-chan any {
	out := make(chan any, 1)
	go func() {
		defer close(out)
		for c := range chunks {
			var v any = c
			if f.OnChunk != nil {
				v = f.OnChunk(c)
			}
			select {
			case out <- v:
			case <-ctx.Done():
				for range chunks {
				}
				return
			}
		}
	}()
	return out
}
