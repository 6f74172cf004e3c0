package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"babel-hq/rosetta/pkg/adapter"
	"babel-hq/rosetta/pkg/ir"
)

// wireFrontend speaks the IR wire shape directly: request bodies are
// ChatRequest JSON, responses are ChatResponse JSON, and stream chunks go
// out as StreamChunk JSON. It backs the binary's /v1/chat route;
// vendor-specific wire formats are registered by embedding programs.
type wireFrontend struct {
	name string
}

func newWireFrontend(name string) *wireFrontend {
	if name == "" {
		name = "rosetta"
	}
	return &wireFrontend{name: name}
}

func (f *wireFrontend) Name() string { return f.name }

func (f *wireFrontend) Capabilities() adapter.Capabilities {
	return adapter.DefaultCapabilities()
}

func (f *wireFrontend) ValidateRequest(payload any) error {
	req, err := f.decode(payload)
	if err != nil {
		return err
	}
	_, err = f.complete(req)
	return err
}

func (f *wireFrontend) ToIR(payload any) (*ir.ChatRequest, error) {
	req, err := f.decode(payload)
	if err != nil {
		return nil, err
	}
	return f.complete(req)
}

func (f *wireFrontend) FromIR(resp *ir.ChatResponse) (any, error) {
	return resp, nil
}

func (f *wireFrontend) FromIRStream(ctx context.Context, chunks <-chan *ir.StreamChunk) <-chan any {
	out := make(chan any)
	go func() {
		defer close(out)
		for c := range chunks {
			select {
			case out <- c:
			case <-ctx.Done():
				for range chunks {
				}
				return
			}
		}
	}()
	return out
}

// decode turns the wire payload into an IR request without validating it.
func (f *wireFrontend) decode(payload any) (*ir.ChatRequest, error) {
	switch p := payload.(type) {
	case *ir.ChatRequest:
		return p, nil
	case map[string]any:
		raw, err := json.Marshal(p)
		if err != nil {
			return nil, adapter.Wrap(adapter.ErrorCodeValidation, "unencodable request body", err)
		}
		req := &ir.ChatRequest{}
		if err := json.Unmarshal(raw, req); err != nil {
			return nil, adapter.Wrap(adapter.ErrorCodeValidation, "malformed chat request", err)
		}
		return req, nil
	default:
		return nil, adapter.Newf(adapter.ErrorCodeValidation, "unsupported payload type %T", payload)
	}
}

// complete returns a validated clone with correlation metadata and
// frontend provenance filled in. Wire callers rarely send request ids or
// timestamps; the edge generates the missing ones so everything inward
// can rely on them.
func (f *wireFrontend) complete(req *ir.ChatRequest) (*ir.ChatRequest, error) {
	out := req.Clone()
	if out.Metadata.RequestID == "" {
		out.Metadata.RequestID = uuid.NewString()
	}
	if out.Metadata.Timestamp.IsZero() {
		out.Metadata.Timestamp = time.Now()
	}
	out.Metadata.Provenance.Frontend = f.name
	if err := out.Validate(); err != nil {
		return nil, adapter.Wrap(adapter.ErrorCodeValidation, "invalid request", err)
	}
	return out, nil
}
