package adapter

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"babel-hq/rosetta/pkg/ir"
)

// StaticConfig configures a StaticBackend.
type StaticConfig struct {
	// Name identifies the backend. Required.
	Name string `yaml:"name"`

	// Models lists the model identifiers the backend claims to serve.
	Models []string `yaml:"models"`

	// Response is the reply text. Empty uses "Response from <name>".
	Response string `yaml:"response"`

	// Latency delays every unary call and stream start.
	Latency time.Duration `yaml:"latency"`

	// ChunkLatency delays each streamed content chunk.
	ChunkLatency time.Duration `yaml:"chunk_latency"`

	// FailFirst makes the first N calls fail with a retryable network
	// error before the backend starts succeeding.
	FailFirst int `yaml:"fail_first"`

	// FailCode, when set, makes every call fail with this taxonomy code.
	FailCode ErrorCode `yaml:"fail_code"`

	// InputCostPerMTok and OutputCostPerMTok drive cost estimation.
	InputCostPerMTok  float64 `yaml:"input_cost_per_mtok"`
	OutputCostPerMTok float64 `yaml:"output_cost_per_mtok"`

	// Capabilities overrides the default permissive descriptor.
	Capabilities *Capabilities `yaml:"capabilities"`
}

// StaticBackend is an in-process reference backend. It answers with a
// configured response, streams it word by word, and can simulate latency
// and failure patterns. The CLI demo, the examples, and many tests run
// against it.
type StaticBackend struct {
	cfg   StaticConfig
	caps  Capabilities
	calls atomic.Int64
}

// NewStaticBackend creates a static backend from the config.
func NewStaticBackend(cfg StaticConfig) *StaticBackend {
	caps := DefaultCapabilities()
	if cfg.Capabilities != nil {
		caps = *cfg.Capabilities
	}
	if len(cfg.Models) > 0 {
		caps.SupportedModels = append([]string(nil), cfg.Models...)
	}
	return &StaticBackend{cfg: cfg, caps: caps}
}

// Name implements Backend.
func (b *StaticBackend) Name() string { return b.cfg.Name }

// Capabilities implements Backend.
func (b *StaticBackend) Capabilities() Capabilities { return b.caps }

// Close implements Backend.
func (b *StaticBackend) Close() error { return nil }

// Calls returns how many execute calls the backend has received.
func (b *StaticBackend) Calls() int64 { return b.calls.Load() }

func (b *StaticBackend) responseText() string {
	if b.cfg.Response != "" {
		return b.cfg.Response
	}
	return "Response from " + b.cfg.Name
}

// shouldFail consumes one call slot and returns the configured failure, if
// any.
func (b *StaticBackend) shouldFail() *Error {
	n := b.calls.Add(1)
	if b.cfg.FailCode != "" {
		return Newf(b.cfg.FailCode, "backend %s configured to fail", b.cfg.Name).WithBackend(b.cfg.Name)
	}
	if b.cfg.FailFirst > 0 && n <= int64(b.cfg.FailFirst) {
		e := Newf(ErrorCodeNetwork, "simulated network failure %d of %d", n, b.cfg.FailFirst)
		return e.WithBackend(b.cfg.Name)
	}
	return nil
}

func (b *StaticBackend) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// Execute implements Backend.
func (b *StaticBackend) Execute(ctx context.Context, req *ir.ChatRequest) (*ir.ChatResponse, error) {
	if err := b.wait(ctx, b.cfg.Latency); err != nil {
		return nil, FromContext(ctx)
	}
	if fail := b.shouldFail(); fail != nil {
		return nil, fail
	}

	text := b.responseText()
	meta := req.Metadata.Clone()
	meta.ProviderResponseID = fmt.Sprintf("%s-%d", b.cfg.Name, b.calls.Load())
	meta.Provenance.Backend = b.cfg.Name

	prompt := ir.EstimateRequestTokens(req)
	completion := ir.EstimateTokens(text)
	return &ir.ChatResponse{
		Message:      ir.TextMessage(ir.RoleAssistant, text),
		FinishReason: ir.FinishReasonStop,
		Usage: &ir.Usage{
			PromptTokens:     prompt,
			CompletionTokens: completion,
			TotalTokens:      prompt + completion,
		},
		Metadata: meta,
	}, nil
}

// ExecuteStream implements Backend. The response text streams word by word
// with the configured chunk latency; cancellation yields a terminal error
// chunk with code cancelled.
func (b *StaticBackend) ExecuteStream(ctx context.Context, req *ir.ChatRequest) (<-chan *ir.StreamChunk, error) {
	if err := b.wait(ctx, b.cfg.Latency); err != nil {
		return nil, FromContext(ctx)
	}
	if fail := b.shouldFail(); fail != nil {
		return nil, fail
	}

	text := b.responseText()
	words := strings.Fields(text)
	meta := req.Metadata.Clone()
	meta.Provenance.Backend = b.cfg.Name

	out := make(chan *ir.StreamChunk)
	go func() {
		defer close(out)
		seq := 0
		send := func(c *ir.StreamChunk) bool {
			select {
			case out <- c:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !send(ir.StartChunk(seq, &meta)) {
			return
		}
		seq++

		for i, word := range words {
			if err := b.wait(ctx, b.cfg.ChunkLatency); err != nil {
				send(ir.ErrorChunk(seq, string(ErrorCodeCancelled), "stream cancelled"))
				return
			}
			delta := word
			if i < len(words)-1 {
				delta += " "
			}
			if !send(ir.ContentChunk(seq, delta)) {
				return
			}
			seq++
		}

		prompt := ir.EstimateRequestTokens(req)
		completion := ir.EstimateTokens(text)
		send(ir.DoneChunk(seq, ir.FinishReasonStop, &ir.Usage{
			PromptTokens:     prompt,
			CompletionTokens: completion,
			TotalTokens:      prompt + completion,
		}))
	}()
	return out, nil
}

// HealthCheck implements HealthChecker. A backend configured to always
// fail reports unhealthy.
func (b *StaticBackend) HealthCheck(ctx context.Context) error {
	if b.cfg.FailCode != "" {
		return Newf(b.cfg.FailCode, "backend %s is failing", b.cfg.Name).WithBackend(b.cfg.Name)
	}
	return ctx.Err()
}

// EstimateCost implements CostEstimator using the configured per-token
// prices and the 4-char token estimate.
func (b *StaticBackend) EstimateCost(req *ir.ChatRequest) (*CostEstimate, error) {
	prompt := float64(ir.EstimateRequestTokens(req))
	maxOut := 1024.0
	if req.Parameters != nil && req.Parameters.MaxTokens != nil {
		maxOut = float64(*req.Parameters.MaxTokens)
	}
	in := prompt / 1e6 * b.cfg.InputCostPerMTok
	outCost := maxOut / 1e6 * b.cfg.OutputCostPerMTok
	return &CostEstimate{
		InputCost:  in,
		OutputCost: outCost,
		TotalCost:  in + outCost,
		Currency:   "USD",
	}, nil
}

// ListModels implements ModelLister from the configured model list.
func (b *StaticBackend) ListModels(ctx context.Context, opts *ListModelsOptions) (*ListModelsResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, FromContext(ctx)
	}
	models := make([]ModelInfo, 0, len(b.cfg.Models))
	for _, id := range b.cfg.Models {
		models = append(models, ModelInfo{
			ID:                id,
			Family:            ModelFamily(id),
			InputCostPerMTok:  b.cfg.InputCostPerMTok,
			OutputCostPerMTok: b.cfg.OutputCostPerMTok,
		})
	}
	result := &ListModelsResult{
		Models:     models,
		Source:     ModelSourceStatic,
		FetchedAt:  time.Now(),
		IsComplete: true,
	}
	if opts != nil && opts.Filter != nil {
		result = FilterModels(result, opts.Filter)
	}
	return result, nil
}

// InvalidateModelCache implements ModelLister. The static list has no
// cache to drop.
func (b *StaticBackend) InvalidateModelCache() {}
