package adapter

import (
	"context"
	"strings"
	"testing"
	"time"

	"babel-hq/rosetta/pkg/ir"
)

func staticRequest() *ir.ChatRequest {
	return &ir.ChatRequest{
		Messages: []ir.Message{ir.TextMessage(ir.RoleUser, "Hi")},
		Metadata: ir.Metadata{RequestID: "req-static", Timestamp: time.Now()},
	}
}

func TestStaticBackendExecute(t *testing.T) {
	b := NewStaticBackend(StaticConfig{Name: "demo", Models: []string{"demo-small"}})
	defer b.Close()

	resp, err := b.Execute(context.Background(), staticRequest())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if got := resp.Message.ContentText(); got != "Response from demo" {
		t.Errorf("response text = %q", got)
	}
	if resp.FinishReason != ir.FinishReasonStop {
		t.Errorf("finish reason = %q, want stop", resp.FinishReason)
	}
	if resp.Metadata.Provenance.Backend != "demo" {
		t.Errorf("provenance backend = %q, want demo", resp.Metadata.Provenance.Backend)
	}
	if resp.Usage == nil || resp.Usage.TotalTokens == 0 {
		t.Error("usage should be estimated")
	}
}

func TestStaticBackendFailFirst(t *testing.T) {
	b := NewStaticBackend(StaticConfig{Name: "flaky", FailFirst: 2})
	defer b.Close()

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := b.Execute(ctx, staticRequest())
		ae, ok := AsError(err)
		if !ok || ae.Code != ErrorCodeNetwork {
			t.Fatalf("call %d: error = %v, want network error", i+1, err)
		}
		if !ae.Retryable {
			t.Errorf("call %d: simulated network failure should be retryable", i+1)
		}
	}

	if _, err := b.Execute(ctx, staticRequest()); err != nil {
		t.Errorf("third call should succeed, got %v", err)
	}
}

func TestStaticBackendStream(t *testing.T) {
	b := NewStaticBackend(StaticConfig{Name: "demo", Response: "one two three"})
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	stream, err := b.ExecuteStream(ctx, staticRequest())
	if err != nil {
		t.Fatalf("ExecuteStream() error = %v", err)
	}

	var chunks []*ir.StreamChunk
	for chunk := range stream {
		chunks = append(chunks, chunk)
	}

	if len(chunks) != 5 {
		t.Fatalf("got %d chunks, want start + 3 content + done", len(chunks))
	}
	if chunks[0].Type != ir.ChunkTypeStart {
		t.Errorf("first chunk = %q, want start", chunks[0].Type)
	}
	var text strings.Builder
	for _, c := range chunks {
		if c.IsContent() {
			text.WriteString(c.Delta)
		}
	}
	if text.String() != "one two three" {
		t.Errorf("streamed text = %q", text.String())
	}
	last := chunks[len(chunks)-1]
	if last.Type != ir.ChunkTypeDone || last.FinishReason != ir.FinishReasonStop {
		t.Errorf("last chunk = %+v, want done/stop", last)
	}

	// Sequences are strictly increasing from 0 in this backend.
	for i, c := range chunks {
		if c.Sequence != i {
			t.Errorf("chunk %d has sequence %d", i, c.Sequence)
		}
	}
}

func TestStaticBackendStreamCancellation(t *testing.T) {
	b := NewStaticBackend(StaticConfig{
		Name:         "slow",
		Response:     strings.Repeat("word ", 50),
		ChunkLatency: 20 * time.Millisecond,
	})
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := b.ExecuteStream(ctx, staticRequest())
	if err != nil {
		t.Fatalf("ExecuteStream() error = %v", err)
	}

	// Read a couple of chunks, then cancel mid-stream.
	<-stream
	<-stream
	cancel()

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-stream:
			if !ok {
				return // closed, as required
			}
		case <-deadline:
			t.Fatal("stream did not close after cancellation")
		}
	}
}

func TestStaticBackendListModels(t *testing.T) {
	b := NewStaticBackend(StaticConfig{
		Name:   "demo",
		Models: []string{"demo-small", "demo-large", "other-model"},
	})
	defer b.Close()

	result, err := b.ListModels(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListModels() error = %v", err)
	}
	if len(result.Models) != 3 || result.Source != ModelSourceStatic || !result.IsComplete {
		t.Errorf("unexpected result: %+v", result)
	}

	filtered, err := b.ListModels(context.Background(), &ListModelsOptions{
		Filter: &ModelFilter{Prefix: "demo-"},
	})
	if err != nil {
		t.Fatalf("ListModels(filter) error = %v", err)
	}
	if len(filtered.Models) != 2 {
		t.Errorf("filtered to %d models, want 2", len(filtered.Models))
	}
	if filtered.IsComplete {
		t.Error("filtered result must not claim completeness")
	}
}

func TestStaticBackendEstimateCost(t *testing.T) {
	b := NewStaticBackend(StaticConfig{
		Name:              "priced",
		InputCostPerMTok:  10,
		OutputCostPerMTok: 30,
	})
	defer b.Close()

	req := staticRequest()
	req.Parameters = &ir.Parameters{MaxTokens: ir.Int(1000)}
	est, err := b.EstimateCost(req)
	if err != nil {
		t.Fatalf("EstimateCost() error = %v", err)
	}
	if est.TotalCost <= 0 || est.Currency != "USD" {
		t.Errorf("estimate = %+v", est)
	}
	if est.OutputCost != 1000.0/1e6*30 {
		t.Errorf("output cost = %v", est.OutputCost)
	}
}
