package router

import (
	"context"
	"testing"
	"time"

	"babel-hq/rosetta/pkg/adapter"
	"babel-hq/rosetta/pkg/ir"
)

func collect(t *testing.T, ch <-chan *ir.StreamChunk) []*ir.StreamChunk {
	t.Helper()
	var out []*ir.StreamChunk
	timeout := time.After(2 * time.Second)
	for {
		select {
		case c, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, c)
		case <-timeout:
			t.Fatalf("stream did not close; got %d chunks so far", len(out))
		}
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	for i := 0; i < 200; i++ {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestExecuteStreamDelivers(t *testing.T) {
	alpha := newMock("alpha")
	r := newTestRouter(t, Config{}, alpha)

	ch, err := r.ExecuteStream(context.Background(), modelRequest(""))
	if err != nil {
		t.Fatalf("ExecuteStream: %v", err)
	}
	chunks := collect(t, ch)
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	if chunks[0].Type != ir.ChunkTypeStart || chunks[1].Type != ir.ChunkTypeContent || chunks[2].Type != ir.ChunkTypeDone {
		t.Errorf("chunk types = %s/%s/%s", chunks[0].Type, chunks[1].Type, chunks[2].Type)
	}
	if chunks[1].Delta != "from alpha" {
		t.Errorf("Delta = %q, want from alpha", chunks[1].Delta)
	}
	if chunks[0].Metadata == nil || chunks[0].Metadata.Provenance.Backend != "alpha" {
		t.Errorf("start chunk provenance = %+v, want backend alpha", chunks[0].Metadata)
	}

	waitFor(t, "stream stats", func() bool {
		return r.Stats().Backends["alpha"].Successful == 1
	})
}

func TestExecuteStreamOpenFailureFailsOver(t *testing.T) {
	alpha := newMock("alpha")
	alpha.onStream = func(context.Context, *ir.ChatRequest) (<-chan *ir.StreamChunk, error) {
		return nil, networkErr("alpha")
	}
	beta := newMock("beta")
	r := newTestRouter(t, Config{}, alpha, beta)

	ch, err := r.ExecuteStream(context.Background(), modelRequest(""))
	if err != nil {
		t.Fatalf("ExecuteStream: %v", err)
	}
	chunks := collect(t, ch)
	if len(chunks) != 3 || chunks[1].Delta != "from beta" {
		t.Errorf("expected beta's stream after open failover, got %d chunks", len(chunks))
	}
	if alpha.callCount() != 1 || beta.callCount() != 1 {
		t.Errorf("calls alpha=%d beta=%d, want 1 and 1", alpha.callCount(), beta.callCount())
	}
}

func TestExecuteStreamOpenAllFail(t *testing.T) {
	alpha := newMock("alpha")
	alpha.onStream = func(context.Context, *ir.ChatRequest) (<-chan *ir.StreamChunk, error) {
		return nil, networkErr("alpha")
	}
	beta := newMock("beta")
	beta.onStream = func(context.Context, *ir.ChatRequest) (<-chan *ir.StreamChunk, error) {
		return nil, networkErr("beta")
	}
	r := newTestRouter(t, Config{}, alpha, beta)

	_, err := r.ExecuteStream(context.Background(), modelRequest(""))
	if adapter.CodeOf(err) != adapter.ErrorCodeNetwork {
		t.Fatalf("error code = %v, want network", adapter.CodeOf(err))
	}
	if alpha.callCount() != 1 || beta.callCount() != 1 {
		t.Errorf("calls alpha=%d beta=%d, want 1 and 1", alpha.callCount(), beta.callCount())
	}
}

func TestExecuteStreamPreContentErrorFailsOver(t *testing.T) {
	alpha := newMock("alpha")
	alpha.onStream = func(context.Context, *ir.ChatRequest) (<-chan *ir.StreamChunk, error) {
		return chunkChan(
			ir.StartChunk(0, nil),
			ir.ErrorChunk(1, string(adapter.ErrorCodeNetwork), "connection reset"),
		), nil
	}
	beta := newMock("beta")
	r := newTestRouter(t, Config{}, alpha, beta)

	ch, err := r.ExecuteStream(context.Background(), modelRequest(""))
	if err != nil {
		t.Fatalf("ExecuteStream: %v", err)
	}
	chunks := collect(t, ch)

	var text string
	for _, c := range chunks {
		if c.Type == ir.ChunkTypeError {
			t.Fatalf("error chunk leaked through pre-content failover: %+v", c.Err)
		}
		if c.IsContent() {
			text += c.Delta
		}
	}
	if text != "from beta" {
		t.Errorf("content = %q, want from beta", text)
	}
	if beta.callCount() != 1 {
		t.Errorf("beta called %d times, want 1", beta.callCount())
	}
}

func TestExecuteStreamPreContentNonRetryableForwards(t *testing.T) {
	alpha := newMock("alpha")
	alpha.onStream = func(context.Context, *ir.ChatRequest) (<-chan *ir.StreamChunk, error) {
		return chunkChan(
			ir.ErrorChunk(0, string(adapter.ErrorCodeValidation), "bad request"),
		), nil
	}
	beta := newMock("beta")
	r := newTestRouter(t, Config{}, alpha, beta)

	ch, err := r.ExecuteStream(context.Background(), modelRequest(""))
	if err != nil {
		t.Fatalf("ExecuteStream: %v", err)
	}
	chunks := collect(t, ch)
	if len(chunks) != 1 || chunks[0].Type != ir.ChunkTypeError {
		t.Fatalf("got %d chunks, want a single error chunk", len(chunks))
	}
	if chunks[0].Err == nil || chunks[0].Err.Code != string(adapter.ErrorCodeValidation) {
		t.Errorf("error chunk = %+v, want validation code", chunks[0].Err)
	}
	if beta.callCount() != 0 {
		t.Error("non-retryable stream error must not fail over")
	}
}

func TestExecuteStreamPostContentErrorPropagates(t *testing.T) {
	alpha := newMock("alpha")
	alpha.onStream = func(context.Context, *ir.ChatRequest) (<-chan *ir.StreamChunk, error) {
		return chunkChan(
			ir.StartChunk(0, nil),
			ir.ContentChunk(1, "partial"),
			ir.ErrorChunk(2, string(adapter.ErrorCodeNetwork), "connection reset"),
		), nil
	}
	beta := newMock("beta")
	r := newTestRouter(t, Config{}, alpha, beta)

	ch, err := r.ExecuteStream(context.Background(), modelRequest(""))
	if err != nil {
		t.Fatalf("ExecuteStream: %v", err)
	}
	chunks := collect(t, ch)
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	last := chunks[2]
	if last.Type != ir.ChunkTypeError || last.Err == nil || last.Err.Code != string(adapter.ErrorCodeNetwork) {
		t.Errorf("terminal chunk = %+v, want in-band network error", last)
	}
	if beta.callCount() != 0 {
		t.Error("failover attempted after content was delivered")
	}

	waitFor(t, "failure stats", func() bool {
		return r.Stats().Backends["alpha"].Failed == 1
	})
}

func TestExecuteStreamCancelled(t *testing.T) {
	src := make(chan *ir.StreamChunk, 2)
	src <- ir.StartChunk(0, nil)
	defer close(src)

	alpha := newMock("alpha")
	alpha.onStream = func(context.Context, *ir.ChatRequest) (<-chan *ir.StreamChunk, error) {
		return src, nil
	}
	r := newTestRouter(t, Config{}, alpha)

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := r.ExecuteStream(ctx, modelRequest(""))
	if err != nil {
		t.Fatalf("ExecuteStream: %v", err)
	}

	first := <-ch
	if first == nil || first.Type != ir.ChunkTypeStart {
		t.Fatalf("first chunk = %+v, want start", first)
	}
	cancel()

	var last *ir.StreamChunk
	for c := range ch {
		last = c
	}
	if last == nil || last.Type != ir.ChunkTypeError {
		t.Fatalf("terminal chunk = %+v, want cancelled error", last)
	}
	if last.Err == nil || last.Err.Code != string(adapter.ErrorCodeCancelled) {
		t.Errorf("terminal code = %+v, want cancelled", last.Err)
	}
}
