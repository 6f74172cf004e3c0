package bridge

import (
	"context"
	"testing"
	"time"

	"babel-hq/rosetta/internal/fabrictest"
	"babel-hq/rosetta/pkg/adapter"
	"babel-hq/rosetta/pkg/ir"
)

func collectIR(t *testing.T, ch <-chan *ir.StreamChunk) []*ir.StreamChunk {
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

func TestChatStreamIRDelivers(t *testing.T) {
	solo := fabrictest.NewBackend("solo")
	b := newTestBridge(t, solo)
	rec := &busRecorder{}
	b.Bus().OnAny(rec.record)

	ch, err := b.ChatStreamIR(context.Background(), &ir.ChatRequest{
		Messages: []ir.Message{ir.TextMessage(ir.RoleUser, "hi")},
	})
	if err != nil {
		t.Fatalf("ChatStreamIR: %v", err)
	}
	chunks := collectIR(t, ch)
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	if chunks[1].Delta != "from solo" {
		t.Errorf("content delta = %q", chunks[1].Delta)
	}

	waitFor(t, "stream accounting", func() bool {
		s := b.Stats()
		return s.Streaming == 1 && s.Successful == 1
	})
	if _, ok := rec.find(EventStreamStart); !ok {
		t.Error("no stream:start event")
	}
	if got := rec.count(EventStreamChunk); got != 3 {
		t.Errorf("stream:chunk events = %d, want 3", got)
	}
	if _, ok := rec.find(EventStreamComplete); !ok {
		t.Error("no stream:complete event")
	}
	if _, ok := rec.find(EventRequestSuccess); !ok {
		t.Error("no request:success event for the stream")
	}
	if s := b.Stats(); s.Backends["solo"] != 1 {
		t.Errorf("stream backend usage = %v", s.Backends)
	}
}

func TestChatStreamFrontendShape(t *testing.T) {
	solo := fabrictest.NewBackend("solo")
	fe := fabrictest.NewFrontend("sse")
	fe.OnChunk = func(c *ir.StreamChunk) any {
		if c.IsContent() {
			return c.Delta
		}
		return string(c.Type)
	}
	b, err := New(fe, solo)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { b.Close() })

	ch, err := b.ChatStream(context.Background(), "hi")
	if err != nil {
		t.Fatalf("ChatStream: %v", err)
	}
	var got []any
	timeout := time.After(2 * time.Second)
	for {
		select {
		case v, ok := <-ch:
			if !ok {
				if len(got) != 3 || got[0] != "start" || got[1] != "from solo" || got[2] != "done" {
					t.Errorf("frontend chunks = %v", got)
				}
				return
			}
			got = append(got, v)
		case <-timeout:
			t.Fatalf("frontend stream did not close; got %v", got)
		}
	}
}

func TestChatStreamIRErrorInBand(t *testing.T) {
	bad := fabrictest.NewBackend("bad")
	bad.OnStream = func(context.Context, *ir.ChatRequest) (<-chan *ir.StreamChunk, error) {
		return fabrictest.Chunks(
			ir.StartChunk(0, nil),
			ir.ContentChunk(1, "partial"),
			ir.ErrorChunk(2, string(adapter.ErrorCodeProvider), "upstream died"),
		), nil
	}
	b := newTestBridge(t, bad)
	rec := &busRecorder{}
	b.Bus().OnAny(rec.record)

	ch, err := b.ChatStreamIR(context.Background(), &ir.ChatRequest{
		Messages: []ir.Message{ir.TextMessage(ir.RoleUser, "hi")},
	})
	if err != nil {
		t.Fatalf("ChatStreamIR: %v", err)
	}
	chunks := collectIR(t, ch)
	last := chunks[len(chunks)-1]
	if last.Type != ir.ChunkTypeError || last.Err.Code != "provider" {
		t.Errorf("terminal chunk = %+v, want provider error", last)
	}

	waitFor(t, "failure accounting", func() bool {
		s := b.Stats()
		return s.Failed == 1 && s.Errors["provider"] == 1
	})
	if _, ok := rec.find(EventStreamError); !ok {
		t.Error("no stream:error event")
	}
	if _, ok := rec.find(EventRequestError); !ok {
		t.Error("no request:error event for the failed stream")
	}
}

func TestChatStreamOpenFailure(t *testing.T) {
	bad := fabrictest.NewBackend("bad")
	bad.OnStream = func(context.Context, *ir.ChatRequest) (<-chan *ir.StreamChunk, error) {
		return nil, adapter.New(adapter.ErrorCodeRateLimit, "slow down")
	}
	b := newTestBridge(t, bad)
	rec := &busRecorder{}
	b.Bus().OnAny(rec.record)

	_, err := b.ChatStreamIR(context.Background(), &ir.ChatRequest{
		Messages: []ir.Message{ir.TextMessage(ir.RoleUser, "hi")},
	})
	if adapter.CodeOf(err) != adapter.ErrorCodeRateLimit {
		t.Fatalf("error code = %v, want rate_limit", adapter.CodeOf(err))
	}

	if _, ok := rec.find(EventStreamStart); ok {
		t.Error("stream:start emitted for a stream that never opened")
	}
	if _, ok := rec.find(EventRequestError); !ok {
		t.Error("no request:error event")
	}
	s := b.Stats()
	if s.Streaming != 1 || s.Failed != 1 {
		t.Errorf("stats = streaming %d failed %d, want 1/1", s.Streaming, s.Failed)
	}
}

func TestChatStreamCancelled(t *testing.T) {
	src := make(chan *ir.StreamChunk, 4)
	hang := fabrictest.NewBackend("hang")
	hang.OnStream = func(context.Context, *ir.ChatRequest) (<-chan *ir.StreamChunk, error) {
		return src, nil
	}
	b := newTestBridge(t, hang)
	rec := &busRecorder{}
	b.Bus().OnAny(rec.record)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := b.ChatStreamIR(ctx, &ir.ChatRequest{
		Messages: []ir.Message{ir.TextMessage(ir.RoleUser, "hi")},
	})
	if err != nil {
		t.Fatalf("ChatStreamIR: %v", err)
	}

	src <- ir.StartChunk(0, nil)
	first := <-ch
	if first.Type != ir.ChunkTypeStart {
		t.Fatalf("first chunk = %s", first.Type)
	}

	cancel()
	// Let the relay observe the cancellation before the source closes, so
	// the outcome is cancellation rather than normal completion.
	time.Sleep(20 * time.Millisecond)
	close(src)

	chunks := collectIR(t, ch)
	if len(chunks) == 0 {
		t.Fatal("no terminal chunk after cancellation")
	}
	last := chunks[len(chunks)-1]
	if last.Type != ir.ChunkTypeError || last.Err.Code != string(adapter.ErrorCodeCancelled) {
		t.Errorf("terminal chunk = %+v, want cancelled error", last)
	}

	waitFor(t, "cancelled accounting", func() bool {
		return b.Stats().Errors[string(adapter.ErrorCodeCancelled)] == 1
	})
	if _, ok := rec.find(EventRequestCancelled); !ok {
		t.Error("no request:cancelled event")
	}
}

func TestChatStreamBackendOverrideOnRouter(t *testing.T) {
	b, alpha, beta := newRouterBridge(t)

	ch, err := b.ChatStreamIR(context.Background(), &ir.ChatRequest{
		Messages: []ir.Message{ir.TextMessage(ir.RoleUser, "hi")},
	}, WithBackend("beta"))
	if err != nil {
		t.Fatalf("ChatStreamIR: %v", err)
	}
	chunks := collectIR(t, ch)
	if len(chunks) != 3 || chunks[1].Delta != "from beta" {
		t.Errorf("expected beta's stream, got %d chunks", len(chunks))
	}
	if alpha.Calls() != 0 || beta.Calls() != 1 {
		t.Errorf("calls alpha=%d beta=%d, want 0/1", alpha.Calls(), beta.Calls())
	}

	waitFor(t, "routed stream accounting", func() bool {
		return b.Stats().Backends["beta"] == 1
	})
}
