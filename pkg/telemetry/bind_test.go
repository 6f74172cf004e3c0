package telemetry

import (
	"context"
	"testing"
	"time"

	"babel-hq/rosetta/internal/fabrictest"
	"babel-hq/rosetta/pkg/bridge"
	"babel-hq/rosetta/pkg/ir"
	"babel-hq/rosetta/pkg/router"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestBindBridgeCountsChat(t *testing.T) {
	c := NewCollector(testConfig(), prometheus.NewRegistry())

	b, err := bridge.New(fabrictest.NewFrontend("fe"), fabrictest.NewBackend("alpha"))
	if err != nil {
		t.Fatalf("bridge.New: %v", err)
	}
	defer b.Close()

	off := c.BindBridge(b)
	defer off()

	if _, err := b.Chat(context.Background(), "hi"); err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if count := testutil.ToFloat64(c.RequestsTotal.WithLabelValues("alpha", "success")); count != 1 {
		t.Errorf("expected alpha success=1, got %f", count)
	}
	if n := testutil.CollectAndCount(c.RequestDuration); n != 1 {
		t.Errorf("expected one latency series, got %d", n)
	}
}

func TestBindBridgeMapsBusEvents(t *testing.T) {
	c := NewCollector(testConfig(), prometheus.NewRegistry())

	b, err := bridge.New(fabrictest.NewFrontend("fe"), fabrictest.NewBackend("alpha"))
	if err != nil {
		t.Fatalf("bridge.New: %v", err)
	}
	defer b.Close()

	off := c.BindBridge(b)
	defer off()

	bus := b.Bus()
	bus.Emit(bridge.Event{
		Type:    bridge.EventRequestError,
		Backend: "beta",
		Details: map[string]any{"code": "provider"},
	})
	bus.Emit(bridge.Event{Type: bridge.EventRequestCancelled, Backend: "beta"})
	bus.Emit(bridge.Event{Type: bridge.EventStreamChunk, Backend: "alpha"})
	bus.Emit(bridge.Event{Type: bridge.EventStreamChunk, Backend: "alpha"})
	bus.Emit(bridge.Event{Type: bridge.EventBackendFailover, Backend: "beta"})
	bus.Emit(bridge.Event{Type: bridge.EventType(router.EventParallelDispatch)})
	bus.Emit(bridge.Event{Type: bridge.EventType(router.EventBreakerOpen), Backend: "alpha"})
	bus.Emit(bridge.Event{
		Type:    bridge.EventType(router.EventHealthChanged),
		Backend: "alpha",
		Details: map[string]any{"healthy": false},
	})

	if count := testutil.ToFloat64(c.RequestsTotal.WithLabelValues("beta", "provider")); count != 1 {
		t.Errorf("expected error counted under its code, got %f", count)
	}
	if count := testutil.ToFloat64(c.RequestsTotal.WithLabelValues("beta", "cancelled")); count != 1 {
		t.Errorf("expected cancelled counted, got %f", count)
	}
	if got := testutil.ToFloat64(c.StreamChunksTotal); got != 2 {
		t.Errorf("expected 2 chunks, got %f", got)
	}
	if got := testutil.ToFloat64(c.FallbacksTotal); got != 1 {
		t.Errorf("expected 1 fallback, got %f", got)
	}
	if got := testutil.ToFloat64(c.ParallelDispatchesTotal); got != 1 {
		t.Errorf("expected 1 parallel dispatch, got %f", got)
	}
	if got := testutil.ToFloat64(c.BreakerState.WithLabelValues("alpha")); got != 2 {
		t.Errorf("expected breaker gauge open=2, got %f", got)
	}
	if got := testutil.ToFloat64(c.BackendHealthy.WithLabelValues("alpha")); got != 0 {
		t.Errorf("expected health gauge 0, got %f", got)
	}

	// Error events carry no latency, so nothing lands in the histogram.
	if n := testutil.CollectAndCount(c.RequestDuration); n != 0 {
		t.Errorf("expected no latency series, got %d", n)
	}
}

func TestBindBridgeOff(t *testing.T) {
	c := NewCollector(testConfig(), prometheus.NewRegistry())

	b, err := bridge.New(fabrictest.NewFrontend("fe"), fabrictest.NewBackend("alpha"))
	if err != nil {
		t.Fatalf("bridge.New: %v", err)
	}
	defer b.Close()

	off := c.BindBridge(b)
	off()

	b.Bus().Emit(bridge.Event{Type: bridge.EventStreamChunk})

	if got := testutil.ToFloat64(c.StreamChunksTotal); got != 0 {
		t.Errorf("expected detached collector to stay at 0, got %f", got)
	}
}

func TestBindRouter(t *testing.T) {
	c := NewCollector(testConfig(), prometheus.NewRegistry())

	r, err := router.New(router.Config{})
	if err != nil {
		t.Fatalf("router.New: %v", err)
	}
	if err := r.Register(router.Registration{Backend: fabrictest.NewBackend("alpha")}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register(router.Registration{Backend: fabrictest.NewBackend("beta")}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	off := c.BindRouter(r)
	defer off()

	if err := r.OpenCircuitBreaker("alpha", time.Minute); err != nil {
		t.Fatalf("OpenCircuitBreaker: %v", err)
	}
	if got := testutil.ToFloat64(c.BreakerState.WithLabelValues("alpha")); got != 2 {
		t.Errorf("expected breaker gauge open=2, got %f", got)
	}

	if err := r.CloseCircuitBreaker("alpha"); err != nil {
		t.Fatalf("CloseCircuitBreaker: %v", err)
	}
	if got := testutil.ToFloat64(c.BreakerState.WithLabelValues("alpha")); got != 0 {
		t.Errorf("expected breaker gauge closed=0, got %f", got)
	}

	req := &ir.ChatRequest{Messages: []ir.Message{ir.TextMessage(ir.RoleUser, "hi")}}
	if _, err := r.DispatchParallel(context.Background(), req, router.ParallelOptions{Strategy: router.ParallelAll}); err != nil {
		t.Fatalf("DispatchParallel: %v", err)
	}
	if got := testutil.ToFloat64(c.ParallelDispatchesTotal); got != 1 {
		t.Errorf("expected 1 parallel dispatch, got %f", got)
	}
}
