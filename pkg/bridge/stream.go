package bridge

import (
	"context"
	"time"

	"babel-hq/rosetta/pkg/adapter"
	"babel-hq/rosetta/pkg/ir"
	"babel-hq/rosetta/pkg/middleware"
	"babel-hq/rosetta/pkg/router"
)

// ChatStream executes one streaming call. The payload and the chunks on
// the returned channel are in the frontend's wire shape.
func (b *Bridge) ChatStream(ctx context.Context, payload any, opts ...RequestOption) (<-chan any, error) {
	if b.closed.Load() {
		return nil, errClosed()
	}
	if b.frontend == nil {
		return nil, adapter.New(adapter.ErrorCodeValidation, "bridge has no frontend")
	}

	if v, ok := b.frontend.(adapter.RequestValidator); ok {
		if err := v.ValidateRequest(payload); err != nil {
			return nil, b.frontendError(err)
		}
	}
	req, err := b.frontend.ToIR(payload)
	if err != nil {
		return nil, b.frontendError(err)
	}

	chunks, err := b.ChatStreamIR(ctx, req, opts...)
	if err != nil {
		return nil, err
	}
	return b.frontend.FromIRStream(ctx, chunks), nil
}

// ChatStreamIR executes one streaming call at the IR level. The returned
// channel is one-shot and forward-only; failures arrive in-band as a
// terminal error chunk and the channel closes after them. Bridge-level
// retry never applies to streams.
func (b *Bridge) ChatStreamIR(ctx context.Context, req *ir.ChatRequest, opts ...RequestOption) (<-chan *ir.StreamChunk, error) {
	if b.closed.Load() {
		return nil, errClosed()
	}
	if req == nil {
		return nil, adapter.New(adapter.ErrorCodeValidation, "nil request")
	}

	rs := b.callSettings(opts)
	req.Stream = true
	b.attachMetadata(req)
	requestID := req.Metadata.RequestID

	cctx, cancel := b.callContext(ctx, rs)

	b.bus.Emit(Event{Type: EventRequestStart, RequestID: requestID, Backend: rs.backend})
	start := time.Now()

	mctx := middleware.NewStreamContext(req)
	mctx.Backend = rs.backend

	handler := func(c context.Context) (<-chan *ir.StreamChunk, error) {
		return b.dispatchStream(c, mctx.Request, rs.backend)
	}
	var src <-chan *ir.StreamChunk
	var err error
	if rs.skipMiddleware {
		src, err = handler(cctx)
	} else {
		src, err = b.stack.ExecuteStream(cctx, mctx, handler)
	}
	b.emitMiddlewareExecuted(mctx, requestID)

	if err != nil {
		cancel()
		aerr := adapter.Normalize(err)
		b.stats.record(time.Since(start), aerr.Backend, string(aerr.Code), true)
		b.emitFailure(requestID, aerr, true)
		b.logger.Warn("stream open failed",
			"request_id", requestID,
			"code", string(aerr.Code),
			"error", aerr,
		)
		return nil, aerr
	}

	b.bus.Emit(Event{Type: EventStreamStart, RequestID: requestID, Backend: rs.backend})
	out := make(chan *ir.StreamChunk, 1)
	go b.relay(cctx, cancel, mctx, src, out, requestID, start)
	return out, nil
}

// dispatchStream opens the backend's chunk sequence, threading a per-call
// backend override through when the backend can route.
func (b *Bridge) dispatchStream(ctx context.Context, req *ir.ChatRequest, backendName string) (<-chan *ir.StreamChunk, error) {
	if backendName != "" {
		if rb, ok := b.backend.(routedBackend); ok {
			return rb.ExecuteStreamWithOptions(ctx, req, router.Options{Backend: backendName})
		}
		if b.backend.Name() != backendName {
			return nil, adapter.Newf(adapter.ErrorCodeNoBackend, "backend %q not available", backendName)
		}
	}
	return b.backend.ExecuteStream(ctx, req)
}

// relay forwards chunks to the caller, counting them and watching for the
// terminal outcome. It owns the call's cancel and releases it when the
// source drains.
func (b *Bridge) relay(ctx context.Context, cancel context.CancelFunc, mctx *middleware.Context, src <-chan *ir.StreamChunk, out chan<- *ir.StreamChunk, requestID string, start time.Time) {
	defer cancel()
	defer close(out)

	var failure *ir.ChunkError
	served := ""
	lastSeq := -1
	cancelled := false

	for !cancelled {
		var c *ir.StreamChunk
		var ok bool
		select {
		case c, ok = <-src:
		case <-ctx.Done():
			cancelled = true
			continue
		}
		if !ok {
			break
		}
		if c == nil {
			continue
		}
		lastSeq = c.Sequence
		mctx.ChunksProcessed.Add(1)

		if c.Metadata != nil && c.Metadata.Provenance.Backend != "" {
			served = c.Metadata.Provenance.Backend
		}
		if c.Type == ir.ChunkTypeError && c.Err != nil {
			failure = c.Err
		}

		b.bus.Emit(Event{
			Type:      EventStreamChunk,
			RequestID: requestID,
			Backend:   served,
			Details:   map[string]any{"type": string(c.Type), "sequence": c.Sequence},
		})

		select {
		case out <- c:
		case <-ctx.Done():
			cancelled = true
		}
	}

	if cancelled {
		// The consumer is gone. Drain the source so upstream relays can
		// finish, and leave a terminal chunk for anyone still reading.
		for range src {
		}
		if failure == nil {
			failure = &ir.ChunkError{Code: string(adapter.ErrorCodeCancelled), Message: "stream cancelled"}
			select {
			case out <- ir.ErrorChunk(lastSeq+1, failure.Code, failure.Message):
			default:
			}
		}
	}
	if served == "" {
		served = b.backend.Name()
	}

	latency := time.Since(start)
	if failure != nil {
		b.stats.record(latency, served, failure.Code, true)
		b.bus.Emit(Event{
			Type:      EventStreamError,
			RequestID: requestID,
			Backend:   served,
			Details:   map[string]any{"code": failure.Code, "message": failure.Message},
		})
		aerr := adapter.New(adapter.ErrorCode(failure.Code), failure.Message)
		aerr.Backend = served
		b.emitFailure(requestID, aerr, true)
		b.logger.Warn("stream failed",
			"request_id", requestID,
			"backend", served,
			"code", failure.Code,
			"latency", latency,
		)
		return
	}

	mctx.StreamComplete = true
	b.stats.record(latency, served, "", true)
	b.bus.Emit(Event{
		Type:      EventStreamComplete,
		RequestID: requestID,
		Backend:   served,
		Details:   map[string]any{"chunks": mctx.ChunksProcessed.Load(), "latency": latency},
	})
	b.bus.Emit(Event{
		Type:      EventRequestSuccess,
		RequestID: requestID,
		Backend:   served,
		Details:   map[string]any{"streaming": true, "latency": latency},
	})
	b.logger.Debug("stream completed",
		"request_id", requestID,
		"backend", served,
		"chunks", mctx.ChunksProcessed.Load(),
		"latency", latency,
	)
}
