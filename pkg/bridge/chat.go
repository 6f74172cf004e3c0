package bridge

import (
	"context"
	"time"

	"babel-hq/rosetta/pkg/adapter"
	"babel-hq/rosetta/pkg/ir"
	"babel-hq/rosetta/pkg/middleware"
	"babel-hq/rosetta/pkg/router"
)

// Chat executes one unary call. The payload and the returned value are in
// the frontend's wire shape; everything between is IR.
func (b *Bridge) Chat(ctx context.Context, payload any, opts ...RequestOption) (any, error) {
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

	resp, err := b.ChatIR(ctx, req, opts...)
	if err != nil {
		return nil, err
	}

	out, err := b.frontend.FromIR(resp)
	if err != nil {
		return nil, b.frontendError(err)
	}
	return out, nil
}

// ChatIR executes one unary call at the IR level. It is the accounting
// boundary: events and statistics cover everything from here inward.
func (b *Bridge) ChatIR(ctx context.Context, req *ir.ChatRequest, opts ...RequestOption) (*ir.ChatResponse, error) {
	if b.closed.Load() {
		return nil, errClosed()
	}
	if req == nil {
		return nil, adapter.New(adapter.ErrorCodeValidation, "nil request")
	}

	rs := b.callSettings(opts)
	b.attachMetadata(req)
	requestID := req.Metadata.RequestID

	cctx, cancel := b.callContext(ctx, rs)
	defer cancel()

	b.bus.Emit(Event{Type: EventRequestStart, RequestID: requestID, Backend: rs.backend})
	start := time.Now()

	mctx := middleware.NewContext(req)
	mctx.Backend = rs.backend

	resp, err := b.run(cctx, mctx, rs)
	latency := time.Since(start)
	b.emitMiddlewareExecuted(mctx, requestID)

	if err != nil {
		aerr := adapter.Normalize(err)
		b.stats.record(latency, aerr.Backend, string(aerr.Code), false)
		b.emitFailure(requestID, aerr, false)
		b.logger.Warn("request failed",
			"request_id", requestID,
			"code", string(aerr.Code),
			"latency", latency,
			"error", aerr,
		)
		return nil, aerr
	}

	b.stampResponse(resp, requestID)
	served := resp.Metadata.Provenance.Backend
	b.stats.record(latency, served, "", false)
	b.bus.Emit(Event{
		Type:      EventRequestSuccess,
		RequestID: requestID,
		Backend:   served,
		Details:   map[string]any{"latency": latency},
	})
	b.logger.Debug("request served",
		"request_id", requestID,
		"backend", served,
		"latency", latency,
	)
	return resp, nil
}

// run executes the middleware pipeline, wrapped in the bridge's retry
// layer when one is configured. Bridge retry sits above backend and
// middleware retry and re-runs the whole pipeline.
func (b *Bridge) run(ctx context.Context, mctx *middleware.Context, rs requestSettings) (*ir.ChatResponse, error) {
	handler := func(c context.Context) (*ir.ChatResponse, error) {
		return b.dispatch(c, mctx.Request, rs.backend)
	}
	pipeline := func(c context.Context) (*ir.ChatResponse, error) {
		if rs.skipMiddleware {
			return handler(c)
		}
		return b.stack.Execute(c, mctx, handler)
	}

	if rs.retries <= 0 {
		return pipeline(ctx)
	}

	retry := middleware.NewRetry(middleware.RetryConfig{
		MaxAttempts: rs.retries + 1,
		Jitter:      true,
		OnRetry: func(err error, attempt int, delay time.Duration) {
			b.logger.Warn("retrying request",
				"request_id", mctx.Request.Metadata.RequestID,
				"attempt", attempt,
				"delay", delay,
				"error", err,
			)
		},
	})
	return retry(ctx, mctx, pipeline)
}

// dispatch hands the request to the backend, threading a per-call backend
// override through when the backend can route.
func (b *Bridge) dispatch(ctx context.Context, req *ir.ChatRequest, backendName string) (*ir.ChatResponse, error) {
	if backendName != "" {
		if rb, ok := b.backend.(routedBackend); ok {
			return rb.ExecuteWithOptions(ctx, req, router.Options{Backend: backendName})
		}
		if b.backend.Name() != backendName {
			return nil, adapter.Newf(adapter.ErrorCodeNoBackend, "backend %q not available", backendName)
		}
	}
	return b.backend.Execute(ctx, req)
}

// stampResponse fills in correlation and provenance fields the backend
// left empty.
func (b *Bridge) stampResponse(resp *ir.ChatResponse, requestID string) {
	if resp == nil {
		return
	}
	md := &resp.Metadata
	if md.RequestID == "" {
		md.RequestID = requestID
	}
	if md.Provenance.Backend == "" {
		md.Provenance.Backend = b.backend.Name()
	}
	if md.Provenance.Frontend == "" && b.frontend != nil {
		md.Provenance.Frontend = b.frontend.Name()
	}
}

// emitMiddlewareExecuted reports the layers that ran for the request, in
// execution order.
func (b *Bridge) emitMiddlewareExecuted(mctx *middleware.Context, requestID string) {
	if mctx == nil || mctx.Request == nil {
		return
	}
	layers := mctx.Request.Metadata.Provenance.Middleware
	if len(layers) == 0 {
		return
	}
	b.bus.Emit(Event{
		Type:      EventMiddlewareExecuted,
		RequestID: requestID,
		Details:   map[string]any{"layers": append([]string(nil), layers...)},
	})
}

// emitFailure classifies the terminal failure event. Caller cancellation
// gets its own event type; everything else is request:error.
func (b *Bridge) emitFailure(requestID string, aerr *adapter.Error, streaming bool) {
	tp := EventRequestError
	if aerr.Code == adapter.ErrorCodeCancelled {
		tp = EventRequestCancelled
	}
	details := map[string]any{"code": string(aerr.Code)}
	if streaming {
		details["streaming"] = true
	}
	b.bus.Emit(Event{
		Type:      tp,
		RequestID: requestID,
		Backend:   aerr.Backend,
		Err:       aerr,
		Details:   details,
	})
}
