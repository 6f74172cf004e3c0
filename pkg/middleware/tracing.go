package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"babel-hq/rosetta/pkg/adapter"
	"babel-hq/rosetta/pkg/ir"
)

// Span attribute keys. Custom keys use the "rosetta." namespace; error
// recording follows the OpenTelemetry semantic conventions.
const (
	AttrBackend   = "rosetta.backend"
	AttrModel     = "rosetta.model"
	AttrRequestID = "rosetta.request_id"
	AttrChunks    = "rosetta.chunks"
	AttrErrorCode = "rosetta.error.code"
)

// tracerScope names the instrumentation scope for spans created with the
// default tracer.
const tracerScope = "babel-hq/rosetta/pkg/middleware"

// TracingConfig configures the tracing middleware.
type TracingConfig struct {
	// Tracer emits the spans. Nil uses the global tracer provider, which
	// is a no-op until the embedding program installs an SDK.
	Tracer trace.Tracer

	// Attributes are added to every span.
	Attributes []attribute.KeyValue
}

func (cfg TracingConfig) tracer() trace.Tracer {
	if cfg.Tracer != nil {
		return cfg.Tracer
	}
	return otel.Tracer(tracerScope)
}

// NewTracing builds a middleware that wraps each unary call in a span.
// The span records the model, request id, and serving backend, and carries
// the error code when the call fails.
func NewTracing(cfg TracingConfig) UnaryFunc {
	tracer := cfg.tracer()
	return func(ctx context.Context, mctx *Context, next Next) (*ir.ChatResponse, error) {
		ctx, span := tracer.Start(ctx, "chat",
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(cfg.Attributes...),
		)
		defer span.End()
		span.SetAttributes(requestAttributes(mctx)...)

		resp, err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetAttributes(attribute.String(AttrErrorCode, string(adapter.CodeOf(err))))
			span.SetStatus(codes.Error, adapter.Normalize(err).Message)
			return nil, err
		}

		if resp != nil && resp.Metadata.Provenance.Backend != "" {
			span.SetAttributes(attribute.String(AttrBackend, resp.Metadata.Provenance.Backend))
		}
		span.SetStatus(codes.Ok, "")
		return resp, nil
	}
}

// NewTracingStream builds the streaming twin. The span opens with the
// stream and ends when the chunk sequence finishes, so it covers the whole
// relay rather than just the call that opened it.
func NewTracingStream(cfg TracingConfig) StreamFunc {
	tracer := cfg.tracer()
	return func(ctx context.Context, mctx *Context, next StreamNext) (<-chan *ir.StreamChunk, error) {
		ctx, span := tracer.Start(ctx, "chat.stream",
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(cfg.Attributes...),
		)
		span.SetAttributes(requestAttributes(mctx)...)

		src, err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetAttributes(attribute.String(AttrErrorCode, string(adapter.CodeOf(err))))
			span.SetStatus(codes.Error, adapter.Normalize(err).Message)
			span.End()
			return nil, err
		}

		out := make(chan *ir.StreamChunk, 1)
		go func() {
			defer span.End()
			defer close(out)

			var chunks int64
			var failure *ir.ChunkError
			backend := ""
			for c := range src {
				if c == nil {
					continue
				}
				chunks++
				if c.Metadata != nil && c.Metadata.Provenance.Backend != "" {
					backend = c.Metadata.Provenance.Backend
				}
				if c.Type == ir.ChunkTypeError && c.Err != nil {
					failure = c.Err
				}
				select {
				case out <- c:
				case <-ctx.Done():
					// Consumer gone. Drain the source so upstream senders
					// finish, then record the cancellation.
					for range src {
					}
					finishStreamSpan(span, chunks, backend, &ir.ChunkError{
						Code:    string(adapter.ErrorCodeCancelled),
						Message: "stream cancelled",
					})
					return
				}
			}
			finishStreamSpan(span, chunks, backend, failure)
		}()
		return out, nil
	}
}

func finishStreamSpan(span trace.Span, chunks int64, backend string, failure *ir.ChunkError) {
	span.SetAttributes(attribute.Int64(AttrChunks, chunks))
	if backend != "" {
		span.SetAttributes(attribute.String(AttrBackend, backend))
	}
	if failure != nil {
		span.SetAttributes(attribute.String(AttrErrorCode, failure.Code))
		span.SetStatus(codes.Error, failure.Message)
		return
	}
	span.SetStatus(codes.Ok, "")
}

func requestAttributes(mctx *Context) []attribute.KeyValue {
	if mctx == nil || mctx.Request == nil {
		return nil
	}
	attrs := make([]attribute.KeyValue, 0, 3)
	if model := mctx.Request.Model(); model != "" {
		attrs = append(attrs, attribute.String(AttrModel, model))
	}
	if id := mctx.Request.Metadata.RequestID; id != "" {
		attrs = append(attrs, attribute.String(AttrRequestID, id))
	}
	if mctx.Backend != "" {
		attrs = append(attrs, attribute.String(AttrBackend, mctx.Backend))
	}
	return attrs
}
