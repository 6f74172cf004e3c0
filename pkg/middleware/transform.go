package middleware

import (
	"context"

	"babel-hq/rosetta/pkg/ir"
)

// TransformConfig holds the optional transformers the transform middleware
// applies. They run in fixed order: Messages, then Request, then the
// downstream call, then Response. An error from any transformer aborts the
// call before the downstream handler runs.
type TransformConfig struct {
	// Messages rewrites the conversation before the call.
	Messages func(ctx context.Context, msgs []ir.Message) ([]ir.Message, error)

	// Request rewrites the whole request before the call. Returning nil
	// keeps the current request.
	Request func(ctx context.Context, req *ir.ChatRequest) (*ir.ChatRequest, error)

	// Response rewrites the response on the way out. Returning nil keeps
	// the handler's response.
	Response func(ctx context.Context, resp *ir.ChatResponse) (*ir.ChatResponse, error)
}

// NewTransform builds the transform middleware.
func NewTransform(cfg TransformConfig) UnaryFunc {
	return func(ctx context.Context, mctx *Context, next Next) (*ir.ChatResponse, error) {
		if err := applyRequestTransforms(ctx, mctx, cfg); err != nil {
			return nil, err
		}

		resp, err := next(ctx)
		if err != nil {
			return nil, err
		}

		if cfg.Response != nil && resp != nil {
			out, rerr := cfg.Response(ctx, resp)
			if rerr != nil {
				return nil, rerr
			}
			if out != nil {
				resp = out
			}
		}
		return resp, nil
	}
}

// NewTransformStream builds the streaming twin: Messages and Request
// transformers run before the stream opens. Chunk rewriting belongs to the
// stream operators, not here.
func NewTransformStream(cfg TransformConfig) StreamFunc {
	return func(ctx context.Context, mctx *Context, next StreamNext) (<-chan *ir.StreamChunk, error) {
		if err := applyRequestTransforms(ctx, mctx, cfg); err != nil {
			return nil, err
		}
		return next(ctx)
	}
}

func applyRequestTransforms(ctx context.Context, mctx *Context, cfg TransformConfig) error {
	if mctx.Request == nil {
		return nil
	}
	if cfg.Messages != nil {
		msgs, err := cfg.Messages(ctx, mctx.Request.Messages)
		if err != nil {
			return err
		}
		mctx.Request.Messages = msgs
	}
	if cfg.Request != nil {
		req, err := cfg.Request(ctx, mctx.Request)
		if err != nil {
			return err
		}
		if req != nil {
			mctx.Request = req
		}
	}
	return nil
}
