package stream

import (
	"context"
	"strings"

	"babel-hq/rosetta/pkg/adapter"
	"babel-hq/rosetta/pkg/ir"
)

// Collect gathers every chunk until the stream closes. Cancellation returns
// the chunks read so far together with the context error; in-band error
// chunks are data here, not errors.
func Collect(ctx context.Context, in <-chan *ir.StreamChunk) ([]*ir.StreamChunk, error) {
	var chunks []*ir.StreamChunk
	for {
		select {
		case <-ctx.Done():
			go Drain(in)
			return chunks, adapter.FromContext(ctx)
		case c, ok := <-in:
			if !ok {
				return chunks, nil
			}
			chunks = append(chunks, c)
		}
	}
}

// Text folds the stream into its final text. Delta streams concatenate
// content deltas; accumulated streams use the last accumulated value. A
// terminal error chunk returns the text gathered so far with the error.
func Text(ctx context.Context, in <-chan *ir.StreamChunk) (string, error) {
	var deltas strings.Builder
	accumulated := ""
	sawAccumulated := false

	text := func() string {
		if sawAccumulated {
			return accumulated
		}
		return deltas.String()
	}

	for {
		select {
		case <-ctx.Done():
			go Drain(in)
			return text(), adapter.FromContext(ctx)
		case c, ok := <-in:
			if !ok {
				return text(), nil
			}
			switch c.Type {
			case ir.ChunkTypeContent:
				if c.Accumulated != nil {
					sawAccumulated = true
					accumulated = *c.Accumulated
				} else {
					deltas.WriteString(c.Delta)
				}
			case ir.ChunkTypeError:
				go Drain(in)
				return text(), errorFromChunk(c.Err)
			}
		}
	}
}

// ToResponse folds the stream into a complete response. A stream that ends
// without a done chunk gets finish reason stop; a terminal error chunk
// becomes the returned error. callerMeta supplies baseline metadata that
// stream-reported fields override.
func ToResponse(ctx context.Context, in <-chan *ir.StreamChunk, callerMeta *ir.Metadata) (*ir.ChatResponse, error) {
	acc := NewAccumulator()
	for {
		select {
		case <-ctx.Done():
			go Drain(in)
			return nil, adapter.FromContext(ctx)
		case c, ok := <-in:
			if !ok {
				return acc.Response(callerMeta), nil
			}
			if c.Type == ir.ChunkTypeError {
				go Drain(in)
				return nil, errorFromChunk(c.Err)
			}
			acc = acc.Apply(c)
		}
	}
}
