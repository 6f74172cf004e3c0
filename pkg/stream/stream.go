package stream

import (
	"context"

	"babel-hq/rosetta/pkg/adapter"
	"babel-hq/rosetta/pkg/ir"
)

// outBuffer is the buffer size of derived channels. One slot keeps the
// terminal cancellation chunk deliverable even when the consumer is between
// receives.
const outBuffer = 1

// Drain consumes and discards every remaining chunk. It unblocks producers
// that do not watch the consumer's context.
func Drain(in <-chan *ir.StreamChunk) {
	for range in {
	}
}

// sendOr delivers a chunk downstream, giving up when ctx ends first.
func sendOr(ctx context.Context, out chan<- *ir.StreamChunk, c *ir.StreamChunk) bool {
	select {
	case out <- c:
		return true
	case <-ctx.Done():
		return false
	}
}

// cancelTail emits the terminal cancelled chunk, best effort, and drains
// the source in the background.
func cancelTail(in <-chan *ir.StreamChunk, out chan<- *ir.StreamChunk, seq int) {
	select {
	case out <- ir.ErrorChunk(seq, string(adapter.ErrorCodeCancelled), "stream cancelled"):
	default:
	}
	go Drain(in)
}

// stage runs a one-in, at-most-one-out pipeline step. A nil return from
// apply drops the chunk. apply runs on a single goroutine, so it may close
// over mutable state.
func stage(ctx context.Context, in <-chan *ir.StreamChunk, apply func(*ir.StreamChunk) *ir.StreamChunk) <-chan *ir.StreamChunk {
	out := make(chan *ir.StreamChunk, outBuffer)
	go func() {
		defer close(out)
		last := -1
		for {
			select {
			case <-ctx.Done():
				cancelTail(in, out, last+1)
				return
			case c, ok := <-in:
				if !ok {
					return
				}
				if c.Sequence > last {
					last = c.Sequence
				}
				next := apply(c)
				if next == nil {
					continue
				}
				if !sendOr(ctx, out, next) {
					cancelTail(in, out, last+1)
					return
				}
			}
		}
	}()
	return out
}

// errorFromChunk converts an in-band stream failure into the error type the
// unary path returns.
func errorFromChunk(e *ir.ChunkError) *adapter.Error {
	if e == nil {
		return adapter.New(adapter.ErrorCodeProvider, "stream failed without error detail")
	}
	code := adapter.ErrorCode(e.Code)
	if code == "" {
		code = adapter.ErrorCodeProvider
	}
	err := adapter.New(code, e.Message)
	if len(e.Details) > 0 {
		err.Details = make(map[string]any, len(e.Details))
		for k, v := range e.Details {
			err.Details[k] = v
		}
	}
	return err
}
