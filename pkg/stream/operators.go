package stream

import (
	"context"
	"fmt"
	"time"

	"babel-hq/rosetta/pkg/adapter"
	"babel-hq/rosetta/pkg/ir"
)

// Transform maps content chunks through fn; a nil result drops the chunk.
// Non-content chunks pass through untouched.
func Transform(ctx context.Context, in <-chan *ir.StreamChunk, fn func(*ir.StreamChunk) *ir.StreamChunk) <-chan *ir.StreamChunk {
	return stage(ctx, in, func(c *ir.StreamChunk) *ir.StreamChunk {
		if !c.IsContent() {
			return c
		}
		return fn(c)
	})
}

// Filter keeps the chunks pred accepts, terminal chunks included.
func Filter(ctx context.Context, in <-chan *ir.StreamChunk, pred func(*ir.StreamChunk) bool) <-chan *ir.StreamChunk {
	return stage(ctx, in, func(c *ir.StreamChunk) *ir.StreamChunk {
		if pred(c) {
			return c
		}
		return nil
	})
}

// Map applies fn to every chunk, terminal chunks included. A nil result
// drops the chunk.
func Map(ctx context.Context, in <-chan *ir.StreamChunk, fn func(*ir.StreamChunk) *ir.StreamChunk) <-chan *ir.StreamChunk {
	return stage(ctx, in, fn)
}

// Tap invokes fn for every chunk and forwards the stream unmodified. The
// callback must not mutate the chunk.
func Tap(ctx context.Context, in <-chan *ir.StreamChunk, fn func(*ir.StreamChunk)) <-chan *ir.StreamChunk {
	return stage(ctx, in, func(c *ir.StreamChunk) *ir.StreamChunk {
		fn(c)
		return c
	})
}

// CatchErrors intercepts the terminal error chunk. The callback's result
// replaces it; a nil result swallows it. Either way the stream ends there.
func CatchErrors(ctx context.Context, in <-chan *ir.StreamChunk, onError func(*ir.ChunkError) *ir.StreamChunk) <-chan *ir.StreamChunk {
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
				if c.Type == ir.ChunkTypeError {
					if repl := onError(c.Err); repl != nil {
						sendOr(ctx, out, repl)
					}
					go Drain(in)
					return
				}
				if !sendOr(ctx, out, c) {
					cancelTail(in, out, last+1)
					return
				}
			}
		}
	}()
	return out
}

// WithTimeout bounds the gap between consecutive chunks. When the source
// stays silent past d, the stream ends with the callback's chunk; a nil
// callback or nil result produces the default timeout error chunk.
func WithTimeout(ctx context.Context, in <-chan *ir.StreamChunk, d time.Duration, onTimeout func() *ir.StreamChunk) <-chan *ir.StreamChunk {
	out := make(chan *ir.StreamChunk, outBuffer)
	go func() {
		defer close(out)
		timer := time.NewTimer(d)
		defer timer.Stop()
		last := -1
		for {
			select {
			case <-ctx.Done():
				cancelTail(in, out, last+1)
				return
			case <-timer.C:
				var c *ir.StreamChunk
				if onTimeout != nil {
					c = onTimeout()
				}
				if c == nil {
					c = ir.ErrorChunk(last+1, string(adapter.ErrorCodeTimeout), fmt.Sprintf("no chunk within %s", d))
				}
				sendOr(ctx, out, c)
				go Drain(in)
				return
			case c, ok := <-in:
				if !ok {
					return
				}
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(d)
				if c.Sequence > last {
					last = c.Sequence
				}
				if !sendOr(ctx, out, c) {
					cancelTail(in, out, last+1)
					return
				}
			}
		}
	}()
	return out
}

// RateLimit paces content chunks to at most chunksPerSecond. The first
// content chunk passes immediately; non-content chunks are never delayed.
// A non-positive rate disables pacing.
func RateLimit(ctx context.Context, in <-chan *ir.StreamChunk, chunksPerSecond float64) <-chan *ir.StreamChunk {
	if chunksPerSecond <= 0 {
		return stage(ctx, in, func(c *ir.StreamChunk) *ir.StreamChunk { return c })
	}
	interval := time.Duration(float64(time.Second) / chunksPerSecond)

	out := make(chan *ir.StreamChunk, outBuffer)
	go func() {
		defer close(out)
		last := -1
		var next time.Time
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
				if c.IsContent() {
					if wait := time.Until(next); wait > 0 {
						select {
						case <-ctx.Done():
							cancelTail(in, out, last+1)
							return
						case <-time.After(wait):
						}
					}
					next = time.Now().Add(interval)
				}
				if !sendOr(ctx, out, c) {
					cancelTail(in, out, last+1)
					return
				}
			}
		}
	}()
	return out
}
