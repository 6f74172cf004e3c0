package stream

import (
	"context"
	"sync"

	"babel-hq/rosetta/pkg/adapter"
	"babel-hq/rosetta/pkg/ir"
)

// Tee fans a stream out to n consumers. Every consumer sees every chunk in
// order, cloned per branch so consumers never observe each other's
// mutations. Per-branch buffering is unbounded, so a slow consumer never
// stalls the source or its siblings.
func Tee(ctx context.Context, in <-chan *ir.StreamChunk, n int) []<-chan *ir.StreamChunk {
	if n <= 0 {
		return nil
	}

	branches := make([]*teeBranch, n)
	outs := make([]<-chan *ir.StreamChunk, n)
	for i := range branches {
		b := &teeBranch{out: make(chan *ir.StreamChunk, outBuffer)}
		b.cond = sync.NewCond(&b.mu)
		branches[i] = b
		outs[i] = b.out
		go b.run(ctx)
	}

	go func() {
		last := -1
		for {
			select {
			case <-ctx.Done():
				cancel := ir.ErrorChunk(last+1, string(adapter.ErrorCodeCancelled), "stream cancelled")
				for _, b := range branches {
					b.push(cancel.Clone())
					b.finish()
				}
				go Drain(in)
				return
			case c, ok := <-in:
				if !ok {
					for _, b := range branches {
						b.finish()
					}
					return
				}
				if c.Sequence > last {
					last = c.Sequence
				}
				for _, b := range branches {
					b.push(c.Clone())
				}
			}
		}
	}()

	return outs
}

// teeBranch is one consumer's view of a teed stream: an unbounded queue fed
// by the distributor and delivered by its own goroutine.
type teeBranch struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buf    []*ir.StreamChunk
	closed bool
	out    chan *ir.StreamChunk
}

func (b *teeBranch) push(c *ir.StreamChunk) {
	b.mu.Lock()
	b.buf = append(b.buf, c)
	b.cond.Signal()
	b.mu.Unlock()
}

func (b *teeBranch) finish() {
	b.mu.Lock()
	b.closed = true
	b.cond.Signal()
	b.mu.Unlock()
}

func (b *teeBranch) run(ctx context.Context) {
	defer close(b.out)
	for {
		b.mu.Lock()
		for len(b.buf) == 0 && !b.closed {
			b.cond.Wait()
		}
		if len(b.buf) == 0 {
			b.mu.Unlock()
			return
		}
		c := b.buf[0]
		b.buf = b.buf[1:]
		b.mu.Unlock()

		select {
		case b.out <- c:
		case <-ctx.Done():
			// The distributor queues the terminal chunk; deliver what the
			// consumer still reads and stop when it is gone.
			select {
			case b.out <- c:
			default:
				return
			}
		}
	}
}
