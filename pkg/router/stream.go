package router

import (
	"context"
	"time"

	"babel-hq/rosetta/pkg/adapter"
	"babel-hq/rosetta/pkg/ir"
	"babel-hq/rosetta/pkg/stream"
)

// ExecuteStream implements adapter.Backend.
func (r *Router) ExecuteStream(ctx context.Context, req *ir.ChatRequest) (<-chan *ir.StreamChunk, error) {
	return r.ExecuteStreamWithOptions(ctx, req, Options{})
}

// ExecuteStreamWithOptions routes req and opens a chunk stream. Failover
// is allowed only before the first content chunk: once content has been
// delivered the stream is non-idempotent and later errors propagate
// in-band.
func (r *Router) ExecuteStreamWithOptions(ctx context.Context, req *ir.ChatRequest, opts Options) (<-chan *ir.StreamChunk, error) {
	r.global.totalRequests.Add(1)

	rb, reason, err := r.route(ctx, req, opts)
	if err != nil {
		r.global.failed.Add(1)
		return nil, err
	}
	requestID := req.Metadata.RequestID
	r.emit(Event{Type: EventBackendSelected, Backend: rb.name, RequestID: requestID, Details: map[string]any{"reason": reason}})

	attempted := []string{rb.name}
	creq := req

	// Open synchronously so callers see immediate failures as errors, not
	// as a channel that dies at once.
	var in <-chan *ir.StreamChunk
	var start time.Time
	for {
		var oerr error
		in, start, oerr = r.openStream(ctx, rb, creq)
		if oerr == nil {
			break
		}
		next, treq, ok := r.failoverNext(ctx, creq, rb.name, oerr, &attempted, requestID)
		if !ok {
			r.global.failed.Add(1)
			return nil, oerr
		}
		rb, creq = next, treq
	}

	out := make(chan *ir.StreamChunk, 1)
	go r.relayStream(ctx, rb, creq, in, out, attempted, start, requestID)
	return out, nil
}

// openStream admits one stream open through the breaker.
func (r *Router) openStream(ctx context.Context, rb *registeredBackend, req *ir.ChatRequest) (<-chan *ir.StreamChunk, time.Time, error) {
	if !rb.breaker.allow() {
		return nil, time.Time{}, adapter.Newf(adapter.ErrorCodeCircuitOpen, "circuit breaker open for backend %q", rb.name).WithBackend(rb.name)
	}
	start := time.Now()
	in, err := rb.backend.ExecuteStream(ctx, req)
	if err != nil {
		aerr := r.asBackendError(err, rb.name)
		if aerr.Code != adapter.ErrorCodeCancelled {
			rb.breaker.recordFailure()
		}
		rb.stats.record(time.Since(start), 0, false)
		return nil, start, aerr
	}
	return in, start, nil
}

type relayOutcome int

const (
	// relayCompleted means the source closed; a non-nil error marks a
	// failure already forwarded in-band.
	relayCompleted relayOutcome = iota

	// relayCancelled means the consumer's context ended.
	relayCancelled

	// relayPreContentError means a terminal error arrived before any
	// content; the chunk was withheld so the caller can retry elsewhere.
	relayPreContentError
)

// relayStream forwards chunks from the selected backend, retrying with
// fallback candidates while no content has been delivered.
func (r *Router) relayStream(ctx context.Context, rb *registeredBackend, req *ir.ChatRequest, in <-chan *ir.StreamChunk, out chan<- *ir.StreamChunk, attempted []string, start time.Time, requestID string) {
	defer close(out)

	contentSeen := false
	lastSeq := -1

	for {
		outcome, perr := r.pump(ctx, rb.name, in, out, &contentSeen, &lastSeq)
		switch outcome {
		case relayCancelled:
			c := ir.ErrorChunk(lastSeq+1, string(adapter.ErrorCodeCancelled), "stream cancelled")
			select {
			case out <- c:
			default:
			}
			go stream.Drain(in)
			rb.stats.record(time.Since(start), 0, false)
			r.global.failed.Add(1)
			return

		case relayCompleted:
			latency := time.Since(start)
			if perr != nil {
				rb.breaker.recordFailure()
				rb.stats.record(latency, 0, false)
				r.global.failed.Add(1)
			} else {
				rb.breaker.recordSuccess()
				rb.stats.record(latency, 0, true)
				r.global.successful.Add(1)
			}
			return

		case relayPreContentError:
			rb.breaker.recordFailure()
			rb.stats.record(time.Since(start), 0, false)
			go stream.Drain(in)

			next, treq, ok := r.failoverNext(ctx, req, rb.name, perr, &attempted, requestID)
			reopened := false
			for ok {
				nin, nstart, oerr := r.openStream(ctx, next, treq)
				if oerr == nil {
					rb, req, in, start = next, treq, nin, nstart
					reopened = true
					break
				}
				next, treq, ok = r.failoverNext(ctx, treq, next.name, oerr, &attempted, requestID)
			}
			if !reopened {
				c := ir.ErrorChunk(lastSeq+1, string(perr.Code), perr.Message)
				select {
				case out <- c:
				case <-ctx.Done():
				}
				r.global.failed.Add(1)
				return
			}
		}
	}
}

// pump forwards chunks until the source ends. A terminal error arriving
// before any content is reported without forwarding so the caller can
// retry on a fallback backend. Start chunks get provenance stamped the
// same way unary responses do.
func (r *Router) pump(ctx context.Context, backend string, in <-chan *ir.StreamChunk, out chan<- *ir.StreamChunk, contentSeen *bool, lastSeq *int) (relayOutcome, *adapter.Error) {
	for {
		select {
		case <-ctx.Done():
			return relayCancelled, adapter.FromContext(ctx)
		case c, ok := <-in:
			if !ok {
				return relayCompleted, nil
			}
			if c.Sequence > *lastSeq {
				*lastSeq = c.Sequence
			}
			if c.Type == ir.ChunkTypeError && !*contentSeen {
				return relayPreContentError, chunkFailure(c)
			}
			if c.IsContent() {
				*contentSeen = true
			}
			if c.Type == ir.ChunkTypeStart {
				r.stampChunk(c, backend)
			}
			select {
			case out <- c:
			case <-ctx.Done():
				return relayCancelled, adapter.FromContext(ctx)
			}
			if c.Type == ir.ChunkTypeError {
				return relayCompleted, chunkFailure(c)
			}
		}
	}
}

// stampChunk fills in the provenance fields a start chunk's metadata left
// empty, creating the metadata when the backend sent none.
func (r *Router) stampChunk(c *ir.StreamChunk, backend string) {
	if c.Metadata == nil {
		c.Metadata = &ir.Metadata{}
	}
	if c.Metadata.Provenance.Backend == "" {
		c.Metadata.Provenance.Backend = backend
	}
	if c.Metadata.Provenance.Router == "" {
		c.Metadata.Provenance.Router = r.cfg.Name
	}
}

// chunkFailure converts a terminal error chunk into an adapter error.
func chunkFailure(c *ir.StreamChunk) *adapter.Error {
	code := adapter.ErrorCodeProvider
	msg := "stream failed"
	if c.Err != nil {
		if c.Err.Code != "" {
			code = adapter.ErrorCode(c.Err.Code)
		}
		if c.Err.Message != "" {
			msg = c.Err.Message
		}
	}
	return adapter.New(code, msg)
}
