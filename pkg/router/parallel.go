package router

import (
	"context"
	"fmt"
	"time"

	"babel-hq/rosetta/pkg/adapter"
	"babel-hq/rosetta/pkg/ir"
)

// ParallelStrategy selects how parallel dispatch picks its result.
type ParallelStrategy string

const (
	// ParallelFirst returns the first successful response.
	ParallelFirst ParallelStrategy = "first"

	// ParallelAll waits for every backend to finish.
	ParallelAll ParallelStrategy = "all"

	// ParallelFastest returns the first backend to finish, success or not,
	// and cancels the rest.
	ParallelFastest ParallelStrategy = "fastest"

	// ParallelCustom delegates the final result to the aggregator.
	ParallelCustom ParallelStrategy = "custom"
)

// ParallelOptions controls DispatchParallel.
type ParallelOptions struct {
	// Backends names the targets. Empty dispatches to every eligible
	// backend.
	Backends []string

	// Strategy picks the result. Empty means first.
	Strategy ParallelStrategy

	// Timeout bounds the whole dispatch when positive.
	Timeout time.Duration

	// CancelOnFirstSuccess cancels the remaining siblings once a success
	// arrives. Only meaningful for the first strategy.
	CancelOnFirstSuccess bool

	// Aggregator combines the results for the all and custom strategies.
	// Required for custom.
	Aggregator func(results []ParallelResult) (*ir.ChatResponse, error)
}

// ParallelResult is one backend's outcome in a parallel dispatch.
type ParallelResult struct {
	Backend  string
	Response *ir.ChatResponse
	Err      error
	Latency  time.Duration
}

// ParallelDispatchResult is the combined outcome of a parallel dispatch.
// Results are ordered by completion.
type ParallelDispatchResult struct {
	Response  *ir.ChatResponse
	Winner    string
	Results   []ParallelResult
	Successes []string
	Failures  []string
	Elapsed   time.Duration
}

// DispatchParallel runs req on several backends at once. All sibling
// calls share one cancellation scope; the dispatch always waits for every
// sibling to finish so no goroutine outlives the call.
func (r *Router) DispatchParallel(ctx context.Context, req *ir.ChatRequest, opts ParallelOptions) (*ParallelDispatchResult, error) {
	r.global.totalRequests.Add(1)
	r.global.parallelRequests.Add(1)

	res, err := r.dispatch(ctx, req, opts)
	if err != nil {
		r.global.failed.Add(1)
	} else {
		r.global.successful.Add(1)
	}
	return res, err
}

// parallelExecute serves FallbackParallel on the unary path: every
// eligible backend races and the first success wins. The caller has
// already counted the request.
func (r *Router) parallelExecute(ctx context.Context, req *ir.ChatRequest) (*ir.ChatResponse, error) {
	r.global.parallelRequests.Add(1)

	res, err := r.dispatch(ctx, req, ParallelOptions{
		Strategy:             ParallelFirst,
		CancelOnFirstSuccess: true,
	})
	if err != nil {
		r.global.failed.Add(1)
		return nil, err
	}
	r.global.successful.Add(1)
	return res.Response, nil
}

func (r *Router) dispatch(ctx context.Context, req *ir.ChatRequest, opts ParallelOptions) (*ParallelDispatchResult, error) {
	if opts.Strategy == "" {
		opts.Strategy = ParallelFirst
	}
	if opts.Strategy == ParallelCustom && opts.Aggregator == nil {
		return nil, adapter.New(adapter.ErrorCodeValidation, "custom parallel strategy requires an aggregator")
	}

	var regs []*registeredBackend
	if len(opts.Backends) > 0 {
		for _, name := range opts.Backends {
			rb, ok := r.lookup(name)
			if !ok {
				return nil, adapter.Newf(adapter.ErrorCodeNoBackend, "backend %q is not registered", name)
			}
			regs = append(regs, rb)
		}
	} else {
		_, regs = r.candidates()
	}
	if len(regs) == 0 {
		return nil, adapter.New(adapter.ErrorCodeNoBackend, "no backends available for parallel dispatch")
	}

	r.emit(Event{
		Type:      EventParallelDispatch,
		RequestID: req.Metadata.RequestID,
		Details:   map[string]any{"backends": len(regs), "strategy": string(opts.Strategy)},
	})

	var pctx context.Context
	var cancel context.CancelFunc
	if opts.Timeout > 0 {
		pctx, cancel = context.WithTimeout(ctx, opts.Timeout)
	} else {
		pctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	started := time.Now()
	resultCh := make(chan ParallelResult, len(regs))
	for _, rb := range regs {
		go func(rb *registeredBackend) {
			// Each sibling works on its own copy of the request.
			t0 := time.Now()
			resp, err := r.executeOn(pctx, rb, req.Clone())
			resultCh <- ParallelResult{Backend: rb.name, Response: resp, Err: err, Latency: time.Since(t0)}
		}(rb)
	}

	out := &ParallelDispatchResult{}
	var winner *ParallelResult
	for i := 0; i < len(regs); i++ {
		res := <-resultCh
		out.Results = append(out.Results, res)
		switch opts.Strategy {
		case ParallelFirst:
			if res.Err == nil && winner == nil {
				w := res
				winner = &w
				if opts.CancelOnFirstSuccess {
					cancel()
				}
			}
		case ParallelFastest:
			if winner == nil {
				w := res
				winner = &w
				cancel()
			}
		}
	}
	out.Elapsed = time.Since(started)
	for _, res := range out.Results {
		if res.Err == nil {
			out.Successes = append(out.Successes, res.Backend)
		} else {
			out.Failures = append(out.Failures, res.Backend)
		}
	}

	switch opts.Strategy {
	case ParallelFirst:
		if winner == nil {
			return out, aggregateFailure(out.Results)
		}
		out.Response = winner.Response
		out.Winner = winner.Backend
		return out, nil

	case ParallelFastest:
		out.Winner = winner.Backend
		if winner.Err != nil {
			return out, winner.Err
		}
		out.Response = winner.Response
		return out, nil

	case ParallelAll:
		if opts.Aggregator != nil {
			return r.aggregate(out, opts.Aggregator)
		}
		for _, res := range out.Results {
			if res.Err == nil {
				out.Response = res.Response
				out.Winner = res.Backend
				return out, nil
			}
		}
		return out, aggregateFailure(out.Results)

	case ParallelCustom:
		return r.aggregate(out, opts.Aggregator)
	}
	return out, adapter.Newf(adapter.ErrorCodeValidation, "unknown parallel strategy %q", opts.Strategy)
}

func (r *Router) aggregate(out *ParallelDispatchResult, fn func([]ParallelResult) (*ir.ChatResponse, error)) (*ParallelDispatchResult, error) {
	resp, err := fn(out.Results)
	if err != nil {
		return out, err
	}
	out.Response = resp
	for _, res := range out.Results {
		if res.Response == resp && resp != nil {
			out.Winner = res.Backend
			break
		}
	}
	return out, nil
}

// aggregateFailure folds every sibling's error into one provider error.
func aggregateFailure(results []ParallelResult) *adapter.Error {
	details := make(map[string]any)
	for _, res := range results {
		if res.Err != nil {
			details[res.Backend] = res.Err.Error()
		}
	}
	err := adapter.New(adapter.ErrorCodeProvider, fmt.Sprintf("all %d parallel backends failed", len(results)))
	err.Details = details
	return err
}
