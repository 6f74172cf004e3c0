package router

import (
	"context"
	"time"

	"babel-hq/rosetta/pkg/adapter"
	"babel-hq/rosetta/pkg/ir"
)

// Execute implements adapter.Backend.
func (r *Router) Execute(ctx context.Context, req *ir.ChatRequest) (*ir.ChatResponse, error) {
	return r.ExecuteWithOptions(ctx, req, Options{})
}

// ExecuteWithOptions routes req, runs it, and fails over along the
// fallback chain until a backend succeeds or the chain stops.
func (r *Router) ExecuteWithOptions(ctx context.Context, req *ir.ChatRequest, opts Options) (*ir.ChatResponse, error) {
	r.global.totalRequests.Add(1)

	if r.cfg.Fallback == FallbackParallel && opts.Backend == "" {
		return r.parallelExecute(ctx, req)
	}

	rb, reason, err := r.route(ctx, req, opts)
	if err != nil {
		r.global.failed.Add(1)
		return nil, err
	}
	requestID := req.Metadata.RequestID
	r.emit(Event{Type: EventBackendSelected, Backend: rb.name, RequestID: requestID, Details: map[string]any{"reason": reason}})
	r.logger.Debug("backend selected",
		"backend", rb.name,
		"reason", reason,
		"request_id", requestID,
	)

	attempted := []string{rb.name}
	creq := req
	var lastErr error
	for {
		resp, err := r.executeOn(ctx, rb, creq)
		if err == nil {
			r.global.successful.Add(1)
			return resp, nil
		}
		lastErr = err

		next, treq, ok := r.failoverNext(ctx, creq, rb.name, err, &attempted, requestID)
		if !ok {
			break
		}
		rb, creq = next, treq
	}
	r.global.failed.Add(1)
	return nil, lastErr
}

// route picks the backend for req. Precedence: context liveness, explicit
// option, exact model mapping, model patterns by priority, configured
// strategy over eligible candidates.
func (r *Router) route(ctx context.Context, req *ir.ChatRequest, opts Options) (*registeredBackend, string, error) {
	if ctx.Err() != nil {
		return nil, "", adapter.FromContext(ctx)
	}

	if opts.Backend != "" {
		rb, ok := r.lookup(opts.Backend)
		if !ok {
			return nil, "", adapter.Newf(adapter.ErrorCodeNoBackend, "backend %q is not registered", opts.Backend)
		}
		return rb, "explicit", nil
	}

	if model := req.Model(); model != "" {
		if name, ok := r.cfg.ModelMapping[model]; ok {
			rb, ok := r.lookup(name)
			if !ok {
				return nil, "", adapter.Newf(adapter.ErrorCodeNoBackend, "model mapping for %q names unregistered backend %q", model, name)
			}
			return rb, "model-mapping", nil
		}
		for _, p := range r.cfg.ModelPatterns {
			if !p.re.MatchString(model) {
				continue
			}
			rb, ok := r.lookup(p.Backend)
			if !ok {
				return nil, "", adapter.Newf(adapter.ErrorCodeNoBackend, "model pattern %q names unregistered backend %q", p.Pattern, p.Backend)
			}
			return rb, "model-pattern", nil
		}
	}

	cands, regs := r.candidates()
	if len(cands) == 0 {
		return nil, "", adapter.New(adapter.ErrorCodeNoBackend, "no healthy backends available")
	}

	if r.cfg.Strategy == nil {
		if r.cfg.DefaultBackend != "" {
			if rb, ok := r.lookup(r.cfg.DefaultBackend); ok && eligible(rb) {
				return rb, "default", nil
			}
		}
		return regs[0], "registration-order", nil
	}

	chosen, err := r.cfg.Strategy.Select(req, cands)
	if err != nil {
		return nil, "", adapter.Wrap(adapter.ErrorCodeNoBackend, "strategy selection failed", err)
	}
	if chosen == nil {
		return nil, "", adapter.New(adapter.ErrorCodeNoBackend, "strategy selected no backend")
	}
	rb, ok := r.lookup(chosen.Name)
	if !ok {
		return nil, "", adapter.Newf(adapter.ErrorCodeNoBackend, "strategy selected unregistered backend %q", chosen.Name)
	}
	return rb, r.cfg.Strategy.Name(), nil
}

// executeOn runs req on one backend with breaker admission and stats
// accounting.
func (r *Router) executeOn(ctx context.Context, rb *registeredBackend, req *ir.ChatRequest) (*ir.ChatResponse, error) {
	if !rb.breaker.allow() {
		return nil, adapter.Newf(adapter.ErrorCodeCircuitOpen, "circuit breaker open for backend %q", rb.name).WithBackend(rb.name)
	}

	start := time.Now()
	resp, err := rb.backend.Execute(ctx, req)
	latency := time.Since(start)

	if err != nil {
		aerr := r.asBackendError(err, rb.name)
		// Caller cancellation says nothing about backend health.
		if aerr.Code != adapter.ErrorCodeCancelled {
			rb.breaker.recordFailure()
		}
		rb.stats.record(latency, 0, false)
		return nil, aerr
	}
	rb.breaker.recordSuccess()
	rb.stats.record(latency, costOf(rb, resp), true)
	r.stampResponse(resp, rb.name)
	return resp, nil
}

// asBackendError normalizes err into the taxonomy and attributes it to the
// named backend when the adapter did not.
func (r *Router) asBackendError(err error, name string) *adapter.Error {
	aerr := adapter.Normalize(err)
	if aerr.Backend == "" {
		aerr = aerr.WithBackend(name)
	}
	return aerr
}

// stampResponse fills routing provenance the backend left empty.
func (r *Router) stampResponse(resp *ir.ChatResponse, name string) {
	if resp == nil {
		return
	}
	if resp.Metadata.Provenance.Backend == "" {
		resp.Metadata.Provenance.Backend = name
	}
	if resp.Metadata.Provenance.Router == "" {
		resp.Metadata.Provenance.Router = r.cfg.Name
	}
}

// costOf converts response usage into USD using the registered blended
// rate.
func costOf(rb *registeredBackend, resp *ir.ChatResponse) float64 {
	if rb.costPerMTok <= 0 || resp == nil || resp.Usage == nil {
		return 0
	}
	tokens := resp.Usage.TotalTokens
	if tokens == 0 {
		tokens = resp.Usage.PromptTokens + resp.Usage.CompletionTokens
	}
	return float64(tokens) / 1e6 * rb.costPerMTok
}

// shouldFailover reports whether err warrants trying another backend.
// Retryable errors and open breakers fail over; everything else
// short-circuits the chain. An open breaker is an availability signal, not
// a verdict on the request, so a different backend may still serve it.
func (r *Router) shouldFailover(ctx context.Context, err error) bool {
	if r.cfg.Fallback == FallbackNone || ctx.Err() != nil {
		return false
	}
	if adapter.CodeOf(err) == adapter.ErrorCodeCircuitOpen {
		return true
	}
	return adapter.IsRetryable(err)
}

// failoverNext resolves the next backend after err on the named backend,
// applying model translation. Candidates that cannot serve the model are
// skipped. Returns false when the chain stops.
func (r *Router) failoverNext(ctx context.Context, req *ir.ChatRequest, failed string, err error, attempted *[]string, requestID string) (*registeredBackend, *ir.ChatRequest, bool) {
	if !r.shouldFailover(ctx, err) {
		return nil, nil, false
	}
	for {
		next := r.nextFallback(req, failed, err, *attempted)
		if next == nil {
			return nil, nil, false
		}
		*attempted = append(*attempted, next.name)

		treq, terr := r.translateFor(req, next)
		if terr != nil {
			r.logger.Debug("fallback candidate skipped",
				"backend", next.name,
				"error", terr,
			)
			continue
		}

		r.global.totalFallbacks.Add(1)
		r.emit(Event{Type: EventFailover, Backend: next.name, RequestID: requestID, Err: err, Details: map[string]any{"from": failed}})
		r.logger.Warn("failing over",
			"from", failed,
			"to", next.name,
			"error", err,
		)
		return next, treq, true
	}
}

// nextFallback picks the next untried eligible backend per the configured
// fallback mode.
func (r *Router) nextFallback(req *ir.ChatRequest, failed string, err error, attempted []string) *registeredBackend {
	tried := make(map[string]struct{}, len(attempted))
	for _, n := range attempted {
		tried[n] = struct{}{}
	}

	switch r.cfg.Fallback {
	case FallbackSequential, FallbackParallel:
		chain := r.cfg.FallbackChain
		if len(chain) == 0 {
			chain = r.names()
		}
		for _, name := range chain {
			if _, ok := tried[name]; ok {
				continue
			}
			if rb, ok := r.lookup(name); ok && eligible(rb) {
				return rb
			}
		}
	case FallbackCustom:
		var available []string
		for _, name := range r.names() {
			if _, ok := tried[name]; ok {
				continue
			}
			if rb, ok := r.lookup(name); ok && eligible(rb) {
				available = append(available, name)
			}
		}
		name := r.cfg.CustomFallback(req, failed, err, attempted, available)
		if name == "" {
			return nil
		}
		if rb, ok := r.lookup(name); ok {
			return rb
		}
	}
	return nil
}
