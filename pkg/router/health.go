package router

import (
	"context"
	"time"

	"babel-hq/rosetta/pkg/adapter"
)

// healthProbeTimeout bounds each individual health probe.
const healthProbeTimeout = 5 * time.Second

// healthLoop periodically probes every backend implementing
// adapter.HealthChecker. Probe failures mark the backend unhealthy and
// advance its breaker; a successful probe while half-open closes it.
func (r *Router) healthLoop(interval time.Duration) {
	defer close(r.healthDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info("health loop started", "interval", interval)

	for {
		select {
		case <-r.healthStop:
			r.logger.Debug("health loop stopped")
			return
		case <-ticker.C:
			r.checkAll()
		}
	}
}

func (r *Router) checkAll() {
	r.mu.RLock()
	regs := make([]*registeredBackend, 0, len(r.order))
	for _, name := range r.order {
		regs = append(regs, r.backends[name])
	}
	r.mu.RUnlock()

	for _, rb := range regs {
		hc, ok := rb.backend.(adapter.HealthChecker)
		if !ok {
			continue
		}
		r.checkOne(rb, hc)
	}
}

func (r *Router) checkOne(rb *registeredBackend, hc adapter.HealthChecker) {
	ctx, cancel := context.WithTimeout(context.Background(), healthProbeTimeout)
	defer cancel()

	start := time.Now()
	err := hc.HealthCheck(ctx)
	latency := time.Since(start)
	rb.lastCheckNanos.Store(time.Now().UnixNano())

	if err != nil {
		was := rb.healthy.Swap(false)
		rb.breaker.recordFailure()
		if was {
			r.logger.Error("health check failed",
				"backend", rb.name,
				"error", err,
				"latency", latency,
			)
			r.emit(Event{Type: EventHealthChanged, Backend: rb.name, Err: err, Details: map[string]any{"healthy": false}})
		}
		return
	}

	was := rb.healthy.Swap(true)
	// A successful probe closes a half-open breaker. Admission keeps the
	// single-probe discipline shared with live traffic; a closed breaker's
	// failure count is left alone.
	if rb.breaker.State() == BreakerHalfOpen && rb.breaker.allow() {
		rb.breaker.recordSuccess()
	}
	if !was {
		r.logger.Info("backend recovered",
			"backend", rb.name,
			"latency", latency,
		)
		r.emit(Event{Type: EventHealthChanged, Backend: rb.name, Details: map[string]any{"healthy": true}})
	}
}
