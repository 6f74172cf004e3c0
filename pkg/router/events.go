package router

import "sort"

// EventType names a routing lifecycle event.
type EventType string

const (
	// EventBackendSelected fires once per call with the chosen backend.
	EventBackendSelected EventType = "backend:selected"

	// EventFailover fires when a failed call moves to a fallback backend.
	EventFailover EventType = "backend:failover"

	// EventBreakerOpen fires when a backend's breaker opens.
	EventBreakerOpen EventType = "breaker:open"

	// EventBreakerHalfOpen fires when an open breaker starts admitting a
	// probe.
	EventBreakerHalfOpen EventType = "breaker:half-open"

	// EventBreakerClose fires when a breaker closes.
	EventBreakerClose EventType = "breaker:close"

	// EventHealthChanged fires when a backend's health status flips.
	EventHealthChanged EventType = "health:changed"

	// EventParallelDispatch fires once per parallel dispatch, before the
	// sibling calls start.
	EventParallelDispatch EventType = "dispatch:parallel"
)

// Event describes one routing decision or state change.
type Event struct {
	Type      EventType
	Backend   string
	RequestID string
	Err       error
	Details   map[string]any
}

// Observe attaches an additional event observer alongside Config.OnEvent.
// The returned function detaches it. Observers run synchronously in
// attachment order; panics are contained per observer.
func (r *Router) Observe(fn func(Event)) (off func()) {
	r.obsMu.Lock()
	if r.observers == nil {
		r.observers = make(map[int64]func(Event))
	}
	r.nextObs++
	id := r.nextObs
	r.observers[id] = fn
	r.obsMu.Unlock()

	return func() {
		r.obsMu.Lock()
		delete(r.observers, id)
		r.obsMu.Unlock()
	}
}

// emit delivers ev synchronously to the configured observer and every
// attached one. Observer panics are contained and logged so a misbehaving
// callback cannot take down a request.
func (r *Router) emit(ev Event) {
	if fn := r.cfg.OnEvent; fn != nil {
		r.deliver(fn, ev)
	}

	r.obsMu.RLock()
	if len(r.observers) == 0 {
		r.obsMu.RUnlock()
		return
	}
	ids := make([]int64, 0, len(r.observers))
	for id := range r.observers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	fns := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, r.observers[id])
	}
	r.obsMu.RUnlock()

	for _, fn := range fns {
		r.deliver(fn, ev)
	}
}

func (r *Router) deliver(fn func(Event), ev Event) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("event observer panicked",
				"event", string(ev.Type),
				"backend", ev.Backend,
				"panic", rec,
			)
		}
	}()
	fn(ev)
}
