package telemetry

import (
	"time"

	"babel-hq/rosetta/pkg/bridge"
	"babel-hq/rosetta/pkg/router"
)

// BindBridge subscribes the collector to a bridge's event bus. The
// returned function detaches it. A bridge over a router republishes the
// router's events, so one BindBridge covers both; binding the router as
// well would double-count.
func (c *Collector) BindBridge(b *bridge.Bridge) (off func()) {
	return b.Bus().OnAny(func(ev bridge.Event) {
		c.observe(string(ev.Type), ev.Backend, ev.Details)
	})
}

// BindRouter attaches the collector directly to a router, for
// deployments that use the router without a bridge.
func (c *Collector) BindRouter(r *router.Router) (off func()) {
	return r.Observe(func(ev router.Event) {
		c.observe(string(ev.Type), ev.Backend, ev.Details)
	})
}

// observe maps one lifecycle event onto the metrics. Terminal request
// events arrive exactly once per request on the bridge bus, for unary
// and streaming calls alike.
func (c *Collector) observe(tp, backend string, details map[string]any) {
	switch tp {
	case string(bridge.EventRequestSuccess):
		c.RecordRequest(backend, "success", durationDetail(details))
	case string(bridge.EventRequestError):
		c.RecordRequest(backend, codeDetail(details), durationDetail(details))
	case string(bridge.EventRequestCancelled):
		c.RecordRequest(backend, "cancelled", durationDetail(details))
	case string(bridge.EventStreamChunk):
		c.RecordStreamChunk()
	case string(bridge.EventBackendFailover):
		c.RecordFallback()
	case string(router.EventParallelDispatch):
		c.RecordParallelDispatch()
	case string(router.EventBreakerOpen):
		c.SetBreakerState(backend, "open")
	case string(router.EventBreakerHalfOpen):
		c.SetBreakerState(backend, "half-open")
	case string(router.EventBreakerClose):
		c.SetBreakerState(backend, "closed")
	case string(router.EventHealthChanged):
		c.SetBackendHealth(backend, healthyDetail(details))
	}
}

func durationDetail(details map[string]any) time.Duration {
	d, _ := details["latency"].(time.Duration)
	return d
}

func codeDetail(details map[string]any) string {
	if code, ok := details["code"].(string); ok && code != "" {
		return code
	}
	return "error"
}

func healthyDetail(details map[string]any) bool {
	h, _ := details["healthy"].(bool)
	return h
}
