// Package telemetry exposes the fabric's Prometheus metrics.
//
// # Overview
//
// The Collector owns every metric the fabric publishes: request counts
// and latency by backend, stream chunk volume, fallbacks, parallel
// dispatches, circuit breaker state, backend health, and adaptation
// warnings. Metrics register on a dedicated registry so embedding
// programs control exactly what a scrape sees.
//
// # Usage
//
//	collector := telemetry.NewCollector(telemetry.Config{Enabled: true}, nil)
//
//	// Feed it from a bridge's event bus. The returned function detaches.
//	off := collector.BindBridge(br)
//	defer off()
//
//	// Expose the scrape endpoint.
//	mux.Handle("/metrics", collector.Handler())
//
// Bind one source per collector. A bridge built over a router republishes
// the router's events on its own bus, so BindBridge already covers
// breaker, health, and dispatch events; BindRouter is for routers used
// without a bridge. Binding both double-counts.
//
// # Cardinality
//
// Backend is the only high-risk label. The collector caps the number of
// distinct backend label values (Config.MaxBackends, default 1000) and
// folds the overflow into "other"; an empty backend name becomes "none".
package telemetry
