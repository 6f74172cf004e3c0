// Package bridge is the caller-facing entry point of the fabric: one
// frontend bound to one backend, with an owned middleware stack between
// them.
//
// The backend side accepts anything satisfying adapter.Backend, which the
// router does too, so a bridge serves equally over a single provider or a
// whole fleet. Chat and ChatStream speak the frontend's wire shape;
// ChatIR and ChatStreamIR skip the conversion for callers that already
// hold IR.
//
// Every call gets a request id (generated when absent), an entry
// timestamp, and frontend provenance before middleware runs. Lifecycle
// events flow through a synchronous Bus: request, stream, backend, and
// middleware topics, plus whatever the backend re-publishes. Statistics
// aggregate across calls with the same windowed percentile estimation the
// router uses.
package bridge
