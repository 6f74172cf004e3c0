package ir

import (
	"time"

	"babel-hq/rosetta/pkg/warnings"
)

// Provenance records which fabric components handled a request.
type Provenance struct {
	// Frontend is the name of the frontend adapter that produced the IR.
	Frontend string `json:"frontend,omitempty"`

	// Backend is the name of the backend adapter that served the request.
	Backend string `json:"backend,omitempty"`

	// Router is the name of the router that selected the backend, when one
	// was involved.
	Router string `json:"router,omitempty"`

	// Middleware lists the middleware names that ran, in execution order.
	Middleware []string `json:"middleware,omitempty"`
}

// Clone returns a deep copy of the provenance.
func (p Provenance) Clone() Provenance {
	out := p
	if p.Middleware != nil {
		out.Middleware = append([]string(nil), p.Middleware...)
	}
	return out
}

// Metadata travels with a request and its response through every layer of
// the fabric.
type Metadata struct {
	// RequestID correlates every event, log line, and retry belonging to
	// one logical request. It is generated by the frontend or the bridge
	// and stays stable across retries and fallbacks.
	RequestID string `json:"requestId"`

	// ProviderResponseID is the identifier the serving provider assigned to
	// its response, when one was returned.
	ProviderResponseID string `json:"providerResponseId,omitempty"`

	// Timestamp is when the request entered the fabric.
	Timestamp time.Time `json:"timestamp"`

	// Provenance records the components that handled the request.
	Provenance Provenance `json:"provenance"`

	// Warnings accumulates drift records from every layer.
	Warnings []warnings.Warning `json:"warnings,omitempty"`

	// Custom carries caller-defined annotations.
	Custom map[string]any `json:"custom,omitempty"`
}

// Clone returns a deep copy of the metadata.
func (m Metadata) Clone() Metadata {
	out := m
	out.Provenance = m.Provenance.Clone()
	if m.Warnings != nil {
		out.Warnings = append([]warnings.Warning(nil), m.Warnings...)
	}
	out.Custom = cloneAnyMap(m.Custom)
	return out
}

// AddWarnings appends drift warnings to the metadata, deduplicating against
// the ones already present. The first writer wins on duplicates.
func (m *Metadata) AddWarnings(ws ...warnings.Warning) {
	if len(ws) == 0 {
		return
	}
	m.Warnings = warnings.Merge(m.Warnings, ws)
}
