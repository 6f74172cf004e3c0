package router

import (
	"babel-hq/rosetta/pkg/adapter"
	"babel-hq/rosetta/pkg/ir"
)

// Candidate is the selection view of one eligible backend handed to a
// Strategy. It is a snapshot; mutating it has no effect on the registry.
type Candidate struct {
	// Name is the backend's registry name.
	Name string

	// Capabilities is the backend's capability surface.
	Capabilities adapter.Capabilities

	// Stats is the backend's current statistics snapshot.
	Stats StatsSnapshot

	// Weight is the registered routing weight, minimum 1.
	Weight int

	// CostPerMTok is the registered blended cost per million tokens.
	CostPerMTok float64

	// Order is the backend's registration position, used for deterministic
	// tie-breaking.
	Order int
}

// Strategy selects one backend among the eligible candidates.
// This is defined here rather than in the strategies package to avoid an
// import cycle.
type Strategy interface {
	// Select picks a candidate for req. Candidates are pre-filtered to
	// healthy backends with a non-open breaker and arrive in registration
	// order.
	Select(req *ir.ChatRequest, candidates []*Candidate) (*Candidate, error)

	// Name identifies the strategy in stats and events.
	Name() string

	// Reset clears any internal cursor state.
	Reset()
}
