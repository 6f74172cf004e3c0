// Package strategies provides selection strategies for the router.
//
// Every strategy implements router.Strategy and must be safe for
// concurrent use; Select is called from multiple goroutines handling
// simultaneous requests. Candidates arrive already filtered for health
// and breaker state, in registration order.
package strategies

import (
	"fmt"

	"babel-hq/rosetta/pkg/ir"
	"babel-hq/rosetta/pkg/router"
)

// ExplicitStrategy pins selection to one named backend. With no name
// configured it falls back to the first candidate.
type ExplicitStrategy struct {
	defaultBackend string
}

// Explicit creates a strategy that always selects defaultBackend.
// An empty name selects the first eligible candidate.
func Explicit(defaultBackend string) *ExplicitStrategy {
	return &ExplicitStrategy{defaultBackend: defaultBackend}
}

// Select returns the configured backend from the candidate list.
func (s *ExplicitStrategy) Select(req *ir.ChatRequest, candidates []*router.Candidate) (*router.Candidate, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no candidates available for explicit selection")
	}
	if s.defaultBackend == "" {
		return candidates[0], nil
	}
	for _, c := range candidates {
		if c.Name == s.defaultBackend {
			return c, nil
		}
	}
	return nil, fmt.Errorf("backend %q is not among the eligible candidates", s.defaultBackend)
}

// Name returns the strategy name.
func (s *ExplicitStrategy) Name() string {
	return "explicit"
}

// Reset is a no-op; the strategy is stateless.
func (s *ExplicitStrategy) Reset() {}
