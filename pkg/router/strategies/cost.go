package strategies

import (
	"fmt"

	"babel-hq/rosetta/pkg/ir"
	"babel-hq/rosetta/pkg/router"
)

// CostOptimizedStrategy selects the candidate with the lowest configured
// cost per million tokens. Ties break toward the earlier registration.
// Candidates without a configured cost rank last; when no candidate has
// a cost at all, the earliest registration wins.
type CostOptimizedStrategy struct{}

// CostOptimized creates a new cost-optimized strategy.
func CostOptimized() *CostOptimizedStrategy {
	return &CostOptimizedStrategy{}
}

// Select returns the cheapest candidate.
func (s *CostOptimizedStrategy) Select(req *ir.ChatRequest, candidates []*router.Candidate) (*router.Candidate, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no candidates available for cost-optimized selection")
	}

	var best *router.Candidate
	for _, c := range candidates {
		if c.CostPerMTok <= 0 {
			continue
		}
		if best == nil ||
			c.CostPerMTok < best.CostPerMTok ||
			(c.CostPerMTok == best.CostPerMTok && c.Order < best.Order) {
			best = c
		}
	}
	if best == nil {
		return earliest(candidates), nil
	}
	return best, nil
}

// earliest returns the candidate with the lowest registration order.
func earliest(candidates []*router.Candidate) *router.Candidate {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Order < best.Order {
			best = c
		}
	}
	return best
}

// Name returns the strategy name.
func (s *CostOptimizedStrategy) Name() string {
	return "cost-optimized"
}

// Reset is a no-op; the strategy is stateless.
func (s *CostOptimizedStrategy) Reset() {}
