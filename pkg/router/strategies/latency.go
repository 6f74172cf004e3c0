package strategies

import (
	"fmt"

	"babel-hq/rosetta/pkg/ir"
	"babel-hq/rosetta/pkg/router"
)

// LatencyOptimizedStrategy selects the candidate with the lowest average
// latency. Ties break toward the earlier registration. Candidates with
// no recorded traffic rank first so that new backends get measured.
type LatencyOptimizedStrategy struct{}

// LatencyOptimized creates a new latency-optimized strategy.
func LatencyOptimized() *LatencyOptimizedStrategy {
	return &LatencyOptimizedStrategy{}
}

// Select returns the fastest candidate.
func (s *LatencyOptimizedStrategy) Select(req *ir.ChatRequest, candidates []*router.Candidate) (*router.Candidate, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no candidates available for latency-optimized selection")
	}

	var best *router.Candidate
	for _, c := range candidates {
		if best == nil ||
			c.Stats.AvgLatency < best.Stats.AvgLatency ||
			(c.Stats.AvgLatency == best.Stats.AvgLatency && c.Order < best.Order) {
			best = c
		}
	}
	return best, nil
}

// Name returns the strategy name.
func (s *LatencyOptimizedStrategy) Name() string {
	return "latency-optimized"
}

// Reset is a no-op; the strategy is stateless.
func (s *LatencyOptimizedStrategy) Reset() {}
