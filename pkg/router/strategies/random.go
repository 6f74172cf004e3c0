package strategies

import (
	"fmt"
	"math/rand"

	"babel-hq/rosetta/pkg/ir"
	"babel-hq/rosetta/pkg/router"
)

// RandomStrategy selects a candidate uniformly at random. Useful as a
// baseline and for spreading load without per-request state.
type RandomStrategy struct{}

// Random creates a new random strategy.
func Random() *RandomStrategy {
	return &RandomStrategy{}
}

// Select returns a uniformly random candidate.
func (s *RandomStrategy) Select(req *ir.ChatRequest, candidates []*router.Candidate) (*router.Candidate, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no candidates available for random selection")
	}
	return candidates[rand.Intn(len(candidates))], nil
}

// Name returns the strategy name.
func (s *RandomStrategy) Name() string {
	return "random"
}

// Reset is a no-op; the strategy is stateless.
func (s *RandomStrategy) Reset() {}
