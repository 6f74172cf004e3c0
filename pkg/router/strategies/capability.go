package strategies

import (
	"fmt"
	"math"

	"babel-hq/rosetta/pkg/ir"
	"babel-hq/rosetta/pkg/router"
)

// CapabilityWeights assigns the relative importance of cost, speed, and
// quality when scoring candidates. The three weights must sum to 1.0.
type CapabilityWeights struct {
	Cost    float64 `json:"cost" yaml:"cost"`
	Speed   float64 `json:"speed" yaml:"speed"`
	Quality float64 `json:"quality" yaml:"quality"`
}

// weightTolerance absorbs float error when validating that weights sum
// to 1.0.
const weightTolerance = 0.001

var capabilityPresets = map[string]CapabilityWeights{
	"cost":     {Cost: 0.7, Speed: 0.2, Quality: 0.1},
	"speed":    {Cost: 0.1, Speed: 0.7, Quality: 0.2},
	"quality":  {Cost: 0.1, Speed: 0.2, Quality: 0.7},
	"balanced": {Cost: 1.0 / 3, Speed: 1.0 / 3, Quality: 1.0 / 3},
}

// CapabilityBasedStrategy scores each candidate and selects the highest.
//
// Score = w_cost*cost + w_speed*speed + w_quality*quality, each factor
// normalized to [0,1] within the candidate set:
//
//   - cost: linear min-max over configured cost per million tokens,
//     cheapest = 1, most expensive = 0
//   - speed: linear min-max over average latency, fastest = 1,
//     slowest = 0
//   - quality: lifetime success rate
//
// A candidate without data for a factor (no configured cost, no recorded
// traffic) scores a neutral 0.5 on that factor. Ties break toward the
// earlier registration.
type CapabilityBasedStrategy struct {
	weights CapabilityWeights
}

// CapabilityBased creates a capability-based strategy with caller
// weights. The weights must be non-negative and sum to 1.0.
func CapabilityBased(weights CapabilityWeights) (*CapabilityBasedStrategy, error) {
	if weights.Cost < 0 || weights.Speed < 0 || weights.Quality < 0 {
		return nil, fmt.Errorf("capability weights must be non-negative")
	}
	sum := weights.Cost + weights.Speed + weights.Quality
	if math.Abs(sum-1.0) > weightTolerance {
		return nil, fmt.Errorf("capability weights must sum to 1.0, got %.3f", sum)
	}
	return &CapabilityBasedStrategy{weights: weights}, nil
}

// CapabilityPreset creates a capability-based strategy from a named
// preset: cost, speed, quality, or balanced.
func CapabilityPreset(preset string) (*CapabilityBasedStrategy, error) {
	w, ok := capabilityPresets[preset]
	if !ok {
		return nil, fmt.Errorf("unknown capability preset %q", preset)
	}
	return &CapabilityBasedStrategy{weights: w}, nil
}

// Select returns the highest-scoring candidate.
func (s *CapabilityBasedStrategy) Select(req *ir.ChatRequest, candidates []*router.Candidate) (*router.Candidate, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no candidates available for capability-based selection")
	}
	if len(candidates) == 1 {
		return candidates[0], nil
	}

	minCost, maxCost := costBounds(candidates)
	minLat, maxLat := latencyBounds(candidates)

	var best *router.Candidate
	var bestScore float64
	for _, c := range candidates {
		score := s.weights.Cost*costScore(c, minCost, maxCost) +
			s.weights.Speed*speedScore(c, minLat, maxLat) +
			s.weights.Quality*qualityScore(c)
		if best == nil || score > bestScore || (score == bestScore && c.Order < best.Order) {
			best, bestScore = c, score
		}
	}
	return best, nil
}

// costBounds returns the min and max configured cost across candidates
// that have one.
func costBounds(candidates []*router.Candidate) (float64, float64) {
	var min, max float64
	seen := false
	for _, c := range candidates {
		if c.CostPerMTok <= 0 {
			continue
		}
		if !seen || c.CostPerMTok < min {
			min = c.CostPerMTok
		}
		if !seen || c.CostPerMTok > max {
			max = c.CostPerMTok
		}
		seen = true
	}
	return min, max
}

// latencyBounds returns the min and max average latency across
// candidates with recorded traffic, in nanoseconds.
func latencyBounds(candidates []*router.Candidate) (float64, float64) {
	var min, max float64
	seen := false
	for _, c := range candidates {
		if c.Stats.Total == 0 {
			continue
		}
		l := float64(c.Stats.AvgLatency)
		if !seen || l < min {
			min = l
		}
		if !seen || l > max {
			max = l
		}
		seen = true
	}
	return min, max
}

func costScore(c *router.Candidate, min, max float64) float64 {
	if c.CostPerMTok <= 0 {
		return 0.5
	}
	if max == min {
		return 1.0
	}
	return (max - c.CostPerMTok) / (max - min)
}

func speedScore(c *router.Candidate, min, max float64) float64 {
	if c.Stats.Total == 0 {
		return 0.5
	}
	if max == min {
		return 1.0
	}
	return (max - float64(c.Stats.AvgLatency)) / (max - min)
}

func qualityScore(c *router.Candidate) float64 {
	if c.Stats.Total == 0 {
		return 0.5
	}
	return c.Stats.SuccessRate
}

// Name returns the strategy name.
func (s *CapabilityBasedStrategy) Name() string {
	return "capability-based"
}

// Reset is a no-op; the strategy is stateless.
func (s *CapabilityBasedStrategy) Reset() {}
