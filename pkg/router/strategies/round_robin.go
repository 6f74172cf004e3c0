package strategies

import (
	"fmt"
	"sync/atomic"

	"babel-hq/rosetta/pkg/ir"
	"babel-hq/rosetta/pkg/router"
)

// counterReset bounds the round-robin counter so it never approaches
// overflow under sustained traffic.
const counterReset = 1_000_000_000

// RoundRobinStrategy distributes requests evenly across candidates.
// Candidate weights skew the distribution: a backend with weight 3
// receives three times the traffic of a backend with weight 1, and a
// weight of zero or less excludes the backend.
//
// The strategy is safe for concurrent use; selection is a single atomic
// counter increment.
type RoundRobinStrategy struct {
	counter atomic.Int64
}

// RoundRobin creates a new round-robin strategy.
func RoundRobin() *RoundRobinStrategy {
	return &RoundRobinStrategy{}
}

// Select picks the next candidate in weighted rotation.
func (s *RoundRobinStrategy) Select(req *ir.ChatRequest, candidates []*router.Candidate) (*router.Candidate, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no candidates available for round-robin selection")
	}
	if len(candidates) == 1 {
		return candidates[0], nil
	}

	weighted := weightedList(candidates)
	if len(weighted) == 0 {
		// Every candidate weighted out; rotate over all of them.
		weighted = candidates
	}

	count := s.counter.Add(1) - 1
	if count >= counterReset {
		s.counter.CompareAndSwap(count+1, 0)
		count = 0
	}
	return weighted[int(count%int64(len(weighted)))], nil
}

// weightedList expands candidates by weight so that each appears weight
// times. Uniform weights return the input list unchanged.
func weightedList(candidates []*router.Candidate) []*router.Candidate {
	uniform := true
	for _, c := range candidates {
		if c.Weight != 1 {
			uniform = false
			break
		}
	}
	if uniform {
		return candidates
	}

	var out []*router.Candidate
	for _, c := range candidates {
		for i := 0; i < c.Weight; i++ {
			out = append(out, c)
		}
	}
	return out
}

// Name returns the strategy name.
func (s *RoundRobinStrategy) Name() string {
	return "round-robin"
}

// Reset zeroes the rotation counter.
func (s *RoundRobinStrategy) Reset() {
	s.counter.Store(0)
}
