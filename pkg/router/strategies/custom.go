package strategies

import (
	"fmt"

	"babel-hq/rosetta/pkg/ir"
	"babel-hq/rosetta/pkg/router"
)

// SelectFunc is a caller-supplied selection function. Candidates carry
// the stats snapshot and capabilities of each eligible backend.
type SelectFunc func(req *ir.ChatRequest, candidates []*router.Candidate) (*router.Candidate, error)

// CustomStrategy delegates selection to a caller function.
type CustomStrategy struct {
	fn SelectFunc
}

// Custom wraps fn as a selection strategy.
func Custom(fn SelectFunc) *CustomStrategy {
	return &CustomStrategy{fn: fn}
}

// Select invokes the caller function and validates its result.
func (s *CustomStrategy) Select(req *ir.ChatRequest, candidates []*router.Candidate) (*router.Candidate, error) {
	if s.fn == nil {
		return nil, fmt.Errorf("custom strategy has no selection function")
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no candidates available for custom selection")
	}
	c, err := s.fn(req, candidates)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("custom strategy returned no candidate")
	}
	return c, nil
}

// Name returns the strategy name.
func (s *CustomStrategy) Name() string {
	return "custom"
}

// Reset is a no-op; state belongs to the caller function.
func (s *CustomStrategy) Reset() {}
