package telemetry

import "sync"

// CardinalityLimiter bounds the set of label values a metric may carry.
// Values seen while under the limit are admitted forever; later values
// are rejected so callers can fold them into an overflow bucket.
type CardinalityLimiter struct {
	max int

	mu   sync.RWMutex
	seen map[string]struct{}
}

// NewCardinalityLimiter creates a limiter admitting at most max values.
func NewCardinalityLimiter(max int) *CardinalityLimiter {
	return &CardinalityLimiter{
		max:  max,
		seen: make(map[string]struct{}),
	}
}

// Allow reports whether value may be used as a label. Known values are
// always allowed; new values are allowed while the limit has room.
func (l *CardinalityLimiter) Allow(value string) bool {
	l.mu.RLock()
	_, ok := l.seen[value]
	l.mu.RUnlock()
	if ok {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.seen[value]; ok {
		return true
	}
	if len(l.seen) >= l.max {
		return false
	}
	l.seen[value] = struct{}{}
	return true
}

// Count returns the number of admitted values.
func (l *CardinalityLimiter) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.seen)
}
