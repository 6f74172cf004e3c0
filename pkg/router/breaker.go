package router

import (
	"sync"
	"time"
)

// BreakerState names a circuit breaker state.
type BreakerState string

const (
	// BreakerClosed admits requests and counts consecutive failures.
	BreakerClosed BreakerState = "closed"

	// BreakerOpen rejects requests until the timeout elapses.
	BreakerOpen BreakerState = "open"

	// BreakerHalfOpen admits exactly one probe request.
	BreakerHalfOpen BreakerState = "half-open"
)

// breaker is a per-backend circuit breaker.
//
// Transitions:
//
//	closed    -> open       after threshold consecutive failures
//	open      -> half-open  once the timeout elapses
//	half-open -> closed     on probe success
//	half-open -> open       on probe failure, timer restarted
//
// The onTransition observer is invoked outside the lock so it may call
// back into the router.
type breaker struct {
	mu                  sync.Mutex
	state               BreakerState
	threshold           int
	timeout             time.Duration
	consecutiveFailures int
	openedAt            time.Time
	probing             bool

	onTransition func(from, to BreakerState)
}

func newBreaker(threshold int, timeout time.Duration, onTransition func(from, to BreakerState)) *breaker {
	return &breaker{
		state:        BreakerClosed,
		threshold:    threshold,
		timeout:      timeout,
		onTransition: onTransition,
	}
}

// State reports the effective state. An open breaker whose timeout has
// elapsed reads as half-open even before the next admission attempt.
func (b *breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerOpen && time.Since(b.openedAt) >= b.timeout {
		return BreakerHalfOpen
	}
	return b.state
}

// Failures returns the current consecutive failure count.
func (b *breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.consecutiveFailures
}

// allow reports whether a request may proceed. In half-open state only a
// single probe is admitted until its outcome is recorded.
func (b *breaker) allow() bool {
	b.mu.Lock()
	switch b.state {
	case BreakerClosed:
		b.mu.Unlock()
		return true
	case BreakerOpen:
		if time.Since(b.openedAt) < b.timeout {
			b.mu.Unlock()
			return false
		}
		b.state = BreakerHalfOpen
		b.probing = true
		b.mu.Unlock()
		b.notify(BreakerOpen, BreakerHalfOpen)
		return true
	case BreakerHalfOpen:
		if b.probing {
			b.mu.Unlock()
			return false
		}
		b.probing = true
		b.mu.Unlock()
		return true
	}
	b.mu.Unlock()
	return false
}

// recordSuccess zeroes the failure count and closes a half-open breaker.
func (b *breaker) recordSuccess() {
	b.mu.Lock()
	b.consecutiveFailures = 0
	from := b.state
	if from == BreakerHalfOpen {
		b.state = BreakerClosed
		b.probing = false
	}
	b.mu.Unlock()
	if from == BreakerHalfOpen {
		b.notify(from, BreakerClosed)
	}
}

// recordFailure advances the failure count. Reaching the threshold opens
// the breaker; a failed half-open probe reopens it with the timer
// restarted.
func (b *breaker) recordFailure() {
	b.mu.Lock()
	b.consecutiveFailures++
	from := b.state
	opened := false
	switch from {
	case BreakerClosed:
		if b.consecutiveFailures >= b.threshold {
			b.state = BreakerOpen
			b.openedAt = time.Now()
			opened = true
		}
	case BreakerHalfOpen:
		b.state = BreakerOpen
		b.openedAt = time.Now()
		b.probing = false
		opened = true
	}
	b.mu.Unlock()
	if opened {
		b.notify(from, BreakerOpen)
	}
}

// forceOpen opens the breaker immediately. A positive timeout overrides
// the configured one for this open period and onward.
func (b *breaker) forceOpen(timeout time.Duration) {
	b.mu.Lock()
	from := b.state
	b.state = BreakerOpen
	b.openedAt = time.Now()
	b.probing = false
	if timeout > 0 {
		b.timeout = timeout
	}
	b.mu.Unlock()
	if from != BreakerOpen {
		b.notify(from, BreakerOpen)
	}
}

// forceClose closes the breaker and zeroes the failure count.
func (b *breaker) forceClose() {
	b.mu.Lock()
	from := b.state
	b.state = BreakerClosed
	b.probing = false
	b.consecutiveFailures = 0
	b.mu.Unlock()
	if from != BreakerClosed {
		b.notify(from, BreakerClosed)
	}
}

// reset zeroes the failure count without changing state.
func (b *breaker) reset() {
	b.mu.Lock()
	b.consecutiveFailures = 0
	b.mu.Unlock()
}

func (b *breaker) notify(from, to BreakerState) {
	if b.onTransition != nil {
		b.onTransition(from, to)
	}
}
