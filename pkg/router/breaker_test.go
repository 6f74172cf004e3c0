package router

import (
	"reflect"
	"testing"
	"time"
)

func TestBreakerOpensAtThreshold(t *testing.T) {
	b := newBreaker(3, time.Minute, nil)

	for i := 0; i < 2; i++ {
		b.recordFailure()
		if got := b.State(); got != BreakerClosed {
			t.Fatalf("after %d failures state = %s, want closed", i+1, got)
		}
		if !b.allow() {
			t.Fatalf("closed breaker refused a request after %d failures", i+1)
		}
	}

	b.recordFailure()
	if got := b.State(); got != BreakerOpen {
		t.Fatalf("after threshold failures state = %s, want open", got)
	}
	if b.allow() {
		t.Error("open breaker admitted a request before the timeout")
	}
	if got := b.Failures(); got != 3 {
		t.Errorf("Failures() = %d, want 3", got)
	}
}

func TestBreakerSuccessZeroesFailureCount(t *testing.T) {
	b := newBreaker(3, time.Minute, nil)
	b.recordFailure()
	b.recordFailure()
	b.recordSuccess()

	if got := b.Failures(); got != 0 {
		t.Fatalf("Failures() after success = %d, want 0", got)
	}

	// The count restarted, so two more failures stay under the threshold.
	b.recordFailure()
	b.recordFailure()
	if got := b.State(); got != BreakerClosed {
		t.Errorf("state = %s, want closed", got)
	}
}

func TestBreakerHalfOpenSingleProbe(t *testing.T) {
	b := newBreaker(1, 10*time.Millisecond, nil)
	b.recordFailure()

	if b.allow() {
		t.Fatal("open breaker admitted a request")
	}
	time.Sleep(20 * time.Millisecond)

	if got := b.State(); got != BreakerHalfOpen {
		t.Fatalf("state after timeout = %s, want half-open", got)
	}
	if !b.allow() {
		t.Fatal("half-open breaker refused the probe")
	}
	if b.allow() {
		t.Fatal("second request admitted while the probe is in flight")
	}

	b.recordSuccess()
	if got := b.State(); got != BreakerClosed {
		t.Fatalf("state after probe success = %s, want closed", got)
	}
	if !b.allow() {
		t.Error("closed breaker refused a request")
	}
}

func TestBreakerProbeFailureReopens(t *testing.T) {
	b := newBreaker(1, 15*time.Millisecond, nil)
	b.recordFailure()
	time.Sleep(25 * time.Millisecond)

	if !b.allow() {
		t.Fatal("half-open breaker refused the probe")
	}
	b.recordFailure()

	if got := b.State(); got != BreakerOpen {
		t.Fatalf("state after probe failure = %s, want open", got)
	}
	// The timer restarted with the failed probe.
	if b.allow() {
		t.Error("reopened breaker admitted a request before the new timeout")
	}
}

func TestBreakerStateReadKeepsProbeSlot(t *testing.T) {
	b := newBreaker(1, 5*time.Millisecond, nil)
	b.recordFailure()
	time.Sleep(10 * time.Millisecond)

	for i := 0; i < 3; i++ {
		if got := b.State(); got != BreakerHalfOpen {
			t.Fatalf("State() read %d = %s, want half-open", i, got)
		}
	}
	if !b.allow() {
		t.Error("State() reads consumed the probe slot")
	}
}

func TestBreakerForceOpenOverridesTimeout(t *testing.T) {
	b := newBreaker(5, time.Minute, nil)
	b.forceOpen(15 * time.Millisecond)

	if b.allow() {
		t.Fatal("forced-open breaker admitted a request")
	}
	time.Sleep(25 * time.Millisecond)
	if got := b.State(); got != BreakerHalfOpen {
		t.Errorf("state after forced timeout = %s, want half-open", got)
	}
}

func TestBreakerForceClose(t *testing.T) {
	b := newBreaker(1, time.Minute, nil)
	b.recordFailure()
	b.forceClose()

	if got := b.State(); got != BreakerClosed {
		t.Fatalf("state after forceClose = %s, want closed", got)
	}
	if got := b.Failures(); got != 0 {
		t.Errorf("Failures() after forceClose = %d, want 0", got)
	}
	if !b.allow() {
		t.Error("force-closed breaker refused a request")
	}
}

func TestBreakerResetKeepsState(t *testing.T) {
	b := newBreaker(2, time.Minute, nil)
	b.recordFailure()
	b.recordFailure()

	b.reset()
	if got := b.Failures(); got != 0 {
		t.Fatalf("Failures() after reset = %d, want 0", got)
	}
	if got := b.State(); got != BreakerOpen {
		t.Fatalf("reset changed state to %s, want open", got)
	}
	if b.allow() {
		t.Error("reset must not close an open breaker")
	}
}

func TestBreakerTransitionsObserved(t *testing.T) {
	var transitions []string
	b := newBreaker(1, 10*time.Millisecond, func(from, to BreakerState) {
		transitions = append(transitions, string(from)+">"+string(to))
	})

	b.recordFailure()
	time.Sleep(20 * time.Millisecond)
	if !b.allow() {
		t.Fatal("half-open breaker refused the probe")
	}
	b.recordSuccess()

	want := []string{"closed>open", "open>half-open", "half-open>closed"}
	if !reflect.DeepEqual(transitions, want) {
		t.Errorf("transitions = %v, want %v", transitions, want)
	}
}
