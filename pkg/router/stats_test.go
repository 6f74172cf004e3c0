package router

import (
	"math"
	"testing"
	"time"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestPercentileInterpolation(t *testing.T) {
	ms := func(n int) time.Duration { return time.Duration(n) * time.Millisecond }
	ten := []time.Duration{
		ms(100), ms(200), ms(300), ms(400), ms(500),
		ms(600), ms(700), ms(800), ms(900), ms(1000),
	}

	tests := []struct {
		name   string
		sorted []time.Duration
		p      float64
		want   time.Duration
	}{
		{"empty", nil, 50, 0},
		{"single sample", []time.Duration{ms(42)}, 99, ms(42)},
		{"median of two", []time.Duration{ms(100), ms(200)}, 50, ms(150)},
		{"p50 interpolates", ten, 50, ms(550)},
		{"p95 interpolates", ten, 95, ms(955)},
		{"p99 interpolates", ten, 99, ms(991)},
		{"p0 is the minimum", ten, 0, ms(100)},
		{"p100 is the maximum", ten, 100, ms(1000)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := percentile(tt.sorted, tt.p)
			if diff := got - tt.want; diff < -time.Microsecond || diff > time.Microsecond {
				t.Errorf("percentile(%g) = %v, want %v", tt.p, got, tt.want)
			}
		})
	}
}

func TestBackendStatsSnapshot(t *testing.T) {
	s := newBackendStats(8)
	s.record(100*time.Millisecond, 0.002, true)
	s.record(300*time.Millisecond, 0.004, true)
	s.record(200*time.Millisecond, 0, false)

	snap := s.snapshot()
	if snap.Total != 3 || snap.Successful != 2 || snap.Failed != 1 {
		t.Fatalf("counts = %d/%d/%d, want 3/2/1", snap.Total, snap.Successful, snap.Failed)
	}
	if !approx(snap.SuccessRate, 2.0/3.0) {
		t.Errorf("SuccessRate = %v, want 2/3", snap.SuccessRate)
	}
	if snap.AvgLatency != 200*time.Millisecond {
		t.Errorf("AvgLatency = %v, want 200ms", snap.AvgLatency)
	}
	if snap.P50 != 200*time.Millisecond {
		t.Errorf("P50 = %v, want 200ms", snap.P50)
	}
	if !approx(snap.TotalCost, 0.006) {
		t.Errorf("TotalCost = %v, want 0.006", snap.TotalCost)
	}
	if !approx(snap.AvgCost, 0.002) {
		t.Errorf("AvgCost = %v, want 0.002", snap.AvgCost)
	}
}

func TestBackendStatsWindowBoundsPercentiles(t *testing.T) {
	s := newBackendStats(4)
	for i := 0; i < 4; i++ {
		s.record(time.Second, 0, true)
	}
	for i := 0; i < 4; i++ {
		s.record(10*time.Millisecond, 0, true)
	}

	snap := s.snapshot()
	if snap.Total != 8 {
		t.Fatalf("Total = %d, want 8", snap.Total)
	}
	// The slow samples fell out of the window, so the percentiles see
	// only the fast ones. The average still covers the whole lifetime.
	if snap.P99 != 10*time.Millisecond {
		t.Errorf("P99 = %v, want 10ms", snap.P99)
	}
	if snap.AvgLatency != 505*time.Millisecond {
		t.Errorf("AvgLatency = %v, want 505ms", snap.AvgLatency)
	}
}

func TestBackendStatsReset(t *testing.T) {
	s := newBackendStats(4)
	s.record(time.Second, 1.5, false)
	s.reset()

	snap := s.snapshot()
	if snap.Total != 0 || snap.Successful != 0 || snap.Failed != 0 {
		t.Errorf("counts after reset = %d/%d/%d, want zeros", snap.Total, snap.Successful, snap.Failed)
	}
	if snap.AvgLatency != 0 || snap.P50 != 0 || snap.TotalCost != 0 {
		t.Errorf("latency/cost after reset = %v/%v/%v, want zeros", snap.AvgLatency, snap.P50, snap.TotalCost)
	}
}

func TestBackendStatsDefaultWindow(t *testing.T) {
	s := newBackendStats(0)
	if len(s.ring) != DefaultLatencyWindow {
		t.Errorf("ring size = %d, want %d", len(s.ring), DefaultLatencyWindow)
	}
}
