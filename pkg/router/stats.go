package router

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultLatencyWindow bounds the per-backend latency sample ring used for
// percentile estimation.
const DefaultLatencyWindow = 256

// StatsSnapshot is a point-in-time view of one backend's statistics.
// Percentiles are estimated over a bounded window of recent samples;
// averages cover the backend's whole lifetime since the last reset.
type StatsSnapshot struct {
	Total       int64         `json:"total"`
	Successful  int64         `json:"successful"`
	Failed      int64         `json:"failed"`
	SuccessRate float64       `json:"successRate"`
	AvgLatency  time.Duration `json:"avgLatency"`
	P50         time.Duration `json:"p50"`
	P95         time.Duration `json:"p95"`
	P99         time.Duration `json:"p99"`
	TotalCost   float64       `json:"totalCost"`
	AvgCost     float64       `json:"avgCost"`
}

// Stats is the router-wide statistics snapshot.
type Stats struct {
	TotalRequests    int64                    `json:"totalRequests"`
	Successful       int64                    `json:"successful"`
	Failed           int64                    `json:"failed"`
	TotalFallbacks   int64                    `json:"totalFallbacks"`
	ParallelRequests int64                    `json:"parallelRequests"`
	Since            time.Time                `json:"since"`
	Backends         map[string]StatsSnapshot `json:"backends"`
}

// backendStats tracks one backend's counters. Counts use atomics; the
// latency ring and cost total are mutex-guarded.
type backendStats struct {
	total      atomic.Int64
	successful atomic.Int64
	failed     atomic.Int64

	mu         sync.Mutex
	ring       []time.Duration
	next       int
	count      int
	latencySum time.Duration
	totalCost  float64
}

func newBackendStats(window int) *backendStats {
	if window <= 0 {
		window = DefaultLatencyWindow
	}
	return &backendStats{ring: make([]time.Duration, window)}
}

// record accounts one finished call.
func (s *backendStats) record(latency time.Duration, cost float64, success bool) {
	s.total.Add(1)
	if success {
		s.successful.Add(1)
	} else {
		s.failed.Add(1)
	}

	s.mu.Lock()
	s.ring[s.next] = latency
	s.next = (s.next + 1) % len(s.ring)
	if s.count < len(s.ring) {
		s.count++
	}
	s.latencySum += latency
	s.totalCost += cost
	s.mu.Unlock()
}

// snapshot returns a consistent view of the counters.
func (s *backendStats) snapshot() StatsSnapshot {
	snap := StatsSnapshot{
		Total:      s.total.Load(),
		Successful: s.successful.Load(),
		Failed:     s.failed.Load(),
	}
	if snap.Total > 0 {
		snap.SuccessRate = float64(snap.Successful) / float64(snap.Total)
	}

	s.mu.Lock()
	samples := make([]time.Duration, s.count)
	copy(samples, s.ring[:s.count])
	sum := s.latencySum
	cost := s.totalCost
	s.mu.Unlock()

	if snap.Total > 0 {
		snap.AvgLatency = time.Duration(int64(sum) / snap.Total)
		snap.TotalCost = cost
		snap.AvgCost = cost / float64(snap.Total)
	}
	if len(samples) > 0 {
		sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
		snap.P50 = percentile(samples, 50)
		snap.P95 = percentile(samples, 95)
		snap.P99 = percentile(samples, 99)
	}
	return snap
}

func (s *backendStats) reset() {
	s.total.Store(0)
	s.successful.Store(0)
	s.failed.Store(0)

	s.mu.Lock()
	s.next = 0
	s.count = 0
	s.latencySum = 0
	s.totalCost = 0
	s.mu.Unlock()
}

// percentile interpolates linearly between the two nearest sorted samples.
func percentile(sorted []time.Duration, p float64) time.Duration {
	switch len(sorted) {
	case 0:
		return 0
	case 1:
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + time.Duration(frac*float64(sorted[hi]-sorted[lo]))
}

// globalStats tracks router-wide counters.
type globalStats struct {
	totalRequests    atomic.Int64
	successful       atomic.Int64
	failed           atomic.Int64
	totalFallbacks   atomic.Int64
	parallelRequests atomic.Int64

	mu    sync.RWMutex
	since time.Time
}

func (g *globalStats) sinceTime() time.Time {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.since
}

func (g *globalStats) reset() {
	g.totalRequests.Store(0)
	g.successful.Store(0)
	g.failed.Store(0)
	g.totalFallbacks.Store(0)
	g.parallelRequests.Store(0)

	g.mu.Lock()
	g.since = time.Now()
	g.mu.Unlock()
}
