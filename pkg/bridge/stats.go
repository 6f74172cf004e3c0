package bridge

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"babel-hq/rosetta/pkg/router"
)

// Stats is a point-in-time snapshot of the bridge's request accounting.
// Percentiles are estimated over a bounded window of recent samples;
// the average covers the bridge's lifetime since the last reset.
type Stats struct {
	TotalRequests int64            `json:"totalRequests"`
	Successful    int64            `json:"successful"`
	Failed        int64            `json:"failed"`
	Streaming     int64            `json:"streaming"`
	AvgLatency    time.Duration    `json:"avgLatency"`
	P50           time.Duration    `json:"p50"`
	P95           time.Duration    `json:"p95"`
	P99           time.Duration    `json:"p99"`
	Backends      map[string]int64 `json:"backends"`
	Errors        map[string]int64 `json:"errors"`
	Since         time.Time        `json:"since"`
}

// collector tracks bridge-wide counters. Counts use atomics; the latency
// ring and breakdown maps are mutex-guarded.
type collector struct {
	total      atomic.Int64
	successful atomic.Int64
	failed     atomic.Int64
	streaming  atomic.Int64

	mu         sync.Mutex
	ring       []time.Duration
	next       int
	count      int
	latencySum time.Duration
	backends   map[string]int64
	errors     map[string]int64
	since      time.Time
}

func newCollector() *collector {
	return &collector{
		ring:     make([]time.Duration, router.DefaultLatencyWindow),
		backends: make(map[string]int64),
		errors:   make(map[string]int64),
		since:    time.Now(),
	}
}

// record accounts one finished call. An empty errCode means success.
func (c *collector) record(latency time.Duration, backend, errCode string, streaming bool) {
	c.total.Add(1)
	if errCode == "" {
		c.successful.Add(1)
	} else {
		c.failed.Add(1)
	}
	if streaming {
		c.streaming.Add(1)
	}

	c.mu.Lock()
	c.ring[c.next] = latency
	c.next = (c.next + 1) % len(c.ring)
	if c.count < len(c.ring) {
		c.count++
	}
	c.latencySum += latency
	if backend != "" {
		c.backends[backend]++
	}
	if errCode != "" {
		c.errors[errCode]++
	}
	c.mu.Unlock()
}

// snapshot returns a consistent view of the counters.
func (c *collector) snapshot() Stats {
	snap := Stats{
		TotalRequests: c.total.Load(),
		Successful:    c.successful.Load(),
		Failed:        c.failed.Load(),
		Streaming:     c.streaming.Load(),
	}

	c.mu.Lock()
	samples := make([]time.Duration, c.count)
	copy(samples, c.ring[:c.count])
	sum := c.latencySum
	snap.Backends = make(map[string]int64, len(c.backends))
	for k, v := range c.backends {
		snap.Backends[k] = v
	}
	snap.Errors = make(map[string]int64, len(c.errors))
	for k, v := range c.errors {
		snap.Errors[k] = v
	}
	snap.Since = c.since
	c.mu.Unlock()

	if snap.TotalRequests > 0 {
		snap.AvgLatency = time.Duration(int64(sum) / snap.TotalRequests)
	}
	if len(samples) > 0 {
		sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
		snap.P50 = percentile(samples, 50)
		snap.P95 = percentile(samples, 95)
		snap.P99 = percentile(samples, 99)
	}
	return snap
}

// reset snapshots the counters, then clears them.
func (c *collector) reset() Stats {
	snap := c.snapshot()

	c.total.Store(0)
	c.successful.Store(0)
	c.failed.Store(0)
	c.streaming.Store(0)

	c.mu.Lock()
	c.next = 0
	c.count = 0
	c.latencySum = 0
	c.backends = make(map[string]int64)
	c.errors = make(map[string]int64)
	c.since = time.Now()
	c.mu.Unlock()

	return snap
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
