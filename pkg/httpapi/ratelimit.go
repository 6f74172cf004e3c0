package httpapi

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Limit configures a fixed-window rate limit.
type Limit struct {
	// Max is the number of requests allowed per window. Zero or negative
	// disables limiting.
	Max int

	// Window is the window length. Defaults to one minute when zero or
	// negative.
	Window time.Duration
}

// window tracks one key's usage inside the current fixed window.
type window struct {
	start time.Time
	count int
}

// RateLimiter enforces a fixed-window request limit per client key.
//
// The key is the X-API-Key header when present, the remote host
// otherwise. Windows reset lazily on access; a background sweep prunes
// idle keys so the store does not grow with one-off clients.
type RateLimiter struct {
	limit Limit

	mu      sync.Mutex
	windows map[string]*window

	stop     chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter creates a limiter and starts its cleanup sweep. Call
// Dispose when done.
func NewRateLimiter(limit Limit) *RateLimiter {
	if limit.Window <= 0 {
		limit.Window = time.Minute
	}
	l := &RateLimiter{
		limit:   limit,
		windows: make(map[string]*window),
		stop:    make(chan struct{}),
	}
	go l.sweep()
	return l
}

// Allow records one request for key and reports whether it fits the
// current window, how many more would, and when the window resets. With
// limiting disabled (Max <= 0) every request is allowed and remaining
// is -1.
func (l *RateLimiter) Allow(key string) (ok bool, remaining int, reset time.Time) {
	if l.limit.Max <= 0 {
		return true, -1, time.Time{}
	}

	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.windows == nil {
		// Disposed; fail open rather than block traffic.
		return true, -1, time.Time{}
	}

	w := l.windows[key]
	if w == nil || now.Sub(w.start) >= l.limit.Window {
		w = &window{start: now}
		l.windows[key] = w
	}
	reset = w.start.Add(l.limit.Window)

	if w.count >= l.limit.Max {
		return false, 0, reset
	}
	w.count++
	return true, l.limit.Max - w.count, reset
}

// Check applies the limit to an HTTP request and reports whether it was
// limited. Rate limit headers are set either way; a limited request
// additionally gets a 429 response with Retry-After, so the caller only
// has to stop.
func (l *RateLimiter) Check(w http.ResponseWriter, r *http.Request) bool {
	ok, remaining, reset := l.Allow(ClientKey(r))
	if remaining >= 0 {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.limit.Max))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
	}
	if ok {
		return false
	}

	retryAfter := int(time.Until(reset).Round(time.Second).Seconds())
	if retryAfter < 1 {
		retryAfter = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	writeJSONError(w, http.StatusTooManyRequests, "rate_limit",
		fmt.Sprintf("rate limit exceeded, retry in %ds", retryAfter), true)
	return true
}

// Dispose stops the cleanup sweep and clears the store. Safe to call
// more than once; a disposed limiter allows everything.
func (l *RateLimiter) Dispose() {
	l.stopOnce.Do(func() {
		close(l.stop)
	})
	l.mu.Lock()
	l.windows = nil
	l.mu.Unlock()
}

// sweep prunes expired windows once per window length.
func (l *RateLimiter) sweep() {
	ticker := time.NewTicker(l.limit.Window)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			l.mu.Lock()
			for key, w := range l.windows {
				if now.Sub(w.start) >= l.limit.Window {
					delete(l.windows, key)
				}
			}
			l.mu.Unlock()
		case <-l.stop:
			return
		}
	}
}

// ClientKey derives the rate limit key for a request: the X-API-Key
// header when present, the remote host otherwise.
func ClientKey(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
