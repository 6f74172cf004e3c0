package adapter

import (
	"sync"
	"time"
)

// modelEntry is one cached model listing with its bookkeeping.
type modelEntry struct {
	result         *ListModelsResult
	expiresAt      time.Time
	createdAt      time.Time
	lastAccessedAt time.Time
	accessCount    int64
}

// ModelCache is a thread-safe TTL cache of model listings keyed by backend
// name, with LRU eviction at capacity. Expired entries are dropped lazily
// on access and size queries, and swept periodically by a background
// goroutine.
type ModelCache struct {
	entries map[string]*modelEntry

	// ttl is the time-to-live for entries (0 = no expiry).
	ttl time.Duration

	// maxEntries caps the cache size (0 = unlimited).
	maxEntries int

	mu sync.RWMutex

	stopCh chan struct{}

	// sweepInterval is how often the background sweep runs.
	sweepInterval time.Duration
}

// NewModelCache creates a model cache. A ttl of 0 disables expiry; a
// maxEntries of 0 means unlimited size. The sweep interval defaults to
// ttl/2 with a 10 second floor.
func NewModelCache(ttl time.Duration, maxEntries int) *ModelCache {
	sweepInterval := time.Minute
	if ttl > 0 {
		sweepInterval = ttl / 2
		if sweepInterval < 10*time.Second {
			sweepInterval = 10 * time.Second
		}
	}

	cache := &ModelCache{
		entries:       make(map[string]*modelEntry),
		ttl:           ttl,
		maxEntries:    maxEntries,
		stopCh:        make(chan struct{}),
		sweepInterval: sweepInterval,
	}

	if ttl > 0 {
		go cache.sweepLoop()
	}

	return cache
}

// Get retrieves the cached listing for a backend. The returned result is a
// copy; mutating it does not affect the cache. Expired entries are removed
// on the spot.
func (c *ModelCache) Get(backend string) (*ListModelsResult, bool) {
	c.mu.RLock()
	entry, ok := c.entries[backend]
	if !ok {
		c.mu.RUnlock()
		return nil, false
	}
	expired := c.ttl > 0 && time.Now().After(entry.expiresAt)
	var result *ListModelsResult
	if !expired {
		result = entry.result.Clone()
	}
	c.mu.RUnlock()

	c.mu.Lock()
	if entry, ok := c.entries[backend]; ok {
		if expired {
			delete(c.entries, backend)
		} else {
			entry.lastAccessedAt = time.Now()
			entry.accessCount++
		}
	}
	c.mu.Unlock()

	if expired {
		return nil, false
	}
	return result, true
}

// Set stores a listing for a backend, evicting the least recently used
// entry when the cache is at capacity.
func (c *ModelCache) Set(backend string, result *ListModelsResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		if _, exists := c.entries[backend]; !exists {
			c.evictLRU()
		}
	}

	now := time.Now()
	expiresAt := time.Time{}
	if c.ttl > 0 {
		expiresAt = now.Add(c.ttl)
	}

	c.entries[backend] = &modelEntry{
		result:         result.Clone(),
		expiresAt:      expiresAt,
		createdAt:      now,
		lastAccessedAt: now,
		accessCount:    1,
	}
}

// Invalidate removes one backend's listing.
func (c *ModelCache) Invalidate(backend string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, backend)
}

// Clear removes every listing.
func (c *ModelCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*modelEntry)
}

// Len returns the number of live entries, dropping any that have expired.
func (c *ModelCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeExpiredLocked()
	return len(c.entries)
}

// Close stops the background sweep goroutine. The cache must not be used
// after Close.
func (c *ModelCache) Close() {
	close(c.stopCh)
}

// evictLRU removes the least recently accessed entry. Caller holds the
// write lock.
func (c *ModelCache) evictLRU() {
	var oldestKey string
	var oldestTime time.Time
	for key, entry := range c.entries {
		if oldestKey == "" || entry.lastAccessedAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.lastAccessedAt
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

func (c *ModelCache) sweepLoop() {
	ticker := time.NewTicker(c.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			c.removeExpiredLocked()
			c.mu.Unlock()
		case <-c.stopCh:
			return
		}
	}
}

// removeExpiredLocked drops expired entries. Caller holds the write lock.
func (c *ModelCache) removeExpiredLocked() {
	if c.ttl == 0 {
		return
	}
	now := time.Now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

var (
	globalCacheOnce sync.Once
	globalCache     *ModelCache
)

// GlobalModelCache returns the process-wide shared model cache with a one
// hour TTL. Holders that need isolation construct their own cache instead.
func GlobalModelCache() *ModelCache {
	globalCacheOnce.Do(func() {
		globalCache = NewModelCache(time.Hour, 256)
	})
	return globalCache
}
