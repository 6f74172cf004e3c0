// Package router dispatches IR chat requests across registered backends.
//
// A Router keeps a flat registry of named backends, each wrapped with a
// circuit breaker and a statistics tracker. Selection follows a fixed
// precedence: an explicit per-call override, exact model mapping, model
// patterns by priority, then the configured strategy over the healthy
// candidates. Failed calls fail over along a fallback chain with model
// translation applied for backends that do not serve the requested model.
//
// Router itself implements adapter.Backend, so routers can nest.
package router

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"babel-hq/rosetta/pkg/adapter"
	"babel-hq/rosetta/pkg/ir"
	"babel-hq/rosetta/pkg/warnings"
)

// FallbackMode selects how the router reacts to a failed backend call.
type FallbackMode string

const (
	// FallbackNone surfaces the first failure.
	FallbackNone FallbackMode = "none"

	// FallbackSequential tries the next backend in the chain.
	FallbackSequential FallbackMode = "sequential"

	// FallbackParallel fires all eligible backends at once and returns the
	// first success.
	FallbackParallel FallbackMode = "parallel"

	// FallbackCustom delegates the next choice to Config.CustomFallback.
	FallbackCustom FallbackMode = "custom"
)

// TranslationStrategy selects how models are substituted on failover.
type TranslationStrategy string

const (
	// TranslationHybrid tries the explicit maps first, then a family-wise
	// match against the target's supported models.
	TranslationHybrid TranslationStrategy = "hybrid"

	// TranslationStrict allows only explicitly mapped substitutions.
	TranslationStrict TranslationStrategy = "strict"
)

// ModelPattern routes models matching a regular expression to a backend.
type ModelPattern struct {
	// Pattern is the regular expression applied to the requested model.
	Pattern string `yaml:"pattern" json:"pattern"`

	// Backend is the registry name matching requests route to.
	Backend string `yaml:"backend" json:"backend"`

	// Priority orders patterns; higher priorities are consulted first.
	// Ties keep declaration order.
	Priority int `yaml:"priority" json:"priority"`

	re *regexp.Regexp
}

// TranslationConfig controls model substitution on failover.
type TranslationConfig struct {
	// Strategy is hybrid or strict. Empty means hybrid.
	Strategy TranslationStrategy `yaml:"strategy" json:"strategy"`

	// Global maps model names to substitutes for any backend.
	Global map[string]string `yaml:"global" json:"global"`

	// PerBackend maps backend name to its own substitution table,
	// consulted before Global.
	PerBackend map[string]map[string]string `yaml:"per_backend" json:"perBackend"`

	// WarnOnDefault also records a warning when the substitution came from
	// the family-wise default rather than an explicit map. Explicitly
	// mapped substitutions always warn.
	WarnOnDefault bool `yaml:"warn_on_default" json:"warnOnDefault"`
}

// Config configures a Router.
type Config struct {
	// Name identifies the router in provenance when routers nest.
	// Empty means "router".
	Name string

	// Strategy selects among eligible candidates when no explicit or
	// model-based rule applies. Nil falls back to DefaultBackend, then to
	// registration order.
	Strategy Strategy

	// Fallback selects the failover behavior. Empty means sequential.
	Fallback FallbackMode

	// FallbackChain overrides the sequential failover order. Empty uses
	// registration order.
	FallbackChain []string

	// CustomFallback picks the next backend for FallbackCustom, given the
	// failed backend, its error, the names already attempted, and the
	// eligible remainder. Returning an empty name stops the chain.
	CustomFallback func(req *ir.ChatRequest, failed string, err error, attempted, available []string) string

	// DefaultBackend serves requests when no strategy is configured.
	DefaultBackend string

	// ModelMapping routes exact model names to backend names.
	ModelMapping map[string]string

	// ModelPatterns routes models by regular expression, consulted after
	// ModelMapping in priority order.
	ModelPatterns []ModelPattern

	// Translation controls model substitution on failover.
	Translation TranslationConfig

	// BreakerThreshold is the consecutive failure count that opens a
	// backend's breaker. Default 5.
	BreakerThreshold int

	// BreakerTimeout is how long an open breaker rejects requests before
	// admitting a probe. Default 30s.
	BreakerTimeout time.Duration

	// HealthCheckInterval enables the background health loop when
	// positive.
	HealthCheckInterval time.Duration

	// LatencyWindow bounds the per-backend latency sample ring.
	// Default 256.
	LatencyWindow int

	// OnEvent observes routing events synchronously. It must return
	// quickly; panics are contained.
	OnEvent func(Event)
}

// Options are per-call routing overrides.
type Options struct {
	// Backend forces a specific backend by name, bypassing model rules and
	// the strategy.
	Backend string
}

// Registration describes a backend to add to the router.
type Registration struct {
	// Name is the registry key. Empty uses the backend's own name.
	Name string

	// Backend executes requests routed here.
	Backend adapter.Backend

	// Weight biases weighted strategies. Zero means 1.
	Weight int

	// CostPerMTok is the blended USD cost per million tokens, read by
	// cost-aware strategies and cost accounting.
	CostPerMTok float64

	// Metadata carries free-form backend annotations.
	Metadata map[string]string
}

// BackendInfo is a point-in-time snapshot of one registered backend.
type BackendInfo struct {
	Name                string            `json:"name"`
	Weight              int               `json:"weight"`
	CostPerMTok         float64           `json:"costPerMTok"`
	Metadata            map[string]string `json:"metadata,omitempty"`
	Healthy             bool              `json:"healthy"`
	LastHealthCheck     time.Time         `json:"lastHealthCheck"`
	BreakerState        BreakerState      `json:"breakerState"`
	ConsecutiveFailures int               `json:"consecutiveFailures"`
	Stats               StatsSnapshot     `json:"stats"`
}

type registeredBackend struct {
	name        string
	backend     adapter.Backend
	weight      int
	costPerMTok float64
	metadata    map[string]string
	order       int

	healthy        atomic.Bool
	lastCheckNanos atomic.Int64
	breaker        *breaker
	stats          *backendStats
}

// Router dispatches IR requests across registered backends with circuit
// breaking, fallback, and statistics.
type Router struct {
	cfg    Config
	logger *slog.Logger

	mu        sync.RWMutex
	backends  map[string]*registeredBackend
	order     []string
	nextOrder int

	obsMu     sync.RWMutex
	observers map[int64]func(Event)
	nextObs   int64

	global globalStats

	healthStop chan struct{}
	healthDone chan struct{}
	closeOnce  sync.Once
	closeErr   error
}

// New creates a router. Model patterns are compiled eagerly; a malformed
// pattern fails construction.
func New(cfg Config) (*Router, error) {
	if cfg.Name == "" {
		cfg.Name = "router"
	}
	if cfg.Fallback == "" {
		cfg.Fallback = FallbackSequential
	}
	if cfg.Fallback == FallbackCustom && cfg.CustomFallback == nil {
		return nil, fmt.Errorf("custom fallback requires a CustomFallback function")
	}
	if cfg.BreakerThreshold <= 0 {
		cfg.BreakerThreshold = 5
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}
	if cfg.LatencyWindow <= 0 {
		cfg.LatencyWindow = DefaultLatencyWindow
	}
	if cfg.Translation.Strategy == "" {
		cfg.Translation.Strategy = TranslationHybrid
	}

	for i := range cfg.ModelPatterns {
		re, err := regexp.Compile(cfg.ModelPatterns[i].Pattern)
		if err != nil {
			return nil, fmt.Errorf("failed to compile model pattern %q: %w", cfg.ModelPatterns[i].Pattern, err)
		}
		cfg.ModelPatterns[i].re = re
	}
	sort.SliceStable(cfg.ModelPatterns, func(i, j int) bool {
		return cfg.ModelPatterns[i].Priority > cfg.ModelPatterns[j].Priority
	})

	r := &Router{
		cfg:      cfg,
		logger:   slog.Default().With("component", "router"),
		backends: make(map[string]*registeredBackend),
	}
	r.global.since = time.Now()

	if cfg.HealthCheckInterval > 0 {
		r.healthStop = make(chan struct{})
		r.healthDone = make(chan struct{})
		go r.healthLoop(cfg.HealthCheckInterval)
	}
	return r, nil
}

// Register adds a backend to the registry. Names must be unique.
func (r *Router) Register(reg Registration) error {
	if reg.Backend == nil {
		return fmt.Errorf("backend cannot be nil")
	}
	if reg.Name == "" {
		reg.Name = reg.Backend.Name()
	}
	if reg.Name == "" {
		return fmt.Errorf("backend name cannot be empty")
	}
	if reg.Weight <= 0 {
		reg.Weight = 1
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.backends[reg.Name]; exists {
		return fmt.Errorf("backend %q is already registered", reg.Name)
	}

	name := reg.Name
	rb := &registeredBackend{
		name:        name,
		backend:     reg.Backend,
		weight:      reg.Weight,
		costPerMTok: reg.CostPerMTok,
		metadata:    reg.Metadata,
		order:       r.nextOrder,
		breaker:     newBreaker(r.cfg.BreakerThreshold, r.cfg.BreakerTimeout, r.breakerObserver(name)),
		stats:       newBackendStats(r.cfg.LatencyWindow),
	}
	rb.healthy.Store(true)
	r.nextOrder++
	r.backends[name] = rb
	r.order = append(r.order, name)

	r.logger.Info("backend registered", "backend", name, "weight", rb.weight)
	return nil
}

// Unregister removes a backend from the registry. The backend is not
// closed; the caller keeps ownership.
func (r *Router) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.backends[name]; !ok {
		return false
	}
	delete(r.backends, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.logger.Info("backend unregistered", "backend", name)
	return true
}

// Backends returns snapshots of every registered backend in registration
// order.
func (r *Router) Backends() []BackendInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]BackendInfo, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.backends[name].info())
	}
	return out
}

// BackendInfo returns the snapshot of one backend.
func (r *Router) BackendInfo(name string) (BackendInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rb, ok := r.backends[name]
	if !ok {
		return BackendInfo{}, false
	}
	return rb.info(), true
}

func (rb *registeredBackend) info() BackendInfo {
	info := BackendInfo{
		Name:                rb.name,
		Weight:              rb.weight,
		CostPerMTok:         rb.costPerMTok,
		Metadata:            rb.metadata,
		Healthy:             rb.healthy.Load(),
		BreakerState:        rb.breaker.State(),
		ConsecutiveFailures: rb.breaker.Failures(),
		Stats:               rb.stats.snapshot(),
	}
	if nanos := rb.lastCheckNanos.Load(); nanos > 0 {
		info.LastHealthCheck = time.Unix(0, nanos)
	}
	return info
}

func (r *Router) lookup(name string) (*registeredBackend, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rb, ok := r.backends[name]
	return rb, ok
}

// names returns the registered backend names in registration order.
func (r *Router) names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// eligible reports whether rb may receive traffic right now.
func eligible(rb *registeredBackend) bool {
	return rb.healthy.Load() && rb.breaker.State() != BreakerOpen
}

// candidates returns the selection view of every eligible backend in
// registration order, paired with the registry entries at the same index.
func (r *Router) candidates() ([]*Candidate, []*registeredBackend) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var cands []*Candidate
	var regs []*registeredBackend
	for _, name := range r.order {
		rb := r.backends[name]
		if !eligible(rb) {
			continue
		}
		cands = append(cands, &Candidate{
			Name:         rb.name,
			Capabilities: rb.backend.Capabilities(),
			Stats:        rb.stats.snapshot(),
			Weight:       rb.weight,
			CostPerMTok:  rb.costPerMTok,
			Order:        rb.order,
		})
		regs = append(regs, rb)
	}
	return cands, regs
}

func (r *Router) breakerObserver(name string) func(from, to BreakerState) {
	return func(from, to BreakerState) {
		var et EventType
		switch to {
		case BreakerOpen:
			et = EventBreakerOpen
			r.logger.Warn("circuit breaker opened", "backend", name, "from", string(from))
		case BreakerHalfOpen:
			et = EventBreakerHalfOpen
			r.logger.Info("circuit breaker half-open", "backend", name)
		case BreakerClosed:
			et = EventBreakerClose
			r.logger.Info("circuit breaker closed", "backend", name)
		default:
			return
		}
		r.emit(Event{Type: et, Backend: name, Details: map[string]any{
			"from": string(from),
			"to":   string(to),
		}})
	}
}

// OpenCircuitBreaker opens the named backend's breaker. A positive timeout
// overrides the configured open period.
func (r *Router) OpenCircuitBreaker(name string, timeout time.Duration) error {
	rb, ok := r.lookup(name)
	if !ok {
		return fmt.Errorf("backend %q is not registered", name)
	}
	rb.breaker.forceOpen(timeout)
	return nil
}

// CloseCircuitBreaker closes the named backend's breaker and zeroes its
// failure count.
func (r *Router) CloseCircuitBreaker(name string) error {
	rb, ok := r.lookup(name)
	if !ok {
		return fmt.Errorf("backend %q is not registered", name)
	}
	rb.breaker.forceClose()
	return nil
}

// ResetCircuitBreaker zeroes the failure counters of one breaker, or of
// every breaker when name is empty. State is unchanged.
func (r *Router) ResetCircuitBreaker(name string) error {
	if name == "" {
		r.mu.RLock()
		defer r.mu.RUnlock()
		for _, rb := range r.backends {
			rb.breaker.reset()
		}
		return nil
	}
	rb, ok := r.lookup(name)
	if !ok {
		return fmt.Errorf("backend %q is not registered", name)
	}
	rb.breaker.reset()
	return nil
}

// IsCircuitBreakerOpen reports whether the named backend's breaker
// currently rejects requests.
func (r *Router) IsCircuitBreakerOpen(name string) bool {
	rb, ok := r.lookup(name)
	if !ok {
		return false
	}
	return rb.breaker.State() == BreakerOpen
}

// Stats returns the router-wide statistics snapshot.
func (r *Router) Stats() Stats {
	snap := Stats{
		TotalRequests:    r.global.totalRequests.Load(),
		Successful:       r.global.successful.Load(),
		Failed:           r.global.failed.Load(),
		TotalFallbacks:   r.global.totalFallbacks.Load(),
		ParallelRequests: r.global.parallelRequests.Load(),
		Since:            r.global.sinceTime(),
		Backends:         make(map[string]StatsSnapshot),
	}
	r.mu.RLock()
	for name, rb := range r.backends {
		snap.Backends[name] = rb.stats.snapshot()
	}
	r.mu.RUnlock()
	return snap
}

// ResetStats returns the current snapshot and clears every counter.
func (r *Router) ResetStats() Stats {
	snap := r.Stats()
	r.global.reset()
	r.mu.RLock()
	for _, rb := range r.backends {
		rb.stats.reset()
	}
	r.mu.RUnlock()
	return snap
}

// Name implements adapter.Backend.
func (r *Router) Name() string {
	return r.cfg.Name
}

// Capabilities implements adapter.Backend by merging the registered
// backends: boolean capabilities that any backend supports, the largest
// limits, and the union of supported models. A single unrestricted
// backend makes the router unrestricted.
func (r *Router) Capabilities() adapter.Capabilities {
	r.mu.RLock()
	defer r.mu.RUnlock()

	merged := adapter.Capabilities{}
	restricted := true
	modelSet := make(map[string]struct{})
	var models []string

	for _, name := range r.order {
		caps := r.backends[name].backend.Capabilities()
		merged.Streaming = merged.Streaming || caps.Streaming
		merged.MultiModal = merged.MultiModal || caps.MultiModal
		merged.Tools = merged.Tools || caps.Tools
		merged.JSON = merged.JSON || caps.JSON
		merged.Seed = merged.Seed || caps.Seed
		merged.Temperature = merged.Temperature || caps.Temperature
		merged.TopP = merged.TopP || caps.TopP
		merged.TopK = merged.TopK || caps.TopK
		merged.FrequencyPenalty = merged.FrequencyPenalty || caps.FrequencyPenalty
		merged.PresencePenalty = merged.PresencePenalty || caps.PresencePenalty
		merged.StopSequences = merged.StopSequences || caps.StopSequences
		if caps.MaxContextTokens > merged.MaxContextTokens {
			merged.MaxContextTokens = caps.MaxContextTokens
		}
		if caps.MaxStopSequences > merged.MaxStopSequences {
			merged.MaxStopSequences = caps.MaxStopSequences
		}
		if len(caps.SupportedModels) == 0 {
			restricted = false
		}
		for _, m := range caps.SupportedModels {
			if _, ok := modelSet[m]; !ok {
				modelSet[m] = struct{}{}
				models = append(models, m)
			}
		}
	}
	if restricted {
		merged.SupportedModels = models
	}
	return merged
}

// Close stops the health loop and closes every registered backend. Safe to
// call more than once.
func (r *Router) Close() error {
	r.closeOnce.Do(func() {
		if r.healthStop != nil {
			close(r.healthStop)
			<-r.healthDone
		}
		r.mu.Lock()
		regs := make([]*registeredBackend, 0, len(r.order))
		for _, name := range r.order {
			regs = append(regs, r.backends[name])
		}
		r.mu.Unlock()
		for _, rb := range regs {
			if err := rb.backend.Close(); err != nil && r.closeErr == nil {
				r.closeErr = fmt.Errorf("failed to close backend %q: %w", rb.name, err)
			}
		}
		r.logger.Info("router closed", "backends", len(regs))
	})
	return r.closeErr
}

// substitute clones req with the substituted model and, when warn is set,
// records the substitution on the clone's metadata.
func (r *Router) substitute(req *ir.ChatRequest, from, to, source string, warn bool) *ir.ChatRequest {
	out := req.Clone()
	if out.Parameters == nil {
		out.Parameters = &ir.Parameters{}
	}
	out.Parameters.Model = to
	if warn {
		out.Metadata.AddWarnings(warnings.Warning{
			Category:         warnings.CategoryModelSubstituted,
			Severity:         warnings.SeverityWarning,
			Field:            "parameters.model",
			Message:          fmt.Sprintf("model %q substituted with %q on failover", from, to),
			OriginalValue:    from,
			TransformedValue: to,
			Source:           "router.translation",
			Details:          map[string]any{"mapping": source},
		})
	}
	return out
}
