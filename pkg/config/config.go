package config

import "time"

// Config is the root configuration for a fabric deployment: the HTTP
// surface, the backend fleet, routing policy, resilience knobs, and
// observability.
type Config struct {
	// Server configures the HTTP surface.
	Server ServerConfig `yaml:"server"`

	// Backends lists the backend fleet. Order matters: it is the
	// registration order, which seeds fallback chains and round-robin.
	Backends []BackendConfig `yaml:"backends"`

	// Routing configures backend selection and failover.
	Routing RoutingConfig `yaml:"routing"`

	// Breaker configures the per-backend circuit breakers.
	Breaker BreakerConfig `yaml:"breaker"`

	// Health configures periodic backend health probing.
	Health HealthConfig `yaml:"health"`

	// Middleware toggles the built-in middleware layers.
	Middleware MiddlewareConfig `yaml:"middleware"`

	// ModelStore configures on-disk persistence of model listings.
	ModelStore ModelStoreConfig `yaml:"model_store"`

	// Telemetry configures prometheus metrics.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Logging configures the process logger.
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	// ListenAddress is the host:port the server binds.
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout bounds reading the request including the body.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout bounds response writes. Zero means no timeout, which
	// streaming responses need; set it only on deployments that never
	// stream.
	// Default: 0
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout bounds keep-alive waits between requests.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown before in-flight requests
	// are abandoned.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// RateLimit applies a fixed-window request limit per client key.
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// Auth configures credential validation. All empty means no
	// authentication.
	Auth AuthConfig `yaml:"auth"`
}

// RateLimitConfig configures the fixed-window rate limiter.
type RateLimitConfig struct {
	// Max is the number of requests allowed per window. Zero disables
	// rate limiting.
	// Default: 0
	Max int `yaml:"max"`

	// Window is the window length.
	// Default: 1m
	Window time.Duration `yaml:"window"`
}

// AuthConfig configures request authentication. Bearer tokens and API
// keys may both be set; a request passing either is accepted.
type AuthConfig struct {
	// BearerTokens lists tokens accepted in the Authorization header.
	BearerTokens []string `yaml:"bearer_tokens"`

	// APIKeys maps client labels to keys accepted in the X-API-Key
	// header. The label only appears in debug logs.
	APIKeys map[string]string `yaml:"api_keys"`
}

// BackendConfig configures one backend in the fleet.
type BackendConfig struct {
	// Name identifies the backend. Required, unique within the fleet.
	Name string `yaml:"name"`

	// Type selects the backend implementation. Only "static" ships in
	// core; provider-specific adapters register their own types.
	// Default: "static"
	Type string `yaml:"type"`

	// Weight biases weighted selection strategies.
	// Default: 1
	Weight int `yaml:"weight"`

	// Models lists the model identifiers this backend serves.
	Models []string `yaml:"models"`

	// Response overrides the static backend's reply text.
	Response string `yaml:"response"`

	// Latency delays every call. Simulation knob for the static type.
	Latency time.Duration `yaml:"latency"`

	// ChunkLatency delays each streamed chunk. Static type only.
	ChunkLatency time.Duration `yaml:"chunk_latency"`

	// FailFirst makes the first N calls fail with a retryable error
	// before the backend starts succeeding. Static type only.
	FailFirst int `yaml:"fail_first"`

	// CostPerMTok is the blended USD cost per million tokens, read by
	// cost-aware routing. Defaults to the mean of the input and output
	// costs when those are set.
	CostPerMTok float64 `yaml:"cost_per_mtok"`

	// InputCostPerMTok and OutputCostPerMTok drive per-request cost
	// estimation. Default to CostPerMTok when unset.
	InputCostPerMTok  float64 `yaml:"input_cost_per_mtok"`
	OutputCostPerMTok float64 `yaml:"output_cost_per_mtok"`
}

// RoutingConfig configures backend selection and failover.
type RoutingConfig struct {
	// Strategy selects among eligible backends. One of "", "round_robin",
	// "random", "latency", "cost", "capability", "explicit". Empty falls
	// back to DefaultBackend, then registration order.
	Strategy string `yaml:"strategy"`

	// CapabilityPreset tunes the capability strategy. One of "balanced",
	// "cheapest", "fastest", "best". Only read when Strategy is
	// "capability".
	// Default: "balanced"
	CapabilityPreset string `yaml:"capability_preset"`

	// DefaultBackend serves requests when no strategy or mapping applies.
	DefaultBackend string `yaml:"default_backend"`

	// Fallback selects the failover behavior. One of "none",
	// "sequential", "parallel".
	// Default: "sequential"
	Fallback string `yaml:"fallback"`

	// FallbackChain overrides the sequential failover order.
	FallbackChain []string `yaml:"fallback_chain"`

	// ModelMapping routes exact model names to backend names.
	ModelMapping map[string]string `yaml:"model_mapping"`

	// ModelPatterns routes models by regular expression, consulted after
	// ModelMapping.
	ModelPatterns []ModelPatternConfig `yaml:"model_patterns"`

	// Translation controls model substitution on failover.
	Translation TranslationConfig `yaml:"translation"`
}

// ModelPatternConfig is one regular-expression routing rule.
type ModelPatternConfig struct {
	// Pattern is applied to the requested model name.
	Pattern string `yaml:"pattern"`

	// Backend receives matching requests.
	Backend string `yaml:"backend"`

	// Priority orders patterns; higher first. Ties keep declaration
	// order.
	Priority int `yaml:"priority"`
}

// TranslationConfig controls model substitution on failover.
type TranslationConfig struct {
	// Strategy is "hybrid" or "strict".
	// Default: "hybrid"
	Strategy string `yaml:"strategy"`

	// Global maps model names to substitutes for any backend.
	Global map[string]string `yaml:"global"`

	// PerBackend maps backend names to their own substitution tables,
	// consulted before Global.
	PerBackend map[string]map[string]string `yaml:"per_backend"`

	// WarnOnDefault also records a warning when the substitution came
	// from the family default rather than an explicit map.
	WarnOnDefault bool `yaml:"warn_on_default"`
}

// BreakerConfig configures the per-backend circuit breakers.
type BreakerConfig struct {
	// Threshold is the consecutive failure count that opens a breaker.
	// Default: 5
	Threshold int `yaml:"threshold"`

	// Timeout is how long an open breaker rejects before admitting a
	// probe.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`
}

// HealthConfig configures periodic backend health probing.
type HealthConfig struct {
	// Interval between probe rounds. Zero disables probing.
	// Default: 0
	Interval time.Duration `yaml:"interval"`
}

// MiddlewareConfig toggles the built-in middleware layers.
type MiddlewareConfig struct {
	// Retry wraps requests in exponential-backoff retry.
	Retry RetryMiddlewareConfig `yaml:"retry"`

	// Validation screens requests before dispatch.
	Validation ValidationMiddlewareConfig `yaml:"validation"`
}

// RetryMiddlewareConfig configures the retry layer.
type RetryMiddlewareConfig struct {
	// Enabled turns the layer on.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// MaxAttempts is the total number of tries including the first.
	// Default: 3
	MaxAttempts int `yaml:"max_attempts"`

	// InitialDelay seeds the exponential backoff.
	// Default: 100ms
	InitialDelay time.Duration `yaml:"initial_delay"`

	// Multiplier grows the delay between attempts.
	// Default: 2
	Multiplier float64 `yaml:"multiplier"`

	// Jitter spreads delays by a random ±25% factor.
	// Default: true
	Jitter bool `yaml:"jitter"`
}

// ValidationMiddlewareConfig configures the validation layer.
type ValidationMiddlewareConfig struct {
	// Enabled turns the layer on.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// DetectPII scans message content for emails, phone numbers, SSNs,
	// and credit card numbers.
	DetectPII bool `yaml:"detect_pii"`

	// PIIAction is "block" or "redact".
	// Default: "block"
	PIIAction string `yaml:"pii_action"`

	// DetectInjection scans user messages for prompt injection patterns.
	DetectInjection bool `yaml:"detect_injection"`

	// Sanitize strips NUL bytes and normalizes line endings.
	Sanitize bool `yaml:"sanitize"`

	// MaxMessages bounds the conversation length. Zero means unlimited.
	MaxMessages int `yaml:"max_messages"`
}

// ModelStoreConfig configures on-disk persistence of model listings.
type ModelStoreConfig struct {
	// Enabled turns persistence on.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Path is the SQLite database file.
	// Default: "data/models.db"
	Path string `yaml:"path"`

	// SweepSchedule is a cron expression for pruning stale snapshots.
	// Empty disables the sweeper.
	// Default: "0 3 * * *"
	SweepSchedule string `yaml:"sweep_schedule"`

	// SweepMaxAge is the snapshot age beyond which the sweeper prunes.
	// Default: 168h (7 days)
	SweepMaxAge time.Duration `yaml:"sweep_max_age"`
}

// TelemetryConfig configures prometheus metrics.
type TelemetryConfig struct {
	// Enabled turns metrics on.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// Namespace prefixes every metric name.
	// Default: "rosetta"
	Namespace string `yaml:"namespace"`

	// Path is where the main server exposes metrics.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// ListenAddress, when set, serves metrics on a separate listener
	// instead of the main server.
	ListenAddress string `yaml:"listen_address"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is "text" or "json".
	// Default: "text"
	Format string `yaml:"format"`
}
