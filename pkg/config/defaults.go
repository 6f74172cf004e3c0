package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultRateLimitWindow = time.Minute

	// Backend defaults
	DefaultBackendType   = "static"
	DefaultBackendWeight = 1

	// Routing defaults
	DefaultFallback            = "sequential"
	DefaultCapabilityPreset    = "balanced"
	DefaultTranslationStrategy = "hybrid"

	// Breaker defaults
	DefaultBreakerThreshold = 5
	DefaultBreakerTimeout   = 30 * time.Second

	// Middleware defaults
	DefaultRetryMaxAttempts  = 3
	DefaultRetryInitialDelay = 100 * time.Millisecond
	DefaultRetryMultiplier   = 2.0
	DefaultPIIAction         = "block"

	// Model store defaults
	DefaultModelStorePath = "data/models.db"
	DefaultSweepSchedule  = "0 3 * * *"
	DefaultSweepMaxAge    = 7 * 24 * time.Hour

	// Telemetry defaults
	DefaultTelemetryNamespace = "rosetta"
	DefaultTelemetryPath      = "/metrics"

	// Logging defaults
	DefaultLoggingLevel  = "info"
	DefaultLoggingFormat = "text"
)

// ApplyDefaults fills zero-valued fields with defaults. Idempotent.
func ApplyDefaults(cfg *Config) {
	// Server
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.RateLimit.Window == 0 {
		cfg.Server.RateLimit.Window = DefaultRateLimitWindow
	}

	// Backends
	for i := range cfg.Backends {
		b := &cfg.Backends[i]
		if b.Type == "" {
			b.Type = DefaultBackendType
		}
		if b.Weight == 0 {
			b.Weight = DefaultBackendWeight
		}
		if b.CostPerMTok == 0 && (b.InputCostPerMTok > 0 || b.OutputCostPerMTok > 0) {
			b.CostPerMTok = (b.InputCostPerMTok + b.OutputCostPerMTok) / 2
		}
		if b.InputCostPerMTok == 0 {
			b.InputCostPerMTok = b.CostPerMTok
		}
		if b.OutputCostPerMTok == 0 {
			b.OutputCostPerMTok = b.CostPerMTok
		}
	}

	// Routing
	if cfg.Routing.Fallback == "" {
		cfg.Routing.Fallback = DefaultFallback
	}
	if cfg.Routing.CapabilityPreset == "" {
		cfg.Routing.CapabilityPreset = DefaultCapabilityPreset
	}
	if cfg.Routing.Translation.Strategy == "" {
		cfg.Routing.Translation.Strategy = DefaultTranslationStrategy
	}

	// Breaker
	if cfg.Breaker.Threshold == 0 {
		cfg.Breaker.Threshold = DefaultBreakerThreshold
	}
	if cfg.Breaker.Timeout == 0 {
		cfg.Breaker.Timeout = DefaultBreakerTimeout
	}

	// Middleware
	if cfg.Middleware.Retry.MaxAttempts == 0 {
		cfg.Middleware.Retry.MaxAttempts = DefaultRetryMaxAttempts
	}
	if cfg.Middleware.Retry.InitialDelay == 0 {
		cfg.Middleware.Retry.InitialDelay = DefaultRetryInitialDelay
	}
	if cfg.Middleware.Retry.Multiplier == 0 {
		cfg.Middleware.Retry.Multiplier = DefaultRetryMultiplier
	}
	if cfg.Middleware.Validation.PIIAction == "" {
		cfg.Middleware.Validation.PIIAction = DefaultPIIAction
	}

	// Model store
	if cfg.ModelStore.Path == "" {
		cfg.ModelStore.Path = DefaultModelStorePath
	}
	if cfg.ModelStore.SweepSchedule == "" {
		cfg.ModelStore.SweepSchedule = DefaultSweepSchedule
	}
	if cfg.ModelStore.SweepMaxAge == 0 {
		cfg.ModelStore.SweepMaxAge = DefaultSweepMaxAge
	}

	// Telemetry
	if cfg.Telemetry.Enabled == nil {
		enabled := true
		cfg.Telemetry.Enabled = &enabled
	}
	if cfg.Telemetry.Namespace == "" {
		cfg.Telemetry.Namespace = DefaultTelemetryNamespace
	}
	if cfg.Telemetry.Path == "" {
		cfg.Telemetry.Path = DefaultTelemetryPath
	}

	// Logging
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLoggingFormat
	}
}
