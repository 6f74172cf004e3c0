package config

import (
	"strings"
	"testing"
	"time"
)

func TestValidateDefaultConfig(t *testing.T) {
	if err := Validate(DefaultConfig()); err != nil {
		t.Errorf("expected default config to pass validation, got: %v", err)
	}
}

func TestValidateFieldPaths(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{
			name:   "missing backend name",
			mutate: func(c *Config) { c.Backends[0].Name = "" },
			field:  "backends[0].name",
		},
		{
			name:   "duplicate backend name",
			mutate: func(c *Config) { c.Backends[1].Name = c.Backends[0].Name },
			field:  "backends[1].name",
		},
		{
			name:   "unknown backend type",
			mutate: func(c *Config) { c.Backends[0].Type = "quantum" },
			field:  "backends[0].type",
		},
		{
			name:   "negative backend weight",
			mutate: func(c *Config) { c.Backends[0].Weight = -1 },
			field:  "backends[0].weight",
		},
		{
			name:   "negative backend cost",
			mutate: func(c *Config) { c.Backends[0].InputCostPerMTok = -2 },
			field:  "backends[0].cost_per_mtok",
		},
		{
			name:   "bad listen address",
			mutate: func(c *Config) { c.Server.ListenAddress = "no-port" },
			field:  "server.listen_address",
		},
		{
			name:   "negative rate limit",
			mutate: func(c *Config) { c.Server.RateLimit.Max = -1 },
			field:  "server.rate_limit.max",
		},
		{
			name:   "unknown strategy",
			mutate: func(c *Config) { c.Routing.Strategy = "chaos" },
			field:  "routing.strategy",
		},
		{
			name:   "unknown capability preset",
			mutate: func(c *Config) { c.Routing.CapabilityPreset = "luxury" },
			field:  "routing.capability_preset",
		},
		{
			name:   "unknown fallback mode",
			mutate: func(c *Config) { c.Routing.Fallback = "hope" },
			field:  "routing.fallback",
		},
		{
			name:   "unknown translation strategy",
			mutate: func(c *Config) { c.Routing.Translation.Strategy = "loose" },
			field:  "routing.translation.strategy",
		},
		{
			name:   "unknown default backend",
			mutate: func(c *Config) { c.Routing.DefaultBackend = "ghost" },
			field:  "routing.default_backend",
		},
		{
			name: "explicit strategy without default backend",
			mutate: func(c *Config) {
				c.Routing.Strategy = "explicit"
				c.Routing.DefaultBackend = ""
			},
			field: "routing.default_backend",
		},
		{
			name:   "unknown fallback chain entry",
			mutate: func(c *Config) { c.Routing.FallbackChain = []string{"ghost"} },
			field:  "routing.fallback_chain[0]",
		},
		{
			name:   "model mapping to unknown backend",
			mutate: func(c *Config) { c.Routing.ModelMapping = map[string]string{"demo": "ghost"} },
			field:  "routing.model_mapping[demo]",
		},
		{
			name: "invalid model pattern",
			mutate: func(c *Config) {
				c.Routing.ModelPatterns = []ModelPatternConfig{{Pattern: "gpt-[", Backend: "alpha"}}
			},
			field: "routing.model_patterns[0].pattern",
		},
		{
			name: "model pattern to unknown backend",
			mutate: func(c *Config) {
				c.Routing.ModelPatterns = []ModelPatternConfig{{Pattern: "gpt-.*", Backend: "ghost"}}
			},
			field: "routing.model_patterns[0].backend",
		},
		{
			name:   "breaker threshold below one",
			mutate: func(c *Config) { c.Breaker.Threshold = 0 },
			field:  "breaker.threshold",
		},
		{
			name:   "breaker timeout not positive",
			mutate: func(c *Config) { c.Breaker.Timeout = 0 },
			field:  "breaker.timeout",
		},
		{
			name:   "retry attempts below one",
			mutate: func(c *Config) { c.Middleware.Retry.MaxAttempts = 0 },
			field:  "middleware.retry.max_attempts",
		},
		{
			name:   "retry multiplier below one",
			mutate: func(c *Config) { c.Middleware.Retry.Multiplier = 0.5 },
			field:  "middleware.retry.multiplier",
		},
		{
			name:   "unknown pii action",
			mutate: func(c *Config) { c.Middleware.Validation.PIIAction = "shrug" },
			field:  "middleware.validation.pii_action",
		},
		{
			name:   "unknown log level",
			mutate: func(c *Config) { c.Logging.Level = "loud" },
			field:  "logging.level",
		},
		{
			name:   "unknown log format",
			mutate: func(c *Config) { c.Logging.Format = "xml" },
			field:  "logging.format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected validation to fail")
			}
			verr, ok := err.(ValidationError)
			if !ok {
				t.Fatalf("expected ValidationError, got %T", err)
			}

			found := false
			for _, fe := range verr.Errors {
				if fe.Field == tt.field {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("expected error for field %q, got: %v", tt.field, verr.Errors)
			}
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backends[0].Name = ""
	cfg.Routing.Strategy = "chaos"
	cfg.Breaker.Timeout = -time.Second

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation to fail")
	}
	verr, ok := err.(ValidationError)
	if !ok {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if len(verr.Errors) < 3 {
		t.Errorf("expected at least 3 errors, got %d: %v", len(verr.Errors), verr.Errors)
	}
	if !strings.Contains(verr.Error(), "validation failed with") {
		t.Errorf("message should count the errors: %s", verr.Error())
	}
}

func TestValidationErrorSingle(t *testing.T) {
	err := ValidationError{Errors: []FieldError{{Field: "backends", Message: "at least one backend is required"}}}
	msg := err.Error()
	if !strings.Contains(msg, "backends: at least one backend is required") {
		t.Errorf("message = %q, want the single field inline", msg)
	}
	if strings.Contains(msg, "\n") {
		t.Errorf("single error should be one line, got %q", msg)
	}
}
