package config

import (
	"fmt"
	"net"
	"regexp"
	"strings"
)

// FieldError is a validation error for one configuration field.
type FieldError struct {
	// Field is the dotted path to the field, such as
	// "backends[1].name".
	Field string

	// Message describes what is wrong.
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError collects every FieldError found in a configuration.
type ValidationError struct {
	Errors []FieldError
}

func (e ValidationError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "configuration validation failed"
	case 1:
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "configuration validation failed with %d errors:\n", len(e.Errors))
	for _, err := range e.Errors {
		fmt.Fprintf(&sb, "  - %s\n", err.Error())
	}
	return sb.String()
}

var (
	knownBackendTypes = map[string]bool{"static": true}
	knownStrategies   = map[string]bool{
		"": true, "round_robin": true, "random": true, "latency": true,
		"cost": true, "capability": true, "explicit": true,
	}
	knownPresets      = map[string]bool{"balanced": true, "cheapest": true, "fastest": true, "best": true}
	knownFallbacks    = map[string]bool{"none": true, "sequential": true, "parallel": true}
	knownTranslations = map[string]bool{"hybrid": true, "strict": true}
	knownPIIActions   = map[string]bool{"block": true, "redact": true}
	knownLogLevels    = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	knownLogFormats   = map[string]bool{"text": true, "json": true}
)

// Validate checks the configuration and returns a ValidationError naming
// every offending field, or nil. Call ApplyDefaults first; Validate does
// not treat zero values as "unset".
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateBackends(cfg.Backends)...)
	errs = append(errs, validateRouting(&cfg.Routing, cfg.Backends)...)
	errs = append(errs, validateBreaker(&cfg.Breaker)...)
	errs = append(errs, validateMiddleware(&cfg.Middleware)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateServer(s *ServerConfig) []FieldError {
	var errs []FieldError

	if _, _, err := net.SplitHostPort(s.ListenAddress); err != nil {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: fmt.Sprintf("invalid host:port %q", s.ListenAddress),
		})
	}
	if s.RateLimit.Max < 0 {
		errs = append(errs, FieldError{Field: "server.rate_limit.max", Message: "must not be negative"})
	}
	if s.RateLimit.Window < 0 {
		errs = append(errs, FieldError{Field: "server.rate_limit.window", Message: "must not be negative"})
	}
	return errs
}

func validateBackends(backends []BackendConfig) []FieldError {
	var errs []FieldError

	if len(backends) == 0 {
		errs = append(errs, FieldError{Field: "backends", Message: "at least one backend is required"})
		return errs
	}

	seen := make(map[string]bool, len(backends))
	for i, b := range backends {
		path := fmt.Sprintf("backends[%d]", i)
		if b.Name == "" {
			errs = append(errs, FieldError{Field: path + ".name", Message: "name is required"})
		} else if seen[b.Name] {
			errs = append(errs, FieldError{Field: path + ".name", Message: fmt.Sprintf("duplicate backend name %q", b.Name)})
		}
		seen[b.Name] = true

		if !knownBackendTypes[b.Type] {
			errs = append(errs, FieldError{Field: path + ".type", Message: fmt.Sprintf("unknown type %q", b.Type)})
		}
		if b.Weight < 0 {
			errs = append(errs, FieldError{Field: path + ".weight", Message: "must not be negative"})
		}
		if b.FailFirst < 0 {
			errs = append(errs, FieldError{Field: path + ".fail_first", Message: "must not be negative"})
		}
		if b.CostPerMTok < 0 || b.InputCostPerMTok < 0 || b.OutputCostPerMTok < 0 {
			errs = append(errs, FieldError{Field: path + ".cost_per_mtok", Message: "costs must not be negative"})
		}
	}
	return errs
}

func validateRouting(r *RoutingConfig, backends []BackendConfig) []FieldError {
	var errs []FieldError

	names := make(map[string]bool, len(backends))
	for _, b := range backends {
		names[b.Name] = true
	}
	known := func(name string) bool { return name == "" || names[name] }

	if !knownStrategies[r.Strategy] {
		errs = append(errs, FieldError{Field: "routing.strategy", Message: fmt.Sprintf("unknown strategy %q", r.Strategy)})
	}
	if !knownPresets[r.CapabilityPreset] {
		errs = append(errs, FieldError{Field: "routing.capability_preset", Message: fmt.Sprintf("unknown preset %q", r.CapabilityPreset)})
	}
	if !knownFallbacks[r.Fallback] {
		errs = append(errs, FieldError{Field: "routing.fallback", Message: fmt.Sprintf("unknown fallback mode %q", r.Fallback)})
	}
	if !knownTranslations[r.Translation.Strategy] {
		errs = append(errs, FieldError{Field: "routing.translation.strategy", Message: fmt.Sprintf("unknown translation strategy %q", r.Translation.Strategy)})
	}
	if !known(r.DefaultBackend) {
		errs = append(errs, FieldError{Field: "routing.default_backend", Message: fmt.Sprintf("unknown backend %q", r.DefaultBackend)})
	}
	if r.Strategy == "explicit" && r.DefaultBackend == "" {
		errs = append(errs, FieldError{Field: "routing.default_backend", Message: "required by the explicit strategy"})
	}

	for i, name := range r.FallbackChain {
		if !known(name) {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("routing.fallback_chain[%d]", i),
				Message: fmt.Sprintf("unknown backend %q", name),
			})
		}
	}
	for model, name := range r.ModelMapping {
		if !known(name) {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("routing.model_mapping[%s]", model),
				Message: fmt.Sprintf("unknown backend %q", name),
			})
		}
	}
	for i, p := range r.ModelPatterns {
		path := fmt.Sprintf("routing.model_patterns[%d]", i)
		if _, err := regexp.Compile(p.Pattern); err != nil {
			errs = append(errs, FieldError{Field: path + ".pattern", Message: fmt.Sprintf("invalid pattern: %v", err)})
		}
		if !known(p.Backend) {
			errs = append(errs, FieldError{Field: path + ".backend", Message: fmt.Sprintf("unknown backend %q", p.Backend)})
		}
	}
	return errs
}

func validateBreaker(b *BreakerConfig) []FieldError {
	var errs []FieldError
	if b.Threshold < 1 {
		errs = append(errs, FieldError{Field: "breaker.threshold", Message: "must be at least 1"})
	}
	if b.Timeout <= 0 {
		errs = append(errs, FieldError{Field: "breaker.timeout", Message: "must be positive"})
	}
	return errs
}

func validateMiddleware(m *MiddlewareConfig) []FieldError {
	var errs []FieldError
	if m.Retry.MaxAttempts < 1 {
		errs = append(errs, FieldError{Field: "middleware.retry.max_attempts", Message: "must be at least 1"})
	}
	if m.Retry.Multiplier < 1 {
		errs = append(errs, FieldError{Field: "middleware.retry.multiplier", Message: "must be at least 1"})
	}
	if !knownPIIActions[m.Validation.PIIAction] {
		errs = append(errs, FieldError{Field: "middleware.validation.pii_action", Message: fmt.Sprintf("unknown action %q", m.Validation.PIIAction)})
	}
	return errs
}

func validateLogging(l *LoggingConfig) []FieldError {
	var errs []FieldError
	if !knownLogLevels[l.Level] {
		errs = append(errs, FieldError{Field: "logging.level", Message: fmt.Sprintf("unknown level %q", l.Level)})
	}
	if !knownLogFormats[l.Format] {
		errs = append(errs, FieldError{Field: "logging.format", Message: fmt.Sprintf("unknown format %q", l.Format)})
	}
	return errs
}
