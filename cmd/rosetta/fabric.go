package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"babel-hq/rosetta/pkg/adapter"
	"babel-hq/rosetta/pkg/bridge"
	"babel-hq/rosetta/pkg/config"
	"babel-hq/rosetta/pkg/httpapi"
	"babel-hq/rosetta/pkg/middleware"
	"babel-hq/rosetta/pkg/modelstore"
	"babel-hq/rosetta/pkg/router"
	"babel-hq/rosetta/pkg/router/strategies"
	"babel-hq/rosetta/pkg/telemetry"
)

// modelCacheTTL bounds how long the models endpoint serves a cached
// listing before refetching from the backend.
const modelCacheTTL = 5 * time.Minute

// fabric is one fully assembled serving stack: backends, router, bridge,
// HTTP mux, and the model listing machinery. Hot reload builds a fresh
// fabric from the new configuration and swaps it in.
type fabric struct {
	cfg     *config.Config
	router  *router.Router
	bridge  *bridge.Bridge
	mux     *http.ServeMux
	limiter *httpapi.RateLimiter

	cache   *adapter.ModelCache
	store   *modelstore.SQLiteStore
	sweeper *modelstore.Sweeper
	listers map[string]*adapter.CachingModelLister

	offBind   func()
	closeOnce sync.Once
	closeErr  error
}

// buildFabric assembles a serving stack from cfg. The collector outlives
// individual fabrics so counters survive hot reloads; each fabric binds
// to it and unbinds on close. ctx bounds background work such as the
// snapshot sweeper.
func buildFabric(ctx context.Context, cfg *config.Config, collector *telemetry.Collector) (*fabric, error) {
	strategy, err := buildStrategy(&cfg.Routing)
	if err != nil {
		return nil, err
	}

	r, err := router.New(router.Config{
		Strategy:            strategy,
		Fallback:            router.FallbackMode(cfg.Routing.Fallback),
		FallbackChain:       cfg.Routing.FallbackChain,
		DefaultBackend:      cfg.Routing.DefaultBackend,
		ModelMapping:        cfg.Routing.ModelMapping,
		ModelPatterns:       buildModelPatterns(cfg.Routing.ModelPatterns),
		Translation:         buildTranslation(&cfg.Routing.Translation),
		BreakerThreshold:    cfg.Breaker.Threshold,
		BreakerTimeout:      cfg.Breaker.Timeout,
		HealthCheckInterval: cfg.Health.Interval,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build router: %w", err)
	}

	f := &fabric{
		cfg:     cfg,
		router:  r,
		cache:   adapter.NewModelCache(modelCacheTTL, 0),
		listers: make(map[string]*adapter.CachingModelLister),
	}

	if cfg.ModelStore.Enabled {
		store, err := modelstore.NewSQLiteStore(cfg.ModelStore.Path)
		if err != nil {
			f.close()
			return nil, fmt.Errorf("failed to open model store: %w", err)
		}
		f.store = store
		f.sweeper = modelstore.NewSweeper(store, modelstore.SweeperConfig{
			Schedule: cfg.ModelStore.SweepSchedule,
			MaxAge:   cfg.ModelStore.SweepMaxAge,
		}, nil)
		if err := f.sweeper.Start(ctx); err != nil {
			slog.Warn("snapshot sweeper failed to start", "error", err)
		}
	}

	var snap adapter.Snapshotter
	if f.store != nil {
		snap = f.store
	}
	for _, bc := range cfg.Backends {
		backend := adapter.NewStaticBackend(adapter.StaticConfig{
			Name:              bc.Name,
			Models:            bc.Models,
			Response:          bc.Response,
			Latency:           bc.Latency,
			ChunkLatency:      bc.ChunkLatency,
			FailFirst:         bc.FailFirst,
			InputCostPerMTok:  bc.InputCostPerMTok,
			OutputCostPerMTok: bc.OutputCostPerMTok,
		})
		reg := router.Registration{
			Backend:     backend,
			Weight:      bc.Weight,
			CostPerMTok: bc.CostPerMTok,
		}
		if err := r.Register(reg); err != nil {
			f.close()
			return nil, fmt.Errorf("failed to register backend %q: %w", bc.Name, err)
		}
		f.listers[bc.Name] = adapter.NewCachingModelLister(bc.Name, backend, f.cache, snap, nil)
	}

	b, err := bridge.New(newWireFrontend("rosetta"), r, bridge.WithStack(buildStack(&cfg.Middleware)))
	if err != nil {
		f.close()
		return nil, fmt.Errorf("failed to build bridge: %w", err)
	}
	f.bridge = b

	matcher := httpapi.NewRouteMatcher()
	matcher.Add(http.MethodPost, "/v1/chat", "rosetta")

	if cfg.Server.RateLimit.Max > 0 {
		f.limiter = httpapi.NewRateLimiter(httpapi.Limit{
			Max:    cfg.Server.RateLimit.Max,
			Window: cfg.Server.RateLimit.Window,
		})
	}

	handler := httpapi.NewHandler(b, matcher, f.limiter, buildAuth(&cfg.Server.Auth))

	f.mux = http.NewServeMux()
	f.mux.HandleFunc("/healthz", f.serveHealth)
	f.mux.HandleFunc("/v1/models", f.serveModels)
	f.mux.Handle("/", handler)

	if collector != nil {
		f.offBind = collector.BindBridge(b)
	}
	return f, nil
}

// close tears the fabric down: telemetry unbinds, the sweeper stops, and
// the bridge close cascades through the router to every backend.
func (f *fabric) close() error {
	f.closeOnce.Do(func() {
		if f.offBind != nil {
			f.offBind()
		}
		if f.sweeper != nil {
			f.sweeper.Stop()
		}
		if f.bridge != nil {
			f.closeErr = f.bridge.Close()
		} else if f.router != nil {
			f.closeErr = f.router.Close()
		}
		if f.limiter != nil {
			f.limiter.Dispose()
		}
		if f.cache != nil {
			f.cache.Close()
		}
		if f.store != nil {
			if err := f.store.Close(); err != nil && f.closeErr == nil {
				f.closeErr = err
			}
		}
	})
	return f.closeErr
}

// serveHealth reports liveness plus a per-backend health snapshot.
func (f *fabric) serveHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	backends := f.router.Backends()
	status := "ok"
	for _, b := range backends {
		if !b.Healthy {
			status = "degraded"
			break
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if status != "ok" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":   status,
		"backends": backends,
	})
}

// serveModels aggregates each backend's model listing, served through the
// cache and, when enabled, the persistent snapshot store. ?refresh=true
// bypasses the cache.
func (f *fabric) serveModels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	opts := &adapter.ListModelsOptions{
		ForceRefresh: r.URL.Query().Get("refresh") == "true",
	}
	listings := make(map[string]*adapter.ListModelsResult, len(f.listers))
	for name, lister := range f.listers {
		result, err := lister.ListModels(r.Context(), opts)
		if err != nil {
			slog.Warn("model listing failed", "backend", name, "error", err)
			continue
		}
		listings[name] = result
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"backends": listings})
}

// buildStrategy maps the configured strategy name onto a router strategy.
// An empty name leaves selection to the router's default backend rules.
func buildStrategy(rc *config.RoutingConfig) (router.Strategy, error) {
	switch rc.Strategy {
	case "":
		return nil, nil
	case "round_robin":
		return strategies.RoundRobin(), nil
	case "random":
		return strategies.Random(), nil
	case "latency":
		return strategies.LatencyOptimized(), nil
	case "cost":
		return strategies.CostOptimized(), nil
	case "capability":
		return strategies.CapabilityPreset(capabilityPreset(rc.CapabilityPreset))
	case "explicit":
		return strategies.Explicit(rc.DefaultBackend), nil
	default:
		return nil, fmt.Errorf("unknown routing strategy %q", rc.Strategy)
	}
}

// capabilityPreset translates the operator-facing preset names onto the
// strategy package's weight presets.
func capabilityPreset(name string) string {
	switch name {
	case "cheapest":
		return "cost"
	case "fastest":
		return "speed"
	case "best":
		return "quality"
	default:
		return "balanced"
	}
}

func buildModelPatterns(patterns []config.ModelPatternConfig) []router.ModelPattern {
	out := make([]router.ModelPattern, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, router.ModelPattern{
			Pattern:  p.Pattern,
			Backend:  p.Backend,
			Priority: p.Priority,
		})
	}
	return out
}

func buildTranslation(tc *config.TranslationConfig) router.TranslationConfig {
	return router.TranslationConfig{
		Strategy:      router.TranslationStrategy(tc.Strategy),
		Global:        tc.Global,
		PerBackend:    tc.PerBackend,
		WarnOnDefault: tc.WarnOnDefault,
	}
}

// buildStack composes the middleware pipeline. Tracing wraps everything,
// validation rejects before any retry, retry sits innermost so a retried
// request is not re-validated.
func buildStack(mc *config.MiddlewareConfig) *middleware.Stack {
	stack := middleware.NewStack()

	stack.Use("tracing", middleware.NewTracing(middleware.TracingConfig{}))
	stack.UseStream("tracing", middleware.NewTracingStream(middleware.TracingConfig{}))

	if mc.Validation.Enabled {
		vc := middleware.ValidationConfig{
			DetectPII:       mc.Validation.DetectPII,
			PIIAction:       middleware.PIIAction(mc.Validation.PIIAction),
			DetectInjection: mc.Validation.DetectInjection,
			Sanitize:        mc.Validation.Sanitize,
			MaxMessages:     mc.Validation.MaxMessages,
			ValidateParams:  true,
			ThrowOnError:    true,
		}
		stack.Use("validation", middleware.NewValidation(vc))
		stack.UseStream("validation", middleware.NewValidationStream(vc))
	}

	if mc.Retry.Enabled {
		stack.Use("retry", middleware.NewRetry(middleware.RetryConfig{
			MaxAttempts:  mc.Retry.MaxAttempts,
			InitialDelay: mc.Retry.InitialDelay,
			Multiplier:   mc.Retry.Multiplier,
			Jitter:       mc.Retry.Jitter,
		}))
	}
	return stack
}

// buildAuth assembles the credential validator from the auth config. With
// both bearer tokens and API keys configured, either credential admits
// the request.
func buildAuth(ac *config.AuthConfig) httpapi.Validator {
	var validators []httpapi.Validator
	if len(ac.BearerTokens) > 0 {
		validators = append(validators, httpapi.NewBearerTokenValidator(ac.BearerTokens...))
	}
	if len(ac.APIKeys) > 0 {
		validators = append(validators, httpapi.NewAPIKeyValidator(ac.APIKeys))
	}
	switch len(validators) {
	case 0:
		return nil
	case 1:
		return validators[0]
	default:
		return func(r *http.Request) bool {
			for _, v := range validators {
				if v(r) {
					return true
				}
			}
			return false
		}
	}
}
