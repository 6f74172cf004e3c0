package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"babel-hq/rosetta/pkg/cli"
	"babel-hq/rosetta/pkg/config"
	"babel-hq/rosetta/pkg/telemetry"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the rosetta fabric server",
	Long: `Start the fabric server with the specified configuration.

The server accepts IR-shaped chat requests on POST /v1/chat, routes them
across the configured backends, and exposes /healthz, /v1/models, and
Prometheus metrics. Editing the config file while running rebuilds the
routing fabric in place.

Examples:
  # Start with the built-in demo config
  rosetta run

  # Start with a config file
  rosetta run --config /etc/rosetta/rosetta.yaml

  # Override the listen address
  rosetta run --listen 0.0.0.0:8080

  # Validate config without starting the server
  rosetta run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting the server")
}

// swapHandler delegates to the current fabric. Hot reload stores a new
// fabric; requests already inside the old one keep running against it.
type swapHandler struct {
	current atomic.Pointer[fabric]
}

func (s *swapHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.current.Load().mux.ServeHTTP(w, r)
}

// loadRunConfig loads the configured file, or the built-in demo config
// when no file was given.
func loadRunConfig() (*config.Config, error) {
	if cfgFile == "" {
		return config.DefaultConfig(), nil
	}
	return config.LoadConfig(cfgFile)
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadRunConfig()
	if err != nil {
		return cli.NewConfigError(cfgFile, err)
	}

	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Logging.Level = runFlags.logLevel
	}
	setupLogging(cfg.Logging, verbose)

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	fmt.Printf("Rosetta %s\n", Version)
	if cfgFile != "" {
		fmt.Printf("Loading configuration from: %s\n", cfgFile)
	} else {
		fmt.Println("Running with the built-in demo configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	enabled := cfg.Telemetry.Enabled == nil || *cfg.Telemetry.Enabled
	collector := telemetry.NewCollector(telemetry.Config{
		Enabled:   enabled,
		Namespace: cfg.Telemetry.Namespace,
	}, nil)

	f, err := buildFabric(ctx, cfg, collector)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	swap := &swapHandler{}
	swap.current.Store(f)
	defer func() { _ = swap.current.Load().close() }()

	fmt.Printf("✓ Backends registered (%d)\n", len(cfg.Backends))

	mux := http.NewServeMux()
	if cfg.Telemetry.ListenAddress == "" {
		mux.Handle(cfg.Telemetry.Path, collector.Handler())
	}
	mux.Handle("/", swap)

	srv := &http.Server{
		Addr:        cfg.Server.ListenAddress,
		Handler:     mux,
		ReadTimeout: cfg.Server.ReadTimeout,
		IdleTimeout: cfg.Server.IdleTimeout,
		// The configured write timeout applies as-is; zero keeps
		// long-lived streams open.
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errChan := make(chan error, 2)
	go func() {
		slog.Info("starting HTTP server", "address", cfg.Server.ListenAddress)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	var metricsSrv *http.Server
	if cfg.Telemetry.ListenAddress != "" {
		mm := http.NewServeMux()
		mm.Handle(cfg.Telemetry.Path, collector.Handler())
		metricsSrv = &http.Server{Addr: cfg.Telemetry.ListenAddress, Handler: mm}
		go func() {
			slog.Info("starting metrics server", "address", cfg.Telemetry.ListenAddress)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()
	}

	if cfgFile != "" {
		watcher, werr := config.NewWatcher(cfgFile, nil)
		if werr != nil {
			slog.Warn("config watcher unavailable", "error", werr)
		} else {
			defer watcher.Stop()
			go func() {
				if werr := watcher.Watch(ctx, func() error {
					return reloadFabric(ctx, swap, collector, cfg.Server.ShutdownTimeout)
				}); werr != nil {
					slog.Warn("config watcher stopped", "error", werr)
				}
			}()
		}
	}

	fmt.Println()
	fmt.Printf("✓ Server listening on %s\n", cfg.Server.ListenAddress)
	fmt.Printf("✓ Chat endpoint: POST http://%s/v1/chat\n", cfg.Server.ListenAddress)
	fmt.Printf("✓ Health endpoint: http://%s/healthz\n", cfg.Server.ListenAddress)
	if cfg.Telemetry.ListenAddress == "" {
		fmt.Printf("✓ Metrics endpoint: http://%s%s\n", cfg.Server.ListenAddress, cfg.Telemetry.Path)
	} else {
		fmt.Printf("✓ Metrics endpoint: http://%s%s\n", cfg.Telemetry.ListenAddress, cfg.Telemetry.Path)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	sigChan := cli.WaitForShutdown()

	select {
	case err := <-errChan:
		return cli.NewCommandError("run", err)
	case sig := <-sigChan:
		fmt.Printf("\nReceived signal %s, shutting down gracefully...\n", sig)
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if metricsSrv != nil {
			_ = metricsSrv.Shutdown(shutdownCtx)
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown failed", "error", err)
			return cli.NewCommandError("run", err)
		}

		fmt.Println("✓ Server stopped")
		return nil
	}
}

// reloadFabric rebuilds the stack from the changed config file and swaps
// it in. The previous fabric keeps serving its in-flight requests and
// closes after the grace period.
func reloadFabric(ctx context.Context, swap *swapHandler, collector *telemetry.Collector, grace time.Duration) error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return err
	}

	next, err := buildFabric(ctx, cfg, collector)
	if err != nil {
		return err
	}

	prev := swap.current.Swap(next)
	if prev != nil {
		if prev.cfg.Server.ListenAddress != cfg.Server.ListenAddress {
			slog.Warn("listen address changed in config, restart required to rebind",
				"current", prev.cfg.Server.ListenAddress,
				"configured", cfg.Server.ListenAddress,
			)
		}
		if grace <= 0 {
			grace = config.DefaultShutdownTimeout
		}
		old := prev
		time.AfterFunc(grace, func() { _ = old.close() })
	}

	slog.Info("configuration reloaded",
		"backends", len(cfg.Backends),
		"strategy", cfg.Routing.Strategy,
	)
	return nil
}
