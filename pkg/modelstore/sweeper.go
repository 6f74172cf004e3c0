package modelstore

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// SweeperConfig controls scheduled snapshot pruning.
type SweeperConfig struct {
	// Schedule is a standard cron expression, such as "0 * * * *" for
	// hourly. Empty disables the sweeper.
	Schedule string `yaml:"schedule"`

	// MaxAge is the age beyond which snapshots are pruned.
	// Default: 7 days.
	MaxAge time.Duration `yaml:"max_age"`
}

// Sweeper prunes stale snapshots from a Store on a cron schedule.
type Sweeper struct {
	store   Store
	config  SweeperConfig
	cron    *cron.Cron
	mu      sync.Mutex
	logger  *slog.Logger
	running bool
}

// NewSweeper creates a sweeper for the store. A nil logger uses
// slog.Default.
func NewSweeper(store Store, config SweeperConfig, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	if config.MaxAge == 0 {
		config.MaxAge = 7 * 24 * time.Hour
	}
	return &Sweeper{
		store:  store,
		config: config,
		cron:   cron.New(),
		logger: logger.With("component", "modelstore.sweeper"),
	}
}

// Start begins scheduled pruning. With an empty schedule it does nothing.
// The sweeper stops itself when ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.config.Schedule == "" {
		s.logger.Info("sweep schedule not configured, skipping sweeper")
		return nil
	}

	if _, err := cron.ParseStandard(s.config.Schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.config.Schedule, err)
	}

	if _, err := s.cron.AddFunc(s.config.Schedule, func() {
		s.runSweep(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("snapshot sweeper started",
		"schedule", s.config.Schedule,
		"max_age", s.config.MaxAge,
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

func (s *Sweeper) runSweep(ctx context.Context) {
	deleted, err := s.store.Purge(ctx, s.config.MaxAge)
	if err != nil {
		s.logger.Error("scheduled sweep failed", "error", err)
		return
	}
	if deleted > 0 {
		s.logger.Info("scheduled sweep completed", "deleted_count", deleted)
	} else {
		s.logger.Debug("scheduled sweep completed, no snapshots deleted")
	}
}

// Stop stops the sweeper and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil && s.running {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.running = false
		s.logger.Info("snapshot sweeper stopped")
	}
}

// IsRunning reports whether the sweeper is active.
func (s *Sweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled sweep time, or nil when not running.
func (s *Sweeper) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
