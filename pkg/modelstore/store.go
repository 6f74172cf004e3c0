package modelstore

import (
	"context"
	"errors"
	"time"

	"babel-hq/rosetta/pkg/adapter"
)

// ErrNotFound is returned when no snapshot exists for a backend.
var ErrNotFound = errors.New("model snapshot not found")

// Store persists model listings keyed by backend name. Implementations are
// safe for concurrent use and satisfy adapter.Snapshotter.
type Store interface {
	// SaveSnapshot stores the listing for a backend, replacing any
	// previous snapshot.
	SaveSnapshot(ctx context.Context, backend string, result *adapter.ListModelsResult) error

	// LoadSnapshot returns the stored listing for a backend, or
	// ErrNotFound.
	LoadSnapshot(ctx context.Context, backend string) (*adapter.ListModelsResult, error)

	// Purge removes snapshots fetched longer ago than maxAge and reports
	// how many were removed.
	Purge(ctx context.Context, maxAge time.Duration) (int, error)

	// Close releases the store's resources. Close is idempotent.
	Close() error
}
