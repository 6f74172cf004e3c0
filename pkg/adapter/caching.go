package adapter

import (
	"context"
	"log/slog"
	"time"
)

// Snapshotter persists model listings across process restarts. The sqlite
// and in-memory implementations live in the modelstore package; the fabric
// itself never requires persistence.
type Snapshotter interface {
	// SaveSnapshot stores the listing for a backend.
	SaveSnapshot(ctx context.Context, backend string, result *ListModelsResult) error

	// LoadSnapshot returns the stored listing for a backend, or an error
	// when none exists.
	LoadSnapshot(ctx context.Context, backend string) (*ListModelsResult, error)
}

// CachingModelLister layers a ModelCache, and optionally a persistent
// snapshot store, over a backend's ModelLister.
//
// Lookup order: cache (unless ForceRefresh), then the backend, then the
// snapshot store as a cold-start fallback when the backend is unreachable.
// Fresh listings are written through to both the cache and the store.
type CachingModelLister struct {
	backend  string
	delegate ModelLister
	cache    *ModelCache
	store    Snapshotter
	logger   *slog.Logger
}

// NewCachingModelLister wraps a backend's model lister. The store may be
// nil; the cache is required. A nil logger uses slog.Default.
func NewCachingModelLister(backend string, delegate ModelLister, cache *ModelCache, store Snapshotter, logger *slog.Logger) *CachingModelLister {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachingModelLister{
		backend:  backend,
		delegate: delegate,
		cache:    cache,
		store:    store,
		logger:   logger.With("component", "modelcache", "backend", backend),
	}
}

// ListModels implements ModelLister.
func (l *CachingModelLister) ListModels(ctx context.Context, opts *ListModelsOptions) (*ListModelsResult, error) {
	force := opts != nil && opts.ForceRefresh
	var filter *ModelFilter
	if opts != nil {
		filter = opts.Filter
	}

	if !force {
		if cached, ok := l.cache.Get(l.backend); ok {
			cached.Source = ModelSourceCache
			return FilterModels(cached, filter), nil
		}
	}

	fresh, err := l.delegate.ListModels(ctx, &ListModelsOptions{ForceRefresh: force})
	if err == nil {
		l.cache.Set(l.backend, fresh)
		if l.store != nil {
			if serr := l.store.SaveSnapshot(ctx, l.backend, fresh); serr != nil {
				l.logger.Warn("failed to persist model snapshot", "error", serr)
			}
		}
		return FilterModels(fresh, filter), nil
	}

	// Cold start with an unreachable backend: serve the persisted snapshot
	// when one exists.
	if l.store != nil && !force {
		if snap, serr := l.store.LoadSnapshot(ctx, l.backend); serr == nil {
			l.logger.Info("serving model list from snapshot store",
				"fetched_at", snap.FetchedAt.Format(time.RFC3339))
			snap.Source = ModelSourceCache
			l.cache.Set(l.backend, snap)
			return FilterModels(snap, filter), nil
		}
	}

	return nil, err
}

// InvalidateModelCache implements ModelLister, dropping both the cached
// listing and the delegate's own cache.
func (l *CachingModelLister) InvalidateModelCache() {
	l.cache.Invalidate(l.backend)
	l.delegate.InvalidateModelCache()
}
