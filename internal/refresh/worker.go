package refresh

import (
	"context"
	"sync"
	"time"

	"github.com/zeineb-manai/depot-vente/internal/catalogue"
	"github.com/zeineb-manai/depot-vente/internal/models"
	"github.com/zeineb-manai/depot-vente/internal/redisclient"
	"github.com/zeineb-manai/depot-vente/internal/util"

	"go.uber.org/zap"
)

// Worker reloads the catalogue on a fixed cadence into an in-memory
// snapshot consumed by read paths, and pushes the Available listing to the
// cache. Ticks that land inside an exclusive edit window run once after
// release instead.
type Worker struct {
	catalogue *catalogue.Store
	guard     *Guard
	cache     *redisclient.Client
	interval  time.Duration
	logger    *zap.Logger

	mu       sync.RWMutex
	snapshot []models.Item
}

// NewWorker creates a refresh worker. cache may be nil.
func NewWorker(cat *catalogue.Store, guard *Guard, cache *redisclient.Client, interval time.Duration) *Worker {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Worker{
		catalogue: cat,
		guard:     guard,
		cache:     cache,
		interval:  interval,
		logger:    util.GetLogger(),
	}
}

// Guard returns the guard write paths must hold while mutating the
// catalogue.
func (w *Worker) Guard() *Guard {
	return w.guard
}

// Run reloads until ctx is cancelled. The first pass runs immediately so
// readers never start from an empty snapshot.
func (w *Worker) Run(ctx context.Context) {
	w.Reload(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !w.guard.Allow() {
				util.RefreshDeferredTotal.Inc()
				continue
			}
			w.Reload(ctx)
		case <-w.guard.Deferred():
			w.Reload(ctx)
		}
	}
}

// Reload reads the full catalogue and replaces the snapshot.
func (w *Worker) Reload(ctx context.Context) {
	items, err := w.catalogue.List(ctx, catalogue.Filter{})
	if err != nil {
		w.logger.Error("Catalogue reload failed", zap.Error(err))
		return
	}

	w.mu.Lock()
	w.snapshot = items
	w.mu.Unlock()
	util.CatalogueRefreshTotal.Inc()

	if w.cache != nil {
		available := make([]models.Item, 0, len(items))
		for _, it := range items {
			if it.Status == models.StatusAvailable {
				available = append(available, it)
			}
		}
		if err := w.cache.SetAvailableListing(ctx, available); err != nil {
			w.logger.Warn("Failed to push listing to cache", zap.Error(err))
		}
	}
}

// Snapshot returns the last loaded catalogue state.
func (w *Worker) Snapshot() []models.Item {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]models.Item, len(w.snapshot))
	copy(out, w.snapshot)
	return out
}
