// Package tilecache implements TileCache: the bounded cache of rendered
// per-facility-per-year pixel buffers, rendering on miss via YearVendor and
// FacilityYearTile (spec.md §4.5).
package tilecache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/MeKo-Tech/capstripeviz/internal/config"
	"github.com/MeKo-Tech/capstripeviz/internal/lru"
	"github.com/MeKo-Tech/capstripeviz/internal/model"
	"github.com/MeKo-Tech/capstripeviz/internal/queue"
	"github.com/MeKo-Tech/capstripeviz/internal/tile"
	"github.com/MeKo-Tech/capstripeviz/internal/yearvendor"
)

// TileCache owns the bounded rendered-tile cache. Renders for distinct
// keys may run concurrently; renders for the same key dedupe through the
// same RequestQueue label mechanism YearVendor uses for years, reusing
// the queue as the general in-flight-work mediator spec.md §4.2-4.5
// describe identically ("label" dedup) rather than a second ad hoc
// single-flight primitive.
type TileCache struct {
	vendor *yearvendor.Vendor
	queue  *queue.RequestQueue
	cfg    config.RenderingConfig
	nowFn  func() time.Time
	logger *slog.Logger

	mu    sync.Mutex
	cache *lru.Cache[model.TileKey, model.RenderedTile]
}

// New creates a TileCache bounded to maxCachedTiles entries.
func New(vendor *yearvendor.Vendor, q *queue.RequestQueue, cfg config.RenderingConfig, maxCachedTiles int, logger *slog.Logger) *TileCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &TileCache{
		vendor: vendor,
		queue:  q,
		cfg:    cfg,
		nowFn:  time.Now,
		logger: logger,
		cache:  lru.New[model.TileKey, model.RenderedTile](maxCachedTiles),
	}
}

// TryGetTile returns key's tile without blocking or triggering a render;
// the compositor uses this to decide whether a slice is ready to blit.
func (tc *TileCache) TryGetTile(key model.TileKey) (model.RenderedTile, bool) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.cache.Get(key)
}

// RequestTile kicks off a render for key if not already cached or
// in-flight, without waiting for it to complete. Used for the compositor's
// speculative preloading and for slices found not-yet-ready.
func (tc *TileCache) RequestTile(key model.TileKey, yearPriority int) {
	if _, ok := tc.TryGetTile(key); ok {
		return
	}
	tc.queue.Submit(queue.SubmitRequest{
		Priority: yearPriority,
		Label:    key.Label(),
		Execute:  tc.renderExecute(key, yearPriority),
	})
}

// GetTile returns key's tile, rendering it (and waiting for that render)
// if not already cached.
func (tc *TileCache) GetTile(ctx context.Context, key model.TileKey, yearPriority int) (model.RenderedTile, error) {
	if rt, ok := tc.TryGetTile(key); ok {
		return rt, nil
	}
	fut := tc.queue.Submit(queue.SubmitRequest{
		Priority: yearPriority,
		Label:    key.Label(),
		Execute:  tc.renderExecute(key, yearPriority),
	})
	val, err := fut.Wait(ctx)
	if err != nil {
		return model.RenderedTile{}, err
	}
	return val.(model.RenderedTile), nil
}

func (tc *TileCache) renderExecute(key model.TileKey, yearPriority int) queue.Execute {
	return func(ctx context.Context) (any, error) {
		payload, err := tc.vendor.RequestYear(ctx, key.Year, yearPriority)
		if err != nil {
			return nil, err
		}
		units := payload.UnitsForFacility(key.FacilityID)
		rt := tile.Render(key, units, tc.cfg, tc.nowFn)

		tc.mu.Lock()
		_ = tc.cache.Set(key, rt, rt.SizeBytes(), key.Label(), nil)
		tc.mu.Unlock()
		return rt, nil
	}
}

// Clear empties the tile cache. Tiles are otherwise invalidated only by
// LRU eviction, never by viewport movement (spec.md §4.5).
func (tc *TileCache) Clear() {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.cache.Clear()
}

// Stats reports tile-cache occupancy.
func (tc *TileCache) Stats() lru.Stats {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.cache.Stats()
}
