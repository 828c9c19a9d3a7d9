// Package engine assembles RequestQueue, YearVendor, TileCache,
// Compositor, Navigator and Stats into the single public Engine handle
// (spec.md §6).
//
// Concurrency (SPEC_FULL.md §5): Navigator transitions and frame
// composition run exclusively on one dedicated goroutine, so pointer/key/
// wheel/tick events and composite() calls are always applied in the order
// they arrive — the part of this spec where call ordering is observable
// and matters (a stale pointer-up must not race ahead of the pointer-down
// that should have cancelled an animation). requestYear and getTile are
// proxied straight through to YearVendor/TileCache, which already
// serialise their own cache mutation internally (see their package docs);
// routing them through the same goroutine would only add head-of-line
// blocking behind slow upstream calls for no correctness benefit.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/MeKo-Tech/capstripeviz/internal/calendar"
	"github.com/MeKo-Tech/capstripeviz/internal/config"
	"github.com/MeKo-Tech/capstripeviz/internal/model"
	"github.com/MeKo-Tech/capstripeviz/internal/navigator"
	"github.com/MeKo-Tech/capstripeviz/internal/queue"
	"github.com/MeKo-Tech/capstripeviz/internal/stats"
	"github.com/MeKo-Tech/capstripeviz/internal/tilecache"
	"github.com/MeKo-Tech/capstripeviz/internal/viewport"
	"github.com/MeKo-Tech/capstripeviz/internal/yearvendor"
)

// Engine is the complete, ready-to-use capacity-factor stripe engine.
type Engine struct {
	cfg          config.Config
	earliestYear int
	logger       *slog.Logger

	yearQueue  *queue.RequestQueue
	tileQueue  *queue.RequestQueue
	vendor     *yearvendor.Vendor
	tiles      *tilecache.TileCache
	compositor *viewport.Compositor
	nav        *navigator.Navigator

	loopCh chan func()
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New assembles an Engine. fetch is the upstream FetchYear collaborator
// (internal/fetchsim.Simulator.FetchYear in this repo's demo/test paths).
// bounds is the navigator's initial hard offset range; containerWidthPx
// seeds the navigator's pixels-per-day conversion.
func New(cfg config.Config, fetch yearvendor.FetchYear, bounds navigator.Bounds, containerWidthPx int, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	// Two independently-gated queues: a tile render task's execute callback
	// nests a blocking RequestYear call, which itself submits to and waits
	// on a queue. Sharing one RequestQueue between the two lets every
	// max_concurrent tile-render slot fill up with tasks all blocked
	// waiting for a year-fetch slot the same queue refuses to grant them —
	// a self-inflicted stall that only unwinds after request_timeout_ms.
	// Separate queues mean a blocked tile task occupies only the tile
	// queue's concurrency budget, never the year queue's.
	yq := queue.New(cfg.RequestQueue, logger)
	tq := queue.New(cfg.RequestQueue, logger)
	v := yearvendor.New(yq, fetch, cfg.MaxCachedYears, logger)
	tc := tilecache.New(v, tq, cfg.Rendering, cfg.MaxCachedTiles, logger)
	comp := viewport.New(tc, logger)
	nav := navigator.New(cfg.Navigator, bounds, containerWidthPx, logger)

	e := &Engine{
		cfg:          cfg,
		earliestYear: cfg.EarliestYear,
		logger:       logger,
		yearQueue:    yq,
		tileQueue:    tq,
		vendor:       v,
		tiles:        tc,
		compositor:   comp,
		nav:          nav,
		loopCh:       make(chan func()),
		stopCh:       make(chan struct{}),
	}
	e.wg.Add(1)
	go e.run()
	return e
}

func (e *Engine) run() {
	defer e.wg.Done()
	for {
		select {
		case fn := <-e.loopCh:
			fn()
		case <-e.stopCh:
			return
		}
	}
}

// do runs fn on the engine's event-loop goroutine and waits for it to finish.
func (e *Engine) do(fn func()) {
	done := make(chan struct{})
	e.loopCh <- func() {
		fn()
		close(done)
	}
	<-done
}

func (e *Engine) visibleYear() int {
	return calendar.OffsetToDay(e.earliestYear, e.nav.Offset()).Year
}

// RequestYear mediates a fetch for year through YearVendor, with priority
// derived from the currently visible year (spec.md §4.3).
func (e *Engine) RequestYear(ctx context.Context, year int) (model.YearPayload, error) {
	priority := yearvendor.PriorityForYear(e.visibleYear(), year)
	return e.vendor.RequestYear(ctx, year, priority)
}

// GetTile returns the rendered tile for (facilityID, year), rendering it
// if necessary.
func (e *Engine) GetTile(ctx context.Context, facilityID string, year int) (model.RenderedTile, error) {
	priority := yearvendor.PriorityForYear(e.visibleYear(), year)
	key := model.TileKey{FacilityID: facilityID, Year: year}
	return e.tiles.GetTile(ctx, key, priority)
}

// Composite renders one viewport frame at the current offset_days.
func (e *Engine) Composite(facilities []viewport.FacilityRow, containerWidthPx int, today calendar.Day) viewport.Frame {
	var frame viewport.Frame
	e.do(func() {
		e.nav.SetViewportWidth(containerWidthPx)
		in := viewport.CompositeInput{
			OffsetDays:       e.nav.Offset(),
			EarliestYear:     e.earliestYear,
			ContainerWidthPx: containerWidthPx,
			Facilities:       facilities,
		}
		frame = e.compositor.Composite(in, today)
	})
	return frame
}

// OnPointerDown forwards to the Navigator on the engine's event-loop goroutine.
func (e *Engine) OnPointerDown(xPx, yPx, tMs float64) {
	e.do(func() { e.nav.OnPointerDown(xPx, yPx, tMs) })
}

// OnPointerMove forwards to the Navigator on the engine's event-loop goroutine.
func (e *Engine) OnPointerMove(method navigator.PointerMethod, xPx, yPx, tMs float64) {
	e.do(func() { e.nav.OnPointerMove(method, xPx, yPx, tMs) })
}

// OnPointerUp forwards to the Navigator on the engine's event-loop goroutine.
func (e *Engine) OnPointerUp(method navigator.PointerMethod, tMs float64) {
	e.do(func() { e.nav.OnPointerUp(method, tMs) })
}

// OnPointerCancel forwards to the Navigator on the engine's event-loop goroutine.
func (e *Engine) OnPointerCancel() {
	e.do(func() { e.nav.OnPointerCancel() })
}

// OnWheel forwards to the Navigator on the engine's event-loop goroutine.
func (e *Engine) OnWheel(dxPx, tMs float64) {
	e.do(func() { e.nav.OnWheel(dxPx, tMs) })
}

// OnKey forwards to the Navigator on the engine's event-loop goroutine.
func (e *Engine) OnKey(key string, shift, cmdOrCtrl bool) {
	e.do(func() { e.nav.OnKey(key, shift, cmdOrCtrl, e.earliestYear) })
}

// Tick advances the Navigator's active animation by one frame.
func (e *Engine) Tick(now time.Time) {
	e.do(func() { e.nav.Tick(now) })
}

// Stats returns the full observability snapshot (spec.md §6).
func (e *Engine) Stats() stats.Snapshot {
	var snap navigator.Snapshot
	e.do(func() { snap = e.nav.Snapshot() })
	queueStats := queue.MergeStats(e.yearQueue.Stats(), e.tileQueue.Stats())
	return stats.Build(queueStats, e.vendor.Stats(), e.tiles.Stats(), snap)
}

// Clear empties every cache and rejects all pending/in-flight requests.
func (e *Engine) Clear() {
	e.yearQueue.Clear()
	e.tileQueue.Clear()
	e.vendor.Clear()
	e.tiles.Clear()
}

// Close stops the engine's event-loop goroutine. The Engine must not be
// used afterward.
func (e *Engine) Close() {
	close(e.stopCh)
	e.wg.Wait()
}
