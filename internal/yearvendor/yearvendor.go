// Package yearvendor implements YearVendor: the owner of the serialised
// year-payload cache that mediates every upstream fetch through the
// request queue (spec.md §4.3).
//
// Concurrency: the execute callback submitted to the queue runs on its own
// goroutine (internal/queue.RequestQueue.run), not the engine's single
// event-loop goroutine, so cache access here is guarded by its own mutex —
// the same worker-pool-plus-shared-state shape as internal/queue itself,
// rather than relying on single-goroutine ownership the way a component
// reached only through the engine loop could.
package yearvendor

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"log/slog"
	"sync"

	"github.com/MeKo-Tech/capstripeviz/internal/lru"
	"github.com/MeKo-Tech/capstripeviz/internal/model"
	"github.com/MeKo-Tech/capstripeviz/internal/queue"
)

// Priority bands for requestYear, per spec.md §4.3.
const (
	PriorityHigh   = 0 // the currently-visible year
	PriorityMedium = 1 // a neighbour of the currently-visible year
	PriorityLow    = 2 // everything else
)

// PriorityForYear derives a requestYear priority band for year given which
// year is currently visible, per spec.md §4.3.
func PriorityForYear(visibleYear, year int) int {
	switch year {
	case visibleYear:
		return PriorityHigh
	case visibleYear - 1, visibleYear + 1:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// FetchYear is the single-call upstream contract: fetch one calendar year's
// complete set of unit series. Implementations must respect ctx and should
// return errors classified via capstriperr so the queue can judge retryability.
type FetchYear func(ctx context.Context, year int) (model.YearPayload, error)

// Vendor owns the bounded serialised-year cache and mediates fetches
// through a RequestQueue.
type Vendor struct {
	queue  *queue.RequestQueue
	fetch  FetchYear
	logger *slog.Logger

	mu    sync.Mutex
	cache *lru.Cache[int, []byte]
}

// New creates a Vendor bounded to maxCachedYears entries.
func New(q *queue.RequestQueue, fetch FetchYear, maxCachedYears int, logger *slog.Logger) *Vendor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Vendor{
		queue:  q,
		fetch:  fetch,
		logger: logger,
		cache:  lru.New[int, []byte](maxCachedYears),
	}
}

// RequestYear returns year's payload, from cache if live, else by mediating
// one fetch through the queue (deduped by label across concurrent callers)
// and caching the serialised result on success. On permanent failure the
// error is surfaced and nothing is cached, per spec.md §4.3 step 4.
func (v *Vendor) RequestYear(ctx context.Context, year int, priority int) (model.YearPayload, error) {
	if raw, ok := v.cachedBytes(year); ok {
		return decodeYearPayload(raw)
	}

	label := yearLabel(year)
	fut := v.queue.Submit(queue.SubmitRequest{
		Priority: priority,
		Label:    label,
		Execute: func(ctx context.Context) (any, error) {
			return v.fetch(ctx, year)
		},
	})

	val, err := fut.Wait(ctx)
	if err != nil {
		return model.YearPayload{}, err
	}
	payload := val.(model.YearPayload)

	raw, encErr := encodeYearPayload(payload)
	if encErr != nil {
		v.logger.Error("vendor: failed to serialise year payload, not caching", "year", year, "error", encErr)
		return payload, nil
	}
	v.mu.Lock()
	_ = v.cache.Set(year, raw, int64(len(raw)), label, nil)
	v.mu.Unlock()
	return payload, nil
}

func (v *Vendor) cachedBytes(year int) ([]byte, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cache.Get(year)
}

func yearLabel(year int) string {
	return fmt.Sprintf("year:%d", year)
}

// Clear empties the year cache.
func (v *Vendor) Clear() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cache.Clear()
}

// Stats reports year-cache occupancy.
func (v *Vendor) Stats() lru.Stats {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cache.Stats()
}

func encodeYearPayload(p model.YearPayload) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeYearPayload(raw []byte) (model.YearPayload, error) {
	var p model.YearPayload
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&p); err != nil {
		return model.YearPayload{}, err
	}
	return p, nil
}

// MeanOverRange computes the arithmetic mean of present values in
// data[start:end+1] (inclusive), ignoring missing days. ok is false if no
// day in range is present, per spec.md §4.3.
func MeanOverRange(data []model.DataPoint, start, end int) (mean float64, ok bool) {
	if start < 0 {
		start = 0
	}
	if end >= len(data) {
		end = len(data) - 1
	}
	var sum float64
	var count int
	for i := start; i <= end && i < len(data); i++ {
		if v, present := data[i].Value(); present {
			sum += v
			count++
		}
	}
	if count == 0 {
		return 0, false
	}
	return sum / float64(count), true
}

// FacilityMean computes the mean capacity factor across all of one
// facility's units within [start, end], ignoring missing days.
func FacilityMean(payload model.YearPayload, facilityID string, start, end int) (float64, bool) {
	return meanAcrossUnits(payload.UnitsForFacility(facilityID), start, end)
}

// RegionMean computes the mean capacity factor across all units in one
// region within [start, end], ignoring missing days.
func RegionMean(payload model.YearPayload, region string, start, end int) (float64, bool) {
	var units []model.UnitSeries
	for _, u := range payload.Units {
		if u.Region == region {
			units = append(units, u)
		}
	}
	return meanAcrossUnits(units, start, end)
}

func meanAcrossUnits(units []model.UnitSeries, start, end int) (float64, bool) {
	var sum float64
	var count int
	for _, u := range units {
		lo, hi := start, end
		if lo < 0 {
			lo = 0
		}
		if hi >= len(u.Data) {
			hi = len(u.Data) - 1
		}
		for i := lo; i <= hi && i < len(u.Data); i++ {
			if v, present := u.Data[i].Value(); present {
				sum += v
				count++
			}
		}
	}
	if count == 0 {
		return 0, false
	}
	return sum / float64(count), true
}
