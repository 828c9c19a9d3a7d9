package tilecache

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MeKo-Tech/capstripeviz/internal/config"
	"github.com/MeKo-Tech/capstripeviz/internal/model"
	"github.com/MeKo-Tech/capstripeviz/internal/queue"
	"github.com/MeKo-Tech/capstripeviz/internal/yearvendor"
)

func testSetup(fetchCalls *int32) (*TileCache, *queue.RequestQueue) {
	cfg := config.Default()
	cfg.RequestQueue.MinInterval = 0
	cfg.RequestQueue.RequestTimeout = time.Second
	q := queue.New(cfg.RequestQueue, nil)

	fetch := func(ctx context.Context, year int) (model.YearPayload, error) {
		if fetchCalls != nil {
			atomic.AddInt32(fetchCalls, 1)
		}
		data := make([]model.DataPoint, 365)
		for i := range data {
			data[i] = model.Present(float64(i % 101))
		}
		return model.YearPayload{
			Year: year,
			Units: []model.UnitSeries{
				{UnitID: "u1", FacilityID: "f1", CapacityMW: 300, Year: year, Data: data},
			},
		}, nil
	}
	v := yearvendor.New(q, fetch, 5, nil)
	tc := New(v, q, cfg.Rendering, 5, nil)
	return tc, q
}

func TestGetTileRendersOnMiss(t *testing.T) {
	tc, _ := testSetup(nil)
	key := model.TileKey{FacilityID: "f1", Year: 2023}

	rt, err := tc.GetTile(context.Background(), key, yearvendor.PriorityHigh)
	if err != nil {
		t.Fatal(err)
	}
	if rt.Width != 365 {
		t.Fatalf("Width = %d, want 365", rt.Width)
	}
	if _, ok := tc.TryGetTile(key); !ok {
		t.Fatal("tile should be cached after render")
	}
}

func TestGetTileCacheHitSkipsRender(t *testing.T) {
	var calls int32
	tc, _ := testSetup(&calls)
	key := model.TileKey{FacilityID: "f1", Year: 2023}

	if _, err := tc.GetTile(context.Background(), key, yearvendor.PriorityHigh); err != nil {
		t.Fatal(err)
	}
	if _, err := tc.GetTile(context.Background(), key, yearvendor.PriorityHigh); err != nil {
		t.Fatal(err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("upstream fetched %d times, want 1", calls)
	}
}

func TestRequestTileIsNonBlockingAndIdempotent(t *testing.T) {
	tc, _ := testSetup(nil)
	key := model.TileKey{FacilityID: "f1", Year: 2023}

	tc.RequestTile(key, yearvendor.PriorityHigh)
	tc.RequestTile(key, yearvendor.PriorityHigh)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, ok := tc.TryGetTile(key); ok {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("tile never became ready after RequestTile")
}

func TestClearEmptiesCache(t *testing.T) {
	tc, _ := testSetup(nil)
	key := model.TileKey{FacilityID: "f1", Year: 2023}
	if _, err := tc.GetTile(context.Background(), key, yearvendor.PriorityHigh); err != nil {
		t.Fatal(err)
	}
	tc.Clear()
	if _, ok := tc.TryGetTile(key); ok {
		t.Fatal("expected cache empty after Clear")
	}
}
