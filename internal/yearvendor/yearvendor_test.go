package yearvendor

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MeKo-Tech/capstripeviz/internal/config"
	"github.com/MeKo-Tech/capstripeviz/internal/model"
	"github.com/MeKo-Tech/capstripeviz/internal/queue"
)

func testQueue() *queue.RequestQueue {
	cfg := config.Default().RequestQueue
	cfg.MaxConcurrent = 4
	cfg.MinInterval = 0
	cfg.RequestTimeout = time.Second
	return queue.New(cfg, nil)
}

func samplePayload(year int, n int) model.YearPayload {
	data := make([]model.DataPoint, n)
	for i := range data {
		data[i] = model.Present(float64(i % 101))
	}
	return model.YearPayload{
		Year: year,
		Units: []model.UnitSeries{
			{UnitID: "u1", FacilityID: "f1", Region: "north", CapacityMW: 100, Year: year, Data: data},
		},
	}
}

func TestRequestYearCachesOnSuccess(t *testing.T) {
	var calls int32
	fetch := func(ctx context.Context, year int) (model.YearPayload, error) {
		atomic.AddInt32(&calls, 1)
		return samplePayload(year, 365), nil
	}
	v := New(testQueue(), fetch, 5, nil)

	p1, err := v.RequestYear(context.Background(), 2023, PriorityHigh)
	if err != nil {
		t.Fatal(err)
	}
	p2, err := v.RequestYear(context.Background(), 2023, PriorityHigh)
	if err != nil {
		t.Fatal(err)
	}
	if p1.Year != p2.Year || len(p1.Units) != len(p2.Units) {
		t.Fatal("round-tripped payload mismatch")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("fetch called %d times, want 1 (second call should hit cache)", calls)
	}
	if v.Stats().Count != 1 {
		t.Fatalf("cache count = %d, want 1", v.Stats().Count)
	}
}

func TestRequestYearConcurrentDedup(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	fetch := func(ctx context.Context, year int) (model.YearPayload, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return samplePayload(year, 365), nil
	}
	v := New(testQueue(), fetch, 5, nil)

	var wg sync.WaitGroup
	results := make([]model.YearPayload, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			p, err := v.RequestYear(context.Background(), 2024, PriorityHigh)
			if err != nil {
				t.Error(err)
				return
			}
			results[idx] = p
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("fetch called %d times, want exactly 1 (label dedup)", calls)
	}
	for _, p := range results {
		if p.Year != 2024 {
			t.Fatalf("got payload for year %d, want 2024", p.Year)
		}
	}
}

func TestPriorityForYear(t *testing.T) {
	if got := PriorityForYear(2024, 2024); got != PriorityHigh {
		t.Errorf("visible year = %d, want PriorityHigh", got)
	}
	if got := PriorityForYear(2024, 2023); got != PriorityMedium {
		t.Errorf("prior neighbour = %d, want PriorityMedium", got)
	}
	if got := PriorityForYear(2024, 2025); got != PriorityMedium {
		t.Errorf("next neighbour = %d, want PriorityMedium", got)
	}
	if got := PriorityForYear(2024, 2019); got != PriorityLow {
		t.Errorf("distant year = %d, want PriorityLow", got)
	}
}

func TestMeanOverRangeIgnoresMissing(t *testing.T) {
	data := []model.DataPoint{model.Present(10), model.Missing, model.Present(30)}
	mean, ok := MeanOverRange(data, 0, 2)
	if !ok || mean != 20 {
		t.Fatalf("mean = %v, ok = %v, want 20, true", mean, ok)
	}
}

func TestMeanOverRangeAllMissing(t *testing.T) {
	data := []model.DataPoint{model.Missing, model.Missing}
	_, ok := MeanOverRange(data, 0, 1)
	if ok {
		t.Fatal("expected ok = false when no day is present")
	}
}

func TestFacilityMeanAndRegionMean(t *testing.T) {
	payload := model.YearPayload{
		Units: []model.UnitSeries{
			{FacilityID: "f1", Region: "north", Data: []model.DataPoint{model.Present(10), model.Present(20)}},
			{FacilityID: "f2", Region: "north", Data: []model.DataPoint{model.Present(30), model.Present(40)}},
		},
	}
	fm, ok := FacilityMean(payload, "f1", 0, 1)
	if !ok || fm != 15 {
		t.Fatalf("FacilityMean = %v, want 15", fm)
	}
	rm, ok := RegionMean(payload, "north", 0, 1)
	if !ok || rm != 25 {
		t.Fatalf("RegionMean = %v, want 25", rm)
	}
}
