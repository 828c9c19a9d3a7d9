package engine

import (
	"context"
	"testing"
	"time"

	"github.com/MeKo-Tech/capstripeviz/internal/calendar"
	"github.com/MeKo-Tech/capstripeviz/internal/config"
	"github.com/MeKo-Tech/capstripeviz/internal/fetchsim"
	"github.com/MeKo-Tech/capstripeviz/internal/navigator"
	"github.com/MeKo-Tech/capstripeviz/internal/viewport"
)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := config.Default()
	cfg.RequestQueue.MinInterval = 0
	cfg.RequestQueue.RequestTimeout = 2 * time.Second
	cfg.EarliestYear = 2020

	sim := fetchsim.New(fetchsim.Config{Seed: 1, LatencyMin: time.Millisecond, LatencyMax: 2 * time.Millisecond})
	bounds := navigator.Bounds{Min: 0, Max: calendar.DayToOffset(cfg.EarliestYear, calendar.Yesterday())}
	e := New(cfg, sim.FetchYear, bounds, 365, nil)
	t.Cleanup(e.Close)
	return e
}

func TestEngineRequestYearAndGetTile(t *testing.T) {
	e := testEngine(t)
	payload, err := e.RequestYear(context.Background(), 2023)
	if err != nil {
		t.Fatal(err)
	}
	if len(payload.Units) == 0 {
		t.Fatal("expected fetchsim to populate units")
	}

	facility := payload.Units[0].FacilityID
	tile, err := e.GetTile(context.Background(), facility, 2023)
	if err != nil {
		t.Fatal(err)
	}
	if tile.Width != 365 {
		t.Fatalf("Width = %d, want 365", tile.Width)
	}
}

func TestEngineCompositeProducesRowsPerFacility(t *testing.T) {
	e := testEngine(t)
	payload, err := e.RequestYear(context.Background(), 2023)
	if err != nil {
		t.Fatal(err)
	}

	facilities := make([]viewport.FacilityRow, 0, len(payload.Units))
	seen := map[string]bool{}
	for _, u := range payload.Units {
		if seen[u.FacilityID] {
			continue
		}
		seen[u.FacilityID] = true
		facilities = append(facilities, viewport.FacilityRow{FacilityID: u.FacilityID, DisplayHeightPx: 20})
	}

	frame := e.Composite(facilities, 365, calendar.New(2099, 1, 1))
	if len(frame.Rows) != len(facilities) {
		t.Fatalf("got %d rows, want %d", len(frame.Rows), len(facilities))
	}
}

func TestEngineNavigatorEventsAreOrdered(t *testing.T) {
	e := testEngine(t)
	e.OnPointerDown(0, 0, 0)
	e.OnPointerMove(navigator.Mouse, 100, 0, 10)
	e.OnPointerUp(navigator.Mouse, 20)

	snap := e.Stats().Navigator
	if snap.State != "idle" {
		t.Fatalf("state = %s, want idle after in-bounds mouse release", snap.State)
	}
}

func TestEngineStatsReportsYearCache(t *testing.T) {
	e := testEngine(t)
	if _, err := e.RequestYear(context.Background(), 2023); err != nil {
		t.Fatal(err)
	}
	snap := e.Stats()
	if snap.YearCache.Count != 1 {
		t.Fatalf("YearCache.Count = %d, want 1", snap.YearCache.Count)
	}
}

func TestEngineClearEmptiesCaches(t *testing.T) {
	e := testEngine(t)
	if _, err := e.RequestYear(context.Background(), 2023); err != nil {
		t.Fatal(err)
	}
	e.Clear()
	if e.Stats().YearCache.Count != 0 {
		t.Fatal("expected year cache empty after Clear")
	}
}
