// Package fetchsim is the one concrete FetchYear implementation this repo
// ships: a deterministic in-memory generator standing in for the real
// upstream collaborator (spec.md §6), with configurable latency and
// failure injection so the queue's retry/backoff/circuit-breaker paths are
// exercisable without a network (SPEC_FULL.md §6).
package fetchsim

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/MeKo-Tech/capstripeviz/internal/calendar"
	"github.com/MeKo-Tech/capstripeviz/internal/capstriperr"
	"github.com/MeKo-Tech/capstripeviz/internal/model"
)

type unitDef struct {
	id         string
	capacityMW float64
	phase      float64
	amplitude  float64
	baseline   float64
}

type facilityDef struct {
	id       string
	name     string
	region   string
	network  string
	units    []unitDef
}

// defaultFleet is a small fictional generating fleet spanning two regions
// and two networks, enough to exercise per-facility tile rows and
// per-region aggregation without a real data source. Listed in the
// payload's canonical (network, region, facility_name, unit_id) order.
func defaultFleet() []facilityDef {
	return []facilityDef{
		{
			id: "carrow-peaker", name: "Carrow Peaking Plant", region: "south", network: "interconnect",
			units: []unitDef{
				{id: "carrow-peaker-u1", capacityMW: 90, phase: 2.4, amplitude: 15, baseline: 20},
			},
		},
		{
			id: "alinta-solar", name: "Alinta Solar Farm", region: "north", network: "main-grid",
			units: []unitDef{
				{id: "alinta-solar-u1", capacityMW: 120, phase: 0.0, amplitude: 35, baseline: 45},
			},
		},
		{
			id: "bremer-wind", name: "Bremer Wind Park", region: "north", network: "main-grid",
			units: []unitDef{
				{id: "bremer-wind-u1", capacityMW: 220, phase: 1.2, amplitude: 25, baseline: 38},
				{id: "bremer-wind-u2", capacityMW: 180, phase: 1.5, amplitude: 22, baseline: 36},
			},
		},
	}
}

// Config configures the simulator's latency and failure injection.
type Config struct {
	Seed        int64
	LatencyMin  time.Duration
	LatencyMax  time.Duration
	FailureRate float64 // probability in [0,1] that a call fails
}

// DefaultConfig returns a simulator configuration with light latency and
// no injected failures — deterministic and fast, for everyday use.
func DefaultConfig() Config {
	return Config{Seed: 1, LatencyMin: 5 * time.Millisecond, LatencyMax: 20 * time.Millisecond, FailureRate: 0}
}

// Simulator generates deterministic YearPayloads for a fixed fictional
// fleet, simulating upstream latency and transient/permanent failures.
type Simulator struct {
	cfg   Config
	fleet []facilityDef

	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a Simulator. The same Config and call sequence always
// produces the same sequence of outcomes (latency jitter and injected
// failures included), since the rng is seeded explicitly rather than via
// the unavailable time-based entropy this environment forbids.
func New(cfg Config) *Simulator {
	return &Simulator{
		cfg:   cfg,
		fleet: defaultFleet(),
		rng:   rand.New(rand.NewSource(cfg.Seed)),
	}
}

// FetchYear implements internal/yearvendor.FetchYear.
func (s *Simulator) FetchYear(ctx context.Context, year int) (model.YearPayload, error) {
	delay, shouldFail, failKind := s.rollLocked()

	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return model.YearPayload{}, capstriperr.Wrap(capstriperr.Cancelled, ctx.Err(), "fetchsim: context done while simulating latency")
	}

	if shouldFail {
		if failKind == capstriperr.PermanentUpstream {
			return model.YearPayload{}, capstriperr.New(capstriperr.PermanentUpstream, "fetchsim: simulated permanent upstream failure for year %d", year)
		}
		return model.YearPayload{}, capstriperr.New(capstriperr.TransientUpstream, "fetchsim: simulated transient upstream failure for year %d", year)
	}

	return s.generatePayload(year), nil
}

func (s *Simulator) rollLocked() (delay time.Duration, shouldFail bool, kind capstriperr.Kind) {
	s.mu.Lock()
	defer s.mu.Unlock()

	span := s.cfg.LatencyMax - s.cfg.LatencyMin
	d := s.cfg.LatencyMin
	if span > 0 {
		d += time.Duration(s.rng.Int63n(int64(span)))
	}

	fail := s.cfg.FailureRate > 0 && s.rng.Float64() < s.cfg.FailureRate
	k := capstriperr.TransientUpstream
	if fail && s.rng.Float64() < 0.2 {
		k = capstriperr.PermanentUpstream
	}
	return d, fail, k
}

func (s *Simulator) generatePayload(year int) model.YearPayload {
	n := calendar.DaysInYear(year)
	units := make([]model.UnitSeries, 0, len(s.fleet)*2)
	for _, f := range s.fleet {
		for _, u := range f.units {
			units = append(units, model.UnitSeries{
				UnitID:       u.id,
				FacilityID:   f.id,
				FacilityName: f.name,
				Region:       f.region,
				Network:      f.network,
				CapacityMW:   u.capacityMW,
				Year:         year,
				Data:         generateSeries(u, n),
			})
		}
	}
	return model.YearPayload{Year: year, CreatedAt: time.Time{}, Units: units}
}

// generateSeries produces a deterministic pure function of (unit, day): a
// smooth seasonal sine wave, with every 37th day marked missing so the
// "missing day" rendering path is always exercised.
func generateSeries(u unitDef, n int) []model.DataPoint {
	data := make([]model.DataPoint, n)
	for i := 0; i < n; i++ {
		if i%37 == 0 {
			data[i] = model.Missing
			continue
		}
		v := u.baseline + u.amplitude*math.Sin(2*math.Pi*float64(i)/365+u.phase)
		if v < 0 {
			v = 0
		}
		if v > 100 {
			v = 100
		}
		data[i] = model.Present(v)
	}
	return data
}
