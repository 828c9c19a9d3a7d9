// Package model defines the data entities shared across the engine:
// UnitSeries, YearPayload, TileKey and RenderedTile (spec.md §3).
package model

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"time"
)

// DataPoint is one day's capacity factor: either a present percentage or
// the Missing sentinel. Modeled as a sum type (not a nullable float) per
// SPEC_FULL.md's carried-over design note on discriminating missing data
// explicitly rather than via a nullable numeric.
type DataPoint struct {
	present bool
	value   float64
}

// Present constructs a DataPoint carrying a real percentage value.
func Present(value float64) DataPoint { return DataPoint{present: true, value: value} }

// Missing is the sentinel for a day with no data (including every day
// that is today or in the future, per spec.md §3).
var Missing = DataPoint{present: false}

// IsMissing reports whether this point carries no data.
func (d DataPoint) IsMissing() bool { return !d.present }

// Value returns the percentage value and true if present; (0, false) if missing.
func (d DataPoint) Value() (float64, bool) { return d.value, d.present }

// gobDataPoint mirrors DataPoint with exported fields; gob cannot see
// unexported ones directly, so GobEncode/GobDecode bridge through it.
type gobDataPoint struct {
	Present bool
	Value   float64
}

func (d DataPoint) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(gobDataPoint{Present: d.present, Value: d.value}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (d *DataPoint) GobDecode(b []byte) error {
	var aux gobDataPoint
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&aux); err != nil {
		return err
	}
	d.present = aux.Present
	d.value = aux.Value
	return nil
}

// UnitSeries is one generating unit's annual capacity-factor series.
type UnitSeries struct {
	UnitID       string
	FacilityID   string
	FacilityName string
	Region       string
	Network      string
	CapacityMW   float64
	Year         int
	Data         []DataPoint // len(Data) == 365 or 366, index 0 == 1 January
}

// YearPayload is one calendar year's complete set of unit series, as
// fetched from the upstream collaborator.
type YearPayload struct {
	Year      int
	CreatedAt time.Time
	Units     []UnitSeries // ordered by (network, region, facility_name, unit_id)
}

// UnitsForFacility filters the payload's units to one facility, preserving
// the payload's canonical ordering.
func (p YearPayload) UnitsForFacility(facilityID string) []UnitSeries {
	var out []UnitSeries
	for _, u := range p.Units {
		if u.FacilityID == facilityID {
			out = append(out, u)
		}
	}
	return out
}

// TileKey identifies one facility's one year of rendered pixels.
type TileKey struct {
	FacilityID string
	Year       int
}

// Label returns the dedup label used by the request queue and tile cache
// for renders keyed by this TileKey.
func (k TileKey) Label() string {
	return fmt.Sprintf("tile:%s:%d", k.FacilityID, k.Year)
}

func (k TileKey) String() string {
	return fmt.Sprintf("%s/%d", k.FacilityID, k.Year)
}

// RenderedTile is an immutable pre-rendered pixel buffer for one TileKey:
// one column per day, row bands per unit.
type RenderedTile struct {
	Key             TileKey
	Width           int // N days
	Height          int // sum of unit row heights
	Pixels          []byte // row-major RGBA8, len == Width*Height*4
	UnitRowOffsets  []int  // y0 of each unit's band, in payload order
	UnitRowHeights  []int
	RenderedAt      time.Time
}

// SizeBytes is the byte accounting value used when storing this tile in
// an LruCache (spec.md §4.5: size_bytes = width * height * 4).
func (t RenderedTile) SizeBytes() int64 {
	return int64(t.Width) * int64(t.Height) * 4
}
