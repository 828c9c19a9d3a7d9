// Package tile implements FacilityYearTile: the pure function from a
// facility's unit series for one year to a pre-rendered pixel buffer
// (spec.md §4.4).
package tile

import (
	"time"

	"github.com/MeKo-Tech/capstripeviz/internal/colormap"
	"github.com/MeKo-Tech/capstripeviz/internal/config"
	"github.com/MeKo-Tech/capstripeviz/internal/model"
)

// RowHeight computes h(u) = clamp(round(capacity_mw / capacity_per_px),
// min_row, max_row) per spec.md §4.4, where min_row depends on the
// "short labels" rendering flag.
func RowHeight(capacityMW float64, cfg config.RenderingConfig) int {
	minRow := cfg.MinRowLong
	if cfg.ShortLabels {
		minRow = cfg.MinRowShort
	}
	divisor := cfg.CapacityPerPx
	if divisor <= 0 {
		divisor = 1
	}
	h := int(roundHalfAwayFromZero(capacityMW / float64(divisor)))
	return clampInt(h, minRow, cfg.MaxRow)
}

func roundHalfAwayFromZero(f float64) float64 {
	if f >= 0 {
		return float64(int(f + 0.5))
	}
	return float64(int(f - 0.5))
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// Render implements FacilityYearTile: renders one facility's units for one
// year into a RenderedTile. units must all share the payload's year and
// day count; Render does not re-validate that invariant (the caller,
// TileCache, slices a single YearPayload so it always holds).
func Render(key model.TileKey, units []model.UnitSeries, cfg config.RenderingConfig, now func() time.Time) model.RenderedTile {
	width := 0
	if len(units) > 0 {
		width = len(units[0].Data)
	}

	heights := make([]int, len(units))
	offsets := make([]int, len(units))
	totalHeight := 0
	for i, u := range units {
		h := RowHeight(u.CapacityMW, cfg)
		heights[i] = h
		offsets[i] = totalHeight
		totalHeight += h
	}

	pixels := make([]byte, width*totalHeight*4)

	for i, u := range units {
		y0 := offsets[i]
		h := heights[i]
		for day := 0; day < width && day < len(u.Data); day++ {
			var rgba [4]byte
			if u.Data[day].IsMissing() {
				c := colormap.Missing()
				rgba = [4]byte{c.R, c.G, c.B, c.A}
			} else {
				v, _ := u.Data[day].Value()
				c := colormap.Color(v)
				rgba = [4]byte{c.R, c.G, c.B, c.A}
			}
			for row := y0; row < y0+h; row++ {
				off := (row*width + day) * 4
				pixels[off+0] = rgba[0]
				pixels[off+1] = rgba[1]
				pixels[off+2] = rgba[2]
				pixels[off+3] = rgba[3]
			}
		}
	}

	nowFn := now
	if nowFn == nil {
		nowFn = time.Now
	}

	return model.RenderedTile{
		Key:            key,
		Width:          width,
		Height:         totalHeight,
		Pixels:         pixels,
		UnitRowOffsets: offsets,
		UnitRowHeights: heights,
		RenderedAt:     nowFn(),
	}
}
