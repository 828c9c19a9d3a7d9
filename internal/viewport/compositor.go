// Package viewport implements the Viewport/Compositor: per-frame blitting
// of the ≤2 overlapping year tiles into each facility's row canvas, plus
// the today-marker overlay (spec.md §4.6, SPEC_FULL.md §4.6a).
package viewport

import (
	"image"
	"image/color"
	"log/slog"

	"golang.org/x/image/vector"

	"github.com/MeKo-Tech/capstripeviz/internal/calendar"
	"github.com/MeKo-Tech/capstripeviz/internal/colormap"
	"github.com/MeKo-Tech/capstripeviz/internal/model"
	"github.com/MeKo-Tech/capstripeviz/internal/tilecache"
	"github.com/MeKo-Tech/capstripeviz/internal/yearvendor"
)

// FacilityRow describes one row of the viewport: which facility, and how
// tall its display band should be in pixels.
type FacilityRow struct {
	FacilityID      string
	DisplayHeightPx int
}

// RowImage is one facility's composited row canvas: row-major RGBA8,
// stride equal to Width*4, suitable for wrapping as an *image.NRGBA
// without copying.
type RowImage struct {
	FacilityID string
	Width      int
	Height     int
	Pixels     []byte
}

// CompositeInput is one frame's composition parameters.
type CompositeInput struct {
	OffsetDays       int
	EarliestYear     int
	ContainerWidthPx int
	Facilities       []FacilityRow
}

// Frame is one composited output: one canvas per requested facility row,
// plus the today-marker's x-coordinate (-1 if the marker day falls outside
// the current window).
type Frame struct {
	ContainerWidthPx int
	Rows             []RowImage
	MarkerX          int
}

var markerColor = color.NRGBA{R: 0xff, G: 0xc2, B: 0x00, A: 0xc8}

// Compositor composes viewport frames from tiles served by a TileCache.
type Compositor struct {
	tiles  *tilecache.TileCache
	logger *slog.Logger
}

// New creates a Compositor over tiles.
func New(tiles *tilecache.TileCache, logger *slog.Logger) *Compositor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Compositor{tiles: tiles, logger: logger}
}

// Composite renders one frame for the given offset. today is the civil
// date used for the today-marker overlay (normally calendar.Yesterday(),
// per spec.md §4.7's latest_data_day); it is a parameter rather than
// computed internally so composition stays a pure, testable function of
// its inputs (spec.md §8: idempotent with respect to offset_days).
func (c *Compositor) Composite(in CompositeInput, today calendar.Day) Frame {
	d0 := calendar.OffsetToDay(in.EarliestYear, in.OffsetDays)
	d1 := d0.AddDays(364)
	y0 := d0.Year
	y1 := d1.Year

	rows := make([]RowImage, len(in.Facilities))
	for i, f := range in.Facilities {
		row := newBackgroundRow(f.FacilityID, in.ContainerWidthPx, f.DisplayHeightPx)
		c.blitYear(&row, model.TileKey{FacilityID: f.FacilityID, Year: y0}, d0, d1, in.ContainerWidthPx, yearvendor.PriorityForYear(y0, y0))
		if y1 != y0 {
			c.blitYear(&row, model.TileKey{FacilityID: f.FacilityID, Year: y1}, d0, d1, in.ContainerWidthPx, yearvendor.PriorityForYear(y0, y1))
		}

		c.tiles.RequestTile(model.TileKey{FacilityID: f.FacilityID, Year: y0 - 1}, yearvendor.PriorityLow)
		c.tiles.RequestTile(model.TileKey{FacilityID: f.FacilityID, Year: y1 + 1}, yearvendor.PriorityLow)

		rows[i] = row
	}

	markerX := -1
	if !today.Before(d0) && !today.After(d1) {
		dayOffset := calendar.DaysBetween(d0, today) - 1
		pixelsPerDay := float64(in.ContainerWidthPx) / 365.0
		x := (float64(dayOffset) + 0.5) * pixelsPerDay
		markerX = int(x)
		for i := range rows {
			drawMarker(&rows[i], x)
		}
	}

	return Frame{ContainerWidthPx: in.ContainerWidthPx, Rows: rows, MarkerX: markerX}
}

// blitYear blits the portion of key's tile falling within [d0, d1] into
// row, at the destination x-range that window maps to. If the tile is not
// yet cached, it kicks off a render (RequestTile) and leaves row untouched
// for this frame; the next animation tick retries (spec.md §4.6 step 6).
func (c *Compositor) blitYear(row *RowImage, key model.TileKey, d0, d1 calendar.Day, containerWidth int, priority int) {
	rt, ready := c.tiles.TryGetTile(key)
	if !ready {
		c.tiles.RequestTile(key, priority)
		return
	}
	if rt.Width == 0 || rt.Height == 0 {
		return
	}

	jan1 := calendar.Jan1(key.Year)
	dec31 := calendar.Dec31(key.Year)
	lo := calendar.Max(d0, jan1)
	hi := calendar.Min(d1, dec31)
	if lo.After(hi) {
		return
	}

	srcStart := calendar.DayIndex(lo)
	srcEnd := calendar.DayIndex(hi)
	destStartOffset := calendar.DaysBetween(d0, lo) - 1
	pixelsPerDay := float64(containerWidth) / 365.0

	for day := srcStart; day <= srcEnd && day < rt.Width; day++ {
		destOffset := destStartOffset + (day - srcStart)
		dxStart := int(float64(destOffset) * pixelsPerDay)
		dxEnd := int(float64(destOffset+1) * pixelsPerDay)
		if dxEnd <= dxStart {
			dxEnd = dxStart + 1
		}
		if dxStart >= containerWidth || dxEnd <= 0 {
			continue
		}
		if dxStart < 0 {
			dxStart = 0
		}
		if dxEnd > containerWidth {
			dxEnd = containerWidth
		}

		for y := 0; y < row.Height; y++ {
			srcY := y * rt.Height / row.Height
			if srcY >= rt.Height {
				srcY = rt.Height - 1
			}
			srcOff := (srcY*rt.Width + day) * 4
			for x := dxStart; x < dxEnd; x++ {
				destOff := (y*row.Width + x) * 4
				copy(row.Pixels[destOff:destOff+4], rt.Pixels[srcOff:srcOff+4])
			}
		}
	}
}

func newBackgroundRow(facilityID string, width, height int) RowImage {
	pixels := make([]byte, width*height*4)
	bg := colormap.Missing()
	for i := 0; i < len(pixels); i += 4 {
		pixels[i+0] = bg.R
		pixels[i+1] = bg.G
		pixels[i+2] = bg.B
		pixels[i+3] = bg.A
	}
	return RowImage{FacilityID: facilityID, Width: width, Height: height, Pixels: pixels}
}

// drawMarker rasterizes a 1px-wide antialiased vertical line at x across
// row's full height, blended over the already-composited pixels.
func drawMarker(row *RowImage, x float64) {
	if row.Width == 0 || row.Height == 0 {
		return
	}
	const halfWidth = 0.5

	ras := vector.NewRasterizer(row.Width, row.Height)
	x0 := float32(x - halfWidth)
	x1 := float32(x + halfWidth)
	h := float32(row.Height)
	ras.MoveTo(x0, 0)
	ras.LineTo(x1, 0)
	ras.LineTo(x1, h)
	ras.LineTo(x0, h)
	ras.ClosePath()

	dst := &image.NRGBA{
		Pix:    row.Pixels,
		Stride: row.Width * 4,
		Rect:   image.Rect(0, 0, row.Width, row.Height),
	}
	src := image.NewUniform(markerColor)
	ras.Draw(dst, dst.Bounds(), src, image.Point{})
}
