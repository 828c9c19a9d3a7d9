// Package colormap provides the pure function table from capacity factor
// to a 32-bit pixel (spec.md §4.4). The table is precomputed once for
// integer percentages 0-100; non-integer values are rounded and clamped.
package colormap

import (
	"image/color"
	"math"
)

// NeutralMissing is the color for a day with no data.
var NeutralMissing = color.RGBA{R: 0xe8, G: 0xe8, B: 0xe4, A: 0xff}

const lowCutoff = 25 // capacity factor below this renders red, per spec.md §4.4

var lowColor = color.RGBA{R: 0xc0, G: 0x2a, B: 0x2a, A: 0xff}

var table [101]color.RGBA

func init() {
	for pct := 0; pct <= 100; pct++ {
		table[pct] = computeColor(pct)
	}
}

// computeColor implements the grayscale-darker-with-higher-values ramp for
// percentages at or above lowCutoff, and the fixed red below it.
func computeColor(pct int) color.RGBA {
	if pct < lowCutoff {
		return lowColor
	}
	// Map [lowCutoff, 100] onto a grayscale ramp from light to dark.
	const lightest = 0xf0
	const darkest = 0x20
	span := 100 - lowCutoff
	t := float64(pct-lowCutoff) / float64(span)
	shade := uint8(math.Round(float64(lightest) - t*float64(lightest-darkest)))
	return color.RGBA{R: shade, G: shade, B: shade, A: 0xff}
}

// clampPercent rounds and clamps a raw capacity-factor value into [0, 100],
// matching spec.md §4.4 ("non-integer values are rounded and clamped").
func clampPercent(value float64) int {
	r := int(math.Round(value))
	if r < 0 {
		return 0
	}
	if r > 100 {
		return 100
	}
	return r
}

// Color returns the pixel for a present value. The red cutoff is checked on
// the raw value, before rounding. For a missing day use Missing().
func Color(value float64) color.RGBA {
	if value < lowCutoff {
		return lowColor
	}
	return table[clampPercent(value)]
}

// Missing returns the pixel for a day with no data.
func Missing() color.RGBA {
	return NeutralMissing
}
