package tile

import (
	"testing"
	"time"

	"github.com/MeKo-Tech/capstripeviz/internal/config"
	"github.com/MeKo-Tech/capstripeviz/internal/model"
)

func testRenderingConfig() config.RenderingConfig {
	return config.RenderingConfig{
		MinRowShort:   6,
		MinRowLong:    10,
		MaxRow:        40,
		CapacityPerPx: 30,
		ShortLabels:   false,
	}
}

func TestRowHeightClamp(t *testing.T) {
	cfg := testRenderingConfig()
	if got := RowHeight(0, cfg); got != cfg.MinRowLong {
		t.Errorf("RowHeight(0) = %d, want min_row_long %d", got, cfg.MinRowLong)
	}
	if got := RowHeight(3000, cfg); got != cfg.MaxRow {
		t.Errorf("RowHeight(3000) = %d, want max_row %d", got, cfg.MaxRow)
	}
	if got := RowHeight(300, cfg); got != 10 {
		t.Errorf("RowHeight(300) = %d, want 10 (300/30)", got)
	}
}

func TestRowHeightShortLabels(t *testing.T) {
	cfg := testRenderingConfig()
	cfg.ShortLabels = true
	if got := RowHeight(0, cfg); got != cfg.MinRowShort {
		t.Errorf("RowHeight(0) with short labels = %d, want %d", got, cfg.MinRowShort)
	}
}

func makeUnit(facility string, year, n int, capacityMW float64) model.UnitSeries {
	data := make([]model.DataPoint, n)
	for i := range data {
		data[i] = model.Present(float64(i % 101))
	}
	return model.UnitSeries{
		UnitID:       facility + "-u1",
		FacilityID:   facility,
		FacilityName: facility,
		CapacityMW:   capacityMW,
		Year:         year,
		Data:         data,
	}
}

func TestRenderDimensions(t *testing.T) {
	cfg := testRenderingConfig()
	units := []model.UnitSeries{
		makeUnit("f1", 2023, 365, 300),
		makeUnit("f1", 2023, 365, 60),
	}
	key := model.TileKey{FacilityID: "f1", Year: 2023}
	tl := Render(key, units, cfg, func() time.Time { return time.Unix(0, 0) })

	if tl.Width != 365 {
		t.Errorf("Width = %d, want 365", tl.Width)
	}
	wantHeight := RowHeight(300, cfg) + RowHeight(60, cfg)
	if tl.Height != wantHeight {
		t.Errorf("Height = %d, want %d", tl.Height, wantHeight)
	}
	if len(tl.Pixels) != tl.Width*tl.Height*4 {
		t.Errorf("Pixels len = %d, want %d", len(tl.Pixels), tl.Width*tl.Height*4)
	}
}

func TestRenderIsPureAndDeterministic(t *testing.T) {
	cfg := testRenderingConfig()
	units := []model.UnitSeries{makeUnit("f1", 2023, 365, 300)}
	key := model.TileKey{FacilityID: "f1", Year: 2023}

	a := Render(key, units, cfg, func() time.Time { return time.Unix(0, 0) })
	b := Render(key, units, cfg, func() time.Time { return time.Unix(0, 0) })

	if len(a.Pixels) != len(b.Pixels) {
		t.Fatal("pixel buffer length differs between renders")
	}
	for i := range a.Pixels {
		if a.Pixels[i] != b.Pixels[i] {
			t.Fatalf("pixel %d differs: %d vs %d", i, a.Pixels[i], b.Pixels[i])
		}
	}
}

func TestMissingDayRendersNeutral(t *testing.T) {
	cfg := testRenderingConfig()
	u := makeUnit("f1", 2023, 365, 300)
	u.Data[10] = model.Missing
	key := model.TileKey{FacilityID: "f1", Year: 2023}
	tl := Render(key, []model.UnitSeries{u}, cfg, nil)

	off := (0*tl.Width + 10) * 4
	if tl.Pixels[off] == 0 && tl.Pixels[off+1] == 0 && tl.Pixels[off+2] == 0 {
		t.Fatal("missing day should render the neutral tone, not black")
	}
}
