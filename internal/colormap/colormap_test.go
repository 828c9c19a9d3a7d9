package colormap

import "testing"

func TestMissingIsNeutral(t *testing.T) {
	if Missing() != NeutralMissing {
		t.Fatal("Missing() should return the neutral tone")
	}
}

func TestBelowCutoffIsRed(t *testing.T) {
	c := Color(10)
	if c != lowColor {
		t.Fatalf("Color(10) = %+v, want lowColor %+v", c, lowColor)
	}
	c = Color(24.9)
	if c != lowColor {
		t.Fatalf("Color(24.9) should still be below cutoff, got %+v", c)
	}
}

func TestAboveCutoffIsGrayscaleRamp(t *testing.T) {
	low := Color(25)
	high := Color(100)
	if low.R == 0 || high.R == 0 {
		t.Fatal("ramp colors should not be fully black by construction")
	}
	if high.R >= low.R {
		t.Fatalf("higher capacity factor should render darker: low=%v high=%v", low, high)
	}
}

func TestOutOfRangeClampsBeforeLookup(t *testing.T) {
	over := Color(150)
	atMax := Color(100)
	if over != atMax {
		t.Fatalf("values above 100 should clamp to 100's color: %+v vs %+v", over, atMax)
	}

	under := Color(-10)
	red := Color(0)
	if under != red {
		t.Fatalf("negative values should clamp to the red band: %+v vs %+v", under, red)
	}
}

func TestTableIsDeterministic(t *testing.T) {
	for pct := 0; pct <= 100; pct++ {
		a := Color(float64(pct))
		b := Color(float64(pct))
		if a != b {
			t.Fatalf("Color(%d) not deterministic: %+v vs %+v", pct, a, b)
		}
	}
}
