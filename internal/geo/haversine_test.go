package geo

import (
	"math"
	"testing"
)

func TestZeroDistance(t *testing.T) {
	d := DistanceMeters(28.6139, 77.2090, 28.6139, 77.2090)
	if math.IsNaN(d) {
		t.Fatal("identical points produced NaN")
	}
	if d != 0 {
		t.Errorf("distance between identical points = %f, want 0", d)
	}
}

func TestShortDistance(t *testing.T) {
	// ~0.000404 degrees of latitude is roughly 45m.
	d := DistanceMeters(28.6139, 77.2090, 28.6139+0.000404, 77.2090)
	if d < 40 || d > 50 {
		t.Errorf("distance = %.2fm, want ~45m", d)
	}
}

func TestAntipodalNoNaN(t *testing.T) {
	d := DistanceMeters(0, 0, 0, 180)
	if math.IsNaN(d) {
		t.Fatal("antipodal points produced NaN")
	}
	// Half the earth's circumference on the sphere model.
	want := math.Pi * 6371000
	if math.Abs(d-want) > 1000 {
		t.Errorf("antipodal distance = %.0fm, want ~%.0fm", d, want)
	}
}

func TestSymmetry(t *testing.T) {
	a := DistanceMeters(28.6139, 77.2090, 13.0827, 80.2707)
	b := DistanceMeters(13.0827, 80.2707, 28.6139, 77.2090)
	if math.Abs(a-b) > 1e-6 {
		t.Errorf("distance not symmetric: %f vs %f", a, b)
	}
}

func TestKnownCityPair(t *testing.T) {
	// Delhi to Chennai is about 1760km great-circle.
	d := DistanceMeters(28.6139, 77.2090, 13.0827, 80.2707)
	if d < 1_700_000 || d > 1_820_000 {
		t.Errorf("Delhi-Chennai = %.0fm, want ~1.76e6m", d)
	}
}
