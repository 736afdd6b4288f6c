package geo

import (
	"math"
	"testing"
)

// axis builds a coordinate axis from start to end (inclusive) with the
// given step.
func axis(start, end, step float64) []float64 {
	var out []float64
	for v := start; v <= end+step/2; v += step {
		out = append(out, v)
	}
	return out
}

func TestRegionIndicesMatchesBruteForce(t *testing.T) {
	lats := axis(30.0, 45.0, 0.05)
	lons := axis(130.0, 145.0, 0.05)

	tests := []struct {
		name      string
		centerLat float64
		centerLon float64
		sizeKm    float64
	}{
		{"tokyo-ish 20km", 35.6895, 139.6917, 20},
		{"mid grid 100km", 40.0, 140.0, 100},
		{"edge of grid", 30.0, 130.0, 50},
		{"small region", 37.5, 137.5, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			latIdx, lonIdx := RegionIndices(lats, lons, tt.centerLat, tt.centerLon, tt.sizeKm)

			radius := tt.sizeKm / 2
			latRange := radius / KmPerDegreeLat
			lonRange := radius / (KmPerDegreeLat * math.Cos(tt.centerLat*math.Pi/180))

			var wantLat []int
			for i, v := range lats {
				if v >= tt.centerLat-latRange && v <= tt.centerLat+latRange {
					wantLat = append(wantLat, i)
				}
			}
			var wantLon []int
			for i, v := range lons {
				if v >= tt.centerLon-lonRange && v <= tt.centerLon+lonRange {
					wantLon = append(wantLon, i)
				}
			}

			if !equalInts(latIdx, wantLat) {
				t.Errorf("lat indices = %v, want %v", latIdx, wantLat)
			}
			if !equalInts(lonIdx, wantLon) {
				t.Errorf("lon indices = %v, want %v", lonIdx, wantLon)
			}
			for i := 1; i < len(latIdx); i++ {
				if latIdx[i] <= latIdx[i-1] {
					t.Fatalf("lat indices not strictly increasing: %v", latIdx)
				}
			}
		})
	}
}

func TestRegionIndicesSizeZero(t *testing.T) {
	lats := axis(30.0, 45.0, 0.05)
	lons := axis(130.0, 145.0, 0.05)

	// A zero-size region must degrade to an empty (or exact-hit)
	// selection deterministically, never divide by zero.
	latIdx, lonIdx := RegionIndices(lats, lons, 35.123, 139.456, 0)
	if len(latIdx) != 0 {
		t.Errorf("expected empty lat selection, got %v", latIdx)
	}
	if len(lonIdx) != 0 {
		t.Errorf("expected empty lon selection, got %v", lonIdx)
	}
}

func TestRegionIndicesOutOfRangeCenter(t *testing.T) {
	lats := axis(30.0, 45.0, 0.5)
	lons := axis(130.0, 145.0, 0.5)

	latIdx, lonIdx := RegionIndices(lats, lons, -60.0, 20.0, 20)
	if len(latIdx) != 0 || len(lonIdx) != 0 {
		t.Errorf("expected empty selection for far-away center, got %v / %v", latIdx, lonIdx)
	}
}

func TestRegionIndicesPolarCenter(t *testing.T) {
	lats := axis(85.0, 90.0, 0.5)
	lons := axis(-180.0, 180.0, 10.0)

	// At the pole the longitude degree length collapses; the whole
	// longitude axis is selected rather than an unbounded span.
	_, lonIdx := RegionIndices(lats, lons, 90.0, 0.0, 20)
	if len(lonIdx) != len(lons) {
		t.Errorf("polar selection covered %d of %d longitude cells", len(lonIdx), len(lons))
	}
}

func TestHaversineKnownDistances(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		wantKm                 float64
		tolKm                  float64
	}{
		{"same point", 35.0, 135.0, 35.0, 135.0, 0, 0.001},
		{"tokyo to osaka", 35.6895, 139.6917, 34.6937, 135.5023, 397, 5},
		{"one degree of latitude", 35.0, 135.0, 36.0, 135.0, 111.2, 0.5},
		{"equator one degree of longitude", 0.0, 0.0, 0.0, 1.0, 111.2, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Haversine(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			if math.Abs(got-tt.wantKm) > tt.tolKm {
				t.Errorf("Haversine() = %.2f km, want %.2f +/- %.2f", got, tt.wantKm, tt.tolKm)
			}
		})
	}
}

// TestFlatApproximationError checks the flat-earth degree lengths used by
// RegionIndices against the haversine distance for region half-widths up
// to 50km at mid-latitudes. The approximation should stay within a few
// percent.
func TestFlatApproximationError(t *testing.T) {
	for _, centerLat := range []float64{20.0, 35.0, 50.0, 65.0} {
		for _, sizeKm := range []float64{10.0, 50.0, 100.0} {
			radius := sizeKm / 2

			// Walk north by the approximated latitude range and
			// compare the actual distance covered.
			latRange := radius / KmPerDegreeLat
			d := Haversine(centerLat, 135.0, centerLat+latRange, 135.0)
			if rel := math.Abs(d-radius) / radius; rel > 0.05 {
				t.Errorf("lat=%v size=%v: latitude approximation off by %.1f%%", centerLat, sizeKm, rel*100)
			}

			lonRange := radius / (KmPerDegreeLat * math.Cos(centerLat*math.Pi/180))
			d = Haversine(centerLat, 135.0, centerLat, 135.0+lonRange)
			if rel := math.Abs(d-radius) / radius; rel > 0.05 {
				t.Errorf("lat=%v size=%v: longitude approximation off by %.1f%%", centerLat, sizeKm, rel*100)
			}
		}
	}
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
