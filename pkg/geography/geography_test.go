package geography

import (
	"math"
	"testing"
)

func TestHaversineKm(t *testing.T) {
	tests := []struct {
		name      string
		a, b      Point
		expected  float64
		tolerance float64
	}{
		{"Same point", Point{-87.6298, 41.8781}, Point{-87.6298, 41.8781}, 0, 0.001},
		{"Chicago to New York", Point{-87.6298, 41.8781}, Point{-74.0060, 40.7128}, 1144, 10},
		{"London to Paris", Point{-0.1278, 51.5074}, Point{2.3522, 48.8566}, 344, 5},
		{"Bangkok to Chiang Mai", Point{100.5018, 13.7563}, Point{98.9853, 18.7883}, 581, 10},
		{"Antipodal-ish", Point{0, 0}, Point{180, 0}, 20015, 50},
		{"Across the date line", Point{179.9, 0}, Point{-179.9, 0}, 22.26, 1},
		{"Short hop", Point{-87.6298, 41.8781}, Point{-87.6298, 41.8871}, 1.0, 0.05},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HaversineKm(tt.a, tt.b)
			if math.Abs(got-tt.expected) > tt.tolerance {
				t.Errorf("HaversineKm() = %.2f, want %.2f ± %.2f", got, tt.expected, tt.tolerance)
			}
		})
	}
}

func TestHaversineKm_Symmetric(t *testing.T) {
	a := Point{100.5018, 13.7563}
	b := Point{-87.6298, 41.8781}
	ab := HaversineKm(a, b)
	ba := HaversineKm(b, a)
	if math.Abs(ab-ba) > 1e-9 {
		t.Errorf("distance not symmetric: %.9f vs %.9f", ab, ba)
	}
}

func TestWithinRadiusKm(t *testing.T) {
	center := Point{-87.6298, 41.8781}
	tests := []struct {
		name     string
		other    Point
		radius   float64
		expected bool
	}{
		{"Inside radius", Point{-87.63, 41.88}, 5, true},
		{"On boundary-ish", Point{-87.6298, 41.9231}, 5.1, true},
		{"Outside radius", Point{-74.0060, 40.7128}, 50, false},
		{"Zero radius excludes everything", Point{-87.6298, 41.8781}, 0, false},
		{"Negative radius", Point{-87.6298, 41.8781}, -1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WithinRadiusKm(center, tt.other, tt.radius); got != tt.expected {
				t.Errorf("WithinRadiusKm() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestBoundingBox(t *testing.T) {
	center := Point{-87.6298, 41.8781}
	min, max := BoundingBox(center, 10)

	if min.Lat >= center.Lat || max.Lat <= center.Lat {
		t.Errorf("latitude range [%f, %f] does not bracket center %f", min.Lat, max.Lat, center.Lat)
	}
	if min.Lng >= center.Lng || max.Lng <= center.Lng {
		t.Errorf("longitude range [%f, %f] does not bracket center %f", min.Lng, max.Lng, center.Lng)
	}

	// Every point within the radius must fall inside the box.
	probes := []Point{
		{-87.6298, 41.9679}, // ~10km north
		{-87.5097, 41.8781}, // ~10km east
	}
	for _, p := range probes {
		if !WithinRadiusKm(center, p, 10.5) {
			continue
		}
		if p.Lat < min.Lat || p.Lat > max.Lat || p.Lng < min.Lng || p.Lng > max.Lng {
			t.Errorf("point %+v within radius but outside box [%+v, %+v]", p, min, max)
		}
	}
}

func TestBoundingBox_NearPole(t *testing.T) {
	min, max := BoundingBox(Point{0, 89.9999}, 10)
	if max.Lat > 90 {
		t.Errorf("max latitude %f exceeds 90", max.Lat)
	}
	if max.Lng-min.Lng < 180 {
		t.Errorf("longitude span %f too narrow near pole", max.Lng-min.Lng)
	}
}

func BenchmarkHaversineKm(b *testing.B) {
	p1 := Point{-87.6298, 41.8781}
	p2 := Point{-74.0060, 40.7128}
	for i := 0; i < b.N; i++ {
		HaversineKm(p1, p2)
	}
}
