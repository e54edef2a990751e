// Package geography provides coordinate math for provider search:
// great-circle distance between points and bounding-box prefilters.
// Coordinates follow GeoJSON order, longitude first.
package geography

import "math"

const (
	// EarthRadiusKm is the mean Earth radius used for haversine distance.
	EarthRadiusKm = 6371.0

	kmPerDegreeLat = 111.32
)

// Point is a GeoJSON-ordered coordinate pair.
type Point struct {
	Lng float64
	Lat float64
}

// HaversineKm returns the great-circle distance between two points in km.
func HaversineKm(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)

	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLng*sinLng
	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(math.Min(1, h)))
}

// WithinRadiusKm reports whether b lies within radiusKm of a.
func WithinRadiusKm(a, b Point, radiusKm float64) bool {
	if radiusKm <= 0 {
		return false
	}
	return HaversineKm(a, b) <= radiusKm
}

// BoundingBox returns min/max corners of a box enclosing the circle of
// radiusKm around center. Useful as a cheap prefilter before exact
// haversine checks. Longitude span widens toward the poles; near the
// poles we fall back to the full longitude range.
func BoundingBox(center Point, radiusKm float64) (min, max Point) {
	dLat := radiusKm / kmPerDegreeLat

	cosLat := math.Cos(center.Lat * math.Pi / 180)
	var dLng float64
	if cosLat < 1e-6 {
		dLng = 180
	} else {
		dLng = radiusKm / (kmPerDegreeLat * cosLat)
	}

	min = Point{Lng: center.Lng - dLng, Lat: math.Max(-90, center.Lat-dLat)}
	max = Point{Lng: center.Lng + dLng, Lat: math.Min(90, center.Lat+dLat)}
	return min, max
}
