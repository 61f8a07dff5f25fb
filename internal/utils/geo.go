package utils

import "math"

// EarthRadiusMeters is the mean Earth radius used for haversine distances
const EarthRadiusMeters = 6_371_000.0

// HaversineMeters returns the great-circle distance in meters between two points in degrees
func HaversineMeters(lat1, lng1, lat2, lng2 float64) float64 {
	lat1r := lat1 * math.Pi / 180
	lat2r := lat2 * math.Pi / 180
	dLat := (lat2 - lat1) * math.Pi / 180
	dLng := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1r)*math.Cos(lat2r)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusMeters * c
}

// ToECEF converts latitude/longitude (degrees) to a unit-sphere ECEF vector.
// L2 order over these vectors equals great-circle order, so they can back a KNN index.
func ToECEF(latDeg, lngDeg float64) []float32 {
	lat := latDeg * math.Pi / 180
	lng := lngDeg * math.Pi / 180
	return []float32{
		float32(math.Cos(lat) * math.Cos(lng)),
		float32(math.Cos(lat) * math.Sin(lng)),
		float32(math.Sin(lat)),
	}
}
