// Package geo provides great-circle distance math for radius filters
// and proximity checks.
package geo

import "math"

// earthRadiusMeters is the mean sphere radius used by the Haversine
// formula. All distances in this codebase are meters.
const earthRadiusMeters = 6_371_000.0

// DistanceMeters returns the Haversine great-circle distance in meters
// between two decimal-degree coordinates. Inputs are assumed
// well-formed; NaN propagates.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLon := radians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}

// ValidCoordinate reports whether lat/lon form a usable pair of decimal
// degrees.
func ValidCoordinate(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180.0
}
