// Package geo computes great-circle distances between WGS84 coordinates.
// It is a pure leaf package — no dependencies beyond math.
package geo

import "math"

// earthRadiusKm is the mean radius of the spherical Earth model used by the
// haversine formula.
const earthRadiusKm = 6371

func degToRad(d float64) float64 {
	return d * (math.Pi / 180)
}

// DistanceKm returns the haversine great-circle distance in kilometres
// between (lat1, lon1) and (lat2, lon2), given in degrees.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := degToRad(lat2 - lat1)
	dLon := degToRad(lon2 - lon1)

	lat1Rad := degToRad(lat1)
	lat2Rad := degToRad(lat2)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

// WithinKm reports whether the two points are at most radiusKm apart.
// A non-positive radius only matches exactly coincident points.
func WithinKm(lat1, lon1, lat2, lon2, radiusKm float64) bool {
	return DistanceKm(lat1, lon1, lat2, lon2) <= radiusKm
}
