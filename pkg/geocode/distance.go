package geocode

import "math"

// earthRadiusKM is the mean Earth radius (IUGG).
const earthRadiusKM = 6371.0088

// Haversine returns the great-circle distance between two coordinates in
// kilometers. It is symmetric, non-negative, and zero for identical
// coordinates.
func Haversine(a, b Coordinate) float64 {
	if a == b {
		return 0
	}

	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon

	return 2 * earthRadiusKM * math.Asin(math.Min(1, math.Sqrt(h)))
}
