package geo

import "math"

// earthRadiusM is the mean earth radius used by the spherical approximation.
const earthRadiusM = 6371000.0

// DistanceMeters returns the great-circle distance between two coordinates
// using the haversine formula. The asin argument is clamped so antipodal and
// identical points cannot produce NaN from floating-point drift.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	sinPhi := math.Sin(dPhi / 2)
	sinLambda := math.Sin(dLambda / 2)
	a := sinPhi*sinPhi + math.Cos(phi1)*math.Cos(phi2)*sinLambda*sinLambda
	if a < 0 {
		a = 0
	}
	if a > 1 {
		a = 1
	}
	return 2 * earthRadiusM * math.Asin(math.Sqrt(a))
}
