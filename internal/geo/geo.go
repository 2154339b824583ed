// Package geo provides great-circle distance calculations.
package geo

import "math"

// earthRadiusKm is the mean radius of the Earth in kilometers.
const earthRadiusKm = 6371

// DistanceKm returns the great-circle distance in kilometers between two
// points on the earth, specified in decimal degrees, using the haversine
// formula.
func DistanceKm(lon1, lat1, lon2, lat2 float64) float64 {
	rlon1 := radians(lon1)
	rlat1 := radians(lat1)
	rlon2 := radians(lon2)
	rlat2 := radians(lat2)

	dlon := rlon2 - rlon1
	dlat := rlat2 - rlat1

	a := math.Pow(math.Sin(dlat/2), 2) + math.Cos(rlat1)*math.Cos(rlat2)*math.Pow(math.Sin(dlon/2), 2)
	c := 2 * math.Asin(math.Sqrt(a))

	return c * earthRadiusKm
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
