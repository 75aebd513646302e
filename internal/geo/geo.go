// Package geo holds the spherical-earth math used by the pipeline: haversine
// distance, initial bearing and the ray-casting point-in-polygon test.
package geo

import "math"

const earthRadiusMeters = 6371000

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}

// DistanceMeters returns the great-circle distance between two points using
// the haversine formula with a mean earth radius of 6371 km.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// DistanceKm is DistanceMeters in kilometers.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	return DistanceMeters(lat1, lon1, lat2, lon2) / 1000
}

// Bearing returns the initial great-circle bearing from the first point to
// the second, in degrees from north in [0, 360).
func Bearing(lat1, lon1, lat2, lon2 float64) float64 {
	φ1 := toRad(lat1)
	φ2 := toRad(lat2)
	Δλ := toRad(lon2 - lon1)

	y := math.Sin(Δλ) * math.Cos(φ2)
	x := math.Cos(φ1)*math.Sin(φ2) - math.Sin(φ1)*math.Cos(φ2)*math.Cos(Δλ)
	θ := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(θ+360, 360)
}

// PointInPolygon reports whether the point lies inside the ordered vertex
// ring, using the crossing-number parity algorithm. Rings with fewer than 3
// vertices contain nothing.
func PointInPolygon(lat, lon float64, ring [][2]float64) bool {
	if len(ring) < 3 {
		return false
	}
	inside := false
	for i, j := 0, len(ring)-1; i < len(ring); j, i = i, i+1 {
		xi, yi := ring[i][0], ring[i][1]
		xj, yj := ring[j][0], ring[j][1]

		intersect := (yi > lon) != (yj > lon) &&
			lat < (xj-xi)*(lon-yi)/(yj-yi)+xi
		if intersect {
			inside = !inside
		}
	}
	return inside
}
