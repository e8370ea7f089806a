package geo

import "math"

const EarthRadiusKm = 6371.0

// DefaultSpeedKmH is the assumed average travel speed between stops.
const DefaultSpeedKmH = 50.0

// DistanceKm returns the great-circle (haversine) distance between two points in kilometres.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	if lat1 == lat2 && lon1 == lon2 {
		return 0
	}
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

// TravelMinutes converts a distance into driving minutes at speedKmH.
// A non-positive speed falls back to DefaultSpeedKmH.
func TravelMinutes(km, speedKmH float64) float64 {
	if speedKmH <= 0 {
		speedKmH = DefaultSpeedKmH
	}
	return km / speedKmH * 60
}

// Point is an optional coordinate pair.
type Point struct {
	Lat float64
	Lon float64
}

// PointOf returns a point when both coordinates are known.
func PointOf(lat, lon *float64) (Point, bool) {
	if lat == nil || lon == nil {
		return Point{}, false
	}
	return Point{Lat: *lat, Lon: *lon}, true
}

func (p Point) DistanceTo(o Point) float64 {
	return DistanceKm(p.Lat, p.Lon, o.Lat, o.Lon)
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
