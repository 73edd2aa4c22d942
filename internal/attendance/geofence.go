package attendance

import "math"

const earthRadiusMeters = 6371000.0

// Point is a WGS84 coordinate in decimal degrees.
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Distance returns the great-circle distance in meters (haversine).
func Distance(a, b Point) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}

// Geofence is the circle around the facility where self check-in is allowed.
type Geofence struct {
	Center       Point
	RadiusMeters float64
}

// Check measures p against the fence. The distance is rounded to centimetres
// so a caller standing exactly on the boundary is inside.
func (g Geofence) Check(p Point) (distance float64, inside bool) {
	distance = math.Round(Distance(g.Center, p)*100) / 100
	return distance, distance <= g.RadiusMeters
}
