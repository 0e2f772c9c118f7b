// Package geo provides great-circle distance and travel-time estimates used when
// no provider timing is available for a leg.
package geo

import "math"

const (
	// EarthRadiusMeters is the mean radius of the Earth.
	EarthRadiusMeters = 6371000.0

	// WalkingSpeedKmh is the assumed pedestrian speed.
	WalkingSpeedKmh = 5.0

	// DrivingSpeedKmh is the assumed average urban driving speed for taxis.
	DrivingSpeedKmh = 30.0

	// RoadDetourFactor scales straight-line distance to approximate road distance.
	RoadDetourFactor = 1.3
)

// Point is a WGS-84 coordinate.
type Point struct {
	Lat float64
	Lng float64
}

// Valid reports whether the coordinate is within the WGS-84 range. NaN is
// never in range.
func (p Point) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// DistanceMeters returns the haversine distance between two points.
func DistanceMeters(a, b Point) float64 {
	lat1Rad := a.Lat * math.Pi / 180
	lat2Rad := b.Lat * math.Pi / 180
	deltaLat := (b.Lat - a.Lat) * math.Pi / 180
	deltaLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLng/2)*math.Sin(deltaLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusMeters * c
}

// WalkingMinutes estimates walking time for a straight-line distance in meters.
func WalkingMinutes(meters float64) float64 {
	return meters / 1000 / WalkingSpeedKmh * 60
}

// DrivingMinutes estimates door-to-door driving time for a straight-line distance
// in meters, applying the road detour factor.
func DrivingMinutes(meters float64) float64 {
	return meters * RoadDetourFactor / 1000 / DrivingSpeedKmh * 60
}

// WalkingMinutesBetween is WalkingMinutes over the distance between a and b, rounded up.
func WalkingMinutesBetween(a, b Point) int {
	return int(math.Ceil(WalkingMinutes(DistanceMeters(a, b))))
}

// DrivingMinutesBetween is DrivingMinutes over the distance between a and b, rounded up.
// Never returns less than one minute.
func DrivingMinutesBetween(a, b Point) int {
	minutes := int(math.Ceil(DrivingMinutes(DistanceMeters(a, b))))
	if minutes < 1 {
		return 1
	}
	return minutes
}

// BoundingBox returns the lat/lng box that contains every point within
// radiusMeters of p. Longitude span is clamped near the poles.
func BoundingBox(p Point, radiusMeters float64) (minLat, maxLat, minLng, maxLng float64) {
	dLat := radiusMeters / EarthRadiusMeters * 180 / math.Pi

	cosLat := math.Cos(p.Lat * math.Pi / 180)
	dLng := 180.0
	if cosLat > 1e-6 {
		dLng = math.Min(dLat/cosLat, 180)
	}

	return p.Lat - dLat, p.Lat + dLat, p.Lng - dLng, p.Lng + dLng
}
