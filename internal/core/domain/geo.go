package domain

import (
	"math"
	"time"
)

const earthRadiusMeters = 6371000

// GeoPosition is a point-in-time device position. It is ephemeral: callers
// sample it from a location provider per evaluation and never persist it on
// its own.
type GeoPosition struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	CapturedAt time.Time `json:"captured_at"`
}

// GeoFenceTarget is the allowed radius around an operation's target location,
// fixed when the operation (verification case, collection account, yard) is
// assigned.
type GeoFenceTarget struct {
	Position     GeoPosition `json:"position"`
	RadiusMeters float64     `json:"radius_meters"`
}

// GeoFenceResult is derived, never persisted on its own; it is copied into a
// SubmissionRecord as a point-in-time fact.
type GeoFenceResult struct {
	WithinRange    bool    `json:"within_range"`
	DistanceMeters float64 `json:"distance_meters"`
}

// EvaluateFence reports whether current lies within the target radius. Pure:
// same inputs always produce the same result. The boundary is inclusive, so a
// position exactly RadiusMeters away still counts as in range.
func EvaluateFence(current GeoPosition, target GeoFenceTarget) GeoFenceResult {
	dist := haversine(current.Latitude, current.Longitude, target.Position.Latitude, target.Position.Longitude)
	return GeoFenceResult{
		WithinRange:    dist <= target.RadiusMeters,
		DistanceMeters: dist,
	}
}

// haversine returns the great-circle distance in meters. Field operations
// span city-scale distances where a flat-earth approximation drifts at the
// margin of a 50m fence.
func haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
