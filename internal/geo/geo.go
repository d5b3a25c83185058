package geo

import (
	"fmt"
	"math"

	"github.com/flipapp/leaderboard/internal/model"
)

const (
	earthRadiusMeters = 6371000.0

	// MetersPerMile converts the radius query parameter to meters.
	MetersPerMile = 1609.34

	// Two BuildingInfo values within this distance are the same building for
	// display and dedup purposes, regardless of their derived keys.
	sameBuildingMeters = 10.0

	// BuildingMatchRadiusMeters is the fallback radius used when sessions carry
	// no (or a mistagged) building key.
	BuildingMatchRadiusMeters = 100.0
)

// DistanceMeters is the great-circle (haversine) distance between two points.
func DistanceMeters(a, b model.Coordinate) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}

func MilesToMeters(miles float64) float64 {
	return miles * MetersPerMile
}

// WithinRadius treats a point exactly on the boundary as inside.
func WithinRadius(p, center model.Coordinate, radiusMeters float64) bool {
	return DistanceMeters(p, center) <= radiusMeters
}

// BuildingKey derives the storage key for a building from its coordinate,
// rounded to six decimal places. Keys are compared exactly; proximity is a
// separate predicate (IsNearby) and the two are deliberately never conflated.
func BuildingKey(c model.Coordinate) string {
	return fmt.Sprintf("building-%.6f-%.6f", c.Latitude, c.Longitude)
}

// SameStorageKey reports whether two derived keys identify the same stored
// building. Empty keys never match anything.
func SameStorageKey(a, b string) bool {
	return a != "" && a == b
}

// IsNearby reports whether two coordinates belong to the same building for
// display and dedup purposes (10 m proximity, not key equality).
func IsNearby(a, b model.Coordinate) bool {
	return DistanceMeters(a, b) <= sameBuildingMeters
}
