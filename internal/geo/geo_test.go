package geo

import (
	"math"
	"testing"

	"github.com/flipapp/leaderboard/internal/model"
)

// pointAtMeters returns a coordinate the given distance east of center along
// the equator, where haversine distance is exact.
func pointAtMeters(center model.Coordinate, meters float64) model.Coordinate {
	return model.Coordinate{
		Latitude:  center.Latitude,
		Longitude: center.Longitude + meters/earthRadiusMeters*180/math.Pi,
	}
}

func TestDistanceMeters(t *testing.T) {
	center := model.Coordinate{Latitude: 0, Longitude: 0}
	if d := DistanceMeters(center, center); d != 0 {
		t.Fatalf("expected zero distance to self, got %f", d)
	}

	p := pointAtMeters(center, 1000)
	d := DistanceMeters(center, p)
	if math.Abs(d-1000) > 1 {
		t.Fatalf("expected ~1000m, got %f", d)
	}
	if back := DistanceMeters(p, center); math.Abs(back-d) > 1e-9 {
		t.Fatalf("expected symmetric distance, got %f vs %f", d, back)
	}
}

func TestWithinRadiusBoundary(t *testing.T) {
	center := model.Coordinate{Latitude: 0, Longitude: 0}
	radius := MilesToMeters(5)

	// The boundary is inclusive: a point at exactly its own measured distance
	// is inside.
	p := pointAtMeters(center, radius)
	if !WithinRadius(p, center, DistanceMeters(p, center)) {
		t.Fatalf("expected point at exact boundary distance to be included")
	}

	inside := pointAtMeters(center, radius-1)
	if !WithinRadius(inside, center, radius) {
		t.Fatalf("expected point 1m inside radius to be included")
	}

	outside := pointAtMeters(center, radius+1)
	if WithinRadius(outside, center, radius) {
		t.Fatalf("expected point 1m beyond radius to be excluded")
	}
}

func TestMilesToMeters(t *testing.T) {
	if got := MilesToMeters(1); got != 1609.34 {
		t.Fatalf("expected 1609.34, got %f", got)
	}
	if got := MilesToMeters(5); math.Abs(got-8046.7) > 1e-9 {
		t.Fatalf("expected 8046.7, got %f", got)
	}
}

func TestBuildingKey(t *testing.T) {
	c := model.Coordinate{Latitude: 40.123456789, Longitude: -74.987654321}
	key := BuildingKey(c)
	if key != "building-40.123457--74.987654" {
		t.Fatalf("unexpected key %q", key)
	}
	// Rounding to 6 decimals makes nearby-but-not-identical coordinates share
	// a key only when they round the same way.
	same := BuildingKey(model.Coordinate{Latitude: 40.1234568, Longitude: -74.9876541})
	if key != same {
		t.Fatalf("expected identical keys, got %q vs %q", key, same)
	}
}

func TestSameStorageKey(t *testing.T) {
	if SameStorageKey("", "") {
		t.Fatalf("empty keys must never match")
	}
	if !SameStorageKey("building-1.000000-2.000000", "building-1.000000-2.000000") {
		t.Fatalf("expected equal keys to match")
	}
	if SameStorageKey("building-1.000000-2.000000", "building-1.000001-2.000000") {
		t.Fatalf("expected different keys not to match")
	}
}

func TestIsNearby(t *testing.T) {
	a := model.Coordinate{Latitude: 0, Longitude: 0}
	within := pointAtMeters(a, 9)
	beyond := pointAtMeters(a, 12)

	if !IsNearby(a, within) {
		t.Fatalf("expected 9m apart to be the same building")
	}
	if IsNearby(a, beyond) {
		t.Fatalf("expected 12m apart to be different buildings")
	}
	// Proximity identity is deliberately independent of key equality.
	if SameStorageKey(BuildingKey(a), BuildingKey(within)) {
		t.Fatalf("expected nearby points to have distinct storage keys")
	}
}
