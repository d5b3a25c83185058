package leaderboard

import (
	"time"

	"github.com/flipapp/leaderboard/internal/model"
)

type ScopeKind string

const (
	ScopeBuilding ScopeKind = "building"
	ScopeRegion   ScopeKind = "region"
	ScopeGlobal   ScopeKind = "global"
)

type Window string

const (
	WindowCurrentWeek Window = "weekly"
	WindowAllTime     Window = "allTime"
)

// Scope restricts a leaderboard to a building, a radius around a point, or
// nothing at all. Center is set for building and region scopes and drives the
// distance tie-break.
type Scope struct {
	Kind        ScopeKind
	BuildingID  string
	Center      *model.Coordinate
	RadiusMiles float64
}

func BuildingScope(buildingID string, center model.Coordinate) Scope {
	return Scope{Kind: ScopeBuilding, BuildingID: buildingID, Center: &center}
}

func RegionScope(center model.Coordinate, radiusMiles float64) Scope {
	return Scope{Kind: ScopeRegion, Center: &center, RadiusMiles: radiusMiles}
}

func GlobalScope() Scope {
	return Scope{Kind: ScopeGlobal}
}

// StartOfWeek returns Monday 00:00 of the week containing now, in now's
// location.
func StartOfWeek(now time.Time) time.Time {
	daysSinceMonday := (int(now.Weekday()) + 6) % 7
	monday := now.AddDate(0, 0, -daysSinceMonday)
	return time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, now.Location())
}
