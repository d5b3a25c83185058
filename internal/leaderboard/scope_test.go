package leaderboard

import (
	"testing"
	"time"
)

func TestStartOfWeek(t *testing.T) {
	cases := map[string]struct {
		now    time.Time
		monday time.Time
	}{
		"wednesday": {
			now:    time.Date(2026, 8, 26, 15, 30, 0, 0, time.UTC),
			monday: time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC),
		},
		"monday itself": {
			now:    time.Date(2026, 8, 24, 0, 0, 1, 0, time.UTC),
			monday: time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC),
		},
		"sunday belongs to previous monday": {
			now:    time.Date(2026, 8, 30, 23, 59, 59, 0, time.UTC),
			monday: time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC),
		},
		"month boundary": {
			now:    time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC),
			monday: time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC),
		},
	}
	for name, tc := range cases {
		got := StartOfWeek(tc.now)
		if !got.Equal(tc.monday) {
			t.Fatalf("%s: expected %v, got %v", name, tc.monday, got)
		}
	}
}

func TestStartOfWeekKeepsLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	now := time.Date(2026, 8, 26, 1, 0, 0, 0, loc)
	got := StartOfWeek(now)
	if got.Location() != loc {
		t.Fatalf("expected week start in the caller's location")
	}
	if got.Hour() != 0 || got.Weekday() != time.Monday {
		t.Fatalf("expected Monday midnight, got %v", got)
	}
}

func TestScopeConstructors(t *testing.T) {
	center := coord(40, -74)
	b := BuildingScope("building-40.000000--74.000000", center)
	if b.Kind != ScopeBuilding || b.Center == nil || b.BuildingID == "" {
		t.Fatalf("unexpected building scope %+v", b)
	}
	r := RegionScope(center, 5)
	if r.Kind != ScopeRegion || r.Center == nil || r.RadiusMiles != 5 {
		t.Fatalf("unexpected region scope %+v", r)
	}
	g := GlobalScope()
	if g.Kind != ScopeGlobal || g.Center != nil {
		t.Fatalf("unexpected global scope %+v", g)
	}
}
