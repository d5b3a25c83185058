package places

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/flipapp/leaderboard/internal/geocode"
	"github.com/flipapp/leaderboard/internal/model"
	"github.com/flipapp/leaderboard/internal/store"
)

var resolverNow = time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)

type fakeGeocoder struct {
	placesByTerm map[string][]geocode.Place
	searchErrs   map[string]error
	placemark    geocode.Placemark
	reverseErr   error
}

func (f *fakeGeocoder) ReverseGeocode(context.Context, model.Coordinate) (geocode.Placemark, error) {
	if f.reverseErr != nil {
		return geocode.Placemark{}, f.reverseErr
	}
	return f.placemark, nil
}

func (f *fakeGeocoder) SearchNearby(_ context.Context, term string, _ geocode.BoundingBox) ([]geocode.Place, error) {
	if err, ok := f.searchErrs[term]; ok {
		return nil, err
	}
	return f.placesByTerm[term], nil
}

type stubSessionStore struct {
	sessions []model.SessionRecord
	err      error
}

func (s *stubSessionStore) List(context.Context, store.SessionFilter) ([]model.SessionRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.sessions, nil
}

func (s *stubSessionStore) Create(context.Context, model.SessionRecord) error { return nil }

func (s *stubSessionStore) Watch(context.Context, store.SessionFilter) (<-chan []model.SessionRecord, error) {
	ch := make(chan []model.SessionRecord)
	close(ch)
	return ch, nil
}

func newTestResolver(geocoder *fakeGeocoder, sessions *stubSessionStore) *Resolver {
	r := NewResolver(geocoder, sessions)
	r.now = func() time.Time { return resolverNow }
	return r
}

func recentSessionAt(loc model.Coordinate) model.SessionRecord {
	return model.SessionRecord{
		ID:            fmt.Sprintf("s-%f-%f", loc.Latitude, loc.Longitude),
		UserID:        "u1",
		WasSuccessful: true,
		Location:      &loc,
		StartTime:     resolverNow.Add(-time.Hour),
	}
}

func TestResolveDedupsByNameCaseInsensitive(t *testing.T) {
	query := model.Coordinate{Latitude: 40, Longitude: -74}
	first := model.Coordinate{Latitude: 40.0001, Longitude: -74}
	second := model.Coordinate{Latitude: 40.0002, Longitude: -74}
	geocoder := &fakeGeocoder{
		placesByTerm: map[string][]geocode.Place{
			"library":  {{Name: "Main Library", Coordinate: first}},
			"building": {{Name: "MAIN LIBRARY", Coordinate: second}},
		},
	}
	resolver := newTestResolver(geocoder, &stubSessionStore{})

	buildings, err := resolver.Resolve(context.Background(), query)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if len(buildings) != 1 {
		t.Fatalf("expected name dedup to keep one candidate, got %d", len(buildings))
	}
	if buildings[0].Name != "Main Library" || buildings[0].Coordinate != first {
		t.Fatalf("expected the first occurrence to win, got %+v", buildings[0])
	}
}

func TestResolveRanksByPopularityThenDistance(t *testing.T) {
	query := model.Coordinate{Latitude: 40, Longitude: -74}
	near := model.Coordinate{Latitude: 40.0001, Longitude: -74}
	far := model.Coordinate{Latitude: 40.001, Longitude: -74}
	geocoder := &fakeGeocoder{
		placesByTerm: map[string][]geocode.Place{
			"library": {{Name: "Quiet Library", Coordinate: near}},
			"hall":    {{Name: "Busy Hall", Coordinate: far}},
		},
	}
	sessions := &stubSessionStore{sessions: []model.SessionRecord{
		recentSessionAt(far),
		recentSessionAt(far),
	}}
	resolver := newTestResolver(geocoder, sessions)

	buildings, err := resolver.Resolve(context.Background(), query)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if len(buildings) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(buildings))
	}
	if buildings[0].Name != "Busy Hall" || buildings[0].Popularity != 2 {
		t.Fatalf("expected popularity to rank first, got %+v", buildings[0])
	}
	if buildings[1].Name != "Quiet Library" || buildings[1].Popularity != 0 {
		t.Fatalf("expected quieter candidate second, got %+v", buildings[1])
	}
}

func TestResolveToleratesSearchFailures(t *testing.T) {
	query := model.Coordinate{Latitude: 40, Longitude: -74}
	spot := model.Coordinate{Latitude: 40.0001, Longitude: -74}
	geocoder := &fakeGeocoder{
		placesByTerm: map[string][]geocode.Place{
			"library": {{Name: "Main Library", Coordinate: spot}},
		},
		searchErrs: map[string]error{
			"department": errors.New("rate limited"),
			"hall":       errors.New("rate limited"),
		},
	}
	resolver := newTestResolver(geocoder, &stubSessionStore{})

	buildings, err := resolver.Resolve(context.Background(), query)
	if err != nil {
		t.Fatalf("partial failures must not fail resolve: %v", err)
	}
	if len(buildings) != 1 || buildings[0].Name != "Main Library" {
		t.Fatalf("expected surviving candidates, got %+v", buildings)
	}
}

func TestResolveIncludesReverseGeocode(t *testing.T) {
	query := model.Coordinate{Latitude: 40, Longitude: -74}
	geocoder := &fakeGeocoder{
		placemark: geocode.Placemark{
			Name:       "Engineering Tower",
			Coordinate: model.Coordinate{Latitude: 40.0001, Longitude: -74},
		},
	}
	resolver := newTestResolver(geocoder, &stubSessionStore{})

	buildings, err := resolver.Resolve(context.Background(), query)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if len(buildings) != 1 || buildings[0].Name != "Engineering Tower" {
		t.Fatalf("expected the reverse-geocoded place, got %+v", buildings)
	}
	if buildings[0].ID == "" {
		t.Fatalf("expected a derived building id")
	}
}

func TestResolveCapsCandidates(t *testing.T) {
	query := model.Coordinate{Latitude: 40, Longitude: -74}
	byTerm := make(map[string][]geocode.Place)
	for i, term := range searchTerms {
		for j := 0; j < 2; j++ {
			byTerm[term] = append(byTerm[term], geocode.Place{
				Name:       fmt.Sprintf("%s %d", term, j),
				Coordinate: model.Coordinate{Latitude: 40 + float64(i)*0.001, Longitude: -74 + float64(j)*0.001},
			})
		}
	}
	resolver := newTestResolver(&fakeGeocoder{placesByTerm: byTerm}, &stubSessionStore{})

	buildings, err := resolver.Resolve(context.Background(), query)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if len(buildings) != maxCandidates {
		t.Fatalf("expected %d candidates, got %d", maxCandidates, len(buildings))
	}
}

func TestResolveNoCandidates(t *testing.T) {
	query := model.Coordinate{Latitude: 40, Longitude: -74}
	geocoder := &fakeGeocoder{reverseErr: errors.New("offline")}
	resolver := newTestResolver(geocoder, &stubSessionStore{})

	buildings, err := resolver.Resolve(context.Background(), query)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if len(buildings) != 0 {
		t.Fatalf("expected no candidates, got %+v", buildings)
	}
}

func TestAreaName(t *testing.T) {
	query := model.Coordinate{Latitude: 40, Longitude: -74}

	withLocality := newTestResolver(&fakeGeocoder{
		placemark: geocode.Placemark{Locality: "Hoboken", AdministrativeArea: "NJ"},
	}, &stubSessionStore{})
	if got := withLocality.AreaName(context.Background(), query); got != "Hoboken" {
		t.Fatalf("expected locality, got %q", got)
	}

	adminOnly := newTestResolver(&fakeGeocoder{
		placemark: geocode.Placemark{AdministrativeArea: "New Jersey"},
	}, &stubSessionStore{})
	if got := adminOnly.AreaName(context.Background(), query); got != "New Jersey" {
		t.Fatalf("expected administrative area fallback, got %q", got)
	}

	failing := newTestResolver(&fakeGeocoder{reverseErr: errors.New("offline")}, &stubSessionStore{})
	if got := failing.AreaName(context.Background(), query); got != geocode.PlaceholderArea {
		t.Fatalf("expected placeholder on failure, got %q", got)
	}
}
