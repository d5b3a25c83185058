package places

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/flipapp/leaderboard/internal/geo"
	"github.com/flipapp/leaderboard/internal/geocode"
	"github.com/flipapp/leaderboard/internal/model"
	"github.com/flipapp/leaderboard/internal/store"
)

// Query terms fanned out against the place search, matching the campus
// building taxonomy the app cares about.
var searchTerms = []string{"department", "building", "library", "hall", "center"}

const (
	// ~200 m box around the query coordinate.
	searchSpanDegrees = 0.002

	// A session within this distance of a candidate counts toward its
	// popularity.
	popularityRadiusMeters = 100.0

	popularityWindow = 7 * 24 * time.Hour

	maxCandidates = 5
)

// Resolver maps a raw coordinate to a small ranked list of nearby named
// places, used both to tag new sessions and to pick the building whose
// leaderboard is shown.
type Resolver struct {
	geocoder geocode.Geocoder
	sessions store.SessionStore
	now      func() time.Time
}

func NewResolver(geocoder geocode.Geocoder, sessions store.SessionStore) *Resolver {
	return &Resolver{geocoder: geocoder, sessions: sessions, now: time.Now}
}

// Resolve fans out one nearby-place search per term plus the direct
// reverse-geocode, merges and dedups the results, ranks candidates by how
// many sessions occurred near them in the last week, and returns the top
// five. The merge runs only after every sub-search has settled; a failing
// sub-search contributes nothing rather than failing the resolve.
func (r *Resolver) Resolve(ctx context.Context, coord model.Coordinate) ([]model.BuildingInfo, error) {
	box := geocode.BoxAround(coord, searchSpanDegrees)

	// One result slot per sub-search keeps the merge order deterministic
	// regardless of completion order.
	results := make([][]geocode.Place, len(searchTerms)+1)

	var wg sync.WaitGroup
	for i, term := range searchTerms {
		wg.Add(1)
		go func(i int, term string) {
			defer wg.Done()
			places, err := r.geocoder.SearchNearby(ctx, term, box)
			if err != nil {
				slog.Debug("nearby search failed", "term", term, "error", err)
				return
			}
			results[i] = places
		}(i, term)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		placemark, err := r.geocoder.ReverseGeocode(ctx, coord)
		if err != nil || placemark.Name == "" {
			return
		}
		results[len(searchTerms)] = []geocode.Place{{
			Name:       placemark.Name,
			Coordinate: placemark.Coordinate,
		}}
	}()
	wg.Wait()

	candidates := mergeCandidates(results)
	if len(candidates) == 0 {
		return nil, nil
	}

	recent, err := r.sessions.List(ctx, store.SessionFilter{
		StartedAfter: r.now().Add(-popularityWindow),
	})
	if err != nil {
		return nil, err
	}

	buildings := make([]model.BuildingInfo, 0, len(candidates))
	for _, place := range candidates {
		buildings = append(buildings, model.BuildingInfo{
			ID:             geo.BuildingKey(place.Coordinate),
			Name:           place.Name,
			Coordinate:     place.Coordinate,
			Popularity:     countNearbySessions(recent, place.Coordinate),
			DistanceMeters: geo.DistanceMeters(place.Coordinate, coord),
		})
	}

	sort.SliceStable(buildings, func(i, j int) bool {
		if buildings[i].Popularity != buildings[j].Popularity {
			return buildings[i].Popularity > buildings[j].Popularity
		}
		if buildings[i].DistanceMeters != buildings[j].DistanceMeters {
			return buildings[i].DistanceMeters < buildings[j].DistanceMeters
		}
		return buildings[i].Name < buildings[j].Name
	})

	if len(buildings) > maxCandidates {
		buildings = buildings[:maxCandidates]
	}
	return buildings, nil
}

// AreaName names the general area of a coordinate for display, falling back
// to a generic placeholder when geocoding fails.
func (r *Resolver) AreaName(ctx context.Context, coord model.Coordinate) string {
	placemark, err := r.geocoder.ReverseGeocode(ctx, coord)
	if err != nil {
		return geocode.PlaceholderArea
	}
	if placemark.Locality != "" {
		return placemark.Locality
	}
	if placemark.AdministrativeArea != "" {
		return placemark.AdministrativeArea
	}
	return geocode.PlaceholderArea
}

// mergeCandidates dedups by lowercased name or exact coordinate; the first
// occurrence wins.
func mergeCandidates(results [][]geocode.Place) []geocode.Place {
	var merged []geocode.Place
	seenNames := make(map[string]bool)
	seenCoords := make(map[model.Coordinate]bool)
	for _, places := range results {
		for _, place := range places {
			name := strings.ToLower(strings.TrimSpace(place.Name))
			if name == "" {
				continue
			}
			if seenNames[name] || seenCoords[place.Coordinate] {
				continue
			}
			seenNames[name] = true
			seenCoords[place.Coordinate] = true
			merged = append(merged, place)
		}
	}
	return merged
}

func countNearbySessions(sessions []model.SessionRecord, coord model.Coordinate) int {
	count := 0
	for _, session := range sessions {
		if session.Location == nil {
			continue
		}
		if geo.WithinRadius(*session.Location, coord, popularityRadiusMeters) {
			count++
		}
	}
	return count
}
