package leaderboard

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/flipapp/leaderboard/internal/cache"
	"github.com/flipapp/leaderboard/internal/geo"
	"github.com/flipapp/leaderboard/internal/model"
	"github.com/flipapp/leaderboard/internal/store"
)

const (
	// Entries shown per leaderboard.
	topEntries = 10

	// Building queries are bounded to the 50 highest-duration candidate
	// sessions before aggregation. Tail contributions beyond that window are
	// never considered; a scale tradeoff, not a correctness guarantee.
	buildingQueryLimit = 50

	// Candidate pool for the global all-time board, before privacy drops.
	allTimeCandidateLimit = 50

	anonymousName = "Anonymous"
)

// ErrNotRanked is returned by Rank when the user has no qualifying sessions in
// scope or is excluded by their privacy settings.
var ErrNotRanked = errors.New("leaderboard: user not ranked in scope")

type Aggregator struct {
	sessions store.SessionStore
	privacy  store.PrivacyStore
	users    store.UserStore
	profiles *cache.ProfileCache
	now      func() time.Time
}

func NewAggregator(sessions store.SessionStore, privacy store.PrivacyStore, users store.UserStore, profiles *cache.ProfileCache) *Aggregator {
	return &Aggregator{
		sessions: sessions,
		privacy:  privacy,
		users:    users,
		profiles: profiles,
		now:      time.Now,
	}
}

type userAggregate struct {
	userID    string
	username  string
	metric    int
	distanceM float64 // min session distance to the scope center
	anonymous bool
	profile   *model.UserProfile
}

// Load produces the ranked, privacy-applied top entries for one scope and
// window. Any store failure surfaces as an error; callers render that as an
// empty board.
func (a *Aggregator) Load(ctx context.Context, scope Scope, window Window) ([]model.LeaderboardEntry, error) {
	loadsTotal.WithLabelValues(string(scope.Kind), string(window)).Inc()

	aggregates, err := a.aggregate(ctx, scope, window)
	if err != nil {
		loadFailures.Inc()
		return nil, err
	}
	entries := buildEntries(aggregates)
	if len(entries) > topEntries {
		entries = entries[:topEntries]
	}
	return entries, nil
}

// Rank returns the position, metric and ranked-user count for one user within
// the full (untruncated) ranking.
func (a *Aggregator) Rank(ctx context.Context, scope Scope, window Window, userID string) (rank, metric, total int, err error) {
	aggregates, err := a.aggregate(ctx, scope, window)
	if err != nil {
		return 0, 0, 0, err
	}
	for i, agg := range aggregates {
		if agg.userID == userID {
			return i + 1, agg.metric, len(aggregates), nil
		}
	}
	return 0, 0, len(aggregates), ErrNotRanked
}

// aggregate runs the pipeline up to and including the sort: query, scope
// filter, per-user grouping, privacy join, best-effort decoration, ordering.
func (a *Aggregator) aggregate(ctx context.Context, scope Scope, window Window) ([]*userAggregate, error) {
	var aggregates map[string]*userAggregate
	var err error

	if scope.Kind == ScopeGlobal && window == WindowAllTime {
		aggregates, err = a.aggregateFromTotals(ctx)
	} else {
		aggregates, err = a.aggregateFromSessions(ctx, scope, window)
	}
	if err != nil {
		return nil, err
	}

	ordered := make([]*userAggregate, 0, len(aggregates))
	for _, agg := range aggregates {
		ordered = append(ordered, agg)
	}
	// Deterministic order before the privacy join and the stable sort.
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].userID < ordered[j].userID })

	ordered, err = a.applyPrivacy(ctx, ordered)
	if err != nil {
		return nil, err
	}

	a.decorate(ctx, ordered, window)

	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].metric != ordered[j].metric {
			return ordered[i].metric > ordered[j].metric
		}
		if scope.Center != nil && ordered[i].distanceM != ordered[j].distanceM {
			return ordered[i].distanceM < ordered[j].distanceM
		}
		return ordered[i].userID < ordered[j].userID
	})
	return ordered, nil
}

// aggregateFromSessions covers every scope/window variant that derives its
// metric from individual session records.
func (a *Aggregator) aggregateFromSessions(ctx context.Context, scope Scope, window Window) (map[string]*userAggregate, error) {
	filter := store.SessionFilter{SuccessfulOnly: true}
	if window == WindowCurrentWeek {
		filter.StartedAfter = StartOfWeek(a.now())
	}
	if scope.Kind == ScopeBuilding {
		filter.BuildingID = scope.BuildingID
		filter.SortByDurationDesc = true
		filter.Limit = buildingQueryLimit
	}

	sessions, err := a.sessions.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	// Buildings are keyed by exact derived id, but tagging can be missing or
	// wrong. When the exact-key query comes back empty, a secondary pass keeps
	// sessions whose stored location lies within 100 m of the building.
	if scope.Kind == ScopeBuilding && len(sessions) == 0 && scope.Center != nil {
		fallback := filter
		fallback.BuildingID = ""
		candidates, err := a.sessions.List(ctx, fallback)
		if err != nil {
			return nil, err
		}
		for _, session := range candidates {
			if session.Location == nil {
				continue
			}
			if geo.WithinRadius(*session.Location, *scope.Center, geo.BuildingMatchRadiusMeters) {
				sessions = append(sessions, session)
			}
		}
	}

	byCount := scope.Kind == ScopeBuilding

	aggregates := make(map[string]*userAggregate)
	for _, session := range sessions {
		if scope.Kind == ScopeRegion {
			if session.Location == nil {
				continue
			}
			if !geo.WithinRadius(*session.Location, *scope.Center, geo.MilesToMeters(scope.RadiusMiles)) {
				continue
			}
		}

		agg, ok := aggregates[session.UserID]
		if !ok {
			agg = &userAggregate{
				userID:    session.UserID,
				username:  session.Username,
				distanceM: math.MaxFloat64,
			}
			aggregates[session.UserID] = agg
		}
		if byCount {
			agg.metric++
		} else {
			agg.metric += session.DurationMinutes
		}
		if scope.Center != nil && session.Location != nil {
			if d := geo.DistanceMeters(*session.Location, *scope.Center); d < agg.distanceM {
				agg.distanceM = d
			}
		}
	}
	return aggregates, nil
}

// aggregateFromTotals backs the global all-time board with the pre-aggregated
// lifetime totals instead of re-summing every session ever recorded.
func (a *Aggregator) aggregateFromTotals(ctx context.Context) (map[string]*userAggregate, error) {
	profiles, err := a.users.TopByTotalFocusTime(ctx, allTimeCandidateLimit)
	if err != nil {
		return nil, err
	}
	aggregates := make(map[string]*userAggregate, len(profiles))
	for i := range profiles {
		profile := profiles[i]
		aggregates[profile.ID] = &userAggregate{
			userID:    profile.ID,
			username:  profile.Username,
			metric:    profile.TotalFocusTime,
			distanceM: math.MaxFloat64,
			profile:   &profile,
		}
	}
	return aggregates, nil
}

// applyPrivacy fetches the setting for every distinct user, fresh on every
// load. Opted-out users are dropped entirely; anonymous users keep their
// metric and position under a placeholder identity. A store error here fails
// the whole load: erring open could publish a user who opted out.
func (a *Aggregator) applyPrivacy(ctx context.Context, aggregates []*userAggregate) ([]*userAggregate, error) {
	kept := aggregates[:0]
	for _, agg := range aggregates {
		setting, err := a.privacy.Get(ctx, agg.userID)
		if err != nil {
			return nil, err
		}
		if setting.OptOut {
			continue
		}
		agg.anonymous = setting.DisplayMode == model.DisplayModeAnonymous
		kept = append(kept, agg)
	}
	return kept, nil
}

// decorate joins score, streak and avatar onto each aggregate, and for
// all-time windows substitutes the stored lifetime total for the summed
// metric when one exists. All lookups run concurrently and every failure is
// tolerated: entries render without decoration rather than delaying or
// failing the ranking.
func (a *Aggregator) decorate(ctx context.Context, aggregates []*userAggregate, window Window) {
	var wg sync.WaitGroup
	for _, agg := range aggregates {
		if agg.profile != nil {
			continue
		}
		wg.Add(1)
		go func(agg *userAggregate) {
			defer wg.Done()
			profile, err := a.profiles.Get(ctx, agg.userID)
			if err != nil {
				slog.Debug("profile decoration skipped", "user", agg.userID, "error", err)
				return
			}
			agg.profile = &profile
		}(agg)
	}
	wg.Wait()

	if window != WindowAllTime {
		return
	}
	for _, agg := range aggregates {
		if agg.profile != nil && agg.profile.TotalFocusTime > 0 {
			agg.metric = agg.profile.TotalFocusTime
		}
	}
}

func buildEntries(aggregates []*userAggregate) []model.LeaderboardEntry {
	entries := make([]model.LeaderboardEntry, 0, len(aggregates))
	for i, agg := range aggregates {
		entry := model.LeaderboardEntry{
			UserID:       agg.userID,
			DisplayName:  agg.username,
			Metric:       agg.metric,
			Rank:         i + 1,
			StreakStatus: model.StreakNone,
		}
		if agg.profile != nil {
			score := agg.profile.Score
			entry.Score = &score
			if agg.profile.StreakStatus != "" {
				entry.StreakStatus = agg.profile.StreakStatus
			}
			entry.ProfileImageURL = agg.profile.ProfileImageURL
			if agg.profile.Username != "" {
				entry.DisplayName = agg.profile.Username
			}
		}
		if agg.anonymous {
			entry.DisplayName = anonymousName
			entry.ProfileImageURL = ""
		}
		entries = append(entries, entry)
	}
	return entries
}
