package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/flipapp/leaderboard/internal/auth"
	"github.com/flipapp/leaderboard/internal/config"
	"github.com/flipapp/leaderboard/internal/geo"
	"github.com/flipapp/leaderboard/internal/jobs"
	"github.com/flipapp/leaderboard/internal/leaderboard"
	"github.com/flipapp/leaderboard/internal/model"
	"github.com/flipapp/leaderboard/internal/places"
	"github.com/flipapp/leaderboard/internal/store"
)

const defaultRadiusMiles = 5.0

type Server struct {
	cfg      config.Config
	sessions store.SessionStore
	privacy  store.PrivacyStore
	users    store.UserStore
	agg      *leaderboard.Aggregator
	resolver *places.Resolver
	redis    *redis.Client
}

func NewServer(cfg config.Config, sessions store.SessionStore, privacy store.PrivacyStore, users store.UserStore, agg *leaderboard.Aggregator, resolver *places.Resolver, redisClient *redis.Client) *Server {
	return &Server{
		cfg:      cfg,
		sessions: sessions,
		privacy:  privacy,
		users:    users,
		agg:      agg,
		resolver: resolver,
		redis:    redisClient,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/leaderboard/building/{buildingId}", s.handleBuildingLeaderboard)
	r.Get("/leaderboard/region", s.handleRegionLeaderboard)
	r.Get("/leaderboard/global", s.handleGlobalLeaderboard)
	r.With(s.authMiddleware).Get("/leaderboard/rank", s.handleViewerRank)

	r.Get("/buildings/resolve", s.handleResolveBuildings)

	r.With(s.authMiddleware).Post("/sessions", s.handleCreateSession)
	r.Get("/sessions", s.handleListSessions)

	r.With(s.authMiddleware).Get("/privacy", s.handleGetPrivacy)
	r.With(s.authMiddleware).Put("/privacy", s.handlePutPrivacy)

	return r
}

// Auth

type claimsKey struct{}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing_token")
			return
		}
		claims, err := auth.ParseToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func claimsFromContext(ctx context.Context) *auth.Claims {
	value := ctx.Value(claimsKey{})
	claims, _ := value.(*auth.Claims)
	return claims
}

// Models

type leaderboardResponse struct {
	Scope    string                   `json:"scope"`
	Window   string                   `json:"window"`
	AreaName string                   `json:"areaName,omitempty"`
	Entries  []model.LeaderboardEntry `json:"entries"`
}

type viewerRankResponse struct {
	UserID     string `json:"userId"`
	Rank       int    `json:"rank"`
	Metric     int    `json:"metric"`
	TotalUsers int    `json:"totalUsers"`
	Ranked     bool   `json:"ranked"`
}

type createSessionRequest struct {
	DurationMinutes int               `json:"durationMinutes"`
	WasSuccessful   bool              `json:"wasSuccessful"`
	Location        *model.Coordinate `json:"location"`
	StartTime       int64             `json:"startTime"`
	EndTime         int64             `json:"endTime"`
}

type putPrivacyRequest struct {
	RegionalOptOut      bool   `json:"regionalOptOut"`
	RegionalDisplayMode string `json:"regionalDisplayMode"`
}

// Handlers

func (s *Server) handleBuildingLeaderboard(w http.ResponseWriter, r *http.Request) {
	buildingID := chi.URLParam(r, "buildingId")
	if buildingID == "" {
		writeError(w, http.StatusBadRequest, "missing_building_id")
		return
	}
	center, ok := parseCoordinate(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_coordinate")
		return
	}

	scope := leaderboard.BuildingScope(buildingID, center)
	entries := s.loadBoard(r.Context(), scope, leaderboard.WindowCurrentWeek)
	writeJSON(w, http.StatusOK, leaderboardResponse{
		Scope:   string(leaderboard.ScopeBuilding),
		Window:  string(leaderboard.WindowCurrentWeek),
		Entries: entries,
	})
}

func (s *Server) handleRegionLeaderboard(w http.ResponseWriter, r *http.Request) {
	center, ok := parseCoordinate(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_coordinate")
		return
	}
	window, ok := parseWindow(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_window")
		return
	}
	radiusMiles := defaultRadiusMiles
	if raw := r.URL.Query().Get("radiusMiles"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_radius")
			return
		}
		radiusMiles = parsed
	}

	scope := leaderboard.RegionScope(center, radiusMiles)
	entries := s.loadBoard(r.Context(), scope, window)
	writeJSON(w, http.StatusOK, leaderboardResponse{
		Scope:    string(leaderboard.ScopeRegion),
		Window:   string(window),
		AreaName: s.resolver.AreaName(r.Context(), center),
		Entries:  entries,
	})
}

func (s *Server) handleGlobalLeaderboard(w http.ResponseWriter, r *http.Request) {
	window, ok := parseWindow(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_window")
		return
	}

	if window == leaderboard.WindowCurrentWeek {
		if entries, ok := s.snapshotEntries(r.Context()); ok {
			writeJSON(w, http.StatusOK, leaderboardResponse{
				Scope:   string(leaderboard.ScopeGlobal),
				Window:  string(window),
				Entries: entries,
			})
			return
		}
	}

	entries := s.loadBoard(r.Context(), leaderboard.GlobalScope(), window)
	writeJSON(w, http.StatusOK, leaderboardResponse{
		Scope:   string(leaderboard.ScopeGlobal),
		Window:  string(window),
		Entries: entries,
	})
}

func (s *Server) handleViewerRank(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	window, ok := parseWindow(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_window")
		return
	}

	scope := leaderboard.GlobalScope()
	if r.URL.Query().Get("lat") != "" || r.URL.Query().Get("lon") != "" {
		center, ok := parseCoordinate(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_coordinate")
			return
		}
		radiusMiles := defaultRadiusMiles
		if raw := r.URL.Query().Get("radiusMiles"); raw != "" {
			parsed, err := strconv.ParseFloat(raw, 64)
			if err != nil || parsed <= 0 {
				writeError(w, http.StatusBadRequest, "invalid_radius")
				return
			}
			radiusMiles = parsed
		}
		scope = leaderboard.RegionScope(center, radiusMiles)
	}

	rank, metric, total, err := s.agg.Rank(r.Context(), scope, window, claims.UserID)
	if err == leaderboard.ErrNotRanked {
		writeJSON(w, http.StatusOK, viewerRankResponse{UserID: claims.UserID, TotalUsers: total})
		return
	}
	if err != nil {
		slog.Warn("rank lookup failed", "user", claims.UserID, "error", err)
		writeJSON(w, http.StatusOK, viewerRankResponse{UserID: claims.UserID})
		return
	}
	writeJSON(w, http.StatusOK, viewerRankResponse{
		UserID:     claims.UserID,
		Rank:       rank,
		Metric:     metric,
		TotalUsers: total,
		Ranked:     true,
	})
}

func (s *Server) handleResolveBuildings(w http.ResponseWriter, r *http.Request) {
	coord, ok := parseCoordinate(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_coordinate")
		return
	}
	buildings, err := s.resolver.Resolve(r.Context(), coord)
	if err != nil {
		slog.Warn("building resolve failed", "error", err)
		buildings = nil
	}
	if buildings == nil {
		buildings = []model.BuildingInfo{}
	}
	writeJSON(w, http.StatusOK, buildings)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}

	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.DurationMinutes <= 0 || req.StartTime == 0 || req.EndTime == 0 {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}
	if req.EndTime < req.StartTime {
		writeError(w, http.StatusBadRequest, "invalid_time_range")
		return
	}
	if req.Location != nil && !validCoordinate(*req.Location) {
		writeError(w, http.StatusBadRequest, "invalid_coordinate")
		return
	}

	session := model.SessionRecord{
		ID:              uuid.New().String(),
		UserID:          claims.UserID,
		Username:        claims.Username,
		DurationMinutes: req.DurationMinutes,
		WasSuccessful:   req.WasSuccessful,
		Location:        req.Location,
		StartTime:       time.Unix(req.StartTime, 0).UTC(),
		EndTime:         time.Unix(req.EndTime, 0).UTC(),
	}
	if req.Location != nil {
		session.BuildingID = geo.BuildingKey(*req.Location)
	}

	if err := s.sessions.Create(r.Context(), session); err != nil {
		slog.Error("session create failed", "user", claims.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if session.WasSuccessful {
		if err := s.users.AddFocusTime(r.Context(), claims.UserID, claims.Username, session.DurationMinutes); err != nil {
			// The session itself is stored; the lifetime total catches up on
			// the next successful write.
			slog.Warn("focus time update failed", "user", claims.UserID, "error", err)
		}
	}

	writeJSON(w, http.StatusCreated, session)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	filter := store.SessionFilter{
		UserID: r.URL.Query().Get("userId"),
		Limit:  int64(parseLimit(r, 100)),
	}
	if raw := r.URL.Query().Get("since"); raw != "" {
		seconds, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_since")
			return
		}
		filter.StartedAfter = time.Unix(seconds, 0).UTC()
	}

	sessions, err := s.sessions.List(r.Context(), filter)
	if err != nil {
		slog.Warn("session list failed", "error", err)
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if sessions == nil {
		sessions = []model.SessionRecord{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleGetPrivacy(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	setting, err := s.privacy.Get(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, setting)
}

func (s *Server) handlePutPrivacy(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	var req putPrivacyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	mode := model.DisplayMode(req.RegionalDisplayMode)
	if mode == "" {
		mode = model.DisplayModeNormal
	}
	if mode != model.DisplayModeNormal && mode != model.DisplayModeAnonymous {
		writeError(w, http.StatusBadRequest, "invalid_display_mode")
		return
	}

	setting := model.PrivacySetting{
		UserID:      claims.UserID,
		OptOut:      req.RegionalOptOut,
		DisplayMode: mode,
	}
	if err := s.privacy.Put(r.Context(), setting); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, setting)
}

// loadBoard applies the empty-board failure semantics: a failed load logs and
// renders as no entries, never as an error response.
func (s *Server) loadBoard(ctx context.Context, scope leaderboard.Scope, window leaderboard.Window) []model.LeaderboardEntry {
	loadCtx, cancel := context.WithTimeout(ctx, s.cfg.QueryTimeout)
	defer cancel()

	entries, err := s.agg.Load(loadCtx, scope, window)
	if err != nil {
		slog.Warn("leaderboard load failed", "scope", scope.Kind, "window", window, "error", err)
		return []model.LeaderboardEntry{}
	}
	if entries == nil {
		entries = []model.LeaderboardEntry{}
	}
	return entries
}

// snapshotEntries serves the background-refreshed global weekly board when
// one is fresh in redis.
func (s *Server) snapshotEntries(ctx context.Context) ([]model.LeaderboardEntry, bool) {
	if s.redis == nil {
		return nil, false
	}
	raw, err := s.redis.Get(ctx, jobs.SnapshotKey).Result()
	if err != nil {
		if err != redis.Nil {
			slog.Warn("snapshot read failed", "error", err)
		}
		return nil, false
	}
	var entries []model.LeaderboardEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, false
	}
	return entries, true
}

// Helpers

func parseCoordinate(r *http.Request) (model.Coordinate, bool) {
	lat, errLat := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lon, errLon := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if errLat != nil || errLon != nil {
		return model.Coordinate{}, false
	}
	coord := model.Coordinate{Latitude: lat, Longitude: lon}
	return coord, validCoordinate(coord)
}

func validCoordinate(c model.Coordinate) bool {
	return c.Latitude >= -90 && c.Latitude <= 90 && c.Longitude >= -180 && c.Longitude <= 180
}

func parseWindow(r *http.Request) (leaderboard.Window, bool) {
	switch r.URL.Query().Get("window") {
	case "", "weekly":
		return leaderboard.WindowCurrentWeek, true
	case "allTime", "all-time":
		return leaderboard.WindowAllTime, true
	default:
		return "", false
	}
}

func parseLimit(r *http.Request, fallback int32) int32 {
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			return int32(parsed)
		}
	}
	return fallback
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
