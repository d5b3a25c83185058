package store

import (
	"context"
	"time"

	"github.com/flipapp/leaderboard/internal/model"
)

// SessionFilter is the query surface the aggregation pipeline needs from the
// document store: equality filters, a lower bound on start time, sort and
// limit. Geometry is always filtered client-side; the store has no native
// geo-radius query.
type SessionFilter struct {
	SuccessfulOnly     bool
	StartedAfter       time.Time // zero value means no lower bound
	BuildingID         string
	UserID             string
	SortByDurationDesc bool
	Limit              int64
}

type SessionStore interface {
	List(ctx context.Context, filter SessionFilter) ([]model.SessionRecord, error)
	Create(ctx context.Context, session model.SessionRecord) error
	// Watch re-delivers the full set matching filter on every change to the
	// sessions collection. The channel closes when ctx is done.
	Watch(ctx context.Context, filter SessionFilter) (<-chan []model.SessionRecord, error)
}

type PrivacyStore interface {
	// Get returns the default setting when no document exists for the user.
	Get(ctx context.Context, userID string) (model.PrivacySetting, error)
	Put(ctx context.Context, setting model.PrivacySetting) error
}

type UserStore interface {
	// Get returns a zero profile (ID only) when no document exists.
	Get(ctx context.Context, userID string) (model.UserProfile, error)
	TopByTotalFocusTime(ctx context.Context, limit int64) ([]model.UserProfile, error)
	// AddFocusTime increments the pre-aggregated lifetime total, creating the
	// profile if needed and refreshing the username snapshot.
	AddFocusTime(ctx context.Context, userID, username string, minutes int) error
}
