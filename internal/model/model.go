package model

import "time"

type Coordinate struct {
	Latitude  float64 `bson:"latitude" json:"latitude"`
	Longitude float64 `bson:"longitude" json:"longitude"`
}

// SessionRecord is one completed face-down focus interval. Username is a
// snapshot taken at session time and may be stale relative to the user profile.
type SessionRecord struct {
	ID              string      `bson:"_id" json:"id"`
	UserID          string      `bson:"user_id" json:"userId"`
	Username        string      `bson:"username" json:"username"`
	DurationMinutes int         `bson:"duration_minutes" json:"durationMinutes"`
	WasSuccessful   bool        `bson:"was_successful" json:"wasSuccessful"`
	Location        *Coordinate `bson:"location,omitempty" json:"location,omitempty"`
	BuildingID      string      `bson:"building_id,omitempty" json:"buildingId,omitempty"`
	StartTime       time.Time   `bson:"start_time" json:"startTime"`
	EndTime         time.Time   `bson:"end_time" json:"endTime"`
}

type DisplayMode string

const (
	DisplayModeNormal    DisplayMode = "normal"
	DisplayModeAnonymous DisplayMode = "anonymous"
)

// PrivacySetting is created lazily on the first settings write; an absent
// document reads as the default below.
type PrivacySetting struct {
	UserID      string      `bson:"_id" json:"userId"`
	OptOut      bool        `bson:"regional_opt_out" json:"regionalOptOut"`
	DisplayMode DisplayMode `bson:"regional_display_mode" json:"regionalDisplayMode"`
}

func DefaultPrivacySetting(userID string) PrivacySetting {
	return PrivacySetting{UserID: userID, OptOut: false, DisplayMode: DisplayModeNormal}
}

type StreakStatus string

const (
	StreakNone   StreakStatus = "none"
	StreakActive StreakStatus = "active"
	StreakFrozen StreakStatus = "frozen"
)

// UserProfile carries the pre-aggregated lifetime total and the decorative
// fields joined onto leaderboard entries best-effort.
type UserProfile struct {
	ID              string       `bson:"_id" json:"id"`
	Username        string       `bson:"username" json:"username"`
	ProfileImageURL string       `bson:"profile_image_url,omitempty" json:"profileImageUrl,omitempty"`
	TotalFocusTime  int          `bson:"total_focus_time" json:"totalFocusTime"`
	Score           int          `bson:"score" json:"score"`
	StreakStatus    StreakStatus `bson:"streak_status,omitempty" json:"streakStatus,omitempty"`
}

// LeaderboardEntry is derived and transient, recomputed on every load.
type LeaderboardEntry struct {
	UserID          string       `json:"userId"`
	DisplayName     string       `json:"displayName"`
	Metric          int          `json:"metric"`
	Rank            int          `json:"rank"`
	Score           *int         `json:"score,omitempty"`
	StreakStatus    StreakStatus `json:"streakStatus"`
	ProfileImageURL string       `json:"profileImageUrl,omitempty"`
}

type BuildingInfo struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Coordinate     Coordinate `json:"coordinate"`
	Popularity     int        `json:"popularity"`
	DistanceMeters float64    `json:"distanceMeters"`
}
