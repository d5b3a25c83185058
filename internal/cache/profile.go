package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/flipapp/leaderboard/internal/model"
	"github.com/flipapp/leaderboard/internal/store"
)

const profileKeyPrefix = "profile:"

// ProfileCache is a read-through cache over the user store with an explicit
// TTL. It is injected wherever profile decoration happens; there is no shared
// global. With no redis client configured it degrades to a passthrough.
type ProfileCache struct {
	rdb   *redis.Client
	users store.UserStore
	ttl   time.Duration
}

func NewProfileCache(rdb *redis.Client, users store.UserStore, ttl time.Duration) *ProfileCache {
	return &ProfileCache{rdb: rdb, users: users, ttl: ttl}
}

func (c *ProfileCache) Get(ctx context.Context, userID string) (model.UserProfile, error) {
	if c.rdb == nil {
		return c.users.Get(ctx, userID)
	}

	key := profileKeyPrefix + userID
	raw, err := c.rdb.Get(ctx, key).Result()
	if err == nil {
		var profile model.UserProfile
		if err := json.Unmarshal([]byte(raw), &profile); err == nil {
			return profile, nil
		}
		// Corrupt entry, fall through to a fresh read.
	} else if err != redis.Nil {
		slog.Warn("profile cache read failed", "user", userID, "error", err)
	}

	profile, err := c.users.Get(ctx, userID)
	if err != nil {
		return model.UserProfile{}, err
	}
	if encoded, err := json.Marshal(profile); err == nil {
		if err := c.rdb.Set(ctx, key, encoded, c.ttl).Err(); err != nil {
			slog.Warn("profile cache write failed", "user", userID, "error", err)
		}
	}
	return profile, nil
}

// Invalidate drops the cached profile, typically after a successful session
// bumped the user's lifetime total.
func (c *ProfileCache) Invalidate(ctx context.Context, userID string) {
	if c.rdb == nil {
		return
	}
	if err := c.rdb.Del(ctx, profileKeyPrefix+userID).Err(); err != nil {
		slog.Warn("profile cache invalidate failed", "user", userID, "error", err)
	}
}
