package jobs

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/flipapp/leaderboard/internal/config"
	"github.com/flipapp/leaderboard/internal/leaderboard"
	"github.com/flipapp/leaderboard/internal/store"
)

// SnapshotKey is where the refreshed global weekly board lives in redis.
const SnapshotKey = "leaderboard:global:weekly"

// StartSnapshotRefreshJob keeps a global weekly leaderboard snapshot warm in
// redis. It recomputes whenever the session watch re-delivers (any change to
// the weekly successful set) and on a fallback ticker, so the snapshot
// survives quiet change streams.
func StartSnapshotRefreshJob(ctx context.Context, cfg config.Config, sessions store.SessionStore, loader *leaderboard.Loader, redisClient *redis.Client) {
	if !cfg.SnapshotRefreshEnabled {
		return
	}
	if redisClient == nil {
		log.Printf("snapshot refresh job disabled: redis not configured")
		return
	}
	interval := cfg.SnapshotRefreshInterval
	if interval <= 0 {
		interval = time.Minute
	}

	changes, err := sessions.Watch(ctx, store.SessionFilter{
		SuccessfulOnly: true,
		StartedAfter:   leaderboard.StartOfWeek(time.Now()),
	})
	if err != nil {
		log.Printf("snapshot refresh job: watch unavailable, ticker only: %v", err)
	}

	refresh := func() {
		tickCtx, cancel := context.WithTimeout(ctx, cfg.QueryTimeout)
		defer cancel()
		entries, err := loader.Load(tickCtx, leaderboard.GlobalScope(), leaderboard.WindowCurrentWeek)
		if err != nil {
			if err != leaderboard.ErrStale {
				log.Printf("snapshot refresh error: %v", err)
			}
			return
		}
		encoded, err := json.Marshal(entries)
		if err != nil {
			log.Printf("snapshot encode error: %v", err)
			return
		}
		if err := redisClient.Set(tickCtx, SnapshotKey, encoded, cfg.SnapshotTTL).Err(); err != nil {
			log.Printf("snapshot store error: %v", err)
		}
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		refresh()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				refresh()
			case _, ok := <-changes:
				if !ok {
					changes = nil
					continue
				}
				refresh()
			}
		}
	}()
}
