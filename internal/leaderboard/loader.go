package leaderboard

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/flipapp/leaderboard/internal/model"
)

// ErrStale marks a load whose result arrived after a newer load had already
// started. The result is discarded instead of overwriting the newer one.
var ErrStale = errors.New("leaderboard: stale load discarded")

// Loader serializes the visible result of repeated loads. The source app let
// a slow load for one scope overwrite a faster result for another when the
// user switched scope mid-flight; the monotonic generation counter here
// closes that last-write-wins race.
type Loader struct {
	agg *Aggregator
	gen atomic.Uint64

	mu      sync.Mutex
	current []model.LeaderboardEntry
}

func NewLoader(agg *Aggregator) *Loader {
	return &Loader{agg: agg}
}

// Load runs a full aggregation and installs the result unless a newer Load
// began while this one was in flight.
func (l *Loader) Load(ctx context.Context, scope Scope, window Window) ([]model.LeaderboardEntry, error) {
	gen := l.gen.Add(1)

	entries, err := l.agg.Load(ctx, scope, window)

	if l.gen.Load() != gen {
		staleLoadsDiscarded.Inc()
		return nil, ErrStale
	}
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.current = entries
	l.mu.Unlock()
	return entries, nil
}

// Current returns the most recently installed result.
func (l *Loader) Current() []model.LeaderboardEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}
