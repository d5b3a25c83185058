package leaderboard

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/flipapp/leaderboard/internal/cache"
	"github.com/flipapp/leaderboard/internal/model"
	"github.com/flipapp/leaderboard/internal/store"
)

// slowSessionStore blocks the first List call until released, so a test can
// start a second load while the first is still in flight.
type slowSessionStore struct {
	inner   *fakeSessionStore
	started chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func (s *slowSessionStore) List(ctx context.Context, filter store.SessionFilter) ([]model.SessionRecord, error) {
	if s.calls.Add(1) == 1 {
		s.started <- struct{}{}
		<-s.release
	}
	return s.inner.List(ctx, filter)
}

func (s *slowSessionStore) Create(ctx context.Context, session model.SessionRecord) error {
	return s.inner.Create(ctx, session)
}

func (s *slowSessionStore) Watch(ctx context.Context, filter store.SessionFilter) (<-chan []model.SessionRecord, error) {
	return s.inner.Watch(ctx, filter)
}

func TestLoaderInstallsResult(t *testing.T) {
	center := coord(0, 0)
	at1 := pointAtMiles(center, 1)
	sessions := &fakeSessionStore{sessions: []model.SessionRecord{
		session("u1", 30, true, "", &at1),
	}}
	loader := NewLoader(newTestAggregator(sessions, &fakePrivacyStore{}, &fakeUserStore{}))

	entries, err := loader.Load(context.Background(), RegionScope(center, 5), WindowCurrentWeek)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	current := loader.Current()
	if len(current) != 1 || current[0].UserID != "u1" {
		t.Fatalf("expected result installed as current, got %+v", current)
	}
}

func TestLoaderDiscardsStaleLoad(t *testing.T) {
	center := coord(0, 0)
	at1 := pointAtMiles(center, 1)
	slow := &slowSessionStore{
		inner: &fakeSessionStore{sessions: []model.SessionRecord{
			session("u1", 30, true, "", &at1),
			session("u2", 60, true, "", &at1),
		}},
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	agg := NewAggregator(slow, &fakePrivacyStore{}, &fakeUserStore{}, cache.NewProfileCache(nil, &fakeUserStore{}, 0))
	agg.now = func() time.Time { return testNow }
	loader := NewLoader(agg)

	firstDone := make(chan error, 1)
	go func() {
		_, err := loader.Load(context.Background(), BuildingScope("bldgA", center), WindowCurrentWeek)
		firstDone <- err
	}()
	<-slow.started

	// A newer load starts and finishes while the first is still in flight.
	entries, err := loader.Load(context.Background(), GlobalScope(), WindowCurrentWeek)
	if err != nil {
		t.Fatalf("second load failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries from second load, got %d", len(entries))
	}

	close(slow.release)
	if err := <-firstDone; err != ErrStale {
		t.Fatalf("expected the superseded load to be discarded, got %v", err)
	}

	current := loader.Current()
	if len(current) != 2 {
		t.Fatalf("stale result must not overwrite the newer one, got %+v", current)
	}
}
