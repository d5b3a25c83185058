package store

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/flipapp/leaderboard/internal/model"
)

// Watch opens a change stream on the sessions collection and re-delivers the
// full set matching filter on every change, mirroring the snapshot-listener
// semantics the mobile clients were built against. The initial matching set is
// delivered before any change event. Sends never block: if the consumer is
// behind, the pending delivery is replaced by the newer one.
func (s *Store) Watch(ctx context.Context, filter SessionFilter) (<-chan []model.SessionRecord, error) {
	stream, err := s.sessions.Watch(ctx, mongo.Pipeline{})
	if err != nil {
		return nil, fmt.Errorf("watch sessions: %w", err)
	}

	out := make(chan []model.SessionRecord, 1)

	deliver := func() {
		records, err := s.List(ctx, filter)
		if err != nil {
			slog.Warn("session watch requery failed", "error", err)
			return
		}
		select {
		case out <- records:
		default:
			// Drop the stale pending set, keep the newest.
			select {
			case <-out:
			default:
			}
			out <- records
		}
	}

	go func() {
		defer close(out)
		defer stream.Close(context.Background())

		deliver()
		for stream.Next(ctx) {
			deliver()
		}
		if err := stream.Err(); err != nil && ctx.Err() == nil {
			slog.Warn("session change stream closed", "error", err)
		}
	}()

	return out, nil
}
