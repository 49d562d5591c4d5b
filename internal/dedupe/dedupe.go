// Package dedupe drops events the dispatcher has already seen. Hosts that
// deliver events at least once can redeliver; without a guard each
// redelivery sends the push again.
package dedupe

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bjaus/pushdispatch"
	"github.com/bjaus/pushdispatch/internal/logx"
)

// DuplicateReason is the skip reason of a dropped event.
const DuplicateReason = "duplicate event"

// Guard claims event ids. Claim reports true the first time an id is
// claimed and false afterwards.
type Guard interface {
	Claim(ctx context.Context, eventID string) (bool, error)
}

// Redis claims ids with SET NX so concurrent replicas agree on the first
// claimant. Claims expire after the TTL.
type Redis struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewRedis returns a Guard storing claims under prefix in client.
func NewRedis(client redis.Cmdable, prefix string, ttl time.Duration) *Redis {
	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

// Claim implements Guard.
func (r *Redis) Claim(ctx context.Context, eventID string) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.prefix+eventID, time.Now().UTC().Format(time.RFC3339), r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim event %s: %w", eventID, err)
	}
	return ok, nil
}

// Observer is told about every dropped event.
type Observer interface {
	ObserveDuplicate()
}

// Filter returns a router filter that admits an event only when g grants
// its id. Events without an id are always admitted. When the guard fails
// the event is admitted and the error logged, so an unreachable guard
// never blocks delivery. obs may be nil.
func Filter(g Guard, obs Observer) pushdispatch.FilterFunc {
	return func(ctx context.Context, ev pushdispatch.Event) (bool, string) {
		if ev.ID == "" {
			return true, ""
		}

		claimed, err := g.Claim(ctx, ev.ID)
		if err != nil {
			logx.From(ctx).Warn("dedupe guard unavailable, admitting event",
				"event_id", ev.ID,
				"error", err,
			)
			return true, ""
		}
		if !claimed {
			logx.From(ctx).Info("dropping duplicate event", "event_id", ev.ID)
			if obs != nil {
				obs.ObserveDuplicate()
			}
			return false, DuplicateReason
		}
		return true, ""
	}
}
