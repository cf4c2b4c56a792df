// Package idempotency replays stored responses for repeated POSTs carrying
// the same Idempotency-Key.
package idempotency

import (
	"context"
	"time"

	redisadapter "github.com/robertarktes/travel-bookings-and-inventory/internal/adapters/redis"
)

type Idempotency struct {
	redis *redisadapter.Idempotency
	ttl   time.Duration
}

func NewIdempotency(redis *redisadapter.Idempotency, ttl time.Duration) *Idempotency {
	return &Idempotency{redis: redis, ttl: ttl}
}

type Response struct {
	Status int
	Result []byte
}

// Get returns the stored response for the key, or nil when the key is new.
func (i *Idempotency) Get(ctx context.Context, key string) (*Response, error) {
	stored, err := i.redis.Get(ctx, key)
	if err != nil || stored == nil {
		return nil, err
	}
	return &Response{Status: stored.Status, Result: stored.Result}, nil
}

func (i *Idempotency) Set(ctx context.Context, key string, resp Response) error {
	return i.redis.Set(ctx, key, redisadapter.StoredResponse{Status: resp.Status, Result: resp.Result}, i.ttl)
}
