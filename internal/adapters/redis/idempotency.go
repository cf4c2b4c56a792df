package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const idempotencyPrefix = "idemp:"

// Idempotency persists serialized HTTP responses keyed by client-supplied
// Idempotency-Key headers.
type Idempotency struct {
	client *redis.Client
}

func NewIdempotency(client *redis.Client) *Idempotency {
	return &Idempotency{client: client}
}

// StoredResponse is the cached status and body of a completed request.
type StoredResponse struct {
	Status int    `json:"status"`
	Result []byte `json:"result"`
}

// Get returns the stored response for key, or nil on a miss.
func (i *Idempotency) Get(ctx context.Context, key string) (*StoredResponse, error) {
	val, err := i.client.Get(ctx, idempotencyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var resp StoredResponse
	if err := json.Unmarshal(val, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (i *Idempotency) Set(ctx context.Context, key string, resp StoredResponse, ttl time.Duration) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return i.client.Set(ctx, idempotencyPrefix+key, data, ttl).Err()
}
