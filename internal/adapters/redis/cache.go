package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robertarktes/travel-bookings-and-inventory/internal/domain"
)

type Cache struct {
	client *redis.Client
}

func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func (c *Cache) Client() *redis.Client {
	return c.client
}

// GetItineraries returns cached search results, or nil on a miss.
func (c *Cache) GetItineraries(ctx context.Context, key string) ([]domain.Itinerary, error) {
	data, err := c.client.Get(ctx, "search:"+key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var itineraries []domain.Itinerary
	if err := json.Unmarshal(data, &itineraries); err != nil {
		return nil, err
	}
	return itineraries, nil
}

func (c *Cache) SetItineraries(ctx context.Context, key string, itineraries []domain.Itinerary, ttl time.Duration) error {
	data, err := json.Marshal(itineraries)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, "search:"+key, data, ttl).Err()
}
