// Package redis provides a Redis-backed webhook event cache so that
// replayed deliveries are suppressed across process restarts and
// across replicas.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/corpushq/connectors/internal/core/ports/driven"
)

const keyPrefix = "connectors:webhook:"

// EventCache records webhook event IDs in Redis with a TTL.
type EventCache struct {
	client *redis.Client
}

var _ driven.EventCache = (*EventCache)(nil)

// NewEventCache connects to the Redis instance at addr.
func NewEventCache(addr, password string, db int) (*EventCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return &EventCache{client: client}, nil
}

// NewEventCacheWithClient wraps an existing client. Used in tests.
func NewEventCacheWithClient(client *redis.Client) *EventCache {
	return &EventCache{client: client}
}

// Close closes the underlying connection.
func (c *EventCache) Close() error {
	return c.client.Close()
}

// MarkSeen records eventID and reports whether this was its first
// sighting. SET NX gives us an atomic check-and-set so concurrent
// deliveries of the same event resolve to exactly one first sighting.
func (c *EventCache) MarkSeen(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	first, err := c.client.SetNX(ctx, keyPrefix+eventID, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("marking event seen: %w", err)
	}
	return first, nil
}
