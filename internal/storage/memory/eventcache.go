package memory

import (
	"context"
	"sync"
	"time"

	"github.com/corpushq/connectors/internal/core/ports/driven"
)

// Ensure EventCache implements the interface.
var _ driven.EventCache = (*EventCache)(nil)

// EventCache remembers webhook delivery ids with a TTL.
type EventCache struct {
	mu   sync.Mutex
	seen map[string]time.Time
	now  func() time.Time
}

// NewEventCache creates an empty event cache.
func NewEventCache() *EventCache {
	return &EventCache{seen: make(map[string]time.Time), now: time.Now}
}

// MarkSeen records an event id. Returns true for first sight, false for a
// replay within the TTL.
func (c *EventCache) MarkSeen(_ context.Context, eventID string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if expiry, ok := c.seen[eventID]; ok && now.Before(expiry) {
		return false, nil
	}

	// Opportunistic sweep of expired entries.
	for id, expiry := range c.seen {
		if now.After(expiry) {
			delete(c.seen, id)
		}
	}

	c.seen[eventID] = now.Add(ttl)
	return true, nil
}
