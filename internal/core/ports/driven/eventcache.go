package driven

import (
	"context"
	"time"
)

// EventCache suppresses duplicate webhook deliveries. Vendors deliver
// at-least-once; marking an event id seen before dispatch makes the
// processing path effectively once per delivery id.
type EventCache interface {
	// MarkSeen records an event id with a TTL. Returns true when the id was
	// not seen before, false when this is a replay.
	MarkSeen(ctx context.Context, eventID string, ttl time.Duration) (bool, error)
}
