package domain

import (
	"encoding/json"
	"time"
)

// WebhookEvent is a vendor push notification as handed over by the external
// HTTP layer. Adapters switch on Type and ignore unrecognized values.
type WebhookEvent struct {
	// ID is the vendor's delivery or event id, used for replay suppression.
	ID string `json:"id"`
	// Type is the vendor event name, e.g. "recording.completed".
	Type string `json:"type"`
	// Source names the sending vendor.
	Source string `json:"source"`
	// Payload is the raw vendor event body.
	Payload json.RawMessage `json:"payload"`
	// Timestamp is when the vendor emitted the event.
	Timestamp time.Time `json:"timestamp"`
}
