package zoom

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/corpushq/connectors/internal/core/domain"
)

// Webhook event names this adapter imports from.
const (
	EventRecordingCompleted  = "recording.completed"
	EventTranscriptCompleted = "recording.transcript_completed"
	EventURLValidation       = "endpoint.url_validation"
)

type webhookPayload struct {
	Event   string `json:"event"`
	EventTS int64  `json:"event_ts"`
	Payload struct {
		AccountID  string           `json:"account_id"`
		PlainToken string           `json:"plainToken"`
		Object     meetingRecording `json:"object"`
	} `json:"payload"`
}

// ValidateSignature checks the x-zm-signature header against the raw
// request body. The signed message is "v0:{timestamp}:{body}".
func (c *Connector) ValidateSignature(signature, timestamp string, body []byte) bool {
	if c.webhookSecret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(c.webhookSecret))
	fmt.Fprintf(mac, "v0:%s:%s", timestamp, body)
	expected := "v0=" + hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}

// URLValidation is the response body Zoom expects for the
// endpoint.url_validation handshake.
type URLValidation struct {
	PlainToken     string `json:"plainToken"`
	EncryptedToken string `json:"encryptedToken"`
}

// URLValidationResponse answers the subscription handshake: the plain
// token echoed back beside its HMAC under the webhook secret.
func (c *Connector) URLValidationResponse(plainToken string) URLValidation {
	mac := hmac.New(sha256.New, []byte(c.webhookSecret))
	mac.Write([]byte(plainToken))
	return URLValidation{
		PlainToken:     plainToken,
		EncryptedToken: hex.EncodeToString(mac.Sum(nil)),
	}
}

// HandleWebhook imports the recordings of the meeting named in a
// recording.completed or recording.transcript_completed event, through the
// same per-meeting routine Sync uses. The url_validation handshake is
// answered by the HTTP layer via URLValidationResponse; here it is a no-op.
func (c *Connector) HandleWebhook(ctx context.Context, event domain.WebhookEvent) error {
	var payload webhookPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("decode webhook payload: %w", err)
	}

	switch payload.Event {
	case EventURLValidation:
		c.log.Debug("url validation handshake received")
		return nil
	case EventRecordingCompleted, EventTranscriptCompleted:
	default:
		c.log.Debug("ignoring webhook event", "event", payload.Event)
		return nil
	}

	meeting := payload.Payload.Object
	if meeting.UUID == "" {
		return fmt.Errorf("%w: webhook payload missing meeting uuid", domain.ErrInvalidInput)
	}

	result := &domain.SyncResult{StartedAt: time.Now()}
	if err := c.processMeeting(ctx, meeting, result); err != nil {
		return fmt.Errorf("process meeting %s: %w", meeting.UUID, err)
	}

	c.log.Info("webhook processed",
		"event", payload.Event,
		"meeting_uuid", meeting.UUID,
		"processed", result.FilesProcessed,
		"updated", result.FilesUpdated,
		"failed", result.FilesFailed)
	return nil
}
