package teams

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/corpushq/connectors/internal/connectors/msgraph"
	"github.com/corpushq/connectors/internal/core/domain"
)

// changeNotification is the Graph change-notification envelope.
type changeNotification struct {
	Value []struct {
		SubscriptionID string `json:"subscriptionId"`
		ChangeType     string `json:"changeType"`
		Resource       string `json:"resource"`
	} `json:"value"`
	ValidationTokens []string `json:"validationTokens"`
}

var meetingResourceRe = regexp.MustCompile(`onlineMeetings\('([^']+)'\)`)

// HandleWebhook processes Graph change notifications for meeting recordings
// and transcripts. The affected meeting runs through the same per-meeting
// path Sync uses. Unknown change types and unrelated resources are a no-op.
func (c *Connector) HandleWebhook(ctx context.Context, event domain.WebhookEvent) error {
	var notification changeNotification
	if err := json.Unmarshal(event.Payload, &notification); err != nil {
		return fmt.Errorf("decode change notification: %w", err)
	}

	if len(notification.ValidationTokens) > 0 {
		if err := c.ValidateNotificationTokens(notification.ValidationTokens); err != nil {
			return fmt.Errorf("validation tokens rejected: %w", err)
		}
	}

	result := &domain.SyncResult{StartedAt: time.Now()}
	for _, change := range notification.Value {
		if change.ChangeType != "created" && change.ChangeType != "updated" {
			continue
		}
		match := meetingResourceRe.FindStringSubmatch(change.Resource)
		if match == nil {
			continue
		}
		meetingID := match[1]

		meeting := msgraph.OnlineMeeting{ID: meetingID, Subject: "meeting " + meetingID}
		if err := c.processMeeting(ctx, meeting, result); err != nil {
			return fmt.Errorf("process meeting %s: %w", meetingID, err)
		}
	}

	c.log.Info("webhook processed",
		"event_id", event.ID,
		"processed", result.FilesProcessed,
		"updated", result.FilesUpdated,
		"failed", result.FilesFailed)
	return nil
}

// ValidateNotificationTokens performs a structural check on Graph
// validation tokens: well-formed JWTs whose audience matches the app
// registration and whose issuer is the Microsoft identity platform.
// Signature verification against the Graph JWKS is the HTTP layer's
// concern; this check rejects obviously forged payloads early.
func (c *Connector) ValidateNotificationTokens(tokens []string) error {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())

	for _, raw := range tokens {
		claims := jwt.MapClaims{}
		if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
			return fmt.Errorf("malformed validation token: %w", err)
		}

		aud, _ := claims.GetAudience()
		if c.app.ClientID != "" && !containsAudience(aud, c.app.ClientID) {
			return fmt.Errorf("validation token audience mismatch")
		}

		iss, _ := claims.GetIssuer()
		if !strings.Contains(iss, "login.microsoftonline.com") &&
			!strings.Contains(iss, "sts.windows.net") {
			return fmt.Errorf("validation token issuer %q not recognised", iss)
		}
	}
	return nil
}

func containsAudience(aud jwt.ClaimStrings, clientID string) bool {
	for _, a := range aud {
		if a == clientID {
			return true
		}
	}
	return false
}
