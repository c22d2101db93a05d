package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/corpushq/connectors/internal/core/domain"
	"github.com/corpushq/connectors/internal/core/ports/driven"
)

// EventCacheTTL is how long webhook delivery ids are remembered for replay
// suppression. Vendors redeliver within minutes, not days.
const EventCacheTTL = 24 * time.Hour

// WebhookDispatcher routes vendor push notifications into a connector's
// webhook handler. Processing failures are logged and swallowed, never
// propagated to the HTTP layer: vendors do not want webhook senders to
// retry processing-side failures. This is a deliberate asymmetry from the
// Sync path, where item failures are surfaced per item.
type WebhookDispatcher struct {
	cache driven.EventCache
	log   *slog.Logger
}

// NewWebhookDispatcher creates a dispatcher. cache may be nil, in which
// case replay suppression is disabled.
func NewWebhookDispatcher(cache driven.EventCache, log *slog.Logger) *WebhookDispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &WebhookDispatcher{cache: cache, log: log}
}

// Dispatch hands the event to the handler. Always returns nil; the HTTP
// layer acknowledges the vendor regardless of processing outcome.
func (d *WebhookDispatcher) Dispatch(ctx context.Context, handler driven.WebhookHandler, event domain.WebhookEvent) error {
	if handler == nil {
		d.log.Warn("webhook event for connector without webhook support",
			"source", event.Source, "type", event.Type)
		return nil
	}

	if d.cache != nil && event.ID != "" {
		first, err := d.cache.MarkSeen(ctx, event.Source+":"+event.ID, EventCacheTTL)
		if err != nil {
			// Cache trouble must not drop events; process anyway.
			d.log.Warn("event cache unavailable", "error", err)
		} else if !first {
			d.log.Debug("duplicate webhook delivery dropped",
				"source", event.Source, "event_id", event.ID)
			return nil
		}
	}

	if err := handler.HandleWebhook(ctx, event); err != nil {
		d.log.Error("webhook processing failed",
			"source", event.Source, "type", event.Type, "event_id", event.ID,
			"error", err)
	}
	return nil
}
