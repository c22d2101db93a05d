package driven

import (
	"context"

	"github.com/corpushq/connectors/internal/core/domain"
)

// CredentialsStore persists per-connector credentials. It is the single
// choke point for token refresh: refreshed tokens are written back here
// before use so concurrent adapter instances do not race on stale tokens.
type CredentialsStore interface {
	// Get returns the stored credentials for a connector, or ErrNotFound.
	Get(ctx context.Context, connectorID string) (*domain.ConnectorCredentials, error)

	// Save persists credentials. expectedVersion is the Version read before
	// the mutation; when the stored version has moved on, Save fails with
	// ErrCredentialConflict and the caller re-reads instead of overwriting.
	// Pass zero to create.
	Save(ctx context.Context, connectorID string, creds domain.ConnectorCredentials, expectedVersion int64) error

	// Delete removes the stored credentials.
	Delete(ctx context.Context, connectorID string) error
}
