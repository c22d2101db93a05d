package driven

import (
	"context"

	"github.com/corpushq/connectors/internal/core/domain"
)

// Connector is the capability set every adapter variant satisfies, so
// callers can be written generically against it.
type Connector interface {
	// Type returns the connector type identifier.
	Type() domain.ConnectorType

	// ID returns this connector instance's identity, the first half of the
	// (connector_id, external_id) dedup key.
	ID() string

	// Authenticate establishes or validates credentials. For OAuth vendors
	// it accepts either a one-time authorization code in
	// creds.Extra["code"], exchanged for tokens, or existing tokens,
	// validated with a lightweight API call. When neither is present the
	// result carries the authorization URL and Success is false.
	Authenticate(ctx context.Context, creds domain.ConnectorCredentials) (*domain.AuthResult, error)

	// TestConnection makes a lightweight read-only vendor call. Safe to
	// call repeatedly; mutates nothing beyond a possible token refresh.
	TestConnection(ctx context.Context) (*domain.TestResult, error)

	// Sync lists and imports content since the given point. Partial failure
	// is expected and reported per item in the result; the error return is
	// reserved for the operation failing to start at all.
	Sync(ctx context.Context, opts domain.SyncOptions) (*domain.SyncResult, error)

	// ListFiles returns the normalized file listing, paginated internally
	// and flattened, capped by opts.Limit when given.
	ListFiles(ctx context.Context, opts domain.ListOptions) ([]domain.ConnectorFile, error)

	// DownloadFile fetches one item's content. Fails with ErrNotFound when
	// fileID does not resolve and ErrNotAuthenticated when no valid token
	// is available or obtainable.
	DownloadFile(ctx context.Context, fileID string) (*domain.FileContent, error)
}

// CredentialRefresher is implemented by OAuth adapters whose tokens expire.
type CredentialRefresher interface {
	// RefreshCredentials performs the vendor's refresh-token grant. Fails
	// with ErrNoRefreshToken when creds carry no refresh token.
	RefreshCredentials(ctx context.Context, creds domain.ConnectorCredentials) (*domain.ConnectorCredentials, error)
}

// WebhookHandler is implemented by push-based adapters (Zoom, Teams).
type WebhookHandler interface {
	// HandleWebhook dispatches a vendor push notification into the same
	// per-item processing path Sync uses. Unknown event types are a no-op,
	// never an error.
	HandleWebhook(ctx context.Context, event domain.WebhookEvent) error
}

// Publisher is the extended capability set of write-capable adapters
// (Google Drive, SharePoint/OneDrive). Every operation re-checks the write
// scope internally; caller-side SupportsPublish checks are advisory only.
type Publisher interface {
	// SupportsPublish reports whether a write scope is present in the
	// granted scopes.
	SupportsPublish() bool

	ListFolders(ctx context.Context, parentID string) ([]domain.ConnectorFile, error)
	CreateFolder(ctx context.Context, name, parentID string) (*domain.ConnectorFile, error)
	PublishDocument(ctx context.Context, req domain.PublishRequest) (*domain.PublishResult, error)
	UpdateDocument(ctx context.Context, externalID string, req domain.PublishRequest) (*domain.PublishResult, error)

	// DeleteDocument soft-deletes (trashes) when the vendor supports it.
	DeleteDocument(ctx context.Context, externalID string) error

	GetDocumentInfo(ctx context.Context, externalID string) (*domain.DocumentInfo, error)
}
