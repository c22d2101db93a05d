package driven

import (
	"log/slog"

	"github.com/corpushq/connectors/internal/core/domain"
)

// ConnectorOptions carries everything a connector constructor needs: the
// instance identity, the vendor app registration, vendor-specific settings,
// and the injected collaborators. Vendor constructors read what they need
// and ignore the rest.
type ConnectorOptions struct {
	// ConnectorID identifies the connector instance for persistence. When
	// empty, constructors generate one.
	ConnectorID string

	// OrgID scopes the connector to an organization. Informational here;
	// carried into source metadata.
	OrgID string

	// App is the vendor OAuth application registration from the
	// environment. Zero value for no-auth connectors.
	App domain.OAuthApp

	// Settings holds vendor-specific configuration: folder/site/drive
	// identifiers, page sizes, size ceilings.
	Settings map[string]string

	// Credentials is the credential store; required for OAuth vendors.
	Credentials CredentialsStore

	// Documents is the imported-document store; required by any connector
	// whose Sync writes documents.
	Documents DocumentStore

	// Blobs receives upload-adapter payloads.
	Blobs BlobStore

	// Events suppresses webhook replays for push-based vendors. Optional.
	Events EventCache

	// Logger defaults to slog.Default when nil.
	Logger *slog.Logger
}

// Setting returns a vendor setting or the given default.
func (o ConnectorOptions) Setting(key, def string) string {
	if v, ok := o.Settings[key]; ok && v != "" {
		return v
	}
	return def
}

// Log returns the configured logger or the process default.
func (o ConnectorOptions) Log() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}
