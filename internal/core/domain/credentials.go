package domain

import "time"

// TokenExpiryBuffer is how long before the recorded expiry instant a token
// is treated as expiring. Refreshing inside this window avoids racing the
// vendor's own rejection of the token.
const TokenExpiryBuffer = 5 * time.Minute

// ConnectorCredentials holds the tokens a connector uses against its vendor.
// Owned by the caller and persisted through a CredentialsStore; mutated only
// by refresh operations.
type ConnectorCredentials struct {
	// AccessToken is the bearer token for API access.
	AccessToken string `json:"access_token"`
	// RefreshToken is used to obtain new access tokens. Empty for vendors
	// with non-expiring tokens (Notion) and for no-auth connectors.
	RefreshToken string `json:"refresh_token,omitempty"`
	// Expiry is when the access token expires. Zero means non-expiring.
	Expiry time.Time `json:"expiry,omitempty"`
	// Scopes lists the granted OAuth scopes, when the vendor reports them.
	Scopes []string `json:"scopes,omitempty"`
	// Extra carries vendor-specific fields (tenant id, bot id, workspace id).
	Extra map[string]string `json:"extra,omitempty"`

	// Version is the optimistic-concurrency token maintained by the
	// credentials store. A refresh persisted with a stale version fails with
	// ErrCredentialConflict instead of overwriting a newer token.
	Version int64 `json:"version"`
}

// IsAuthenticated reports whether an access token is present.
func (c *ConnectorCredentials) IsAuthenticated() bool {
	return c != nil && c.AccessToken != ""
}

// ExpiresWithin reports whether the token expires inside the given window.
// Non-expiring tokens never do.
func (c *ConnectorCredentials) ExpiresWithin(window time.Duration) bool {
	if c == nil || c.Expiry.IsZero() {
		return false
	}
	return time.Now().Add(window).After(c.Expiry)
}

// NeedsRefresh reports whether the token is inside the expiry buffer and a
// refresh token is available to do something about it.
func (c *ConnectorCredentials) NeedsRefresh() bool {
	return c.ExpiresWithin(TokenExpiryBuffer) && c.RefreshToken != ""
}

// HasScope reports whether the given scope was granted. Vendors that do not
// report scopes yield false for everything.
func (c *ConnectorCredentials) HasScope(scope string) bool {
	if c == nil {
		return false
	}
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// OAuthApp holds the per-vendor OAuth application settings read from the
// environment at construction time. These identify the product's registered
// app, not a user grant.
type OAuthApp struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	// TenantID applies to Microsoft identity platform vendors only.
	TenantID string
	// AuthURL and TokenURL override the vendor defaults when set.
	AuthURL  string
	TokenURL string
	Scopes   []string
}

// Configured reports whether the app registration is usable.
func (a OAuthApp) Configured() bool {
	return a.ClientID != "" && a.ClientSecret != ""
}
