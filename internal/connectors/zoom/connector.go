// Package zoom imports cloud meeting recordings and transcripts from Zoom.
// Recording events can also arrive as webhooks; both paths import through
// the same per-meeting routine.
package zoom

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/corpushq/connectors/internal/core/domain"
	"github.com/corpushq/connectors/internal/core/ports/driven"
	"github.com/corpushq/connectors/internal/core/services"
)

const (
	authURL  = "https://zoom.us/oauth/authorize"
	tokenURL = "https://zoom.us/oauth/token"
)

// defaultSyncWindow bounds a sync with no explicit Since. Zoom caps a
// single recordings listing at one month.
const defaultSyncWindow = 30 * 24 * time.Hour

const maxImportSize = 50 * 1024 * 1024

// Connector implements the Zoom adapter.
type Connector struct {
	connectorID   string
	orgID         string
	app           domain.OAuthApp
	oauthCfg      *oauth2.Config
	webhookSecret string

	client    *apiClient
	credStore driven.CredentialsStore
	tokens    *services.TokenManager
	deduper   *services.Deduper
	limiter   *services.RateLimiter
	log       *slog.Logger

	updatedMu sync.Mutex
}

var (
	_ driven.Connector           = (*Connector)(nil)
	_ driven.CredentialRefresher = (*Connector)(nil)
	_ driven.WebhookHandler      = (*Connector)(nil)
)

// New creates a Zoom connector from the given options.
func New(opts driven.ConnectorOptions) (*Connector, error) {
	if opts.Credentials == nil {
		return nil, fmt.Errorf("zoom: credentials store required")
	}

	id := opts.ConnectorID
	if id == "" {
		id = uuid.NewString()
	}

	oauthCfg := &oauth2.Config{
		ClientID:     opts.App.ClientID,
		ClientSecret: opts.App.ClientSecret,
		RedirectURL:  opts.App.RedirectURI,
		Endpoint:     oauth2.Endpoint{AuthURL: authURL, TokenURL: tokenURL},
	}
	if opts.App.AuthURL != "" {
		oauthCfg.Endpoint.AuthURL = opts.App.AuthURL
	}
	if opts.App.TokenURL != "" {
		oauthCfg.Endpoint.TokenURL = opts.App.TokenURL
	}

	c := &Connector{
		connectorID:   id,
		orgID:         opts.OrgID,
		app:           opts.App,
		oauthCfg:      oauthCfg,
		webhookSecret: opts.Setting("webhook_secret", ""),
		credStore:     opts.Credentials,
		limiter:       services.NewRateLimiter(services.ZoomRateLimit),
		log:           opts.Log().With("connector", "zoom", "connector_id", id),
	}
	c.tokens = services.NewTokenManager(id, opts.Credentials, c.refreshGrant, c.log)
	c.client = newAPIClient(c.tokens.Token, c.limiter)
	if opts.Documents != nil {
		c.deduper = services.NewDeduper(opts.Documents, c.log)
	}
	return c, nil
}

// Type returns the connector type identifier.
func (c *Connector) Type() domain.ConnectorType {
	return domain.ConnectorTypeZoom
}

// ID returns the connector instance identity.
func (c *Connector) ID() string {
	return c.connectorID
}

// Authenticate exchanges an authorization code from creds.Extra["code"], or
// validates existing tokens against users/me. With neither, the result
// carries the authorization URL.
func (c *Connector) Authenticate(ctx context.Context, creds domain.ConnectorCredentials) (*domain.AuthResult, error) {
	if !c.app.Configured() {
		return &domain.AuthResult{
			Success: false,
			Error:   "Zoom OAuth app is not configured; set ZOOM_CLIENT_ID and ZOOM_CLIENT_SECRET",
		}, nil
	}

	if code := creds.Extra["code"]; code != "" {
		token, err := c.oauthCfg.Exchange(ctx, code)
		if err != nil {
			return &domain.AuthResult{Success: false, Error: "authorization code exchange failed"}, nil
		}
		fresh := domain.ConnectorCredentials{
			AccessToken:  token.AccessToken,
			RefreshToken: token.RefreshToken,
			Expiry:       token.Expiry,
		}
		if err := c.credStore.Save(ctx, c.connectorID, fresh, creds.Version); err != nil {
			return nil, fmt.Errorf("persist credentials: %w", err)
		}
		return c.identify(ctx)
	}

	if creds.IsAuthenticated() {
		if err := c.credStore.Save(ctx, c.connectorID, creds, creds.Version); err != nil {
			return nil, fmt.Errorf("persist credentials: %w", err)
		}
		return c.identify(ctx)
	}

	return &domain.AuthResult{
		Success: false,
		AuthURL: c.oauthCfg.AuthCodeURL(c.connectorID),
		Error:   "authorization required",
	}, nil
}

func (c *Connector) identify(ctx context.Context) (*domain.AuthResult, error) {
	me, err := c.client.me(ctx)
	if err != nil {
		return &domain.AuthResult{Success: false, Error: err.Error()}, nil
	}
	return &domain.AuthResult{
		Success:  true,
		UserID:   me.Email,
		UserName: me.FirstName + " " + me.LastName,
	}, nil
}

// TestConnection makes a lightweight users/me call.
func (c *Connector) TestConnection(ctx context.Context) (*domain.TestResult, error) {
	me, err := c.client.me(ctx)
	if err != nil {
		return &domain.TestResult{Success: false, Message: err.Error()}, nil
	}
	return &domain.TestResult{
		Success:  true,
		Message:  "Zoom account reachable",
		Metadata: map[string]any{"email": me.Email, "account_id": me.AccountID},
	}, nil
}

// RefreshCredentials performs the refresh-token grant.
func (c *Connector) RefreshCredentials(ctx context.Context, creds domain.ConnectorCredentials) (*domain.ConnectorCredentials, error) {
	return c.refreshGrant(ctx, creds)
}

func (c *Connector) refreshGrant(ctx context.Context, creds domain.ConnectorCredentials) (*domain.ConnectorCredentials, error) {
	if creds.RefreshToken == "" {
		return nil, domain.ErrNoRefreshToken
	}
	ts := c.oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: creds.RefreshToken})
	token, err := ts.Token()
	if err != nil {
		return nil, fmt.Errorf("refresh grant: %w", err)
	}
	return &domain.ConnectorCredentials{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Expiry:       token.Expiry,
		Scopes:       creds.Scopes,
		Extra:        creds.Extra,
	}, nil
}
