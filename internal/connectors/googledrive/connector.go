// Package googledrive imports files from Google Drive and publishes
// documents back to it. Workspace-native documents are exported and
// converted to markdown; regular files are downloaded as-is.
package googledrive

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	googleauth "golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/corpushq/connectors/internal/core/domain"
	"github.com/corpushq/connectors/internal/core/ports/driven"
	"github.com/corpushq/connectors/internal/core/services"
)

// OAuth scopes. The read scope is always requested; the write scope only
// when publishing is enabled for the connector instance.
const (
	ScopeDriveReadonly = "https://www.googleapis.com/auth/drive.readonly"
	ScopeDriveFile     = "https://www.googleapis.com/auth/drive.file"
)

const defaultPageSize = 100

// Connector implements the Google Drive adapter.
type Connector struct {
	connectorID string
	orgID       string
	app         domain.OAuthApp
	oauthCfg    *oauth2.Config
	folderID    string
	pageSize    int64

	credStore driven.CredentialsStore
	tokens    *services.TokenManager
	deduper   *services.Deduper
	limiter   *services.RateLimiter
	log       *slog.Logger

	// updatedMu guards SyncResult counter updates inside a batch.
	updatedMu sync.Mutex

	// newService is swapped in tests to point at a fixture server.
	newService func(ctx context.Context, ts oauth2.TokenSource) (*drive.Service, error)
}

var (
	_ driven.Connector           = (*Connector)(nil)
	_ driven.CredentialRefresher = (*Connector)(nil)
	_ driven.Publisher           = (*Connector)(nil)
)

// New creates a Google Drive connector from the given options.
func New(opts driven.ConnectorOptions) (*Connector, error) {
	if opts.Credentials == nil {
		return nil, fmt.Errorf("googledrive: credentials store required")
	}

	id := opts.ConnectorID
	if id == "" {
		id = uuid.NewString()
	}

	scopes := opts.App.Scopes
	if len(scopes) == 0 {
		scopes = []string{ScopeDriveReadonly, ScopeDriveFile}
	}
	oauthCfg := &oauth2.Config{
		ClientID:     opts.App.ClientID,
		ClientSecret: opts.App.ClientSecret,
		RedirectURL:  opts.App.RedirectURI,
		Scopes:       scopes,
		Endpoint:     googleauth.Endpoint,
	}
	if opts.App.AuthURL != "" {
		oauthCfg.Endpoint.AuthURL = opts.App.AuthURL
	}
	if opts.App.TokenURL != "" {
		oauthCfg.Endpoint.TokenURL = opts.App.TokenURL
	}

	c := &Connector{
		connectorID: id,
		orgID:       opts.OrgID,
		app:         opts.App,
		oauthCfg:    oauthCfg,
		folderID:    opts.Setting("folder_id", ""),
		pageSize:    defaultPageSize,
		credStore:   opts.Credentials,
		limiter:     services.NewRateLimiter(services.DriveRateLimit),
		log:         opts.Log().With("connector", "google-drive", "connector_id", id),
		newService: func(ctx context.Context, ts oauth2.TokenSource) (*drive.Service, error) {
			return drive.NewService(ctx, option.WithTokenSource(ts))
		},
	}
	c.tokens = services.NewTokenManager(id, opts.Credentials, c.refreshGrant, c.log)
	if opts.Documents != nil {
		c.deduper = services.NewDeduper(opts.Documents, c.log)
	}
	return c, nil
}

// Type returns the connector type identifier.
func (c *Connector) Type() domain.ConnectorType {
	return domain.ConnectorTypeGoogleDrive
}

// ID returns the connector instance identity.
func (c *Connector) ID() string {
	return c.connectorID
}

// Authenticate exchanges an authorization code from creds.Extra["code"], or
// validates existing tokens with a lightweight About call. With neither, the
// result carries the authorization URL.
func (c *Connector) Authenticate(ctx context.Context, creds domain.ConnectorCredentials) (*domain.AuthResult, error) {
	if !c.app.Configured() {
		return &domain.AuthResult{
			Success: false,
			Error:   "Google OAuth app is not configured; set GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET",
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
			Scopes:       c.oauthCfg.Scopes,
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
		AuthURL: c.oauthCfg.AuthCodeURL(c.connectorID, oauth2.AccessTypeOffline),
		Error:   "authorization required",
	}, nil
}

// identify validates the stored token and resolves the account identity.
func (c *Connector) identify(ctx context.Context) (*domain.AuthResult, error) {
	svc, err := c.service(ctx)
	if err != nil {
		return &domain.AuthResult{Success: false, Error: err.Error()}, nil
	}
	about, err := svc.About.Get().Fields("user").Context(ctx).Do()
	if err != nil {
		err = wrapError(err, "validate token")
		return &domain.AuthResult{Success: false, Error: err.Error()}, nil
	}
	res := &domain.AuthResult{Success: true}
	if about.User != nil {
		res.UserID = about.User.EmailAddress
		res.UserName = about.User.DisplayName
	}
	return res, nil
}

// TestConnection makes a lightweight About call against the Drive API.
func (c *Connector) TestConnection(ctx context.Context) (*domain.TestResult, error) {
	svc, err := c.service(ctx)
	if err != nil {
		return &domain.TestResult{Success: false, Message: err.Error()}, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	about, err := svc.About.Get().Fields("user", "storageQuota").Context(ctx).Do()
	if err != nil {
		err = wrapError(err, "test connection")
		return &domain.TestResult{Success: false, Message: err.Error()}, nil
	}

	res := &domain.TestResult{Success: true, Message: "Google Drive reachable"}
	if about.User != nil {
		res.Metadata = map[string]any{"email": about.User.EmailAddress}
	}
	return res, nil
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

// service builds a Drive service whose token source pulls through the token
// manager, so every request gets a fresh-enough token.
func (c *Connector) service(ctx context.Context) (*drive.Service, error) {
	return c.newService(ctx, &managedTokenSource{ctx: ctx, tokens: c.tokens})
}

// managedTokenSource adapts the token manager to oauth2.TokenSource.
type managedTokenSource struct {
	ctx    context.Context
	tokens *services.TokenManager
}

func (s *managedTokenSource) Token() (*oauth2.Token, error) {
	creds, err := s.tokens.Credentials(s.ctx)
	if err != nil {
		return nil, err
	}
	tok := &oauth2.Token{
		AccessToken: creds.AccessToken,
		TokenType:   "Bearer",
	}
	if !creds.Expiry.IsZero() {
		tok.Expiry = creds.Expiry
	} else {
		// Non-expiring as far as we know; keep the source from refreshing.
		tok.Expiry = time.Now().Add(time.Hour)
	}
	return tok, nil
}
