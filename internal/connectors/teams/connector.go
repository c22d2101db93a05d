// Package teams imports Microsoft Teams online-meeting recordings and
// transcripts via Graph. Meetings are discovered from the signed-in user's
// calendar events in the sync window.
package teams

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"

	"github.com/corpushq/connectors/internal/connectors/msgraph"
	"github.com/corpushq/connectors/internal/core/domain"
	"github.com/corpushq/connectors/internal/core/ports/driven"
	"github.com/corpushq/connectors/internal/core/services"
)

var defaultScopes = []string{
	"Calendars.Read",
	"OnlineMeetings.Read",
	"OnlineMeetingRecording.Read.All",
	"OnlineMeetingTranscript.Read.All",
	"User.Read",
	"offline_access",
}

// defaultSyncWindow bounds a full sync when no since-instant is given.
const defaultSyncWindow = 30 * 24 * time.Hour

// maxImportSize bounds a single recording or transcript import (50MB for
// recordings; transcripts are tiny).
const maxImportSize = 50 * 1024 * 1024

// Connector implements the Microsoft Teams adapter.
type Connector struct {
	connectorID string
	orgID       string
	app         domain.OAuthApp
	oauthCfg    *oauth2.Config

	credStore driven.CredentialsStore
	tokens    *services.TokenManager
	deduper   *services.Deduper
	client    *msgraph.Client
	log       *slog.Logger

	updatedMu sync.Mutex
}

var (
	_ driven.Connector           = (*Connector)(nil)
	_ driven.CredentialRefresher = (*Connector)(nil)
	_ driven.WebhookHandler      = (*Connector)(nil)
)

// New creates a Teams connector from the given options.
func New(opts driven.ConnectorOptions) (*Connector, error) {
	if opts.Credentials == nil {
		return nil, fmt.Errorf("teams: credentials store required")
	}

	id := opts.ConnectorID
	if id == "" {
		id = uuid.NewString()
	}

	tenant := opts.App.TenantID
	if tenant == "" {
		tenant = "common"
	}
	scopes := opts.App.Scopes
	if len(scopes) == 0 {
		scopes = defaultScopes
	}
	oauthCfg := &oauth2.Config{
		ClientID:     opts.App.ClientID,
		ClientSecret: opts.App.ClientSecret,
		RedirectURL:  opts.App.RedirectURI,
		Scopes:       scopes,
		Endpoint:     microsoft.AzureADEndpoint(tenant),
	}

	c := &Connector{
		connectorID: id,
		orgID:       opts.OrgID,
		app:         opts.App,
		oauthCfg:    oauthCfg,
		credStore:   opts.Credentials,
		log:         opts.Log().With("connector", "teams", "connector_id", id),
	}
	c.tokens = services.NewTokenManager(id, opts.Credentials, c.refreshGrant, c.log)
	c.client = msgraph.NewClient(c.tokens.Token)
	if opts.Documents != nil {
		c.deduper = services.NewDeduper(opts.Documents, c.log)
	}
	return c, nil
}

// Graph returns the underlying Graph client. Tests point it at a fixture
// server.
func (c *Connector) Graph() *msgraph.Client {
	return c.client
}

// Type returns the connector type identifier.
func (c *Connector) Type() domain.ConnectorType {
	return domain.ConnectorTypeTeams
}

// ID returns the connector instance identity.
func (c *Connector) ID() string {
	return c.connectorID
}

// Authenticate exchanges an authorization code from creds.Extra["code"], or
// validates existing tokens against /me.
func (c *Connector) Authenticate(ctx context.Context, creds domain.ConnectorCredentials) (*domain.AuthResult, error) {
	if !c.app.Configured() {
		return &domain.AuthResult{
			Success: false,
			Error:   "Microsoft OAuth app is not configured; set MS_CLIENT_ID and MS_CLIENT_SECRET",
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

func (c *Connector) identify(ctx context.Context) (*domain.AuthResult, error) {
	user, err := c.client.Me(ctx)
	if err != nil {
		return &domain.AuthResult{Success: false, Error: err.Error()}, nil
	}
	name := user.DisplayName
	if name == "" {
		name = user.UserPrincipalName
	}
	return &domain.AuthResult{Success: true, UserID: user.ID, UserName: name}, nil
}

// TestConnection resolves the signed-in account.
func (c *Connector) TestConnection(ctx context.Context) (*domain.TestResult, error) {
	user, err := c.client.Me(ctx)
	if err != nil {
		return &domain.TestResult{Success: false, Message: err.Error()}, nil
	}
	return &domain.TestResult{
		Success:  true,
		Message:  "Microsoft Graph reachable",
		Metadata: map[string]any{"user_id": user.ID},
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

// meetings resolves the online meetings behind the calendar events in
// [start, end).
func (c *Connector) meetings(ctx context.Context, start, end time.Time) ([]msgraph.OnlineMeeting, error) {
	events, err := c.client.CalendarView(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("calendar view: %w", err)
	}

	var meetings []msgraph.OnlineMeeting
	seen := map[string]bool{}
	for _, ev := range events {
		if !ev.IsOnlineMeeting || ev.OnlineMeeting == nil || ev.OnlineMeeting.JoinURL == "" {
			continue
		}
		meeting, err := c.client.OnlineMeetingByJoinURL(ctx, ev.OnlineMeeting.JoinURL)
		if err != nil {
			if graphUnavailable(err) {
				continue
			}
			return nil, fmt.Errorf("resolve meeting for %q: %w", ev.Subject, err)
		}
		if meeting == nil || seen[meeting.ID] {
			continue
		}
		seen[meeting.ID] = true
		if meeting.Subject == "" {
			meeting.Subject = ev.Subject
		}
		meetings = append(meetings, *meeting)
	}
	return meetings, nil
}

// graphUnavailable reports the per-tenant cases where a meeting sub-API is
// disabled: those answer 404 or 403 and mean "no data here", not failure.
func graphUnavailable(err error) bool {
	return domain.IsNotFound(err) || domain.IsForbidden(err)
}
