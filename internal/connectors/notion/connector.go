// Package notion imports pages from a Notion workspace. Page content is
// fetched as a block tree and rendered to markdown. Notion integration
// tokens do not expire, so the refresh grant is never available.
package notion

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/jomei/notionapi"
	"golang.org/x/oauth2"

	"github.com/corpushq/connectors/internal/core/domain"
	"github.com/corpushq/connectors/internal/core/ports/driven"
	"github.com/corpushq/connectors/internal/core/services"
)

const (
	authURL  = "https://api.notion.com/v1/oauth/authorize"
	tokenURL = "https://api.notion.com/v1/oauth/token"
)

// maxDatabasePages bounds how many pages are pulled out of any single
// database per sync, keeping the recursive block fetch affordable on
// large workspaces.
const maxDatabasePages = 50

// failureTolerance is the fraction of items that may fail while the sync
// still reports overall success. Notion workspaces routinely contain a few
// pages the integration cannot read.
const failureTolerance = 0.10

// Subsets of the notionapi services this adapter calls. Tests substitute
// fakes; production wires the real client in newAPI.
type (
	searchAPI interface {
		Do(ctx context.Context, req *notionapi.SearchRequest) (*notionapi.SearchResponse, error)
	}
	blockAPI interface {
		GetChildren(ctx context.Context, id notionapi.BlockID, pagination *notionapi.Pagination) (*notionapi.GetChildrenResponse, error)
	}
	databaseAPI interface {
		Query(ctx context.Context, id notionapi.DatabaseID, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)
	}
	pageAPI interface {
		Get(ctx context.Context, id notionapi.PageID) (*notionapi.Page, error)
	}
	userAPI interface {
		Me(ctx context.Context) (*notionapi.User, error)
	}
)

type notionAPI struct {
	search    searchAPI
	blocks    blockAPI
	databases databaseAPI
	pages     pageAPI
	users     userAPI
}

// Connector implements the Notion adapter.
type Connector struct {
	connectorID string
	orgID       string
	app         domain.OAuthApp
	oauthCfg    *oauth2.Config

	credStore driven.CredentialsStore
	tokens    *services.TokenManager
	deduper   *services.Deduper
	limiter   *services.RateLimiter
	log       *slog.Logger

	updatedMu sync.Mutex

	// newAPI is swapped in tests for a fake client.
	newAPI func(token string) *notionAPI
}

var (
	_ driven.Connector           = (*Connector)(nil)
	_ driven.CredentialRefresher = (*Connector)(nil)
)

// New creates a Notion connector from the given options.
func New(opts driven.ConnectorOptions) (*Connector, error) {
	if opts.Credentials == nil {
		return nil, fmt.Errorf("notion: credentials store required")
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
		connectorID: id,
		orgID:       opts.OrgID,
		app:         opts.App,
		oauthCfg:    oauthCfg,
		credStore:   opts.Credentials,
		limiter:     services.NewRateLimiter(services.NotionRateLimit),
		log:         opts.Log().With("connector", "notion", "connector_id", id),
		newAPI: func(token string) *notionAPI {
			client := notionapi.NewClient(notionapi.Token(token))
			return &notionAPI{
				search:    client.Search,
				blocks:    client.Block,
				databases: client.Database,
				pages:     client.Page,
				users:     client.User,
			}
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
	return domain.ConnectorTypeNotion
}

// ID returns the connector instance identity.
func (c *Connector) ID() string {
	return c.connectorID
}

// Authenticate exchanges an authorization code from creds.Extra["code"], or
// validates existing tokens against the users/me endpoint. With neither,
// the result carries the authorization URL.
func (c *Connector) Authenticate(ctx context.Context, creds domain.ConnectorCredentials) (*domain.AuthResult, error) {
	if !c.app.Configured() {
		return &domain.AuthResult{
			Success: false,
			Error:   "Notion OAuth app is not configured; set NOTION_CLIENT_ID and NOTION_CLIENT_SECRET",
		}, nil
	}

	if code := creds.Extra["code"]; code != "" {
		token, err := c.oauthCfg.Exchange(ctx, code)
		if err != nil {
			return &domain.AuthResult{Success: false, Error: "authorization code exchange failed"}, nil
		}
		// Notion integration tokens never expire; Expiry stays zero.
		fresh := domain.ConnectorCredentials{
			AccessToken: token.AccessToken,
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

// identify validates the stored token by resolving the bot identity.
func (c *Connector) identify(ctx context.Context) (*domain.AuthResult, error) {
	api, err := c.api(ctx)
	if err != nil {
		return &domain.AuthResult{Success: false, Error: err.Error()}, nil
	}
	me, err := api.users.Me(ctx)
	if err != nil {
		err = wrapError(err, "validate token")
		return &domain.AuthResult{Success: false, Error: err.Error()}, nil
	}
	return &domain.AuthResult{
		Success:  true,
		UserID:   string(me.ID),
		UserName: me.Name,
	}, nil
}

// TestConnection makes a lightweight users/me call.
func (c *Connector) TestConnection(ctx context.Context) (*domain.TestResult, error) {
	api, err := c.api(ctx)
	if err != nil {
		return &domain.TestResult{Success: false, Message: err.Error()}, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	me, err := api.users.Me(ctx)
	if err != nil {
		err = wrapError(err, "test connection")
		return &domain.TestResult{Success: false, Message: err.Error()}, nil
	}
	return &domain.TestResult{
		Success:  true,
		Message:  "Notion workspace reachable",
		Metadata: map[string]any{"bot": me.Name},
	}, nil
}

// RefreshCredentials always fails: Notion integration tokens do not expire
// and the OAuth flow issues no refresh token.
func (c *Connector) RefreshCredentials(ctx context.Context, creds domain.ConnectorCredentials) (*domain.ConnectorCredentials, error) {
	return c.refreshGrant(ctx, creds)
}

func (c *Connector) refreshGrant(context.Context, domain.ConnectorCredentials) (*domain.ConnectorCredentials, error) {
	return nil, domain.ErrNoRefreshToken
}

// api builds a client bound to the current access token.
func (c *Connector) api(ctx context.Context) (*notionAPI, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	return c.newAPI(token), nil
}
