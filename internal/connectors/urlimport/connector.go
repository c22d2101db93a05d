// Package urlimport scrapes arbitrary web pages into the document store.
// URLs queue in memory; each sync fetches the pending set, converts HTML
// to markdown and imports the result.
package urlimport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/corpushq/connectors/internal/core/domain"
	"github.com/corpushq/connectors/internal/core/ports/driven"
	"github.com/corpushq/connectors/internal/core/services"
	"github.com/corpushq/connectors/internal/htmlconv"
)

// fetchTimeout bounds one page fetch.
const fetchTimeout = 30 * time.Second

// maxResponseSize is the per-page body ceiling.
const maxResponseSize = 10 * 1024 * 1024

// queuedURL is one pending import.
type queuedURL struct {
	id       string
	url      string
	queuedAt time.Time
}

// Connector implements the URL-import adapter.
type Connector struct {
	connectorID string
	orgID       string
	userAgent   string

	httpc   *http.Client
	deduper *services.Deduper
	log     *slog.Logger

	mu    sync.Mutex
	queue map[string]*queuedURL
}

var _ driven.Connector = (*Connector)(nil)

// New creates a URL-import connector from the given options.
func New(opts driven.ConnectorOptions) (*Connector, error) {
	id := opts.ConnectorID
	if id == "" {
		id = uuid.NewString()
	}

	c := &Connector{
		connectorID: id,
		orgID:       opts.OrgID,
		userAgent:   opts.Setting("user_agent", "corpushq-connectors/1.0"),
		httpc:       &http.Client{Timeout: fetchTimeout},
		log:         opts.Log().With("connector", "url-import", "connector_id", id),
		queue:       make(map[string]*queuedURL),
	}
	if opts.Documents != nil {
		c.deduper = services.NewDeduper(opts.Documents, c.log)
	}
	return c, nil
}

// Type returns the connector type identifier.
func (c *Connector) Type() domain.ConnectorType {
	return domain.ConnectorTypeURLImport
}

// ID returns the connector instance identity.
func (c *Connector) ID() string {
	return c.connectorID
}

// Authenticate always succeeds; public URLs need no credentials.
func (c *Connector) Authenticate(context.Context, domain.ConnectorCredentials) (*domain.AuthResult, error) {
	return &domain.AuthResult{Success: true}, nil
}

// TestConnection reports the queue depth.
func (c *Connector) TestConnection(context.Context) (*domain.TestResult, error) {
	c.mu.Lock()
	depth := len(c.queue)
	c.mu.Unlock()
	return &domain.TestResult{
		Success:  true,
		Message:  "url import queue ready",
		Metadata: map[string]any{"queued": depth},
	}, nil
}

// AddURL validates and enqueues one URL. Only http and https schemes are
// accepted. Re-adding an already queued URL is a no-op returning the
// existing entry.
func (c *Connector) AddURL(_ context.Context, rawURL string) (*domain.ConnectorFile, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || parsed.Host == "" {
		return nil, fmt.Errorf("%w: malformed url %q", domain.ErrInvalidInput, rawURL)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", domain.ErrInvalidInput, parsed.Scheme)
	}
	normalized := parsed.String()

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, q := range c.queue {
		if q.url == normalized {
			f := queuedAsFile(q)
			return &f, nil
		}
	}
	q := &queuedURL{id: uuid.NewString(), url: normalized, queuedAt: time.Now()}
	c.queue[q.id] = q

	c.log.Debug("url queued", "url", normalized)
	f := queuedAsFile(q)
	return &f, nil
}

func queuedAsFile(q *queuedURL) domain.ConnectorFile {
	return domain.ConnectorFile{
		ID:         q.id,
		Name:       q.url,
		Category:   domain.CategoryDocument,
		MIMEType:   "text/markdown",
		URL:        q.url,
		CreatedAt:  q.queuedAt,
		ModifiedAt: q.queuedAt,
	}
}

// ListFiles returns the pending queue, oldest first.
func (c *Connector) ListFiles(_ context.Context, opts domain.ListOptions) ([]domain.ConnectorFile, error) {
	c.mu.Lock()
	pending := make([]*queuedURL, 0, len(c.queue))
	for _, q := range c.queue {
		pending = append(pending, q)
	}
	c.mu.Unlock()

	sort.Slice(pending, func(i, j int) bool { return pending[i].queuedAt.Before(pending[j].queuedAt) })

	var files []domain.ConnectorFile
	for _, q := range pending {
		files = append(files, queuedAsFile(q))
		if opts.Limit > 0 && len(files) >= opts.Limit {
			break
		}
	}
	return files, nil
}

// DownloadFile fetches and converts a queued URL on demand.
func (c *Connector) DownloadFile(ctx context.Context, fileID string) (*domain.FileContent, error) {
	c.mu.Lock()
	q, ok := c.queue[fileID]
	c.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("queued url %s: %w", fileID, domain.ErrNotFound)
	}
	return c.fetch(ctx, q)
}

// fetch pulls one page and converts it to markdown. HTTP failures carry
// their status code so callers can distinguish retryable (5xx) from
// permanent (4xx) outcomes.
func (c *Connector) fetch(ctx context.Context, q *queuedURL) (*domain.FileContent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, q.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", q.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, &domain.APIError{
			StatusCode: resp.StatusCode,
			Message:    "fetch failed: " + resp.Status,
			URL:        q.url,
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > maxResponseSize {
		return nil, fmt.Errorf("%w: response exceeds %d bytes", domain.ErrFileTooLarge, maxResponseSize)
	}

	converted, err := htmlconv.Convert(string(body))
	if err != nil {
		return nil, fmt.Errorf("convert %s: %w", q.url, err)
	}
	title := converted.Title
	if title == "" {
		title = q.url
	}

	return &domain.FileContent{
		ID:       q.id,
		Title:    title,
		Content:  []byte(converted.Markdown),
		MIMEType: "text/markdown",
		Size:     int64(len(converted.Markdown)),
		Metadata: map[string]any{"url": q.url},
	}, nil
}

// Sync drains the queue. Successfully imported URLs leave the queue;
// permanently failed ones (4xx) do too, since retrying cannot help.
// Retryable failures (5xx, network) stay queued for the next run.
func (c *Connector) Sync(ctx context.Context, _ domain.SyncOptions) (*domain.SyncResult, error) {
	if c.deduper == nil {
		return nil, fmt.Errorf("urlimport: document store required for sync")
	}

	result := &domain.SyncResult{StartedAt: time.Now()}

	c.mu.Lock()
	pending := make([]*queuedURL, 0, len(c.queue))
	for _, q := range c.queue {
		pending = append(pending, q)
	}
	c.mu.Unlock()
	sort.Slice(pending, func(i, j int) bool { return pending[i].queuedAt.Before(pending[j].queuedAt) })

	for _, q := range pending {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result.FilesProcessed++
		err := c.importURL(ctx, q, result)
		if err != nil {
			result.RecordFailure(q.url, err)
			if domain.IsRetryable(err) {
				continue
			}
		}
		c.mu.Lock()
		delete(c.queue, q.id)
		c.mu.Unlock()
	}

	result.Finish(0)
	c.log.Info("sync finished",
		"processed", result.FilesProcessed,
		"updated", result.FilesUpdated,
		"failed", result.FilesFailed)
	return result, nil
}

func (c *Connector) importURL(ctx context.Context, q *queuedURL, result *domain.SyncResult) error {
	content, err := c.fetch(ctx, q)
	if err != nil {
		return err
	}

	outcome, err := c.deduper.Store(ctx, domain.ImportedDocument{
		ConnectorID: c.connectorID,
		ExternalID:  q.url,
		Title:       content.Title,
		Content:     content.Content,
		FileType:    content.MIMEType,
		FileSize:    content.Size,
		SourceMetadata: map[string]any{
			"org_id": c.orgID,
			"url":    q.url,
		},
	})
	if err != nil {
		return err
	}
	if outcome != services.OutcomeUnchanged {
		result.FilesUpdated++
	}
	return nil
}
