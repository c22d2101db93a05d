// Package upload accepts direct file uploads from already authenticated
// users. Files queue in memory until Sync drains them into the blob store
// and the document store.
package upload

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/corpushq/connectors/internal/core/domain"
	"github.com/corpushq/connectors/internal/core/ports/driven"
	"github.com/corpushq/connectors/internal/core/services"
)

// MaxUploadSize is the per-file ceiling.
const MaxUploadSize = 50 * 1024 * 1024

// allowedTypes is the upload MIME allow-list, keyed by MIME type with the
// canonical extension as value.
var allowedTypes = map[string]string{
	"application/pdf": ".pdf",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   ".docx",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         ".xlsx",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": ".pptx",
	"text/plain":       ".txt",
	"text/markdown":    ".md",
	"text/csv":         ".csv",
	"text/html":        ".html",
	"application/json": ".json",
}

// extensionTypes inverts allowedTypes for extension-based detection.
var extensionTypes = func() map[string]string {
	m := make(map[string]string, len(allowedTypes))
	for mimeType, ext := range allowedTypes {
		m[ext] = mimeType
	}
	return m
}()

// queuedFile is one pending upload.
type queuedFile struct {
	file     domain.ConnectorFile
	content  []byte
	queuedAt time.Time
}

// Connector implements the file-upload adapter. The queue is owned by the
// instance; two connectors never share pending uploads.
type Connector struct {
	connectorID string
	orgID       string

	blobs   driven.BlobStore
	deduper *services.Deduper
	log     *slog.Logger

	mu    sync.Mutex
	queue map[string]*queuedFile
}

var _ driven.Connector = (*Connector)(nil)

// New creates an upload connector from the given options.
func New(opts driven.ConnectorOptions) (*Connector, error) {
	id := opts.ConnectorID
	if id == "" {
		id = uuid.NewString()
	}

	c := &Connector{
		connectorID: id,
		orgID:       opts.OrgID,
		blobs:       opts.Blobs,
		log:         opts.Log().With("connector", "upload", "connector_id", id),
		queue:       make(map[string]*queuedFile),
	}
	if opts.Documents != nil {
		c.deduper = services.NewDeduper(opts.Documents, c.log)
	}
	return c, nil
}

// Type returns the connector type identifier.
func (c *Connector) Type() domain.ConnectorType {
	return domain.ConnectorTypeUpload
}

// ID returns the connector instance identity.
func (c *Connector) ID() string {
	return c.connectorID
}

// Authenticate always succeeds: uploads come from users the application
// has already authenticated.
func (c *Connector) Authenticate(context.Context, domain.ConnectorCredentials) (*domain.AuthResult, error) {
	return &domain.AuthResult{Success: true}, nil
}

// TestConnection reports the queue depth and whether a blob store is wired.
func (c *Connector) TestConnection(context.Context) (*domain.TestResult, error) {
	if c.blobs == nil {
		return &domain.TestResult{Success: false, Message: "no blob store configured"}, nil
	}
	c.mu.Lock()
	depth := len(c.queue)
	c.mu.Unlock()
	return &domain.TestResult{
		Success:  true,
		Message:  "upload queue ready",
		Metadata: map[string]any{"queued": depth},
	}, nil
}

// AddFile validates and enqueues one upload. The MIME type is detected
// from the file extension when not supplied.
func (c *Connector) AddFile(_ context.Context, name string, content []byte, mimeType string) (*domain.ConnectorFile, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: file name required", domain.ErrInvalidInput)
	}
	if mimeType == "" {
		mimeType = extensionTypes[strings.ToLower(filepath.Ext(name))]
	}
	if _, ok := allowedTypes[mimeType]; !ok {
		return nil, fmt.Errorf("%w: %q (%s)", domain.ErrUnsupportedFileType, filepath.Ext(name), mimeType)
	}
	if int64(len(content)) > MaxUploadSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", domain.ErrFileTooLarge, len(content), MaxUploadSize)
	}

	now := time.Now()
	f := domain.ConnectorFile{
		ID:         uuid.NewString(),
		Name:       name,
		Category:   domain.CategoryForMIME(mimeType),
		MIMEType:   mimeType,
		Size:       int64(len(content)),
		CreatedAt:  now,
		ModifiedAt: now,
	}

	buf := make([]byte, len(content))
	copy(buf, content)

	c.mu.Lock()
	c.queue[f.ID] = &queuedFile{file: f, content: buf, queuedAt: now}
	c.mu.Unlock()

	c.log.Debug("file queued", "name", name, "mime_type", mimeType, "size", f.Size)
	return &f, nil
}

// ListFiles returns the pending queue, oldest first.
func (c *Connector) ListFiles(_ context.Context, opts domain.ListOptions) ([]domain.ConnectorFile, error) {
	c.mu.Lock()
	pending := make([]*queuedFile, 0, len(c.queue))
	for _, q := range c.queue {
		pending = append(pending, q)
	}
	c.mu.Unlock()

	sort.Slice(pending, func(i, j int) bool { return pending[i].queuedAt.Before(pending[j].queuedAt) })

	var files []domain.ConnectorFile
	for _, q := range pending {
		files = append(files, q.file)
		if opts.Limit > 0 && len(files) >= opts.Limit {
			break
		}
	}
	return files, nil
}

// DownloadFile returns a queued upload's content.
func (c *Connector) DownloadFile(_ context.Context, fileID string) (*domain.FileContent, error) {
	c.mu.Lock()
	q, ok := c.queue[fileID]
	c.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("queued file %s: %w", fileID, domain.ErrNotFound)
	}
	return &domain.FileContent{
		ID:       q.file.ID,
		Title:    q.file.Name,
		Content:  q.content,
		MIMEType: q.file.MIMEType,
		Size:     q.file.Size,
	}, nil
}

// Sync drains the queue: each file goes to the blob store, then the
// document store, and only then leaves the queue. Failed items stay queued
// for the next run.
func (c *Connector) Sync(ctx context.Context, _ domain.SyncOptions) (*domain.SyncResult, error) {
	if c.deduper == nil {
		return nil, fmt.Errorf("upload: document store required for sync")
	}
	if c.blobs == nil {
		return nil, fmt.Errorf("upload: blob store required for sync")
	}

	result := &domain.SyncResult{StartedAt: time.Now()}

	c.mu.Lock()
	pending := make([]*queuedFile, 0, len(c.queue))
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
		if err := c.importFile(ctx, q, result); err != nil {
			result.RecordFailure(q.file.ID, err)
			continue
		}
		c.mu.Lock()
		delete(c.queue, q.file.ID)
		c.mu.Unlock()
	}

	result.Finish(0)
	c.log.Info("sync finished",
		"processed", result.FilesProcessed,
		"updated", result.FilesUpdated,
		"failed", result.FilesFailed)
	return result, nil
}

func (c *Connector) importFile(ctx context.Context, q *queuedFile, result *domain.SyncResult) error {
	key := c.connectorID + "/" + q.file.ID
	blobURL, err := c.blobs.Put(ctx, key, q.content, q.file.MIMEType)
	if err != nil {
		return fmt.Errorf("store blob: %w", err)
	}

	outcome, err := c.deduper.Store(ctx, domain.ImportedDocument{
		ConnectorID: c.connectorID,
		ExternalID:  q.file.ID,
		Title:       q.file.Name,
		Content:     q.content,
		FileType:    q.file.MIMEType,
		FileSize:    q.file.Size,
		SourceMetadata: map[string]any{
			"org_id":   c.orgID,
			"blob_url": blobURL,
			"filename": q.file.Name,
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
