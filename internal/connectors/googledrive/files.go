package googledrive

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"google.golang.org/api/drive/v3"

	"github.com/corpushq/connectors/internal/core/domain"
	"github.com/corpushq/connectors/internal/core/services"
	"github.com/corpushq/connectors/internal/htmlconv"
)

// Google Workspace MIME types that need exporting rather than downloading.
const (
	mimeGoogleDoc    = "application/vnd.google-apps.document"
	mimeGoogleSheet  = "application/vnd.google-apps.spreadsheet"
	mimeGoogleSlides = "application/vnd.google-apps.presentation"
	mimeFolder       = "application/vnd.google-apps.folder"
)

// maxImportSize bounds a single file import (10MB).
const maxImportSize = 10 * 1024 * 1024

const fileFields = "id, name, mimeType, size, modifiedTime, createdTime, webViewLink, parents, trashed"

// ListFiles pages through Drive files matching the options and returns the
// flattened, normalized listing.
func (c *Connector) ListFiles(ctx context.Context, opts domain.ListOptions) ([]domain.ConnectorFile, error) {
	svc, err := c.service(ctx)
	if err != nil {
		return nil, err
	}

	folderID := opts.FolderID
	if folderID == "" {
		folderID = c.folderID
	}
	query := buildQuery(folderID, opts.Since, opts.MIMETypes)

	var files []domain.ConnectorFile
	pageToken := ""
	for {
		select {
		case <-ctx.Done():
			return files, ctx.Err()
		default:
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}

		call := svc.Files.List().
			Q(query).
			PageSize(c.pageSize).
			Fields("nextPageToken", "files("+fileFields+")").
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		page, err := call.Do()
		if err != nil {
			return nil, wrapError(err, "list files")
		}

		for _, f := range page.Files {
			files = append(files, mapFile(f))
			if opts.Limit > 0 && len(files) >= opts.Limit {
				return files[:opts.Limit], nil
			}
		}

		if page.NextPageToken == "" {
			return files, nil
		}
		pageToken = page.NextPageToken
	}
}

// DownloadFile fetches one file's content. Workspace-native documents are
// exported (docs to HTML then markdown, sheets to CSV, slides to plain
// text); everything else downloads as-is.
func (c *Connector) DownloadFile(ctx context.Context, fileID string) (*domain.FileContent, error) {
	svc, err := c.service(ctx)
	if err != nil {
		return nil, err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	meta, err := svc.Files.Get(fileID).Fields(fileFields).Context(ctx).Do()
	if err != nil {
		return nil, wrapError(err, "get file metadata")
	}
	if meta.MimeType == mimeFolder {
		return nil, fmt.Errorf("%w: %s is a folder", domain.ErrInvalidInput, fileID)
	}

	content, mimeType, err := c.fetchContent(ctx, svc, meta)
	if err != nil {
		return nil, err
	}

	return &domain.FileContent{
		ID:       meta.Id,
		Title:    meta.Name,
		Content:  content,
		MIMEType: mimeType,
		Size:     int64(len(content)),
		Metadata: map[string]any{
			"web_link":      meta.WebViewLink,
			"source_mime":   meta.MimeType,
			"modified_time": meta.ModifiedTime,
		},
	}, nil
}

func (c *Connector) fetchContent(ctx context.Context, svc *drive.Service, meta *drive.File) ([]byte, string, error) {
	switch meta.MimeType {
	case mimeGoogleDoc:
		html, err := c.export(ctx, svc, meta.Id, "text/html")
		if err != nil {
			return nil, "", err
		}
		res, err := htmlconv.Convert(string(html))
		if err != nil {
			return nil, "", fmt.Errorf("convert exported doc: %w", err)
		}
		return []byte(res.Markdown), "text/markdown", nil
	case mimeGoogleSheet:
		data, err := c.export(ctx, svc, meta.Id, "text/csv")
		return data, "text/csv", err
	case mimeGoogleSlides:
		data, err := c.export(ctx, svc, meta.Id, "text/plain")
		return data, "text/plain", err
	}

	if meta.Size > maxImportSize {
		return nil, "", fmt.Errorf("%w: %d bytes exceeds %d", domain.ErrFileTooLarge, meta.Size, maxImportSize)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, "", fmt.Errorf("rate limit wait: %w", err)
	}
	resp, err := svc.Files.Get(meta.Id).Context(ctx).Download()
	if err != nil {
		return nil, "", wrapError(err, "download file")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImportSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("read file content: %w", err)
	}
	if len(data) > maxImportSize {
		return nil, "", fmt.Errorf("%w: exceeds %d bytes", domain.ErrFileTooLarge, maxImportSize)
	}
	return data, meta.MimeType, nil
}

func (c *Connector) export(ctx context.Context, svc *drive.Service, fileID, exportMime string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	resp, err := svc.Files.Export(fileID, exportMime).Context(ctx).Download()
	if err != nil {
		return nil, wrapError(err, "export file")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImportSize+1))
	if err != nil {
		return nil, fmt.Errorf("read export: %w", err)
	}
	if len(data) > maxImportSize {
		return nil, fmt.Errorf("%w: export exceeds %d bytes", domain.ErrFileTooLarge, maxImportSize)
	}
	return data, nil
}

// Sync lists matching files and imports each through the dedup store.
// Item failures accumulate in the result rather than aborting the batch.
func (c *Connector) Sync(ctx context.Context, opts domain.SyncOptions) (*domain.SyncResult, error) {
	if c.deduper == nil {
		return nil, fmt.Errorf("googledrive: document store required for sync")
	}

	result := &domain.SyncResult{StartedAt: time.Now()}

	listOpts := domain.ListOptions{
		Limit:     opts.Limit,
		Since:     opts.Since,
		MIMETypes: opts.FileTypes,
		FolderID:  opts.PathPrefix,
	}
	files, err := c.ListFiles(ctx, listOpts)
	if err != nil {
		return nil, fmt.Errorf("list files for sync: %w", err)
	}

	var items []domain.ConnectorFile
	for _, f := range files {
		if f.IsFolder() {
			continue
		}
		items = append(items, f)
	}

	errs := services.RunBatches(ctx, items, services.DefaultBatchSize, func(ctx context.Context, f domain.ConnectorFile) error {
		return c.importFile(ctx, f, result)
	})
	for i, err := range errs {
		if err != nil {
			result.RecordFailure(items[i].ID, err)
		}
	}
	result.FilesProcessed = len(items)

	result.Finish(0)
	c.log.Info("sync finished",
		"processed", result.FilesProcessed,
		"updated", result.FilesUpdated,
		"failed", result.FilesFailed)
	return result, nil
}

// importFile downloads one file and stores it through the deduper.
// Counter updates are serialized by the deduper call itself being the last
// step; FilesUpdated is incremented only for created/updated outcomes.
func (c *Connector) importFile(ctx context.Context, f domain.ConnectorFile, result *domain.SyncResult) error {
	if f.Size > maxImportSize {
		return fmt.Errorf("%w: %d bytes exceeds %d", domain.ErrFileTooLarge, f.Size, maxImportSize)
	}

	content, err := c.DownloadFile(ctx, f.ID)
	if err != nil {
		return err
	}

	outcome, err := c.deduper.Store(ctx, domain.ImportedDocument{
		ConnectorID: c.connectorID,
		ExternalID:  f.ID,
		Title:       content.Title,
		Content:     content.Content,
		FileType:    content.MIMEType,
		FileSize:    content.Size,
		SourceMetadata: map[string]any{
			"org_id":   c.orgID,
			"web_link": f.URL,
			"path":     f.Path,
		},
	})
	if err != nil {
		return err
	}
	if outcome != services.OutcomeUnchanged {
		c.bumpUpdated(result)
	}
	return nil
}

func (c *Connector) bumpUpdated(result *domain.SyncResult) {
	c.updatedMu.Lock()
	result.FilesUpdated++
	c.updatedMu.Unlock()
}

// buildQuery assembles the Drive query string from the listing filters.
func buildQuery(folderID string, since time.Time, mimeTypes []string) string {
	parts := []string{"trashed = false"}

	if folderID != "" {
		parts = append(parts, fmt.Sprintf("'%s' in parents", folderID))
	}
	if !since.IsZero() {
		parts = append(parts, fmt.Sprintf("modifiedTime > '%s'", since.UTC().Format(time.RFC3339)))
	}
	if len(mimeTypes) > 0 {
		ors := make([]string, len(mimeTypes))
		for i, mt := range mimeTypes {
			ors[i] = fmt.Sprintf("mimeType = '%s'", mt)
		}
		parts = append(parts, "("+strings.Join(ors, " or ")+")")
	}

	return strings.Join(parts, " and ")
}

// mapFile normalizes a Drive file into the shared descriptor.
func mapFile(f *drive.File) domain.ConnectorFile {
	cf := domain.ConnectorFile{
		ID:       f.Id,
		Name:     f.Name,
		Category: domain.CategoryForMIME(f.MimeType),
		MIMEType: f.MimeType,
		Size:     f.Size,
		URL:      f.WebViewLink,
	}
	if t, err := time.Parse(time.RFC3339, f.ModifiedTime); err == nil {
		cf.ModifiedAt = t
	}
	if t, err := time.Parse(time.RFC3339, f.CreatedTime); err == nil {
		cf.CreatedAt = t
	}
	if len(f.Parents) > 0 {
		cf.ParentID = f.Parents[0]
	}
	return cf
}
