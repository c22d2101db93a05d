package googledrive

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"

	"github.com/corpushq/connectors/internal/core/domain"
)

// SupportsPublish reports whether a write scope was granted. Best effort:
// vendors that do not report scopes on the stored credentials yield false.
func (c *Connector) SupportsPublish() bool {
	creds, err := c.tokens.Credentials(context.Background())
	if err != nil {
		return false
	}
	return creds.HasScope(ScopeDriveFile) ||
		creds.HasScope("https://www.googleapis.com/auth/drive")
}

// checkWriteScope re-checks the write scope before every publish operation.
// Caller-side SupportsPublish checks are advisory only.
func (c *Connector) checkWriteScope(ctx context.Context) (*drive.Service, error) {
	creds, err := c.tokens.Credentials(ctx)
	if err != nil {
		return nil, err
	}
	if !creds.HasScope(ScopeDriveFile) &&
		!creds.HasScope("https://www.googleapis.com/auth/drive") {
		return nil, fmt.Errorf("%w: drive write scope not granted", domain.ErrPermissionDenied)
	}
	return c.service(ctx)
}

// ListFolders returns the folders under parentID, or top-level folders when
// parentID is empty.
func (c *Connector) ListFolders(ctx context.Context, parentID string) ([]domain.ConnectorFile, error) {
	svc, err := c.service(ctx)
	if err != nil {
		return nil, err
	}

	query := "trashed = false and mimeType = '" + mimeFolder + "'"
	if parentID != "" {
		query += fmt.Sprintf(" and '%s' in parents", parentID)
	}

	var folders []domain.ConnectorFile
	pageToken := ""
	for {
		select {
		case <-ctx.Done():
			return folders, ctx.Err()
		default:
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
		call := svc.Files.List().
			Q(query).
			PageSize(c.pageSize).
			Fields("nextPageToken", "files(id, name, modifiedTime, createdTime, parents)").
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		page, err := call.Do()
		if err != nil {
			return nil, wrapError(err, "list folders")
		}
		for _, f := range page.Files {
			folder := mapFile(f)
			folder.Category = domain.CategoryFolder
			folders = append(folders, folder)
		}
		if page.NextPageToken == "" {
			return folders, nil
		}
		pageToken = page.NextPageToken
	}
}

// CreateFolder creates a folder under parentID (root when empty).
func (c *Connector) CreateFolder(ctx context.Context, name, parentID string) (*domain.ConnectorFile, error) {
	svc, err := c.checkWriteScope(ctx)
	if err != nil {
		return nil, err
	}

	meta := &drive.File{Name: name, MimeType: mimeFolder}
	if parentID != "" {
		meta.Parents = []string{parentID}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	created, err := svc.Files.Create(meta).Fields("id, name, createdTime, parents").Context(ctx).Do()
	if err != nil {
		return nil, wrapError(err, "create folder")
	}

	folder := mapFile(created)
	folder.Category = domain.CategoryFolder
	folder.MIMEType = mimeFolder
	return &folder, nil
}

// PublishDocument uploads a new document. Content marked base64 is decoded
// to the binary payload before upload.
func (c *Connector) PublishDocument(ctx context.Context, req domain.PublishRequest) (*domain.PublishResult, error) {
	svc, err := c.checkWriteScope(ctx)
	if err != nil {
		return nil, err
	}
	payload, err := publishPayload(req)
	if err != nil {
		return nil, err
	}

	meta := &drive.File{Name: req.Name, MimeType: req.MIMEType}
	folderID := req.FolderID
	if folderID == "" {
		folderID = c.folderID
	}
	if folderID != "" {
		meta.Parents = []string{folderID}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	created, err := svc.Files.Create(meta).
		Media(bytes.NewReader(payload), googleapi.ContentType(req.MIMEType)).
		Fields("id, name, webViewLink").
		Context(ctx).Do()
	if err != nil {
		return nil, wrapError(err, "publish document")
	}

	return &domain.PublishResult{
		ExternalID: created.Id,
		Name:       created.Name,
		URL:        created.WebViewLink,
	}, nil
}

// UpdateDocument replaces an existing document's content and name.
func (c *Connector) UpdateDocument(ctx context.Context, externalID string, req domain.PublishRequest) (*domain.PublishResult, error) {
	svc, err := c.checkWriteScope(ctx)
	if err != nil {
		return nil, err
	}
	payload, err := publishPayload(req)
	if err != nil {
		return nil, err
	}

	meta := &drive.File{}
	if req.Name != "" {
		meta.Name = req.Name
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	updated, err := svc.Files.Update(externalID, meta).
		Media(bytes.NewReader(payload), googleapi.ContentType(req.MIMEType)).
		Fields("id, name, webViewLink").
		Context(ctx).Do()
	if err != nil {
		return nil, wrapError(err, "update document")
	}

	return &domain.PublishResult{
		ExternalID: updated.Id,
		Name:       updated.Name,
		URL:        updated.WebViewLink,
	}, nil
}

// DeleteDocument moves the document to trash rather than deleting it.
func (c *Connector) DeleteDocument(ctx context.Context, externalID string) error {
	svc, err := c.checkWriteScope(ctx)
	if err != nil {
		return err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	_, err = svc.Files.Update(externalID, &drive.File{Trashed: true}).
		Fields("id").Context(ctx).Do()
	if err != nil {
		return wrapError(err, "trash document")
	}
	return nil
}

// GetDocumentInfo reports the current state of a published document. A 404
// resolves to Exists false, not an error.
func (c *Connector) GetDocumentInfo(ctx context.Context, externalID string) (*domain.DocumentInfo, error) {
	svc, err := c.service(ctx)
	if err != nil {
		return nil, err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	meta, err := svc.Files.Get(externalID).
		Fields("id, name, webViewLink, modifiedTime, trashed").
		Context(ctx).Do()
	if err != nil {
		err = wrapError(err, "get document info")
		if domain.IsNotFound(err) {
			return &domain.DocumentInfo{Exists: false, ExternalID: externalID}, nil
		}
		return nil, err
	}

	info := &domain.DocumentInfo{
		Exists:     true,
		ExternalID: meta.Id,
		Title:      meta.Name,
		URL:        meta.WebViewLink,
		Trashed:    meta.Trashed,
	}
	if t, err := time.Parse(time.RFC3339, meta.ModifiedTime); err == nil {
		info.ModifiedAt = t
	}
	return info, nil
}

// publishPayload resolves the request content into upload bytes, decoding
// base64-wrapped binary.
func publishPayload(req domain.PublishRequest) ([]byte, error) {
	if !req.Base64 {
		return req.Content, nil
	}
	decoded, err := base64.StdEncoding.DecodeString(string(req.Content))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64 content: %v", domain.ErrInvalidInput, err)
	}
	return decoded, nil
}
