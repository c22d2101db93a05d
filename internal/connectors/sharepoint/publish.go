package sharepoint

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/corpushq/connectors/internal/connectors/msgraph"
	"github.com/corpushq/connectors/internal/core/domain"
)

// SupportsPublish reports whether the write scope was granted.
func (c *Connector) SupportsPublish() bool {
	creds, err := c.tokens.Credentials(context.Background())
	if err != nil {
		return false
	}
	return creds.HasScope(ScopeFilesReadWrite)
}

func (c *Connector) checkWriteScope(ctx context.Context) error {
	creds, err := c.tokens.Credentials(ctx)
	if err != nil {
		return err
	}
	if !creds.HasScope(ScopeFilesReadWrite) {
		return fmt.Errorf("%w: Files.ReadWrite.All not granted", domain.ErrPermissionDenied)
	}
	return nil
}

// ListFolders returns the folders under parentID (drive root when empty).
func (c *Connector) ListFolders(ctx context.Context, parentID string) ([]domain.ConnectorFile, error) {
	var folders []domain.ConnectorFile
	err := c.client.ListChildren(ctx, c.driveID, parentID, func(items []msgraph.DriveItem) (bool, error) {
		for _, item := range items {
			if item.IsFolder() {
				folders = append(folders, mapItem(item))
			}
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return folders, nil
}

// CreateFolder creates a folder under parentID (drive root when empty).
func (c *Connector) CreateFolder(ctx context.Context, name, parentID string) (*domain.ConnectorFile, error) {
	if err := c.checkWriteScope(ctx); err != nil {
		return nil, err
	}
	item, err := c.client.CreateFolder(ctx, c.driveID, parentID, name)
	if err != nil {
		return nil, err
	}
	folder := mapItem(*item)
	folder.Category = domain.CategoryFolder
	return &folder, nil
}

// PublishDocument uploads a new document. Uploads above the simple-upload
// limit go through a chunked upload session.
func (c *Connector) PublishDocument(ctx context.Context, req domain.PublishRequest) (*domain.PublishResult, error) {
	if err := c.checkWriteScope(ctx); err != nil {
		return nil, err
	}
	payload, err := publishPayload(req)
	if err != nil {
		return nil, err
	}

	folderID := req.FolderID
	if folderID == "" {
		folderID = c.folderID
	}

	item, err := c.client.Upload(ctx, c.driveID, folderID, req.Name, req.MIMEType, payload)
	if err != nil {
		return nil, err
	}
	return &domain.PublishResult{
		ExternalID: item.ID,
		Name:       item.Name,
		URL:        item.WebURL,
	}, nil
}

// UpdateDocument replaces an existing document's content.
func (c *Connector) UpdateDocument(ctx context.Context, externalID string, req domain.PublishRequest) (*domain.PublishResult, error) {
	if err := c.checkWriteScope(ctx); err != nil {
		return nil, err
	}
	payload, err := publishPayload(req)
	if err != nil {
		return nil, err
	}

	item, err := c.client.UploadToItem(ctx, c.driveID, externalID, req.MIMEType, payload)
	if err != nil {
		return nil, err
	}
	if req.Name != "" && req.Name != item.Name {
		item, err = c.client.UpdateItem(ctx, c.driveID, externalID, map[string]any{"name": req.Name})
		if err != nil {
			return nil, err
		}
	}
	return &domain.PublishResult{
		ExternalID: item.ID,
		Name:       item.Name,
		URL:        item.WebURL,
	}, nil
}

// DeleteDocument moves the item to the drive's recycle bin.
func (c *Connector) DeleteDocument(ctx context.Context, externalID string) error {
	if err := c.checkWriteScope(ctx); err != nil {
		return err
	}
	return c.client.DeleteItem(ctx, c.driveID, externalID)
}

// GetDocumentInfo reports the current state of a published document. A 404
// resolves to Exists false, not an error.
func (c *Connector) GetDocumentInfo(ctx context.Context, externalID string) (*domain.DocumentInfo, error) {
	item, err := c.client.GetItem(ctx, c.driveID, externalID)
	if err != nil {
		if domain.IsNotFound(err) {
			return &domain.DocumentInfo{Exists: false, ExternalID: externalID}, nil
		}
		return nil, err
	}
	return &domain.DocumentInfo{
		Exists:     true,
		ExternalID: item.ID,
		Title:      item.Name,
		URL:        item.WebURL,
		ModifiedAt: item.LastModifiedDateTime,
		Trashed:    item.Deleted != nil,
	}, nil
}

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
