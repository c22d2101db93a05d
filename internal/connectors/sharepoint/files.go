package sharepoint

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/corpushq/connectors/internal/connectors/msgraph"
	"github.com/corpushq/connectors/internal/core/domain"
	"github.com/corpushq/connectors/internal/core/services"
)

// ListFiles walks the drive tree from the configured folder (or root),
// flattening files into the normalized listing. Pagination inside each
// folder follows Graph nextLink cursors.
func (c *Connector) ListFiles(ctx context.Context, opts domain.ListOptions) ([]domain.ConnectorFile, error) {
	rootID := opts.FolderID
	if rootID == "" {
		rootID = c.folderID
	}

	var files []domain.ConnectorFile
	var walk func(itemID, prefix string) error
	walk = func(itemID, prefix string) error {
		var folders []msgraph.DriveItem
		err := c.client.ListChildren(ctx, c.driveID, itemID, func(items []msgraph.DriveItem) (bool, error) {
			for _, item := range items {
				if item.IsFolder() {
					folders = append(folders, item)
					continue
				}
				cf := mapItem(item)
				cf.Path = path.Join(prefix, item.Name)
				if !matches(cf, opts) {
					continue
				}
				files = append(files, cf)
				if opts.Limit > 0 && len(files) >= opts.Limit {
					return false, nil
				}
			}
			return true, nil
		})
		if err != nil {
			return err
		}
		if opts.Limit > 0 && len(files) >= opts.Limit {
			return nil
		}
		for _, folder := range folders {
			if err := walk(folder.ID, path.Join(prefix, folder.Name)); err != nil {
				return err
			}
			if opts.Limit > 0 && len(files) >= opts.Limit {
				return nil
			}
		}
		return nil
	}

	if err := walk(rootID, "/"); err != nil {
		return nil, err
	}
	if opts.Limit > 0 && len(files) > opts.Limit {
		files = files[:opts.Limit]
	}
	return files, nil
}

func matches(f domain.ConnectorFile, opts domain.ListOptions) bool {
	if !opts.Since.IsZero() && !f.ModifiedAt.After(opts.Since) {
		return false
	}
	if len(opts.MIMETypes) > 0 {
		found := false
		for _, mt := range opts.MIMETypes {
			if f.MIMEType == mt {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// DownloadFile fetches one drive item's content.
func (c *Connector) DownloadFile(ctx context.Context, fileID string) (*domain.FileContent, error) {
	item, err := c.client.GetItem(ctx, c.driveID, fileID)
	if err != nil {
		return nil, err
	}
	if item.IsFolder() {
		return nil, fmt.Errorf("%w: %s is a folder", domain.ErrInvalidInput, fileID)
	}
	if item.Size > maxImportSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", domain.ErrFileTooLarge, item.Size, maxImportSize)
	}

	data, err := c.client.DownloadItem(ctx, c.driveID, fileID, maxImportSize)
	if err != nil {
		return nil, err
	}

	mimeType := ""
	if item.File != nil {
		mimeType = item.File.MimeType
	}
	return &domain.FileContent{
		ID:       item.ID,
		Title:    item.Name,
		Content:  data,
		MIMEType: mimeType,
		Size:     int64(len(data)),
		Metadata: map[string]any{
			"web_url":       item.WebURL,
			"modified_time": item.LastModifiedDateTime,
		},
	}, nil
}

// Sync lists matching drive items and imports each through the dedup store.
func (c *Connector) Sync(ctx context.Context, opts domain.SyncOptions) (*domain.SyncResult, error) {
	if c.deduper == nil {
		return nil, fmt.Errorf("sharepoint: document store required for sync")
	}

	result := &domain.SyncResult{StartedAt: time.Now()}

	files, err := c.ListFiles(ctx, domain.ListOptions{
		Limit:     opts.Limit,
		Since:     opts.Since,
		MIMETypes: opts.FileTypes,
		FolderID:  opts.PathPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("list files for sync: %w", err)
	}

	errs := services.RunBatches(ctx, files, services.DefaultBatchSize, func(ctx context.Context, f domain.ConnectorFile) error {
		return c.importFile(ctx, f, result)
	})
	for i, err := range errs {
		if err != nil {
			result.RecordFailure(files[i].ID, err)
		}
	}
	result.FilesProcessed = len(files)

	result.Finish(0)
	c.log.Info("sync finished",
		"processed", result.FilesProcessed,
		"updated", result.FilesUpdated,
		"failed", result.FilesFailed)
	return result, nil
}

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
			"org_id":  c.orgID,
			"web_url": f.URL,
			"path":    f.Path,
		},
	})
	if err != nil {
		return err
	}
	if outcome != services.OutcomeUnchanged {
		c.updatedMu.Lock()
		result.FilesUpdated++
		c.updatedMu.Unlock()
	}
	return nil
}

// mapItem normalizes a Graph drive item into the shared descriptor.
func mapItem(item msgraph.DriveItem) domain.ConnectorFile {
	mimeType := ""
	if item.File != nil {
		mimeType = item.File.MimeType
	}
	cf := domain.ConnectorFile{
		ID:         item.ID,
		Name:       item.Name,
		Category:   domain.CategoryForMIME(mimeType),
		MIMEType:   mimeType,
		Size:       item.Size,
		ModifiedAt: item.LastModifiedDateTime,
		CreatedAt:  item.CreatedDateTime,
		URL:        item.WebURL,
	}
	if item.IsFolder() {
		cf.Category = domain.CategoryFolder
	}
	if item.ParentReference != nil {
		cf.ParentID = item.ParentReference.ID
	}
	return cf
}
