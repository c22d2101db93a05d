package notion

import (
	"context"
	"fmt"
	"time"

	"github.com/jomei/notionapi"

	"github.com/corpushq/connectors/internal/core/domain"
	"github.com/corpushq/connectors/internal/core/services"
)

const searchPageSize = 100

// ListFiles enumerates every page the integration can see: standalone pages
// via workspace search, plus pages inside shared databases. Database
// enumeration is capped per database to bound the recursive block fetch.
func (c *Connector) ListFiles(ctx context.Context, opts domain.ListOptions) ([]domain.ConnectorFile, error) {
	api, err := c.api(ctx)
	if err != nil {
		return nil, err
	}

	var files []domain.ConnectorFile
	seen := make(map[string]bool)

	add := func(page *notionapi.Page) bool {
		if page.Archived || seen[string(page.ID)] {
			return true
		}
		f := mapPage(page)
		if !opts.Since.IsZero() && !f.ModifiedAt.After(opts.Since) {
			return true
		}
		seen[f.ID] = true
		files = append(files, f)
		return opts.Limit == 0 || len(files) < opts.Limit
	}

	if err := c.searchPages(ctx, api, add); err != nil {
		return nil, err
	}
	if opts.Limit > 0 && len(files) >= opts.Limit {
		return files, nil
	}

	databases, err := c.searchDatabases(ctx, api)
	if err != nil {
		return nil, err
	}
	for _, db := range databases {
		if err := c.databasePages(ctx, api, db, add); err != nil {
			return nil, err
		}
		if opts.Limit > 0 && len(files) >= opts.Limit {
			break
		}
	}
	return files, nil
}

// searchPages walks the workspace page search until add declines more.
func (c *Connector) searchPages(ctx context.Context, api *notionAPI, add func(*notionapi.Page) bool) error {
	cursor := notionapi.Cursor("")
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
		resp, err := api.search.Do(ctx, &notionapi.SearchRequest{
			Filter:      notionapi.SearchFilter{Property: "object", Value: "page"},
			StartCursor: cursor,
			PageSize:    searchPageSize,
		})
		if err != nil {
			return wrapError(err, "search pages")
		}
		for _, obj := range resp.Results {
			page, ok := obj.(*notionapi.Page)
			if !ok {
				continue
			}
			if !add(page) {
				return nil
			}
		}
		if !resp.HasMore {
			return nil
		}
		cursor = resp.NextCursor
	}
}

// searchDatabases lists the databases shared with the integration.
func (c *Connector) searchDatabases(ctx context.Context, api *notionAPI) ([]*notionapi.Database, error) {
	var databases []*notionapi.Database
	cursor := notionapi.Cursor("")
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
		resp, err := api.search.Do(ctx, &notionapi.SearchRequest{
			Filter:      notionapi.SearchFilter{Property: "object", Value: "database"},
			StartCursor: cursor,
			PageSize:    searchPageSize,
		})
		if err != nil {
			return nil, wrapError(err, "search databases")
		}
		for _, obj := range resp.Results {
			if db, ok := obj.(*notionapi.Database); ok {
				databases = append(databases, db)
			}
		}
		if !resp.HasMore {
			return databases, nil
		}
		cursor = resp.NextCursor
	}
}

// databasePages queries up to maxDatabasePages pages out of one database.
func (c *Connector) databasePages(ctx context.Context, api *notionAPI, db *notionapi.Database, add func(*notionapi.Page) bool) error {
	fetched := 0
	cursor := notionapi.Cursor("")
	for fetched < maxDatabasePages {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
		pageSize := maxDatabasePages - fetched
		if pageSize > searchPageSize {
			pageSize = searchPageSize
		}
		resp, err := api.databases.Query(ctx, notionapi.DatabaseID(db.ID), &notionapi.DatabaseQueryRequest{
			StartCursor: cursor,
			PageSize:    pageSize,
		})
		if err != nil {
			return wrapError(err, "query database")
		}
		for i := range resp.Results {
			fetched++
			if !add(&resp.Results[i]) {
				return nil
			}
			if fetched >= maxDatabasePages {
				return nil
			}
		}
		if !resp.HasMore {
			return nil
		}
		cursor = resp.NextCursor
	}
	return nil
}

// DownloadFile renders one page's block tree to markdown.
func (c *Connector) DownloadFile(ctx context.Context, fileID string) (*domain.FileContent, error) {
	api, err := c.api(ctx)
	if err != nil {
		return nil, err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	page, err := api.pages.Get(ctx, notionapi.PageID(fileID))
	if err != nil {
		return nil, wrapError(err, "get page")
	}

	r := &renderer{api: api, limiter: c.limiter}
	body, err := r.page(ctx, fileID)
	if err != nil {
		return nil, err
	}

	title := pageTitle(page)
	markdown := "# " + title + "\n\n" + body
	return &domain.FileContent{
		ID:       fileID,
		Title:    title,
		Content:  []byte(markdown),
		MIMEType: "text/markdown",
		Size:     int64(len(markdown)),
		Metadata: map[string]any{"url": page.URL},
	}, nil
}

// Sync imports every reachable page through the deduper. A small fraction
// of item failures is tolerated; Notion workspaces routinely contain pages
// the integration cannot fully read.
func (c *Connector) Sync(ctx context.Context, opts domain.SyncOptions) (*domain.SyncResult, error) {
	if c.deduper == nil {
		return nil, fmt.Errorf("notion: document store required for sync")
	}

	result := &domain.SyncResult{StartedAt: time.Now()}

	pages, err := c.ListFiles(ctx, domain.ListOptions{
		Limit: opts.Limit,
		Since: opts.Since,
	})
	if err != nil {
		return nil, fmt.Errorf("list pages for sync: %w", err)
	}

	errs := services.RunBatches(ctx, pages, services.DefaultBatchSize, func(ctx context.Context, f domain.ConnectorFile) error {
		return c.importPage(ctx, f, result)
	})
	for i, err := range errs {
		if err != nil {
			result.RecordFailure(pages[i].ID, err)
		}
	}
	result.FilesProcessed = len(pages)

	result.Finish(failureTolerance)
	c.log.Info("sync finished",
		"processed", result.FilesProcessed,
		"updated", result.FilesUpdated,
		"failed", result.FilesFailed)
	return result, nil
}

func (c *Connector) importPage(ctx context.Context, f domain.ConnectorFile, result *domain.SyncResult) error {
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
			"org_id": c.orgID,
			"url":    f.URL,
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

func mapPage(page *notionapi.Page) domain.ConnectorFile {
	return domain.ConnectorFile{
		ID:         string(page.ID),
		Name:       pageTitle(page),
		Category:   domain.CategoryDocument,
		MIMEType:   "text/markdown",
		ModifiedAt: page.LastEditedTime,
		CreatedAt:  page.CreatedTime,
		URL:        page.URL,
	}
}

// pageTitle pulls the title property out of a page. Database rows carry it
// under a caller-named property, so the lookup scans for the title type.
func pageTitle(page *notionapi.Page) string {
	for _, prop := range page.Properties {
		if tp, ok := prop.(*notionapi.TitleProperty); ok {
			if title := plainText(tp.Title); title != "" {
				return title
			}
		}
	}
	return "Untitled"
}
