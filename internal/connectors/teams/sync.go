package teams

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/corpushq/connectors/internal/connectors/msgraph"
	"github.com/corpushq/connectors/internal/core/domain"
	"github.com/corpushq/connectors/internal/core/services"
)

// ListFiles enumerates recordings and transcripts of online meetings in the
// window, normalized into the shared descriptor. IDs are composite
// "meetingID/recordings/recordingID" paths so they stay vendor-unique and
// resolvable by DownloadFile.
func (c *Connector) ListFiles(ctx context.Context, opts domain.ListOptions) ([]domain.ConnectorFile, error) {
	end := time.Now()
	start := opts.Since
	if start.IsZero() {
		start = end.Add(-defaultSyncWindow)
	}

	meetings, err := c.meetings(ctx, start, end)
	if err != nil {
		return nil, err
	}

	var files []domain.ConnectorFile
	for _, meeting := range meetings {
		items, err := c.meetingItems(ctx, meeting)
		if err != nil {
			return nil, err
		}
		files = append(files, items...)
		if opts.Limit > 0 && len(files) >= opts.Limit {
			return files[:opts.Limit], nil
		}
	}
	return files, nil
}

// meetingItems lists one meeting's recordings and transcripts. Tenants
// without the recording or transcript sub-APIs yield zero results.
func (c *Connector) meetingItems(ctx context.Context, meeting msgraph.OnlineMeeting) ([]domain.ConnectorFile, error) {
	var files []domain.ConnectorFile

	recordings, err := c.client.Recordings(ctx, meeting.ID)
	if err != nil && !graphUnavailable(err) {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	for _, rec := range recordings {
		files = append(files, domain.ConnectorFile{
			ID:         meeting.ID + "/recordings/" + rec.ID,
			Name:       meeting.Subject + " (recording)",
			Category:   domain.CategoryVideo,
			MIMEType:   "video/mp4",
			ModifiedAt: rec.CreatedDateTime,
			CreatedAt:  rec.CreatedDateTime,
			Metadata:   map[string]any{"meeting_id": meeting.ID},
		})
	}

	transcripts, err := c.client.Transcripts(ctx, meeting.ID)
	if err != nil && !graphUnavailable(err) {
		return nil, fmt.Errorf("list transcripts: %w", err)
	}
	for _, tr := range transcripts {
		files = append(files, domain.ConnectorFile{
			ID:         meeting.ID + "/transcripts/" + tr.ID,
			Name:       meeting.Subject + " (transcript)",
			Category:   domain.CategoryText,
			MIMEType:   "text/vtt",
			ModifiedAt: tr.CreatedDateTime,
			CreatedAt:  tr.CreatedDateTime,
			Metadata:   map[string]any{"meeting_id": meeting.ID},
		})
	}
	return files, nil
}

// DownloadFile fetches one recording or transcript by its composite id.
// Recording payloads are base64 encoded before hashing and storage.
func (c *Connector) DownloadFile(ctx context.Context, fileID string) (*domain.FileContent, error) {
	meetingID, kind, itemID, err := splitItemID(fileID)
	if err != nil {
		return nil, err
	}

	switch kind {
	case "recordings":
		raw, err := c.client.Download(ctx,
			"/me/onlineMeetings/"+meetingID+"/recordings/"+itemID+"/content", maxImportSize)
		if err != nil {
			return nil, err
		}
		encoded := base64.StdEncoding.EncodeToString(raw)
		return &domain.FileContent{
			ID:       fileID,
			Title:    "recording " + itemID,
			Content:  []byte(encoded),
			MIMEType: "video/mp4",
			Size:     int64(len(encoded)),
			Metadata: map[string]any{"encoding": "base64", "meeting_id": meetingID},
		}, nil
	case "transcripts":
		raw, err := c.client.TranscriptContent(ctx, meetingID, itemID, maxImportSize)
		if err != nil {
			return nil, err
		}
		return &domain.FileContent{
			ID:       fileID,
			Title:    "transcript " + itemID,
			Content:  raw,
			MIMEType: "text/vtt",
			Size:     int64(len(raw)),
			Metadata: map[string]any{"meeting_id": meetingID},
		}, nil
	}
	return nil, fmt.Errorf("%w: unknown item kind %q", domain.ErrInvalidInput, kind)
}

func splitItemID(fileID string) (meetingID, kind, itemID string, err error) {
	parts := strings.Split(fileID, "/")
	if len(parts) != 3 || parts[0] == "" || parts[2] == "" {
		return "", "", "", fmt.Errorf("%w: malformed item id %q", domain.ErrInvalidInput, fileID)
	}
	return parts[0], parts[1], parts[2], nil
}

// Sync discovers online meetings in the window and imports their recordings
// and transcripts. The same per-meeting path serves webhook processing.
func (c *Connector) Sync(ctx context.Context, opts domain.SyncOptions) (*domain.SyncResult, error) {
	if c.deduper == nil {
		return nil, fmt.Errorf("teams: document store required for sync")
	}

	result := &domain.SyncResult{StartedAt: time.Now()}

	end := time.Now()
	start := opts.Since
	if start.IsZero() {
		start = end.Add(-defaultSyncWindow)
	}
	meetings, err := c.meetings(ctx, start, end)
	if err != nil {
		return nil, err
	}

	errs := services.RunBatches(ctx, meetings, services.DefaultBatchSize, func(ctx context.Context, m msgraph.OnlineMeeting) error {
		return c.processMeeting(ctx, m, result)
	})
	for i, err := range errs {
		if err != nil {
			c.fail(result, meetings[i].ID, err)
		}
	}

	result.Finish(0)
	c.log.Info("sync finished",
		"meetings", len(meetings),
		"processed", result.FilesProcessed,
		"updated", result.FilesUpdated,
		"failed", result.FilesFailed)
	return result, nil
}

// processMeeting imports every recording and transcript of one meeting.
// Item failures are recorded without aborting the meeting.
func (c *Connector) processMeeting(ctx context.Context, meeting msgraph.OnlineMeeting, result *domain.SyncResult) error {
	items, err := c.meetingItems(ctx, meeting)
	if err != nil {
		return err
	}

	for _, item := range items {
		c.bumpProcessed(result)
		if err := c.importItem(ctx, item, meeting, result); err != nil {
			c.fail(result, item.ID, err)
		}
	}
	return nil
}

func (c *Connector) importItem(ctx context.Context, item domain.ConnectorFile, meeting msgraph.OnlineMeeting, result *domain.SyncResult) error {
	content, err := c.DownloadFile(ctx, item.ID)
	if err != nil {
		return err
	}

	outcome, err := c.deduper.Store(ctx, domain.ImportedDocument{
		ConnectorID: c.connectorID,
		ExternalID:  item.ID,
		Title:       item.Name,
		Content:     content.Content,
		FileType:    content.MIMEType,
		FileSize:    content.Size,
		SourceMetadata: map[string]any{
			"org_id":          c.orgID,
			"meeting_id":      meeting.ID,
			"meeting_subject": meeting.Subject,
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

func (c *Connector) bumpProcessed(result *domain.SyncResult) {
	c.updatedMu.Lock()
	result.FilesProcessed++
	c.updatedMu.Unlock()
}

func (c *Connector) fail(result *domain.SyncResult, externalID string, err error) {
	c.updatedMu.Lock()
	result.RecordFailure(externalID, err)
	c.updatedMu.Unlock()
}
