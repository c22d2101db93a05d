package zoom

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/corpushq/connectors/internal/core/domain"
	"github.com/corpushq/connectors/internal/core/services"
)

// isTextual reports whether a recording file type carries text that can be
// stored as-is. Binary media is base64-encoded before hashing and storage.
func isTextual(fileType string) bool {
	switch strings.ToUpper(fileType) {
	case "TRANSCRIPT", "CC", "CHAT", "TIMELINE", "SUMMARY":
		return true
	}
	return false
}

func mimeFor(fileType string) string {
	switch strings.ToUpper(fileType) {
	case "MP4":
		return "video/mp4"
	case "M4A":
		return "audio/m4a"
	case "TRANSCRIPT", "CC":
		return "text/vtt"
	case "CHAT":
		return "text/plain"
	case "TIMELINE", "SUMMARY":
		return "application/json"
	}
	return "application/octet-stream"
}

// ListFiles flattens every completed recording file in the sync window to
// one entry each, identified by "meetingUUID/fileID".
func (c *Connector) ListFiles(ctx context.Context, opts domain.ListOptions) ([]domain.ConnectorFile, error) {
	to := time.Now()
	from := to.Add(-defaultSyncWindow)
	if !opts.Since.IsZero() {
		from = opts.Since
	}

	meetings, err := c.client.listRecordings(ctx, from, to)
	if err != nil {
		return nil, err
	}

	var files []domain.ConnectorFile
	for _, m := range meetings {
		files = append(files, meetingFiles(m)...)
		if opts.Limit > 0 && len(files) >= opts.Limit {
			return files[:opts.Limit], nil
		}
	}
	return files, nil
}

func meetingFiles(m meetingRecording) []domain.ConnectorFile {
	var files []domain.ConnectorFile
	for _, rf := range m.RecordingFiles {
		if rf.Status != "" && rf.Status != "completed" {
			continue
		}
		mime := mimeFor(rf.FileType)
		files = append(files, domain.ConnectorFile{
			ID:         m.UUID + "/" + rf.ID,
			Name:       fmt.Sprintf("%s (%s)", m.Topic, strings.ToLower(rf.FileType)),
			Category:   domain.CategoryForMIME(mime),
			MIMEType:   mime,
			Size:       rf.FileSize,
			ModifiedAt: m.StartTime,
			CreatedAt:  m.StartTime,
			URL:        rf.DownloadURL,
			ParentID:   m.UUID,
		})
	}
	return files
}

// splitItemID decomposes a composite recording id. The meeting UUID may
// itself contain slashes, so the file id is the last segment.
func splitItemID(id string) (meetingUUID, fileID string, err error) {
	i := strings.LastIndex(id, "/")
	if i <= 0 || i == len(id)-1 {
		return "", "", fmt.Errorf("%w: malformed recording id %q", domain.ErrInvalidInput, id)
	}
	return id[:i], id[i+1:], nil
}

// DownloadFile fetches one recording file. Textual artifacts (transcripts,
// chat logs) are stored raw; media is base64-encoded.
func (c *Connector) DownloadFile(ctx context.Context, fileID string) (*domain.FileContent, error) {
	meetingUUID, recID, err := splitItemID(fileID)
	if err != nil {
		return nil, err
	}

	meeting, err := c.client.meetingRecordings(ctx, meetingUUID)
	if err != nil {
		return nil, err
	}
	for _, rf := range meeting.RecordingFiles {
		if rf.ID != recID {
			continue
		}
		data, err := c.client.downloadFile(ctx, rf.DownloadURL, maxImportSize)
		if err != nil {
			return nil, err
		}
		content := &domain.FileContent{
			ID:       fileID,
			Title:    fmt.Sprintf("%s (%s)", meeting.Topic, strings.ToLower(rf.FileType)),
			MIMEType: mimeFor(rf.FileType),
			Metadata: map[string]any{"meeting_uuid": meetingUUID, "file_type": rf.FileType},
		}
		if isTextual(rf.FileType) {
			content.Content = data
		} else {
			content.Content = []byte(base64.StdEncoding.EncodeToString(data))
			content.Metadata["encoding"] = "base64"
		}
		content.Size = int64(len(content.Content))
		return content, nil
	}
	return nil, fmt.Errorf("recording file %s: %w", recID, domain.ErrNotFound)
}

// Sync imports every recording file in the window. Webhook-driven imports
// run through the same processMeeting routine.
func (c *Connector) Sync(ctx context.Context, opts domain.SyncOptions) (*domain.SyncResult, error) {
	if c.deduper == nil {
		return nil, fmt.Errorf("zoom: document store required for sync")
	}

	result := &domain.SyncResult{StartedAt: time.Now()}

	to := time.Now()
	from := to.Add(-defaultSyncWindow)
	if !opts.Since.IsZero() {
		from = opts.Since
	}
	meetings, err := c.client.listRecordings(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("list recordings for sync: %w", err)
	}

	errs := services.RunBatches(ctx, meetings, services.DefaultBatchSize, func(ctx context.Context, m meetingRecording) error {
		return c.processMeeting(ctx, m, result)
	})
	for i, err := range errs {
		if err != nil {
			c.fail(result, meetings[i].UUID, err)
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

// processMeeting imports every completed recording file of one meeting.
// Item failures are recorded without aborting the rest of the meeting.
func (c *Connector) processMeeting(ctx context.Context, m meetingRecording, result *domain.SyncResult) error {
	for _, f := range meetingFiles(m) {
		c.bumpProcessed(result)
		if err := c.importFile(ctx, f, m, result); err != nil {
			c.fail(result, f.ID, err)
		}
	}
	return nil
}

func (c *Connector) importFile(ctx context.Context, f domain.ConnectorFile, m meetingRecording, result *domain.SyncResult) error {
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
			"org_id":        c.orgID,
			"meeting_uuid":  m.UUID,
			"meeting_topic": m.Topic,
			"started_at":    m.StartTime.Format(time.RFC3339),
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

// RecordFailure is not safe for concurrent batches; serialize it here.
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
