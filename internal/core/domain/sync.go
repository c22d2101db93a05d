package domain

import "time"

// SyncMode selects between a full re-import and an incremental pass.
type SyncMode string

const (
	SyncModeFull        SyncMode = "full"
	SyncModeIncremental SyncMode = "incremental"
)

// SyncOptions parameterize one Sync invocation.
type SyncOptions struct {
	// Mode defaults to incremental when Since is set, full otherwise.
	Mode SyncMode `json:"mode,omitempty"`
	// Since bounds an incremental sync to items modified after this instant.
	Since time.Time `json:"since,omitempty"`
	// Limit caps the number of items considered. Zero means no cap.
	Limit int `json:"limit,omitempty"`
	// FileTypes restricts the sync to the given MIME types.
	FileTypes []string `json:"file_types,omitempty"`
	// PathPrefix restricts the sync to items under the given path or folder.
	PathPrefix string `json:"path_prefix,omitempty"`
}

// ListOptions parameterize ListFiles.
type ListOptions struct {
	// Limit caps the flattened result. Zero means no cap.
	Limit int `json:"limit,omitempty"`
	// FolderID restricts listing to one folder, for vendors with hierarchy.
	FolderID string `json:"folder_id,omitempty"`
	// Since restricts listing to items modified after this instant.
	Since time.Time `json:"since,omitempty"`
	// MIMETypes restricts listing to the given MIME types.
	MIMETypes []string `json:"mime_types,omitempty"`
}

// SyncError records one item-level failure inside a sync. Item failures do
// not abort the batch; they accumulate here.
type SyncError struct {
	// ExternalID is the vendor-unique id of the failed item, when known.
	ExternalID string `json:"external_id,omitempty"`
	Message    string `json:"message"`
	// Retryable marks transient failures (timeout, 5xx, rate limit) the
	// caller may reschedule. Permanent failures (404, oversize, unsupported
	// type) are not retryable.
	Retryable bool `json:"retryable"`
}

// SyncResult is the unit of observability for one Sync invocation. It is
// not persisted by this subsystem.
type SyncResult struct {
	Success        bool        `json:"success"`
	FilesProcessed int         `json:"files_processed"`
	FilesUpdated   int         `json:"files_updated"`
	FilesFailed    int         `json:"files_failed"`
	FilesDeleted   int         `json:"files_deleted"`
	Errors         []SyncError `json:"errors,omitempty"`
	StartedAt      time.Time   `json:"started_at"`
	CompletedAt    time.Time   `json:"completed_at"`
}

// RecordFailure appends an item failure, classifying retryability from err.
func (r *SyncResult) RecordFailure(externalID string, err error) {
	r.FilesFailed++
	r.Errors = append(r.Errors, SyncError{
		ExternalID: externalID,
		Message:    err.Error(),
		Retryable:  IsRetryable(err),
	})
}

// Finish stamps the completion time and computes Success against the
// adapter's failure tolerance: a fraction of processed items that may fail
// while the sync still counts as successful. Most adapters use 0 (any
// failure fails the sync); Notion uses 0.10.
func (r *SyncResult) Finish(tolerance float64) {
	r.CompletedAt = time.Now()
	if r.FilesProcessed == 0 {
		r.Success = r.FilesFailed == 0
		return
	}
	ratio := float64(r.FilesFailed) / float64(r.FilesProcessed)
	r.Success = ratio <= tolerance
}
