package domain

import "time"

// Processing statuses for imported documents. The downstream pipeline
// (chunking, embedding) owns the transitions past "pending"; this subsystem
// only ever resets a document back to pending when its content changes.
const (
	ProcessingStatusPending   = "pending"
	ProcessingStatusProcessed = "processed"
	ProcessingStatusFailed    = "failed"
)

// ImportedDocument is the record written toward the document store. Keyed
// by (ConnectorID, ExternalID); the content hash detects unchanged items.
type ImportedDocument struct {
	ConnectorID string `json:"connector_id"`
	ExternalID  string `json:"external_id"`

	Title string `json:"title"`
	// Content holds the exact bytes the hash was computed over. Any
	// transformation (markdown conversion, base64 encoding) happens before
	// assignment.
	Content     []byte `json:"content"`
	ContentHash string `json:"content_hash"`
	FileType    string `json:"file_type"`
	FileSize    int64  `json:"file_size"`

	SourceMetadata map[string]any `json:"source_metadata,omitempty"`

	ProcessingStatus    string `json:"processing_status"`
	ChunksGenerated     bool   `json:"chunks_generated"`
	EmbeddingsGenerated bool   `json:"embeddings_generated"`

	LastSyncedAt time.Time `json:"last_synced_at"`
	SyncCount    int       `json:"sync_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
