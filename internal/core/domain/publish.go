package domain

import "time"

// PublishRequest describes a document to write out to an external source.
type PublishRequest struct {
	Name     string `json:"name"`
	MIMEType string `json:"mime_type"`
	// Content is the payload. When Base64 is set, Content holds a base64
	// text encoding of the binary payload and is decoded before upload.
	Content []byte `json:"content"`
	Base64  bool   `json:"base64,omitempty"`
	// FolderID places the document in a specific folder. Empty means the
	// vendor's root or configured default folder.
	FolderID string `json:"folder_id,omitempty"`
}

// PublishResult reports a successful publish or update.
type PublishResult struct {
	ExternalID string `json:"external_id"`
	Name       string `json:"name"`
	URL        string `json:"url,omitempty"`
}

// DocumentInfo describes an externally published document's current state.
type DocumentInfo struct {
	Exists     bool      `json:"exists"`
	ExternalID string    `json:"external_id"`
	Title      string    `json:"title,omitempty"`
	URL        string    `json:"url,omitempty"`
	ModifiedAt time.Time `json:"modified_at,omitempty"`
	// Trashed is set when the vendor soft-deleted the document.
	Trashed bool `json:"trashed,omitempty"`
}
