package domain

import (
	"strings"
	"time"
)

// FileCategory is the coarse type inferred from a file's MIME type.
type FileCategory string

const (
	CategoryDocument     FileCategory = "document"
	CategorySpreadsheet  FileCategory = "spreadsheet"
	CategoryPresentation FileCategory = "presentation"
	CategoryPDF          FileCategory = "pdf"
	CategoryText         FileCategory = "text"
	CategoryImage        FileCategory = "image"
	CategoryAudio        FileCategory = "audio"
	CategoryVideo        FileCategory = "video"
	CategoryArchive      FileCategory = "archive"
	CategoryFolder       FileCategory = "folder"
	CategoryOther        FileCategory = "other"
)

// CategoryForMIME infers a FileCategory from a MIME type string.
func CategoryForMIME(mimeType string) FileCategory {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	switch {
	case mt == "":
		return CategoryOther
	case mt == "application/pdf":
		return CategoryPDF
	case strings.Contains(mt, "spreadsheet"), mt == "text/csv", strings.HasSuffix(mt, "ms-excel"):
		return CategorySpreadsheet
	case strings.Contains(mt, "presentation"), strings.HasSuffix(mt, "ms-powerpoint"):
		return CategoryPresentation
	case strings.Contains(mt, "wordprocessing"), strings.HasSuffix(mt, "msword"),
		strings.Contains(mt, "vnd.google-apps.document"):
		return CategoryDocument
	case strings.Contains(mt, "vnd.google-apps.folder"):
		return CategoryFolder
	case strings.HasPrefix(mt, "text/"), mt == "application/json", mt == "application/xml":
		return CategoryText
	case strings.HasPrefix(mt, "image/"):
		return CategoryImage
	case strings.HasPrefix(mt, "audio/"):
		return CategoryAudio
	case strings.HasPrefix(mt, "video/"):
		return CategoryVideo
	case strings.HasSuffix(mt, "zip"), strings.HasSuffix(mt, "gzip"),
		strings.HasSuffix(mt, "x-tar"), strings.HasSuffix(mt, "x-7z-compressed"):
		return CategoryArchive
	}
	return CategoryOther
}

// ConnectorFile is the normalized description of one remote file or page.
// Produced by ListFiles; never mutated, recreated on each call.
//
// ID must be stable and vendor-unique: it becomes the external_id dedup key
// downstream.
type ConnectorFile struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Category   FileCategory   `json:"category"`
	MIMEType   string         `json:"mime_type"`
	Size       int64          `json:"size"`
	ModifiedAt time.Time      `json:"modified_at"`
	CreatedAt  time.Time      `json:"created_at"`
	URL        string         `json:"url,omitempty"`
	Path       string         `json:"path,omitempty"`
	ParentID   string         `json:"parent_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// IsFolder reports whether the entry describes a folder rather than a file.
func (f *ConnectorFile) IsFolder() bool {
	return f.Category == CategoryFolder
}

// FileContent is a downloaded payload. Any transformation (HTML to markdown,
// base64 encoding of binary) happens before the content lands here, so the
// hash computed over Content stays stable across re-syncs.
type FileContent struct {
	ID       string         `json:"id"`
	Title    string         `json:"title"`
	Content  []byte         `json:"content"`
	MIMEType string         `json:"mime_type"`
	Size     int64          `json:"size"`
	Metadata map[string]any `json:"metadata,omitempty"`
}
