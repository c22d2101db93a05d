package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/corpushq/connectors/internal/core/domain"
	"github.com/corpushq/connectors/internal/core/ports/driven"
)

// HashContent computes the content hash used for change detection: a sha256
// hex digest over the exact bytes stored. Callers must finish any transform
// (markdown conversion, base64 encoding) before hashing so the hash is
// stable across re-syncs of unchanged content.
func HashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// StoreOutcome reports what Deduper.Store did with a document.
type StoreOutcome int

const (
	// OutcomeCreated means a new record was inserted.
	OutcomeCreated StoreOutcome = iota
	// OutcomeUpdated means the content hash changed and the record was
	// rewritten with processing flags reset to pending.
	OutcomeUpdated
	// OutcomeUnchanged means the hash matched; only the sync counter and
	// timestamp moved.
	OutcomeUnchanged
)

// Deduper implements upsert-by-external-id with content-hash change
// detection over an injected DocumentStore.
type Deduper struct {
	store driven.DocumentStore
	log   *slog.Logger
}

// NewDeduper creates a dedup helper over the given store.
func NewDeduper(store driven.DocumentStore, log *slog.Logger) *Deduper {
	if log == nil {
		log = slog.Default()
	}
	return &Deduper{store: store, log: log}
}

// Store upserts one document by (ConnectorID, ExternalID). The incoming doc
// needs ConnectorID, ExternalID, Title, Content, FileType, FileSize and
// SourceMetadata set; hash, counters and processing flags are managed here.
func (d *Deduper) Store(ctx context.Context, doc domain.ImportedDocument) (StoreOutcome, error) {
	if doc.ConnectorID == "" || doc.ExternalID == "" {
		return 0, fmt.Errorf("%w: dedup key incomplete", domain.ErrInvalidInput)
	}

	doc.ContentHash = HashContent(doc.Content)
	now := time.Now()

	existing, err := d.store.Get(ctx, doc.ConnectorID, doc.ExternalID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return 0, fmt.Errorf("lookup document: %w", err)
	}

	if existing == nil {
		doc.ProcessingStatus = domain.ProcessingStatusPending
		doc.ChunksGenerated = false
		doc.EmbeddingsGenerated = false
		doc.SyncCount = 1
		doc.LastSyncedAt = now
		doc.CreatedAt = now
		doc.UpdatedAt = now
		if err := d.store.Put(ctx, doc); err != nil {
			return 0, fmt.Errorf("insert document: %w", err)
		}
		return OutcomeCreated, nil
	}

	if existing.ContentHash == doc.ContentHash {
		existing.SyncCount++
		existing.LastSyncedAt = now
		if err := d.store.Put(ctx, *existing); err != nil {
			return 0, fmt.Errorf("bump sync counter: %w", err)
		}
		return OutcomeUnchanged, nil
	}

	// Content changed: rewrite and reset downstream processing so the
	// document pipeline reprocesses it.
	doc.ProcessingStatus = domain.ProcessingStatusPending
	doc.ChunksGenerated = false
	doc.EmbeddingsGenerated = false
	doc.SyncCount = existing.SyncCount + 1
	doc.LastSyncedAt = now
	doc.CreatedAt = existing.CreatedAt
	doc.UpdatedAt = now
	if err := d.store.Put(ctx, doc); err != nil {
		return 0, fmt.Errorf("update document: %w", err)
	}
	d.log.Debug("document content changed",
		"connector_id", doc.ConnectorID, "external_id", doc.ExternalID)
	return OutcomeUpdated, nil
}
