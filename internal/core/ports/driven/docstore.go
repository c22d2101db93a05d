package driven

import (
	"context"

	"github.com/corpushq/connectors/internal/core/domain"
)

// DocumentStore is the storage collaborator this subsystem writes imported
// documents toward. It does not own the document lifecycle beyond "insert
// if absent, update if hash differs, else bump counters"; that decision is
// made by the dedup helper and Put always writes the full record.
type DocumentStore interface {
	// Get returns the record for (connectorID, externalID), or ErrNotFound.
	Get(ctx context.Context, connectorID, externalID string) (*domain.ImportedDocument, error)

	// Put inserts or replaces the record keyed by
	// (doc.ConnectorID, doc.ExternalID).
	Put(ctx context.Context, doc domain.ImportedDocument) error

	// Delete removes the record, or returns ErrNotFound.
	Delete(ctx context.Context, connectorID, externalID string) error

	// ListByConnector returns every record for one connector instance.
	ListByConnector(ctx context.Context, connectorID string) ([]domain.ImportedDocument, error)
}
