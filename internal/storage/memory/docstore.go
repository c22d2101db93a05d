// Package memory provides in-memory implementations of the storage ports.
// Used in tests and in single-process development setups; nothing here
// survives a restart.
package memory

import (
	"context"
	"sync"

	"github.com/corpushq/connectors/internal/core/domain"
	"github.com/corpushq/connectors/internal/core/ports/driven"
)

// Ensure DocumentStore implements the interface.
var _ driven.DocumentStore = (*DocumentStore)(nil)

// DocumentStore stores imported documents keyed by
// (connector_id, external_id).
type DocumentStore struct {
	mu   sync.RWMutex
	docs map[docKey]domain.ImportedDocument
}

type docKey struct {
	connectorID string
	externalID  string
}

// NewDocumentStore creates an empty document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{docs: make(map[docKey]domain.ImportedDocument)}
}

// Get returns the record for (connectorID, externalID), or ErrNotFound.
func (s *DocumentStore) Get(_ context.Context, connectorID, externalID string) (*domain.ImportedDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[docKey{connectorID, externalID}]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := doc
	return &out, nil
}

// Put inserts or replaces the record.
func (s *DocumentStore) Put(_ context.Context, doc domain.ImportedDocument) error {
	if doc.ConnectorID == "" || doc.ExternalID == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.docs[docKey{doc.ConnectorID, doc.ExternalID}] = doc
	return nil
}

// Delete removes the record, or returns ErrNotFound.
func (s *DocumentStore) Delete(_ context.Context, connectorID, externalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := docKey{connectorID, externalID}
	if _, ok := s.docs[key]; !ok {
		return domain.ErrNotFound
	}
	delete(s.docs, key)
	return nil
}

// ListByConnector returns every record for one connector instance.
func (s *DocumentStore) ListByConnector(_ context.Context, connectorID string) ([]domain.ImportedDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.ImportedDocument
	for key, doc := range s.docs {
		if key.connectorID == connectorID {
			out = append(out, doc)
		}
	}
	return out, nil
}
