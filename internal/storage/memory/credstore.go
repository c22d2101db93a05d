package memory

import (
	"context"
	"sync"

	"github.com/corpushq/connectors/internal/core/domain"
	"github.com/corpushq/connectors/internal/core/ports/driven"
)

// Ensure CredentialsStore implements the interface.
var _ driven.CredentialsStore = (*CredentialsStore)(nil)

// CredentialsStore stores per-connector credentials with optimistic
// versioning.
type CredentialsStore struct {
	mu    sync.Mutex
	creds map[string]domain.ConnectorCredentials
}

// NewCredentialsStore creates an empty credentials store.
func NewCredentialsStore() *CredentialsStore {
	return &CredentialsStore{creds: make(map[string]domain.ConnectorCredentials)}
}

// Get returns the stored credentials, or ErrNotFound.
func (s *CredentialsStore) Get(_ context.Context, connectorID string) (*domain.ConnectorCredentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	creds, ok := s.creds[connectorID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := creds
	return &out, nil
}

// Save persists credentials when expectedVersion matches the stored
// version; otherwise it fails with ErrCredentialConflict.
func (s *CredentialsStore) Save(_ context.Context, connectorID string, creds domain.ConnectorCredentials, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.creds[connectorID]
	if ok && current.Version != expectedVersion {
		return domain.ErrCredentialConflict
	}
	creds.Version = expectedVersion + 1
	s.creds[connectorID] = creds
	return nil
}

// Delete removes the stored credentials.
func (s *CredentialsStore) Delete(_ context.Context, connectorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.creds, connectorID)
	return nil
}
