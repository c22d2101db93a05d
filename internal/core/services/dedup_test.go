package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corpushq/connectors/internal/core/domain"
)

// memDocStore is an in-memory document store for tests.
type memDocStore struct {
	mu   sync.Mutex
	docs map[string]domain.ImportedDocument
}

func newMemDocStore() *memDocStore {
	return &memDocStore{docs: make(map[string]domain.ImportedDocument)}
}

func docKey(connectorID, externalID string) string {
	return connectorID + "\x00" + externalID
}

func (s *memDocStore) Get(_ context.Context, connectorID, externalID string) (*domain.ImportedDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[docKey(connectorID, externalID)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := d
	return &out, nil
}

func (s *memDocStore) Put(_ context.Context, doc domain.ImportedDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[docKey(doc.ConnectorID, doc.ExternalID)] = doc
	return nil
}

func (s *memDocStore) Delete(_ context.Context, connectorID, externalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := docKey(connectorID, externalID)
	if _, ok := s.docs[key]; !ok {
		return domain.ErrNotFound
	}
	delete(s.docs, key)
	return nil
}

func (s *memDocStore) ListByConnector(_ context.Context, connectorID string) ([]domain.ImportedDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ImportedDocument
	for _, d := range s.docs {
		if d.ConnectorID == connectorID {
			out = append(out, d)
		}
	}
	return out, nil
}

func TestHashContent(t *testing.T) {
	t.Run("stable across calls", func(t *testing.T) {
		assert.Equal(t, HashContent([]byte("hello")), HashContent([]byte("hello")))
	})

	t.Run("differs for different content", func(t *testing.T) {
		assert.NotEqual(t, HashContent([]byte("a")), HashContent([]byte("b")))
	})
}

func TestDeduper_Store(t *testing.T) {
	ctx := context.Background()

	doc := func(content string) domain.ImportedDocument {
		return domain.ImportedDocument{
			ConnectorID: "conn-1",
			ExternalID:  "ext-1",
			Title:       "Weekly Notes",
			Content:     []byte(content),
			FileType:    "text/markdown",
			FileSize:    int64(len(content)),
		}
	}

	t.Run("first store creates with pending status", func(t *testing.T) {
		store := newMemDocStore()
		d := NewDeduper(store, nil)

		outcome, err := d.Store(ctx, doc("# notes"))

		require.NoError(t, err)
		assert.Equal(t, OutcomeCreated, outcome)

		saved, err := store.Get(ctx, "conn-1", "ext-1")
		require.NoError(t, err)
		assert.Equal(t, domain.ProcessingStatusPending, saved.ProcessingStatus)
		assert.Equal(t, 1, saved.SyncCount)
		assert.Equal(t, HashContent([]byte("# notes")), saved.ContentHash)
	})

	t.Run("identical content bumps counter, one row", func(t *testing.T) {
		store := newMemDocStore()
		d := NewDeduper(store, nil)

		_, err := d.Store(ctx, doc("# notes"))
		require.NoError(t, err)
		outcome, err := d.Store(ctx, doc("# notes"))
		require.NoError(t, err)

		assert.Equal(t, OutcomeUnchanged, outcome)
		all, err := store.ListByConnector(ctx, "conn-1")
		require.NoError(t, err)
		require.Len(t, all, 1, "dedup key must yield exactly one row")
		assert.Equal(t, 2, all[0].SyncCount)
	})

	t.Run("changed content resets processing flags", func(t *testing.T) {
		store := newMemDocStore()
		d := NewDeduper(store, nil)

		_, err := d.Store(ctx, doc("v1"))
		require.NoError(t, err)

		// Simulate the downstream pipeline finishing.
		saved, err := store.Get(ctx, "conn-1", "ext-1")
		require.NoError(t, err)
		saved.ProcessingStatus = domain.ProcessingStatusProcessed
		saved.ChunksGenerated = true
		saved.EmbeddingsGenerated = true
		require.NoError(t, store.Put(ctx, *saved))

		outcome, err := d.Store(ctx, doc("v2"))
		require.NoError(t, err)

		assert.Equal(t, OutcomeUpdated, outcome)
		saved, err = store.Get(ctx, "conn-1", "ext-1")
		require.NoError(t, err)
		assert.Equal(t, domain.ProcessingStatusPending, saved.ProcessingStatus)
		assert.False(t, saved.ChunksGenerated)
		assert.False(t, saved.EmbeddingsGenerated)
		assert.Equal(t, 2, saved.SyncCount)
		assert.Equal(t, []byte("v2"), saved.Content)
	})

	t.Run("missing dedup key is invalid input", func(t *testing.T) {
		d := NewDeduper(newMemDocStore(), nil)

		_, err := d.Store(ctx, domain.ImportedDocument{ExternalID: "ext"})

		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}
