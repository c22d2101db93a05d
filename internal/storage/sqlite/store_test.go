package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corpushq/connectors/internal/core/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testDocument(connectorID, externalID string) domain.ImportedDocument {
	now := time.Now().UTC().Truncate(time.Second)
	return domain.ImportedDocument{
		ConnectorID:      connectorID,
		ExternalID:       externalID,
		Title:            "Quarterly Report",
		Content:          []byte("# Quarterly Report\n\nRevenue up."),
		ContentHash:      "abc123",
		FileType:         "text/markdown",
		FileSize:         31,
		SourceMetadata:   map[string]any{"folder": "reports"},
		ProcessingStatus: domain.ProcessingStatusPending,
		LastSyncedAt:     now,
		SyncCount:        1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func TestDocumentStore_PutGet(t *testing.T) {
	store := newTestStore(t)
	docs := store.DocumentStore()
	ctx := context.Background()

	doc := testDocument("conn-1", "file-1")
	require.NoError(t, docs.Put(ctx, doc))

	got, err := docs.Get(ctx, "conn-1", "file-1")
	require.NoError(t, err)
	assert.Equal(t, doc.Title, got.Title)
	assert.Equal(t, doc.Content, got.Content)
	assert.Equal(t, doc.ContentHash, got.ContentHash)
	assert.Equal(t, doc.SourceMetadata, got.SourceMetadata)
	assert.Equal(t, domain.ProcessingStatusPending, got.ProcessingStatus)
}

func TestDocumentStore_GetNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.DocumentStore().Get(context.Background(), "conn-1", "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentStore_PutUpserts(t *testing.T) {
	store := newTestStore(t)
	docs := store.DocumentStore()
	ctx := context.Background()

	doc := testDocument("conn-1", "file-1")
	require.NoError(t, docs.Put(ctx, doc))

	doc.Title = "Quarterly Report v2"
	doc.ContentHash = "def456"
	doc.SyncCount = 2
	require.NoError(t, docs.Put(ctx, doc))

	got, err := docs.Get(ctx, "conn-1", "file-1")
	require.NoError(t, err)
	assert.Equal(t, "Quarterly Report v2", got.Title)
	assert.Equal(t, "def456", got.ContentHash)
	assert.Equal(t, 2, got.SyncCount)

	all, err := docs.ListByConnector(ctx, "conn-1")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestDocumentStore_PutValidatesKeys(t *testing.T) {
	store := newTestStore(t)

	doc := testDocument("", "file-1")
	err := store.DocumentStore().Put(context.Background(), doc)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestDocumentStore_ListByConnector(t *testing.T) {
	store := newTestStore(t)
	docs := store.DocumentStore()
	ctx := context.Background()

	require.NoError(t, docs.Put(ctx, testDocument("conn-1", "file-1")))
	require.NoError(t, docs.Put(ctx, testDocument("conn-1", "file-2")))
	require.NoError(t, docs.Put(ctx, testDocument("conn-2", "file-3")))

	got, err := docs.ListByConnector(ctx, "conn-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "file-1", got[0].ExternalID)
	assert.Equal(t, "file-2", got[1].ExternalID)
}

func TestDocumentStore_Delete(t *testing.T) {
	store := newTestStore(t)
	docs := store.DocumentStore()
	ctx := context.Background()

	require.NoError(t, docs.Put(ctx, testDocument("conn-1", "file-1")))
	require.NoError(t, docs.Delete(ctx, "conn-1", "file-1"))

	_, err := docs.Get(ctx, "conn-1", "file-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = docs.Delete(ctx, "conn-1", "file-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCredentialsStore_SaveAndGet(t *testing.T) {
	store := newTestStore(t)
	creds := store.CredentialsStore()
	ctx := context.Background()

	c := domain.ConnectorCredentials{
		AccessToken:  "access",
		RefreshToken: "refresh",
		Expiry:       time.Now().Add(time.Hour).UTC().Truncate(time.Second),
		Scopes:       []string{"read"},
	}
	require.NoError(t, creds.Save(ctx, "conn-1", c, 0))

	got, err := creds.Get(ctx, "conn-1")
	require.NoError(t, err)
	assert.Equal(t, "access", got.AccessToken)
	assert.Equal(t, int64(1), got.Version)
}

func TestCredentialsStore_VersionConflict(t *testing.T) {
	store := newTestStore(t)
	creds := store.CredentialsStore()
	ctx := context.Background()

	c := domain.ConnectorCredentials{AccessToken: "v1"}
	require.NoError(t, creds.Save(ctx, "conn-1", c, 0))

	// Duplicate create loses.
	err := creds.Save(ctx, "conn-1", c, 0)
	assert.ErrorIs(t, err, domain.ErrCredentialConflict)

	// Stale version loses.
	c.AccessToken = "v2"
	err = creds.Save(ctx, "conn-1", c, 5)
	assert.ErrorIs(t, err, domain.ErrCredentialConflict)

	// Matching version wins and bumps.
	require.NoError(t, creds.Save(ctx, "conn-1", c, 1))
	got, err := creds.Get(ctx, "conn-1")
	require.NoError(t, err)
	assert.Equal(t, "v2", got.AccessToken)
	assert.Equal(t, int64(2), got.Version)
}

func TestCredentialsStore_GetNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.CredentialsStore().Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCredentialsStore_Delete(t *testing.T) {
	store := newTestStore(t)
	creds := store.CredentialsStore()
	ctx := context.Background()

	require.NoError(t, creds.Save(ctx, "conn-1", domain.ConnectorCredentials{AccessToken: "a"}, 0))
	require.NoError(t, creds.Delete(ctx, "conn-1"))

	_, err := creds.Get(ctx, "conn-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// Reopening an existing database must not re-run migrations.
	store, err = NewStore(dir)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.DocumentStore().Put(context.Background(), testDocument("c", "f")))
}
