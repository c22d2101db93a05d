package urlimport

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corpushq/connectors/internal/core/domain"
	"github.com/corpushq/connectors/internal/core/ports/driven"
	"github.com/corpushq/connectors/internal/storage/memory"
)

func newTestConnector(t *testing.T) (*Connector, *memory.DocumentStore) {
	t.Helper()

	docs := memory.NewDocumentStore()
	c, err := New(driven.ConnectorOptions{
		ConnectorID: "url-test",
		Documents:   docs,
	})
	require.NoError(t, err)
	return c, docs
}

const articleHTML = `<html><head><title>Release Notes</title></head><body>
<nav>Home | About</nav>
<h1>Release Notes</h1>
<p>Version 2.0 ships <strong>today</strong>.</p>
<footer>© Example Corp</footer>
</body></html>`

func TestAddURL(t *testing.T) {
	c, _ := newTestConnector(t)
	ctx := context.Background()

	f, err := c.AddURL(ctx, "https://example.com/notes")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/notes", f.URL)

	// Re-adding the same URL returns the existing entry.
	again, err := c.AddURL(ctx, "https://example.com/notes")
	require.NoError(t, err)
	assert.Equal(t, f.ID, again.ID)

	_, err = c.AddURL(ctx, "ftp://example.com/file")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = c.AddURL(ctx, "not a url")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestDownloadFile_ConvertsToMarkdown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, articleHTML)
	}))
	defer srv.Close()

	c, _ := newTestConnector(t)
	f, err := c.AddURL(context.Background(), srv.URL)
	require.NoError(t, err)

	content, err := c.DownloadFile(context.Background(), f.ID)
	require.NoError(t, err)
	assert.Equal(t, "Release Notes", content.Title)
	md := string(content.Content)
	assert.Contains(t, md, "Version 2.0 ships **today**")
	assert.NotContains(t, md, "Home | About", "nav boilerplate must be stripped")
	assert.NotContains(t, md, "Example Corp", "footer boilerplate must be stripped")
}

func TestFetch_StatusClassClassification(t *testing.T) {
	status := atomic.Int32{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(status.Load()))
	}))
	defer srv.Close()

	c, _ := newTestConnector(t)
	f, err := c.AddURL(context.Background(), srv.URL)
	require.NoError(t, err)

	status.Store(http.StatusInternalServerError)
	_, err = c.DownloadFile(context.Background(), f.ID)
	require.Error(t, err)
	assert.True(t, domain.IsRetryable(err), "5xx failures are retryable")

	status.Store(http.StatusNotFound)
	_, err = c.DownloadFile(context.Background(), f.ID)
	require.Error(t, err)
	assert.False(t, domain.IsRetryable(err), "4xx failures are permanent")
	assert.True(t, domain.IsNotFound(err))
}

func TestSync_ImportsAndDedups(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, articleHTML)
	}))
	defer srv.Close()

	c, docs := newTestConnector(t)
	ctx := context.Background()

	_, err := c.AddURL(ctx, srv.URL)
	require.NoError(t, err)

	first, err := c.Sync(ctx, domain.SyncOptions{})
	require.NoError(t, err)
	assert.True(t, first.Success)
	assert.Equal(t, 1, first.FilesUpdated)

	// Success evicts from the queue.
	files, err := c.ListFiles(ctx, domain.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, files)

	doc, err := docs.Get(ctx, "url-test", srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "Release Notes", doc.Title)
	assert.Equal(t, "text/markdown", doc.FileType)

	// Re-queue and sync again: unchanged content only bumps the counter.
	_, err = c.AddURL(ctx, srv.URL)
	require.NoError(t, err)
	second, err := c.Sync(ctx, domain.SyncOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, second.FilesUpdated)

	doc, err = docs.Get(ctx, "url-test", srv.URL)
	require.NoError(t, err)
	assert.Equal(t, 2, doc.SyncCount)
}

func TestSync_RetryableFailureStaysQueued(t *testing.T) {
	status := atomic.Int32{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(status.Load()))
	}))
	defer srv.Close()

	c, _ := newTestConnector(t)
	ctx := context.Background()

	_, err := c.AddURL(ctx, srv.URL)
	require.NoError(t, err)

	status.Store(http.StatusServiceUnavailable)
	result, err := c.Sync(ctx, domain.SyncOptions{})
	require.NoError(t, err)
	assert.False(t, result.Success)

	files, err := c.ListFiles(ctx, domain.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, files, 1, "retryable failure must stay queued")

	// A permanent failure is dropped instead.
	status.Store(http.StatusGone)
	result, err = c.Sync(ctx, domain.SyncOptions{})
	require.NoError(t, err)
	assert.False(t, result.Success)

	files, err = c.ListFiles(ctx, domain.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, files, "permanent failure must leave the queue")
}
