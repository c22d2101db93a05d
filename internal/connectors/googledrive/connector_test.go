package googledrive

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/corpushq/connectors/internal/core/domain"
	"github.com/corpushq/connectors/internal/core/ports/driven"
	"github.com/corpushq/connectors/internal/storage/memory"
)

func testApp() domain.OAuthApp {
	return domain.OAuthApp{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURI:  "https://example.com/callback",
	}
}

func newTestConnector(t *testing.T, serverURL string) (*Connector, *memory.CredentialsStore, *memory.DocumentStore) {
	t.Helper()

	creds := memory.NewCredentialsStore()
	docs := memory.NewDocumentStore()

	c, err := New(driven.ConnectorOptions{
		ConnectorID: "drive-test",
		App:         testApp(),
		Credentials: creds,
		Documents:   docs,
	})
	require.NoError(t, err)

	if serverURL != "" {
		c.newService = func(ctx context.Context, _ oauth2.TokenSource) (*drive.Service, error) {
			return drive.NewService(ctx,
				option.WithEndpoint(serverURL+"/"),
				option.WithHTTPClient(http.DefaultClient))
		}
	}

	err = creds.Save(context.Background(), "drive-test", domain.ConnectorCredentials{
		AccessToken: "token",
		Expiry:      time.Now().Add(time.Hour),
		Scopes:      []string{ScopeDriveReadonly, ScopeDriveFile},
	}, 0)
	require.NoError(t, err)

	return c, creds, docs
}

// driveFixture serves a minimal Drive API surface for three files.
func driveFixture(t *testing.T) *httptest.Server {
	t.Helper()

	files := []map[string]any{
		{
			"id": "file-1", "name": "notes.txt", "mimeType": "text/plain",
			"size": "11", "modifiedTime": "2026-01-02T10:00:00Z",
		},
		{
			"id": "file-2", "name": "budget", "mimeType": mimeGoogleSheet,
			"modifiedTime": "2026-01-03T10:00:00Z",
		},
		{
			"id": "file-3", "name": "archive", "mimeType": mimeFolder,
			"modifiedTime": "2026-01-01T10:00:00Z",
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /files", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"files": files})
	})
	mux.HandleFunc("GET /files/file-1", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("alt") == "media" {
			w.Write([]byte("hello world"))
			return
		}
		json.NewEncoder(w).Encode(files[0])
	})
	mux.HandleFunc("GET /files/file-2", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(files[1])
	})
	mux.HandleFunc("GET /files/file-2/export", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/csv", r.URL.Query().Get("mimeType"))
		w.Write([]byte("a,b\n1,2\n"))
	})
	mux.HandleFunc("GET /files/missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"code":404,"message":"File not found"}}`))
	})
	return httptest.NewServer(mux)
}

func TestBuildQuery(t *testing.T) {
	since := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		folderID  string
		since     time.Time
		mimeTypes []string
		want      string
	}{
		{
			name: "base query excludes trashed",
			want: "trashed = false",
		},
		{
			name:     "folder filter",
			folderID: "folder-9",
			want:     "trashed = false and 'folder-9' in parents",
		},
		{
			name:  "since filter",
			since: since,
			want:  "trashed = false and modifiedTime > '2026-01-15T12:00:00Z'",
		},
		{
			name:      "mime filter",
			mimeTypes: []string{"text/plain", "application/pdf"},
			want:      "trashed = false and (mimeType = 'text/plain' or mimeType = 'application/pdf')",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, buildQuery(tt.folderID, tt.since, tt.mimeTypes))
		})
	}
}

func TestMapFile(t *testing.T) {
	f := &drive.File{
		Id:           "f1",
		Name:         "report.pdf",
		MimeType:     "application/pdf",
		Size:         1024,
		ModifiedTime: "2026-02-01T08:30:00Z",
		CreatedTime:  "2026-01-01T08:30:00Z",
		WebViewLink:  "https://drive.google.com/file/d/f1",
		Parents:      []string{"parent-1"},
	}

	cf := mapFile(f)
	assert.Equal(t, "f1", cf.ID)
	assert.Equal(t, domain.CategoryPDF, cf.Category)
	assert.Equal(t, int64(1024), cf.Size)
	assert.Equal(t, "parent-1", cf.ParentID)
	assert.Equal(t, 2026, cf.ModifiedAt.Year())
}

func TestPublishPayload(t *testing.T) {
	t.Run("raw content passes through", func(t *testing.T) {
		got, err := publishPayload(domain.PublishRequest{Content: []byte("plain")})
		require.NoError(t, err)
		assert.Equal(t, []byte("plain"), got)
	})

	t.Run("base64 content is decoded", func(t *testing.T) {
		encoded := base64.StdEncoding.EncodeToString([]byte{0x25, 0x50, 0x44, 0x46})
		got, err := publishPayload(domain.PublishRequest{Content: []byte(encoded), Base64: true})
		require.NoError(t, err)
		assert.Equal(t, []byte{0x25, 0x50, 0x44, 0x46}, got)
	})

	t.Run("invalid base64 rejected", func(t *testing.T) {
		_, err := publishPayload(domain.PublishRequest{Content: []byte("!!!"), Base64: true})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestWrapError(t *testing.T) {
	gerr := &googleapi.Error{Code: http.StatusNotFound, Message: "File not found"}
	err := wrapError(gerr, "get file")

	assert.True(t, domain.IsNotFound(err))
	assert.False(t, domain.IsRetryable(err))

	gerr = &googleapi.Error{Code: http.StatusServiceUnavailable, Message: "backend error"}
	assert.True(t, domain.IsRetryable(wrapError(gerr, "list files")))
}

func TestAuthenticate_NoCodeReturnsAuthURL(t *testing.T) {
	c, _, _ := newTestConnector(t, "")

	res, err := c.Authenticate(context.Background(), domain.ConnectorCredentials{})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.AuthURL, "client_id=client-id")
	assert.Contains(t, res.AuthURL, "access_type=offline")
}

func TestAuthenticate_UnconfiguredApp(t *testing.T) {
	creds := memory.NewCredentialsStore()
	c, err := New(driven.ConnectorOptions{
		ConnectorID: "drive-test",
		Credentials: creds,
	})
	require.NoError(t, err)

	res, err := c.Authenticate(context.Background(), domain.ConnectorCredentials{})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "not configured")
}

func TestListFiles(t *testing.T) {
	srv := driveFixture(t)
	defer srv.Close()
	c, _, _ := newTestConnector(t, srv.URL)

	files, err := c.ListFiles(context.Background(), domain.ListOptions{})
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, "file-1", files[0].ID)
	assert.Equal(t, domain.CategorySpreadsheet, files[1].Category)
	assert.True(t, files[2].IsFolder())
}

func TestListFiles_LimitCapsResults(t *testing.T) {
	srv := driveFixture(t)
	defer srv.Close()
	c, _, _ := newTestConnector(t, srv.URL)

	files, err := c.ListFiles(context.Background(), domain.ListOptions{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestDownloadFile(t *testing.T) {
	srv := driveFixture(t)
	defer srv.Close()
	c, _, _ := newTestConnector(t, srv.URL)

	t.Run("regular file downloads as-is", func(t *testing.T) {
		content, err := c.DownloadFile(context.Background(), "file-1")
		require.NoError(t, err)
		assert.Equal(t, "notes.txt", content.Title)
		assert.Equal(t, []byte("hello world"), content.Content)
		assert.Equal(t, "text/plain", content.MIMEType)
	})

	t.Run("spreadsheet exports to csv", func(t *testing.T) {
		content, err := c.DownloadFile(context.Background(), "file-2")
		require.NoError(t, err)
		assert.Equal(t, "text/csv", content.MIMEType)
		assert.True(t, strings.HasPrefix(string(content.Content), "a,b"))
	})

	t.Run("missing file is not found", func(t *testing.T) {
		_, err := c.DownloadFile(context.Background(), "missing")
		assert.True(t, domain.IsNotFound(err))
	})
}

func TestSync_IdempotentForUnchangedContent(t *testing.T) {
	srv := driveFixture(t)
	defer srv.Close()
	c, _, docs := newTestConnector(t, srv.URL)
	ctx := context.Background()

	first, err := c.Sync(ctx, domain.SyncOptions{})
	require.NoError(t, err)
	assert.True(t, first.Success)
	assert.Equal(t, 2, first.FilesProcessed, "folder must be skipped")
	assert.Equal(t, 2, first.FilesUpdated)

	second, err := c.Sync(ctx, domain.SyncOptions{})
	require.NoError(t, err)
	assert.True(t, second.Success)
	assert.Equal(t, 2, second.FilesProcessed)
	assert.Equal(t, 0, second.FilesUpdated, "unchanged content must dedup")

	doc, err := docs.Get(ctx, "drive-test", "file-1")
	require.NoError(t, err)
	assert.Equal(t, 2, doc.SyncCount)
}

func TestGetDocumentInfo_NotFoundMeansExistsFalse(t *testing.T) {
	srv := driveFixture(t)
	defer srv.Close()
	c, _, _ := newTestConnector(t, srv.URL)

	info, err := c.GetDocumentInfo(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, info.Exists)
	assert.Equal(t, "missing", info.ExternalID)
}

func TestSupportsPublish(t *testing.T) {
	c, credStore, _ := newTestConnector(t, "")
	assert.True(t, c.SupportsPublish())

	// Drop the write scope.
	stored, err := credStore.Get(context.Background(), "drive-test")
	require.NoError(t, err)
	stored.Scopes = []string{ScopeDriveReadonly}
	require.NoError(t, credStore.Save(context.Background(), "drive-test", *stored, stored.Version))

	assert.False(t, c.SupportsPublish())

	_, err = c.PublishDocument(context.Background(), domain.PublishRequest{Name: "x", Content: []byte("y")})
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
}

func TestTestConnection_Repeatable(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /about", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"user": map[string]any{"emailAddress": "ops@example.com", "displayName": "Ops"},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	c, _, _ := newTestConnector(t, srv.URL)

	first, err := c.TestConnection(context.Background())
	require.NoError(t, err)
	second, err := c.TestConnection(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first.Success, second.Success)
	assert.True(t, first.Success)
	assert.Equal(t, "ops@example.com", first.Metadata["email"])
}
