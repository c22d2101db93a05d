package zoom

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corpushq/connectors/internal/core/domain"
	"github.com/corpushq/connectors/internal/core/ports/driven"
	"github.com/corpushq/connectors/internal/storage/memory"
)

func newTestConnector(t *testing.T, serverURL string) (*Connector, *memory.DocumentStore) {
	t.Helper()

	creds := memory.NewCredentialsStore()
	docs := memory.NewDocumentStore()

	c, err := New(driven.ConnectorOptions{
		ConnectorID: "zoom-test",
		App: domain.OAuthApp{
			ClientID:     "client-id",
			ClientSecret: "client-secret",
		},
		Settings:    map[string]string{"webhook_secret": "wh-secret"},
		Credentials: creds,
		Documents:   docs,
	})
	require.NoError(t, err)

	if serverURL != "" {
		c.client.baseURL = serverURL
	}

	require.NoError(t, creds.Save(context.Background(), "zoom-test", domain.ConnectorCredentials{
		AccessToken: "token",
		Expiry:      time.Now().Add(time.Hour),
	}, 0))

	return c, docs
}

// zoomFixture serves one meeting with a completed transcript, a completed
// video and one still-processing file.
func zoomFixture(t *testing.T) *httptest.Server {
	t.Helper()

	var srvURL string
	meeting := func() map[string]any {
		return map[string]any{
			"uuid":       "uuid-1",
			"id":         123,
			"topic":      "Planning",
			"start_time": "2026-05-01T10:00:00Z",
			"recording_files": []map[string]any{
				{
					"id": "rec-vtt", "file_type": "TRANSCRIPT", "file_size": 64,
					"status": "completed", "download_url": srvURL + "/download/rec-vtt",
				},
				{
					"id": "rec-mp4", "file_type": "MP4", "file_size": 10,
					"status": "completed", "download_url": srvURL + "/download/rec-mp4",
				},
				{
					"id": "rec-wip", "file_type": "MP4", "status": "processing",
					"download_url": srvURL + "/download/rec-wip",
				},
			},
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /users/me", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]any{
			"id": "u1", "email": "pat@example.com",
			"first_name": "Pat", "last_name": "Doe", "account_id": "acct-1",
		})
	})
	mux.HandleFunc("GET /users/me/recordings", func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.URL.Query().Get("from"))
		assert.NotEmpty(t, r.URL.Query().Get("to"))
		json.NewEncoder(w).Encode(map[string]any{"meetings": []any{meeting()}})
	})
	mux.HandleFunc("GET /meetings/uuid-1/recordings", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(meeting())
	})
	mux.HandleFunc("GET /download/rec-vtt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "WEBVTT\n\n00:00.000 --> 00:05.000\nwelcome")
	})
	mux.HandleFunc("GET /download/rec-mp4", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte{0x00, 0x01, 0x02, 0x03})
	})

	srv := httptest.NewServer(mux)
	srvURL = srv.URL
	return srv
}

func TestListFiles_SkipsUnfinishedRecordings(t *testing.T) {
	srv := zoomFixture(t)
	defer srv.Close()
	c, _ := newTestConnector(t, srv.URL)

	files, err := c.ListFiles(context.Background(), domain.ListOptions{})
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "uuid-1/rec-vtt", files[0].ID)
	assert.Equal(t, "text/vtt", files[0].MIMEType)
	assert.Equal(t, "uuid-1/rec-mp4", files[1].ID)
	assert.Equal(t, "video/mp4", files[1].MIMEType)
}

func TestDownloadFile(t *testing.T) {
	srv := zoomFixture(t)
	defer srv.Close()
	c, _ := newTestConnector(t, srv.URL)
	ctx := context.Background()

	t.Run("transcript stored raw", func(t *testing.T) {
		content, err := c.DownloadFile(ctx, "uuid-1/rec-vtt")
		require.NoError(t, err)
		assert.Contains(t, string(content.Content), "welcome")
		assert.Equal(t, "text/vtt", content.MIMEType)
	})

	t.Run("media stored base64", func(t *testing.T) {
		content, err := c.DownloadFile(ctx, "uuid-1/rec-mp4")
		require.NoError(t, err)
		assert.Equal(t, base64.StdEncoding.EncodeToString([]byte{0x00, 0x01, 0x02, 0x03}), string(content.Content))
		assert.Equal(t, "base64", content.Metadata["encoding"])
	})

	t.Run("unknown file id", func(t *testing.T) {
		_, err := c.DownloadFile(ctx, "uuid-1/rec-nope")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestSplitItemID(t *testing.T) {
	meetingUUID, fileID, err := splitItemID("abc/def/rec-1")
	require.NoError(t, err)
	// Zoom meeting UUIDs may themselves contain slashes.
	assert.Equal(t, "abc/def", meetingUUID)
	assert.Equal(t, "rec-1", fileID)

	_, _, err = splitItemID("no-separator")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSync_ImportsAndDedups(t *testing.T) {
	srv := zoomFixture(t)
	defer srv.Close()
	c, docs := newTestConnector(t, srv.URL)
	ctx := context.Background()

	first, err := c.Sync(ctx, domain.SyncOptions{})
	require.NoError(t, err)
	assert.True(t, first.Success)
	assert.Equal(t, 2, first.FilesProcessed)
	assert.Equal(t, 2, first.FilesUpdated)

	second, err := c.Sync(ctx, domain.SyncOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, second.FilesUpdated)

	doc, err := docs.Get(ctx, "zoom-test", "uuid-1/rec-vtt")
	require.NoError(t, err)
	assert.Equal(t, 2, doc.SyncCount)
	assert.Equal(t, "Planning", doc.SourceMetadata["meeting_topic"])
}

func TestValidateSignature(t *testing.T) {
	c, _ := newTestConnector(t, "")
	body := []byte(`{"event":"recording.completed"}`)
	ts := "1714550400"

	mac := hmac.New(sha256.New, []byte("wh-secret"))
	fmt.Fprintf(mac, "v0:%s:%s", ts, body)
	good := "v0=" + hex.EncodeToString(mac.Sum(nil))

	assert.True(t, c.ValidateSignature(good, ts, body))
	assert.False(t, c.ValidateSignature("v0=deadbeef", ts, body))
	assert.False(t, c.ValidateSignature(good, "1714550401", body))

	c.webhookSecret = ""
	assert.False(t, c.ValidateSignature(good, ts, body))
}

func TestURLValidationResponse(t *testing.T) {
	c, _ := newTestConnector(t, "")

	resp := c.URLValidationResponse("plain-abc")
	assert.Equal(t, "plain-abc", resp.PlainToken)

	mac := hmac.New(sha256.New, []byte("wh-secret"))
	mac.Write([]byte("plain-abc"))
	assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), resp.EncryptedToken)
}

func TestHandleWebhook_RecordingCompleted(t *testing.T) {
	srv := zoomFixture(t)
	defer srv.Close()
	c, docs := newTestConnector(t, srv.URL)
	ctx := context.Background()

	payload := `{"event":"recording.completed","payload":{"account_id":"acct-1",
		"object":{"uuid":"uuid-1","topic":"Planning","recording_files":[
			{"id":"rec-vtt","file_type":"TRANSCRIPT","status":"completed","download_url":"` + srv.URL + `/download/rec-vtt"}
		]}}}`

	err := c.HandleWebhook(ctx, domain.WebhookEvent{
		ID: "delivery-1", Type: EventRecordingCompleted, Source: "zoom",
		Payload: json.RawMessage(payload),
	})
	require.NoError(t, err)

	_, err = docs.Get(ctx, "zoom-test", "uuid-1/rec-vtt")
	assert.NoError(t, err, "webhook must import through the same path as sync")
}

func TestHandleWebhook_IgnoresUnknownEvents(t *testing.T) {
	c, docs := newTestConnector(t, "")

	err := c.HandleWebhook(context.Background(), domain.WebhookEvent{
		ID: "delivery-2", Type: "meeting.started", Source: "zoom",
		Payload: json.RawMessage(`{"event":"meeting.started","payload":{}}`),
	})
	require.NoError(t, err)

	all, err := docs.ListByConnector(context.Background(), "zoom-test")
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestHandleWebhook_URLValidationIsNoOp(t *testing.T) {
	c, _ := newTestConnector(t, "")

	err := c.HandleWebhook(context.Background(), domain.WebhookEvent{
		Type: EventURLValidation, Source: "zoom",
		Payload: json.RawMessage(`{"event":"endpoint.url_validation","payload":{"plainToken":"abc"}}`),
	})
	assert.NoError(t, err)
}
