package zoom

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/corpushq/connectors/internal/core/domain"
	"github.com/corpushq/connectors/internal/core/services"
)

// DefaultBaseURL is the Zoom REST API root.
const DefaultBaseURL = "https://api.zoom.us/v2"

const listPageSize = 30

// apiClient is a thin Zoom REST client. Every request pulls a token from
// the token manager and respects the shared rate limiter.
type apiClient struct {
	baseURL string
	httpc   *http.Client
	token   func(ctx context.Context) (string, error)
	limiter *services.RateLimiter
}

func newAPIClient(token func(ctx context.Context) (string, error), limiter *services.RateLimiter) *apiClient {
	return &apiClient{
		baseURL: DefaultBaseURL,
		httpc:   &http.Client{Timeout: 30 * time.Second},
		token:   token,
		limiter: limiter,
	}
}

type user struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	AccountID string `json:"account_id"`
}

type recordingFile struct {
	ID             string `json:"id"`
	MeetingID      string `json:"meeting_id"`
	RecordingStart string `json:"recording_start"`
	FileType       string `json:"file_type"`
	FileExtension  string `json:"file_extension"`
	FileSize       int64  `json:"file_size"`
	DownloadURL    string `json:"download_url"`
	RecordingType  string `json:"recording_type"`
	Status         string `json:"status"`
}

type meetingRecording struct {
	UUID           string          `json:"uuid"`
	ID             int64           `json:"id"`
	Topic          string          `json:"topic"`
	StartTime      time.Time       `json:"start_time"`
	Duration       int             `json:"duration"`
	RecordingFiles []recordingFile `json:"recording_files"`
}

type recordingList struct {
	NextPageToken string             `json:"next_page_token"`
	Meetings      []meetingRecording `json:"meetings"`
}

func (c *apiClient) me(ctx context.Context) (*user, error) {
	var u user
	if err := c.get(ctx, "/users/me", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// listRecordings walks the cloud recording listing for the date range,
// following next_page_token cursors. Zoom bounds a single range to one
// month; callers chunk wider windows.
func (c *apiClient) listRecordings(ctx context.Context, from, to time.Time) ([]meetingRecording, error) {
	var meetings []meetingRecording
	pageToken := ""
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		q := url.Values{
			"from":      {from.Format("2006-01-02")},
			"to":        {to.Format("2006-01-02")},
			"page_size": {strconv.Itoa(listPageSize)},
		}
		if pageToken != "" {
			q.Set("next_page_token", pageToken)
		}
		var page recordingList
		if err := c.get(ctx, "/users/me/recordings", q, &page); err != nil {
			return nil, err
		}
		meetings = append(meetings, page.Meetings...)
		if page.NextPageToken == "" {
			return meetings, nil
		}
		pageToken = page.NextPageToken
	}
}

// meetingRecordings fetches the recording set of one meeting. The UUID is
// double URL-encoded per Zoom's API contract for UUIDs containing slashes.
func (c *apiClient) meetingRecordings(ctx context.Context, meetingUUID string) (*meetingRecording, error) {
	encoded := url.PathEscape(url.PathEscape(meetingUUID))
	var m meetingRecording
	if err := c.get(ctx, "/meetings/"+encoded+"/recordings", nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// downloadFile streams a recording file body, capped at limit bytes.
func (c *apiClient) downloadFile(ctx context.Context, downloadURL string, limit int64) ([]byte, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download recording: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, errorFrom(resp)
	}
	if resp.ContentLength > limit {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", domain.ErrFileTooLarge, resp.ContentLength, limit)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read recording body: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: body exceeds %d bytes", domain.ErrFileTooLarge, limit)
	}
	return data, nil
}

func (c *apiClient) get(ctx context.Context, path string, query url.Values, out any) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("zoom request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
		c.limiter.RecordRateLimitError(retryAfter)
	}
	if resp.StatusCode >= 400 {
		return errorFrom(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func errorFrom(resp *http.Response) error {
	var body struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)
	message := body.Message
	if message == "" {
		message = resp.Status
	}
	apiErr := &domain.APIError{
		StatusCode: resp.StatusCode,
		Message:    message,
	}
	if resp.Request != nil && resp.Request.URL != nil {
		apiErr.URL = resp.Request.URL.String()
	}
	return apiErr
}
