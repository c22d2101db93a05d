// Package msgraph is a minimal Microsoft Graph REST client shared by the
// SharePoint/OneDrive and Teams adapters. It covers the drive, calendar and
// online-meeting surfaces those adapters need, with @odata.nextLink cursor
// pagination and resumable upload sessions.
package msgraph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/corpushq/connectors/internal/core/domain"
	"github.com/corpushq/connectors/internal/core/services"
)

// DefaultBaseURL is the Graph v1.0 endpoint.
const DefaultBaseURL = "https://graph.microsoft.com/v1.0"

// DefaultTimeout is the HTTP request timeout.
const DefaultTimeout = 30 * time.Second

// TokenFunc supplies a valid bearer token for each request.
type TokenFunc func(ctx context.Context) (string, error)

// Client is a thin Graph REST wrapper.
type Client struct {
	baseURL string
	httpc   *http.Client
	token   TokenFunc
	limiter *services.RateLimiter
}

// NewClient creates a Graph client that fetches tokens through token.
func NewClient(token TokenFunc) *Client {
	return &Client{
		baseURL: DefaultBaseURL,
		httpc:   &http.Client{Timeout: DefaultTimeout},
		token:   token,
		limiter: services.NewRateLimiter(services.GraphRateLimit),
	}
}

// SetBaseURL points the client at a different endpoint. Used in tests.
func (c *Client) SetBaseURL(u string) {
	c.baseURL = strings.TrimRight(u, "/")
}

// resolve turns a relative Graph path into a full URL. Absolute URLs
// (nextLink cursors, upload session URLs) pass through unchanged.
func (c *Client) resolve(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.baseURL + "/" + strings.TrimLeft(path, "/")
}

// Get performs a GET and decodes the JSON response into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, "", out)
}

// Post performs a POST with a JSON body and decodes the response into out.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(payload), "application/json", out)
}

// Patch performs a PATCH with a JSON body and decodes the response into out.
func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	return c.do(ctx, http.MethodPatch, path, bytes.NewReader(payload), "application/json", out)
}

// Put performs a PUT with a raw body and decodes the response into out.
func (c *Client) Put(ctx context.Context, path string, body []byte, contentType string, out any) error {
	return c.do(ctx, http.MethodPut, path, bytes.NewReader(body), contentType, out)
}

// Delete performs a DELETE.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, "", nil)
}

// Download fetches raw content bytes, capped at limit. Graph answers
// content requests with a redirect to a pre-authenticated URL, which the
// HTTP client follows.
func (c *Client) Download(ctx context.Context, path string, limit int64) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.resolve(path), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if err := c.authorize(ctx, req); err != nil {
		return nil, err
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, c.errorFrom(resp)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read content: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: exceeds %d bytes", domain.ErrFileTooLarge, limit)
	}
	return data, nil
}

// listPage is the shape of every Graph collection response.
type listPage struct {
	Value    []json.RawMessage `json:"value"`
	NextLink string            `json:"@odata.nextLink"`
}

// GetPages walks a Graph collection, following @odata.nextLink cursors
// until exhausted or fn returns false.
func (c *Client) GetPages(ctx context.Context, path string, fn func(items []json.RawMessage) (bool, error)) error {
	next := path
	for next != "" {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var page listPage
		if err := c.Get(ctx, next, &page); err != nil {
			return err
		}
		more, err := fn(page.Value)
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
		next = page.NextLink
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	if body == nil {
		body = http.NoBody
	}
	req, err := http.NewRequestWithContext(ctx, method, c.resolve(path), body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if err := c.authorize(ctx, req); err != nil {
		return err
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
		c.limiter.RecordRateLimitError(retryAfter)
	}
	if resp.StatusCode >= 400 {
		return c.errorFrom(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) authorize(ctx context.Context, req *http.Request) error {
	token, err := c.token(ctx)
	if err != nil {
		return fmt.Errorf("get token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

// errorFrom converts a Graph error response into domain.APIError.
func (c *Client) errorFrom(resp *http.Response) error {
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	_ = json.Unmarshal(raw, &body)

	msg := body.Error.Message
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &domain.APIError{
		StatusCode: resp.StatusCode,
		Message:    msg,
		URL:        resp.Request.URL.String(),
	}
}
