package msgraph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// SimpleUploadLimit is the largest payload Graph accepts in a single PUT.
// Anything larger goes through an upload session.
const SimpleUploadLimit = 4 * 1024 * 1024

// UploadChunkSize is the resumable upload chunk width. Graph requires
// multiples of 320 KiB; 10 MiB total per chunk keeps request counts low.
const UploadChunkSize = 32 * 320 * 1024

// DriveItem is a file or folder in a SharePoint or OneDrive drive.
type DriveItem struct {
	ID                   string          `json:"id"`
	Name                 string          `json:"name"`
	Size                 int64           `json:"size"`
	WebURL               string          `json:"webUrl"`
	CreatedDateTime      time.Time       `json:"createdDateTime"`
	LastModifiedDateTime time.Time       `json:"lastModifiedDateTime"`
	File                 *FileFacet      `json:"file,omitempty"`
	Folder               *FolderFacet    `json:"folder,omitempty"`
	Deleted              *DeletedFacet   `json:"deleted,omitempty"`
	ParentReference      *ItemReference  `json:"parentReference,omitempty"`
}

// FileFacet marks a drive item as a file.
type FileFacet struct {
	MimeType string `json:"mimeType"`
}

// FolderFacet marks a drive item as a folder.
type FolderFacet struct {
	ChildCount int `json:"childCount"`
}

// DeletedFacet marks a drive item as deleted.
type DeletedFacet struct {
	State string `json:"state"`
}

// ItemReference locates an item's parent.
type ItemReference struct {
	DriveID string `json:"driveId,omitempty"`
	ID      string `json:"id,omitempty"`
	Path    string `json:"path,omitempty"`
}

// IsFolder reports whether the item is a folder.
func (i *DriveItem) IsFolder() bool {
	return i.Folder != nil
}

// User is the Graph account identity.
type User struct {
	ID                string `json:"id"`
	DisplayName       string `json:"displayName"`
	Mail              string `json:"mail"`
	UserPrincipalName string `json:"userPrincipalName"`
}

// Me returns the authenticated account.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var user User
	if err := c.Get(ctx, "/me", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// drivePath addresses an item in a drive. driveID empty means the signed-in
// user's default drive.
func drivePath(driveID, suffix string) string {
	if driveID == "" {
		return "/me/drive" + suffix
	}
	return "/drives/" + url.PathEscape(driveID) + suffix
}

func itemPath(driveID, itemID, suffix string) string {
	if itemID == "" || itemID == "root" {
		return drivePath(driveID, "/root"+suffix)
	}
	return drivePath(driveID, "/items/"+url.PathEscape(itemID)+suffix)
}

// GetItem fetches one drive item's metadata.
func (c *Client) GetItem(ctx context.Context, driveID, itemID string) (*DriveItem, error) {
	var item DriveItem
	if err := c.Get(ctx, itemPath(driveID, itemID, ""), &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// ListChildren pages through an item's children via nextLink cursors,
// invoking fn per page. fn returning false stops the walk early.
func (c *Client) ListChildren(ctx context.Context, driveID, itemID string, fn func(items []DriveItem) (bool, error)) error {
	path := itemPath(driveID, itemID, "/children")
	return c.GetPages(ctx, path, func(raw []json.RawMessage) (bool, error) {
		items := make([]DriveItem, 0, len(raw))
		for _, r := range raw {
			var item DriveItem
			if err := json.Unmarshal(r, &item); err != nil {
				return false, fmt.Errorf("decode drive item: %w", err)
			}
			items = append(items, item)
		}
		return fn(items)
	})
}

// DownloadItem fetches an item's content, capped at limit bytes.
func (c *Client) DownloadItem(ctx context.Context, driveID, itemID string, limit int64) ([]byte, error) {
	return c.Download(ctx, itemPath(driveID, itemID, "/content"), limit)
}

// CreateFolder creates a folder under the given parent.
func (c *Client) CreateFolder(ctx context.Context, driveID, parentID, name string) (*DriveItem, error) {
	body := map[string]any{
		"name":                              name,
		"folder":                            map[string]any{},
		"@microsoft.graph.conflictBehavior": "rename",
	}
	var item DriveItem
	if err := c.Post(ctx, itemPath(driveID, parentID, "/children"), body, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// UpdateItem patches an item's metadata fields.
func (c *Client) UpdateItem(ctx context.Context, driveID, itemID string, fields map[string]any) (*DriveItem, error) {
	var item DriveItem
	if err := c.Patch(ctx, itemPath(driveID, itemID, ""), fields, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// DeleteItem moves an item to the drive's recycle bin.
func (c *Client) DeleteItem(ctx context.Context, driveID, itemID string) error {
	return c.Delete(ctx, itemPath(driveID, itemID, ""))
}

// Upload writes content to name under parentID. Payloads above
// SimpleUploadLimit go through a chunked upload session.
func (c *Client) Upload(ctx context.Context, driveID, parentID, name, contentType string, content []byte) (*DriveItem, error) {
	if len(content) <= SimpleUploadLimit {
		return c.simpleUpload(ctx, driveID, parentID, name, contentType, content)
	}
	session, err := c.CreateNamedUploadSession(ctx, driveID, parentID, name)
	if err != nil {
		return nil, err
	}
	return c.uploadChunks(ctx, session.UploadURL, content)
}

// UploadToItem replaces an existing item's content.
func (c *Client) UploadToItem(ctx context.Context, driveID, itemID, contentType string, content []byte) (*DriveItem, error) {
	if len(content) <= SimpleUploadLimit {
		var item DriveItem
		err := c.Put(ctx, itemPath(driveID, itemID, "/content"), content, contentType, &item)
		if err != nil {
			return nil, err
		}
		return &item, nil
	}

	session, err := c.createUploadSession(ctx, itemPath(driveID, itemID, "/createUploadSession"))
	if err != nil {
		return nil, err
	}
	return c.uploadChunks(ctx, session.UploadURL, content)
}

func (c *Client) simpleUpload(ctx context.Context, driveID, parentID, name, contentType string, content []byte) (*DriveItem, error) {
	// Addressing a new file by path under the parent.
	path := itemPath(driveID, parentID, ":/"+url.PathEscape(name)+":/content")
	var item DriveItem
	if err := c.Put(ctx, path, content, contentType, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// sessionUploadPath addresses a new file by path for session creation.
func sessionUploadPath(driveID, parentID, name string) string {
	return itemPath(driveID, parentID, ":/"+url.PathEscape(name)+":/createUploadSession")
}

// CreateNamedUploadSession opens an upload session for a new file named
// name under parentID.
func (c *Client) CreateNamedUploadSession(ctx context.Context, driveID, parentID, name string) (*UploadSession, error) {
	return c.createUploadSession(ctx, sessionUploadPath(driveID, parentID, name))
}

// UploadSession is a resumable upload handle.
type UploadSession struct {
	UploadURL          string `json:"uploadUrl"`
	ExpirationDateTime string `json:"expirationDateTime"`
}

func (c *Client) createUploadSession(ctx context.Context, path string) (*UploadSession, error) {
	var session UploadSession
	body := map[string]any{
		"item": map[string]any{"@microsoft.graph.conflictBehavior": "replace"},
	}
	if err := c.Post(ctx, path, body, &session); err != nil {
		return nil, err
	}
	if session.UploadURL == "" {
		return nil, fmt.Errorf("upload session missing uploadUrl")
	}
	return &session, nil
}

// uploadChunks streams content to an upload session in Content-Range
// chunks. The final chunk's response carries the created item.
func (c *Client) uploadChunks(ctx context.Context, uploadURL string, content []byte) (*DriveItem, error) {
	total := int64(len(content))
	var item DriveItem

	for offset := int64(0); offset < total; offset += UploadChunkSize {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		end := offset + UploadChunkSize
		if end > total {
			end = total
		}
		chunk := content[offset:end]

		if err := c.putChunk(ctx, uploadURL, chunk, offset, end-1, total, &item); err != nil {
			return nil, fmt.Errorf("upload chunk at %d: %w", offset, err)
		}
	}

	if item.ID == "" {
		return nil, fmt.Errorf("upload session completed without item")
	}
	return &item, nil
}

// newChunkRequest builds one Content-Range PUT against the session URL.
// Session URLs are pre-authenticated; no bearer token is attached.
func newChunkRequest(ctx context.Context, uploadURL string, chunk []byte, first, last, total int64) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(chunk))
	if err != nil {
		return nil, fmt.Errorf("create chunk request: %w", err)
	}
	req.ContentLength = int64(len(chunk))
	req.Header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", first, last, total))
	return req, nil
}

func (c *Client) putChunk(ctx context.Context, uploadURL string, chunk []byte, first, last, total int64, out *DriveItem) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := newChunkRequest(ctx, uploadURL, chunk, first, last, total)
	if err != nil {
		return err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.errorFrom(resp)
	}
	// Intermediate chunks answer 202 with the next expected ranges; only
	// the final chunk carries the item.
	if resp.StatusCode == 200 || resp.StatusCode == 201 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode uploaded item: %w", err)
		}
	}
	return nil
}
