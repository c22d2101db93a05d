package driven

import "context"

// BlobStore receives raw uploaded payloads from the upload adapter. The
// hosted blob service behind it is an external collaborator.
type BlobStore interface {
	// Put stores data under key and returns the blob's URL.
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)

	// Delete removes the blob under key.
	Delete(ctx context.Context, key string) error
}
