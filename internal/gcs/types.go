package gcs

import (
	"context"
)

// BlobStore provides an interface for cloud storage operations.
// This interface enables mocking and testing of storage functionality.
type BlobStore interface {
	// Upload writes data to bucket under the given object name.
	Upload(ctx context.Context, bucket, object string, data []byte, contentType string) error

	// Download returns the bytes of the object at a gs://bucket/object URI.
	Download(ctx context.Context, uri string) ([]byte, error)
}
