package gcsuploader

import (
	"context"
	"fmt"
	"io"
)

// Download returns the bytes of the object at a gs://bucket/object URI.
func (c *Client) Download(ctx context.Context, uri string) ([]byte, error) {
	bucket, object, err := ParseURI(uri)
	if err != nil {
		return nil, fmt.Errorf("Download: %w", err)
	}

	r, err := c.storage.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("Download: opening %s: %w", uri, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("Download: reading %s: %w", uri, err)
	}
	return data, nil
}
