package gcsuploader

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	"github.com/dvloznov/wealth-tracker/internal/gcs"
)

// Re-export interface from shared package
type BlobStore = gcs.BlobStore

var _ BlobStore = (*Client)(nil)

// Client is the Google Cloud Storage implementation of BlobStore. It holds
// one storage client for all operations.
type Client struct {
	storage *storage.Client
}

// NewClient creates a Client using Application Default Credentials.
func NewClient(ctx context.Context) (*Client, error) {
	sc, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewClient: creating storage client: %w", err)
	}
	return &Client{storage: sc}, nil
}

// Close closes the storage client.
func (c *Client) Close() error {
	if c.storage != nil {
		return c.storage.Close()
	}
	return nil
}
