// Package backup writes full JSON exports of the dataset to cloud storage
// and reads them back.
package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dvloznov/wealth-tracker/internal/gcs"
	"github.com/dvloznov/wealth-tracker/internal/gcsuploader"
	"github.com/dvloznov/wealth-tracker/internal/store"
	"github.com/rs/zerolog"
)

// Exporter produces a full dump of the stored records.
type Exporter interface {
	Export(ctx context.Context) (*store.Dump, error)
}

// Service uploads backups to one bucket.
type Service struct {
	src    Exporter
	blobs  gcs.BlobStore
	bucket string
	prefix string
	log    zerolog.Logger
	now    func() time.Time
}

// NewService creates a backup Service writing under prefix in bucket.
func NewService(src Exporter, blobs gcs.BlobStore, bucket, prefix string, log zerolog.Logger) *Service {
	return &Service{
		src:    src,
		blobs:  blobs,
		bucket: bucket,
		prefix: prefix,
		log:    log.With().Str("component", "backup").Logger(),
		now:    time.Now,
	}
}

// Summary counts the records of a dump.
type Summary struct {
	URI               string    `json:"uri"`
	ExportedAt        time.Time `json:"exportedAt"`
	Transactions      int       `json:"transactions"`
	Expenses          int       `json:"expenses"`
	SavingsGoals      int       `json:"savingsGoals"`
	Assets            int       `json:"assets"`
	Holdings          int       `json:"holdings"`
	AssetTransactions int       `json:"assetTransactions"`
}

// Summarize counts the records of d.
func Summarize(uri string, d *store.Dump) Summary {
	return Summary{
		URI:               uri,
		ExportedAt:        d.ExportedAt,
		Transactions:      len(d.Transactions),
		Expenses:          len(d.Expenses),
		SavingsGoals:      len(d.SavingsGoals),
		Assets:            len(d.Assets),
		Holdings:          len(d.Holdings),
		AssetTransactions: len(d.AssetTransactions),
	}
}

// Run exports every record and uploads it as one JSON object.
func (s *Service) Run(ctx context.Context) (Summary, error) {
	if s.bucket == "" {
		return Summary{}, fmt.Errorf("Run: no bucket configured")
	}

	dump, err := s.src.Export(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("Run: exporting: %w", err)
	}

	data, err := json.MarshalIndent(dump, "", "  ")
	if err != nil {
		return Summary{}, fmt.Errorf("Run: encoding: %w", err)
	}

	object := gcsuploader.BackupObjectName(s.prefix, s.now())
	if err := s.blobs.Upload(ctx, s.bucket, object, data, "application/json"); err != nil {
		return Summary{}, fmt.Errorf("Run: %w", err)
	}

	sum := Summarize(gcsuploader.URI(s.bucket, object), dump)
	s.log.Info().Str("uri", sum.URI).Int("bytes", len(data)).Msg("uploaded backup")
	return sum, nil
}

// Fetch downloads and decodes the backup at uri.
func (s *Service) Fetch(ctx context.Context, uri string) (*store.Dump, error) {
	data, err := s.blobs.Download(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("Fetch: %w", err)
	}

	var dump store.Dump
	if err := json.Unmarshal(data, &dump); err != nil {
		return nil, fmt.Errorf("Fetch: decoding %s: %w", uri, err)
	}
	return &dump, nil
}
