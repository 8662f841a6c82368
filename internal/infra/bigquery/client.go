// Package bigquery exports stats snapshots and holdings to BigQuery for
// long term analysis, and applies the dataset's schema migrations.
package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/rs/zerolog"
)

const (
	snapshotsTable = "stats_snapshots"
	holdingsTable  = "holdings"
)

// Client holds a shared BigQuery client bound to one dataset.
type Client struct {
	bq      *bigquery.Client
	project string
	dataset string
	log     zerolog.Logger
}

// NewClient creates a Client for the dataset in project.
func NewClient(ctx context.Context, project, dataset string, log zerolog.Logger) (*Client, error) {
	if project == "" {
		return nil, fmt.Errorf("NewClient: project is required")
	}
	if dataset == "" {
		return nil, fmt.Errorf("NewClient: dataset is required")
	}
	bq, err := bigquery.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("NewClient: creating client: %w", err)
	}
	return &Client{
		bq:      bq,
		project: project,
		dataset: dataset,
		log:     log.With().Str("component", "bigquery").Str("dataset", dataset).Logger(),
	}, nil
}

// Close closes the BigQuery client connection.
func (c *Client) Close() error {
	if c.bq != nil {
		return c.bq.Close()
	}
	return nil
}

// table returns the fully qualified, backquoted name of a table.
func (c *Client) table(name string) string {
	return tableRef(c.project, c.dataset, name)
}

func tableRef(project, dataset, name string) string {
	return fmt.Sprintf("`%s.%s.%s`", project, dataset, name)
}

// run executes a statement and waits for it to finish.
func (c *Client) run(ctx context.Context, q *bigquery.Query) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}
