package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/wealth-tracker/internal/domain"
	"github.com/dvloznov/wealth-tracker/internal/stats"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
)

// ExportSnapshot appends the snapshot and the holdings it valued, and
// returns the generated snapshot id.
func (c *Client) ExportSnapshot(ctx context.Context, asOf *time.Time, s stats.Snapshot, holdings []domain.AssetHolding) (string, error) {
	id := uuid.NewString()
	row := NewSnapshotRow(id, asOf, time.Now(), s)

	ds := c.bq.DatasetInProject(c.project, c.dataset)
	if err := ds.Table(snapshotsTable).Inserter().Put(ctx, row); err != nil {
		return "", fmt.Errorf("ExportSnapshot: inserting snapshot: %w", err)
	}

	if hrows := NewHoldingRows(id, row.SnapshotDate, holdings); len(hrows) > 0 {
		if err := ds.Table(holdingsTable).Inserter().Put(ctx, hrows); err != nil {
			return id, fmt.Errorf("ExportSnapshot: inserting holdings: %w", err)
		}
	}

	c.log.Info().Str("snapshot_id", id).Int("holdings", len(holdings)).Msg("exported snapshot")
	return id, nil
}

// listSnapshotsSQL selects the latest snapshots between two days, inclusive.
func listSnapshotsSQL(table string) string {
	return `
		SELECT
			snapshot_id,
			snapshot_date,
			taken_ts,
			all_time,
			total_invested,
			total_net_worth,
			total_expenses,
			allocated,
			invested_cost,
			uninvested_cash,
			asset_value,
			forgiven_debt,
			allocations
		FROM ` + table + `
		WHERE snapshot_date >= @start_date
		  AND snapshot_date <= @end_date
		ORDER BY snapshot_date DESC, taken_ts DESC
		LIMIT @limit
	`
}

// ListSnapshots returns up to limit snapshots dated between from and to,
// newest first.
func (c *Client) ListSnapshots(ctx context.Context, from, to civil.Date, limit int) ([]*SnapshotRow, error) {
	if limit <= 0 {
		limit = 30
	}

	q := c.bq.Query(listSnapshotsSQL(c.table(snapshotsTable)))
	q.Parameters = snapshotParams(from, to, limit)

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListSnapshots: query read: %w", err)
	}

	var rows []*SnapshotRow
	for {
		var r SnapshotRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListSnapshots: iter next: %w", err)
		}
		rows = append(rows, &r)
	}
	return rows, nil
}

func snapshotParams(from, to civil.Date, limit int) []bigquery.QueryParameter {
	return []bigquery.QueryParameter{
		{Name: "start_date", Value: from},
		{Name: "end_date", Value: to},
		{Name: "limit", Value: limit},
	}
}
