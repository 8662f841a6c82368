package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/wealth-tracker/internal/backup"
	"github.com/dvloznov/wealth-tracker/internal/gcsuploader"
	infraBQ "github.com/dvloznov/wealth-tracker/internal/infra/bigquery"
	"github.com/dvloznov/wealth-tracker/internal/jobs"
	"github.com/dvloznov/wealth-tracker/internal/jobs/inmemory"
	"github.com/dvloznov/wealth-tracker/internal/report"
)

type RepairCmd struct{}

func (c *RepairCmd) Run(g *Globals) error {
	a, err := g.open()
	if err != nil {
		return err
	}
	defer a.Close()

	rep, err := a.repair().Run(a.context())
	if err != nil {
		return err
	}
	return a.emit(rep, func(w io.Writer) error { return report.Repair(w, *rep) })
}

type RefreshCmd struct {
	Type    []string      `help:"Only refresh these asset types (CRYPTO, STOCK, ETF)."`
	Timeout time.Duration `help:"Give up waiting after this long." default:"2m"`
}

func (c *RefreshCmd) Run(g *Globals) error {
	types, err := parseAssetTypes(c.Type)
	if err != nil {
		return err
	}

	a, err := g.open()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(a.context(), c.Timeout)
	defer cancel()

	jobStore := inmemory.NewStore()
	queue := inmemory.NewQueue(inmemory.Options{}, jobStore, a.log)
	ledger := a.ledger()
	if err := queue.Start(ctx, ledger.HandleJob); err != nil {
		return err
	}
	defer queue.Close()

	ids, err := ledger.QueueRefresh(ctx, queue, types)
	if err != nil {
		return err
	}
	if err := queue.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for %d refresh jobs: %w", len(ids), err)
	}

	done := make([]*jobs.RefreshPriceJob, 0, len(ids))
	failed := 0
	for _, id := range ids {
		j, err := jobStore.GetJob(ctx, id)
		if err != nil {
			return err
		}
		if j.Status == jobs.JobStatusFailed {
			failed++
		}
		done = append(done, j)
	}
	return a.emit(done, func(w io.Writer) error {
		for _, j := range done {
			line := fmt.Sprintf("%-12s %s", j.Ticker, j.Status)
			if j.Error != "" {
				line += ": " + j.Error
			}
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
		_, err := fmt.Fprintf(w, "refreshed %d of %d\n", len(done)-failed, len(done))
		return err
	})
}

type ExportBQCmd struct {
	Date    string `help:"Export the snapshot of this day instead of all time."`
	Project string `help:"GCP project (overrides BQ_PROJECT)."`
	Dataset string `help:"BigQuery dataset (overrides BQ_DATASET)."`
}

func (c *ExportBQCmd) Run(g *Globals) error {
	asOf, err := parseDate(c.Date)
	if err != nil {
		return err
	}

	a, err := g.open()
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := a.context()

	bq, err := a.bigquery(ctx, c.Project, c.Dataset)
	if err != nil {
		return err
	}
	defer bq.Close()

	snap, err := a.stats().Snapshot(ctx, asOf)
	if err != nil {
		return err
	}
	hs, err := a.ledger().List(ctx, nil)
	if err != nil {
		return err
	}
	id, err := bq.ExportSnapshot(ctx, asOf, snap, hs)
	if err != nil {
		return err
	}
	return a.emitf(map[string]string{"snapshotId": id}, "exported snapshot %s with %d holdings", id, len(hs))
}

type HistoryCmd struct {
	From    string `help:"First day (defaults to 30 days ago)."`
	To      string `help:"Last day (defaults to today)."`
	Limit   int    `help:"Maximum snapshots to list." default:"30"`
	Project string `help:"GCP project (overrides BQ_PROJECT)."`
	Dataset string `help:"BigQuery dataset (overrides BQ_DATASET)."`
}

func (c *HistoryCmd) Run(g *Globals) error {
	to := civil.DateOf(time.Now().UTC())
	if t, err := parseDate(c.To); err != nil {
		return err
	} else if t != nil {
		to = civil.DateOf(*t)
	}
	from := to.AddDays(-30)
	if t, err := parseDate(c.From); err != nil {
		return err
	} else if t != nil {
		from = civil.DateOf(*t)
	}

	a, err := g.open()
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := a.context()

	bq, err := a.bigquery(ctx, c.Project, c.Dataset)
	if err != nil {
		return err
	}
	defer bq.Close()

	rows, err := bq.ListSnapshots(ctx, from, to, c.Limit)
	if err != nil {
		return err
	}
	return a.emit(rows, func(w io.Writer) error {
		for _, r := range rows {
			s := r.Snapshot()
			if _, err := fmt.Fprintf(w, "%s  invested %s  net worth %s\n",
				r.SnapshotDate, report.Money(s.TotalInvested), report.Money(s.TotalNetWorth)); err != nil {
				return err
			}
		}
		return nil
	})
}

type BackupCmd struct {
	Bucket string `help:"Bucket to write to (overrides GCS_BUCKET)."`
	Prefix string `help:"Object name prefix." default:"backups"`
}

func (c *BackupCmd) Run(g *Globals) error {
	a, err := g.open()
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := a.context()

	bucket := c.Bucket
	if bucket == "" {
		bucket = a.cfg.GCSBucket
	}
	blobs, err := gcsuploader.NewClient(ctx)
	if err != nil {
		return err
	}
	defer blobs.Close()

	sum, err := backup.NewService(a.db, blobs, bucket, c.Prefix, a.log).Run(ctx)
	if err != nil {
		return err
	}
	return a.emitf(sum, "uploaded %s (%d transactions, %d assets)", sum.URI, sum.Transactions, sum.Assets)
}

type BackupShowCmd struct {
	URI string `arg:"" help:"gs:// URI of the backup."`
}

func (c *BackupShowCmd) Run(g *Globals) error {
	a, err := g.open()
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := a.context()

	blobs, err := gcsuploader.NewClient(ctx)
	if err != nil {
		return err
	}
	defer blobs.Close()

	dump, err := backup.NewService(a.db, blobs, "", "", a.log).Fetch(ctx, c.URI)
	if err != nil {
		return err
	}
	sum := backup.Summarize(c.URI, dump)
	return a.emitf(sum, "%s exported %s: %d transactions, %d expenses, %d goals, %d assets, %d holdings, %d trades",
		sum.URI, sum.ExportedAt.Format(time.RFC3339), sum.Transactions, sum.Expenses,
		sum.SavingsGoals, sum.Assets, sum.Holdings, sum.AssetTransactions)
}

type MigrateCmd struct{}

func (c *MigrateCmd) Run(g *Globals) error {
	a, err := g.open()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.db.Migrate(a.context()); err != nil {
		return err
	}
	return a.emitf(map[string]string{"database": a.cfg.DBPath}, "schema up to date in %s", a.cfg.DBPath)
}

func (a *app) bigquery(ctx context.Context, project, dataset string) (*infraBQ.Client, error) {
	if project == "" {
		project = a.cfg.BQProject
	}
	if dataset == "" {
		dataset = a.cfg.BQDataset
	}
	return infraBQ.NewClient(ctx, project, dataset, a.log)
}
