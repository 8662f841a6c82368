package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/dvloznov/wealth-tracker/internal/config"
	infraBQ "github.com/dvloznov/wealth-tracker/internal/infra/bigquery"
	"github.com/dvloznov/wealth-tracker/internal/logger"
)

var cli struct {
	EnvFile   string        `name:"env-file" help:"Env file with settings." default:".env"`
	Project   string        `help:"GCP project ID (overrides BQ_PROJECT)."`
	Dataset   string        `help:"BigQuery dataset ID (overrides BQ_DATASET)."`
	AppliedBy string        `name:"applied-by" help:"Name recorded with each applied migration." default:"migrate-cli"`
	DryRun    bool          `name:"dry-run" help:"List the embedded migrations without connecting."`
	Timeout   time.Duration `help:"Overall deadline." default:"10m"`
}

// migrator applies pending migrations.
type migrator interface {
	Migrate(ctx context.Context, appliedBy string) ([]infraBQ.Migration, error)
}

func main() {
	kctx := kong.Parse(&cli,
		kong.Name("wealth-migrate"),
		kong.Description("Apply the BigQuery schema migrations for snapshot exports."),
	)

	cfg, err := config.Load(cli.EnvFile)
	kctx.FatalIfErrorf(err)
	project, dataset := pick(cli.Project, cfg.BQProject), pick(cli.Dataset, cfg.BQDataset)

	if cli.DryRun {
		kctx.FatalIfErrorf(list(os.Stdout, project, dataset))
		return
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	kctx.FatalIfErrorf(err)
	log := logger.New(level)

	ctx, cancel := context.WithTimeout(context.Background(), cli.Timeout)
	defer cancel()

	client, err := infraBQ.NewClient(ctx, project, dataset, log)
	kctx.FatalIfErrorf(err)
	defer client.Close()

	log.Info().Str("project", project).Str("dataset", dataset).Msg("Connected to BigQuery")
	kctx.FatalIfErrorf(apply(ctx, os.Stdout, client, cli.AppliedBy))
}

func pick(flag, fallback string) string {
	if flag != "" {
		return flag
	}
	return fallback
}

// list prints every embedded migration with its checksum.
func list(w io.Writer, project, dataset string) error {
	all, err := infraBQ.ReadMigrations(infraBQ.SchemaMigrations, "migrations", project, dataset)
	if err != nil {
		return err
	}
	for _, m := range all {
		if _, err := fmt.Fprintf(w, "%04d_%s  %s\n", m.Version, m.Name, m.Checksum[:12]); err != nil {
			return err
		}
	}
	return nil
}

// apply runs the pending migrations and reports what was applied.
func apply(ctx context.Context, w io.Writer, m migrator, appliedBy string) error {
	done, err := m.Migrate(ctx, appliedBy)
	for _, mig := range done {
		fmt.Fprintf(w, "  [OK]   %04d_%s\n", mig.Version, mig.Name)
	}
	if err != nil {
		return err
	}
	if len(done) == 0 {
		fmt.Fprintln(w, "No new migrations to apply. Dataset is up to date.")
		return nil
	}
	fmt.Fprintf(w, "Successfully applied %d migration(s)\n", len(done))
	return nil
}
