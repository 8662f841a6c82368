package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/dvloznov/wealth-tracker/internal/config"
	"github.com/dvloznov/wealth-tracker/internal/domain"
	"github.com/dvloznov/wealth-tracker/internal/holdings"
	"github.com/dvloznov/wealth-tracker/internal/infra/sqlite"
	"github.com/dvloznov/wealth-tracker/internal/jobs"
	"github.com/dvloznov/wealth-tracker/internal/jobs/inmemory"
	"github.com/dvloznov/wealth-tracker/internal/logger"
	"github.com/dvloznov/wealth-tracker/internal/prices"
	"github.com/rs/zerolog"
)

var cli struct {
	EnvFile  string        `name:"env-file" help:"Env file with settings." default:".env"`
	DB       string        `name:"db" help:"SQLite database path (overrides WEALTH_DB_PATH)."`
	Interval time.Duration `help:"Refresh interval (overrides REFRESH_INTERVAL)."`
	Workers  int           `help:"Concurrent refresh jobs." default:"4"`
}

func main() {
	kctx := kong.Parse(&cli,
		kong.Name("wealth-worker"),
		kong.Description("Refresh cached market prices on a schedule."),
	)

	cfg, err := config.Load(cli.EnvFile)
	kctx.FatalIfErrorf(err)
	if cli.DB != "" {
		cfg.DBPath = cli.DB
	}
	if cli.Interval > 0 {
		cfg.RefreshInterval = cli.Interval
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	kctx.FatalIfErrorf(err)
	log := logger.New(level)

	db, err := sqlite.Open(cfg.DBPath, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer db.Close()

	client := prices.NewClient(prices.Options{
		BaseURL:    cfg.PriceAPIURL,
		Timeout:    cfg.PriceTimeout,
		RatePerSec: cfg.PriceRatePerSec,
	}, log)
	ledger := holdings.NewLedger(db, client, log).WithPriceTimeout(cfg.PriceTimeout)

	// In production, this would be replaced with Cloud Tasks or Pub/Sub
	jobQueue, jobStore := newQueue(cli.Workers, keepJobs, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx, log)

	if err := jobQueue.Start(ctx, ledger.HandleJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	log.Info().Dur("interval", cfg.RefreshInterval).Str("db_path", cfg.DBPath).Msg("Worker service started")
	run(ctx, ledger, jobQueue, cfg.RefreshInterval, log)

	log.Info().Msg("Shutting down worker service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}
	if failed, err := jobStore.ListJobs(shutdownCtx, jobs.JobFilter{Status: jobs.JobStatusFailed}); err == nil && len(failed) > 0 {
		log.Warn().Int("failed", len(failed)).Str("last_error", failed[len(failed)-1].Error).Msg("Recent price refreshes failed")
	}

	log.Info().Msg("Worker service exited")
}

// keepJobs bounds how many finished refresh jobs the worker remembers.
const keepJobs = 256

func newQueue(workers, keep int, log zerolog.Logger) (*inmemory.Queue, *inmemory.Store) {
	store := inmemory.NewStore().WithLimit(keep)
	return inmemory.NewQueue(inmemory.Options{Workers: workers}, store, log), store
}

// refresher publishes a refresh job per market-priced asset.
type refresher interface {
	QueueRefresh(ctx context.Context, pub jobs.Publisher, types []domain.AssetType) ([]string, error)
}

// run publishes refresh jobs immediately and then on every tick until ctx
// is done. A failed round is logged and retried on the next tick.
func run(ctx context.Context, r refresher, pub jobs.Publisher, interval time.Duration, log zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for ctx.Err() == nil {
		ids, err := r.QueueRefresh(ctx, pub, nil)
		if err != nil {
			log.Error().Err(err).Msg("Failed to queue price refreshes")
		} else {
			log.Info().Int("jobs", len(ids)).Msg("Queued price refreshes")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
