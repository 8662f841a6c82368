package holdings

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/wealth-tracker/internal/domain"
	"github.com/dvloznov/wealth-tracker/internal/jobs"
	"github.com/shopspring/decimal"
)

// RefreshAsset fetches a quote for the asset and stores it as the cached
// price. Assets without a market feed are skipped. Provider failures are
// returned so the job queue can retry them.
func (l *Ledger) RefreshAsset(ctx context.Context, assetID string) error {
	asset, err := l.repo.GetAsset(ctx, assetID)
	if err != nil {
		return fmt.Errorf("RefreshAsset: %w", err)
	}
	if !asset.Type.HasMarketFeed() {
		return nil
	}
	if l.prices == nil {
		return fmt.Errorf("RefreshAsset: %s: %w: no price provider configured", asset.Ticker, domain.ErrUpstreamPriceUnavailable)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, l.priceTimeout)
	q, err := l.prices.FetchPrice(fetchCtx, asset.Ticker)
	cancel()
	if err != nil {
		return fmt.Errorf("RefreshAsset: %w", err)
	}
	if q == nil || !q.Price.IsPositive() {
		return fmt.Errorf("RefreshAsset: %s: %w: empty quote", asset.Ticker, domain.ErrUpstreamPriceUnavailable)
	}

	now := l.now()
	asset.CurrentPrice = decimal.NewNullDecimal(q.Price)
	asset.LastPriceUpdate = &now
	if q.DisplayName != "" {
		asset.Name = q.DisplayName
	}
	if err := l.repo.UpdateAsset(ctx, asset); err != nil {
		return fmt.Errorf("RefreshAsset: %w", err)
	}

	l.log.Info().Str("ticker", asset.Ticker).Str("price", q.Price.String()).Msg("refreshed price")
	return nil
}

// HandleJob is a jobs.JobHandler for price refresh jobs.
func (l *Ledger) HandleJob(ctx context.Context, job jobs.Job) error {
	j, ok := job.(*jobs.RefreshPriceJob)
	if !ok {
		return fmt.Errorf("HandleJob: unsupported job type %s", job.GetType())
	}
	err := l.RefreshAsset(ctx, j.AssetID)
	if errors.Is(err, domain.ErrNotFound) {
		// Deleted since the job was published; retrying cannot help.
		l.log.Warn().Str("ticker", j.Ticker).Str("job_id", j.JobID).Msg("asset gone, dropping refresh")
		return nil
	}
	return err
}

// QueueRefresh publishes a refresh job for every market-priced asset of the
// given types (all types when empty) and returns the published job IDs.
func (l *Ledger) QueueRefresh(ctx context.Context, pub jobs.Publisher, types []domain.AssetType) ([]string, error) {
	assets, err := l.repo.ListAssets(ctx, types)
	if err != nil {
		return nil, fmt.Errorf("QueueRefresh: listing assets: %w", err)
	}

	var published []string
	for _, a := range assets {
		if !a.Type.HasMarketFeed() {
			continue
		}
		job := &jobs.RefreshPriceJob{AssetID: a.ID, Ticker: a.Ticker}
		if err := pub.PublishRefreshPrice(ctx, job); err != nil {
			return published, fmt.Errorf("QueueRefresh: publishing %s: %w", a.Ticker, err)
		}
		published = append(published, job.JobID)
	}

	l.log.Debug().Int("jobs", len(published)).Msg("queued price refreshes")
	return published, nil
}
