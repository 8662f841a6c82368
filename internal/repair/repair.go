// Package repair keeps asset transaction history consistent with the current
// holdings: it collapses an asset's buys into one record matching the
// holding and removes assets that no longer have a holding.
package repair

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/wealth-tracker/internal/domain"
	"github.com/dvloznov/wealth-tracker/internal/store"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Outcome describes what consolidating one asset did.
type Outcome struct {
	AssetID  string    `json:"assetId"`
	Ticker   string    `json:"ticker,omitempty"`
	Replaced int64     `json:"replaced"` // buy records deleted
	Date     time.Time `json:"date"`     // date kept on the consolidated buy

	// Unchanged is set when history already matched and nothing was written.
	Unchanged bool `json:"unchanged"`
}

// Report summarizes a full repair run.
type Report struct {
	GhostsRemoved []string  `json:"ghostsRemoved"`
	Consolidated  []Outcome `json:"consolidated"`
}

// ConsolidateTx replaces every BUY of the asset with a single BUY of
// quantity at avgCost, dated at the earliest original buy (or now when there
// is none). Sells are left untouched. When exactly one buy already matches,
// nothing is written.
func ConsolidateTx(ctx context.Context, tx store.Tx, assetID string, quantity, avgCost decimal.Decimal, now time.Time) (Outcome, error) {
	out := Outcome{AssetID: assetID}

	buys, err := tx.ListAssetTransactions(ctx, store.TradeFilter{AssetID: assetID, Side: domain.SideBuy})
	if err != nil {
		return out, fmt.Errorf("ConsolidateTx: listing buys: %w", err)
	}

	out.Date = now.UTC()
	if len(buys) > 0 {
		out.Date = buys[0].Date
		out.Ticker = buys[0].Ticker
	}

	if len(buys) == 1 && buys[0].Quantity.Equal(quantity) && buys[0].PricePerUnit.Equal(avgCost) {
		out.Unchanged = true
		return out, nil
	}

	if out.Replaced, err = tx.DeleteAssetTransactions(ctx, assetID, domain.SideBuy); err != nil {
		return out, fmt.Errorf("ConsolidateTx: deleting buys: %w", err)
	}

	err = tx.CreateAssetTransaction(ctx, &domain.AssetTransaction{
		AssetID:      assetID,
		Side:         domain.SideBuy,
		Quantity:     quantity,
		PricePerUnit: avgCost,
		Date:         out.Date,
	})
	if err != nil {
		return out, fmt.Errorf("ConsolidateTx: inserting consolidated buy: %w", err)
	}
	return out, nil
}

// Service runs repairs against a repository.
type Service struct {
	repo store.Repository
	log  zerolog.Logger
	now  func() time.Time
}

// NewService creates a repair Service.
func NewService(repo store.Repository, log zerolog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With().Str("component", "repair").Logger(),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Consolidate runs ConsolidateTx in its own transaction.
func (s *Service) Consolidate(ctx context.Context, assetID string, quantity, avgCost decimal.Decimal) (Outcome, error) {
	var out Outcome
	err := s.repo.WithinTx(ctx, func(tx store.Tx) error {
		var err error
		out, err = ConsolidateTx(ctx, tx, assetID, quantity, avgCost, s.now())
		return err
	})
	return out, err
}

// Run deletes ghost assets, then consolidates every remaining holding. Each
// asset is repaired in its own transaction so one failure leaves the others
// applied.
func (s *Service) Run(ctx context.Context) (*Report, error) {
	report := &Report{}

	assets, err := s.repo.ListAssets(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("Run: listing assets: %w", err)
	}
	holdings, err := s.repo.ListHoldings(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("Run: listing holdings: %w", err)
	}

	held := make(map[string]bool, len(holdings))
	for _, h := range holdings {
		held[h.AssetID] = true
	}

	for _, a := range assets {
		if held[a.ID] {
			continue
		}
		if err := s.repo.DeleteAsset(ctx, a.ID); err != nil {
			return report, fmt.Errorf("Run: deleting ghost %s: %w", a.Ticker, err)
		}
		s.log.Info().Str("ticker", a.Ticker).Str("asset_id", a.ID).Msg("deleted ghost asset")
		report.GhostsRemoved = append(report.GhostsRemoved, a.Ticker)
	}

	for _, h := range holdings {
		out, err := s.Consolidate(ctx, h.AssetID, h.Quantity, h.AvgCost)
		if err != nil {
			return report, fmt.Errorf("Run: consolidating %s: %w", h.AssetID, err)
		}
		if h.Asset != nil {
			out.Ticker = h.Asset.Ticker
		}
		s.log.Info().
			Str("ticker", out.Ticker).
			Int64("replaced", out.Replaced).
			Bool("unchanged", out.Unchanged).
			Msg("consolidated holding")
		report.Consolidated = append(report.Consolidated, out)
	}

	return report, nil
}
