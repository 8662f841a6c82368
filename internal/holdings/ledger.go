// Package holdings maintains asset positions: weighted average cost on buys,
// quantity checks on sells, manual edits and cached price refreshes.
package holdings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/wealth-tracker/internal/domain"
	"github.com/dvloznov/wealth-tracker/internal/prices"
	"github.com/dvloznov/wealth-tracker/internal/repair"
	"github.com/dvloznov/wealth-tracker/internal/store"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// DefaultPriceTimeout bounds a single quote lookup made during a trade.
const DefaultPriceTimeout = 5 * time.Second

// PriceFetcher returns the latest quote for a ticker.
type PriceFetcher interface {
	FetchPrice(ctx context.Context, ticker string) (*prices.Quote, error)
}

// Ledger applies trades and edits to holdings.
type Ledger struct {
	repo         store.Repository
	prices       PriceFetcher
	priceTimeout time.Duration
	log          zerolog.Logger
	now          func() time.Time
}

// NewLedger creates a Ledger. fetcher may be nil, in which case trade prices
// are always used as the cached price.
func NewLedger(repo store.Repository, fetcher PriceFetcher, log zerolog.Logger) *Ledger {
	return &Ledger{
		repo:         repo,
		prices:       fetcher,
		priceTimeout: DefaultPriceTimeout,
		log:          log.With().Str("component", "holdings").Logger(),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// WithPriceTimeout overrides the per-quote timeout.
func (l *Ledger) WithPriceTimeout(d time.Duration) *Ledger {
	if d > 0 {
		l.priceTimeout = d
	}
	return l
}

// BuyRequest describes a purchase. Asset attributes are only used when the
// asset does not exist yet.
type BuyRequest struct {
	Ticker   string
	Type     domain.AssetType
	Quantity decimal.Decimal
	Price    decimal.Decimal
	Date     *time.Time // defaults to now

	Name          string
	RiskLevel     domain.RiskLevel
	VestingStart  *time.Time
	VestingMonths *int
}

// SellRequest describes a sale. Type is optional and only used to resolve
// bare crypto symbols.
type SellRequest struct {
	Ticker   string
	Type     domain.AssetType
	Quantity decimal.Decimal
	Price    decimal.Decimal
	Date     *time.Time
}

// TradeResult is the state after a trade. Holding is nil when a sell closed
// the position.
type TradeResult struct {
	Asset       domain.Asset            `json:"asset"`
	Holding     *domain.AssetHolding    `json:"holding"`
	Transaction domain.AssetTransaction `json:"transaction"`
}

var cryptoAliases = map[string]string{
	"BTC":  "BTC-USD",
	"ETH":  "ETH-USD",
	"SOL":  "SOL-USD",
	"DOGE": "DOGE-USD",
}

// NormalizeTicker upper-cases the ticker and maps bare crypto symbols to
// their USD pair.
func NormalizeTicker(ticker string, t domain.AssetType) string {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if t == domain.AssetTypeCrypto {
		if pair, ok := cryptoAliases[ticker]; ok {
			return pair
		}
	}
	return ticker
}

// WeightedAverage returns the position after buying addQty at addPrice on top
// of qty units held at avgCost.
func WeightedAverage(qty, avgCost, addQty, addPrice decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	newQty := qty.Add(addQty)
	if newQty.IsZero() {
		return newQty, addPrice
	}
	total := qty.Mul(avgCost).Add(addQty.Mul(addPrice))
	return newQty, total.Div(newQty)
}

func validateTrade(ticker string, qty, price decimal.Decimal) error {
	if strings.TrimSpace(ticker) == "" {
		return domain.MissingField("ticker")
	}
	if !qty.IsPositive() {
		return domain.InvalidField("quantity", "must be positive")
	}
	if !price.IsPositive() {
		return domain.InvalidField("price", "must be positive")
	}
	return nil
}

// Buy records a purchase, creating the asset on first buy.
func (l *Ledger) Buy(ctx context.Context, req BuyRequest) (*TradeResult, error) {
	if err := validateTrade(req.Ticker, req.Quantity, req.Price); err != nil {
		return nil, fmt.Errorf("Buy: %w", err)
	}
	ticker := NormalizeTicker(req.Ticker, req.Type)

	asset, err := l.lookup(ctx, req.Ticker, req.Type)
	switch {
	case err == nil:
		ticker = asset.Ticker
	case errors.Is(err, domain.ErrNotFound):
		asset = nil
	default:
		return nil, fmt.Errorf("Buy: looking up %s: %w", ticker, err)
	}

	now := l.now()
	isNew := asset == nil
	if isNew {
		if req.Type == "" {
			return nil, fmt.Errorf("Buy: %w", domain.MissingField("type"))
		}
		if !req.Type.Valid() {
			return nil, fmt.Errorf("Buy: %w", domain.InvalidField("type", fmt.Sprintf("%q is not an asset type", req.Type)))
		}
		asset = l.newAsset(ctx, ticker, req, now)
	}

	date := now
	if req.Date != nil {
		date = req.Date.UTC()
	}

	result := &TradeResult{}
	err = l.repo.WithinTx(ctx, func(tx store.Tx) error {
		switch {
		case isNew:
			if err := tx.CreateAsset(ctx, asset); err != nil {
				return err
			}
		case !asset.Type.HasMarketFeed():
			asset.CurrentPrice = decimal.NewNullDecimal(req.Price)
			asset.LastPriceUpdate = &now
			if err := tx.UpdateAsset(ctx, asset); err != nil {
				return err
			}
		}

		trade := domain.AssetTransaction{
			AssetID:      asset.ID,
			Side:         domain.SideBuy,
			Quantity:     req.Quantity,
			PricePerUnit: req.Price,
			Date:         date,
			Ticker:       asset.Ticker,
			AssetType:    asset.Type,
		}
		if err := tx.CreateAssetTransaction(ctx, &trade); err != nil {
			return err
		}

		holding, err := tx.GetHoldingByAsset(ctx, asset.ID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			holding = &domain.AssetHolding{AssetID: asset.ID, Quantity: req.Quantity, AvgCost: req.Price}
			err = tx.CreateHolding(ctx, holding)
		case err == nil:
			holding.Quantity, holding.AvgCost = WeightedAverage(holding.Quantity, holding.AvgCost, req.Quantity, req.Price)
			err = tx.UpdateHolding(ctx, holding)
		}
		if err != nil {
			return err
		}

		holding.Asset = asset
		result.Asset = *asset
		result.Holding = holding
		result.Transaction = trade
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("Buy: %s: %w", ticker, err)
	}

	l.log.Info().
		Str("ticker", ticker).
		Str("quantity", req.Quantity.String()).
		Str("price", req.Price.String()).
		Bool("new_asset", isNew).
		Msg("recorded buy")
	return result, nil
}

// newAsset builds the asset for a first purchase. Market-priced assets get a
// quote when one is available; the trade price is used otherwise.
func (l *Ledger) newAsset(ctx context.Context, ticker string, req BuyRequest, now time.Time) *domain.Asset {
	asset := &domain.Asset{
		Ticker:          ticker,
		Name:            strings.TrimSpace(req.Name),
		Type:            req.Type,
		CurrentPrice:    decimal.NewNullDecimal(req.Price),
		LastPriceUpdate: &now,
		RiskLevel:       req.RiskLevel.Normalize(),
		VestingStart:    req.VestingStart,
		VestingMonths:   req.VestingMonths,
	}

	if req.Type.HasMarketFeed() {
		if q := l.quote(ctx, ticker); q != nil {
			asset.CurrentPrice = decimal.NewNullDecimal(q.Price)
			if asset.Name == "" {
				asset.Name = q.DisplayName
			}
		}
	}
	if asset.Name == "" {
		asset.Name = ticker
	}
	return asset
}

// quote fetches a price with its own timeout. Failures are logged and
// reported as nil.
func (l *Ledger) quote(ctx context.Context, ticker string) *prices.Quote {
	if l.prices == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, l.priceTimeout)
	defer cancel()

	q, err := l.prices.FetchPrice(ctx, ticker)
	if err != nil {
		if !errors.Is(err, domain.ErrUpstreamPriceUnavailable) {
			err = fmt.Errorf("%w: %v", domain.ErrUpstreamPriceUnavailable, err)
		}
		l.log.Warn().Err(err).Str("ticker", ticker).Msg("using trade price")
		return nil
	}
	if q == nil || !q.Price.IsPositive() {
		l.log.Warn().Err(domain.ErrUpstreamPriceUnavailable).Str("ticker", ticker).Msg("empty quote, using trade price")
		return nil
	}
	return q
}

// Sell records a sale. Selling more than held, or an asset never bought,
// fails with domain.ErrInsufficientHoldings and changes nothing.
func (l *Ledger) Sell(ctx context.Context, req SellRequest) (*TradeResult, error) {
	if err := validateTrade(req.Ticker, req.Quantity, req.Price); err != nil {
		return nil, fmt.Errorf("Sell: %w", err)
	}

	asset, err := l.lookup(ctx, req.Ticker, req.Type)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("Sell: %s: %w", req.Ticker, domain.ErrInsufficientHoldings)
	}
	if err != nil {
		return nil, fmt.Errorf("Sell: %w", err)
	}

	date := l.now()
	if req.Date != nil {
		date = req.Date.UTC()
	}

	result := &TradeResult{Asset: *asset}
	err = l.repo.WithinTx(ctx, func(tx store.Tx) error {
		holding, err := tx.GetHoldingByAsset(ctx, asset.ID)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrInsufficientHoldings
		}
		if err != nil {
			return err
		}
		if req.Quantity.GreaterThan(holding.Quantity) {
			return fmt.Errorf("%w: holding %s, selling %s", domain.ErrInsufficientHoldings, holding.Quantity, req.Quantity)
		}

		trade := domain.AssetTransaction{
			AssetID:      asset.ID,
			Side:         domain.SideSell,
			Quantity:     req.Quantity,
			PricePerUnit: req.Price,
			Date:         date,
			Ticker:       asset.Ticker,
			AssetType:    asset.Type,
		}
		if err := tx.CreateAssetTransaction(ctx, &trade); err != nil {
			return err
		}
		result.Transaction = trade

		holding.Quantity = holding.Quantity.Sub(req.Quantity)
		if holding.Quantity.IsZero() {
			return tx.DeleteHolding(ctx, holding.ID)
		}
		if err := tx.UpdateHolding(ctx, holding); err != nil {
			return err
		}
		holding.Asset = asset
		result.Holding = holding
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("Sell: %s: %w", asset.Ticker, err)
	}

	l.log.Info().
		Str("ticker", asset.Ticker).
		Str("quantity", req.Quantity.String()).
		Bool("closed", result.Holding == nil).
		Msg("recorded sell")
	return result, nil
}

// lookup finds an asset by ticker. Without a type, a bare crypto symbol is
// tried as its USD pair when the bare ticker is unknown.
func (l *Ledger) lookup(ctx context.Context, ticker string, t domain.AssetType) (*domain.Asset, error) {
	normalized := NormalizeTicker(ticker, t)
	asset, err := l.repo.GetAssetByTicker(ctx, normalized)
	if err == nil || t != "" || !errors.Is(err, domain.ErrNotFound) {
		return asset, err
	}
	if pair, ok := cryptoAliases[normalized]; ok {
		return l.repo.GetAssetByTicker(ctx, pair)
	}
	return nil, err
}

// DeleteAsset removes an asset with its holding and history.
func (l *Ledger) DeleteAsset(ctx context.Context, ticker string) error {
	asset, err := l.lookup(ctx, ticker, "")
	if err != nil {
		return fmt.Errorf("DeleteAsset: %w", err)
	}
	if err := l.repo.DeleteAsset(ctx, asset.ID); err != nil {
		return fmt.Errorf("DeleteAsset: %w", err)
	}
	l.log.Info().Str("ticker", asset.Ticker).Str("asset_id", asset.ID).Msg("deleted asset")
	return nil
}

// List returns holdings of the given asset types, every holding when types
// is empty.
func (l *Ledger) List(ctx context.Context, types []domain.AssetType) ([]domain.AssetHolding, error) {
	hs, err := l.repo.ListHoldings(ctx, types)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	return hs, nil
}

// EditRequest changes a holding and its asset. Nil fields are left as is.
type EditRequest struct {
	Ticker string

	Quantity *decimal.Decimal
	AvgCost  *decimal.Decimal

	CurrentPrice  *decimal.Decimal
	Name          *string
	RiskLevel     *domain.RiskLevel
	VestingStart  *time.Time
	VestingMonths *int
}

func (r EditRequest) validate() error {
	if strings.TrimSpace(r.Ticker) == "" {
		return domain.MissingField("ticker")
	}
	if r.Quantity != nil && r.Quantity.IsNegative() {
		return domain.InvalidField("quantity", "must not be negative")
	}
	if r.AvgCost != nil && r.AvgCost.IsNegative() {
		return domain.InvalidField("avgCost", "must not be negative")
	}
	if r.CurrentPrice != nil && r.CurrentPrice.IsNegative() {
		return domain.InvalidField("currentPrice", "must not be negative")
	}
	if r.VestingMonths != nil && *r.VestingMonths < 0 {
		return domain.InvalidField("vestingMonths", "must not be negative")
	}
	return nil
}

func (r EditRequest) touchesAsset() bool {
	return r.CurrentPrice != nil || r.Name != nil || r.RiskLevel != nil || r.VestingStart != nil || r.VestingMonths != nil
}

// Edit applies a manual correction. When quantity or average cost change,
// the asset's buy history is consolidated to match in the same transaction.
func (l *Ledger) Edit(ctx context.Context, req EditRequest) (*domain.AssetHolding, error) {
	if err := req.validate(); err != nil {
		return nil, fmt.Errorf("Edit: %w", err)
	}

	asset, err := l.lookup(ctx, req.Ticker, "")
	if err != nil {
		return nil, fmt.Errorf("Edit: %w", err)
	}

	now := l.now()
	var holding *domain.AssetHolding
	err = l.repo.WithinTx(ctx, func(tx store.Tx) error {
		var err error
		holding, err = tx.GetHoldingByAsset(ctx, asset.ID)
		if err != nil {
			return err
		}

		positionChanged := req.Quantity != nil || req.AvgCost != nil
		if positionChanged {
			if req.Quantity != nil {
				holding.Quantity = *req.Quantity
			}
			if req.AvgCost != nil {
				holding.AvgCost = *req.AvgCost
			}
			if err := tx.UpdateHolding(ctx, holding); err != nil {
				return err
			}
		}

		if req.touchesAsset() {
			if req.CurrentPrice != nil {
				asset.CurrentPrice = decimal.NewNullDecimal(*req.CurrentPrice)
				asset.LastPriceUpdate = &now
			}
			if req.Name != nil {
				asset.Name = *req.Name
			}
			if req.RiskLevel != nil {
				asset.RiskLevel = req.RiskLevel.Normalize()
			}
			if req.VestingStart != nil {
				asset.VestingStart = req.VestingStart
			}
			if req.VestingMonths != nil {
				asset.VestingMonths = req.VestingMonths
			}
			if err := tx.UpdateAsset(ctx, asset); err != nil {
				return err
			}
		}

		if positionChanged {
			out, err := repair.ConsolidateTx(ctx, tx, asset.ID, holding.Quantity, holding.AvgCost, now)
			if err != nil {
				return err
			}
			l.log.Debug().Str("ticker", asset.Ticker).Int64("replaced", out.Replaced).Msg("consolidated history")
		}

		holding.Asset = asset
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("Edit: %s: %w", asset.Ticker, err)
	}

	l.log.Info().Str("ticker", asset.Ticker).Msg("edited holding")
	return holding, nil
}
