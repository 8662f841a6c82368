package holdings

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dvloznov/wealth-tracker/internal/domain"
	"github.com/dvloznov/wealth-tracker/internal/infra/sqlite"
	"github.com/dvloznov/wealth-tracker/internal/jobs"
	"github.com/dvloznov/wealth-tracker/internal/jobs/inmemory"
	"github.com/dvloznov/wealth-tracker/internal/prices"
	"github.com/dvloznov/wealth-tracker/internal/store"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fakePrices struct {
	mu     sync.Mutex
	quotes map[string]*prices.Quote
	calls  []string
}

func (f *fakePrices) FetchPrice(ctx context.Context, ticker string) (*prices.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, ticker)
	if q, ok := f.quotes[ticker]; ok {
		return q, nil
	}
	return nil, domain.ErrUpstreamPriceUnavailable
}

func setup(t *testing.T, quotes map[string]*prices.Quote) (*sqlite.DB, *Ledger, *fakePrices) {
	t.Helper()
	db, err := sqlite.OpenInMemory(zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	fp := &fakePrices{quotes: quotes}
	l := NewLedger(db, fp, zerolog.Nop())
	l.now = func() time.Time { return now }
	return db, l, fp
}

func buyReq(ticker string, typ domain.AssetType, qty, price string) BuyRequest {
	return BuyRequest{Ticker: ticker, Type: typ, Quantity: dec(qty), Price: dec(price)}
}

func TestWeightedAverage(t *testing.T) {
	tests := []struct {
		name                  string
		qty, cost, addQ, addP string
		wantQty, wantCost     string
	}{
		{name: "even split", qty: "10", cost: "100", addQ: "10", addP: "200", wantQty: "20", wantCost: "150"},
		{name: "from nothing", qty: "0", cost: "0", addQ: "3", addP: "7.5", wantQty: "3", wantCost: "7.5"},
		{name: "fractional", qty: "0.5", cost: "40000", addQ: "0.5", addP: "60000", wantQty: "1", wantCost: "50000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, c := WeightedAverage(dec(tt.qty), dec(tt.cost), dec(tt.addQ), dec(tt.addP))
			assert.True(t, q.Equal(dec(tt.wantQty)), "qty = %s", q)
			assert.True(t, c.Equal(dec(tt.wantCost)), "cost = %s", c)
		})
	}
}

func TestNormalizeTicker(t *testing.T) {
	assert.Equal(t, "BTC-USD", NormalizeTicker("btc", domain.AssetTypeCrypto))
	assert.Equal(t, "DOGE-USD", NormalizeTicker(" doge ", domain.AssetTypeCrypto))
	assert.Equal(t, "ADA", NormalizeTicker("ada", domain.AssetTypeCrypto))
	assert.Equal(t, "BTC", NormalizeTicker("btc", domain.AssetTypeStock))
	assert.Equal(t, "AAPL", NormalizeTicker("aapl", ""))
}

func TestBuySell_WeightedAverageCost(t *testing.T) {
	ctx := context.Background()
	_, l, _ := setup(t, nil)

	_, err := l.Buy(ctx, buyReq("AAPL", domain.AssetTypeStock, "10", "100"))
	require.NoError(t, err)
	res, err := l.Buy(ctx, buyReq("aapl", domain.AssetTypeStock, "10", "200"))
	require.NoError(t, err)
	assert.True(t, res.Holding.Quantity.Equal(dec("20")))
	assert.True(t, res.Holding.AvgCost.Equal(dec("150")))

	res, err = l.Sell(ctx, SellRequest{Ticker: "AAPL", Quantity: dec("5"), Price: dec("300")})
	require.NoError(t, err)
	require.NotNil(t, res.Holding)
	assert.True(t, res.Holding.Quantity.Equal(dec("15")))
	assert.True(t, res.Holding.AvgCost.Equal(dec("150")), "a sell keeps the cost basis")
	assert.Equal(t, domain.SideSell, res.Transaction.Side)
}

func TestSell_InsufficientLeavesHoldingUnchanged(t *testing.T) {
	ctx := context.Background()
	db, l, _ := setup(t, nil)

	_, err := l.Buy(ctx, buyReq("VOO", domain.AssetTypeETF, "2", "400"))
	require.NoError(t, err)

	_, err = l.Sell(ctx, SellRequest{Ticker: "VOO", Quantity: dec("3"), Price: dec("410")})
	require.ErrorIs(t, err, domain.ErrInsufficientHoldings)

	hs, err := l.List(ctx, nil)
	require.NoError(t, err)
	require.Len(t, hs, 1)
	assert.True(t, hs[0].Quantity.Equal(dec("2")))
	assert.True(t, hs[0].AvgCost.Equal(dec("400")))

	trades, err := db.ListAssetTransactions(ctx, store.TradeFilter{})
	require.NoError(t, err)
	assert.Len(t, trades, 1, "no sell was recorded")
}

func TestSell_UnknownTicker(t *testing.T) {
	ctx := context.Background()
	db, l, _ := setup(t, nil)

	_, err := l.Sell(ctx, SellRequest{Ticker: "NOPE", Quantity: dec("1"), Price: dec("1")})
	require.ErrorIs(t, err, domain.ErrInsufficientHoldings)

	assets, err := db.ListAssets(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, assets)
}

func TestSell_ToZeroDeletesHolding(t *testing.T) {
	ctx := context.Background()
	db, l, _ := setup(t, nil)

	_, err := l.Buy(ctx, buyReq("BTC", domain.AssetTypeCrypto, "0.25", "40000"))
	require.NoError(t, err)

	res, err := l.Sell(ctx, SellRequest{Ticker: "btc", Quantity: dec("0.25"), Price: dec("50000")})
	require.NoError(t, err)
	assert.Nil(t, res.Holding)
	assert.Equal(t, "BTC-USD", res.Asset.Ticker, "bare symbol resolved to the USD pair")

	a, err := db.GetAssetByTicker(ctx, "BTC-USD")
	require.NoError(t, err)
	_, err = db.GetHoldingByAsset(ctx, a.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestBuy_Validation(t *testing.T) {
	ctx := context.Background()
	db, l, _ := setup(t, nil)

	tests := []struct {
		name  string
		req   BuyRequest
		field string
	}{
		{name: "missing ticker", req: buyReq(" ", domain.AssetTypeStock, "1", "1"), field: "ticker"},
		{name: "zero quantity", req: buyReq("AAPL", domain.AssetTypeStock, "0", "1"), field: "quantity"},
		{name: "negative price", req: buyReq("AAPL", domain.AssetTypeStock, "1", "-1"), field: "price"},
		{name: "missing type", req: buyReq("AAPL", "", "1", "1"), field: "type"},
		{name: "unknown type", req: buyReq("AAPL", "BOND", "1", "1"), field: "type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.Buy(ctx, tt.req)
			require.ErrorIs(t, err, domain.ErrMissingRequiredField)

			var fe *domain.FieldError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, tt.field, fe.Field)
		})
	}

	assets, err := db.ListAssets(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, assets, "nothing was written")
}

func TestBuy_NewMarketAssetUsesQuote(t *testing.T) {
	ctx := context.Background()
	_, l, fp := setup(t, map[string]*prices.Quote{
		"BTC-USD": {Ticker: "BTC-USD", Price: dec("65000"), DisplayName: "Bitcoin USD"},
	})

	res, err := l.Buy(ctx, buyReq("BTC", domain.AssetTypeCrypto, "0.1", "60000"))
	require.NoError(t, err)

	assert.Equal(t, []string{"BTC-USD"}, fp.calls)
	assert.Equal(t, "Bitcoin USD", res.Asset.Name)
	assert.True(t, res.Asset.CurrentPrice.Decimal.Equal(dec("65000")))
	assert.Equal(t, domain.RiskHigh, res.Asset.RiskLevel)
	assert.True(t, res.Holding.AvgCost.Equal(dec("60000")), "cost basis uses the trade price")
}

func TestBuy_QuoteFailureFallsBackToTradePrice(t *testing.T) {
	ctx := context.Background()
	_, l, _ := setup(t, nil)

	req := buyReq("tsla", domain.AssetTypeStock, "1", "250")
	req.Name = "Tesla"
	res, err := l.Buy(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, "TSLA", res.Asset.Ticker)
	assert.Equal(t, "Tesla", res.Asset.Name)
	assert.True(t, res.Asset.CurrentPrice.Decimal.Equal(dec("250")))
}

func TestBuy_ManualAssetsSkipQuotesAndTrackLastTradePrice(t *testing.T) {
	ctx := context.Background()
	db, l, fp := setup(t, nil)

	_, err := l.Buy(ctx, buyReq("acme", domain.AssetTypeStartup, "100", "2"))
	require.NoError(t, err)
	_, err = l.Buy(ctx, buyReq("ACME", "", "50", "3"))
	require.NoError(t, err)

	assert.Empty(t, fp.calls)

	a, err := db.GetAssetByTicker(ctx, "ACME")
	require.NoError(t, err)
	assert.Equal(t, "ACME", a.Name, "name defaults to the ticker")
	assert.True(t, a.CurrentPrice.Decimal.Equal(dec("3")))
}

func TestBuy_BareCryptoSymbolAddsToExistingPair(t *testing.T) {
	ctx := context.Background()
	db, l, _ := setup(t, nil)

	_, err := l.Buy(ctx, buyReq("BTC", domain.AssetTypeCrypto, "1", "40000"))
	require.NoError(t, err)

	res, err := l.Buy(ctx, buyReq("btc", "", "1", "60000"))
	require.NoError(t, err)
	assert.Equal(t, "BTC-USD", res.Asset.Ticker)
	assert.True(t, res.Holding.Quantity.Equal(dec("2")))
	assert.True(t, res.Holding.AvgCost.Equal(dec("50000")))
	assert.Equal(t, "BTC-USD", res.Transaction.Ticker)

	assets, err := db.ListAssets(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, assets, 1, "no bare BTC asset was created")

	_, err = l.Buy(ctx, buyReq("eth", "", "1", "3000"))
	require.ErrorIs(t, err, domain.ErrMissingRequiredField, "unknown symbols still need a type")
}

func TestEdit_ConsolidatesHistory(t *testing.T) {
	ctx := context.Background()
	db, l, _ := setup(t, nil)

	first := now.Add(-48 * time.Hour)
	req := buyReq("ETH", domain.AssetTypeCrypto, "1", "2000")
	req.Date = &first
	_, err := l.Buy(ctx, req)
	require.NoError(t, err)
	_, err = l.Buy(ctx, buyReq("ETH", domain.AssetTypeCrypto, "1", "3000"))
	require.NoError(t, err)

	qty, cost := dec("3"), dec("2100")
	risk := domain.RiskExtreme
	h, err := l.Edit(ctx, EditRequest{Ticker: "ETH", Quantity: &qty, AvgCost: &cost, RiskLevel: &risk})
	require.NoError(t, err)
	assert.True(t, h.Quantity.Equal(qty))
	assert.Equal(t, domain.RiskExtreme, h.Asset.RiskLevel)

	buys, err := db.ListAssetTransactions(ctx, store.TradeFilter{AssetID: h.AssetID, Side: domain.SideBuy})
	require.NoError(t, err)
	require.Len(t, buys, 1)
	assert.True(t, buys[0].Quantity.Equal(qty))
	assert.True(t, buys[0].PricePerUnit.Equal(cost))
	assert.True(t, buys[0].Date.Equal(first))
}

func TestEdit_Rejections(t *testing.T) {
	ctx := context.Background()
	_, l, _ := setup(t, nil)

	neg := dec("-1")
	_, err := l.Edit(ctx, EditRequest{Ticker: "AAPL", Quantity: &neg})
	assert.ErrorIs(t, err, domain.ErrMissingRequiredField)

	one := dec("1")
	_, err = l.Edit(ctx, EditRequest{Ticker: "AAPL", Quantity: &one})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteAsset(t *testing.T) {
	ctx := context.Background()
	db, l, _ := setup(t, nil)

	_, err := l.Buy(ctx, buyReq("SOL", domain.AssetTypeCrypto, "10", "150"))
	require.NoError(t, err)

	require.NoError(t, l.DeleteAsset(ctx, "sol"))
	trades, err := db.ListAssetTransactions(ctx, store.TradeFilter{})
	require.NoError(t, err)
	assert.Empty(t, trades)

	assert.ErrorIs(t, l.DeleteAsset(ctx, "SOL"), domain.ErrNotFound)
}

func TestList_FiltersByType(t *testing.T) {
	ctx := context.Background()
	_, l, _ := setup(t, nil)

	for _, r := range []BuyRequest{
		buyReq("AAPL", domain.AssetTypeStock, "1", "100"),
		buyReq("VOO", domain.AssetTypeETF, "1", "400"),
		buyReq("PUNK", domain.AssetTypeCollectible, "1", "5000"),
	} {
		_, err := l.Buy(ctx, r)
		require.NoError(t, err)
	}

	stocks, err := l.List(ctx, domain.StockAssetTypes)
	require.NoError(t, err)
	assert.Len(t, stocks, 2)

	future, err := l.List(ctx, domain.FutureAssetTypes)
	require.NoError(t, err)
	require.Len(t, future, 1)
	assert.Equal(t, "PUNK", future[0].Asset.Ticker)
}

func TestRefresh_ThroughQueue(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db, l, fp := setup(t, nil)
	for _, r := range []BuyRequest{
		buyReq("AAPL", domain.AssetTypeStock, "1", "100"),
		buyReq("DEAD", domain.AssetTypeStock, "1", "10"),
		buyReq("PUNK", domain.AssetTypeCollectible, "1", "5000"),
	} {
		_, err := l.Buy(ctx, r)
		require.NoError(t, err)
	}

	fp.mu.Lock()
	fp.calls = nil
	fp.quotes = map[string]*prices.Quote{"AAPL": {Ticker: "AAPL", Price: dec("190"), DisplayName: "Apple Inc."}}
	fp.mu.Unlock()
	l.now = func() time.Time { return now.Add(time.Hour) }

	jobStore := inmemory.NewStore()
	q := inmemory.NewQueue(inmemory.Options{Workers: 2, Backoff: time.Millisecond}, jobStore, zerolog.Nop())
	require.NoError(t, q.Start(ctx, l.HandleJob))

	ids, err := l.QueueRefresh(ctx, q, nil)
	require.NoError(t, err)
	assert.Len(t, ids, 2, "collectibles have no market feed")

	require.NoError(t, q.Wait(ctx))
	require.NoError(t, q.Stop(ctx))

	aapl, err := db.GetAssetByTicker(ctx, "AAPL")
	require.NoError(t, err)
	assert.True(t, aapl.CurrentPrice.Decimal.Equal(dec("190")))
	assert.Equal(t, "Apple Inc.", aapl.Name)
	assert.True(t, aapl.LastPriceUpdate.Equal(now.Add(time.Hour)))

	dead, err := db.GetAssetByTicker(ctx, "DEAD")
	require.NoError(t, err)
	assert.True(t, dead.CurrentPrice.Decimal.Equal(dec("10")), "failed refresh keeps the cached price")

	failed, err := jobStore.ListJobs(ctx, jobs.JobFilter{Status: jobs.JobStatusFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "DEAD", failed[0].Ticker)
	assert.Equal(t, jobs.DefaultMaxRetries, failed[0].RetryCount)
}

func TestHandleJob_DropsDeletedAssets(t *testing.T) {
	_, l, _ := setup(t, nil)
	err := l.HandleJob(context.Background(), &jobs.RefreshPriceJob{AssetID: "gone", Ticker: "GONE"})
	assert.NoError(t, err)
}
