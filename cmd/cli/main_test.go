package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/dvloznov/wealth-tracker/internal/cashflow"
	"github.com/dvloznov/wealth-tracker/internal/domain"
	"github.com/dvloznov/wealth-tracker/internal/jobs"
	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var decimalEqual = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

func newGlobals(t *testing.T) (*Globals, *bytes.Buffer) {
	t.Helper()
	// Nothing listens here, so quotes fail fast and trades keep their price.
	t.Setenv("PRICE_API_URL", "http://127.0.0.1:1")

	dir := t.TempDir()
	out := &bytes.Buffer{}
	return &Globals{
		EnvFile:  filepath.Join(dir, "absent.env"),
		DB:       filepath.Join(dir, "wealth.db"),
		LogLevel: "error",
		JSON:     true,
		Out:      out,
	}, out
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{"2024-03-01", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), false},
		{"2024-03-01T09:30", time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC), false},
		{"2024-03-01T10:00:00+01:00", time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC), false},
		{"01/03/2024", time.Time{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseDate(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.True(t, tt.want.Equal(*got), "got %s", got)
		})
	}

	none, err := parseDate("  ")
	require.NoError(t, err)
	assert.Nil(t, none)

	today, err := parseDate("today")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), *today, time.Minute)
}

func TestParseAllocations(t *testing.T) {
	got, err := parseAllocations([]string{"future=600", " savings = 150.5"}, []string{"goal-1=50"})
	require.NoError(t, err)

	want := []cashflow.AllocationInput{
		{Category: domain.CategoryFuture, Amount: d("600")},
		{Category: domain.CategorySavings, Amount: d("150.5")},
		{Category: domain.CategorySavings, Amount: d("50"), SavingsGoalID: "goal-1"},
	}
	if diff := cmp.Diff(want, got, decimalEqual); diff != "" {
		t.Errorf("allocations mismatch (-want +got):\n%s", diff)
	}

	for _, bad := range []string{"future", "=10", "future=lots"} {
		_, err := parseAllocations([]string{bad}, nil)
		assert.Error(t, err, bad)
	}
}

func TestParseAssetTypesAndRisk(t *testing.T) {
	types, err := parseAssetTypes([]string{"crypto", " ETF "})
	require.NoError(t, err)
	assert.Equal(t, []domain.AssetType{domain.AssetTypeCrypto, domain.AssetTypeETF}, types)

	_, err = parseAssetTypes([]string{"bond"})
	assert.Error(t, err)

	r, err := parseRisk("extreme")
	require.NoError(t, err)
	assert.Equal(t, domain.RiskExtreme, r)

	r, err = parseRisk("")
	require.NoError(t, err)
	assert.Empty(t, r)

	_, err = parseRisk("spicy")
	assert.Error(t, err)
}

func TestViewTypes(t *testing.T) {
	assert.Equal(t, domain.StockAssetTypes, viewTypes("stocks"))
	assert.Equal(t, domain.FutureAssetTypes, viewTypes("future"))
	assert.Nil(t, viewTypes("all"))
}

func TestEditHoldingRequest(t *testing.T) {
	cmd := EditHoldingCmd{Ticker: "AAPL", AvgCost: "120", Risk: "low", VestingMonths: -1}
	req, err := cmd.request()
	require.NoError(t, err)

	assert.Nil(t, req.Quantity)
	require.NotNil(t, req.AvgCost)
	assert.True(t, req.AvgCost.Equal(d("120")))
	require.NotNil(t, req.RiskLevel)
	assert.Equal(t, domain.RiskLow, *req.RiskLevel)
	assert.Nil(t, req.VestingMonths)
	assert.Nil(t, req.Name)

	cmd.VestingMonths = 0
	req, err = cmd.request()
	require.NoError(t, err)
	require.NotNil(t, req.VestingMonths)
	assert.Zero(t, *req.VestingMonths)

	_, err = (&EditHoldingCmd{Ticker: "AAPL", Quantity: "many"}).request()
	assert.Error(t, err)
}

func TestCommands_EndToEnd(t *testing.T) {
	g, out := newGlobals(t)

	require.NoError(t, (&MigrateCmd{}).Run(g))

	out.Reset()
	require.NoError(t, (&AddMoneyCmd{
		Amount:      "1000",
		Date:        "2024-03-01",
		Description: "salary",
		Alloc:       []string{"future=600", "savings=400"},
	}).Run(g))
	var money struct {
		Unallocated decimal.Decimal `json:"unallocated"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &money))
	assert.True(t, money.Unallocated.IsZero())

	require.NoError(t, (&BuyCmd{
		Ticker:   "btc",
		Type:     "CRYPTO",
		Quantity: "1",
		Price:    "500",
		Date:     "2024-03-02",
	}).Run(g))

	out.Reset()
	require.NoError(t, (&StatsCmd{}).Run(g))
	var snap struct {
		TotalInvested decimal.Decimal                       `json:"totalInvested"`
		TotalNetWorth decimal.Decimal                       `json:"totalNetWorth"`
		Allocations   map[domain.CategoryID]decimal.Decimal `json:"allocations"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &snap))
	assert.True(t, snap.TotalInvested.Equal(d("1000")), "invested = %s", snap.TotalInvested)
	assert.True(t, snap.TotalNetWorth.Equal(d("1000")), "net worth = %s", snap.TotalNetWorth)
	assert.True(t, snap.Allocations[domain.CategoryFuture].Equal(d("600")))

	out.Reset()
	require.NoError(t, (&HoldingsCmd{View: "future"}).Run(g))
	var held struct {
		Holdings []domain.AssetHolding `json:"holdings"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &held))
	require.Len(t, held.Holdings, 1)
	assert.Equal(t, "BTC-USD", held.Holdings[0].Asset.Ticker)

	require.NoError(t, (&SellCmd{Ticker: "BTC-USD", Quantity: "1", Price: "700"}).Run(g))

	out.Reset()
	require.NoError(t, (&HoldingsCmd{View: "all"}).Run(g))
	require.NoError(t, json.Unmarshal(out.Bytes(), &held))
	assert.Empty(t, held.Holdings)
}

func TestCommands_TableOutput(t *testing.T) {
	g, out := newGlobals(t)
	g.JSON = false

	require.NoError(t, (&MigrateCmd{}).Run(g))
	require.NoError(t, (&AddExpenseCmd{Amount: "42", Description: "coffee beans", Category: "food"}).Run(g))
	assert.Contains(t, out.String(), `"Coffee Beans"`)

	out.Reset()
	require.NoError(t, (&StatsCmd{}).Run(g))
	assert.Contains(t, out.String(), "$42.00")

	out.Reset()
	require.NoError(t, (&SimulateCmd{Multiple: "2", TaxRate: "10", Invested: "100"}).Run(g))
	assert.Contains(t, out.String(), "$190.00")

	err := (&AddExpenseCmd{Amount: "0", Description: "nothing", Category: "food"}).Run(g)
	assert.ErrorIs(t, err, domain.ErrMissingRequiredField)
}

func TestCommands_Refresh(t *testing.T) {
	g, out := newGlobals(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"chart":{"result":[{"meta":{"symbol":"BTC-USD","regularMarketPrice":64000,"shortName":"Bitcoin USD"}}]}}`))
	}))
	defer srv.Close()
	t.Setenv("PRICE_API_URL", srv.URL)

	require.NoError(t, (&MigrateCmd{}).Run(g))
	require.NoError(t, (&BuyCmd{Ticker: "btc", Type: "crypto", Quantity: "1", Price: "50000"}).Run(g))
	require.NoError(t, (&BuyCmd{Ticker: "btc", Quantity: "1", Price: "70000"}).Run(g))
	assert.Error(t, (&BuyCmd{Ticker: "btc", Type: "bond", Quantity: "1", Price: "1"}).Run(g))

	out.Reset()
	require.NoError(t, (&RefreshCmd{Timeout: 10 * time.Second}).Run(g))
	var refreshed []jobs.RefreshPriceJob
	require.NoError(t, json.Unmarshal(out.Bytes(), &refreshed))
	require.Len(t, refreshed, 1)
	assert.Equal(t, "BTC-USD", refreshed[0].Ticker)
	assert.Equal(t, jobs.JobStatusCompleted, refreshed[0].Status)

	out.Reset()
	require.NoError(t, (&HoldingsCmd{View: "all"}).Run(g))
	var held struct {
		Holdings []domain.AssetHolding `json:"holdings"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &held))
	require.Len(t, held.Holdings, 1)
	assert.True(t, held.Holdings[0].Quantity.Equal(d("2")))
	assert.True(t, held.Holdings[0].AvgCost.Equal(d("60000")))
}
