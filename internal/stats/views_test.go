package stats

import (
	"testing"
	"time"

	"github.com/dvloznov/wealth-tracker/internal/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoalProgress(t *testing.T) {
	house := "house"
	car := "car"
	allocs := []domain.Allocation{
		{Category: domain.CategorySavings, Amount: d("200"), SavingsGoalID: &house},
		{Category: domain.CategorySavings, Amount: d("100"), SavingsGoalID: &house},
		{Category: domain.CategorySavings, Amount: d("999"), SavingsGoalID: &car},
		{Category: domain.CategorySavings, Amount: d("50")},
	}

	tests := []struct {
		name          string
		target        string
		wantPercent   string
		wantRemaining string
	}{
		{"partial", "5000", "6", "4700"},
		{"reached", "250", "100", "0"},
		{"no target", "0", "0", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GoalProgress(domain.SavingsGoal{ID: house, TargetAmount: d(tt.target)}, allocs)
			assert.True(t, got.Current.Equal(d("300")), "current = %s", got.Current)
			assert.True(t, got.Percent.Equal(d(tt.wantPercent)), "percent = %s", got.Percent)
			assert.True(t, got.Remaining.Equal(d(tt.wantRemaining)), "remaining = %s", got.Remaining)
		})
	}
}

func TestRiskExposure(t *testing.T) {
	low := holdingOf("VOO", domain.AssetTypeETF, "1", "300", nil)
	low.Asset.RiskLevel = domain.RiskLow
	extreme := holdingOf("DOGE-USD", domain.AssetTypeCrypto, "1000", "0.1", ptr("0.1"))
	extreme.Asset.RiskLevel = domain.RiskExtreme
	unknown := holdingOf("ART", domain.AssetTypeCollectible, "1", "600", nil)

	got := RiskExposure([]domain.AssetHolding{low, extreme, unknown})

	want := []RiskBucket{
		{Level: domain.RiskLow, Value: d("300"), Percent: d("30")},
		{Level: domain.RiskMedium, Value: decimal.Zero, Percent: decimal.Zero},
		{Level: domain.RiskHigh, Value: d("600"), Percent: d("60")},
		{Level: domain.RiskExtreme, Value: d("100"), Percent: d("10")},
	}
	if diff := cmp.Diff(want, got, decimalEqual); diff != "" {
		t.Errorf("exposure mismatch (-want +got):\n%s", diff)
	}

	for _, b := range RiskExposure(nil) {
		assert.True(t, b.Percent.IsZero(), "%s percent with nothing held", b.Level)
	}
}

func TestVestingProgress(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	asset := domain.Asset{Ticker: "ACME", VestingStart: &start, VestingMonths: ptr(12)}

	tests := []struct {
		name string
		now  time.Time
		want string
	}{
		{"before start", start.AddDate(0, -1, 0), "0"},
		{"half way", time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), "49.73"},
		{"done", start.AddDate(2, 0, 0), "100"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := VestingProgress(asset, tt.now)
			require.NotNil(t, got)
			assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), got.End)
			assert.True(t, got.Percent.Equal(d(tt.want)), "percent = %s", got.Percent)
		})
	}

	assert.Nil(t, VestingProgress(domain.Asset{Ticker: "NONE"}, start))
	assert.Nil(t, VestingProgress(domain.Asset{VestingStart: &start, VestingMonths: ptr(0)}, start))
}

func TestPortfolioSummary(t *testing.T) {
	holdings := []domain.AssetHolding{
		holdingOf("AAPL", domain.AssetTypeStock, "10", "150", ptr("180")),
		holdingOf("VOO", domain.AssetTypeETF, "2", "400", ptr("380")),
		holdingOf("BTC-USD", domain.AssetTypeCrypto, "1", "30000", ptr("60000")),
	}

	stocks := PortfolioSummary(holdings, domain.StockAssetTypes)
	assert.Equal(t, 2, stocks.Positions)
	assert.True(t, stocks.MarketValue.Equal(d("2560")))
	assert.True(t, stocks.CostBasis.Equal(d("2300")))
	assert.True(t, stocks.UnrealizedPL.Equal(d("260")))

	all := PortfolioSummary(holdings, nil)
	assert.Equal(t, 3, all.Positions)
	assert.True(t, all.UnrealizedPL.Equal(d("30260")))

	none := PortfolioSummary(nil, nil)
	assert.True(t, none.MarketValue.IsZero())
	assert.True(t, none.UnrealizedPL.IsZero())
}

func TestSimulateExit(t *testing.T) {
	tests := []struct {
		name                string
		invested, mult, tax string
		gross, taxDue, net  string
	}{
		{"ten bagger", "1000", "10", "20", "10000", "1800", "8200"},
		{"break even", "1000", "1", "20", "1000", "0", "1000"},
		{"loss is not taxed", "1000", "0.5", "20", "500", "0", "500"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SimulateExit(d(tt.invested), d(tt.mult), d(tt.tax))
			assert.True(t, got.Gross.Equal(d(tt.gross)), "gross = %s", got.Gross)
			assert.True(t, got.Tax.Equal(d(tt.taxDue)), "tax = %s", got.Tax)
			assert.True(t, got.Net.Equal(d(tt.net)), "net = %s", got.Net)
		})
	}
}

func TestExplainInvested_Scenario(t *testing.T) {
	exp := ExplainInvested(Compute(scenarioInputs()))

	assert.True(t, exp.CashFunding.Equal(d("1600")))
	assert.True(t, exp.ForgivenDebt.Equal(d("250")))
	assert.True(t, exp.TotalInvested.Equal(d("1850")))
	assert.True(t, exp.FinalBalance.Equal(d("-50")))
	require.Len(t, exp.Attributions, 2)
	assert.True(t, exp.Attributions[0].Amount.Equal(d("300")))
	assert.True(t, exp.Attributions[1].Amount.Equal(d("50")))
}
