package stats

import (
	"testing"
	"time"

	"github.com/dvloznov/wealth-tracker/internal/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

var decimalEqual = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func txn(at time.Time, amount string, allocs ...domain.Allocation) domain.CashTransaction {
	for i := range allocs {
		allocs[i].TransactionDate = at
	}
	return domain.CashTransaction{Amount: d(amount), Date: at, Allocations: allocs}
}

func allocOf(c domain.CategoryID, amount string) domain.Allocation {
	return domain.Allocation{Category: c, Amount: d(amount)}
}

func flatten(txns ...domain.CashTransaction) []domain.Allocation {
	var out []domain.Allocation
	for _, t := range txns {
		out = append(out, t.Allocations...)
	}
	return out
}

func buyOf(at time.Time, ticker string, typ domain.AssetType, qty, price string) domain.AssetTransaction {
	return domain.AssetTransaction{
		Side: domain.SideBuy, Ticker: ticker, AssetType: typ,
		Quantity: d(qty), PricePerUnit: d(price), Date: at,
	}
}

func holdingOf(ticker string, typ domain.AssetType, qty, avg string, price *string) domain.AssetHolding {
	a := &domain.Asset{Ticker: ticker, Type: typ}
	if price != nil {
		a.CurrentPrice = decimal.NewNullDecimal(d(*price))
	}
	return domain.AssetHolding{Quantity: d(qty), AvgCost: d(avg), Asset: a}
}

func ptr[T any](v T) *T { return &v }

// scenarioInputs funds the pool with 500, buys 800 of crypto 30 minutes
// later, adds 100 before the grace window runs out and buys 50 of a stock
// two hours in.
func scenarioInputs() Inputs {
	txns := []domain.CashTransaction{
		txn(t0, "500", allocOf(domain.CategoryFuture, "500")),
		txn(t0.Add(45*time.Minute), "100", allocOf(domain.CategoryStocks, "100")),
		txn(t0, "1000", allocOf(domain.CategoryExpenses, "200"), allocOf(domain.CategorySavings, "700")),
	}
	allocs := flatten(txns...)
	return Inputs{
		Transactions:       txns,
		Allocations:        allocs,
		Expenses:           []domain.Expense{{Amount: d("50"), Date: t0}},
		HistoryAllocations: allocs,
		HistoryTrades: []domain.AssetTransaction{
			buyOf(t0.Add(30*time.Minute), "BTC-USD", domain.AssetTypeCrypto, "2", "400"),
			buyOf(t0.Add(2*time.Hour), "VOO", domain.AssetTypeStock, "1", "50"),
		},
		Holdings: []domain.AssetHolding{
			holdingOf("BTC-USD", domain.AssetTypeCrypto, "2", "400", ptr("500")),
			holdingOf("VOO", domain.AssetTypeStock, "1", "50", nil),
		},
	}
}

func TestCompute_Scenario(t *testing.T) {
	got := Compute(scenarioInputs())

	want := Snapshot{
		TotalInvested: d("1850"),
		TotalNetWorth: d("2000"),
		TotalExpenses: d("50"),
		Allocations: map[domain.CategoryID]decimal.Decimal{
			domain.CategoryFuture:   d("1050"),
			domain.CategoryStocks:   d("100"),
			domain.CategoryExpenses: d("150"),
			domain.CategorySavings:  d("700"),
		},
		Investment: Investment{
			Allocated:      d("500"),
			InvestedCost:   d("800"),
			UninvestedCash: decimal.Zero,
			AssetValue:     d("1050"),
			ForgivenDebt:   d("250"),
		},
	}
	if diff := cmp.Diff(want, got, decimalEqual, cmpopts.IgnoreFields(Snapshot{}, "Replay")); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, got.Replay.FinalBalance.Equal(d("-50")))
	assert.Equal(t, 4, got.Replay.Events)
}

func TestCompute_Empty(t *testing.T) {
	got := Compute(Inputs{})

	assert.True(t, got.TotalInvested.IsZero())
	assert.True(t, got.TotalNetWorth.IsZero())
	assert.True(t, got.TotalExpenses.IsZero())
	assert.Len(t, got.Allocations, 1)
	assert.True(t, got.Allocations[domain.CategoryFuture].IsZero())
	_, hasExpenses := got.Allocations[domain.CategoryExpenses]
	assert.False(t, hasExpenses, "no expenses and no budget leave the key out")
}

func TestCompute_ExpensesWithoutBudget(t *testing.T) {
	got := Compute(Inputs{
		Expenses: []domain.Expense{{Amount: d("20")}, {Amount: d("5.5")}},
	})
	assert.True(t, got.Allocations[domain.CategoryExpenses].Equal(d("-25.5")))
	assert.True(t, got.TotalNetWorth.Equal(d("-25.5")))
}

func TestCompute_UninvestedCashFeedsFuture(t *testing.T) {
	txns := []domain.CashTransaction{txn(t0, "1000", allocOf(domain.CategoryFuture, "1000"))}
	got := Compute(Inputs{
		Transactions:       txns,
		Allocations:        flatten(txns...),
		HistoryAllocations: flatten(txns...),
		HistoryTrades:      []domain.AssetTransaction{buyOf(t0.Add(time.Minute), "ETH-USD", domain.AssetTypeCrypto, "1", "300")},
		Holdings:           []domain.AssetHolding{holdingOf("ETH-USD", domain.AssetTypeCrypto, "1", "300", ptr("450"))},
	})

	assert.True(t, got.Investment.UninvestedCash.Equal(d("700")))
	assert.True(t, got.Allocations[domain.CategoryFuture].Equal(d("1150")))
	assert.True(t, got.TotalNetWorth.Equal(d("1150")), "raw future allocation replaced by cash plus market value")
	assert.True(t, got.TotalInvested.Equal(d("1000")))
	assert.True(t, got.Investment.ForgivenDebt.IsZero())
}

func TestCompute_UntilBoundsInvestmentHistory(t *testing.T) {
	in := scenarioInputs()
	until := t0.Add(time.Hour)
	in.Until = &until

	got := Compute(in)
	// Only A, B and C are replayed: the 200 still owed is terminal.
	assert.True(t, got.Investment.ForgivenDebt.Equal(d("200")))
	assert.True(t, got.Investment.InvestedCost.Equal(d("800")))
	assert.Equal(t, 3, got.Replay.Events)
}

func TestCompute_SellsIgnored(t *testing.T) {
	txns := []domain.CashTransaction{txn(t0, "100", allocOf(domain.CategoryStocks, "100"))}
	sell := buyOf(t0.Add(time.Minute), "AAPL", domain.AssetTypeStock, "1", "500")
	sell.Side = domain.SideSell

	got := Compute(Inputs{
		Transactions:       txns,
		HistoryAllocations: flatten(txns...),
		HistoryTrades:      []domain.AssetTransaction{sell},
	})
	assert.True(t, got.Investment.UninvestedCash.Equal(d("100")))
	assert.Equal(t, 1, got.Replay.Events)
}
