// Package stats derives the dashboard snapshot from cash flows, the
// investment replay and current holdings.
package stats

import (
	"slices"
	"time"

	"github.com/dvloznov/wealth-tracker/internal/domain"
	"github.com/dvloznov/wealth-tracker/internal/reconcile"
	"github.com/shopspring/decimal"
)

// Inputs are the records a snapshot is computed from. Cash flow fields hold
// the records of the reporting period; history fields hold everything up to
// its end.
type Inputs struct {
	Transactions []domain.CashTransaction
	Allocations  []domain.Allocation
	Expenses     []domain.Expense

	HistoryAllocations []domain.Allocation
	HistoryTrades      []domain.AssetTransaction
	Until              *time.Time

	Holdings []domain.AssetHolding

	// GraceWindow defaults to reconcile.GraceWindow when zero.
	GraceWindow time.Duration
}

// Investment is the audit breakdown of the future category.
type Investment struct {
	Allocated      decimal.Decimal `json:"allocated"`
	InvestedCost   decimal.Decimal `json:"investedCost"`
	UninvestedCash decimal.Decimal `json:"uninvestedCash"`
	AssetValue     decimal.Decimal `json:"assetValue"`
	ForgivenDebt   decimal.Decimal `json:"forgivenDebt"`
}

// Snapshot is the dashboard summary.
type Snapshot struct {
	TotalInvested decimal.Decimal                       `json:"totalInvested"`
	TotalNetWorth decimal.Decimal                       `json:"totalNetWorth"`
	TotalExpenses decimal.Decimal                       `json:"totalExpenses"`
	Allocations   map[domain.CategoryID]decimal.Decimal `json:"allocations"`
	Investment    Investment                            `json:"futureStats"`

	// Replay is the investment pool replay the snapshot was built from.
	Replay reconcile.Result `json:"-"`
}

// Compute builds a snapshot. It never fails: missing data contributes zero.
func Compute(in Inputs) Snapshot {
	grace := in.GraceWindow
	if grace <= 0 {
		grace = reconcile.GraceWindow
	}

	cashTotal := decimal.Zero
	for _, t := range in.Transactions {
		cashTotal = cashTotal.Add(t.Amount)
	}

	totalExpenses := decimal.Zero
	for _, e := range in.Expenses {
		totalExpenses = totalExpenses.Add(e.Amount)
	}

	allocations := make(map[domain.CategoryID]decimal.Decimal)
	netWorth := decimal.Zero
	for _, a := range in.Allocations {
		allocations[a.Category] = allocations[a.Category].Add(a.Amount)
		netWorth = netWorth.Add(a.Amount)
	}
	netWorth = netWorth.Sub(totalExpenses)
	rawFuture := allocations[domain.CategoryFuture]

	// What is left of the expenses budget, not what was put into it.
	if _, ok := allocations[domain.CategoryExpenses]; ok || !totalExpenses.IsZero() {
		allocations[domain.CategoryExpenses] = allocations[domain.CategoryExpenses].Sub(totalExpenses)
	}

	events := reconcile.ToEvents(in.HistoryAllocations, in.HistoryTrades, reconcile.InvestmentScope(in.Until))
	replay := reconcile.Replay(events, grace)
	uninvested := replay.UninvestedCash()

	assetValue := decimal.Zero
	for _, h := range in.Holdings {
		assetValue = assetValue.Add(h.MarketValue())
	}

	allocations[domain.CategoryFuture] = uninvested.Add(assetValue)
	netWorth = netWorth.Sub(rawFuture).Add(uninvested).Add(assetValue)

	return Snapshot{
		TotalInvested: cashTotal.Add(replay.ForgivenDebt),
		TotalNetWorth: netWorth,
		TotalExpenses: totalExpenses,
		Allocations:   allocations,
		Investment: Investment{
			Allocated:      futureAllocated(in.HistoryAllocations, in.Until),
			InvestedCost:   futureCost(in.HistoryTrades, in.Until),
			UninvestedCash: uninvested,
			AssetValue:     assetValue,
			ForgivenDebt:   replay.ForgivenDebt,
		},
		Replay: replay,
	}
}

func futureAllocated(allocs []domain.Allocation, until *time.Time) decimal.Decimal {
	total := decimal.Zero
	for _, a := range allocs {
		if a.Category != domain.CategoryFuture || (until != nil && a.TransactionDate.After(*until)) {
			continue
		}
		total = total.Add(a.Amount)
	}
	return total
}

func futureCost(trades []domain.AssetTransaction, until *time.Time) decimal.Decimal {
	total := decimal.Zero
	for _, t := range trades {
		if t.Side != domain.SideBuy || !slices.Contains(domain.FutureAssetTypes, t.AssetType) {
			continue
		}
		if until != nil && t.Date.After(*until) {
			continue
		}
		total = total.Add(t.Cost())
	}
	return total
}
