// Package reconcile folds funding allocations and asset buys into a running
// investment cash balance, forgiving debt that outlives a grace window.
package reconcile

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/dvloznov/wealth-tracker/internal/domain"
	"github.com/shopspring/decimal"
)

// EventKind is the kind of a financial event.
type EventKind string

const (
	// KindAllocation is cash funneled into an investment category.
	KindAllocation EventKind = "ALLOCATION"
	// KindBuy is the cost of acquiring units of an asset.
	KindBuy EventKind = "BUY"
)

// rank orders kinds sharing a timestamp: funding is applied before spending.
func (k EventKind) rank() int {
	if k == KindAllocation {
		return 0
	}
	return 1
}

// Event is one signed cash movement of the investment pool.
type Event struct {
	At     time.Time       `json:"at"`
	Amount decimal.Decimal `json:"amount"` // positive for funding, negative for a buy
	Kind   EventKind       `json:"kind"`
	Label  string          `json:"label"` // audit only, never used in arithmetic
}

// Scope selects which records become events.
type Scope struct {
	Categories []domain.CategoryID
	AssetTypes []domain.AssetType
	Until      *time.Time // inclusive upper bound, nil for all time
}

// InvestmentScope is the scope used by the stats snapshot: the investment
// categories and every investment asset type, up to until.
func InvestmentScope(until *time.Time) Scope {
	return Scope{
		Categories: domain.InvestmentCategories,
		AssetTypes: domain.InvestmentAssetTypes,
		Until:      until,
	}
}

func (s Scope) includes(at time.Time) bool {
	return s.Until == nil || !at.After(*s.Until)
}

// ToEvents converts allocations and asset transactions into a sorted event
// sequence. Allocations outside the scope's categories, sells, and buys of
// assets outside the scope's types are skipped.
func ToEvents(allocations []domain.Allocation, trades []domain.AssetTransaction, scope Scope) []Event {
	events := make([]Event, 0, len(allocations)+len(trades))

	for _, a := range allocations {
		if !slices.Contains(scope.Categories, a.Category) || !scope.includes(a.TransactionDate) {
			continue
		}
		events = append(events, Event{
			At:     a.TransactionDate,
			Amount: a.Amount,
			Kind:   KindAllocation,
			Label:  fmt.Sprintf("Cash Funding (%s)", a.Category),
		})
	}

	for _, t := range trades {
		if t.Side != domain.SideBuy || !slices.Contains(scope.AssetTypes, t.AssetType) || !scope.includes(t.Date) {
			continue
		}
		events = append(events, Event{
			At:     t.Date,
			Amount: t.Cost().Neg(),
			Kind:   KindBuy,
			Label:  fmt.Sprintf("Buy %s %s @ $%s", t.Quantity, t.Ticker, t.PricePerUnit),
		})
	}

	Sort(events)
	return events
}

// Sort orders events by timestamp, allocations before buys on ties, keeping
// input order otherwise.
func Sort(events []Event) {
	slices.SortStableFunc(events, func(a, b Event) int {
		if c := a.At.Compare(b.At); c != 0 {
			return c
		}
		return cmp.Compare(a.Kind.rank(), b.Kind.rank())
	})
}
