package bigquery

import (
	"math/big"
	"sort"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/wealth-tracker/internal/domain"
	"github.com/dvloznov/wealth-tracker/internal/stats"
	"github.com/shopspring/decimal"
)

// numericScale is the number of fractional digits of a BigQuery NUMERIC.
const numericScale = 9

// CategoryAmountRow is one entry of the per-category breakdown.
type CategoryAmountRow struct {
	Category string   `bigquery:"category"` // REQUIRED
	Amount   *big.Rat `bigquery:"amount"`   // REQUIRED NUMERIC
}

// SnapshotRow is one row of the stats_snapshots table.
type SnapshotRow struct {
	SnapshotID   string     `bigquery:"snapshot_id"`   // REQUIRED
	SnapshotDate civil.Date `bigquery:"snapshot_date"` // REQUIRED, the day the figures describe
	TakenTS      time.Time  `bigquery:"taken_ts"`      // REQUIRED

	// AllTime is set when the cash flow figures cover every day, not just
	// SnapshotDate.
	AllTime bool `bigquery:"all_time"`

	TotalInvested *big.Rat `bigquery:"total_invested"`  // REQUIRED NUMERIC
	TotalNetWorth *big.Rat `bigquery:"total_net_worth"` // REQUIRED NUMERIC
	TotalExpenses *big.Rat `bigquery:"total_expenses"`  // REQUIRED NUMERIC

	Allocated      *big.Rat `bigquery:"allocated"`       // NUMERIC
	InvestedCost   *big.Rat `bigquery:"invested_cost"`   // NUMERIC
	UninvestedCash *big.Rat `bigquery:"uninvested_cash"` // NUMERIC
	AssetValue     *big.Rat `bigquery:"asset_value"`     // NUMERIC
	ForgivenDebt   *big.Rat `bigquery:"forgiven_debt"`   // NUMERIC

	Allocations []CategoryAmountRow `bigquery:"allocations"` // REPEATED RECORD
}

// HoldingRow is one row of the holdings table, a position at snapshot time.
type HoldingRow struct {
	SnapshotID   string     `bigquery:"snapshot_id"`   // REQUIRED
	SnapshotDate civil.Date `bigquery:"snapshot_date"` // REQUIRED

	AssetID   string `bigquery:"asset_id"`   // REQUIRED
	Ticker    string `bigquery:"ticker"`     // REQUIRED
	AssetType string `bigquery:"asset_type"` // REQUIRED
	RiskLevel string `bigquery:"risk_level"` // REQUIRED

	Quantity     *big.Rat `bigquery:"quantity"`      // REQUIRED NUMERIC
	AvgCost      *big.Rat `bigquery:"avg_cost"`      // REQUIRED NUMERIC
	CurrentPrice *big.Rat `bigquery:"current_price"` // NULLABLE NUMERIC
	MarketValue  *big.Rat `bigquery:"market_value"`  // REQUIRED NUMERIC

	LastPriceUpdate bigquery.NullTimestamp `bigquery:"last_price_update"` // NULLABLE
}

func toRat(d decimal.Decimal) *big.Rat {
	return d.Round(numericScale).Rat()
}

func fromRat(r *big.Rat) decimal.Decimal {
	if r == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigRat(r, numericScale)
}

// NewSnapshotRow flattens a snapshot. asOf is the day the snapshot was taken
// for, nil when it covers all time.
func NewSnapshotRow(id string, asOf *time.Time, taken time.Time, s stats.Snapshot) *SnapshotRow {
	day := taken
	if asOf != nil {
		day = *asOf
	}

	row := &SnapshotRow{
		SnapshotID:     id,
		SnapshotDate:   civil.DateOf(day.UTC()),
		TakenTS:        taken.UTC(),
		AllTime:        asOf == nil,
		TotalInvested:  toRat(s.TotalInvested),
		TotalNetWorth:  toRat(s.TotalNetWorth),
		TotalExpenses:  toRat(s.TotalExpenses),
		Allocated:      toRat(s.Investment.Allocated),
		InvestedCost:   toRat(s.Investment.InvestedCost),
		UninvestedCash: toRat(s.Investment.UninvestedCash),
		AssetValue:     toRat(s.Investment.AssetValue),
		ForgivenDebt:   toRat(s.Investment.ForgivenDebt),
	}

	for c, amount := range s.Allocations {
		row.Allocations = append(row.Allocations, CategoryAmountRow{Category: string(c), Amount: toRat(amount)})
	}
	sort.Slice(row.Allocations, func(i, j int) bool {
		return row.Allocations[i].Category < row.Allocations[j].Category
	})
	return row
}

// Snapshot rebuilds the figures stored in the row. The replay is not stored.
func (r *SnapshotRow) Snapshot() stats.Snapshot {
	s := stats.Snapshot{
		TotalInvested: fromRat(r.TotalInvested),
		TotalNetWorth: fromRat(r.TotalNetWorth),
		TotalExpenses: fromRat(r.TotalExpenses),
		Allocations:   make(map[domain.CategoryID]decimal.Decimal, len(r.Allocations)),
		Investment: stats.Investment{
			Allocated:      fromRat(r.Allocated),
			InvestedCost:   fromRat(r.InvestedCost),
			UninvestedCash: fromRat(r.UninvestedCash),
			AssetValue:     fromRat(r.AssetValue),
			ForgivenDebt:   fromRat(r.ForgivenDebt),
		},
	}
	for _, a := range r.Allocations {
		s.Allocations[domain.CategoryID(a.Category)] = fromRat(a.Amount)
	}
	return s
}

// NewHoldingRows flattens holdings for one snapshot. Holdings without a
// loaded asset are skipped.
func NewHoldingRows(id string, day civil.Date, holdings []domain.AssetHolding) []*HoldingRow {
	rows := make([]*HoldingRow, 0, len(holdings))
	for _, h := range holdings {
		if h.Asset == nil {
			continue
		}
		row := &HoldingRow{
			SnapshotID:   id,
			SnapshotDate: day,
			AssetID:      h.AssetID,
			Ticker:       h.Asset.Ticker,
			AssetType:    string(h.Asset.Type),
			RiskLevel:    string(h.Asset.RiskLevel.Normalize()),
			Quantity:     toRat(h.Quantity),
			AvgCost:      toRat(h.AvgCost),
			MarketValue:  toRat(h.MarketValue()),
		}
		if h.Asset.CurrentPrice.Valid {
			row.CurrentPrice = toRat(h.Asset.CurrentPrice.Decimal)
		}
		if h.Asset.LastPriceUpdate != nil {
			row.LastPriceUpdate = bigquery.NullTimestamp{Timestamp: h.Asset.LastPriceUpdate.UTC(), Valid: true}
		}
		rows = append(rows, row)
	}
	return rows
}
