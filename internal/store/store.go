// Package store defines the storage contracts consumed by the wealth tracker
// services. Implementations live under internal/infra.
package store

import (
	"context"
	"time"

	"github.com/dvloznov/wealth-tracker/internal/domain"
)

// Range is an inclusive time window. A nil bound is open.
type Range struct {
	From *time.Time
	To   *time.Time
}

// Until returns a range open at the start and closed at t.
func Until(t time.Time) Range {
	return Range{To: &t}
}

// Day returns the range covering the calendar day of t in UTC, from
// midnight to the last nanosecond.
func Day(t time.Time) Range {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1).Add(-time.Nanosecond)
	return Range{From: &start, To: &end}
}

// Contains reports whether t falls inside the range.
func (r Range) Contains(t time.Time) bool {
	if r.From != nil && t.Before(*r.From) {
		return false
	}
	if r.To != nil && t.After(*r.To) {
		return false
	}
	return true
}

// AllocationFilter selects allocations. Zero values match everything.
type AllocationFilter struct {
	Range         Range // on the parent transaction's date
	Categories    []domain.CategoryID
	SavingsGoalID string
}

// TradeFilter selects asset transactions. Zero values match everything.
type TradeFilter struct {
	AssetID    string
	Side       domain.TradeSide
	AssetTypes []domain.AssetType
	Range      Range
}

// CashStore persists cash transactions and their allocations.
type CashStore interface {
	// CreateCashTransaction inserts the transaction together with its
	// allocations. IDs are assigned when empty.
	CreateCashTransaction(ctx context.Context, tx *domain.CashTransaction) error

	// ListCashTransactions returns transactions dated inside r, oldest first,
	// with their allocations loaded.
	ListCashTransactions(ctx context.Context, r Range) ([]domain.CashTransaction, error)

	// ListAllocations returns matching allocations ordered by transaction date,
	// each carrying its transaction's date.
	ListAllocations(ctx context.Context, f AllocationFilter) ([]domain.Allocation, error)
}

// ExpenseStore persists expenses.
type ExpenseStore interface {
	CreateExpense(ctx context.Context, e *domain.Expense) error
	ListExpenses(ctx context.Context, r Range) ([]domain.Expense, error)
}

// GoalStore reads and creates savings goals.
type GoalStore interface {
	CreateSavingsGoal(ctx context.Context, g *domain.SavingsGoal) error

	// GetSavingsGoal returns domain.ErrNotFound when no goal has the id.
	GetSavingsGoal(ctx context.Context, id string) (*domain.SavingsGoal, error)

	ListSavingsGoals(ctx context.Context) ([]domain.SavingsGoal, error)
}

// AssetStore persists assets.
type AssetStore interface {
	CreateAsset(ctx context.Context, a *domain.Asset) error
	UpdateAsset(ctx context.Context, a *domain.Asset) error

	// GetAsset and GetAssetByTicker return domain.ErrNotFound when absent.
	GetAsset(ctx context.Context, id string) (*domain.Asset, error)
	GetAssetByTicker(ctx context.Context, ticker string) (*domain.Asset, error)

	// ListAssets returns assets of the given types ordered by ticker.
	// An empty types slice lists every asset.
	ListAssets(ctx context.Context, types []domain.AssetType) ([]domain.Asset, error)

	// DeleteAsset removes the asset, its holding and its transactions.
	DeleteAsset(ctx context.Context, id string) error
}

// HoldingStore persists holdings.
type HoldingStore interface {
	CreateHolding(ctx context.Context, h *domain.AssetHolding) error
	UpdateHolding(ctx context.Context, h *domain.AssetHolding) error
	DeleteHolding(ctx context.Context, id string) error

	// GetHoldingByAsset returns domain.ErrNotFound when the asset has no holding.
	GetHoldingByAsset(ctx context.Context, assetID string) (*domain.AssetHolding, error)

	// ListHoldings returns holdings of the given asset types with their asset
	// loaded, ordered by ticker. An empty types slice lists every holding.
	ListHoldings(ctx context.Context, types []domain.AssetType) ([]domain.AssetHolding, error)
}

// TradeStore persists asset transactions.
type TradeStore interface {
	CreateAssetTransaction(ctx context.Context, t *domain.AssetTransaction) error

	// ListAssetTransactions returns matching transactions oldest first, with
	// ticker and asset type filled from the owning asset.
	ListAssetTransactions(ctx context.Context, f TradeFilter) ([]domain.AssetTransaction, error)

	// DeleteAssetTransactions removes the asset's transactions of one side and
	// reports how many were deleted.
	DeleteAssetTransactions(ctx context.Context, assetID string, side domain.TradeSide) (int64, error)
}

// Tx is the set of stores available inside a unit of work.
type Tx interface {
	CashStore
	ExpenseStore
	GoalStore
	AssetStore
	HoldingStore
	TradeStore
}

// Repository is the storage collaborator. Calls made directly on it run in
// their own implicit transaction; WithinTx groups several calls atomically.
type Repository interface {
	Tx

	// WithinTx runs fn in a transaction. The transaction commits when fn
	// returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error

	// Export dumps every stored record.
	Export(ctx context.Context) (*Dump, error)

	Close() error
}

// Dump is a full export of the stored records, used for backups.
type Dump struct {
	ExportedAt        time.Time                 `json:"exportedAt"`
	Transactions      []domain.CashTransaction  `json:"transactions"`
	Expenses          []domain.Expense          `json:"expenses"`
	SavingsGoals      []domain.SavingsGoal      `json:"savingsGoals"`
	Assets            []domain.Asset            `json:"assets"`
	Holdings          []domain.AssetHolding     `json:"holdings"`
	AssetTransactions []domain.AssetTransaction `json:"assetTransactions"`
}
