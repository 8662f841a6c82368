package sqlite

import (
	"time"

	"github.com/dvloznov/wealth-tracker/internal/domain"
	"github.com/shopspring/decimal"
)

// Money and quantities are stored as TEXT so SQLite's numeric affinity never
// rounds them through a float.

type cashTransactionRow struct {
	ID          string          `gorm:"primaryKey"`
	Amount      decimal.Decimal `gorm:"type:text;not null"`
	Date        time.Time       `gorm:"not null;index"`
	Description string
	CreatedAt   time.Time

	Allocations []allocationRow `gorm:"foreignKey:TransactionID;constraint:OnDelete:CASCADE"`
}

func (cashTransactionRow) TableName() string { return "cash_transactions" }

type allocationRow struct {
	ID            string          `gorm:"primaryKey"`
	TransactionID string          `gorm:"not null;index"`
	Category      string          `gorm:"not null;index"`
	Amount        decimal.Decimal `gorm:"type:text;not null"`
	SavingsGoalID *string         `gorm:"index"`

	SavingsGoal *savingsGoalRow `gorm:"foreignKey:SavingsGoalID;constraint:OnDelete:SET NULL"`
}

func (allocationRow) TableName() string { return "allocations" }

// allocationRecord is an allocation joined with its transaction's date.
type allocationRecord struct {
	ID              string
	TransactionID   string
	Category        string
	Amount          decimal.Decimal
	SavingsGoalID   *string
	TransactionDate time.Time
}

type expenseRow struct {
	ID          string          `gorm:"primaryKey"`
	Amount      decimal.Decimal `gorm:"type:text;not null"`
	Description string
	Date        time.Time `gorm:"not null;index"`
	Category    string    `gorm:"index"`
}

func (expenseRow) TableName() string { return "expenses" }

type savingsGoalRow struct {
	ID           string          `gorm:"primaryKey"`
	Name         string          `gorm:"not null"`
	TargetAmount decimal.Decimal `gorm:"type:text;not null"`
	Deadline     *time.Time
	Color        string
	CreatedAt    time.Time
}

func (savingsGoalRow) TableName() string { return "savings_goals" }

type assetRow struct {
	ID              string              `gorm:"primaryKey"`
	Ticker          string              `gorm:"uniqueIndex;not null"`
	Name            string
	Type            string              `gorm:"not null;index"`
	CurrentPrice    decimal.NullDecimal `gorm:"type:text"`
	LastPriceUpdate *time.Time
	RiskLevel       string `gorm:"not null"`
	VestingStart    *time.Time
	VestingMonths   *int
	CreatedAt       time.Time
}

func (assetRow) TableName() string { return "assets" }

type holdingRow struct {
	ID       string          `gorm:"primaryKey"`
	AssetID  string          `gorm:"uniqueIndex;not null"`
	Quantity decimal.Decimal `gorm:"type:text;not null"`
	AvgCost  decimal.Decimal `gorm:"type:text;not null"`

	Asset *assetRow `gorm:"foreignKey:AssetID;constraint:OnDelete:CASCADE"`
}

func (holdingRow) TableName() string { return "holdings" }

type assetTransactionRow struct {
	ID           string          `gorm:"primaryKey"`
	AssetID      string          `gorm:"not null;index"`
	Side         string          `gorm:"not null"`
	Quantity     decimal.Decimal `gorm:"type:text;not null"`
	PricePerUnit decimal.Decimal `gorm:"type:text;not null"`
	Date         time.Time       `gorm:"not null;index"`

	Asset *assetRow `gorm:"foreignKey:AssetID;constraint:OnDelete:CASCADE"`
}

func (assetTransactionRow) TableName() string { return "asset_transactions" }

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func toCashTransactionRow(t *domain.CashTransaction) cashTransactionRow {
	return cashTransactionRow{
		ID:          t.ID,
		Amount:      t.Amount,
		Date:        t.Date.UTC(),
		Description: t.Description,
		CreatedAt:   t.CreatedAt.UTC(),
	}
}

func (r cashTransactionRow) toDomain() domain.CashTransaction {
	t := domain.CashTransaction{
		ID:          r.ID,
		Amount:      r.Amount,
		Date:        r.Date.UTC(),
		Description: r.Description,
		CreatedAt:   r.CreatedAt.UTC(),
	}
	for _, a := range r.Allocations {
		t.Allocations = append(t.Allocations, domain.Allocation{
			ID:              a.ID,
			TransactionID:   a.TransactionID,
			Category:        domain.CategoryID(a.Category),
			Amount:          a.Amount,
			SavingsGoalID:   a.SavingsGoalID,
			TransactionDate: t.Date,
		})
	}
	return t
}

func toAllocationRow(a domain.Allocation) allocationRow {
	return allocationRow{
		ID:            a.ID,
		TransactionID: a.TransactionID,
		Category:      string(a.Category),
		Amount:        a.Amount,
		SavingsGoalID: a.SavingsGoalID,
	}
}

func (r allocationRecord) toDomain() domain.Allocation {
	return domain.Allocation{
		ID:              r.ID,
		TransactionID:   r.TransactionID,
		Category:        domain.CategoryID(r.Category),
		Amount:          r.Amount,
		SavingsGoalID:   r.SavingsGoalID,
		TransactionDate: r.TransactionDate.UTC(),
	}
}

func toExpenseRow(e *domain.Expense) expenseRow {
	return expenseRow{
		ID:          e.ID,
		Amount:      e.Amount,
		Description: e.Description,
		Date:        e.Date.UTC(),
		Category:    e.Category,
	}
}

func (r expenseRow) toDomain() domain.Expense {
	return domain.Expense{
		ID:          r.ID,
		Amount:      r.Amount,
		Description: r.Description,
		Date:        r.Date.UTC(),
		Category:    r.Category,
	}
}

func toSavingsGoalRow(g *domain.SavingsGoal) savingsGoalRow {
	return savingsGoalRow{
		ID:           g.ID,
		Name:         g.Name,
		TargetAmount: g.TargetAmount,
		Deadline:     utcPtr(g.Deadline),
		Color:        g.Color,
		CreatedAt:    g.CreatedAt.UTC(),
	}
}

func (r savingsGoalRow) toDomain() domain.SavingsGoal {
	return domain.SavingsGoal{
		ID:           r.ID,
		Name:         r.Name,
		TargetAmount: r.TargetAmount,
		Deadline:     utcPtr(r.Deadline),
		Color:        r.Color,
		CreatedAt:    r.CreatedAt.UTC(),
	}
}

func toAssetRow(a *domain.Asset) assetRow {
	return assetRow{
		ID:              a.ID,
		Ticker:          a.Ticker,
		Name:            a.Name,
		Type:            string(a.Type),
		CurrentPrice:    a.CurrentPrice,
		LastPriceUpdate: utcPtr(a.LastPriceUpdate),
		RiskLevel:       string(a.RiskLevel.Normalize()),
		VestingStart:    utcPtr(a.VestingStart),
		VestingMonths:   a.VestingMonths,
		CreatedAt:       a.CreatedAt.UTC(),
	}
}

func (r assetRow) toDomain() domain.Asset {
	return domain.Asset{
		ID:              r.ID,
		Ticker:          r.Ticker,
		Name:            r.Name,
		Type:            domain.AssetType(r.Type),
		CurrentPrice:    r.CurrentPrice,
		LastPriceUpdate: utcPtr(r.LastPriceUpdate),
		RiskLevel:       domain.RiskLevel(r.RiskLevel).Normalize(),
		VestingStart:    utcPtr(r.VestingStart),
		VestingMonths:   r.VestingMonths,
		CreatedAt:       r.CreatedAt.UTC(),
	}
}

func toHoldingRow(h *domain.AssetHolding) holdingRow {
	return holdingRow{
		ID:       h.ID,
		AssetID:  h.AssetID,
		Quantity: h.Quantity,
		AvgCost:  h.AvgCost,
	}
}

func (r holdingRow) toDomain() domain.AssetHolding {
	h := domain.AssetHolding{
		ID:       r.ID,
		AssetID:  r.AssetID,
		Quantity: r.Quantity,
		AvgCost:  r.AvgCost,
	}
	if r.Asset != nil {
		a := r.Asset.toDomain()
		h.Asset = &a
	}
	return h
}

func toAssetTransactionRow(t *domain.AssetTransaction) assetTransactionRow {
	return assetTransactionRow{
		ID:           t.ID,
		AssetID:      t.AssetID,
		Side:         string(t.Side),
		Quantity:     t.Quantity,
		PricePerUnit: t.PricePerUnit,
		Date:         t.Date.UTC(),
	}
}

func (r assetTransactionRow) toDomain() domain.AssetTransaction {
	t := domain.AssetTransaction{
		ID:           r.ID,
		AssetID:      r.AssetID,
		Side:         domain.TradeSide(r.Side),
		Quantity:     r.Quantity,
		PricePerUnit: r.PricePerUnit,
		Date:         r.Date.UTC(),
	}
	if r.Asset != nil {
		t.Ticker = r.Asset.Ticker
		t.AssetType = domain.AssetType(r.Asset.Type)
	}
	return t
}
