package sqlite

import (
	"context"
	"fmt"

	"github.com/dvloznov/wealth-tracker/internal/domain"
	"github.com/dvloznov/wealth-tracker/internal/store"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateCashTransaction inserts the transaction and its allocations atomically.
func (q *queries) CreateCashTransaction(ctx context.Context, t *domain.CashTransaction) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	row := toCashTransactionRow(t)

	allocs := make([]allocationRow, 0, len(t.Allocations))
	for i := range t.Allocations {
		a := &t.Allocations[i]
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		a.TransactionID = t.ID
		a.TransactionDate = row.Date
		allocs = append(allocs, toAllocationRow(*a))
	}

	err := q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(&row).Error; err != nil {
			return fmt.Errorf("inserting transaction: %w", err)
		}
		if len(allocs) == 0 {
			return nil
		}
		if err := tx.Omit(clause.Associations).Create(&allocs).Error; err != nil {
			return fmt.Errorf("inserting allocations: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("CreateCashTransaction: %w", err)
	}
	t.CreatedAt = row.CreatedAt.UTC()
	return nil
}

// ListCashTransactions returns the transactions dated inside r, oldest first.
func (q *queries) ListCashTransactions(ctx context.Context, r store.Range) ([]domain.CashTransaction, error) {
	var rows []cashTransactionRow
	db := inRange(q.db.WithContext(ctx), "date", r).
		Preload("Allocations", func(db *gorm.DB) *gorm.DB { return db.Order("allocations.rowid") }).
		Order("date ASC").
		Order("rowid ASC")
	if err := db.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("ListCashTransactions: querying: %w", err)
	}

	out := make([]domain.CashTransaction, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// ListAllocations returns allocations joined with their transaction's date.
func (q *queries) ListAllocations(ctx context.Context, f store.AllocationFilter) ([]domain.Allocation, error) {
	db := q.db.WithContext(ctx).
		Table("allocations").
		Select("allocations.id, allocations.transaction_id, allocations.category, allocations.amount, " +
			"allocations.savings_goal_id, cash_transactions.date AS transaction_date").
		Joins("JOIN cash_transactions ON cash_transactions.id = allocations.transaction_id")
	db = inRange(db, "cash_transactions.date", f.Range)

	if len(f.Categories) > 0 {
		cats := make([]string, len(f.Categories))
		for i, c := range f.Categories {
			cats[i] = string(c)
		}
		db = db.Where("allocations.category IN ?", cats)
	}
	if f.SavingsGoalID != "" {
		db = db.Where("allocations.savings_goal_id = ?", f.SavingsGoalID)
	}

	var recs []allocationRecord
	if err := db.Order("cash_transactions.date ASC").Order("allocations.rowid ASC").Scan(&recs).Error; err != nil {
		return nil, fmt.Errorf("ListAllocations: querying: %w", err)
	}

	out := make([]domain.Allocation, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (q *queries) CreateExpense(ctx context.Context, e *domain.Expense) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	row := toExpenseRow(e)
	if err := q.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("CreateExpense: inserting: %w", err)
	}
	return nil
}

func (q *queries) ListExpenses(ctx context.Context, r store.Range) ([]domain.Expense, error) {
	var rows []expenseRow
	if err := inRange(q.db.WithContext(ctx), "date", r).Order("date ASC").Order("rowid ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("ListExpenses: querying: %w", err)
	}

	out := make([]domain.Expense, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (q *queries) CreateSavingsGoal(ctx context.Context, g *domain.SavingsGoal) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if g.Color == "" {
		g.Color = domain.DefaultGoalColor
	}
	row := toSavingsGoalRow(g)
	if err := q.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("CreateSavingsGoal: inserting: %w", err)
	}
	g.CreatedAt = row.CreatedAt.UTC()
	return nil
}

func (q *queries) GetSavingsGoal(ctx context.Context, id string) (*domain.SavingsGoal, error) {
	var row savingsGoalRow
	if err := q.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, fmt.Errorf("GetSavingsGoal: %w", notFound(err, "savings goal", id))
	}
	g := row.toDomain()
	return &g, nil
}

func (q *queries) ListSavingsGoals(ctx context.Context) ([]domain.SavingsGoal, error) {
	var rows []savingsGoalRow
	if err := q.db.WithContext(ctx).Order("created_at ASC").Order("rowid ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("ListSavingsGoals: querying: %w", err)
	}

	out := make([]domain.SavingsGoal, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}
