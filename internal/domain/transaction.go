package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CashTransaction is one inflow of money split across categories.
// The allocations are not required to add up to Amount; whatever is left
// over (or overdrawn) is reported as unallocated.
type CashTransaction struct {
	ID          string          `json:"id"`
	Amount      decimal.Decimal `json:"amount"`
	Date        time.Time       `json:"date"`       // effective date of the inflow
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"createdAt"` // when it was recorded, not when it happened
	Allocations []Allocation    `json:"allocations,omitempty"`
}

// Allocated returns the sum of the transaction's allocations.
func (t CashTransaction) Allocated() decimal.Decimal {
	total := decimal.Zero
	for _, a := range t.Allocations {
		total = total.Add(a.Amount)
	}
	return total
}

// Unallocated returns the part of Amount not assigned to any category.
// It is negative when the transaction is over-allocated.
func (t CashTransaction) Unallocated() decimal.Decimal {
	return t.Amount.Sub(t.Allocated())
}

// Allocation is the portion of a cash transaction assigned to one category
// and, optionally, one savings goal.
type Allocation struct {
	ID            string          `json:"id"`
	TransactionID string          `json:"transactionId"`
	Category      CategoryID      `json:"schemaId"`
	Amount        decimal.Decimal `json:"amount"`
	SavingsGoalID *string         `json:"savingsGoalId,omitempty"`

	// TransactionDate is the parent transaction's effective date, filled
	// when the allocation is loaded. It is never written back.
	TransactionDate time.Time `json:"transactionDate"`
}

// Expense is a debit against a spending category.
type Expense struct {
	ID          string          `json:"id"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Date        time.Time       `json:"date"`
	Category    string          `json:"category"`
}

// SavingsGoal has no stored progress: its current amount is always the sum of
// the allocations that reference it.
type SavingsGoal struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	TargetAmount decimal.Decimal `json:"targetAmount"`
	Deadline     *time.Time      `json:"deadline,omitempty"`
	Color        string          `json:"color"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// DefaultGoalColor is used when a goal is created without a color.
const DefaultGoalColor = "#10B981"
