// Package cashflow records money coming in, how it is split across
// categories, and money going out as expenses.
package cashflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/wealth-tracker/internal/domain"
	"github.com/dvloznov/wealth-tracker/internal/store"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Service records cash transactions and expenses.
type Service struct {
	repo store.Repository
	log  zerolog.Logger
	now  func() time.Time
}

// NewService creates a cash flow Service.
func NewService(repo store.Repository, log zerolog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With().Str("component", "cashflow").Logger(),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// AllocationInput assigns part of an inflow to a category and optionally a
// savings goal.
type AllocationInput struct {
	Category      domain.CategoryID
	Amount        decimal.Decimal
	SavingsGoalID string
}

// MoneyRequest describes an inflow.
type MoneyRequest struct {
	Amount      decimal.Decimal
	Date        *time.Time // effective date, defaults to now
	Description string
	Allocations []AllocationInput
}

// MoneyResult is the stored transaction and the part of it no allocation
// covers. Unallocated is negative when the allocations exceed the amount.
type MoneyResult struct {
	Transaction domain.CashTransaction `json:"transaction"`
	Unallocated decimal.Decimal        `json:"unallocated"`
}

func (r MoneyRequest) validate() error {
	if !r.Amount.IsPositive() {
		return domain.InvalidField("amount", "must be positive")
	}
	if len(r.Allocations) == 0 {
		return domain.MissingField("allocations")
	}
	for _, a := range r.Allocations {
		if strings.TrimSpace(string(a.Category)) == "" {
			return domain.MissingField("allocations.category")
		}
		if a.Amount.IsNegative() {
			return domain.InvalidField("allocations.amount", fmt.Sprintf("for %s must not be negative", a.Category))
		}
	}
	return nil
}

// AddMoney stores an inflow with its allocations in one transaction. Goal
// references are checked first and fail with domain.ErrNotFound. Allocations
// that do not add up to the amount are accepted.
func (s *Service) AddMoney(ctx context.Context, req MoneyRequest) (*MoneyResult, error) {
	if err := req.validate(); err != nil {
		return nil, fmt.Errorf("AddMoney: %w", err)
	}

	date := s.now()
	if req.Date != nil {
		date = req.Date.UTC()
	}

	txn := domain.CashTransaction{
		Amount:      req.Amount,
		Date:        date,
		Description: strings.TrimSpace(req.Description),
		CreatedAt:   s.now(),
	}
	for _, a := range req.Allocations {
		if a.Amount.IsZero() {
			continue
		}
		alloc := domain.Allocation{
			Category: domain.CategoryID(strings.ToLower(strings.TrimSpace(string(a.Category)))),
			Amount:   a.Amount,
		}
		if a.SavingsGoalID != "" {
			id := a.SavingsGoalID
			alloc.SavingsGoalID = &id
		}
		txn.Allocations = append(txn.Allocations, alloc)
	}

	err := s.repo.WithinTx(ctx, func(tx store.Tx) error {
		for _, a := range txn.Allocations {
			if a.SavingsGoalID == nil {
				continue
			}
			if _, err := tx.GetSavingsGoal(ctx, *a.SavingsGoalID); err != nil {
				return err
			}
		}
		return tx.CreateCashTransaction(ctx, &txn)
	})
	if err != nil {
		return nil, fmt.Errorf("AddMoney: %w", err)
	}

	res := &MoneyResult{Transaction: txn, Unallocated: txn.Unallocated()}
	ev := s.log.Info()
	if !res.Unallocated.IsZero() {
		ev = s.log.Warn()
	}
	ev.Str("transaction_id", txn.ID).
		Str("amount", txn.Amount.String()).
		Str("unallocated", res.Unallocated.String()).
		Msg("recorded inflow")
	return res, nil
}

// ExpenseRequest describes an expense.
type ExpenseRequest struct {
	Amount      decimal.Decimal
	Description string
	Date        *time.Time
	Category    string
}

// AddExpense stores an expense with a normalized description.
func (s *Service) AddExpense(ctx context.Context, req ExpenseRequest) (*domain.Expense, error) {
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("AddExpense: %w", domain.InvalidField("amount", "must be positive"))
	}
	desc := NormalizeDescription(req.Description)
	if desc == "" {
		return nil, fmt.Errorf("AddExpense: %w", domain.MissingField("description"))
	}
	category := strings.TrimSpace(req.Category)
	if category == "" {
		return nil, fmt.Errorf("AddExpense: %w", domain.MissingField("category"))
	}

	date := s.now()
	if req.Date != nil {
		date = req.Date.UTC()
	}

	e := &domain.Expense{
		Amount:      req.Amount,
		Description: desc,
		Date:        date,
		Category:    category,
	}
	if err := s.repo.CreateExpense(ctx, e); err != nil {
		return nil, fmt.Errorf("AddExpense: %w", err)
	}

	s.log.Info().Str("expense_id", e.ID).Str("amount", e.Amount.String()).Str("category", category).Msg("recorded expense")
	return e, nil
}

var titleCaser = cases.Title(language.Und)

// NormalizeDescription trims the text and title-cases it. Text wrapped in
// matching single or double quotes is kept verbatim without the quotes.
func NormalizeDescription(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if first == last && (first == '"' || first == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return titleCaser.String(s)
}

// GoalRequest describes a new savings goal.
type GoalRequest struct {
	Name     string
	Target   decimal.Decimal
	Deadline *time.Time
	Color    string // defaults to domain.DefaultGoalColor
}

// AddGoal creates a savings goal.
func (s *Service) AddGoal(ctx context.Context, req GoalRequest) (*domain.SavingsGoal, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("AddGoal: %w", domain.MissingField("name"))
	}
	if !req.Target.IsPositive() {
		return nil, fmt.Errorf("AddGoal: %w", domain.InvalidField("targetAmount", "must be positive"))
	}

	g := &domain.SavingsGoal{
		Name:         name,
		TargetAmount: req.Target,
		Deadline:     req.Deadline,
		Color:        strings.TrimSpace(req.Color),
	}
	if err := s.repo.CreateSavingsGoal(ctx, g); err != nil {
		return nil, fmt.Errorf("AddGoal: %w", err)
	}

	s.log.Info().Str("goal_id", g.ID).Str("name", g.Name).Msg("created savings goal")
	return g, nil
}

// GoalSummary is a goal with the allocations that fund it.
type GoalSummary struct {
	Goal        domain.SavingsGoal
	Allocations []domain.Allocation
}

// Goals lists every savings goal with its linked allocations.
func (s *Service) Goals(ctx context.Context) ([]GoalSummary, error) {
	goals, err := s.repo.ListSavingsGoals(ctx)
	if err != nil {
		return nil, fmt.Errorf("Goals: %w", err)
	}

	out := make([]GoalSummary, 0, len(goals))
	for _, g := range goals {
		allocs, err := s.repo.ListAllocations(ctx, store.AllocationFilter{SavingsGoalID: g.ID})
		if err != nil {
			return nil, fmt.Errorf("Goals: allocations of %s: %w", g.Name, err)
		}
		out = append(out, GoalSummary{Goal: g, Allocations: allocs})
	}
	return out, nil
}
