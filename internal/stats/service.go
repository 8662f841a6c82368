package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/wealth-tracker/internal/domain"
	"github.com/dvloznov/wealth-tracker/internal/reconcile"
	"github.com/dvloznov/wealth-tracker/internal/store"
	"github.com/rs/zerolog"
)

// Source is the read side of the storage a snapshot is loaded from.
type Source interface {
	store.CashStore
	store.ExpenseStore
	store.HoldingStore
	store.TradeStore
}

// Service loads records and computes snapshots.
type Service struct {
	src   Source
	log   zerolog.Logger
	grace time.Duration
}

// NewService creates a stats Service using the default grace window.
func NewService(src Source, log zerolog.Logger) *Service {
	return &Service{
		src:   src,
		log:   log.With().Str("component", "stats").Logger(),
		grace: reconcile.GraceWindow,
	}
}

// Period returns the cash flow range and the history bound for asOf. A nil
// asOf covers all time for both.
func Period(asOf *time.Time) (flow store.Range, until *time.Time) {
	if asOf == nil {
		return store.Range{}, nil
	}
	flow = store.Day(*asOf)
	end := *flow.To
	return flow, &end
}

// Load fetches the inputs of the snapshot for the day of asOf, or for all
// time when asOf is nil.
func (s *Service) Load(ctx context.Context, asOf *time.Time) (Inputs, error) {
	flow, until := Period(asOf)
	history := store.Range{To: until}

	in := Inputs{Until: until, GraceWindow: s.grace}
	var err error

	if in.Transactions, err = s.src.ListCashTransactions(ctx, flow); err != nil {
		return in, fmt.Errorf("Load: transactions: %w", err)
	}
	if in.Allocations, err = s.src.ListAllocations(ctx, store.AllocationFilter{Range: flow}); err != nil {
		return in, fmt.Errorf("Load: allocations: %w", err)
	}
	if in.Expenses, err = s.src.ListExpenses(ctx, flow); err != nil {
		return in, fmt.Errorf("Load: expenses: %w", err)
	}

	in.HistoryAllocations, err = s.src.ListAllocations(ctx, store.AllocationFilter{
		Range:      history,
		Categories: domain.InvestmentCategories,
	})
	if err != nil {
		return in, fmt.Errorf("Load: investment allocations: %w", err)
	}
	in.HistoryTrades, err = s.src.ListAssetTransactions(ctx, store.TradeFilter{
		Side:       domain.SideBuy,
		AssetTypes: domain.InvestmentAssetTypes,
		Range:      history,
	})
	if err != nil {
		return in, fmt.Errorf("Load: investment buys: %w", err)
	}

	if in.Holdings, err = s.src.ListHoldings(ctx, nil); err != nil {
		return in, fmt.Errorf("Load: holdings: %w", err)
	}
	return in, nil
}

// Snapshot computes the dashboard snapshot for the day of asOf, or for all
// time when asOf is nil.
func (s *Service) Snapshot(ctx context.Context, asOf *time.Time) (Snapshot, error) {
	in, err := s.Load(ctx, asOf)
	if err != nil {
		return Snapshot{}, fmt.Errorf("Snapshot: %w", err)
	}

	snap := Compute(in)
	s.log.Debug().
		Int("events", snap.Replay.Events).
		Str("forgiven_debt", snap.Investment.ForgivenDebt.String()).
		Str("net_worth", snap.TotalNetWorth.String()).
		Msg("computed snapshot")
	return snap, nil
}

// Explain computes the breakdown of total invested for the day of asOf.
func (s *Service) Explain(ctx context.Context, asOf *time.Time) (Explanation, error) {
	snap, err := s.Snapshot(ctx, asOf)
	if err != nil {
		return Explanation{}, fmt.Errorf("Explain: %w", err)
	}
	return ExplainInvested(snap), nil
}

// Diagnostic is the investment pool replay together with its input events.
type Diagnostic struct {
	Events []reconcile.Event `json:"events"`
	Result reconcile.Result  `json:"result"`
}

// Diagnose returns the replayed investment events for the day of asOf.
func (s *Service) Diagnose(ctx context.Context, asOf *time.Time) (Diagnostic, error) {
	in, err := s.Load(ctx, asOf)
	if err != nil {
		return Diagnostic{}, fmt.Errorf("Diagnose: %w", err)
	}

	events := reconcile.ToEvents(in.HistoryAllocations, in.HistoryTrades, reconcile.InvestmentScope(in.Until))
	return Diagnostic{Events: events, Result: reconcile.Replay(events, s.grace)}, nil
}
