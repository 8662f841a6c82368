// Package report renders snapshots, holdings and repair results as plain
// text for the terminal.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/Rhymond/go-money"
	"github.com/dvloznov/wealth-tracker/internal/domain"
	"github.com/dvloznov/wealth-tracker/internal/repair"
	"github.com/dvloznov/wealth-tracker/internal/stats"
	"github.com/shopspring/decimal"
)

// Currency is the display currency of every amount.
const Currency = money.USD

// Money formats an amount in the display currency, rounded to cents.
func Money(d decimal.Decimal) string {
	cur := money.GetCurrency(Currency)
	minor := d.Shift(int32(cur.Fraction)).Round(0).IntPart()
	return money.New(minor, Currency).Display()
}

// Percent formats a percentage with one decimal.
func Percent(d decimal.Decimal) string {
	return d.StringFixed(1) + "%"
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// Stats renders a snapshot.
func Stats(w io.Writer, s stats.Snapshot) error {
	tw := newTable(w)
	fmt.Fprintf(tw, "Total invested\t%s\n", Money(s.TotalInvested))
	fmt.Fprintf(tw, "Net worth\t%s\n", Money(s.TotalNetWorth))
	fmt.Fprintf(tw, "Expenses\t%s\n", Money(s.TotalExpenses))

	fmt.Fprintln(tw, "\nCategory\tAmount")
	cats := make([]string, 0, len(s.Allocations))
	for c := range s.Allocations {
		cats = append(cats, string(c))
	}
	sort.Strings(cats)
	for _, c := range cats {
		fmt.Fprintf(tw, "%s\t%s\n", c, Money(s.Allocations[domain.CategoryID(c)]))
	}

	inv := s.Investment
	fmt.Fprintln(tw, "\nInvestments\t")
	fmt.Fprintf(tw, "Allocated\t%s\n", Money(inv.Allocated))
	fmt.Fprintf(tw, "Invested cost\t%s\n", Money(inv.InvestedCost))
	fmt.Fprintf(tw, "Uninvested cash\t%s\n", Money(inv.UninvestedCash))
	fmt.Fprintf(tw, "Asset value\t%s\n", Money(inv.AssetValue))
	fmt.Fprintf(tw, "Self-funded\t%s\n", Money(inv.ForgivenDebt))
	return tw.Flush()
}

// Explain renders the total invested breakdown.
func Explain(w io.Writer, e stats.Explanation) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "=== CASH FUNDING ===")
	fmt.Fprintf(tw, "Cash added via transactions\t%s\n", Money(e.CashFunding))

	fmt.Fprintln(tw, "\n=== SELF-FUNDED ASSETS ===")
	if len(e.Attributions) == 0 {
		fmt.Fprintln(tw, "none")
	}
	for _, a := range e.Attributions {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", Money(a.Amount), a.Label, a.At.Format("2006-01-02"))
	}
	for _, wo := range e.WriteOffs {
		kind := "forgiven after grace window"
		if wo.Terminal {
			kind = "outstanding at end"
		}
		fmt.Fprintf(tw, "write-off %s\t%s\t%s\n", Money(wo.Amount), kind, wo.At.Format("2006-01-02 15:04"))
	}

	fmt.Fprintln(tw, "\n=== TOTAL INVESTED ===")
	fmt.Fprintf(tw, "Cash added\t%s\n", Money(e.CashFunding))
	fmt.Fprintf(tw, "Self-funded assets\t%s\n", Money(e.ForgivenDebt))
	fmt.Fprintf(tw, "Grand total\t%s\n", Money(e.TotalInvested))
	return tw.Flush()
}

// Events renders the replayed investment events.
func Events(w io.Writer, d stats.Diagnostic) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "When\tKind\tAmount\tLabel")
	for _, ev := range d.Events {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", ev.At.Format("2006-01-02 15:04:05"), ev.Kind, Money(ev.Amount), ev.Label)
	}
	fmt.Fprintf(tw, "\nEvents\t%d\n", d.Result.Events)
	fmt.Fprintf(tw, "Final balance\t%s\n", Money(d.Result.FinalBalance))
	fmt.Fprintf(tw, "Uninvested cash\t%s\n", Money(d.Result.UninvestedCash()))
	fmt.Fprintf(tw, "Forgiven debt\t%s\n", Money(d.Result.ForgivenDebt))
	return tw.Flush()
}

// Holdings renders positions followed by their totals.
func Holdings(w io.Writer, holdings []domain.AssetHolding, p stats.Portfolio) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "Ticker\tType\tQuantity\tAvg cost\tPrice\tValue\tP/L")
	for _, h := range holdings {
		if h.Asset == nil {
			continue
		}
		price := "-"
		if h.Asset.CurrentPrice.Valid {
			price = Money(h.Asset.CurrentPrice.Decimal)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			h.Asset.Ticker, h.Asset.Type, h.Quantity, Money(h.AvgCost), price,
			Money(h.MarketValue()), Money(h.MarketValue().Sub(h.CostBasis())))
	}
	fmt.Fprintf(tw, "\nPositions\t%d\n", p.Positions)
	fmt.Fprintf(tw, "Market value\t%s\n", Money(p.MarketValue))
	fmt.Fprintf(tw, "Cost basis\t%s\n", Money(p.CostBasis))
	fmt.Fprintf(tw, "Unrealized P/L\t%s\n", Money(p.UnrealizedPL))
	return tw.Flush()
}

// Goals renders savings goal progress.
func Goals(w io.Writer, goals []stats.GoalStatus) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "Goal\tSaved\tTarget\tProgress\tTo go\tDeadline")
	for _, g := range goals {
		deadline := "-"
		if g.Goal.Deadline != nil {
			deadline = g.Goal.Deadline.Format("2006-01-02")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			g.Goal.Name, Money(g.Current), Money(g.Goal.TargetAmount), Percent(g.Percent), Money(g.Remaining), deadline)
	}
	return tw.Flush()
}

// Risk renders the exposure per risk level as a bar chart.
func Risk(w io.Writer, buckets []stats.RiskBucket) error {
	tw := newTable(w)
	for _, b := range buckets {
		bar := strings.Repeat("#", int(b.Percent.Div(decimal.NewFromInt(5)).IntPart()))
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", b.Level, Money(b.Value), Percent(b.Percent), bar)
	}
	return tw.Flush()
}

// Vesting renders vesting schedules.
func Vesting(w io.Writer, schedules []stats.Vesting) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "Ticker\tStart\tEnd\tVested")
	for _, v := range schedules {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", v.Ticker, v.Start.Format("2006-01-02"), v.End.Format("2006-01-02"), Percent(v.Percent))
	}
	return tw.Flush()
}

// Exit renders a simulated exit.
func Exit(w io.Writer, e stats.Exit) error {
	tw := newTable(w)
	fmt.Fprintf(tw, "Invested\t%s\n", Money(e.Invested))
	fmt.Fprintf(tw, "Gross\t%s\n", Money(e.Gross))
	fmt.Fprintf(tw, "Tax\t%s\n", Money(e.Tax))
	fmt.Fprintf(tw, "Net\t%s\n", Money(e.Net))
	return tw.Flush()
}

// Repair renders the result of a repair run.
func Repair(w io.Writer, r repair.Report) error {
	tw := newTable(w)
	fmt.Fprintf(tw, "Ghost assets removed\t%d\t%s\n", len(r.GhostsRemoved), strings.Join(r.GhostsRemoved, ", "))
	for _, o := range r.Consolidated {
		state := fmt.Sprintf("replaced %d buys", o.Replaced)
		if o.Unchanged {
			state = "unchanged"
		}
		name := o.Ticker
		if name == "" {
			name = o.AssetID
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", name, state, o.Date.Format("2006-01-02"))
	}
	return tw.Flush()
}
