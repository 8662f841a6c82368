package main

import (
	"fmt"
	"io"
	"time"

	"github.com/dvloznov/wealth-tracker/internal/domain"
	"github.com/dvloznov/wealth-tracker/internal/report"
	"github.com/dvloznov/wealth-tracker/internal/stats"
)

type StatsCmd struct {
	Date string `help:"Report the day of this date instead of all time (YYYY-MM-DD, RFC 3339 or 'today')."`
}

func (c *StatsCmd) Run(g *Globals) error {
	asOf, err := parseDate(c.Date)
	if err != nil {
		return err
	}
	a, err := g.open()
	if err != nil {
		return err
	}
	defer a.Close()

	snap, err := a.stats().Snapshot(a.context(), asOf)
	if err != nil {
		return err
	}
	return a.emit(snap, func(w io.Writer) error { return report.Stats(w, snap) })
}

type ExplainCmd struct {
	Date string `help:"Explain the day of this date instead of all time."`
}

func (c *ExplainCmd) Run(g *Globals) error {
	asOf, err := parseDate(c.Date)
	if err != nil {
		return err
	}
	a, err := g.open()
	if err != nil {
		return err
	}
	defer a.Close()

	exp, err := a.stats().Explain(a.context(), asOf)
	if err != nil {
		return err
	}
	return a.emit(exp, func(w io.Writer) error { return report.Explain(w, exp) })
}

type EventsCmd struct {
	Date string `help:"Replay history up to the end of this day."`
}

func (c *EventsCmd) Run(g *Globals) error {
	asOf, err := parseDate(c.Date)
	if err != nil {
		return err
	}
	a, err := g.open()
	if err != nil {
		return err
	}
	defer a.Close()

	diag, err := a.stats().Diagnose(a.context(), asOf)
	if err != nil {
		return err
	}
	return a.emit(diag, func(w io.Writer) error { return report.Events(w, diag) })
}

type HoldingsCmd struct {
	View string `help:"Which holdings to list." enum:"stocks,future,all" default:"all"`
}

func (c *HoldingsCmd) Run(g *Globals) error {
	a, err := g.open()
	if err != nil {
		return err
	}
	defer a.Close()

	types := viewTypes(c.View)
	hs, err := a.ledger().List(a.context(), types)
	if err != nil {
		return err
	}
	summary := stats.PortfolioSummary(hs, types)
	out := struct {
		Holdings []domain.AssetHolding `json:"holdings"`
		Summary  stats.Portfolio       `json:"summary"`
	}{hs, summary}
	return a.emit(out, func(w io.Writer) error { return report.Holdings(w, hs, summary) })
}

type GoalsCmd struct{}

func (c *GoalsCmd) Run(g *Globals) error {
	a, err := g.open()
	if err != nil {
		return err
	}
	defer a.Close()

	goals, err := a.cashflow().Goals(a.context())
	if err != nil {
		return err
	}
	progress := make([]stats.GoalStatus, 0, len(goals))
	for _, s := range goals {
		progress = append(progress, stats.GoalProgress(s.Goal, s.Allocations))
	}
	return a.emit(progress, func(w io.Writer) error { return report.Goals(w, progress) })
}

type RiskCmd struct{}

func (c *RiskCmd) Run(g *Globals) error {
	a, err := g.open()
	if err != nil {
		return err
	}
	defer a.Close()

	hs, err := a.ledger().List(a.context(), nil)
	if err != nil {
		return err
	}
	buckets := stats.RiskExposure(hs)
	return a.emit(buckets, func(w io.Writer) error { return report.Risk(w, buckets) })
}

type VestingCmd struct{}

func (c *VestingCmd) Run(g *Globals) error {
	a, err := g.open()
	if err != nil {
		return err
	}
	defer a.Close()

	hs, err := a.ledger().List(a.context(), nil)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	var schedules []stats.Vesting
	for _, h := range hs {
		if h.Asset == nil {
			continue
		}
		if v := stats.VestingProgress(*h.Asset, now); v != nil {
			schedules = append(schedules, *v)
		}
	}
	return a.emit(schedules, func(w io.Writer) error { return report.Vesting(w, schedules) })
}

type SimulateCmd struct {
	Multiple string `help:"Exit value as a multiple of the invested amount." default:"10"`
	TaxRate  string `name:"tax-rate" help:"Capital gains tax rate in percent." default:"20"`
	Invested string `help:"Amount invested (defaults to the all-time total invested)."`
}

func (c *SimulateCmd) Run(g *Globals) error {
	multiple, err := parseAmount("multiple", c.Multiple)
	if err != nil {
		return err
	}
	taxRate, err := parseAmount("tax rate", c.TaxRate)
	if err != nil {
		return err
	}
	if multiple.IsNegative() || taxRate.IsNegative() {
		return fmt.Errorf("multiple and tax rate must not be negative")
	}
	invested, err := parseOptionalAmount("invested", c.Invested)
	if err != nil {
		return err
	}

	a, err := g.open()
	if err != nil {
		return err
	}
	defer a.Close()

	if invested == nil {
		snap, err := a.stats().Snapshot(a.context(), nil)
		if err != nil {
			return err
		}
		invested = &snap.TotalInvested
	}
	exit := stats.SimulateExit(*invested, multiple, taxRate)
	return a.emit(exit, func(w io.Writer) error { return report.Exit(w, exit) })
}
