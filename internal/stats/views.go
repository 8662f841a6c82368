package stats

import (
	"slices"
	"time"

	"github.com/dvloznov/wealth-tracker/internal/domain"
	"github.com/dvloznov/wealth-tracker/internal/reconcile"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// percentOf returns part/total as a percentage rounded to two places, or
// zero when total is not positive.
func percentOf(part, total decimal.Decimal) decimal.Decimal {
	if !total.IsPositive() {
		return decimal.Zero
	}
	return part.Div(total).Mul(hundred).Round(2)
}

func clampPercent(p decimal.Decimal) decimal.Decimal {
	return decimal.Max(decimal.Zero, decimal.Min(hundred, p))
}

// GoalStatus is the derived progress of a savings goal.
type GoalStatus struct {
	Goal      domain.SavingsGoal `json:"goal"`
	Current   decimal.Decimal    `json:"currentAmount"`
	Percent   decimal.Decimal    `json:"percent"` // capped at 100
	Remaining decimal.Decimal    `json:"remaining"`
}

// GoalProgress sums the allocations linked to the goal. Allocations for
// other goals are ignored.
func GoalProgress(goal domain.SavingsGoal, allocations []domain.Allocation) GoalStatus {
	current := decimal.Zero
	for _, a := range allocations {
		if a.SavingsGoalID != nil && *a.SavingsGoalID == goal.ID {
			current = current.Add(a.Amount)
		}
	}
	return GoalStatus{
		Goal:      goal,
		Current:   current,
		Percent:   clampPercent(percentOf(current, goal.TargetAmount)),
		Remaining: decimal.Max(decimal.Zero, goal.TargetAmount.Sub(current)),
	}
}

// RiskBucket is the market value held at one risk level.
type RiskBucket struct {
	Level   domain.RiskLevel `json:"level"`
	Value   decimal.Decimal  `json:"value"`
	Percent decimal.Decimal  `json:"percent"`
}

// RiskExposure groups holdings by the risk level of their asset, safest
// first. Assets without a known level count as HIGH.
func RiskExposure(holdings []domain.AssetHolding) []RiskBucket {
	totals := make(map[domain.RiskLevel]decimal.Decimal, len(domain.RiskLevels))
	sum := decimal.Zero
	for _, h := range holdings {
		level := domain.RiskHigh
		if h.Asset != nil {
			level = h.Asset.RiskLevel.Normalize()
		}
		v := h.MarketValue()
		totals[level] = totals[level].Add(v)
		sum = sum.Add(v)
	}

	out := make([]RiskBucket, 0, len(domain.RiskLevels))
	for _, level := range domain.RiskLevels {
		out = append(out, RiskBucket{
			Level:   level,
			Value:   totals[level],
			Percent: percentOf(totals[level], sum),
		})
	}
	return out
}

// Vesting is the progress of an asset's vesting schedule.
type Vesting struct {
	Ticker  string          `json:"ticker"`
	Start   time.Time       `json:"start"`
	End     time.Time       `json:"end"`
	Percent decimal.Decimal `json:"percent"`
}

// VestingProgress reports how far now is into the asset's vesting schedule.
// It returns nil when the asset has no schedule.
func VestingProgress(asset domain.Asset, now time.Time) *Vesting {
	if asset.VestingStart == nil || asset.VestingMonths == nil || *asset.VestingMonths <= 0 {
		return nil
	}
	start := *asset.VestingStart
	end := start.AddDate(0, *asset.VestingMonths, 0)

	total := decimal.NewFromInt(int64(end.Sub(start)))
	elapsed := decimal.NewFromInt(int64(now.Sub(start)))
	return &Vesting{
		Ticker:  asset.Ticker,
		Start:   start,
		End:     end,
		Percent: clampPercent(percentOf(elapsed, total)),
	}
}

// Portfolio is the valuation of a set of holdings.
type Portfolio struct {
	Positions    int             `json:"positions"`
	MarketValue  decimal.Decimal `json:"marketValue"`
	CostBasis    decimal.Decimal `json:"costBasis"`
	UnrealizedPL decimal.Decimal `json:"unrealizedPL"`
}

// PortfolioSummary values the holdings whose asset type is in types, or
// every holding when types is empty.
func PortfolioSummary(holdings []domain.AssetHolding, types []domain.AssetType) Portfolio {
	var p Portfolio
	p.MarketValue, p.CostBasis = decimal.Zero, decimal.Zero
	for _, h := range holdings {
		if len(types) > 0 && (h.Asset == nil || !slices.Contains(types, h.Asset.Type)) {
			continue
		}
		p.Positions++
		p.MarketValue = p.MarketValue.Add(h.MarketValue())
		p.CostBasis = p.CostBasis.Add(h.CostBasis())
	}
	p.UnrealizedPL = p.MarketValue.Sub(p.CostBasis)
	return p
}

// Exit is the outcome of selling an investment at a multiple of its cost.
type Exit struct {
	Invested decimal.Decimal `json:"invested"`
	Gross    decimal.Decimal `json:"gross"`
	Tax      decimal.Decimal `json:"tax"`
	Net      decimal.Decimal `json:"net"`
}

// SimulateExit applies taxRate (a percentage) to the gain of selling
// invested at multiple times its value. Losses are not taxed.
func SimulateExit(invested, multiple, taxRate decimal.Decimal) Exit {
	gross := invested.Mul(multiple)
	gain := gross.Sub(invested)
	tax := decimal.Zero
	if gain.IsPositive() {
		tax = gain.Mul(taxRate).Div(hundred)
	}
	return Exit{Invested: invested, Gross: gross, Tax: tax, Net: gross.Sub(tax)}
}

// Explanation breaks total invested down into cash funding and the cost of
// buys that no funding covered.
type Explanation struct {
	CashFunding   decimal.Decimal         `json:"cashFunding"`
	ForgivenDebt  decimal.Decimal         `json:"forgivenDebt"`
	TotalInvested decimal.Decimal         `json:"totalInvested"`
	FinalBalance  decimal.Decimal         `json:"finalBalance"`
	Attributions  []reconcile.Attribution `json:"attributions"`
	WriteOffs     []reconcile.WriteOff    `json:"writeOffs"`
}

// ExplainInvested derives the explanation from a snapshot.
func ExplainInvested(s Snapshot) Explanation {
	return Explanation{
		CashFunding:   s.TotalInvested.Sub(s.Replay.ForgivenDebt),
		ForgivenDebt:  s.Replay.ForgivenDebt,
		TotalInvested: s.TotalInvested,
		FinalBalance:  s.Replay.FinalBalance,
		Attributions:  s.Replay.Attributions,
		WriteOffs:     s.Replay.WriteOffs,
	}
}
