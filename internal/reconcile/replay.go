package reconcile

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// GraceWindow is how long the pool may stay negative before the debt is
// forgiven.
const GraceWindow = time.Hour

// Attribution is the share of debt created by one buy.
type Attribution struct {
	Label  string          `json:"label"`
	Amount decimal.Decimal `json:"amount"`
	At     time.Time       `json:"at"`
}

// WriteOff is one forgiveness of a negative balance.
type WriteOff struct {
	Amount decimal.Decimal `json:"amount"`
	At     time.Time       `json:"at"`

	// Terminal is set for the debt still outstanding after the last event.
	Terminal bool `json:"terminal"`
}

// Result is the outcome of a replay.
type Result struct {
	FinalBalance decimal.Decimal `json:"finalBalance"` // raw, may be negative
	ForgivenDebt decimal.Decimal `json:"forgivenDebt"`
	Attributions []Attribution   `json:"attributions"`
	WriteOffs    []WriteOff      `json:"writeOffs"`
	Events       int             `json:"events"`
}

// UninvestedCash is the cash left in the pool, never negative.
func (r Result) UninvestedCash() decimal.Decimal {
	if r.FinalBalance.IsNegative() {
		return decimal.Zero
	}
	return r.FinalBalance
}

// Replay folds events into a running balance. The input is sorted internally
// so callers may pass events in any order; the slice itself is not modified.
//
// A buy that takes the balance below zero starts a debt episode. When the next
// event arrives more than grace after the episode started, the outstanding
// debt is forgiven before that event is applied. Debt left at the end is
// forgiven too: the purchase has happened, so the money counts as invested.
func Replay(events []Event, grace time.Duration) Result {
	sorted := slices.Clone(events)
	Sort(sorted)

	var (
		balance       = decimal.Zero
		forgiven      = decimal.Zero
		debtStartedAt *time.Time
		res           = Result{Events: len(sorted)}
	)

	for _, ev := range sorted {
		if balance.IsNegative() && debtStartedAt != nil && ev.At.Sub(*debtStartedAt) > grace {
			wiped := balance.Abs()
			forgiven = forgiven.Add(wiped)
			res.WriteOffs = append(res.WriteOffs, WriteOff{Amount: wiped, At: ev.At})
			balance = decimal.Zero
			debtStartedAt = nil
		}

		prev := balance
		balance = balance.Add(ev.Amount)

		if ev.Kind == KindBuy && balance.IsNegative() {
			contribution := ev.Amount.Abs()
			if !prev.IsNegative() {
				contribution = balance.Abs()
			}
			res.Attributions = append(res.Attributions, Attribution{
				Label:  ev.Label,
				Amount: contribution,
				At:     ev.At,
			})
		}

		if balance.IsNegative() {
			if debtStartedAt == nil {
				at := ev.At
				debtStartedAt = &at
			}
		} else {
			debtStartedAt = nil
		}
	}

	if balance.IsNegative() {
		outstanding := balance.Abs()
		forgiven = forgiven.Add(outstanding)
		res.WriteOffs = append(res.WriteOffs, WriteOff{
			Amount:   outstanding,
			At:       sorted[len(sorted)-1].At,
			Terminal: true,
		})
	}

	res.FinalBalance = balance
	res.ForgivenDebt = forgiven
	return res
}
