package reconcile

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var decimalEqual = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func alloc(at time.Time, amount int64) Event {
	return Event{At: at, Amount: d(amount), Kind: KindAllocation, Label: "funding"}
}

func buy(at time.Time, cost int64, label string) Event {
	return Event{At: at, Amount: d(-cost), Kind: KindBuy, Label: label}
}

func TestReplay_EndToEndScenario(t *testing.T) {
	events := []Event{
		alloc(t0, 500),
		buy(t0.Add(30*time.Minute), 800, "B"),
		alloc(t0.Add(45*time.Minute), 100),
		buy(t0.Add(2*time.Hour), 50, "D"),
	}

	res := Replay(events, GraceWindow)

	assert.True(t, res.ForgivenDebt.Equal(d(250)), "forgiven debt = %s", res.ForgivenDebt)
	assert.True(t, res.FinalBalance.Equal(d(-50)), "final balance = %s", res.FinalBalance)
	assert.True(t, res.UninvestedCash().IsZero())
	assert.Equal(t, 4, res.Events)

	wantAttributions := []Attribution{
		{Label: "B", Amount: d(300), At: t0.Add(30 * time.Minute)},
		{Label: "D", Amount: d(50), At: t0.Add(2 * time.Hour)},
	}
	if diff := cmp.Diff(wantAttributions, res.Attributions, decimalEqual); diff != "" {
		t.Errorf("attributions mismatch (-want +got):\n%s", diff)
	}

	wantWriteOffs := []WriteOff{
		{Amount: d(200), At: t0.Add(2 * time.Hour)},
		{Amount: d(50), At: t0.Add(2 * time.Hour), Terminal: true},
	}
	if diff := cmp.Diff(wantWriteOffs, res.WriteOffs, decimalEqual); diff != "" {
		t.Errorf("write-offs mismatch (-want +got):\n%s", diff)
	}
}

func TestReplay_ForgivenessThreshold(t *testing.T) {
	tests := []struct {
		name         string
		gap          time.Duration
		wantForgiven int64
		wantBalance  int64
		wantWriteOff int
	}{
		{name: "just before window", gap: GraceWindow - time.Millisecond, wantForgiven: 90, wantBalance: -90, wantWriteOff: 1},
		{name: "exactly at window", gap: GraceWindow, wantForgiven: 90, wantBalance: -90, wantWriteOff: 1},
		{name: "just after window", gap: GraceWindow + time.Millisecond, wantForgiven: 100, wantBalance: 10, wantWriteOff: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := []Event{
				buy(t0, 100, "legacy"),
				alloc(t0.Add(tt.gap), 10),
			}
			res := Replay(events, GraceWindow)

			assert.True(t, res.ForgivenDebt.Equal(d(tt.wantForgiven)), "forgiven = %s", res.ForgivenDebt)
			assert.True(t, res.FinalBalance.Equal(d(tt.wantBalance)), "balance = %s", res.FinalBalance)
			require.Len(t, res.WriteOffs, tt.wantWriteOff)
			// Before the window the only write-off is the terminal one.
			assert.Equal(t, tt.gap <= GraceWindow, res.WriteOffs[0].Terminal)
		})
	}
}

func TestReplay_ProcessesInTimestampOrder(t *testing.T) {
	ordered := []Event{
		alloc(t0, 200),
		buy(t0.Add(time.Minute), 300, "first"),
		alloc(t0.Add(3*time.Hour), 50),
		buy(t0.Add(4*time.Hour), 20, "second"),
	}
	shuffled := []Event{ordered[3], ordered[1], ordered[0], ordered[2]}

	want := Replay(ordered, GraceWindow)
	got := Replay(shuffled, GraceWindow)

	if diff := cmp.Diff(want, got, decimalEqual); diff != "" {
		t.Errorf("input order changed the result (-ordered +shuffled):\n%s", diff)
	}
	// The caller's slice is left untouched.
	assert.Equal(t, "second", shuffled[0].Label)
}

func TestReplay_OrderSensitivity(t *testing.T) {
	fundedFirst := Replay([]Event{
		alloc(t0, 100),
		buy(t0.Add(2*time.Hour), 100, "asset"),
	}, GraceWindow)
	boughtFirst := Replay([]Event{
		buy(t0, 100, "asset"),
		alloc(t0.Add(2*time.Hour), 100),
	}, GraceWindow)

	assert.True(t, fundedFirst.ForgivenDebt.IsZero())
	assert.True(t, fundedFirst.UninvestedCash().IsZero())

	assert.True(t, boughtFirst.ForgivenDebt.Equal(d(100)))
	assert.True(t, boughtFirst.UninvestedCash().Equal(d(100)))
}

func TestReplay_SameBalanceCrossingIsOrderInsensitive(t *testing.T) {
	// Both allocations arrive before the buy either way, so swapping them
	// does not change where the balance crosses zero.
	a := Replay([]Event{
		alloc(t0, 100),
		alloc(t0.Add(time.Minute), 50),
		buy(t0.Add(2*time.Minute), 120, "x"),
	}, GraceWindow)
	b := Replay([]Event{
		alloc(t0, 50),
		alloc(t0.Add(time.Minute), 100),
		buy(t0.Add(2*time.Minute), 120, "x"),
	}, GraceWindow)

	if diff := cmp.Diff(a, b, decimalEqual); diff != "" {
		t.Errorf("unexpected difference:\n%s", diff)
	}
}

func TestReplay_TieBreakAllocationsBeforeBuys(t *testing.T) {
	events := []Event{
		buy(t0, 100, "same-instant buy"),
		alloc(t0, 100),
	}
	res := Replay(events, GraceWindow)

	assert.Empty(t, res.Attributions)
	assert.True(t, res.ForgivenDebt.IsZero())
	assert.True(t, res.FinalBalance.IsZero())
}

func TestReplay_DebtContributionWhenAlreadyNegative(t *testing.T) {
	events := []Event{
		alloc(t0, 100),
		buy(t0.Add(time.Minute), 150, "first"),
		buy(t0.Add(2*time.Minute), 70, "second"),
	}
	res := Replay(events, GraceWindow)

	want := []Attribution{
		{Label: "first", Amount: d(50), At: t0.Add(time.Minute)},
		{Label: "second", Amount: d(70), At: t0.Add(2 * time.Minute)},
	}
	if diff := cmp.Diff(want, res.Attributions, decimalEqual); diff != "" {
		t.Errorf("attributions mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, res.ForgivenDebt.Equal(d(120)))
}

func TestReplay_DebtClearedBeforeWindowIsNotForgiven(t *testing.T) {
	events := []Event{
		buy(t0, 100, "early buy"),
		alloc(t0.Add(10*time.Minute), 150),
		alloc(t0.Add(5*time.Hour), 10),
	}
	res := Replay(events, GraceWindow)

	assert.True(t, res.ForgivenDebt.IsZero())
	assert.Empty(t, res.WriteOffs)
	assert.True(t, res.UninvestedCash().Equal(d(60)))
	// The buy still created debt at the time it happened.
	require.Len(t, res.Attributions, 1)
	assert.True(t, res.Attributions[0].Amount.Equal(d(100)))
}

func TestReplay_Empty(t *testing.T) {
	res := Replay(nil, GraceWindow)
	assert.True(t, res.FinalBalance.IsZero())
	assert.True(t, res.ForgivenDebt.IsZero())
	assert.Empty(t, res.Attributions)
	assert.Empty(t, res.WriteOffs)
	assert.Zero(t, res.Events)
}

func TestReplay_RandomSequences(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 7))

	for i := 0; i < 200; i++ {
		n := rng.IntN(12)
		events := make([]Event, 0, n)
		for j := 0; j < n; j++ {
			at := t0.Add(time.Duration(rng.IntN(6*60)) * time.Minute)
			amount := int64(rng.IntN(1000) + 1)
			if rng.IntN(2) == 0 {
				events = append(events, alloc(at, amount))
			} else {
				events = append(events, buy(at, amount, "random"))
			}
		}

		first := Replay(events, GraceWindow)
		second := Replay(events, GraceWindow)

		if diff := cmp.Diff(first, second, decimalEqual); diff != "" {
			t.Fatalf("replay %d is not deterministic:\n%s", i, diff)
		}
		if first.UninvestedCash().IsNegative() {
			t.Fatalf("replay %d reported negative uninvested cash %s", i, first.UninvestedCash())
		}
		if first.ForgivenDebt.IsNegative() {
			t.Fatalf("replay %d reported negative forgiven debt %s", i, first.ForgivenDebt)
		}
	}
}
