package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFieldError(t *testing.T) {
	err := MissingField("ticker")
	assert.True(t, errors.Is(err, ErrMissingRequiredField))
	assert.Equal(t, "missing required field: ticker", err.Error())

	err = InvalidField("quantity", "must be positive")
	assert.True(t, errors.Is(err, ErrMissingRequiredField))
	assert.Equal(t, "missing required field: quantity must be positive", err.Error())
}

func TestNotFoundError(t *testing.T) {
	err := NotFoundError("asset", "BTC-USD")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), `asset "BTC-USD"`)
}

func TestHoldingUnitValue(t *testing.T) {
	tests := []struct {
		name  string
		asset *Asset
		want  string
	}{
		{name: "no asset", asset: nil, want: "50"},
		{name: "no cached price", asset: &Asset{}, want: "50"},
		{name: "zero cached price", asset: &Asset{CurrentPrice: decimal.NewNullDecimal(decimal.Zero)}, want: "50"},
		{name: "cached price", asset: &Asset{CurrentPrice: decimal.NewNullDecimal(decimal.NewFromInt(80))}, want: "80"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := AssetHolding{Quantity: decimal.NewFromInt(2), AvgCost: decimal.NewFromInt(50), Asset: tt.asset}
			assert.Equal(t, tt.want, h.UnitValue().String())
		})
	}
}

func TestTransactionUnallocated(t *testing.T) {
	tx := CashTransaction{
		Amount: decimal.NewFromInt(1000),
		Allocations: []Allocation{
			{Category: CategorySavings, Amount: decimal.NewFromInt(400)},
			{Category: CategoryStocks, Amount: decimal.NewFromInt(500)},
		},
	}
	assert.Equal(t, "900", tx.Allocated().String())
	assert.Equal(t, "100", tx.Unallocated().String())
}

func TestRiskLevelNormalize(t *testing.T) {
	assert.Equal(t, RiskHigh, RiskLevel("").Normalize())
	assert.Equal(t, RiskHigh, RiskLevel("whatever").Normalize())
	assert.Equal(t, RiskLow, RiskLow.Normalize())
}
