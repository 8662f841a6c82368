package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AssetType classifies a tradable instrument.
type AssetType string

const (
	AssetTypeCrypto      AssetType = "CRYPTO"
	AssetTypeStock       AssetType = "STOCK"
	AssetTypeETF         AssetType = "ETF"
	AssetTypeStartup     AssetType = "STARTUP"
	AssetTypeCollectible AssetType = "COLLECTIBLE"
)

// Valid reports whether t is one of the known asset types.
func (t AssetType) Valid() bool {
	switch t {
	case AssetTypeCrypto, AssetTypeStock, AssetTypeETF, AssetTypeStartup, AssetTypeCollectible:
		return true
	}
	return false
}

// HasMarketFeed reports whether prices for this type come from the market
// data provider. Startups and collectibles are priced by hand.
func (t AssetType) HasMarketFeed() bool {
	return t == AssetTypeCrypto || t == AssetTypeStock || t == AssetTypeETF
}

// RiskLevel is the user-assigned risk tier of an asset.
type RiskLevel string

const (
	RiskLow     RiskLevel = "LOW"
	RiskMedium  RiskLevel = "MEDIUM"
	RiskHigh    RiskLevel = "HIGH"
	RiskExtreme RiskLevel = "EXTREME"
)

// RiskLevels lists the tiers from safest to riskiest.
var RiskLevels = []RiskLevel{RiskLow, RiskMedium, RiskHigh, RiskExtreme}

// Normalize maps unknown or empty tiers to HIGH.
func (r RiskLevel) Normalize() RiskLevel {
	switch r {
	case RiskLow, RiskMedium, RiskHigh, RiskExtreme:
		return r
	}
	return RiskHigh
}

// TradeSide is the direction of an asset transaction.
type TradeSide string

const (
	SideBuy  TradeSide = "BUY"
	SideSell TradeSide = "SELL"
)

// Asset is a tradable instrument. It is created lazily on first purchase.
type Asset struct {
	ID              string              `json:"id"`
	Ticker          string              `json:"ticker"`
	Name            string              `json:"name"`
	Type            AssetType           `json:"type"`
	CurrentPrice    decimal.NullDecimal `json:"currentPrice"`
	LastPriceUpdate *time.Time          `json:"lastPriceUpdate,omitempty"`
	RiskLevel       RiskLevel           `json:"riskLevel"`
	VestingStart    *time.Time          `json:"vestingStart,omitempty"`
	VestingMonths   *int                `json:"vestingMonths,omitempty"`
	CreatedAt       time.Time           `json:"createdAt"`
}

// AssetHolding is the current position in one asset.
type AssetHolding struct {
	ID       string          `json:"id"`
	AssetID  string          `json:"assetId"`
	Quantity decimal.Decimal `json:"quantity"`
	AvgCost  decimal.Decimal `json:"avgCost"` // weighted average cost per unit

	Asset *Asset `json:"asset,omitempty"`
}

// UnitValue returns the cached market price of the holding's asset, falling
// back to its average cost when no price is known.
func (h AssetHolding) UnitValue() decimal.Decimal {
	if h.Asset != nil && h.Asset.CurrentPrice.Valid && !h.Asset.CurrentPrice.Decimal.IsZero() {
		return h.Asset.CurrentPrice.Decimal
	}
	return h.AvgCost
}

// MarketValue is quantity times UnitValue.
func (h AssetHolding) MarketValue() decimal.Decimal {
	return h.Quantity.Mul(h.UnitValue())
}

// CostBasis is quantity times average cost.
func (h AssetHolding) CostBasis() decimal.Decimal {
	return h.Quantity.Mul(h.AvgCost)
}

// AssetTransaction records one buy or sell of an asset.
type AssetTransaction struct {
	ID           string          `json:"id"`
	AssetID      string          `json:"assetId"`
	Side         TradeSide       `json:"type"`
	Quantity     decimal.Decimal `json:"quantity"`
	PricePerUnit decimal.Decimal `json:"pricePerUnit"`
	Date         time.Time       `json:"date"`

	// Filled from the owning asset on load.
	Ticker    string    `json:"ticker,omitempty"`
	AssetType AssetType `json:"assetType,omitempty"`
}

// Cost is quantity times unit price.
func (t AssetTransaction) Cost() decimal.Decimal {
	return t.Quantity.Mul(t.PricePerUnit)
}
