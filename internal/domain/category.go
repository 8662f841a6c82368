package domain

import "slices"

// CategoryID identifies a budget bucket ("schema"). Categories are open ended;
// only the constants below carry policy.
type CategoryID string

const (
	CategorySavings  CategoryID = "savings"
	CategoryStocks   CategoryID = "stocks"
	CategoryExpenses CategoryID = "expenses"
	CategoryFuture   CategoryID = "future"
)

// InvestmentCategories are the categories whose allocations fund asset buys.
// Their cash is treated as one fungible pool by the replay.
var InvestmentCategories = []CategoryID{CategoryFuture, CategoryStocks}

// InvestmentAssetTypes are the asset types whose buys draw on the
// investment pool.
var InvestmentAssetTypes = []AssetType{
	AssetTypeCrypto,
	AssetTypeStartup,
	AssetTypeCollectible,
	AssetTypeStock,
	AssetTypeETF,
}

// FutureAssetTypes are the speculative asset types shown under the
// future category.
var FutureAssetTypes = []AssetType{AssetTypeCrypto, AssetTypeStartup, AssetTypeCollectible}

// StockAssetTypes are the listed securities shown under the stocks category.
var StockAssetTypes = []AssetType{AssetTypeStock, AssetTypeETF}

// IsInvestmentCategory reports whether c belongs to InvestmentCategories.
func IsInvestmentCategory(c CategoryID) bool {
	return slices.Contains(InvestmentCategories, c)
}
