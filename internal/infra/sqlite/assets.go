package sqlite

import (
	"context"
	"fmt"

	"github.com/dvloznov/wealth-tracker/internal/domain"
	"github.com/dvloznov/wealth-tracker/internal/store"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (q *queries) CreateAsset(ctx context.Context, a *domain.Asset) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.RiskLevel = a.RiskLevel.Normalize()
	row := toAssetRow(a)
	if err := q.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("CreateAsset: inserting %s: %w", a.Ticker, err)
	}
	a.CreatedAt = row.CreatedAt.UTC()
	return nil
}

// UpdateAsset writes every column of the asset, nulls included.
func (q *queries) UpdateAsset(ctx context.Context, a *domain.Asset) error {
	row := toAssetRow(a)
	res := q.db.WithContext(ctx).Model(&assetRow{}).Where("id = ?", a.ID).Updates(map[string]any{
		"ticker":            row.Ticker,
		"name":              row.Name,
		"type":              row.Type,
		"current_price":     row.CurrentPrice,
		"last_price_update": row.LastPriceUpdate,
		"risk_level":        row.RiskLevel,
		"vesting_start":     row.VestingStart,
		"vesting_months":    row.VestingMonths,
	})
	if res.Error != nil {
		return fmt.Errorf("UpdateAsset: updating %s: %w", a.Ticker, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("UpdateAsset: %w", domain.NotFoundError("asset", a.ID))
	}
	return nil
}

func (q *queries) GetAsset(ctx context.Context, id string) (*domain.Asset, error) {
	var row assetRow
	if err := q.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, fmt.Errorf("GetAsset: %w", notFound(err, "asset", id))
	}
	a := row.toDomain()
	return &a, nil
}

func (q *queries) GetAssetByTicker(ctx context.Context, ticker string) (*domain.Asset, error) {
	var row assetRow
	if err := q.db.WithContext(ctx).Where("ticker = ?", ticker).First(&row).Error; err != nil {
		return nil, fmt.Errorf("GetAssetByTicker: %w", notFound(err, "asset", ticker))
	}
	a := row.toDomain()
	return &a, nil
}

func (q *queries) ListAssets(ctx context.Context, types []domain.AssetType) ([]domain.Asset, error) {
	db := q.db.WithContext(ctx)
	if len(types) > 0 {
		db = db.Where("type IN ?", typeStrings(types))
	}

	var rows []assetRow
	if err := db.Order("ticker ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("ListAssets: querying: %w", err)
	}

	out := make([]domain.Asset, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// DeleteAsset removes the asset's dependents first so the delete does not
// rely on the connection having foreign keys enabled.
func (q *queries) DeleteAsset(ctx context.Context, id string) error {
	err := q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("asset_id = ?", id).Delete(&assetTransactionRow{}).Error; err != nil {
			return fmt.Errorf("deleting transactions: %w", err)
		}
		if err := tx.Where("asset_id = ?", id).Delete(&holdingRow{}).Error; err != nil {
			return fmt.Errorf("deleting holding: %w", err)
		}
		res := tx.Where("id = ?", id).Delete(&assetRow{})
		if res.Error != nil {
			return fmt.Errorf("deleting asset: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return domain.NotFoundError("asset", id)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("DeleteAsset: %w", err)
	}
	return nil
}

func (q *queries) CreateHolding(ctx context.Context, h *domain.AssetHolding) error {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	row := toHoldingRow(h)
	if err := q.db.WithContext(ctx).Omit(clause.Associations).Create(&row).Error; err != nil {
		return fmt.Errorf("CreateHolding: inserting: %w", err)
	}
	return nil
}

func (q *queries) UpdateHolding(ctx context.Context, h *domain.AssetHolding) error {
	res := q.db.WithContext(ctx).Model(&holdingRow{}).Where("id = ?", h.ID).Updates(map[string]any{
		"quantity": h.Quantity,
		"avg_cost": h.AvgCost,
	})
	if res.Error != nil {
		return fmt.Errorf("UpdateHolding: updating: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("UpdateHolding: %w", domain.NotFoundError("holding", h.ID))
	}
	return nil
}

func (q *queries) DeleteHolding(ctx context.Context, id string) error {
	if err := q.db.WithContext(ctx).Where("id = ?", id).Delete(&holdingRow{}).Error; err != nil {
		return fmt.Errorf("DeleteHolding: deleting: %w", err)
	}
	return nil
}

func (q *queries) GetHoldingByAsset(ctx context.Context, assetID string) (*domain.AssetHolding, error) {
	var row holdingRow
	if err := q.db.WithContext(ctx).Joins("Asset").Where("holdings.asset_id = ?", assetID).First(&row).Error; err != nil {
		return nil, fmt.Errorf("GetHoldingByAsset: %w", notFound(err, "holding for asset", assetID))
	}
	h := row.toDomain()
	return &h, nil
}

func (q *queries) ListHoldings(ctx context.Context, types []domain.AssetType) ([]domain.AssetHolding, error) {
	db := q.db.WithContext(ctx).Joins("Asset")
	if len(types) > 0 {
		db = db.Where("`Asset`.`type` IN ?", typeStrings(types))
	}

	var rows []holdingRow
	if err := db.Order("`Asset`.`ticker` ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("ListHoldings: querying: %w", err)
	}

	out := make([]domain.AssetHolding, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (q *queries) CreateAssetTransaction(ctx context.Context, t *domain.AssetTransaction) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	row := toAssetTransactionRow(t)
	if err := q.db.WithContext(ctx).Omit(clause.Associations).Create(&row).Error; err != nil {
		return fmt.Errorf("CreateAssetTransaction: inserting: %w", err)
	}
	return nil
}

func (q *queries) ListAssetTransactions(ctx context.Context, f store.TradeFilter) ([]domain.AssetTransaction, error) {
	db := q.db.WithContext(ctx).Joins("Asset")
	db = inRange(db, "asset_transactions.date", f.Range)
	if f.AssetID != "" {
		db = db.Where("asset_transactions.asset_id = ?", f.AssetID)
	}
	if f.Side != "" {
		db = db.Where("asset_transactions.side = ?", string(f.Side))
	}
	if len(f.AssetTypes) > 0 {
		db = db.Where("`Asset`.`type` IN ?", typeStrings(f.AssetTypes))
	}

	var rows []assetTransactionRow
	if err := db.Order("asset_transactions.date ASC").Order("asset_transactions.rowid ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("ListAssetTransactions: querying: %w", err)
	}

	out := make([]domain.AssetTransaction, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (q *queries) DeleteAssetTransactions(ctx context.Context, assetID string, side domain.TradeSide) (int64, error) {
	res := q.db.WithContext(ctx).Where("asset_id = ? AND side = ?", assetID, string(side)).Delete(&assetTransactionRow{})
	if res.Error != nil {
		return 0, fmt.Errorf("DeleteAssetTransactions: deleting: %w", res.Error)
	}
	return res.RowsAffected, nil
}
