package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	tariffdomain "github.com/smallbiznis/estatebill/internal/tariff/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() tariffdomain.Repository {
	return &repo{}
}

const selectActive = `SELECT id, building_id, fee_type, calculation_method, unit_price, unit, is_active, is_deleted, created_at, updated_at
	FROM price_quotations
	WHERE building_id = ? AND is_active = ? AND is_deleted = ?`

func (r *repo) ListActive(ctx context.Context, db *gorm.DB, buildingID snowflake.ID) ([]tariffdomain.PriceQuotation, error) {
	var rows []tariffdomain.PriceQuotation
	err := db.WithContext(ctx).Raw(
		selectActive+` ORDER BY fee_type ASC, id ASC`,
		buildingID, true, false,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) ListActiveByFeeType(ctx context.Context, db *gorm.DB, buildingID snowflake.ID, feeType string) ([]tariffdomain.PriceQuotation, error) {
	var rows []tariffdomain.PriceQuotation
	err := db.WithContext(ctx).Raw(
		selectActive+` AND fee_type = ? ORDER BY id ASC`,
		buildingID, true, false, feeType,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
