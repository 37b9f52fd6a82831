package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	ListActive(ctx context.Context, db *gorm.DB, buildingID snowflake.ID) ([]PriceQuotation, error)
	ListActiveByFeeType(ctx context.Context, db *gorm.DB, buildingID snowflake.ID, feeType string) ([]PriceQuotation, error)
}
