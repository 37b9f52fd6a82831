// Package domain contains the building tariffs (price quotations) and the cost
// calculation rules applied to them.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// PriceQuotation is a building's price rule for one fee type. At most one active,
// non-deleted row may exist per (building, fee type).
type PriceQuotation struct {
	ID                snowflake.ID    `json:"id" gorm:"primaryKey"`
	BuildingID        snowflake.ID    `json:"building_id" gorm:"not null;index:ix_price_quotations_building_fee,priority:1"`
	FeeType           string          `json:"fee_type" gorm:"type:varchar(64);not null;index:ix_price_quotations_building_fee,priority:2"`
	CalculationMethod string          `json:"calculation_method" gorm:"type:text;not null"`
	UnitPrice         decimal.Decimal `json:"unit_price" gorm:"type:numeric(20,4);not null"`
	Unit              string          `json:"unit" gorm:"type:text"`
	IsActive          bool            `json:"is_active" gorm:"not null"`
	IsDeleted         bool            `json:"is_deleted" gorm:"not null"`
	CreatedAt         time.Time       `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt         time.Time       `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (PriceQuotation) TableName() string { return "price_quotations" }

// Method parses the stored calculation method code.
func (p PriceQuotation) Method() (Method, error) {
	return ParseMethod(p.CalculationMethod)
}
