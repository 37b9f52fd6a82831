package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/estatebill/internal/billingperiod"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, reading *MeterReading) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*MeterReading, error)
	FindForPeriod(ctx context.Context, db *gorm.DB, apartmentID, meterID snowflake.ID, period billingperiod.Period) (*MeterReading, error)
	FindLatestBefore(ctx context.Context, db *gorm.DB, apartmentID, meterID snowflake.ID, period billingperiod.Period) (*MeterReading, error)
	FindEarliestAfter(ctx context.Context, db *gorm.DB, apartmentID, meterID snowflake.ID, period billingperiod.Period) (*MeterReading, error)
	ListUnbilled(ctx context.Context, db *gorm.DB, buildingID snowflake.ID, period billingperiod.Period) ([]BillableReading, error)
	LinkInvoiceItem(ctx context.Context, db *gorm.DB, readingID, invoiceItemID snowflake.ID) (int64, error)
	CountApartmentsByMeterType(ctx context.Context, db *gorm.DB, buildingID snowflake.ID, period billingperiod.Period) (map[string]int, error)
}
