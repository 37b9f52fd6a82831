package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/estatebill/internal/billingperiod"
	"gorm.io/gorm"
)

type Repository interface {
	FindMarker(ctx context.Context, db *gorm.DB, buildingID snowflake.ID, period billingperiod.Period) (*BillingRunMarker, error)
	InsertMarker(ctx context.Context, db *gorm.DB, marker *BillingRunMarker) error

	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	FindByApartment(ctx context.Context, db *gorm.DB, apartmentID snowflake.ID, period billingperiod.Period) (*Invoice, error)
	ListByBuilding(ctx context.Context, db *gorm.DB, buildingID snowflake.ID, period billingperiod.Period) ([]Invoice, error)
	ListItems(ctx context.Context, db *gorm.DB, invoiceIDs []snowflake.ID) ([]InvoiceItem, error)
	// InsertInvoice reports false when an invoice for the same apartment and period already exists.
	InsertInvoice(ctx context.Context, db *gorm.DB, invoice *Invoice) (bool, error)
	InsertItems(ctx context.Context, db *gorm.DB, items []InvoiceItem) error

	ChargedOneTimeFees(ctx context.Context, db *gorm.DB, apartmentID snowflake.ID) (map[string]struct{}, error)
	// InsertOneTimeCharge reports false when the fee was already charged to the apartment.
	InsertOneTimeCharge(ctx context.Context, db *gorm.DB, charge *OneTimeCharge) (bool, error)
}
