package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/estatebill/internal/billingperiod"
	invoicedomain "github.com/smallbiznis/estatebill/internal/invoice/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() invoicedomain.Repository {
	return &repo{}
}

func (r *repo) FindMarker(ctx context.Context, db *gorm.DB, buildingID snowflake.ID, period billingperiod.Period) (*invoicedomain.BillingRunMarker, error) {
	var marker invoicedomain.BillingRunMarker
	err := db.WithContext(ctx).Raw(
		`SELECT building_id, billing_period, processed_count, completed_at
		 FROM billing_run_markers WHERE building_id = ? AND billing_period = ?`,
		buildingID,
		period,
	).Scan(&marker).Error
	if err != nil {
		return nil, err
	}
	if marker.BuildingID == 0 {
		return nil, nil
	}
	return &marker, nil
}

// InsertMarker is a no-op when a concurrent run already completed the period.
func (r *repo) InsertMarker(ctx context.Context, db *gorm.DB, marker *invoicedomain.BillingRunMarker) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(marker).Error
}

const invoiceColumns = `id, number, apartment_id, building_id, billing_period, period_start, period_end,
	status, currency, total_amount, created_at, updated_at`

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*invoicedomain.Invoice, error) {
	var invoice invoicedomain.Invoice
	err := db.WithContext(ctx).Raw(
		`SELECT `+invoiceColumns+` FROM invoices WHERE id = ?`,
		id,
	).Scan(&invoice).Error
	if err != nil {
		return nil, err
	}
	if invoice.ID == 0 {
		return nil, nil
	}
	return &invoice, nil
}

func (r *repo) FindByApartment(ctx context.Context, db *gorm.DB, apartmentID snowflake.ID, period billingperiod.Period) (*invoicedomain.Invoice, error) {
	var invoice invoicedomain.Invoice
	err := db.WithContext(ctx).Raw(
		`SELECT `+invoiceColumns+` FROM invoices WHERE apartment_id = ? AND billing_period = ?`,
		apartmentID,
		period,
	).Scan(&invoice).Error
	if err != nil {
		return nil, err
	}
	if invoice.ID == 0 {
		return nil, nil
	}
	return &invoice, nil
}

func (r *repo) ListByBuilding(ctx context.Context, db *gorm.DB, buildingID snowflake.ID, period billingperiod.Period) ([]invoicedomain.Invoice, error) {
	var invoices []invoicedomain.Invoice
	err := db.WithContext(ctx).Raw(
		`SELECT `+invoiceColumns+` FROM invoices
		 WHERE building_id = ? AND billing_period = ? ORDER BY apartment_id ASC`,
		buildingID,
		period,
	).Scan(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *repo) ListItems(ctx context.Context, db *gorm.DB, invoiceIDs []snowflake.ID) ([]invoicedomain.InvoiceItem, error) {
	if len(invoiceIDs) == 0 {
		return nil, nil
	}
	var items []invoicedomain.InvoiceItem
	err := db.WithContext(ctx).
		Where("invoice_id IN ?", invoiceIDs).
		Order("invoice_id ASC").
		Order("id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) InsertInvoice(ctx context.Context, db *gorm.DB, invoice *invoicedomain.Invoice) (bool, error) {
	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "apartment_id"}, {Name: "billing_period"}},
			DoNothing: true,
		}).
		Create(invoice)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) InsertItems(ctx context.Context, db *gorm.DB, items []invoicedomain.InvoiceItem) error {
	if len(items) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&items).Error
}

func (r *repo) ChargedOneTimeFees(ctx context.Context, db *gorm.DB, apartmentID snowflake.ID) (map[string]struct{}, error) {
	var fees []string
	err := db.WithContext(ctx).Raw(
		`SELECT fee_type FROM one_time_charges WHERE apartment_id = ?`,
		apartmentID,
	).Scan(&fees).Error
	if err != nil {
		return nil, err
	}
	charged := make(map[string]struct{}, len(fees))
	for _, fee := range fees {
		charged[fee] = struct{}{}
	}
	return charged, nil
}

func (r *repo) InsertOneTimeCharge(ctx context.Context, db *gorm.DB, charge *invoicedomain.OneTimeCharge) (bool, error) {
	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(charge)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
