package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/estatebill/internal/billingperiod"
	readingdomain "github.com/smallbiznis/estatebill/internal/reading/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() readingdomain.Repository {
	return &repo{}
}

const readingColumns = `id, apartment_id, meter_id, billing_period, previous_reading, current_reading,
	consumption, recorded_by, recorded_at, invoice_item_id`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, m *readingdomain.MeterReading) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO meter_readings (`+readingColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID,
		m.ApartmentID,
		m.MeterID,
		m.BillingPeriod,
		m.PreviousReading,
		m.CurrentReading,
		m.Consumption,
		m.RecordedBy,
		m.RecordedAt,
		m.InvoiceItemID,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*readingdomain.MeterReading, error) {
	return r.findOne(ctx, db, `SELECT `+readingColumns+` FROM meter_readings WHERE id = ?`, id)
}

func (r *repo) FindForPeriod(ctx context.Context, db *gorm.DB, apartmentID, meterID snowflake.ID, period billingperiod.Period) (*readingdomain.MeterReading, error) {
	return r.findOne(ctx, db,
		`SELECT `+readingColumns+` FROM meter_readings
		 WHERE apartment_id = ? AND meter_id = ? AND billing_period = ?`,
		apartmentID, meterID, period,
	)
}

// FindLatestBefore relies on "YYYY-MM" sorting lexically in calendar order.
func (r *repo) FindLatestBefore(ctx context.Context, db *gorm.DB, apartmentID, meterID snowflake.ID, period billingperiod.Period) (*readingdomain.MeterReading, error) {
	return r.findOne(ctx, db,
		`SELECT `+readingColumns+` FROM meter_readings
		 WHERE apartment_id = ? AND meter_id = ? AND billing_period < ?
		 ORDER BY billing_period DESC LIMIT 1`,
		apartmentID, meterID, period,
	)
}

func (r *repo) FindEarliestAfter(ctx context.Context, db *gorm.DB, apartmentID, meterID snowflake.ID, period billingperiod.Period) (*readingdomain.MeterReading, error) {
	return r.findOne(ctx, db,
		`SELECT `+readingColumns+` FROM meter_readings
		 WHERE apartment_id = ? AND meter_id = ? AND billing_period > ?
		 ORDER BY billing_period ASC LIMIT 1`,
		apartmentID, meterID, period,
	)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, args ...interface{}) (*readingdomain.MeterReading, error) {
	var reading readingdomain.MeterReading
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&reading).Error; err != nil {
		return nil, err
	}
	if reading.ID == 0 {
		return nil, nil
	}
	return &reading, nil
}

func (r *repo) ListUnbilled(ctx context.Context, db *gorm.DB, buildingID snowflake.ID, period billingperiod.Period) ([]readingdomain.BillableReading, error) {
	var rows []readingdomain.BillableReading
	err := db.WithContext(ctx).Raw(
		`SELECT r.id, r.apartment_id, r.meter_id, r.billing_period, r.previous_reading, r.current_reading,
		        r.consumption, r.recorded_by, r.recorded_at, r.invoice_item_id, m.type AS meter_type
		 FROM meter_readings r
		 JOIN apartments a ON a.id = r.apartment_id
		 JOIN meters m ON m.id = r.meter_id
		 WHERE a.building_id = ? AND r.billing_period = ? AND r.invoice_item_id IS NULL
		 ORDER BY r.apartment_id ASC, r.id ASC`,
		buildingID,
		period,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// LinkInvoiceItem only touches unbilled rows; zero rows affected means the reading is
// missing or already billed.
func (r *repo) LinkInvoiceItem(ctx context.Context, db *gorm.DB, readingID, invoiceItemID snowflake.ID) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE meter_readings SET invoice_item_id = ?
		 WHERE id = ? AND invoice_item_id IS NULL`,
		invoiceItemID,
		readingID,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repo) CountApartmentsByMeterType(ctx context.Context, db *gorm.DB, buildingID snowflake.ID, period billingperiod.Period) (map[string]int, error) {
	var rows []struct {
		MeterType string
		Recorded  int
	}
	err := db.WithContext(ctx).Raw(
		`SELECT m.type AS meter_type, COUNT(DISTINCT r.apartment_id) AS recorded
		 FROM meter_readings r
		 JOIN apartments a ON a.id = r.apartment_id
		 JOIN meters m ON m.id = r.meter_id
		 WHERE a.building_id = ? AND a.status <> 'INACTIVE' AND m.active = ? AND r.billing_period = ?
		 GROUP BY m.type`,
		buildingID,
		true,
		period,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.MeterType] = row.Recorded
	}
	return counts, nil
}
