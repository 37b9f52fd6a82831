// Package domain holds monthly meter readings and the billing linkage on them.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/estatebill/internal/billingperiod"
)

// MeterReading is one staff-entered reading per (apartment, meter, period). Once
// InvoiceItemID is set the reading is billed and must not change.
type MeterReading struct {
	ID              snowflake.ID         `json:"id" gorm:"primaryKey"`
	ApartmentID     snowflake.ID         `json:"apartment_id" gorm:"not null;uniqueIndex:ux_meter_readings_period,priority:1"`
	MeterID         snowflake.ID         `json:"meter_id" gorm:"not null;uniqueIndex:ux_meter_readings_period,priority:2"`
	BillingPeriod   billingperiod.Period `json:"billing_period" gorm:"type:varchar(7);not null;uniqueIndex:ux_meter_readings_period,priority:3"`
	PreviousReading decimal.Decimal      `json:"previous_reading" gorm:"type:numeric(20,4);not null"`
	CurrentReading  decimal.Decimal      `json:"current_reading" gorm:"type:numeric(20,4);not null"`
	Consumption     decimal.Decimal      `json:"consumption" gorm:"type:numeric(20,4);not null"`
	RecordedBy      string               `json:"recorded_by" gorm:"type:text;not null"`
	RecordedAt      time.Time            `json:"recorded_at" gorm:"not null"`
	InvoiceItemID   *snowflake.ID        `json:"invoice_item_id,omitempty" gorm:"index"`
}

func (MeterReading) TableName() string { return "meter_readings" }

// IsBilled reports whether the reading is linked to an invoice item.
func (r MeterReading) IsBilled() bool {
	return r.InvoiceItemID != nil
}

// BillableReading is an unbilled reading together with the type of its meter.
type BillableReading struct {
	MeterReading
	MeterType string `json:"meter_type"`
}

// Progress summarises how many apartments have readings for a period.
type Progress struct {
	BuildingID          string                     `json:"building_id"`
	BillingPeriod       string                     `json:"billing_period"`
	TotalApartments     int                        `json:"total_apartments"`
	RecordedByMeterType map[string]int             `json:"recorded_by_meter_type"`
	PercentByMeterType  map[string]decimal.Decimal `json:"percent_by_meter_type"`
}
