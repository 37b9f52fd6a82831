// Package domain contains persistence models for monthly apartment invoicing.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/estatebill/internal/billingperiod"
	"gorm.io/datatypes"
)

// InvoiceStatus represents invoice lifecycle states.
type InvoiceStatus string

const (
	InvoiceStatusIssued InvoiceStatus = "ISSUED"
	InvoiceStatusPaid   InvoiceStatus = "PAID"
	InvoiceStatusVoid   InvoiceStatus = "VOID"
)

// Invoice is the single bill of an apartment for a billing period.
type Invoice struct {
	ID            snowflake.ID         `json:"id" gorm:"primaryKey"`
	Number        string               `json:"number" gorm:"type:varchar(64);not null;uniqueIndex:ux_invoices_number"`
	ApartmentID   snowflake.ID         `json:"apartment_id" gorm:"not null;uniqueIndex:ux_invoices_apartment_period,priority:1"`
	BuildingID    snowflake.ID         `json:"building_id" gorm:"not null;index:ix_invoices_building_period,priority:1"`
	BillingPeriod billingperiod.Period `json:"billing_period" gorm:"type:varchar(7);not null;uniqueIndex:ux_invoices_apartment_period,priority:2;index:ix_invoices_building_period,priority:2"`
	PeriodStart   time.Time            `json:"period_start" gorm:"not null"`
	PeriodEnd     time.Time            `json:"period_end" gorm:"not null"`
	Status        InvoiceStatus        `json:"status" gorm:"type:text;not null"`
	Currency      string               `json:"currency" gorm:"type:text;not null"`
	TotalAmount   decimal.Decimal      `json:"total_amount" gorm:"type:numeric(20,4);not null"`
	CreatedAt     time.Time            `json:"created_at" gorm:"not null"`
	UpdatedAt     time.Time            `json:"updated_at" gorm:"not null"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// InvoiceItem represents a line on an invoice.
type InvoiceItem struct {
	ID                snowflake.ID      `json:"id" gorm:"primaryKey"`
	InvoiceID         snowflake.ID      `json:"invoice_id" gorm:"not null;index"`
	FeeType           string            `json:"fee_type" gorm:"type:text;not null"`
	CalculationMethod string            `json:"calculation_method" gorm:"type:text;not null"`
	Description       string            `json:"description" gorm:"type:text"`
	Quantity          decimal.Decimal   `json:"quantity" gorm:"type:numeric(20,4);not null"`
	UnitPrice         decimal.Decimal   `json:"unit_price" gorm:"type:numeric(20,4);not null"`
	Total             decimal.Decimal   `json:"total" gorm:"type:numeric(20,4);not null"`
	MeterReadingID    *snowflake.ID     `json:"meter_reading_id,omitempty" gorm:"index"`
	Metadata          datatypes.JSONMap `json:"metadata" gorm:"not null"`
	CreatedAt         time.Time         `json:"created_at" gorm:"not null"`
}

// TableName sets the database table name.
func (InvoiceItem) TableName() string { return "invoice_items" }

// BillingRunMarker records that a building's period completed without apartment failures.
type BillingRunMarker struct {
	BuildingID     snowflake.ID         `json:"building_id" gorm:"primaryKey;autoIncrement:false"`
	BillingPeriod  billingperiod.Period `json:"billing_period" gorm:"primaryKey;type:varchar(7)"`
	ProcessedCount int                  `json:"processed_count" gorm:"not null"`
	CompletedAt    time.Time            `json:"completed_at" gorm:"not null"`
}

func (BillingRunMarker) TableName() string { return "billing_run_markers" }

// OneTimeCharge is the ledger entry that keeps a ONE_TIME fee from being billed twice
// to the same apartment.
type OneTimeCharge struct {
	ApartmentID   snowflake.ID         `json:"apartment_id" gorm:"primaryKey;autoIncrement:false"`
	FeeType       string               `json:"fee_type" gorm:"primaryKey;type:varchar(64)"`
	InvoiceItemID snowflake.ID         `json:"invoice_item_id" gorm:"not null"`
	BillingPeriod billingperiod.Period `json:"billing_period" gorm:"type:varchar(7);not null"`
	ChargedAt     time.Time            `json:"charged_at" gorm:"not null"`
}

func (OneTimeCharge) TableName() string { return "one_time_charges" }
