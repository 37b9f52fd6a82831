package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/estatebill/internal/billingperiod"
	"gorm.io/gorm"
)

type Service interface {
	RecordReading(ctx context.Context, req RecordRequest) (*MeterReading, error)
	GetUnbilledReadings(ctx context.Context, buildingID snowflake.ID, period billingperiod.Period) ([]BillableReading, error)
	// MarkInvoiced links a reading to an invoice item inside the caller's transaction.
	MarkInvoiced(ctx context.Context, tx *gorm.DB, readingID, invoiceItemID snowflake.ID) error
	GetProgress(ctx context.Context, buildingID snowflake.ID, period billingperiod.Period) (*Progress, error)
}

type RecordRequest struct {
	ApartmentID    string          `json:"apartment_id"`
	MeterID        string          `json:"meter_id"`
	BillingPeriod  string          `json:"billing_period"`
	CurrentReading decimal.Decimal `json:"current_reading"`
	RecordedBy     string          `json:"recorded_by"`
}

var (
	ErrInvalidApartment     = errors.New("invalid_apartment")
	ErrInvalidMeter         = errors.New("invalid_meter")
	ErrInvalidReading       = errors.New("invalid_reading")
	ErrInvalidRecorder      = errors.New("invalid_recorded_by")
	ErrMeterNotFound        = errors.New("meter_not_found")
	ErrDuplicateReading     = errors.New("duplicate_reading")
	ErrNonMonotonicReading  = errors.New("non_monotonic_reading")
	ErrReadingNotFound      = errors.New("reading_not_found")
	ErrReadingAlreadyBilled = errors.New("reading_already_billed")
)
