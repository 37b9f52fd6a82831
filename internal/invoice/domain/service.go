package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/estatebill/internal/billingperiod"
)

// Aggregator turns a building's month of readings and tariffs into invoices.
type Aggregator interface {
	// GenerateInvoices creates at most one invoice per active apartment. A zero period
	// means the month before now. Reruns never duplicate invoices.
	GenerateInvoices(ctx context.Context, buildingID snowflake.ID, period billingperiod.Period) (*GenerateResult, error)
	ListInvoices(ctx context.Context, buildingID snowflake.ID, period billingperiod.Period) ([]InvoiceWithItems, error)
	GetInvoice(ctx context.Context, invoiceID snowflake.ID) (*InvoiceDocument, error)
}

type GenerateResult struct {
	BuildingID       string             `json:"building_id"`
	BillingPeriod    string             `json:"billing_period"`
	ProcessedCount   int                `json:"processed_count"`
	SkippedCount     int                `json:"skipped_count"`
	AlreadyProcessed bool               `json:"already_processed"`
	Failures         []ApartmentFailure `json:"per_apartment_failures"`
}

// Completed reports whether the run wrote, or found, the run marker.
func (r *GenerateResult) Completed() bool {
	return r != nil && (r.AlreadyProcessed || len(r.Failures) == 0)
}

type ApartmentFailure struct {
	ApartmentID string `json:"apartment_id"`
	Code        string `json:"code"`
	Reason      string `json:"reason"`
}

type InvoiceWithItems struct {
	Invoice
	Items []InvoiceItem `json:"items"`
}

// InvoiceDocument is an invoice with the roster names needed to print it.
type InvoiceDocument struct {
	InvoiceWithItems
	BuildingName  string `json:"building_name"`
	ApartmentCode string `json:"apartment_code"`
}

var (
	ErrInvoiceNotFound       = errors.New("invoice_not_found")
	ErrBuildingNotFound      = errors.New("building_not_found")
	ErrOneTimeAlreadyCharged = errors.New("one_time_fee_already_charged")
)
