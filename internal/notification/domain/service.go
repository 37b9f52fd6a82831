package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/estatebill/internal/billingperiod"
)

// Notifier emails issued invoices to the residents of their apartments.
type Notifier interface {
	SendInvoiceEmails(ctx context.Context, buildingID snowflake.ID, period billingperiod.Period) (*SendResult, error)
}

type SendResult struct {
	BuildingID    string `json:"building_id"`
	BillingPeriod string `json:"billing_period"`
	SentCount     int    `json:"sent_count"`
	FailedCount   int    `json:"failed_count"`
}
