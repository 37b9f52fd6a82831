package render

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/estatebill/internal/billingperiod"
	invoicedomain "github.com/smallbiznis/estatebill/internal/invoice/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderHTML(t *testing.T) {
	r := NewRenderer()
	input := RenderInput{
		BuildingName:  "Sunrise",
		ApartmentCode: "A-101",
		ResidentName:  "<Lan>",
		Invoice: invoicedomain.Invoice{
			Number:        "INV-202405-A101-1",
			BillingPeriod: billingperiod.MustParse("2024-05"),
			Currency:      "VND",
			TotalAmount:   decimal.NewFromInt(332500),
		},
		Items: []invoicedomain.InvoiceItem{
			{Description: "management 2024-05", Quantity: decimal.RequireFromString("45.5"), UnitPrice: decimal.NewFromInt(5000), Total: decimal.NewFromInt(227500)},
			{Description: "electricity 2024-05", Quantity: decimal.NewFromInt(30), UnitPrice: decimal.NewFromInt(3500), Total: decimal.NewFromInt(105000)},
		},
	}

	html, err := r.RenderHTML(input)
	require.NoError(t, err)
	assert.Contains(t, html, "VND 227500")
	assert.Contains(t, html, "VND 332500")
	assert.Contains(t, html, "45.5")
	assert.Contains(t, html, "&lt;Lan&gt;")
	assert.False(t, strings.Contains(html, "<Lan>"))
	assert.Equal(t, "Invoice INV-202405-A101-1 for 2024-05", r.Subject(input))
}
