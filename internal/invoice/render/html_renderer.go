package render

import (
	"bytes"
	"html/template"
	"strings"

	"github.com/shopspring/decimal"
	invoicedomain "github.com/smallbiznis/estatebill/internal/invoice/domain"
)

const invoiceEmailTemplate = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <title>Invoice {{.Invoice.Number}}</title>
  <style>
    body { margin: 0; padding: 32px; font-family: -apple-system, "Segoe UI", Roboto, Arial, sans-serif; color: #1a1f36; background: #f7f9fc; }
    .card { background: #ffffff; max-width: 680px; margin: 0 auto; padding: 40px; border-radius: 4px; }
    h1 { margin: 0 0 4px; font-size: 22px; }
    .muted { color: #8792a2; font-size: 13px; }
    table { width: 100%; border-collapse: collapse; margin-top: 24px; font-size: 14px; }
    th { text-align: left; color: #8792a2; font-weight: 600; font-size: 11px; text-transform: uppercase; padding-bottom: 8px; }
    td { padding: 8px 0; border-top: 1px solid #e3e8ee; }
    .num { text-align: right; }
    .total td { font-weight: 700; border-top: 2px solid #1a1f36; }
  </style>
</head>
<body>
  <div class="card">
    <h1>{{.BuildingName}} · {{.ApartmentCode}}</h1>
    <div class="muted">Invoice {{.Invoice.Number}} for {{.Invoice.BillingPeriod}}</div>
    {{if .ResidentName}}<p>Dear {{.ResidentName}},</p>{{end}}
    <p>Your monthly statement is ready.</p>
    <table>
      <thead>
        <tr><th>Fee</th><th class="num">Quantity</th><th class="num">Unit price</th><th class="num">Amount</th></tr>
      </thead>
      <tbody>
        {{range .Items}}
        <tr>
          <td>{{.Description}}</td>
          <td class="num">{{formatQuantity .Quantity}}</td>
          <td class="num">{{formatMoney .UnitPrice $.Invoice.Currency}}</td>
          <td class="num">{{formatMoney .Total $.Invoice.Currency}}</td>
        </tr>
        {{end}}
        <tr class="total">
          <td colspan="3">Total</td>
          <td class="num">{{formatMoney .Invoice.TotalAmount .Invoice.Currency}}</td>
        </tr>
      </tbody>
    </table>
  </div>
</body>
</html>
`

// RenderInput is everything shown in an invoice email.
type RenderInput struct {
	BuildingName  string
	ApartmentCode string
	ResidentName  string
	Invoice       invoicedomain.Invoice
	Items         []invoicedomain.InvoiceItem
}

type Renderer interface {
	RenderHTML(input RenderInput) (string, error)
	Subject(input RenderInput) string
}

type HTMLRenderer struct {
	tpl *template.Template
}

func NewRenderer() Renderer {
	funcs := template.FuncMap{
		"formatMoney":    formatMoney,
		"formatQuantity": formatQuantity,
	}
	return &HTMLRenderer{
		tpl: template.Must(template.New("invoice").Funcs(funcs).Parse(invoiceEmailTemplate)),
	}
}

func (r *HTMLRenderer) RenderHTML(input RenderInput) (string, error) {
	var buf bytes.Buffer
	if err := r.tpl.Execute(&buf, input); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (r *HTMLRenderer) Subject(input RenderInput) string {
	return "Invoice " + input.Invoice.Number + " for " + input.Invoice.BillingPeriod.String()
}

func formatMoney(amount decimal.Decimal, currency string) string {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return amount.String()
	}
	return currency + " " + amount.String()
}

func formatQuantity(value decimal.Decimal) string {
	return value.Round(2).String()
}
