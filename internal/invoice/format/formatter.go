package format

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/smallbiznis/estatebill/internal/billingperiod"
)

var unsafeCodeChars = regexp.MustCompile(`[^A-Z0-9]+`)

const DefaultInvoiceNumberTemplate = "INV-{YYYY}{MM}-{APT}-{SEQ}"

// FormatInvoiceNumber renders a human-readable invoice number for an apartment's
// period. seq disambiguates apartments whose codes normalise to the same value.
func FormatInvoiceNumber(template string, period billingperiod.Period, apartmentCode string, seq string) (string, error) {
	if template == "" {
		return "", fmt.Errorf("invoice number template is empty")
	}
	if period.IsZero() {
		return "", fmt.Errorf("invoice number needs a billing period")
	}

	code := unsafeCodeChars.ReplaceAllString(strings.ToUpper(strings.TrimSpace(apartmentCode)), "")
	if code == "" {
		code = "APT"
	}

	out := template
	out = strings.ReplaceAll(out, "{YYYY}", fmt.Sprintf("%04d", period.Year))
	out = strings.ReplaceAll(out, "{MM}", fmt.Sprintf("%02d", int(period.Month)))
	out = strings.ReplaceAll(out, "{APT}", code)
	out = strings.ReplaceAll(out, "{SEQ}", strings.TrimSpace(seq))

	if strings.Contains(out, "{") || strings.Contains(out, "}") {
		return "", fmt.Errorf("unresolved token in invoice format: %s", out)
	}
	return out, nil
}
