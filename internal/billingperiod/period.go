// Package billingperiod models the calendar month a billing run covers.
package billingperiod

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const layout = "2006-01"

var ErrInvalidPeriod = errors.New("invalid_billing_period")

// Period is a calendar month, formatted "YYYY-MM".
type Period struct {
	Year  int
	Month time.Month
}

// Parse accepts exactly "YYYY-MM" with month 01..12.
func Parse(raw string) (Period, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) != 7 || raw[4] != '-' || !digits(raw[:4]) || !digits(raw[5:]) {
		return Period{}, ErrInvalidPeriod
	}
	year, err := strconv.Atoi(raw[:4])
	if err != nil || year < 1 {
		return Period{}, ErrInvalidPeriod
	}
	month, err := strconv.Atoi(raw[5:])
	if err != nil || month < 1 || month > 12 {
		return Period{}, ErrInvalidPeriod
	}
	return Period{Year: year, Month: time.Month(month)}, nil
}

func digits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// MustParse is Parse for literals in tests and defaults.
func MustParse(raw string) Period {
	p, err := Parse(raw)
	if err != nil {
		panic(fmt.Sprintf("billingperiod: %q: %v", raw, err))
	}
	return p
}

// Of returns the month containing t, in t's location.
func Of(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

// Previous returns the calendar month strictly before t, in t's location.
func Previous(t time.Time) Period {
	return Of(t).Prev()
}

func (p Period) Prev() Period {
	if p.Month == time.January {
		return Period{Year: p.Year - 1, Month: time.December}
	}
	return Period{Year: p.Year, Month: p.Month - 1}
}

func (p Period) Next() Period {
	if p.Month == time.December {
		return Period{Year: p.Year + 1, Month: time.January}
	}
	return Period{Year: p.Year, Month: p.Month + 1}
}

func (p Period) IsZero() bool {
	return p.Year == 0 && p.Month == 0
}

// Start is the first instant of the month in UTC.
func (p Period) Start() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End is the first instant of the following month in UTC (exclusive).
func (p Period) End() time.Time {
	return p.Next().Start()
}

// Days is the number of days in the month.
func (p Period) Days() int {
	return p.End().AddDate(0, 0, -1).Day()
}

func (p Period) String() string {
	if p.IsZero() {
		return ""
	}
	return p.Start().Format(layout)
}

func (p Period) Before(other Period) bool {
	if p.Year != other.Year {
		return p.Year < other.Year
	}
	return p.Month < other.Month
}

// GormDataType lets gorm migrate Period columns as text.
func (Period) GormDataType() string { return "string" }

// Value stores the period as its "YYYY-MM" text.
func (p Period) Value() (driver.Value, error) {
	if p.IsZero() {
		return nil, ErrInvalidPeriod
	}
	return p.String(), nil
}

func (p *Period) Scan(src any) error {
	var raw string
	switch v := src.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	case nil:
		*p = Period{}
		return nil
	default:
		return fmt.Errorf("billingperiod: cannot scan %T", src)
	}
	parsed, err := Parse(raw)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

func (p Period) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Period) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
