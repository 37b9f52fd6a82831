package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrUnknownMethod    = errors.New("unknown_calculation_method")
	ErrInvalidQuantity  = errors.New("invalid_quantity")
	ErrInvalidUnitPrice = errors.New("invalid_unit_price")
)

// Method is the closed set of calculation methods. Implementations live in this
// package only; every variant must say how it derives its quantity.
type Method interface {
	Code() string
	quantity(q Quantities) decimal.Decimal
	omitWhenZero() bool
}

type (
	Fixed        struct{}
	PerUnitMeter struct{}
	PerArea      struct{}
	PerPerson    struct{}
	PerItem      struct{}
	OneTime      struct{}
)

var one = decimal.NewFromInt(1)

func (Fixed) Code() string                        { return "FIXED" }
func (Fixed) quantity(Quantities) decimal.Decimal { return one }
func (Fixed) omitWhenZero() bool                  { return false }

func (PerUnitMeter) Code() string                          { return "PER_UNIT_METER" }
func (PerUnitMeter) quantity(q Quantities) decimal.Decimal { return q.Consumption }
func (PerUnitMeter) omitWhenZero() bool                    { return false }

func (PerArea) Code() string                          { return "PER_AREA" }
func (PerArea) quantity(q Quantities) decimal.Decimal { return q.Area }
func (PerArea) omitWhenZero() bool                    { return false }

func (PerPerson) Code() string                          { return "PER_PERSON" }
func (PerPerson) quantity(q Quantities) decimal.Decimal { return decimal.NewFromInt(q.Occupants) }
func (PerPerson) omitWhenZero() bool                    { return true }

func (PerItem) Code() string                          { return "PER_ITEM" }
func (PerItem) quantity(q Quantities) decimal.Decimal { return decimal.NewFromInt(q.Items) }
func (PerItem) omitWhenZero() bool                    { return true }

func (OneTime) Code() string                        { return "ONE_TIME" }
func (OneTime) quantity(Quantities) decimal.Decimal { return one }
func (OneTime) omitWhenZero() bool                  { return false }

// ParseMethod maps a stored code to its variant.
func ParseMethod(code string) (Method, error) {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case "FIXED":
		return Fixed{}, nil
	case "PER_UNIT_METER":
		return PerUnitMeter{}, nil
	case "PER_AREA":
		return PerArea{}, nil
	case "PER_PERSON":
		return PerPerson{}, nil
	case "PER_ITEM":
		return PerItem{}, nil
	case "ONE_TIME":
		return OneTime{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, code)
}

// IsMetered reports whether m is billed from meter readings.
func IsMetered(m Method) bool {
	_, ok := m.(PerUnitMeter)
	return ok
}

// Quantities carries every input a method may need; each method reads only its own.
type Quantities struct {
	Consumption decimal.Decimal
	Area        decimal.Decimal
	Occupants   int64
	Items       int64
}

// Line is a calculated charge. Total is rounded to the currency precision.
type Line struct {
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
	Total     decimal.Decimal
}

// IsEmpty reports whether the line should be left off the invoice.
func (l Line) IsEmpty(m Method) bool {
	return m.omitWhenZero() && l.Quantity.IsZero()
}

// Calculate prices one line. The total is rounded once, half away from zero, to
// precision decimal places.
func Calculate(m Method, q Quantities, unitPrice decimal.Decimal, precision int32) (Line, error) {
	if m == nil {
		return Line{}, ErrUnknownMethod
	}
	if unitPrice.IsNegative() {
		return Line{}, ErrInvalidUnitPrice
	}
	quantity := m.quantity(q)
	if quantity.IsNegative() {
		return Line{}, ErrInvalidQuantity
	}
	return Line{
		Quantity:  quantity,
		UnitPrice: unitPrice,
		Total:     quantity.Mul(unitPrice).Round(precision),
	}, nil
}
