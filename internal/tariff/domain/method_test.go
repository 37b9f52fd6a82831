package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestCalculate(t *testing.T) {
	cases := []struct {
		name      string
		method    Method
		q         Quantities
		unitPrice string
		quantity  string
		total     string
	}{
		{"per area", PerArea{}, Quantities{Area: dec("45.5")}, "5000", "45.5", "227500"},
		{"per unit meter", PerUnitMeter{}, Quantities{Consumption: dec("30")}, "3500", "30", "105000"},
		{"fixed ignores quantities", Fixed{}, Quantities{Area: dec("99"), Occupants: 4}, "150000", "1", "150000"},
		{"per person", PerPerson{}, Quantities{Occupants: 3}, "20000", "3", "60000"},
		{"per item", PerItem{}, Quantities{Items: 2}, "50000", "2", "100000"},
		{"one time", OneTime{}, Quantities{}, "250000", "1", "250000"},
		{"zero consumption", PerUnitMeter{}, Quantities{Consumption: decimal.Zero}, "3500", "0", "0"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			line, err := Calculate(tc.method, tc.q, dec(tc.unitPrice), 0)
			require.NoError(t, err)
			assert.True(t, dec(tc.quantity).Equal(line.Quantity), "quantity %s", line.Quantity)
			assert.True(t, dec(tc.total).Equal(line.Total), "total %s", line.Total)
		})
	}
}

func TestCalculateRoundsHalfUpOnce(t *testing.T) {
	line, err := Calculate(PerArea{}, Quantities{Area: dec("10.25")}, dec("0.5"), 0)
	require.NoError(t, err)
	assert.Equal(t, "5", line.Total.String())

	line, err = Calculate(PerArea{}, Quantities{Area: dec("10.5")}, dec("0.5"), 0)
	require.NoError(t, err)
	assert.Equal(t, "5", line.Total.String())

	line, err = Calculate(PerUnitMeter{}, Quantities{Consumption: dec("5")}, dec("0.5"), 0)
	require.NoError(t, err)
	// 2.5 rounds away from zero.
	assert.Equal(t, "3", line.Total.String())

	line, err = Calculate(PerUnitMeter{}, Quantities{Consumption: dec("1.005")}, dec("1"), 2)
	require.NoError(t, err)
	assert.Equal(t, "1.01", line.Total.String())
}

func TestCalculateRejectsInvalidInput(t *testing.T) {
	_, err := Calculate(nil, Quantities{}, dec("1"), 0)
	assert.ErrorIs(t, err, ErrUnknownMethod)

	_, err = Calculate(Fixed{}, Quantities{}, dec("-1"), 0)
	assert.ErrorIs(t, err, ErrInvalidUnitPrice)

	_, err = Calculate(PerUnitMeter{}, Quantities{Consumption: dec("-2")}, dec("1"), 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestLineIsEmpty(t *testing.T) {
	zero := Line{Quantity: decimal.Zero}

	assert.True(t, zero.IsEmpty(PerPerson{}))
	assert.True(t, zero.IsEmpty(PerItem{}))
	assert.False(t, zero.IsEmpty(PerUnitMeter{}))
	assert.False(t, zero.IsEmpty(PerArea{}))
	assert.False(t, Line{Quantity: one}.IsEmpty(PerPerson{}))
}

func TestParseMethod(t *testing.T) {
	for _, code := range []string{"FIXED", "PER_UNIT_METER", "PER_AREA", "PER_PERSON", "PER_ITEM", "ONE_TIME"} {
		method, err := ParseMethod(code)
		require.NoError(t, err, code)
		assert.Equal(t, code, method.Code())
	}

	method, err := ParseMethod(" per_area ")
	require.NoError(t, err)
	assert.Equal(t, PerArea{}, method)

	_, err = ParseMethod("PER_FLOOR")
	assert.ErrorIs(t, err, ErrUnknownMethod)
	assert.True(t, IsTariffError(err))
}
