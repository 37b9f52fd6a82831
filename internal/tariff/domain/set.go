package domain

import (
	"fmt"
	"sort"
)

// Set is a snapshot of a building's active tariffs, grouped by fee type.
type Set struct {
	byFee map[string][]PriceQuotation
}

func NewSet(rows []PriceQuotation) Set {
	byFee := make(map[string][]PriceQuotation, len(rows))
	for _, row := range rows {
		if !row.IsActive || row.IsDeleted {
			continue
		}
		byFee[row.FeeType] = append(byFee[row.FeeType], row)
	}
	return Set{byFee: byFee}
}

// Resolve returns the single tariff for feeType.
func (s Set) Resolve(feeType string) (PriceQuotation, Method, error) {
	rows := s.byFee[feeType]
	switch len(rows) {
	case 0:
		return PriceQuotation{}, nil, fmt.Errorf("%w: fee type %q", ErrTariffMissing, feeType)
	case 1:
	default:
		return PriceQuotation{}, nil, fmt.Errorf("%w: fee type %q has %d active tariffs", ErrTariffAmbiguous, feeType, len(rows))
	}
	method, err := rows[0].Method()
	if err != nil {
		return PriceQuotation{}, nil, fmt.Errorf("fee type %q: %w", feeType, err)
	}
	return rows[0], method, nil
}

// ResolveMetered is Resolve for a meter type; the tariff must be PER_UNIT_METER.
func (s Set) ResolveMetered(meterType string) (PriceQuotation, Method, error) {
	tariff, method, err := s.Resolve(meterType)
	if err != nil {
		return PriceQuotation{}, nil, err
	}
	if !IsMetered(method) {
		return PriceQuotation{}, nil, fmt.Errorf("%w: fee type %q uses %s", ErrTariffMethodMismatch, meterType, method.Code())
	}
	return tariff, method, nil
}

// NonMeteredFeeTypes lists, in sorted order, fee types whose rows are not all
// PER_UNIT_METER. Ambiguous groups are included so resolving them surfaces the error.
func (s Set) NonMeteredFeeTypes() []string {
	var fees []string
	for fee, rows := range s.byFee {
		for _, row := range rows {
			method, err := row.Method()
			if err != nil || !IsMetered(method) {
				fees = append(fees, fee)
				break
			}
		}
	}
	sort.Strings(fees)
	return fees
}

func (s Set) Len() int {
	return len(s.byFee)
}
