package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/estatebill/internal/billingperiod"
	readingdomain "github.com/smallbiznis/estatebill/internal/reading/domain"
)

var hundred = decimal.NewFromInt(100)

// GetProgress reports, per meter type in use in the building, how many active
// apartments already have a reading for period. It never blocks invoicing.
func (s *Service) GetProgress(ctx context.Context, buildingID snowflake.ID, period billingperiod.Period) (*readingdomain.Progress, error) {
	apartments, err := s.buildingRepo.ListActiveApartments(ctx, s.db, buildingID)
	if err != nil {
		return nil, fmt.Errorf("list apartments: %w", err)
	}
	meters, err := s.meterRepo.ListActiveByBuilding(ctx, s.db, buildingID)
	if err != nil {
		return nil, fmt.Errorf("list meters: %w", err)
	}
	counts, err := s.repo.CountApartmentsByMeterType(ctx, s.db, buildingID, period)
	if err != nil {
		return nil, fmt.Errorf("count readings: %w", err)
	}

	total := len(apartments)
	progress := &readingdomain.Progress{
		BuildingID:          buildingID.String(),
		BillingPeriod:       period.String(),
		TotalApartments:     total,
		RecordedByMeterType: make(map[string]int),
		PercentByMeterType:  make(map[string]decimal.Decimal),
	}
	for _, meter := range meters {
		if _, seen := progress.RecordedByMeterType[meter.Type]; seen {
			continue
		}
		recorded := counts[meter.Type]
		progress.RecordedByMeterType[meter.Type] = recorded
		progress.PercentByMeterType[meter.Type] = percent(recorded, total)
	}
	return progress, nil
}

func percent(recorded, total int) decimal.Decimal {
	if total <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(recorded)).Mul(hundred).Div(decimal.NewFromInt(int64(total))).Round(2)
}

