package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/estatebill/internal/billingperiod"
	buildingdomain "github.com/smallbiznis/estatebill/internal/building/domain"
	invoicedomain "github.com/smallbiznis/estatebill/internal/invoice/domain"
	readingdomain "github.com/smallbiznis/estatebill/internal/reading/domain"
	tariffdomain "github.com/smallbiznis/estatebill/internal/tariff/domain"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type apartmentJob struct {
	building  *buildingdomain.Building
	apartment *buildingdomain.Apartment
	period    billingperiod.Period
	tariffs   tariffdomain.Set
	readings  []readingdomain.BillableReading
	currency  string
	precision int32
}

// draft is an invoice line plus what must be linked or recorded alongside it.
type draft struct {
	item      invoicedomain.InvoiceItem
	readingID *snowflake.ID
	oneTime   bool
}

// invoiceApartment builds and persists one apartment's invoice. Any error leaves the
// apartment untouched so a rerun can retry it.
func (s *Service) invoiceApartment(ctx context.Context, job apartmentJob) (apartmentOutcome, error) {
	existing, err := s.repo.FindByApartment(ctx, s.db, job.apartment.ID, job.period)
	if err != nil {
		return 0, fmt.Errorf("find invoice: %w", err)
	}
	if existing != nil {
		return outcomeSkipped, nil
	}

	drafts, err := s.buildDrafts(ctx, job)
	if err != nil {
		return 0, err
	}
	if len(drafts) == 0 {
		return outcomeEmpty, nil
	}

	now := s.clock.Now().UTC()
	invoiceID := s.genID.Generate()
	number, err := invoiceNumber(job.period, job.apartment.Code, invoiceID)
	if err != nil {
		return 0, err
	}

	items := make([]invoicedomain.InvoiceItem, 0, len(drafts))
	for i := range drafts {
		drafts[i].item.ID = s.genID.Generate()
		drafts[i].item.InvoiceID = invoiceID
		drafts[i].item.CreatedAt = now
		items = append(items, drafts[i].item)
	}

	invoice := &invoicedomain.Invoice{
		ID:            invoiceID,
		Number:        number,
		ApartmentID:   job.apartment.ID,
		BuildingID:    job.building.ID,
		BillingPeriod: job.period,
		PeriodStart:   job.period.Start(),
		PeriodEnd:     job.period.End(),
		Status:        invoicedomain.InvoiceStatusIssued,
		Currency:      job.currency,
		TotalAmount:   sumTotals(items),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	outcome := outcomeCreated
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inserted, err := s.repo.InsertInvoice(ctx, tx, invoice)
		if err != nil {
			return fmt.Errorf("insert invoice: %w", err)
		}
		if !inserted {
			outcome = outcomeSkipped
			return nil
		}
		if err := s.repo.InsertItems(ctx, tx, items); err != nil {
			return fmt.Errorf("insert invoice items: %w", err)
		}
		for _, d := range drafts {
			if d.readingID != nil {
				if err := s.readings.MarkInvoiced(ctx, tx, *d.readingID, d.item.ID); err != nil {
					return err
				}
			}
			if d.oneTime {
				charged, err := s.repo.InsertOneTimeCharge(ctx, tx, &invoicedomain.OneTimeCharge{
					ApartmentID:   job.apartment.ID,
					FeeType:       d.item.FeeType,
					InvoiceItemID: d.item.ID,
					BillingPeriod: job.period,
					ChargedAt:     now,
				})
				if err != nil {
					return fmt.Errorf("record one-time charge: %w", err)
				}
				if !charged {
					return fmt.Errorf("%w: %s", invoicedomain.ErrOneTimeAlreadyCharged, d.item.FeeType)
				}
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if outcome == outcomeCreated {
		for _, item := range items {
			s.metrics.RecordInvoiceItem(ctx, item.FeeType, item.CalculationMethod)
		}
		s.log.Debug("invoice.generated",
			zap.String("invoice_id", invoice.ID.String()),
			zap.String("apartment_id", job.apartment.ID.String()),
			zap.String("billing_period", job.period.String()),
			zap.Int("items", len(items)),
			zap.String("total", invoice.TotalAmount.String()),
		)
	}
	return outcome, nil
}

// buildDrafts prices consumption lines from readings, then every non-metered tariff.
func (s *Service) buildDrafts(ctx context.Context, job apartmentJob) ([]draft, error) {
	var drafts []draft

	for i := range job.readings {
		reading := job.readings[i]
		tariff, method, err := job.tariffs.ResolveMetered(reading.MeterType)
		if err != nil {
			return nil, err
		}
		line, err := tariffdomain.Calculate(method, tariffdomain.Quantities{Consumption: reading.Consumption}, tariff.UnitPrice, job.precision)
		if err != nil {
			return nil, fmt.Errorf("price %s reading: %w", reading.MeterType, err)
		}
		readingID := reading.ID
		drafts = append(drafts, draft{
			item: newItem(tariff, method, line,
				fmt.Sprintf("%s %s (%s to %s)", reading.MeterType, job.period, reading.PreviousReading, reading.CurrentReading),
				datatypes.JSONMap{
					"unit":             tariff.Unit,
					"tariff_id":        tariff.ID.String(),
					"meter_id":         reading.MeterID.String(),
					"previous_reading": reading.PreviousReading.String(),
					"current_reading":  reading.CurrentReading.String(),
				},
				&readingID,
			),
			readingID: &readingID,
		})
	}

	var (
		charged    map[string]struct{}
		itemCounts map[string]int64
	)
	for _, feeType := range job.tariffs.NonMeteredFeeTypes() {
		tariff, method, err := job.tariffs.Resolve(feeType)
		if err != nil {
			return nil, err
		}

		quantities := tariffdomain.Quantities{
			Area:      job.apartment.Area,
			Occupants: int64(job.apartment.OccupantCount),
		}
		switch method.(type) {
		case tariffdomain.OneTime:
			if charged == nil {
				if charged, err = s.repo.ChargedOneTimeFees(ctx, s.db, job.apartment.ID); err != nil {
					return nil, fmt.Errorf("load one-time charges: %w", err)
				}
			}
			if _, done := charged[feeType]; done {
				continue
			}
		case tariffdomain.PerItem:
			if itemCounts == nil {
				if itemCounts, err = s.buildingRepo.ItemCounts(ctx, s.db, job.apartment.ID); err != nil {
					return nil, fmt.Errorf("load item counts: %w", err)
				}
			}
			quantities.Items = itemCounts[feeType]
		}

		line, err := tariffdomain.Calculate(method, quantities, tariff.UnitPrice, job.precision)
		if err != nil {
			return nil, fmt.Errorf("price %s: %w", feeType, err)
		}
		if line.IsEmpty(method) {
			continue
		}
		_, oneTime := method.(tariffdomain.OneTime)
		drafts = append(drafts, draft{
			item: newItem(tariff, method, line,
				fmt.Sprintf("%s %s", feeType, job.period),
				datatypes.JSONMap{"unit": tariff.Unit, "tariff_id": tariff.ID.String()},
				nil,
			),
			oneTime: oneTime,
		})
	}
	return drafts, nil
}

func newItem(tariff tariffdomain.PriceQuotation, method tariffdomain.Method, line tariffdomain.Line, description string, metadata datatypes.JSONMap, readingID *snowflake.ID) invoicedomain.InvoiceItem {
	return invoicedomain.InvoiceItem{
		FeeType:           tariff.FeeType,
		CalculationMethod: method.Code(),
		Description:       description,
		Quantity:          line.Quantity,
		UnitPrice:         line.UnitPrice,
		Total:             line.Total,
		MeterReadingID:    readingID,
		Metadata:          metadata,
	}
}
