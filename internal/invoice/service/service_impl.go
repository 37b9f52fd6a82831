package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/estatebill/internal/billingperiod"
	buildingdomain "github.com/smallbiznis/estatebill/internal/building/domain"
	"github.com/smallbiznis/estatebill/internal/clock"
	"github.com/smallbiznis/estatebill/internal/config"
	invoicedomain "github.com/smallbiznis/estatebill/internal/invoice/domain"
	"github.com/smallbiznis/estatebill/internal/invoice/format"
	obscontext "github.com/smallbiznis/estatebill/internal/observability/context"
	"github.com/smallbiznis/estatebill/internal/observability/logger"
	"github.com/smallbiznis/estatebill/internal/observability/metrics"
	readingdomain "github.com/smallbiznis/estatebill/internal/reading/domain"
	tariffdomain "github.com/smallbiznis/estatebill/internal/tariff/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("estatebill/invoice")

type ServiceParam struct {
	fx.In

	DB             *gorm.DB
	Log            *zap.Logger
	GenID          *snowflake.Node
	Clock          clock.Clock
	BillingConfig  *config.BillingConfigHolder
	Repo           invoicedomain.Repository
	BuildingRepo   buildingdomain.Repository
	Tariffs        tariffdomain.Resolver
	Readings       readingdomain.Service
	BillingMetrics *metrics.BillingMetrics `optional:"true"`
	Metrics        *metrics.Metrics        `optional:"true"`
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID          *snowflake.Node
	clock          clock.Clock
	billingConfig  *config.BillingConfigHolder
	repo           invoicedomain.Repository
	buildingRepo   buildingdomain.Repository
	tariffs        tariffdomain.Resolver
	readings       readingdomain.Service
	billingMetrics *metrics.BillingMetrics
	metrics        *metrics.Metrics
}

func NewService(p ServiceParam) invoicedomain.Aggregator {
	return &Service{
		db:             p.DB,
		log:            p.Log.Named("invoice.service"),
		genID:          p.GenID,
		clock:          p.Clock,
		billingConfig:  p.BillingConfig,
		repo:           p.Repo,
		buildingRepo:   p.BuildingRepo,
		tariffs:        p.Tariffs,
		readings:       p.Readings,
		billingMetrics: p.BillingMetrics,
		metrics:        p.Metrics,
	}
}

type apartmentOutcome int

const (
	outcomeCreated apartmentOutcome = iota
	outcomeSkipped
	outcomeEmpty
)

func (s *Service) GenerateInvoices(ctx context.Context, buildingID snowflake.ID, period billingperiod.Period) (*invoicedomain.GenerateResult, error) {
	if period.IsZero() {
		period = billingperiod.Previous(s.clock.Now())
	}
	ctx = obscontext.WithBuildingID(ctx, buildingID.String())
	ctx, span := tracer.Start(ctx, "invoice.generate", trace.WithAttributes(
		attribute.String("building_id", buildingID.String()),
		attribute.String("billing_period", period.String()),
	))
	defer span.End()

	result, err := s.generate(ctx, buildingID, period)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generate invoices")
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("processed_count", result.ProcessedCount),
		attribute.Int("skipped_count", result.SkippedCount),
		attribute.Int("failure_count", len(result.Failures)),
		attribute.Bool("already_processed", result.AlreadyProcessed),
	)
	return result, nil
}

func (s *Service) generate(ctx context.Context, buildingID snowflake.ID, period billingperiod.Period) (*invoicedomain.GenerateResult, error) {
	log := logger.WithContext(ctx, s.log).With(zap.String("billing_period", period.String()))
	result := &invoicedomain.GenerateResult{
		BuildingID:    buildingID.String(),
		BillingPeriod: period.String(),
		Failures:      []invoicedomain.ApartmentFailure{},
	}

	building, err := s.buildingRepo.FindBuilding(ctx, s.db, buildingID)
	if err != nil {
		return nil, fmt.Errorf("find building: %w", err)
	}
	if building == nil {
		return nil, invoicedomain.ErrBuildingNotFound
	}

	marker, err := s.repo.FindMarker(ctx, s.db, buildingID, period)
	if err != nil {
		return nil, fmt.Errorf("find run marker: %w", err)
	}
	if marker != nil {
		log.Info("invoice.generate.already_processed", zap.Time("completed_at", marker.CompletedAt))
		result.AlreadyProcessed = true
		return result, nil
	}

	apartments, err := s.buildingRepo.ListActiveApartments(ctx, s.db, buildingID)
	if err != nil {
		return nil, fmt.Errorf("list apartments: %w", err)
	}
	tariffs, err := s.tariffs.LoadSet(ctx, buildingID)
	if err != nil {
		return nil, err
	}
	readings, err := s.readings.GetUnbilledReadings(ctx, buildingID, period)
	if err != nil {
		return nil, err
	}
	byApartment := make(map[snowflake.ID][]readingdomain.BillableReading)
	for _, reading := range readings {
		byApartment[reading.ApartmentID] = append(byApartment[reading.ApartmentID], reading)
	}

	cfg := s.billingConfig.Get()
	for i := range apartments {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("generate invoices interrupted: %w", err)
		}
		apartment := apartments[i]
		outcome, err := s.invoiceApartment(ctx, apartmentJob{
			building:  building,
			apartment: &apartment,
			period:    period,
			tariffs:   tariffs,
			readings:  byApartment[apartment.ID],
			currency:  cfg.Currency,
			precision: cfg.CurrencyPrecision,
		})
		if err != nil {
			failure := invoicedomain.ApartmentFailure{
				ApartmentID: apartment.ID.String(),
				Code:        failureCode(err),
				Reason:      err.Error(),
			}
			result.Failures = append(result.Failures, failure)
			s.billingMetrics.IncApartmentFailure(failure.Code)
			log.Warn("invoice.apartment.failed",
				zap.String("apartment_id", failure.ApartmentID),
				zap.String("code", failure.Code),
				zap.Error(err),
			)
			continue
		}
		switch outcome {
		case outcomeCreated:
			result.ProcessedCount++
		case outcomeSkipped:
			result.SkippedCount++
		}
	}
	s.billingMetrics.AddInvoicesGenerated(result.ProcessedCount)

	if len(result.Failures) == 0 {
		if err := s.repo.InsertMarker(ctx, s.db, &invoicedomain.BillingRunMarker{
			BuildingID:     buildingID,
			BillingPeriod:  period,
			ProcessedCount: result.ProcessedCount,
			CompletedAt:    s.clock.Now().UTC(),
		}); err != nil {
			return nil, fmt.Errorf("write run marker: %w", err)
		}
	}

	log.Info("invoice.generate.finish",
		zap.Int("apartments", len(apartments)),
		zap.Int("processed_count", result.ProcessedCount),
		zap.Int("skipped_count", result.SkippedCount),
		zap.Int("failure_count", len(result.Failures)),
		zap.Bool("completed", len(result.Failures) == 0),
	)
	return result, nil
}

func (s *Service) ListInvoices(ctx context.Context, buildingID snowflake.ID, period billingperiod.Period) ([]invoicedomain.InvoiceWithItems, error) {
	invoices, err := s.repo.ListByBuilding(ctx, s.db, buildingID, period)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	ids := make([]snowflake.ID, 0, len(invoices))
	for _, invoice := range invoices {
		ids = append(ids, invoice.ID)
	}
	items, err := s.repo.ListItems(ctx, s.db, ids)
	if err != nil {
		return nil, fmt.Errorf("list invoice items: %w", err)
	}
	byInvoice := make(map[snowflake.ID][]invoicedomain.InvoiceItem, len(invoices))
	for _, item := range items {
		byInvoice[item.InvoiceID] = append(byInvoice[item.InvoiceID], item)
	}

	out := make([]invoicedomain.InvoiceWithItems, 0, len(invoices))
	for _, invoice := range invoices {
		lines := byInvoice[invoice.ID]
		if lines == nil {
			lines = []invoicedomain.InvoiceItem{}
		}
		out = append(out, invoicedomain.InvoiceWithItems{Invoice: invoice, Items: lines})
	}
	return out, nil
}

func (s *Service) GetInvoice(ctx context.Context, invoiceID snowflake.ID) (*invoicedomain.InvoiceDocument, error) {
	invoice, err := s.repo.FindByID(ctx, s.db, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("find invoice: %w", err)
	}
	if invoice == nil {
		return nil, invoicedomain.ErrInvoiceNotFound
	}
	items, err := s.repo.ListItems(ctx, s.db, []snowflake.ID{invoice.ID})
	if err != nil {
		return nil, fmt.Errorf("list invoice items: %w", err)
	}
	if items == nil {
		items = []invoicedomain.InvoiceItem{}
	}

	doc := &invoicedomain.InvoiceDocument{
		InvoiceWithItems: invoicedomain.InvoiceWithItems{Invoice: *invoice, Items: items},
	}
	building, err := s.buildingRepo.FindBuilding(ctx, s.db, invoice.BuildingID)
	if err != nil {
		return nil, fmt.Errorf("find building: %w", err)
	}
	if building != nil {
		doc.BuildingName = building.Name
	}
	apartment, err := s.buildingRepo.FindApartment(ctx, s.db, invoice.ApartmentID)
	if err != nil {
		return nil, fmt.Errorf("find apartment: %w", err)
	}
	if apartment != nil {
		doc.ApartmentCode = apartment.Code
	}
	return doc, nil
}

func failureCode(err error) string {
	for _, sentinel := range []error{
		tariffdomain.ErrTariffMissing,
		tariffdomain.ErrTariffAmbiguous,
		tariffdomain.ErrTariffMethodMismatch,
		tariffdomain.ErrUnknownMethod,
		tariffdomain.ErrInvalidQuantity,
		tariffdomain.ErrInvalidUnitPrice,
		readingdomain.ErrReadingAlreadyBilled,
		readingdomain.ErrReadingNotFound,
		invoicedomain.ErrOneTimeAlreadyCharged,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return metrics.ClassifyReason(err)
}

func sumTotals(items []invoicedomain.InvoiceItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Total)
	}
	return total
}

func invoiceNumber(period billingperiod.Period, apartmentCode string, id snowflake.ID) (string, error) {
	return format.FormatInvoiceNumber(format.DefaultInvoiceNumberTemplate, period, apartmentCode, id.String())
}
