package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/estatebill/internal/billingperiod"
	buildingdomain "github.com/smallbiznis/estatebill/internal/building/domain"
	"github.com/smallbiznis/estatebill/internal/clock"
	meterdomain "github.com/smallbiznis/estatebill/internal/meter/domain"
	"github.com/smallbiznis/estatebill/internal/observability/metrics"
	readingdomain "github.com/smallbiznis/estatebill/internal/reading/domain"
	"github.com/smallbiznis/estatebill/pkg/db"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("estatebill/reading")

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Repo         readingdomain.Repository
	MeterRepo    meterdomain.Repository
	BuildingRepo buildingdomain.Repository
	Metrics      *metrics.Metrics `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	repo         readingdomain.Repository
	meterRepo    meterdomain.Repository
	buildingRepo buildingdomain.Repository
	metrics      *metrics.Metrics
}

func New(p Params) readingdomain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("reading.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		repo:         p.Repo,
		meterRepo:    p.MeterRepo,
		buildingRepo: p.BuildingRepo,
		metrics:      p.Metrics,
	}
}

func (s *Service) RecordReading(ctx context.Context, req readingdomain.RecordRequest) (*readingdomain.MeterReading, error) {
	ctx, span := tracer.Start(ctx, "reading.record")
	defer span.End()

	reading, err := s.record(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "record reading")
		s.metrics.RecordReadingRejected(ctx, rejectReason(err))
		return nil, err
	}
	return reading, nil
}

func (s *Service) record(ctx context.Context, req readingdomain.RecordRequest) (*readingdomain.MeterReading, error) {
	apartmentID, err := snowflake.ParseString(strings.TrimSpace(req.ApartmentID))
	if err != nil {
		return nil, readingdomain.ErrInvalidApartment
	}
	meterID, err := snowflake.ParseString(strings.TrimSpace(req.MeterID))
	if err != nil {
		return nil, readingdomain.ErrInvalidMeter
	}
	period, err := billingperiod.Parse(req.BillingPeriod)
	if err != nil {
		return nil, err
	}
	if req.CurrentReading.IsNegative() {
		return nil, readingdomain.ErrInvalidReading
	}
	recordedBy := strings.TrimSpace(req.RecordedBy)
	if recordedBy == "" {
		return nil, readingdomain.ErrInvalidRecorder
	}

	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("apartment_id", apartmentID.String()),
		attribute.String("meter_id", meterID.String()),
		attribute.String("billing_period", period.String()),
	)

	meter, err := s.meterRepo.FindByID(ctx, s.db, meterID)
	if err != nil {
		return nil, fmt.Errorf("find meter: %w", err)
	}
	if meter == nil || !meter.Active || meter.ApartmentID != apartmentID {
		return nil, readingdomain.ErrMeterNotFound
	}

	existing, err := s.repo.FindForPeriod(ctx, s.db, apartmentID, meterID, period)
	if err != nil {
		return nil, fmt.Errorf("find reading: %w", err)
	}
	if existing != nil {
		return nil, readingdomain.ErrDuplicateReading
	}

	// Readings chain forward only; a month earlier than an existing one would
	// overlap the consumption already derived for the later month.
	later, err := s.repo.FindEarliestAfter(ctx, s.db, apartmentID, meterID, period)
	if err != nil {
		return nil, fmt.Errorf("find later reading: %w", err)
	}
	if later != nil {
		return nil, fmt.Errorf("%w: a reading for %s already exists",
			readingdomain.ErrNonMonotonicReading, later.BillingPeriod.String())
	}

	previous := decimal.Zero
	latest, err := s.repo.FindLatestBefore(ctx, s.db, apartmentID, meterID, period)
	if err != nil {
		return nil, fmt.Errorf("find previous reading: %w", err)
	}
	if latest != nil {
		previous = latest.CurrentReading
	}
	if req.CurrentReading.LessThan(previous) {
		return nil, fmt.Errorf("%w: current %s is below previous %s",
			readingdomain.ErrNonMonotonicReading, req.CurrentReading.String(), previous.String())
	}

	reading := &readingdomain.MeterReading{
		ID:              s.genID.Generate(),
		ApartmentID:     apartmentID,
		MeterID:         meterID,
		BillingPeriod:   period,
		PreviousReading: previous,
		CurrentReading:  req.CurrentReading,
		Consumption:     req.CurrentReading.Sub(previous),
		RecordedBy:      recordedBy,
		RecordedAt:      s.clock.Now().UTC(),
	}
	if err := s.repo.Insert(ctx, s.db, reading); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, readingdomain.ErrDuplicateReading
		}
		return nil, fmt.Errorf("insert reading: %w", err)
	}

	s.metrics.RecordReadingRecorded(ctx, meter.Type)
	s.log.Info("reading.recorded",
		zap.String("reading_id", reading.ID.String()),
		zap.String("apartment_id", apartmentID.String()),
		zap.String("meter_id", meterID.String()),
		zap.String("billing_period", period.String()),
		zap.String("consumption", reading.Consumption.String()),
	)
	return reading, nil
}

func (s *Service) GetUnbilledReadings(ctx context.Context, buildingID snowflake.ID, period billingperiod.Period) ([]readingdomain.BillableReading, error) {
	rows, err := s.repo.ListUnbilled(ctx, s.db, buildingID, period)
	if err != nil {
		return nil, fmt.Errorf("list unbilled readings: %w", err)
	}
	return rows, nil
}

func (s *Service) MarkInvoiced(ctx context.Context, tx *gorm.DB, readingID, invoiceItemID snowflake.ID) error {
	affected, err := s.repo.LinkInvoiceItem(ctx, tx, readingID, invoiceItemID)
	if err != nil {
		return fmt.Errorf("link reading %s: %w", readingID, err)
	}
	if affected > 0 {
		return nil
	}
	reading, err := s.repo.FindByID(ctx, tx, readingID)
	if err != nil {
		return fmt.Errorf("find reading %s: %w", readingID, err)
	}
	if reading == nil {
		return readingdomain.ErrReadingNotFound
	}
	return fmt.Errorf("%w: reading %s", readingdomain.ErrReadingAlreadyBilled, readingID)
}

func rejectReason(err error) string {
	for _, sentinel := range []error{
		readingdomain.ErrDuplicateReading,
		readingdomain.ErrNonMonotonicReading,
		readingdomain.ErrMeterNotFound,
		billingperiod.ErrInvalidPeriod,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return "invalid_request"
}
