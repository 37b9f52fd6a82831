package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/estatebill/internal/billingperiod"
	buildingdomain "github.com/smallbiznis/estatebill/internal/building/domain"
	invoicedomain "github.com/smallbiznis/estatebill/internal/invoice/domain"
	"github.com/smallbiznis/estatebill/internal/invoice/render"
	notificationdomain "github.com/smallbiznis/estatebill/internal/notification/domain"
	obscontext "github.com/smallbiznis/estatebill/internal/observability/context"
	"github.com/smallbiznis/estatebill/internal/observability/logger"
	"github.com/smallbiznis/estatebill/internal/observability/metrics"
	"github.com/smallbiznis/estatebill/internal/providers/email"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB             *gorm.DB
	Log            *zap.Logger
	Invoices       invoicedomain.Aggregator
	BuildingRepo   buildingdomain.Repository
	Renderer       render.Renderer
	Email          email.Provider
	BillingMetrics *metrics.BillingMetrics `optional:"true"`
}

type Service struct {
	db             *gorm.DB
	log            *zap.Logger
	invoices       invoicedomain.Aggregator
	buildingRepo   buildingdomain.Repository
	renderer       render.Renderer
	email          email.Provider
	billingMetrics *metrics.BillingMetrics
}

func New(p Params) notificationdomain.Notifier {
	return &Service{
		db:             p.DB,
		log:            p.Log.Named("notification.service"),
		invoices:       p.Invoices,
		buildingRepo:   p.BuildingRepo,
		renderer:       p.Renderer,
		email:          p.Email,
		billingMetrics: p.BillingMetrics,
	}
}

// SendInvoiceEmails sends one message per active resident with an email address.
// Delivery failures are counted and never abort the batch.
func (s *Service) SendInvoiceEmails(ctx context.Context, buildingID snowflake.ID, period billingperiod.Period) (*notificationdomain.SendResult, error) {
	ctx = obscontext.WithBuildingID(ctx, buildingID.String())
	log := logger.WithContext(ctx, s.log).With(zap.String("billing_period", period.String()))

	building, err := s.buildingRepo.FindBuilding(ctx, s.db, buildingID)
	if err != nil {
		return nil, fmt.Errorf("find building: %w", err)
	}
	if building == nil {
		return nil, invoicedomain.ErrBuildingNotFound
	}

	invoices, err := s.invoices.ListInvoices(ctx, buildingID, period)
	if err != nil {
		return nil, err
	}
	result := &notificationdomain.SendResult{
		BuildingID:    buildingID.String(),
		BillingPeriod: period.String(),
	}
	if len(invoices) == 0 {
		return result, nil
	}

	apartments, err := s.buildingRepo.ListActiveApartments(ctx, s.db, buildingID)
	if err != nil {
		return nil, fmt.Errorf("list apartments: %w", err)
	}
	codes := make(map[snowflake.ID]string, len(apartments))
	for _, apartment := range apartments {
		codes[apartment.ID] = apartment.Code
	}

	apartmentIDs := make([]snowflake.ID, 0, len(invoices))
	for _, invoice := range invoices {
		apartmentIDs = append(apartmentIDs, invoice.ApartmentID)
	}
	residents, err := s.buildingRepo.ListActiveResidents(ctx, s.db, apartmentIDs)
	if err != nil {
		return nil, fmt.Errorf("list residents: %w", err)
	}
	byApartment := make(map[snowflake.ID][]buildingdomain.Resident, len(apartmentIDs))
	for _, resident := range residents {
		byApartment[resident.ApartmentID] = append(byApartment[resident.ApartmentID], resident)
	}

	for _, invoice := range invoices {
		if err := ctx.Err(); err != nil {
			s.billingMetrics.AddEmails(result.SentCount, result.FailedCount)
			return result, err
		}
		for _, resident := range byApartment[invoice.ApartmentID] {
			if strings.TrimSpace(resident.Email) == "" {
				continue
			}
			input := render.RenderInput{
				BuildingName:  building.Name,
				ApartmentCode: codes[invoice.ApartmentID],
				ResidentName:  resident.Name,
				Invoice:       invoice.Invoice,
				Items:         invoice.Items,
			}
			if err := s.send(ctx, resident.Email, input); err != nil {
				result.FailedCount++
				log.Warn("notification.invoice_email.failed",
					zap.String("invoice_id", invoice.ID.String()),
					zap.String("resident_id", resident.ID.String()),
					zap.Error(err),
				)
				continue
			}
			result.SentCount++
		}
	}

	s.billingMetrics.AddEmails(result.SentCount, result.FailedCount)
	log.Info("notification.invoice_email.finish",
		zap.Int("invoices", len(invoices)),
		zap.Int("sent_count", result.SentCount),
		zap.Int("failed_count", result.FailedCount),
	)
	return result, nil
}

func (s *Service) send(ctx context.Context, to string, input render.RenderInput) error {
	body, err := s.renderer.RenderHTML(input)
	if err != nil {
		return fmt.Errorf("render invoice email: %w", err)
	}
	return s.email.Send(ctx, []string{to}, s.renderer.Subject(input), body)
}
