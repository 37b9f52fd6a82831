package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/estatebill/internal/billingperiod"
	buildingdomain "github.com/smallbiznis/estatebill/internal/building/domain"
	buildingrepo "github.com/smallbiznis/estatebill/internal/building/repository"
	"github.com/smallbiznis/estatebill/internal/clock"
	"github.com/smallbiznis/estatebill/internal/config"
	invoicedomain "github.com/smallbiznis/estatebill/internal/invoice/domain"
	"github.com/smallbiznis/estatebill/internal/invoice/repository"
	meterrepo "github.com/smallbiznis/estatebill/internal/meter/repository"
	readingdomain "github.com/smallbiznis/estatebill/internal/reading/domain"
	readingrepo "github.com/smallbiznis/estatebill/internal/reading/repository"
	readingservice "github.com/smallbiznis/estatebill/internal/reading/service"
	tariffdomain "github.com/smallbiznis/estatebill/internal/tariff/domain"
	tariffrepo "github.com/smallbiznis/estatebill/internal/tariff/repository"
	tariffservice "github.com/smallbiznis/estatebill/internal/tariff/service"
	"github.com/smallbiznis/estatebill/internal/testutil/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var may = billingperiod.MustParse("2024-05")

type fixture struct {
	db       *gorm.DB
	seed     *dbtest.Seeder
	readings readingdomain.Service
	svc      invoicedomain.Aggregator
	param    ServiceParam
	building *buildingdomain.Building
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := dbtest.Open(t)
	node := dbtest.Node(t)
	seed := dbtest.NewSeeder(t, db, node)
	clk := clock.NewFakeClock(time.Date(2024, 6, 5, 22, 15, 0, 0, time.UTC))
	log := zap.NewNop()
	buildings := buildingrepo.Provide()

	readings := readingservice.New(readingservice.Params{
		DB:           db,
		Log:          log,
		GenID:        node,
		Clock:        clk,
		Repo:         readingrepo.Provide(),
		MeterRepo:    meterrepo.Provide(),
		BuildingRepo: buildings,
	})
	param := ServiceParam{
		DB:            db,
		Log:           log,
		GenID:         node,
		Clock:         clk,
		BillingConfig: config.NewStaticBillingConfigHolder(config.DefaultBillingConfig()),
		Repo:          repository.Provide(),
		BuildingRepo:  buildings,
		Tariffs:       tariffservice.New(tariffservice.Params{DB: db, Log: log, Repo: tariffrepo.Provide()}),
		Readings:      readings,
	}

	return &fixture{
		db:       db,
		seed:     seed,
		readings: readings,
		svc:      NewService(param),
		param:    param,
		building: seed.Building("Sunrise Tower", 5),
	}
}

// staleReadings bills every reading it hands out, as a concurrent writer would.
type staleReadings struct {
	readingdomain.Service
	db *gorm.DB
}

func (s *staleReadings) GetUnbilledReadings(ctx context.Context, buildingID snowflake.ID, period billingperiod.Period) ([]readingdomain.BillableReading, error) {
	rows, err := s.Service.GetUnbilledReadings(ctx, buildingID, period)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if err := s.db.Exec(`UPDATE meter_readings SET invoice_item_id = ? WHERE id = ?`, 42, row.ID).Error; err != nil {
			return nil, err
		}
	}
	return rows, nil
}

func (f *fixture) record(t *testing.T, apartmentID, meterID snowflake.ID, period, value string) {
	t.Helper()
	_, err := f.readings.RecordReading(context.Background(), readingdomain.RecordRequest{
		ApartmentID:    apartmentID.String(),
		MeterID:        meterID.String(),
		BillingPeriod:  period,
		CurrentReading: decimal.RequireFromString(value),
		RecordedBy:     "staff-1",
	})
	require.NoError(t, err)
}

func (f *fixture) count(t *testing.T, table string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Table(table).Count(&n).Error)
	return n
}

func itemsByFee(items []invoicedomain.InvoiceItem) map[string]invoicedomain.InvoiceItem {
	out := make(map[string]invoicedomain.InvoiceItem, len(items))
	for _, item := range items {
		out[item.FeeType] = item
	}
	return out
}

func TestGenerateInvoicesPricesEveryMethod(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	apartment := f.seed.Apartment(f.building.ID, "A-101", "45.5", 2)
	meter := f.seed.Meter(apartment.ID, "electricity")
	f.seed.Item(apartment.ID, "parking", 1)
	f.seed.Tariff(f.building.ID, "electricity", "PER_UNIT_METER", "3500")
	f.seed.Tariff(f.building.ID, "management", "PER_AREA", "5000")
	f.seed.Tariff(f.building.ID, "garbage", "PER_PERSON", "10000")
	f.seed.Tariff(f.building.ID, "parking", "PER_ITEM", "70000")
	f.seed.Tariff(f.building.ID, "bicycle", "PER_ITEM", "20000")
	f.seed.Tariff(f.building.ID, "registration", "ONE_TIME", "250000")
	f.seed.Tariff(f.building.ID, "security", "FIXED", "50000")

	f.record(t, apartment.ID, meter.ID, "2024-04", "120")
	f.record(t, apartment.ID, meter.ID, "2024-05", "150")

	result, err := f.svc.GenerateInvoices(ctx, f.building.ID, may)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ProcessedCount)
	assert.Empty(t, result.Failures)
	assert.True(t, result.Completed())

	invoices, err := f.svc.ListInvoices(ctx, f.building.ID, may)
	require.NoError(t, err)
	require.Len(t, invoices, 1)

	invoice := invoices[0]
	assert.Equal(t, invoicedomain.InvoiceStatusIssued, invoice.Status)
	assert.Equal(t, "VND", invoice.Currency)
	assert.Regexp(t, `^INV-202405-A101-\d+$`, invoice.Number)
	assert.Equal(t, may.Start(), invoice.PeriodStart.UTC())

	lines := itemsByFee(invoice.Items)
	require.Len(t, lines, 6, "zero-count bicycle line is omitted")
	expected := map[string]string{
		"electricity":  "105000",
		"management":   "227500",
		"garbage":      "20000",
		"parking":      "70000",
		"registration": "250000",
		"security":     "50000",
	}
	for fee, total := range expected {
		assert.True(t, decimal.RequireFromString(total).Equal(lines[fee].Total), "%s total %s", fee, lines[fee].Total)
	}
	assert.Equal(t, "722500", invoice.TotalAmount.String())
	require.NotNil(t, lines["electricity"].MeterReadingID)
	assert.Equal(t, "PER_UNIT_METER", lines["electricity"].CalculationMethod)

	unbilled, err := f.readings.GetUnbilledReadings(ctx, f.building.ID, may)
	require.NoError(t, err)
	assert.Empty(t, unbilled)
}

func TestGenerateInvoicesIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seed.Apartment(f.building.ID, "A-101", "45.5", 2)
	f.seed.Tariff(f.building.ID, "management", "PER_AREA", "5000")

	first, err := f.svc.GenerateInvoices(ctx, f.building.ID, may)
	require.NoError(t, err)
	assert.Equal(t, 1, first.ProcessedCount)

	second, err := f.svc.GenerateInvoices(ctx, f.building.ID, may)
	require.NoError(t, err)
	assert.True(t, second.AlreadyProcessed)
	assert.Zero(t, second.ProcessedCount)

	assert.EqualValues(t, 1, f.count(t, "invoices"))
	assert.EqualValues(t, 1, f.count(t, "invoice_items"))
	assert.EqualValues(t, 1, f.count(t, "billing_run_markers"))
}

func TestGenerateInvoicesRollsBackFailedApartment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stale := f.seed.Apartment(f.building.ID, "A-101", "45.5", 2)
	meter := f.seed.Meter(stale.ID, "electricity")
	healthy := f.seed.Apartment(f.building.ID, "A-102", "30", 1)
	f.seed.Tariff(f.building.ID, "electricity", "PER_UNIT_METER", "3500")
	f.seed.Tariff(f.building.ID, "management", "PER_AREA", "5000")
	f.record(t, stale.ID, meter.ID, "2024-05", "150")

	param := f.param
	param.Readings = &staleReadings{Service: f.readings, db: f.db}
	svc := NewService(param)

	result, err := svc.GenerateInvoices(ctx, f.building.ID, may)
	require.NoError(t, err)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, stale.ID.String(), result.Failures[0].ApartmentID)
	assert.Equal(t, readingdomain.ErrReadingAlreadyBilled.Error(), result.Failures[0].Code)
	assert.Equal(t, 1, result.ProcessedCount)
	assert.False(t, result.Completed())

	var invoices, items int64
	require.NoError(t, f.db.Table("invoices").Where("apartment_id = ?", stale.ID).Count(&invoices).Error)
	require.NoError(t, f.db.Table("invoice_items").
		Joins("JOIN invoices ON invoices.id = invoice_items.invoice_id").
		Where("invoices.apartment_id = ?", stale.ID).
		Count(&items).Error)
	assert.Zero(t, invoices)
	assert.Zero(t, items)

	var kept int64
	require.NoError(t, f.db.Table("invoices").Where("apartment_id = ?", healthy.ID).Count(&kept).Error)
	assert.EqualValues(t, 1, kept)
	assert.Zero(t, f.count(t, "billing_run_markers"))
}

func TestGenerateInvoicesConcurrentRunsCreateNoDuplicates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.seed.Apartment(f.building.ID, "A-101", "45.5", 2)
	meter := f.seed.Meter(first.ID, "electricity")
	f.seed.Apartment(f.building.ID, "A-102", "30", 1)
	f.seed.Tariff(f.building.ID, "electricity", "PER_UNIT_METER", "3500")
	f.seed.Tariff(f.building.ID, "management", "PER_AREA", "5000")
	f.record(t, first.ID, meter.ID, "2024-05", "150")

	const runs = 2
	results := make([]*invoicedomain.GenerateResult, runs)
	errs := make([]error, runs)
	var wg sync.WaitGroup
	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.svc.GenerateInvoices(ctx, f.building.ID, may)
		}(i)
	}
	wg.Wait()

	processed := 0
	for i := 0; i < runs; i++ {
		require.NoError(t, errs[i])
		assert.Empty(t, results[i].Failures)
		processed += results[i].ProcessedCount
	}
	assert.Equal(t, 2, processed)
	assert.EqualValues(t, 2, f.count(t, "invoices"))
	assert.EqualValues(t, 3, f.count(t, "invoice_items"))
	assert.EqualValues(t, 1, f.count(t, "billing_run_markers"))
}

func TestGenerateInvoicesDefaultsToPreviousMonth(t *testing.T) {
	f := newFixture(t)
	f.seed.Apartment(f.building.ID, "A-101", "45.5", 2)
	f.seed.Tariff(f.building.ID, "management", "PER_AREA", "5000")

	result, err := f.svc.GenerateInvoices(context.Background(), f.building.ID, billingperiod.Period{})
	require.NoError(t, err)
	assert.Equal(t, "2024-05", result.BillingPeriod)
	assert.Equal(t, 1, result.ProcessedCount)
}

func TestGenerateInvoicesWithoutActivity(t *testing.T) {
	f := newFixture(t)
	f.seed.Apartment(f.building.ID, "A-101", "45.5", 2)

	result, err := f.svc.GenerateInvoices(context.Background(), f.building.ID, may)
	require.NoError(t, err)
	assert.Zero(t, result.ProcessedCount)
	assert.True(t, result.Completed())
	assert.EqualValues(t, 0, f.count(t, "invoices"))
	assert.EqualValues(t, 1, f.count(t, "billing_run_markers"))
}

func TestGenerateInvoicesUnknownBuilding(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.GenerateInvoices(context.Background(), snowflake.ID(42), may)
	assert.ErrorIs(t, err, invoicedomain.ErrBuildingNotFound)
}

func TestGenerateInvoicesResumesAfterTariffFix(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	healthy := f.seed.Apartment(f.building.ID, "A-101", "45.5", 2)
	broken := f.seed.Apartment(f.building.ID, "A-102", "30", 1)
	water := f.seed.Meter(broken.ID, "water")
	f.seed.Tariff(f.building.ID, "management", "PER_AREA", "5000")
	f.record(t, broken.ID, water.ID, "2024-05", "12")

	result, err := f.svc.GenerateInvoices(ctx, f.building.ID, may)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ProcessedCount)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, broken.ID.String(), result.Failures[0].ApartmentID)
	assert.Equal(t, tariffdomain.ErrTariffMissing.Error(), result.Failures[0].Code)
	assert.False(t, result.Completed())
	assert.EqualValues(t, 0, f.count(t, "billing_run_markers"))

	f.seed.Tariff(f.building.ID, "water", "PER_UNIT_METER", "8000")

	resumed, err := f.svc.GenerateInvoices(ctx, f.building.ID, may)
	require.NoError(t, err)
	assert.Equal(t, 1, resumed.ProcessedCount)
	assert.Equal(t, 1, resumed.SkippedCount)
	assert.Empty(t, resumed.Failures)
	assert.EqualValues(t, 2, f.count(t, "invoices"))
	assert.EqualValues(t, 1, f.count(t, "billing_run_markers"))

	invoices, err := f.svc.ListInvoices(ctx, f.building.ID, may)
	require.NoError(t, err)
	for _, invoice := range invoices {
		if invoice.ApartmentID == healthy.ID {
			assert.Len(t, invoice.Items, 1)
			continue
		}
		lines := itemsByFee(invoice.Items)
		assert.Equal(t, "96000", lines["water"].Total.String())
		assert.Equal(t, "150000", lines["management"].Total.String())
	}
}

func TestGenerateInvoicesMeteredMethodMismatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	apartment := f.seed.Apartment(f.building.ID, "A-101", "45.5", 2)
	meter := f.seed.Meter(apartment.ID, "water")
	f.seed.Tariff(f.building.ID, "water", "FIXED", "30000")
	f.record(t, apartment.ID, meter.ID, "2024-05", "12")

	result, err := f.svc.GenerateInvoices(ctx, f.building.ID, may)
	require.NoError(t, err)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, tariffdomain.ErrTariffMethodMismatch.Error(), result.Failures[0].Code)
	assert.EqualValues(t, 0, f.count(t, "invoices"))

	unbilled, err := f.readings.GetUnbilledReadings(ctx, f.building.ID, may)
	require.NoError(t, err)
	assert.Len(t, unbilled, 1)
}

func TestGenerateInvoicesChargesOneTimeFeesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	apartment := f.seed.Apartment(f.building.ID, "A-101", "45.5", 2)
	f.seed.Tariff(f.building.ID, "registration", "ONE_TIME", "250000")
	f.seed.Tariff(f.building.ID, "security", "FIXED", "50000")

	_, err := f.svc.GenerateInvoices(ctx, f.building.ID, may)
	require.NoError(t, err)

	june := billingperiod.MustParse("2024-06")
	result, err := f.svc.GenerateInvoices(ctx, f.building.ID, june)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ProcessedCount)

	invoices, err := f.svc.ListInvoices(ctx, f.building.ID, june)
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	lines := itemsByFee(invoices[0].Items)
	assert.NotContains(t, lines, "registration")
	assert.Contains(t, lines, "security")

	var charges []invoicedomain.OneTimeCharge
	require.NoError(t, f.db.Where("apartment_id = ?", apartment.ID).Find(&charges).Error)
	require.Len(t, charges, 1)
	assert.Equal(t, "2024-05", charges[0].BillingPeriod.String())
}

func TestGenerateInvoicesSkipsInactiveApartments(t *testing.T) {
	f := newFixture(t)

	f.seed.Apartment(f.building.ID, "A-101", "45.5", 2)
	inactive := f.seed.Apartment(f.building.ID, "A-102", "30", 1)
	require.NoError(t, f.db.Model(inactive).Update("status", buildingdomain.ApartmentStatusInactive).Error)
	f.seed.Tariff(f.building.ID, "security", "FIXED", "50000")

	result, err := f.svc.GenerateInvoices(context.Background(), f.building.ID, may)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ProcessedCount)
	assert.EqualValues(t, 1, f.count(t, "invoices"))
}

func TestGetInvoice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seed.Apartment(f.building.ID, "A-101", "45.5", 2)
	f.seed.Tariff(f.building.ID, "management", "PER_AREA", "5000")
	_, err := f.svc.GenerateInvoices(ctx, f.building.ID, may)
	require.NoError(t, err)

	invoices, err := f.svc.ListInvoices(ctx, f.building.ID, may)
	require.NoError(t, err)
	require.Len(t, invoices, 1)

	doc, err := f.svc.GetInvoice(ctx, invoices[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "Sunrise Tower", doc.BuildingName)
	assert.Equal(t, "A-101", doc.ApartmentCode)
	assert.Len(t, doc.Items, 1)

	_, err = f.svc.GetInvoice(ctx, snowflake.ID(7))
	assert.ErrorIs(t, err, invoicedomain.ErrInvoiceNotFound)
}
