package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/estatebill/internal/billingperiod"
	"github.com/smallbiznis/estatebill/internal/clock"
	"github.com/smallbiznis/estatebill/internal/config"
	invoicedomain "github.com/smallbiznis/estatebill/internal/invoice/domain"
	notificationdomain "github.com/smallbiznis/estatebill/internal/notification/domain"
	"github.com/smallbiznis/estatebill/internal/ratelimit"
	readingdomain "github.com/smallbiznis/estatebill/internal/reading/domain"
	tariffdomain "github.com/smallbiznis/estatebill/internal/tariff/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type stubReadings struct {
	recordErr  error
	lastPeriod billingperiod.Period
}

func (s *stubReadings) RecordReading(ctx context.Context, req readingdomain.RecordRequest) (*readingdomain.MeterReading, error) {
	if s.recordErr != nil {
		return nil, s.recordErr
	}
	period, err := billingperiod.Parse(req.BillingPeriod)
	if err != nil {
		return nil, err
	}
	return &readingdomain.MeterReading{ID: 1, BillingPeriod: period, CurrentReading: req.CurrentReading, RecordedBy: req.RecordedBy}, nil
}

func (s *stubReadings) GetUnbilledReadings(context.Context, snowflake.ID, billingperiod.Period) ([]readingdomain.BillableReading, error) {
	return nil, nil
}

func (s *stubReadings) MarkInvoiced(context.Context, *gorm.DB, snowflake.ID, snowflake.ID) error {
	return nil
}

func (s *stubReadings) GetProgress(ctx context.Context, buildingID snowflake.ID, period billingperiod.Period) (*readingdomain.Progress, error) {
	s.lastPeriod = period
	return &readingdomain.Progress{BuildingID: buildingID.String(), BillingPeriod: period.String()}, nil
}

type stubInvoices struct {
	lastPeriod billingperiod.Period
	generate   error
}

func (s *stubInvoices) GenerateInvoices(ctx context.Context, buildingID snowflake.ID, period billingperiod.Period) (*invoicedomain.GenerateResult, error) {
	s.lastPeriod = period
	if s.generate != nil {
		return nil, s.generate
	}
	return &invoicedomain.GenerateResult{BuildingID: buildingID.String(), BillingPeriod: period.String(), ProcessedCount: 2, Failures: []invoicedomain.ApartmentFailure{}}, nil
}

func (s *stubInvoices) ListInvoices(context.Context, snowflake.ID, billingperiod.Period) ([]invoicedomain.InvoiceWithItems, error) {
	return []invoicedomain.InvoiceWithItems{}, nil
}

func (s *stubInvoices) GetInvoice(ctx context.Context, invoiceID snowflake.ID) (*invoicedomain.InvoiceDocument, error) {
	if invoiceID != 99 {
		return nil, invoicedomain.ErrInvoiceNotFound
	}
	return &invoicedomain.InvoiceDocument{
		InvoiceWithItems: invoicedomain.InvoiceWithItems{Invoice: invoicedomain.Invoice{ID: 99, Number: "INV-202405-A101-99"}},
	}, nil
}

type stubNotifier struct{}

func (stubNotifier) SendInvoiceEmails(ctx context.Context, buildingID snowflake.ID, period billingperiod.Period) (*notificationdomain.SendResult, error) {
	return &notificationdomain.SendResult{BuildingID: buildingID.String(), BillingPeriod: period.String(), SentCount: 3}, nil
}

type stubPDF struct{}

func (stubPDF) GenerateInvoice(ctx context.Context, doc invoicedomain.InvoiceDocument) ([]byte, error) {
	return []byte("%PDF-1.3 " + doc.Number), nil
}

type stubTariffs struct {
	rows []tariffdomain.PriceQuotation
}

func (s *stubTariffs) Resolve(ctx context.Context, buildingID snowflake.ID, feeType string) (*tariffdomain.PriceQuotation, error) {
	set, err := s.LoadSet(ctx, buildingID)
	if err != nil {
		return nil, err
	}
	tariff, _, err := set.Resolve(feeType)
	if err != nil {
		return nil, err
	}
	return &tariff, nil
}

func (s *stubTariffs) LoadSet(context.Context, snowflake.ID) (tariffdomain.Set, error) {
	return tariffdomain.NewSet(s.rows), nil
}

type testServer struct {
	engine   *gin.Engine
	readings *stubReadings
	invoices *stubInvoices
	tariffs  *stubTariffs
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	readings := &stubReadings{}
	invoices := &stubInvoices{}
	tariffs := &stubTariffs{}
	srv := NewServer(ServerParams{
		Engine:   NewEngine(config.Config{}),
		Clock:    clock.NewFakeClock(time.Date(2024, 6, 5, 9, 0, 0, 0, time.UTC)),
		Readings: readings,
		Invoices: invoices,
		Notifier: stubNotifier{},
		PDF:      stubPDF{},
		Tariffs:  tariffs,
	})
	return &testServer{engine: srv.Engine(), readings: readings, invoices: invoices, tariffs: tariffs}
}

func (ts *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	return rec
}

func errorType(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error.Type
}

func TestRecordReadingCreated(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/v1/readings", map[string]any{
		"apartment_id":    "10",
		"meter_id":        "20",
		"billing_period":  "2024-05",
		"current_reading": "150",
		"recorded_by":     "staff-1",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Data readingdomain.MeterReading `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, decimal.NewFromInt(150).Equal(resp.Data.CurrentReading))
	assert.Equal(t, "2024-05", resp.Data.BillingPeriod.String())
}

func TestRecordReadingErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"duplicate", readingdomain.ErrDuplicateReading, http.StatusConflict, "conflict"},
		{"non monotonic", fmt.Errorf("%w: current 100 is below previous 120", readingdomain.ErrNonMonotonicReading), http.StatusUnprocessableEntity, "non_monotonic_reading"},
		{"meter not found", readingdomain.ErrMeterNotFound, http.StatusNotFound, "not_found"},
		{"invalid period", billingperiod.ErrInvalidPeriod, http.StatusBadRequest, "validation_error"},
		{"unexpected", fmt.Errorf("db down"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.readings.recordErr = tc.err

			rec := ts.do(http.MethodPost, "/api/v1/readings", map[string]any{
				"apartment_id":    "10",
				"meter_id":        "20",
				"billing_period":  "2024-05",
				"current_reading": 100,
				"recorded_by":     "staff-1",
			})
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.kind, errorType(t, rec))
		})
	}
}

func TestRecordReadingRequiresCurrentReading(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/v1/readings", map[string]any{"apartment_id": "10"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerateInvoicesPassesPeriod(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/v1/buildings/7/invoices/generate?period=2024-04", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "2024-04", ts.invoices.lastPeriod.String())

	rec = ts.do(http.MethodPost, "/api/v1/buildings/7/invoices/generate", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, ts.invoices.lastPeriod.IsZero())
}

func TestGenerateInvoicesRejectsBadInput(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/v1/buildings/abc/invoices/generate", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodPost, "/api/v1/buildings/7/invoices/generate?period=2024-13", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	ts.invoices.generate = invoicedomain.ErrBuildingNotFound
	rec = ts.do(http.MethodPost, "/api/v1/buildings/7/invoices/generate?period=2024-05", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReadingProgressDefaultsToPreviousMonth(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/api/v1/buildings/7/reading-progress", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2024-05", ts.readings.lastPeriod.String())
}

func TestInvoicePDF(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/api/v1/invoices/99/pdf", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "INV-202405-A101-99.pdf")

	rec = ts.do(http.MethodGet, "/api/v1/invoices/100/pdf", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNotifyInvoices(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/v1/buildings/7/invoices/notify?period=2024-05", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data notificationdomain.SendResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Data.SentCount)
}

func TestResolveTariff(t *testing.T) {
	ts := newTestServer(t)
	ts.tariffs.rows = []tariffdomain.PriceQuotation{
		{ID: 1, BuildingID: 7, FeeType: "electricity", CalculationMethod: "PER_UNIT_METER", UnitPrice: decimal.NewFromInt(3500), IsActive: true},
		{ID: 2, BuildingID: 7, FeeType: "water", CalculationMethod: "PER_UNIT_METER", UnitPrice: decimal.NewFromInt(12000), IsActive: true},
		{ID: 3, BuildingID: 7, FeeType: "water", CalculationMethod: "PER_UNIT_METER", UnitPrice: decimal.NewFromInt(15000), IsActive: true},
	}

	rec := ts.do(http.MethodGet, "/api/v1/buildings/7/tariffs/electricity", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Data tariffdomain.PriceQuotation `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "electricity", resp.Data.FeeType)
	assert.True(t, decimal.NewFromInt(3500).Equal(resp.Data.UnitPrice))

	rec = ts.do(http.MethodGet, "/api/v1/buildings/7/tariffs/water", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict", errorType(t, rec))

	rec = ts.do(http.MethodGet, "/api/v1/buildings/7/tariffs/parking", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(http.MethodGet, "/api/v1/buildings/abc/tariffs/parking", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunSchedulerUnavailable(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/v1/scheduler/run", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

type denyLimiter struct{}

func (denyLimiter) Allow(context.Context, string) (*ratelimit.Result, error) {
	return &ratelimit.Result{Allowed: false, Limit: 20, RetryAfter: 1500 * time.Millisecond}, nil
}

func TestRecordReadingRateLimited(t *testing.T) {
	gin.SetMode(gin.TestMode)
	readings := &stubReadings{}
	srv := NewServer(ServerParams{
		Engine:   NewEngine(config.Config{}),
		Clock:    clock.NewFakeClock(time.Date(2024, 6, 5, 9, 0, 0, 0, time.UTC)),
		Readings: readings,
		Invoices: &stubInvoices{},
		Notifier: stubNotifier{},
		PDF:      stubPDF{},
		Tariffs:  &stubTariffs{},
		Limiter:  denyLimiter{},
	})
	ts := &testServer{engine: srv.Engine(), readings: readings}

	rec := ts.do(http.MethodPost, "/api/v1/readings", map[string]any{"current_reading": 1})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
	assert.Equal(t, "rate_limited", errorType(t, rec))
}
