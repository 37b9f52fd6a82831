package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const (
	RunOutcomeCompleted        = "completed"
	RunOutcomePartial          = "partial"
	RunOutcomeAlreadyProcessed = "already_processed"
	RunOutcomeFailed           = "failed"
	RunOutcomeLocked           = "locked"
)

const (
	ReasonDeadlineExceeded     = "deadline_exceeded"
	ReasonDBLockTimeout        = "db_lock_timeout"
	ReasonSerializationFailure = "serialization_failure"
	ReasonUniqueViolation      = "unique_violation"
	ReasonDB                   = "db"
	ReasonPanic                = "panic"
	ReasonUnknown              = "unknown"
)

var schedulerStates = []string{"idle", "waiting", "selecting", "processing"}

// BillingMetrics captures health signals of the monthly billing pipeline.
type BillingMetrics struct {
	runs              *prometheus.CounterVec
	runDuration       prometheus.Observer
	invoicesGenerated prometheus.Counter
	apartmentFailures *prometheus.CounterVec
	tickErrors        *prometheus.CounterVec
	emails            *prometheus.CounterVec
	schedulerState    *prometheus.GaugeVec
}

var (
	billingMetricsOnce sync.Once
	billingMetrics     *BillingMetrics
)

// Billing returns the process-wide billing metrics registered on the default registerer.
func Billing() *BillingMetrics {
	return BillingWithConfig(Config{})
}

// BillingWithConfig is Billing with service/env const labels taken from cfg. Only the
// first call's config is used.
func BillingWithConfig(cfg Config) *BillingMetrics {
	billingMetricsOnce.Do(func() {
		billingMetrics = newBillingMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return billingMetrics
}

// ResetBillingMetricsForTest resets the singleton so tests can swap the default registerer.
func ResetBillingMetricsForTest() {
	billingMetricsOnce = sync.Once{}
	billingMetrics = nil
}

// NewBillingMetrics registers a fresh set of billing metrics on registerer.
func NewBillingMetrics(registerer prometheus.Registerer, cfg Config) *BillingMetrics {
	return newBillingMetrics(registerer, cfg)
}

func newBillingMetrics(registerer prometheus.Registerer, cfg Config) *BillingMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "estatebill"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{"service": serviceName, "env": environment}

	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "estatebill_billing_runs_total",
		Help:        "Building billing runs by outcome.",
		ConstLabels: constLabels,
	}, []string{"outcome"})
	runDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "estatebill_billing_run_duration_seconds",
		Help:        "Duration of one building billing run including notification.",
		Buckets:     []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		ConstLabels: constLabels,
	})
	invoicesGenerated := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "estatebill_invoices_generated_total",
		Help:        "Invoices created by the aggregator.",
		ConstLabels: constLabels,
	})
	apartmentFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "estatebill_apartment_failures_total",
		Help:        "Apartments skipped during a billing run by reason.",
		ConstLabels: constLabels,
	}, []string{"reason"})
	tickErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "estatebill_scheduler_tick_errors_total",
		Help:        "Scheduler ticks that ended in an error or panic.",
		ConstLabels: constLabels,
	}, []string{"reason"})
	emails := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "estatebill_invoice_emails_total",
		Help:        "Invoice emails by delivery result.",
		ConstLabels: constLabels,
	}, []string{"result"})
	schedulerState := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name:        "estatebill_scheduler_state",
		Help:        "1 for the scheduler's current state, 0 otherwise.",
		ConstLabels: constLabels,
	}, []string{"state"})

	registerer.MustRegister(runs, runDuration, invoicesGenerated, apartmentFailures, tickErrors, emails, schedulerState)

	return &BillingMetrics{
		runs:              runs,
		runDuration:       runDuration,
		invoicesGenerated: invoicesGenerated,
		apartmentFailures: apartmentFailures,
		tickErrors:        tickErrors,
		emails:            emails,
		schedulerState:    schedulerState,
	}
}

func (m *BillingMetrics) IncRun(outcome string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(outcome).Inc()
}

func (m *BillingMetrics) ObserveRunDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.runDuration.Observe(d.Seconds())
}

func (m *BillingMetrics) AddInvoicesGenerated(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.invoicesGenerated.Add(float64(count))
}

func (m *BillingMetrics) IncApartmentFailure(reason string) {
	if m == nil {
		return
	}
	if strings.TrimSpace(reason) == "" {
		reason = ReasonUnknown
	}
	m.apartmentFailures.WithLabelValues(reason).Inc()
}

func (m *BillingMetrics) IncTickError(reason string) {
	if m == nil {
		return
	}
	m.tickErrors.WithLabelValues(reason).Inc()
}

func (m *BillingMetrics) AddEmails(sent, failed int) {
	if m == nil {
		return
	}
	if sent > 0 {
		m.emails.WithLabelValues("sent").Add(float64(sent))
	}
	if failed > 0 {
		m.emails.WithLabelValues("failed").Add(float64(failed))
	}
}

// SetSchedulerState flips the state gauge so exactly one state reads 1.
func (m *BillingMetrics) SetSchedulerState(state string) {
	if m == nil {
		return
	}
	for _, s := range schedulerStates {
		value := 0.0
		if s == state {
			value = 1
		}
		m.schedulerState.WithLabelValues(s).Set(value)
	}
}

// ClassifyReason maps infrastructure errors to low-cardinality label values.
func ClassifyReason(err error) string {
	switch {
	case err == nil:
		return ReasonUnknown
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return ReasonDeadlineExceeded
	case hasPGCode(err, "55P03"):
		return ReasonDBLockTimeout
	case hasPGCode(err, "40001"):
		return ReasonSerializationFailure
	case errors.Is(err, gorm.ErrDuplicatedKey), hasPGCode(err, "23505"):
		return ReasonUniqueViolation
	case isDBError(err):
		return ReasonDB
	}
	return ReasonUnknown
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

func isDBError(err error) bool {
	if errors.Is(err, gorm.ErrInvalidDB) ||
		errors.Is(err, gorm.ErrInvalidTransaction) ||
		errors.Is(err, gorm.ErrInvalidData) ||
		errors.Is(err, gorm.ErrMissingWhereClause) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr)
}
