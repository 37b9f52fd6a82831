package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smallbiznis/estatebill/internal/billingperiod"
	buildingdomain "github.com/smallbiznis/estatebill/internal/building/domain"
	"github.com/smallbiznis/estatebill/internal/clock"
	"github.com/smallbiznis/estatebill/internal/config"
	invoicedomain "github.com/smallbiznis/estatebill/internal/invoice/domain"
	"github.com/smallbiznis/estatebill/internal/lock"
	notificationdomain "github.com/smallbiznis/estatebill/internal/notification/domain"
	obscontext "github.com/smallbiznis/estatebill/internal/observability/context"
	obslogger "github.com/smallbiznis/estatebill/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/estatebill/internal/observability/metrics"
	"github.com/smallbiznis/estatebill/internal/scheduler/guard"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrInvalidConfig  = errors.New("invalid_scheduler_config")
	ErrTickPanic      = errors.New("scheduler_tick_panic")
	ErrBuildingFailed = errors.New("billing_building_failed")
)

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

type Params struct {
	fx.In

	DB             *gorm.DB
	Log            *zap.Logger
	Clock          clock.Clock
	BillingConfig  *config.BillingConfigHolder
	BuildingRepo   buildingdomain.Repository
	Invoices       invoicedomain.Aggregator
	Notifier       notificationdomain.Notifier
	Locker         lock.Locker
	BillingMetrics *obsmetrics.BillingMetrics `optional:"true"`
	Sleep          SleepFunc                  `optional:"true"`
}

type Scheduler struct {
	db             *gorm.DB
	log            *zap.Logger
	clock          clock.Clock
	billingConfig  *config.BillingConfigHolder
	buildingRepo   buildingdomain.Repository
	invoices       invoicedomain.Aggregator
	notifier       notificationdomain.Notifier
	locker         lock.Locker
	billingMetrics *obsmetrics.BillingMetrics
	sleep          SleepFunc

	state atomic.Value // holds State
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.Clock == nil || p.BillingConfig == nil || p.BuildingRepo == nil || p.Invoices == nil || p.Notifier == nil {
		return nil, ErrInvalidConfig
	}
	locker := p.Locker
	if locker == nil {
		locker = lock.NoopLocker{}
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	s := &Scheduler{
		db:             p.DB,
		log:            p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		clock:          p.Clock,
		billingConfig:  p.BillingConfig,
		buildingRepo:   p.BuildingRepo,
		invoices:       p.Invoices,
		notifier:       p.Notifier,
		locker:         locker,
		billingMetrics: p.BillingMetrics,
		sleep:          sleep,
	}
	s.setState(StateIdle)
	return s, nil
}

// RunSummary describes one Select and Process pass.
type RunSummary struct {
	Date          string            `json:"date"`
	BillingPeriod string            `json:"billing_period"`
	Selected      int               `json:"selected"`
	Buildings     []BuildingOutcome `json:"buildings"`
}

type BuildingOutcome struct {
	BuildingID       string `json:"building_id"`
	Outcome          string `json:"outcome"`
	ProcessedCount   int    `json:"processed_count"`
	SkippedCount     int    `json:"skipped_count"`
	FailureCount     int    `json:"failure_count"`
	AlreadyProcessed bool   `json:"already_processed"`
	SentCount        int    `json:"sent_count"`
	FailedCount      int    `json:"failed_count"`
	Error            string `json:"error,omitempty"`
}

const outcomeCancelled = "cancelled"

// RunOnce selects the buildings due at now and bills the month before it. Buildings
// already started finish even if ctx is cancelled; none start afterwards. A building
// that fails as a whole is reported in the summary and in the returned error, which
// wraps ErrBuildingFailed.
func (s *Scheduler) RunOnce(ctx context.Context, now time.Time) (*RunSummary, error) {
	defer s.setState(StateIdle)

	cfg := s.billingConfig.Get()
	_, _, loc, err := cfg.Trigger()
	if err != nil {
		return nil, err
	}
	today := now.In(loc)
	period := billingperiod.Previous(today)

	s.setState(StateSelecting)
	due, err := s.selectBuildings(ctx, today)
	if err != nil {
		return nil, err
	}

	summary := &RunSummary{
		Date:          today.Format("2006-01-02"),
		BillingPeriod: period.String(),
		Selected:      len(due),
		Buildings:     make([]BuildingOutcome, 0, len(due)),
	}
	s.logger(ctx).Info("billing.run.selected",
		zap.String("date", summary.Date),
		zap.String("billing_period", summary.BillingPeriod),
		zap.Int("buildings", len(due)),
	)
	if len(due) == 0 {
		return summary, nil
	}

	s.setState(StateProcessing)
	parallel := cfg.MaxParallelBuildings
	if parallel < 1 {
		parallel = 1
	}

	var mu sync.Mutex
	p := pool.New().WithMaxGoroutines(parallel)
	for i := range due {
		if ctx.Err() != nil {
			break
		}
		building := due[i]
		p.Go(func() {
			var outcome BuildingOutcome
			if ctx.Err() != nil {
				outcome = BuildingOutcome{BuildingID: building.ID.String(), Outcome: outcomeCancelled}
			} else {
				outcome = s.processBuilding(context.WithoutCancel(ctx), building, period, cfg)
			}
			mu.Lock()
			summary.Buildings = append(summary.Buildings, outcome)
			mu.Unlock()
		})
	}
	p.Wait()

	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, buildingFailures(summary.Buildings)
}

func buildingFailures(outcomes []BuildingOutcome) error {
	var errs []error
	for _, outcome := range outcomes {
		if outcome.Outcome == obsmetrics.RunOutcomeFailed {
			errs = append(errs, fmt.Errorf("%w: building %s: %s", ErrBuildingFailed, outcome.BuildingID, outcome.Error))
		}
	}
	return errors.Join(errs...)
}

func (s *Scheduler) selectBuildings(ctx context.Context, today time.Time) ([]buildingdomain.Building, error) {
	buildings, err := s.buildingRepo.ListActiveBuildings(ctx, s.db)
	if err != nil {
		return nil, fmt.Errorf("list buildings: %w", err)
	}
	due := make([]buildingdomain.Building, 0, len(buildings))
	for _, building := range buildings {
		if err := guard.ValidateWindowDay(building.ReadingWindowEndDay); err != nil {
			s.logger(ctx).Warn("billing.building.invalid_window",
				zap.String("building_id", building.ID.String()),
				zap.Int("reading_window_end_day", building.ReadingWindowEndDay),
			)
			continue
		}
		if guard.IsDue(building.ReadingWindowEndDay, today) {
			due = append(due, building)
		}
	}
	return due, nil
}

func (s *Scheduler) processBuilding(ctx context.Context, building buildingdomain.Building, period billingperiod.Period, cfg config.BillingConfig) (outcome BuildingOutcome) {
	ctx = obscontext.WithActor(ctx, "system", "scheduler")
	ctx = obscontext.WithBuildingID(ctx, building.ID.String())
	log := s.logger(ctx).With(zap.String("billing_period", period.String()))
	start := s.clock.Now()
	outcome.BuildingID = building.ID.String()

	defer func() {
		if r := recover(); r != nil {
			outcome.Outcome = obsmetrics.RunOutcomeFailed
			outcome.Error = fmt.Sprintf("%v: %v", ErrTickPanic, r)
			s.billingMetrics.IncTickError(obsmetrics.ReasonPanic)
			log.Error("billing.run.panic", zap.Any("panic", r), zap.Stack("stack"))
		}
		s.billingMetrics.IncRun(outcome.Outcome)
		s.billingMetrics.ObserveRunDuration(s.clock.Now().Sub(start))
	}()

	key := lock.BillingRunKey(building.ID, period)
	token, locked, err := s.locker.TryLock(ctx, key, cfg.LockTTL)
	switch {
	case err != nil:
		log.Warn("billing.run.lock_unavailable", zap.Error(err))
	case !locked:
		outcome.Outcome = obsmetrics.RunOutcomeLocked
		log.Info("billing.run.locked")
		return outcome
	default:
		defer func() {
			if err := s.locker.Release(ctx, key, token); err != nil {
				log.Warn("billing.run.unlock_failed", zap.Error(err))
			}
		}()
	}

	result, err := s.invoices.GenerateInvoices(ctx, building.ID, period)
	if err != nil {
		outcome.Outcome = obsmetrics.RunOutcomeFailed
		outcome.Error = err.Error()
		s.billingMetrics.IncTickError(obsmetrics.ClassifyReason(err))
		log.Error("billing.run.failed", zap.Error(err))
		return outcome
	}
	outcome.ProcessedCount = result.ProcessedCount
	outcome.SkippedCount = result.SkippedCount
	outcome.FailureCount = len(result.Failures)
	outcome.AlreadyProcessed = result.AlreadyProcessed
	switch {
	case result.AlreadyProcessed:
		outcome.Outcome = obsmetrics.RunOutcomeAlreadyProcessed
	case len(result.Failures) > 0:
		outcome.Outcome = obsmetrics.RunOutcomePartial
	default:
		outcome.Outcome = obsmetrics.RunOutcomeCompleted
	}

	if result.ProcessedCount > 0 {
		sent, err := s.notifier.SendInvoiceEmails(ctx, building.ID, period)
		if err != nil {
			log.Warn("billing.run.notify_failed", zap.Error(err))
		}
		if sent != nil {
			outcome.SentCount = sent.SentCount
			outcome.FailedCount = sent.FailedCount
		}
	}

	log.Info("billing.run.finish",
		zap.String("outcome", outcome.Outcome),
		zap.Int("processed_count", outcome.ProcessedCount),
		zap.Int("skipped_count", outcome.SkippedCount),
		zap.Int("failure_count", outcome.FailureCount),
		zap.Bool("already_processed", outcome.AlreadyProcessed),
		zap.Int("sent_count", outcome.SentCount),
		zap.Int("failed_count", outcome.FailedCount),
		zap.Duration("duration", s.clock.Now().Sub(start)),
	)
	return outcome
}

// RunForever waits for each daily trigger and runs a pass. A failed or panicking pass
// is logged, followed by the configured backoff and retried with the same trigger
// until it succeeds or the trigger's local day is over. Returns when ctx is done.
func (s *Scheduler) RunForever(ctx context.Context) {
	defer s.setState(StateIdle)

	var last, pending time.Time
	for ctx.Err() == nil {
		cfg := s.billingConfig.Get()
		hour, minute, loc, err := cfg.Trigger()
		if err != nil {
			s.tickFailed(ctx, err, cfg.ErrorBackoff)
			continue
		}

		trigger := pending
		if !trigger.IsZero() && !sameLocalDay(s.clock.Now(), trigger, loc) {
			s.logger(ctx).Error("billing.scheduler.retry_abandoned",
				zap.String("date", trigger.In(loc).Format("2006-01-02")),
			)
			trigger = time.Time{}
		}
		pending = time.Time{}

		if trigger.IsZero() {
			s.setState(StateWaiting)
			now := s.clock.Now()
			next := NextTrigger(now, hour, minute, loc)
			if !last.IsZero() && !next.After(last) {
				next = NextTrigger(last, hour, minute, loc)
			}
			if err := s.sleep(ctx, next.Sub(now)); err != nil {
				return
			}
			last = next
			trigger = next
		}

		if _, err := s.safeRunOnce(ctx, trigger); err != nil {
			if ctx.Err() != nil {
				return
			}
			pending = trigger
			s.tickFailed(ctx, err, cfg.ErrorBackoff)
		}
	}
}

func sameLocalDay(a, b time.Time, loc *time.Location) bool {
	a, b = a.In(loc), b.In(loc)
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

func (s *Scheduler) safeRunOnce(ctx context.Context, now time.Time) (summary *RunSummary, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.billingMetrics.IncTickError(obsmetrics.ReasonPanic)
			err = fmt.Errorf("%w: %v", ErrTickPanic, r)
		}
	}()
	return s.RunOnce(ctx, now)
}

func (s *Scheduler) tickFailed(ctx context.Context, err error, backoff time.Duration) {
	if backoff <= 0 {
		backoff = config.DefaultBillingConfig().ErrorBackoff
	}
	// Building failures and panics are counted where they happen.
	if !errors.Is(err, ErrTickPanic) && !errors.Is(err, ErrBuildingFailed) {
		s.billingMetrics.IncTickError(obsmetrics.ClassifyReason(err))
	}
	s.logger(ctx).Error("billing.scheduler.tick_failed", zap.Error(err), zap.Duration("backoff", backoff))
	s.setState(StateIdle)
	_ = s.sleep(ctx, backoff)
}

func (s *Scheduler) logger(ctx context.Context) *zap.Logger {
	return obslogger.WithContext(ctx, s.log)
}
