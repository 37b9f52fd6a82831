package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/estatebill/internal/clock"
	"github.com/smallbiznis/estatebill/internal/config"
	invoicedomain "github.com/smallbiznis/estatebill/internal/invoice/domain"
	notificationdomain "github.com/smallbiznis/estatebill/internal/notification/domain"
	obslogger "github.com/smallbiznis/estatebill/internal/observability/logger"
	obstracing "github.com/smallbiznis/estatebill/internal/observability/tracing"
	"github.com/smallbiznis/estatebill/internal/providers/pdf"
	"github.com/smallbiznis/estatebill/internal/ratelimit"
	readingdomain "github.com/smallbiznis/estatebill/internal/reading/domain"
	"github.com/smallbiznis/estatebill/internal/scheduler"
	tariffdomain "github.com/smallbiznis/estatebill/internal/tariff/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(cfg config.Config) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware())
	r.Use(obstracing.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type ServerParams struct {
	fx.In

	Engine    *gin.Engine
	Clock     clock.Clock
	Readings  readingdomain.Service
	Invoices  invoicedomain.Aggregator
	Notifier  notificationdomain.Notifier
	PDF       pdf.Provider
	Tariffs   tariffdomain.Resolver
	Limiter   ratelimit.Limiter    `optional:"true"`
	Scheduler *scheduler.Scheduler `optional:"true"`
}

type Server struct {
	engine     *gin.Engine
	clock      clock.Clock
	readingSvc readingdomain.Service
	invoiceSvc invoicedomain.Aggregator
	notifier   notificationdomain.Notifier
	pdf        pdf.Provider
	tariffSvc  tariffdomain.Resolver
	limiter    ratelimit.Limiter
	scheduler  *scheduler.Scheduler
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:     p.Engine,
		clock:      p.Clock,
		readingSvc: p.Readings,
		invoiceSvc: p.Invoices,
		notifier:   p.Notifier,
		pdf:        p.PDF,
		tariffSvc:  p.Tariffs,
		limiter:    p.Limiter,
		scheduler:  p.Scheduler,
	}
	if s.limiter == nil {
		s.limiter = ratelimit.Unlimited{}
	}
	s.registerAPIRoutes()
	return s
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api/v1")

	api.POST("/readings", RateLimitMiddleware(s.limiter), s.RecordReading)

	buildings := api.Group("/buildings/:id")
	buildings.GET("/reading-progress", s.GetReadingProgress)
	buildings.POST("/invoices/generate", s.GenerateInvoices)
	buildings.GET("/invoices", s.ListInvoices)
	buildings.POST("/invoices/notify", s.NotifyInvoices)
	buildings.GET("/tariffs/:fee_type", s.ResolveTariff)

	api.GET("/invoices/:invoice_id/pdf", s.InvoicePDF)

	api.POST("/scheduler/run", s.RunScheduler)
}
