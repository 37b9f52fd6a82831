package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/estatebill/internal/building"
	"github.com/smallbiznis/estatebill/internal/clock"
	"github.com/smallbiznis/estatebill/internal/config"
	"github.com/smallbiznis/estatebill/internal/invoice"
	"github.com/smallbiznis/estatebill/internal/lock"
	"github.com/smallbiznis/estatebill/internal/meter"
	"github.com/smallbiznis/estatebill/internal/migration"
	"github.com/smallbiznis/estatebill/internal/notification"
	"github.com/smallbiznis/estatebill/internal/observability"
	"github.com/smallbiznis/estatebill/internal/providers"
	"github.com/smallbiznis/estatebill/internal/ratelimit"
	"github.com/smallbiznis/estatebill/internal/reading"
	"github.com/smallbiznis/estatebill/internal/scheduler"
	"github.com/smallbiznis/estatebill/internal/server"
	"github.com/smallbiznis/estatebill/internal/tariff"
	"github.com/smallbiznis/estatebill/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,
		lock.Module,
		ratelimit.Module,
		providers.Module,

		// Billing domains
		building.Module,
		meter.Module,
		tariff.Module,
		reading.Module,
		invoice.Module,
		notification.Module,
		scheduler.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
