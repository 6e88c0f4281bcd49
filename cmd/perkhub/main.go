package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/perkhub/internal/audit"
	"github.com/smallbiznis/perkhub/internal/auth"
	"github.com/smallbiznis/perkhub/internal/authorization"
	"github.com/smallbiznis/perkhub/internal/benefit"
	"github.com/smallbiznis/perkhub/internal/clock"
	"github.com/smallbiznis/perkhub/internal/company"
	"github.com/smallbiznis/perkhub/internal/config"
	"github.com/smallbiznis/perkhub/internal/migration"
	"github.com/smallbiznis/perkhub/internal/observability"
	"github.com/smallbiznis/perkhub/internal/ratelimit"
	"github.com/smallbiznis/perkhub/internal/realtime"
	"github.com/smallbiznis/perkhub/internal/redeem"
	"github.com/smallbiznis/perkhub/internal/scheduler"
	"github.com/smallbiznis/perkhub/internal/seed"
	"github.com/smallbiznis/perkhub/internal/server"
	"github.com/smallbiznis/perkhub/internal/user"
	"github.com/smallbiznis/perkhub/pkg/db"
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

		// Domains
		user.Module,
		company.Module,
		benefit.Module,
		realtime.Module,
		redeem.Module,
		audit.Module,
		seed.Module,
		scheduler.Module,

		// Edge
		auth.Module,
		authorization.Module,
		ratelimit.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.Benefit.SnowflakeNode)
}
