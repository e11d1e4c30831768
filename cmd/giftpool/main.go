package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/giftpool/internal/clock"
	"github.com/smallbiznis/giftpool/internal/config"
	"github.com/smallbiznis/giftpool/internal/migration"
	"github.com/smallbiznis/giftpool/internal/observability"
	"github.com/smallbiznis/giftpool/internal/server"
	"github.com/smallbiznis/giftpool/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// HTTP surface and the settlement domain behind it
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
