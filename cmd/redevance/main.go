package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/redevance/internal/backlog"
	"github.com/smallbiznis/redevance/internal/clock"
	"github.com/smallbiznis/redevance/internal/config"
	"github.com/smallbiznis/redevance/internal/migration"
	"github.com/smallbiznis/redevance/internal/observability"
	"github.com/smallbiznis/redevance/internal/scheduler"
	"github.com/smallbiznis/redevance/internal/server"
	"github.com/smallbiznis/redevance/pkg/db"
	"go.uber.org/fx"
)

// Single binary: HTTP API, enforcement scheduler and schema migrations.
func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		server.Module,
		scheduler.Module,
		backlog.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
