package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/redevance/internal/clock"
	"github.com/smallbiznis/redevance/internal/config"
	"github.com/smallbiznis/redevance/internal/observability"
	"github.com/smallbiznis/redevance/internal/server"
	"github.com/smallbiznis/redevance/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		// HTTP only; escalation runs in apps/scheduler
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(2)
	if err != nil {
		panic(err)
	}
	return node
}
