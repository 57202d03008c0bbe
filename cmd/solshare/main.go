package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/heliovolt/solshare/internal/clock"
	"github.com/heliovolt/solshare/internal/config"
	"github.com/heliovolt/solshare/internal/migration"
	"github.com/heliovolt/solshare/internal/observability"
	"github.com/heliovolt/solshare/internal/server"
	"github.com/heliovolt/solshare/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		server.Module,
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
