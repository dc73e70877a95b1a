package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/vocaldesk/vocaldesk/internal/clock"
	"github.com/vocaldesk/vocaldesk/internal/config"
	"github.com/vocaldesk/vocaldesk/internal/migration"
	"github.com/vocaldesk/vocaldesk/internal/observability"
	"github.com/vocaldesk/vocaldesk/internal/server"
	"github.com/vocaldesk/vocaldesk/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		// HTTP surface plus the domain modules it wires in
		server.Module,

		migration.Module,
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
