package main

import (
	"os"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"github.com/cadenzalabs/cadenza/internal/clock"
	"github.com/cadenzalabs/cadenza/internal/config"
	"github.com/cadenzalabs/cadenza/internal/migration"
	"github.com/cadenzalabs/cadenza/internal/observability"
	"github.com/cadenzalabs/cadenza/internal/server"
	"github.com/cadenzalabs/cadenza/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		clock.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		server.Module,
	)
	app.Run()
}

// RegisterSnowflake builds the id generator. Each replica needs its own
// node id so generated ids never collide.
func RegisterSnowflake() (*snowflake.Node, error) {
	nodeID := int64(1)
	if v := os.Getenv("SNOWFLAKE_NODE_ID"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, err
		}
		nodeID = parsed
	}
	return snowflake.NewNode(nodeID)
}
