package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/eventbus/cmd/app/commands"
	"github.com/allisson/eventbus/internal/app"
	"github.com/allisson/eventbus/internal/config"
)

func getSystemCommands(version string) []*cli.Command {
	return []*cli.Command{
		{
			Name:  "server",
			Usage: "Start the HTTP API together with the outbox publisher and broker consumer",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunServer(ctx, version)
			},
		},
		{
			Name:  "publisher",
			Usage: "Run only the outbox publisher",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunPublisher(ctx)
			},
		},
		{
			Name:  "consumer",
			Usage: "Run only the broker consumer and event router",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunConsumer(ctx)
			},
		},
		{
			Name:  "migrate",
			Usage: "Run database migrations",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				return commands.RunMigrations(container.Logger(), cfg.DBDriver, cfg.DBConnectionString)
			},
		},
	}
}
