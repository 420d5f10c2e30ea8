package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/eventbus/cmd/app/commands"
	"github.com/allisson/eventbus/internal/app"
	"github.com/allisson/eventbus/internal/config"
)

func getOutboxCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "purge-outbox",
			Usage: "Delete published outbox events older than specified days",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:     "days",
					Aliases:  []string{"d"},
					Required: true,
					Usage:    "Delete published events older than this many days",
				},
				&cli.BoolFlag{
					Name:    "dry-run",
					Aliases: []string{"n"},
					Value:   false,
					Usage:   "Show how many events would be deleted without deleting",
				},
				&cli.StringFlag{
					Name:    "format",
					Aliases: []string{"f"},
					Value:   "text",
					Usage:   "Output format: 'text' or 'json'",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				outboxUseCase, err := container.OutboxUseCase()
				if err != nil {
					return err
				}

				return commands.RunPurgeOutbox(
					ctx,
					outboxUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					int(cmd.Int("days")),
					cmd.Bool("dry-run"),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "requeue-event",
			Usage: "Reset the publish attempts of a dead-lettered outbox event",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "id",
					Aliases:  []string{"i"},
					Required: true,
					Usage:    "Outbox event ID (UUID)",
				},
				&cli.StringFlag{
					Name:    "format",
					Aliases: []string{"f"},
					Value:   "text",
					Usage:   "Output format: 'text' or 'json'",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				outboxUseCase, err := container.OutboxUseCase()
				if err != nil {
					return err
				}

				return commands.RunRequeueEvent(
					ctx,
					outboxUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("id"),
					cmd.String("format"),
				)
			},
		},
	}
}
