package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/conveyor-ci/conveyor/pkg/cmd"
	"github.com/conveyor-ci/conveyor/pkg/coordinator"
	"github.com/conveyor-ci/conveyor/pkg/log"
	"github.com/conveyor-ci/conveyor/pkg/runner"
)

const defaultPort = 9091

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "conveyor-api",
		Usage:                 "Manage pipelines and submit runs over HTTP",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "artifact-store-url",
				Usage:   "Artifact store location (directory path or s3://bucket)",
				Value:   "./data/artifacts",
				Sources: cli.EnvVars("ARTIFACT_STORE_URL"),
			},
			&cli.StringFlag{
				Name:    "source-root",
				Usage:   "Directory of the filesystem source host",
				Value:   "./data/source",
				Sources: cli.EnvVars("SOURCE_ROOT"),
			},
			&cli.StringFlag{
				Name:    "publish-url",
				Usage:   "Publish target location (directory path or s3://bucket)",
				Value:   "./data/published",
				Sources: cli.EnvVars("PUBLISH_URL"),
			},
			&cli.StringFlag{
				Name:    "state-root",
				Usage:   "Directory the local provisioner keeps stack state in",
				Value:   "./data/stacks",
				Sources: cli.EnvVars("STATE_ROOT"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (kafka, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing Conveyor API")

			collaborators := cmd.NewCollaborators(ctx, logger, cmd.CollaboratorConfig{
				SourceRoot: command.String("source-root"),
				PublishURL: command.String("publish-url"),
				StateRoot:  command.String("state-root"),
			})

			store := cmd.NewArtifactStore(ctx, command.String("artifact-store-url"))
			registry := cmd.NewRegistry(logger, collaborators, store)

			eventBus := cmd.NewEventBus(command.String("event-bus"), logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			stageRunner := runner.NewRunner(registry, store, nil, logger)
			coord := coordinator.NewCoordinator(persistence, stageRunner, eventBus, logger)
			defer coord.Shutdown()

			api := NewAPI(logger, persistence, registry, coord)

			if err := api.Start(command.Int("port")); err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)

				return err
			}

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
