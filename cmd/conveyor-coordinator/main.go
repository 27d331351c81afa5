package main

import (
	"context"
	"os"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/conveyor-ci/conveyor/pkg/cmd"
	"github.com/conveyor-ci/conveyor/pkg/coordinator"
	"github.com/conveyor-ci/conveyor/pkg/log"
	"github.com/conveyor-ci/conveyor/pkg/otelhelper"
	"github.com/conveyor-ci/conveyor/pkg/runner"
)

func main() {
	command := &cli.Command{
		Name:                  "conveyor-coordinator",
		EnableShellCompletion: true,
		Usage:                 "Run pipelines: watch triggers, queue revisions and execute stages",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "coordinator-id",
				Aliases: []string{"id"},
				Usage:   "Custom coordinator ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("COORDINATOR_ID"),
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
		Action: run,
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}

func run(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"))

	coordinatorID := command.String("coordinator-id")
	if coordinatorID == "" {
		coordinatorID = "coordinator-" + uuid.New().String()[:8]
	}

	logger := log.WithModule("conveyor-coordinator").With("coordinator_id", coordinatorID)
	logger.InfoContext(ctx, "Initializing Conveyor coordinator")

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

	tracer, err := otelhelper.NewTracer(ctx, "conveyor-coordinator")
	if err != nil {
		logger.ErrorContext(ctx, "Failed to initialize tracer", "error", err)

		return err
	}

	stageRunner := runner.NewRunner(registry, store, tracer, logger)
	coord := coordinator.NewCoordinator(persistence, stageRunner, eventBus, logger)
	defer coord.Shutdown()

	manager := NewTriggerManager(coordinatorID, persistence, registry, coord, logger)

	return manager.Start(ctx)
}
