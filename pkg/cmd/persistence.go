package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/conveyor-ci/conveyor/pkg/persistence"
	"github.com/conveyor-ci/conveyor/pkg/persistence/file"
	"github.com/conveyor-ci/conveyor/pkg/persistence/postgresql"
)

// NewPersistence creates a persistence backend from a database URL.
// postgres:// URLs get PostgreSQL; anything else is treated as a directory
// path for the file backend.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"),
		strings.HasPrefix(databaseURL, "postgresql://"):
		p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			panic(fmt.Errorf("failed to initialize PostgreSQL persistence: %w", err))
		}

		return p
	default:
		return file.NewPersistence(strings.TrimPrefix(databaseURL, "file://"))
	}
}
