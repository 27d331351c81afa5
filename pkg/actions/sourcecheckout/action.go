// Package sourcecheckout provides the action that snapshots a source
// revision into an artifact.
package sourcecheckout

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/conveyor-ci/conveyor/pkg/artifact"
	"github.com/conveyor-ci/conveyor/pkg/models"
	"github.com/conveyor-ci/conveyor/pkg/protocol"
	"github.com/conveyor-ci/conveyor/pkg/template"
)

const DefaultArtifactName = "SourceOutput"

// Action checks a revision out of the source host and stores the file tree
// as the run's source artifact. The revision comes from the run's trigger by
// default; an explicit revision or branch in the configuration overrides it.
type Action struct {
	Revision     string
	Branch       string
	ArtifactName string

	host  protocol.SourceHost
	store artifact.Store
}

func NewAction(config map[string]any, host protocol.SourceHost, store artifact.Store) (*Action, error) {
	revision, _ := config["revision"].(string)
	branch, _ := config["branch"].(string)

	name, _ := config["artifact"].(string)
	if name == "" {
		name = DefaultArtifactName
	}

	if name == models.SourceArtifactName {
		return nil, fmt.Errorf("artifact name %q is reserved", models.SourceArtifactName)
	}

	return &Action{
		Revision:     revision,
		Branch:       branch,
		ArtifactName: name,
		host:         host,
		store:        store,
	}, nil
}

func (a *Action) Execute(ctx context.Context, executionCtx models.ExecutionContext, logger *slog.Logger) (*protocol.ActionResult, error) {
	logger = logger.With("module", "source_checkout_action")

	revision, err := a.resolveRevision(ctx, &executionCtx)
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "Checking out revision", "revision", revision, "artifact", a.ArtifactName)

	files, err := a.host.Checkout(ctx, revision)
	if err != nil {
		return nil, err
	}

	blob, err := artifact.Pack(files)
	if err != nil {
		return nil, fmt.Errorf("failed to pack source snapshot: %w", err)
	}

	art, err := a.store.Put(ctx, executionCtx.RunID, a.ArtifactName, blob)
	if err != nil {
		return nil, err
	}

	art.ProducedByStage = executionCtx.StageName

	logger.InfoContext(ctx, "Stored source artifact",
		"artifact", art.Name, "content_ref", art.ContentRef, "files", len(files))

	return &protocol.ActionResult{
		Artifacts: []models.Artifact{art},
		Outputs:   map[string]string{"revision": revision},
	}, nil
}

func (a *Action) resolveRevision(ctx context.Context, executionCtx *models.ExecutionContext) (string, error) {
	if a.Revision != "" {
		return template.Render(a.Revision, executionCtx)
	}

	if executionCtx.Revision != "" {
		return executionCtx.Revision, nil
	}

	if a.Branch != "" {
		return a.host.Head(ctx, a.Branch)
	}

	return "", fmt.Errorf("%w: no revision on run and no branch configured", protocol.ErrRevisionNotFound)
}
