// Package cmd provides common initialization for the command-line binaries.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/conveyor-ci/conveyor/pkg/actions/buildexec"
	"github.com/conveyor-ci/conveyor/pkg/actions/infraapply"
	"github.com/conveyor-ci/conveyor/pkg/actions/publish"
	"github.com/conveyor-ci/conveyor/pkg/actions/sourcecheckout"
	"github.com/conveyor-ci/conveyor/pkg/artifact"
	"github.com/conveyor-ci/conveyor/pkg/protocol"
	"github.com/conveyor-ci/conveyor/pkg/provision"
	"github.com/conveyor-ci/conveyor/pkg/publishtarget"
	"github.com/conveyor-ci/conveyor/pkg/registry"
	"github.com/conveyor-ci/conveyor/pkg/sandbox"
	"github.com/conveyor-ci/conveyor/pkg/sourcehost"
	"github.com/conveyor-ci/conveyor/pkg/triggers/poll"
	"github.com/conveyor-ci/conveyor/pkg/triggers/queue"
)

// Collaborators bundles the external systems the action variants talk to.
type Collaborators struct {
	SourceHost    protocol.SourceHost
	Sandbox       protocol.Sandbox
	PublishTarget protocol.PublishTarget
	Provisioner   protocol.Provisioner
}

// CollaboratorConfig locates the collaborator backends.
type CollaboratorConfig struct {
	// SourceRoot is the directory of the filesystem source host.
	SourceRoot string

	// PublishURL is either s3://<bucket> or a directory path.
	PublishURL string

	// StateRoot is the directory the local provisioner keeps stack state in.
	StateRoot string
}

func NewCollaborators(ctx context.Context, logger *slog.Logger, cfg CollaboratorConfig) *Collaborators {
	host, err := sourcehost.NewFilesystem(cfg.SourceRoot)
	if err != nil {
		panic(fmt.Errorf("failed to initialize source host: %w", err))
	}

	provisioner, err := provision.NewLocal(cfg.StateRoot)
	if err != nil {
		panic(fmt.Errorf("failed to initialize provisioner: %w", err))
	}

	return &Collaborators{
		SourceHost:    host,
		Sandbox:       sandbox.NewLocal(logger),
		PublishTarget: newPublishTarget(ctx, cfg.PublishURL),
		Provisioner:   provisioner,
	}
}

func newPublishTarget(ctx context.Context, publishURL string) protocol.PublishTarget {
	if bucket, ok := strings.CutPrefix(publishURL, "s3://"); ok {
		target, err := publishtarget.NewObjectStore(ctx, publishtarget.ObjectStoreConfig{
			Endpoint:  os.Getenv("S3_ENDPOINT"),
			AccessKey: os.Getenv("S3_ACCESS_KEY"),
			SecretKey: os.Getenv("S3_SECRET_KEY"),
			Bucket:    bucket,
			UseSSL:    os.Getenv("S3_USE_SSL") == "true",
		})
		if err != nil {
			panic(fmt.Errorf("failed to initialize publish target: %w", err))
		}

		return target
	}

	target, err := publishtarget.NewFilesystem(strings.TrimPrefix(publishURL, "file://"))
	if err != nil {
		panic(fmt.Errorf("failed to initialize publish target: %w", err))
	}

	return target
}

// NewRegistry builds the registry with the closed set of action variants
// and the native trigger types.
func NewRegistry(logger *slog.Logger, collaborators *Collaborators, store artifact.Store) *registry.Registry {
	reg := registry.NewRegistry(logger)

	reg.RegisterAction(sourcecheckout.NewActionFactory(collaborators.SourceHost, store))
	reg.RegisterAction(buildexec.NewActionFactory(collaborators.Sandbox, store))
	reg.RegisterAction(publish.NewActionFactory(collaborators.PublishTarget, store))
	reg.RegisterAction(infraapply.NewActionFactory(collaborators.Provisioner, store))

	reg.RegisterTrigger(poll.NewTriggerFactory(collaborators.SourceHost))
	reg.RegisterTrigger(queue.NewTriggerFactory())

	return reg
}
