package protocol

import (
	"context"
	"log/slog"
)

// TriggerCallback is invoked when a trigger observes a new revision. The
// data map carries trigger-specific metadata; deduplication of revisions
// already represented by a non-terminal run happens in the coordinator.
type TriggerCallback func(ctx context.Context, revision string, data map[string]any) error

type Trigger interface {
	Start(ctx context.Context, callback TriggerCallback) error
	Stop(ctx context.Context) error
	Validate() error
}

type TriggerFactory interface {
	Create(config map[string]any, logger *slog.Logger) (Trigger, error)
	ID() string
}
