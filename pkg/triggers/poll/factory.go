package poll

import (
	"log/slog"

	"github.com/conveyor-ci/conveyor/pkg/protocol"
)

// TriggerFactory creates poll triggers bound to a source host.
type TriggerFactory struct {
	host protocol.SourceHost
}

func NewTriggerFactory(host protocol.SourceHost) *TriggerFactory {
	return &TriggerFactory{host: host}
}

func (f *TriggerFactory) ID() string {
	return "poll"
}

func (f *TriggerFactory) Create(config map[string]any, logger *slog.Logger) (protocol.Trigger, error) {
	return NewTrigger(config, f.host, logger)
}
