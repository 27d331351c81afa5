package queue

import (
	"log/slog"

	"github.com/conveyor-ci/conveyor/pkg/protocol"
)

type TriggerFactory struct{}

func NewTriggerFactory() *TriggerFactory {
	return &TriggerFactory{}
}

func (f *TriggerFactory) ID() string {
	return "queue"
}

func (f *TriggerFactory) Create(config map[string]any, logger *slog.Logger) (protocol.Trigger, error) {
	return NewTrigger(config, logger)
}
