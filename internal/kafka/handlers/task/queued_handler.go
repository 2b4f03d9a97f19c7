package task

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	tasks "github.com/aliskhannn/pix-erase/internal/task"
)

type executor interface {
	Execute(ctx context.Context, env tasks.Envelope) error
}

// QueuedHandler decodes task envelopes from Kafka messages and hands them to
// the executor.
type QueuedHandler struct {
	executor executor
}

func NewQueuedHandler(e executor) *QueuedHandler {
	return &QueuedHandler{executor: e}
}

func (h *QueuedHandler) Handle(ctx context.Context, msg kafka.Message) error {
	var env tasks.Envelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		return fmt.Errorf("unmarshal envelope: %w", err)
	}

	if err := h.executor.Execute(ctx, env); err != nil {
		return fmt.Errorf("execute task: %w", err)
	}

	return nil
}
