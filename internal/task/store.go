package task

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/aliskhannn/pix-erase/internal/model"
)

var (
	// ErrTaskNotFound is returned when a task id was never registered.
	// Distinct from a queued-but-unstarted task, which reports its status.
	ErrTaskNotFound = errors.New("task not found")

	// ErrInvalidTransition is returned for a status move the state machine
	// does not allow, including any mutation of a terminal status. It
	// signals a programming error, not a runtime condition to retry.
	ErrInvalidTransition = errors.New("invalid task status transition")
)

// Store tracks task lifecycle state. All mutations are single-task-scoped;
// status transitions must follow the state machine in model.CanTransition.
type Store interface {
	Create(ctx context.Context, t model.Task) error
	Get(ctx context.Context, id model.TaskID) (model.Task, error)
	Transition(ctx context.Context, id model.TaskID, to model.TaskStatus, description string) error
	SetResult(ctx context.Context, id model.TaskID, result json.RawMessage) error
}
