package task

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/pix-erase/internal/model"
)

// producer defines the interface for publishing task envelopes to the queue
// (e.g. Kafka). Delivery must be durable: once Produce returns nil, some
// executor will eventually pick the task up.
type producer interface {
	Produce(ctx context.Context, key, value []byte) error
}

// Dispatcher mints task identifiers, registers tasks in the status store and
// hands the envelopes to the durable queue. Command handlers call Submit and
// return the id to the client immediately; execution is fully out-of-band.
type Dispatcher struct {
	producer producer
	store    Store
}

// NewDispatcher creates a Dispatcher over the given queue producer and status store.
func NewDispatcher(p producer, s Store) *Dispatcher {
	return &Dispatcher{producer: p, store: s}
}

// Submit registers a new task and enqueues it. The returned id has the form
// "<kind>:<uuid-v4>" and can be polled via Status right away.
func (d *Dispatcher) Submit(ctx context.Context, kind string, payload any) (model.TaskID, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	id := model.NewTaskID(kind)

	t := model.Task{
		ID:          id,
		Kind:        kind,
		Status:      model.StatusQueued,
		Description: fmt.Sprintf("task %s queued", id),
		CreatedAt:   time.Now().UTC(),
	}
	if err := d.store.Create(ctx, t); err != nil {
		return "", fmt.Errorf("register task: %w", err)
	}

	env := Envelope{ID: id, Kind: kind, Payload: data, Attempt: 1}
	value, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("marshal envelope: %w", err)
	}

	if err := d.producer.Produce(ctx, []byte(id), value); err != nil {
		// The task was registered but will never run; make that observable.
		if terr := d.store.Transition(ctx, id, model.StatusFailure, "failed to enqueue task"); terr != nil {
			zlog.Logger.Err(terr).Str("task_id", string(id)).Msg("failed to record enqueue failure")
		}
		return "", fmt.Errorf("enqueue task: %w", err)
	}

	zlog.Logger.Info().
		Str("task_id", string(id)).
		Str("kind", kind).
		Msg("task submitted")

	return id, nil
}

// Status returns the current task record. An identifier that does not match
// the task id format or was never submitted yields a not-found error,
// distinct from a task that is still queued.
func (d *Dispatcher) Status(ctx context.Context, rawID string) (model.Task, error) {
	id, err := model.ParseTaskID(rawID)
	if err != nil {
		return model.Task{}, err
	}

	return d.store.Get(ctx, id)
}
