package task

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aliskhannn/pix-erase/internal/model"
)

// RedisStore keeps task records in Redis hashes keyed by task id.
// A single executor owns each task's transitions, so plain read-check-write
// is sufficient; no cross-task coordination is needed.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a RedisStore. Records expire after ttl so finished
// tasks do not accumulate forever; zero ttl keeps them indefinitely.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func taskKey(id model.TaskID) string {
	return "task:" + string(id)
}

func (s *RedisStore) Create(ctx context.Context, t model.Task) error {
	fields := map[string]interface{}{
		"kind":        t.Kind,
		"status":      string(t.Status),
		"description": t.Description,
		"created_at":  t.CreatedAt.Format(time.RFC3339Nano),
	}

	key := taskKey(t.ID)
	if err := s.client.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("create task record: %w", err)
	}
	if s.ttl > 0 {
		if err := s.client.Expire(ctx, key, s.ttl).Err(); err != nil {
			return fmt.Errorf("set task record ttl: %w", err)
		}
	}

	return nil
}

func (s *RedisStore) Get(ctx context.Context, id model.TaskID) (model.Task, error) {
	fields, err := s.client.HGetAll(ctx, taskKey(id)).Result()
	if err != nil {
		return model.Task{}, fmt.Errorf("read task record: %w", err)
	}
	if len(fields) == 0 {
		return model.Task{}, ErrTaskNotFound
	}

	t := model.Task{
		ID:          id,
		Kind:        fields["kind"],
		Status:      model.TaskStatus(fields["status"]),
		Description: fields["description"],
	}
	if raw := fields["result"]; raw != "" {
		t.Result = json.RawMessage(raw)
	}
	if ts := fields["created_at"]; ts != "" {
		t.CreatedAt, _ = time.Parse(time.RFC3339Nano, ts)
	}

	return t, nil
}

func (s *RedisStore) Transition(ctx context.Context, id model.TaskID, to model.TaskStatus, description string) error {
	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if !model.CanTransition(current.Status, to) {
		return fmt.Errorf("%w: %s -> %s (task %s)", ErrInvalidTransition, current.Status, to, id)
	}

	err = s.client.HSet(ctx, taskKey(id), map[string]interface{}{
		"status":      string(to),
		"description": description,
	}).Err()
	if err != nil {
		return fmt.Errorf("update task record: %w", err)
	}

	return nil
}

func (s *RedisStore) SetResult(ctx context.Context, id model.TaskID, result json.RawMessage) error {
	if err := s.client.HSet(ctx, taskKey(id), "result", string(result)).Err(); err != nil {
		return fmt.Errorf("store task result: %w", err)
	}
	return nil
}
