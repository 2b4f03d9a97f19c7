package task

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/pix-erase/internal/model"
)

const scheduleKey = "scheduled_tasks"

// scheduleEntry is a pending delayed or periodic submission stored in the
// sorted set, scored by its due time.
type scheduleEntry struct {
	ID       string          `json:"id"`
	Kind     string          `json:"kind"`
	Payload  json.RawMessage `json:"payload"`
	Interval time.Duration   `json:"interval,omitempty"` // zero for one-shot
}

// scheduleStore is the sorted-set boundary of the scheduler: members are
// serialized entries scored by their due time in unix milliseconds.
type scheduleStore interface {
	Add(ctx context.Context, member string, dueUnixMilli int64) error
	Due(ctx context.Context, nowUnixMilli int64) ([]string, error)
	All(ctx context.Context) ([]string, error)
	Remove(ctx context.Context, member string) (bool, error)
}

// submitter hands due entries to the task queue.
type submitter interface {
	Submit(ctx context.Context, kind string, payload any) (model.TaskID, error)
}

// Scheduler submits tasks at a future time or on a fixed interval, e.g.
// periodic domain re-analysis. Entries live in a Redis sorted set so they
// survive restarts; a single polling loop drains due entries and hands them
// to the dispatcher.
type Scheduler struct {
	store        scheduleStore
	dispatcher   submitter
	pollInterval time.Duration
	now          func() time.Time
}

// NewScheduler creates a Scheduler over Redis polling for due entries at the
// given interval.
func NewScheduler(client *redis.Client, d *Dispatcher, pollInterval time.Duration) *Scheduler {
	return newScheduler(&redisScheduleStore{client: client}, d, pollInterval)
}

func newScheduler(store scheduleStore, d submitter, pollInterval time.Duration) *Scheduler {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &Scheduler{
		store:        store,
		dispatcher:   d,
		pollInterval: pollInterval,
		now:          time.Now,
	}
}

// ScheduleIn registers a one-shot submission after the given delay and
// returns a schedule id usable with Cancel while the entry is still pending.
func (s *Scheduler) ScheduleIn(ctx context.Context, kind string, payload any, delay time.Duration) (string, error) {
	return s.add(ctx, kind, payload, s.now().Add(delay), 0)
}

// ScheduleEvery registers a recurring submission with the given interval.
// The first run happens one interval from now.
func (s *Scheduler) ScheduleEvery(ctx context.Context, kind string, payload any, interval time.Duration) (string, error) {
	if interval <= 0 {
		return "", fmt.Errorf("interval must be positive")
	}
	return s.add(ctx, kind, payload, s.now().Add(interval), interval)
}

func (s *Scheduler) add(ctx context.Context, kind string, payload any, due time.Time, interval time.Duration) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	entry := scheduleEntry{
		ID:       uuid.NewString(),
		Kind:     kind,
		Payload:  data,
		Interval: interval,
	}
	member, err := json.Marshal(entry)
	if err != nil {
		return "", fmt.Errorf("marshal schedule entry: %w", err)
	}

	if err := s.store.Add(ctx, string(member), due.UnixMilli()); err != nil {
		return "", fmt.Errorf("register schedule entry: %w", err)
	}

	return entry.ID, nil
}

// Cancel removes a pending entry. A schedule whose task already entered the
// queue is not affected; only not-yet-due submissions can be prevented.
func (s *Scheduler) Cancel(ctx context.Context, scheduleID string) error {
	members, err := s.store.All(ctx)
	if err != nil {
		return fmt.Errorf("list schedule entries: %w", err)
	}

	for _, m := range members {
		var entry scheduleEntry
		if err := json.Unmarshal([]byte(m), &entry); err != nil {
			continue
		}
		if entry.ID == scheduleID {
			_, err := s.store.Remove(ctx, m)
			return err
		}
	}

	return nil
}

// Run drains due entries until the context is cancelled. Meant to be started
// once per deployment next to the worker pool.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	zlog.Logger.Info().Msg("starting task scheduler")

	for {
		select {
		case <-ctx.Done():
			zlog.Logger.Info().Msg("shutdown signal received, stopping scheduler")
			return
		case <-ticker.C:
			s.drainDue(ctx)
		}
	}
}

func (s *Scheduler) drainDue(ctx context.Context) {
	members, err := s.store.Due(ctx, s.now().UnixMilli())
	if err != nil {
		zlog.Logger.Err(err).Msg("failed to read due schedule entries")
		return
	}

	for _, m := range members {
		// Claim the entry before acting on it so a crashed submit is the
		// worst case, not a duplicate one.
		removed, err := s.store.Remove(ctx, m)
		if err != nil || !removed {
			continue
		}

		var entry scheduleEntry
		if err := json.Unmarshal([]byte(m), &entry); err != nil {
			zlog.Logger.Err(err).Str("entry", m).Msg("malformed schedule entry dropped")
			continue
		}

		var id model.TaskID
		if id, err = s.dispatcher.Submit(ctx, entry.Kind, json.RawMessage(entry.Payload)); err != nil {
			zlog.Logger.Err(err).Str("kind", entry.Kind).Msg("failed to submit scheduled task")
		} else {
			zlog.Logger.Info().
				Str("task_id", string(id)).
				Str("schedule_id", entry.ID).
				Msg("scheduled task submitted")
		}

		if entry.Interval > 0 {
			if err := s.store.Add(ctx, m, s.now().Add(entry.Interval).UnixMilli()); err != nil {
				zlog.Logger.Err(err).Str("schedule_id", entry.ID).Msg("failed to re-arm periodic schedule")
			}
		}
	}
}

// redisScheduleStore backs the scheduler with a Redis sorted set.
type redisScheduleStore struct {
	client *redis.Client
}

func (r *redisScheduleStore) Add(ctx context.Context, member string, dueUnixMilli int64) error {
	return r.client.ZAdd(ctx, scheduleKey, redis.Z{
		Score:  float64(dueUnixMilli),
		Member: member,
	}).Err()
}

func (r *redisScheduleStore) Due(ctx context.Context, nowUnixMilli int64) ([]string, error) {
	return r.client.ZRangeByScore(ctx, scheduleKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(nowUnixMilli, 10),
	}).Result()
}

func (r *redisScheduleStore) All(ctx context.Context) ([]string, error) {
	return r.client.ZRange(ctx, scheduleKey, 0, -1).Result()
}

func (r *redisScheduleStore) Remove(ctx context.Context, member string) (bool, error) {
	removed, err := r.client.ZRem(ctx, scheduleKey, member).Result()
	return removed > 0, err
}
