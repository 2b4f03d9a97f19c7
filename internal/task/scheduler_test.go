package task

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aliskhannn/pix-erase/internal/model"
)

// memScheduleStore is an in-memory sorted set keyed by member.
type memScheduleStore struct {
	scores map[string]int64
}

func newMemScheduleStore() *memScheduleStore {
	return &memScheduleStore{scores: make(map[string]int64)}
}

func (s *memScheduleStore) Add(_ context.Context, member string, due int64) error {
	s.scores[member] = due
	return nil
}

func (s *memScheduleStore) Due(_ context.Context, now int64) ([]string, error) {
	var due []string
	for m, score := range s.scores {
		if score <= now {
			due = append(due, m)
		}
	}
	return due, nil
}

func (s *memScheduleStore) All(_ context.Context) ([]string, error) {
	var all []string
	for m := range s.scores {
		all = append(all, m)
	}
	return all, nil
}

func (s *memScheduleStore) Remove(_ context.Context, member string) (bool, error) {
	if _, ok := s.scores[member]; !ok {
		return false, nil
	}
	delete(s.scores, member)
	return true, nil
}

// fakeSubmitter records what the scheduler hands to the queue.
type fakeSubmitter struct {
	kinds    []string
	payloads []json.RawMessage
}

func (f *fakeSubmitter) Submit(_ context.Context, kind string, payload any) (model.TaskID, error) {
	f.kinds = append(f.kinds, kind)
	f.payloads = append(f.payloads, payload.(json.RawMessage))
	return model.NewTaskID(kind), nil
}

type schedFixture struct {
	sched *Scheduler
	store *memScheduleStore
	sub   *fakeSubmitter
	clock time.Time
}

func newSchedFixture(t *testing.T) *schedFixture {
	t.Helper()
	f := &schedFixture{
		store: newMemScheduleStore(),
		sub:   &fakeSubmitter{},
		clock: time.Unix(1_700_000_000, 0),
	}
	f.sched = newScheduler(f.store, f.sub, time.Second)
	f.sched.now = func() time.Time { return f.clock }
	return f
}

func (f *schedFixture) advance(d time.Duration) {
	f.clock = f.clock.Add(d)
}

func TestScheduleInFiresOnceWhenDue(t *testing.T) {
	t.Parallel()
	f := newSchedFixture(t)

	_, err := f.sched.ScheduleIn(context.Background(), KindAnalyzeDomain, DomainPayload{Domain: "example.com"}, time.Minute)
	require.NoError(t, err)

	// Not due yet.
	f.sched.drainDue(context.Background())
	assert.Empty(t, f.sub.kinds)

	f.advance(time.Minute)
	f.sched.drainDue(context.Background())
	require.Equal(t, []string{KindAnalyzeDomain}, f.sub.kinds)

	var p DomainPayload
	require.NoError(t, json.Unmarshal(f.sub.payloads[0], &p))
	assert.Equal(t, "example.com", p.Domain)

	// One-shot entries do not re-arm.
	assert.Empty(t, f.store.scores)
	f.advance(time.Hour)
	f.sched.drainDue(context.Background())
	assert.Len(t, f.sub.kinds, 1)
}

func TestScheduleEveryRearms(t *testing.T) {
	t.Parallel()
	f := newSchedFixture(t)

	_, err := f.sched.ScheduleEvery(context.Background(), KindAnalyzeDomain, DomainPayload{Domain: "example.com"}, time.Minute)
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		f.advance(time.Minute)
		f.sched.drainDue(context.Background())
		assert.Len(t, f.sub.kinds, i, "run %d must submit exactly once", i)
		assert.Len(t, f.store.scores, 1, "periodic entry must stay registered")
	}
}

func TestScheduleEveryRejectsNonPositiveInterval(t *testing.T) {
	t.Parallel()
	f := newSchedFixture(t)

	_, err := f.sched.ScheduleEvery(context.Background(), KindAnalyzeDomain, DomainPayload{Domain: "example.com"}, 0)
	assert.Error(t, err)

	_, err = f.sched.ScheduleEvery(context.Background(), KindAnalyzeDomain, DomainPayload{Domain: "example.com"}, -time.Second)
	assert.Error(t, err)
}

func TestCancelRemovesPendingEntry(t *testing.T) {
	t.Parallel()
	f := newSchedFixture(t)

	id, err := f.sched.ScheduleEvery(context.Background(), KindAnalyzeDomain, DomainPayload{Domain: "example.com"}, time.Minute)
	require.NoError(t, err)

	require.NoError(t, f.sched.Cancel(context.Background(), id))
	assert.Empty(t, f.store.scores)

	f.advance(time.Hour)
	f.sched.drainDue(context.Background())
	assert.Empty(t, f.sub.kinds, "cancelled schedule must never fire")
}

func TestCancelUnknownIDIsNoOp(t *testing.T) {
	t.Parallel()
	f := newSchedFixture(t)

	_, err := f.sched.ScheduleIn(context.Background(), KindAnalyzeDomain, DomainPayload{Domain: "example.com"}, time.Minute)
	require.NoError(t, err)

	require.NoError(t, f.sched.Cancel(context.Background(), "no-such-schedule"))
	assert.Len(t, f.store.scores, 1, "other entries stay pending")
}

func TestDrainDueDropsMalformedEntries(t *testing.T) {
	t.Parallel()
	f := newSchedFixture(t)

	require.NoError(t, f.store.Add(context.Background(), "{not json", f.clock.UnixMilli()))

	f.sched.drainDue(context.Background())
	assert.Empty(t, f.sub.kinds)
	assert.Empty(t, f.store.scores, "malformed entries are removed, not retried")
}
