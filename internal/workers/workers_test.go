package workers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schedadmin/schedadmin/internal/config"
	"github.com/schedadmin/schedadmin/internal/tasks"
)

type fakeMaintenance struct {
	cutoff time.Time
	err    error
}

func (f *fakeMaintenance) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	f.cutoff = now
	return 2, f.err
}

func (f *fakeMaintenance) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return 5, f.err
}

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: "task-1", Type: task.Type()}, nil
}

func TestHandlePurgeRevoked(t *testing.T) {
	cutoff := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	task, err := tasks.NewPurgeRevokedTask(cutoff)
	require.NoError(t, err)

	fake := &fakeMaintenance{}
	require.NoError(t, HandlePurgeRevoked(context.Background(), task, fake, zerolog.Nop()))
	assert.True(t, fake.cutoff.Equal(cutoff))
}

func TestHandlePruneAccessLog_PropagatesErrors(t *testing.T) {
	task, err := tasks.NewPruneAccessLogTask(time.Now())
	require.NoError(t, err)

	fake := &fakeMaintenance{err: errors.New("disk full")}
	assert.Error(t, HandlePruneAccessLog(context.Background(), task, fake, zerolog.Nop()))
}

func TestHandlers_SkipRetryOnBadPayload(t *testing.T) {
	task := asynq.NewTask(tasks.TypePurgeRevoked, []byte(`{}`))

	err := HandlePurgeRevoked(context.Background(), task, &fakeMaintenance{}, zerolog.Nop())
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = HandlePruneAccessLog(context.Background(), asynq.NewTask(tasks.TypePruneAccessLog, []byte(`nope`)), &fakeMaintenance{}, zerolog.Nop())
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestScheduler_EnqueuesWithCutoffs(t *testing.T) {
	now := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	client := &fakeEnqueuer{}
	s, err := NewScheduler(client, config.JobsConfig{
		PurgeSchedule:      "@hourly",
		PruneSchedule:      "0 3 * * *",
		AccessLogRetention: 30 * 24 * time.Hour,
	}, zerolog.Nop())
	require.NoError(t, err)
	s.now = func() time.Time { return now }

	require.NoError(t, s.EnqueuePurge())
	require.NoError(t, s.EnqueuePrune())
	require.Len(t, client.tasks, 2)

	purge, err := tasks.ParseMaintenancePayload(client.tasks[0])
	require.NoError(t, err)
	assert.Equal(t, tasks.TypePurgeRevoked, client.tasks[0].Type())
	assert.True(t, purge.Cutoff.Equal(now))

	prune, err := tasks.ParseMaintenancePayload(client.tasks[1])
	require.NoError(t, err)
	assert.Equal(t, tasks.TypePruneAccessLog, client.tasks[1].Type())
	assert.True(t, prune.Cutoff.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)))
}

func TestScheduler_EnqueueFailure(t *testing.T) {
	client := &fakeEnqueuer{err: errors.New("redis down")}
	s, err := NewScheduler(client, config.JobsConfig{}, zerolog.Nop())
	require.NoError(t, err)

	assert.Error(t, s.EnqueuePurge())
}

func TestScheduler_InvalidSchedule(t *testing.T) {
	_, err := NewScheduler(&fakeEnqueuer{}, config.JobsConfig{PurgeSchedule: "whenever"}, zerolog.Nop())
	assert.Error(t, err)
}
