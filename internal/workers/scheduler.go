package workers

import (
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/schedadmin/schedadmin/internal/config"
	"github.com/schedadmin/schedadmin/internal/tasks"
)

// Enqueuer is the part of *asynq.Client the scheduler needs
type Enqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Scheduler enqueues the maintenance tasks on their cron schedules
type Scheduler struct {
	client Enqueuer
	jobs   config.JobsConfig
	logger zerolog.Logger
	cron   *cron.Cron
	now    func() time.Time
}

// NewScheduler registers the configured schedules. Empty schedules are skipped.
func NewScheduler(client Enqueuer, jobs config.JobsConfig, logger zerolog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		client: client,
		jobs:   jobs,
		logger: logger,
		cron:   cron.New(),
		now:    time.Now,
	}

	entries := []struct {
		name     string
		schedule string
		run      func()
	}{
		{tasks.TypePurgeRevoked, jobs.PurgeSchedule, func() { _ = s.EnqueuePurge() }},
		{tasks.TypePruneAccessLog, jobs.PruneSchedule, func() { _ = s.EnqueuePrune() }},
	}
	for _, e := range entries {
		if e.schedule == "" {
			logger.Debug().Str("task", e.name).Msg("No schedule configured")
			continue
		}
		if _, err := s.cron.AddFunc(e.schedule, e.run); err != nil {
			return nil, fmt.Errorf("invalid schedule for %s: %w", e.name, err)
		}
		logger.Info().Str("task", e.name).Str("schedule", e.schedule).Msg("Scheduled maintenance task")
	}
	return s, nil
}

// Start runs the cron loop in its own goroutine
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the cron loop and waits for running enqueues
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// EnqueuePurge enqueues a purge of revocations that expired before now
func (s *Scheduler) EnqueuePurge() error {
	task, err := tasks.NewPurgeRevokedTask(s.now())
	if err != nil {
		return err
	}
	return s.enqueue(task)
}

// EnqueuePrune enqueues a prune of access events older than the retention
func (s *Scheduler) EnqueuePrune() error {
	task, err := tasks.NewPruneAccessLogTask(s.now().Add(-s.jobs.AccessLogRetention))
	if err != nil {
		return err
	}
	return s.enqueue(task)
}

func (s *Scheduler) enqueue(task *asynq.Task) error {
	info, err := s.client.Enqueue(task, asynq.Timeout(5*time.Minute))
	if err != nil {
		s.logger.Error().Err(err).Str("task", task.Type()).Msg("Failed to enqueue maintenance task")
		return err
	}
	s.logger.Info().Str("task", task.Type()).Str("task_id", info.ID).Msg("Maintenance task enqueued")
	return nil
}
