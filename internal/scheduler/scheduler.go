package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
)

// Purger drops expired cache entries.
type Purger interface {
	PurgeExpired() int
}

// Job is a periodic background task.
type Job struct {
	Name     string
	Interval time.Duration
	Timeout  time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler runs the maintenance jobs of the server.
type Scheduler struct {
	scheduler *gocron.Scheduler
	jobs      []Job
	logger    *slog.Logger
}

// New creates a new Scheduler. Jobs with a non-positive interval are skipped.
func New(logger *slog.Logger, jobs ...Job) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		jobs:      jobs,
		logger:    logger,
	}
}

// PurgeJob purges the cache every interval.
func PurgeJob(p Purger, interval time.Duration) Job {
	return Job{
		Name:     "cache-purge",
		Interval: interval,
		Run: func(context.Context) error {
			p.PurgeExpired()
			return nil
		},
	}
}

// Start schedules the jobs and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	scheduled := 0
	for _, job := range s.jobs {
		if job.Interval <= 0 {
			s.logger.Info("scheduler: job disabled", "job", job.Name)
			continue
		}

		job := job
		_, err := s.scheduler.Every(job.Interval).WaitForSchedule().Do(func() {
			s.run(job)
		})
		if err != nil {
			return err
		}
		scheduled++
	}

	if scheduled == 0 {
		s.logger.Info("scheduler: nothing to schedule")
		return nil
	}
	s.scheduler.StartAsync()
	return nil
}

func (s *Scheduler) run(job Job) {
	timeout := job.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	if err := job.Run(ctx); err != nil {
		s.logger.Error("scheduler: job failed", "job", job.Name, "err", err)
		return
	}
	s.logger.Debug("scheduler: job completed", "job", job.Name, "took", time.Since(start))
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
