// Package schedule runs the scrape pipeline on a fixed interval.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/pfrederiksen/weather-scrape/internal/logger"
)

const jobName = "weather_scrape_job"

// Task is one scheduled run
type Task func(ctx context.Context) error

// Runner executes a Task every interval, starting immediately. A run that is
// still going when the next one is due causes that tick to be rescheduled.
type Runner struct {
	scheduler gocron.Scheduler
	interval  time.Duration
	task      Task
	log       *logger.Logger
}

// New creates a Runner for task
func New(interval time.Duration, task Task, log *logger.Logger) (*Runner, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %s", interval)
	}
	if task == nil {
		return nil, errors.New("task must not be nil")
	}
	if log == nil {
		log = logger.Default()
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("creating scheduler: %w", err)
	}

	return &Runner{
		scheduler: scheduler,
		interval:  interval,
		task:      task,
		log:       log,
	}, nil
}

// Run schedules the task and blocks until ctx is done, then shuts the
// scheduler down, waiting for a run in progress to finish.
func (r *Runner) Run(ctx context.Context) error {
	_, err := r.scheduler.NewJob(
		gocron.DurationJob(r.interval),
		gocron.NewTask(func() { r.runOnce(ctx) }),
		gocron.WithName(jobName),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("creating scrape job: %w", err)
	}

	r.scheduler.Start()
	r.log.Info("Scheduler started", logger.Fields{"interval": r.interval.String()})

	<-ctx.Done()

	if err := r.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("stopping scheduler: %w", err)
	}
	r.log.Info("Scheduler stopped", nil)
	return nil
}

func (r *Runner) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	start := time.Now()
	logger.IncrCounter("schedule.runs")

	if err := r.task(ctx); err != nil {
		logger.IncrCounter("schedule.failures")
		r.log.Error("Scheduled scrape failed", logger.Fields{"duration": time.Since(start).String()}, err)
		return
	}
	r.log.Info("Scheduled scrape completed", logger.Fields{"duration": time.Since(start).String()})
}
