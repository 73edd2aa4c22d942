package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

const defaultConcurrency = 4

// Job binds a task type to its handler. Jobs with a Cron spec are also
// enqueued by the scheduler using Task as the payload.
type Job struct {
	Type    string
	Handle  asynq.HandlerFunc
	Cron    string
	Task    *asynq.Task
	Retries int
}

func (j Job) scheduled() bool {
	return j.Cron != "" && j.Task != nil
}

// WorkerOptions configure the asynq server and scheduler.
type WorkerOptions struct {
	Redis       asynq.RedisConnOpt
	Logger      *slog.Logger
	Location    *time.Location
	Concurrency int
}

// Worker processes gymdesk tasks and enqueues the nightly ones.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	scheduler *asynq.Scheduler
	logger    *slog.Logger
}

// NewWorker registers every job and its cron entry, if any. Cron specs are
// evaluated in opts.Location so nightly work follows the facility's clock.
func NewWorker(opts WorkerOptions, jobs ...Job) (*Worker, error) {
	if opts.Redis == nil {
		return nil, errors.New("jobs: redis connection required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	mux := asynq.NewServeMux()
	mux.Use(logTask(logger))

	var scheduler *asynq.Scheduler
	for _, job := range jobs {
		if job.Type == "" || job.Handle == nil {
			return nil, fmt.Errorf("jobs: incomplete registration %q", job.Type)
		}
		mux.HandleFunc(job.Type, job.Handle)
		if !job.scheduled() {
			continue
		}
		if scheduler == nil {
			scheduler = asynq.NewScheduler(opts.Redis, &asynq.SchedulerOpts{Location: loc})
		}
		entryOpts := []asynq.Option{asynq.Queue(QueueDefault), asynq.MaxRetry(job.Retries)}
		if _, err := scheduler.Register(job.Cron, job.Task, entryOpts...); err != nil {
			return nil, fmt.Errorf("jobs: schedule %s at %q: %w", job.Type, job.Cron, err)
		}
	}

	server := asynq.NewServer(opts.Redis, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{QueueDefault: 1},
	})
	return &Worker{server: server, mux: mux, scheduler: scheduler, logger: logger}, nil
}

// Run processes tasks until ctx is cancelled, then drains in-flight work.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil || w.server == nil {
		return errors.New("jobs: worker not configured")
	}
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("jobs: start server: %w", err)
	}
	defer w.server.Shutdown()

	if w.scheduler != nil {
		if err := w.scheduler.Start(); err != nil {
			return fmt.Errorf("jobs: start scheduler: %w", err)
		}
		defer w.scheduler.Shutdown()
	}

	<-ctx.Done()
	w.logger.Info("worker stopping", slog.Any("reason", context.Cause(ctx)))
	return ctx.Err()
}

// logTask records the outcome and duration of every processed task.
func logTask(logger *slog.Logger) asynq.MiddlewareFunc {
	return func(next asynq.Handler) asynq.Handler {
		return asynq.HandlerFunc(func(ctx context.Context, task *asynq.Task) error {
			started := time.Now()
			err := next.ProcessTask(ctx, task)
			attrs := []any{
				slog.String("task", task.Type()),
				slog.Duration("took", time.Since(started)),
			}
			if err != nil {
				logger.Warn("task failed", append(attrs, slog.Any("error", err))...)
				return err
			}
			logger.Debug("task done", attrs...)
			return nil
		})
	}
}
