package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/gymdesk/gymdesk/internal/jobs"
)

// StatusRefresher persists reclassified membership statuses.
type StatusRefresher interface {
	RefreshStatuses(ctx context.Context) (int, error)
}

// StatusRefreshJob handles TaskStatusRefresh.
type StatusRefreshJob struct {
	Members StatusRefresher
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewStatusRefreshJob constructs the job handler.
func NewStatusRefreshJob(members StatusRefresher, logger *slog.Logger, metrics *jobmetrics.Metrics) *StatusRefreshJob {
	return &StatusRefreshJob{Members: members, Logger: logger, Metrics: metrics}
}

// Handle executes the refresh.
func (j *StatusRefreshJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Members == nil {
		return errors.New("status refresh: dependencies not configured")
	}
	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()
	return j.Metrics.Observe(TaskStatusRefresh, func() (int, error) {
		changed, err := j.Members.RefreshStatuses(ctx)
		if err != nil {
			logger.Error("status refresh", slog.Int("changed", changed), slog.Any("error", err))
			return changed, err
		}
		logger.Info("status refresh complete", slog.Int("changed", changed), slog.Duration("took", time.Since(start)))
		return changed, nil
	})
}

// KeyCleaner prunes idempotency keys.
type KeyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// IdempotencyCleanupJob handles TaskIdempotencyCleanup.
type IdempotencyCleanupJob struct {
	Store     KeyCleaner
	Retention time.Duration
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// Handle deletes keys older than the retention window.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("idempotency cleanup: dependencies not configured")
	}
	retention := j.Retention
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}
	return j.Metrics.Observe(TaskIdempotencyCleanup, func() (int, error) {
		removed, err := j.Store.Cleanup(ctx, retention)
		if err != nil {
			return 0, err
		}
		if j.Logger != nil {
			j.Logger.Info("idempotency keys pruned", slog.Int64("removed", removed))
		}
		return int(removed), nil
	})
}
