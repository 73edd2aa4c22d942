package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"cloud.google.com/go/civil"
	"github.com/hibiken/asynq"

	"github.com/gymdesk/gymdesk/internal/attendance"
	jobmetrics "github.com/gymdesk/gymdesk/internal/jobs"
)

// Sweeper runs one absence sweep.
type Sweeper interface {
	Run(ctx context.Context, date *civil.Date) attendance.SweepResult
}

// AbsenceSweepJob handles TaskAbsenceSweep.
type AbsenceSweepJob struct {
	Sweeper Sweeper
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewAbsenceSweepJob constructs the job handler.
func NewAbsenceSweepJob(sweeper Sweeper, logger *slog.Logger, metrics *jobmetrics.Metrics) *AbsenceSweepJob {
	return &AbsenceSweepJob{Sweeper: sweeper, Logger: logger, Metrics: metrics}
}

// Handle executes the sweep. A partial sweep fails the task so asynq retries
// it; a retry only writes the members still unmarked.
func (j *AbsenceSweepJob) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.Sweeper == nil {
		return errors.New("absence sweep: dependencies not configured")
	}
	var payload AbsenceSweepPayload
	if len(task.Payload()) > 0 {
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return fmt.Errorf("absence sweep: decode payload: %v: %w", err, asynq.SkipRetry)
		}
	}

	return j.Metrics.Observe(TaskAbsenceSweep, func() (int, error) {
		res := j.Sweeper.Run(ctx, payload.Date)
		if res.Err != nil {
			j.log().Error("absence sweep partial",
				slog.String("date", res.Date.String()),
				slog.Int("marked", res.Marked),
				slog.Any("error", res.Err))
		}
		return res.Marked, res.Err
	})
}

func (j *AbsenceSweepJob) log() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
