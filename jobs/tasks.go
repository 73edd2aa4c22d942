package jobs

import (
	"encoding/json"

	"cloud.google.com/go/civil"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAbsenceSweep marks unmarked eligible members absent for a day.
	TaskAbsenceSweep = "attendance:absence-sweep"
	// TaskStatusRefresh persists time-driven membership reclassification.
	TaskStatusRefresh = "membership:status-refresh"
	// TaskIdempotencyCleanup prunes expired payment idempotency keys.
	TaskIdempotencyCleanup = "maintenance:idempotency-cleanup"
)

// AbsenceSweepPayload optionally pins the sweep to a past day. A nil Date
// sweeps the facility's current day.
type AbsenceSweepPayload struct {
	Date *civil.Date `json:"date,omitempty"`
}

// NewAbsenceSweepTask builds a sweep task for date, or for today when nil.
func NewAbsenceSweepTask(date *civil.Date) (*asynq.Task, error) {
	body, err := json.Marshal(AbsenceSweepPayload{Date: date})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAbsenceSweep, body, asynq.Queue(QueueDefault)), nil
}

// NewStatusRefreshTask builds a status refresh task.
func NewStatusRefreshTask() *asynq.Task {
	return asynq.NewTask(TaskStatusRefresh, nil, asynq.Queue(QueueDefault))
}

// NewIdempotencyCleanupTask builds a key cleanup task.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskIdempotencyCleanup, nil, asynq.Queue(QueueDefault))
}

// TaskByName builds a task with its default payload, for manual triggers.
func TaskByName(name string) (*asynq.Task, bool) {
	switch name {
	case TaskAbsenceSweep:
		task, err := NewAbsenceSweepTask(nil)
		return task, err == nil
	case TaskStatusRefresh:
		return NewStatusRefreshTask(), true
	case TaskIdempotencyCleanup:
		return NewIdempotencyCleanupTask(), true
	default:
		return nil, false
	}
}
