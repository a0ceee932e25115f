package driven

import (
	"context"

	"github.com/custodia-labs/chatlogs/internal/core/domain"
)

// SchedulerStore keeps task state and run history so sweeps resume on
// schedule after a restart.
type SchedulerStore interface {
	// Task returns the task with the given ID, or nil if there is none.
	Task(ctx context.Context, taskID string) (*domain.ScheduledTask, error)

	// Tasks returns every task, ordered by ID.
	Tasks(ctx context.Context) ([]domain.ScheduledTask, error)

	// SaveTask inserts or replaces a task.
	SaveTask(ctx context.Context, task *domain.ScheduledTask) error

	// RecordResult appends a run to the task's history.
	RecordResult(ctx context.Context, result *domain.TaskResult) error

	// History returns up to limit runs of a task, newest first.
	// A limit of zero or less returns all of them.
	History(ctx context.Context, taskID string, limit int) ([]domain.TaskResult, error)

	// PruneHistory keeps only the newest keep runs of each task.
	PruneHistory(ctx context.Context, keep int) error
}
