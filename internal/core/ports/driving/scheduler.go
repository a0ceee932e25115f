package driving

import (
	"context"

	"github.com/custodia-labs/chatlogs/internal/core/domain"
)

// Scheduler runs maintenance tasks, currently the sweep that deletes
// expired logs.
type Scheduler interface {
	// Start runs due tasks on their intervals until ctx ends or Stop is
	// called. It returns at once when scheduling is disabled.
	Start(ctx context.Context) error

	// Stop ends the loop and waits for running tasks.
	Stop() error

	// RunNow runs a task immediately, whether or not it is due.
	RunNow(ctx context.Context, taskID string) (*domain.TaskResult, error)
}
