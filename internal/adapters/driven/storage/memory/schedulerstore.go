package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/chatlogs/internal/core/domain"
	"github.com/custodia-labs/chatlogs/internal/core/ports/driven"
)

// Ensure SchedulerStore implements the interface.
var _ driven.SchedulerStore = (*SchedulerStore)(nil)

// SchedulerStore keeps task state in process memory. Runs are held in
// insertion order, which is also start order for a single scheduler.
type SchedulerStore struct {
	mu    sync.RWMutex
	tasks map[string]domain.ScheduledTask
	runs  []domain.TaskResult
}

// NewSchedulerStore creates an empty scheduler store.
func NewSchedulerStore() *SchedulerStore {
	return &SchedulerStore{tasks: make(map[string]domain.ScheduledTask)}
}

func (s *SchedulerStore) Task(_ context.Context, taskID string) (*domain.ScheduledTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[taskID]
	if !ok {
		return nil, nil
	}
	return &task, nil
}

func (s *SchedulerStore) Tasks(_ context.Context) ([]domain.ScheduledTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tasks := make([]domain.ScheduledTask, 0, len(s.tasks))
	for _, t := range s.tasks {
		tasks = append(tasks, t)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	return tasks, nil
}

func (s *SchedulerStore) SaveTask(_ context.Context, task *domain.ScheduledTask) error {
	if task == nil {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID] = *task
	return nil
}

func (s *SchedulerStore) RecordResult(_ context.Context, result *domain.TaskResult) error {
	if result == nil {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, *result)
	return nil
}

func (s *SchedulerStore) History(_ context.Context, taskID string, limit int) ([]domain.TaskResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.TaskResult
	for i := len(s.runs) - 1; i >= 0; i-- {
		if s.runs[i].TaskID != taskID {
			continue
		}
		out = append(out, s.runs[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *SchedulerStore) PruneHistory(_ context.Context, keep int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Walk newest to oldest, then restore order.
	seen := make(map[string]int)
	kept := make([]domain.TaskResult, 0, len(s.runs))
	for i := len(s.runs) - 1; i >= 0; i-- {
		r := s.runs[i]
		if seen[r.TaskID] < keep {
			seen[r.TaskID]++
			kept = append(kept, r)
		}
	}
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	s.runs = kept
	return nil
}
