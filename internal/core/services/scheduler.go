package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/chatlogs/internal/core/domain"
	"github.com/custodia-labs/chatlogs/internal/core/ports/driven"
	"github.com/custodia-labs/chatlogs/internal/core/ports/driving"
	"github.com/custodia-labs/chatlogs/internal/logger"
)

var _ driving.Scheduler = (*Scheduler)(nil)

// historyKeep is the number of runs retained per task.
const historyKeep = 100

var errUnknownTask = errors.New("unknown task")

// ErrTaskRunning is returned by RunNow while the task is already running.
var ErrTaskRunning = errors.New("task already running")

// job is the work behind a task ID. It returns how many logs it removed.
type job struct {
	name string
	run  func(ctx context.Context, now time.Time) (int, error)
}

// Scheduler runs maintenance jobs such as the expiry sweep on their
// configured intervals, persisting task state between runs.
type Scheduler struct {
	config domain.SchedulerConfig
	store  driven.SchedulerStore
	jobs   map[string]job
	tick   time.Duration
	now    func() time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	// active holds the IDs of tasks whose job is in progress.
	activeMu sync.Mutex
	active   map[string]bool
}

// NewScheduler creates a scheduler whose log-expiry job sweeps logStore.
func NewScheduler(
	config domain.SchedulerConfig,
	store driven.SchedulerStore,
	logStore driven.LogStore,
) *Scheduler {
	return &Scheduler{
		config: config,
		store:  store,
		jobs: map[string]job{
			domain.TaskIDLogExpiry: {name: "Log Expiry", run: logStore.DeleteExpired},
		},
		tick:   time.Minute,
		now:    time.Now,
		active: make(map[string]bool),
	}
}

// Start sweeps due tasks every tick until Stop is called or ctx ends.
// It returns immediately when the scheduler is disabled or already running.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running || !s.config.Enabled {
		enabled := s.config.Enabled
		s.mu.Unlock()
		if !enabled {
			logger.Info("scheduler disabled")
		}
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.mu.Unlock()

	if err := s.register(ctx); err != nil {
		logger.Warn("scheduler: registering tasks: %v", err)
	}

	s.sweep(ctx)
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stopCh:
			return nil
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// Stop ends the loop and waits for in-flight tasks.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

// RunOnce runs every due task and waits for them to finish.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if err := s.register(ctx); err != nil {
		return err
	}
	s.sweep(ctx)
	s.wg.Wait()
	return nil
}

// RunNow runs a task immediately, whether or not it is due. A failing job
// is reported in the result, not as an error.
func (s *Scheduler) RunNow(ctx context.Context, taskID string) (*domain.TaskResult, error) {
	if err := s.register(ctx); err != nil {
		return nil, err
	}
	task, err := s.store.Task(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, fmt.Errorf("task %s: %w", taskID, domain.ErrNotFound)
	}
	if _, ok := s.jobs[taskID]; !ok {
		return nil, fmt.Errorf("task %s: %w", taskID, errUnknownTask)
	}
	if !s.claim(taskID) {
		return nil, fmt.Errorf("task %s: %w", taskID, ErrTaskRunning)
	}
	defer s.release(taskID)
	return s.execute(ctx, task), nil
}

// register stores a task for every configured job. New tasks are due at
// once so a fresh process sweeps on startup; an interval change reschedules.
func (s *Scheduler) register(ctx context.Context) error {
	for id, j := range s.jobs {
		cfg := s.config.GetTaskConfig(id)
		if cfg.Interval <= 0 {
			continue
		}

		task, err := s.store.Task(ctx, id)
		if err != nil {
			return err
		}
		switch {
		case task == nil:
			task = &domain.ScheduledTask{ID: id, Name: j.name, Interval: cfg.Interval}
		case task.Interval != cfg.Interval:
			task.Interval = cfg.Interval
			task.NextRun = s.now().Add(cfg.Interval)
		}
		task.Enabled = cfg.Enabled

		if err := s.store.SaveTask(ctx, task); err != nil {
			return err
		}
	}
	return nil
}

// sweep starts every due task with a known job in the background.
func (s *Scheduler) sweep(ctx context.Context) {
	tasks, err := s.store.Tasks(ctx)
	if err != nil {
		logger.Warn("scheduler: listing tasks: %v", err)
		return
	}

	now := s.now()
	for i := range tasks {
		task := &tasks[i]
		if !task.Due(now) {
			continue
		}
		if _, ok := s.jobs[task.ID]; !ok {
			logger.Warn("scheduler: no job for task %s", task.ID)
			continue
		}
		if !s.claim(task.ID) {
			logger.Debug("scheduler: %s still running, skipping", task.ID)
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.release(task.ID)
			s.execute(ctx, task)
		}()
	}
}

// claim marks taskID as running. It reports false if it already is.
func (s *Scheduler) claim(taskID string) bool {
	s.activeMu.Lock()
	defer s.activeMu.Unlock()
	if s.active[taskID] {
		return false
	}
	s.active[taskID] = true
	return true
}

func (s *Scheduler) release(taskID string) {
	s.activeMu.Lock()
	defer s.activeMu.Unlock()
	delete(s.active, taskID)
}

// execute runs the task's job, then persists the task, its result and
// pruned history. The job must exist.
func (s *Scheduler) execute(ctx context.Context, task *domain.ScheduledTask) *domain.TaskResult {
	result := &domain.TaskResult{TaskID: task.ID, StartedAt: s.now()}

	removed, err := s.jobs[task.ID].run(ctx, result.StartedAt)
	result.EndedAt = s.now()
	result.Removed = removed

	if err != nil {
		result.Error = err.Error()
		task.LastError = result.Error
		logger.Warn("scheduler: task %s failed: %v", task.ID, err)
	} else {
		result.Success = true
		task.LastError = ""
		task.LastSuccess = result.EndedAt
		logger.Info("scheduler: %s removed %d expired log(s)", task.ID, removed)
	}
	task.LastRun = result.StartedAt
	task.NextRun = result.EndedAt.Add(task.Interval)

	if err := s.store.SaveTask(ctx, task); err != nil {
		logger.Warn("scheduler: saving task %s: %v", task.ID, err)
	}
	if err := s.store.RecordResult(ctx, result); err != nil {
		logger.Warn("scheduler: recording run of %s: %v", task.ID, err)
	}
	if err := s.store.PruneHistory(ctx, historyKeep); err != nil {
		logger.Warn("scheduler: pruning history: %v", err)
	}
	return result
}
