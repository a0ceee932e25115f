package domain

import "time"

// Task IDs for built-in tasks.
const (
	// TaskIDLogExpiry removes logs whose expiry has passed.
	TaskIDLogExpiry = "log-expiry"
)

// ScheduledTask is the persisted state of a recurring task.
type ScheduledTask struct {
	ID       string
	Name     string
	Interval time.Duration
	Enabled  bool

	// LastRun and NextRun are zero until the task first runs.
	LastRun time.Time
	NextRun time.Time

	// LastSuccess is when the task last finished without error.
	LastSuccess time.Time

	// LastError is the message of the most recent failure, cleared on success.
	LastError string
}

// Due reports whether an enabled task should run at now. A task that has
// never been scheduled is due immediately.
func (t *ScheduledTask) Due(now time.Time) bool {
	if !t.Enabled {
		return false
	}
	return t.NextRun.IsZero() || !t.NextRun.After(now)
}

// TaskResult records one run of a task.
type TaskResult struct {
	TaskID    string
	StartedAt time.Time
	EndedAt   time.Time
	Success   bool
	Error     string

	// Removed is the number of logs the run deleted.
	Removed int
}

// Duration is how long the run took.
func (r *TaskResult) Duration() time.Duration {
	return r.EndedAt.Sub(r.StartedAt)
}

// TaskConfig configures one task.
type TaskConfig struct {
	Enabled  bool
	Interval time.Duration
}

// SchedulerConfig holds scheduler configuration.
type SchedulerConfig struct {
	// Enabled is the master switch for background runs. Tasks can still
	// be run on demand when it is off.
	Enabled bool

	// TaskConfigs is keyed by task ID.
	TaskConfigs map[string]TaskConfig
}

// GetTaskConfig returns the configuration for taskID, or the zero value
// if the task is not configured.
func (c *SchedulerConfig) GetTaskConfig(taskID string) TaskConfig {
	if c.TaskConfigs == nil {
		return TaskConfig{}
	}
	return c.TaskConfigs[taskID]
}

// DefaultSchedulerConfig sweeps expired logs every five minutes.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Enabled: true,
		TaskConfigs: map[string]TaskConfig{
			TaskIDLogExpiry: {
				Enabled:  true,
				Interval: 5 * time.Minute,
			},
		},
	}
}
