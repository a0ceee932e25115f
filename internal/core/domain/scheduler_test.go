package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultSchedulerConfig(t *testing.T) {
	config := DefaultSchedulerConfig()

	assert.True(t, config.Enabled)
	assert.Len(t, config.TaskConfigs, 1)

	expiry := config.TaskConfigs[TaskIDLogExpiry]
	assert.True(t, expiry.Enabled)
	assert.Equal(t, 5*time.Minute, expiry.Interval)
}

func TestSchedulerConfig_GetTaskConfig(t *testing.T) {
	config := DefaultSchedulerConfig()

	cfg := config.GetTaskConfig(TaskIDLogExpiry)
	assert.True(t, cfg.Enabled)

	unknown := config.GetTaskConfig("unknown-task")
	assert.False(t, unknown.Enabled)
	assert.Equal(t, time.Duration(0), unknown.Interval)
}

func TestSchedulerConfig_GetTaskConfig_NilMap(t *testing.T) {
	config := SchedulerConfig{Enabled: true}

	cfg := config.GetTaskConfig("any-task")
	assert.False(t, cfg.Enabled)
	assert.Equal(t, time.Duration(0), cfg.Interval)
}

func TestScheduledTask_Due(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		task ScheduledTask
		want bool
	}{
		{"never scheduled", ScheduledTask{Enabled: true}, true},
		{"next run in the past", ScheduledTask{Enabled: true, NextRun: now.Add(-time.Second)}, true},
		{"next run is now", ScheduledTask{Enabled: true, NextRun: now}, true},
		{"next run in the future", ScheduledTask{Enabled: true, NextRun: now.Add(time.Minute)}, false},
		{"disabled", ScheduledTask{NextRun: now.Add(-time.Hour)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.task.Due(now))
		})
	}
}

func TestTaskResult_Duration(t *testing.T) {
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	r := TaskResult{StartedAt: start, EndedAt: start.Add(1500 * time.Millisecond)}
	assert.Equal(t, 1500*time.Millisecond, r.Duration())
}
