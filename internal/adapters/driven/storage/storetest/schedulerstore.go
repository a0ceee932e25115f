package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/chatlogs/internal/core/domain"
	"github.com/custodia-labs/chatlogs/internal/core/ports/driven"
)

// SchedulerFactory returns a fresh, empty scheduler store for one test.
type SchedulerFactory func(t *testing.T) driven.SchedulerStore

// RunSchedulerStoreTests runs the SchedulerStore contract against stores
// built by newStore.
func RunSchedulerStoreTests(t *testing.T, newStore SchedulerFactory) {
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("missing task is nil", func(t *testing.T) {
		task, err := newStore(t).Task(ctx, domain.TaskIDLogExpiry)
		require.NoError(t, err)
		assert.Nil(t, task)
	})

	t.Run("save and read back", func(t *testing.T) {
		store := newStore(t)
		want := &domain.ScheduledTask{
			ID:          domain.TaskIDLogExpiry,
			Name:        "Log Expiry",
			Interval:    90 * time.Second,
			Enabled:     true,
			LastRun:     base.Add(-time.Minute),
			NextRun:     base.Add(30 * time.Second),
			LastSuccess: base.Add(-time.Minute),
		}
		require.NoError(t, store.SaveTask(ctx, want))

		got, err := store.Task(ctx, domain.TaskIDLogExpiry)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, want.Name, got.Name)
		assert.Equal(t, want.Interval, got.Interval)
		assert.True(t, got.Enabled)
		assert.True(t, want.LastRun.Equal(got.LastRun))
		assert.True(t, want.NextRun.Equal(got.NextRun))
		assert.True(t, want.LastSuccess.Equal(got.LastSuccess))
		assert.Empty(t, got.LastError)
	})

	t.Run("zero times survive", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.SaveTask(ctx, &domain.ScheduledTask{ID: "fresh", Interval: time.Hour, Enabled: true}))

		got, err := store.Task(ctx, "fresh")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.True(t, got.LastRun.IsZero())
		assert.True(t, got.NextRun.IsZero())
		assert.True(t, got.Due(base))
	})

	t.Run("save replaces", func(t *testing.T) {
		store := newStore(t)
		task := &domain.ScheduledTask{ID: "t", Name: "before", Interval: time.Hour, Enabled: true}
		require.NoError(t, store.SaveTask(ctx, task))

		task.Name = "after"
		task.Enabled = false
		task.LastError = "store unavailable"
		require.NoError(t, store.SaveTask(ctx, task))

		got, err := store.Task(ctx, "t")
		require.NoError(t, err)
		assert.Equal(t, "after", got.Name)
		assert.False(t, got.Enabled)
		assert.Equal(t, "store unavailable", got.LastError)

		tasks, err := store.Tasks(ctx)
		require.NoError(t, err)
		assert.Len(t, tasks, 1)
	})

	t.Run("tasks ordered by id", func(t *testing.T) {
		store := newStore(t)
		for _, id := range []string{"c", "a", "b"} {
			require.NoError(t, store.SaveTask(ctx, &domain.ScheduledTask{ID: id, Interval: time.Minute}))
		}

		tasks, err := store.Tasks(ctx)
		require.NoError(t, err)
		require.Len(t, tasks, 3)
		assert.Equal(t, []string{"a", "b", "c"}, []string{tasks[0].ID, tasks[1].ID, tasks[2].ID})
	})

	t.Run("nil input rejected", func(t *testing.T) {
		store := newStore(t)
		assert.ErrorIs(t, store.SaveTask(ctx, nil), domain.ErrInvalidInput)
		assert.ErrorIs(t, store.RecordResult(ctx, nil), domain.ErrInvalidInput)
	})

	t.Run("history newest first", func(t *testing.T) {
		store := newStore(t)
		for i := 0; i < 5; i++ {
			start := base.Add(time.Duration(i) * time.Minute)
			require.NoError(t, store.RecordResult(ctx, &domain.TaskResult{
				TaskID:    domain.TaskIDLogExpiry,
				StartedAt: start,
				EndedAt:   start.Add(time.Second),
				Success:   i != 3,
				Error:     errorFor(i == 3),
				Removed:   i,
			}))
		}
		require.NoError(t, store.RecordResult(ctx, &domain.TaskResult{TaskID: "other", StartedAt: base, EndedAt: base}))

		history, err := store.History(ctx, domain.TaskIDLogExpiry, 2)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, 4, history[0].Removed)
		assert.True(t, history[0].Success)
		assert.Equal(t, 3, history[1].Removed)
		assert.False(t, history[1].Success)
		assert.Equal(t, "sweep failed", history[1].Error)
		assert.Equal(t, time.Second, history[1].Duration())

		all, err := store.History(ctx, domain.TaskIDLogExpiry, 0)
		require.NoError(t, err)
		assert.Len(t, all, 5)
	})

	t.Run("prune keeps newest per task", func(t *testing.T) {
		store := newStore(t)
		for i := 0; i < 6; i++ {
			start := base.Add(time.Duration(i) * time.Minute)
			for _, id := range []string{"a", "b"} {
				require.NoError(t, store.RecordResult(ctx, &domain.TaskResult{
					TaskID: id, StartedAt: start, EndedAt: start, Success: true, Removed: i,
				}))
			}
		}

		require.NoError(t, store.PruneHistory(ctx, 2))

		for _, id := range []string{"a", "b"} {
			history, err := store.History(ctx, id, 0)
			require.NoError(t, err)
			require.Len(t, history, 2, id)
			assert.Equal(t, 5, history[0].Removed)
			assert.Equal(t, 4, history[1].Removed)
		}
	})
}

func errorFor(failed bool) string {
	if failed {
		return "sweep failed"
	}
	return ""
}
