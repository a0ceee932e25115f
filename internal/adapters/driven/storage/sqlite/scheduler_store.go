package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/chatlogs/internal/core/domain"
	"github.com/custodia-labs/chatlogs/internal/core/ports/driven"
)

var _ driven.SchedulerStore = (*schedulerStore)(nil)

// schedulerStore implements driven.SchedulerStore on the scheduled_tasks
// and task_runs tables.
type schedulerStore struct {
	store *Store
}

const taskColumns = `id, name, interval_ns, enabled, last_run, next_run, last_success, last_error`

func (s *schedulerStore) Task(ctx context.Context, taskID string) (*domain.ScheduledTask, error) {
	row := s.store.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM scheduled_tasks WHERE id = ?`, taskID)

	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return task, err
}

func (s *schedulerStore) Tasks(ctx context.Context) ([]domain.ScheduledTask, error) {
	rows, err := s.store.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM scheduled_tasks ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	defer rows.Close()

	var tasks []domain.ScheduledTask
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tasks: %w", err)
	}
	return tasks, nil
}

func (s *schedulerStore) SaveTask(ctx context.Context, task *domain.ScheduledTask) error {
	if task == nil {
		return domain.ErrInvalidInput
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO scheduled_tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			interval_ns = excluded.interval_ns,
			enabled = excluded.enabled,
			last_run = excluded.last_run,
			next_run = excluded.next_run,
			last_success = excluded.last_success,
			last_error = excluded.last_error
	`, task.ID, task.Name, int64(task.Interval), sqlBool(task.Enabled),
		instant(task.LastRun), instant(task.NextRun), instant(task.LastSuccess),
		nullIfEmpty(task.LastError))
	if err != nil {
		return fmt.Errorf("saving task %s: %w", task.ID, err)
	}
	return nil
}

func (s *schedulerStore) RecordResult(ctx context.Context, result *domain.TaskResult) error {
	if result == nil {
		return domain.ErrInvalidInput
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO task_runs (task_id, started_at, ended_at, success, error, removed)
		VALUES (?, ?, ?, ?, ?, ?)
	`, result.TaskID, result.StartedAt.UTC().UnixNano(), result.EndedAt.UTC().UnixNano(),
		sqlBool(result.Success), nullIfEmpty(result.Error), result.Removed)
	if err != nil {
		return fmt.Errorf("recording run of %s: %w", result.TaskID, err)
	}
	return nil
}

func (s *schedulerStore) History(ctx context.Context, taskID string, limit int) ([]domain.TaskResult, error) {
	if limit <= 0 {
		limit = -1 // no limit in SQLite
	}

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT task_id, started_at, ended_at, success, error, removed
		FROM task_runs
		WHERE task_id = ?
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, taskID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying history of %s: %w", taskID, err)
	}
	defer rows.Close()

	var results []domain.TaskResult
	for rows.Next() {
		var r domain.TaskResult
		var started, ended int64
		var errMsg sql.NullString
		if err := rows.Scan(&r.TaskID, &started, &ended, &r.Success, &errMsg, &r.Removed); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.StartedAt = time.Unix(0, started).UTC()
		r.EndedAt = time.Unix(0, ended).UTC()
		r.Error = errMsg.String
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating history: %w", err)
	}
	return results, nil
}

func (s *schedulerStore) PruneHistory(ctx context.Context, keep int) error {
	_, err := s.store.db.ExecContext(ctx, `
		DELETE FROM task_runs
		WHERE id IN (
			SELECT id FROM (
				SELECT id, ROW_NUMBER() OVER (
					PARTITION BY task_id ORDER BY started_at DESC, id DESC
				) AS rn
				FROM task_runs
			) WHERE rn > ?
		)
	`, keep)
	if err != nil {
		return fmt.Errorf("pruning history: %w", err)
	}
	return nil
}

// scanTask reads one scheduled_tasks row selected with taskColumns.
func scanTask(row rowScanner) (*domain.ScheduledTask, error) {
	var task domain.ScheduledTask
	var interval int64
	var lastRun, nextRun, lastSuccess sql.NullInt64
	var lastError sql.NullString

	if err := row.Scan(&task.ID, &task.Name, &interval, &task.Enabled,
		&lastRun, &nextRun, &lastSuccess, &lastError); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning task: %w", err)
	}

	task.Interval = time.Duration(interval)
	task.LastRun = fromInstant(lastRun)
	task.NextRun = fromInstant(nextRun)
	task.LastSuccess = fromInstant(lastSuccess)
	task.LastError = lastError.String
	return &task, nil
}

// instant stores a zero time as NULL, anything else as UTC nanoseconds.
func instant(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().UnixNano()
}

// fromInstant is the inverse of instant.
func fromInstant(n sql.NullInt64) time.Time {
	if !n.Valid {
		return time.Time{}
	}
	return time.Unix(0, n.Int64).UTC()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func sqlBool(b bool) int {
	if b {
		return 1
	}
	return 0
}
