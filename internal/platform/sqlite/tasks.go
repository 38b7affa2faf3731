package sqlite

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/phrazzld/arcana/internal/task"
)

var _ task.TaskStore = (*Store)(nil)

// SaveTask persists a new sync task in the pending state.
func (s *Store) SaveTask(ctx context.Context, t task.Task) error {
	now := toMillis(s.now())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_tasks (id, type, payload, status, attempts, last_error, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, '', ?, ?)`,
		t.ID().String(), t.Type(), t.Payload(), string(task.TaskStatusPending), now, now)
	if err != nil {
		return fmt.Errorf("save task: %w", err)
	}
	return nil
}

// UpdateTaskStatus records the outcome of a task attempt.
func (s *Store) UpdateTaskStatus(ctx context.Context, id uuid.UUID, status task.TaskStatus, attempts int, errorMsg string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sync_tasks SET status = ?, attempts = ?, last_error = ?, updated_at = ?
		WHERE id = ?`,
		string(status), attempts, errorMsg, toMillis(s.now()), id.String())
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("update task %s: %w", id, ErrNotCached)
	}
	return nil
}

// GetUnfinishedTasks returns pending and interrupted tasks, oldest first.
func (s *Store) GetUnfinishedTasks(ctx context.Context) ([]task.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, payload, status, attempts, last_error, created_at, updated_at
		FROM sync_tasks
		WHERE status IN (?, ?)
		ORDER BY created_at, id`,
		string(task.TaskStatusPending), string(task.TaskStatusProcessing))
	if err != nil {
		return nil, fmt.Errorf("list unfinished tasks: %w", err)
	}
	defer rows.Close()

	var out []task.Record
	for rows.Next() {
		var (
			rec              task.Record
			id, status       string
			created, updated int64
		)
		if err := rows.Scan(&id, &rec.Type, &rec.Payload, &status, &rec.Attempts, &rec.LastError, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		rec.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("parse task id %q: %w", id, err)
		}
		rec.Status = task.TaskStatus(status)
		rec.CreatedAt = fromMillis(created)
		rec.UpdatedAt = fromMillis(updated)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// FailedTasks returns tasks the runner gave up on. The sync command reports
// them so the user can see which balance updates never reached the backend.
func (s *Store) FailedTasks(ctx context.Context) ([]task.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, payload, attempts, last_error, created_at, updated_at
		FROM sync_tasks WHERE status = ? ORDER BY created_at, id`,
		string(task.TaskStatusFailed))
	if err != nil {
		return nil, fmt.Errorf("list failed tasks: %w", err)
	}
	defer rows.Close()

	var out []task.Record
	for rows.Next() {
		var (
			rec              task.Record
			id               string
			created, updated int64
		)
		if err := rows.Scan(&id, &rec.Type, &rec.Payload, &rec.Attempts, &rec.LastError, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		if rec.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse task id %q: %w", id, err)
		}
		rec.Status = task.TaskStatusFailed
		rec.CreatedAt = fromMillis(created)
		rec.UpdatedAt = fromMillis(updated)
		out = append(out, rec)
	}
	return out, rows.Err()
}
