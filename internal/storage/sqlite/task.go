package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/stagegate/stagegate/internal/model"
)

const taskColumns = `
	id, parent_task_id, title, description, current_stage_id, status,
	context, archived, created_at, updated_at
`

// CreateTask creates a new task.
func (s *Store) CreateTask(ctx context.Context, t model.Task) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}

	query := `
		INSERT INTO tasks (` + taskColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := s.withConn(ctx, func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, query,
			t.ID, t.ParentTaskID, t.Title, t.Description,
			t.CurrentStageID, string(t.Status), t.Context, t.Archived,
			t.CreatedAt.Unix(), t.UpdatedAt.Unix(),
		)
		return err
	})
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: tasks.") {
			return fmt.Errorf("task already exists: %w", model.ErrAlreadyExists)
		}
		return fmt.Errorf("could not insert task: %w", err)
	}

	s.logger.Debugf("Created task: %s (%s)", t.Title, t.ID)
	return nil
}

// GetTask retrieves a task by ID.
func (s *Store) GetTask(ctx context.Context, id string) (*model.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = ?`

	var task model.Task
	err := s.withConn(ctx, func(db *sql.DB) error {
		return scanTask(db.QueryRowContext(ctx, query, id), &task)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("task %s: %w", id, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not query task: %w", err)
	}

	return &task, nil
}

// ListTasks returns tasks ordered by creation, newest first.
func (s *Store) ListTasks(ctx context.Context, includeArchived bool) ([]model.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks`
	if !includeArchived {
		query += ` WHERE archived = 0`
	}
	query += ` ORDER BY created_at DESC`

	var tasks []model.Task
	err := s.withConn(ctx, func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var task model.Task
			if err := scanTask(rows, &task); err != nil {
				return err
			}
			tasks = append(tasks, task)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("could not query tasks: %w", err)
	}

	return tasks, nil
}

// UpdateTask updates an existing task.
func (s *Store) UpdateTask(ctx context.Context, t model.Task) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}

	query := `
		UPDATE tasks
		SET
			parent_task_id = ?, title = ?, description = ?,
			current_stage_id = ?, status = ?, context = ?, archived = ?,
			updated_at = ?
		WHERE id = ?
	`

	var rowsAffected int64
	err := s.withConn(ctx, func(db *sql.DB) error {
		result, err := db.ExecContext(ctx, query,
			t.ParentTaskID, t.Title, t.Description,
			t.CurrentStageID, string(t.Status), t.Context, t.Archived,
			t.UpdatedAt.Unix(),
			t.ID,
		)
		if err != nil {
			return err
		}
		rowsAffected, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("could not update task: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("task %s: %w", t.ID, model.ErrNotFound)
	}

	s.logger.Debugf("Updated task: %s", t.ID)
	return nil
}

// SetTaskStages replaces the task's concrete ordered stage list.
func (s *Store) SetTaskStages(ctx context.Context, taskID string, stageIDs []string) error {
	err := s.withConn(ctx, func(db *sql.DB) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.ExecContext(ctx, `DELETE FROM task_stages WHERE task_id = ?`, taskID); err != nil {
			return err
		}
		for i, stageID := range stageIDs {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO task_stages (task_id, stage_id, position) VALUES (?, ?, ?)`,
				taskID, stageID, i,
			)
			if err != nil {
				return err
			}
		}

		return tx.Commit()
	})
	if err != nil {
		return fmt.Errorf("could not set task stages: %w", err)
	}

	s.logger.Debugf("Set %d stages for task %s", len(stageIDs), taskID)
	return nil
}

// ListTaskStages returns the task's concrete stage list in order.
func (s *Store) ListTaskStages(ctx context.Context, taskID string) ([]model.TaskStage, error) {
	query := `
		SELECT task_id, stage_id, position FROM task_stages
		WHERE task_id = ?
		ORDER BY position ASC
	`

	var stages []model.TaskStage
	err := s.withConn(ctx, func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, query, taskID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var ts model.TaskStage
			if err := rows.Scan(&ts.TaskID, &ts.StageID, &ts.Position); err != nil {
				return err
			}
			stages = append(stages, ts)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("could not query task stages: %w", err)
	}

	return stages, nil
}

func scanTask(sc scanner, t *model.Task) error {
	var status string
	var createdAt, updatedAt int64

	err := sc.Scan(
		&t.ID, &t.ParentTaskID, &t.Title, &t.Description,
		&t.CurrentStageID, &status, &t.Context, &t.Archived,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return err
	}

	t.Status = model.TaskStatus(status)
	t.CreatedAt = timeFromUnix(createdAt)
	t.UpdatedAt = timeFromUnix(updatedAt)

	return nil
}
