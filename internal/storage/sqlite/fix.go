package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/stagegate/stagegate/internal/model"
)

// CreatePRReviewFixes stores the fix tracking rows of a PR review execution.
func (s *Store) CreatePRReviewFixes(ctx context.Context, fixes []model.PRReviewFix) error {
	if len(fixes) == 0 {
		return nil
	}

	err := s.withConn(ctx, func(db *sql.DB) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		for _, f := range fixes {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO pr_review_fixes (id, task_id, execution_id, comment_id, description, selected, fixed, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`, f.ID, f.TaskID, f.ExecutionID, f.CommentID, f.Description, f.Selected, f.Fixed, f.CreatedAt.Unix())
			if err != nil {
				return err
			}
		}

		return tx.Commit()
	})
	if err != nil {
		return fmt.Errorf("could not insert pr review fixes: %w", err)
	}

	s.logger.Debugf("Created %d pr review fixes", len(fixes))
	return nil
}

// ListPRReviewFixes returns the fix tracking rows of a task.
func (s *Store) ListPRReviewFixes(ctx context.Context, taskID string) ([]model.PRReviewFix, error) {
	query := `
		SELECT id, task_id, execution_id, comment_id, description, selected, fixed, created_at
		FROM pr_review_fixes
		WHERE task_id = ?
		ORDER BY created_at ASC, id ASC
	`

	var fixes []model.PRReviewFix
	err := s.withConn(ctx, func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, query, taskID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var f model.PRReviewFix
			var createdAt int64
			err := rows.Scan(&f.ID, &f.TaskID, &f.ExecutionID, &f.CommentID, &f.Description, &f.Selected, &f.Fixed, &createdAt)
			if err != nil {
				return err
			}
			f.CreatedAt = timeFromUnix(createdAt)
			fixes = append(fixes, f)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("could not query pr review fixes: %w", err)
	}

	return fixes, nil
}

// UpdatePRReviewFix updates the selected/fixed state of one fix row.
func (s *Store) UpdatePRReviewFix(ctx context.Context, f model.PRReviewFix) error {
	var rowsAffected int64
	err := s.withConn(ctx, func(db *sql.DB) error {
		result, err := db.ExecContext(ctx, `
			UPDATE pr_review_fixes SET selected = ?, fixed = ? WHERE id = ?
		`, f.Selected, f.Fixed, f.ID)
		if err != nil {
			return err
		}
		rowsAffected, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("could not update pr review fix: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("pr review fix %s: %w", f.ID, model.ErrNotFound)
	}

	return nil
}
