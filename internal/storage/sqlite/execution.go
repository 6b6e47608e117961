package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stagegate/stagegate/internal/model"
)

const executionColumns = `
	id, task_id, stage_id, attempt, status, input_prompt, raw_output,
	parsed_output, user_input, user_decision, error_message, input_tokens,
	output_tokens, cost_usd, duration_ms, turns, created_at, started_at,
	finished_at
`

// CreateExecution creates a new stage execution attempt.
func (s *Store) CreateExecution(ctx context.Context, e model.StageExecution) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("invalid execution: %w", err)
	}

	parsed, err := marshalParsedOutput(e.ParsedOutput)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO stage_executions (` + executionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err = s.withConn(ctx, func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, query,
			e.ID, e.TaskID, e.StageID, e.Attempt, string(e.Status),
			e.InputPrompt, e.RawOutput, parsed,
			e.UserInput, e.UserDecision, e.ErrorMessage,
			e.Telemetry.InputTokens, e.Telemetry.OutputTokens,
			e.Telemetry.CostUSD, e.Telemetry.DurationMS, e.Telemetry.Turns,
			e.CreatedAt.Unix(), nullableUnix(e.StartedAt), nullableUnix(e.FinishedAt),
		)
		return err
	})
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: stage_executions.") {
			return fmt.Errorf("execution attempt already exists: %w", model.ErrAlreadyExists)
		}
		return fmt.Errorf("could not insert execution: %w", err)
	}

	s.logger.Debugf("Created execution: task=%s stage=%s attempt=%d", e.TaskID, e.StageID, e.Attempt)
	return nil
}

// GetExecution retrieves a stage execution by ID.
func (s *Store) GetExecution(ctx context.Context, id string) (*model.StageExecution, error) {
	query := `SELECT ` + executionColumns + ` FROM stage_executions WHERE id = ?`

	var exec model.StageExecution
	err := s.withConn(ctx, func(db *sql.DB) error {
		return scanExecution(db.QueryRowContext(ctx, query, id), &exec)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("execution %s: %w", id, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not query execution: %w", err)
	}

	return &exec, nil
}

// UpdateExecution updates an existing stage execution.
func (s *Store) UpdateExecution(ctx context.Context, e model.StageExecution) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("invalid execution: %w", err)
	}

	parsed, err := marshalParsedOutput(e.ParsedOutput)
	if err != nil {
		return err
	}

	query := `
		UPDATE stage_executions
		SET
			status = ?, input_prompt = ?, raw_output = ?, parsed_output = ?,
			user_input = ?, user_decision = ?, error_message = ?,
			input_tokens = ?, output_tokens = ?, cost_usd = ?,
			duration_ms = ?, turns = ?, started_at = ?, finished_at = ?
		WHERE id = ?
	`

	var rowsAffected int64
	err = s.withConn(ctx, func(db *sql.DB) error {
		result, err := db.ExecContext(ctx, query,
			string(e.Status), e.InputPrompt, e.RawOutput, parsed,
			e.UserInput, e.UserDecision, e.ErrorMessage,
			e.Telemetry.InputTokens, e.Telemetry.OutputTokens,
			e.Telemetry.CostUSD, e.Telemetry.DurationMS, e.Telemetry.Turns,
			nullableUnix(e.StartedAt), nullableUnix(e.FinishedAt),
			e.ID,
		)
		if err != nil {
			return err
		}
		rowsAffected, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("could not update execution: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("execution %s: %w", e.ID, model.ErrNotFound)
	}

	s.logger.Debugf("Updated execution: %s (%s)", e.ID, e.Status)
	return nil
}

// ListExecutions returns every execution of a task, oldest attempt first.
func (s *Store) ListExecutions(ctx context.Context, taskID string) ([]model.StageExecution, error) {
	query := `
		SELECT ` + executionColumns + ` FROM stage_executions
		WHERE task_id = ?
		ORDER BY created_at ASC, attempt ASC
	`

	var execs []model.StageExecution
	err := s.withConn(ctx, func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, query, taskID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var exec model.StageExecution
			if err := scanExecution(rows, &exec); err != nil {
				return err
			}
			execs = append(execs, exec)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("could not query executions: %w", err)
	}

	return execs, nil
}

// LatestExecution returns the highest-attempt execution for a (task, stage) pair.
func (s *Store) LatestExecution(ctx context.Context, taskID, stageID string) (*model.StageExecution, error) {
	query := `
		SELECT ` + executionColumns + ` FROM stage_executions
		WHERE task_id = ? AND stage_id = ?
		ORDER BY attempt DESC
		LIMIT 1
	`

	var exec model.StageExecution
	err := s.withConn(ctx, func(db *sql.DB) error {
		return scanExecution(db.QueryRowContext(ctx, query, taskID, stageID), &exec)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("execution for task %s stage %s: %w", taskID, stageID, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not query execution: %w", err)
	}

	return &exec, nil
}

func scanExecution(sc scanner, e *model.StageExecution) error {
	var status, parsed string
	var createdAt int64
	var startedAt, finishedAt sql.NullInt64

	err := sc.Scan(
		&e.ID, &e.TaskID, &e.StageID, &e.Attempt, &status,
		&e.InputPrompt, &e.RawOutput, &parsed,
		&e.UserInput, &e.UserDecision, &e.ErrorMessage,
		&e.Telemetry.InputTokens, &e.Telemetry.OutputTokens,
		&e.Telemetry.CostUSD, &e.Telemetry.DurationMS, &e.Telemetry.Turns,
		&createdAt, &startedAt, &finishedAt,
	)
	if err != nil {
		return err
	}

	e.Status = model.ExecutionStatus(status)
	e.CreatedAt = timeFromUnix(createdAt)
	if startedAt.Valid {
		t := timeFromUnix(startedAt.Int64)
		e.StartedAt = &t
	}
	if finishedAt.Valid {
		t := timeFromUnix(finishedAt.Int64)
		e.FinishedAt = &t
	}

	if parsed != "" {
		var out model.ParsedOutput
		if err := json.Unmarshal([]byte(parsed), &out); err != nil {
			return fmt.Errorf("could not unmarshal parsed output: %w", err)
		}
		e.ParsedOutput = &out
	}

	return nil
}

func marshalParsedOutput(p *model.ParsedOutput) (string, error) {
	if p == nil {
		return "", nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("could not marshal parsed output: %w", err)
	}
	return string(b), nil
}

func nullableUnix(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	u := t.Unix()
	return &u
}
