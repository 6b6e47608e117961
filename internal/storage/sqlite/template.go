package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/stagegate/stagegate/internal/model"
)

const templateColumns = `
	id, sort_order, name, description, input_source, output_format,
	output_schema, prompt_template, allowed_tools, commits_changes,
	commit_prefix, creates_pr, is_terminal, triggers_stage_selection,
	requires_user_input, optional, result_mode
`

// CreateStageTemplate creates a new stage template.
func (s *Store) CreateStageTemplate(ctx context.Context, t model.StageTemplate) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid template: %w", err)
	}

	tools, err := json.Marshal(t.AllowedTools)
	if err != nil {
		return fmt.Errorf("could not marshal allowed tools: %w", err)
	}
	if t.AllowedTools == nil {
		tools = []byte("[]")
	}

	query := `
		INSERT INTO stage_templates (` + templateColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err = s.withConn(ctx, func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, query,
			t.ID, t.SortOrder, t.Name, t.Description,
			string(t.InputSource), string(t.OutputFormat),
			t.OutputSchema, t.PromptTemplate, string(tools),
			t.CommitsChanges, t.CommitPrefix, t.CreatesPR, t.IsTerminal,
			t.TriggersStageSelection, t.RequiresUserInput, t.Optional,
			string(t.ResultMode),
		)
		return err
	})
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: stage_templates.") {
			return fmt.Errorf("template already exists: %w", model.ErrAlreadyExists)
		}
		return fmt.Errorf("could not insert template: %w", err)
	}

	s.logger.Debugf("Created stage template: %s (%s)", t.Name, t.ID)
	return nil
}

// GetStageTemplate retrieves a stage template by ID.
func (s *Store) GetStageTemplate(ctx context.Context, id string) (*model.StageTemplate, error) {
	return s.getTemplate(ctx, `WHERE id = ?`, id)
}

// GetStageTemplateByName retrieves a stage template by name.
func (s *Store) GetStageTemplateByName(ctx context.Context, name string) (*model.StageTemplate, error) {
	return s.getTemplate(ctx, `WHERE name = ?`, name)
}

func (s *Store) getTemplate(ctx context.Context, where string, arg any) (*model.StageTemplate, error) {
	query := `SELECT ` + templateColumns + ` FROM stage_templates ` + where

	var tpl model.StageTemplate
	err := s.withConn(ctx, func(db *sql.DB) error {
		return scanTemplate(db.QueryRowContext(ctx, query, arg), &tpl)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("template %v: %w", arg, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not query template: %w", err)
	}

	return &tpl, nil
}

// ListStageTemplates returns every template ordered by ascending sort order.
func (s *Store) ListStageTemplates(ctx context.Context) ([]model.StageTemplate, error) {
	query := `SELECT ` + templateColumns + ` FROM stage_templates ORDER BY sort_order ASC`

	var templates []model.StageTemplate
	err := s.withConn(ctx, func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var tpl model.StageTemplate
			if err := scanTemplate(rows, &tpl); err != nil {
				return err
			}
			templates = append(templates, tpl)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("could not query templates: %w", err)
	}

	return templates, nil
}

// UpdateStageTemplate updates an existing stage template.
func (s *Store) UpdateStageTemplate(ctx context.Context, t model.StageTemplate) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid template: %w", err)
	}

	tools, err := json.Marshal(t.AllowedTools)
	if err != nil {
		return fmt.Errorf("could not marshal allowed tools: %w", err)
	}
	if t.AllowedTools == nil {
		tools = []byte("[]")
	}

	query := `
		UPDATE stage_templates
		SET
			sort_order = ?, name = ?, description = ?, input_source = ?,
			output_format = ?, output_schema = ?, prompt_template = ?,
			allowed_tools = ?, commits_changes = ?, commit_prefix = ?,
			creates_pr = ?, is_terminal = ?, triggers_stage_selection = ?,
			requires_user_input = ?, optional = ?, result_mode = ?
		WHERE id = ?
	`

	var rowsAffected int64
	err = s.withConn(ctx, func(db *sql.DB) error {
		result, err := db.ExecContext(ctx, query,
			t.SortOrder, t.Name, t.Description, string(t.InputSource),
			string(t.OutputFormat), t.OutputSchema, t.PromptTemplate,
			string(tools), t.CommitsChanges, t.CommitPrefix,
			t.CreatesPR, t.IsTerminal, t.TriggersStageSelection,
			t.RequiresUserInput, t.Optional, string(t.ResultMode),
			t.ID,
		)
		if err != nil {
			return err
		}
		rowsAffected, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("could not update template: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("template %s: %w", t.ID, model.ErrNotFound)
	}

	s.logger.Debugf("Updated stage template: %s", t.ID)
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTemplate(sc scanner, t *model.StageTemplate) error {
	var inputSource, outputFormat, resultMode, tools string

	err := sc.Scan(
		&t.ID, &t.SortOrder, &t.Name, &t.Description,
		&inputSource, &outputFormat,
		&t.OutputSchema, &t.PromptTemplate, &tools,
		&t.CommitsChanges, &t.CommitPrefix, &t.CreatesPR, &t.IsTerminal,
		&t.TriggersStageSelection, &t.RequiresUserInput, &t.Optional,
		&resultMode,
	)
	if err != nil {
		return err
	}

	t.InputSource = model.InputSource(inputSource)
	t.OutputFormat = model.OutputFormat(outputFormat)
	t.ResultMode = model.ResultMode(resultMode)

	if tools != "" && tools != "[]" {
		if err := json.Unmarshal([]byte(tools), &t.AllowedTools); err != nil {
			return fmt.Errorf("could not unmarshal allowed tools: %w", err)
		}
	}

	return nil
}
