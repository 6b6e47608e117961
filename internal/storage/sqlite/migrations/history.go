package migrations

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/stagegate/stagegate/internal/catalog"
	"github.com/stagegate/stagegate/internal/model"
)

// allMigrations returns the full migration history in ascending version
// order. The history only grows: released versions are frozen forever.
func allMigrations() []Migration {
	return []Migration{
		{Version: 1, Name: "initial schema", Run: migrateInitialSchema},
		{Version: 2, Name: "stage template allowed tools", Run: migrateAllowedTools},
		{Version: 3, Name: "documentation stage", Run: migrateDocumentationStage},
		{Version: 4, Name: "structured code review findings", Run: migrateCodeReviewFindings},
		{Version: 5, Name: "result modes and task splitting stage", Run: migrateResultModes},
		{Version: 6, Name: "pr review fix tracking", Run: migratePRReviewFixes},
	}
}

// allProbes returns the baseline probes in descending version order. Later
// migrations introduce markers absent at earlier stages, so scanning
// newest-first with short-circuit gives the tightest baseline in one pass.
//
// The probes are heuristics: they match on stage names and prompt content
// because stores that predate the ledger carry no version metadata. A user
// who renamed a custom stage to collide with a marker would cause a
// false-positive classification; the idempotent migration bodies are the
// safety net for that case. New migrations must rely solely on the ledger.
func allProbes() []baselineProbe {
	return []baselineProbe{
		{
			Version: 6, Name: "pr review fixes table",
			matches: func(ctx context.Context, db DB) (bool, error) {
				return tableExists(ctx, db, "pr_review_fixes")
			},
		},
		{
			Version: 5, Name: "result mode column",
			matches: func(ctx context.Context, db DB) (bool, error) {
				return columnExists(ctx, db, "stage_templates", "result_mode")
			},
		},
		{
			Version: 4, Name: "findings code review prompt",
			matches: func(ctx context.Context, db DB) (bool, error) {
				var n int
				err := db.QueryRowContext(ctx, `
					SELECT COUNT(*) FROM stage_templates
					WHERE output_format = ? AND instr(prompt_template, ?) > 0
				`, string(model.OutputFormatFindings), catalog.FindingsMarker).Scan(&n)
				return n > 0, err
			},
		},
		{
			Version: 3, Name: "documentation stage",
			matches: func(ctx context.Context, db DB) (bool, error) {
				return templateExists(ctx, db, catalog.StageDocumentation)
			},
		},
		{
			Version: 2, Name: "allowed tools column",
			matches: func(ctx context.Context, db DB) (bool, error) {
				return columnExists(ctx, db, "stage_templates", "allowed_tools")
			},
		},
	}
}

// migrateInitialSchema creates the original project store tables. Every
// statement is guarded so an interrupted run continues cleanly.
func migrateInitialSchema(ctx context.Context, db DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS stage_templates (
			id                       TEXT PRIMARY KEY,
			sort_order               INTEGER NOT NULL,
			name                     TEXT NOT NULL,
			description              TEXT NOT NULL DEFAULT '',
			input_source             TEXT NOT NULL,
			output_format            TEXT NOT NULL,
			output_schema            TEXT NOT NULL DEFAULT '',
			prompt_template          TEXT NOT NULL DEFAULT '',
			commits_changes          INTEGER NOT NULL DEFAULT 0,
			commit_prefix            TEXT NOT NULL DEFAULT '',
			creates_pr               INTEGER NOT NULL DEFAULT 0,
			is_terminal              INTEGER NOT NULL DEFAULT 0,
			triggers_stage_selection INTEGER NOT NULL DEFAULT 0,
			requires_user_input      INTEGER NOT NULL DEFAULT 0,
			optional                 INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id               TEXT PRIMARY KEY,
			parent_task_id   TEXT NOT NULL DEFAULT '',
			title            TEXT NOT NULL,
			description      TEXT NOT NULL DEFAULT '',
			current_stage_id TEXT NOT NULL DEFAULT '',
			status           TEXT NOT NULL,
			context          TEXT NOT NULL DEFAULT '',
			archived         INTEGER NOT NULL DEFAULT 0,
			created_at       INTEGER NOT NULL,
			updated_at       INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS task_stages (
			task_id  TEXT NOT NULL,
			stage_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			PRIMARY KEY (task_id, stage_id)
		)`,
		`CREATE TABLE IF NOT EXISTS stage_executions (
			id            TEXT PRIMARY KEY,
			task_id       TEXT NOT NULL,
			stage_id      TEXT NOT NULL,
			attempt       INTEGER NOT NULL,
			status        TEXT NOT NULL,
			input_prompt  TEXT NOT NULL DEFAULT '',
			raw_output    TEXT NOT NULL DEFAULT '',
			parsed_output TEXT NOT NULL DEFAULT '',
			user_input    TEXT NOT NULL DEFAULT '',
			user_decision TEXT NOT NULL DEFAULT '',
			error_message TEXT NOT NULL DEFAULT '',
			input_tokens  INTEGER NOT NULL DEFAULT 0,
			output_tokens INTEGER NOT NULL DEFAULT 0,
			cost_usd      REAL NOT NULL DEFAULT 0,
			duration_ms   INTEGER NOT NULL DEFAULT 0,
			turns         INTEGER NOT NULL DEFAULT 0,
			created_at    INTEGER NOT NULL,
			started_at    INTEGER,
			finished_at   INTEGER,
			UNIQUE (task_id, stage_id, attempt)
		)`,
		`CREATE TABLE IF NOT EXISTS settings (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("could not create table: %w", err)
		}
	}

	return nil
}

// migrateAllowedTools adds the per-stage agent capability list.
func migrateAllowedTools(ctx context.Context, db DB) error {
	exists, err := columnExists(ctx, db, "stage_templates", "allowed_tools")
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	_, err = db.ExecContext(ctx,
		`ALTER TABLE stage_templates ADD COLUMN allowed_tools TEXT NOT NULL DEFAULT '[]'`)
	return err
}

// migrateDocumentationStage inserts the optional Documentation stage right
// after Code Review, shifting later stages to keep sort orders unique. Fresh
// stores are skipped entirely: seeding gives them the full current catalog.
func migrateDocumentationStage(ctx context.Context, db DB) error {
	seeded, err := anyTemplates(ctx, db)
	if err != nil {
		return err
	}
	if !seeded {
		return nil
	}

	exists, err := templateExists(ctx, db, catalog.StageDocumentation)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	tpl, ok := catalog.Template(catalog.StageDocumentation)
	if !ok {
		return fmt.Errorf("documentation template missing from catalog")
	}

	return insertTemplateAfter(ctx, db, *tpl, catalog.StageCodeReview)
}

// migrateCodeReviewFindings converts the Code Review stage from free text to
// structured findings so the user can partially select what gets fixed. Only
// the fields this migration owns (format and prompt) are touched; user
// customizations to other fields survive. Templates already on the findings
// format are skipped.
func migrateCodeReviewFindings(ctx context.Context, db DB) error {
	tpl, ok := catalog.Template(catalog.StageCodeReview)
	if !ok {
		return fmt.Errorf("code review template missing from catalog")
	}

	_, err := db.ExecContext(ctx, `
		UPDATE stage_templates
		SET output_format = ?, prompt_template = ?
		WHERE name = ? AND output_format != ?
	`,
		string(model.OutputFormatFindings), tpl.PromptTemplate,
		catalog.StageCodeReview, string(model.OutputFormatFindings),
	)
	return err
}

// migrateResultModes adds the result_mode column and inserts the optional
// Task Splitting stage. Review-family stages annotate rather than supersede
// prior output, so they switch to append as part of the column introduction;
// if the column already exists the whole body is a no-op so a user who set a
// review stage back to replace is not overridden on a retried run.
func migrateResultModes(ctx context.Context, db DB) error {
	exists, err := columnExists(ctx, db, "stage_templates", "result_mode")
	if err != nil {
		return err
	}
	if !exists {
		_, err = db.ExecContext(ctx,
			`ALTER TABLE stage_templates ADD COLUMN result_mode TEXT NOT NULL DEFAULT 'replace'`)
		if err != nil {
			return err
		}

		_, err = db.ExecContext(ctx, `
			UPDATE stage_templates SET result_mode = ?
			WHERE name IN (?, ?, ?)
		`,
			string(model.ResultModeAppend),
			catalog.StageCodeReview, catalog.StageDocumentation, catalog.StagePRReview,
		)
		if err != nil {
			return err
		}
	}

	seeded, err := anyTemplates(ctx, db)
	if err != nil {
		return err
	}
	if !seeded {
		return nil
	}

	splitExists, err := templateExists(ctx, db, catalog.StageTaskSplitting)
	if err != nil {
		return err
	}
	if splitExists {
		return nil
	}

	tpl, ok := catalog.Template(catalog.StageTaskSplitting)
	if !ok {
		return fmt.Errorf("task splitting template missing from catalog")
	}

	return insertTemplateAfter(ctx, db, *tpl, catalog.StageDocumentation)
}

// migratePRReviewFixes creates the per-comment fix tracking table and inserts
// the optional PR Review stage before Merge.
func migratePRReviewFixes(ctx context.Context, db DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS pr_review_fixes (
			id           TEXT PRIMARY KEY,
			task_id      TEXT NOT NULL,
			execution_id TEXT NOT NULL,
			comment_id   TEXT NOT NULL,
			description  TEXT NOT NULL DEFAULT '',
			selected     INTEGER NOT NULL DEFAULT 0,
			fixed        INTEGER NOT NULL DEFAULT 0,
			created_at   INTEGER NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("could not create pr_review_fixes: %w", err)
	}

	seeded, err := anyTemplates(ctx, db)
	if err != nil {
		return err
	}
	if !seeded {
		return nil
	}

	exists, err := templateExists(ctx, db, catalog.StagePRReview)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	tpl, ok := catalog.Template(catalog.StagePRReview)
	if !ok {
		return fmt.Errorf("pr review template missing from catalog")
	}

	return insertTemplateAfter(ctx, db, *tpl, catalog.StagePRPreparation)
}

// insertTemplateAfter inserts a catalog template right after the named
// anchor stage, shifting every later stage by one to keep the ordering free
// of duplicates. When the anchor is missing (user-customized pipelines) the
// template goes to the end.
func insertTemplateAfter(ctx context.Context, db DB, tpl model.StageTemplate, anchor string) error {
	pos, found, err := templateSortOrder(ctx, db, anchor)
	if err != nil {
		return err
	}

	var sortOrder int
	if found {
		sortOrder = pos + 1
		_, err = db.ExecContext(ctx,
			`UPDATE stage_templates SET sort_order = sort_order + 1 WHERE sort_order >= ?`, sortOrder)
		if err != nil {
			return fmt.Errorf("could not shift stage ordering: %w", err)
		}
	} else {
		maxPos, err := maxSortOrder(ctx, db)
		if err != nil {
			return err
		}
		sortOrder = maxPos + 1
	}

	resultMode := string(tpl.ResultMode)
	hasResultMode, err := columnExists(ctx, db, "stage_templates", "result_mode")
	if err != nil {
		return err
	}

	cols := `id, sort_order, name, description, input_source, output_format,
		output_schema, prompt_template, allowed_tools, commits_changes,
		commit_prefix, creates_pr, is_terminal, triggers_stage_selection,
		requires_user_input, optional`
	placeholders := `?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?`
	args := []any{
		newID(), sortOrder, tpl.Name, tpl.Description,
		string(tpl.InputSource), string(tpl.OutputFormat),
		tpl.OutputSchema, tpl.PromptTemplate, marshalTools(tpl.AllowedTools),
		tpl.CommitsChanges, tpl.CommitPrefix, tpl.CreatesPR, tpl.IsTerminal,
		tpl.TriggersStageSelection, tpl.RequiresUserInput, tpl.Optional,
	}
	if hasResultMode {
		cols += `, result_mode`
		placeholders += `, ?`
		args = append(args, resultMode)
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO stage_templates (`+cols+`) VALUES (`+placeholders+`)`, args...)
	if err != nil {
		return fmt.Errorf("could not insert template %q: %w", tpl.Name, err)
	}

	return nil
}

func tableExists(ctx context.Context, db DB, name string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&n)
	return n > 0, err
}

func columnExists(ctx context.Context, db DB, table, column string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, table, column).Scan(&n)
	return n > 0, err
}

func anyTemplates(ctx context.Context, db DB) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM stage_templates`).Scan(&n)
	return n > 0, err
}

func templateExists(ctx context.Context, db DB, name string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM stage_templates WHERE name = ?`, name).Scan(&n)
	return n > 0, err
}

func templateSortOrder(ctx context.Context, db DB, name string) (int, bool, error) {
	var pos int
	err := db.QueryRowContext(ctx,
		`SELECT sort_order FROM stage_templates WHERE name = ?`, name).Scan(&pos)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return pos, true, nil
}

func maxSortOrder(ctx context.Context, db DB) (int, error) {
	var pos int
	err := db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sort_order), -1) FROM stage_templates`).Scan(&pos)
	return pos, err
}

func newID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

func marshalTools(tools []string) string {
	if len(tools) == 0 {
		return "[]"
	}
	b, err := json.Marshal(tools)
	if err != nil {
		return "[]"
	}
	return string(b)
}
