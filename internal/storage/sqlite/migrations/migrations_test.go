package migrations_test

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"

	"github.com/stagegate/stagegate/internal/catalog"
	"github.com/stagegate/stagegate/internal/log"
	"github.com/stagegate/stagegate/internal/storage/sqlite/migrations"
)

func getTestDB(t *testing.T) *sql.DB {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "stagegate-test-*.db")
	require.NoError(t, err)
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpFile.Name()) })

	db, err := sql.Open("sqlite", tmpFile.Name())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return db
}

func appliedVersions(t *testing.T, db *sql.DB) []int {
	t.Helper()

	rows, err := db.Query(`SELECT version FROM _migrations ORDER BY version`)
	require.NoError(t, err)
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		require.NoError(t, rows.Scan(&v))
		versions = append(versions, v)
	}
	require.NoError(t, rows.Err())

	return versions
}

func columnExists(t *testing.T, db *sql.DB, table, column string) bool {
	t.Helper()

	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, table, column).Scan(&n)
	require.NoError(t, err)
	return n > 0
}

func tableExists(t *testing.T, db *sql.DB, table string) bool {
	t.Helper()

	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&n)
	require.NoError(t, err)
	return n > 0
}

// setupLegacyStore builds a project store the way the application created it
// before the migration ledger existed: the original schema plus the original
// five-stage pipeline, no ledger table.
func setupLegacyStore(t *testing.T, db *sql.DB) {
	t.Helper()

	_, err := db.Exec(`
		CREATE TABLE stage_templates (
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
		)
	`)
	require.NoError(t, err)

	for i, name := range []string{"Research", "Planning", "Implementation", "Code Review", "Merge"} {
		format := "text"
		if name == "Research" {
			format = "research"
		}
		_, err := db.Exec(`
			INSERT INTO stage_templates (id, sort_order, name, input_source, output_format, prompt_template)
			VALUES (?, ?, ?, 'previous_stage', ?, 'legacy prompt')
		`, "legacy-"+name, i, name, format)
		require.NoError(t, err)
	}
}

func TestMigratorFreshStore(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	db := getTestDB(t)
	m, err := migrations.NewMigrator(db, log.Noop)
	require.NoError(err)

	err = m.Run(context.Background())
	require.NoError(err)

	// A fresh, empty store never classifies as baseline > 0: every body runs.
	assert.Equal([]int{1, 2, 3, 4, 5, 6}, appliedVersions(t, db))
	assert.True(tableExists(t, db, "stage_templates"))
	assert.True(tableExists(t, db, "tasks"))
	assert.True(tableExists(t, db, "task_stages"))
	assert.True(tableExists(t, db, "stage_executions"))
	assert.True(tableExists(t, db, "settings"))
	assert.True(tableExists(t, db, "pr_review_fixes"))
	assert.True(columnExists(t, db, "stage_templates", "allowed_tools"))
	assert.True(columnExists(t, db, "stage_templates", "result_mode"))

	// Template mutations skip fresh stores, seeding owns them.
	var n int
	require.NoError(db.QueryRow(`SELECT COUNT(*) FROM stage_templates`).Scan(&n))
	assert.Equal(0, n)
}

func TestMigratorIsIdempotent(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	db := getTestDB(t)
	m, err := migrations.NewMigrator(db, log.Noop)
	require.NoError(err)

	require.NoError(m.Run(context.Background()))
	firstVersions := appliedVersions(t, db)

	var firstAppliedAt []int64
	rows, err := db.Query(`SELECT applied_at FROM _migrations ORDER BY version`)
	require.NoError(err)
	for rows.Next() {
		var ts int64
		require.NoError(rows.Scan(&ts))
		firstAppliedAt = append(firstAppliedAt, ts)
	}
	rows.Close()

	// Second run is a no-op: no new ledger rows, no rewritten timestamps.
	require.NoError(m.Run(context.Background()))
	assert.Equal(firstVersions, appliedVersions(t, db))

	var secondAppliedAt []int64
	rows, err = db.Query(`SELECT applied_at FROM _migrations ORDER BY version`)
	require.NoError(err)
	for rows.Next() {
		var ts int64
		require.NoError(rows.Scan(&ts))
		secondAppliedAt = append(secondAppliedAt, ts)
	}
	rows.Close()
	assert.Equal(firstAppliedAt, secondAppliedAt)
}

func TestMigratorBaselineDetection(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	db := getTestDB(t)
	setupLegacyStore(t, db)

	// Mark the store as already carrying the Documentation stage: baseline
	// must classify at the version that introduced it.
	_, err := db.Exec(`
		INSERT INTO stage_templates (id, sort_order, name, input_source, output_format, prompt_template, optional)
		VALUES ('legacy-doc', 5, ?, 'previous_stage', 'text', 'legacy doc prompt', 1)
	`, catalog.StageDocumentation)
	require.NoError(err)

	m, err := migrations.NewMigrator(db, log.Noop)
	require.NoError(err)
	require.NoError(m.Run(context.Background()))

	// Every version is in the ledger, including the baselined ones.
	assert.Equal([]int{1, 2, 3, 4, 5, 6}, appliedVersions(t, db))

	// Versions at or below the baseline were recorded without executing
	// their bodies: the legacy store never gained the allowed_tools column
	// (introduced below the baseline) and no duplicate Documentation stage
	// was inserted.
	assert.False(columnExists(t, db, "stage_templates", "allowed_tools"))
	var docs int
	require.NoError(db.QueryRow(`SELECT COUNT(*) FROM stage_templates WHERE name = ?`, catalog.StageDocumentation).Scan(&docs))
	assert.Equal(1, docs)

	// Migrations above the baseline ran normally.
	assert.True(columnExists(t, db, "stage_templates", "result_mode"))
	assert.True(tableExists(t, db, "pr_review_fixes"))

	var reviewFormat string
	require.NoError(db.QueryRow(`SELECT output_format FROM stage_templates WHERE name = ?`, catalog.StageCodeReview).Scan(&reviewFormat))
	assert.Equal("findings", reviewFormat)
}

func TestMigratorBaselineFindingsMarker(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	db := getTestDB(t)
	setupLegacyStore(t, db)

	// A store whose Code Review prompt already carries the findings marker
	// classifies at the structured-findings version even without the later
	// markers.
	_, err := db.Exec(`
		UPDATE stage_templates SET output_format = 'findings', prompt_template = ?
		WHERE name = ?
	`, "review prompt\n"+catalog.FindingsMarker+"\n", catalog.StageCodeReview)
	require.NoError(err)

	m, err := migrations.NewMigrator(db, log.Noop)
	require.NoError(err)
	require.NoError(m.Run(context.Background()))

	assert.Equal([]int{1, 2, 3, 4, 5, 6}, appliedVersions(t, db))

	// The prompt body owned by the baselined migration was not re-applied.
	var prompt string
	require.NoError(db.QueryRow(`SELECT prompt_template FROM stage_templates WHERE name = ?`, catalog.StageCodeReview).Scan(&prompt))
	assert.Contains(prompt, "review prompt")

	// The documentation stage migration sits below this baseline, so it was
	// recorded without executing and the stage is absent.
	var docs int
	require.NoError(db.QueryRow(`SELECT COUNT(*) FROM stage_templates WHERE name = ?`, catalog.StageDocumentation).Scan(&docs))
	assert.Equal(0, docs)

	// Later migrations ran: Task Splitting and PR Review were inserted.
	var split int
	require.NoError(db.QueryRow(`SELECT COUNT(*) FROM stage_templates WHERE name = ?`, catalog.StageTaskSplitting).Scan(&split))
	assert.Equal(1, split)
}

func TestMigratorLegacyStoreNoMarkers(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	db := getTestDB(t)
	setupLegacyStore(t, db)

	// No marker matches, so the store classifies at baseline 0 and every
	// body runs. The guarded bodies must cope with the already-existing
	// schema: version 1 finds the tables, version 3 inserts Documentation.
	m, err := migrations.NewMigrator(db, log.Noop)
	require.NoError(err)
	require.NoError(m.Run(context.Background()))

	assert.Equal([]int{1, 2, 3, 4, 5, 6}, appliedVersions(t, db))
	assert.True(columnExists(t, db, "stage_templates", "allowed_tools"))

	var docs int
	require.NoError(db.QueryRow(`SELECT COUNT(*) FROM stage_templates WHERE name = ?`, catalog.StageDocumentation).Scan(&docs))
	assert.Equal(1, docs)

	// Inserted stages keep the ordering duplicate free.
	rows, err := db.Query(`SELECT sort_order FROM stage_templates ORDER BY sort_order`)
	require.NoError(err)
	defer rows.Close()
	seen := map[int]bool{}
	for rows.Next() {
		var pos int
		require.NoError(rows.Scan(&pos))
		assert.False(seen[pos], "duplicate sort order %d", pos)
		seen[pos] = true
	}
	require.NoError(rows.Err())
}

func TestMigratorAbortedRunRetries(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	db := getTestDB(t)
	m, err := migrations.NewMigrator(db, log.Noop)
	require.NoError(err)

	// A canceled context aborts the run; no ledger rows may be written for
	// unapplied migrations.
	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	err = m.Run(canceled)
	require.Error(err)

	// The next open retries and completes.
	require.NoError(m.Run(context.Background()))
	assert.Equal([]int{1, 2, 3, 4, 5, 6}, appliedVersions(t, db))
}
