// Package migrations evolves a project store across application versions.
//
// Unlike the app-wide store (fresh schema, standard tooling), project stores
// can predate the migration ledger itself: early application versions shipped
// schema and template changes without recording them anywhere. The migrator
// therefore keeps an append-only ledger table and, the first time it meets a
// store with no ledger at all, classifies the store's baseline version with
// content probes before running anything.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/stagegate/stagegate/internal/log"
)

// ledgerTable is the append-only migration ledger. Once a version is present
// it is never re-applied.
const ledgerTable = "_migrations"

// DB is the database surface the migrator needs.
type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Migration is one versioned, idempotent transformation of a project store.
type Migration struct {
	Version int
	Name    string
	// Run applies the migration body. Bodies re-check their own precondition
	// before mutating, so a retried or misclassified run cannot double-apply,
	// and a run interrupted halfway can safely continue on the next open.
	Run func(ctx context.Context, db DB) error
}

// baselineProbe tests for a marker that only exists after a specific
// migration has run. Probes are evaluated newest-first; the first match
// determines the baseline version of a store without ledger rows.
type baselineProbe struct {
	Version int
	Name    string
	matches func(ctx context.Context, db DB) (bool, error)
}

// Migrator brings a project store into the current shape exactly once per
// change. It must run to completion before any other component touches the
// store.
type Migrator struct {
	db         DB
	logger     log.Logger
	migrations []Migration
	probes     []baselineProbe
}

// NewMigrator creates a new migrator for a project store.
func NewMigrator(db DB, logger log.Logger) (*Migrator, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if logger == nil {
		logger = log.Noop
	}

	return &Migrator{
		db:         db,
		logger:     logger.WithValues(log.Kv{"svc": "storage.Migrator"}),
		migrations: allMigrations(),
		probes:     allProbes(),
	}, nil
}

// Run applies all pending migrations in ascending version order. A failing
// migration body aborts the whole run without writing its ledger row; the
// caller must treat the store as unusable and retry on next open.
func (m *Migrator) Run(ctx context.Context) error {
	err := m.ensureLedger(ctx)
	if err != nil {
		return fmt.Errorf("could not ensure migration ledger: %w", err)
	}

	applied, err := m.appliedVersions(ctx)
	if err != nil {
		return fmt.Errorf("could not load applied migrations: %w", err)
	}

	// A store without any ledger rows is either brand new or predates the
	// ledger. Classify its baseline and record everything at or below it as
	// applied without executing the bodies: baseline rows already carry that
	// shape.
	if len(applied) == 0 {
		baseline := m.detectBaseline(ctx)
		if baseline > 0 {
			m.logger.Infof("Store has no migration ledger, detected baseline version %d", baseline)
		}
		for _, mig := range m.migrations {
			if mig.Version > baseline {
				continue
			}
			if err := m.recordApplied(ctx, mig); err != nil {
				return fmt.Errorf("could not record baseline migration %d: %w", mig.Version, err)
			}
			applied[mig.Version] = true
		}
	}

	for _, mig := range m.migrations {
		if applied[mig.Version] {
			continue
		}

		m.logger.Infof("Applying migration %d (%s)", mig.Version, mig.Name)
		if err := mig.Run(ctx, m.db); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", mig.Version, mig.Name, err)
		}
		if err := m.recordApplied(ctx, mig); err != nil {
			return fmt.Errorf("could not record migration %d: %w", mig.Version, err)
		}
	}

	return nil
}

// detectBaseline probes for upgrade markers newest-first and returns the
// version of the first match, 0 when nothing matches (fresh store). Probe
// failures (e.g. a table that doesn't exist yet) are non-matches, never
// escalated.
func (m *Migrator) detectBaseline(ctx context.Context) int {
	for _, p := range m.probes {
		match, err := p.matches(ctx, m.db)
		if err != nil {
			m.logger.Debugf("Baseline probe %q errored, treating as non-match: %s", p.Name, err)
			continue
		}
		if match {
			m.logger.Debugf("Baseline probe %q matched", p.Name)
			return p.Version
		}
	}

	return 0
}

func (m *Migrator) ensureLedger(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS `+ledgerTable+` (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at INTEGER NOT NULL
		)
	`)
	return err
}

func (m *Migrator) appliedVersions(ctx context.Context) (map[int]bool, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT version FROM `+ledgerTable)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := map[int]bool{}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}

	return applied, rows.Err()
}

func (m *Migrator) recordApplied(ctx context.Context, mig Migration) error {
	_, err := m.db.ExecContext(ctx,
		`INSERT INTO `+ledgerTable+` (version, name, applied_at) VALUES (?, ?, ?)`,
		mig.Version, mig.Name, time.Now().UTC().Unix(),
	)
	return err
}
