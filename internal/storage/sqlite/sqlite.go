package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/stagegate/stagegate/internal/log"
	"github.com/stagegate/stagegate/internal/storage/sqlite/migrations"
)

const (
	busyMaxRetries  = 5
	busyBaseBackoff = 50 * time.Millisecond
	busyMaxBackoff  = 1 * time.Second
)

// serialConn wraps a database handle with a capacity-one gate. Concurrent
// writes from independent connections to the same SQLite file can collide,
// so every statement against one file is serialized: at most one in-flight
// exec/query at a time, with bounded retry-with-backoff on lock contention.
// Pending callers queue on the gate in arrival order.
type serialConn struct {
	db     *sql.DB
	gate   chan struct{}
	logger log.Logger
}

func newSerialConn(db *sql.DB, logger log.Logger) serialConn {
	return serialConn{
		db:     db,
		gate:   make(chan struct{}, 1),
		logger: logger,
	}
}

// withConn runs fn holding the serialization gate, retrying with bounded
// exponential backoff when SQLite reports lock contention.
func (c *serialConn) withConn(ctx context.Context, fn func(db *sql.DB) error) error {
	select {
	case c.gate <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-c.gate }()

	backoff := busyBaseBackoff
	var err error
	for attempt := 0; attempt <= busyMaxRetries; attempt++ {
		err = fn(c.db)
		if err == nil || !isBusyErr(err) {
			return err
		}

		c.logger.Debugf("Database busy, retrying in %s", backoff)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
		if backoff > busyMaxBackoff {
			backoff = busyMaxBackoff
		}
	}

	return fmt.Errorf("database still busy after %d retries: %w", busyMaxRetries, err)
}

// Close closes the database connection.
func (c *serialConn) Close() error { return c.db.Close() }

func isBusyErr(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}

// StoreConfig is the configuration for a project store.
type StoreConfig struct {
	DBPath string
	Logger log.Logger
}

func (c *StoreConfig) defaults() error {
	if c.DBPath == "" {
		return fmt.Errorf("db path is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.SQLite"})
	return nil
}

// Store is a SQLite implementation of storage.ProjectStore: one store per
// project database file.
type Store struct {
	serialConn
}

// OpenStore opens a project store, running pending migrations first.
// Migrations are a hard precondition: no handle is returned until they
// completed successfully, so no other operation can touch a half-migrated
// store.
func OpenStore(ctx context.Context, cfg StoreConfig) (*Store, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	db, err := openDB(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	migrator, err := migrations.NewMigrator(db, cfg.Logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not create migrator: %w", err)
	}
	if err := migrator.Run(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not run migrations: %w", err)
	}

	cfg.Logger.Debugf("Project store initialized at %s", cfg.DBPath)

	return &Store{serialConn: newSerialConn(db, cfg.Logger)}, nil
}

func openDB(dbPath string) (*sql.DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("could not create db directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	return db, nil
}

func timeFromUnix(unix int64) time.Time { return time.Unix(unix, 0).UTC() }
