package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/stagegate/stagegate/internal/log"
	"github.com/stagegate/stagegate/internal/model"
	"github.com/stagegate/stagegate/internal/storage/sqlite/appmigrations"
)

// AppStoreConfig is the configuration for the app-wide store.
type AppStoreConfig struct {
	DBPath string
	Logger log.Logger
}

func (c *AppStoreConfig) defaults() error {
	if c.DBPath == "" {
		return fmt.Errorf("db path is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.AppStore"})
	return nil
}

// AppStore is the app-wide SQLite store: the project catalog and application
// settings. It implements storage.ProjectRepository and
// storage.SettingsRepository.
type AppStore struct {
	serialConn
}

// OpenAppStore opens the app-wide store, running its migrations first.
func OpenAppStore(ctx context.Context, cfg AppStoreConfig) (*AppStore, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	db, err := openDB(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	migrator, err := appmigrations.NewMigrator(db, cfg.Logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not create migrator: %w", err)
	}
	if err := migrator.Up(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not run migrations: %w", err)
	}

	cfg.Logger.Debugf("App store initialized at %s", cfg.DBPath)

	return &AppStore{serialConn: newSerialConn(db, cfg.Logger)}, nil
}

// CreateProject creates a new project.
func (s *AppStore) CreateProject(ctx context.Context, p model.Project) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid project: %w", err)
	}

	err := s.withConn(ctx, func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO projects (id, name, path, archived, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, p.ID, p.Name, p.Path, p.Archived, p.CreatedAt.Unix())
		return err
	})
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: projects.") {
			return fmt.Errorf("project already exists: %w", model.ErrAlreadyExists)
		}
		return fmt.Errorf("could not insert project: %w", err)
	}

	s.logger.Debugf("Created project: %s (%s)", p.Name, p.ID)
	return nil
}

// GetProject retrieves a project by ID.
func (s *AppStore) GetProject(ctx context.Context, id string) (*model.Project, error) {
	return s.getProject(ctx, `WHERE id = ?`, id)
}

// GetProjectByName retrieves a project by name.
func (s *AppStore) GetProjectByName(ctx context.Context, name string) (*model.Project, error) {
	return s.getProject(ctx, `WHERE name = ?`, name)
}

func (s *AppStore) getProject(ctx context.Context, where string, arg any) (*model.Project, error) {
	query := `SELECT id, name, path, archived, created_at FROM projects ` + where

	var p model.Project
	err := s.withConn(ctx, func(db *sql.DB) error {
		return scanProject(db.QueryRowContext(ctx, query, arg), &p)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("project %v: %w", arg, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not query project: %w", err)
	}

	return &p, nil
}

// ListProjects returns projects ordered by creation, newest first.
func (s *AppStore) ListProjects(ctx context.Context, includeArchived bool) ([]model.Project, error) {
	query := `SELECT id, name, path, archived, created_at FROM projects`
	if !includeArchived {
		query += ` WHERE archived = 0`
	}
	query += ` ORDER BY created_at DESC`

	var projects []model.Project
	err := s.withConn(ctx, func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var p model.Project
			if err := scanProject(rows, &p); err != nil {
				return err
			}
			projects = append(projects, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("could not query projects: %w", err)
	}

	return projects, nil
}

// UpdateProject updates an existing project.
func (s *AppStore) UpdateProject(ctx context.Context, p model.Project) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid project: %w", err)
	}

	var rowsAffected int64
	err := s.withConn(ctx, func(db *sql.DB) error {
		result, err := db.ExecContext(ctx, `
			UPDATE projects SET name = ?, path = ?, archived = ? WHERE id = ?
		`, p.Name, p.Path, p.Archived, p.ID)
		if err != nil {
			return err
		}
		rowsAffected, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("could not update project: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("project %s: %w", p.ID, model.ErrNotFound)
	}

	s.logger.Debugf("Updated project: %s", p.ID)
	return nil
}

// GetSetting returns the value of an app-wide setting.
func (s *AppStore) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.withConn(ctx, func(db *sql.DB) error {
		return db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("setting %s: %w", key, model.ErrNotFound)
		}
		return "", fmt.Errorf("could not query setting: %w", err)
	}

	return value, nil
}

// SetSetting sets an app-wide setting, overwriting any previous value.
func (s *AppStore) SetSetting(ctx context.Context, key, value string) error {
	err := s.withConn(ctx, func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO settings (key, value) VALUES (?, ?)
			ON CONFLICT (key) DO UPDATE SET value = excluded.value
		`, key, value)
		return err
	})
	if err != nil {
		return fmt.Errorf("could not set setting: %w", err)
	}

	return nil
}

func scanProject(sc scanner, p *model.Project) error {
	var createdAt int64
	err := sc.Scan(&p.ID, &p.Name, &p.Path, &p.Archived, &createdAt)
	if err != nil {
		return err
	}
	p.CreatedAt = timeFromUnix(createdAt)
	return nil
}
