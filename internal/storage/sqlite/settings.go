package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/stagegate/stagegate/internal/model"
)

// GetSetting returns the value of a per-project setting.
func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
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

// SetSetting sets a per-project setting, overwriting any previous value.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
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
