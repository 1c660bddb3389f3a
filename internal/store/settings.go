package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PutSetting upserts a key/value setting.
func (s *Store) PutSetting(ctx context.Context, key, value string) error {
	query := `
	INSERT INTO settings (key, value) VALUES (?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`
	if _, err := s.conn.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to put setting %s: %w", key, err)
	}
	return nil
}

// GetSetting retrieves a setting value. The second return value reports
// whether the key exists, distinguishing a missing key from an empty value.
func (s *Store) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.conn.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return value, true, nil
}

// DeleteSetting removes a setting. Idempotent.
func (s *Store) DeleteSetting(ctx context.Context, key string) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete setting %s: %w", key, err)
	}
	return nil
}
