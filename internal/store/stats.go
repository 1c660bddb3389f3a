package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/huntmate/grindsync/internal/schema"
)

// PutStatistics upserts a server-computed aggregate row. Statistics are
// always server-authoritative, so there is no sync status to preserve and
// the pull pass writes them unconditionally.
func (s *Store) PutStatistics(ctx context.Context, stats *schema.SessionStatistics) error {
	if stats.SessionID == "" {
		return fmt.Errorf("session_id is required")
	}
	if stats.UpdatedAt.IsZero() {
		stats.UpdatedAt = time.Now().UTC()
	}

	query := `
	INSERT INTO session_statistics (
		session_id, total_kills, diamonds, great_ones, rare_furs, trolls, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(session_id) DO UPDATE SET
		total_kills = excluded.total_kills,
		diamonds = excluded.diamonds,
		great_ones = excluded.great_ones,
		rare_furs = excluded.rare_furs,
		trolls = excluded.trolls,
		updated_at = excluded.updated_at
	`

	_, err := s.conn.ExecContext(ctx, query,
		stats.SessionID,
		stats.TotalKills,
		stats.Diamonds,
		stats.GreatOnes,
		stats.RareFurs,
		stats.Trolls,
		stats.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert statistics for %s: %w", stats.SessionID, err)
	}
	return nil
}

// GetStatistics retrieves the cached aggregate for a session.
// Returns (nil, nil) if no statistics have been pulled yet.
func (s *Store) GetStatistics(ctx context.Context, sessionID string) (*schema.SessionStatistics, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT session_id, total_kills, diamonds, great_ones, rare_furs, trolls, updated_at
		 FROM session_statistics WHERE session_id = ?`, sessionID)

	var (
		stats     schema.SessionStatistics
		updatedAt string
	)
	err := row.Scan(
		&stats.SessionID,
		&stats.TotalKills,
		&stats.Diamonds,
		&stats.GreatOnes,
		&stats.RareFurs,
		&stats.Trolls,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get statistics for %s: %w", sessionID, err)
	}

	if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
		stats.UpdatedAt = t
	}
	return &stats, nil
}

// DeleteStatistics removes the cached aggregate for a session. Idempotent.
func (s *Store) DeleteStatistics(ctx context.Context, sessionID string) error {
	if _, err := s.conn.ExecContext(ctx,
		`DELETE FROM session_statistics WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("failed to delete statistics for %s: %w", sessionID, err)
	}
	return nil
}
