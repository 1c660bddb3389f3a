package store

import (
	"context"
	"fmt"
)

// ResetAllData deletes every locally-held record for one user: kill
// records first, then cached statistics, then sessions. This mirrors the
// remote cascade order and runs in a single transaction.
//
// This is the only path that deletes kill records; it backs the
// user-initiated "zero out all stats" action and nothing else.
func (s *Store) ResetAllData(ctx context.Context, userID string) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM kill_records WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to delete kill records: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM session_statistics
		 WHERE session_id IN (SELECT id FROM grind_sessions WHERE user_id = ?)`,
		userID); err != nil {
		return fmt.Errorf("failed to delete statistics: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM grind_sessions WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to delete sessions: %w", err)
	}

	// The remote cascade already removed everything; queued deletions
	// would only replay no-ops.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM kill_tombstones WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to delete tombstones: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reset: %w", err)
	}
	return nil
}
