package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/huntmate/grindsync/internal/schema"
)

const sessionColumns = `id, user_id, animal_id, animal_name, start_date,
	is_active, total_kills, current_kills, updated_at, sync_status, last_synced_at`

// PutSession inserts or replaces a session by primary key.
//
// The whole row is replaced, sync status included. Callers that need to
// preserve an existing status must read it first and carry it over.
func (s *Store) PutSession(ctx context.Context, session *schema.GrindSession) error {
	session.SetDefaults()
	if err := session.Validate(); err != nil {
		return fmt.Errorf("invalid session: %w", err)
	}

	// next_kill_number is a local high-water mark, not part of the record:
	// a replacement row may only ever raise it. Seeding from total_kills+1
	// keeps numbering sane for sessions first seen via a pull.
	query := `
	INSERT INTO grind_sessions (
		id, user_id, animal_id, animal_name, start_date,
		is_active, total_kills, current_kills, next_kill_number,
		updated_at, sync_status, last_synced_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		user_id = excluded.user_id,
		animal_id = excluded.animal_id,
		animal_name = excluded.animal_name,
		start_date = excluded.start_date,
		is_active = excluded.is_active,
		total_kills = excluded.total_kills,
		current_kills = excluded.current_kills,
		next_kill_number = MAX(grind_sessions.next_kill_number, excluded.next_kill_number),
		updated_at = excluded.updated_at,
		sync_status = excluded.sync_status,
		last_synced_at = excluded.last_synced_at
	`

	_, err := s.conn.ExecContext(ctx, query,
		session.ID,
		session.UserID,
		session.AnimalID,
		session.AnimalName,
		session.StartDate.Format(time.RFC3339),
		boolToInt(session.IsActive),
		session.TotalKills,
		session.CurrentKills,
		session.TotalKills+1,
		session.UpdatedAt.Format(time.RFC3339),
		string(session.SyncStatus),
		timeToNullString(session.LastSyncedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert session %s: %w", session.ID, err)
	}

	return nil
}

// GetSession retrieves a session by ID.
// Returns (nil, nil) if the session does not exist.
func (s *Store) GetSession(ctx context.Context, id string) (*schema.GrindSession, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM grind_sessions WHERE id = ?`, id)

	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session %s: %w", id, err)
	}
	return session, nil
}

// sessionPatchColumns whitelists the columns UpdateSession may touch.
var sessionPatchColumns = map[string]bool{
	"animal_name":    true,
	"is_active":      true,
	"total_kills":    true,
	"current_kills":  true,
	"updated_at":     true,
	"sync_status":    true,
	"last_synced_at": true,
}

// UpdateSession merge-patches the given columns onto an existing session.
//
// A patch against a missing ID is a silent no-op; callers that need an
// existence guarantee must GetSession first.
func (s *Store) UpdateSession(ctx context.Context, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	var sets []string
	var args []any
	for col, val := range fields {
		if !sessionPatchColumns[col] {
			return fmt.Errorf("column %q is not patchable", col)
		}
		sets = append(sets, col+" = ?")
		args = append(args, val)
	}
	args = append(args, id)

	query := `UPDATE grind_sessions SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
	if _, err := s.conn.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update session %s: %w", id, err)
	}
	return nil
}

// DeleteSession removes a session. Idempotent.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM grind_sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	return nil
}

// PendingSessions returns the user's sessions awaiting upload, in
// insertion order.
func (s *Store) PendingSessions(ctx context.Context, userID string) ([]*schema.GrindSession, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM grind_sessions
		 WHERE user_id = ? AND sync_status = ?
		 ORDER BY rowid ASC`,
		userID, string(schema.StatusPending))
	if err != nil {
		return nil, fmt.Errorf("failed to query pending sessions: %w", err)
	}
	defer rows.Close()

	return scanSessions(rows)
}

// ActiveSessions returns the user's active sessions in insertion order.
func (s *Store) ActiveSessions(ctx context.Context, userID string) ([]*schema.GrindSession, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM grind_sessions
		 WHERE user_id = ? AND is_active = 1
		 ORDER BY rowid ASC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query active sessions: %w", err)
	}
	defer rows.Close()

	return scanSessions(rows)
}

// ActiveSessionForAnimal returns the user's active session for one species,
// or (nil, nil) when there is none. Callers use this to uphold the
// one-active-session-per-(user, animal) rule before creating a session.
func (s *Store) ActiveSessionForAnimal(ctx context.Context, userID, animalID string) (*schema.GrindSession, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM grind_sessions
		 WHERE user_id = ? AND is_active = 1 AND animal_id = ?
		 LIMIT 1`,
		userID, animalID)

	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query active session for %s: %w", animalID, err)
	}
	return session, nil
}

// MarkSessionSynced promotes a session to synced with the given timestamp.
func (s *Store) MarkSessionSynced(ctx context.Context, id string, at time.Time) error {
	return s.UpdateSession(ctx, id, map[string]any{
		"sync_status":    string(schema.StatusSynced),
		"last_synced_at": at.Format(time.RFC3339),
	})
}

// MarkSessionError flags a session whose upload failed hard enough to
// surface to the user. The row stays eligible for manual re-queue.
func (s *Store) MarkSessionError(ctx context.Context, id string) error {
	return s.UpdateSession(ctx, id, map[string]any{
		"sync_status": string(schema.StatusError),
	})
}

// EndSession deactivates a session, keeping the historical row. The
// deactivation itself is a local write that still has to be pushed.
func (s *Store) EndSession(ctx context.Context, id string) error {
	return s.UpdateSession(ctx, id, map[string]any{
		"is_active":     0,
		"current_kills": 0,
		"updated_at":    time.Now().UTC().Format(time.RFC3339),
		"sync_status":   string(schema.StatusPending),
	})
}

// scanner abstracts *sql.Row and *sql.Rows for the scan helpers.
type scanner interface {
	Scan(dest ...any) error
}

func scanSession(sc scanner) (*schema.GrindSession, error) {
	var (
		session              schema.GrindSession
		startDate, updatedAt string
		isActive             int
		syncStatus           string
		lastSyncedAt         sql.NullString
	)

	err := sc.Scan(
		&session.ID,
		&session.UserID,
		&session.AnimalID,
		&session.AnimalName,
		&startDate,
		&isActive,
		&session.TotalKills,
		&session.CurrentKills,
		&updatedAt,
		&syncStatus,
		&lastSyncedAt,
	)
	if err != nil {
		return nil, err
	}

	if t, err := time.Parse(time.RFC3339, startDate); err == nil {
		session.StartDate = t
	}
	if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
		session.UpdatedAt = t
	}
	session.IsActive = isActive != 0
	session.SyncStatus = schema.SyncStatus(syncStatus)
	session.LastSyncedAt = nullStringToTime(lastSyncedAt)

	return &session, nil
}

func scanSessions(rows *sql.Rows) ([]*schema.GrindSession, error) {
	var sessions []*schema.GrindSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}
	return sessions, nil
}
