package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/huntmate/grindsync/internal/schema"
)

const killColumns = `id, session_id, user_id, animal_id, kill_number,
	is_diamond, is_great_one, is_troll, fur_type_id, fur_type_name,
	weight, trophy_score, difficulty_level, killed_at, sync_status, last_synced_at`

// PutKill inserts or replaces a kill record by primary key.
// As with PutSession, the sync status is replaced along with the row.
func (s *Store) PutKill(ctx context.Context, kill *schema.KillRecord) error {
	if kill.SyncStatus == "" {
		kill.SyncStatus = schema.StatusPending
	}
	if err := kill.Validate(); err != nil {
		return fmt.Errorf("invalid kill record: %w", err)
	}
	return s.putKillTx(ctx, s.conn, kill)
}

// execer abstracts *sql.DB and *sql.Tx so upserts can run inside the
// RecordKill transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) putKillTx(ctx context.Context, ex execer, kill *schema.KillRecord) error {
	query := `
	INSERT INTO kill_records (
		id, session_id, user_id, animal_id, kill_number,
		is_diamond, is_great_one, is_troll, fur_type_id, fur_type_name,
		weight, trophy_score, difficulty_level, killed_at,
		sync_status, last_synced_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		session_id = excluded.session_id,
		user_id = excluded.user_id,
		animal_id = excluded.animal_id,
		kill_number = excluded.kill_number,
		is_diamond = excluded.is_diamond,
		is_great_one = excluded.is_great_one,
		is_troll = excluded.is_troll,
		fur_type_id = excluded.fur_type_id,
		fur_type_name = excluded.fur_type_name,
		weight = excluded.weight,
		trophy_score = excluded.trophy_score,
		difficulty_level = excluded.difficulty_level,
		killed_at = excluded.killed_at,
		sync_status = excluded.sync_status,
		last_synced_at = excluded.last_synced_at
	`

	_, err := ex.ExecContext(ctx, query,
		kill.ID,
		kill.SessionID,
		kill.UserID,
		kill.AnimalID,
		kill.KillNumber,
		boolToInt(kill.IsDiamond),
		boolToInt(kill.IsGreatOne),
		boolToInt(kill.IsTroll),
		nullString(kill.FurTypeID),
		nullString(kill.FurTypeName),
		nullFloat(kill.Weight),
		nullFloat(kill.TrophyScore),
		nullInt(kill.DifficultyLevel),
		kill.KilledAt.Format(time.RFC3339),
		string(kill.SyncStatus),
		timeToNullString(kill.LastSyncedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert kill %s: %w", kill.ID, err)
	}
	return nil
}

// GetKill retrieves a kill record by ID.
// Returns (nil, nil) if the record does not exist.
func (s *Store) GetKill(ctx context.Context, id string) (*schema.KillRecord, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT `+killColumns+` FROM kill_records WHERE id = ?`, id)

	kill, err := scanKill(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get kill %s: %w", id, err)
	}
	return kill, nil
}

// DeleteKill removes a kill record. Idempotent.
func (s *Store) DeleteKill(ctx context.Context, id string) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM kill_records WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete kill %s: %w", id, err)
	}
	return nil
}

// PendingKills returns the user's kill records awaiting upload, in
// insertion order.
func (s *Store) PendingKills(ctx context.Context, userID string) ([]*schema.KillRecord, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT `+killColumns+` FROM kill_records
		 WHERE user_id = ? AND sync_status = ?
		 ORDER BY rowid ASC`,
		userID, string(schema.StatusPending))
	if err != nil {
		return nil, fmt.Errorf("failed to query pending kills: %w", err)
	}
	defer rows.Close()

	return scanKills(rows)
}

// KillsForSession returns all kills in a session, in insertion order
// (which is also kill_number order for rows created through RecordKill).
func (s *Store) KillsForSession(ctx context.Context, sessionID string) ([]*schema.KillRecord, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT `+killColumns+` FROM kill_records
		 WHERE session_id = ?
		 ORDER BY rowid ASC`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query kills for session %s: %w", sessionID, err)
	}
	defer rows.Close()

	return scanKills(rows)
}

// MarkKillSynced promotes a kill record to synced with the given timestamp.
func (s *Store) MarkKillSynced(ctx context.Context, id string, at time.Time) error {
	_, err := s.conn.ExecContext(ctx,
		`UPDATE kill_records SET sync_status = ?, last_synced_at = ? WHERE id = ?`,
		string(schema.StatusSynced), at.Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("failed to mark kill %s synced: %w", id, err)
	}
	return nil
}

// MarkKillError flags a kill record whose upload failed hard.
func (s *Store) MarkKillError(ctx context.Context, id string) error {
	_, err := s.conn.ExecContext(ctx,
		`UPDATE kill_records SET sync_status = ? WHERE id = ?`,
		string(schema.StatusError), id)
	if err != nil {
		return fmt.Errorf("failed to mark kill %s errored: %w", id, err)
	}
	return nil
}

// RecordKill creates a kill record and increments the owning session's
// counters in a single transaction.
//
// The kill number comes from the session's next_kill_number high-water
// mark, which only ever moves forward. Undo does not lower it, so a
// number, once assigned, is never assigned again in that session; a
// remote copy of an undone kill can never collide with a later upload.
// Both the new kill and the session come out tagged pending.
func (s *Store) RecordKill(ctx context.Context, kill *schema.KillRecord) error {
	if kill.ID == "" {
		return fmt.Errorf("kill id is required")
	}
	if kill.SessionID == "" {
		return fmt.Errorf("session id is required")
	}
	if kill.KilledAt.IsZero() {
		kill.KilledAt = time.Now().UTC()
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var (
		userID, animalID string
		nextNumber       int
	)
	err = tx.QueryRowContext(ctx,
		`SELECT user_id, animal_id, next_kill_number FROM grind_sessions WHERE id = ?`,
		kill.SessionID).Scan(&userID, &animalID, &nextNumber)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("session %s not found", kill.SessionID)
	}
	if err != nil {
		return fmt.Errorf("failed to load session %s: %w", kill.SessionID, err)
	}

	if kill.UserID == "" {
		kill.UserID = userID
	}
	if kill.AnimalID == "" {
		kill.AnimalID = animalID
	}

	kill.KillNumber = nextNumber
	kill.SyncStatus = schema.StatusPending
	kill.LastSyncedAt = nil

	if err := kill.Validate(); err != nil {
		return fmt.Errorf("invalid kill record: %w", err)
	}
	if err := s.putKillTx(ctx, tx, kill); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE grind_sessions SET
			total_kills = total_kills + 1,
			current_kills = current_kills + 1,
			next_kill_number = next_kill_number + 1,
			updated_at = ?,
			sync_status = ?
		 WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339),
		string(schema.StatusPending),
		kill.SessionID)
	if err != nil {
		return fmt.Errorf("failed to increment session counters: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit kill: %w", err)
	}
	return nil
}

// UndoLastKill deletes the newest kill in a session and decrements the
// session's counters, all in one transaction. The session's
// next_kill_number is left alone: the undone number stays burned.
//
// If the kill had already been uploaded, a tombstone is queued so the
// next push deletes it remotely too; a never-uploaded kill just
// disappears.
//
// Returns the removed record, or (nil, nil) when the session has no kills.
func (s *Store) UndoLastKill(ctx context.Context, sessionID string) (*schema.KillRecord, error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT `+killColumns+` FROM kill_records
		 WHERE session_id = ?
		 ORDER BY kill_number DESC
		 LIMIT 1`,
		sessionID)

	kill, err := scanKill(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find latest kill: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM kill_records WHERE id = ?`, kill.ID); err != nil {
		return nil, fmt.Errorf("failed to delete kill %s: %w", kill.ID, err)
	}

	// Anything not pending may already exist remotely (error rows
	// included: the failed upload may have landed). Remote deletes are
	// idempotent, so over-tombstoning is harmless.
	if kill.SyncStatus != schema.StatusPending {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO kill_tombstones (id, user_id) VALUES (?, ?)
			 ON CONFLICT(id) DO NOTHING`,
			kill.ID, kill.UserID); err != nil {
			return nil, fmt.Errorf("failed to queue remote deletion for %s: %w", kill.ID, err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE grind_sessions SET
			total_kills = MAX(total_kills - 1, 0),
			current_kills = MAX(current_kills - 1, 0),
			updated_at = ?,
			sync_status = ?
		 WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339),
		string(schema.StatusPending),
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to decrement session counters: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit undo: %w", err)
	}
	return kill, nil
}

// PendingKillDeletions returns the IDs of uploaded kills that were undone
// locally and still need deleting remotely, in insertion order.
func (s *Store) PendingKillDeletions(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id FROM kill_tombstones WHERE user_id = ? ORDER BY rowid ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query kill tombstones: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan tombstone: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tombstones: %w", err)
	}
	return ids, nil
}

// ClearKillDeletion drops a tombstone once the remote delete succeeded.
func (s *Store) ClearKillDeletion(ctx context.Context, id string) error {
	if _, err := s.conn.ExecContext(ctx,
		`DELETE FROM kill_tombstones WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to clear tombstone %s: %w", id, err)
	}
	return nil
}

// PendingCounts returns how many sessions and kills are awaiting upload
// for one user. Used by the status command and the dashboard.
func (s *Store) PendingCounts(ctx context.Context, userID string) (sessions, kills int, err error) {
	err = s.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM grind_sessions WHERE user_id = ? AND sync_status = ?`,
		userID, string(schema.StatusPending)).Scan(&sessions)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count pending sessions: %w", err)
	}
	err = s.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM kill_records WHERE user_id = ? AND sync_status = ?`,
		userID, string(schema.StatusPending)).Scan(&kills)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count pending kills: %w", err)
	}
	return sessions, kills, nil
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func scanKill(sc scanner) (*schema.KillRecord, error) {
	var (
		kill                           schema.KillRecord
		isDiamond, isGreatOne, isTroll int
		furTypeID, furTypeName         sql.NullString
		weight, trophyScore            sql.NullFloat64
		difficulty                     sql.NullInt64
		killedAt, syncStatus           string
		lastSyncedAt                   sql.NullString
	)

	err := sc.Scan(
		&kill.ID,
		&kill.SessionID,
		&kill.UserID,
		&kill.AnimalID,
		&kill.KillNumber,
		&isDiamond,
		&isGreatOne,
		&isTroll,
		&furTypeID,
		&furTypeName,
		&weight,
		&trophyScore,
		&difficulty,
		&killedAt,
		&syncStatus,
		&lastSyncedAt,
	)
	if err != nil {
		return nil, err
	}

	kill.IsDiamond = isDiamond != 0
	kill.IsGreatOne = isGreatOne != 0
	kill.IsTroll = isTroll != 0
	if furTypeID.Valid {
		kill.FurTypeID = &furTypeID.String
	}
	if furTypeName.Valid {
		kill.FurTypeName = &furTypeName.String
	}
	if weight.Valid {
		kill.Weight = &weight.Float64
	}
	if trophyScore.Valid {
		kill.TrophyScore = &trophyScore.Float64
	}
	if difficulty.Valid {
		d := int(difficulty.Int64)
		kill.DifficultyLevel = &d
	}
	if t, err := time.Parse(time.RFC3339, killedAt); err == nil {
		kill.KilledAt = t
	}
	kill.SyncStatus = schema.SyncStatus(syncStatus)
	kill.LastSyncedAt = nullStringToTime(lastSyncedAt)

	return &kill, nil
}

func scanKills(rows *sql.Rows) ([]*schema.KillRecord, error) {
	var kills []*schema.KillRecord
	for rows.Next() {
		kill, err := scanKill(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan kill: %w", err)
		}
		kills = append(kills, kill)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating kills: %w", err)
	}
	return kills, nil
}
