// Package remote wraps network calls to the remote relational store.
//
// The wrapper is thin on purpose: each exported method is one statement
// against the remote database, atomic on its own, with no cross-call
// guarantees. The sync manager treats every record's upload as
// independently retryable, so nothing here batches or holds transactions
// open across records.
package remote

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/huntmate/grindsync/internal/schema"
)

// sessionUpsertColumns are the client-owned columns of a session upsert.
// total_kills and current_kills are intentionally absent: the remote
// service maintains them with triggers over kill rows, and a client write
// would fight those triggers.
var sessionUpsertColumns = []string{
	"id", "user_id", "animal_id", "animal_name", "start_date", "is_active", "updated_at",
}

// Service executes the remote data contract over a Postgres connection.
type Service struct {
	db *gorm.DB
}

// Open connects to the remote relational store.
func Open(dsn string) (*Service, error) {
	gl := gormlogger.New(
		log.New(os.Stderr, "[remote] ", log.LstdFlags),
		gormlogger.Config{LogLevel: gormlogger.Warn},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gl})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to remote store: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access connection pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(4)
	sqlDB.SetConnMaxIdleTime(time.Minute)

	return &Service{db: db}, nil
}

// NewWithDB wraps an existing gorm connection. Used by tests and by
// callers that manage the connection lifecycle themselves.
func NewWithDB(db *gorm.DB) *Service {
	return &Service{db: db}
}

// UpsertSession inserts or replaces a session by ID.
//
// Only client-owned columns travel; server-computed aggregates are never
// overwritten because they are never mentioned in the statement.
func (s *Service) UpsertSession(ctx context.Context, session *schema.GrindSession) error {
	if err := session.Validate(); err != nil {
		return fmt.Errorf("invalid session: %w", err)
	}

	err := s.db.WithContext(ctx).
		Select(sessionUpsertColumns).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns(sessionUpsertColumns[1:]),
		}).
		Create(session).Error
	if err != nil {
		return fmt.Errorf("failed to upsert session %s: %w", session.ID, err)
	}
	return nil
}

// UpsertKill inserts or replaces a kill record by ID.
//
// Re-uploading the same ID with the same payload is a no-op server-side:
// the conflict branch rewrites identical values, and trigger-maintained
// aggregates key off row identity, not statement count.
func (s *Service) UpsertKill(ctx context.Context, kill *schema.KillRecord) error {
	if err := kill.Validate(); err != nil {
		return fmt.Errorf("invalid kill record: %w", err)
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(kill).Error
	if err != nil {
		return fmt.Errorf("failed to upsert kill %s: %w", kill.ID, err)
	}
	return nil
}

// DeleteKill removes one kill record by ID. Deleting a row that does not
// exist succeeds, so queued deletions can be replayed freely.
func (s *Service) DeleteKill(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Delete(&schema.KillRecord{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("failed to delete kill %s: %w", id, err)
	}
	return nil
}

// SelectActiveSessions returns all active sessions for a user.
func (s *Service) SelectActiveSessions(ctx context.Context, userID string) ([]*schema.GrindSession, error) {
	var sessions []*schema.GrindSession
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to select active sessions: %w", err)
	}
	return sessions, nil
}

// SelectStatistics returns aggregate rows for the given session IDs.
func (s *Service) SelectStatistics(ctx context.Context, sessionIDs []string) ([]*schema.SessionStatistics, error) {
	if len(sessionIDs) == 0 {
		return nil, nil
	}

	var stats []*schema.SessionStatistics
	err := s.db.WithContext(ctx).
		Where("session_id IN ?", sessionIDs).
		Find(&stats).Error
	if err != nil {
		return nil, fmt.Errorf("failed to select statistics: %w", err)
	}
	return stats, nil
}

// DeleteAllForUser removes every remote row for a user: kill records
// first, then sessions, because kills hold a referential constraint on
// their session.
func (s *Service) DeleteAllForUser(ctx context.Context, userID string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&schema.KillRecord{}).Error; err != nil {
			return fmt.Errorf("failed to delete kill records: %w", err)
		}
		if err := tx.Where("user_id = ?", userID).Delete(&schema.GrindSession{}).Error; err != nil {
			return fmt.Errorf("failed to delete sessions: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete remote data for user: %w", err)
	}
	return nil
}
