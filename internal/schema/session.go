package schema

import (
	"fmt"
	"time"
)

// GrindSession represents one continuous hunting campaign against a species.
//
// Exactly one session may be active per (user, animal) pair at a time.
// The store does not enforce this; callers must deactivate the previous
// session before starting a new one.
type GrindSession struct {
	ID string `json:"id" gorm:"column:id;primaryKey"`

	// UserID is the secondary-system identifier derived by the identity
	// mapper, never the raw primary-auth subject.
	UserID string `json:"user_id" gorm:"column:user_id;index"`

	AnimalID   string    `json:"animal_id" gorm:"column:animal_id"`
	AnimalName string    `json:"animal_name" gorm:"column:animal_name"`
	StartDate  time.Time `json:"start_date" gorm:"column:start_date"`
	IsActive   bool      `json:"is_active" gorm:"column:is_active"`

	// TotalKills and CurrentKills are maintained locally on every
	// kill/undo. They are intentionally omitted from session upserts;
	// the remote service recomputes them from kill rows.
	TotalKills   int `json:"total_kills" gorm:"column:total_kills"`
	CurrentKills int `json:"current_kills" gorm:"column:current_kills"`

	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at"`

	// Local-only bookkeeping, never transmitted.
	SyncStatus   SyncStatus `json:"sync_status,omitempty" gorm:"-"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty" gorm:"-"`
}

// TableName maps the session to its remote relational table.
func (GrindSession) TableName() string { return "grind_sessions" }

// Validate checks that the session has the fields every consumer relies on.
func (s *GrindSession) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("id is required")
	}
	if s.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	if s.AnimalID == "" {
		return fmt.Errorf("animal_id is required")
	}
	if s.StartDate.IsZero() {
		return fmt.Errorf("start_date is required")
	}
	if s.TotalKills < 0 || s.CurrentKills < 0 {
		return fmt.Errorf("kill counts cannot be negative")
	}
	return nil
}

// SetDefaults applies default values for optional fields.
func (s *GrindSession) SetDefaults() {
	if s.SyncStatus == "" {
		s.SyncStatus = StatusPending
	}
	if s.StartDate.IsZero() {
		s.StartDate = time.Now().UTC()
	}
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now().UTC()
	}
}
