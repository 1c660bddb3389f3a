package schema

import (
	"fmt"
	"time"
)

// KillRecord represents one recorded kill event within a grind session.
//
// Records are immutable after creation; the only way they disappear is an
// explicit user-initiated full reset or an undo of the newest kill.
// KillNumber is assigned from the session's high-water mark inside the
// same transaction that creates the row: numbers are strictly increasing
// within a session and never reused, even after an undo.
type KillRecord struct {
	ID        string `json:"id" gorm:"column:id;primaryKey"`
	SessionID string `json:"session_id" gorm:"column:session_id;index"`
	UserID    string `json:"user_id" gorm:"column:user_id;index"`
	AnimalID  string `json:"animal_id" gorm:"column:animal_id"`

	// KillNumber is the 1-based ordinal of this kill within its session.
	KillNumber int `json:"kill_number" gorm:"column:kill_number"`

	IsDiamond  bool `json:"is_diamond" gorm:"column:is_diamond"`
	IsGreatOne bool `json:"is_great_one" gorm:"column:is_great_one"`
	IsTroll    bool `json:"is_troll" gorm:"column:is_troll"`

	FurTypeID       *string  `json:"fur_type_id,omitempty" gorm:"column:fur_type_id"`
	FurTypeName     *string  `json:"fur_type_name,omitempty" gorm:"column:fur_type_name"`
	Weight          *float64 `json:"weight,omitempty" gorm:"column:weight"`
	TrophyScore     *float64 `json:"trophy_score,omitempty" gorm:"column:trophy_score"`
	DifficultyLevel *int     `json:"difficulty_level,omitempty" gorm:"column:difficulty_level"`

	KilledAt time.Time `json:"killed_at" gorm:"column:killed_at"`

	// Local-only bookkeeping, never transmitted.
	SyncStatus   SyncStatus `json:"sync_status,omitempty" gorm:"-"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty" gorm:"-"`
}

// TableName maps the kill record to its remote relational table.
func (KillRecord) TableName() string { return "kill_records" }

// Validate checks that the kill record has the fields every consumer relies on.
func (k *KillRecord) Validate() error {
	if k.ID == "" {
		return fmt.Errorf("id is required")
	}
	if k.SessionID == "" {
		return fmt.Errorf("session_id is required")
	}
	if k.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	if k.KillNumber < 1 {
		return fmt.Errorf("kill_number must be positive (got %d)", k.KillNumber)
	}
	if k.KilledAt.IsZero() {
		return fmt.Errorf("killed_at is required")
	}
	return nil
}

// HasRareFur reports whether a fur type was recorded for this kill.
func (k *KillRecord) HasRareFur() bool {
	return k.FurTypeID != nil && *k.FurTypeID != ""
}
