package schema

import "time"

// SessionStatistics is the remote-computed aggregate for one session,
// cached locally for fast reads. The client never mutates these rows; the
// pull pass upserts them unconditionally because the server copy is always
// authoritative.
type SessionStatistics struct {
	SessionID  string    `json:"session_id" gorm:"column:session_id;primaryKey"`
	TotalKills int       `json:"total_kills" gorm:"column:total_kills"`
	Diamonds   int       `json:"diamonds" gorm:"column:diamonds"`
	GreatOnes  int       `json:"great_ones" gorm:"column:great_ones"`
	RareFurs   int       `json:"rare_furs" gorm:"column:rare_furs"`
	Trolls     int       `json:"trolls" gorm:"column:trolls"`
	UpdatedAt  time.Time `json:"updated_at" gorm:"column:updated_at"`
}

// TableName maps the statistics row to its remote relational table.
func (SessionStatistics) TableName() string { return "session_statistics" }
