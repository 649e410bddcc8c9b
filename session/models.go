package session

import (
	"time"
)

// Session is one authenticated device lineage. The row tracks the
// current refresh token hash plus exactly one prior hash: enough to
// catch the single-step replay (attacker and legitimate client both
// holding a now-superseded token) without unbounded history. Rows are
// never deleted; revoked sessions remain as audit trail.
type Session struct {
	ID                       uint       `json:"id" gorm:"primaryKey"`
	UserID                   string     `json:"user_id" gorm:"size:36;not null;index"`
	RefreshTokenHash         string     `json:"-" gorm:"size:64;uniqueIndex;not null"`
	PreviousRefreshTokenHash *string    `json:"-" gorm:"size:64;index"`
	CurrentJTI               string     `json:"-" gorm:"size:64"`
	CSRFTokenHash            string     `json:"-" gorm:"size:64"`
	IP                       string     `json:"ip" gorm:"size:45"`
	UserAgent                string     `json:"user_agent" gorm:"size:500"`
	DeviceName               string     `json:"device_name" gorm:"size:128"`
	CreatedAt                time.Time  `json:"created_at"`
	ExpiresAt                time.Time  `json:"expires_at" gorm:"not null;index"`
	RevokedAt                *time.Time `json:"revoked_at,omitempty" gorm:"index"`
	LastSeenAt               time.Time  `json:"last_seen_at"`
	Quarantined              bool       `json:"-" gorm:"not null;default:false"`
}

func (Session) TableName() string {
	return "sessions"
}

// Usable reports whether the lineage may still be presented: not
// revoked, not expired, not quarantined.
func (s *Session) Usable() bool {
	return s.RevokedAt == nil && !s.Quarantined && time.Now().Before(s.ExpiresAt)
}
