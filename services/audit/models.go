package audit

import (
	"time"
)

type Outcome string

const (
	OutcomeSuccess      Outcome = "success"
	OutcomeFailure      Outcome = "failure"
	OutcomeError        Outcome = "error"
	OutcomeConflict     Outcome = "conflict"
	OutcomeUnauthorized Outcome = "unauthorized"
)

// Entry is the persisted, already-masked form of an audit event.
// Entries are append-only; nothing updates them after insert.
type Entry struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	Action     string    `json:"action" gorm:"size:64;not null;index"`
	ActorEmail string    `json:"actor_email" gorm:"size:255;index"`
	Outcome    Outcome   `json:"outcome" gorm:"size:16;not null"`
	ResourceID string    `json:"resource_id" gorm:"size:64"`
	Detail     string    `json:"detail" gorm:"size:2000"`
	Metadata   string    `json:"metadata" gorm:"size:4000"`
	CreatedAt  time.Time `json:"created_at" gorm:"index"`
}

func (Entry) TableName() string {
	return "audit_log_entries"
}

// Event is the caller-facing shape handed to Record before masking.
type Event struct {
	Action     string
	ActorEmail string
	Outcome    Outcome
	ResourceID string
	Detail     string
	Metadata   map[string]any
}
