package ratelimit

import (
	"time"
)

// RateLimitCounter is one fixed window for one subject and endpoint.
// bucket is the unix second the window started at, so exactly one row
// exists per (subject, endpoint, bucket). Rows are never deleted
// explicitly; stale windows are simply never read again.
type RateLimitCounter struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	Subject    string    `json:"subject" gorm:"size:255;not null;uniqueIndex:idx_rate_limit_window"`
	Endpoint   string    `json:"endpoint" gorm:"size:64;not null;uniqueIndex:idx_rate_limit_window"`
	Bucket     int64     `json:"bucket" gorm:"not null;uniqueIndex:idx_rate_limit_window"`
	Count      int64     `json:"count" gorm:"not null;default:0"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

func (RateLimitCounter) TableName() string {
	return "rate_limit_counters"
}

// Decision is the outcome of one Enforce call.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}
