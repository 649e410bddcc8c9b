package authflow

import (
	"context"
	"errors"

	"github.com/maplecart/maplecart/services/audit"
	"github.com/maplecart/maplecart/services/hashing"
	"github.com/maplecart/maplecart/session"
)

// SessionSummary is the device listing shown to the account owner.
type SessionSummary struct {
	ID         uint   `json:"id"`
	DeviceName string `json:"device_name"`
	IP         string `json:"ip"`
	LastSeenAt string `json:"last_seen_at"`
	CreatedAt  string `json:"created_at"`
	Current    bool   `json:"current"`
}

func (s *Service) ListSessions(ctx context.Context, userID, currentRefreshCookie string) ([]SessionSummary, error) {
	sessions, err := s.sessions.ListActiveForUser(ctx, userID)
	if err != nil {
		return nil, ErrUpstream
	}

	currentHash := ""
	if currentRefreshCookie != "" {
		currentHash = hashing.HashToken(currentRefreshCookie)
	}

	summaries := make([]SessionSummary, 0, len(sessions))
	for _, sess := range sessions {
		summaries = append(summaries, SessionSummary{
			ID:         sess.ID,
			DeviceName: sess.DeviceName,
			IP:         sess.IP,
			LastSeenAt: sess.LastSeenAt.Format("2006-01-02T15:04:05Z07:00"),
			CreatedAt:  sess.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
			Current:    currentHash != "" && sess.RefreshTokenHash == currentHash,
		})
	}

	return summaries, nil
}

// RevokeSession revokes one of the caller's own sessions.
func (s *Service) RevokeSession(ctx context.Context, userID string, sessionID uint, meta RequestMeta) error {
	sess, err := s.sessions.GetForUser(ctx, userID, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return ErrNotFound
		}
		return ErrUpstream
	}

	if err := s.sessions.Revoke(ctx, sess.ID); err != nil {
		return ErrUpstream
	}

	s.audit.Record(ctx, audit.Event{
		Action:     "session_revoke",
		Outcome:    audit.OutcomeSuccess,
		ResourceID: userID,
		Metadata: map[string]any{
			"session_id": sess.ID,
			"ip":         meta.IP,
		},
	})

	return nil
}
