package authflow

import (
	"context"
	"errors"

	"github.com/maplecart/maplecart/services/audit"
	"github.com/maplecart/maplecart/services/hashing"
	"github.com/maplecart/maplecart/session"
)

// Logout revokes the caller's session. It is idempotent: with no
// cookie or no matching session the caller still ends logged out and
// the handler clears cookies either way. When a live session exists
// the CSRF double-submit check is mandatory.
func (s *Service) Logout(ctx context.Context, refreshCookie, csrfHeader string, meta RequestMeta) error {
	if refreshCookie == "" {
		return nil
	}

	sess, err := s.sessions.FindByRefreshHash(ctx, hashing.HashToken(refreshCookie))
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return nil
		}
		return ErrUpstream
	}

	if _, _, err := s.guard.Require(ctx, refreshCookie, csrfHeader); err != nil {
		s.audit.Record(ctx, audit.Event{
			Action:     "logout",
			Outcome:    audit.OutcomeUnauthorized,
			ResourceID: sess.UserID,
			Detail:     "csrf verification failed",
			Metadata:   map[string]any{"ip": meta.IP},
		})
		return err
	}

	if err := s.sessions.Revoke(ctx, sess.ID); err != nil {
		return ErrUpstream
	}

	s.audit.Record(ctx, audit.Event{
		Action:     "logout",
		Outcome:    audit.OutcomeSuccess,
		ResourceID: sess.UserID,
		Metadata: map[string]any{
			"session_id": sess.ID,
			"ip":         meta.IP,
		},
	})

	return nil
}
