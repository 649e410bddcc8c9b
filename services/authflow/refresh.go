package authflow

import (
	"context"
	"errors"

	"github.com/maplecart/maplecart/services/audit"
	"github.com/maplecart/maplecart/services/hashing"
	"github.com/maplecart/maplecart/session"
)

// Refresh runs the session store's rotation protocol, exchanging the
// presented refresh token upstream so the new access token and our
// session bookkeeping stay synchronized. A live session must pass the
// CSRF double-submit check; a replayed token skips it so the replay
// response (lineage revocation) still fires.
func (s *Service) Refresh(ctx context.Context, refreshCookie, csrfHeader string, meta RequestMeta) (*AuthResult, error) {
	if refreshCookie == "" {
		return nil, ErrUnauthorized
	}

	if sess, err := s.sessions.FindByRefreshHash(ctx, hashing.HashToken(refreshCookie)); err == nil {
		if !s.manager.IsReplay(sess, refreshCookie) && sess.CSRFTokenHash != "" {
			if csrfHeader == "" || !hashing.Matches(csrfHeader, sess.CSRFTokenHash) {
				s.audit.Record(ctx, audit.Event{
					Action:     "refresh",
					Outcome:    audit.OutcomeUnauthorized,
					ResourceID: sess.UserID,
					Detail:     "csrf verification failed",
					Metadata:   map[string]any{"ip": meta.IP},
				})
				return nil, session.ErrCSRFTokenInvalid
			}
		}
	}

	var expiresIn int
	exchange := func(ctx context.Context, rawRefreshToken string) (string, string, string, error) {
		providerSession, err := s.identity.RefreshSession(ctx, rawRefreshToken)
		if err != nil {
			return "", "", "", err
		}
		expiresIn = providerSession.ExpiresIn

		jti, jtiErr := s.tokens.ExtractJTI(providerSession.AccessToken)
		if jtiErr != nil {
			jti = ""
		}

		return providerSession.AccessToken, providerSession.RefreshToken, jti, nil
	}

	outcome, err := s.manager.Refresh(ctx, refreshCookie, exchange)
	if err != nil {
		if errors.Is(err, session.ErrReplayDetected) {
			event := audit.Event{
				Action:  "refresh",
				Outcome: audit.OutcomeUnauthorized,
				Detail:  "replayed refresh token; all sessions for user revoked",
			}
			if outcome != nil && outcome.Session != nil {
				event.ResourceID = outcome.Session.UserID
				event.Metadata = map[string]any{
					"session_id": outcome.Session.ID,
					"ip":         meta.IP,
				}
			}
			s.audit.Record(ctx, event)
			return nil, ErrUnauthorized
		}

		if errors.Is(err, session.ErrSessionNotFound) ||
			errors.Is(err, session.ErrSessionExpired) ||
			errors.Is(err, session.ErrSessionRevoked) ||
			errors.Is(err, session.ErrTokenSuperseded) {
			return nil, ErrUnauthorized
		}

		return nil, ErrUpstream
	}

	csrfToken, err := s.guard.Issue(ctx, outcome.Session.ID)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Event{
		Action:     "refresh",
		Outcome:    audit.OutcomeSuccess,
		ResourceID: outcome.Session.UserID,
		Metadata: map[string]any{
			"session_id": outcome.Session.ID,
			"ip":         meta.IP,
		},
	})

	return &AuthResult{
		AccessToken:  outcome.AccessToken,
		TokenType:    "bearer",
		ExpiresIn:    expiresIn,
		UserID:       outcome.Session.UserID,
		RefreshToken: outcome.RefreshToken,
		CSRFToken:    csrfToken,
		SessionID:    outcome.Session.ID,
	}, nil
}
