package session

import (
	"context"

	"github.com/maplecart/maplecart/config"
	"github.com/maplecart/maplecart/services/hashing"
	"github.com/maplecart/maplecart/services/logging"
	"go.uber.org/zap"
)

// Guard implements double-submit-cookie CSRF verification bound to
// the session row. Each successful check rotates the token, so a
// leaked CSRF token is good for at most one request.
type Guard struct {
	store  *Store
	config *config.Config
	logger *logging.Service
}

func NewGuard(store *Store, cfg *config.Config, logger *logging.Service) *Guard {
	return &Guard{
		store:  store,
		config: cfg,
		logger: logger,
	}
}

// Require verifies the header-supplied CSRF token against the hash
// stored on the session located by the refresh cookie. On success it
// rotates: a fresh token is generated, its hash persisted, and the
// raw value returned for re-issue as the next double-submit cookie.
func (g *Guard) Require(ctx context.Context, refreshCookie, csrfHeader string) (string, *Session, error) {
	if refreshCookie == "" || csrfHeader == "" {
		return "", nil, ErrCSRFTokenMissing
	}

	sess, err := g.store.FindByRefreshHash(ctx, hashing.HashToken(refreshCookie))
	if err != nil {
		return "", nil, ErrCSRFTokenInvalid
	}

	if sess.CSRFTokenHash == "" || !hashing.Matches(csrfHeader, sess.CSRFTokenHash) {
		if g.logger != nil {
			g.logger.Warn("csrf verification failed",
				zap.Uint("session_id", sess.ID),
				zap.String("user_id", sess.UserID))
		}
		return "", nil, ErrCSRFTokenInvalid
	}

	rotated, err := g.Issue(ctx, sess.ID)
	if err != nil {
		return "", nil, err
	}

	return rotated, sess, nil
}

// Issue generates a fresh CSRF token for the session and persists its
// hash, returning the raw token.
func (g *Guard) Issue(ctx context.Context, sessionID uint) (string, error) {
	token, err := hashing.GenerateToken(g.config.Session.TokenLength)
	if err != nil {
		return "", err
	}

	if err := g.store.UpdateCSRFHash(ctx, sessionID, hashing.HashToken(token)); err != nil {
		return "", err
	}

	return token, nil
}
