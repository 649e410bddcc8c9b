package session

import (
	"context"
	"errors"

	"github.com/maplecart/maplecart/services/hashing"
	"github.com/maplecart/maplecart/services/logging"
	"go.uber.org/zap"
)

type RefreshState string

const (
	StateRotated  RefreshState = "rotated"
	StateReplayed RefreshState = "replayed"
	StateExpired  RefreshState = "expired"
	StateRevoked  RefreshState = "revoked"
)

// TokenExchanger obtains the next token pair for a lineage from the
// identity provider. It returns the new access token, the new refresh
// token and the new rotation epoch (jti).
type TokenExchanger func(ctx context.Context, rawRefreshToken string) (accessToken, refreshToken, jti string, err error)

type RefreshOutcome struct {
	Session      *Session
	State        RefreshState
	AccessToken  string
	RefreshToken string
}

// Manager drives the refresh protocol over the store.
type Manager struct {
	store  *Store
	logger *logging.Service
}

func NewManager(store *Store, logger *logging.Service) *Manager {
	return &Manager{
		store:  store,
		logger: logger,
	}
}

// IsReplay reports whether the presented token is a replay against
// this session: either the token was already rotated away (its hash
// matches the prior hash) or the lineage is quarantined.
func (m *Manager) IsReplay(sess *Session, presentedRawToken string) bool {
	if sess.Quarantined {
		return true
	}
	if sess.PreviousRefreshTokenHash == nil {
		return false
	}
	return hashing.Matches(presentedRawToken, *sess.PreviousRefreshTokenHash)
}

// Refresh runs the rotation protocol for a presented refresh token.
//
// A replayed token is treated as evidence of theft: the lineage is
// quarantined and every session for the user revoked before the 401
// goes out. The returned outcome carries the affected session so the
// caller can audit it; the error is ErrReplayDetected.
func (m *Manager) Refresh(ctx context.Context, rawToken string, exchange TokenExchanger) (*RefreshOutcome, error) {
	hash := hashing.HashToken(rawToken)

	sess, err := m.store.FindByRefreshHash(ctx, hash)
	if err != nil {
		if !errors.Is(err, ErrSessionNotFound) {
			return nil, err
		}

		// No current hash matches. A hit on a prior hash means a
		// superseded token is being presented again.
		prior, priorErr := m.store.FindByPreviousHash(ctx, hash)
		if priorErr != nil {
			return nil, ErrSessionNotFound
		}
		return m.handleReplay(ctx, prior)
	}

	if m.IsReplay(sess, rawToken) {
		return m.handleReplay(ctx, sess)
	}

	if sess.RevokedAt != nil {
		return &RefreshOutcome{Session: sess, State: StateRevoked}, ErrSessionRevoked
	}
	if !sess.Usable() {
		return &RefreshOutcome{Session: sess, State: StateExpired}, ErrSessionExpired
	}

	if !hashing.Matches(rawToken, sess.RefreshTokenHash) {
		return nil, ErrSessionNotFound
	}

	accessToken, newRefreshToken, jti, err := exchange(ctx, rawToken)
	if err != nil {
		return nil, err
	}

	newHash := hashing.HashToken(newRefreshToken)
	if err := m.store.Rotate(ctx, sess.ID, hash, newHash, jti); err != nil {
		if errors.Is(err, ErrTokenSuperseded) {
			// Lost a concurrent rotation. The winner moved our hash to
			// the previous slot, which is exactly the replay shape.
			current, refetchErr := m.store.FindByPreviousHash(ctx, hash)
			if refetchErr == nil {
				return m.handleReplay(ctx, current)
			}
			return nil, ErrTokenSuperseded
		}
		return nil, err
	}

	sess.PreviousRefreshTokenHash = &hash
	sess.RefreshTokenHash = newHash
	sess.CurrentJTI = jti

	return &RefreshOutcome{
		Session:      sess,
		State:        StateRotated,
		AccessToken:  accessToken,
		RefreshToken: newRefreshToken,
	}, nil
}

func (m *Manager) handleReplay(ctx context.Context, sess *Session) (*RefreshOutcome, error) {
	if m.logger != nil {
		m.logger.Warn("refresh token replay detected",
			zap.Uint("session_id", sess.ID),
			zap.String("user_id", sess.UserID),
			zap.String("ip", sess.IP))
	}

	if err := m.store.Quarantine(ctx, sess.ID); err != nil && m.logger != nil {
		m.logger.Error("failed to quarantine replayed session",
			zap.Uint("session_id", sess.ID),
			zap.Error(err))
	}

	if _, err := m.store.RevokeAllForUser(ctx, sess.UserID); err != nil && m.logger != nil {
		m.logger.Error("failed to revoke sessions after replay",
			zap.String("user_id", sess.UserID),
			zap.Error(err))
	}

	return &RefreshOutcome{Session: sess, State: StateReplayed}, ErrReplayDetected
}
