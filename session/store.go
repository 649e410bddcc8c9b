package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/maplecart/maplecart/services/logging"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionExpired   = errors.New("session expired")
	ErrSessionRevoked   = errors.New("session revoked")
	ErrTokenSuperseded  = errors.New("refresh token already superseded")
	ErrReplayDetected   = errors.New("refresh token replay detected")
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	ErrCSRFTokenInvalid = errors.New("csrf token mismatch")
)

type Store struct {
	db     *gorm.DB
	logger *logging.Service
}

func NewStore(db *gorm.DB, logger *logging.Service) *Store {
	return &Store{
		db:     db,
		logger: logger,
	}
}

func (s *Store) Create(ctx context.Context, sess *Session) error {
	if err := s.db.WithContext(ctx).Create(sess).Error; err != nil {
		if s.logger != nil {
			s.logger.Error("failed to create session",
				zap.String("user_id", sess.UserID),
				zap.Error(err))
		}
		return fmt.Errorf("failed to create session: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("session created",
			zap.Uint("session_id", sess.ID),
			zap.String("user_id", sess.UserID),
			zap.String("device", sess.DeviceName),
			zap.Time("expires_at", sess.ExpiresAt))
	}
	return nil
}

// FindByRefreshHash locates the session whose current refresh token
// hash matches.
func (s *Store) FindByRefreshHash(ctx context.Context, hash string) (*Session, error) {
	var sess Session
	err := s.db.WithContext(ctx).Where("refresh_token_hash = ?", hash).First(&sess).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &sess, nil
}

// FindByPreviousHash locates the session whose rotated-away hash
// matches: a hit means someone is presenting a superseded token.
func (s *Store) FindByPreviousHash(ctx context.Context, hash string) (*Session, error) {
	var sess Session
	err := s.db.WithContext(ctx).Where("previous_refresh_token_hash = ?", hash).First(&sess).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &sess, nil
}

// Rotate moves the lineage forward one step with a single conditional
// update. The WHERE clause on the old hash makes concurrent rotations
// of the same token race safely: exactly one wins, the loser gets
// ErrTokenSuperseded.
func (s *Store) Rotate(ctx context.Context, sessionID uint, oldHash, newHash, newJTI string) error {
	now := time.Now()

	result := s.db.WithContext(ctx).Model(&Session{}).
		Where("id = ? AND refresh_token_hash = ?", sessionID, oldHash).
		Updates(map[string]any{
			"previous_refresh_token_hash": oldHash,
			"refresh_token_hash":          newHash,
			"current_jti":                 newJTI,
			"last_seen_at":                now,
		})
	if result.Error != nil {
		if s.logger != nil {
			s.logger.Error("failed to rotate session",
				zap.Uint("session_id", sessionID),
				zap.Error(result.Error))
		}
		return fmt.Errorf("failed to rotate session: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return ErrTokenSuperseded
	}

	if s.logger != nil {
		s.logger.Info("session rotated",
			zap.Uint("session_id", sessionID),
			zap.String("jti", newJTI))
	}
	return nil
}

func (s *Store) UpdateCSRFHash(ctx context.Context, sessionID uint, csrfHash string) error {
	err := s.db.WithContext(ctx).Model(&Session{}).
		Where("id = ?", sessionID).
		Update("csrf_token_hash", csrfHash).Error
	if err != nil {
		return fmt.Errorf("failed to update csrf hash: %w", err)
	}
	return nil
}

func (s *Store) UpdateLastSeen(ctx context.Context, sessionID uint) error {
	err := s.db.WithContext(ctx).Model(&Session{}).
		Where("id = ?", sessionID).
		Update("last_seen_at", time.Now()).Error
	if err != nil && s.logger != nil {
		s.logger.Warn("failed to update session last seen",
			zap.Uint("session_id", sessionID),
			zap.Error(err))
	}
	return err
}

func (s *Store) Revoke(ctx context.Context, sessionID uint) error {
	result := s.db.WithContext(ctx).Model(&Session{}).
		Where("id = ? AND revoked_at IS NULL", sessionID).
		Update("revoked_at", time.Now())
	if result.Error != nil {
		return fmt.Errorf("failed to revoke session: %w", result.Error)
	}

	if s.logger != nil {
		s.logger.Info("session revoked",
			zap.Uint("session_id", sessionID),
			zap.Int64("affected_rows", result.RowsAffected))
	}
	return nil
}

// RevokeAllForUser revokes every active session for the user. Invoked
// on detected compromise: a replayed token taints the whole lineage,
// not just one row.
func (s *Store) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	result := s.db.WithContext(ctx).Model(&Session{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Update("revoked_at", time.Now())
	if result.Error != nil {
		if s.logger != nil {
			s.logger.Error("failed to revoke all user sessions",
				zap.String("user_id", userID),
				zap.Error(result.Error))
		}
		return 0, fmt.Errorf("failed to revoke all user sessions: %w", result.Error)
	}

	if s.logger != nil {
		s.logger.Warn("revoked all sessions for user",
			zap.String("user_id", userID),
			zap.Int64("count", result.RowsAffected))
	}
	return result.RowsAffected, nil
}

// Quarantine permanently blocks a lineage after misuse. The flag is
// never cleared.
func (s *Store) Quarantine(ctx context.Context, sessionID uint) error {
	err := s.db.WithContext(ctx).Model(&Session{}).
		Where("id = ?", sessionID).
		Updates(map[string]any{
			"quarantined": true,
			"revoked_at":  time.Now(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to quarantine session: %w", err)
	}

	if s.logger != nil {
		s.logger.Warn("session quarantined", zap.Uint("session_id", sessionID))
	}
	return nil
}

func (s *Store) ListActiveForUser(ctx context.Context, userID string) ([]Session, error) {
	var sessions []Session
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND revoked_at IS NULL AND quarantined = ? AND expires_at > ?", userID, false, time.Now()).
		Order("last_seen_at DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

func (s *Store) GetForUser(ctx context.Context, userID string, sessionID uint) (*Session, error) {
	var sess Session
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", sessionID, userID).
		First(&sess).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &sess, nil
}
