package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/maplecart/maplecart/config"
	"github.com/maplecart/maplecart/services/logging"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db     *gorm.DB
	config *config.Config
	logger *logging.Service
	stop   chan struct{}
}

func NewService(db *gorm.DB, cfg *config.Config, logger *logging.Service) *Service {
	if logger != nil {
		logger.Info("initializing audit service",
			zap.Int("retention_days", cfg.Audit.RetentionDays),
			zap.Duration("cleanup_interval", cfg.Audit.CleanupInterval))
	}

	return &Service{
		db:     db,
		config: cfg,
		logger: logger,
		stop:   make(chan struct{}),
	}
}

// Record masks and persists one security event. A failed insert is
// logged and swallowed: audit logging never blocks or fails the
// operation being audited.
func (s *Service) Record(ctx context.Context, event Event) {
	masked := MaskEvent(event)

	metadataJSON := ""
	if masked.Metadata != nil {
		if bytes, err := json.Marshal(masked.Metadata); err == nil {
			metadataJSON = string(bytes)
		} else if s.logger != nil {
			s.logger.Warn("failed to encode audit metadata",
				zap.String("action", masked.Action),
				zap.Error(err))
		}
	}

	entry := Entry{
		Action:     masked.Action,
		ActorEmail: masked.ActorEmail,
		Outcome:    masked.Outcome,
		ResourceID: masked.ResourceID,
		Detail:     masked.Detail,
		Metadata:   metadataJSON,
		CreatedAt:  time.Now(),
	}

	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		if s.logger != nil {
			s.logger.Error("failed to persist audit entry",
				zap.String("action", masked.Action),
				zap.String("outcome", string(masked.Outcome)),
				zap.Error(err))
		}
	}
}

// CleanupExpired deletes entries older than the retention window.
// Safe to run repeatedly; a run with nothing to delete is a no-op.
func (s *Service) CleanupExpired() (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -s.config.Audit.RetentionDays)

	result := s.db.Where("created_at < ?", cutoff).Delete(&Entry{})
	if result.Error != nil {
		if s.logger != nil {
			s.logger.Error("failed to cleanup expired audit entries", zap.Error(result.Error))
		}
		return 0, fmt.Errorf("failed to cleanup expired audit entries: %w", result.Error)
	}

	if s.logger != nil && result.RowsAffected > 0 {
		s.logger.Info("cleaned up expired audit entries",
			zap.Int64("count", result.RowsAffected),
			zap.Time("cutoff", cutoff))
	}

	return result.RowsAffected, nil
}

func (s *Service) StartRetentionWorker() {
	go func() {
		ticker := time.NewTicker(s.config.Audit.CleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if _, err := s.CleanupExpired(); err != nil && s.logger != nil {
					s.logger.Error("audit retention worker failed", zap.Error(err))
				}
			case <-s.stop:
				return
			}
		}
	}()

	if s.logger != nil {
		s.logger.Info("started audit retention worker",
			zap.Duration("interval", s.config.Audit.CleanupInterval))
	}
}

func (s *Service) StopRetentionWorker() {
	close(s.stop)
}
