package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/maplecart/maplecart/config"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store increments the counter for one (subject, endpoint, bucket)
// window and returns the resulting count. Increments must be atomic:
// two concurrent requests from the same subject must not lose an
// update.
type Store interface {
	Increment(ctx context.Context, subject, endpoint string, bucket int64, window time.Duration) (int64, error)
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Increment(ctx context.Context, subject, endpoint string, bucket int64, window time.Duration) (int64, error) {
	now := time.Now()

	counter := RateLimitCounter{
		Subject:    subject,
		Endpoint:   endpoint,
		Bucket:     bucket,
		Count:      1,
		LastSeenAt: now,
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "subject"}, {Name: "endpoint"}, {Name: "bucket"}},
		DoUpdates: clause.Assignments(map[string]any{
			"count":        gorm.Expr("count + 1"),
			"last_seen_at": now,
		}),
	}).Create(&counter).Error
	if err != nil {
		return 0, fmt.Errorf("failed to upsert rate limit counter: %w", err)
	}

	var current RateLimitCounter
	err = s.db.WithContext(ctx).
		Where("subject = ? AND endpoint = ? AND bucket = ?", subject, endpoint, bucket).
		Take(&current).Error
	if err != nil {
		return 0, fmt.Errorf("failed to read rate limit counter: %w", err)
	}

	return current.Count, nil
}

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Increment(ctx context.Context, subject, endpoint string, bucket int64, window time.Duration) (int64, error) {
	key := fmt.Sprintf("rl:%s:%s:%d", endpoint, subject, bucket)

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("rate limit store unavailable: %w", err)
	}

	if count == 1 {
		if err := s.client.Expire(ctx, key, window).Err(); err != nil {
			return 0, fmt.Errorf("rate limit store unavailable: %w", err)
		}
	}

	return count, nil
}

func NewStore(cfg *config.RateLimitConfig, db *gorm.DB) (Store, error) {
	switch cfg.Store {
	case "redis":
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid rate limit redis URL: %w", err)
		}
		return NewRedisStore(redis.NewClient(opts)), nil
	case "database":
		fallthrough
	default:
		return NewGormStore(db), nil
	}
}
