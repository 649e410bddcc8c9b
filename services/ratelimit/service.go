package ratelimit

import (
	"context"
	"time"

	"github.com/maplecart/maplecart/config"
	"github.com/maplecart/maplecart/services/logging"
	"go.uber.org/zap"
)

// Endpoint names used as counter keys. Handlers and orchestrators
// refer to these rather than URL paths so the counters survive route
// renames.
const (
	EndpointLogin    = "login"
	EndpointRegister = "register"
	EndpointOTP      = "otp"
	EndpointReset    = "password_reset"
	EndpointRefresh  = "refresh"
	EndpointOAuth    = "oauth"
)

type Service struct {
	config *config.Config
	store  Store
	logger *logging.Service
}

func NewService(cfg *config.Config, store Store, logger *logging.Service) *Service {
	return &Service{
		config: cfg,
		store:  store,
		logger: logger,
	}
}

// RuleFor returns the configured limit and window for an endpoint,
// defaulting to the login rule for unknown names.
func (s *Service) RuleFor(endpoint string) config.Rule {
	switch endpoint {
	case EndpointLogin:
		return s.config.RateLimit.Login
	case EndpointRegister:
		return s.config.RateLimit.Register
	case EndpointOTP:
		return s.config.RateLimit.OTP
	case EndpointReset:
		return s.config.RateLimit.Reset
	case EndpointRefresh:
		return s.config.RateLimit.Refresh
	case EndpointOAuth:
		return s.config.RateLimit.OAuth
	default:
		return s.config.RateLimit.Login
	}
}

// Enforce counts this request against the subject's fixed window for
// the endpoint and decides whether it may proceed. When the counter
// store is unreachable the decision follows the configured failure
// policy: fail-open allows the request, fail-closed rejects it.
// Rate limiting must never become an outage vector, so fail-open is
// the default.
func (s *Service) Enforce(ctx context.Context, subject, endpoint string) Decision {
	rule := s.RuleFor(endpoint)
	return s.EnforceRule(ctx, subject, endpoint, rule)
}

func (s *Service) EnforceRule(ctx context.Context, subject, endpoint string, rule config.Rule) Decision {
	if !s.config.RateLimit.Enabled || rule.Limit <= 0 {
		return Decision{Allowed: true, Limit: rule.Limit, Remaining: rule.Limit}
	}

	window := rule.Window
	if window <= 0 {
		window = time.Minute
	}

	windowSeconds := int64(window.Seconds())
	bucket := (time.Now().Unix() / windowSeconds) * windowSeconds

	count, err := s.store.Increment(ctx, subject, endpoint, bucket, window)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("rate limit store error",
				zap.String("endpoint", endpoint),
				zap.String("subject", subject),
				zap.Bool("fail_open", s.config.RateLimit.FailOpen),
				zap.Error(err))
		}

		if s.config.RateLimit.FailOpen {
			return Decision{Allowed: true, Limit: rule.Limit, Remaining: rule.Limit}
		}
		return Decision{Allowed: false, Limit: rule.Limit, RetryAfter: window}
	}

	if count > int64(rule.Limit) {
		if s.logger != nil {
			s.logger.Warn("rate limit exceeded",
				zap.String("endpoint", endpoint),
				zap.String("subject", subject),
				zap.Int64("count", count),
				zap.Int("limit", rule.Limit))
		}
		return Decision{Allowed: false, Limit: rule.Limit, RetryAfter: window}
	}

	remaining := rule.Limit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	return Decision{Allowed: true, Limit: rule.Limit, Remaining: remaining}
}
