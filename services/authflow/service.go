package authflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mileusna/useragent"

	"github.com/maplecart/maplecart/config"
	"github.com/maplecart/maplecart/services/audit"
	"github.com/maplecart/maplecart/services/captcha"
	"github.com/maplecart/maplecart/services/hashing"
	"github.com/maplecart/maplecart/services/identity"
	"github.com/maplecart/maplecart/services/logging"
	"github.com/maplecart/maplecart/services/mail"
	"github.com/maplecart/maplecart/services/ratelimit"
	"github.com/maplecart/maplecart/services/tokens"
	"github.com/maplecart/maplecart/session"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrValidation         = errors.New("invalid input")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrConflict           = errors.New("resource already exists")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrNotFound           = errors.New("not found")
	ErrCaptchaFailed      = errors.New("captcha verification failed")
	ErrUpstream           = errors.New("upstream identity provider error")
)

// RateLimitedError carries the Retry-After value for a 429.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

type Service struct {
	config   *config.Config
	db       *gorm.DB
	identity identity.Client
	sessions *session.Store
	manager  *session.Manager
	guard    *session.Guard
	audit    *audit.Service
	limiter  *ratelimit.Service
	mailer   mail.Sender
	captcha  captcha.Verifier
	tokens   *tokens.Service
	logger   *logging.Service
}

func NewService(
	cfg *config.Config,
	db *gorm.DB,
	identityClient identity.Client,
	sessions *session.Store,
	manager *session.Manager,
	guard *session.Guard,
	auditService *audit.Service,
	limiter *ratelimit.Service,
	mailer mail.Sender,
	captchaVerifier captcha.Verifier,
	tokenService *tokens.Service,
	logger *logging.Service,
) *Service {
	return &Service{
		config:   cfg,
		db:       db,
		identity: identityClient,
		sessions: sessions,
		manager:  manager,
		guard:    guard,
		audit:    auditService,
		limiter:  limiter,
		mailer:   mailer,
		captcha:  captchaVerifier,
		tokens:   tokenService,
		logger:   logger,
	}
}

// establishSession mirrors a provider-issued token pair into our own
// session row and prepares the cookie material. Used by every flow
// that ends with the caller authenticated.
func (s *Service) establishSession(ctx context.Context, providerSession *identity.Session, meta RequestMeta) (*AuthResult, error) {
	jti, err := s.tokens.ExtractJTI(providerSession.AccessToken)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("access token carries no usable jti", zap.Error(err))
		}
		jti = ""
	}

	csrfToken, err := hashing.GenerateToken(s.config.Session.TokenLength)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	sess := &session.Session{
		UserID:           providerSession.User.ID,
		RefreshTokenHash: hashing.HashToken(providerSession.RefreshToken),
		CurrentJTI:       jti,
		CSRFTokenHash:    hashing.HashToken(csrfToken),
		IP:               meta.IP,
		UserAgent:        meta.UserAgent,
		DeviceName:       deviceName(meta.UserAgent),
		CreatedAt:        now,
		ExpiresAt:        now.Add(s.config.Session.RefreshExpiry),
		LastSeenAt:       now,
	}

	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, err
	}

	return &AuthResult{
		AccessToken:  providerSession.AccessToken,
		TokenType:    "bearer",
		ExpiresIn:    providerSession.ExpiresIn,
		UserID:       providerSession.User.ID,
		RefreshToken: providerSession.RefreshToken,
		CSRFToken:    csrfToken,
		SessionID:    sess.ID,
	}, nil
}

func (s *Service) verifyCaptcha(ctx context.Context, meta RequestMeta) error {
	if err := s.captcha.Verify(ctx, meta.CaptchaToken, meta.IP); err != nil {
		if s.logger != nil {
			s.logger.Warn("captcha verification rejected request",
				zap.String("ip", meta.IP),
				zap.Error(err))
		}
		return ErrCaptchaFailed
	}
	return nil
}

func deviceName(userAgentHeader string) string {
	if userAgentHeader == "" {
		return "unknown device"
	}

	ua := useragent.Parse(userAgentHeader)
	name := strings.TrimSpace(ua.Name)
	os := strings.TrimSpace(ua.OS)

	switch {
	case name != "" && os != "":
		return name + " on " + os
	case name != "":
		return name
	default:
		return "unknown device"
	}
}
