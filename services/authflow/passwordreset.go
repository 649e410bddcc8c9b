package authflow

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/maplecart/maplecart/services/audit"
	"github.com/maplecart/maplecart/services/hashing"
	"github.com/maplecart/maplecart/services/identity"
	"github.com/maplecart/maplecart/services/ratelimit"
	"go.uber.org/zap"
)

type ResetRequestInput struct {
	Email string `json:"email"`
}

// RequestPasswordReset always reports success so the response cannot
// be used to probe which emails have accounts. A token row is created
// and mailed only when the email resolves to a user; the audit trail
// records the difference internally.
func (s *Service) RequestPasswordReset(ctx context.Context, input ResetRequestInput, meta RequestMeta) error {
	email := strings.TrimSpace(strings.ToLower(input.Email))
	if email == "" || !strings.Contains(email, "@") {
		return ErrValidation
	}

	// Reset requests are account-scoped: the email itself is the rate
	// limit subject, so an attacker cannot hammer one mailbox from
	// many addresses.
	decision := s.limiter.Enforce(ctx, email, ratelimit.EndpointReset)
	if !decision.Allowed {
		return &RateLimitedError{RetryAfter: decision.RetryAfter}
	}

	user, err := s.identity.AdminGetUserByEmail(ctx, email)
	if err != nil {
		if !identity.IsNotFound(err) && s.logger != nil {
			s.logger.Error("password reset user lookup failed", zap.Error(err))
		}

		s.audit.Record(ctx, audit.Event{
			Action:     "password_reset_request",
			ActorEmail: email,
			Outcome:    audit.OutcomeFailure,
			Detail:     "no account for address",
		})
		return nil
	}

	rawToken, err := hashing.GenerateToken(s.config.Session.TokenLength)
	if err != nil {
		return nil
	}

	resetToken := PasswordResetToken{
		UserID:    &user.ID,
		Email:     email,
		TokenHash: hashing.HashToken(rawToken),
		ExpiresAt: time.Now().Add(time.Hour),
	}
	if err := s.db.WithContext(ctx).Create(&resetToken).Error; err != nil {
		if s.logger != nil {
			s.logger.Error("failed to store password reset token", zap.Error(err))
		}
		return nil
	}

	resetLink := fmt.Sprintf("%s/reset-password?token=%s&email=%s",
		strings.TrimRight(s.config.App.URL, "/"),
		url.QueryEscape(rawToken),
		url.QueryEscape(email))

	// A failed send must not change the outward success response.
	if err := s.mailer.SendPasswordReset(email, resetLink); err != nil {
		if s.logger != nil {
			s.logger.Error("failed to send password reset email",
				zap.String("email", email),
				zap.Error(err))
		}
	}

	s.audit.Record(ctx, audit.Event{
		Action:     "password_reset_request",
		ActorEmail: email,
		Outcome:    audit.OutcomeSuccess,
		ResourceID: user.ID,
	})

	return nil
}

type ResetConfirmInput struct {
	Email       string `json:"email"`
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// ConfirmPasswordReset consumes the one-time token and updates the
// credential upstream. The token is burned before the upstream call:
// even if the new password is rejected, the token cannot be retried.
func (s *Service) ConfirmPasswordReset(ctx context.Context, input ResetConfirmInput) error {
	email := strings.TrimSpace(strings.ToLower(input.Email))
	if email == "" || input.Token == "" || input.NewPassword == "" {
		return ErrValidation
	}

	var resetToken PasswordResetToken
	err := s.db.WithContext(ctx).
		Where("token_hash = ? AND email = ?", hashing.HashToken(input.Token), email).
		First(&resetToken).Error
	if err != nil {
		s.audit.Record(ctx, audit.Event{
			Action:     "password_reset_confirm",
			ActorEmail: email,
			Outcome:    audit.OutcomeFailure,
			Detail:     "unknown reset token",
		})
		return ErrValidation
	}

	if resetToken.Used || time.Now().After(resetToken.ExpiresAt) {
		s.audit.Record(ctx, audit.Event{
			Action:     "password_reset_confirm",
			ActorEmail: email,
			Outcome:    audit.OutcomeFailure,
			Detail:     "reset token expired or already used",
		})
		return ErrValidation
	}

	// Burn first. Consumption is once only regardless of what the
	// upstream update does.
	result := s.db.WithContext(ctx).Model(&PasswordResetToken{}).
		Where("id = ? AND used = ?", resetToken.ID, false).
		Update("used", true)
	if result.Error != nil {
		return fmt.Errorf("failed to consume reset token: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrValidation
	}

	userID := ""
	if resetToken.UserID != nil {
		userID = *resetToken.UserID
	} else {
		user, err := s.identity.AdminGetUserByEmail(ctx, email)
		if err != nil {
			return ErrNotFound
		}
		userID = user.ID
	}

	if err := s.identity.AdminUpdatePassword(ctx, userID, input.NewPassword); err != nil {
		switch identity.KindOf(err) {
		case identity.KindNotFound:
			return ErrNotFound
		case identity.KindValidation:
			return ErrValidation
		default:
			s.audit.Record(ctx, audit.Event{
				Action:     "password_reset_confirm",
				ActorEmail: email,
				Outcome:    audit.OutcomeError,
				ResourceID: userID,
				Detail:     "credential update failed upstream",
			})
			return ErrUpstream
		}
	}

	s.audit.Record(ctx, audit.Event{
		Action:     "password_reset_confirm",
		ActorEmail: email,
		Outcome:    audit.OutcomeSuccess,
		ResourceID: userID,
	})

	return nil
}
