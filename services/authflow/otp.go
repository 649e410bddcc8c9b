package authflow

import (
	"context"
	"strings"

	"github.com/maplecart/maplecart/services/audit"
	"github.com/maplecart/maplecart/services/hashing"
	"github.com/maplecart/maplecart/services/identity"
	"go.uber.org/zap"
)

// otpPurposes is the fixed priority order the verify flow tries. The
// provider issues codes under different purposes depending on how the
// user entered the flow; the first purpose that verifies wins.
var otpPurposes = []string{
	identity.PurposeEmail,
	identity.PurposeMagicLink,
	identity.PurposeSignup,
}

type OTPRequestInput struct {
	Email string `json:"email"`
}

// RequestOTP sends a login code to the address. An email nobody has
// registered gets a just-in-time identity first, then the code is
// sent against the now-existing account, so the response never
// discloses whether the address was known.
func (s *Service) RequestOTP(ctx context.Context, input OTPRequestInput, meta RequestMeta) error {
	email := strings.TrimSpace(strings.ToLower(input.Email))
	if email == "" || !strings.Contains(email, "@") {
		return ErrValidation
	}

	if err := s.verifyCaptcha(ctx, meta); err != nil {
		return err
	}

	if _, err := s.identity.AdminGetUserByEmail(ctx, email); err != nil {
		if !identity.IsNotFound(err) {
			return ErrUpstream
		}

		placeholder, err := hashing.GenerateToken(32)
		if err != nil {
			return err
		}

		if _, err := s.identity.AdminCreateUser(ctx, email, placeholder, false); err != nil && !identity.IsDuplicate(err) {
			s.audit.Record(ctx, audit.Event{
				Action:     "otp_request",
				ActorEmail: email,
				Outcome:    audit.OutcomeError,
				Detail:     "just-in-time identity creation failed",
			})
			return ErrUpstream
		}

		if s.logger != nil {
			s.logger.Info("provisioned identity for otp login", zap.String("email", email))
		}
	}

	if err := s.identity.SendOTP(ctx, email, false); err != nil {
		s.audit.Record(ctx, audit.Event{
			Action:     "otp_request",
			ActorEmail: email,
			Outcome:    audit.OutcomeError,
			Detail:     "otp dispatch failed",
		})
		return ErrUpstream
	}

	s.audit.Record(ctx, audit.Event{
		Action:     "otp_request",
		ActorEmail: email,
		Outcome:    audit.OutcomeSuccess,
		Metadata:   map[string]any{"ip": meta.IP},
	})

	return nil
}

type OTPVerifyInput struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// VerifyOTP tries each plausible OTP purpose in priority order and
// accepts the first the provider verifies, then opens a session.
func (s *Service) VerifyOTP(ctx context.Context, input OTPVerifyInput, meta RequestMeta) (*AuthResult, error) {
	email := strings.TrimSpace(strings.ToLower(input.Email))
	if email == "" || input.Code == "" {
		return nil, ErrValidation
	}

	var providerSession *identity.Session
	for _, purpose := range otpPurposes {
		result, err := s.identity.VerifyOTP(ctx, email, input.Code, purpose)
		if err == nil {
			providerSession = result
			break
		}

		if identity.KindOf(err) == identity.KindUpstream {
			s.audit.Record(ctx, audit.Event{
				Action:     "otp_verify",
				ActorEmail: email,
				Outcome:    audit.OutcomeError,
				Detail:     "identity provider failure",
			})
			return nil, ErrUpstream
		}
	}

	if providerSession == nil {
		s.audit.Record(ctx, audit.Event{
			Action:     "otp_verify",
			ActorEmail: email,
			Outcome:    audit.OutcomeFailure,
			Detail:     "code rejected for all purposes",
			Metadata:   map[string]any{"ip": meta.IP},
		})
		return nil, ErrInvalidCredentials
	}

	result, err := s.establishSession(ctx, providerSession, meta)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Event{
		Action:     "otp_verify",
		ActorEmail: email,
		Outcome:    audit.OutcomeSuccess,
		ResourceID: providerSession.User.ID,
		Metadata:   map[string]any{"ip": meta.IP},
	})

	return result, nil
}
