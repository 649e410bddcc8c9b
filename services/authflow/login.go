package authflow

import (
	"context"
	"strings"

	"github.com/maplecart/maplecart/services/audit"
	"github.com/maplecart/maplecart/services/identity"
)

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login verifies credentials with the identity provider and, on
// success, opens a new session lineage. The failure audit entry never
// records which of email or password was wrong.
func (s *Service) Login(ctx context.Context, input LoginInput, meta RequestMeta) (*AuthResult, error) {
	email := strings.TrimSpace(strings.ToLower(input.Email))
	if email == "" || input.Password == "" {
		return nil, ErrValidation
	}

	if err := s.verifyCaptcha(ctx, meta); err != nil {
		return nil, err
	}

	providerSession, err := s.identity.SignInWithPassword(ctx, email, input.Password)
	if err != nil {
		if identity.IsInvalidCredentials(err) || identity.KindOf(err) == identity.KindValidation {
			s.audit.Record(ctx, audit.Event{
				Action:     "login",
				ActorEmail: email,
				Outcome:    audit.OutcomeFailure,
				Detail:     "invalid credentials",
				Metadata:   map[string]any{"ip": meta.IP},
			})
			return nil, ErrInvalidCredentials
		}

		s.audit.Record(ctx, audit.Event{
			Action:     "login",
			ActorEmail: email,
			Outcome:    audit.OutcomeError,
			Detail:     "identity provider failure",
			Metadata:   map[string]any{"ip": meta.IP},
		})
		return nil, ErrUpstream
	}

	result, err := s.establishSession(ctx, providerSession, meta)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Event{
		Action:     "login",
		ActorEmail: email,
		Outcome:    audit.OutcomeSuccess,
		ResourceID: providerSession.User.ID,
		Metadata: map[string]any{
			"ip":     meta.IP,
			"device": deviceName(meta.UserAgent),
		},
	})

	return result, nil
}
