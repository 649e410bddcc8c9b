package authflow

import (
	"context"
	"strings"

	"github.com/maplecart/maplecart/services/audit"
	"github.com/maplecart/maplecart/services/identity"
)

type RegisterInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates the identity account and opens a session exactly
// as login does. A duplicate email surfaces as a conflict, distinct
// from generic failure.
func (s *Service) Register(ctx context.Context, input RegisterInput, meta RequestMeta) (*AuthResult, error) {
	email := strings.TrimSpace(strings.ToLower(input.Email))
	if email == "" || !strings.Contains(email, "@") || input.Password == "" {
		return nil, ErrValidation
	}

	if err := s.verifyCaptcha(ctx, meta); err != nil {
		return nil, err
	}

	providerSession, err := s.identity.SignUp(ctx, email, input.Password)
	if err != nil {
		switch identity.KindOf(err) {
		case identity.KindDuplicate:
			s.audit.Record(ctx, audit.Event{
				Action:     "register",
				ActorEmail: email,
				Outcome:    audit.OutcomeConflict,
				Detail:     "email already registered",
				Metadata:   map[string]any{"ip": meta.IP},
			})
			return nil, ErrConflict
		case identity.KindValidation:
			return nil, ErrValidation
		default:
			s.audit.Record(ctx, audit.Event{
				Action:     "register",
				ActorEmail: email,
				Outcome:    audit.OutcomeError,
				Detail:     "identity provider failure",
				Metadata:   map[string]any{"ip": meta.IP},
			})
			return nil, ErrUpstream
		}
	}

	result, err := s.establishSession(ctx, providerSession, meta)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Event{
		Action:     "register",
		ActorEmail: email,
		Outcome:    audit.OutcomeSuccess,
		ResourceID: providerSession.User.ID,
		Metadata:   map[string]any{"ip": meta.IP},
	})

	return result, nil
}
