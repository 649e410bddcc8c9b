package authflow

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/maplecart/maplecart/services/audit"
	"github.com/maplecart/maplecart/services/hashing"
)

// StartOAuth prepares an authorization-code-with-PKCE redirect: a
// random state, a stored code verifier, and the provider's authorize
// URL carrying the S256 challenge.
func (s *Service) StartOAuth(ctx context.Context, provider string, meta RequestMeta) (string, error) {
	if !slices.Contains(s.config.OAuth.Providers, provider) {
		return "", ErrValidation
	}

	verifier, err := hashing.GenerateToken(s.config.OAuth.VerifierBytes)
	if err != nil {
		return "", err
	}

	state := uuid.New().String()
	record := OAuthState{
		State:        state,
		Provider:     provider,
		CodeVerifier: verifier,
		ExpiresAt:    time.Now().Add(s.config.OAuth.StateExpiry),
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return "", fmt.Errorf("failed to store oauth state: %w", err)
	}

	challenge := sha256.Sum256([]byte(verifier))
	redirectTo := fmt.Sprintf("%s?state=%s", s.config.OAuth.RedirectURL, state)

	s.audit.Record(ctx, audit.Event{
		Action:  "oauth_start",
		Outcome: audit.OutcomeSuccess,
		Metadata: map[string]any{
			"provider": provider,
			"ip":       meta.IP,
		},
	})

	return s.identity.AuthorizeURL(provider, redirectTo, base64.RawURLEncoding.EncodeToString(challenge[:])), nil
}

// CompleteOAuth consumes the state row, exchanges the authorization
// code with the stored PKCE verifier, and opens a session.
func (s *Service) CompleteOAuth(ctx context.Context, state, code string, meta RequestMeta) (*AuthResult, error) {
	if state == "" || code == "" {
		return nil, ErrValidation
	}

	var record OAuthState
	err := s.db.WithContext(ctx).Where("state = ?", state).First(&record).Error
	if err != nil {
		return nil, ErrUnauthorized
	}

	if record.Used || time.Now().After(record.ExpiresAt) {
		return nil, ErrUnauthorized
	}

	// Consume the state exactly once even under concurrent callbacks.
	result := s.db.WithContext(ctx).Model(&OAuthState{}).
		Where("id = ? AND used = ?", record.ID, false).
		Update("used", true)
	if result.Error != nil || result.RowsAffected == 0 {
		return nil, ErrUnauthorized
	}

	providerSession, err := s.identity.ExchangeCode(ctx, code, record.CodeVerifier)
	if err != nil {
		s.audit.Record(ctx, audit.Event{
			Action:  "oauth_callback",
			Outcome: audit.OutcomeFailure,
			Detail:  "authorization code exchange rejected",
			Metadata: map[string]any{
				"provider": record.Provider,
				"ip":       meta.IP,
			},
		})
		return nil, ErrUnauthorized
	}

	authResult, err := s.establishSession(ctx, providerSession, meta)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Event{
		Action:     "oauth_callback",
		ActorEmail: providerSession.User.Email,
		Outcome:    audit.OutcomeSuccess,
		ResourceID: providerSession.User.ID,
		Metadata: map[string]any{
			"provider": record.Provider,
			"ip":       meta.IP,
		},
	})

	return authResult, nil
}
