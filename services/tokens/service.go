// Package tokens validates the access tokens minted by the identity
// provider. Access tokens are HS256 JWTs signed with a secret shared
// between the provider and this service; the JTI claim marks the
// rotation epoch a token belongs to.
package tokens

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/maplecart/maplecart/config"
	"github.com/maplecart/maplecart/services/logging"
	"go.uber.org/zap"
)

var (
	ErrInvalidToken   = errors.New("invalid access token")
	ErrExpiredToken   = errors.New("access token has expired")
	ErrMalformedToken = errors.New("malformed access token")
	ErrMissingJTI     = errors.New("access token missing jti claim")
)

type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

type Service struct {
	config *config.Config
	logger *logging.Service
}

func NewService(cfg *config.Config, logger *logging.Service) *Service {
	return &Service{
		config: cfg,
		logger: logger,
	}
}

// ValidateAccessToken parses and verifies a provider-issued access
// token and returns its claims. Subject carries the user id.
func (s *Service) ValidateAccessToken(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(s.config.Identity.JWTSecret), nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrMalformedToken
		default:
			if s.logger != nil {
				s.logger.Warn("access token validation failed", zap.Error(err))
			}
			return nil, ErrInvalidToken
		}
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// ExtractJTI returns the token's jti without requiring the token to
// still be within its validity window. Used to record the rotation
// epoch on a session row right after the provider issues the token.
func (s *Service) ExtractJTI(tokenString string) (string, error) {
	claims := &Claims{}

	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	_, _, err := parser.ParseUnverified(tokenString, claims)
	if err != nil {
		return "", ErrMalformedToken
	}

	if claims.ID == "" {
		return "", ErrMissingJTI
	}

	return claims.ID, nil
}
