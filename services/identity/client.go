// Package identity wraps the external identity provider. The
// provider owns password hashing, credential storage and OTP
// issuance; this package only speaks its HTTP API and normalizes its
// failures into a small error taxonomy the orchestrators can branch
// on.
package identity

import (
	"context"
	"errors"
	"fmt"
)

// OTP purposes accepted by the provider's verify endpoint, in the
// priority order the verify orchestrator tries them.
const (
	PurposeEmail     = "email"
	PurposeMagicLink = "magiclink"
	PurposeSignup    = "signup"
)

type Kind string

const (
	KindInvalidCredentials Kind = "invalid_credentials"
	KindDuplicate          Kind = "duplicate"
	KindNotFound           Kind = "not_found"
	KindValidation         Kind = "validation"
	KindUpstream           Kind = "upstream"
)

type Error struct {
	Kind    Kind
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("identity provider error (%s): %s", e.Kind, e.Message)
}

func KindOf(err error) Kind {
	var identityErr *Error
	if errors.As(err, &identityErr) {
		return identityErr.Kind
	}
	return KindUpstream
}

func IsInvalidCredentials(err error) bool { return KindOf(err) == KindInvalidCredentials }
func IsDuplicate(err error) bool          { return KindOf(err) == KindDuplicate }
func IsNotFound(err error) bool           { return KindOf(err) == KindNotFound }

// User is the minimal identity the rest of the system needs.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session is the provider's issued token pair plus the authenticated
// user. The refresh token is mirrored (hashed) into our own session
// store; the access token goes back to the client.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	User         User   `json:"user"`
}

type Client interface {
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	SignUp(ctx context.Context, email, password string) (*Session, error)
	VerifyOTP(ctx context.Context, email, code, purpose string) (*Session, error)
	SendOTP(ctx context.Context, email string, shouldCreateUser bool) error
	RefreshSession(ctx context.Context, refreshToken string) (*Session, error)
	ExchangeCode(ctx context.Context, authCode, codeVerifier string) (*Session, error)
	AuthorizeURL(provider, redirectTo, codeChallenge string) string
	AdminCreateUser(ctx context.Context, email, password string, confirmEmail bool) (*User, error)
	AdminUpdatePassword(ctx context.Context, userID, newPassword string) error
	AdminGetUserByEmail(ctx context.Context, email string) (*User, error)
}
