package authflow

import (
	"time"
)

// PasswordResetToken is a one-time credential-reset capability. The
// user id stays nullable so requesting a reset for an unknown email
// never behaves observably differently from a known one.
type PasswordResetToken struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    *string   `json:"user_id,omitempty" gorm:"size:36;index"`
	Email     string    `json:"email" gorm:"size:255;not null;index"`
	TokenHash string    `json:"-" gorm:"size:64;uniqueIndex;not null"`
	ExpiresAt time.Time `json:"expires_at" gorm:"not null"`
	Used      bool      `json:"used" gorm:"not null;default:false"`
	CreatedAt time.Time `json:"created_at"`
}

func (PasswordResetToken) TableName() string {
	return "password_reset_tokens"
}

// OAuthState holds the PKCE verifier for one authorization redirect,
// matched back by the opaque state value at callback time.
type OAuthState struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	State        string    `json:"state" gorm:"size:64;uniqueIndex;not null"`
	Provider     string    `json:"provider" gorm:"size:32;not null"`
	CodeVerifier string    `json:"-" gorm:"size:128;not null"`
	ExpiresAt    time.Time `json:"expires_at" gorm:"not null"`
	Used         bool      `json:"used" gorm:"not null;default:false"`
	CreatedAt    time.Time `json:"created_at"`
}

func (OAuthState) TableName() string {
	return "oauth_states"
}

// RequestMeta carries the per-request client context the flows need.
type RequestMeta struct {
	IP           string
	UserAgent    string
	CaptchaToken string
}

// AuthResult is what a successful authentication flow hands back to
// the HTTP layer: the access token for the response body plus the
// cookie material.
type AuthResult struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	UserID       string `json:"user_id"`
	RefreshToken string `json:"-"`
	CSRFToken    string `json:"-"`
	SessionID    uint   `json:"-"`
}
