// Package hashing provides one-way digests for opaque credentials
// (refresh tokens, CSRF tokens, password reset tokens) so raw secrets
// are never stored at rest.
package hashing

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
)

var ErrTokenGenerationFailed = errors.New("failed to generate secure token")

// HashToken returns the hex-encoded SHA-256 digest of the secret.
func HashToken(secret string) string {
	hash := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(hash[:])
}

// GenerateToken returns a URL-safe random token built from length
// bytes of entropy.
func GenerateToken(length int) (string, error) {
	if length <= 0 {
		length = 32
	}

	tokenBytes := make([]byte, length)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", ErrTokenGenerationFailed
	}
	return base64.RawURLEncoding.EncodeToString(tokenBytes), nil
}

// Matches reports whether the secret hashes to digest, comparing in
// constant time.
func Matches(secret, digest string) bool {
	if digest == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(HashToken(secret)), []byte(digest)) == 1
}
