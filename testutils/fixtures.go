package testutils

import (
	"time"

	"github.com/maplecart/maplecart/config"
)

func GetTestConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Name:        "maplecart test",
			URL:         "http://localhost:3000",
			Environment: "test",
		},
		Database: config.DatabaseConfig{
			Driver: "sqlite",
			DSN:    ":memory:",
		},
		Identity: config.IdentityConfig{
			BaseURL:        "http://localhost:9999",
			ServiceKey:     "test-service-key",
			AnonKey:        "test-anon-key",
			JWTSecret:      "test-jwt-secret-32-chars-long!!!",
			RequestTimeout: 5 * time.Second,
		},
		Session: config.SessionConfig{
			RefreshCookieName: "mc_refresh_token",
			CSRFCookieName:    "mc_csrf_token",
			RefreshExpiry:     7 * 24 * time.Hour,
			CookiePath:        "/",
			TokenLength:       32,
		},
		RateLimit: config.RateLimitConfig{
			Enabled:  true,
			Store:    "database",
			FailOpen: true,
			Login:    config.Rule{Limit: 5, Window: time.Minute},
			Register: config.Rule{Limit: 5, Window: time.Minute},
			OTP:      config.Rule{Limit: 5, Window: time.Minute},
			Reset:    config.Rule{Limit: 3, Window: time.Minute},
			Refresh:  config.Rule{Limit: 30, Window: time.Minute},
			OAuth:    config.Rule{Limit: 10, Window: time.Minute},
		},
		Audit: config.AuditConfig{
			RetentionDays:   365,
			CleanupInterval: 24 * time.Hour,
		},
		OAuth: config.OAuthConfig{
			Providers:     []string{"google", "github"},
			RedirectURL:   "http://localhost:8080/api/auth/oauth/callback",
			StateExpiry:   10 * time.Minute,
			SuccessPath:   "/",
			FailurePath:   "/login?error=oauth",
			VerifierBytes: 32,
		},
	}
}
