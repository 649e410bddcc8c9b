package config

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnvVars(t *testing.T) {
	t.Helper()

	for _, entry := range os.Environ() {
		if strings.HasPrefix(entry, "MC_") {
			key := strings.SplitN(entry, "=", 2)[0]
			t.Setenv(key, "")
			os.Unsetenv(key)
		}
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnvVars(t)

	var cfg Config
	err := LoadConfig(&cfg)
	require.NoError(t, err)

	assert.Equal(t, "maplecart", cfg.App.Name)
	assert.Equal(t, "development", cfg.App.Environment)
	assert.False(t, cfg.App.IsProduction())
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 10*time.Second, cfg.Identity.RequestTimeout)
	assert.Equal(t, "mc_refresh_token", cfg.Session.RefreshCookieName)
	assert.Equal(t, "mc_csrf_token", cfg.Session.CSRFCookieName)
	assert.Equal(t, 168*time.Hour, cfg.Session.RefreshExpiry)
	assert.Equal(t, 32, cfg.Session.TokenLength)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, "database", cfg.RateLimit.Store)
	assert.True(t, cfg.RateLimit.FailOpen)
	assert.Equal(t, 10, cfg.RateLimit.Login.Limit)
	assert.Equal(t, time.Minute, cfg.RateLimit.Login.Window)
	assert.Equal(t, 365, cfg.Audit.RetentionDays)
	assert.Equal(t, 24*time.Hour, cfg.Audit.CleanupInterval)
	assert.Equal(t, []string{"google", "github"}, cfg.OAuth.Providers)
	assert.Equal(t, 10*time.Minute, cfg.OAuth.StateExpiry)
}

func TestLoadConfig_EnvironmentVariables(t *testing.T) {
	clearEnvVars(t)

	t.Setenv("MC_APP_ENV", "production")
	t.Setenv("MC_SERVER_PORT", "9000")
	t.Setenv("MC_IDENTITY_BASE_URL", "https://id.example.com")
	t.Setenv("MC_IDENTITY_JWT_SECRET", "supersecret")
	t.Setenv("MC_SESSION_REFRESH_EXPIRY", "24h")
	t.Setenv("MC_RATELIMIT_STORE", "redis")
	t.Setenv("MC_RATELIMIT_LOGIN_LIMIT", "3")
	t.Setenv("MC_RATELIMIT_LOGIN_WINDOW", "30s")
	t.Setenv("MC_OAUTH_PROVIDERS", "google,apple")

	var cfg Config
	err := LoadConfig(&cfg)
	require.NoError(t, err)

	assert.True(t, cfg.App.IsProduction())
	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "https://id.example.com", cfg.Identity.BaseURL)
	assert.Equal(t, "supersecret", cfg.Identity.JWTSecret)
	assert.Equal(t, 24*time.Hour, cfg.Session.RefreshExpiry)
	assert.Equal(t, "redis", cfg.RateLimit.Store)
	assert.Equal(t, 3, cfg.RateLimit.Login.Limit)
	assert.Equal(t, 30*time.Second, cfg.RateLimit.Login.Window)
	assert.Equal(t, []string{"google", "apple"}, cfg.OAuth.Providers)
}
