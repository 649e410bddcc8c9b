package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig       `envPrefix:"MC_APP_"`
	Server    ServerConfig    `envPrefix:"MC_SERVER_"`
	Log       LogConfig       `envPrefix:"MC_LOG_"`
	Database  DatabaseConfig  `envPrefix:"MC_DATABASE_"`
	Identity  IdentityConfig  `envPrefix:"MC_IDENTITY_"`
	Session   SessionConfig   `envPrefix:"MC_SESSION_"`
	RateLimit RateLimitConfig `envPrefix:"MC_RATELIMIT_"`
	Audit     AuditConfig     `envPrefix:"MC_AUDIT_"`
	Mail      MailConfig      `envPrefix:"MC_MAIL_"`
	Captcha   CaptchaConfig   `envPrefix:"MC_CAPTCHA_"`
	OAuth     OAuthConfig     `envPrefix:"MC_OAUTH_"`
}

type AppConfig struct {
	Name        string `env:"NAME" envDefault:"maplecart"`
	URL         string `env:"URL" envDefault:"http://localhost:3000"`
	Environment string `env:"ENV" envDefault:"development"`
}

func (a AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

type ServerConfig struct {
	Port string `env:"PORT" envDefault:"8080"`
	Host string `env:"HOST" envDefault:"localhost"`
}

type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
	Output string `env:"OUTPUT" envDefault:"stdout"`
}

type DatabaseConfig struct {
	Driver      string `env:"DRIVER" envDefault:"sqlite"`
	DSN         string `env:"DSN" envDefault:"maplecart.db"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"true"`
}

type IdentityConfig struct {
	BaseURL        string        `env:"BASE_URL"`
	ServiceKey     string        `env:"SERVICE_KEY"`
	AnonKey        string        `env:"ANON_KEY"`
	JWTSecret      string        `env:"JWT_SECRET"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"10s"`
}

type SessionConfig struct {
	RefreshCookieName string        `env:"REFRESH_COOKIE_NAME" envDefault:"mc_refresh_token"`
	CSRFCookieName    string        `env:"CSRF_COOKIE_NAME" envDefault:"mc_csrf_token"`
	RefreshExpiry     time.Duration `env:"REFRESH_EXPIRY" envDefault:"168h"`
	CookiePath        string        `env:"COOKIE_PATH" envDefault:"/"`
	CookieDomain      string        `env:"COOKIE_DOMAIN"`
	TokenLength       int           `env:"TOKEN_LENGTH" envDefault:"32"`
}

type RateLimitConfig struct {
	Enabled  bool   `env:"ENABLED" envDefault:"true"`
	Store    string `env:"STORE" envDefault:"database"`
	RedisURL string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	FailOpen bool   `env:"FAIL_OPEN" envDefault:"true"`
	Login    Rule   `envPrefix:"LOGIN_"`
	Register Rule   `envPrefix:"REGISTER_"`
	OTP      Rule   `envPrefix:"OTP_"`
	Reset    Rule   `envPrefix:"RESET_"`
	Refresh  Rule   `envPrefix:"REFRESH_"`
	OAuth    Rule   `envPrefix:"OAUTH_"`
}

type Rule struct {
	Limit  int           `env:"LIMIT" envDefault:"10"`
	Window time.Duration `env:"WINDOW" envDefault:"1m"`
}

type AuditConfig struct {
	RetentionDays   int           `env:"RETENTION_DAYS" envDefault:"365"`
	CleanupInterval time.Duration `env:"CLEANUP_INTERVAL" envDefault:"24h"`
}

type MailConfig struct {
	Host        string `env:"HOST" envDefault:"localhost"`
	Port        int    `env:"PORT" envDefault:"587"`
	Username    string `env:"USERNAME"`
	Password    string `env:"PASSWORD"`
	Encryption  string `env:"ENCRYPTION" envDefault:"starttls"`
	FromAddress string `env:"FROM_ADDRESS" envDefault:"no-reply@maplecart.local"`
	FromName    string `env:"FROM_NAME" envDefault:"maplecart"`
}

type CaptchaConfig struct {
	Secret    string        `env:"SECRET"`
	VerifyURL string        `env:"VERIFY_URL" envDefault:"https://challenges.cloudflare.com/turnstile/v0/siteverify"`
	Timeout   time.Duration `env:"TIMEOUT" envDefault:"5s"`
}

type OAuthConfig struct {
	Providers     []string      `env:"PROVIDERS" envSeparator:"," envDefault:"google,github"`
	RedirectURL   string        `env:"REDIRECT_URL" envDefault:"http://localhost:8080/api/auth/oauth/callback"`
	StateExpiry   time.Duration `env:"STATE_EXPIRY" envDefault:"10m"`
	SuccessPath   string        `env:"SUCCESS_PATH" envDefault:"/"`
	FailurePath   string        `env:"FAILURE_PATH" envDefault:"/login?error=oauth"`
	VerifierBytes int           `env:"VERIFIER_BYTES" envDefault:"32"`
}

func LoadConfig(cfg any) error {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
	}

	return env.Parse(cfg)
}
