package authflow

import (
	"context"
	"testing"
	"time"

	"github.com/maplecart/maplecart/config"
	"github.com/maplecart/maplecart/services/audit"
	"github.com/maplecart/maplecart/services/hashing"
	"github.com/maplecart/maplecart/services/identity"
	"github.com/maplecart/maplecart/services/ratelimit"
	"github.com/maplecart/maplecart/services/tokens"
	"github.com/maplecart/maplecart/session"
	"github.com/maplecart/maplecart/testutils"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type flowFixture struct {
	svc      *Service
	cfg      *config.Config
	db       *gorm.DB
	identity *testutils.MockIdentityClient
	mailer   *testutils.MockMailSender
	captcha  *testutils.MockCaptchaVerifier
	store    *session.Store
}

func newFlowFixture(t *testing.T) *flowFixture {
	t.Helper()

	cfg := testutils.GetTestConfig()
	db := testutils.SetupTestDB(t,
		&session.Session{},
		&PasswordResetToken{},
		&OAuthState{},
		&audit.Entry{},
		&ratelimit.RateLimitCounter{},
	)

	store := session.NewStore(db, nil)
	manager := session.NewManager(store, nil)
	guard := session.NewGuard(store, cfg, nil)
	auditService := audit.NewService(db, cfg, nil)
	limiter := ratelimit.NewService(cfg, ratelimit.NewGormStore(db), nil)
	identityClient := &testutils.MockIdentityClient{}
	mailer := &testutils.MockMailSender{}
	captchaVerifier := &testutils.MockCaptchaVerifier{}
	tokenService := tokens.NewService(cfg, nil)

	svc := NewService(cfg, db, identityClient, store, manager, guard,
		auditService, limiter, mailer, captchaVerifier, tokenService, nil)

	return &flowFixture{
		svc:      svc,
		cfg:      cfg,
		db:       db,
		identity: identityClient,
		mailer:   mailer,
		captcha:  captchaVerifier,
		store:    store,
	}
}

func (f *flowFixture) allowCaptcha() {
	f.captcha.On("Verify", mock.Anything, mock.Anything, mock.Anything).Return(nil)
}

// seedSession plants a live lineage with known raw refresh and CSRF
// tokens so cookie-driven flows can be exercised directly.
func (f *flowFixture) seedSession(t *testing.T, userID, rawRefresh, rawCSRF string) *session.Session {
	t.Helper()

	now := time.Now()
	sess := &session.Session{
		UserID:           userID,
		RefreshTokenHash: hashing.HashToken(rawRefresh),
		CSRFTokenHash:    hashing.HashToken(rawCSRF),
		IP:               "192.0.2.1",
		UserAgent:        "test-agent",
		CreatedAt:        now,
		ExpiresAt:        now.Add(time.Hour),
		LastSeenAt:       now,
	}
	require.NoError(t, f.store.Create(context.Background(), sess))
	return sess
}

func (f *flowFixture) auditEntries(t *testing.T, action string) []audit.Entry {
	t.Helper()

	var entries []audit.Entry
	require.NoError(t, f.db.Where("action = ?", action).Find(&entries).Error)
	return entries
}

func providerSession(userID, email, refreshToken string) *identity.Session {
	return &identity.Session{
		AccessToken:  "access-" + refreshToken,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
		ExpiresIn:    3600,
		User:         identity.User{ID: userID, Email: email},
	}
}

func identityError(kind identity.Kind) *identity.Error {
	return &identity.Error{Kind: kind, Status: 400, Message: string(kind)}
}

func testMeta() RequestMeta {
	return RequestMeta{
		IP:        "192.0.2.1",
		UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
	}
}
