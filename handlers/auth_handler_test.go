package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/maplecart/maplecart/config"
	"github.com/maplecart/maplecart/services/audit"
	"github.com/maplecart/maplecart/services/authflow"
	"github.com/maplecart/maplecart/services/hashing"
	"github.com/maplecart/maplecart/services/identity"
	"github.com/maplecart/maplecart/services/ratelimit"
	"github.com/maplecart/maplecart/services/tokens"
	"github.com/maplecart/maplecart/session"
	"github.com/maplecart/maplecart/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type apiFixture struct {
	e        *echo.Echo
	cfg      *config.Config
	db       *gorm.DB
	identity *testutils.MockIdentityClient
	mailer   *testutils.MockMailSender
	captcha  *testutils.MockCaptchaVerifier
	store    *session.Store
	tokens   *tokens.Service
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	cfg := testutils.GetTestConfig()
	db := testutils.SetupTestDB(t,
		&session.Session{},
		&authflow.PasswordResetToken{},
		&authflow.OAuthState{},
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
	captchaVerifier.On("Verify", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	tokenService := tokens.NewService(cfg, nil)

	flows := authflow.NewService(cfg, db, identityClient, store, manager, guard,
		auditService, limiter, mailer, captchaVerifier, tokenService, nil)

	e := echo.New()
	RegisterRoutes(e, NewAuthHandler(cfg, flows, nil), NewSessionHandler(cfg, flows), limiter, tokenService)

	return &apiFixture{
		e:        e,
		cfg:      cfg,
		db:       db,
		identity: identityClient,
		mailer:   mailer,
		captcha:  captchaVerifier,
		store:    store,
		tokens:   tokenService,
	}
}

func (f *apiFixture) request(method, path, body string, modify func(*http.Request)) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if modify != nil {
		modify(req)
	}

	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func cookieByName(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}

func testSession(userID, email, refreshToken string) *identity.Session {
	return &identity.Session{
		AccessToken:  "access-" + refreshToken,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
		ExpiresIn:    3600,
		User:         identity.User{ID: userID, Email: email},
	}
}

func TestLoginEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	f.identity.On("SignInWithPassword", mock.Anything, "user@example.com", "hunter22").
		Return(testSession("user-1", "user@example.com", "refresh-1"), nil)

	rec := f.request(http.MethodPost, "/api/auth/login",
		`{"email":"user@example.com","password":"hunter22"}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "access-refresh-1", body["access_token"])
	assert.Equal(t, "user-1", body["user_id"])
	assert.NotContains(t, body, "refresh_token", "the refresh token travels only in the cookie")

	refreshCookie := cookieByName(rec, f.cfg.Session.RefreshCookieName)
	require.NotNil(t, refreshCookie)
	assert.Equal(t, "refresh-1", refreshCookie.Value)
	assert.True(t, refreshCookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, refreshCookie.SameSite)

	csrfCookie := cookieByName(rec, f.cfg.Session.CSRFCookieName)
	require.NotNil(t, csrfCookie)
	assert.False(t, csrfCookie.HttpOnly, "the double-submit cookie must be script readable")
	assert.NotEmpty(t, csrfCookie.Value)
}

func TestLoginEndpointInvalidCredentials(t *testing.T) {
	f := newAPIFixture(t)

	f.identity.On("SignInWithPassword", mock.Anything, "user@example.com", "wrong").
		Return(nil, &identity.Error{Kind: identity.KindInvalidCredentials, Status: 400, Message: "nope"})

	rec := f.request(http.MethodPost, "/api/auth/login",
		`{"email":"user@example.com","password":"wrong"}`, nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, cookieByName(rec, f.cfg.Session.RefreshCookieName))
}

func TestLoginEndpointRateLimited(t *testing.T) {
	f := newAPIFixture(t)

	f.identity.On("SignInWithPassword", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, &identity.Error{Kind: identity.KindInvalidCredentials, Status: 400, Message: "nope"})

	for i := 0; i < f.cfg.RateLimit.Login.Limit; i++ {
		rec := f.request(http.MethodPost, "/api/auth/login",
			`{"email":"user@example.com","password":"wrong"}`, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	rec := f.request(http.MethodPost, "/api/auth/login",
		`{"email":"user@example.com","password":"wrong"}`, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestRegisterEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	f.identity.On("SignUp", mock.Anything, "new@example.com", "hunter22").
		Return(testSession("user-2", "new@example.com", "refresh-2"), nil)

	rec := f.request(http.MethodPost, "/api/auth/register",
		`{"email":"new@example.com","password":"hunter22"}`, nil)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.NotNil(t, cookieByName(rec, f.cfg.Session.RefreshCookieName))
}

func TestRegisterEndpointDuplicate(t *testing.T) {
	f := newAPIFixture(t)

	f.identity.On("SignUp", mock.Anything, "taken@example.com", "hunter22").
		Return(nil, &identity.Error{Kind: identity.KindDuplicate, Status: 422, Message: "already registered"})

	rec := f.request(http.MethodPost, "/api/auth/register",
		`{"email":"taken@example.com","password":"hunter22"}`, nil)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func loginForCookies(t *testing.T, f *apiFixture) (refresh, csrf string) {
	t.Helper()

	f.identity.On("SignInWithPassword", mock.Anything, "user@example.com", "hunter22").
		Return(testSession("user-1", "user@example.com", "refresh-1"), nil)

	rec := f.request(http.MethodPost, "/api/auth/login",
		`{"email":"user@example.com","password":"hunter22"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	refreshCookie := cookieByName(rec, f.cfg.Session.RefreshCookieName)
	csrfCookie := cookieByName(rec, f.cfg.Session.CSRFCookieName)
	require.NotNil(t, refreshCookie)
	require.NotNil(t, csrfCookie)
	return refreshCookie.Value, csrfCookie.Value
}

func TestLogoutWithoutCSRF(t *testing.T) {
	f := newAPIFixture(t)
	refresh, _ := loginForCookies(t, f)

	rec := f.request(http.MethodPost, "/api/auth/logout", "", func(req *http.Request) {
		req.AddCookie(&http.Cookie{Name: f.cfg.Session.RefreshCookieName, Value: refresh})
	})

	assert.Equal(t, http.StatusForbidden, rec.Code)

	// The session survives.
	sess, err := f.store.FindByRefreshHash(context.Background(), hashing.HashToken(refresh))
	require.NoError(t, err)
	assert.Nil(t, sess.RevokedAt)
}

func TestLogoutWithCSRF(t *testing.T) {
	f := newAPIFixture(t)
	refresh, csrf := loginForCookies(t, f)

	rec := f.request(http.MethodPost, "/api/auth/logout", "", func(req *http.Request) {
		req.AddCookie(&http.Cookie{Name: f.cfg.Session.RefreshCookieName, Value: refresh})
		req.Header.Set(csrfHeaderName, csrf)
	})

	require.Equal(t, http.StatusOK, rec.Code)

	refreshCookie := cookieByName(rec, f.cfg.Session.RefreshCookieName)
	require.NotNil(t, refreshCookie)
	assert.Less(t, refreshCookie.MaxAge, 0, "the refresh cookie must be cleared")

	sess, err := f.store.FindByRefreshHash(context.Background(), hashing.HashToken(refresh))
	require.NoError(t, err)
	assert.NotNil(t, sess.RevokedAt)
}

func TestLogoutWithoutCookieIsIdempotent(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.request(http.MethodPost, "/api/auth/logout", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	refreshCookie := cookieByName(rec, f.cfg.Session.RefreshCookieName)
	require.NotNil(t, refreshCookie)
	assert.Less(t, refreshCookie.MaxAge, 0)
}

func TestRefreshEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	refresh, csrf := loginForCookies(t, f)

	f.identity.On("RefreshSession", mock.Anything, refresh).
		Return(testSession("user-1", "user@example.com", "refresh-2"), nil)

	rec := f.request(http.MethodPost, "/api/auth/refresh", "", func(req *http.Request) {
		req.AddCookie(&http.Cookie{Name: f.cfg.Session.RefreshCookieName, Value: refresh})
		req.Header.Set(csrfHeaderName, csrf)
	})

	require.Equal(t, http.StatusOK, rec.Code)

	newRefresh := cookieByName(rec, f.cfg.Session.RefreshCookieName)
	require.NotNil(t, newRefresh)
	assert.Equal(t, "refresh-2", newRefresh.Value)

	newCSRF := cookieByName(rec, f.cfg.Session.CSRFCookieName)
	require.NotNil(t, newCSRF)
	assert.NotEqual(t, csrf, newCSRF.Value, "the CSRF token rotates with the refresh")
}

func TestRefreshEndpointReplay(t *testing.T) {
	f := newAPIFixture(t)
	refresh, csrf := loginForCookies(t, f)

	f.identity.On("RefreshSession", mock.Anything, refresh).
		Return(testSession("user-1", "user@example.com", "refresh-2"), nil)

	rec := f.request(http.MethodPost, "/api/auth/refresh", "", func(req *http.Request) {
		req.AddCookie(&http.Cookie{Name: f.cfg.Session.RefreshCookieName, Value: refresh})
		req.Header.Set(csrfHeaderName, csrf)
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// Replaying the superseded cookie is a 401 and kills the lineage.
	rec = f.request(http.MethodPost, "/api/auth/refresh", "", func(req *http.Request) {
		req.AddCookie(&http.Cookie{Name: f.cfg.Session.RefreshCookieName, Value: refresh})
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	active, err := f.store.ListActiveForUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestPasswordResetRequestAlwaysSucceeds(t *testing.T) {
	f := newAPIFixture(t)

	f.identity.On("AdminGetUserByEmail", mock.Anything, "known@example.com").
		Return(&identity.User{ID: "user-1", Email: "known@example.com"}, nil)
	f.identity.On("AdminGetUserByEmail", mock.Anything, "ghost@example.com").
		Return(nil, &identity.Error{Kind: identity.KindNotFound, Status: 404, Message: "user not found"})
	f.mailer.On("SendPasswordReset", "known@example.com", mock.Anything).Return(nil)

	known := f.request(http.MethodPost, "/api/auth/password-reset/request",
		`{"email":"known@example.com"}`, nil)
	unknown := f.request(http.MethodPost, "/api/auth/password-reset/request",
		`{"email":"ghost@example.com"}`, nil)

	assert.Equal(t, http.StatusOK, known.Code)
	assert.Equal(t, http.StatusOK, unknown.Code)
	assert.JSONEq(t, known.Body.String(), unknown.Body.String(),
		"known and unknown addresses must be indistinguishable")
}

func TestOTPRequestEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	f.identity.On("AdminGetUserByEmail", mock.Anything, "user@example.com").
		Return(&identity.User{ID: "user-1", Email: "user@example.com"}, nil)
	f.identity.On("SendOTP", mock.Anything, "user@example.com", false).Return(nil)

	rec := f.request(http.MethodPost, "/api/auth/otp/request",
		`{"email":"user@example.com"}`, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOTPVerifyEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	f.identity.On("VerifyOTP", mock.Anything, "user@example.com", "123456", identity.PurposeEmail).
		Return(testSession("user-1", "user@example.com", "refresh-otp"), nil)

	rec := f.request(http.MethodPost, "/api/auth/otp/verify",
		`{"email":"user@example.com","code":"123456"}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotNil(t, cookieByName(rec, f.cfg.Session.RefreshCookieName))
}

func TestOAuthStartEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	f.identity.On("AuthorizeURL", "google", mock.Anything, mock.Anything).
		Return("https://id.example.com/authorize?provider=google")

	rec := f.request(http.MethodGet, "/api/auth/oauth/start?provider=google", "", nil)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://id.example.com/authorize?provider=google", rec.Header().Get("Location"))
}

func TestOAuthCallbackFailureRedirects(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.request(http.MethodGet, "/api/auth/oauth/callback?state=bogus&code=x", "", nil)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, f.cfg.App.URL+f.cfg.OAuth.FailurePath, rec.Header().Get("Location"))
}

func signAccessToken(t *testing.T, f *apiFixture, userID string) string {
	t.Helper()

	claims := jwt.MapClaims{
		"sub": userID,
		"jti": "jti-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(f.cfg.Identity.JWTSecret))
	require.NoError(t, err)
	return signed
}

func TestSessionsEndpointRequiresAuth(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.request(http.MethodGet, "/api/auth/sessions", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSessionsListAndRevoke(t *testing.T) {
	f := newAPIFixture(t)
	refresh, _ := loginForCookies(t, f)
	access := signAccessToken(t, f, "user-1")

	rec := f.request(http.MethodGet, "/api/auth/sessions", "", func(req *http.Request) {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+access)
		req.AddCookie(&http.Cookie{Name: f.cfg.Session.RefreshCookieName, Value: refresh})
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Sessions []struct {
			ID      uint `json:"id"`
			Current bool `json:"current"`
		} `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Sessions, 1)
	assert.True(t, body.Sessions[0].Current)

	rec = f.request(http.MethodPost, "/api/auth/sessions/revoke",
		`{"session_id":"`+strconv.Itoa(int(body.Sessions[0].ID))+`"}`, func(req *http.Request) {
			req.Header.Set(echo.HeaderAuthorization, "Bearer "+access)
		})
	assert.Equal(t, http.StatusOK, rec.Code)

	active, err := f.store.ListActiveForUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestHealthz(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.request(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
