package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/maplecart/maplecart/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewHTTPClient(&config.IdentityConfig{
		BaseURL:        server.URL,
		ServiceKey:     "service-key",
		AnonKey:        "anon-key",
		RequestTimeout: 5 * time.Second,
	}, nil)
}

func writeSession(w http.ResponseWriter) {
	_ = json.NewEncoder(w).Encode(Session{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		TokenType:    "bearer",
		ExpiresIn:    3600,
		User:         User{ID: "user-1", Email: "user@example.com"},
	})
}

func TestSignInWithPassword(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path + "?" + r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		writeSession(w)
	})

	session, err := client.SignInWithPassword(context.Background(), "user@example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, "access-1", session.AccessToken)
	assert.Equal(t, "user-1", session.User.ID)

	assert.Equal(t, "/token?grant_type=password", gotPath)
	assert.Equal(t, "Bearer anon-key", gotAuth, "user-facing calls use the anon key")
	assert.Equal(t, "user@example.com", gotBody["email"])
}

func TestSignInWithPasswordRejected(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error_description":"Invalid login credentials"}`))
	})

	_, err := client.SignInWithPassword(context.Background(), "user@example.com", "wrong")
	assert.True(t, IsInvalidCredentials(err))
}

func TestSignUpDuplicate(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"msg":"User already registered"}`))
	})

	_, err := client.SignUp(context.Background(), "taken@example.com", "hunter22")
	assert.True(t, IsDuplicate(err))
}

func TestSendOTPPayload(t *testing.T) {
	var gotBody map[string]any

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/otp", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, client.SendOTP(context.Background(), "user@example.com", false))
	assert.Equal(t, false, gotBody["create_user"])
}

func TestAdminCallsUseServiceKey(t *testing.T) {
	var gotAuth string

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(User{ID: "user-1", Email: "user@example.com"})
	})

	_, err := client.AdminCreateUser(context.Background(), "user@example.com", "placeholder", false)
	require.NoError(t, err)
	assert.Equal(t, "Bearer service-key", gotAuth)
}

func TestAdminGetUserByEmail(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "user@example.com", r.URL.Query().Get("filter"))
		_, _ = w.Write([]byte(`{"users":[{"id":"user-1","email":"User@Example.com"},{"id":"user-2","email":"other@example.com"}]}`))
	})

	user, err := client.AdminGetUserByEmail(context.Background(), "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, "user-1", user.ID, "email match is case-insensitive")
}

func TestAdminGetUserByEmailNoMatch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"users":[]}`))
	})

	_, err := client.AdminGetUserByEmail(context.Background(), "ghost@example.com")
	assert.True(t, IsNotFound(err))
}

func TestAuthorizeURL(t *testing.T) {
	client := NewHTTPClient(&config.IdentityConfig{BaseURL: "https://id.example.com/"}, nil)

	authorizeURL := client.AuthorizeURL("google", "https://app.example.com/callback", "challenge-123")
	assert.Contains(t, authorizeURL, "https://id.example.com/authorize?")
	assert.Contains(t, authorizeURL, "provider=google")
	assert.Contains(t, authorizeURL, "code_challenge=challenge-123")
	assert.Contains(t, authorizeURL, "code_challenge_method=s256")
}

func TestClassifyTaxonomy(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   Kind
	}{
		{"unauthorized", http.StatusUnauthorized, `{}`, KindInvalidCredentials},
		{"invalid grant", http.StatusBadRequest, `{"error_description":"invalid grant"}`, KindInvalidCredentials},
		{"not found", http.StatusNotFound, `{}`, KindNotFound},
		{"conflict", http.StatusConflict, `{}`, KindDuplicate},
		{"validation", http.StatusBadRequest, `{"msg":"password too short"}`, KindValidation},
		{"server error", http.StatusBadGateway, `{}`, KindUpstream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := client.SignInWithPassword(context.Background(), "user@example.com", "x")
			require.Error(t, err)
			assert.Equal(t, tt.want, KindOf(err))
		})
	}
}

func TestUnreachableProvider(t *testing.T) {
	client := NewHTTPClient(&config.IdentityConfig{
		BaseURL:        "http://127.0.0.1:1",
		RequestTimeout: time.Second,
	}, nil)

	_, err := client.SignInWithPassword(context.Background(), "user@example.com", "x")
	assert.Equal(t, KindUpstream, KindOf(err))
}
