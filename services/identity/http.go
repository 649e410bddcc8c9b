package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/maplecart/maplecart/config"
	"github.com/maplecart/maplecart/services/logging"
	"go.uber.org/zap"
)

// HTTPClient talks to a GoTrue-compatible identity API.
type HTTPClient struct {
	config *config.IdentityConfig
	http   *http.Client
	logger *logging.Service
}

func NewHTTPClient(cfg *config.IdentityConfig, logger *logging.Service) *HTTPClient {
	return &HTTPClient{
		config: cfg,
		http:   &http.Client{Timeout: cfg.RequestTimeout},
		logger: logger,
	}
}

func (c *HTTPClient) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	var session Session
	err := c.post(ctx, "/token?grant_type=password", map[string]any{
		"email":    email,
		"password": password,
	}, false, &session)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *HTTPClient) SignUp(ctx context.Context, email, password string) (*Session, error) {
	var session Session
	err := c.post(ctx, "/signup", map[string]any{
		"email":    email,
		"password": password,
	}, false, &session)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *HTTPClient) VerifyOTP(ctx context.Context, email, code, purpose string) (*Session, error) {
	var session Session
	err := c.post(ctx, "/verify", map[string]any{
		"email": email,
		"token": code,
		"type":  purpose,
	}, false, &session)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *HTTPClient) SendOTP(ctx context.Context, email string, shouldCreateUser bool) error {
	return c.post(ctx, "/otp", map[string]any{
		"email":       email,
		"create_user": shouldCreateUser,
	}, false, nil)
}

func (c *HTTPClient) RefreshSession(ctx context.Context, refreshToken string) (*Session, error) {
	var session Session
	err := c.post(ctx, "/token?grant_type=refresh_token", map[string]any{
		"refresh_token": refreshToken,
	}, false, &session)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *HTTPClient) ExchangeCode(ctx context.Context, authCode, codeVerifier string) (*Session, error) {
	var session Session
	err := c.post(ctx, "/token?grant_type=pkce", map[string]any{
		"auth_code":     authCode,
		"code_verifier": codeVerifier,
	}, false, &session)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *HTTPClient) AuthorizeURL(provider, redirectTo, codeChallenge string) string {
	query := url.Values{}
	query.Set("provider", provider)
	query.Set("redirect_to", redirectTo)
	query.Set("code_challenge", codeChallenge)
	query.Set("code_challenge_method", "s256")

	return fmt.Sprintf("%s/authorize?%s", strings.TrimRight(c.config.BaseURL, "/"), query.Encode())
}

func (c *HTTPClient) AdminCreateUser(ctx context.Context, email, password string, confirmEmail bool) (*User, error) {
	var user User
	err := c.post(ctx, "/admin/users", map[string]any{
		"email":         email,
		"password":      password,
		"email_confirm": confirmEmail,
	}, true, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *HTTPClient) AdminUpdatePassword(ctx context.Context, userID, newPassword string) error {
	return c.do(ctx, http.MethodPut, "/admin/users/"+url.PathEscape(userID), map[string]any{
		"password": newPassword,
	}, true, nil)
}

func (c *HTTPClient) AdminGetUserByEmail(ctx context.Context, email string) (*User, error) {
	var result struct {
		Users []User `json:"users"`
	}

	path := "/admin/users?filter=" + url.QueryEscape(email)
	if err := c.do(ctx, http.MethodGet, path, nil, true, &result); err != nil {
		return nil, err
	}

	for _, user := range result.Users {
		if strings.EqualFold(user.Email, email) {
			return &user, nil
		}
	}

	return nil, &Error{Kind: KindNotFound, Status: http.StatusNotFound, Message: "user not found"}
}

func (c *HTTPClient) post(ctx context.Context, path string, body map[string]any, admin bool, out any) error {
	return c.do(ctx, http.MethodPost, path, body, admin, out)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body map[string]any, admin bool, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode identity request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	endpoint := strings.TrimRight(c.config.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to build identity request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.config.AnonKey)
	if admin {
		req.Header.Set("Authorization", "Bearer "+c.config.ServiceKey)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.config.AnonKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if c.logger != nil {
			c.logger.Error("identity provider unreachable",
				zap.String("path", path),
				zap.Error(err))
		}
		return &Error{Kind: KindUpstream, Message: "identity provider unreachable"}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &Error{Kind: KindUpstream, Status: resp.StatusCode, Message: "failed to read identity response"}
	}

	if resp.StatusCode >= 400 {
		return c.classify(resp.StatusCode, respBody, path)
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return &Error{Kind: KindUpstream, Status: resp.StatusCode, Message: "unexpected identity response shape"}
		}
	}

	return nil
}

func (c *HTTPClient) classify(status int, body []byte, path string) error {
	var upstream struct {
		Message          string `json:"msg"`
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	_ = json.Unmarshal(body, &upstream)

	message := upstream.Message
	if message == "" {
		message = upstream.ErrorDescription
	}
	if message == "" {
		message = upstream.Error
	}
	if message == "" {
		message = http.StatusText(status)
	}

	if c.logger != nil {
		c.logger.Warn("identity provider rejected request",
			zap.String("path", path),
			zap.Int("status", status),
			zap.String("message", message))
	}

	lower := strings.ToLower(message)

	switch {
	case status == http.StatusNotFound:
		return &Error{Kind: KindNotFound, Status: status, Message: message}
	case status == http.StatusConflict,
		strings.Contains(lower, "already registered"),
		strings.Contains(lower, "already exists"):
		return &Error{Kind: KindDuplicate, Status: status, Message: message}
	case status == http.StatusUnauthorized,
		strings.Contains(lower, "invalid login credentials"),
		strings.Contains(lower, "invalid grant"),
		strings.Contains(lower, "otp"):
		return &Error{Kind: KindInvalidCredentials, Status: status, Message: message}
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return &Error{Kind: KindValidation, Status: status, Message: message}
	default:
		return &Error{Kind: KindUpstream, Status: status, Message: message}
	}
}
