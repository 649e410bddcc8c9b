// Package captcha verifies bot-challenge tokens. With no secret
// configured the verifier skips outside production and denies in
// production, so a misconfigured deployment fails closed where it
// matters.
package captcha

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/maplecart/maplecart/config"
	"github.com/maplecart/maplecart/services/logging"
	"go.uber.org/zap"
)

var (
	ErrChallengeFailed = errors.New("captcha challenge failed")
	ErrNotConfigured   = errors.New("captcha verifier not configured")
)

type Verifier interface {
	Verify(ctx context.Context, token, ip string) error
}

type Service struct {
	config *config.Config
	http   *http.Client
	logger *logging.Service
}

func NewService(cfg *config.Config, logger *logging.Service) *Service {
	return &Service{
		config: cfg,
		http:   &http.Client{Timeout: cfg.Captcha.Timeout},
		logger: logger,
	}
}

func (s *Service) Verify(ctx context.Context, token, ip string) error {
	if s.config.Captcha.Secret == "" {
		if s.config.App.IsProduction() {
			if s.logger != nil {
				s.logger.Error("captcha secret missing in production, denying request")
			}
			return ErrNotConfigured
		}
		return nil
	}

	form := url.Values{}
	form.Set("secret", s.config.Captcha.Secret)
	form.Set("response", token)
	if ip != "" {
		form.Set("remoteip", ip)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.Captcha.VerifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.http.Do(req)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("captcha verifier unreachable", zap.Error(err))
		}
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return err
	}

	var result struct {
		Success    bool     `json:"success"`
		ErrorCodes []string `json:"error-codes"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return err
	}

	if !result.Success {
		if s.logger != nil {
			s.logger.Warn("captcha challenge rejected",
				zap.Strings("error_codes", result.ErrorCodes),
				zap.String("ip", ip))
		}
		return ErrChallengeFailed
	}

	return nil
}
