package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/maplecart/maplecart/config"
	"github.com/maplecart/maplecart/services/authflow"
	"github.com/maplecart/maplecart/services/logging"
)

type AuthHandler struct {
	config *config.Config
	flows  *authflow.Service
	logger *logging.Service
}

func NewAuthHandler(cfg *config.Config, flows *authflow.Service, logger *logging.Service) *AuthHandler {
	return &AuthHandler{
		config: cfg,
		flows:  flows,
		logger: logger,
	}
}

func (h *AuthHandler) Login(c echo.Context) error {
	var input authflow.LoginInput
	if err := c.Bind(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}

	result, err := h.flows.Login(c.Request().Context(), input, requestMeta(c))
	if err != nil {
		return mapError(c, err)
	}

	setAuthCookies(c, h.config, result)
	return c.JSON(http.StatusOK, result)
}

func (h *AuthHandler) Register(c echo.Context) error {
	var input authflow.RegisterInput
	if err := c.Bind(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}

	result, err := h.flows.Register(c.Request().Context(), input, requestMeta(c))
	if err != nil {
		return mapError(c, err)
	}

	setAuthCookies(c, h.config, result)
	return c.JSON(http.StatusCreated, result)
}

func (h *AuthHandler) RequestOTP(c echo.Context) error {
	var input authflow.OTPRequestInput
	if err := c.Bind(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}

	if err := h.flows.RequestOTP(c.Request().Context(), input, requestMeta(c)); err != nil {
		return mapError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "sent"})
}

func (h *AuthHandler) VerifyOTP(c echo.Context) error {
	var input authflow.OTPVerifyInput
	if err := c.Bind(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}

	result, err := h.flows.VerifyOTP(c.Request().Context(), input, requestMeta(c))
	if err != nil {
		return mapError(c, err)
	}

	setAuthCookies(c, h.config, result)
	return c.JSON(http.StatusOK, result)
}

func (h *AuthHandler) StartOAuth(c echo.Context) error {
	redirectURL, err := h.flows.StartOAuth(c.Request().Context(), c.QueryParam("provider"), requestMeta(c))
	if err != nil {
		return mapError(c, err)
	}

	return c.Redirect(http.StatusFound, redirectURL)
}

func (h *AuthHandler) OAuthCallback(c echo.Context) error {
	result, err := h.flows.CompleteOAuth(c.Request().Context(), c.QueryParam("state"), c.QueryParam("code"), requestMeta(c))
	if err != nil {
		return c.Redirect(http.StatusFound, h.config.App.URL+h.config.OAuth.FailurePath)
	}

	setAuthCookies(c, h.config, result)
	return c.Redirect(http.StatusFound, h.config.App.URL+h.config.OAuth.SuccessPath)
}

func (h *AuthHandler) RequestPasswordReset(c echo.Context) error {
	var input authflow.ResetRequestInput
	if err := c.Bind(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}

	if err := h.flows.RequestPasswordReset(c.Request().Context(), input, requestMeta(c)); err != nil {
		return mapError(c, err)
	}

	// Always the same body whether or not the email exists.
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *AuthHandler) ConfirmPasswordReset(c echo.Context) error {
	var input authflow.ResetConfirmInput
	if err := c.Bind(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}

	if err := h.flows.ConfirmPasswordReset(c.Request().Context(), input); err != nil {
		return mapError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *AuthHandler) Refresh(c echo.Context) error {
	refreshCookie := cookieValue(c, h.config.Session.RefreshCookieName)
	csrfHeader := c.Request().Header.Get(csrfHeaderName)

	result, err := h.flows.Refresh(c.Request().Context(), refreshCookie, csrfHeader, requestMeta(c))
	if err != nil {
		return mapError(c, err)
	}

	setAuthCookies(c, h.config, result)
	return c.JSON(http.StatusOK, result)
}

func (h *AuthHandler) Logout(c echo.Context) error {
	refreshCookie := cookieValue(c, h.config.Session.RefreshCookieName)
	csrfHeader := c.Request().Header.Get(csrfHeaderName)

	err := h.flows.Logout(c.Request().Context(), refreshCookie, csrfHeader, requestMeta(c))
	if err != nil {
		return mapError(c, err)
	}

	// Cookies are cleared even when no session was found: logout is
	// idempotent.
	clearAuthCookies(c, h.config)
	return c.JSON(http.StatusOK, map[string]string{"status": "logged_out"})
}
