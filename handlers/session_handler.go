package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/maplecart/maplecart/config"
	authmw "github.com/maplecart/maplecart/middleware/auth"
	"github.com/maplecart/maplecart/services/authflow"
)

type SessionHandler struct {
	config *config.Config
	flows  *authflow.Service
}

func NewSessionHandler(cfg *config.Config, flows *authflow.Service) *SessionHandler {
	return &SessionHandler{
		config: cfg,
		flows:  flows,
	}
}

// List shows the caller's active sessions with device metadata.
func (h *SessionHandler) List(c echo.Context) error {
	userID := authmw.UserID(c)
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	refreshCookie := cookieValue(c, h.config.Session.RefreshCookieName)

	sessions, err := h.flows.ListSessions(c.Request().Context(), userID, refreshCookie)
	if err != nil {
		return mapError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]any{"sessions": sessions})
}

// Revoke terminates one of the caller's own sessions.
func (h *SessionHandler) Revoke(c echo.Context) error {
	userID := authmw.UserID(c)
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	var input struct {
		SessionID string `json:"session_id"`
	}
	if err := c.Bind(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}

	sessionID, err := strconv.ParseUint(input.SessionID, 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}

	if err := h.flows.RevokeSession(c.Request().Context(), userID, uint(sessionID), requestMeta(c)); err != nil {
		return mapError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "revoked"})
}
