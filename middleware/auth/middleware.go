package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/maplecart/maplecart/services/tokens"
)

const (
	ContextKeyUserID = "auth_user_id"
	ContextKeyEmail  = "auth_email"
)

// Middleware requires a valid provider-issued bearer access token and
// stores the caller's identity on the request context.
func Middleware(tokenService *tokens.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" || !strings.HasPrefix(header, "Bearer ") {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}

			claims, err := tokenService.ValidateAccessToken(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
			}

			c.Set(ContextKeyUserID, claims.Subject)
			c.Set(ContextKeyEmail, claims.Email)

			return next(c)
		}
	}
}

// UserID returns the authenticated user id placed by Middleware.
func UserID(c echo.Context) string {
	if id, ok := c.Get(ContextKeyUserID).(string); ok {
		return id
	}
	return ""
}
