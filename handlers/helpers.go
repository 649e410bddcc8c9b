package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/maplecart/maplecart/services/authflow"
	"github.com/maplecart/maplecart/session"
)

const csrfHeaderName = "X-CSRF-Token"

// mapError translates the flow error taxonomy to HTTP. Internal
// detail never leaks: upstream failures go out as a generic message.
func mapError(c echo.Context, err error) error {
	var rateLimited *authflow.RateLimitedError
	if errors.As(err, &rateLimited) {
		c.Response().Header().Set("Retry-After", strconv.Itoa(int(rateLimited.RetryAfter.Seconds())))
		return echo.NewHTTPError(http.StatusTooManyRequests, "Too Many Requests")
	}

	switch {
	case errors.Is(err, authflow.ErrValidation), errors.Is(err, authflow.ErrCaptchaFailed):
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	case errors.Is(err, authflow.ErrInvalidCredentials), errors.Is(err, authflow.ErrUnauthorized):
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, session.ErrCSRFTokenMissing), errors.Is(err, session.ErrCSRFTokenInvalid):
		return echo.NewHTTPError(http.StatusForbidden, "csrf verification failed")
	case errors.Is(err, authflow.ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, "already exists")
	case errors.Is(err, authflow.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}

func requestMeta(c echo.Context) authflow.RequestMeta {
	return authflow.RequestMeta{
		IP:           c.RealIP(),
		UserAgent:    c.Request().UserAgent(),
		CaptchaToken: c.Request().Header.Get("X-Captcha-Token"),
	}
}

func cookieValue(c echo.Context, name string) string {
	cookie, err := c.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}
