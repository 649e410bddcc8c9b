package ratelimit

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/maplecart/maplecart/services/ratelimit"
)

type Config struct {
	Service  *ratelimit.Service
	Endpoint string

	// SubjectResolver overrides how the counter subject is derived.
	// The default walks the forwarded-IP chain.
	SubjectResolver func(c echo.Context) string
}

// Middleware gates a route on the fixed-window counter for its
// endpoint. Rejections carry Retry-After and the X-RateLimit-*
// headers.
func Middleware(cfg Config) echo.MiddlewareFunc {
	if cfg.SubjectResolver == nil {
		cfg.SubjectResolver = SubjectFromRequest
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			subject := cfg.SubjectResolver(c)

			decision := cfg.Service.Enforce(c.Request().Context(), subject, cfg.Endpoint)

			c.Response().Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			c.Response().Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))

			if !decision.Allowed {
				c.Response().Header().Set("Retry-After", strconv.Itoa(int(decision.RetryAfter.Seconds())))
				return echo.NewHTTPError(http.StatusTooManyRequests, "Too Many Requests")
			}

			return next(c)
		}
	}
}

// SubjectFromRequest derives the rate limit subject from the first
// entry of the forwarded-IP chain, falling back to the peer address
// and finally a loopback placeholder.
func SubjectFromRequest(c echo.Context) string {
	if forwarded := c.Request().Header.Get("X-Forwarded-For"); forwarded != "" {
		first := strings.TrimSpace(strings.Split(forwarded, ",")[0])
		if first != "" {
			return first
		}
	}

	if ip := c.RealIP(); ip != "" && ip != "unknown" {
		return ip
	}

	return "127.0.0.1"
}
