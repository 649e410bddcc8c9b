package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	authmw "github.com/maplecart/maplecart/middleware/auth"
	ratelimitmw "github.com/maplecart/maplecart/middleware/ratelimit"
	"github.com/maplecart/maplecart/services/ratelimit"
	"github.com/maplecart/maplecart/services/tokens"
)

// RegisterRoutes wires the auth surface. Every inbound request passes
// its endpoint's rate limiter before the orchestrator runs.
func RegisterRoutes(
	e *echo.Echo,
	authHandler *AuthHandler,
	sessionHandler *SessionHandler,
	limiter *ratelimit.Service,
	tokenService *tokens.Service,
) {
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	limit := func(endpoint string) echo.MiddlewareFunc {
		return ratelimitmw.Middleware(ratelimitmw.Config{
			Service:  limiter,
			Endpoint: endpoint,
		})
	}

	api := e.Group("/api/auth")

	api.POST("/login", authHandler.Login, limit(ratelimit.EndpointLogin))
	api.POST("/register", authHandler.Register, limit(ratelimit.EndpointRegister))
	api.POST("/logout", authHandler.Logout)
	api.POST("/refresh", authHandler.Refresh, limit(ratelimit.EndpointRefresh))

	api.POST("/otp/request", authHandler.RequestOTP, limit(ratelimit.EndpointOTP))
	api.POST("/otp/verify", authHandler.VerifyOTP, limit(ratelimit.EndpointOTP))

	api.GET("/oauth/start", authHandler.StartOAuth, limit(ratelimit.EndpointOAuth))
	api.GET("/oauth/callback", authHandler.OAuthCallback, limit(ratelimit.EndpointOAuth))

	api.POST("/password-reset/request", authHandler.RequestPasswordReset, limit(ratelimit.EndpointReset))
	api.POST("/password-reset/confirm", authHandler.ConfirmPasswordReset, limit(ratelimit.EndpointReset))

	sessions := api.Group("/sessions", authmw.Middleware(tokenService))
	sessions.GET("", sessionHandler.List)
	sessions.POST("/revoke", sessionHandler.Revoke)
}
