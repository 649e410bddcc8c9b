package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/maplecart/maplecart/config"
	"github.com/maplecart/maplecart/services/authflow"
)

// Cookie discipline: the refresh token travels only in an HttpOnly
// SameSite=Lax cookie, never in a script-readable location. The CSRF
// token cookie must stay script-readable for the double submit.
func setAuthCookies(c echo.Context, cfg *config.Config, result *authflow.AuthResult) {
	maxAge := int(cfg.Session.RefreshExpiry.Seconds())

	c.SetCookie(&http.Cookie{
		Name:     cfg.Session.RefreshCookieName,
		Value:    result.RefreshToken,
		Path:     cfg.Session.CookiePath,
		Domain:   cfg.Session.CookieDomain,
		MaxAge:   maxAge,
		Expires:  time.Now().Add(cfg.Session.RefreshExpiry),
		HttpOnly: true,
		Secure:   cfg.App.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})

	c.SetCookie(&http.Cookie{
		Name:     cfg.Session.CSRFCookieName,
		Value:    result.CSRFToken,
		Path:     cfg.Session.CookiePath,
		Domain:   cfg.Session.CookieDomain,
		MaxAge:   maxAge,
		Expires:  time.Now().Add(cfg.Session.RefreshExpiry),
		HttpOnly: false,
		Secure:   cfg.App.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
}

func clearAuthCookies(c echo.Context, cfg *config.Config) {
	for _, name := range []string{cfg.Session.RefreshCookieName, cfg.Session.CSRFCookieName} {
		c.SetCookie(&http.Cookie{
			Name:     name,
			Value:    "",
			Path:     cfg.Session.CookiePath,
			Domain:   cfg.Session.CookieDomain,
			MaxAge:   -1,
			Expires:  time.Unix(0, 0),
			HttpOnly: name == cfg.Session.RefreshCookieName,
			Secure:   cfg.App.IsProduction(),
			SameSite: http.SameSiteLaxMode,
		})
	}
}
