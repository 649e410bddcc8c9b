package main

import (
	"github.com/maplecart/maplecart/config"
	"github.com/maplecart/maplecart/database"
	"github.com/maplecart/maplecart/handlers"
	"github.com/maplecart/maplecart/server"
	"github.com/maplecart/maplecart/services/audit"
	"github.com/maplecart/maplecart/services/authflow"
	"github.com/maplecart/maplecart/services/captcha"
	"github.com/maplecart/maplecart/services/identity"
	"github.com/maplecart/maplecart/services/logging"
	"github.com/maplecart/maplecart/services/mail"
	"github.com/maplecart/maplecart/services/ratelimit"
	"github.com/maplecart/maplecart/services/tokens"
	"github.com/maplecart/maplecart/session"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.NewProvider(nil),
		fx.Provide(func() *database.ModelsOption {
			return database.WithModels(
				&session.Session{},
				&authflow.PasswordResetToken{},
				&authflow.OAuthState{},
				&audit.Entry{},
				&ratelimit.RateLimitCounter{},
			)
		}),
		logging.Module,
		database.Module,
		identity.Module,
		captcha.Module,
		mail.Module,
		tokens.Module,
		audit.Module,
		ratelimit.Module,
		session.Module,
		authflow.Module,
		handlers.Module,
		server.Module,
		fx.Invoke(handlers.RegisterRoutes),
	)

	app.Run()
}
