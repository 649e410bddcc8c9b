package mail

import (
	"github.com/maplecart/maplecart/config"
	"github.com/maplecart/maplecart/services/logging"
	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(ProvideSender),
)

func ProvideSender(cfg *config.Config, logger *logging.Service) (Sender, error) {
	return NewService(&cfg.Mail, &cfg.App, logger)
}
