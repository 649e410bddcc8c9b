package identity

import (
	"github.com/maplecart/maplecart/config"
	"github.com/maplecart/maplecart/services/logging"
	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(ProvideClient),
)

func ProvideClient(cfg *config.Config, logger *logging.Service) Client {
	return NewHTTPClient(&cfg.Identity, logger)
}
