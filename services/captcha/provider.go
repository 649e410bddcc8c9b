package captcha

import (
	"github.com/maplecart/maplecart/config"
	"github.com/maplecart/maplecart/services/logging"
	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(ProvideVerifier),
)

func ProvideVerifier(cfg *config.Config, logger *logging.Service) Verifier {
	return NewService(cfg, logger)
}
