package ratelimit

import (
	"github.com/maplecart/maplecart/config"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Options(
	fx.Provide(ProvideStore),
	fx.Provide(NewService),
)

func ProvideStore(cfg *config.Config, db *gorm.DB) (Store, error) {
	return NewStore(&cfg.RateLimit, db)
}
