package audit

import (
	"context"

	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(NewService),
	fx.Invoke(registerLifecycle),
)

func registerLifecycle(lc fx.Lifecycle, service *Service) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			service.StartRetentionWorker()
			return nil
		},
		OnStop: func(context.Context) error {
			service.StopRetentionWorker()
			return nil
		},
	})
}
