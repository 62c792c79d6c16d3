package config

import (
	"context"

	"coinbase_bot/internal/config"
	"coinbase_bot/pkg/logger"
	"coinbase_bot/pkg/tracing"

	"go.uber.org/fx"
)

// Module регистрирует конфиг, поднимает логгер с уровнем из него и трейсер.
func Module() fx.Option {
	return fx.Module("config",
		fx.Provide(
			config.Load,
		),
		fx.Invoke(func(cfg *config.Config) error {
			logger.SetServiceName(cfg.Service.Name)
			tracing.SetServiceName(cfg.Service.Name)
			return logger.Init(cfg.Service.LogLevel)
		}),
		fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config) error {
			_, closeTracer, err := tracing.InitTracer(tracing.Config{
				Enabled: cfg.Tracing.Enabled,
				Host:    cfg.Tracing.Host,
				Port:    cfg.Tracing.Port,
			})
			if err != nil {
				return err
			}
			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					closeTracer()
					logger.Sync()
					return nil
				},
			})
			return nil
		}),
	)
}
