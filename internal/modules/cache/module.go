package cache

import (
	"context"

	"coinbase_bot/internal/config"
	"coinbase_bot/internal/storage/cache"
	"coinbase_bot/pkg/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

// Module Redis для живых срезов состояния; при redis.enabled=false отдаёт nil.
func Module() fx.Option {
	return fx.Module("cache",
		fx.Provide(
			func(lc fx.Lifecycle, cfg *config.Config) *cache.Snapshots {
				if !cfg.Redis.Enabled {
					return nil
				}
				client := redis.NewClient(&redis.Options{
					Addr:     cfg.Redis.Addr,
					Password: cfg.Redis.Password,
					DB:       cfg.Redis.DB,
				})

				lc.Append(fx.Hook{
					OnStart: func(ctx context.Context) error {
						// Redis необязателен: недоступность только логируем
						if err := client.Ping(ctx).Err(); err != nil {
							logger.Warn("[REDIS] ping %s: %v", cfg.Redis.Addr, err)
						}
						return nil
					},
					OnStop: func(context.Context) error {
						return client.Close()
					},
				})
				return cache.NewSnapshots(client, cfg.Redis.Prefix, cfg.Redis.TTL)
			},
		),
	)
}
