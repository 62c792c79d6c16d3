package postgres

import (
	"context"
	"fmt"

	"coinbase_bot/internal/config"
	"coinbase_bot/pkg/db"
	"coinbase_bot/pkg/logger"

	"go.uber.org/fx"
)

// Module пул pgx под PgTxManager, закрывается на остановке приложения.
func Module() fx.Option {
	return fx.Module("postgres",
		fx.Provide(
			func(lc fx.Lifecycle, cfg *config.Config) (*db.PgTxManager, error) {
				ctx, cancel := context.WithTimeout(context.Background(), cfg.Exchange.RequestTimeout)
				defer cancel()

				poolMaster, err := db.NewPool(ctx, db.PoolConfig{
					DSN:      cfg.Database.DSN,
					MaxConns: cfg.Database.MaxConns,
				})
				if err != nil {
					return nil, fmt.Errorf("failed to create poolMaster: %w", err)
				}

				err = poolMaster.Ping(ctx)
				if err != nil {
					poolMaster.Close()
					return nil, err
				}

				tm := db.NewPgTxManager(poolMaster)
				lc.Append(fx.Hook{
					OnStop: func(context.Context) error {
						logger.Info("[PG] closing pool")
						tm.Close()
						return nil
					},
				})
				return tm, nil
			},
		),
	)
}
