package storage

import (
	"context"
	"time"

	"coinbase_bot/internal/config"
	"coinbase_bot/internal/storage/monitor"
	"coinbase_bot/internal/storage/pg"
	"coinbase_bot/pkg/db"
	"coinbase_bot/pkg/logger"

	"go.uber.org/fx"
)

func newStore(tm *db.PgTxManager) (*pg.Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s := pg.New(tm)
	if err := s.Migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// newReader читающая сторона monitor API; без неё API отвечает 503, бот работает.
func newReader(lc fx.Lifecycle, cfg *config.Config) *monitor.Reader {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	r, err := monitor.Open(ctx, cfg.Database.DSN)
	if err != nil {
		logger.Warn("[MONITOR] disabled: %v", err)
		return nil
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error { return r.Close() },
	})
	return r
}

func Module() fx.Option {
	return fx.Module("storage",
		fx.Provide(
			newStore,
			newReader,
		),
	)
}
