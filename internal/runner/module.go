package runner

import (
	"context"
	"time"

	"coinbase_bot/internal/config"
	"coinbase_bot/internal/exchange"
	"coinbase_bot/internal/modules/health/service"
	"coinbase_bot/internal/notify"
	"coinbase_bot/internal/oracle"
	"coinbase_bot/internal/storage/cache"
	"coinbase_bot/internal/storage/pg"
	"coinbase_bot/pkg/logger"

	"go.uber.org/fx"
)

type moduleParams struct {
	fx.In

	Cfg      *config.Config
	Client   *exchange.Client
	Store    *pg.Store
	Snaps    *cache.Snapshots `optional:"true"`
	Notifier notify.Notifier
	Health   *service.State
}

func newRunner(p moduleParams) *Runner {
	deps := Deps{
		Prices:   p.Client,
		Balances: p.Client,
		Orders:   p.Client,
		Store:    p.Store,
		Notifier: p.Notifier,
		Health:   p.Health,
	}
	// nil-указатель в интерфейсе не равен nil
	if p.Snaps != nil {
		deps.Cache = p.Snaps
	}
	if p.Cfg.Oracle.Enabled {
		deps.Oracle = oracle.NewOllama(oracle.Config{
			URL:     p.Cfg.Oracle.URL,
			Model:   p.Cfg.Oracle.Model,
			Timeout: p.Cfg.Oracle.Timeout,
		})
	}
	return New(p.Cfg, deps, OptionsFrom(p.Cfg))
}

func Module() fx.Option {
	return fx.Module("runner",
		fx.Provide(
			newRunner,
			func(r *Runner) notify.StatusProvider { return r },
		),
		fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config, r *Runner, n notify.Notifier) {
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})
			c := NewCron()

			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					if err := r.Schedule(ctx, c, cfg.Trading.ReconcileSchedule, cfg.Trading.SummarySchedule); err != nil {
						cancel()
						return err
					}
					c.Start()
					go func() {
						defer close(done)
						r.Run(ctx)
					}()
					n.Sendf("🚀 Бот запущен: %v, интервал %s", r.Symbols(), cfg.Trading.Interval)
					return nil
				},
				OnStop: func(stopCtx context.Context) error {
					cancel()
					select {
					case <-c.Stop().Done():
					case <-stopCtx.Done():
					}

					// текущий цикл доводится до конца
					select {
					case <-done:
					case <-stopCtx.Done():
						logger.Warn("[RUNNER] stop timeout while cycle in progress")
						return stopCtx.Err()
					}

					drainCtx, drainCancel := context.WithTimeout(stopCtx, drainTimeout(cfg))
					defer drainCancel()
					r.Reconciler().Drain(drainCtx)
					n.Send("⏹ Бот остановлен")
					return nil
				},
			})
		}),
	)
}

func drainTimeout(cfg *config.Config) time.Duration {
	if cfg.Trading.DrainTimeout > 0 {
		return cfg.Trading.DrainTimeout
	}
	return 20 * time.Second
}
