package telegram

import (
	"context"

	"coinbase_bot/internal/config"
	"coinbase_bot/internal/notify"
	"coinbase_bot/pkg/logger"

	"go.uber.org/fx"
)

// newNotifier Telegram, если заданы токен и чат, иначе вывод в лог.
func newNotifier(cfg *config.Config) (notify.Notifier, *notify.Telegram) {
	if cfg.Telegram.Token == "" || cfg.Telegram.ChatID == 0 {
		logger.Warn("[TG] token or chat id not set, notifications go to log")
		return notify.NewStdout(), nil
	}
	t, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID)
	if err != nil {
		logger.Error("[TG] init failed, notifications go to log: %v", err)
		return notify.NewStdout(), nil
	}
	return t, t
}

func Module() fx.Option {
	return fx.Module("telegram",
		fx.Provide(newNotifier),
		fx.Invoke(
			func(lc fx.Lifecycle, t *notify.Telegram, status notify.StatusProvider) {
				if t == nil {
					return
				}
				t.SetStatusProvider(status)
				// ctx из OnStart живёт только на время старта
				ctx, cancel := context.WithCancel(context.Background())
				lc.Append(fx.Hook{
					OnStart: func(context.Context) error {
						return t.Start(ctx)
					},
					OnStop: func(context.Context) error {
						cancel()
						t.Stop()
						return nil
					},
				})
			},
		),
	)
}
