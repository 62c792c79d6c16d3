package main

import (
	"time"

	"coinbase_bot/internal/modules/cache"
	"coinbase_bot/internal/modules/coinbase"
	"coinbase_bot/internal/modules/config"
	"coinbase_bot/internal/modules/health"
	"coinbase_bot/internal/modules/postgres"
	"coinbase_bot/internal/modules/storage"
	telegram "coinbase_bot/internal/modules/telegram_bot"
	"coinbase_bot/internal/runner"

	"go.uber.org/fx"
)

func main() {
	fx.New(
		// остановка ждёт текущий цикл и дренаж ордеров
		fx.StopTimeout(time.Minute),
		config.Module(),
		postgres.Module(),
		storage.Module(),
		cache.Module(),
		health.Module(),
		coinbase.Module(),
		telegram.Module(),
		runner.Module(),
	).Run()
}
