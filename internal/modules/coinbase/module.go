package coinbase

import (
	"context"

	"coinbase_bot/internal/config"
	"coinbase_bot/internal/exchange"
	"coinbase_bot/internal/modules/health/service"
	"coinbase_bot/pkg/logger"

	"go.uber.org/fx"
)

func newClient(cfg *config.Config) (*exchange.Client, error) {
	return exchange.NewClient(exchange.Config{
		BaseURL:    cfg.Exchange.BaseURL,
		KeyName:    cfg.Exchange.KeyName,
		PrivateKey: cfg.Exchange.PrivateKey,
		Timeout:    cfg.Exchange.RequestTimeout,
	})
}

// Module REST-клиент Coinbase и, при exchange.use_websocket, кэш цен из ticker-канала.
func Module() fx.Option {
	return fx.Module("coinbase",
		fx.Provide(newClient),
		fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config, c *exchange.Client, health *service.State) {
			if !cfg.Exchange.UseWebsocket {
				return
			}
			products := make([]string, 0, len(cfg.Coins))
			for _, cs := range cfg.EnabledCoins() {
				products = append(products, cfg.ProductID(cs.Symbol))
			}
			ticker := exchange.NewTicker(cfg.Exchange.WSURL, products)
			ticker.OnState = health.SetWSConnected
			c.AttachTicker(ticker, cfg.Exchange.PriceMaxAge)

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					logger.Info("[WS] ticker for %d products", len(products))
					go func() {
						defer close(done)
						ticker.Run(ctx)
					}()
					return nil
				},
				OnStop: func(stopCtx context.Context) error {
					cancel()
					select {
					case <-done:
					case <-stopCtx.Done():
					}
					return nil
				},
			})
		}),
	)
}
