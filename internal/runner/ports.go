package runner

import (
	"context"
	"time"

	"coinbase_bot/internal/models"
)

type PriceFeed interface {
	Price(ctx context.Context, productID string) (float64, error)
}

type BalanceFeed interface {
	Balances(ctx context.Context) (models.Balances, error)
}

// OrderGateway отправка ордеров; ClientOrderID в запросе делает повтор безопасным.
type OrderGateway interface {
	PlaceOrder(ctx context.Context, req models.OrderRequest) (models.OrderResult, error)
	OrderStatus(ctx context.Context, orderID string) (models.OrderResult, error)
	CancelOrder(ctx context.Context, orderID string) error
}

type Store interface {
	SaveState(ctx context.Context, snap models.StateSnapshot) error
	LoadState(ctx context.Context, symbol string) (*models.StateSnapshot, error)
	LoadPriceHistory(ctx context.Context, symbol string, limit int) ([]float64, error)
	AppendPriceHistory(ctx context.Context, symbol string, price float64, at time.Time) error
	RecordTrade(ctx context.Context, trade models.Trade, snap models.StateSnapshot) error
	WeightedAvgBuyPrice(ctx context.Context, symbol string) (float64, bool, error)
}

type SnapshotPublisher interface {
	Publish(ctx context.Context, snap models.StateSnapshot) error
}

type Notifier interface {
	Send(msg string)
	Sendf(format string, args ...any)
}

// Health то, что раннер сообщает в /healthz.
type Health interface {
	SetReady(v bool)
	RecordCycle(at time.Time, priced, failed int)
}
