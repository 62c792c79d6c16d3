package sql

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// Queries SQL-запросы над таблицами бота; транзакцию передаёт вызывающий.
type Queries struct{}

func New() *Queries {
	return &Queries{}
}

const upsertState = `
INSERT INTO trading_state (symbol, initial_price, total_trades, total_profit, confirm_buy, confirm_sell, last_trade_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (symbol) DO UPDATE
SET initial_price = EXCLUDED.initial_price,
    total_trades  = EXCLUDED.total_trades,
    total_profit  = EXCLUDED.total_profit,
    confirm_buy   = EXCLUDED.confirm_buy,
    confirm_sell  = EXCLUDED.confirm_sell,
    last_trade_at = EXCLUDED.last_trade_at,
    updated_at    = EXCLUDED.updated_at`

type UpsertStateParams struct {
	Symbol       string
	InitialPrice float64
	TotalTrades  int64
	TotalProfit  float64
	ConfirmBuy   int32
	ConfirmSell  int32
	LastTradeAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (q *Queries) UpsertState(ctx context.Context, tx pgx.Tx, arg *UpsertStateParams) error {
	_, err := tx.Exec(ctx, upsertState,
		arg.Symbol,
		arg.InitialPrice,
		arg.TotalTrades,
		arg.TotalProfit,
		arg.ConfirmBuy,
		arg.ConfirmSell,
		arg.LastTradeAt,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	return err
}

const getState = `
SELECT symbol, initial_price, total_trades, total_profit, confirm_buy, confirm_sell, last_trade_at, created_at, updated_at
FROM trading_state
WHERE symbol = $1`

type TradingState struct {
	Symbol       string
	InitialPrice float64
	TotalTrades  int64
	TotalProfit  float64
	ConfirmBuy   int32
	ConfirmSell  int32
	LastTradeAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (q *Queries) GetState(ctx context.Context, tx pgx.Tx, symbol string) (TradingState, error) {
	row := tx.QueryRow(ctx, getState, symbol)
	var i TradingState
	err := row.Scan(
		&i.Symbol,
		&i.InitialPrice,
		&i.TotalTrades,
		&i.TotalProfit,
		&i.ConfirmBuy,
		&i.ConfirmSell,
		&i.LastTradeAt,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const insertPrice = `
INSERT INTO price_history (symbol, price, timestamp)
VALUES ($1, $2, $3)`

func (q *Queries) InsertPrice(ctx context.Context, tx pgx.Tx, symbol string, price float64, at time.Time) error {
	_, err := tx.Exec(ctx, insertPrice, symbol, price, at)
	return err
}

// последние N цен, новые первыми
const recentPrices = `
SELECT price
FROM price_history
WHERE symbol = $1
ORDER BY timestamp DESC, id DESC
LIMIT $2`

func (q *Queries) RecentPrices(ctx context.Context, tx pgx.Tx, symbol string, limit int) ([]float64, error) {
	rows, err := tx.Query(ctx, recentPrices, symbol, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[float64])
}

const insertTrade = `
INSERT INTO trades (symbol, side, amount, price, order_id, timestamp)
VALUES ($1, $2, $3, $4, $5, $6)`

type InsertTradeParams struct {
	Symbol    string
	Side      string
	Amount    float64
	Price     float64
	OrderID   string
	Timestamp time.Time
}

func (q *Queries) InsertTrade(ctx context.Context, tx pgx.Tx, arg *InsertTradeParams) error {
	_, err := tx.Exec(ctx, insertTrade,
		arg.Symbol,
		arg.Side,
		arg.Amount,
		arg.Price,
		arg.OrderID,
		arg.Timestamp,
	)
	return err
}

// средневзвешенная цена покупок после последней продажи
const weightedAvgBuyPrice = `
SELECT SUM(amount * price) / NULLIF(SUM(amount), 0)
FROM trades
WHERE symbol = $1
  AND side = 'BUY'
  AND id > COALESCE((SELECT MAX(id) FROM trades WHERE symbol = $1 AND side = 'SELL'), 0)`

func (q *Queries) WeightedAvgBuyPrice(ctx context.Context, tx pgx.Tx, symbol string) (*float64, error) {
	var avg *float64
	err := tx.QueryRow(ctx, weightedAvgBuyPrice, symbol).Scan(&avg)
	return avg, err
}
