package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	"coinbase_bot/internal/models"
	pgsql "coinbase_bot/internal/storage/pg/sql"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// txManagerFunc не вызывает fn, а сразу возвращает ошибку из f.
type txManagerFunc func() error

func (f txManagerFunc) RunMaster(ctx context.Context, _ func(context.Context, pgx.Tx) error) error {
	return f()
}

func (f txManagerFunc) RunReadOnly(ctx context.Context, _ func(context.Context, pgx.Tx) error) error {
	return f()
}

func TestSnapshotMapping(t *testing.T) {
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	snap := models.StateSnapshot{
		Symbol:         "ETH",
		ReferencePrice: 3100.5,
		TotalTrades:    7,
		TotalProfit:    -12.25,
		ConfirmBuy:     2,
		LastTradeAt:    at,
		CreatedAt:      at.Add(-time.Hour),
		UpdatedAt:      at,
	}

	p := toParams(snap)
	require.NotNil(t, p.LastTradeAt)
	assert.Equal(t, at, *p.LastTradeAt)

	back := fromRow(sqlRow(p))
	assert.Equal(t, snap, *back)
}

func TestSnapshotMappingWithoutTrades(t *testing.T) {
	p := toParams(models.StateSnapshot{Symbol: "BTC", ReferencePrice: 1})
	assert.Nil(t, p.LastTradeAt)
	assert.False(t, p.CreatedAt.IsZero())
	assert.Equal(t, p.CreatedAt, p.UpdatedAt)
}

func TestErrorsAreClassifiedAsPersistence(t *testing.T) {
	s := New(txManagerFunc(func() error { return errors.New("connection reset") }))

	err := s.SaveState(context.Background(), models.StateSnapshot{Symbol: "ETH"})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrPersistence)
	assert.Contains(t, err.Error(), "Store.SaveState")

	_, _, err = s.WeightedAvgBuyPrice(context.Background(), "ETH")
	assert.ErrorIs(t, err, models.ErrPersistence)
}

func TestLoadStateMissingIsNotAnError(t *testing.T) {
	s := New(txManagerFunc(func() error { return pgx.ErrNoRows }))

	snap, err := s.LoadState(context.Background(), "ETH")
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestTradeParams(t *testing.T) {
	p := tradeParams(models.Trade{Symbol: "ETH", Side: models.SideSell, Quantity: 0.5, Price: 3000, OrderID: "abc"})
	assert.Equal(t, "SELL", p.Side)
	assert.Equal(t, 0.5, p.Amount)
	assert.False(t, p.Timestamp.IsZero())
}

func sqlRow(p *pgsql.UpsertStateParams) pgsql.TradingState {
	return pgsql.TradingState{
		Symbol:       p.Symbol,
		InitialPrice: p.InitialPrice,
		TotalTrades:  p.TotalTrades,
		TotalProfit:  p.TotalProfit,
		ConfirmBuy:   p.ConfirmBuy,
		ConfirmSell:  p.ConfirmSell,
		LastTradeAt:  p.LastTradeAt,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}
