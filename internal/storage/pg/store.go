package pg

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"slices"
	"time"

	"coinbase_bot/internal/models"
	"coinbase_bot/internal/storage/pg/sql"
	"coinbase_bot/pkg/db"

	"github.com/jackc/pgx/v5"
)

//go:embed schema.sql
var schema string

// Store состояние символов, история цен и журнал сделок в Postgres.
type Store struct {
	tm  db.TxManager
	sql *sql.Queries
}

func New(tm db.TxManager) *Store {
	return &Store{
		tm:  tm,
		sql: sql.New(),
	}
}

// Migrate создаёт таблицы, если их ещё нет.
func (s *Store) Migrate(ctx context.Context) (err error) {
	defer decorate("Store.Migrate", &err)
	return s.tm.RunMaster(ctx, func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx, schema)
		return err
	})
}

func (s *Store) SaveState(ctx context.Context, snap models.StateSnapshot) (err error) {
	defer decorate("Store.SaveState", &err)
	return s.tm.RunMaster(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return s.sql.UpsertState(ctx, tx, toParams(snap))
	})
}

// LoadState nil без ошибки, если символ ещё не сохранялся.
func (s *Store) LoadState(ctx context.Context, symbol string) (snap *models.StateSnapshot, err error) {
	defer decorate("Store.LoadState", &err)
	err = s.tm.RunReadOnly(ctx, func(ctx context.Context, tx pgx.Tx) error {
		row, err := s.sql.GetState(ctx, tx, symbol)
		if err != nil {
			return err
		}
		snap = fromRow(row)
		return nil
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return snap, err
}

// LoadPriceHistory последние limit цен от старой к новой.
func (s *Store) LoadPriceHistory(ctx context.Context, symbol string, limit int) (prices []float64, err error) {
	defer decorate("Store.LoadPriceHistory", &err)
	err = s.tm.RunReadOnly(ctx, func(ctx context.Context, tx pgx.Tx) error {
		prices, err = s.sql.RecentPrices(ctx, tx, symbol, limit)
		return err
	})
	slices.Reverse(prices)
	return prices, err
}

func (s *Store) AppendPriceHistory(ctx context.Context, symbol string, price float64, at time.Time) (err error) {
	defer decorate("Store.AppendPriceHistory", &err)
	return s.tm.RunMaster(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return s.sql.InsertPrice(ctx, tx, symbol, price, at)
	})
}

// RecordTrade пишет сделку и новое состояние одной транзакцией.
func (s *Store) RecordTrade(ctx context.Context, trade models.Trade, snap models.StateSnapshot) (err error) {
	defer decorate("Store.RecordTrade", &err)
	return s.tm.RunMaster(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := s.sql.InsertTrade(ctx, tx, tradeParams(trade)); err != nil {
			return err
		}
		return s.sql.UpsertState(ctx, tx, toParams(snap))
	})
}

// WeightedAvgBuyPrice по покупкам после последней продажи; ok=false если покупок не было.
func (s *Store) WeightedAvgBuyPrice(ctx context.Context, symbol string) (avg float64, ok bool, err error) {
	defer decorate("Store.WeightedAvgBuyPrice", &err)
	err = s.tm.RunReadOnly(ctx, func(ctx context.Context, tx pgx.Tx) error {
		v, err := s.sql.WeightedAvgBuyPrice(ctx, tx, symbol)
		if err != nil {
			return err
		}
		if v != nil && *v > 0 {
			avg, ok = *v, true
		}
		return nil
	})
	return avg, ok, err
}

func decorate(op string, err *error) {
	if *err != nil && !errors.Is(*err, pgx.ErrNoRows) {
		*err = fmt.Errorf("%s: %w: %w", op, models.ErrPersistence, *err)
	}
}

func toParams(snap models.StateSnapshot) *sql.UpsertStateParams {
	p := &sql.UpsertStateParams{
		Symbol:       snap.Symbol,
		InitialPrice: snap.ReferencePrice,
		TotalTrades:  snap.TotalTrades,
		TotalProfit:  snap.TotalProfit,
		ConfirmBuy:   int32(snap.ConfirmBuy),
		ConfirmSell:  int32(snap.ConfirmSell),
		CreatedAt:    snap.CreatedAt,
		UpdatedAt:    snap.UpdatedAt,
	}
	if !snap.LastTradeAt.IsZero() {
		t := snap.LastTradeAt
		p.LastTradeAt = &t
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	return p
}

func fromRow(row sql.TradingState) *models.StateSnapshot {
	snap := &models.StateSnapshot{
		Symbol:         row.Symbol,
		ReferencePrice: row.InitialPrice,
		TotalTrades:    row.TotalTrades,
		TotalProfit:    row.TotalProfit,
		ConfirmBuy:     int(row.ConfirmBuy),
		ConfirmSell:    int(row.ConfirmSell),
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}
	if row.LastTradeAt != nil {
		snap.LastTradeAt = *row.LastTradeAt
	}
	return snap
}

func tradeParams(t models.Trade) *sql.InsertTradeParams {
	at := t.CreatedAt
	if at.IsZero() {
		at = time.Now()
	}
	return &sql.InsertTradeParams{
		Symbol:    t.Symbol,
		Side:      string(t.Side),
		Amount:    t.Quantity,
		Price:     t.Price,
		OrderID:   t.OrderID,
		Timestamp: at,
	}
}
