package monitor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"coinbase_bot/internal/models"
	"coinbase_bot/pkg/logger"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const (
	defaultLimit = 500
	maxLimit     = 5000
)

// Reader выборки для monitor API; пишет только Store.
type Reader struct {
	db *sqlx.DB
}

func Open(ctx context.Context, dsn string) (*Reader, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("monitor.Open: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("monitor.Open: %w", err)
	}
	logger.Info("[MONITOR] connected to postgres")
	return NewReader(db), nil
}

func NewReader(db *sqlx.DB) *Reader {
	return &Reader{db: db}
}

func (r *Reader) Close() error {
	return r.db.Close()
}

// Prices история цен символа от старой к новой.
func (r *Reader) Prices(ctx context.Context, symbol string, since time.Time, limit int) ([]models.PricePoint, error) {
	query := `
	SELECT timestamp, price
	FROM (
		SELECT timestamp, price, id
		FROM price_history
		WHERE symbol = $1 AND timestamp >= $2
		ORDER BY timestamp DESC, id DESC
		LIMIT $3
	) t
	ORDER BY timestamp ASC, id ASC
	`
	var out []models.PricePoint
	if err := r.db.SelectContext(ctx, &out, query, normalizeSymbol(symbol), since, clampLimit(limit)); err != nil {
		return nil, fmt.Errorf("Reader.Prices: %w", err)
	}
	return out, nil
}

// Signals исполненные сделки символа от старой к новой.
func (r *Reader) Signals(ctx context.Context, symbol string, limit int) ([]models.SignalPoint, error) {
	query := `
	SELECT timestamp, action, price, amount
	FROM (
		SELECT timestamp, side AS action, price, amount, id
		FROM trades
		WHERE symbol = $1
		ORDER BY id DESC
		LIMIT $2
	) t
	ORDER BY id ASC
	`
	var out []models.SignalPoint
	if err := r.db.SelectContext(ctx, &out, query, normalizeSymbol(symbol), clampLimit(limit)); err != nil {
		return nil, fmt.Errorf("Reader.Signals: %w", err)
	}
	return out, nil
}

type latestRow struct {
	Symbol    string    `db:"symbol"`
	Timestamp time.Time `db:"timestamp"`
	Price     float64   `db:"price"`
}

// LatestPrices последняя сохранённая цена по каждому из символов.
func (r *Reader) LatestPrices(ctx context.Context, symbols []string) (map[string]models.PricePoint, error) {
	query := `
	SELECT DISTINCT ON (symbol) symbol, timestamp, price
	FROM price_history
	WHERE symbol = ANY($1)
	ORDER BY symbol, timestamp DESC, id DESC
	`
	norm := make([]string, len(symbols))
	for i, s := range symbols {
		norm[i] = normalizeSymbol(s)
	}

	var rows []latestRow
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(norm)); err != nil {
		return nil, fmt.Errorf("Reader.LatestPrices: %w", err)
	}
	out := make(map[string]models.PricePoint, len(rows))
	for _, row := range rows {
		out[row.Symbol] = models.PricePoint{Timestamp: row.Timestamp, Price: row.Price}
	}
	return out, nil
}

func normalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultLimit
	case limit > maxLimit:
		return maxLimit
	default:
		return limit
	}
}
