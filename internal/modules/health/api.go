package health

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"coinbase_bot/internal/models"
	"coinbase_bot/pkg/logger"

	"github.com/bytedance/sonic"
)

type PriceReader interface {
	Prices(ctx context.Context, symbol string, since time.Time, limit int) ([]models.PricePoint, error)
	Signals(ctx context.Context, symbol string, limit int) ([]models.SignalPoint, error)
	LatestPrices(ctx context.Context, symbols []string) (map[string]models.PricePoint, error)
}

type SnapshotReader interface {
	Get(ctx context.Context, symbol string) (*models.StateSnapshot, error)
}

// LiveState состояние из памяти раннера, если Redis выключен.
type LiveState interface {
	Snapshots() []models.StateSnapshot
}

type ConfigSource interface {
	Settings() map[string]any
}

// API read-only эндпоинты монитора. Любая зависимость может быть nil: эндпоинт отвечает 503.
type API struct {
	Config    ConfigSource
	Prices    PriceReader
	Snapshots SnapshotReader
	Live      LiveState
	Symbols   []string
	Timeout   time.Duration
}

func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/config", a.handleConfig)
	mux.HandleFunc("GET /api/prices", a.handleLatest)
	mux.HandleFunc("GET /api/prices/{symbol}", a.handlePrices)
	mux.HandleFunc("GET /api/signals/{symbol}", a.handleSignals)
	mux.HandleFunc("GET /api/state/{symbol}", a.handleState)
}

func (a *API) ctx(r *http.Request) (context.Context, context.CancelFunc) {
	t := a.Timeout
	if t <= 0 {
		t = 5 * time.Second
	}
	return context.WithTimeout(r.Context(), t)
}

func (a *API) handleConfig(w http.ResponseWriter, r *http.Request) {
	if a.Config == nil {
		writeError(w, http.StatusServiceUnavailable, "config unavailable")
		return
	}
	writeJSON(w, http.StatusOK, a.Config.Settings())
}

func (a *API) handleLatest(w http.ResponseWriter, r *http.Request) {
	if a.Prices == nil {
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	ctx, cancel := a.ctx(r)
	defer cancel()

	latest, err := a.Prices.LatestPrices(ctx, a.Symbols)
	if err != nil {
		logger.Error("[API] latest prices: %v", err)
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	writeJSON(w, http.StatusOK, latest)
}

// /api/prices/{symbol}?hours=24&limit=500
func (a *API) handlePrices(w http.ResponseWriter, r *http.Request) {
	if a.Prices == nil {
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	symbol := strings.ToUpper(r.PathValue("symbol"))
	hours := queryInt(r, "hours", 24)
	if hours <= 0 {
		writeError(w, http.StatusBadRequest, "hours must be positive")
		return
	}
	ctx, cancel := a.ctx(r)
	defer cancel()

	since := time.Now().Add(-time.Duration(hours) * time.Hour)
	points, err := a.Prices.Prices(ctx, symbol, since, queryInt(r, "limit", 0))
	if err != nil {
		logger.Error("[API] prices %s: %v", symbol, err)
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"symbol": symbol, "prices": nonNil(points)})
}

func (a *API) handleSignals(w http.ResponseWriter, r *http.Request) {
	if a.Prices == nil {
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	symbol := strings.ToUpper(r.PathValue("symbol"))
	ctx, cancel := a.ctx(r)
	defer cancel()

	points, err := a.Prices.Signals(ctx, symbol, queryInt(r, "limit", 0))
	if err != nil {
		logger.Error("[API] signals %s: %v", symbol, err)
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"symbol": symbol, "signals": nonNil(points)})
}

func (a *API) handleState(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(r.PathValue("symbol"))

	if a.Snapshots != nil {
		ctx, cancel := a.ctx(r)
		defer cancel()
		snap, err := a.Snapshots.Get(ctx, symbol)
		if err != nil {
			logger.Warn("[API] state %s from cache: %v", symbol, err)
		} else if snap != nil {
			writeJSON(w, http.StatusOK, snap)
			return
		}
	}
	if a.Live != nil {
		for _, s := range a.Live.Snapshots() {
			if s.Symbol == symbol {
				writeJSON(w, http.StatusOK, s)
				return
			}
		}
	}
	writeError(w, http.StatusNotFound, "unknown symbol "+symbol)
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	data, err := sonic.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
