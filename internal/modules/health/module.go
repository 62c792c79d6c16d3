package health

import (
	"context"
	"net"
	"net/http"
	"time"

	"go.uber.org/fx"

	"coinbase_bot/internal/config"
	"coinbase_bot/internal/modules/health/service"
	"coinbase_bot/internal/notify"
	"coinbase_bot/internal/storage/cache"
	"coinbase_bot/internal/storage/monitor"
	"coinbase_bot/pkg/logger"
)

type Config struct {
	Addr       string        // например ":8080"
	StaleAfter time.Duration // /readyz отвечает 503, если цикла не было дольше
}

func NewConfig(cfg *config.Config) Config {
	addr := cfg.Service.HTTPAddr
	if addr == "" {
		addr = ":8080"
	}
	return Config{Addr: addr, StaleAfter: 3 * cfg.Trading.Interval}
}

type apiParams struct {
	fx.In

	Cfg    *config.Config
	Reader *monitor.Reader       `optional:"true"`
	Snaps  *cache.Snapshots      `optional:"true"`
	Live   notify.StatusProvider `optional:"true"`
}

func NewAPI(p apiParams) *API {
	a := &API{Config: p.Cfg, Timeout: p.Cfg.Exchange.RequestTimeout}
	for _, cs := range p.Cfg.EnabledCoins() {
		a.Symbols = append(a.Symbols, cs.Symbol)
	}
	// nil-указатели не кладём в интерфейсы
	if p.Reader != nil {
		a.Prices = p.Reader
	}
	if p.Snaps != nil {
		a.Snapshots = p.Snaps
	}
	if p.Live != nil {
		a.Live = p.Live
	}
	return a
}

func NewMux(cfg Config, state *service.State, api *API) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/livez", func(w http.ResponseWriter, r *http.Request) {
		// liveness: процесс жив
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		// readiness: первый цикл завершён и циклы идут
		if !state.Ready() {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		if state.Stale(time.Now(), cfg.StaleAfter) {
			http.Error(w, "cycle stalled", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		priced, failed := state.LastCycleCounts()
		resp := map[string]any{
			"ready":         state.Ready(),
			"wsConnected":   state.WSConnected(),
			"uptimeSec":     int64(state.Uptime().Seconds()),
			"cycles":        state.Cycles(),
			"priced":        priced,
			"priceFailures": failed,
			"lastCycleUnix": func() int64 {
				t := state.LastCycle()
				if t.IsZero() {
					return 0
				}
				return t.Unix()
			}(),
		}
		writeJSON(w, http.StatusOK, resp)
	})

	if api != nil {
		api.Register(mux)
	}
	return mux
}

func RunHTTP(lc fx.Lifecycle, cfg Config, mux *http.ServeMux) {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", cfg.Addr)
			if err != nil {
				return err
			}
			logger.Info("[HTTP] monitor listening on %s", cfg.Addr)
			go func() { _ = srv.Serve(ln) }()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

func Module() fx.Option {
	return fx.Module("health",
		fx.Provide(
			service.NewState,
			NewConfig,
			NewAPI,
			NewMux,
		),
		fx.Invoke(RunHTTP),
	)
}
