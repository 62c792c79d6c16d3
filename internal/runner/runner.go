package runner

import (
	"context"
	"sync"
	"time"

	"coinbase_bot/internal/config"
	"coinbase_bot/internal/models"
	"coinbase_bot/internal/strategy"
	"coinbase_bot/pkg/logger"
	"coinbase_bot/pkg/tracing"

	"golang.org/x/sync/errgroup"
)

// session состояние и движок одного символа на всё время работы процесса.
type session struct {
	coin      config.CoinSettings
	productID string
	engine    *strategy.Engine
	state     *strategy.SymbolState
	loaded    bool // состояние поднято из хранилища или инициализировано
}

type Deps struct {
	Prices   PriceFeed
	Balances BalanceFeed
	Orders   OrderGateway
	Store    Store
	Cache    SnapshotPublisher // nil если Redis выключен
	Notifier Notifier
	Oracle   strategy.Oracle // nil если оракул выключен
	Health   Health          // nil в тестах
}

type Options struct {
	Interval         time.Duration
	FetchConcurrency int
	RequestTimeout   time.Duration
	HistoryLimit     int
	CancelAfter      time.Duration
	DryRun           bool
}

func OptionsFrom(cfg *config.Config) Options {
	return Options{
		Interval:         cfg.Trading.Interval,
		FetchConcurrency: cfg.Trading.FetchConcurrency,
		RequestTimeout:   cfg.Exchange.RequestTimeout,
		HistoryLimit:     cfg.Database.HistoryLimit,
		CancelAfter:      cfg.Trading.CancelAfter,
		DryRun:           cfg.Trading.DryRun,
	}
}

// Runner периодический цикл опроса цен, решений и отправки ордеров по всем включённым символам.
type Runner struct {
	opts Options
	deps Deps
	now  func() time.Time

	symbols  []string
	sessions map[string]*session
	rec      *Reconciler

	readyOnce sync.Once
}

func New(cfg *config.Config, deps Deps, opts Options) *Runner {
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	if opts.FetchConcurrency <= 0 {
		opts.FetchConcurrency = 4
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Second
	}

	r := &Runner{
		opts:     opts,
		deps:     deps,
		now:      time.Now,
		sessions: make(map[string]*session),
	}
	r.rec = NewReconciler(deps.Orders, r.onOrderFill, opts.CancelAfter, opts.RequestTimeout)

	var engineOpts []strategy.Option
	if deps.Oracle != nil {
		engineOpts = append(engineOpts, strategy.WithOracle(deps.Oracle))
	}
	for _, cs := range cfg.EnabledCoins() {
		e := strategy.NewEngine(cs.Symbol, ParamsFor(cs, cfg.Trading.QuoteCurrency), engineOpts...)
		r.sessions[cs.Symbol] = &session{
			coin:      cs,
			productID: cfg.ProductID(cs.Symbol),
			engine:    e,
			state:     e.NewState(),
		}
		r.symbols = append(r.symbols, cs.Symbol)
	}
	return r
}

func (r *Runner) Reconciler() *Reconciler { return r.rec }
func (r *Runner) Symbols() []string       { return r.symbols }

// Run первый цикл сразу, дальше по тикеру. Отмена ctx замечается только между циклами.
func (r *Runner) Run(ctx context.Context) {
	logger.Info("[RUNNER] ▶️ start: %d symbols, interval %s, dry_run=%v", len(r.symbols), r.opts.Interval, r.opts.DryRun)
	ticker := time.NewTicker(r.opts.Interval)
	defer ticker.Stop()

	for {
		r.Cycle(context.WithoutCancel(ctx))

		select {
		case <-ctx.Done():
			logger.Info("[RUNNER] ⏹ stop")
			return
		case <-ticker.C:
		}
	}
}

// Cycle один проход: балансы, цены параллельно, затем шаг по каждому символу.
func (r *Runner) Cycle(ctx context.Context) {
	span, ctx := tracing.StartSpan(ctx, "runner.cycle")
	defer span.Finish()
	started := r.now()

	balances, err := r.fetchBalances(ctx)
	if err != nil {
		logger.Warn("[CYCLE] balances: %v", err)
	}
	prices := r.fetchPrices(ctx)

	var wg sync.WaitGroup
	priced := 0
	for i, sym := range r.symbols {
		if prices[i] <= 0 {
			continue
		}
		priced++
		wg.Add(1)
		go func(s *session, price float64) {
			defer wg.Done()
			r.step(ctx, s, price, balances)
		}(r.sessions[sym], prices[i])
	}
	wg.Wait()

	if r.deps.Health != nil {
		r.deps.Health.RecordCycle(started, priced, len(r.symbols)-priced)
		r.readyOnce.Do(func() { r.deps.Health.SetReady(true) })
	}
	logger.Debug("[CYCLE] done in %s", r.now().Sub(started))
}

func (r *Runner) fetchBalances(ctx context.Context) (models.Balances, error) {
	bctx, cancel := context.WithTimeout(ctx, r.opts.RequestTimeout)
	defer cancel()
	return r.deps.Balances.Balances(bctx)
}

// fetchPrices цены в порядке r.symbols; 0 для символов, по которым цену получить не удалось.
func (r *Runner) fetchPrices(ctx context.Context) []float64 {
	prices := make([]float64, len(r.symbols))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.FetchConcurrency)
	for i, sym := range r.symbols {
		s := r.sessions[sym]
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(gctx, r.opts.RequestTimeout)
			defer cancel()
			p, err := r.deps.Prices.Price(pctx, s.productID)
			if err != nil {
				// ошибка одного символа не отменяет остальные
				logger.Warn("[PRICE] %s: %v", s.productID, err)
				return nil
			}
			prices[i] = p
			return nil
		})
	}
	_ = g.Wait()
	return prices
}

// Snapshots текущее состояние всех символов (для /status и сводки).
func (r *Runner) Snapshots() []models.StateSnapshot {
	now := r.now()
	out := make([]models.StateSnapshot, 0, len(r.symbols))
	for _, sym := range r.symbols {
		s := r.sessions[sym]
		s.state.Lock()
		out = append(out, s.state.Snapshot(now))
		s.state.Unlock()
	}
	return out
}
