package runner

import (
	"context"
	"errors"
	"time"

	"coinbase_bot/internal/exchange"
	"coinbase_bot/internal/models"
	"coinbase_bot/internal/strategy"
	"coinbase_bot/pkg/logger"
	"coinbase_bot/pkg/tracing"
)

// step наблюдение цены, решение и, при сигнале, ордер для одного символа.
// Не более одного шага на символ одновременно.
func (r *Runner) step(ctx context.Context, s *session, price float64, balances models.Balances) {
	if !s.state.TryLock() {
		logger.Warn("[STEP] %s: previous step still running, skip", s.coin.Symbol)
		return
	}
	defer s.state.Unlock()

	span, ctx := tracing.StartSpan(ctx, "runner.step")
	span.SetTag("symbol", s.coin.Symbol)
	var stepErr error
	defer func() { tracing.Finish(span, stepErr) }()

	if !s.loaded {
		r.restore(ctx, s)
	}

	changed, err := s.state.Observe(price)
	if err != nil {
		stepErr = err
		logger.Warn("[STEP] %v", err)
		return
	}
	if !changed {
		logger.Debug("[STEP] %s: price %.6f unchanged", s.coin.Symbol, price)
		return
	}
	now := r.now()
	r.persist(ctx, s.coin.Symbol, "append price", func(ctx context.Context) error {
		return r.deps.Store.AppendPriceHistory(ctx, s.coin.Symbol, price, now)
	})

	d := s.engine.Decide(ctx, s.state, balances)
	s.state.SetLastDecision(d.String())
	r.logDecision(s, d)

	if d.Intent != nil {
		stepErr = r.submit(ctx, s, d)
	}

	snap := s.state.Snapshot(r.now())
	r.persist(ctx, s.coin.Symbol, "save state", func(ctx context.Context) error {
		return r.deps.Store.SaveState(ctx, snap)
	})
	r.publish(ctx, snap)
}

// restore поднимает состояние из хранилища при первом наблюдении символа.
// Ошибка хранилища не блокирует торговлю: продолжаем с пустым состоянием в памяти.
func (r *Runner) restore(ctx context.Context, s *session) {
	s.loaded = true

	lctx, cancel := context.WithTimeout(ctx, r.opts.RequestTimeout)
	defer cancel()

	snap, err := r.deps.Store.LoadState(lctx, s.coin.Symbol)
	if err != nil {
		logger.Error("[STATE] %s: load: %v", s.coin.Symbol, err)
		return
	}
	if snap == nil {
		logger.Info("[STATE] %s: no saved state, starting from first price", s.coin.Symbol)
		return
	}

	limit := s.engine.Params().Capacity()
	if r.opts.HistoryLimit > 0 && r.opts.HistoryLimit < limit {
		limit = r.opts.HistoryLimit
	}
	history, err := r.deps.Store.LoadPriceHistory(lctx, s.coin.Symbol, limit)
	if err != nil {
		logger.Warn("[STATE] %s: load history: %v", s.coin.Symbol, err)
		history = nil
	}
	s.state.Restore(*snap, history)
	logger.Info("[STATE] %s: restored ref=%.6f trades=%d profit=%.2f history=%d",
		s.coin.Symbol, snap.ReferencePrice, snap.TotalTrades, snap.TotalProfit, len(history))
}

func (r *Runner) logDecision(s *session, d strategy.Decision) {
	ind := d.Indicators
	switch {
	case d.Intent != nil:
		logger.Info("[DECISION] %s %s price=%.6f change=%.2f%% (buy<=%.2f sell>=%.2f)",
			s.coin.Symbol, d, ind.Price, ind.ChangePct, ind.DynBuy, ind.DynSell)
	case d.Err != nil && !errors.Is(d.Err, models.ErrDataUnavailable):
		logger.Info("[DECISION] %s %s", s.coin.Symbol, d)
	default:
		logger.Debug("[DECISION] %s %s price=%.6f change=%.2f%%", s.coin.Symbol, d, ind.Price, ind.ChangePct)
	}
}

// submit отправка ордера. Состояние меняется только после ответа биржи:
// рыночный ордер применяется сразу, лимитный после исполнения (Reconciler).
// Ордер без ответа биржи не теряется: Reconciler переотправит его с тем же client_order_id.
func (r *Runner) submit(ctx context.Context, s *session, d strategy.Decision) error {
	in := d.Intent
	if r.rec.HasOpen(s.coin.Symbol) {
		logger.Info("[ORDER] %s: unfilled order still open, skip %s", s.coin.Symbol, in.Side)
		return nil
	}

	p := s.engine.Params()
	req := exchange.BuildOrder(*in, s.productID, p.QuotePrecision, p.BasePrecision)

	if r.opts.DryRun {
		logger.Info("[DRY-RUN] %s %s base=%s quote=%s limit=%s: %s",
			req.ProductID, req.Side, req.BaseSize, req.QuoteSize, req.LimitPrice, in.Reason)
		r.notify("🧪 DRY-RUN %s %s %.8f @ %.6f\n%s", s.coin.Symbol, in.Side, in.Quantity, in.Price, in.Reason)
		return nil
	}

	s.state.BeginOrder()
	defer s.state.EndOrder()

	o := pendingOrder{
		ClientOrderID: req.ClientOrderID,
		Symbol:        s.coin.Symbol,
		Side:          in.Side,
		Type:          in.Type,
		Quantity:      in.Quantity,
		Price:         in.Price,
	}
	if in.Type == models.OrderLimit {
		o.Price = in.LimitPrice
	}

	octx, cancel := context.WithTimeout(ctx, r.opts.RequestTimeout)
	res, err := r.deps.Orders.PlaceOrder(octx, req)
	cancel()
	o.PlacedAt = r.now()
	if err != nil {
		if errors.Is(err, models.ErrTransientNetwork) {
			// ответ потерян, но ордер мог дойти: дальше его ведёт Reconciler по client_order_id
			o.request = &req
			r.rec.Track(o)
			logger.Warn("[ORDER] %s %s unconfirmed, client order %s kept for resubmit: %v", s.coin.Symbol, in.Side, req.ClientOrderID, err)
			r.notify("⚠️ %s %s: ответ биржи не получен, ордер %s будет проверен повторно", s.coin.Symbol, in.Side, req.ClientOrderID)
			return err
		}
		logger.Error("[ORDER] %s %s failed: %v", s.coin.Symbol, in.Side, err)
		r.notify("❌ %s %s не отправлен: %v", s.coin.Symbol, in.Side, err)
		return err
	}

	o.OrderID = res.OrderID
	if in.Type == models.OrderLimit {
		r.rec.Track(o)
		logger.Info("[ORDER] %s %s limit %.8f @ %.6f placed: %s", s.coin.Symbol, in.Side, in.Quantity, in.LimitPrice, res.OrderID)
		r.notify("⏳ %s %s лимит %.8f @ %.6f\n%s", s.coin.Symbol, in.Side, in.Quantity, in.LimitPrice, in.Reason)
		return nil
	}

	// рыночный ордер: применяем сразу, Reconciler только отслеживает финальный статус
	o.applied = true
	r.rec.Track(o)
	r.applyFill(ctx, s, o, in.Quantity, in.Price, o.PlacedAt)
	return nil
}

// applyFill вызывается под блокировкой состояния символа.
func (r *Runner) applyFill(ctx context.Context, s *session, o pendingOrder, qty, price float64, at time.Time) {
	var costBasis float64
	if o.Side == models.SideSell {
		wctx, cancel := context.WithTimeout(ctx, r.opts.RequestTimeout)
		avg, ok, err := r.deps.Store.WeightedAvgBuyPrice(wctx, s.coin.Symbol)
		cancel()
		switch {
		case err != nil:
			logger.Warn("[TRADE] %s: weighted avg buy price: %v, using reference", s.coin.Symbol, err)
		case ok:
			costBasis = avg
		}
	}

	before := s.state.TotalProfit()
	s.engine.Apply(s.state, strategy.Fill{Side: o.Side, Quantity: qty, Price: price, CostBasis: costBasis})

	trade := models.Trade{
		Symbol:    s.coin.Symbol,
		Side:      o.Side,
		Quantity:  qty,
		Price:     price,
		OrderID:   o.OrderID,
		CreatedAt: at,
	}
	snap := s.state.Snapshot(r.now())
	r.persist(ctx, s.coin.Symbol, "record trade", func(ctx context.Context) error {
		return r.deps.Store.RecordTrade(ctx, trade, snap)
	})
	r.publish(ctx, snap)

	logger.Info("[TRADE] %s %s %.8f @ %.6f order=%s ref=%.6f trades=%d",
		s.coin.Symbol, o.Side, qty, price, o.OrderID, snap.ReferencePrice, snap.TotalTrades)
	if o.Side == models.SideSell {
		r.notify("🔴 SELL %s %.8f @ %.6f\nПрибыль сделки: %.2f, всего: %.2f",
			s.coin.Symbol, qty, price, snap.TotalProfit-before, snap.TotalProfit)
	} else {
		r.notify("🟢 BUY %s %.8f @ %.6f\nНовая опорная цена: %.6f", s.coin.Symbol, qty, price, snap.ReferencePrice)
	}
}

// onOrderFill колбэк Reconciler: исполнение, не применённое при отправке
// (лимитные ордера и ордера, приём которых подтвердился позже).
func (r *Runner) onOrderFill(ctx context.Context, o pendingOrder, qty, price float64) {
	s, ok := r.sessions[o.Symbol]
	if !ok {
		logger.Warn("[TRADE] fill for unknown symbol %s", o.Symbol)
		return
	}
	s.state.Lock()
	defer s.state.Unlock()
	r.applyFill(ctx, s, o, qty, price, r.now())
}

// persist ошибка хранилища только логируется: состояние в памяти остаётся верным,
// следующий цикл запишет его снова.
func (r *Runner) persist(ctx context.Context, symbol, op string, fn func(ctx context.Context) error) {
	pctx, cancel := context.WithTimeout(ctx, r.opts.RequestTimeout)
	defer cancel()
	if err := fn(pctx); err != nil {
		logger.Error("[STORE] %s %s: %v", symbol, op, err)
	}
}

func (r *Runner) publish(ctx context.Context, snap models.StateSnapshot) {
	if r.deps.Cache == nil {
		return
	}
	pctx, cancel := context.WithTimeout(ctx, r.opts.RequestTimeout)
	defer cancel()
	if err := r.deps.Cache.Publish(pctx, snap); err != nil {
		logger.Warn("[CACHE] %s: %v", snap.Symbol, err)
	}
}

func (r *Runner) notify(format string, args ...any) {
	if r.deps.Notifier != nil {
		r.deps.Notifier.Sendf(format, args...)
	}
}
