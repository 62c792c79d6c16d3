package runner

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"coinbase_bot/internal/models"
	"coinbase_bot/pkg/logger"
)

// maxResubmits попыток переотправки ордера, приём которого биржа не подтвердила.
const maxResubmits = 10

// pendingOrder ордер, отправленный на биржу и ещё не дошедший до финального статуса.
type pendingOrder struct {
	OrderID       string
	ClientOrderID string
	Symbol        string
	Side          models.Side
	Type          models.OrderType
	Quantity      float64
	Price         float64 // цена решения или лимитная цена
	PlacedAt      time.Time

	// applied: состояние уже обновлено при отправке (рыночные ордера)
	applied         bool
	cancelRequested bool

	// request: ответ на отправку потерян, OrderID неизвестен.
	// Ордер переотправляется с тем же client_order_id, биржа дубль не создаёт.
	request   *models.OrderRequest
	resubmits int

	// busy: ордер обрабатывает один из проходов сверки
	busy bool
}

func (o pendingOrder) key() string {
	if o.OrderID != "" {
		return o.OrderID
	}
	return "client:" + o.ClientOrderID
}

// FillFunc применяет исполнение к состоянию символа.
type FillFunc func(ctx context.Context, o pendingOrder, qty, price float64)

// Reconciler опрашивает статусы отправленных ордеров, применяет исполнения,
// которые не были применены при отправке, и снимает лимитки старше cancelAfter.
type Reconciler struct {
	orders      OrderGateway
	onFill      FillFunc
	cancelAfter time.Duration
	timeout     time.Duration
	pollEvery   time.Duration
	now         func() time.Time

	mu   sync.Mutex
	open map[string]*pendingOrder
}

func NewReconciler(orders OrderGateway, onFill FillFunc, cancelAfter, timeout time.Duration) *Reconciler {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Reconciler{
		orders:      orders,
		onFill:      onFill,
		cancelAfter: cancelAfter,
		timeout:     timeout,
		pollEvery:   time.Second,
		now:         time.Now,
		open:        make(map[string]*pendingOrder),
	}
}

func (r *Reconciler) Track(o pendingOrder) {
	o.busy = false
	r.mu.Lock()
	r.open[o.key()] = &o
	r.mu.Unlock()
}

// HasOpen есть ли по символу ордер, исполнение которого ещё не применено к состоянию.
func (r *Reconciler) HasOpen(symbol string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.open {
		if o.Symbol == symbol && !o.applied {
			return true
		}
	}
	return false
}

func (r *Reconciler) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.open)
}

func (r *Reconciler) snapshot() []pendingOrder {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]pendingOrder, 0, len(r.open))
	for _, o := range r.open {
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlacedAt.Before(out[j].PlacedAt) })
	return out
}

// acquire закрепляет ордер за текущим проходом и отдаёт его актуальную копию.
// false, если ордер уже снят с учёта или его ведёт другой проход.
func (r *Reconciler) acquire(key string) (pendingOrder, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.open[key]
	if !ok || o.busy {
		return pendingOrder{}, false
	}
	o.busy = true
	return *o, true
}

func (r *Reconciler) release(key string) {
	r.mu.Lock()
	if o, ok := r.open[key]; ok {
		o.busy = false
	}
	r.mu.Unlock()
}

func (r *Reconciler) forget(key string) {
	r.mu.Lock()
	delete(r.open, key)
	r.mu.Unlock()
}

func (r *Reconciler) markCancelRequested(key string) {
	r.mu.Lock()
	if o, ok := r.open[key]; ok {
		o.cancelRequested = true
	}
	r.mu.Unlock()
}

// confirm переводит ордер с client_order_id на присвоенный биржей OrderID.
func (r *Reconciler) confirm(key, orderID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.open[key]
	if !ok {
		return
	}
	delete(r.open, key)
	o.OrderID = orderID
	o.request = nil
	o.busy = false
	r.open[orderID] = o
}

func (r *Reconciler) countResubmit(key string) {
	r.mu.Lock()
	if o, ok := r.open[key]; ok {
		o.resubmits++
	}
	r.mu.Unlock()
}

// Reconcile один проход по всем отслеживаемым ордерам. Параллельные проходы
// не обрабатывают один ордер дважды.
func (r *Reconciler) Reconcile(ctx context.Context) {
	for _, o := range r.snapshot() {
		key := o.key()
		cur, ok := r.acquire(key)
		if !ok {
			continue
		}
		r.reconcileOne(ctx, key, cur)
		r.release(key)
	}
}

func (r *Reconciler) reconcileOne(ctx context.Context, key string, o pendingOrder) {
	if o.request != nil {
		r.resubmit(ctx, key, o)
		return
	}

	sctx, cancel := context.WithTimeout(ctx, r.timeout)
	res, err := r.orders.OrderStatus(sctx, o.OrderID)
	cancel()
	if err != nil {
		logger.Warn("[RECONCILE] %s %s status: %v", o.Symbol, o.OrderID, err)
		return
	}

	switch {
	case res.Status == models.OrderFilled:
		r.settle(ctx, o, res)
		logger.Info("[RECONCILE] %s %s %s filled %.8f @ %.6f", o.Symbol, o.Side, o.OrderID, res.FilledSize, res.AvgPrice)
		r.forget(key)

	case res.Status.Terminal():
		// частичное исполнение до отмены тоже сделка
		if res.FilledSize > 0 {
			r.settle(ctx, o, res)
		}
		logger.Info("[RECONCILE] %s %s %s closed as %s (filled %.8f)", o.Symbol, o.Side, o.OrderID, res.Status, res.FilledSize)
		r.forget(key)

	case o.Type == models.OrderLimit && !o.cancelRequested && r.cancelAfter > 0 &&
		r.now().Sub(o.PlacedAt) > r.cancelAfter:
		cctx, cancel := context.WithTimeout(ctx, r.timeout)
		err := r.orders.CancelOrder(cctx, o.OrderID)
		cancel()
		if err != nil {
			logger.Warn("[RECONCILE] %s cancel %s: %v", o.Symbol, o.OrderID, err)
			return
		}
		r.markCancelRequested(key)
		logger.Info("[RECONCILE] %s %s limit order %s older than %s, cancel requested", o.Symbol, o.Side, o.OrderID, r.cancelAfter)
	}
}

// resubmit повторяет отправку с тем же client_order_id: если первая попытка дошла,
// биржа вернёт уже созданный ордер.
func (r *Reconciler) resubmit(ctx context.Context, key string, o pendingOrder) {
	pctx, cancel := context.WithTimeout(ctx, r.timeout)
	res, err := r.orders.PlaceOrder(pctx, *o.request)
	cancel()

	switch {
	case err == nil && res.OrderID != "":
		r.confirm(key, res.OrderID)
		logger.Info("[RECONCILE] %s %s client order %s confirmed as %s", o.Symbol, o.Side, o.ClientOrderID, res.OrderID)
	case err == nil:
		r.forget(key)
		logger.Error("[RECONCILE] %s %s client order %s: empty order id, dropped", o.Symbol, o.Side, o.ClientOrderID)
	case errors.Is(err, models.ErrTransientNetwork) && o.resubmits+1 < maxResubmits:
		r.countResubmit(key)
		logger.Warn("[RECONCILE] %s %s client order %s resubmit %d: %v", o.Symbol, o.Side, o.ClientOrderID, o.resubmits+1, err)
	default:
		r.forget(key)
		logger.Error("[RECONCILE] %s %s client order %s dropped after %d resubmits: %v", o.Symbol, o.Side, o.ClientOrderID, o.resubmits+1, err)
	}
}

func (r *Reconciler) settle(ctx context.Context, o pendingOrder, res models.OrderResult) {
	if o.applied || r.onFill == nil {
		return
	}
	qty, price := res.FilledSize, res.AvgPrice
	if qty <= 0 {
		qty = o.Quantity
	}
	if price <= 0 {
		price = o.Price
	}
	r.onFill(ctx, o, qty, price)
}

// Drain на остановке доводит отправленные ордера до финального статуса, пока не истечёт ctx.
// Открытые лимитки на бирже не снимаются.
func (r *Reconciler) Drain(ctx context.Context) {
	for r.Pending() > 0 {
		r.Reconcile(ctx)
		if r.Pending() == 0 {
			return
		}
		select {
		case <-ctx.Done():
			for _, o := range r.snapshot() {
				logger.Warn("[RECONCILE] shutdown with %s %s order %s still open", o.Symbol, o.Side, o.key())
			}
			return
		case <-time.After(r.pollEvery):
		}
	}
}
