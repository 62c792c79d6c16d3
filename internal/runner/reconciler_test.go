package runner

import (
	"context"
	"sync"
	"testing"
	"time"

	"coinbase_bot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fillRecord struct {
	order pendingOrder
	qty   float64
	price float64
}

func newTestReconciler(orders *fakeOrders, cancelAfter time.Duration) (*Reconciler, *[]fillRecord, *time.Time) {
	var fills []fillRecord
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	r := NewReconciler(orders, func(_ context.Context, o pendingOrder, qty, price float64) {
		fills = append(fills, fillRecord{order: o, qty: qty, price: price})
	}, cancelAfter, time.Second)
	r.now = func() time.Time { return now }
	r.pollEvery = time.Millisecond
	return r, &fills, &now
}

func TestReconciler_CancelsStaleLimitOrder(t *testing.T) {
	orders := newFakeOrders()
	r, fills, now := newTestReconciler(orders, 3*time.Hour)

	r.Track(pendingOrder{OrderID: "L1", Symbol: "ETH", Side: models.SideBuy, Type: models.OrderLimit, Quantity: 1, Price: 94, PlacedAt: *now})
	orders.setStatus("L1", models.OrderResult{Status: models.OrderOpen})

	r.Reconcile(context.Background())
	assert.Empty(t, orders.cancelled)

	*now = now.Add(3*time.Hour + time.Minute)
	r.Reconcile(context.Background())
	r.Reconcile(context.Background())
	assert.Equal(t, []string{"L1"}, orders.cancelled)
	assert.True(t, r.HasOpen("ETH"))

	orders.setStatus("L1", models.OrderResult{Status: models.OrderCancelled})
	r.Reconcile(context.Background())
	assert.Zero(t, r.Pending())
	assert.False(t, r.HasOpen("ETH"))
	assert.Empty(t, *fills)
}

func TestReconciler_PartialFillBeforeCancel(t *testing.T) {
	orders := newFakeOrders()
	r, fills, now := newTestReconciler(orders, time.Hour)

	r.Track(pendingOrder{OrderID: "L2", Symbol: "BTC", Side: models.SideSell, Type: models.OrderLimit, Quantity: 0.5, Price: 50000, PlacedAt: *now})
	orders.setStatus("L2", models.OrderResult{Status: models.OrderCancelled, FilledSize: 0.2, AvgPrice: 50010})

	r.Reconcile(context.Background())
	require.Len(t, *fills, 1)
	assert.Equal(t, 0.2, (*fills)[0].qty)
	assert.Equal(t, 50010.0, (*fills)[0].price)
	assert.Zero(t, r.Pending())
}

func TestReconciler_FillFallsBackToOrderValues(t *testing.T) {
	orders := newFakeOrders()
	r, fills, now := newTestReconciler(orders, 0)

	r.Track(pendingOrder{OrderID: "L3", Symbol: "ETH", Side: models.SideBuy, Type: models.OrderLimit, Quantity: 1.5, Price: 94.05, PlacedAt: *now})
	orders.setStatus("L3", models.OrderResult{Status: models.OrderFilled})

	r.Reconcile(context.Background())
	require.Len(t, *fills, 1)
	assert.Equal(t, 1.5, (*fills)[0].qty)
	assert.Equal(t, 94.05, (*fills)[0].price)
}

func TestReconciler_AppliedMarketOrderNotReapplied(t *testing.T) {
	orders := newFakeOrders()
	r, fills, now := newTestReconciler(orders, time.Minute)

	r.Track(pendingOrder{OrderID: "M1", Symbol: "ETH", Side: models.SideBuy, Type: models.OrderMarket, Quantity: 1, Price: 95, PlacedAt: *now, applied: true})
	assert.False(t, r.HasOpen("ETH"))

	// рыночный ордер никогда не снимается по возрасту
	*now = now.Add(time.Hour)
	orders.setStatus("M1", models.OrderResult{Status: models.OrderPending})
	r.Reconcile(context.Background())
	assert.Empty(t, orders.cancelled)

	orders.setStatus("M1", models.OrderResult{Status: models.OrderFilled, FilledSize: 1, AvgPrice: 95.1})
	r.Reconcile(context.Background())
	assert.Empty(t, *fills)
	assert.Zero(t, r.Pending())
}

func TestReconciler_StatusErrorKeepsOrder(t *testing.T) {
	orders := newFakeOrders()
	orders.statusErr = models.ErrTransientNetwork
	r, _, now := newTestReconciler(orders, time.Minute)

	r.Track(pendingOrder{OrderID: "X", Symbol: "ETH", Type: models.OrderLimit, PlacedAt: now.Add(-time.Hour)})
	r.Reconcile(context.Background())
	assert.Equal(t, 1, r.Pending())
	assert.Empty(t, orders.cancelled)
}

func TestReconciler_DrainUntilTerminal(t *testing.T) {
	orders := newFakeOrders()
	r, _, now := newTestReconciler(orders, 0)

	r.Track(pendingOrder{OrderID: "M2", Symbol: "ETH", Type: models.OrderMarket, PlacedAt: *now, applied: true})
	orders.setStatus("M2", models.OrderResult{Status: models.OrderFilled})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	r.Drain(ctx)
	assert.Zero(t, r.Pending())
}

func TestReconciler_DrainStopsAtDeadline(t *testing.T) {
	orders := newFakeOrders()
	r, _, now := newTestReconciler(orders, 0)

	r.Track(pendingOrder{OrderID: "L9", Symbol: "ETH", Type: models.OrderLimit, PlacedAt: *now})
	orders.setStatus("L9", models.OrderResult{Status: models.OrderOpen})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	start := time.Now()
	r.Drain(ctx)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1, r.Pending())
	assert.Empty(t, orders.cancelled)
}

func TestReconciler_ConcurrentPassesApplyFillOnce(t *testing.T) {
	orders := newFakeOrders()
	orders.statusDelay = 50 * time.Millisecond

	var mu sync.Mutex
	fills := 0
	r := NewReconciler(orders, func(context.Context, pendingOrder, float64, float64) {
		mu.Lock()
		fills++
		mu.Unlock()
	}, 0, time.Second)

	r.Track(pendingOrder{OrderID: "L5", Symbol: "ETH", Side: models.SideBuy, Type: models.OrderLimit, Quantity: 1, Price: 94, PlacedAt: time.Now()})
	orders.setStatus("L5", models.OrderResult{Status: models.OrderFilled, FilledSize: 1, AvgPrice: 94})

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Reconcile(context.Background())
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, fills)
	assert.Zero(t, r.Pending())
}

func TestReconciler_UnconfirmedOrderResubmittedWithSameClientID(t *testing.T) {
	orders := newFakeOrders()
	r, fills, now := newTestReconciler(orders, time.Hour)

	req := models.OrderRequest{ClientOrderID: "c-1", ProductID: "ETH-USDC", Side: models.SideBuy, Type: models.OrderMarket, QuoteSize: "100.00"}
	r.Track(pendingOrder{ClientOrderID: "c-1", Symbol: "ETH", Side: models.SideBuy, Type: models.OrderMarket, Quantity: 1.05, Price: 95, PlacedAt: *now, request: &req})
	assert.True(t, r.HasOpen("ETH"))

	orders.setPlaceErr(models.ErrTransientNetwork)
	r.Reconcile(context.Background())
	assert.Equal(t, 1, r.Pending())
	assert.Empty(t, orders.placed)

	orders.setPlaceErr(nil)
	r.Reconcile(context.Background())
	require.Len(t, orders.placed, 1)
	assert.Equal(t, "c-1", orders.placed[0].ClientOrderID)
	assert.Equal(t, 1, r.Pending())
	assert.True(t, r.HasOpen("ETH"))
	assert.Empty(t, *fills)

	orders.setStatus("ord-1", models.OrderResult{Status: models.OrderFilled, FilledSize: 1.05, AvgPrice: 95.2})
	r.Reconcile(context.Background())
	require.Len(t, *fills, 1)
	assert.Equal(t, "ord-1", (*fills)[0].order.OrderID)
	assert.Equal(t, 95.2, (*fills)[0].price)
	assert.Zero(t, r.Pending())
	assert.False(t, r.HasOpen("ETH"))
}

func TestReconciler_UnconfirmedOrderDroppedAfterResubmits(t *testing.T) {
	orders := newFakeOrders()
	orders.placeErr = models.ErrTransientNetwork
	r, fills, now := newTestReconciler(orders, time.Hour)

	req := models.OrderRequest{ClientOrderID: "c-2", ProductID: "ETH-USDC", Side: models.SideSell, Type: models.OrderMarket, BaseSize: "0.1"}
	r.Track(pendingOrder{ClientOrderID: "c-2", Symbol: "ETH", Side: models.SideSell, Type: models.OrderMarket, PlacedAt: *now, request: &req})

	for i := 0; i < maxResubmits-1; i++ {
		r.Reconcile(context.Background())
		require.Equal(t, 1, r.Pending(), "attempt %d", i+1)
	}
	r.Reconcile(context.Background())
	assert.Zero(t, r.Pending())
	assert.Len(t, orders.attempts, maxResubmits)
	assert.Empty(t, *fills)
}

func TestReconciler_RejectedResubmitIsDropped(t *testing.T) {
	orders := newFakeOrders()
	orders.placeErr = models.ErrOrderRejected
	r, _, now := newTestReconciler(orders, time.Hour)

	req := models.OrderRequest{ClientOrderID: "c-3"}
	r.Track(pendingOrder{ClientOrderID: "c-3", Symbol: "ETH", Type: models.OrderLimit, PlacedAt: now.Add(-24 * time.Hour), request: &req})
	r.Reconcile(context.Background())
	assert.Zero(t, r.Pending())
	assert.Empty(t, orders.cancelled)
}
