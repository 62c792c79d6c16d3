package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"coinbase_bot/internal/config"
	"coinbase_bot/internal/models"
)

func testCoin(symbol string) config.CoinSettings {
	return config.CoinSettings{
		Symbol:                symbol,
		Enabled:               true,
		BuyPercentage:         -3,
		SellPercentage:        3,
		TradePercentage:       10,
		VolatilityWindow:      10,
		TrendWindow:           5,
		MACD:                  config.MACDSettings{Short: 12, Long: 26, Signal: 9},
		RSI:                   config.RSISettings{Period: 14, Oversold: 30, Overbought: 70},
		LongTermPeriod:        200,
		ConfirmationThreshold: 2,
		ProximityPct:          10,
		TrendFilter:           "none",
		MinOrderSizes:         config.MinOrderSizes{Buy: 1, Sell: 0.0001},
		Precision:             config.Precision{Quote: 2, Base: 6},
		OrderType:             "market",
	}
}

func testConfig(coins ...config.CoinSettings) *config.Config {
	cfg := &config.Config{Coins: map[string]config.CoinSettings{}}
	cfg.Trading.QuoteCurrency = "USDC"
	for _, c := range coins {
		cfg.Coins[c.Symbol] = c
	}
	return cfg
}

type fakeFeed struct {
	mu     sync.Mutex
	prices map[string][]float64
	errs   map[string]error
	calls  map[string]int
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{prices: map[string][]float64{}, errs: map[string]error{}, calls: map[string]int{}}
}

// Price отдаёт цены по очереди, последняя повторяется.
func (f *fakeFeed) Price(_ context.Context, productID string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[productID]; err != nil {
		return 0, err
	}
	seq := f.prices[productID]
	if len(seq) == 0 {
		return 0, fmt.Errorf("%s: %w", productID, models.ErrDataUnavailable)
	}
	i := min(f.calls[productID], len(seq)-1)
	f.calls[productID]++
	return seq[i], nil
}

type fakeBalances struct {
	b   models.Balances
	err error
}

func (f *fakeBalances) Balances(context.Context) (models.Balances, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := models.Balances{}
	for k, v := range f.b {
		out[k] = v
	}
	return out, nil
}

type fakeOrders struct {
	mu          sync.Mutex
	attempts    []models.OrderRequest
	placed      []models.OrderRequest
	placeErr    error
	statuses    map[string]models.OrderResult
	statusErr   error
	statusDelay time.Duration
	cancelled   []string
	seq         int
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{statuses: map[string]models.OrderResult{}}
}

func (f *fakeOrders) PlaceOrder(_ context.Context, req models.OrderRequest) (models.OrderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts = append(f.attempts, req)
	if f.placeErr != nil {
		return models.OrderResult{}, f.placeErr
	}
	f.placed = append(f.placed, req)
	f.seq++
	id := fmt.Sprintf("ord-%d", f.seq)
	f.statuses[id] = models.OrderResult{OrderID: id, Status: models.OrderPending}
	return models.OrderResult{OrderID: id, ClientOrderID: req.ClientOrderID, Status: models.OrderPending}, nil
}

func (f *fakeOrders) OrderStatus(_ context.Context, id string) (models.OrderResult, error) {
	if f.statusDelay > 0 {
		time.Sleep(f.statusDelay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return models.OrderResult{}, f.statusErr
	}
	res, ok := f.statuses[id]
	if !ok {
		return models.OrderResult{OrderID: id, Status: models.OrderUnknown}, nil
	}
	return res, nil
}

func (f *fakeOrders) CancelOrder(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, id)
	return nil
}

func (f *fakeOrders) setPlaceErr(err error) {
	f.mu.Lock()
	f.placeErr = err
	f.mu.Unlock()
}

func (f *fakeOrders) setStatus(id string, res models.OrderResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	res.OrderID = id
	f.statuses[id] = res
}

type memStore struct {
	mu       sync.Mutex
	states   map[string]models.StateSnapshot
	history  map[string][]float64
	trades   []models.Trade
	saves    int
	appends  int
	avgBuy   map[string]float64
	histReq  int
	loadErr  error
	writeErr error
}

func newMemStore() *memStore {
	return &memStore{
		states:  map[string]models.StateSnapshot{},
		history: map[string][]float64{},
		avgBuy:  map[string]float64{},
	}
}

func (m *memStore) SaveState(_ context.Context, snap models.StateSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.saves++
	m.states[snap.Symbol] = snap
	return nil
}

func (m *memStore) LoadState(_ context.Context, symbol string) (*models.StateSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	s, ok := m.states[symbol]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *memStore) LoadPriceHistory(_ context.Context, symbol string, limit int) ([]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.histReq = limit
	h := m.history[symbol]
	if len(h) > limit {
		h = h[len(h)-limit:]
	}
	return append([]float64(nil), h...), nil
}

func (m *memStore) AppendPriceHistory(_ context.Context, symbol string, price float64, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.appends++
	m.history[symbol] = append(m.history[symbol], price)
	return nil
}

func (m *memStore) RecordTrade(_ context.Context, t models.Trade, snap models.StateSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.trades = append(m.trades, t)
	m.states[snap.Symbol] = snap
	return nil
}

func (m *memStore) WeightedAvgBuyPrice(_ context.Context, symbol string) (float64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.avgBuy[symbol]
	return v, ok, nil
}

func (m *memStore) tradeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.trades)
}

type fakeCache struct {
	mu    sync.Mutex
	snaps map[string]models.StateSnapshot
}

func (f *fakeCache) Publish(_ context.Context, snap models.StateSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.snaps == nil {
		f.snaps = map[string]models.StateSnapshot{}
	}
	f.snaps[snap.Symbol] = snap
	return nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	msgs []string
}

func (f *fakeNotifier) Send(msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
}

func (f *fakeNotifier) Sendf(format string, args ...any) { f.Send(fmt.Sprintf(format, args...)) }

type fakeHealth struct {
	mu         sync.Mutex
	ready      bool
	cycles     int
	lastFailed int
}

func (f *fakeHealth) SetReady(v bool) {
	f.mu.Lock()
	f.ready = v
	f.mu.Unlock()
}

func (f *fakeHealth) RecordCycle(_ time.Time, _, failed int) {
	f.mu.Lock()
	f.cycles++
	f.lastFailed = failed
	f.mu.Unlock()
}
