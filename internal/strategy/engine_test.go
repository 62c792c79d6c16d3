package strategy

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"coinbase_bot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type fakeOracle struct {
	side  models.Side
	text  string
	err   error
	calls int
}

func (o *fakeOracle) Ask(_ context.Context, _ string) (models.Side, string, error) {
	o.calls++
	return o.side, o.text, o.err
}

func testParams() Params {
	p := DefaultParams()
	p.BaseCurrency = "ETH"
	p.QuoteCurrency = "USDC"
	p.VolatilityWindow = 5
	p.TrendWindow = 5
	p.ProximityPct = 10
	p.MinBuyQuote = 10
	p.MinSellBase = 0.001
	return p
}

func newTestEngine(p Params, opts ...Option) (*Engine, *SymbolState, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	e := NewEngine("ETH", p, opts...)
	return e, e.NewState(), clock
}

func feed(t *testing.T, e *Engine, st *SymbolState, balances models.Balances, prices ...float64) Decision {
	t.Helper()
	var d Decision
	for _, p := range prices {
		changed, err := st.Observe(p)
		require.NoError(t, err)
		require.True(t, changed)
		d = e.Decide(context.Background(), st, balances)
	}
	return d
}

func TestDecideBuyOnDropResetsReference(t *testing.T) {
	e, st, _ := newTestEngine(testParams())
	balances := models.Balances{"USDC": 1000}

	d := feed(t, e, st, balances, 100, 102, 101, 99)
	assert.True(t, d.Hold())
	assert.ErrorIs(t, d.Err, models.ErrDataUnavailable)
	assert.Equal(t, PhaseAwaitingData, st.Phase())

	d = feed(t, e, st, balances, 95)
	require.False(t, d.Hold(), d.String())
	assert.Equal(t, PhaseEvaluating, st.Phase())
	assert.Equal(t, models.SideBuy, d.Side)
	assert.Equal(t, SourceRules, d.Source)
	assert.InDelta(t, -5.0, d.Indicators.ChangePct, 1e-9)
	assert.Equal(t, 100.0, d.Intent.QuoteAmount)
	assert.InDelta(t, 100.0/95, d.Intent.Quantity, 1e-6)

	e.Apply(st, Fill{Side: d.Side, Quantity: d.Intent.Quantity, Price: d.Intent.Price})
	assert.Equal(t, 95.0, st.Reference())
	assert.Equal(t, int64(1), st.TotalTrades())
}

func TestDecideSell(t *testing.T) {
	e, st, _ := newTestEngine(testParams())
	d := feed(t, e, st, models.Balances{"ETH": 1}, 100, 100.5, 100, 100.5, 104)

	require.False(t, d.Hold(), d.String())
	assert.Equal(t, models.SideSell, d.Side)
	assert.Equal(t, 0.1, d.Intent.Quantity)
}

func TestProximityGateHolds(t *testing.T) {
	p := testParams()
	p.ProximityPct = 2
	e, st, _ := newTestEngine(p)

	d := feed(t, e, st, models.Balances{"ETH": 1}, 100, 100.5, 100, 100.5, 104)
	assert.True(t, d.Hold())
	assert.NoError(t, d.Err)
	assert.Contains(t, d.Reason, "too far")
}

func TestBuyIsEvaluatedBeforeSell(t *testing.T) {
	p := testParams()
	// пороги перекрываются: оба условия истинны
	p.BuyThresholdPct = 1
	p.SellThresholdPct = -1
	e, st, _ := newTestEngine(p)

	d := feed(t, e, st, models.Balances{"USDC": 1000, "ETH": 1}, 100, 100.1, 100, 100.1, 100.2)
	require.False(t, d.Hold())
	assert.Equal(t, models.SideBuy, d.Side)
}

func TestInsufficientBalanceSkipsSide(t *testing.T) {
	e, st, _ := newTestEngine(testParams())

	d := feed(t, e, st, models.Balances{"ETH": 1}, 100, 101, 100, 99, 96)
	assert.True(t, d.Hold())
	assert.ErrorIs(t, d.Err, models.ErrInsufficientBalance)
}

func TestOrderBelowMinimumIsSuppressed(t *testing.T) {
	p := testParams()
	p.MinBuyQuote = 1000
	e, st, _ := newTestEngine(p)

	d := feed(t, e, st, models.Balances{"USDC": 1000}, 100, 102, 101, 99, 95)
	assert.True(t, d.Hold())
	assert.Equal(t, models.SideBuy, d.Side)
	assert.ErrorIs(t, d.Err, models.ErrOrderTooSmall)
	assert.Equal(t, 100.0, st.Reference())
	assert.Zero(t, st.TotalTrades())
}

func TestStopLossSellsWholeBase(t *testing.T) {
	p := testParams()
	p.StopLossPct = -10
	p.ProximityPct = 2
	e, st, _ := newTestEngine(p)

	d := feed(t, e, st, models.Balances{"ETH": 2.5}, 100, 99, 100, 99, 88)
	require.False(t, d.Hold(), d.String())
	assert.Equal(t, SourceStopLoss, d.Source)
	assert.Equal(t, models.SideSell, d.Side)
	assert.Equal(t, 2.5, d.Intent.Quantity)
}

func TestTrendFilter(t *testing.T) {
	p := testParams()
	p.LongTermPeriod = 5
	p.TrendFilter = TrendFollow
	e, st, _ := newTestEngine(p)

	// цена ниже долгосрочной средней: в режиме follow покупки запрещены
	d := feed(t, e, st, models.Balances{"USDC": 1000}, 100, 102, 101, 99, 95)
	assert.True(t, d.Hold())

	p.TrendFilter = TrendRevert
	e, st, _ = newTestEngine(p)
	d = feed(t, e, st, models.Balances{"USDC": 1000}, 100, 102, 101, 99, 95)
	require.False(t, d.Hold())
	assert.Equal(t, models.SideBuy, d.Side)
}

func TestLimitOrderPricing(t *testing.T) {
	p := testParams()
	p.OrderType = models.OrderLimit
	p.LimitOffsetPct = 1
	e, st, _ := newTestEngine(p)

	d := feed(t, e, st, models.Balances{"USDC": 1000}, 100, 102, 101, 99, 95)
	require.False(t, d.Hold())
	assert.Equal(t, models.OrderLimit, d.Intent.Type)
	assert.Equal(t, 94.05, d.Intent.LimitPrice)
	assert.InDelta(t, 100/94.05, d.Intent.Quantity, 1e-6)
}

func TestConfirmationCountersFollowMACD(t *testing.T) {
	p := testParams()
	p.MACDShort, p.MACDLong, p.MACDSignal = 3, 6, 3
	p.BuyThresholdPct, p.SellThresholdPct = -50, 50
	p.ProximityPct = 50
	e, st, _ := newTestEngine(p)

	prices := []float64{100, 100.1, 100, 100.1, 100, 100.1, 100, 100.1, 100, 101, 102, 103, 104, 103, 102, 101, 100}
	prev := st.Confirmations()
	for _, px := range prices {
		d := feed(t, e, st, models.Balances{}, px)
		c := st.Confirmations()
		assert.GreaterOrEqual(t, c.Buy, 0)
		assert.GreaterOrEqual(t, c.Sell, 0)

		if st.Phase() == PhaseEvaluating && d.Indicators.HasMACD {
			switch {
			case d.Indicators.MACD.Line > d.Indicators.MACD.Signal:
				assert.Equal(t, prev.Buy+1, c.Buy)
			case d.Indicators.MACD.Line < d.Indicators.MACD.Signal:
				assert.Equal(t, prev.Sell+1, c.Sell)
			}
		}
		prev = c
	}
}

// confirmParams пороги изменения цены недостижимы: сигнал может дать только MACD+RSI.
func confirmParams() Params {
	p := testParams()
	p.BuyThresholdPct, p.SellThresholdPct = -90, 90
	p.MACDShort, p.MACDLong, p.MACDSignal = 3, 6, 3
	p.RSIPeriod = 5
	p.ProximityPct = 50
	return p
}

// decaying затухающее движение: шаг каждый раз на 3% меньше, MACD идёт к сигнальной линии.
func decaying(n int, from, to float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = to + (from-to)*math.Pow(0.97, float64(i))
	}
	return out
}

func TestIndicatorConfirmedSignal(t *testing.T) {
	tests := []struct {
		name     string
		prices   []float64
		balances models.Balances
		side     models.Side
		reason   string
		count    func(Confirmations) int
	}{
		{
			name:     "buy on slowing decline",
			prices:   decaying(10, 100, 0),
			balances: models.Balances{"USDC": 1000},
			side:     models.SideBuy,
			reason:   "macd above signal x2, rsi 0.0",
			count:    func(c Confirmations) int { return c.Buy },
		},
		{
			name:     "sell on slowing rise",
			prices:   decaying(10, 100, 200),
			balances: models.Balances{"ETH": 1},
			side:     models.SideSell,
			reason:   "macd below signal x2, rsi 100.0",
			count:    func(c Confirmations) int { return c.Sell },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, st, _ := newTestEngine(confirmParams())

			// девятая цена: MACD и RSI уже есть, подтверждение одно из двух
			d := feed(t, e, st, tt.balances, tt.prices[:9]...)
			require.True(t, d.Indicators.HasMACD)
			require.True(t, d.Indicators.HasRSI)
			assert.Equal(t, 1, tt.count(st.Confirmations()))
			assert.True(t, d.Hold(), d.String())
			assert.NoError(t, d.Err)

			d = feed(t, e, st, tt.balances, tt.prices[9])
			assert.Equal(t, 2, tt.count(st.Confirmations()))
			require.False(t, d.Hold(), d.String())
			assert.Equal(t, tt.side, d.Side)
			assert.Equal(t, SourceRules, d.Source)
			assert.Equal(t, tt.reason, d.Reason)
			assert.Greater(t, math.Abs(d.Indicators.ChangePct), 20.0)
		})
	}
}

func TestIndicatorSignalWaitsForThreshold(t *testing.T) {
	p := confirmParams()
	p.ConfirmationThreshold = 3
	e, st, _ := newTestEngine(p)
	prices := decaying(11, 100, 0)

	d := feed(t, e, st, models.Balances{"USDC": 1000}, prices[:10]...)
	assert.Equal(t, 2, st.Confirmations().Buy)
	assert.True(t, d.Hold(), d.String())

	d = feed(t, e, st, models.Balances{"USDC": 1000}, prices[10])
	require.False(t, d.Hold(), d.String())
	assert.Equal(t, models.SideBuy, d.Side)
	assert.Contains(t, d.Reason, "macd above signal x3")
}

func TestOracleOnlyAfterRulesAbstain(t *testing.T) {
	o := &fakeOracle{side: models.SideSell, text: "momentum fading"}
	e, st, _ := newTestEngine(testParams(), WithOracle(o))

	// правила дают BUY, оракул не нужен
	d := feed(t, e, st, models.Balances{"USDC": 1000, "ETH": 1}, 100, 102, 101, 99, 95)
	require.False(t, d.Hold())
	assert.Equal(t, SourceRules, d.Source)
	assert.Zero(t, o.calls)

	o2 := &fakeOracle{side: models.SideSell, text: "momentum fading"}
	e, st, _ = newTestEngine(testParams(), WithOracle(o2))
	d = feed(t, e, st, models.Balances{"ETH": 1}, 100, 100.2, 100, 100.2, 100.1)
	require.False(t, d.Hold(), d.String())
	assert.Equal(t, 1, o2.calls)
	assert.Equal(t, SourceOracle, d.Source)
	assert.Equal(t, models.SideSell, d.Side)
	assert.Contains(t, d.Reason, "momentum fading")
}

func TestOracleFailureIsHold(t *testing.T) {
	for name, o := range map[string]*fakeOracle{
		"error":   {err: errors.New("connection refused")},
		"garbage": {side: models.SideNone, text: "maybe later"},
	} {
		t.Run(name, func(t *testing.T) {
			e, st, _ := newTestEngine(testParams(), WithOracle(o))
			d := feed(t, e, st, models.Balances{"USDC": 1000, "ETH": 1}, 100, 100.2, 100, 100.2, 100.1)
			assert.True(t, d.Hold())
			assert.Equal(t, 1, o.calls)
		})
	}
}

func TestOracleBuyStillChecksMinimum(t *testing.T) {
	p := testParams()
	p.MinBuyQuote = 500
	o := &fakeOracle{side: models.SideBuy}
	e, st, _ := newTestEngine(p, WithOracle(o))

	d := feed(t, e, st, models.Balances{"USDC": 1000}, 100, 100.2, 100, 100.2, 100.1)
	assert.True(t, d.Hold())
	assert.ErrorIs(t, d.Err, models.ErrOrderTooSmall)
}

func driftParams() Params {
	p := testParams()
	p.LongTermPeriod = 5
	p.Drift = DriftParams{Enabled: true, Cooldown: time.Hour, Factor: 0.1, SustainCycles: 3}
	return p
}

func TestDriftAfterCooldown(t *testing.T) {
	e, st, clock := newTestEngine(driftParams())
	st.ResetReference(100)

	feed(t, e, st, models.Balances{}, 102, 102.1, 102.2, 102.1, 102.2)
	assert.Equal(t, 100.0, st.Reference(), "within cooldown since creation")

	clock.Advance(2 * time.Hour)
	feed(t, e, st, models.Balances{}, 102.1)
	assert.Equal(t, 100.0, st.Reference())

	d := feed(t, e, st, models.Balances{}, 102.2)
	assert.True(t, d.Hold())
	lta := (102.2 + 102.1 + 102.2 + 102.1 + 102.2) / 5
	assert.InDelta(t, 100+0.1*(lta-100), st.Reference(), 1e-9)
}

func TestDriftNeverWithinTradeCooldown(t *testing.T) {
	e, st, clock := newTestEngine(driftParams())
	st.Restore(models.StateSnapshot{
		ReferencePrice: 100,
		LastTradeAt:    clock.Now().Add(-30 * time.Minute),
		CreatedAt:      clock.Now().Add(-24 * time.Hour),
	}, nil)

	prices := []float64{102, 102.1, 102.2, 102.1, 102.2, 102.1, 102.2, 102.1}
	for _, px := range prices {
		feed(t, e, st, models.Balances{}, px)
		clock.Advance(time.Minute)
		assert.Equal(t, 100.0, st.Reference())
	}
}

func TestDriftSkipsCycleWithSuppressedOrder(t *testing.T) {
	p := driftParams()
	p.MinBuyQuote = 1000
	e, st, clock := newTestEngine(p)
	st.ResetReference(100)
	clock.Advance(2 * time.Hour)

	// цена и долгосрочная средняя ниже опорной, но каждый цикл даёт BUY ниже минимума
	d := feed(t, e, st, models.Balances{"USDC": 1000}, 96.5, 96.4, 96.5, 96.4, 96.5, 96.4, 96.5)
	assert.Equal(t, models.SideBuy, d.Side)
	assert.ErrorIs(t, d.Err, models.ErrOrderTooSmall)
	assert.Equal(t, 100.0, st.Reference())
}

func TestApplySellResetsToLongTermAverage(t *testing.T) {
	p := testParams()
	p.LongTermPeriod = 5
	p.ResetToLongTermAfterSell = true
	e, st, _ := newTestEngine(p)

	feed(t, e, st, models.Balances{}, 100, 101, 102, 103, 104)
	e.Apply(st, Fill{Side: models.SideSell, Quantity: 1, Price: 104, CostBasis: 100})

	assert.Equal(t, 102.0, st.Reference())
	assert.InDelta(t, 4.0, st.TotalProfit(), 1e-9)
}

func TestCapacity(t *testing.T) {
	p := DefaultParams()
	assert.Equal(t, 200, p.Capacity())

	p.LongTermPeriod = 10
	assert.Equal(t, 35, p.Capacity())
}
