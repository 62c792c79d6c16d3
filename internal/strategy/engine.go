package strategy

import (
	"context"
	"fmt"
	"math"
	"time"

	"coinbase_bot/internal/indicator"
	"coinbase_bot/internal/models"
	"coinbase_bot/pkg/logger"

	"github.com/pkg/errors"
)

type Source string

const (
	SourceRules    Source = "rules"
	SourceStopLoss Source = "stop_loss"
	SourceOracle   Source = "oracle"
)

// Indicators срез индикаторов на момент решения, для логов и уведомлений.
type Indicators struct {
	Price            float64
	Reference        float64
	ChangePct        float64
	Volatility       float64
	VolatilityFactor float64
	DynBuy           float64
	DynSell          float64

	MA      float64
	HasMA   bool
	MACD    indicator.MACDResult
	HasMACD bool
	RSI     float64
	HasRSI  bool
	LTA     float64
	HasLTA  bool

	Confirm Confirmations
}

// Decision итог цикла по символу. Intent == nil значит HOLD;
// Err объясняет, почему сработавший сигнал не превратился в ордер.
type Decision struct {
	Side       models.Side
	Intent     *models.OrderIntent
	Source     Source
	Reason     string
	Err        error
	Indicators Indicators
}

func (d Decision) Hold() bool { return d.Intent == nil }

func (d Decision) String() string {
	if d.Intent != nil {
		return fmt.Sprintf("%s (%s): %s", d.Side, d.Source, d.Reason)
	}
	if d.Err != nil {
		return fmt.Sprintf("HOLD: %v", d.Err)
	}
	return "HOLD: " + d.Reason
}

// Fill исполненная (или принятая биржей) сделка для обновления состояния.
type Fill struct {
	Side      models.Side
	Quantity  float64
	Price     float64
	CostBasis float64 // средневзвешенная цена покупок с последней продажи, 0 если нет
}

type Engine struct {
	symbol string
	p      Params
	oracle Oracle
	now    func() time.Time
}

type Option func(*Engine)

func WithOracle(o Oracle) Option {
	return func(e *Engine) { e.oracle = o }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(symbol string, p Params, opts ...Option) *Engine {
	e := &Engine{symbol: symbol, p: p, now: time.Now}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *Engine) Symbol() string { return e.symbol }
func (e *Engine) Params() Params { return e.p }

// NewState пустое состояние с окном истории под параметры символа.
func (e *Engine) NewState() *SymbolState {
	return NewSymbolState(e.symbol, e.p.Capacity(), e.now())
}

// Decide один шаг автомата для только что наблюдённой цены.
// Вызывающий держит блокировку st; balances только читаются.
func (e *Engine) Decide(ctx context.Context, st *SymbolState, balances models.Balances) Decision {
	price, ok := st.LastPrice()
	if !ok || st.reference <= 0 {
		return Decision{Err: errors.Wrapf(models.ErrDataUnavailable, "%s: no price", e.symbol)}
	}

	ind := e.indicators(st.series.Values(), price, st.reference)
	if st.phase == PhaseAwaitingData {
		if !ind.HasMA {
			return Decision{
				Indicators: ind,
				Err: errors.Wrapf(models.ErrDataUnavailable, "%s: awaiting data %d/%d",
					e.symbol, st.series.Len(), e.p.TrendWindow),
			}
		}
		st.phase = PhaseEvaluating
	}

	macdBuy := ind.HasMACD && ind.MACD.Line > ind.MACD.Signal
	macdSell := ind.HasMACD && ind.MACD.Line < ind.MACD.Signal
	st.updateConfirmations(macdBuy, macdSell)
	ind.Confirm = st.confirm

	d := e.evaluate(st, ind, macdBuy, macdSell, balances)
	if d.Side == models.SideNone && d.Err == nil && e.oracle != nil {
		d = e.consultOracle(ctx, ind, balances, d)
	}
	// сигнал, отклонённый по минимальному размеру, не HOLD: опорная цена не двигается
	e.drift(st, ind, d.Side == models.SideNone)

	d.Indicators = ind
	d.Indicators.Reference = st.reference
	return d
}

func (e *Engine) indicators(prices []float64, price, reference float64) Indicators {
	ind := Indicators{
		Price:     price,
		Reference: reference,
		ChangePct: (price - reference) / reference * 100,
	}
	ind.Volatility = indicator.Volatility(prices, e.p.VolatilityWindow)
	ind.VolatilityFactor = clamp(1+math.Abs(ind.Volatility), 0.5, 1.5)
	ind.DynBuy = e.p.BuyThresholdPct * ind.VolatilityFactor
	ind.DynSell = e.p.SellThresholdPct * ind.VolatilityFactor

	ind.MA, ind.HasMA = indicator.SMA(prices, e.p.TrendWindow)
	ind.MACD, ind.HasMACD = indicator.MACD(prices, e.p.MACDShort, e.p.MACDLong, e.p.MACDSignal)
	ind.RSI, ind.HasRSI = indicator.RSI(prices, e.p.RSIPeriod)
	ind.LTA, ind.HasLTA = indicator.LongTermAverage(prices, e.p.LongTermPeriod)
	return ind
}

func (e *Engine) evaluate(st *SymbolState, ind Indicators, macdBuy, macdSell bool, balances models.Balances) Decision {
	price := ind.Price

	// стоп-лосс: продаём весь базовый остаток, фильтр близости к тренду не применяется
	if e.p.StopLossPct < 0 && ind.ChangePct <= e.p.StopLossPct {
		if base := balances.Get(e.p.BaseCurrency); base > 0 {
			reason := fmt.Sprintf("stop-loss %.2f%% <= %.2f%%", ind.ChangePct, e.p.StopLossPct)
			intent, err := e.sizeSell(price, base, 100, reason)
			return Decision{Side: models.SideSell, Intent: intent, Source: SourceStopLoss, Reason: reason, Err: err}
		}
	}

	if !ind.HasMA || math.Abs(price-ind.MA) >= e.p.ProximityPct/100*ind.MA {
		return Decision{Reason: fmt.Sprintf("price %.6f too far from MA %.6f", price, ind.MA)}
	}

	rsiBuy := ind.HasRSI && ind.RSI < e.p.RSIOversold
	rsiSell := ind.HasRSI && ind.RSI > e.p.RSIOverbought

	var skipped error

	if reason, ok := e.buySignal(st, ind, macdBuy, rsiBuy); ok && e.trendAllows(models.SideBuy, ind) {
		quote := balances.Get(e.p.QuoteCurrency)
		if quote > 0 {
			intent, err := e.sizeBuy(price, quote, e.p.TradePct, reason)
			return Decision{Side: models.SideBuy, Intent: intent, Source: SourceRules, Reason: reason, Err: err}
		}
		skipped = errors.Wrapf(models.ErrInsufficientBalance, "%s: buy signal, no %s", e.symbol, e.p.QuoteCurrency)
	}

	if reason, ok := e.sellSignal(st, ind, macdSell, rsiSell); ok && e.trendAllows(models.SideSell, ind) {
		base := balances.Get(e.p.BaseCurrency)
		if base > 0 {
			intent, err := e.sizeSell(price, base, e.p.TradePct, reason)
			return Decision{Side: models.SideSell, Intent: intent, Source: SourceRules, Reason: reason, Err: err}
		}
		skipped = errors.Wrapf(models.ErrInsufficientBalance, "%s: sell signal, no %s", e.symbol, e.p.BaseCurrency)
	}

	return Decision{Reason: "no signal", Err: skipped}
}

func (e *Engine) buySignal(st *SymbolState, ind Indicators, macdBuy, rsiBuy bool) (string, bool) {
	if ind.ChangePct <= ind.DynBuy {
		return fmt.Sprintf("change %.2f%% <= %.2f%%", ind.ChangePct, ind.DynBuy), true
	}
	if macdBuy && rsiBuy && st.confirm.Buy >= e.p.ConfirmationThreshold {
		return fmt.Sprintf("macd above signal x%d, rsi %.1f", st.confirm.Buy, ind.RSI), true
	}
	return "", false
}

func (e *Engine) sellSignal(st *SymbolState, ind Indicators, macdSell, rsiSell bool) (string, bool) {
	if ind.ChangePct >= ind.DynSell {
		return fmt.Sprintf("change %.2f%% >= %.2f%%", ind.ChangePct, ind.DynSell), true
	}
	if macdSell && rsiSell && st.confirm.Sell >= e.p.ConfirmationThreshold {
		return fmt.Sprintf("macd below signal x%d, rsi %.1f", st.confirm.Sell, ind.RSI), true
	}
	return "", false
}

// trendAllows фильтр по долгосрочной средней; без средней не блокирует.
func (e *Engine) trendAllows(side models.Side, ind Indicators) bool {
	if !ind.HasLTA {
		return true
	}
	above := ind.Price > ind.LTA
	switch e.p.TrendFilter {
	case TrendFollow:
		return (side == models.SideBuy) == above
	case TrendRevert:
		return (side == models.SideBuy) != above
	default:
		return true
	}
}

func (e *Engine) consultOracle(ctx context.Context, ind Indicators, balances models.Balances, hold Decision) Decision {
	side, explanation, err := e.oracle.Ask(ctx, e.prompt(ind))
	if err != nil {
		logger.Warn("[ORACLE] %s: %v", e.symbol, err)
		return hold
	}

	reason := "oracle: " + explanation
	switch side {
	case models.SideBuy:
		quote := balances.Get(e.p.QuoteCurrency)
		if quote <= 0 {
			return Decision{Reason: reason, Err: errors.Wrapf(models.ErrInsufficientBalance, "%s: oracle buy, no %s", e.symbol, e.p.QuoteCurrency)}
		}
		intent, err := e.sizeBuy(ind.Price, quote, e.p.TradePct, reason)
		return Decision{Side: models.SideBuy, Intent: intent, Source: SourceOracle, Reason: reason, Err: err}
	case models.SideSell:
		base := balances.Get(e.p.BaseCurrency)
		if base <= 0 {
			return Decision{Reason: reason, Err: errors.Wrapf(models.ErrInsufficientBalance, "%s: oracle sell, no %s", e.symbol, e.p.BaseCurrency)}
		}
		intent, err := e.sizeSell(ind.Price, base, e.p.TradePct, reason)
		return Decision{Side: models.SideSell, Intent: intent, Source: SourceOracle, Reason: reason, Err: err}
	default:
		hold.Reason = reason
		return hold
	}
}

// drift подтягивает опорную цену на Factor к долгосрочной средней, если цена
// SustainCycles циклов подряд стоит по ту же сторону от опорной, что и средняя,
// а последняя сделка (или создание состояния) старше Cooldown.
func (e *Engine) drift(st *SymbolState, ind Indicators, hold bool) {
	dp := e.p.Drift
	if !dp.Enabled || !ind.HasLTA {
		st.driftStreak = 0
		return
	}

	ref := st.reference
	if (ind.Price-ref)*(ind.LTA-ref) <= 0 {
		st.driftStreak = 0
		return
	}
	st.driftStreak++
	if !hold || st.driftStreak < max(dp.SustainCycles, 1) {
		return
	}

	since := st.lastTradeAt
	if since.IsZero() {
		since = st.createdAt
	}
	if e.now().Sub(since) <= dp.Cooldown {
		return
	}
	st.reference = ref + dp.Factor*(ind.LTA-ref)
	logger.Debug("[DRIFT] %s reference %.6f -> %.6f (lta %.6f)", e.symbol, ref, st.reference, ind.LTA)
}

// Apply обновляет состояние после принятого биржей ордера: счётчики, прибыль, опорная цена.
func (e *Engine) Apply(st *SymbolState, f Fill) {
	st.RecordTrade(f.Side, f.Quantity, f.Price, f.CostBasis, e.now())

	ref := f.Price
	if f.Side == models.SideSell && e.p.ResetToLongTermAfterSell {
		if lta, ok := indicator.LongTermAverage(st.series.Values(), e.p.LongTermPeriod); ok {
			ref = lta
		}
	}
	st.ResetReference(ref)
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
