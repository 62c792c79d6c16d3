package strategy

import (
	"math"
	"sync"
	"time"

	"coinbase_bot/internal/models"

	"github.com/pkg/errors"
)

type Phase int

const (
	PhaseAwaitingData Phase = iota
	PhaseEvaluating
	PhaseOrderPending
)

func (p Phase) String() string {
	switch p {
	case PhaseEvaluating:
		return "EVALUATING"
	case PhaseOrderPending:
		return "ORDER_PENDING"
	default:
		return "AWAITING_DATA"
	}
}

type Confirmations struct {
	Buy  int
	Sell int
}

// SymbolState состояние одного символа на всё время работы процесса.
// Методы не потокобезопасны: вызывающий держит Lock/TryLock на время шага.
type SymbolState struct {
	mu sync.Mutex

	symbol string
	series *Series

	reference   float64
	totalTrades int64
	totalProfit float64
	confirm     Confirmations
	lastTradeAt time.Time
	createdAt   time.Time
	phase       Phase
	driftStreak int

	lastPrice    float64
	hasPrice     bool
	lastDecision string
}

func NewSymbolState(symbol string, capacity int, now time.Time) *SymbolState {
	return &SymbolState{
		symbol:    symbol,
		series:    NewSeries(capacity),
		createdAt: now,
	}
}

func (s *SymbolState) Lock()         { s.mu.Lock() }
func (s *SymbolState) TryLock() bool { return s.mu.TryLock() }
func (s *SymbolState) Unlock()       { s.mu.Unlock() }

// Observe добавляет цену в историю. Побитово совпадающая с предыдущей цена
// ничего не меняет и возвращает false.
func (s *SymbolState) Observe(price float64) (bool, error) {
	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return false, errors.Wrapf(models.ErrDataUnavailable, "%s: bad price %v", s.symbol, price)
	}
	if s.hasPrice && math.Float64bits(price) == math.Float64bits(s.lastPrice) {
		return false, nil
	}

	s.series.Push(price)
	s.lastPrice = price
	s.hasPrice = true
	if s.reference <= 0 {
		s.reference = price
	}
	return true, nil
}

// RecordTrade учитывает исполненную сделку. Прибыль по SELL считается от costBasis
// (средневзвешенная цена покупок); при его отсутствии от опорной цены.
func (s *SymbolState) RecordTrade(side models.Side, qty, price, costBasis float64, at time.Time) {
	s.totalTrades++
	s.lastTradeAt = at
	s.driftStreak = 0
	if side != models.SideSell {
		return
	}
	if costBasis <= 0 {
		costBasis = s.reference
	}
	s.totalProfit += (price - costBasis) * qty
}

func (s *SymbolState) ResetReference(price float64) {
	if price > 0 {
		s.reference = price
	}
}

// updateConfirmations: совпавший сигнал +1, противоположный -1, без сигнала оба затухают на 1. Не ниже нуля.
func (s *SymbolState) updateConfirmations(buy, sell bool) {
	switch {
	case buy:
		s.confirm.Buy++
		s.confirm.Sell = decay(s.confirm.Sell)
	case sell:
		s.confirm.Sell++
		s.confirm.Buy = decay(s.confirm.Buy)
	default:
		s.confirm.Buy = decay(s.confirm.Buy)
		s.confirm.Sell = decay(s.confirm.Sell)
	}
}

func decay(v int) int {
	if v > 0 {
		return v - 1
	}
	return 0
}

// BeginOrder переводит в ORDER_PENDING на время отправки ордера.
func (s *SymbolState) BeginOrder() {
	if s.phase == PhaseEvaluating {
		s.phase = PhaseOrderPending
	}
}

// EndOrder возвращает в EVALUATING независимо от результата.
func (s *SymbolState) EndOrder() {
	if s.phase == PhaseOrderPending {
		s.phase = PhaseEvaluating
	}
}

func (s *SymbolState) Symbol() string               { return s.symbol }
func (s *SymbolState) Reference() float64           { return s.reference }
func (s *SymbolState) TotalTrades() int64           { return s.totalTrades }
func (s *SymbolState) TotalProfit() float64         { return s.totalProfit }
func (s *SymbolState) Confirmations() Confirmations { return s.confirm }
func (s *SymbolState) LastTradeAt() time.Time       { return s.lastTradeAt }
func (s *SymbolState) Phase() Phase                 { return s.phase }
func (s *SymbolState) Len() int                     { return s.series.Len() }
func (s *SymbolState) Prices() []float64            { return s.series.Values() }
func (s *SymbolState) SetLastDecision(v string)     { s.lastDecision = v }

func (s *SymbolState) LastPrice() (float64, bool) {
	return s.lastPrice, s.hasPrice
}

func (s *SymbolState) Snapshot(now time.Time) models.StateSnapshot {
	return models.StateSnapshot{
		Symbol:         s.symbol,
		ReferencePrice: s.reference,
		TotalTrades:    s.totalTrades,
		TotalProfit:    s.totalProfit,
		ConfirmBuy:     s.confirm.Buy,
		ConfirmSell:    s.confirm.Sell,
		LastTradeAt:    s.lastTradeAt,
		CreatedAt:      s.createdAt,
		LastPrice:      s.lastPrice,
		Phase:          s.phase.String(),
		LastDecision:   s.lastDecision,
		UpdatedAt:      now,
	}
}

// Restore поднимает состояние из хранилища; history от старой точки к новой.
// Фаза пересчитается на ближайшем цикле.
func (s *SymbolState) Restore(snap models.StateSnapshot, history []float64) {
	s.reference = snap.ReferencePrice
	s.totalTrades = snap.TotalTrades
	s.totalProfit = snap.TotalProfit
	s.confirm = Confirmations{Buy: max(snap.ConfirmBuy, 0), Sell: max(snap.ConfirmSell, 0)}
	s.lastTradeAt = snap.LastTradeAt
	if !snap.CreatedAt.IsZero() {
		s.createdAt = snap.CreatedAt
	}
	for _, p := range history {
		if p <= 0 {
			continue
		}
		s.series.Push(p)
		s.lastPrice = p
		s.hasPrice = true
	}
}
