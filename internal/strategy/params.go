package strategy

import (
	"time"

	"coinbase_bot/internal/models"
)

// TrendFilter фильтр по долгосрочной средней.
type TrendFilter string

const (
	TrendNone   TrendFilter = "none"
	TrendFollow TrendFilter = "follow" // BUY выше средней, SELL ниже
	TrendRevert TrendFilter = "revert" // BUY ниже средней, SELL выше
)

type DriftParams struct {
	Enabled       bool
	Cooldown      time.Duration
	Factor        float64
	SustainCycles int
}

// Params параметры одного символа, неизменны на время работы.
type Params struct {
	BaseCurrency  string
	QuoteCurrency string

	BuyThresholdPct  float64 // отрицательный
	SellThresholdPct float64 // положительный
	TradePct         float64
	StopLossPct      float64 // 0 выключает

	VolatilityWindow int
	TrendWindow      int
	MACDShort        int
	MACDLong         int
	MACDSignal       int
	RSIPeriod        int
	RSIOversold      float64
	RSIOverbought    float64
	LongTermPeriod   int

	ConfirmationThreshold    int
	ProximityPct             float64
	TrendFilter              TrendFilter
	ResetToLongTermAfterSell bool

	MinBuyQuote    float64
	MinSellBase    float64
	QuotePrecision int32
	BasePrecision  int32

	OrderType      models.OrderType
	LimitOffsetPct float64

	Drift DriftParams
}

// Capacity размер окна истории, достаточный для всех индикаторов.
func (p Params) Capacity() int {
	n := p.VolatilityWindow
	for _, v := range []int{p.TrendWindow, p.MACDLong + p.MACDSignal, p.RSIPeriod + 1, p.LongTermPeriod} {
		if v > n {
			n = v
		}
	}
	return n
}

// DefaultParams значения по умолчанию для параметров, не заданных в конфиге.
func DefaultParams() Params {
	return Params{
		QuoteCurrency:         "USDC",
		BuyThresholdPct:       -3,
		SellThresholdPct:      3,
		TradePct:              10,
		VolatilityWindow:      10,
		TrendWindow:           20,
		MACDShort:             12,
		MACDLong:              26,
		MACDSignal:            9,
		RSIPeriod:             14,
		RSIOversold:           30,
		RSIOverbought:         70,
		LongTermPeriod:        200,
		ConfirmationThreshold: 2,
		ProximityPct:          2,
		TrendFilter:           TrendNone,
		QuotePrecision:        2,
		BasePrecision:         6,
		OrderType:             models.OrderMarket,
		Drift: DriftParams{
			Cooldown:      time.Hour,
			Factor:        0.1,
			SustainCycles: 3,
		},
	}
}
