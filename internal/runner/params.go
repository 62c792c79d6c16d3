package runner

import (
	"strings"

	"coinbase_bot/internal/config"
	"coinbase_bot/internal/models"
	"coinbase_bot/internal/strategy"
)

// ParamsFor переводит настройки монеты из конфига в параметры движка.
func ParamsFor(cs config.CoinSettings, quote string) strategy.Params {
	p := strategy.DefaultParams()
	p.BaseCurrency = strings.ToUpper(cs.Symbol)
	if quote != "" {
		p.QuoteCurrency = strings.ToUpper(quote)
	}

	p.BuyThresholdPct = cs.BuyPercentage
	p.SellThresholdPct = cs.SellPercentage
	p.TradePct = cs.TradePercentage
	p.StopLossPct = cs.StopLossPercentage

	p.VolatilityWindow = cs.VolatilityWindow
	p.TrendWindow = cs.TrendWindow
	p.MACDShort = cs.MACD.Short
	p.MACDLong = cs.MACD.Long
	p.MACDSignal = cs.MACD.Signal
	p.RSIPeriod = cs.RSI.Period
	p.RSIOversold = cs.RSI.Oversold
	p.RSIOverbought = cs.RSI.Overbought
	p.LongTermPeriod = cs.LongTermPeriod

	p.ConfirmationThreshold = cs.ConfirmationThreshold
	p.ProximityPct = cs.ProximityPct
	p.ResetToLongTermAfterSell = cs.ResetToLongTermAfterSell
	switch strategy.TrendFilter(strings.ToLower(cs.TrendFilter)) {
	case strategy.TrendFollow:
		p.TrendFilter = strategy.TrendFollow
	case strategy.TrendRevert:
		p.TrendFilter = strategy.TrendRevert
	default:
		p.TrendFilter = strategy.TrendNone
	}

	p.MinBuyQuote = cs.MinOrderSizes.Buy
	p.MinSellBase = cs.MinOrderSizes.Sell
	p.QuotePrecision = cs.Precision.Quote
	p.BasePrecision = cs.Precision.Base

	p.OrderType = models.OrderMarket
	if strings.EqualFold(cs.OrderType, string(models.OrderLimit)) {
		p.OrderType = models.OrderLimit
	}
	p.LimitOffsetPct = cs.LimitOffsetPct

	p.Drift = strategy.DriftParams{
		Enabled:       cs.Drift.Enabled,
		Cooldown:      cs.Drift.Cooldown,
		Factor:        cs.Drift.Factor,
		SustainCycles: cs.Drift.SustainCycles,
	}
	return p
}
