package strategy

import (
	"coinbase_bot/internal/models"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// truncate отбрасывает лишние знаки, чтобы не выйти за доступный баланс.
func truncate(v float64, places int32) float64 {
	f, _ := decimal.NewFromFloat(v).Truncate(places).Float64()
	return f
}

func round(v float64, places int32) float64 {
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}

func (e *Engine) sizeBuy(price, quoteBalance, pct float64, reason string) (*models.OrderIntent, error) {
	quote := truncate(pct/100*quoteBalance, e.p.QuotePrecision)
	if quote <= 0 || quote < e.p.MinBuyQuote {
		return nil, errors.Wrapf(models.ErrOrderTooSmall, "%s: buy %.*f %s below minimum %.*f",
			e.symbol, int(e.p.QuotePrecision), quote, e.p.QuoteCurrency, int(e.p.QuotePrecision), e.p.MinBuyQuote)
	}

	intent := &models.OrderIntent{
		Symbol:      e.symbol,
		Side:        models.SideBuy,
		QuoteAmount: quote,
		Price:       price,
		Type:        e.p.OrderType,
		Reason:      reason,
	}
	execPrice := price
	if e.p.OrderType == models.OrderLimit {
		intent.LimitPrice = round(price*(1-e.p.LimitOffsetPct/100), e.p.QuotePrecision)
		execPrice = intent.LimitPrice
	}
	if execPrice <= 0 {
		return nil, errors.Wrapf(models.ErrDataUnavailable, "%s: bad execution price %v", e.symbol, execPrice)
	}
	intent.Quantity = truncate(quote/execPrice, e.p.BasePrecision)
	if intent.Quantity <= 0 {
		return nil, errors.Wrapf(models.ErrOrderTooSmall, "%s: buy quantity rounds to zero", e.symbol)
	}
	return intent, nil
}

func (e *Engine) sizeSell(price, baseBalance, pct float64, reason string) (*models.OrderIntent, error) {
	qty := truncate(pct/100*baseBalance, e.p.BasePrecision)
	if qty <= 0 || qty < e.p.MinSellBase {
		return nil, errors.Wrapf(models.ErrOrderTooSmall, "%s: sell %.*f %s below minimum %.*f",
			e.symbol, int(e.p.BasePrecision), qty, e.p.BaseCurrency, int(e.p.BasePrecision), e.p.MinSellBase)
	}

	intent := &models.OrderIntent{
		Symbol:   e.symbol,
		Side:     models.SideSell,
		Quantity: qty,
		Price:    price,
		Type:     e.p.OrderType,
		Reason:   reason,
	}
	if e.p.OrderType == models.OrderLimit {
		intent.LimitPrice = round(price*(1+e.p.LimitOffsetPct/100), e.p.QuotePrecision)
	}
	return intent, nil
}
