package strategy

import (
	"context"
	"fmt"
	"strings"

	"coinbase_bot/internal/models"
)

// Oracle внешний советчик BUY/SELL/HOLD. Спрашиваем только когда правила промолчали.
type Oracle interface {
	Ask(ctx context.Context, prompt string) (models.Side, string, error)
}

func optional(v float64, ok bool, format string) string {
	if !ok {
		return "n/a"
	}
	return fmt.Sprintf(format, v)
}

func (e *Engine) prompt(ind Indicators) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a cautious crypto trading assistant.\n")
	fmt.Fprintf(&b, "Market: %s-%s\n", e.p.BaseCurrency, e.p.QuoteCurrency)
	fmt.Fprintf(&b, "Current price: %.6f\n", ind.Price)
	fmt.Fprintf(&b, "Reference price: %.6f (change %.2f%%)\n", ind.Reference, ind.ChangePct)
	fmt.Fprintf(&b, "Volatility: %.4f\n", ind.Volatility)
	fmt.Fprintf(&b, "Moving average (%d): %s\n", e.p.TrendWindow, optional(ind.MA, ind.HasMA, "%.6f"))
	fmt.Fprintf(&b, "RSI (%d): %s\n", e.p.RSIPeriod, optional(ind.RSI, ind.HasRSI, "%.2f"))
	if ind.HasMACD {
		fmt.Fprintf(&b, "MACD: line %.6f signal %.6f histogram %.6f\n", ind.MACD.Line, ind.MACD.Signal, ind.MACD.Histogram)
	} else {
		fmt.Fprintf(&b, "MACD: n/a\n")
	}
	fmt.Fprintf(&b, "Long-term average (%d): %s\n", e.p.LongTermPeriod, optional(ind.LTA, ind.HasLTA, "%.6f"))
	fmt.Fprintf(&b, "Reply with exactly one word on the first line: BUY, SELL or HOLD. Explain briefly on the next lines.")
	return b.String()
}
