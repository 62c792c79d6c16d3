package exchange

import (
	"coinbase_bot/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BuildOrder переводит решение движка в запрос биржи. Размеры уже усечены движком,
// здесь только форматирование с точностью продукта.
func BuildOrder(in models.OrderIntent, productID string, quotePrec, basePrec int32) models.OrderRequest {
	req := models.OrderRequest{
		ClientOrderID: uuid.NewString(),
		ProductID:     productID,
		Side:          in.Side,
		Type:          in.Type,
	}

	switch {
	case in.Type == models.OrderLimit:
		req.BaseSize = decimal.NewFromFloat(in.Quantity).Truncate(basePrec).StringFixed(basePrec)
		req.LimitPrice = decimal.NewFromFloat(in.LimitPrice).StringFixed(quotePrec)
	case in.Side == models.SideBuy:
		req.QuoteSize = decimal.NewFromFloat(in.QuoteAmount).Truncate(quotePrec).StringFixed(quotePrec)
	default:
		req.BaseSize = decimal.NewFromFloat(in.Quantity).Truncate(basePrec).StringFixed(basePrec)
	}
	return req
}
