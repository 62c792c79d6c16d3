package models

import "time"

type OrderType string

const (
	OrderMarket OrderType = "market"
	OrderLimit  OrderType = "limit"
)

type OrderStatus string

const (
	OrderFilled    OrderStatus = "FILLED"
	OrderOpen      OrderStatus = "OPEN"
	OrderPending   OrderStatus = "PENDING"
	OrderCancelled OrderStatus = "CANCELLED"
	OrderExpired   OrderStatus = "EXPIRED"
	OrderFailed    OrderStatus = "FAILED"
	OrderUnknown   OrderStatus = "UNKNOWN"
)

// Terminal true для статусов, после которых ордер больше не опрашиваем.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderFilled, OrderCancelled, OrderExpired, OrderFailed:
		return true
	}
	return false
}

// OrderIntent результат решения движка до отправки на биржу.
type OrderIntent struct {
	Symbol      string
	Side        Side
	Quantity    float64 // в базовой валюте
	QuoteAmount float64 // для BUY: сколько quote тратим
	Price       float64 // цена, на которой принималось решение
	Type        OrderType
	LimitPrice  float64
	Reason      string
}

type OrderRequest struct {
	ClientOrderID string
	ProductID     string
	Side          Side
	Type          OrderType
	BaseSize      string
	QuoteSize     string
	LimitPrice    string
	PostOnly      bool
}

type OrderResult struct {
	OrderID       string
	ClientOrderID string
	Status        OrderStatus
	FilledSize    float64
	AvgPrice      float64
}

type Trade struct {
	Symbol    string
	Side      Side
	Quantity  float64
	Price     float64
	OrderID   string
	CreatedAt time.Time
}
