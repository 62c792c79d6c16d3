package models

import "time"

// StateSnapshot персистентная часть состояния символа.
type StateSnapshot struct {
	Symbol         string    `json:"symbol"`
	ReferencePrice float64   `json:"reference_price"`
	TotalTrades    int64     `json:"total_trades"`
	TotalProfit    float64   `json:"total_profit"`
	ConfirmBuy     int       `json:"confirm_buy"`
	ConfirmSell    int       `json:"confirm_sell"`
	LastTradeAt    time.Time `json:"last_trade_at"`
	CreatedAt      time.Time `json:"created_at"`
	LastPrice      float64   `json:"last_price"`
	Phase          string    `json:"phase"`
	LastDecision   string    `json:"last_decision,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// PricePoint точка истории цен для monitor API.
type PricePoint struct {
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
	Price     float64   `json:"price" db:"price"`
}

// SignalPoint исполненная сделка для monitor API.
type SignalPoint struct {
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
	Action    string    `json:"action" db:"action"`
	Price     float64   `json:"price" db:"price"`
	Amount    float64   `json:"amount" db:"amount"`
}
