package exchange

import (
	"context"
	"strconv"
	"sync"
	"time"

	"coinbase_bot/pkg/logger"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
)

type quote struct {
	price float64
	at    time.Time
}

// Ticker держит последние цены из канала ticker Advanced Trade WebSocket.
type Ticker struct {
	url      string
	products []string
	dialer   *websocket.Dialer
	now      func() time.Time

	mu     sync.RWMutex
	prices map[string]quote

	// OnState вызывается при подключении (true) и обрыве (false).
	OnState func(connected bool)
}

func NewTicker(url string, products []string) *Ticker {
	return &Ticker{
		url:      url,
		products: products,
		dialer:   &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		now:      time.Now,
		prices:   make(map[string]quote),
	}
}

func (t *Ticker) SetPrice(productID string, p float64) {
	t.mu.Lock()
	t.prices[productID] = quote{price: p, at: t.now()}
	t.mu.Unlock()
}

func (t *Ticker) GetPrice(productID string) (float64, bool) {
	t.mu.RLock()
	q, ok := t.prices[productID]
	t.mu.RUnlock()
	return q.price, ok
}

// Fresh цена, если она пришла не раньше maxAge назад.
func (t *Ticker) Fresh(productID string, maxAge time.Duration) (float64, bool) {
	t.mu.RLock()
	q, ok := t.prices[productID]
	t.mu.RUnlock()
	if !ok || q.price <= 0 {
		return 0, false
	}
	if maxAge > 0 && t.now().Sub(q.at) > maxAge {
		return 0, false
	}
	return q.price, true
}

type subscribeMsg struct {
	Type       string   `json:"type"`
	ProductIDs []string `json:"product_ids,omitempty"`
	Channel    string   `json:"channel"`
}

type tickerFrame struct {
	Channel string `json:"channel"`
	Events  []struct {
		Type    string `json:"type"`
		Tickers []struct {
			ProductID string `json:"product_id"`
			Price     string `json:"price"`
		} `json:"tickers"`
	} `json:"events"`
}

// Run держит соединение до отмены ctx, переподключаясь с растущей паузой.
func (t *Ticker) Run(ctx context.Context) {
	if len(t.products) == 0 {
		return
	}
	backoff := time.Second
	for {
		err := t.session(ctx)
		t.setState(false)
		if ctx.Err() != nil {
			return
		}
		logger.Warn("[WS] ticker disconnected: %v, retry in %s", err, backoff)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (t *Ticker) session(ctx context.Context) error {
	conn, _, err := t.dialer.DialContext(ctx, t.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	// закрываем соединение при отмене, чтобы разблокировать ReadMessage
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for _, sub := range []subscribeMsg{
		{Type: "subscribe", ProductIDs: t.products, Channel: "ticker"},
		{Type: "subscribe", Channel: "heartbeats"},
	} {
		bs, err := sonic.Marshal(sub)
		if err != nil {
			return err
		}
		if err := conn.WriteMessage(websocket.TextMessage, bs); err != nil {
			return err
		}
	}
	logger.Info("[WS] ticker subscribed: %v", t.products)
	t.setState(true)

	for {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		t.handle(msg)
	}
}

func (t *Ticker) handle(msg []byte) {
	var f tickerFrame
	if err := sonic.Unmarshal(msg, &f); err != nil {
		return
	}
	if f.Channel != "ticker" {
		return
	}
	for _, ev := range f.Events {
		for _, tk := range ev.Tickers {
			p, err := strconv.ParseFloat(tk.Price, 64)
			if err != nil || p <= 0 {
				continue
			}
			t.SetPrice(tk.ProductID, p)
		}
	}
}

func (t *Ticker) setState(connected bool) {
	if t.OnState != nil {
		t.OnState(connected)
	}
}
