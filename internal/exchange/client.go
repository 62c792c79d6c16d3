package exchange

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"coinbase_bot/internal/models"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

const brokerage = "/api/v3/brokerage"

type Config struct {
	BaseURL    string
	KeyName    string
	PrivateKey string
	Timeout    time.Duration
}

// Client REST Coinbase Advanced Trade: цены, балансы, ордера.
type Client struct {
	http    *http.Client
	baseURL string
	host    string
	signer  *signer

	ticker *Ticker
	maxAge time.Duration
}

func NewClient(cfg Config) (*Client, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("exchange: bad base url %q", cfg.BaseURL)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	c := &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		host:    u.Host,
	}
	if cfg.KeyName != "" && cfg.PrivateKey != "" {
		s, err := newSigner(cfg.KeyName, cfg.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("exchange: %w", err)
		}
		c.signer = s
	}
	return c, nil
}

// AttachTicker включает чтение цены из websocket-кэша, если она не старше maxAge.
func (c *Client) AttachTicker(t *Ticker, maxAge time.Duration) {
	c.ticker = t
	c.maxAge = maxAge
}

// Price последняя цена продукта ("ETH-USDC").
func (c *Client) Price(ctx context.Context, productID string) (float64, error) {
	if c.ticker != nil {
		if p, ok := c.ticker.Fresh(productID, c.maxAge); ok {
			return p, nil
		}
	}

	var resp productResponse
	if err := c.do(ctx, http.MethodGet, brokerage+"/products/"+productID, nil, &resp); err != nil {
		return 0, err
	}
	p, err := strconv.ParseFloat(resp.Price, 64)
	if err != nil || p <= 0 {
		return 0, errors.Wrapf(models.ErrDataUnavailable, "%s: bad price %q", productID, resp.Price)
	}
	return p, nil
}

// Balances доступные остатки по всем счетам, с пагинацией.
func (c *Client) Balances(ctx context.Context) (models.Balances, error) {
	out := models.Balances{}
	cursor := ""
	for {
		path := brokerage + "/accounts?limit=250"
		if cursor != "" {
			path += "&cursor=" + url.QueryEscape(cursor)
		}

		var resp accountsResponse
		if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
			return nil, err
		}
		for _, a := range resp.Accounts {
			v, err := strconv.ParseFloat(a.AvailableBalance.Value, 64)
			if err != nil {
				continue
			}
			out[strings.ToUpper(a.Currency)] += v
		}
		if !resp.HasNext || resp.Cursor == "" {
			return out, nil
		}
		cursor = resp.Cursor
	}
}

func (c *Client) PlaceOrder(ctx context.Context, req models.OrderRequest) (models.OrderResult, error) {
	body := createOrderRequest{
		ClientOrderID: req.ClientOrderID,
		ProductID:     req.ProductID,
		Side:          string(req.Side),
	}
	switch req.Type {
	case models.OrderLimit:
		body.OrderConfiguration.LimitGTC = &limitGTC{
			BaseSize:   req.BaseSize,
			LimitPrice: req.LimitPrice,
			PostOnly:   req.PostOnly,
		}
	default:
		body.OrderConfiguration.MarketIOC = &marketIOC{
			QuoteSize: req.QuoteSize,
			BaseSize:  req.BaseSize,
		}
	}

	var resp createOrderResponse
	if err := c.do(ctx, http.MethodPost, brokerage+"/orders", body, &resp); err != nil {
		return models.OrderResult{}, err
	}
	if !resp.Success || resp.SuccessResponse.OrderID == "" {
		reason := firstNonEmpty(resp.ErrorResponse.Message, resp.ErrorResponse.Error,
			resp.ErrorResponse.PreviewFailureReason, resp.FailureReason, "unknown")
		return models.OrderResult{}, errors.Wrapf(models.ErrOrderRejected, "%s %s: %s", req.Side, req.ProductID, reason)
	}

	return models.OrderResult{
		OrderID:       resp.SuccessResponse.OrderID,
		ClientOrderID: req.ClientOrderID,
		Status:        models.OrderPending,
	}, nil
}

func (c *Client) OrderStatus(ctx context.Context, orderID string) (models.OrderResult, error) {
	var resp orderResponse
	if err := c.do(ctx, http.MethodGet, brokerage+"/orders/historical/"+orderID, nil, &resp); err != nil {
		return models.OrderResult{}, err
	}
	filled, _ := strconv.ParseFloat(resp.Order.FilledSize, 64)
	avg, _ := strconv.ParseFloat(resp.Order.AverageFilledPrice, 64)
	return models.OrderResult{
		OrderID:       firstNonEmpty(resp.Order.OrderID, orderID),
		ClientOrderID: resp.Order.ClientOrderID,
		Status:        mapStatus(resp.Order.Status),
		FilledSize:    filled,
		AvgPrice:      avg,
	}, nil
}

func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	var resp cancelResponse
	if err := c.do(ctx, http.MethodPost, brokerage+"/orders/batch_cancel", cancelRequest{OrderIDs: []string{orderID}}, &resp); err != nil {
		return err
	}
	for _, r := range resp.Results {
		if r.OrderID == orderID && !r.Success {
			return errors.Wrapf(models.ErrOrderRejected, "cancel %s: %s", orderID, r.FailureReason)
		}
	}
	return nil
}

func mapStatus(s string) models.OrderStatus {
	switch strings.ToUpper(s) {
	case "FILLED":
		return models.OrderFilled
	case "OPEN":
		return models.OrderOpen
	case "PENDING", "QUEUED", "CANCEL_QUEUED":
		return models.OrderPending
	case "CANCELLED":
		return models.OrderCancelled
	case "EXPIRED":
		return models.OrderExpired
	case "FAILED":
		return models.OrderFailed
	default:
		return models.OrderUnknown
	}
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		bs, err := sonic.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", path, err)
		}
		body = bytes.NewReader(bs)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.signer != nil {
		// в uri подписи путь без query
		p := path
		if i := strings.IndexByte(p, '?'); i >= 0 {
			p = p[:i]
		}
		tok, err := c.signer.token(method + " " + c.host + p)
		if err != nil {
			return fmt.Errorf("sign %s: %w", path, err)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(models.ErrTransientNetwork, "%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	rb, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(models.ErrTransientNetwork, "%s %s: read body: %v", method, path, err)
	}
	if resp.StatusCode/100 != 2 {
		return classifyStatus(method, path, resp.StatusCode, rb)
	}
	if out == nil {
		return nil
	}
	if err := sonic.Unmarshal(rb, out); err != nil {
		return errors.Wrapf(models.ErrDataUnavailable, "%s %s: decode: %v", method, path, err)
	}
	return nil
}

func classifyStatus(method, path string, code int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > 300 {
		msg = msg[:300]
	}
	switch {
	case code == http.StatusTooManyRequests || code >= 500:
		return errors.Wrapf(models.ErrTransientNetwork, "%s %s: http %d: %s", method, path, code, msg)
	case method == http.MethodPost:
		return errors.Wrapf(models.ErrOrderRejected, "%s %s: http %d: %s", method, path, code, msg)
	default:
		return errors.Wrapf(models.ErrDataUnavailable, "%s %s: http %d: %s", method, path, code, msg)
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
