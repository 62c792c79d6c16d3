package exchange

type productResponse struct {
	ProductID string `json:"product_id"`
	Price     string `json:"price"`
}

type amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type accountsResponse struct {
	Accounts []struct {
		Currency         string `json:"currency"`
		AvailableBalance amount `json:"available_balance"`
	} `json:"accounts"`
	HasNext bool   `json:"has_next"`
	Cursor  string `json:"cursor"`
}

type marketIOC struct {
	QuoteSize string `json:"quote_size,omitempty"`
	BaseSize  string `json:"base_size,omitempty"`
}

type limitGTC struct {
	BaseSize   string `json:"base_size"`
	LimitPrice string `json:"limit_price"`
	PostOnly   bool   `json:"post_only"`
}

type orderConfiguration struct {
	MarketIOC *marketIOC `json:"market_market_ioc,omitempty"`
	LimitGTC  *limitGTC  `json:"limit_limit_gtc,omitempty"`
}

type createOrderRequest struct {
	ClientOrderID      string             `json:"client_order_id"`
	ProductID          string             `json:"product_id"`
	Side               string             `json:"side"`
	OrderConfiguration orderConfiguration `json:"order_configuration"`
}

type createOrderResponse struct {
	Success         bool `json:"success"`
	SuccessResponse struct {
		OrderID       string `json:"order_id"`
		ProductID     string `json:"product_id"`
		ClientOrderID string `json:"client_order_id"`
	} `json:"success_response"`
	ErrorResponse struct {
		Error                string `json:"error"`
		Message              string `json:"message"`
		ErrorDetails         string `json:"error_details"`
		PreviewFailureReason string `json:"preview_failure_reason"`
	} `json:"error_response"`
	FailureReason string `json:"failure_reason"`
}

type orderResponse struct {
	Order struct {
		OrderID            string `json:"order_id"`
		ClientOrderID      string `json:"client_order_id"`
		Status             string `json:"status"`
		FilledSize         string `json:"filled_size"`
		AverageFilledPrice string `json:"average_filled_price"`
	} `json:"order"`
}

type cancelRequest struct {
	OrderIDs []string `json:"order_ids"`
}

type cancelResponse struct {
	Results []struct {
		Success       bool   `json:"success"`
		FailureReason string `json:"failure_reason"`
		OrderID       string `json:"order_id"`
	} `json:"results"`
}
