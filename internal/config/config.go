package config

import (
	"strings"
	"time"
)

const (
	configFilePathENV = "CONFIG_FILE"
	tokenTelegramENV  = "TELEGRAM_TOKEN"
	chatTelegramENV   = "TELEGRAM_CHAT_ID"
	databaseDSN       = "DATABASE_DSN"
	apiKeyNameENV     = "COINBASE_API_KEY_NAME"
	apiPrivateKeyENV  = "COINBASE_API_PRIVATE_KEY"

	envPrefix         = "BOT"
	defaultConfigFile = "configs/config.yaml"
)

// Config ...
type Config struct {
	Service  ServiceConfig           `mapstructure:"service"`
	Exchange ExchangeConfig          `mapstructure:"exchange"`
	Trading  TradingConfig           `mapstructure:"trading"`
	Coins    map[string]CoinSettings `mapstructure:"-"`
	Database DatabaseConfig          `mapstructure:"database"`
	Redis    RedisConfig             `mapstructure:"redis"`
	Telegram TelegramConfig          `mapstructure:"telegram"`
	Oracle   OracleConfig            `mapstructure:"oracle"`
	Tracing  TracingConfig           `mapstructure:"tracing"`

	// итоговые настройки после слияния файла, env и дефолтов, для YAML()
	settings map[string]any
}

type ServiceConfig struct {
	Name     string `mapstructure:"name"`
	LogLevel string `mapstructure:"log_level"`
	HTTPAddr string `mapstructure:"http_addr"`
}

type ExchangeConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	WSURL          string        `mapstructure:"ws_url"`
	UseWebsocket   bool          `mapstructure:"use_websocket"`
	KeyName        string        `mapstructure:"key_name"`
	PrivateKey     string        `mapstructure:"private_key"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	PriceMaxAge    time.Duration `mapstructure:"price_max_age"`
}

type TradingConfig struct {
	QuoteCurrency     string        `mapstructure:"quote_currency"`
	Interval          time.Duration `mapstructure:"interval"`
	FetchConcurrency  int           `mapstructure:"fetch_concurrency"`
	CancelAfter       time.Duration `mapstructure:"cancel_after"`
	ReconcileSchedule string        `mapstructure:"reconcile_schedule"`
	SummarySchedule   string        `mapstructure:"summary_schedule"`
	DrainTimeout      time.Duration `mapstructure:"drain_timeout"`
	DryRun            bool          `mapstructure:"dry_run"`
}

type MinOrderSizes struct {
	Buy  float64 `mapstructure:"buy"`  // в quote-валюте
	Sell float64 `mapstructure:"sell"` // в базовой валюте
}

type Precision struct {
	Quote int32 `mapstructure:"quote"`
	Base  int32 `mapstructure:"base"`
}

type MACDSettings struct {
	Short  int `mapstructure:"short"`
	Long   int `mapstructure:"long"`
	Signal int `mapstructure:"signal"`
}

type RSISettings struct {
	Period     int     `mapstructure:"period"`
	Oversold   float64 `mapstructure:"oversold"`
	Overbought float64 `mapstructure:"overbought"`
}

type DriftSettings struct {
	Enabled       bool          `mapstructure:"enabled"`
	Cooldown      time.Duration `mapstructure:"cooldown"`
	Factor        float64       `mapstructure:"factor"`
	SustainCycles int           `mapstructure:"sustain_cycles"`
}

// CoinSettings параметры одного символа.
type CoinSettings struct {
	Symbol  string `mapstructure:"-"`
	Enabled bool   `mapstructure:"enabled"`

	BuyPercentage      float64 `mapstructure:"buy_percentage"`
	SellPercentage     float64 `mapstructure:"sell_percentage"`
	TradePercentage    float64 `mapstructure:"trade_percentage"`
	StopLossPercentage float64 `mapstructure:"stop_loss_percentage"`

	VolatilityWindow int          `mapstructure:"volatility_window"`
	TrendWindow      int          `mapstructure:"trend_window"`
	MACD             MACDSettings `mapstructure:"macd"`
	RSI              RSISettings  `mapstructure:"rsi"`
	LongTermPeriod   int          `mapstructure:"long_term_period"`

	ConfirmationThreshold    int     `mapstructure:"confirmation_threshold"`
	ProximityPct             float64 `mapstructure:"proximity_pct"`
	TrendFilter              string  `mapstructure:"trend_filter"`
	ResetToLongTermAfterSell bool    `mapstructure:"reset_to_long_term_after_sell"`

	MinOrderSizes MinOrderSizes `mapstructure:"min_order_sizes"`
	Precision     Precision     `mapstructure:"precision"`

	OrderType      string  `mapstructure:"order_type"`
	LimitOffsetPct float64 `mapstructure:"limit_offset_pct"`

	Drift DriftSettings `mapstructure:"drift"`
}

type DatabaseConfig struct {
	DSN          string `mapstructure:"dsn"`
	MaxConns     int32  `mapstructure:"max_conns"`
	HistoryLimit int    `mapstructure:"history_limit"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
	Prefix   string        `mapstructure:"prefix"`
}

type TelegramConfig struct {
	Token  string `mapstructure:"token"`
	ChatID int64  `mapstructure:"chat_id"`
}

type OracleConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	URL     string        `mapstructure:"url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type TracingConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

// EnabledCoins символы в алфавитном порядке.
func (c *Config) EnabledCoins() []CoinSettings {
	out := make([]CoinSettings, 0, len(c.Coins))
	for _, cs := range c.Coins {
		if cs.Enabled {
			out = append(out, cs)
		}
	}
	sortCoins(out)
	return out
}

// ProductID "ETH-USDC".
func (c *Config) ProductID(symbol string) string {
	return strings.ToUpper(symbol) + "-" + c.Trading.QuoteCurrency
}
