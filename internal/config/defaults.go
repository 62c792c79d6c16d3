package config

import (
	"time"

	"github.com/spf13/viper"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("service.name", "coinbase_bot")
	v.SetDefault("service.log_level", "info")
	v.SetDefault("service.http_addr", ":8080")

	v.SetDefault("exchange.base_url", "https://api.coinbase.com")
	v.SetDefault("exchange.ws_url", "wss://advanced-trade-ws.coinbase.com")
	v.SetDefault("exchange.use_websocket", false)
	v.SetDefault("exchange.key_name", "")
	v.SetDefault("exchange.private_key", "")
	v.SetDefault("exchange.request_timeout", 10*time.Second)
	v.SetDefault("exchange.price_max_age", 30*time.Second)

	v.SetDefault("trading.quote_currency", "USDC")
	v.SetDefault("trading.interval", 30*time.Second)
	v.SetDefault("trading.fetch_concurrency", 4)
	v.SetDefault("trading.cancel_after", 3*time.Hour)
	v.SetDefault("trading.reconcile_schedule", "@every 1m")
	v.SetDefault("trading.summary_schedule", "0 9 * * *")
	v.SetDefault("trading.drain_timeout", 20*time.Second)
	v.SetDefault("trading.dry_run", false)

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_conns", 4)
	v.SetDefault("database.history_limit", 200)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 2*time.Minute)
	v.SetDefault("redis.prefix", "bot")

	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.chat_id", 0)

	v.SetDefault("oracle.enabled", false)
	v.SetDefault("oracle.url", "http://localhost:11434")
	v.SetDefault("oracle.model", "mistral")
	v.SetDefault("oracle.timeout", 20*time.Second)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.host", "localhost")
	v.SetDefault("tracing.port", 6831)
}

// coinDefaults применяются к каждому coins.<SYMBOL>; обязательные ключи тут не задаются.
func coinDefaults(v *viper.Viper) {
	v.SetDefault("enabled", true)
	v.SetDefault("trade_percentage", 10)
	v.SetDefault("stop_loss_percentage", 0)
	v.SetDefault("volatility_window", 10)
	v.SetDefault("trend_window", 20)
	v.SetDefault("macd.short", 12)
	v.SetDefault("macd.long", 26)
	v.SetDefault("macd.signal", 9)
	v.SetDefault("rsi.period", 14)
	v.SetDefault("rsi.oversold", 30)
	v.SetDefault("rsi.overbought", 70)
	v.SetDefault("long_term_period", 200)
	v.SetDefault("confirmation_threshold", 2)
	v.SetDefault("proximity_pct", 2)
	v.SetDefault("trend_filter", "none")
	v.SetDefault("reset_to_long_term_after_sell", false)
	v.SetDefault("precision.quote", 2)
	v.SetDefault("precision.base", 6)
	v.SetDefault("order_type", "market")
	v.SetDefault("limit_offset_pct", 0)
	v.SetDefault("drift.enabled", false)
	v.SetDefault("drift.cooldown", time.Hour)
	v.SetDefault("drift.factor", 0.1)
	v.SetDefault("drift.sustain_cycles", 3)
}

// requiredCoinKeys без них символ не запускается.
var requiredCoinKeys = []string{
	"buy_percentage",
	"sell_percentage",
	"min_order_sizes.buy",
	"min_order_sizes.sell",
}
