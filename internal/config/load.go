package config

import (
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"coinbase_bot/internal/models"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

// Load читает .env, YAML-файл из CONFIG_FILE и переменные окружения BOT_*.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(getenvDefault(configFilePathENV, defaultConfigFile))
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(models.ErrConfig, "read config: %v", err)
	}
	return FromViper(v)
}

// FromViper собирает конфиг из уже прочитанного viper, применяя дефолты, env и валидацию.
func FromViper(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// совместимость с плоскими переменными
	if dsn := os.Getenv(databaseDSN); dsn != "" {
		v.Set("database.dsn", dsn)
	}
	if token := os.Getenv(tokenTelegramENV); token != "" {
		v.Set("telegram.token", token)
	}
	if id := int64FromEnv(chatTelegramENV, 0); id != 0 {
		v.Set("telegram.chat_id", id)
	}
	if name := os.Getenv(apiKeyNameENV); name != "" {
		v.Set("exchange.key_name", name)
	}
	if key := os.Getenv(apiPrivateKeyENV); key != "" {
		v.Set("exchange.private_key", key)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrapf(models.ErrConfig, "decode config: %v", err)
	}
	cfg.Trading.QuoteCurrency = strings.ToUpper(cfg.Trading.QuoteCurrency)

	coins, effective, err := loadCoins(v)
	if err != nil {
		return nil, err
	}
	cfg.Coins = coins

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.settings = v.AllSettings()
	cfg.settings["coins"] = effective
	return cfg, nil
}

func loadCoins(v *viper.Viper) (map[string]CoinSettings, map[string]any, error) {
	raw := v.GetStringMap("coins")
	if len(raw) == 0 {
		return nil, nil, errors.Wrap(models.ErrConfig, "no coins configured")
	}

	coins := make(map[string]CoinSettings, len(raw))
	effective := make(map[string]any, len(raw))
	for key := range raw {
		// viper приводит ключи к нижнему регистру
		symbol := strings.ToUpper(key)
		sub := v.Sub("coins." + key)
		if sub == nil {
			return nil, nil, errors.Wrapf(models.ErrConfig, "coins.%s: expected a mapping", symbol)
		}
		coinDefaults(sub)

		var cs CoinSettings
		if err := sub.Unmarshal(&cs); err != nil {
			return nil, nil, errors.Wrapf(models.ErrConfig, "coins.%s: %v", symbol, err)
		}
		cs.Symbol = symbol
		if cs.Enabled {
			for _, k := range requiredCoinKeys {
				if !sub.IsSet(k) {
					return nil, nil, errors.Wrapf(models.ErrConfig, "coins.%s: %s is required", symbol, k)
				}
			}
		}
		coins[symbol] = cs
		effective[symbol] = sub.AllSettings()
	}
	return coins, effective, nil
}

// Validate отбраковывает параметры, с которыми движок не сможет работать.
func (c *Config) Validate() error {
	if c.Trading.Interval <= 0 {
		return errors.Wrap(models.ErrConfig, "trading.interval must be positive")
	}
	if c.Trading.QuoteCurrency == "" {
		return errors.Wrap(models.ErrConfig, "trading.quote_currency is required")
	}
	if len(c.EnabledCoins()) == 0 {
		return errors.Wrap(models.ErrConfig, "no enabled coins")
	}
	for _, cs := range c.EnabledCoins() {
		if err := cs.validate(); err != nil {
			return errors.Wrapf(models.ErrConfig, "coins.%s: %v", cs.Symbol, err)
		}
	}
	return nil
}

func (cs CoinSettings) validate() error {
	switch {
	case cs.BuyPercentage >= 0:
		return errors.New("buy_percentage must be negative")
	case cs.SellPercentage <= 0:
		return errors.New("sell_percentage must be positive")
	case cs.TradePercentage <= 0 || cs.TradePercentage > 100:
		return errors.New("trade_percentage must be in (0, 100]")
	case cs.StopLossPercentage > 0:
		return errors.New("stop_loss_percentage must be negative or zero")
	case cs.VolatilityWindow < 2, cs.TrendWindow < 1, cs.LongTermPeriod < 1:
		return errors.New("windows must be positive")
	case cs.MACD.Short < 1 || cs.MACD.Signal < 1 || cs.MACD.Short >= cs.MACD.Long:
		return errors.New("macd requires 0 < short < long and signal > 0")
	case cs.RSI.Period < 1 || cs.RSI.Oversold >= cs.RSI.Overbought:
		return errors.New("rsi requires period > 0 and oversold < overbought")
	case cs.MinOrderSizes.Buy < 0 || cs.MinOrderSizes.Sell < 0:
		return errors.New("min_order_sizes must not be negative")
	case cs.Precision.Quote < 0 || cs.Precision.Base < 0:
		return errors.New("precision must not be negative")
	case cs.ProximityPct <= 0:
		return errors.New("proximity_pct must be positive")
	case cs.Drift.Enabled && (cs.Drift.Factor <= 0 || cs.Drift.Factor > 1):
		return errors.New("drift.factor must be in (0, 1]")
	}
	switch cs.OrderType {
	case "market", "limit":
	default:
		return errors.Errorf("unknown order_type %q", cs.OrderType)
	}
	switch cs.TrendFilter {
	case "none", "follow", "revert":
	default:
		return errors.Errorf("unknown trend_filter %q", cs.TrendFilter)
	}
	return nil
}

var secretKeys = map[string]bool{
	"private_key": true,
	"token":       true,
	"password":    true,
	"dsn":         true,
}

// YAML итоговый конфиг без секретов.
func (c *Config) YAML() ([]byte, error) {
	bs, err := yaml.Marshal(c.Settings())
	if err != nil {
		return nil, errors.Wrap(err, "marshal config to yaml")
	}
	return bs, nil
}

// Settings итоговый конфиг без секретов в виде дерева.
func (c *Config) Settings() map[string]any {
	return sanitize(c.settings)
}

func sanitize(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, val := range m {
		switch t := val.(type) {
		case map[string]any:
			out[k] = sanitize(t)
		case time.Duration:
			out[k] = t.String()
		default:
			if secretKeys[k] && val != "" {
				out[k] = "***"
				continue
			}
			out[k] = val
		}
	}
	return out
}

func sortCoins(coins []CoinSettings) {
	sort.Slice(coins, func(i, j int) bool { return coins[i].Symbol < coins[j].Symbol })
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func int64FromEnv(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}
