package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"spot_bot/pkg/logger"
	"spot_bot/pkg/tracing"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v2"
)

const (
	configFilePathENV = "CONFIG_FILE"
	secretKeyENV      = "HL_SECRET_KEY"
	addressENV        = "HL_ADDRESS"
	tokenTelegramENV  = "TELEGRAM_TOKEN"
	chatTelegramENV   = "TELEGRAM_CHAT_ID"
	databaseDSN       = "DATABASE_DSN"
	logLevelENV       = "LOG_LEVEL"

	DefaultPath = "configs/values_local.yaml"

	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"

	PriceFeedREST = "rest"
	PriceFeedWS   = "ws"
)

// Config ...
type Config struct {
	Account struct {
		Address   string `yaml:"address"`
		SecretKey string `yaml:"secret_key"`
	} `yaml:"account"`

	Hyperliquid struct {
		BaseURL    string        `yaml:"base_url"`
		WSURL      string        `yaml:"ws_url"`
		Mainnet    bool          `yaml:"mainnet"`
		PriceFeed  string        `yaml:"price_feed"` // rest | ws
		MidMaxAge  time.Duration `yaml:"mid_max_age"`
		Slippage   float64       `yaml:"slippage"`
		Timeout    time.Duration `yaml:"timeout"`
		RetryCount int           `yaml:"retry_count"`
	} `yaml:"hyperliquid"`

	Telegram struct {
		Token  string `yaml:"token"`
		ChatID int64  `yaml:"chat_id"`
	} `yaml:"telegram"`

	Trade Trade `yaml:"trade"`

	Schedule Schedule `yaml:"schedule"`

	State struct {
		Backend string `yaml:"backend"` // file | postgres | sqlite
		Path    string `yaml:"path"`
		DSN     string `yaml:"dsn"`
		Key     string `yaml:"key"`
	} `yaml:"state"`

	Logging logger.Config `yaml:"logging"`

	Health struct {
		Addr string `yaml:"addr"`
	} `yaml:"health"`

	Tracing tracing.Config `yaml:"tracing"`
}

// Trade is what to trade and how big. Read-only once loaded.
type Trade struct {
	Coin            string  `yaml:"coin"`
	QuoteCoin       string  `yaml:"quote_coin"`
	Amount          float64 `yaml:"amount"` // 0 => whole quote balance
	MinQuote        float64 `yaml:"min_quote"`
	OpenProbability float64 `yaml:"open_probability"`
	BandPct         float64 `yaml:"band_pct"` // take-profit = +band, stop-loss = -band
}

type Schedule struct {
	TrackingInterval time.Duration `yaml:"tracking_interval"`
	IdleInterval     time.Duration `yaml:"idle_interval"`
	Cooldown         time.Duration `yaml:"cooldown"`
	SettleDelay      time.Duration `yaml:"settle_delay"`
}

func defaults() Config {
	var c Config
	c.Hyperliquid.BaseURL = "https://api.hyperliquid.xyz"
	c.Hyperliquid.WSURL = "wss://api.hyperliquid.xyz/ws"
	c.Hyperliquid.Mainnet = true
	c.Hyperliquid.PriceFeed = PriceFeedREST
	c.Hyperliquid.MidMaxAge = 10 * time.Second
	c.Hyperliquid.Slippage = 0.05
	c.Hyperliquid.Timeout = 10 * time.Second
	c.Hyperliquid.RetryCount = 3

	c.Trade.QuoteCoin = "USDC"
	c.Trade.MinQuote = 100
	c.Trade.OpenProbability = 0.2
	c.Trade.BandPct = 4

	c.Schedule = Schedule{
		TrackingInterval: 30 * time.Second,
		IdleInterval:     300 * time.Second,
		Cooldown:         5000 * time.Second,
		SettleDelay:      5 * time.Second,
	}

	c.State.Backend = BackendFile
	c.State.Path = "sl.json"
	c.State.Key = "default"

	c.Logging.Level = "info"
	c.Logging.MaxSizeMB = 50
	c.Logging.MaxBackups = 5
	c.Logging.MaxAgeDays = 30

	c.Health.Addr = ":8080"
	c.Tracing.Host = "localhost"
	c.Tracing.Port = 6831
	return c
}

// NewConfig reads the file named by CONFIG_FILE (or DefaultPath).
func NewConfig() (*Config, error) {
	path := os.Getenv(configFilePathENV)
	if path == "" {
		path = DefaultPath
	}
	return Load(path)
}

// Load decodes path over the defaults, then applies .env / environment overrides.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open config %s", path)
	}
	defer func() {
		_ = file.Close()
	}()

	config := defaults()
	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, errors.Wrapf(err, "decode config %s", path)
	}

	if err := config.applyEnv(); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(secretKeyENV); v != "" {
		c.Account.SecretKey = v
	}
	if v := os.Getenv(addressENV); v != "" {
		c.Account.Address = v
	}
	if v := os.Getenv(tokenTelegramENV); v != "" {
		c.Telegram.Token = v
	}
	if v := os.Getenv(chatTelegramENV); v != "" {
		id, err := cast.ToInt64E(v)
		if err != nil {
			return errors.Wrapf(err, "%s", chatTelegramENV)
		}
		c.Telegram.ChatID = id
	}
	if v := os.Getenv(databaseDSN); v != "" {
		c.State.DSN = v
	}
	if v := os.Getenv(logLevelENV); v != "" {
		c.Logging.Level = v
	}
	return nil
}

func (c *Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.Trade.Coin) == "" {
		problems = append(problems, "trade.coin is required")
	}
	if c.Trade.QuoteCoin == "" {
		problems = append(problems, "trade.quote_coin is required")
	}
	if c.Trade.Amount < 0 {
		problems = append(problems, "trade.amount must be >= 0")
	}
	if c.Trade.MinQuote < 0 {
		problems = append(problems, "trade.min_quote must be >= 0")
	}
	if c.Trade.OpenProbability < 0 || c.Trade.OpenProbability > 1 {
		problems = append(problems, "trade.open_probability must be within [0,1]")
	}
	if c.Trade.BandPct <= 0 || c.Trade.BandPct >= 100 {
		problems = append(problems, "trade.band_pct must be within (0,100)")
	}
	if c.Schedule.TrackingInterval <= 0 || c.Schedule.IdleInterval <= 0 || c.Schedule.Cooldown <= 0 {
		problems = append(problems, "schedule intervals must be positive")
	}
	if c.Schedule.SettleDelay < 0 {
		problems = append(problems, "schedule.settle_delay must be >= 0")
	}
	if c.Hyperliquid.Slippage < 0 || c.Hyperliquid.Slippage >= 1 {
		problems = append(problems, "hyperliquid.slippage must be within [0,1)")
	}
	switch c.Hyperliquid.PriceFeed {
	case PriceFeedREST, PriceFeedWS:
	default:
		problems = append(problems, fmt.Sprintf("unknown hyperliquid.price_feed %q", c.Hyperliquid.PriceFeed))
	}
	switch c.State.Backend {
	case BackendFile:
		if c.State.Path == "" {
			problems = append(problems, "state.path is required for the file backend")
		}
	case BackendPostgres:
		if c.State.DSN == "" {
			problems = append(problems, "state.dsn is required for the postgres backend")
		}
	case BackendSQLite:
		if c.State.Path == "" {
			problems = append(problems, "state.path is required for the sqlite backend")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown state.backend %q", c.State.Backend))
	}
	if len(problems) > 0 {
		return errors.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// TradeAmount returns the per-position notional, zero meaning "whole balance".
func (t Trade) TradeAmount() decimal.Decimal { return decimal.NewFromFloat(t.Amount) }

func (t Trade) MinQuoteBalance() decimal.Decimal { return decimal.NewFromFloat(t.MinQuote) }

func (t Trade) Band() decimal.Decimal {
	return decimal.NewFromFloat(t.BandPct).Div(decimal.NewFromInt(100))
}
