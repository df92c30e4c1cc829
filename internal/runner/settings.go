package runner

import (
	"time"

	"spot_bot/internal/modules/config"

	"github.com/shopspring/decimal"
)

// TradeConfig is fixed at startup and shared read-only by every cycle.
type TradeConfig struct {
	Account         string
	QuoteCoin       string
	Amount          decimal.Decimal // 0 => whole quote balance
	MinQuote        decimal.Decimal
	OpenProbability float64
	Band            decimal.Decimal // fraction, 0.04 = ±4 %

	TrackingInterval time.Duration
	IdleInterval     time.Duration
	Cooldown         time.Duration
	SettleDelay      time.Duration
}

func NewTradeConfig(cfg *config.Config) TradeConfig {
	return TradeConfig{
		Account:          cfg.Account.Address,
		QuoteCoin:        cfg.Trade.QuoteCoin,
		Amount:           cfg.Trade.TradeAmount(),
		MinQuote:         cfg.Trade.MinQuoteBalance(),
		OpenProbability:  cfg.Trade.OpenProbability,
		Band:             cfg.Trade.Band(),
		TrackingInterval: cfg.Schedule.TrackingInterval,
		IdleInterval:     cfg.Schedule.IdleInterval,
		Cooldown:         cfg.Schedule.Cooldown,
		SettleDelay:      cfg.Schedule.SettleDelay,
	}
}

func (c TradeConfig) takeProfitFactor() decimal.Decimal { return decimal.NewFromInt(1).Add(c.Band) }
func (c TradeConfig) stopLossFactor() decimal.Decimal   { return decimal.NewFromInt(1).Sub(c.Band) }
