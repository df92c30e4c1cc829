package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Action string

const (
	ActionNone          Action = "none"
	ActionDetectedClose Action = "detected_close"
	ActionOpened        Action = "opened"
	ActionOpenFailed    Action = "open_failed"
	ActionOpenSkipped   Action = "open_skipped"
	ActionStopLoss      Action = "stop_loss"
	ActionStopFailed    Action = "stop_loss_failed"
)

type CycleResult struct {
	Action   Action
	Position TrackedPosition
	Snapshot MarketSnapshot
	Next     time.Duration

	// populated when a buy filled
	TakeProfit decimal.Decimal
	Fill       *Fill
}
