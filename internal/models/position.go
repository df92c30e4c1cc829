package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type PositionState int

const (
	StateIdle PositionState = iota
	StateTracking
)

func (s PositionState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateTracking:
		return "TRACKING"
	default:
		return fmt.Sprintf("PositionState(%d)", int(s))
	}
}

// TrackedPosition: durable state of the bot. On disk it is a single number
// (the stop-loss price, 0 = nothing tracked); in memory it is tagged.
type TrackedPosition struct {
	State    PositionState
	StopLoss decimal.Decimal
}

func Idle() TrackedPosition { return TrackedPosition{State: StateIdle} }

func Tracking(stopLoss decimal.Decimal) TrackedPosition {
	return TrackedPosition{State: StateTracking, StopLoss: stopLoss}
}

// PositionFromStopLoss decodes the legacy single-number layout.
func PositionFromStopLoss(sl decimal.Decimal) (TrackedPosition, error) {
	switch sl.Sign() {
	case 0:
		return Idle(), nil
	case 1:
		return Tracking(sl), nil
	default:
		return TrackedPosition{}, fmt.Errorf("negative stop-loss %s", sl)
	}
}

// StopLossValue encodes the position back into the legacy layout.
func (p TrackedPosition) StopLossValue() decimal.Decimal {
	if p.State != StateTracking {
		return decimal.Zero
	}
	return p.StopLoss
}

func (p TrackedPosition) IsTracking() bool { return p.State == StateTracking }

func (p TrackedPosition) String() string {
	if p.IsTracking() {
		return "TRACKING(sl=" + p.StopLoss.String() + ")"
	}
	return "IDLE"
}
