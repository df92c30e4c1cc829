package models

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type TimeInForce string

const (
	TifGtc TimeInForce = "Gtc"
	TifIoc TimeInForce = "Ioc"
	TifAlo TimeInForce = "Alo"
)

const StatusOK = "ok"

type MarketOrder struct {
	Asset      int
	PairName   string
	IsBuy      bool
	Size       decimal.Decimal
	SzDecimals int32
}

type LimitOrder struct {
	Asset      int
	IsBuy      bool
	Size       decimal.Decimal
	Price      decimal.Decimal
	ReduceOnly bool
	Tif        TimeInForce
}

type Fill struct {
	OrderID   int64
	TotalSize decimal.Decimal
	AvgPrice  decimal.Decimal
}

type Resting struct {
	OrderID int64
}

// OrderStatus: exactly one of Filled, Resting or Error is set.
type OrderStatus struct {
	Filled  *Fill
	Resting *Resting
	Error   string
}

type OrderResult struct {
	Status   string // "ok" | "err"
	Message  string // populated when Status != ok
	Statuses []OrderStatus
}

// Filled returns the first fill. A non-ok status or a response without a
// fill is ErrOrderRejected carrying the exchange's message.
func (r OrderResult) Filled() (*Fill, error) {
	if r.Status != StatusOK {
		msg := r.Message
		if msg == "" {
			msg = "status " + r.Status
		}
		return nil, errors.Wrap(ErrOrderRejected, msg)
	}
	var firstErr string
	for _, st := range r.Statuses {
		if st.Filled != nil {
			return st.Filled, nil
		}
		if st.Error != "" && firstErr == "" {
			firstErr = st.Error
		}
	}
	if firstErr == "" {
		firstErr = "no fill in response"
	}
	return nil, errors.Wrap(ErrOrderRejected, firstErr)
}

// Accepted reports an error unless the order rests or filled.
func (r OrderResult) Accepted() error {
	if r.Status != StatusOK {
		return errors.Wrap(ErrOrderRejected, r.Message)
	}
	for _, st := range r.Statuses {
		if st.Error != "" {
			return errors.Wrap(ErrOrderRejected, st.Error)
		}
	}
	if len(r.Statuses) == 0 {
		return errors.Wrap(ErrOrderRejected, "empty status list")
	}
	return nil
}

type OpenOrder struct {
	Coin      string          `json:"coin"`
	OrderID   int64           `json:"oid"`
	Side      string          `json:"side"`
	LimitPx   decimal.Decimal `json:"limitPx"`
	Size      decimal.Decimal `json:"sz"`
	Timestamp int64           `json:"timestamp"`
}
