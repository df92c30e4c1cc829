package service

import (
	"context"

	"spot_bot/internal/models"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Store keeps the single stop-loss value (0 = no position tracked).
// Load and Save either fully succeed or fail; a failed Save leaves the old value.
type Store interface {
	Load(ctx context.Context) (decimal.Decimal, error)
	Save(ctx context.Context, stopLoss decimal.Decimal) error
	// Init writes 0 when no record exists yet and reports whether it did.
	Init(ctx context.Context) (bool, error)
	Close() error
}

func corrupt(format string, args ...any) error {
	return errors.Wrapf(models.ErrStateCorrupt, format, args...)
}

func writeFailed(format string, args ...any) error {
	return errors.Wrapf(models.ErrStateWrite, format, args...)
}

func parseStopLoss(raw string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, corrupt("invalid stop-loss %q: %v", raw, err)
	}
	if v.IsNegative() {
		return decimal.Zero, corrupt("negative stop-loss %s", v)
	}
	return v, nil
}

func checkWritable(stopLoss decimal.Decimal) error {
	if stopLoss.IsNegative() {
		return writeFailed("refusing to persist negative stop-loss %s", stopLoss)
	}
	return nil
}
