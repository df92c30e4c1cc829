package runner

import (
	"context"
	"time"

	"spot_bot/internal/metrics"
	"spot_bot/internal/models"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type Cycler interface {
	Cycle(ctx context.Context) (models.CycleResult, error)
}

// Observer sees every finished cycle (health state, /status).
type Observer interface {
	CycleDone(res models.CycleResult)
	CycleFailed(err error)
}

// Runner drives cycles one after another until ctx is cancelled or the
// persisted state can no longer be trusted.
type Runner struct {
	engine       Cycler
	observer     Observer
	log          *zap.Logger
	coin, quote  string
	idleInterval time.Duration
	sleep        func(ctx context.Context, d time.Duration) error
}

func NewRunner(engine Cycler, observer Observer, cfg TradeConfig, coin string, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{
		engine:       engine,
		observer:     observer,
		log:          log,
		coin:         coin,
		quote:        cfg.QuoteCoin,
		idleInterval: cfg.IdleInterval,
		sleep:        sleepCtx,
	}
}

// Start blocks. It returns nil on cancellation and the cause on a fatal fault.
func (r *Runner) Start(ctx context.Context) error {
	r.log.Info("runner started")
	for {
		if ctx.Err() != nil {
			r.log.Info("runner stopped")
			return nil
		}

		res, err := r.engine.Cycle(ctx)
		next := res.Next
		if err != nil {
			if ctx.Err() != nil {
				r.log.Info("runner stopped mid-cycle", zap.Error(err))
				return nil
			}
			if fatal := r.handleFailure(err); fatal {
				return err
			}
		} else {
			metrics.ObserveCycle(r.coin, r.quote, res)
			if r.observer != nil {
				r.observer.CycleDone(res)
			}
		}

		if next <= 0 {
			next = r.idleInterval
		}
		r.log.Debug("waiting", zap.Duration("next", next))
		if err := r.sleep(ctx, next); err != nil {
			r.log.Info("runner stopped")
			return nil
		}
	}
}

func (r *Runner) handleFailure(err error) (fatal bool) {
	if r.observer != nil {
		r.observer.CycleFailed(err)
	}
	switch {
	case errors.Is(err, models.ErrStateWrite):
		metrics.CycleFailed("state_write")
		r.log.Error("stop-loss could not be persisted, refusing to continue", zap.Error(err))
		return true
	case errors.Is(err, models.ErrStateCorrupt):
		metrics.CycleFailed("state_corrupt")
		r.log.Error("stop-loss state unreadable, no action taken", zap.Error(err))
	case errors.Is(err, models.ErrGatewayFault):
		metrics.CycleFailed("gateway")
		r.log.Warn("cycle aborted", zap.Error(err))
	default:
		metrics.CycleFailed("other")
		r.log.Warn("cycle aborted", zap.Error(err))
	}
	return false
}
