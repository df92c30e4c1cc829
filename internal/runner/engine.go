package runner

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"spot_bot/internal/helper"
	"spot_bot/internal/metrics"
	"spot_bot/internal/models"
	"spot_bot/pkg/tracing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type MarketData interface {
	Balances(ctx context.Context, account string) ([]models.Balance, error)
	MidPrice(ctx context.Context, pair string) (decimal.Decimal, error)
}

type OrderGateway interface {
	MarketOrder(ctx context.Context, o models.MarketOrder) (models.OrderResult, error)
	LimitOrder(ctx context.Context, o models.LimitOrder) (models.OrderResult, error)
	Cancel(ctx context.Context, asset int, orderID int64) error
	OpenOrders(ctx context.Context, account string) ([]models.OpenOrder, error)
}

type StopLossStore interface {
	Load(ctx context.Context) (decimal.Decimal, error)
	Save(ctx context.Context, stopLoss decimal.Decimal) error
}

type Notifier interface {
	Send(ctx context.Context, msg string) error
}

type Option func(*Engine)

// WithDraw replaces the uniform [0,1) source gating new positions.
func WithDraw(draw func() float64) Option { return func(e *Engine) { e.draw = draw } }

// WithSleep replaces the settle pause between cancels and a new buy.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Engine) { e.sleep = sleep }
}

// Engine runs one observe/decide/act/persist cycle at a time. The store is
// re-read every cycle; nothing else is carried between cycles.
type Engine struct {
	cfg      TradeConfig
	asset    models.AssetSpec
	market   MarketData
	orders   OrderGateway
	store    StopLossStore
	notifier Notifier
	log      *zap.Logger

	draw  func() float64
	sleep func(ctx context.Context, d time.Duration) error
}

func NewEngine(
	cfg TradeConfig,
	asset models.AssetSpec,
	market MarketData,
	orders OrderGateway,
	store StopLossStore,
	notifier Notifier,
	log *zap.Logger,
	opts ...Option,
) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{
		cfg:      cfg,
		asset:    asset,
		market:   market,
		orders:   orders,
		store:    store,
		notifier: notifier,
		log:      log,
		draw:     rand.Float64,
		sleep:    sleepCtx,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Cycle performs at most one of: detected close, open, stop-loss.
// ErrStateWrite means the persisted state may be stale and the caller must stop.
func (e *Engine) Cycle(ctx context.Context) (res models.CycleResult, err error) {
	log := e.log.With(zap.String("cycle", uuid.NewString()))
	span, ctx := tracing.Start(ctx, "cycle")
	defer func() {
		span.SetTag("action", string(res.Action))
		tracing.Finish(span, err)
	}()

	res = models.CycleResult{Action: models.ActionNone, Next: e.cfg.IdleInterval}

	sl, err := e.store.Load(ctx)
	if err != nil {
		return res, err
	}
	pos, err := models.PositionFromStopLoss(sl)
	if err != nil {
		return res, errors.Wrap(models.ErrStateCorrupt, err.Error())
	}
	res.Position = pos
	res.Next = e.interval(pos)

	snap, err := e.snapshot(ctx, log)
	if err != nil {
		return res, err
	}
	res.Snapshot = snap
	log.Info("snapshot",
		zap.String("position", pos.String()),
		zap.Stringer(e.asset.Coin, snap.CoinBalance),
		zap.Stringer(e.cfg.QuoteCoin, snap.QuoteBalance),
		zap.Stringer("mid", snap.Mid),
		zap.Stringer("price", snap.Price),
	)

	switch {
	case snap.CoinBalance.IsZero() && pos.IsTracking():
		err = e.detectedClose(ctx, log, &res)
	case snap.CoinBalance.IsZero() && snap.QuoteBalance.GreaterThanOrEqual(e.cfg.MinQuote):
		err = e.maybeOpen(ctx, log, &res)
	case snap.CoinBalance.IsPositive() && pos.IsTracking() && snap.Mid.LessThan(pos.StopLoss):
		err = e.stopLoss(ctx, log, &res)
	}

	log.Info("cycle done",
		zap.String("action", string(res.Action)),
		zap.String("position", res.Position.String()),
		zap.Duration("next", res.Next),
	)
	return res, err
}

func (e *Engine) interval(pos models.TrackedPosition) time.Duration {
	if pos.IsTracking() {
		return e.cfg.TrackingInterval
	}
	return e.cfg.IdleInterval
}

func (e *Engine) snapshot(ctx context.Context, log *zap.Logger) (models.MarketSnapshot, error) {
	coin, quote, err := e.balances(ctx, log)
	if err != nil {
		return models.MarketSnapshot{}, err
	}
	mid, err := e.market.MidPrice(ctx, e.asset.PairName)
	if err != nil {
		return models.MarketSnapshot{}, errors.Wrap(asGatewayFault(err), "mid price")
	}
	return models.MarketSnapshot{
		CoinBalance:  coin,
		QuoteBalance: quote,
		Mid:          mid,
		Price:        helper.RoundPrice(mid),
	}, nil
}

// balances returns the coin balance truncated to size precision and the raw quote balance.
func (e *Engine) balances(ctx context.Context, log *zap.Logger) (decimal.Decimal, decimal.Decimal, error) {
	bals, err := e.market.Balances(ctx, e.cfg.Account)
	if err != nil {
		return decimal.Zero, decimal.Zero, errors.Wrap(asGatewayFault(err), "balances")
	}
	if len(bals) == 0 {
		log.Info("no available token balances")
	}
	coin, quote := decimal.Zero, decimal.Zero
	for _, b := range bals {
		switch b.Coin {
		case e.asset.Coin:
			coin = helper.Truncate(b.Total, e.asset.SzDecimals)
		case e.cfg.QuoteCoin:
			quote = b.Total
		}
	}
	return coin, quote, nil
}

func (e *Engine) detectedClose(ctx context.Context, log *zap.Logger, res *models.CycleResult) error {
	log.Info("coin balance is zero while tracking, position closed externally",
		zap.Stringer("stop_loss", res.Position.StopLoss))

	if err := e.persist(ctx, log, models.Idle()); err != nil {
		return err
	}
	res.Position = models.Idle()
	res.Action = models.ActionDetectedClose
	res.Next = e.cfg.Cooldown

	e.notify(ctx, log, fmt.Sprintf("CLOSED POSITION: %s\nSL: 0", e.asset.Coin))
	e.cancelAll(ctx, log)
	return nil
}

func (e *Engine) maybeOpen(ctx context.Context, log *zap.Logger, res *models.CycleResult) error {
	if draw := e.draw(); draw >= e.cfg.OpenProbability {
		log.Debug("open draw missed", zap.Float64("draw", draw))
		res.Action = models.ActionOpenSkipped
		return nil
	}

	size := e.openSize(res.Snapshot)
	if !size.IsPositive() {
		log.Warn("computed size is zero, not opening", zap.Stringer("price", res.Snapshot.Price))
		res.Action = models.ActionOpenSkipped
		return nil
	}
	log.Info("opening", zap.Stringer("size", size))

	e.cancelAll(ctx, log)
	if err := e.sleep(ctx, e.cfg.SettleDelay); err != nil {
		return err
	}

	result, err := e.orders.MarketOrder(ctx, models.MarketOrder{
		Asset:      e.asset.Asset(),
		PairName:   e.asset.PairName,
		IsBuy:      true,
		Size:       size,
		SzDecimals: e.asset.SzDecimals,
	})
	var fill *models.Fill
	if err == nil {
		fill, err = result.Filled()
	}
	metrics.Order(metrics.OrderBuy, err)
	if err != nil {
		res.Action = models.ActionOpenFailed
		if errors.Is(err, models.ErrOrderRejected) {
			log.Warn("buy not filled, staying idle", zap.Error(err))
			return nil
		}
		return errors.Wrap(asGatewayFault(err), "market buy")
	}
	log.Info("buy filled",
		zap.Int64("oid", fill.OrderID),
		zap.Stringer("size", fill.TotalSize),
		zap.Stringer("avg_px", fill.AvgPrice))

	stopLoss := fill.AvgPrice.Mul(e.cfg.stopLossFactor())
	takeProfit := helper.SpotPrice(fill.AvgPrice.Mul(e.cfg.takeProfitFactor()), e.asset.SzDecimals)
	res.Fill = fill
	res.TakeProfit = takeProfit

	e.placeTakeProfit(ctx, log, fill, takeProfit)

	pos := models.Tracking(stopLoss)
	if err := e.persist(ctx, log, pos); err != nil {
		return err
	}
	res.Position = pos
	res.Action = models.ActionOpened
	res.Next = e.cfg.TrackingInterval

	e.notify(ctx, log, fmt.Sprintf("OPENED POSITION: Filled %s %s @ %s (order #%d) SL: %s",
		fill.TotalSize, e.asset.Coin, fill.AvgPrice, fill.OrderID, stopLoss))
	return nil
}

// openSize = truncate(min(quote, amount or all) / price, szDecimals).
func (e *Engine) openSize(snap models.MarketSnapshot) decimal.Decimal {
	if !snap.Price.IsPositive() {
		return decimal.Zero
	}
	notional := snap.QuoteBalance
	if e.cfg.Amount.IsPositive() && e.cfg.Amount.LessThanOrEqual(snap.QuoteBalance) {
		notional = e.cfg.Amount
	}
	return helper.Truncate(notional.Div(snap.Price), e.asset.SzDecimals)
}

// placeTakeProfit sells min(filled, held) at the take-profit price. Fees paid
// in the base token leave slightly less than the fill on the account.
func (e *Engine) placeTakeProfit(ctx context.Context, log *zap.Logger, fill *models.Fill, price decimal.Decimal) {
	size := helper.Truncate(fill.TotalSize, e.asset.SzDecimals)
	if held, _, err := e.balances(ctx, log); err != nil {
		log.Warn("balance re-read after buy failed, using filled size", zap.Error(err))
	} else if held.IsPositive() && held.LessThan(size) {
		log.Warn("held balance below filled size",
			zap.Stringer("filled", fill.TotalSize), zap.Stringer("held", held))
		size = held
	}

	result, err := e.orders.LimitOrder(ctx, models.LimitOrder{
		Asset: e.asset.Asset(),
		IsBuy: false,
		Size:  size,
		Price: price,
		Tif:   models.TifGtc,
	})
	if err == nil {
		err = result.Accepted()
	}
	metrics.Order(metrics.OrderTakeProfit, err)
	if err != nil {
		log.Error("take-profit order failed", zap.Stringer("price", price), zap.Stringer("size", size), zap.Error(err))
		e.notify(ctx, log, fmt.Sprintf("TAKE PROFIT NOT PLACED: %s %s @ %s\n%v", size, e.asset.Coin, price, err))
		return
	}
	log.Info("take-profit placed", zap.Stringer("price", price), zap.Stringer("size", size))
}

func (e *Engine) stopLoss(ctx context.Context, log *zap.Logger, res *models.CycleResult) error {
	log.Info("price below stop-loss, closing",
		zap.Stringer("mid", res.Snapshot.Mid),
		zap.Stringer("stop_loss", res.Position.StopLoss))

	e.cancelAll(ctx, log)

	result, err := e.orders.MarketOrder(ctx, models.MarketOrder{
		Asset:      e.asset.Asset(),
		PairName:   e.asset.PairName,
		IsBuy:      false,
		Size:       res.Snapshot.CoinBalance,
		SzDecimals: e.asset.SzDecimals,
	})
	var fill *models.Fill
	if err == nil {
		fill, err = result.Filled()
	}
	metrics.Order(metrics.OrderSell, err)
	if err != nil {
		res.Action = models.ActionStopFailed
		if errors.Is(err, models.ErrOrderRejected) {
			log.Warn("stop-loss sell not filled, keeping stop-loss", zap.Error(err))
			return nil
		}
		return errors.Wrap(asGatewayFault(err), "market sell")
	}

	e.notify(ctx, log, fmt.Sprintf("CLOSED POSITION: Filled %s %s @ %s (order #%d)",
		fill.TotalSize, e.asset.Coin, fill.AvgPrice, fill.OrderID))

	if err := e.persist(ctx, log, models.Idle()); err != nil {
		return err
	}
	res.Position = models.Idle()
	res.Fill = fill
	res.Action = models.ActionStopLoss
	res.Next = e.cfg.Cooldown
	return nil
}

func (e *Engine) persist(ctx context.Context, log *zap.Logger, pos models.TrackedPosition) error {
	value := pos.StopLossValue()
	if err := e.store.Save(ctx, value); err != nil {
		log.Error("PERSIST FAILED, halting", zap.Stringer("stop_loss", value), zap.Error(err))
		if !errors.Is(err, models.ErrStateWrite) {
			err = errors.Wrap(models.ErrStateWrite, err.Error())
		}
		return err
	}
	return nil
}

// cancelAll cancels every resting order on the pair. Failures are logged only.
func (e *Engine) cancelAll(ctx context.Context, log *zap.Logger) {
	orders, err := e.orders.OpenOrders(ctx, e.cfg.Account)
	if err != nil {
		log.Warn("open orders lookup failed", zap.Error(err))
		return
	}
	var errs error
	for _, o := range orders {
		if o.Coin != e.asset.PairName {
			continue
		}
		cerr := e.orders.Cancel(ctx, e.asset.Asset(), o.OrderID)
		metrics.Order(metrics.OrderCancel, cerr)
		if cerr != nil {
			errs = multierr.Append(errs, errors.Wrapf(cerr, "cancel #%d", o.OrderID))
			continue
		}
		log.Info("cancelled order", zap.Int64("oid", o.OrderID))
	}
	if errs != nil {
		log.Warn("cancel all incomplete", zap.Error(errs))
	}
}

func (e *Engine) notify(ctx context.Context, log *zap.Logger, msg string) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Send(ctx, msg); err != nil {
		log.Warn("notification failed", zap.Error(err))
	}
}

func asGatewayFault(err error) error {
	if errors.Is(err, models.ErrGatewayFault) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return errors.Wrap(models.ErrGatewayFault, err.Error())
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
