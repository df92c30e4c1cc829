package runner

import (
	"context"
	"sync"
	"time"

	"spot_bot/internal/models"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fakeMarket struct {
	mu       sync.Mutex
	balances [][]models.Balance // one entry per call, last one repeats
	balErr   error
	mid      decimal.Decimal
	midErr   error
	calls    int // balance and mid lookups
	balCalls int
}

func (f *fakeMarket) Balances(_ context.Context, _ string) ([]models.Balance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.balCalls++
	if f.balErr != nil {
		return nil, f.balErr
	}
	if len(f.balances) == 0 {
		return nil, nil
	}
	i := f.balCalls - 1
	if i >= len(f.balances) {
		i = len(f.balances) - 1
	}
	return f.balances[i], nil
}

func (f *fakeMarket) MidPrice(_ context.Context, _ string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.mid, f.midErr
}

func bals(coin, quote string) []models.Balance {
	var out []models.Balance
	if coin != "" {
		out = append(out, models.Balance{Coin: "PURR", Token: 1, Total: d(coin)})
	}
	if quote != "" {
		out = append(out, models.Balance{Coin: "USDC", Token: 0, Total: d(quote)})
	}
	return out
}

type fakeGateway struct {
	mu sync.Mutex

	marketOrders []models.MarketOrder
	limitOrders  []models.LimitOrder
	cancels      []int64

	marketResult models.OrderResult
	marketErr    error
	limitResult  models.OrderResult
	limitErr     error
	cancelErr    error
	open         []models.OpenOrder
}

func filled(oid int64, size, px string) models.OrderResult {
	return models.OrderResult{Status: models.StatusOK, Statuses: []models.OrderStatus{
		{Filled: &models.Fill{OrderID: oid, TotalSize: d(size), AvgPrice: d(px)}},
	}}
}

func resting(oid int64) models.OrderResult {
	return models.OrderResult{Status: models.StatusOK, Statuses: []models.OrderStatus{
		{Resting: &models.Resting{OrderID: oid}},
	}}
}

func (f *fakeGateway) MarketOrder(_ context.Context, o models.MarketOrder) (models.OrderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marketOrders = append(f.marketOrders, o)
	return f.marketResult, f.marketErr
}

func (f *fakeGateway) LimitOrder(_ context.Context, o models.LimitOrder) (models.OrderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.limitOrders = append(f.limitOrders, o)
	return f.limitResult, f.limitErr
}

func (f *fakeGateway) Cancel(_ context.Context, _ int, orderID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels = append(f.cancels, orderID)
	return f.cancelErr
}

func (f *fakeGateway) OpenOrders(_ context.Context, _ string) ([]models.OpenOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open, nil
}

type fakeStore struct {
	mu      sync.Mutex
	value   decimal.Decimal
	loadErr error
	saveErr error
	saves   []decimal.Decimal
}

func (f *fakeStore) Load(_ context.Context) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.loadErr
}

func (f *fakeStore) Save(_ context.Context, v decimal.Decimal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saves = append(f.saves, v)
	f.value = v
	return nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	msgs []string
	err  error
}

func (f *fakeNotifier) Send(_ context.Context, msg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
	return f.err
}

var testAsset = models.AssetSpec{
	Coin:       "PURR",
	SzDecimals: 2,
	TokenIndex: 1,
	PairName:   "PURR/USDC",
	PairIndex:  0,
}

func testConfig() TradeConfig {
	return TradeConfig{
		Account:          "0xabc",
		QuoteCoin:        "USDC",
		Amount:           decimal.Zero,
		MinQuote:         decimal.NewFromInt(100),
		OpenProbability:  0.2,
		Band:             d("0.04"),
		TrackingInterval: 30 * time.Second,
		IdleInterval:     300 * time.Second,
		Cooldown:         5000 * time.Second,
		SettleDelay:      5 * time.Second,
	}
}

type harness struct {
	market   *fakeMarket
	gateway  *fakeGateway
	store    *fakeStore
	notifier *fakeNotifier
	slept    []time.Duration
	draw     float64
}

func newHarness() *harness {
	return &harness{
		market:   &fakeMarket{mid: d("7")},
		gateway:  &fakeGateway{},
		store:    &fakeStore{value: decimal.Zero},
		notifier: &fakeNotifier{},
		draw:     0.99,
	}
}

func (h *harness) engine(cfg TradeConfig) *Engine {
	return NewEngine(cfg, testAsset, h.market, h.gateway, h.store, h.notifier, nil,
		WithDraw(func() float64 { return h.draw }),
		WithSleep(func(ctx context.Context, dur time.Duration) error {
			h.slept = append(h.slept, dur)
			return ctx.Err()
		}),
	)
}
