package metrics

import (
	"spot_bot/internal/models"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	mtxCycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spot_bot_cycles_total",
			Help: "Cycles by action taken",
		},
		[]string{"action"},
	)
	mtxCycleErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spot_bot_cycle_errors_total",
			Help: "Aborted cycles by fault kind",
		},
		[]string{"kind"},
	)
	mtxOrders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spot_bot_orders_total",
			Help: "Orders sent by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)
	mtxStopLoss = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "spot_bot_stop_loss",
			Help: "Persisted stop-loss price, 0 when idle",
		},
	)
	mtxBalance = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "spot_bot_balance",
			Help: "Last observed balances",
		},
		[]string{"coin"},
	)
	mtxMid = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "spot_bot_mid_price",
			Help: "Last observed mid price",
		},
	)
)

func init() {
	prometheus.MustRegister(mtxCycles, mtxCycleErrors, mtxOrders)
	prometheus.MustRegister(mtxStopLoss, mtxBalance, mtxMid)
}

// Order kinds.
const (
	OrderBuy        = "market_buy"
	OrderSell       = "market_sell"
	OrderTakeProfit = "take_profit"
	OrderCancel     = "cancel"
)

func ObserveCycle(coin, quote string, res models.CycleResult) {
	mtxCycles.WithLabelValues(string(res.Action)).Inc()
	mtxStopLoss.Set(res.Position.StopLossValue().InexactFloat64())
	mtxBalance.WithLabelValues(coin).Set(res.Snapshot.CoinBalance.InexactFloat64())
	mtxBalance.WithLabelValues(quote).Set(res.Snapshot.QuoteBalance.InexactFloat64())
	mtxMid.Set(res.Snapshot.Mid.InexactFloat64())
}

func CycleFailed(kind string) { mtxCycleErrors.WithLabelValues(kind).Inc() }

func Order(kind string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	mtxOrders.WithLabelValues(kind, outcome).Inc()
}
