// Package metrics registers the process-wide Prometheus collectors. The
// /metrics endpoint on the control-plane server exposes them.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	TradesOpened = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kalbot_trades_opened_total",
		Help: "Trades opened, by strategy",
	}, []string{"strategy"})

	TradesClosed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kalbot_trades_closed_total",
		Help: "Trades closed, by strategy and exit reason",
	}, []string{"strategy", "reason"})

	GateRejections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kalbot_gate_rejections_total",
		Help: "Candidate signals rejected by the risk gate, by check",
	}, []string{"check"})

	OrdersFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "kalbot_orders_failed_total",
		Help: "Order submissions that the exchange rejected or that timed out",
	})

	OpenPositions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "kalbot_open_positions",
		Help: "Open positions right now",
	})

	OpenExposure = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "kalbot_open_exposure_dollars",
		Help: "Capital committed to open positions at entry prices",
	})

	Bankroll = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "kalbot_bankroll_dollars",
		Help: "Current bankroll from the settings table",
	})

	ReflectionsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "kalbot_reflections_dropped_total",
		Help: "Reflection requests dropped because the queue was full",
	})

	CycleDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kalbot_cycle_duration_seconds",
		Help:    "Wall time of one task cycle, by task",
		Buckets: prometheus.DefBuckets,
	}, []string{"task"})
)

func init() {
	prometheus.MustRegister(
		TradesOpened, TradesClosed, GateRejections, OrdersFailed,
		OpenPositions, OpenExposure, Bankroll, ReflectionsDropped,
		CycleDuration,
	)
}
