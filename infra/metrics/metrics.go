// Package metrics exposes the engine's Prometheus instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	OrdersAccepted *prometheus.CounterVec
	OrdersRejected *prometheus.CounterVec
	OrdersCanceled *prometheus.CounterVec
	Trades         *prometheus.CounterVec
	TradeVolume    *prometheus.CounterVec
	BookLevels     *prometheus.GaugeVec
	AuctionMode    *prometheus.GaugeVec
	WALAppends     prometheus.Counter
	OutboxPending  prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		OrdersAccepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "odin_orders_accepted_total",
			Help: "Orders accepted by the matching engine.",
		}, []string{"pair"}),
		OrdersRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "odin_orders_rejected_total",
			Help: "Orders rejected before any book mutation.",
		}, []string{"pair"}),
		OrdersCanceled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "odin_orders_canceled_total",
			Help: "Orders cancelled by their owner.",
		}, []string{"pair"}),
		Trades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "odin_trades_total",
			Help: "Executions, continuous and auction.",
		}, []string{"pair"}),
		TradeVolume: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "odin_trade_volume_base",
			Help: "Traded base quantity in fixed-point units.",
		}, []string{"pair"}),
		BookLevels: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "odin_book_levels",
			Help: "Live price levels per book side.",
		}, []string{"pair", "side"}),
		AuctionMode: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "odin_auction_mode",
			Help: "Current auction mode as its numeric code.",
		}, []string{"pair"}),
		WALAppends: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "odin_wal_appends_total",
			Help: "Records appended to the entry WAL.",
		}),
		OutboxPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "odin_outbox_pending",
			Help: "Events waiting in the outbox for broadcast.",
		}),
	}

	reg.MustRegister(
		m.OrdersAccepted, m.OrdersRejected, m.OrdersCanceled,
		m.Trades, m.TradeVolume, m.BookLevels, m.AuctionMode,
		m.WALAppends, m.OutboxPending,
	)
	return m
}

// Handler serves the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
