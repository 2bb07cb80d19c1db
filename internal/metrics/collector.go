// internal/metrics/collector.go
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rovshanmuradov/solana-amm/internal/events"
)

const namespace = "solana_amm"

// Collector управляет набором метрик runtime и пулов
type Collector struct {
	registry *prometheus.Registry

	transactions *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	reserves     *prometheus.GaugeVec
	swaps        *prometheus.CounterVec
	protocolFees *prometheus.CounterVec
}

// NewCollector creates a collector with its own registry so several banks can
// coexist in one process (tests, CLI replays).
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		transactions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transactions_total",
				Help:      "Total number of transactions processed",
			},
			[]string{"status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "transaction_duration_seconds",
				Help:      "Transaction execution time in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
			},
			[]string{"status"},
		),
		reserves: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pool_reserve",
				Help:      "Current pool reserve in base units",
			},
			[]string{"pool", "side"},
		),
		swaps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "swaps_total",
				Help:      "Number of committed swaps per pool",
			},
			[]string{"pool"},
		),
		protocolFees: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "protocol_fees_total",
				Help:      "Protocol fees routed to the treasury, per mint",
			},
			[]string{"mint"},
		),
	}

	c.registry.MustRegister(c.transactions, c.duration, c.reserves, c.swaps, c.protocolFees)
	return c
}

// Registry exposes the underlying registry for an HTTP handler or tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordTransaction записывает результат и длительность транзакции
func (c *Collector) RecordTransaction(duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	c.transactions.WithLabelValues(status).Inc()
	c.duration.WithLabelValues(status).Observe(duration.Seconds())
}

// ObserveEvent updates pool gauges from a committed program event.
func (c *Collector) ObserveEvent(ev events.Event) {
	if pe, ok := ev.(events.PoolEvent); ok {
		pool := pe.PoolAddress().String()
		a, b := pe.Reserves()
		c.reserves.WithLabelValues(pool, "a").Set(float64(a))
		c.reserves.WithLabelValues(pool, "b").Set(float64(b))
	}

	if swap, ok := ev.(events.SwapEvent); ok {
		c.swaps.WithLabelValues(swap.Pool.String()).Inc()
		if swap.ProtocolFee > 0 {
			c.protocolFees.WithLabelValues(swap.InputMint.String()).Add(float64(swap.ProtocolFee))
		}
	}
}

// Reset сбрасывает все метрики (полезно для тестирования)
func (c *Collector) Reset() {
	c.transactions.Reset()
	c.duration.Reset()
	c.reserves.Reset()
	c.swaps.Reset()
	c.protocolFees.Reset()
}
