package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Trading metrics
	tradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phase_bot_trades_total",
			Help: "Total number of completed trade cycles",
		},
		[]string{"symbol", "variant", "exit_reason"},
	)

	tradePnL = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "phase_bot_trade_pnl",
			Help:    "Distribution of per-trade P&L in account currency",
			Buckets: prometheus.LinearBuckets(-500, 100, 15),
		},
		[]string{"symbol", "variant"},
	)

	// Phase machine metrics
	phaseTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phase_bot_transitions_total",
			Help: "Phase transitions by target phase",
		},
		[]string{"symbol", "variant", "to"},
	)

	currentPhase = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "phase_bot_current_phase",
			Help: "Current phase of each strategy instance (enum ordinal)",
		},
		[]string{"symbol", "variant"},
	)

	// Market data metrics
	currentPrice = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "phase_bot_current_price",
			Help: "Last closed bar price per symbol",
		},
		[]string{"symbol"},
	)

	barsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phase_bot_bars_total",
			Help: "Closed bars processed per stream",
		},
		[]string{"symbol"},
	)

	// Connection metrics
	reconnects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phase_bot_feed_reconnects_total",
			Help: "Market feed reconnect attempts",
		},
		[]string{"symbol"},
	)

	// Error metrics
	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phase_bot_errors_total",
			Help: "Total number of errors",
		},
		[]string{"type"},
	)
)

func init() {
	// Register metrics
	prometheus.MustRegister(tradesTotal)
	prometheus.MustRegister(tradePnL)
	prometheus.MustRegister(phaseTransitions)
	prometheus.MustRegister(currentPhase)
	prometheus.MustRegister(currentPrice)
	prometheus.MustRegister(barsProcessed)
	prometheus.MustRegister(reconnects)
	prometheus.MustRegister(errorsTotal)
}

// MetricsHandler serves the Prometheus scrape endpoint
type MetricsHandler struct{}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{}
}

// ServeHTTP serves the Prometheus metrics endpoint
func (m *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// RecordTrade records a completed trade cycle
func RecordTrade(symbol, variant, exitReason string, pnl float64) {
	tradesTotal.WithLabelValues(symbol, variant, exitReason).Inc()
	tradePnL.WithLabelValues(symbol, variant).Observe(pnl)
}

// RecordTransition records one phase transition
func RecordTransition(symbol, variant, to string, phaseOrdinal float64) {
	phaseTransitions.WithLabelValues(symbol, variant, to).Inc()
	currentPhase.WithLabelValues(symbol, variant).Set(phaseOrdinal)
}

// RecordBar updates the per-stream bar metrics
func RecordBar(symbol string, closePrice float64) {
	barsProcessed.WithLabelValues(symbol).Inc()
	currentPrice.WithLabelValues(symbol).Set(closePrice)
}

// RecordReconnect counts a feed reconnect attempt
func RecordReconnect(symbol string) {
	reconnects.WithLabelValues(symbol).Inc()
}

// RecordError records an error metric
func RecordError(errorType string) {
	errorsTotal.WithLabelValues(errorType).Inc()
}
