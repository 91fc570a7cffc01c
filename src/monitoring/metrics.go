package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	tradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockbot_trades_total",
			Help: "Total number of orders filled",
		},
		[]string{"symbol", "side"},
	)

	signalRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockbot_signal_rejections_total",
			Help: "Signals rejected by the risk gate, by reason",
		},
		[]string{"reason"},
	)

	currentPrice = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stockbot_current_price",
			Help: "Last observed price per symbol",
		},
		[]string{"symbol"},
	)

	portfolioValue = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "stockbot_portfolio_value",
			Help: "Portfolio value from the latest risk snapshot",
		},
	)

	dailyPnL = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "stockbot_daily_pnl",
			Help: "Daily profit and loss against the session baseline",
		},
	)

	circuitBreaker = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "stockbot_circuit_breaker",
			Help: "1 while the daily-loss circuit breaker is tripped",
		},
	)

	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockbot_errors_total",
			Help: "Total number of errors",
		},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(tradesTotal)
	prometheus.MustRegister(signalRejections)
	prometheus.MustRegister(currentPrice)
	prometheus.MustRegister(portfolioValue)
	prometheus.MustRegister(dailyPnL)
	prometheus.MustRegister(circuitBreaker)
	prometheus.MustRegister(errorsTotal)
}

// Handler serves the Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordTrade records a filled order.
func RecordTrade(symbol, side string) {
	tradesTotal.WithLabelValues(symbol, side).Inc()
}

// RecordRejection records a risk-gate rejection by reason.
func RecordRejection(reason string) {
	signalRejections.WithLabelValues(reason).Inc()
}

// UpdatePrice updates the last observed price for a symbol.
func UpdatePrice(symbol string, price float64) {
	currentPrice.WithLabelValues(symbol).Set(price)
}

// UpdatePortfolio updates the portfolio gauges from a snapshot.
func UpdatePortfolio(value, pnl float64) {
	portfolioValue.Set(value)
	dailyPnL.Set(pnl)
}

// SetCircuitBreaker flips the circuit-breaker gauge.
func SetCircuitBreaker(tripped bool) {
	if tripped {
		circuitBreaker.Set(1)
		return
	}
	circuitBreaker.Set(0)
}

// RecordError counts an error by type.
func RecordError(errType string) {
	errorsTotal.WithLabelValues(errType).Inc()
}
