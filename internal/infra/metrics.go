// Prometheus metrics for the decision core.
//
// Primary series:
//   - core_bars_total{instrument}              – bars admitted per instrument
//   - core_decisions_total{reason}             – policy decisions by reason code
//   - core_trades_total{result}                – closed trades by result (win|loss)
//   - core_exits_total{type,direction}         – exits split by type and side
//   - core_pipeline_halts_total{instrument}    – fatal halts awaiting operator ack
//   - core_open_positions{instrument}          – currently open positions (gauge)
//   - core_theta{instrument}                   – last certified theta (gauge)
//
// Registered in init() and served at /metrics by Serve.

package infra

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	mtxBars = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "core_bars_total",
			Help: "Bars admitted into the pipeline",
		},
		[]string{"instrument"},
	)

	mtxDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "core_decisions_total",
			Help: "Policy decisions by reason code",
		},
		[]string{"reason"},
	)

	mtxTrades = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "core_trades_total",
			Help: "Closed trades by result (win|loss)",
		},
		[]string{"result"},
	)

	mtxExits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "core_exits_total",
			Help: "Exits split by type and direction",
		},
		[]string{"type", "direction"},
	)

	mtxHalts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "core_pipeline_halts_total",
			Help: "Fatal pipeline halts awaiting operator acknowledgment",
		},
		[]string{"instrument"},
	)

	mtxOpenPositions = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "core_open_positions",
			Help: "Currently open positions per instrument",
		},
		[]string{"instrument"},
	)

	mtxTheta = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "core_theta",
			Help: "Last certified theta per instrument",
		},
		[]string{"instrument"},
	)
)

func init() {
	prometheus.MustRegister(
		mtxBars, mtxDecisions, mtxTrades, mtxExits,
		mtxHalts, mtxOpenPositions, mtxTheta,
	)
}

// ObserveBar counts one admitted bar.
func ObserveBar(instrument string) {
	mtxBars.WithLabelValues(instrument).Inc()
}

// ObserveDecision counts one policy decision by reason code.
func ObserveDecision(reason string) {
	mtxDecisions.WithLabelValues(reason).Inc()
}

// ObserveTrade counts one closed trade by result.
func ObserveTrade(result string) {
	mtxTrades.WithLabelValues(result).Inc()
}

// ObserveExit counts one exit by type and direction.
func ObserveExit(exitType, direction string) {
	mtxExits.WithLabelValues(exitType, direction).Inc()
}

// ObserveHalt counts one fatal pipeline halt.
func ObserveHalt(instrument string) {
	mtxHalts.WithLabelValues(instrument).Inc()
}

// SetOpenPositions updates the open-position gauge for one instrument.
// Each pipeline holds at most one position, so n is 0 or 1.
func SetOpenPositions(instrument string, n int) {
	mtxOpenPositions.WithLabelValues(instrument).Set(float64(n))
}

// SetTheta records the last certified theta for an instrument.
func SetTheta(instrument string, theta int) {
	mtxTheta.WithLabelValues(instrument).Set(float64(theta))
}

// ServeMetrics exposes /metrics on the given address. Blocking; run it in
// its own goroutine.
func ServeMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("metrics server failed", slog.Any("error", err))
	}
}
