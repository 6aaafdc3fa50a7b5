// Package metrics provides Prometheus instrumentation for the settlement engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SettlementRunsTotal counts settlement runs by direction and outcome.
	SettlementRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fxs_settlement_runs_total",
		Help: "Total settlement runs",
	}, []string{"direction", "outcome"})

	SettlementRunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fxs_settlement_run_duration_seconds",
		Help:    "Settlement run duration in seconds",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
	}, []string{"direction"})

	// AllocationStepsTotal counts applied allocation steps by phase.
	AllocationStepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fxs_allocation_steps_total",
		Help: "Allocation steps applied",
	}, []string{"phase"})

	TradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fxs_trades_total",
		Help: "Trades recorded",
	}, []string{"kind"})

	CancellationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fxs_cancellations_total",
		Help: "Records canceled",
	}, []string{"kind"})

	// IdempotencyOutcomesTotal counts keyed writes by replayed, conflict or stored.
	IdempotencyOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fxs_idempotency_outcomes_total",
		Help: "Idempotency-Key handling outcomes",
	}, []string{"outcome"})

	PanicsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fxs_http_panics_total",
		Help: "Handler panics recovered",
	})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fxs_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fxs_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request counts and latency. The route pattern is used as
// the path label so ids do not blow up cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
