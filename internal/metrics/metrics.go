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
	gatewayDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ledger",
			Subsystem: "gateway",
			Name:      "operation_duration_seconds",
			Help:      "Latency of persistence gateway operations.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2},
		},
		[]string{"backend", "operation", "status"},
	)

	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ledger",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by matched route and status code.",
		},
		[]string{"method", "route", "status"},
	)

	ledgerEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ledger",
			Subsystem: "events",
			Name:      "handled_total",
			Help:      "Ledger events consumed by the worker.",
		},
		[]string{"type", "status"},
	)
)

// ObserveGateway records one gateway call.
func ObserveGateway(backend, operation string, elapsed time.Duration, err error) {
	gatewayDuration.
		WithLabelValues(backend, operation, status(err)).
		Observe(elapsed.Seconds())
}

func ObserveHTTP(method, route string, code int) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
}

func ObserveEvent(eventType string, err error) {
	ledgerEvents.WithLabelValues(eventType, status(err)).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// NewServer serves only /metrics, for processes without an API.
func NewServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", Handler())
	return &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
