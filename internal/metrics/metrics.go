package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "paygate", Subsystem: "http", Name: "requests_total", Help: "HTTP requests by route and status."},
		[]string{"method", "route", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Namespace: "paygate", Subsystem: "http", Name: "request_duration_seconds", Help: "HTTP request latency.", Buckets: prometheus.DefBuckets},
		[]string{"method", "route"},
	)
	gatewayCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "paygate", Subsystem: "gateway", Name: "calls_total", Help: "Payment gateway calls by outcome."},
		[]string{"gateway", "operation", "outcome"},
	)
	gatewayDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Namespace: "paygate", Subsystem: "gateway", Name: "call_duration_seconds", Help: "Payment gateway call latency.", Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 15, 30}},
		[]string{"gateway", "operation"},
	)
	ledgerAppends = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "paygate", Subsystem: "ledger", Name: "appends_total", Help: "Purchase ledger appends by outcome."},
		[]string{"outcome"},
	)
	settlements = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "paygate", Subsystem: "payment", Name: "settlements_total", Help: "Confirmed settlements by gateway and status."},
		[]string{"gateway", "status"},
	)
)

func init() {
	prometheus.MustRegister(httpRequests, httpDuration, gatewayCalls, gatewayDuration, ledgerAppends, settlements)
}

func ObserveHTTP(method, route string, status int, d time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func ObserveGateway(gateway, operation string, d time.Duration, err error) {
	gatewayCalls.WithLabelValues(gateway, operation, outcome(err)).Inc()
	gatewayDuration.WithLabelValues(gateway, operation).Observe(d.Seconds())
}

func ObserveLedgerAppend(err error) {
	ledgerAppends.WithLabelValues(outcome(err)).Inc()
}

func ObserveSettlement(gateway, status string) {
	settlements.WithLabelValues(gateway, status).Inc()
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
