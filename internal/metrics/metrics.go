package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rentledger_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rentledger_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	leaseOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rentledger_lease_operations_total",
		Help: "Count of lease lifecycle operations by operation and result",
	}, []string{"operation", "result"})

	ledgerEntriesGenerated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rentledger_ledger_entries_generated_total",
		Help: "Number of ledger entries materialized from rent charges",
	})

	gatewayCalls = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rentledger_gateway_call_duration_seconds",
		Help:    "Duration of payment gateway calls by operation and result",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "result"})

	notificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rentledger_notifications_total",
		Help: "Count of notifications by kind and result",
	}, []string{"kind", "result"})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveLeaseOperation counts a lifecycle operation outcome
func ObserveLeaseOperation(operation string, err error) {
	leaseOperations.WithLabelValues(operation, Result(err)).Inc()
}

// AddLedgerEntries counts generated ledger entries
func AddLedgerEntries(n int) {
	ledgerEntriesGenerated.Add(float64(n))
}

// ObserveGatewayCall records the duration of one gateway request
func ObserveGatewayCall(operation string, err error, duration time.Duration) {
	gatewayCalls.WithLabelValues(operation, Result(err)).Observe(duration.Seconds())
}

// ObserveNotification counts a notification attempt. result is "sent",
// "skipped" or "error".
func ObserveNotification(kind, result string) {
	notificationsSent.WithLabelValues(kind, result).Inc()
}

// Result maps an error to a low-cardinality label
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
