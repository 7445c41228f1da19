package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	OperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "mongomodel", Name: "operations_total", Help: "Model operations by collection, operation and outcome."},
		[]string{"collection", "operation", "outcome"},
	)
	OperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Namespace: "mongomodel", Name: "operation_duration_seconds", Help: "Model operation latency.", Buckets: prometheus.DefBuckets},
		[]string{"collection", "operation"},
	)
	IndexSyncTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "mongomodel", Name: "index_sync_total", Help: "Index synchronization runs by collection and outcome."},
		[]string{"collection", "outcome"},
	)
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "mongomodel", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "mongomodel", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(OperationsTotal)
	reg.MustRegister(OperationDuration)
	reg.MustRegister(IndexSyncTotal)
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
}

// ObserveOperation records one model operation. outcome is "ok" or the
// error kind.
func ObserveOperation(collection, operation, outcome string, d time.Duration) {
	OperationsTotal.WithLabelValues(collection, operation, outcome).Inc()
	OperationDuration.WithLabelValues(collection, operation).Observe(d.Seconds())
}
